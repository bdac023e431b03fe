package tgbot

import (
	"sync"
	"time"

	"github.com/jmhodges/clock"
)

type stage int

const (
	stageIdle stage = iota
	stageName
	stageDosage
	stageTime
	stageFrequency
	stageDelete
)

// session holds one user's in-flight conversation: the intake stage, the
// partially collected medication fields and, during the delete flow, the
// list-position to row-ID mapping shown to the user. Handlers hold mu for
// the whole message, so one conversation is touched by at most one
// handler at a time even though every message runs in its own goroutine.
type session struct {
	mu        sync.Mutex
	stage     stage
	name      string
	dosage    string
	timeOfDay string
	deleteIDs []int64
	touched   time.Time
}

// clear terminates the conversation. The caller must hold mu.
func (s *session) clear() {
	s.stage = stageIdle
	s.name = ""
	s.dosage = ""
	s.timeOfDay = ""
	s.deleteIDs = nil
}

// sessionStore keeps per-user conversation state. Sessions idle longer
// than ttl are discarded on next access; ttl <= 0 disables expiry.
type sessionStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	clk      clock.Clock
	sessions map[int64]*session
}

func newSessionStore(ttl time.Duration) *sessionStore {
	return &sessionStore{
		ttl:      ttl,
		clk:      clock.New(),
		sessions: make(map[int64]*session),
	}
}

// get returns the user's current session, replacing an expired one with a
// fresh idle session.
func (s *sessionStore) get(usr int64) *session {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clk.Now()
	sess, ok := s.sessions[usr]
	if !ok || (s.ttl > 0 && now.Sub(sess.touched) > s.ttl) {
		sess = &session{stage: stageIdle}
		s.sessions[usr] = sess
	}
	sess.touched = now

	return sess
}

