package tgbot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Daryana-2906/pills-bot/db"

	tg "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	btnAddMedicine    = "Add medicine"
	btnMyMedicines    = "My medicines"
	btnDeleteMedicine = "Delete medicine"
)

const (
	txtWelcomeMessage = "Hi, %s! I'm a bot that reminds you to take your medications.\n\nChoose an action:"
	txtHelpMessage    = `I remind you to take your medications at the times you choose. Use the menu buttons or one of these commands:
/medicines - to list your active medication reminders
/cancel - to abort the current action
/help - to show this message`
	txtUnknownCommand     = "I don't know this command. Use /help to list commands I know"
	txtChooseFromMenu     = "Please choose an action from the menu below."
	txtActionCancelled    = "Action cancelled."
	txtEnterMedicineName  = "Enter the medicine name:"
	txtEnterDosage        = "Enter the dosage (e.g.: 1 tablet, 10mg):"
	txtEnterTime          = "Enter the intake time in HH:MM format (e.g.: 09:00):"
	txtInvalidTime        = "Invalid time format. Enter the time in HH:MM format:"
	txtChooseFrequency    = "Choose the intake frequency:\n1 - Every day\n2 - Only today\n3 - On weekdays\n4 - On weekends"
	txtMedicineDeleted    = "Medicine deleted!"
	txtNoMedicines        = "You have no active medication reminders."
	txtChooseDeleteNumber = "Choose the number of the medicine to delete:\n\n"
	txtEnterNumber        = "Please enter a number:"
	txtInvalidNumber      = "Invalid number. Try again."
	txtFailedAddMedicine  = "Something went wrong while adding the medicine. Try again later."
	txtFailedDelMedicine  = "Something went wrong while deleting the medicine. Try again later."
	txtFailedListMedicine = "Something went wrong while fetching your medicines. Try again later."

	fmtMedicineAdded = "Medicine added!\nName: %s\nDosage: %s\nTime: %s\nFrequency: %s"
	fmtMedicineLine  = "%d. %s\n   Dosage: %s\n   Time: %s\n   Frequency: %s\n\n"
	fmtDeleteLine    = "%d. %s - %s at %s\n"
)

var frequencyChoices = map[string]string{
	"1": db.FreqDaily,
	"2": db.FreqOnce,
	"3": db.FreqWeekdays,
	"4": db.FreqWeekends,
}

var menuKeyboard = tg.NewReplyKeyboard(
	tg.NewKeyboardButtonRow(
		tg.NewKeyboardButton(btnAddMedicine),
		tg.NewKeyboardButton(btnMyMedicines),
	),
	tg.NewKeyboardButtonRow(
		tg.NewKeyboardButton(btnDeleteMedicine),
	),
)

var (
	errUnknownFormat = errors.New("unknown format")
	errOutOfRange    = errors.New("value is out of range")
)

// Store is the part of the medication store the bot needs to drive the
// add and delete flows.
type Store interface {
	CreateMedication(usr int64, name, dosage, timeOfDay, frequency string) error
	ListActive(usr int64) ([]db.Medication, error)
	DeleteMedication(id, usr int64) (bool, error)
}

// requester is the slice of tg.BotAPI used for outbound sends; tests
// substitute a recording fake.
type requester interface {
	Request(c tg.Chattable) (*tg.APIResponse, error)
}

type TBot struct {
	Bot           *tg.BotAPI
	DB            Store
	Logger        *zap.SugaredLogger
	RetryAttempts int
	RetryDelay    time.Duration

	api      requester
	sessions *sessionStore
}

func NewTBot(tgtoken string, d Store, sessionTTL time.Duration, l *zap.SugaredLogger) (*TBot, error) {
	b, err := tg.NewBotAPI(tgtoken)
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize Telegram Bot")
	}

	b.Debug = false

	l.Infof("authorized on account %q (%q, %d)", b.Self.FirstName, b.Self.UserName, b.Self.ID)

	return &TBot{
		Bot:           b,
		DB:            d,
		Logger:        l,
		RetryAttempts: 3,
		RetryDelay:    1 * time.Second,
		api:           b,
		sessions:      newSessionStore(sessionTTL),
	}, nil
}

// Run processes incoming updates until ctx is done. Each message is
// handled in its own goroutine.
func (b *TBot) Run(ctx context.Context) {
	uCfg := tg.NewUpdate(0)
	uCfg.Timeout = 60

	updates := b.Bot.GetUpdatesChan(uCfg)

	for {
		select {
		case <-ctx.Done():
			b.Bot.StopReceivingUpdates()
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			if u.Message == nil {
				continue
			}

			if u.Message.IsCommand() {
				go b.HandleCommand(u.Message)
			} else {
				go b.HandleMessage(u.Message)
			}
		}
	}
}

func (b *TBot) HandleCommand(msg *tg.Message) {
	usr := msg.From.ID

	// Commands interrupt any ongoing flow without persisting anything.
	sess := b.sessions.get(usr)
	sess.mu.Lock()
	interrupted := sess.stage != stageIdle
	sess.clear()
	sess.mu.Unlock()

	switch msg.Command() {
	case "start":
		txt := fmt.Sprintf(txtWelcomeMessage, msg.From.FirstName)
		b.SendMessageWithKeyboard(usr, txt, &menuKeyboard)

	case "help":
		b.SendMessage(usr, txtHelpMessage)

	case "medicines":
		b.listMedicines(usr)

	case "cancel":
		if interrupted {
			b.SendMessage(usr, txtActionCancelled)
		} else {
			b.SendMessage(usr, txtChooseFromMenu)
		}

	default:
		b.SendMessage(usr, txtUnknownCommand)
	}
}

func (b *TBot) HandleMessage(msg *tg.Message) {
	usr := msg.From.ID
	sess := b.sessions.get(usr)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	switch sess.stage {
	case stageIdle:
		switch msg.Text {
		case btnAddMedicine:
			sess.stage = stageName
			b.SendMessage(usr, txtEnterMedicineName)

		case btnMyMedicines:
			b.listMedicines(usr)

		case btnDeleteMedicine:
			b.startDelete(usr, sess)

		default:
			b.SendMessage(usr, txtChooseFromMenu)
		}

	case stageName:
		sess.name = msg.Text
		sess.stage = stageDosage
		b.SendMessage(usr, txtEnterDosage)

	case stageDosage:
		sess.dosage = msg.Text
		sess.stage = stageTime
		b.SendMessage(usr, txtEnterTime)

	case stageTime:
		timeOfDay := strings.TrimSpace(msg.Text)
		if err := validateTime(timeOfDay); err != nil {
			b.SendMessage(usr, txtInvalidTime)
			return
		}

		sess.timeOfDay = timeOfDay
		sess.stage = stageFrequency
		b.SendMessage(usr, txtChooseFrequency)

	case stageFrequency:
		b.finishAdd(usr, sess, strings.TrimSpace(msg.Text))

	case stageDelete:
		b.finishDelete(usr, sess, strings.TrimSpace(msg.Text))
	}
}

// finishAdd maps the frequency choice and persists the collected
// medication. Unrecognized choices deliberately fall back to daily.
func (b *TBot) finishAdd(usr int64, sess *session, choice string) {
	frequency, ok := frequencyChoices[choice]
	if !ok {
		frequency = db.FreqDaily
	}

	err := b.DB.CreateMedication(usr, sess.name, sess.dosage, sess.timeOfDay, frequency)
	if err != nil {
		b.Logger.Errorw("failed adding medication", "user", usr, "err", err)
		sess.clear()
		b.SendMessage(usr, txtFailedAddMedicine)
		return
	}

	txt := fmt.Sprintf(fmtMedicineAdded, sess.name, sess.dosage, sess.timeOfDay, db.FrequencyLabel(frequency))
	sess.clear()
	b.SendMessage(usr, txt)
}

// startDelete lists the user's active reminders and remembers the shown
// 1-based numbering for the next message.
func (b *TBot) startDelete(usr int64, sess *session) {
	meds, err := b.DB.ListActive(usr)
	if err != nil {
		b.Logger.Errorw("failed listing medications", "user", usr, "err", err)
		b.SendMessage(usr, txtFailedListMedicine)
		return
	}

	if len(meds) == 0 {
		b.SendMessage(usr, txtNoMedicines)
		return
	}

	var sb strings.Builder
	sb.WriteString(txtChooseDeleteNumber)
	sess.deleteIDs = make([]int64, 0, len(meds))
	for i, med := range meds {
		sb.WriteString(fmt.Sprintf(fmtDeleteLine, i+1, med.Name, med.Dosage, med.Time))
		sess.deleteIDs = append(sess.deleteIDs, med.ID)
	}

	sess.stage = stageDelete
	b.SendMessage(usr, sb.String())
}

func (b *TBot) finishDelete(usr int64, sess *session, txt string) {
	choice, err := strconv.Atoi(txt)
	if err != nil {
		b.SendMessage(usr, txtEnterNumber)
		return
	}

	if choice < 1 || choice > len(sess.deleteIDs) {
		b.SendMessage(usr, txtInvalidNumber)
		return
	}

	id := sess.deleteIDs[choice-1]
	deleted, err := b.DB.DeleteMedication(id, usr)
	if err != nil {
		b.Logger.Errorw("failed deleting medication", "user", usr, "id", id, "err", err)
		sess.clear()
		b.SendMessage(usr, txtFailedDelMedicine)
		return
	}

	sess.clear()
	if !deleted {
		b.SendMessage(usr, txtInvalidNumber)
		return
	}

	b.SendMessage(usr, txtMedicineDeleted)
}

func (b *TBot) listMedicines(usr int64) {
	meds, err := b.DB.ListActive(usr)
	if err != nil {
		b.Logger.Errorw("failed listing medications", "user", usr, "err", err)
		b.SendMessage(usr, txtFailedListMedicine)
		return
	}

	if len(meds) == 0 {
		b.SendMessage(usr, txtNoMedicines)
		return
	}

	var sb strings.Builder
	sb.WriteString("Your medicines:\n\n")
	for i, med := range meds {
		sb.WriteString(fmt.Sprintf(fmtMedicineLine, i+1, med.Name, med.Dosage, med.Time, db.FrequencyLabel(med.Frequency)))
	}

	b.SendMessage(usr, sb.String())
}

// SendNotification delivers a scheduler notification to the user. It is
// passed to the scheduler as its send callback.
func (b *TBot) SendNotification(usr int64, txt string) error {
	return b.SendMessage(usr, txt)
}

func (b *TBot) SendMessage(usr int64, txt string) error {
	return b.SendMessageWithKeyboard(usr, txt, nil)
}

func (b *TBot) SendMessageWithKeyboard(usr int64, txt string, kb *tg.ReplyKeyboardMarkup) error {
	m := tg.NewMessage(usr, txt)
	if kb != nil {
		m.ReplyMarkup = *kb
	}

	var err error
	robustExecute(b.RetryAttempts, b.RetryDelay, func() bool {
		_, err = b.api.Request(m)
		return err == nil
	})
	if err != nil {
		b.Logger.Errorw("failed sending message", "user", usr, "err", err)
	}
	return err
}

// validateTime accepts exactly HH:MM with a valid 24-hour value, e.g.
// "09:00" but not "9:00", "25:00" or "12:60".
func validateTime(txt string) error {
	parts := strings.Split(txt, ":")
	if len(parts) != 2 || len(parts[0]) != 2 || len(parts[1]) != 2 {
		return errUnknownFormat
	}

	if _, err := validateInt(parts[0], 0, 23); err != nil {
		return err
	}
	if _, err := validateInt(parts[1], 0, 59); err != nil {
		return err
	}

	return nil
}

func validateInt(txt string, min int, max int) (int, error) {
	val, err := strconv.Atoi(txt)
	if err != nil {
		return 0, err
	}

	if val < min || val > max {
		return 0, errOutOfRange
	}
	return val, nil
}

func robustExecute(n int, d time.Duration, f func() bool) bool {
	for i := 0; i < n; i++ {
		if f() {
			return true
		}
		time.Sleep(d)
	}
	return false
}
