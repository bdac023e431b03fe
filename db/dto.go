package db

import "time"

// Recurrence patterns of a medication reminder.
const (
	FreqDaily    = "daily"
	FreqOnce     = "once"
	FreqWeekdays = "weekdays"
	FreqWeekends = "weekends"
)

var frequencyLabels = map[string]string{
	FreqDaily:    "every day",
	FreqOnce:     "only today",
	FreqWeekdays: "on weekdays",
	FreqWeekends: "on weekends",
}

// FrequencyLabel returns a human-readable label for the given frequency.
// Unknown values fall back to the daily label.
func FrequencyLabel(freq string) string {
	label, ok := frequencyLabels[freq]
	if !ok {
		return frequencyLabels[FreqDaily]
	}
	return label
}

type Medication struct {
	ID        int64
	UserID    int64     // owner; scopes all queries
	Name      string    // medicine name
	Dosage    string    // free-form dosage text
	Time      string    // time of intake as HH:MM, 24-hour
	Frequency string    // one of the Freq* constants
	Active    bool      // false once deleted or after a one-shot firing
	CreatedAt time.Time // set by the store on insert
}
