package amqp

import (
	"encoding/json"
	"time"

	"andvaranaut/internal/core"
)

// CalendarSavedMessage tells the stats worker that a user's calendar window
// changed. It carries only the user id and month, the worker fetches the day
// records from the database.
type CalendarSavedMessage struct {
	UserID    int64         `json:"userId"`
	Month     core.MonthKey `json:"month"`
	Timestamp time.Time     `json:"timestamp"`
}

// NewCalendarSavedMessage creates a saved-calendar notification.
func NewCalendarSavedMessage(userID int64, month core.MonthKey) *CalendarSavedMessage {
	return &CalendarSavedMessage{
		UserID:    userID,
		Month:     month,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *CalendarSavedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// FromJSON creates a message from JSON bytes
func CalendarSavedMessageFromJSON(data []byte) (*CalendarSavedMessage, error) {
	var msg CalendarSavedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
