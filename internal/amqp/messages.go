package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/ingest"
)

// MessageArrived announces a new notification for the inbox. The worker
// stores it and triggers a scan.
type MessageArrived struct {
	ID        string    `json:"id"`
	Address   string    `json:"address,omitempty"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
}

func NewMessageArrived(msg ingest.Message) *MessageArrived {
	return &MessageArrived{
		ID:        msg.ID,
		Address:   msg.Address,
		Body:      msg.Body,
		Timestamp: msg.Timestamp,
	}
}

// Message converts the event back into a feed message.
func (m *MessageArrived) Message() ingest.Message {
	return ingest.Message{
		ID:        m.ID,
		Address:   m.Address,
		Body:      m.Body,
		Timestamp: m.Timestamp,
	}
}

// ToJSON converts the message to JSON bytes
func (m *MessageArrived) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// MessageArrivedFromJSON decodes and checks an arrival event.
func MessageArrivedFromJSON(data []byte) (*MessageArrived, error) {
	var msg MessageArrived
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID == "" {
		return nil, fmt.Errorf("message arrived event without id")
	}
	if msg.Timestamp.IsZero() {
		return nil, fmt.Errorf("message arrived event %s without timestamp", msg.ID)
	}
	return &msg, nil
}

// CandidatePresented is published for every candidate awaiting review.
type CandidatePresented struct {
	ID          string    `json:"id"`
	Type        core.Kind `json:"type"`
	Amount      string    `json:"amount"`
	Date        string    `json:"date"`
	Merchant    string    `json:"merchant,omitempty"`
	RawText     string    `json:"rawText"`
	ReceivedAt  time.Time `json:"receivedAt"`
	PresentedAt time.Time `json:"presentedAt"`
}

func NewCandidatePresented(c core.CandidateTransaction) *CandidatePresented {
	return &CandidatePresented{
		ID:          c.ID,
		Type:        c.Kind,
		Amount:      c.Amount.StringFixed(2),
		Date:        c.Date.String(),
		Merchant:    c.Merchant,
		RawText:     c.RawText,
		ReceivedAt:  c.ReceivedAt,
		PresentedAt: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *CandidatePresented) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func CandidatePresentedFromJSON(data []byte) (*CandidatePresented, error) {
	var msg CandidatePresented
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
