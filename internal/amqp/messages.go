package amqp

import (
	"encoding/json"
	"time"

	"ledger/internal/notify"
)

// NoticeMessage is a user notice as published to the broker.
type NoticeMessage struct {
	Level     notify.Level `json:"level"`
	Kind      notify.Kind  `json:"kind"`
	Message   string       `json:"message"`
	Status    int          `json:"status,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// NewNoticeMessage wraps n. A zero notice time is replaced by now.
func NewNoticeMessage(n notify.Notice) *NoticeMessage {
	ts := n.At
	if ts.IsZero() {
		ts = time.Now()
	}
	return &NoticeMessage{
		Level:     n.Level,
		Kind:      n.Kind,
		Message:   n.Message,
		Status:    n.Status,
		Timestamp: ts,
	}
}

// Notice converts the message back.
func (m *NoticeMessage) Notice() notify.Notice {
	return notify.Notice{
		Level:   m.Level,
		Kind:    m.Kind,
		Message: m.Message,
		Status:  m.Status,
		At:      m.Timestamp,
	}
}

func (m *NoticeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func NoticeMessageFromJSON(data []byte) (*NoticeMessage, error) {
	var msg NoticeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
