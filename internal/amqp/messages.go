package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// SyncOp tells the ledger worker what happened to a transaction.
type SyncOp string

const (
	OpUpsert SyncOp = "upsert"
	OpDelete SyncOp = "delete"
)

// TransactionSyncMessage is a lightweight pointer to a changed transaction.
// The worker reads the current row from the database, so only the id travels.
type TransactionSyncMessage struct {
	ID        string    `json:"id"`
	Op        SyncOp    `json:"op"`
	Timestamp time.Time `json:"timestamp"`
}

// NewTransactionSyncMessage creates a sync message stamped with the current time.
func NewTransactionSyncMessage(id string, op SyncOp) *TransactionSyncMessage {
	return &TransactionSyncMessage{ID: id, Op: op, Timestamp: time.Now()}
}

func (m *TransactionSyncMessage) Validate() error {
	if m.ID == "" {
		return errors.New("missing transaction id")
	}
	switch m.Op {
	case OpUpsert, OpDelete:
		return nil
	default:
		return fmt.Errorf("unknown sync op %q", m.Op)
	}
}

// ToJSON converts the message to JSON bytes
func (m *TransactionSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionSyncMessageFromJSON decodes and validates a sync message.
func TransactionSyncMessageFromJSON(data []byte) (*TransactionSyncMessage, error) {
	var msg TransactionSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}

// AgendaReminderMessage lists what an owner has on their agenda for a day.
type AgendaReminderMessage struct {
	OwnerID   string    `json:"owner_id"`
	Date      string    `json:"date"`
	Titles    []string  `json:"titles"`
	Timestamp time.Time `json:"timestamp"`
}

// ToJSON converts the message to JSON bytes
func (m *AgendaReminderMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// AgendaReminderMessageFromJSON decodes a reminder message.
func AgendaReminderMessageFromJSON(data []byte) (*AgendaReminderMessage, error) {
	var msg AgendaReminderMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.OwnerID == "" {
		return nil, errors.New("missing owner id")
	}
	return &msg, nil
}
