package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/token-wallet-ledger/internal/domain/account"
	"github.com/token-wallet-ledger/internal/domain/ledger"
	"github.com/token-wallet-ledger/internal/domain/shared"
)

// Message stores a committed wallet event for reliable publishing
type Message struct {
	ID            int64               `json:"id"`
	AggregateID   uuid.UUID           `json:"aggregate_id"` // Entry ID or account ID, by event type
	AccountID     uuid.UUID           `json:"account_id"`
	EventType     shared.EventType    `json:"event_type"`
	Payload       json.RawMessage     `json:"payload"`
	Status        shared.OutboxStatus `json:"status"`
	Attempts      int                 `json:"attempts"`
	CreatedAt     time.Time           `json:"created_at"`
	LastAttemptAt *time.Time          `json:"last_attempt_at,omitempty"`
}

// StatusChange is the payload of an account.status_changed event
type StatusChange struct {
	AccountID uuid.UUID            `json:"account_id"`
	From      shared.AccountStatus `json:"from"`
	To        shared.AccountStatus `json:"to"`
	Reason    string               `json:"reason"`
	Actor     string               `json:"actor"`
	ChangedAt time.Time            `json:"changed_at"`
}

// NewEntryMessage wraps an appended ledger entry
func NewEntryMessage(entry *ledger.Entry) (*Message, error) {
	payload, err := json.Marshal(entry)
	if err != nil {
		return nil, err
	}

	return &Message{
		AggregateID: entry.ID,
		AccountID:   entry.AccountID,
		EventType:   shared.EventTypeLedgerEntryAppended,
		Payload:     payload,
		Status:      shared.OutboxStatusPending,
		Attempts:    0,
		CreatedAt:   time.Now(),
	}, nil
}

// NewStatusChangeMessage wraps a lifecycle transition of acc away from previous
func NewStatusChangeMessage(acc *account.Account, previous shared.AccountStatus) (*Message, error) {
	change := StatusChange{
		AccountID: acc.ID,
		From:      previous,
		To:        acc.Status,
		Reason:    acc.Metadata.StatusReason,
		Actor:     acc.Metadata.StatusChangedBy,
		ChangedAt: acc.UpdatedAt,
	}
	payload, err := json.Marshal(change)
	if err != nil {
		return nil, err
	}

	return &Message{
		AggregateID: acc.ID,
		AccountID:   acc.ID,
		EventType:   shared.EventTypeAccountStatusChanged,
		Payload:     payload,
		Status:      shared.OutboxStatusPending,
		Attempts:    0,
		CreatedAt:   time.Now(),
	}, nil
}

func (m *Message) IncrementAttempts() {
	m.Attempts++
	now := time.Now()
	m.LastAttemptAt = &now
}

func (m *Message) MarkAsProcessed() {
	m.Status = shared.OutboxStatusProcessed
	now := time.Now()
	m.LastAttemptAt = &now
}

func (m *Message) MarkAsFailed() {
	m.Status = shared.OutboxStatusFailedToPublish
	now := time.Now()
	m.LastAttemptAt = &now
}

// IsLedgerEntry reports whether the payload is a ledger entry
func (m *Message) IsLedgerEntry() bool {
	return m.EventType == shared.EventTypeLedgerEntryAppended
}

// GetLedgerEntry extracts the ledger entry from the payload
func (m *Message) GetLedgerEntry() (*ledger.Entry, error) {
	var entry ledger.Entry
	if err := json.Unmarshal(m.Payload, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}
