package shared

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CommandOperation names the engine operation a WalletCommand invokes
type CommandOperation string

const (
	CommandCreateAccount CommandOperation = "create_account"
	CommandCredit        CommandOperation = "credit"
	CommandDebit         CommandOperation = "debit"
	CommandHold          CommandOperation = "hold"
	CommandRelease       CommandOperation = "release"
	CommandFreeze        CommandOperation = "freeze"
	CommandSuspend       CommandOperation = "suspend"
	CommandReactivate    CommandOperation = "reactivate"
	CommandIssueForPlan  CommandOperation = "issue_for_plan"
)

// WalletCommand defines a Kafka message published by batch jobs
type WalletCommand struct {
	CommandID      uuid.UUID        `json:"command_id"`
	Operation      CommandOperation `json:"operation"`
	AccountID      uuid.UUID        `json:"account_id,omitempty"`
	OwnerID        string           `json:"owner_id,omitempty"`
	Amount         decimal.Decimal  `json:"amount"`
	EntryType      EntryType        `json:"entry_type,omitempty"`
	ReleaseType    ReleaseType      `json:"release_type,omitempty"`
	Reference      string           `json:"reference,omitempty"`
	Reason         string           `json:"reason,omitempty"`
	Meta           map[string]any   `json:"meta,omitempty"`
	IdempotencyKey string           `json:"idempotency_key,omitempty"`
	Actor          string           `json:"actor,omitempty"`
	Issuance       *IssuanceCommand `json:"issuance,omitempty"`
	CorrelationID  string           `json:"correlation_id,omitempty"`
	Timestamp      time.Time        `json:"timestamp"`
}

// IssuanceCommand carries the plan parameters of an issue_for_plan command.
// Symbol is used when ReferencePrice is not set. A nil ProrationFactor means a full period.
type IssuanceCommand struct {
	PlanID          string           `json:"plan_id"`
	PlanPrice       decimal.Decimal  `json:"plan_price"`
	ReferencePrice  *decimal.Decimal `json:"reference_price,omitempty"`
	Symbol          string           `json:"symbol,omitempty"`
	EffectiveFrom   time.Time        `json:"effective_from"`
	Bonus           decimal.Decimal  `json:"bonus"`
	ProrationFactor *decimal.Decimal `json:"proration_factor,omitempty"`
}
