package shared

import "github.com/shopspring/decimal"

// EntryType defines the kind of balance-affecting event recorded in the ledger
type EntryType string

const (
	EntryTypeCredit   EntryType = "credit"
	EntryTypeDebit    EntryType = "debit"
	EntryTypeHold     EntryType = "hold"
	EntryTypeRelease  EntryType = "release"
	EntryTypeIssuance EntryType = "issuance"
)

// ReleaseType defines what happens to held funds when they leave pending
type ReleaseType string

const (
	// ReleaseTypeRestore returns the held funds to available.
	ReleaseTypeRestore ReleaseType = "restore"
	// ReleaseTypeConsume finalizes the hold as a completed debit.
	ReleaseTypeConsume ReleaseType = "consume"
	// ReleaseTypeForfeit finalizes the hold as a fee or forfeiture.
	ReleaseTypeForfeit ReleaseType = "forfeit"
)

// Valid reports whether r is a known release type
func (r ReleaseType) Valid() bool {
	switch r {
	case ReleaseTypeRestore, ReleaseTypeConsume, ReleaseTypeForfeit:
		return true
	}
	return false
}

// AccountStatus defines the lifecycle states of a wallet account
type AccountStatus string

const (
	AccountStatusActive    AccountStatus = "active"
	AccountStatusFrozen    AccountStatus = "frozen"
	AccountStatusSuspended AccountStatus = "suspended"
)

// OutboxStatus defines message publishing states
type OutboxStatus string

const (
	OutboxStatusPending         OutboxStatus = "PENDING"
	OutboxStatusProcessed       OutboxStatus = "PROCESSED"
	OutboxStatusFailedToPublish OutboxStatus = "FAILED_TO_PUBLISH"
)

// EventType names the events written to the outbox
type EventType string

const (
	EventTypeLedgerEntryAppended  EventType = "ledger.entry_appended"
	EventTypeAccountStatusChanged EventType = "account.status_changed"
)

// BalanceSnapshot is the available/pending pair captured around a mutation
type BalanceSnapshot struct {
	Available decimal.Decimal `json:"available"`
	Pending   decimal.Decimal `json:"pending"`
}

// Total returns available plus pending
func (s BalanceSnapshot) Total() decimal.Decimal {
	return s.Available.Add(s.Pending)
}

// Money columns are NUMERIC(38,18): 18 fractional and 20 integer digits.
const (
	NumericScale         = 18
	NumericIntegerDigits = 20
)

var numericLimit = decimal.New(1, NumericIntegerDigits)

// FitsNumeric reports whether d is stored exactly by a money column
func FitsNumeric(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(NumericScale)) && d.Abs().LessThan(numericLimit)
}
