package service_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/token-wallet-ledger/internal/domain/account"
	"github.com/token-wallet-ledger/internal/domain/issuance"
	"github.com/token-wallet-ledger/internal/domain/ledger"
	"github.com/token-wallet-ledger/internal/domain/outbox"
	"github.com/token-wallet-ledger/internal/domain/shared"
	"github.com/token-wallet-ledger/internal/domain/uow"
)

// memoryStore is a transactional in-memory store. Execute holds a single
// lock for the whole unit of work, works on a copy of the committed state and
// publishes the copy only when fn succeeds.
type memoryStore struct {
	mu        sync.Mutex
	state     *memoryState
	commits   int
	rollbacks int

	// beforeAppend runs inside Append with the committed state, letting a test
	// simulate a concurrent writer that committed first.
	beforeAppend func(committed *memoryState)
	// failOutbox makes every outbox insert fail.
	failOutbox error
}

type memoryState struct {
	accounts  map[uuid.UUID]account.Account
	balances  map[uuid.UUID]account.Balance
	entries   map[string]ledger.Entry
	order     []string // entry keys in append order
	issuances map[string]issuance.Record
	outbox    []outbox.Message
	outboxSeq int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		state: &memoryState{
			accounts:  map[uuid.UUID]account.Account{},
			balances:  map[uuid.UUID]account.Balance{},
			entries:   map[string]ledger.Entry{},
			issuances: map[string]issuance.Record{},
		},
	}
}

func (s *memoryState) clone() *memoryState {
	c := &memoryState{
		accounts:  make(map[uuid.UUID]account.Account, len(s.accounts)),
		balances:  make(map[uuid.UUID]account.Balance, len(s.balances)),
		entries:   make(map[string]ledger.Entry, len(s.entries)),
		order:     append([]string(nil), s.order...),
		issuances: make(map[string]issuance.Record, len(s.issuances)),
		outbox:    append([]outbox.Message(nil), s.outbox...),
		outboxSeq: s.outboxSeq,
	}
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	for k, v := range s.balances {
		c.balances[k] = v
	}
	for k, v := range s.entries {
		c.entries[k] = v
	}
	for k, v := range s.issuances {
		c.issuances[k] = v
	}
	return c
}

func (s *memoryStore) Execute(ctx context.Context, fn func(ctx context.Context, repos uow.Repositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memoryTx{store: s, state: s.state.clone()}
	committed := false
	defer func() {
		if !committed {
			s.rollbacks++
		}
	}()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.state = tx.state
	s.commits++
	committed = true
	return nil
}

// Read helpers for assertions

func (s *memoryStore) balance(id uuid.UUID) account.Balance {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.balances[id]
}

func (s *memoryStore) account(id uuid.UUID) account.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.accounts[id]
}

func (s *memoryStore) entriesFor(id uuid.UUID) []ledger.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ledger.Entry
	for _, key := range s.state.order {
		if e := s.state.entries[key]; e.AccountID == id {
			out = append(out, e)
		}
	}
	return out
}

func (s *memoryStore) outboxMessages() []outbox.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]outbox.Message(nil), s.state.outbox...)
}

func (s *memoryStore) issuanceCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.issuances)
}

type memoryTx struct {
	store *memoryStore
	state *memoryState
}

func (t *memoryTx) Accounts() account.Repository   { return memoryAccounts{t} }
func (t *memoryTx) Ledger() ledger.Repository      { return memoryLedger{t} }
func (t *memoryTx) Issuances() issuance.Repository { return memoryIssuances{t} }
func (t *memoryTx) Outbox() outbox.Repository      { return memoryOutbox{t} }

type memoryAccounts struct{ tx *memoryTx }

func (r memoryAccounts) Create(_ context.Context, acc *account.Account) error {
	for _, existing := range r.tx.state.accounts {
		if existing.OwnerID == acc.OwnerID {
			return account.ErrOwnerAlreadyExists{OwnerID: acc.OwnerID}
		}
	}
	r.tx.state.accounts[acc.ID] = *acc
	return nil
}

func (r memoryAccounts) CreateBalance(_ context.Context, balance *account.Balance) error {
	r.tx.state.balances[balance.AccountID] = *balance
	return nil
}

func (r memoryAccounts) GetByID(_ context.Context, id uuid.UUID) (*account.Account, error) {
	acc, ok := r.tx.state.accounts[id]
	if !ok {
		return nil, account.ErrAccountNotFound{AccountID: id}
	}
	return &acc, nil
}

func (r memoryAccounts) GetByOwnerID(_ context.Context, ownerID string) (*account.Account, error) {
	for _, acc := range r.tx.state.accounts {
		if acc.OwnerID == ownerID {
			found := acc
			return &found, nil
		}
	}
	return nil, nil
}

func (r memoryAccounts) GetBalance(_ context.Context, accountID uuid.UUID) (*account.Balance, error) {
	balance, ok := r.tx.state.balances[accountID]
	if !ok {
		return nil, account.ErrAccountNotFound{AccountID: accountID}
	}
	return &balance, nil
}

func (r memoryAccounts) LockForUpdate(ctx context.Context, accountID uuid.UUID) (*account.Account, *account.Balance, error) {
	acc, err := r.GetByID(ctx, accountID)
	if err != nil {
		return nil, nil, err
	}
	balance, err := r.GetBalance(ctx, accountID)
	if err != nil {
		return nil, nil, err
	}
	return acc, balance, nil
}

func (r memoryAccounts) UpdateBalance(_ context.Context, balance *account.Balance, expectedVersion int64) error {
	current, ok := r.tx.state.balances[balance.AccountID]
	if !ok || current.Version != expectedVersion {
		return account.ErrConcurrentModification{AccountID: balance.AccountID}
	}
	if balance.Available.IsNegative() || balance.Pending.IsNegative() {
		return errors.New("check constraint violated: negative balance")
	}
	r.tx.state.balances[balance.AccountID] = *balance
	return nil
}

func (r memoryAccounts) UpdateActivity(_ context.Context, acc *account.Account) error {
	current := r.tx.state.accounts[acc.ID]
	current.Metadata.TotalTransactions = acc.Metadata.TotalTransactions
	current.Metadata.LastActivity = acc.Metadata.LastActivity
	current.UpdatedAt = acc.UpdatedAt
	r.tx.state.accounts[acc.ID] = current
	return nil
}

func (r memoryAccounts) UpdateStatus(_ context.Context, acc *account.Account) error {
	r.tx.state.accounts[acc.ID] = *acc
	return nil
}

type memoryLedger struct{ tx *memoryTx }

func (r memoryLedger) Append(_ context.Context, entry *ledger.Entry) error {
	if hook := r.tx.store.beforeAppend; hook != nil {
		r.tx.store.beforeAppend = nil
		hook(r.tx.store.state)
	}
	if _, taken := r.tx.store.state.entries[entry.IdempotencyKey]; taken {
		return ledger.ErrDuplicateIdempotencyKey{IdempotencyKey: entry.IdempotencyKey}
	}
	if _, taken := r.tx.state.entries[entry.IdempotencyKey]; taken {
		return ledger.ErrDuplicateIdempotencyKey{IdempotencyKey: entry.IdempotencyKey}
	}
	r.tx.state.entries[entry.IdempotencyKey] = *entry
	r.tx.state.order = append(r.tx.state.order, entry.IdempotencyKey)
	return nil
}

func (r memoryLedger) GetByID(_ context.Context, id uuid.UUID) (*ledger.Entry, error) {
	for _, e := range r.tx.state.entries {
		if e.ID == id {
			found := e
			return &found, nil
		}
	}
	return nil, ledger.ErrEntryNotFound{Key: id.String()}
}

func (r memoryLedger) GetByIdempotencyKey(_ context.Context, key string) (*ledger.Entry, error) {
	e, ok := r.tx.state.entries[key]
	if !ok {
		return nil, ledger.ErrEntryNotFound{Key: key}
	}
	return &e, nil
}

type memoryIssuances struct{ tx *memoryTx }

func periodKey(accountID uuid.UUID, planID string, effectiveFrom time.Time) string {
	return accountID.String() + "|" + planID + "|" + effectiveFrom.UTC().Format(time.RFC3339Nano)
}

func (r memoryIssuances) Create(_ context.Context, record *issuance.Record) error {
	key := periodKey(record.AccountID, record.PlanID, record.EffectiveFrom)
	if _, taken := r.tx.state.issuances[key]; taken {
		return issuance.ErrDuplicateIssuance{AccountID: record.AccountID, PlanID: record.PlanID, EffectiveFrom: record.EffectiveFrom}
	}
	r.tx.state.issuances[key] = *record
	return nil
}

func (r memoryIssuances) GetByPeriod(_ context.Context, accountID uuid.UUID, planID string, effectiveFrom time.Time) (*issuance.Record, error) {
	record, ok := r.tx.state.issuances[periodKey(accountID, planID, effectiveFrom)]
	if !ok {
		return nil, issuance.ErrRecordNotFound{AccountID: accountID, PlanID: planID, EffectiveFrom: effectiveFrom}
	}
	return &record, nil
}

func (r memoryIssuances) ListByAccountID(_ context.Context, accountID uuid.UUID, limit, offset int) ([]*issuance.Record, error) {
	var out []*issuance.Record
	for _, record := range r.tx.state.issuances {
		if record.AccountID == accountID {
			rec := record
			out = append(out, &rec)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

type memoryOutbox struct{ tx *memoryTx }

func (r memoryOutbox) Create(_ context.Context, message *outbox.Message) error {
	if err := r.tx.store.failOutbox; err != nil {
		return err
	}
	r.tx.state.outboxSeq++
	message.ID = r.tx.state.outboxSeq
	r.tx.state.outbox = append(r.tx.state.outbox, *message)
	return nil
}

func (r memoryOutbox) GetPending(_ context.Context, limit int) ([]*outbox.Message, error) {
	var out []*outbox.Message
	for i := range r.tx.state.outbox {
		if r.tx.state.outbox[i].Status == shared.OutboxStatusPending && len(out) < limit {
			m := r.tx.state.outbox[i]
			out = append(out, &m)
		}
	}
	return out, nil
}

func (r memoryOutbox) UpdateStatus(_ context.Context, id int64, status shared.OutboxStatus) error {
	for i := range r.tx.state.outbox {
		if r.tx.state.outbox[i].ID == id {
			r.tx.state.outbox[i].Status = status
			return nil
		}
	}
	return outbox.ErrMessageNotFound{ID: id}
}

func (r memoryOutbox) IncrementAttempts(_ context.Context, id int64) error {
	for i := range r.tx.state.outbox {
		if r.tx.state.outbox[i].ID == id {
			r.tx.state.outbox[i].Attempts++
			return nil
		}
	}
	return outbox.ErrMessageNotFound{ID: id}
}
