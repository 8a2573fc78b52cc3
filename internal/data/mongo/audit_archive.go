package mongo

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/token-wallet-ledger/internal/domain/ledger"
	"github.com/token-wallet-ledger/internal/domain/shared"
)

// DefaultAuditCollection holds the archived ledger entries
const DefaultAuditCollection = "ledger_audit"

// AuditArchive implements ledger.Archive on MongoDB. Postgres stays the source
// of truth; the archive is a read copy fed by the outbox.
type AuditArchive struct {
	collection *mongo.Collection
	logger     *slog.Logger
}

var _ ledger.Archive = (*AuditArchive)(nil)

func NewAuditArchive(logger *slog.Logger, db *mongo.Database, collection string) *AuditArchive {
	if collection == "" {
		collection = DefaultAuditCollection
	}
	return &AuditArchive{
		collection: db.Collection(collection),
		logger:     logger,
	}
}

// EnsureIndexes creates the history and idempotency key indexes
func (a *AuditArchive) EnsureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "account_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "idempotency_key", Value: 1}}, Options: options.Index().SetUnique(true)},
	}
	if _, err := a.collection.Indexes().CreateMany(ctx, models); err != nil {
		a.logger.Error("Failed to create audit archive indexes", "collection", a.collection.Name(), "error", err)
		return fmt.Errorf("failed to create audit archive indexes: %w", err)
	}
	return nil
}

// Store upserts entry by id, so a redelivered outbox message is a no-op
func (a *AuditArchive) Store(ctx context.Context, entry *ledger.Entry) error {
	doc, err := toAuditModel(entry, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to convert ledger entry %s: %w", entry.ID, err)
	}

	filter := bson.M{"_id": doc.ID}
	update := bson.M{"$setOnInsert": doc}
	if _, err := a.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true)); err != nil {
		a.logger.Error("Failed to archive ledger entry",
			"entry_id", entry.ID.String(),
			"account_id", entry.AccountID.String(),
			"error", err)
		return fmt.Errorf("failed to archive ledger entry: %w", err)
	}

	return nil
}

// GetByAccountID retrieves paginated archived entries for an account, newest first
func (a *AuditArchive) GetByAccountID(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*ledger.Entry, error) {
	filter := bson.M{"account_id": accountID.String()}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := a.collection.Find(ctx, filter, opts)
	if err != nil {
		a.logger.Error("Failed to get archived ledger entries",
			"account_id", accountID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to get archived ledger entries: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []auditModel
	if err := cursor.All(ctx, &docs); err != nil {
		a.logger.Error("Failed to decode archived ledger entries",
			"account_id", accountID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to decode archived ledger entries: %w", err)
	}

	entries := make([]*ledger.Entry, 0, len(docs))
	for i := range docs {
		entry, err := fromAuditModel(&docs[i])
		if err != nil {
			return nil, fmt.Errorf("failed to convert archived entry %s: %w", docs[i].ID, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (a *AuditArchive) CountByAccountID(ctx context.Context, accountID uuid.UUID) (int64, error) {
	count, err := a.collection.CountDocuments(ctx, bson.M{"account_id": accountID.String()})
	if err != nil {
		a.logger.Error("Failed to count archived ledger entries",
			"account_id", accountID.String(),
			"error", err)
		return 0, fmt.Errorf("failed to count archived ledger entries: %w", err)
	}
	return count, nil
}

// auditModel is the BSON shape of an archived entry. Amounts are Decimal128 so
// the archive can be aggregated in Mongo without losing precision.
type auditModel struct {
	ID              string               `bson:"_id"`
	AccountID       string               `bson:"account_id"`
	Type            string               `bson:"type"`
	Subtype         string               `bson:"subtype,omitempty"`
	Amount          primitive.Decimal128 `bson:"amount"`
	Reference       string               `bson:"reference,omitempty"`
	Meta            map[string]any       `bson:"meta,omitempty"`
	AvailableBefore primitive.Decimal128 `bson:"available_before"`
	PendingBefore   primitive.Decimal128 `bson:"pending_before"`
	AvailableAfter  primitive.Decimal128 `bson:"available_after"`
	PendingAfter    primitive.Decimal128 `bson:"pending_after"`
	IdempotencyKey  string               `bson:"idempotency_key"`
	ProcessedBy     string               `bson:"processed_by,omitempty"`
	CreatedAt       time.Time            `bson:"created_at"`
	ArchivedAt      time.Time            `bson:"archived_at"`
}

func toAuditModel(e *ledger.Entry, archivedAt time.Time) (*auditModel, error) {
	values := []decimal.Decimal{
		e.Amount,
		e.BalanceBefore.Available, e.BalanceBefore.Pending,
		e.BalanceAfter.Available, e.BalanceAfter.Pending,
	}
	converted := make([]primitive.Decimal128, len(values))
	for i, v := range values {
		d, err := primitive.ParseDecimal128(v.String())
		if err != nil {
			return nil, fmt.Errorf("amount %s does not fit decimal128: %w", v, err)
		}
		converted[i] = d
	}

	return &auditModel{
		ID:              e.ID.String(),
		AccountID:       e.AccountID.String(),
		Type:            string(e.Type),
		Subtype:         e.Subtype,
		Amount:          converted[0],
		Reference:       e.Reference,
		Meta:            e.Meta,
		AvailableBefore: converted[1],
		PendingBefore:   converted[2],
		AvailableAfter:  converted[3],
		PendingAfter:    converted[4],
		IdempotencyKey:  e.IdempotencyKey,
		ProcessedBy:     e.ProcessedBy,
		CreatedAt:       e.CreatedAt,
		ArchivedAt:      archivedAt,
	}, nil
}

func fromAuditModel(m *auditModel) (*ledger.Entry, error) {
	id, err := uuid.Parse(m.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid entry id: %w", err)
	}
	accountID, err := uuid.Parse(m.AccountID)
	if err != nil {
		return nil, fmt.Errorf("invalid account id: %w", err)
	}

	raw := []primitive.Decimal128{m.Amount, m.AvailableBefore, m.PendingBefore, m.AvailableAfter, m.PendingAfter}
	values := make([]decimal.Decimal, len(raw))
	for i, r := range raw {
		v, err := decimal.NewFromString(r.String())
		if err != nil {
			return nil, fmt.Errorf("invalid decimal %s: %w", r.String(), err)
		}
		values[i] = v
	}

	return &ledger.Entry{
		ID:             id,
		AccountID:      accountID,
		Type:           shared.EntryType(m.Type),
		Subtype:        m.Subtype,
		Amount:         values[0],
		Reference:      m.Reference,
		Meta:           m.Meta,
		BalanceBefore:  shared.BalanceSnapshot{Available: values[1], Pending: values[2]},
		BalanceAfter:   shared.BalanceSnapshot{Available: values[3], Pending: values[4]},
		IdempotencyKey: m.IdempotencyKey,
		ProcessedBy:    m.ProcessedBy,
		CreatedAt:      m.CreatedAt.UTC(),
	}, nil
}
