package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/token-wallet-ledger/internal/api_gateway/middleware"
	"github.com/token-wallet-ledger/internal/domain/account"
	"github.com/token-wallet-ledger/internal/domain/issuance"
	"github.com/token-wallet-ledger/internal/domain/ledger"
	"github.com/token-wallet-ledger/internal/domain/shared"
	"github.com/token-wallet-ledger/internal/wallet_engine/service"
)

func newTestRouter(engine *MockWalletEngine, archive *MockArchive) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := slog.Default()

	accounts := NewAccountHandler(logger, engine, archive)
	mutations := NewMutationHandler(logger, engine)
	issuances := NewIssuanceHandler(logger, engine)

	r := gin.New()
	r.Use(middleware.CorrelationID())
	g := r.Group("/accounts")
	g.POST("", accounts.Create)
	g.GET("/:id", accounts.GetByID)
	g.GET("/:id/balance", accounts.GetBalance)
	g.GET("/:id/entries", accounts.GetEntries)
	g.POST("/:id/freeze", accounts.Freeze)
	g.POST("/:id/suspend", accounts.Suspend)
	g.POST("/:id/reactivate", accounts.Reactivate)
	g.POST("/:id/credits", mutations.Credit)
	g.POST("/:id/debits", mutations.Debit)
	g.POST("/:id/holds", mutations.Hold)
	g.POST("/:id/releases", mutations.Release)
	g.POST("/:id/issuances", issuances.Issue)
	return r
}

func doRequest(r http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

type envelope struct {
	Data          json.RawMessage `json:"data"`
	Error         *ErrorInfo      `json:"error"`
	CorrelationID string          `json:"correlation_id"`
	Meta          *MetaInfo       `json:"meta"`
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env), rr.Body.String())
	return env
}

func testAccount(id uuid.UUID) *account.Account {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return &account.Account{ID: id, OwnerID: "owner-1", Status: shared.AccountStatusActive, CreatedAt: now, UpdatedAt: now}
}

func testMutationResult(id uuid.UUID, replayed bool) *service.MutationResult {
	before := shared.BalanceSnapshot{Available: decimal.NewFromInt(10), Pending: decimal.Zero}
	after := shared.BalanceSnapshot{Available: decimal.RequireFromString("35.5"), Pending: decimal.Zero}
	entry := ledger.NewEntry(id, shared.EntryTypeCredit, decimal.RequireFromString("25.5"), before, after, "key-1", time.Now().UTC())
	return &service.MutationResult{
		Entry: entry,
		Balance: service.BalanceView{
			AccountID: id,
			Available: after.Available,
			Pending:   after.Pending,
			Total:     after.Total(),
		},
		Replayed: replayed,
	}
}

func TestAccountHandler_Create(t *testing.T) {
	t.Run("creates account", func(t *testing.T) {
		engine, archive := &MockWalletEngine{}, &MockArchive{}
		id := uuid.New()
		engine.On("CreateAccount", mock.Anything, mock.MatchedBy(func(req service.CreateAccountRequest) bool {
			return req.OwnerID == "owner-1" && req.CorrelationID == "corr-9"
		})).Return(&service.AccountResult{
			Account: testAccount(id),
			Balance: service.BalanceView{AccountID: id, Available: decimal.Zero, Pending: decimal.Zero, Total: decimal.Zero},
		}, nil)

		rr := doRequest(newTestRouter(engine, archive), http.MethodPost, "/accounts", `{"owner_id":"owner-1"}`,
			map[string]string{middleware.CorrelationIDHeader: "corr-9"})

		assert.Equal(t, http.StatusCreated, rr.Code)
		env := decode(t, rr)
		assert.Equal(t, "corr-9", env.CorrelationID)
		var body AccountWithBalanceResponse
		require.NoError(t, json.Unmarshal(env.Data, &body))
		assert.Equal(t, id.String(), body.Account.ID)
		assert.Equal(t, "active", body.Account.Status)
		assert.Equal(t, "0", body.Balance.Available)
		engine.AssertExpectations(t)
	})

	t.Run("missing owner", func(t *testing.T) {
		engine := &MockWalletEngine{}
		rr := doRequest(newTestRouter(engine, &MockArchive{}), http.MethodPost, "/accounts", `{}`, nil)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "INVALID_REQUEST", decode(t, rr).Error.Code)
		engine.AssertNotCalled(t, "CreateAccount", mock.Anything, mock.Anything)
	})

	t.Run("duplicate owner", func(t *testing.T) {
		engine := &MockWalletEngine{}
		engine.On("CreateAccount", mock.Anything, mock.Anything).Return(nil, account.ErrOwnerAlreadyExists{OwnerID: "owner-1"})

		rr := doRequest(newTestRouter(engine, &MockArchive{}), http.MethodPost, "/accounts", `{"owner_id":"owner-1"}`, nil)

		assert.Equal(t, http.StatusConflict, rr.Code)
		assert.Equal(t, "ALREADY_EXISTS", decode(t, rr).Error.Code)
	})
}

func TestAccountHandler_Reads(t *testing.T) {
	id := uuid.New()

	t.Run("invalid id", func(t *testing.T) {
		rr := doRequest(newTestRouter(&MockWalletEngine{}, &MockArchive{}), http.MethodGet, "/accounts/not-a-uuid", "", nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("account not found", func(t *testing.T) {
		engine := &MockWalletEngine{}
		engine.On("GetAccount", mock.Anything, id).Return(nil, account.ErrAccountNotFound{AccountID: id})

		rr := doRequest(newTestRouter(engine, &MockArchive{}), http.MethodGet, "/accounts/"+id.String(), "", nil)
		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.Equal(t, "NOT_FOUND", decode(t, rr).Error.Code)
	})

	t.Run("balance", func(t *testing.T) {
		engine := &MockWalletEngine{}
		engine.On("GetBalance", mock.Anything, id).Return(&service.BalanceView{
			AccountID: id,
			Available: decimal.RequireFromString("70"),
			Pending:   decimal.RequireFromString("30"),
			Total:     decimal.RequireFromString("100"),
		}, nil)

		rr := doRequest(newTestRouter(engine, &MockArchive{}), http.MethodGet, "/accounts/"+id.String()+"/balance", "", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		var body BalanceResponse
		require.NoError(t, json.Unmarshal(decode(t, rr).Data, &body))
		assert.Equal(t, "70", body.Available)
		assert.Equal(t, "30", body.Pending)
		assert.Equal(t, "100", body.Total)
	})

	t.Run("entries are paginated from the archive", func(t *testing.T) {
		archive := &MockArchive{}
		entry := testMutationResult(id, false).Entry
		archive.On("CountByAccountID", mock.Anything, id).Return(int64(11), nil)
		archive.On("GetByAccountID", mock.Anything, id, 5, 5).Return([]*ledger.Entry{entry}, nil)

		rr := doRequest(newTestRouter(&MockWalletEngine{}, archive), http.MethodGet, "/accounts/"+id.String()+"/entries?page=2&per_page=5", "", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		env := decode(t, rr)
		require.NotNil(t, env.Meta)
		assert.Equal(t, 3, env.Meta.TotalPages)
		assert.Equal(t, 11, env.Meta.TotalItems)
		var entries []EntryResponse
		require.NoError(t, json.Unmarshal(env.Data, &entries))
		require.Len(t, entries, 1)
		assert.Equal(t, "25.5", entries[0].Amount)
		archive.AssertExpectations(t)
	})

	t.Run("entries with invalid pagination", func(t *testing.T) {
		rr := doRequest(newTestRouter(&MockWalletEngine{}, &MockArchive{}), http.MethodGet, "/accounts/"+id.String()+"/entries?per_page=500", "", nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("archive failure", func(t *testing.T) {
		archive := &MockArchive{}
		archive.On("CountByAccountID", mock.Anything, id).Return(int64(0), errors.New("mongo down"))

		rr := doRequest(newTestRouter(&MockWalletEngine{}, archive), http.MethodGet, "/accounts/"+id.String()+"/entries", "", nil)
		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.NotContains(t, rr.Body.String(), "mongo down")
	})
}

func TestAccountHandler_StatusChanges(t *testing.T) {
	id := uuid.New()

	t.Run("freeze", func(t *testing.T) {
		engine := &MockWalletEngine{}
		frozen := testAccount(id)
		frozen.Status = shared.AccountStatusFrozen
		engine.On("Freeze", mock.Anything, mock.MatchedBy(func(req service.StatusChangeRequest) bool {
			return req.AccountID == id && req.Reason == "fraud review" && req.Actor == "risk"
		})).Return(frozen, nil)

		rr := doRequest(newTestRouter(engine, &MockArchive{}), http.MethodPost, "/accounts/"+id.String()+"/freeze",
			`{"reason":"fraud review","actor":"risk"}`, nil)
		require.Equal(t, http.StatusOK, rr.Code)
		var body AccountResponse
		require.NoError(t, json.Unmarshal(decode(t, rr).Data, &body))
		assert.Equal(t, "frozen", body.Status)
	})

	t.Run("missing reason", func(t *testing.T) {
		rr := doRequest(newTestRouter(&MockWalletEngine{}, &MockArchive{}), http.MethodPost, "/accounts/"+id.String()+"/suspend", `{}`, nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("invalid transition", func(t *testing.T) {
		engine := &MockWalletEngine{}
		engine.On("Reactivate", mock.Anything, mock.Anything).Return(nil, account.ErrInvalidTransition{
			AccountID: id, From: shared.AccountStatusActive, To: shared.AccountStatusActive,
		})

		rr := doRequest(newTestRouter(engine, &MockArchive{}), http.MethodPost, "/accounts/"+id.String()+"/reactivate", `{"reason":"ok"}`, nil)
		assert.Equal(t, http.StatusConflict, rr.Code)
		assert.Equal(t, "INVALID_STATUS_TRANSITION", decode(t, rr).Error.Code)
	})
}

func TestMutationHandler(t *testing.T) {
	id := uuid.New()
	base := "/accounts/" + id.String()

	t.Run("header key takes precedence", func(t *testing.T) {
		engine := &MockWalletEngine{}
		engine.On("Credit", mock.Anything, mock.MatchedBy(func(req service.MutationRequest) bool {
			return req.AccountID == id &&
				req.Amount.Equal(decimal.RequireFromString("25.5")) &&
				req.IdempotencyKey == "header-key" &&
				req.EntryType == shared.EntryTypeIssuance
		})).Return(testMutationResult(id, false), nil)

		rr := doRequest(newTestRouter(engine, &MockArchive{}), http.MethodPost, base+"/credits",
			`{"amount":"25.5","entry_type":"issuance","idempotency_key":"body-key"}`,
			map[string]string{IdempotencyKeyHeader: "header-key"})

		require.Equal(t, http.StatusCreated, rr.Code)
		var body MutationResponse
		require.NoError(t, json.Unmarshal(decode(t, rr).Data, &body))
		assert.Equal(t, "35.5", body.Balance.Available)
		assert.False(t, body.Replayed)
		engine.AssertExpectations(t)
	})

	t.Run("body key and replay", func(t *testing.T) {
		engine := &MockWalletEngine{}
		engine.On("Hold", mock.Anything, mock.MatchedBy(func(req service.MutationRequest) bool {
			return req.IdempotencyKey == "body-key"
		})).Return(testMutationResult(id, true), nil)

		rr := doRequest(newTestRouter(engine, &MockArchive{}), http.MethodPost, base+"/holds", `{"amount":5,"idempotency_key":"body-key"}`, nil)

		require.Equal(t, http.StatusOK, rr.Code)
		var body MutationResponse
		require.NoError(t, json.Unmarshal(decode(t, rr).Data, &body))
		assert.True(t, body.Replayed)
	})

	t.Run("unknown release type is rejected before the engine", func(t *testing.T) {
		engine := &MockWalletEngine{}
		rr := doRequest(newTestRouter(engine, &MockArchive{}), http.MethodPost, base+"/releases", `{"amount":"1","release_type":"refund"}`, nil)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		engine.AssertNotCalled(t, "Release", mock.Anything, mock.Anything)
	})

	errorCases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"insufficient funds", account.ErrInsufficientFunds{AccountID: id, Available: decimal.NewFromInt(1), Requested: decimal.NewFromInt(5)}, http.StatusUnprocessableEntity, "INSUFFICIENT_FUNDS"},
		{"inactive wallet", account.ErrWalletInactive{AccountID: id, Status: shared.AccountStatusFrozen}, http.StatusConflict, "WALLET_INACTIVE"},
		{"invalid amount", fmt.Errorf("amount must be positive: %w", shared.ErrInvalidAmount), http.StatusBadRequest, "INVALID_AMOUNT"},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout, "TIMEOUT"},
		{"infrastructure", errors.New("connection refused"), http.StatusInternalServerError, "INTERNAL"},
	}
	for _, tc := range errorCases {
		t.Run(tc.name, func(t *testing.T) {
			engine := &MockWalletEngine{}
			engine.On("Debit", mock.Anything, mock.Anything).Return(nil, tc.err)

			rr := doRequest(newTestRouter(engine, &MockArchive{}), http.MethodPost, base+"/debits", `{"amount":"5"}`, nil)

			assert.Equal(t, tc.status, rr.Code)
			assert.Equal(t, tc.code, decode(t, rr).Error.Code)
			assert.NotContains(t, rr.Body.String(), "connection refused")
		})
	}
}

func TestIssuanceHandler_Issue(t *testing.T) {
	id := uuid.New()
	path := "/accounts/" + id.String() + "/issuances"
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	record := &issuance.Record{
		ID:                 uuid.New(),
		AccountID:          id,
		PlanID:             "pro",
		PlanPrice:          decimal.NewFromInt(100),
		ReferenceUnitPrice: decimal.RequireFromString("0.25"),
		BaseTokens:         decimal.NewFromInt(400),
		ProrationFactor:    decimal.NewFromInt(1),
		Bonus:              decimal.Zero,
		TokensIssued:       decimal.NewFromInt(400),
		EffectiveFrom:      from,
	}

	t.Run("explicit reference price", func(t *testing.T) {
		engine := &MockWalletEngine{}
		engine.On("IssueForPlan", mock.Anything, mock.MatchedBy(func(req service.IssuanceRequest) bool {
			return req.AccountID == id &&
				req.ReferencePrice.Equal(decimal.RequireFromString("0.25")) &&
				req.ProrationFactor.Equal(decimal.NewFromInt(1)) &&
				req.EffectiveFrom.Equal(from)
		})).Return(&service.IssuanceResult{Record: record}, nil)

		rr := doRequest(newTestRouter(engine, &MockArchive{}), http.MethodPost, path,
			`{"plan_id":"pro","plan_price":"100","reference_price":"0.25","effective_from":"2026-03-01T00:00:00Z"}`, nil)

		require.Equal(t, http.StatusCreated, rr.Code)
		var body IssuanceResponse
		require.NoError(t, json.Unmarshal(decode(t, rr).Data, &body))
		assert.Equal(t, "400", body.TokensIssued)
		assert.False(t, body.Duplicate)
	})

	t.Run("market price and duplicate", func(t *testing.T) {
		engine := &MockWalletEngine{}
		engine.On("IssueForPlanAtMarket", mock.Anything, mock.MatchedBy(func(req service.MarketIssuanceRequest) bool {
			return req.Symbol == "GEM" && req.ProrationFactor.Equal(decimal.RequireFromString("0.5"))
		})).Return(&service.IssuanceResult{Record: record, Duplicate: true}, nil)

		rr := doRequest(newTestRouter(engine, &MockArchive{}), http.MethodPost, path,
			`{"plan_id":"pro","plan_price":"100","symbol":"GEM","proration_factor":"0.5","effective_from":"2026-03-01T00:00:00Z"}`, nil)

		require.Equal(t, http.StatusOK, rr.Code)
		var body IssuanceResponse
		require.NoError(t, json.Unmarshal(decode(t, rr).Data, &body))
		assert.True(t, body.Duplicate)
	})

	t.Run("price unavailable", func(t *testing.T) {
		engine := &MockWalletEngine{}
		engine.On("IssueForPlanAtMarket", mock.Anything, mock.Anything).Return(nil, fmt.Errorf("no quote for GEM: %w", shared.ErrPriceUnavailable))

		rr := doRequest(newTestRouter(engine, &MockArchive{}), http.MethodPost, path,
			`{"plan_id":"pro","plan_price":"100","symbol":"GEM","effective_from":"2026-03-01T00:00:00Z"}`, nil)

		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
		assert.Equal(t, "PRICE_UNAVAILABLE", decode(t, rr).Error.Code)
	})

	t.Run("missing effective_from", func(t *testing.T) {
		rr := doRequest(newTestRouter(&MockWalletEngine{}, &MockArchive{}), http.MethodPost, path, `{"plan_id":"pro","plan_price":"100"}`, nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestStatusForCode(t *testing.T) {
	cases := map[shared.Kind]int{
		shared.ErrNotFound:                http.StatusNotFound,
		shared.ErrAlreadyExists:           http.StatusConflict,
		shared.ErrWalletInactive:          http.StatusConflict,
		shared.ErrInvalidStatusTransition: http.StatusConflict,
		shared.ErrInsufficientFunds:       http.StatusUnprocessableEntity,
		shared.ErrInsufficientPending:     http.StatusUnprocessableEntity,
		shared.ErrInvalidAmount:           http.StatusBadRequest,
		shared.ErrInvalidPrice:            http.StatusBadRequest,
		shared.ErrInvalidRequest:          http.StatusBadRequest,
		shared.ErrPriceUnavailable:        http.StatusServiceUnavailable,
	}
	for kind, status := range cases {
		assert.Equal(t, status, statusForCode(string(kind)), string(kind))
	}
	assert.Equal(t, http.StatusInternalServerError, statusForCode(shared.CodeInternal))
}
