package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/token-wallet-ledger/internal/domain/account"
	"github.com/token-wallet-ledger/internal/domain/shared"
)

// MockCommandProcessor for testing
type MockCommandProcessor struct {
	mock.Mock
}

func (m *MockCommandProcessor) ProcessCommand(ctx context.Context, cmd *shared.WalletCommand) error {
	args := m.Called(ctx, cmd)
	return args.Error(0)
}

// MockDeadLetterPublisher for testing
type MockDeadLetterPublisher struct {
	mock.Mock
}

func (m *MockDeadLetterPublisher) PublishToDLQ(ctx context.Context, key string, value []byte, reason string, code string) error {
	args := m.Called(ctx, key, value, reason, code)
	return args.Error(0)
}

func (m *MockDeadLetterPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}

func TestCommandHandler_HandleMessage(t *testing.T) {
	logger := slog.Default()

	cmd := shared.WalletCommand{
		CommandID:     uuid.New(),
		Operation:     shared.CommandDebit,
		AccountID:     uuid.New(),
		Amount:        decimal.NewFromInt(25),
		CorrelationID: "corr-1",
		Timestamp:     time.Now().UTC(),
	}
	validJSON, err := json.Marshal(cmd)
	require.NoError(t, err)

	insufficient := account.ErrInsufficientFunds{
		AccountID: cmd.AccountID,
		Available: decimal.NewFromInt(5),
		Requested: decimal.NewFromInt(25),
	}

	tests := []struct {
		name          string
		value         []byte
		setupMocks    func(p *MockCommandProcessor, d *MockDeadLetterPublisher)
		expectedError string
	}{
		{
			name:  "successful processing",
			value: validJSON,
			setupMocks: func(p *MockCommandProcessor, _ *MockDeadLetterPublisher) {
				p.On("ProcessCommand", mock.Anything, mock.MatchedBy(func(c *shared.WalletCommand) bool {
					return c.CommandID == cmd.CommandID && c.Amount.Equal(cmd.Amount)
				})).Return(nil)
			},
		},
		{
			name:  "business rejection goes to DLQ with its code",
			value: validJSON,
			setupMocks: func(p *MockCommandProcessor, d *MockDeadLetterPublisher) {
				p.On("ProcessCommand", mock.Anything, mock.Anything).Return(insufficient)
				d.On("PublishToDLQ", mock.Anything, "test-key", validJSON, insufficient.Error(), "INSUFFICIENT_FUNDS").Return(nil)
			},
		},
		{
			name:  "business rejection with DLQ failure",
			value: validJSON,
			setupMocks: func(p *MockCommandProcessor, d *MockDeadLetterPublisher) {
				p.On("ProcessCommand", mock.Anything, mock.Anything).Return(insufficient)
				d.On("PublishToDLQ", mock.Anything, "test-key", validJSON, mock.Anything, "INSUFFICIENT_FUNDS").Return(errors.New("dlq error"))
			},
			expectedError: "failed to publish rejected command to DLQ",
		},
		{
			name:  "infrastructure error is returned",
			value: validJSON,
			setupMocks: func(p *MockCommandProcessor, _ *MockDeadLetterPublisher) {
				p.On("ProcessCommand", mock.Anything, mock.Anything).Return(errors.New("connection reset"))
			},
			expectedError: "processing command",
		},
		{
			name:  "concurrent modification is retried",
			value: validJSON,
			setupMocks: func(p *MockCommandProcessor, _ *MockDeadLetterPublisher) {
				p.On("ProcessCommand", mock.Anything, mock.Anything).Return(account.ErrConcurrentModification{AccountID: cmd.AccountID})
			},
			expectedError: "processing command",
		},
		{
			name:  "malformed payload goes to DLQ",
			value: []byte("invalid json"),
			setupMocks: func(_ *MockCommandProcessor, d *MockDeadLetterPublisher) {
				d.On("PublishToDLQ", mock.Anything, "test-key", []byte("invalid json"), mock.Anything, "INVALID_REQUEST").Return(nil)
			},
		},
		{
			name:  "malformed payload with DLQ failure",
			value: []byte("invalid json"),
			setupMocks: func(_ *MockCommandProcessor, d *MockDeadLetterPublisher) {
				d.On("PublishToDLQ", mock.Anything, "test-key", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("dlq error"))
			},
			expectedError: "failed to publish rejected command to DLQ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			processor := &MockCommandProcessor{}
			dlq := &MockDeadLetterPublisher{}
			tt.setupMocks(processor, dlq)

			handler := NewCommandHandler(logger, processor, dlq)
			err := handler.HandleMessage(context.Background(), []byte("test-key"), tt.value)

			if tt.expectedError != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectedError)
			} else {
				assert.NoError(t, err)
			}

			processor.AssertExpectations(t)
			dlq.AssertExpectations(t)
		})
	}
}

func TestCommandHandler_WithoutDLQ(t *testing.T) {
	processor := &MockCommandProcessor{}
	processor.On("ProcessCommand", mock.Anything, mock.Anything).Return(shared.ErrInvalidRequest)

	handler := NewCommandHandler(slog.Default(), processor, nil)

	assert.NoError(t, handler.HandleMessage(context.Background(), []byte("k"), []byte("{")))
	assert.NoError(t, handler.HandleMessage(context.Background(), []byte("k"), []byte(`{"operation":"credit"}`)))
	processor.AssertNumberOfCalls(t, "ProcessCommand", 1)
}
