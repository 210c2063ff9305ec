package mocks

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/mock"

	"github.com/eigerco/blocktransfer/internal/ledger"
)

// MockLedger is a testify mock of the ledger client used by the transfer executor.
type MockLedger struct {
	mock.Mock
}

func NewMockLedger() *MockLedger {
	return &MockLedger{}
}

func (m *MockLedger) GetBalance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	args := m.Called(ctx, account)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockLedger) GetLatestBlockReference(ctx context.Context) (solana.Hash, error) {
	args := m.Called(ctx)
	return args.Get(0).(solana.Hash), args.Error(1)
}

func (m *MockLedger) SubmitTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	args := m.Called(ctx, tx)
	return args.Get(0).(solana.Signature), args.Error(1)
}

func (m *MockLedger) GetTransactionStatus(ctx context.Context, sig solana.Signature) (ledger.Status, error) {
	args := m.Called(ctx, sig)
	return args.Get(0).(ledger.Status), args.Error(1)
}
