package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRPC struct {
	mock.Mock
}

func (m *mockRPC) GetBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error) {
	args := m.Called(ctx, account, commitment)
	res, _ := args.Get(0).(*rpc.GetBalanceResult)
	return res, args.Error(1)
}

func (m *mockRPC) GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error) {
	args := m.Called(ctx, commitment)
	res, _ := args.Get(0).(*rpc.GetLatestBlockhashResult)
	return res, args.Error(1)
}

func (m *mockRPC) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	args := m.Called(ctx, tx)
	return args.Get(0).(solana.Signature), args.Error(1)
}

func (m *mockRPC) GetSignatureStatuses(ctx context.Context, search bool, signatures ...solana.Signature) (*rpc.GetSignatureStatusesResult, error) {
	args := m.Called(ctx, search, signatures)
	res, _ := args.Get(0).(*rpc.GetSignatureStatusesResult)
	return res, args.Error(1)
}

func statuses(s *rpc.SignatureStatusesResult) *rpc.GetSignatureStatusesResult {
	return &rpc.GetSignatureStatusesResult{Value: []*rpc.SignatureStatusesResult{s}}
}

func newTestClient(api rpcAPI) *RPCClient {
	return newRPCClient(api, RPCConfig{
		Commitment:     rpc.CommitmentConfirmed,
		RequestTimeout: time.Second,
		ConfirmTimeout: time.Second,
		PollInterval:   time.Millisecond,
	})
}

func TestGetBalance(t *testing.T) {
	account := solana.NewWallet().PublicKey()

	t.Run("ok", func(t *testing.T) {
		api := &mockRPC{}
		api.On("GetBalance", mock.Anything, account, rpc.CommitmentConfirmed).
			Return(&rpc.GetBalanceResult{Value: 5 * LamportsPerSOL}, nil)

		got, err := newTestClient(api).GetBalance(context.Background(), account)
		require.NoError(t, err)
		assert.Equal(t, 5*LamportsPerSOL, got)
		api.AssertExpectations(t)
	})

	t.Run("transport failure", func(t *testing.T) {
		api := &mockRPC{}
		api.On("GetBalance", mock.Anything, account, rpc.CommitmentConfirmed).
			Return(nil, errors.New("connection refused"))

		_, err := newTestClient(api).GetBalance(context.Background(), account)
		var transportErr *TransportError
		require.ErrorAs(t, err, &transportErr)
		assert.Equal(t, "get balance", transportErr.Op)
	})
}

func TestGetLatestBlockReference(t *testing.T) {
	hash := solana.HashFromBytes([]byte("0123456789abcdef0123456789abcdef"))

	api := &mockRPC{}
	api.On("GetLatestBlockhash", mock.Anything, rpc.CommitmentConfirmed).
		Return(&rpc.GetLatestBlockhashResult{Value: &rpc.LatestBlockhashResult{Blockhash: hash}}, nil).Once()
	api.On("GetLatestBlockhash", mock.Anything, rpc.CommitmentConfirmed).
		Return(&rpc.GetLatestBlockhashResult{}, nil).Once()

	client := newTestClient(api)
	got, err := client.GetLatestBlockReference(context.Background())
	require.NoError(t, err)
	assert.Equal(t, hash, got)

	_, err = client.GetLatestBlockReference(context.Background())
	var transportErr *TransportError
	assert.ErrorAs(t, err, &transportErr)
}

func TestSubmitTransactionWaitsForCommitment(t *testing.T) {
	sig := solana.Signature{1, 2, 3}
	tx := &solana.Transaction{}

	api := &mockRPC{}
	api.On("SendTransaction", mock.Anything, tx).Return(sig, nil)
	api.On("GetSignatureStatuses", mock.Anything, false, []solana.Signature{sig}).
		Return(statuses(nil), nil).Once()
	api.On("GetSignatureStatuses", mock.Anything, false, []solana.Signature{sig}).
		Return(statuses(&rpc.SignatureStatusesResult{ConfirmationStatus: rpc.ConfirmationStatusProcessed}), nil).Once()
	api.On("GetSignatureStatuses", mock.Anything, false, []solana.Signature{sig}).
		Return(statuses(&rpc.SignatureStatusesResult{ConfirmationStatus: rpc.ConfirmationStatusConfirmed}), nil).Once()

	got, err := newTestClient(api).SubmitTransaction(context.Background(), tx)
	require.NoError(t, err)
	assert.Equal(t, sig, got)
	api.AssertExpectations(t)
}

func TestSubmitTransactionLandedWithError(t *testing.T) {
	sig := solana.Signature{9}
	tx := &solana.Transaction{}

	api := &mockRPC{}
	api.On("SendTransaction", mock.Anything, tx).Return(sig, nil)
	api.On("GetSignatureStatuses", mock.Anything, false, []solana.Signature{sig}).
		Return(statuses(&rpc.SignatureStatusesResult{Err: "InsufficientFundsForRent"}), nil).Once()

	got, err := newTestClient(api).SubmitTransaction(context.Background(), tx)
	require.NoError(t, err)
	assert.Equal(t, sig, got)
	api.AssertExpectations(t)
}

func TestSubmitTransactionClassifiesErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantOnLine bool
	}{
		{
			name: "preflight failure",
			err: &jsonrpc.RPCError{
				Code:    codeSimulationFailed,
				Message: "Transaction simulation failed: Attempt to debit an account but found no record of a prior credit.",
				Data:    map[string]interface{}{"err": "AccountNotFound"},
			},
			wantOnLine: true,
		},
		{
			name:       "signature verification",
			err:        &jsonrpc.RPCError{Code: codeSignatureVerifyFails, Message: "Transaction signature verification failure"},
			wantOnLine: true,
		},
		{
			name:       "rate limited",
			err:        &jsonrpc.RPCError{Code: 429, Message: "Too many requests"},
			wantOnLine: false,
		},
		{
			name:       "network",
			err:        errors.New("dial tcp: i/o timeout"),
			wantOnLine: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := &solana.Transaction{}
			api := &mockRPC{}
			api.On("SendTransaction", mock.Anything, tx).Return(solana.Signature{}, tt.err)

			_, err := newTestClient(api).SubmitTransaction(context.Background(), tx)
			require.Error(t, err)

			var onChain *OnChainError
			var transport *TransportError
			if tt.wantOnLine {
				require.ErrorAs(t, err, &onChain)
				assert.False(t, errors.As(err, &transport))
			} else {
				require.ErrorAs(t, err, &transport)
				assert.False(t, errors.As(err, &onChain))
			}
			api.AssertNotCalled(t, "GetSignatureStatuses", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestGetTransactionStatus(t *testing.T) {
	sig := solana.Signature{7}

	tests := []struct {
		name   string
		result *rpc.GetSignatureStatusesResult
		err    error
		want   Status
	}{
		{
			name:   "not observed",
			result: statuses(nil),
			want:   Status{State: Pending},
		},
		{
			name:   "succeeded",
			result: statuses(&rpc.SignatureStatusesResult{ConfirmationStatus: rpc.ConfirmationStatusConfirmed}),
			want:   Status{State: Succeeded},
		},
		{
			name:   "processed only at confirmed commitment",
			result: statuses(&rpc.SignatureStatusesResult{ConfirmationStatus: rpc.ConfirmationStatusProcessed}),
			want:   Status{State: Pending},
		},
		{
			name:   "no confirmation status reported",
			result: statuses(&rpc.SignatureStatusesResult{}),
			want:   Status{State: Pending},
		},
		{
			name:   "finalized beyond confirmed",
			result: statuses(&rpc.SignatureStatusesResult{ConfirmationStatus: rpc.ConfirmationStatusFinalized}),
			want:   Status{State: Succeeded},
		},
		{
			name: "failed",
			result: statuses(&rpc.SignatureStatusesResult{
				Err: map[string]interface{}{"InstructionError": []interface{}{0, map[string]interface{}{"Custom": 1}}},
			}),
			want: Status{State: Failed, Reason: `{"InstructionError":[0,{"Custom":1}]}`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &mockRPC{}
			api.On("GetSignatureStatuses", mock.Anything, true, []solana.Signature{sig}).Return(tt.result, tt.err)

			got, err := newTestClient(api).GetTransactionStatus(context.Background(), sig)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("transport failure", func(t *testing.T) {
		api := &mockRPC{}
		api.On("GetSignatureStatuses", mock.Anything, true, []solana.Signature{sig}).Return(nil, errors.New("EOF"))

		_, err := newTestClient(api).GetTransactionStatus(context.Background(), sig)
		var transport *TransportError
		assert.ErrorAs(t, err, &transport)
	})
}

func TestGetTransactionStatusHonoursCommitment(t *testing.T) {
	sig := solana.Signature{8}
	confirmed := statuses(&rpc.SignatureStatusesResult{ConfirmationStatus: rpc.ConfirmationStatusConfirmed})

	tests := []struct {
		commitment rpc.CommitmentType
		want       State
	}{
		{rpc.CommitmentProcessed, Succeeded},
		{rpc.CommitmentConfirmed, Succeeded},
		{rpc.CommitmentFinalized, Pending},
	}

	for _, tt := range tests {
		t.Run(string(tt.commitment), func(t *testing.T) {
			api := &mockRPC{}
			api.On("GetSignatureStatuses", mock.Anything, true, []solana.Signature{sig}).Return(confirmed, nil)

			client := newRPCClient(api, RPCConfig{Commitment: tt.commitment, RequestTimeout: time.Second})
			got, err := client.GetTransactionStatus(context.Background(), sig)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.State)
		})
	}
}

func TestParseCommitment(t *testing.T) {
	got, err := ParseCommitment("")
	require.NoError(t, err)
	assert.Equal(t, rpc.CommitmentConfirmed, got)

	got, err = ParseCommitment("Finalized")
	require.NoError(t, err)
	assert.Equal(t, rpc.CommitmentFinalized, got)

	_, err = ParseCommitment("eventually")
	assert.ErrorIs(t, err, ErrUnknownCommitment)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "pending", Pending.String())
	assert.Equal(t, "succeeded", Succeeded.String())
	assert.Equal(t, "failed", Failed.String())
	assert.Equal(t, "state(9)", State(9).String())
}
