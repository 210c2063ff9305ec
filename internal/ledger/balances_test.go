package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticReader map[solana.PublicKey]uint64

func (r staticReader) GetBalance(_ context.Context, account solana.PublicKey) (uint64, error) {
	balance, ok := r[account]
	if !ok {
		return 0, errors.New("account not found")
	}
	return balance, nil
}

func TestBalances(t *testing.T) {
	a := solana.NewWallet().PublicKey()
	b := solana.NewWallet().PublicKey()
	reader := staticReader{a: 5 * LamportsPerSOL, b: LamportsPerSOL / 2}

	got, err := Balances(context.Background(), reader, []string{a.String(), b.String()})
	require.NoError(t, err)
	assert.Equal(t, []Balance{
		{Wallet: a.String(), Lamports: 5 * LamportsPerSOL},
		{Wallet: b.String(), Lamports: LamportsPerSOL / 2},
	}, got)
	assert.Equal(t, "Wallet: "+b.String()+" - Balance: 0.500000000 SOL", got[1].String())
}

func TestBalancesAggregatesFailures(t *testing.T) {
	a := solana.NewWallet().PublicKey()
	missing := solana.NewWallet().PublicKey()
	reader := staticReader{a: 1}

	got, err := Balances(context.Background(), reader, []string{a.String(), missing.String(), "bogus"})
	require.Error(t, err)
	assert.Nil(t, got)
	assert.Contains(t, err.Error(), "get balance for wallet "+missing.String())
	assert.Contains(t, err.Error(), "parse wallet address bogus")
	assert.NotContains(t, err.Error(), "wallet "+a.String())
}

func TestBalancesEmpty(t *testing.T) {
	got, err := Balances(context.Background(), staticReader{}, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}
