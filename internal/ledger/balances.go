package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"golang.org/x/sync/errgroup"
)

// BalanceReader reads an account balance in lamports.
type BalanceReader interface {
	GetBalance(ctx context.Context, account solana.PublicKey) (uint64, error)
}

// Balance of a single wallet.
type Balance struct {
	Wallet   string
	Lamports uint64
}

func (b Balance) String() string {
	return fmt.Sprintf("Wallet: %s - Balance: %s SOL", b.Wallet, FormatSOL(b.Lamports))
}

// Balances queries every wallet concurrently. Results keep the order of
// wallets. If any query fails, all failures are returned joined together and
// no balances are returned.
func Balances(ctx context.Context, reader BalanceReader, wallets []string) ([]Balance, error) {
	balances := make([]Balance, len(wallets))
	errs := make([]error, len(wallets))

	var g errgroup.Group
	for i, wallet := range wallets {
		g.Go(func() error {
			account, err := solana.PublicKeyFromBase58(wallet)
			if err != nil {
				errs[i] = fmt.Errorf("parse wallet address %s: %w", wallet, err)
				return nil
			}
			lamports, err := reader.GetBalance(ctx, account)
			if err != nil {
				errs[i] = fmt.Errorf("get balance for wallet %s: %w", wallet, err)
				return nil
			}
			balances[i] = Balance{Wallet: wallet, Lamports: lamports}
			return nil
		})
	}
	_ = g.Wait()

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("failed to get some wallet balances:\n%w", err)
	}
	return balances, nil
}
