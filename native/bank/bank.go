package bank

import (
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrInsufficientBalance = errors.New("bank: insufficient balance")
	ErrUnknownAsset        = errors.New("bank: unknown asset")
)

type balanceKey struct {
	asset  common.Address
	holder common.Address
}

// Ledger is a book-entry implementation of the staking engine's Bank and
// CollateralToken collaborators: per-(asset, holder) balances with a custody
// identity credited on TransferIn and debited on TransferOut. The zero asset
// identifier works like any other entry, which is how the native-currency
// sentinel is carried.
type Ledger struct {
	mu       sync.RWMutex
	module   common.Address
	balances map[balanceKey]*big.Int
	decimals map[common.Address]uint8
}

// NewLedger creates an empty ledger with the given custody identity.
func NewLedger(module common.Address) *Ledger {
	return &Ledger{
		module:   module,
		balances: make(map[balanceKey]*big.Int),
		decimals: make(map[common.Address]uint8),
	}
}

// RegisterAsset records the decimals reported for an asset.
func (l *Ledger) RegisterAsset(asset common.Address, decimals uint8) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.decimals[asset] = decimals
}

// Credit adds supply to a holder's balance directly. Operational seeding and
// tests use this; the staking engine never does.
func (l *Ledger) Credit(asset, holder common.Address, amount *big.Int) {
	if amount == nil || amount.Sign() <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.add(asset, holder, amount)
}

// BalanceOf returns a copy of the holder's balance for the asset.
func (l *Ledger) BalanceOf(asset, holder common.Address) (*big.Int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if bal, ok := l.balances[balanceKey{asset, holder}]; ok {
		return new(big.Int).Set(bal), nil
	}
	return big.NewInt(0), nil
}

// TransferIn moves the amount from the holder into custody.
func (l *Ledger) TransferIn(asset, from common.Address, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.sub(asset, from, amount); err != nil {
		return err
	}
	l.add(asset, l.module, amount)
	return nil
}

// TransferOut pushes the amount from custody to the recipient.
func (l *Ledger) TransferOut(asset, to common.Address, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.sub(asset, l.module, amount); err != nil {
		return err
	}
	l.add(asset, to, amount)
	return nil
}

// Mint creates new supply of the asset for the recipient.
func (l *Ledger) Mint(asset, to common.Address, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.add(asset, to, amount)
	return nil
}

// BurnFrom destroys supply held by the holder. The holder's authorization to
// the ledger is assumed; enforcing it is the caller's concern.
func (l *Ledger) BurnFrom(asset, holder common.Address, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sub(asset, holder, amount)
}

// Decimals reports the registered decimals for the asset.
func (l *Ledger) Decimals(asset common.Address) (uint8, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	dec, ok := l.decimals[asset]
	if !ok {
		return 0, ErrUnknownAsset
	}
	return dec, nil
}

func (l *Ledger) add(asset, holder common.Address, amount *big.Int) {
	if amount == nil || amount.Sign() <= 0 {
		return
	}
	key := balanceKey{asset, holder}
	bal, ok := l.balances[key]
	if !ok {
		bal = big.NewInt(0)
		l.balances[key] = bal
	}
	bal.Add(bal, amount)
}

func (l *Ledger) sub(asset, holder common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return nil
	}
	key := balanceKey{asset, holder}
	bal, ok := l.balances[key]
	if !ok || bal.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	bal.Sub(bal, amount)
	return nil
}
