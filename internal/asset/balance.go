package asset

import (
	"errors"
	"fmt"
	"math"

	"weapon-shop/internal/txn"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrBalanceOverflow   = errors.New("balance overflow")
	ErrSelfJoin          = errors.New("cannot join a balance into itself")
)

// MaxAmount is the largest amount of gold any balance may hold. The host
// store keeps amounts in signed 64-bit columns.
const MaxAmount uint64 = math.MaxInt64

// Balance is an amount of gold. A *Balance is either embedded in an owner
// (avatar gold, shop earnings) or in transit inside a transaction.
type Balance struct {
	value uint64
}

// RestoreBalance rebuilds an embedded balance loaded from the host store.
func RestoreBalance(value uint64) *Balance {
	return &Balance{value: value}
}

func (b *Balance) Value() uint64 {
	if b == nil {
		return 0
	}
	return b.value
}

func (b *Balance) ResourceKey() any { return b }

func (b *Balance) String() string {
	return fmt.Sprintf("%d gold", b.Value())
}

// Mint creates new gold out of nothing. Only bootstrap paths call it.
func Mint(tx *txn.Tx, amount uint64) (*Balance, error) {
	b := &Balance{value: amount}
	if err := tx.Hold(b); err != nil {
		return nil, err
	}
	return b, nil
}

// Split removes exactly n from b and returns it as a new in-transit balance.
func Split(tx *txn.Tx, b *Balance, n uint64) (*Balance, error) {
	if b.Value() < n {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrInsufficientFunds, b.Value(), n)
	}
	out := &Balance{value: n}
	if err := tx.Hold(out); err != nil {
		return nil, err
	}
	b.value -= n
	return out, nil
}

func SplitAll(tx *txn.Tx, b *Balance) (*Balance, error) {
	return Split(tx, b, b.Value())
}

// Join consumes src into dst.
func Join(tx *txn.Tx, dst, src *Balance) error {
	if src == nil {
		return fmt.Errorf("join: %w", txn.ErrNotHeld)
	}
	if dst == src {
		return ErrSelfJoin
	}
	if src.value > MaxAmount || dst.value > MaxAmount-src.value {
		return ErrBalanceOverflow
	}
	if err := tx.Release(src); err != nil {
		return err
	}
	dst.value += src.value
	src.value = 0
	return nil
}
