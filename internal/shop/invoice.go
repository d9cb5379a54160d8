package shop

import (
	"fmt"

	"weapon-shop/internal/asset"
	"weapon-shop/internal/txn"
)

// Invoice is an amount owed for a purchase. It is bound to the transaction
// that created it and must be settled by PayInFull or TradeIn before that
// transaction finishes; it is never stored.
type Invoice struct {
	amount  uint64
	tx      *txn.Tx
	settled bool
}

func (i *Invoice) Amount() uint64   { return i.amount }
func (i *Invoice) ResourceKey() any { return i }

// Purchase takes one K out of stock and returns it with the invoice for it.
func Purchase[K asset.Kind](tx *txn.Tx, s *Shop) (asset.Weapon[K], *Invoice, error) {
	w, price, err := TakeOne[K](tx, s)
	if err != nil {
		return asset.Weapon[K]{}, nil, err
	}
	inv := &Invoice{amount: price, tx: tx}
	if err := tx.Hold(inv); err != nil {
		return asset.Weapon[K]{}, nil, err
	}
	return w, inv, nil
}

// TradeInCredit is floor(price*3/4), computed without overflow.
func TradeInCredit(price uint64) uint64 {
	return price/4*3 + price%4*3/4
}

func (i *Invoice) check(tx *txn.Tx) error {
	if i == nil {
		return fmt.Errorf("settle: %w", txn.ErrNotHeld)
	}
	if i.tx != tx {
		return ErrForeignInvoice
	}
	if i.settled {
		return ErrInvoiceSettled
	}
	return nil
}

func (i *Invoice) settle(tx *txn.Tx) error {
	if err := tx.Release(i); err != nil {
		return err
	}
	i.settled = true
	return nil
}

func PayInFull(tx *txn.Tx, s *Shop, inv *Invoice, bal *asset.Balance) error {
	if err := inv.check(tx); err != nil {
		return err
	}
	if bal.Value() != inv.amount {
		return fmt.Errorf("%w: owed %d, offered %d", ErrAmountMismatch, inv.amount, bal.Value())
	}
	if err := asset.Join(tx, s.earnings, bal); err != nil {
		return err
	}
	return inv.settle(tx)
}

// TradeIn settles inv with a returned Old weapon worth TradeInCredit of the
// current Old price plus a balance covering the rest. The weapon goes back
// into stock.
func TradeIn[Old asset.Kind](tx *txn.Tx, s *Shop, inv *Invoice, old asset.Weapon[Old], bal *asset.Balance) error {
	if err := inv.check(tx); err != nil {
		return err
	}
	price, err := Price[Old](s)
	if err != nil {
		return err
	}
	credit := TradeInCredit(price)
	adjusted := uint64(0)
	if credit < inv.amount {
		adjusted = inv.amount - credit
	}
	if bal.Value() != adjusted {
		return fmt.Errorf("%w: owed %d after trade-in, offered %d", ErrAmountMismatch, adjusted, bal.Value())
	}
	if !tx.Holds(old) {
		return fmt.Errorf("trade in %s: %w", old, txn.ErrNotHeld)
	}
	if err := asset.Join(tx, s.earnings, bal); err != nil {
		return err
	}
	if err := PutOne(tx, s, old); err != nil {
		return err
	}
	return inv.settle(tx)
}
