// Package market composes shop, settlement and equipment operations into the
// customer flows. Every flow either leaves each weapon, balance and invoice
// in a container or returns an error; the caller runs it inside one host
// transaction and discards all state on error.
package market

import (
	"fmt"

	"weapon-shop/internal/asset"
	"weapon-shop/internal/avatar"
	"weapon-shop/internal/shop"
	"weapon-shop/internal/txn"
)

// Buy pays amount for one K and wields it.
func Buy[K asset.Kind](tx *txn.Tx, a *avatar.Avatar, amount uint64, s *shop.Shop) error {
	w, inv, err := shop.Purchase[K](tx, s)
	if err != nil {
		return fmt.Errorf("buy %s: %w", asset.NameOf[K](), err)
	}
	payment, err := avatar.Debit(tx, a, amount)
	if err != nil {
		return fmt.Errorf("buy %s: %w", asset.NameOf[K](), err)
	}
	if err := shop.PayInFull(tx, s, inv, payment); err != nil {
		return fmt.Errorf("buy %s: %w", asset.NameOf[K](), err)
	}
	if err := avatar.Wield(tx, a, w); err != nil {
		return fmt.Errorf("buy %s: %w", asset.NameOf[K](), err)
	}
	return nil
}

// Sell returns the wielded K to the shop for half its current price.
func Sell[K asset.Kind](tx *txn.Tx, a *avatar.Avatar, s *shop.Shop) error {
	w, err := avatar.Unwield[K](tx, a)
	if err != nil {
		return fmt.Errorf("sell %s: %w", asset.NameOf[K](), err)
	}
	if err := shop.PutOne(tx, s, w); err != nil {
		return fmt.Errorf("sell %s: %w", asset.NameOf[K](), err)
	}
	payout, err := shop.Payout[K](tx, s)
	if err != nil {
		return fmt.Errorf("sell %s: %w", asset.NameOf[K](), err)
	}
	if err := avatar.Credit(tx, a, payout); err != nil {
		return fmt.Errorf("sell %s: %w", asset.NameOf[K](), err)
	}
	return nil
}

// Trade swaps the wielded Old for a New, paying the New price less the
// trade-in credit for Old.
func Trade[Old, New asset.Kind](tx *txn.Tx, a *avatar.Avatar, amount uint64, s *shop.Shop) error {
	op := fmt.Sprintf("trade %s for %s", asset.NameOf[Old](), asset.NameOf[New]())
	old, err := avatar.Unwield[Old](tx, a)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	w, inv, err := shop.Purchase[New](tx, s)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	payment, err := avatar.Debit(tx, a, amount)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := shop.TradeIn(tx, s, inv, old, payment); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := avatar.Wield(tx, a, w); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Rent takes a K off the shelf, swings it once and trades it straight back,
// paying the price less the trade-in credit. It is a demonstration flow; the
// economics are intentional.
func Rent[K asset.Kind](tx *txn.Tx, a *avatar.Avatar, amount uint64, s *shop.Shop) error {
	op := "rent " + asset.NameOf[K]()
	w, inv, err := shop.Purchase[K](tx, s)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := avatar.Wield(tx, a, w); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := avatar.Swing(tx, a); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	w, err = avatar.Unwield[K](tx, a)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	payment, err := avatar.Debit(tx, a, amount)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := shop.TradeIn(tx, s, inv, w, payment); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
