package shop

import (
	"fmt"

	"github.com/google/uuid"

	"weapon-shop/internal/asset"
	"weapon-shop/internal/models"
	"weapon-shop/internal/txn"
)

// Inventory is the price and stock of one weapon kind. Stock is a bag: take
// order is unspecified.
type Inventory[K asset.Kind] struct {
	price uint64
	stock []asset.Weapon[K]
}

type bucket interface {
	snapshot(kind string) models.Inventory
}

func (inv *Inventory[K]) snapshot(kind string) models.Inventory {
	m := models.Inventory{Kind: kind, Price: inv.price, WeaponIDs: make([]uuid.UUID, 0, len(inv.stock))}
	for _, w := range inv.stock {
		m.WeaponIDs = append(m.WeaponIDs, w.ID())
	}
	return m
}

type rawInventory struct {
	price uint64
	ids   []uuid.UUID
}

func (raw *rawInventory) snapshot(kind string) models.Inventory {
	ids := make([]uuid.UUID, len(raw.ids))
	copy(ids, raw.ids)
	return models.Inventory{Kind: kind, Price: raw.price, WeaponIDs: ids}
}

func inventoryOf[K asset.Kind](s *Shop) (*Inventory[K], error) {
	name := asset.NameOf[K]()
	box, ok := s.inventories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, name)
	}
	switch inv := box.(type) {
	case *Inventory[K]:
		return inv, nil
	case *rawInventory:
		typed := &Inventory[K]{price: inv.price, stock: make([]asset.Weapon[K], 0, len(inv.ids))}
		for _, id := range inv.ids {
			typed.stock = append(typed.stock, asset.RestoreWeapon[K](id))
		}
		s.inventories[name] = typed
		return typed, nil
	}
	return nil, fmt.Errorf("%w: %s is registered as %T", ErrUnknownKind, name, box)
}

func RegisterKind[K asset.Kind](s *Shop, c *OwnerCap, price uint64) error {
	if err := s.authorize(c); err != nil {
		return err
	}
	name := asset.NameOf[K]()
	if _, ok := s.inventories[name]; ok {
		return fmt.Errorf("%w: %s", ErrKindAlreadyRegistered, name)
	}
	s.inventories[name] = &Inventory[K]{price: price}
	return nil
}

func SetPrice[K asset.Kind](s *Shop, c *OwnerCap, price uint64) error {
	if err := s.authorize(c); err != nil {
		return err
	}
	inv, err := inventoryOf[K](s)
	if err != nil {
		return err
	}
	inv.price = price
	return nil
}

func Restock[K asset.Kind](tx *txn.Tx, s *Shop, c *OwnerCap, w asset.Weapon[K]) error {
	if err := s.authorize(c); err != nil {
		return err
	}
	return PutOne(tx, s, w)
}

// TakeOne removes one weapon from stock together with the current price.
func TakeOne[K asset.Kind](tx *txn.Tx, s *Shop) (asset.Weapon[K], uint64, error) {
	inv, err := inventoryOf[K](s)
	if err != nil {
		return asset.Weapon[K]{}, 0, err
	}
	n := len(inv.stock)
	if n == 0 {
		return asset.Weapon[K]{}, 0, fmt.Errorf("%w: %s", ErrOutOfStock, asset.NameOf[K]())
	}
	w := inv.stock[n-1]
	if err := tx.Hold(w); err != nil {
		return asset.Weapon[K]{}, 0, err
	}
	inv.stock = inv.stock[:n-1]
	return w, inv.price, nil
}

func PutOne[K asset.Kind](tx *txn.Tx, s *Shop, w asset.Weapon[K]) error {
	inv, err := inventoryOf[K](s)
	if err != nil {
		return err
	}
	if err := tx.Release(w); err != nil {
		return err
	}
	inv.stock = append(inv.stock, w)
	return nil
}

func Price[K asset.Kind](s *Shop) (uint64, error) {
	inv, err := inventoryOf[K](s)
	if err != nil {
		return 0, err
	}
	return inv.price, nil
}

func Stock[K asset.Kind](s *Shop) (int, error) {
	inv, err := inventoryOf[K](s)
	if err != nil {
		return 0, err
	}
	return len(inv.stock), nil
}

func WithdrawEarnings(tx *txn.Tx, s *Shop, c *OwnerCap) (*asset.Balance, error) {
	if err := s.authorize(c); err != nil {
		return nil, err
	}
	return asset.SplitAll(tx, s.earnings)
}

// Payout splits half the current price of K off the shop earnings, the
// amount a customer gets back when selling a K.
func Payout[K asset.Kind](tx *txn.Tx, s *Shop) (*asset.Balance, error) {
	price, err := Price[K](s)
	if err != nil {
		return nil, err
	}
	amount := price / 2
	if s.earnings.Value() < amount {
		return nil, fmt.Errorf("%w: earnings %d, payout %d", ErrShopInsolvent, s.earnings.Value(), amount)
	}
	return asset.Split(tx, s.earnings, amount)
}
