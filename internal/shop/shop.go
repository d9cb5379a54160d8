// Package shop holds a shop's typed weapon inventories, the owner capability
// that gates its configuration, and the invoice protocol used to pay for
// purchases.
package shop

import (
	"errors"
	"sort"

	"github.com/google/uuid"

	"weapon-shop/internal/asset"
	"weapon-shop/internal/models"
	"weapon-shop/internal/txn"
)

var (
	ErrUnknownKind           = errors.New("unknown weapon kind")
	ErrKindAlreadyRegistered = errors.New("weapon kind already registered")
	ErrOutOfStock            = errors.New("out of stock")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrAmountMismatch        = errors.New("amount mismatch")
	ErrShopInsolvent         = errors.New("shop earnings cannot cover payout")
	ErrInvoiceSettled        = errors.New("invoice already settled")
	ErrForeignInvoice        = errors.New("invoice belongs to another transaction")
)

type Shop struct {
	id       uuid.UUID
	capID    uuid.UUID
	earnings *asset.Balance
	// kind name -> *Inventory[K], or *rawInventory until first typed access
	inventories map[string]any
}

// New creates a shop and the single capability that administers it. The
// capability is in transit and must be transferred by the caller.
func New(tx *txn.Tx) (*Shop, *OwnerCap, error) {
	s := &Shop{
		id:          tx.FreshID(),
		earnings:    asset.RestoreBalance(0),
		inventories: make(map[string]any),
	}
	c := &OwnerCap{id: tx.FreshID(), shopID: s.id}
	s.capID = c.id
	if err := tx.Hold(c); err != nil {
		return nil, nil, err
	}
	tx.PublishShared(s.id)
	return s, c, nil
}

// Restore rebuilds a shop from the host store. Inventories stay kind-erased
// until typed code touches them.
func Restore(m models.Shop) *Shop {
	s := &Shop{
		id:          m.ID,
		capID:       m.CapID,
		earnings:    asset.RestoreBalance(m.Earnings),
		inventories: make(map[string]any, len(m.Inventories)),
	}
	for _, inv := range m.Inventories {
		ids := make([]uuid.UUID, len(inv.WeaponIDs))
		copy(ids, inv.WeaponIDs)
		s.inventories[inv.Kind] = &rawInventory{price: inv.Price, ids: ids}
	}
	return s
}

func (s *Shop) ID() uuid.UUID { return s.id }

func (s *Shop) Earnings() uint64 { return s.earnings.Value() }

// Kinds returns the registered kind names in lexical order.
func (s *Shop) Kinds() []string {
	names := make([]string, 0, len(s.inventories))
	for name := range s.inventories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Shop) Snapshot() models.Shop {
	m := models.Shop{
		ID:       s.id,
		CapID:    s.capID,
		Earnings: s.earnings.Value(),
	}
	for _, name := range s.Kinds() {
		m.Inventories = append(m.Inventories, s.inventories[name].(bucket).snapshot(name))
	}
	return m
}
