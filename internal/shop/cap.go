package shop

import (
	"github.com/google/uuid"

	"weapon-shop/internal/models"
)

// OwnerCap proves administrative authority over exactly one shop. Only New
// mints one; holding it is the whole authorization check.
type OwnerCap struct {
	id     uuid.UUID
	shopID uuid.UUID
}

// RestoreCap rebuilds a capability the host store says the caller owns.
func RestoreCap(m models.Capability) *OwnerCap {
	return &OwnerCap{id: m.ID, shopID: m.ShopID}
}

func (c *OwnerCap) ID() uuid.UUID     { return c.id }
func (c *OwnerCap) ShopID() uuid.UUID { return c.shopID }
func (c *OwnerCap) ResourceKey() any  { return c.id }

func (s *Shop) authorize(c *OwnerCap) error {
	if c == nil || c.shopID != s.id || c.id != s.capID {
		return ErrUnauthorized
	}
	return nil
}
