package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           int
	Username     string
	PasswordHash string
	Coins        uint64
}

type Shop struct {
	ID          uuid.UUID
	CapID       uuid.UUID
	Earnings    uint64
	Inventories []Inventory
}

type Inventory struct {
	Kind      string
	Price     uint64
	WeaponIDs []uuid.UUID
}

type Avatar struct {
	ID         uuid.UUID
	Owner      string
	Name       string
	Gold       uint64
	WeaponID   uuid.NullUUID
	WeaponKind string
}

type Capability struct {
	ID     uuid.UUID
	ShopID uuid.UUID
	Owner  string
}

// Weapon is a weapon held directly by a principal, outside any shop or avatar.
type Weapon struct {
	ID    uuid.UUID
	Kind  string
	Owner string
}

type Event struct {
	ID       int64
	TxID     uuid.UUID
	Type     string
	AvatarID uuid.UUID
	WeaponID uuid.UUID
	Kind     string
	At       time.Time
}
