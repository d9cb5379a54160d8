package api

import (
	"time"

	"github.com/google/uuid"
)

type AuthRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token *string `json:"token,omitempty"`
}

type ErrorResponse struct {
	Errors *string `json:"errors,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type CreateShopResponse struct {
	ShopID uuid.UUID `json:"shopId"`
	CapID  uuid.UUID `json:"capId"`
}

type CreateAvatarRequest struct {
	Name        string `json:"name"`
	InitialGold uint64 `json:"initialGold"`
	// Recipient defaults to the caller.
	Recipient string `json:"recipient,omitempty"`
}

type IDResponse struct {
	ID uuid.UUID `json:"id"`
}

type AvatarResponse struct {
	ID         uuid.UUID  `json:"id"`
	Owner      string     `json:"owner"`
	Name       string     `json:"name"`
	Gold       uint64     `json:"gold"`
	WeaponID   *uuid.UUID `json:"weaponId,omitempty"`
	WeaponKind *string    `json:"weaponKind,omitempty"`
}

type EventResponse struct {
	TxID     uuid.UUID `json:"txId"`
	Type     string    `json:"type"`
	AvatarID uuid.UUID `json:"avatarId"`
	WeaponID uuid.UUID `json:"weaponId"`
	Kind     string    `json:"kind"`
	At       time.Time `json:"at"`
}

type InventoryResponse struct {
	Kind  string `json:"kind"`
	Price uint64 `json:"price"`
	Stock int    `json:"stock"`
}

type ShopResponse struct {
	ID          uuid.UUID           `json:"id"`
	Earnings    uint64              `json:"earnings"`
	Inventories []InventoryResponse `json:"inventories"`
}

type WeaponResponse struct {
	ID   uuid.UUID `json:"id"`
	Kind string    `json:"kind"`
}

type WalletResponse struct {
	Coins   uint64           `json:"coins"`
	Weapons []WeaponResponse `json:"weapons"`
}

type CapRequest struct {
	CapID uuid.UUID `json:"capId"`
}

type PriceRequest struct {
	CapID uuid.UUID `json:"capId"`
	Price uint64    `json:"price"`
}

type RestockRequest struct {
	CapID     uuid.UUID   `json:"capId"`
	WeaponIDs []uuid.UUID `json:"weaponIds,omitempty"`
	// Mint adds that many freshly minted weapons to the restock.
	Mint int `json:"mint,omitempty"`
}

type WithdrawResponse struct {
	Amount uint64 `json:"amount"`
}

type TransferCapRequest struct {
	To string `json:"to"`
}

type FlowRequest struct {
	AvatarID uuid.UUID `json:"avatarId"`
	Amount   uint64    `json:"amount"`
}
