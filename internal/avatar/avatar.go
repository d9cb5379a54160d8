// Package avatar models a player character: a name, a purse of gold and a
// single equipment slot.
package avatar

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"weapon-shop/internal/asset"
	"weapon-shop/internal/models"
	"weapon-shop/internal/txn"
)

const maxNameRunes = 64

const EventWeaponSwung = "weapon_swung"

var (
	ErrAlreadyWielding = errors.New("avatar is already wielding a weapon")
	ErrNotWielding     = errors.New("avatar is not wielding a weapon")
	ErrInvalidName     = errors.New("invalid avatar name")
	ErrWrongWeaponKind = asset.ErrWrongWeaponKind
)

type Avatar struct {
	id       uuid.UUID
	name     string
	gold     *asset.Balance
	weaponID uuid.NullUUID
	// slot holds the wielded weapon; set exactly when weaponID is valid
	slot asset.Asset
}

// New creates an avatar funded with gold. The avatar is in transit until it
// is transferred to its owner.
func New(tx *txn.Tx, name string, gold *asset.Balance) (*Avatar, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	a := &Avatar{id: tx.FreshID(), name: name, gold: asset.RestoreBalance(0)}
	if err := asset.Join(tx, a.gold, gold); err != nil {
		return nil, err
	}
	if err := tx.Hold(a); err != nil {
		return nil, err
	}
	return a, nil
}

func validateName(name string) error {
	switch {
	case !utf8.ValidString(name):
		return fmt.Errorf("%w: not valid utf-8", ErrInvalidName)
	case strings.TrimSpace(name) == "":
		return fmt.Errorf("%w: empty", ErrInvalidName)
	case utf8.RuneCountInString(name) > maxNameRunes:
		return fmt.Errorf("%w: longer than %d characters", ErrInvalidName, maxNameRunes)
	}
	return nil
}

func Restore(m models.Avatar) *Avatar {
	a := &Avatar{
		id:       m.ID,
		name:     m.Name,
		gold:     asset.RestoreBalance(m.Gold),
		weaponID: m.WeaponID,
	}
	if m.WeaponID.Valid {
		a.slot = asset.Handle{WeaponID: m.WeaponID.UUID, Kind: m.WeaponKind}
	}
	return a
}

func (a *Avatar) Snapshot() models.Avatar {
	m := models.Avatar{
		ID:       a.id,
		Name:     a.name,
		Gold:     a.gold.Value(),
		WeaponID: a.weaponID,
	}
	if a.slot != nil {
		m.WeaponKind = a.slot.KindName()
	}
	return m
}

func (a *Avatar) ID() uuid.UUID    { return a.id }
func (a *Avatar) Name() string     { return a.name }
func (a *Avatar) Gold() uint64     { return a.gold.Value() }
func (a *Avatar) ResourceKey() any { return a.id }

// Weapon reports the wielded weapon, if any.
func (a *Avatar) Weapon() (asset.Asset, bool) {
	return a.slot, a.weaponID.Valid
}

// Debit splits amount off the avatar's gold.
func Debit(tx *txn.Tx, a *Avatar, amount uint64) (*asset.Balance, error) {
	return asset.Split(tx, a.gold, amount)
}

func Credit(tx *txn.Tx, a *Avatar, bal *asset.Balance) error {
	return asset.Join(tx, a.gold, bal)
}
