package asset

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"weapon-shop/internal/txn"
)

var ErrWrongWeaponKind = errors.New("wrong weapon kind")

// Asset is the kind-erased view of a weapon used by containers and storage.
type Asset interface {
	ID() uuid.UUID
	KindName() string
}

type Weapon[K Kind] struct {
	id uuid.UUID
}

func (w Weapon[K]) ID() uuid.UUID   { return w.id }
func (w Weapon[K]) KindName() string { return NameOf[K]() }
func (w Weapon[K]) ResourceKey() any { return w.id }
func (w Weapon[K]) String() string   { return w.KindName() + ":" + w.id.String() }

// Handle is a weapon as the host store knows it: an id and a kind name, with
// no static kind. Typed code turns it back into a Weapon with Receive or Cast.
type Handle struct {
	WeaponID uuid.UUID
	Kind     string
}

func (h Handle) ID() uuid.UUID    { return h.WeaponID }
func (h Handle) KindName() string { return h.Kind }

func MintWeapon[K Kind](tx *txn.Tx) (Weapon[K], error) {
	w := Weapon[K]{id: tx.FreshID()}
	if err := tx.Hold(w); err != nil {
		return Weapon[K]{}, err
	}
	return w, nil
}

// RestoreWeapon rebuilds a weapon that already sits in a container.
func RestoreWeapon[K Kind](id uuid.UUID) Weapon[K] {
	return Weapon[K]{id: id}
}

// Receive accepts a host-held weapon into the transaction as a typed value.
func Receive[K Kind](tx *txn.Tx, h Handle) (Weapon[K], error) {
	w, err := Cast[K](h)
	if err != nil {
		return Weapon[K]{}, err
	}
	if err := tx.Hold(w); err != nil {
		return Weapon[K]{}, err
	}
	return w, nil
}

// Cast recovers the static kind of a kind-erased weapon.
func Cast[K Kind](a Asset) (Weapon[K], error) {
	switch v := a.(type) {
	case Weapon[K]:
		return v, nil
	case Handle:
		if v.Kind == NameOf[K]() {
			return Weapon[K]{id: v.WeaponID}, nil
		}
	}
	if a == nil {
		return Weapon[K]{}, fmt.Errorf("%w: want %s, got nothing", ErrWrongWeaponKind, NameOf[K]())
	}
	return Weapon[K]{}, fmt.Errorf("%w: want %s, got %s", ErrWrongWeaponKind, NameOf[K](), a.KindName())
}
