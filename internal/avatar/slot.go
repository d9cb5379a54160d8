package avatar

import (
	"github.com/google/uuid"

	"weapon-shop/internal/asset"
	"weapon-shop/internal/txn"
)

func Wield[K asset.Kind](tx *txn.Tx, a *Avatar, w asset.Weapon[K]) error {
	if a.weaponID.Valid {
		return ErrAlreadyWielding
	}
	if err := tx.Release(w); err != nil {
		return err
	}
	a.weaponID = uuid.NullUUID{UUID: w.ID(), Valid: true}
	a.slot = w
	return nil
}

// Unwield hands the wielded weapon back to the caller. Asking for the wrong
// kind leaves the avatar untouched.
func Unwield[K asset.Kind](tx *txn.Tx, a *Avatar) (asset.Weapon[K], error) {
	if !a.weaponID.Valid {
		return asset.Weapon[K]{}, ErrNotWielding
	}
	w, err := asset.Cast[K](a.slot)
	if err != nil {
		return asset.Weapon[K]{}, err
	}
	if err := tx.Hold(w); err != nil {
		return asset.Weapon[K]{}, err
	}
	a.weaponID = uuid.NullUUID{}
	a.slot = nil
	return w, nil
}

func Swing(tx *txn.Tx, a *Avatar) error {
	if !a.weaponID.Valid {
		return ErrNotWielding
	}
	tx.Emit(txn.Event{
		Type:     EventWeaponSwung,
		AvatarID: a.id,
		WeaponID: a.weaponID.UUID,
		Kind:     a.slot.KindName(),
	})
	return nil
}
