package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"weapon-shop/internal/db"
	"weapon-shop/internal/models"
	"weapon-shop/internal/txn"
)

type mockLogger struct{}

func (m *mockLogger) Info(msg string, fields ...zap.Field)  {}
func (m *mockLogger) Warn(msg string, fields ...zap.Field)  {}
func (m *mockLogger) Error(msg string, fields ...zap.Field) {}
func (m *mockLogger) Sync() error                           { return nil }

type mockPublisher struct {
	events []txn.Event
}

func (m *mockPublisher) Publish(events []txn.Event) {
	m.events = append(m.events, events...)
}

// fakeStore keeps objects in maps. Transactions come from conn so tests can
// assert commit and rollback through sqlmock.
type fakeStore struct {
	conn    *sql.DB
	shops   map[uuid.UUID]models.Shop
	avatars map[uuid.UUID]models.Avatar
	caps    map[uuid.UUID]models.Capability
	held    map[uuid.UUID]models.Weapon
	coins   map[string]uint64
	events  []models.Event
}

func newFakeStore(conn *sql.DB, users ...string) *fakeStore {
	f := &fakeStore{
		conn:    conn,
		shops:   make(map[uuid.UUID]models.Shop),
		avatars: make(map[uuid.UUID]models.Avatar),
		caps:    make(map[uuid.UUID]models.Capability),
		held:    make(map[uuid.UUID]models.Weapon),
		coins:   make(map[string]uint64),
	}
	for _, u := range users {
		f.coins[u] = 0
	}
	return f
}

var _ db.ObjectDB = (*fakeStore)(nil)

func (f *fakeStore) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return f.conn.BeginTx(ctx, nil)
}

func (f *fakeStore) GetShopForUpdate(ctx context.Context, _ *sql.Tx, shopID uuid.UUID) (models.Shop, error) {
	return f.GetShop(ctx, shopID)
}

func (f *fakeStore) GetShop(_ context.Context, shopID uuid.UUID) (models.Shop, error) {
	s, ok := f.shops[shopID]
	if !ok {
		return models.Shop{}, fmt.Errorf("shop %s: %w", shopID, db.ErrNotFound)
	}
	return s, nil
}

func (f *fakeStore) SaveShop(_ context.Context, _ *sql.Tx, shop models.Shop) error {
	for _, inv := range shop.Inventories {
		for _, id := range inv.WeaponIDs {
			delete(f.held, id)
		}
	}
	f.shops[shop.ID] = shop
	return nil
}

func (f *fakeStore) GetAvatarForUpdate(ctx context.Context, _ *sql.Tx, avatarID uuid.UUID) (models.Avatar, error) {
	return f.GetAvatar(ctx, avatarID)
}

func (f *fakeStore) GetAvatar(_ context.Context, avatarID uuid.UUID) (models.Avatar, error) {
	a, ok := f.avatars[avatarID]
	if !ok {
		return models.Avatar{}, fmt.Errorf("avatar %s: %w", avatarID, db.ErrNotFound)
	}
	return a, nil
}

func (f *fakeStore) SaveAvatar(_ context.Context, _ *sql.Tx, avatar models.Avatar) error {
	if avatar.WeaponID.Valid {
		delete(f.held, avatar.WeaponID.UUID)
	}
	f.avatars[avatar.ID] = avatar
	return nil
}

func (f *fakeStore) GetCapabilityForUpdate(_ context.Context, _ *sql.Tx, capID uuid.UUID) (models.Capability, error) {
	c, ok := f.caps[capID]
	if !ok {
		return models.Capability{}, fmt.Errorf("capability %s: %w", capID, db.ErrNotFound)
	}
	return c, nil
}

func (f *fakeStore) SaveCapability(_ context.Context, _ *sql.Tx, c models.Capability) error {
	f.caps[c.ID] = c
	return nil
}

func (f *fakeStore) GetHeldWeaponsForUpdate(_ context.Context, _ *sql.Tx, owner string, ids []uuid.UUID) ([]models.Weapon, error) {
	var out []models.Weapon
	for _, id := range ids {
		if w, ok := f.held[id]; ok && w.Owner == owner {
			out = append(out, w)
		}
	}
	return out, nil
}

func (f *fakeStore) GetHeldWeapons(_ context.Context, owner string) ([]models.Weapon, error) {
	var out []models.Weapon
	for _, w := range f.held {
		if w.Owner == owner {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (f *fakeStore) SaveHeldWeapon(_ context.Context, _ *sql.Tx, w models.Weapon) error {
	f.held[w.ID] = w
	return nil
}

func (f *fakeStore) IncreaseCoins(_ context.Context, _ *sql.Tx, username string, amount uint64) error {
	if _, ok := f.coins[username]; !ok {
		return fmt.Errorf("user '%s': %w", username, db.ErrNotFound)
	}
	f.coins[username] += amount
	return nil
}

func (f *fakeStore) GetUserCoins(_ context.Context, username string) (uint64, error) {
	c, ok := f.coins[username]
	if !ok {
		return 0, fmt.Errorf("user '%s': %w", username, db.ErrNotFound)
	}
	return c, nil
}

func (f *fakeStore) InsertEvents(_ context.Context, _ *sql.Tx, events []models.Event) error {
	f.events = append(f.events, events...)
	return nil
}

func (f *fakeStore) GetEvents(_ context.Context, avatarID uuid.UUID, limit int) ([]models.Event, error) {
	var out []models.Event
	for i := len(f.events) - 1; i >= 0 && len(out) < limit; i-- {
		if f.events[i].AvatarID == avatarID {
			out = append(out, f.events[i])
		}
	}
	return out, nil
}
