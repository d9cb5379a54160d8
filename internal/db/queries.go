package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"weapon-shop/internal/models"
)

const (
	holderShop      = "shop"
	holderAvatar    = "avatar"
	holderPrincipal = "principal"

	uniqueViolation = "23505"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type objectDBImplementation struct {
	db *sql.DB
}

func NewObjectDB(dbConn *sql.DB) ObjectDB {
	return &objectDBImplementation{
		db: dbConn,
	}
}

type authDBImplementation struct {
	db *sql.DB
}

func NewAuthDB(dbConn *sql.DB) AuthDB {
	return &authDBImplementation{
		db: dbConn,
	}
}

func (a *authDBImplementation) GetUserAuthData(ctx context.Context, username string) (int, string, error) {
	var (
		id           int
		passwordHash string
	)
	err := a.db.QueryRowContext(ctx, "SELECT id, password_hash FROM users WHERE username=$1", username).
		Scan(&id, &passwordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, "", fmt.Errorf("user '%s': %w", username, ErrNotFound)
	}
	if err != nil {
		return 0, "", fmt.Errorf("failed to get user auth data for '%s': %w", username, err)
	}
	return id, passwordHash, nil
}

func (a *authDBImplementation) CreateUser(ctx context.Context, username, passwordHash string) (int, error) {
	var id int
	err := a.db.QueryRowContext(ctx, "INSERT INTO users (username, password_hash) VALUES ($1, $2) RETURNING id",
		username, passwordHash).Scan(&id)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return 0, fmt.Errorf("user '%s': %w", username, ErrAlreadyExists)
		}
		return 0, fmt.Errorf("failed to create user '%s': %w", username, err)
	}
	return id, nil
}

func (c *objectDBImplementation) BeginTx(ctx context.Context) (*sql.Tx, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return tx, nil
}

func (c *objectDBImplementation) GetShopForUpdate(ctx context.Context, tx *sql.Tx, shopID uuid.UUID) (models.Shop, error) {
	return getShop(ctx, tx, shopID, true)
}

// GetShop reads the shop and its stock from one snapshot, so a concurrent
// restock cannot show weapons of a kind the inventory query missed.
func (c *objectDBImplementation) GetShop(ctx context.Context, shopID uuid.UUID) (models.Shop, error) {
	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return models.Shop{}, fmt.Errorf("failed to begin read of shop %s: %w", shopID, err)
	}
	defer func() { _ = tx.Rollback() }()

	shop, err := getShop(ctx, tx, shopID, false)
	if err != nil {
		return models.Shop{}, err
	}
	if err := tx.Commit(); err != nil {
		return models.Shop{}, fmt.Errorf("failed to finish read of shop %s: %w", shopID, err)
	}
	return shop, nil
}

func getShop(ctx context.Context, q querier, shopID uuid.UUID, lock bool) (models.Shop, error) {
	shop := models.Shop{ID: shopID}
	query := "SELECT cap_id, earnings FROM shops WHERE id=$1"
	if lock {
		query += " FOR UPDATE"
	}
	err := q.QueryRowContext(ctx, query, shopID).Scan(&shop.CapID, &shop.Earnings)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Shop{}, fmt.Errorf("shop %s: %w", shopID, ErrNotFound)
	}
	if err != nil {
		return models.Shop{}, fmt.Errorf("failed to get shop %s: %w", shopID, err)
	}

	rows, err := q.QueryContext(ctx, "SELECT kind, price FROM inventories WHERE shop_id=$1 ORDER BY kind", shopID)
	if err != nil {
		return models.Shop{}, fmt.Errorf("failed to query inventories: %w", err)
	}
	defer rows.Close()
	index := make(map[string]int)
	for rows.Next() {
		var inv models.Inventory
		if err := rows.Scan(&inv.Kind, &inv.Price); err != nil {
			return models.Shop{}, fmt.Errorf("failed to scan inventory: %w", err)
		}
		index[inv.Kind] = len(shop.Inventories)
		shop.Inventories = append(shop.Inventories, inv)
	}
	if err := rows.Err(); err != nil {
		return models.Shop{}, fmt.Errorf("failed to read inventories: %w", err)
	}

	stock, err := q.QueryContext(ctx,
		"SELECT id, kind FROM weapons WHERE holder_type='shop' AND holder_id=$1 ORDER BY id", shopID.String())
	if err != nil {
		return models.Shop{}, fmt.Errorf("failed to query stock: %w", err)
	}
	defer stock.Close()
	for stock.Next() {
		var (
			id   uuid.UUID
			kind string
		)
		if err := stock.Scan(&id, &kind); err != nil {
			return models.Shop{}, fmt.Errorf("failed to scan stock: %w", err)
		}
		i, ok := index[kind]
		if !ok {
			return models.Shop{}, fmt.Errorf("shop %s stocks weapon %s of unregistered kind %q", shopID, id, kind)
		}
		shop.Inventories[i].WeaponIDs = append(shop.Inventories[i].WeaponIDs, id)
	}
	if err := stock.Err(); err != nil {
		return models.Shop{}, fmt.Errorf("failed to read stock: %w", err)
	}
	return shop, nil
}

func (c *objectDBImplementation) SaveShop(ctx context.Context, tx *sql.Tx, shop models.Shop) error {
	_, err := tx.ExecContext(ctx, `
INSERT INTO shops (id, cap_id, earnings) VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE SET earnings = EXCLUDED.earnings`,
		shop.ID, shop.CapID, shop.Earnings)
	if err != nil {
		return fmt.Errorf("failed to save shop %s: %w", shop.ID, err)
	}
	for _, inv := range shop.Inventories {
		_, err := tx.ExecContext(ctx, `
INSERT INTO inventories (shop_id, kind, price) VALUES ($1, $2, $3)
ON CONFLICT (shop_id, kind) DO UPDATE SET price = EXCLUDED.price`,
			shop.ID, inv.Kind, inv.Price)
		if err != nil {
			return fmt.Errorf("failed to save %s inventory: %w", inv.Kind, err)
		}
		if len(inv.WeaponIDs) == 0 {
			continue
		}
		_, err = tx.ExecContext(ctx, `
INSERT INTO weapons (id, kind, holder_type, holder_id)
SELECT unnest($1::uuid[]), $2, 'shop', $3
ON CONFLICT (id) DO UPDATE SET holder_type = EXCLUDED.holder_type, holder_id = EXCLUDED.holder_id`,
			pq.Array(idStrings(inv.WeaponIDs)), inv.Kind, shop.ID.String())
		if err != nil {
			return fmt.Errorf("failed to stock %s weapons: %w", inv.Kind, err)
		}
	}
	return nil
}

func (c *objectDBImplementation) GetAvatarForUpdate(ctx context.Context, tx *sql.Tx, avatarID uuid.UUID) (models.Avatar, error) {
	return getAvatar(ctx, tx, avatarID, true)
}

func (c *objectDBImplementation) GetAvatar(ctx context.Context, avatarID uuid.UUID) (models.Avatar, error) {
	return getAvatar(ctx, c.db, avatarID, false)
}

func getAvatar(ctx context.Context, q querier, avatarID uuid.UUID, lock bool) (models.Avatar, error) {
	avatar := models.Avatar{ID: avatarID}
	query := "SELECT owner, name, gold, weapon_id, weapon_kind FROM avatars WHERE id=$1"
	if lock {
		query += " FOR UPDATE"
	}
	var kind sql.NullString
	err := q.QueryRowContext(ctx, query, avatarID).
		Scan(&avatar.Owner, &avatar.Name, &avatar.Gold, &avatar.WeaponID, &kind)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Avatar{}, fmt.Errorf("avatar %s: %w", avatarID, ErrNotFound)
	}
	if err != nil {
		return models.Avatar{}, fmt.Errorf("failed to get avatar %s: %w", avatarID, err)
	}
	avatar.WeaponKind = kind.String
	return avatar, nil
}

func (c *objectDBImplementation) SaveAvatar(ctx context.Context, tx *sql.Tx, avatar models.Avatar) error {
	kind := sql.NullString{String: avatar.WeaponKind, Valid: avatar.WeaponID.Valid}
	_, err := tx.ExecContext(ctx, `
INSERT INTO avatars (id, owner, name, gold, weapon_id, weapon_kind) VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO UPDATE SET owner = EXCLUDED.owner, gold = EXCLUDED.gold,
    weapon_id = EXCLUDED.weapon_id, weapon_kind = EXCLUDED.weapon_kind`,
		avatar.ID, avatar.Owner, avatar.Name, avatar.Gold, avatar.WeaponID, kind)
	if err != nil {
		return fmt.Errorf("failed to save avatar %s: %w", avatar.ID, err)
	}
	if avatar.WeaponID.Valid {
		return upsertWeapon(ctx, tx, avatar.WeaponID.UUID, avatar.WeaponKind, holderAvatar, avatar.ID.String())
	}
	return nil
}

func (c *objectDBImplementation) GetCapabilityForUpdate(ctx context.Context, tx *sql.Tx, capID uuid.UUID) (models.Capability, error) {
	capability := models.Capability{ID: capID}
	err := tx.QueryRowContext(ctx, "SELECT shop_id, owner FROM capabilities WHERE id=$1 FOR UPDATE", capID).
		Scan(&capability.ShopID, &capability.Owner)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Capability{}, fmt.Errorf("capability %s: %w", capID, ErrNotFound)
	}
	if err != nil {
		return models.Capability{}, fmt.Errorf("failed to get capability %s: %w", capID, err)
	}
	return capability, nil
}

func (c *objectDBImplementation) SaveCapability(ctx context.Context, tx *sql.Tx, capability models.Capability) error {
	_, err := tx.ExecContext(ctx, `
INSERT INTO capabilities (id, shop_id, owner) VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE SET owner = EXCLUDED.owner`,
		capability.ID, capability.ShopID, capability.Owner)
	if err != nil {
		return fmt.Errorf("failed to save capability %s: %w", capability.ID, err)
	}
	return nil
}

func (c *objectDBImplementation) GetHeldWeaponsForUpdate(ctx context.Context, tx *sql.Tx, owner string, ids []uuid.UUID) ([]models.Weapon, error) {
	rows, err := tx.QueryContext(ctx, `
SELECT id, kind FROM weapons
WHERE holder_type='principal' AND holder_id=$1 AND id = ANY($2::uuid[])
FOR UPDATE`, owner, pq.Array(idStrings(ids)))
	if err != nil {
		return nil, fmt.Errorf("failed to query held weapons: %w", err)
	}
	return scanWeapons(rows, owner)
}

func (c *objectDBImplementation) GetHeldWeapons(ctx context.Context, owner string) ([]models.Weapon, error) {
	rows, err := c.db.QueryContext(ctx,
		"SELECT id, kind FROM weapons WHERE holder_type='principal' AND holder_id=$1 ORDER BY id", owner)
	if err != nil {
		return nil, fmt.Errorf("failed to query held weapons: %w", err)
	}
	return scanWeapons(rows, owner)
}

func scanWeapons(rows *sql.Rows, owner string) ([]models.Weapon, error) {
	defer rows.Close()
	var weapons []models.Weapon
	for rows.Next() {
		w := models.Weapon{Owner: owner}
		if err := rows.Scan(&w.ID, &w.Kind); err != nil {
			return nil, fmt.Errorf("failed to scan weapon: %w", err)
		}
		weapons = append(weapons, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read weapons: %w", err)
	}
	return weapons, nil
}

func (c *objectDBImplementation) SaveHeldWeapon(ctx context.Context, tx *sql.Tx, w models.Weapon) error {
	return upsertWeapon(ctx, tx, w.ID, w.Kind, holderPrincipal, w.Owner)
}

func upsertWeapon(ctx context.Context, tx *sql.Tx, id uuid.UUID, kind, holderType, holderID string) error {
	_, err := tx.ExecContext(ctx, `
INSERT INTO weapons (id, kind, holder_type, holder_id) VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE SET holder_type = EXCLUDED.holder_type, holder_id = EXCLUDED.holder_id`,
		id, kind, holderType, holderID)
	if err != nil {
		return fmt.Errorf("failed to move weapon %s to %s %s: %w", id, holderType, holderID, err)
	}
	return nil
}

func (c *objectDBImplementation) IncreaseCoins(ctx context.Context, tx *sql.Tx, username string, amount uint64) error {
	res, err := tx.ExecContext(ctx, "UPDATE users SET coins = coins + $1 WHERE username=$2", amount, username)
	if err != nil {
		return fmt.Errorf("failed to increase coins: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("user '%s': %w", username, ErrNotFound)
	}
	return nil
}

func (c *objectDBImplementation) InsertEvents(ctx context.Context, tx *sql.Tx, events []models.Event) error {
	for _, ev := range events {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO events (tx_id, type, avatar_id, weapon_id, kind, created_at) VALUES ($1, $2, $3, $4, $5, $6)",
			ev.TxID, ev.Type, ev.AvatarID, ev.WeaponID, ev.Kind, ev.At)
		if err != nil {
			return fmt.Errorf("failed to insert %s event: %w", ev.Type, err)
		}
	}
	return nil
}

func (c *objectDBImplementation) GetEvents(ctx context.Context, avatarID uuid.UUID, limit int) ([]models.Event, error) {
	rows, err := c.db.QueryContext(ctx, `
SELECT id, tx_id, type, avatar_id, weapon_id, kind, created_at
FROM events WHERE avatar_id=$1 ORDER BY id DESC LIMIT $2`, avatarID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var ev models.Event
		if err := rows.Scan(&ev.ID, &ev.TxID, &ev.Type, &ev.AvatarID, &ev.WeaponID, &ev.Kind, &ev.At); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}
	return events, nil
}

func (c *objectDBImplementation) GetUserCoins(ctx context.Context, username string) (uint64, error) {
	var coins uint64
	err := c.db.QueryRowContext(ctx, "SELECT coins FROM users WHERE username=$1", username).Scan(&coins)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("user '%s': %w", username, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get user coins: %w", err)
	}
	return coins, nil
}

func idStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
