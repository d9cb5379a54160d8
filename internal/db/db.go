package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"weapon-shop/internal/config"
	"weapon-shop/internal/models"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)

// ObjectDB is the host object store. Methods taking a *sql.Tx lock or write
// inside the caller's transaction; the rest are plain reads.
type ObjectDB interface {
	BeginTx(ctx context.Context) (*sql.Tx, error)
	GetShopForUpdate(ctx context.Context, tx *sql.Tx, shopID uuid.UUID) (models.Shop, error)
	SaveShop(ctx context.Context, tx *sql.Tx, shop models.Shop) error
	GetAvatarForUpdate(ctx context.Context, tx *sql.Tx, avatarID uuid.UUID) (models.Avatar, error)
	SaveAvatar(ctx context.Context, tx *sql.Tx, avatar models.Avatar) error
	GetCapabilityForUpdate(ctx context.Context, tx *sql.Tx, capID uuid.UUID) (models.Capability, error)
	SaveCapability(ctx context.Context, tx *sql.Tx, c models.Capability) error
	GetHeldWeaponsForUpdate(ctx context.Context, tx *sql.Tx, owner string, ids []uuid.UUID) ([]models.Weapon, error)
	SaveHeldWeapon(ctx context.Context, tx *sql.Tx, w models.Weapon) error
	IncreaseCoins(ctx context.Context, tx *sql.Tx, username string, amount uint64) error
	InsertEvents(ctx context.Context, tx *sql.Tx, events []models.Event) error

	GetShop(ctx context.Context, shopID uuid.UUID) (models.Shop, error)
	GetAvatar(ctx context.Context, avatarID uuid.UUID) (models.Avatar, error)
	GetEvents(ctx context.Context, avatarID uuid.UUID, limit int) ([]models.Event, error)
	GetUserCoins(ctx context.Context, username string) (uint64, error)
	GetHeldWeapons(ctx context.Context, owner string) ([]models.Weapon, error)
}

type AuthDB interface {
	GetUserAuthData(ctx context.Context, username string) (int, string, error)
	CreateUser(ctx context.Context, username, passwordHash string) (int, error)
}

func Connect(cfg *config.Config) (*sql.DB, error) {
	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.DatabaseHost,
		cfg.DatabasePort,
		cfg.DatabaseUser,
		cfg.DatabasePassword,
		cfg.DatabaseName,
		cfg.DatabaseSSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
