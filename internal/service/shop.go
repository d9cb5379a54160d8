package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"weapon-shop/internal/asset"
	"weapon-shop/internal/avatar"
	"weapon-shop/internal/db"
	"weapon-shop/internal/models"
	"weapon-shop/internal/shop"
	"weapon-shop/internal/txn"
	"weapon-shop/pkg"
)

var (
	ErrNotFound      = db.ErrNotFound
	ErrNotOwner      = errors.New("object is not owned by caller")
	ErrInvalidAmount = errors.New("invalid amount")
)

const maxEvents = 100

// CheckAmount rejects gold amounts the store cannot hold.
func CheckAmount(amount uint64) error {
	if amount > asset.MaxAmount {
		return fmt.Errorf("%w: %d exceeds %d", ErrInvalidAmount, amount, asset.MaxAmount)
	}
	return nil
}

// Flow is a customer flow run against one avatar and one shop.
type Flow func(tx *txn.Tx, a *avatar.Avatar, s *shop.Shop) error

// AdminOp runs under a shop's owner capability. Weapons the caller handed in
// arrive as handles; the op receives the ones it uses.
type AdminOp func(tx *txn.Tx, s *shop.Shop, c *shop.OwnerCap, weapons []asset.Handle) error

type Minted interface {
	asset.Asset
	txn.Resource
}

// MintOp mints one weapon of a concrete kind.
type MintOp func(tx *txn.Tx) (Minted, error)

// Publisher receives events of committed transactions.
type Publisher interface {
	Publish(events []txn.Event)
}

type ShopCreated struct {
	ShopID uuid.UUID
	CapID  uuid.UUID
}

type ShopInfo struct {
	ID          uuid.UUID
	Earnings    uint64
	Inventories []InventoryInfo
}

type InventoryInfo struct {
	Kind  string
	Price uint64
	Stock int
}

type Wallet struct {
	Coins   uint64
	Weapons []models.Weapon
}

type ShopService interface {
	CreateShop(ctx context.Context, caller txn.Principal) (ShopCreated, error)

	CreateAvatar(ctx context.Context, caller txn.Principal, name string, initialGold uint64, recipient txn.Principal) (uuid.UUID, error)

	MintWeapon(ctx context.Context, caller txn.Principal, mint MintOp) (uuid.UUID, error)

	Admin(ctx context.Context, caller txn.Principal, shopID, capID uuid.UUID, weaponIDs []uuid.UUID, op AdminOp) error

	WithdrawEarnings(ctx context.Context, caller txn.Principal, shopID, capID uuid.UUID) (uint64, error)

	TransferCap(ctx context.Context, caller txn.Principal, capID uuid.UUID, to txn.Principal) error

	Execute(ctx context.Context, caller txn.Principal, shopID, avatarID uuid.UUID, flow Flow) error

	GetAvatar(ctx context.Context, avatarID uuid.UUID) (models.Avatar, error)

	GetShop(ctx context.Context, shopID uuid.UUID) (ShopInfo, error)

	GetEvents(ctx context.Context, avatarID uuid.UUID) ([]models.Event, error)

	GetWallet(ctx context.Context, caller txn.Principal) (Wallet, error)
}

type shopService struct {
	dbProv db.ObjectDB
	log    pkg.Logger
	feed   Publisher
}

func NewShopService(dbProv db.ObjectDB, log pkg.Logger, feed Publisher) ShopService {
	return &shopService{
		dbProv: dbProv,
		log:    log,
		feed:   feed,
	}
}

// inTx runs fn inside one database transaction. Nothing fn wrote survives an
// error; events are published only after commit.
func (s *shopService) inTx(ctx context.Context, fn func(sqlTx *sql.Tx) (*txn.Tx, error)) error {
	sqlTx, err := s.dbProv.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer func() { _ = sqlTx.Rollback() }()

	tx, err := fn(sqlTx)
	if err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tx: %w", err)
	}
	if s.feed != nil && tx != nil {
		s.feed.Publish(tx.Events())
	}
	return nil
}

// persist writes pending transfers and buffered events of a finished tx.
func (s *shopService) persist(ctx context.Context, sqlTx *sql.Tx, tx *txn.Tx) error {
	for _, tr := range tx.Transfers() {
		var err error
		switch r := tr.Resource.(type) {
		case *avatar.Avatar:
			m := r.Snapshot()
			m.Owner = string(tr.To)
			err = s.dbProv.SaveAvatar(ctx, sqlTx, m)
		case *shop.OwnerCap:
			err = s.dbProv.SaveCapability(ctx, sqlTx, models.Capability{ID: r.ID(), ShopID: r.ShopID(), Owner: string(tr.To)})
		case *asset.Balance:
			err = s.dbProv.IncreaseCoins(ctx, sqlTx, string(tr.To), r.Value())
		case asset.Asset:
			err = s.dbProv.SaveHeldWeapon(ctx, sqlTx, models.Weapon{ID: r.ID(), Kind: r.KindName(), Owner: string(tr.To)})
		default:
			err = fmt.Errorf("cannot transfer %T", tr.Resource)
		}
		if err != nil {
			return err
		}
	}
	events := make([]models.Event, 0, len(tx.Events()))
	for _, ev := range tx.Events() {
		events = append(events, models.Event{
			TxID:     ev.TxID,
			Type:     ev.Type,
			AvatarID: ev.AvatarID,
			WeaponID: ev.WeaponID,
			Kind:     ev.Kind,
			At:       ev.At,
		})
	}
	if len(events) == 0 {
		return nil
	}
	return s.dbProv.InsertEvents(ctx, sqlTx, events)
}

// authorize loads the capability and checks the caller holds it. Any miss is
// reported as shop.ErrUnauthorized.
func (s *shopService) authorize(ctx context.Context, sqlTx *sql.Tx, caller txn.Principal, capID uuid.UUID) (*shop.OwnerCap, error) {
	row, err := s.dbProv.GetCapabilityForUpdate(ctx, sqlTx, capID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, shop.ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}
	if row.Owner != string(caller) {
		return nil, shop.ErrUnauthorized
	}
	return shop.RestoreCap(row), nil
}

func (s *shopService) CreateShop(ctx context.Context, caller txn.Principal) (ShopCreated, error) {
	var created ShopCreated
	err := s.inTx(ctx, func(sqlTx *sql.Tx) (*txn.Tx, error) {
		tx := txn.New(caller)
		sh, c, err := shop.New(tx)
		if err != nil {
			return nil, err
		}
		if err := tx.TransferTo(c, caller); err != nil {
			return nil, err
		}
		if err := tx.Finish(); err != nil {
			return nil, err
		}
		if err := s.dbProv.SaveShop(ctx, sqlTx, sh.Snapshot()); err != nil {
			return nil, err
		}
		if err := s.persist(ctx, sqlTx, tx); err != nil {
			return nil, err
		}
		created = ShopCreated{ShopID: sh.ID(), CapID: c.ID()}
		return tx, nil
	})
	if err != nil {
		s.log.Error("failed to create shop", zap.String("caller", string(caller)), zap.Error(err))
		return ShopCreated{}, err
	}
	s.log.Info("Shop created", zap.String("caller", string(caller)), zap.Stringer("shopID", created.ShopID))
	return created, nil
}

func (s *shopService) CreateAvatar(ctx context.Context, caller txn.Principal, name string, initialGold uint64, recipient txn.Principal) (uuid.UUID, error) {
	if recipient == "" {
		recipient = caller
	}
	if err := CheckAmount(initialGold); err != nil {
		s.fail("failed to create avatar", err, zap.String("caller", string(caller)), zap.String("name", name))
		return uuid.Nil, err
	}
	var id uuid.UUID
	err := s.inTx(ctx, func(sqlTx *sql.Tx) (*txn.Tx, error) {
		tx := txn.New(caller)
		gold, err := asset.Mint(tx, initialGold)
		if err != nil {
			return nil, err
		}
		a, err := avatar.New(tx, name, gold)
		if err != nil {
			return nil, err
		}
		if err := tx.TransferTo(a, recipient); err != nil {
			return nil, err
		}
		if err := tx.Finish(); err != nil {
			return nil, err
		}
		if err := s.persist(ctx, sqlTx, tx); err != nil {
			return nil, err
		}
		id = a.ID()
		return tx, nil
	})
	if err != nil {
		s.fail("failed to create avatar", err, zap.String("caller", string(caller)), zap.String("name", name))
		return uuid.Nil, err
	}
	s.log.Info("Avatar created",
		zap.Stringer("avatarID", id),
		zap.String("recipient", string(recipient)),
		zap.Uint64("gold", initialGold))
	return id, nil
}

func (s *shopService) MintWeapon(ctx context.Context, caller txn.Principal, mint MintOp) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.inTx(ctx, func(sqlTx *sql.Tx) (*txn.Tx, error) {
		tx := txn.New(caller)
		w, err := mint(tx)
		if err != nil {
			return nil, err
		}
		if err := tx.TransferTo(w, caller); err != nil {
			return nil, err
		}
		if err := tx.Finish(); err != nil {
			return nil, err
		}
		if err := s.persist(ctx, sqlTx, tx); err != nil {
			return nil, err
		}
		id = w.ID()
		return tx, nil
	})
	if err != nil {
		s.log.Error("failed to mint weapon", zap.String("caller", string(caller)), zap.Error(err))
		return uuid.Nil, err
	}
	return id, nil
}

func (s *shopService) Admin(ctx context.Context, caller txn.Principal, shopID, capID uuid.UUID, weaponIDs []uuid.UUID, op AdminOp) error {
	err := s.inTx(ctx, func(sqlTx *sql.Tx) (*txn.Tx, error) {
		shopRow, err := s.dbProv.GetShopForUpdate(ctx, sqlTx, shopID)
		if err != nil {
			return nil, err
		}
		c, err := s.authorize(ctx, sqlTx, caller, capID)
		if err != nil {
			return nil, err
		}
		handles, err := s.receiveWeapons(ctx, sqlTx, caller, weaponIDs)
		if err != nil {
			return nil, err
		}

		sh := shop.Restore(shopRow)
		tx := txn.New(caller)
		if err := op(tx, sh, c, handles); err != nil {
			return nil, err
		}
		if err := tx.Finish(); err != nil {
			return nil, err
		}
		if err := s.dbProv.SaveShop(ctx, sqlTx, sh.Snapshot()); err != nil {
			return nil, err
		}
		return tx, s.persist(ctx, sqlTx, tx)
	})
	if err != nil {
		s.fail("admin operation failed", err, zap.Stringer("shopID", shopID), zap.String("caller", string(caller)))
		return err
	}
	s.log.Info("Admin operation applied", zap.Stringer("shopID", shopID), zap.String("caller", string(caller)))
	return nil
}

func (s *shopService) receiveWeapons(ctx context.Context, sqlTx *sql.Tx, caller txn.Principal, ids []uuid.UUID) ([]asset.Handle, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	seen := make(map[uuid.UUID]struct{}, len(ids))
	unique := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	rows, err := s.dbProv.GetHeldWeaponsForUpdate(ctx, sqlTx, string(caller), unique)
	if err != nil {
		return nil, err
	}
	if len(rows) != len(unique) {
		return nil, fmt.Errorf("%d of %d weapons held by %s: %w", len(rows), len(unique), caller, ErrNotFound)
	}
	handles := make([]asset.Handle, 0, len(rows))
	for _, w := range rows {
		handles = append(handles, asset.Handle{WeaponID: w.ID, Kind: w.Kind})
	}
	return handles, nil
}

func (s *shopService) WithdrawEarnings(ctx context.Context, caller txn.Principal, shopID, capID uuid.UUID) (uint64, error) {
	var amount uint64
	err := s.inTx(ctx, func(sqlTx *sql.Tx) (*txn.Tx, error) {
		shopRow, err := s.dbProv.GetShopForUpdate(ctx, sqlTx, shopID)
		if err != nil {
			return nil, err
		}
		c, err := s.authorize(ctx, sqlTx, caller, capID)
		if err != nil {
			return nil, err
		}

		sh := shop.Restore(shopRow)
		tx := txn.New(caller)
		bal, err := shop.WithdrawEarnings(tx, sh, c)
		if err != nil {
			return nil, err
		}
		amount = bal.Value()
		if err := tx.TransferTo(bal, caller); err != nil {
			return nil, err
		}
		if err := tx.Finish(); err != nil {
			return nil, err
		}
		if err := s.dbProv.SaveShop(ctx, sqlTx, sh.Snapshot()); err != nil {
			return nil, err
		}
		return tx, s.persist(ctx, sqlTx, tx)
	})
	if err != nil {
		s.fail("failed to withdraw earnings", err, zap.Stringer("shopID", shopID), zap.String("caller", string(caller)))
		return 0, err
	}
	s.log.Info("Earnings withdrawn", zap.Stringer("shopID", shopID), zap.Uint64("amount", amount))
	return amount, nil
}

func (s *shopService) TransferCap(ctx context.Context, caller txn.Principal, capID uuid.UUID, to txn.Principal) error {
	err := s.inTx(ctx, func(sqlTx *sql.Tx) (*txn.Tx, error) {
		c, err := s.authorize(ctx, sqlTx, caller, capID)
		if err != nil {
			return nil, err
		}
		tx := txn.New(caller)
		if err := tx.Hold(c); err != nil {
			return nil, err
		}
		if err := tx.TransferTo(c, to); err != nil {
			return nil, err
		}
		if err := tx.Finish(); err != nil {
			return nil, err
		}
		return tx, s.persist(ctx, sqlTx, tx)
	})
	if err != nil {
		s.fail("failed to transfer capability", err, zap.Stringer("capID", capID), zap.String("to", string(to)))
		return err
	}
	s.log.Info("Capability transferred", zap.Stringer("capID", capID), zap.String("to", string(to)))
	return nil
}

// Execute runs a customer flow atomically: the shop and avatar rows stay
// locked for the whole flow and nothing is written unless it succeeds.
func (s *shopService) Execute(ctx context.Context, caller txn.Principal, shopID, avatarID uuid.UUID, flow Flow) error {
	err := s.inTx(ctx, func(sqlTx *sql.Tx) (*txn.Tx, error) {
		shopRow, err := s.dbProv.GetShopForUpdate(ctx, sqlTx, shopID)
		if err != nil {
			return nil, err
		}
		avatarRow, err := s.dbProv.GetAvatarForUpdate(ctx, sqlTx, avatarID)
		if err != nil {
			return nil, err
		}
		if avatarRow.Owner != string(caller) {
			return nil, ErrNotOwner
		}

		sh := shop.Restore(shopRow)
		av := avatar.Restore(avatarRow)
		tx := txn.New(caller)
		if err := flow(tx, av, sh); err != nil {
			return nil, err
		}
		if err := tx.Finish(); err != nil {
			return nil, err
		}

		if err := s.dbProv.SaveShop(ctx, sqlTx, sh.Snapshot()); err != nil {
			return nil, err
		}
		saved := av.Snapshot()
		saved.Owner = avatarRow.Owner
		if err := s.dbProv.SaveAvatar(ctx, sqlTx, saved); err != nil {
			return nil, err
		}
		return tx, s.persist(ctx, sqlTx, tx)
	})
	if err != nil {
		s.fail("flow failed", err,
			zap.Stringer("shopID", shopID),
			zap.Stringer("avatarID", avatarID),
			zap.String("caller", string(caller)))
		return err
	}
	s.log.Info("Flow completed", zap.Stringer("shopID", shopID), zap.Stringer("avatarID", avatarID))
	return nil
}

func (s *shopService) GetAvatar(ctx context.Context, avatarID uuid.UUID) (models.Avatar, error) {
	a, err := s.dbProv.GetAvatar(ctx, avatarID)
	if err != nil {
		s.fail("failed to get avatar", err, zap.Stringer("avatarID", avatarID))
		return models.Avatar{}, err
	}
	return a, nil
}

func (s *shopService) GetShop(ctx context.Context, shopID uuid.UUID) (ShopInfo, error) {
	row, err := s.dbProv.GetShop(ctx, shopID)
	if err != nil {
		s.fail("failed to get shop", err, zap.Stringer("shopID", shopID))
		return ShopInfo{}, err
	}
	info := ShopInfo{ID: row.ID, Earnings: row.Earnings}
	for _, inv := range row.Inventories {
		info.Inventories = append(info.Inventories, InventoryInfo{
			Kind:  inv.Kind,
			Price: inv.Price,
			Stock: len(inv.WeaponIDs),
		})
	}
	return info, nil
}

func (s *shopService) GetEvents(ctx context.Context, avatarID uuid.UUID) ([]models.Event, error) {
	events, err := s.dbProv.GetEvents(ctx, avatarID, maxEvents)
	if err != nil {
		s.log.Error("failed to get events", zap.Stringer("avatarID", avatarID), zap.Error(err))
		return nil, err
	}
	return events, nil
}

func (s *shopService) GetWallet(ctx context.Context, caller txn.Principal) (Wallet, error) {
	coins, err := s.dbProv.GetUserCoins(ctx, string(caller))
	if err != nil {
		s.fail("failed to get wallet coins", err, zap.String("caller", string(caller)))
		return Wallet{}, err
	}
	weapons, err := s.dbProv.GetHeldWeapons(ctx, string(caller))
	if err != nil {
		s.log.Error("failed to get held weapons", zap.String("caller", string(caller)), zap.Error(err))
		return Wallet{}, err
	}
	return Wallet{Coins: coins, Weapons: weapons}, nil
}

// fail logs rejected requests at warn level and everything else as errors.
func (s *shopService) fail(msg string, err error, fields ...zap.Field) {
	fields = append(fields, zap.Error(err))
	if IsRejection(err) {
		s.log.Warn(msg, fields...)
		return
	}
	s.log.Error(msg, fields...)
}

var rejections = []error{
	ErrNotFound,
	ErrNotOwner,
	ErrInvalidAmount,
	asset.ErrInsufficientFunds,
	asset.ErrBalanceOverflow,
	asset.ErrWrongWeaponKind,
	shop.ErrOutOfStock,
	shop.ErrUnknownKind,
	shop.ErrKindAlreadyRegistered,
	shop.ErrAmountMismatch,
	shop.ErrShopInsolvent,
	shop.ErrUnauthorized,
	avatar.ErrAlreadyWielding,
	avatar.ErrNotWielding,
	avatar.ErrInvalidName,
}

// IsRejection reports whether err is a precondition failure of the request
// rather than a fault of the service.
func IsRejection(err error) bool {
	for _, target := range rejections {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
