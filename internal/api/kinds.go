package api

import (
	"weapon-shop/internal/asset"
	"weapon-shop/internal/avatar"
	"weapon-shop/internal/market"
	"weapon-shop/internal/service"
	"weapon-shop/internal/shop"
	"weapon-shop/internal/txn"
)

// maxMint bounds how many weapons one restock request may mint.
const maxMint = 100

// kindOps binds the generic domain operations of one weapon kind to the
// non-generic closures the service runs.
type kindOps struct {
	mint     service.MintOp
	register func(price uint64) service.AdminOp
	setPrice func(price uint64) service.AdminOp
	restock  func(fresh int) service.AdminOp
	buy      func(amount uint64) service.Flow
	sell     service.Flow
	rent     func(amount uint64) service.Flow
}

func opsFor[K asset.Kind]() kindOps {
	return kindOps{
		mint: func(tx *txn.Tx) (service.Minted, error) {
			return asset.MintWeapon[K](tx)
		},
		register: func(price uint64) service.AdminOp {
			return func(_ *txn.Tx, s *shop.Shop, c *shop.OwnerCap, _ []asset.Handle) error {
				if err := service.CheckAmount(price); err != nil {
					return err
				}
				return shop.RegisterKind[K](s, c, price)
			}
		},
		setPrice: func(price uint64) service.AdminOp {
			return func(_ *txn.Tx, s *shop.Shop, c *shop.OwnerCap, _ []asset.Handle) error {
				if err := service.CheckAmount(price); err != nil {
					return err
				}
				return shop.SetPrice[K](s, c, price)
			}
		},
		restock: func(fresh int) service.AdminOp {
			return func(tx *txn.Tx, s *shop.Shop, c *shop.OwnerCap, weapons []asset.Handle) error {
				for _, h := range weapons {
					w, err := asset.Receive[K](tx, h)
					if err != nil {
						return err
					}
					if err := shop.Restock(tx, s, c, w); err != nil {
						return err
					}
				}
				for i := 0; i < fresh; i++ {
					w, err := asset.MintWeapon[K](tx)
					if err != nil {
						return err
					}
					if err := shop.Restock(tx, s, c, w); err != nil {
						return err
					}
				}
				return nil
			}
		},
		buy: func(amount uint64) service.Flow {
			return func(tx *txn.Tx, a *avatar.Avatar, s *shop.Shop) error {
				if err := service.CheckAmount(amount); err != nil {
					return err
				}
				return market.Buy[K](tx, a, amount, s)
			}
		},
		sell: func(tx *txn.Tx, a *avatar.Avatar, s *shop.Shop) error {
			return market.Sell[K](tx, a, s)
		},
		rent: func(amount uint64) service.Flow {
			return func(tx *txn.Tx, a *avatar.Avatar, s *shop.Shop) error {
				if err := service.CheckAmount(amount); err != nil {
					return err
				}
				return market.Rent[K](tx, a, amount, s)
			}
		},
	}
}

func tradeFor[Old, New asset.Kind]() func(amount uint64) service.Flow {
	return func(amount uint64) service.Flow {
		return func(tx *txn.Tx, a *avatar.Avatar, s *shop.Shop) error {
			if err := service.CheckAmount(amount); err != nil {
				return err
			}
			return market.Trade[Old, New](tx, a, amount, s)
		}
	}
}

var kinds = map[string]kindOps{
	asset.NameOf[asset.Axe]():   opsFor[asset.Axe](),
	asset.NameOf[asset.Sword](): opsFor[asset.Sword](),
	asset.NameOf[asset.Bow]():   opsFor[asset.Bow](),
}

type tradePair struct{ from, to string }

// Every ordered pair of known kinds needs its own instantiation.
var trades = map[tradePair]func(amount uint64) service.Flow{
	{"axe", "axe"}:     tradeFor[asset.Axe, asset.Axe](),
	{"axe", "sword"}:   tradeFor[asset.Axe, asset.Sword](),
	{"axe", "bow"}:     tradeFor[asset.Axe, asset.Bow](),
	{"sword", "axe"}:   tradeFor[asset.Sword, asset.Axe](),
	{"sword", "sword"}: tradeFor[asset.Sword, asset.Sword](),
	{"sword", "bow"}:   tradeFor[asset.Sword, asset.Bow](),
	{"bow", "axe"}:     tradeFor[asset.Bow, asset.Axe](),
	{"bow", "sword"}:   tradeFor[asset.Bow, asset.Sword](),
	{"bow", "bow"}:     tradeFor[asset.Bow, asset.Bow](),
}
