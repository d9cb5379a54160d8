package api

import "github.com/labstack/echo/v4"

type ServerInterface interface {
	PostApiAuth(ctx echo.Context) error
	PostApiShops(ctx echo.Context) error
	PostApiAvatars(ctx echo.Context) error
	GetApiAvatar(ctx echo.Context) error
	GetApiAvatarEvents(ctx echo.Context) error
	GetApiShop(ctx echo.Context) error
	GetApiWallet(ctx echo.Context) error
	PostApiWeapon(ctx echo.Context) error
	PostApiShopKind(ctx echo.Context) error
	PutApiShopKindPrice(ctx echo.Context) error
	PostApiShopKindStock(ctx echo.Context) error
	PostApiShopWithdraw(ctx echo.Context) error
	PostApiCapTransfer(ctx echo.Context) error
	PostApiShopBuy(ctx echo.Context) error
	PostApiShopSell(ctx echo.Context) error
	PostApiShopRent(ctx echo.Context) error
	PostApiShopTrade(ctx echo.Context) error
	GetApiFeed(ctx echo.Context) error
}

type EchoRouter interface {
	GET(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
	POST(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
	PUT(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
}

func RegisterHandlers(router EchoRouter, si ServerInterface) {
	router.POST("/api/auth", si.PostApiAuth)
	router.POST("/api/shops", si.PostApiShops)
	router.POST("/api/avatars", si.PostApiAvatars)
	router.GET("/api/avatars/:id", si.GetApiAvatar)
	router.GET("/api/avatars/:id/events", si.GetApiAvatarEvents)
	router.GET("/api/shops/:id", si.GetApiShop)
	router.GET("/api/wallet", si.GetApiWallet)
	router.POST("/api/weapons/:kind", si.PostApiWeapon)
	router.POST("/api/shops/:id/kinds/:kind", si.PostApiShopKind)
	router.PUT("/api/shops/:id/kinds/:kind/price", si.PutApiShopKindPrice)
	router.POST("/api/shops/:id/kinds/:kind/stock", si.PostApiShopKindStock)
	router.POST("/api/shops/:id/withdraw", si.PostApiShopWithdraw)
	router.POST("/api/caps/:id/transfer", si.PostApiCapTransfer)
	router.POST("/api/shops/:id/buy/:kind", si.PostApiShopBuy)
	router.POST("/api/shops/:id/sell/:kind", si.PostApiShopSell)
	router.POST("/api/shops/:id/rent/:kind", si.PostApiShopRent)
	router.POST("/api/shops/:id/trade/:old/:new", si.PostApiShopTrade)
	router.GET("/api/feed", si.GetApiFeed)
}
