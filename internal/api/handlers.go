package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"weapon-shop/internal/asset"
	"weapon-shop/internal/avatar"
	"weapon-shop/internal/feed"
	"weapon-shop/internal/middleware"
	"weapon-shop/internal/models"
	"weapon-shop/internal/service"
	"weapon-shop/internal/shop"
	"weapon-shop/internal/txn"
	"weapon-shop/pkg"
)

type Handlers struct {
	AuthService service.AuthService
	ShopService service.ShopService
	Feed        *feed.Hub
	Logger      pkg.Logger
}

var _ ServerInterface = (*Handlers)(nil)

func (h *Handlers) PostApiAuth(ctx echo.Context) error {
	var req AuthRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, ErrorResponse{Errors: ptr("Invalid request body")})
	}

	token, err := h.AuthService.Authenticate(ctx.Request().Context(), req.Username, req.Password)
	if err != nil {
		h.Logger.Warn("invalid credentials", zap.String("username", req.Username), zap.Error(err))
		return ctx.JSON(http.StatusUnauthorized, ErrorResponse{Errors: ptr("Invalid credentials")})
	}
	return ctx.JSON(http.StatusOK, AuthResponse{Token: &token})
}

func (h *Handlers) PostApiShops(ctx echo.Context) error {
	caller, err := getPrincipalFromContext(ctx)
	if err != nil {
		return ctx.JSON(http.StatusUnauthorized, ErrorResponse{Errors: ptr(err.Error())})
	}
	created, err := h.ShopService.CreateShop(ctx.Request().Context(), caller)
	if err != nil {
		return h.fail(ctx, err)
	}
	return ctx.JSON(http.StatusCreated, CreateShopResponse{ShopID: created.ShopID, CapID: created.CapID})
}

func (h *Handlers) PostApiAvatars(ctx echo.Context) error {
	caller, err := getPrincipalFromContext(ctx)
	if err != nil {
		return ctx.JSON(http.StatusUnauthorized, ErrorResponse{Errors: ptr(err.Error())})
	}
	var req CreateAvatarRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, ErrorResponse{Errors: ptr("Invalid request body")})
	}
	id, err := h.ShopService.CreateAvatar(ctx.Request().Context(), caller, req.Name, req.InitialGold, txn.Principal(req.Recipient))
	if err != nil {
		return h.fail(ctx, err)
	}
	return ctx.JSON(http.StatusCreated, IDResponse{ID: id})
}

func (h *Handlers) GetApiAvatar(ctx echo.Context) error {
	id, err := uuidParam(ctx, "id")
	if err != nil {
		return h.fail(ctx, err)
	}
	a, err := h.ShopService.GetAvatar(ctx.Request().Context(), id)
	if err != nil {
		return h.fail(ctx, err)
	}
	return ctx.JSON(http.StatusOK, convertToAvatarResponse(a))
}

func (h *Handlers) GetApiAvatarEvents(ctx echo.Context) error {
	id, err := uuidParam(ctx, "id")
	if err != nil {
		return h.fail(ctx, err)
	}
	events, err := h.ShopService.GetEvents(ctx.Request().Context(), id)
	if err != nil {
		return h.fail(ctx, err)
	}
	resp := make([]EventResponse, 0, len(events))
	for _, ev := range events {
		resp = append(resp, EventResponse{
			TxID:     ev.TxID,
			Type:     ev.Type,
			AvatarID: ev.AvatarID,
			WeaponID: ev.WeaponID,
			Kind:     ev.Kind,
			At:       ev.At,
		})
	}
	return ctx.JSON(http.StatusOK, resp)
}

func (h *Handlers) GetApiShop(ctx echo.Context) error {
	id, err := uuidParam(ctx, "id")
	if err != nil {
		return h.fail(ctx, err)
	}
	info, err := h.ShopService.GetShop(ctx.Request().Context(), id)
	if err != nil {
		return h.fail(ctx, err)
	}
	resp := ShopResponse{ID: info.ID, Earnings: info.Earnings, Inventories: []InventoryResponse{}}
	for _, inv := range info.Inventories {
		resp.Inventories = append(resp.Inventories, InventoryResponse{Kind: inv.Kind, Price: inv.Price, Stock: inv.Stock})
	}
	return ctx.JSON(http.StatusOK, resp)
}

func (h *Handlers) GetApiWallet(ctx echo.Context) error {
	caller, err := getPrincipalFromContext(ctx)
	if err != nil {
		return ctx.JSON(http.StatusUnauthorized, ErrorResponse{Errors: ptr(err.Error())})
	}
	w, err := h.ShopService.GetWallet(ctx.Request().Context(), caller)
	if err != nil {
		return h.fail(ctx, err)
	}
	resp := WalletResponse{Coins: w.Coins, Weapons: []WeaponResponse{}}
	for _, wp := range w.Weapons {
		resp.Weapons = append(resp.Weapons, WeaponResponse{ID: wp.ID, Kind: wp.Kind})
	}
	return ctx.JSON(http.StatusOK, resp)
}

func (h *Handlers) PostApiWeapon(ctx echo.Context) error {
	caller, err := getPrincipalFromContext(ctx)
	if err != nil {
		return ctx.JSON(http.StatusUnauthorized, ErrorResponse{Errors: ptr(err.Error())})
	}
	ops, err := kindParam(ctx, "kind")
	if err != nil {
		return h.fail(ctx, err)
	}
	id, err := h.ShopService.MintWeapon(ctx.Request().Context(), caller, ops.mint)
	if err != nil {
		return h.fail(ctx, err)
	}
	return ctx.JSON(http.StatusCreated, IDResponse{ID: id})
}

func (h *Handlers) PostApiShopKind(ctx echo.Context) error {
	var req PriceRequest
	return h.admin(ctx, &req, func(ops kindOps) (uuid.UUID, []uuid.UUID, service.AdminOp) {
		return req.CapID, nil, ops.register(req.Price)
	})
}

func (h *Handlers) PutApiShopKindPrice(ctx echo.Context) error {
	var req PriceRequest
	return h.admin(ctx, &req, func(ops kindOps) (uuid.UUID, []uuid.UUID, service.AdminOp) {
		return req.CapID, nil, ops.setPrice(req.Price)
	})
}

func (h *Handlers) PostApiShopKindStock(ctx echo.Context) error {
	var req RestockRequest
	return h.admin(ctx, &req, func(ops kindOps) (uuid.UUID, []uuid.UUID, service.AdminOp) {
		return req.CapID, req.WeaponIDs, ops.restock(req.Mint)
	})
}

// admin binds req, resolves the kind and runs the op build returns.
func (h *Handlers) admin(ctx echo.Context, req any, build func(kindOps) (uuid.UUID, []uuid.UUID, service.AdminOp)) error {
	caller, err := getPrincipalFromContext(ctx)
	if err != nil {
		return ctx.JSON(http.StatusUnauthorized, ErrorResponse{Errors: ptr(err.Error())})
	}
	shopID, err := uuidParam(ctx, "id")
	if err != nil {
		return h.fail(ctx, err)
	}
	ops, err := kindParam(ctx, "kind")
	if err != nil {
		return h.fail(ctx, err)
	}
	if err := ctx.Bind(req); err != nil {
		return ctx.JSON(http.StatusBadRequest, ErrorResponse{Errors: ptr("Invalid request body")})
	}
	if r, ok := req.(*RestockRequest); ok && (r.Mint < 0 || r.Mint > maxMint) {
		return ctx.JSON(http.StatusBadRequest, ErrorResponse{Errors: ptr("mint must be between 0 and 100")})
	}

	capID, weaponIDs, op := build(ops)
	if err := h.ShopService.Admin(ctx.Request().Context(), caller, shopID, capID, weaponIDs, op); err != nil {
		return h.fail(ctx, err)
	}
	return ctx.JSON(http.StatusOK, MessageResponse{Message: "Shop updated"})
}

func (h *Handlers) PostApiShopWithdraw(ctx echo.Context) error {
	caller, err := getPrincipalFromContext(ctx)
	if err != nil {
		return ctx.JSON(http.StatusUnauthorized, ErrorResponse{Errors: ptr(err.Error())})
	}
	shopID, err := uuidParam(ctx, "id")
	if err != nil {
		return h.fail(ctx, err)
	}
	var req CapRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, ErrorResponse{Errors: ptr("Invalid request body")})
	}
	amount, err := h.ShopService.WithdrawEarnings(ctx.Request().Context(), caller, shopID, req.CapID)
	if err != nil {
		return h.fail(ctx, err)
	}
	return ctx.JSON(http.StatusOK, WithdrawResponse{Amount: amount})
}

func (h *Handlers) PostApiCapTransfer(ctx echo.Context) error {
	caller, err := getPrincipalFromContext(ctx)
	if err != nil {
		return ctx.JSON(http.StatusUnauthorized, ErrorResponse{Errors: ptr(err.Error())})
	}
	capID, err := uuidParam(ctx, "id")
	if err != nil {
		return h.fail(ctx, err)
	}
	var req TransferCapRequest
	if err := ctx.Bind(&req); err != nil || req.To == "" {
		return ctx.JSON(http.StatusBadRequest, ErrorResponse{Errors: ptr("Invalid request body")})
	}
	if err := h.ShopService.TransferCap(ctx.Request().Context(), caller, capID, txn.Principal(req.To)); err != nil {
		return h.fail(ctx, err)
	}
	return ctx.JSON(http.StatusOK, MessageResponse{Message: "Capability transferred"})
}

func (h *Handlers) PostApiShopBuy(ctx echo.Context) error {
	return h.flow(ctx, func(req FlowRequest) (service.Flow, error) {
		ops, err := kindParam(ctx, "kind")
		if err != nil {
			return nil, err
		}
		return ops.buy(req.Amount), nil
	})
}

func (h *Handlers) PostApiShopSell(ctx echo.Context) error {
	return h.flow(ctx, func(req FlowRequest) (service.Flow, error) {
		ops, err := kindParam(ctx, "kind")
		if err != nil {
			return nil, err
		}
		return ops.sell, nil
	})
}

func (h *Handlers) PostApiShopRent(ctx echo.Context) error {
	return h.flow(ctx, func(req FlowRequest) (service.Flow, error) {
		ops, err := kindParam(ctx, "kind")
		if err != nil {
			return nil, err
		}
		return ops.rent(req.Amount), nil
	})
}

func (h *Handlers) PostApiShopTrade(ctx echo.Context) error {
	return h.flow(ctx, func(req FlowRequest) (service.Flow, error) {
		trade, ok := trades[tradePair{from: ctx.Param("old"), to: ctx.Param("new")}]
		if !ok {
			return nil, fmt.Errorf("%w: %s for %s", shop.ErrUnknownKind, ctx.Param("old"), ctx.Param("new"))
		}
		return trade(req.Amount), nil
	})
}

func (h *Handlers) flow(ctx echo.Context, build func(FlowRequest) (service.Flow, error)) error {
	caller, err := getPrincipalFromContext(ctx)
	if err != nil {
		return ctx.JSON(http.StatusUnauthorized, ErrorResponse{Errors: ptr(err.Error())})
	}
	shopID, err := uuidParam(ctx, "id")
	if err != nil {
		return h.fail(ctx, err)
	}
	var req FlowRequest
	if err := ctx.Bind(&req); err != nil || req.AvatarID == uuid.Nil {
		return ctx.JSON(http.StatusBadRequest, ErrorResponse{Errors: ptr("Invalid request body")})
	}
	f, err := build(req)
	if err != nil {
		return h.fail(ctx, err)
	}
	if err := h.ShopService.Execute(ctx.Request().Context(), caller, shopID, req.AvatarID, f); err != nil {
		return h.fail(ctx, err)
	}
	return ctx.JSON(http.StatusOK, MessageResponse{Message: "Flow completed"})
}

func (h *Handlers) GetApiFeed(ctx echo.Context) error {
	var avatarID uuid.UUID
	if raw := ctx.QueryParam("avatar"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return ctx.JSON(http.StatusBadRequest, ErrorResponse{Errors: ptr("Invalid avatar id")})
		}
		avatarID = id
	}
	if err := h.Feed.Serve(ctx.Response(), ctx.Request(), avatarID); err != nil {
		// the upgrader has already written the error response
		h.Logger.Warn("feed upgrade failed", zap.Error(err))
	}
	return nil
}

// fail maps a service error to its HTTP status.
func (h *Handlers) fail(ctx echo.Context, err error) error {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		h.Logger.Error("request failed", zap.String("path", ctx.Path()), zap.Error(err))
		return ctx.JSON(status, ErrorResponse{Errors: ptr("Internal server error")})
	}
	return ctx.JSON(status, ErrorResponse{Errors: ptr(err.Error())})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, service.ErrNotFound),
		errors.Is(err, shop.ErrUnknownKind):
		return http.StatusNotFound
	case errors.Is(err, shop.ErrUnauthorized),
		errors.Is(err, service.ErrNotOwner):
		return http.StatusForbidden
	case errors.Is(err, shop.ErrKindAlreadyRegistered),
		errors.Is(err, shop.ErrOutOfStock),
		errors.Is(err, shop.ErrShopInsolvent),
		errors.Is(err, asset.ErrBalanceOverflow),
		errors.Is(err, avatar.ErrAlreadyWielding):
		return http.StatusConflict
	case errors.Is(err, asset.ErrInsufficientFunds),
		errors.Is(err, asset.ErrWrongWeaponKind),
		errors.Is(err, shop.ErrAmountMismatch),
		errors.Is(err, avatar.ErrNotWielding),
		errors.Is(err, avatar.ErrInvalidName),
		errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, errInvalidParam):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func getPrincipalFromContext(ctx echo.Context) (txn.Principal, error) {
	claims := ctx.Get(middleware.ClaimsKey)
	if claims == nil {
		return "", errUnauthorized("Unauthorized")
	}
	jwtClaims, ok := claims.(jwt.MapClaims)
	if !ok {
		return "", errUnauthorized("Invalid token claims")
	}
	username, ok := jwtClaims["username"].(string)
	if !ok || username == "" {
		return "", errUnauthorized("Invalid token claims")
	}
	return txn.Principal(username), nil
}

var errInvalidParam = errors.New("invalid path parameter")

func uuidParam(ctx echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(ctx.Param(name))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w %s: %q", errInvalidParam, name, ctx.Param(name))
	}
	return id, nil
}

func kindParam(ctx echo.Context, name string) (kindOps, error) {
	ops, ok := kinds[ctx.Param(name)]
	if !ok {
		return kindOps{}, fmt.Errorf("%w: %s", shop.ErrUnknownKind, ctx.Param(name))
	}
	return ops, nil
}

func convertToAvatarResponse(a models.Avatar) AvatarResponse {
	resp := AvatarResponse{
		ID:    a.ID,
		Owner: a.Owner,
		Name:  a.Name,
		Gold:  a.Gold,
	}
	if a.WeaponID.Valid {
		id := a.WeaponID.UUID
		kind := a.WeaponKind
		resp.WeaponID = &id
		resp.WeaponKind = &kind
	}
	return resp
}

func ptr(s string) *string {
	return &s
}

func errUnauthorized(msg string) error {
	return echo.NewHTTPError(http.StatusUnauthorized, msg)
}
