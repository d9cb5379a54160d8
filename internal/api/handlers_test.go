package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"weapon-shop/internal/asset"
	"weapon-shop/internal/avatar"
	"weapon-shop/internal/middleware"
	"weapon-shop/internal/models"
	"weapon-shop/internal/service"
	"weapon-shop/internal/shop"
	"weapon-shop/internal/txn"
)

type mockAuthService struct {
	AuthenticateFunc func(username, password string) (string, error)
}

func (m *mockAuthService) Authenticate(_ context.Context, username, password string) (string, error) {
	return m.AuthenticateFunc(username, password)
}

// mockShopService panics on any method a test did not set up.
type mockShopService struct {
	service.ShopService
	ExecuteFunc   func(caller txn.Principal, shopID, avatarID uuid.UUID, flow service.Flow) error
	AdminFunc     func(caller txn.Principal, shopID, capID uuid.UUID, weaponIDs []uuid.UUID, op service.AdminOp) error
	MintFunc      func(caller txn.Principal, mint service.MintOp) (uuid.UUID, error)
	GetShopFunc   func(shopID uuid.UUID) (service.ShopInfo, error)
	GetAvatarFunc func(avatarID uuid.UUID) (models.Avatar, error)
}

func (m *mockShopService) Execute(_ context.Context, caller txn.Principal, shopID, avatarID uuid.UUID, flow service.Flow) error {
	return m.ExecuteFunc(caller, shopID, avatarID, flow)
}

func (m *mockShopService) Admin(_ context.Context, caller txn.Principal, shopID, capID uuid.UUID, weaponIDs []uuid.UUID, op service.AdminOp) error {
	return m.AdminFunc(caller, shopID, capID, weaponIDs, op)
}

func (m *mockShopService) MintWeapon(_ context.Context, caller txn.Principal, mint service.MintOp) (uuid.UUID, error) {
	return m.MintFunc(caller, mint)
}

func (m *mockShopService) GetShop(_ context.Context, shopID uuid.UUID) (service.ShopInfo, error) {
	return m.GetShopFunc(shopID)
}

func (m *mockShopService) GetAvatar(_ context.Context, avatarID uuid.UUID) (models.Avatar, error) {
	return m.GetAvatarFunc(avatarID)
}

func newContext(method, target, body string, principal string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if principal != "" {
		c.Set(middleware.ClaimsKey, jwt.MapClaims{"user_id": float64(1), "username": principal})
	}
	return c, rec
}

func newHandlers(svc service.ShopService) *Handlers {
	return &Handlers{ShopService: svc, Logger: zap.NewNop()}
}

func TestPostApiAuth(t *testing.T) {
	h := &Handlers{
		AuthService: &mockAuthService{AuthenticateFunc: func(username, password string) (string, error) {
			if username == "alice" && password == "pw" {
				return "token", nil
			}
			return "", service.ErrInvalidCredentials
		}},
		Logger: zap.NewNop(),
	}

	c, rec := newContext(http.MethodPost, "/api/auth", `{"username":"alice","password":"pw"}`, "")
	require.NoError(t, h.PostApiAuth(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	var resp AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Token)
	assert.Equal(t, "token", *resp.Token)

	c, rec = newContext(http.MethodPost, "/api/auth", `{"username":"alice","password":"nope"}`, "")
	require.NoError(t, h.PostApiAuth(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	c, rec = newContext(http.MethodPost, "/api/auth", `{invalid json}`, "")
	require.NoError(t, h.PostApiAuth(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostApiShopBuy_RunsTypedFlow(t *testing.T) {
	shopID := uuid.New()
	avatarID := uuid.New()
	axeID := uuid.New()

	var ran bool
	svc := &mockShopService{ExecuteFunc: func(caller txn.Principal, gotShop, gotAvatar uuid.UUID, flow service.Flow) error {
		assert.Equal(t, txn.Principal("bob"), caller)
		assert.Equal(t, shopID, gotShop)
		assert.Equal(t, avatarID, gotAvatar)

		s := shop.Restore(models.Shop{
			ID:          shopID,
			Inventories: []models.Inventory{{Kind: "axe", Price: 100, WeaponIDs: []uuid.UUID{axeID}}},
		})
		a := avatar.Restore(models.Avatar{ID: avatarID, Name: "hero", Gold: 150})
		tx := txn.New(caller)
		require.NoError(t, flow(tx, a, s))
		require.NoError(t, tx.Finish())

		w, ok := a.Weapon()
		require.True(t, ok)
		assert.Equal(t, axeID, w.ID())
		assert.Equal(t, uint64(50), a.Gold())
		ran = true
		return nil
	}}

	c, rec := newContext(http.MethodPost, "/", fmt.Sprintf(`{"avatarId":%q,"amount":100}`, avatarID), "bob")
	c.SetParamNames("id", "kind")
	c.SetParamValues(shopID.String(), "axe")

	require.NoError(t, newHandlers(svc).PostApiShopBuy(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, ran)
}

func TestPostApiShopTrade_RunsTypedFlow(t *testing.T) {
	avatarID := uuid.New()
	axeID := uuid.New()
	bowID := uuid.New()

	svc := &mockShopService{ExecuteFunc: func(caller txn.Principal, shopID, _ uuid.UUID, flow service.Flow) error {
		s := shop.Restore(models.Shop{
			ID: shopID,
			Inventories: []models.Inventory{
				{Kind: "axe", Price: 100},
				{Kind: "bow", Price: 200, WeaponIDs: []uuid.UUID{bowID}},
			},
		})
		a := avatar.Restore(models.Avatar{
			ID:         avatarID,
			Name:       "hero",
			Gold:       125,
			WeaponID:   uuid.NullUUID{UUID: axeID, Valid: true},
			WeaponKind: "axe",
		})
		tx := txn.New(caller)
		if err := flow(tx, a, s); err != nil {
			return err
		}
		require.NoError(t, tx.Finish())
		assert.Equal(t, uint64(0), a.Gold())
		stock, err := shop.Stock[asset.Axe](s)
		require.NoError(t, err)
		assert.Equal(t, 1, stock)
		return nil
	}}

	c, rec := newContext(http.MethodPost, "/", fmt.Sprintf(`{"avatarId":%q,"amount":125}`, avatarID), "bob")
	c.SetParamNames("id", "old", "new")
	c.SetParamValues(uuid.NewString(), "axe", "bow")

	require.NoError(t, newHandlers(svc).PostApiShopTrade(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}

// errorBody decodes the shared error shape every handler writes.
func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Errors)
	return *resp.Errors
}

func TestPostApiShopTrade_UnknownKind(t *testing.T) {
	c, rec := newContext(http.MethodPost, "/", fmt.Sprintf(`{"avatarId":%q}`, uuid.New()), "bob")
	c.SetParamNames("id", "old", "new")
	c.SetParamValues(uuid.NewString(), "axe", "spear")

	require.NoError(t, newHandlers(&mockShopService{}).PostApiShopTrade(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, errorBody(t, rec), "spear")
}

func TestPostApiShopBuy_UnknownKind(t *testing.T) {
	c, rec := newContext(http.MethodPost, "/", fmt.Sprintf(`{"avatarId":%q,"amount":1}`, uuid.New()), "bob")
	c.SetParamNames("id", "kind")
	c.SetParamValues(uuid.NewString(), "spear")

	require.NoError(t, newHandlers(&mockShopService{}).PostApiShopBuy(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, errorBody(t, rec), "unknown weapon kind")
}

func TestPostApiShopBuy_AmountTooLarge(t *testing.T) {
	avatarID := uuid.New()
	svc := &mockShopService{ExecuteFunc: func(caller txn.Principal, shopID, gotAvatar uuid.UUID, flow service.Flow) error {
		s := shop.Restore(models.Shop{
			ID:          shopID,
			Inventories: []models.Inventory{{Kind: "axe", Price: 100, WeaponIDs: []uuid.UUID{uuid.New()}}},
		})
		a := avatar.Restore(models.Avatar{ID: gotAvatar, Name: "hero", Gold: 150})
		err := flow(txn.New(caller), a, s)
		assert.Equal(t, uint64(150), a.Gold())
		return err
	}}

	body := fmt.Sprintf(`{"avatarId":%q,"amount":9223372036854775808}`, avatarID)
	c, rec := newContext(http.MethodPost, "/", body, "bob")
	c.SetParamNames("id", "kind")
	c.SetParamValues(uuid.NewString(), "axe")

	require.NoError(t, newHandlers(svc).PostApiShopBuy(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, errorBody(t, rec), service.ErrInvalidAmount.Error())
}

func TestPriceHandlers_PriceTooLarge(t *testing.T) {
	handlers := map[string]func(*Handlers, echo.Context) error{
		"register":  (*Handlers).PostApiShopKind,
		"set price": (*Handlers).PutApiShopKindPrice,
	}
	for name, handle := range handlers {
		t.Run(name, func(t *testing.T) {
			shopID := uuid.New()
			capID := uuid.New()
			svc := &mockShopService{AdminFunc: func(caller txn.Principal, _, _ uuid.UUID, _ []uuid.UUID, op service.AdminOp) error {
				s := shop.Restore(models.Shop{ID: shopID, CapID: capID, Inventories: []models.Inventory{{Kind: "bow", Price: 10}}})
				c := shop.RestoreCap(models.Capability{ID: capID, ShopID: shopID, Owner: string(caller)})
				return op(txn.New(caller), s, c, nil)
			}}

			body := fmt.Sprintf(`{"capId":%q,"price":18446744073709551615}`, capID)
			c, rec := newContext(http.MethodPost, "/", body, "alice")
			c.SetParamNames("id", "kind")
			c.SetParamValues(shopID.String(), "bow")

			require.NoError(t, handle(newHandlers(svc), c))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, errorBody(t, rec), service.ErrInvalidAmount.Error())
		})
	}
}

func TestTradeTableCoversEveryPair(t *testing.T) {
	for from := range kinds {
		for to := range kinds {
			_, ok := trades[tradePair{from: from, to: to}]
			assert.True(t, ok, "missing trade %s -> %s", from, to)
		}
	}
	assert.Len(t, trades, len(kinds)*len(kinds))
}

func TestFlowHandlers_ErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("buy axe: %w", asset.ErrInsufficientFunds), http.StatusBadRequest},
		{fmt.Errorf("buy axe: %w", shop.ErrAmountMismatch), http.StatusBadRequest},
		{fmt.Errorf("buy axe: %w", shop.ErrOutOfStock), http.StatusConflict},
		{fmt.Errorf("buy axe: %w", shop.ErrUnknownKind), http.StatusNotFound},
		{service.ErrNotOwner, http.StatusForbidden},
		{fmt.Errorf("shop x: %w", service.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("buy axe: %w", avatar.ErrAlreadyWielding), http.StatusConflict},
		{fmt.Errorf("buy axe: %w", asset.ErrBalanceOverflow), http.StatusConflict},
		{fmt.Errorf("%w: 1 exceeds 0", service.ErrInvalidAmount), http.StatusBadRequest},
		{txn.ErrUnconsumed, http.StatusInternalServerError},
		{errors.New("db is down"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			svc := &mockShopService{ExecuteFunc: func(txn.Principal, uuid.UUID, uuid.UUID, service.Flow) error {
				return tt.err
			}}
			c, rec := newContext(http.MethodPost, "/", fmt.Sprintf(`{"avatarId":%q,"amount":1}`, uuid.New()), "bob")
			c.SetParamNames("id", "kind")
			c.SetParamValues(uuid.NewString(), "sword")

			require.NoError(t, newHandlers(svc).PostApiShopBuy(c))
			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusInternalServerError {
				assert.Contains(t, rec.Body.String(), "Internal server error")
			}
		})
	}
}

func TestFlowHandlers_Unauthorized(t *testing.T) {
	c, rec := newContext(http.MethodPost, "/", `{}`, "")
	c.SetParamNames("id", "kind")
	c.SetParamValues(uuid.NewString(), "axe")

	require.NoError(t, newHandlers(&mockShopService{}).PostApiShopSell(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestFlowHandlers_MissingAvatar(t *testing.T) {
	c, rec := newContext(http.MethodPost, "/", `{"amount":5}`, "bob")
	c.SetParamNames("id", "kind")
	c.SetParamValues(uuid.NewString(), "axe")

	require.NoError(t, newHandlers(&mockShopService{}).PostApiShopRent(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostApiShopKindStock(t *testing.T) {
	shopID := uuid.New()
	capID := uuid.New()
	heldID := uuid.New()

	svc := &mockShopService{AdminFunc: func(caller txn.Principal, gotShop, gotCap uuid.UUID, weaponIDs []uuid.UUID, op service.AdminOp) error {
		assert.Equal(t, shopID, gotShop)
		assert.Equal(t, capID, gotCap)
		assert.Equal(t, []uuid.UUID{heldID}, weaponIDs)

		s := shop.Restore(models.Shop{ID: shopID, CapID: capID, Inventories: []models.Inventory{{Kind: "bow", Price: 10}}})
		c := shop.RestoreCap(models.Capability{ID: capID, ShopID: shopID, Owner: string(caller)})
		tx := txn.New(caller)
		require.NoError(t, op(tx, s, c, []asset.Handle{{WeaponID: heldID, Kind: "bow"}}))
		require.NoError(t, tx.Finish())

		stock, err := shop.Stock[asset.Bow](s)
		require.NoError(t, err)
		assert.Equal(t, 3, stock)
		return nil
	}}

	body := fmt.Sprintf(`{"capId":%q,"weaponIds":[%q],"mint":2}`, capID, heldID)
	c, rec := newContext(http.MethodPost, "/", body, "alice")
	c.SetParamNames("id", "kind")
	c.SetParamValues(shopID.String(), "bow")

	require.NoError(t, newHandlers(svc).PostApiShopKindStock(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPostApiShopKindStock_MintOutOfRange(t *testing.T) {
	body := fmt.Sprintf(`{"capId":%q,"mint":1000}`, uuid.New())
	c, rec := newContext(http.MethodPost, "/", body, "alice")
	c.SetParamNames("id", "kind")
	c.SetParamValues(uuid.NewString(), "bow")

	require.NoError(t, newHandlers(&mockShopService{}).PostApiShopKindStock(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostApiShopKind_Unauthorized(t *testing.T) {
	svc := &mockShopService{AdminFunc: func(txn.Principal, uuid.UUID, uuid.UUID, []uuid.UUID, service.AdminOp) error {
		return shop.ErrUnauthorized
	}}
	c, rec := newContext(http.MethodPost, "/", fmt.Sprintf(`{"capId":%q,"price":5}`, uuid.New()), "mallory")
	c.SetParamNames("id", "kind")
	c.SetParamValues(uuid.NewString(), "axe")

	require.NoError(t, newHandlers(svc).PostApiShopKind(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPostApiWeapon_MintsRequestedKind(t *testing.T) {
	svc := &mockShopService{MintFunc: func(caller txn.Principal, mint service.MintOp) (uuid.UUID, error) {
		tx := txn.New(caller)
		w, err := mint(tx)
		require.NoError(t, err)
		assert.Equal(t, "sword", w.KindName())
		require.NoError(t, tx.TransferTo(w, caller))
		return w.ID(), tx.Finish()
	}}
	c, rec := newContext(http.MethodPost, "/", "", "alice")
	c.SetParamNames("kind")
	c.SetParamValues("sword")

	require.NoError(t, newHandlers(svc).PostApiWeapon(c))
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestGetApiShop(t *testing.T) {
	shopID := uuid.New()
	svc := &mockShopService{GetShopFunc: func(id uuid.UUID) (service.ShopInfo, error) {
		if id != shopID {
			return service.ShopInfo{}, service.ErrNotFound
		}
		return service.ShopInfo{
			ID:          shopID,
			Earnings:    1500,
			Inventories: []service.InventoryInfo{{Kind: "axe", Price: 1000, Stock: 2}},
		}, nil
	}}

	c, rec := newContext(http.MethodGet, "/", "", "alice")
	c.SetParamNames("id")
	c.SetParamValues(shopID.String())
	require.NoError(t, newHandlers(svc).GetApiShop(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ShopResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, uint64(1500), resp.Earnings)
	assert.Equal(t, []InventoryResponse{{Kind: "axe", Price: 1000, Stock: 2}}, resp.Inventories)

	c, rec = newContext(http.MethodGet, "/", "", "alice")
	c.SetParamNames("id")
	c.SetParamValues(uuid.NewString())
	require.NoError(t, newHandlers(svc).GetApiShop(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetApiAvatar_WeaponFields(t *testing.T) {
	avatarID := uuid.New()
	weaponID := uuid.New()
	svc := &mockShopService{GetAvatarFunc: func(uuid.UUID) (models.Avatar, error) {
		return models.Avatar{
			ID:         avatarID,
			Owner:      "bob",
			Name:       "hero",
			Gold:       10,
			WeaponID:   uuid.NullUUID{UUID: weaponID, Valid: true},
			WeaponKind: "bow",
		}, nil
	}}

	c, rec := newContext(http.MethodGet, "/", "", "bob")
	c.SetParamNames("id")
	c.SetParamValues(avatarID.String())
	require.NoError(t, newHandlers(svc).GetApiAvatar(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp AvatarResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.WeaponID)
	assert.Equal(t, weaponID, *resp.WeaponID)
	assert.Equal(t, "bow", *resp.WeaponKind)
}

func TestGetApiAvatar_BadID(t *testing.T) {
	c, rec := newContext(http.MethodGet, "/", "", "bob")
	c.SetParamNames("id")
	c.SetParamValues("not-a-uuid")

	require.NoError(t, newHandlers(&mockShopService{}).GetApiAvatar(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, errorBody(t, rec), "invalid path parameter id")
}
