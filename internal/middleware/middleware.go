package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"weapon-shop/pkg"
)

const (
	// ClaimsKey is the echo context key the verified claims are stored under.
	ClaimsKey = "user"

	authPath = "/api/auth"
)

// инициализация миддлвары
func JWTAuthMiddleware(secret string, log pkg.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().URL.Path == authPath {
				return next(c)
			}

			tokenString := bearerToken(c)
			if tokenString == "" {
				return c.JSON(http.StatusUnauthorized, map[string]string{"errors": "Authorization header missing"})
			}

			// проверка подмены токена
			token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				log.Warn("Invalid JWT token", zap.String("path", c.Request().URL.Path), zap.Error(err))
				return c.JSON(http.StatusUnauthorized, map[string]string{"errors": "Invalid token"})
			}
			c.Set(ClaimsKey, token.Claims)
			return next(c)
		}
	}
}

// bearerToken reads the Authorization header. Websocket clients cannot set
// headers, so a token query parameter is accepted as well.
func bearerToken(c echo.Context) string {
	if h := c.Request().Header.Get("Authorization"); h != "" {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return c.QueryParam("token")
}
