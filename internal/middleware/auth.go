package middleware

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const buyerIDKey = "buyer_id"

// OptionalAuth extracts the buyer id from a Bearer token when one is
// present. Checkout works anonymously, so a missing or invalid token
// is not an error; the order simply stays unclaimed.
func OptionalAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			raw, found := strings.CutPrefix(header, "Bearer ")
			if !found || raw == "" {
				return next(c)
			}

			token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				return next(c)
			}

			if claims, ok := token.Claims.(jwt.MapClaims); ok {
				if sub, _ := claims["sub"].(string); sub != "" {
					c.Set(buyerIDKey, sub)
				}
			}

			return next(c)
		}
	}
}

// BuyerID returns the authenticated buyer id, or "" for anonymous
// requests.
func BuyerID(c echo.Context) string {
	id, _ := c.Get(buyerIDKey).(string)
	return id
}
