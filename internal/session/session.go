package session

import (
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	SessionCookie = "shop_session"
	AccessCookie  = "accessToken"
)

// Owner identifies who a cart belongs to: an authenticated user when
// UserID is set, otherwise the guest session.
type Owner struct {
	UserID    *uint
	SessionID string
}

func (o Owner) IsGuest() bool { return o.UserID == nil }

// EnsureSession guarantees every request carries a guest session cookie.
func EnsureSession() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if _, err := c.Cookie(SessionCookie); err != nil {
				ck := &http.Cookie{
					Name:     SessionCookie,
					Value:    uuid.NewString(),
					Path:     "/",
					Expires:  time.Now().Add(30 * 24 * time.Hour),
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				}
				c.SetCookie(ck)
				c.Request().AddCookie(ck)
			}
			return next(c)
		}
	}
}

// ResolveOwner builds the Owner for a request: the user id from a valid
// access token when one is present, the session cookie otherwise.
func ResolveOwner(c echo.Context, jwtSecret []byte) (Owner, error) {
	owner := Owner{}

	if ck, err := c.Cookie(SessionCookie); err == nil {
		owner.SessionID = ck.Value
	}

	if ck, err := c.Cookie(AccessCookie); err == nil && ck.Value != "" {
		id, err := parseUserID(ck.Value, jwtSecret)
		if err != nil {
			return Owner{}, echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
		}
		owner.UserID = &id
	}

	if owner.UserID == nil && owner.SessionID == "" {
		return Owner{}, echo.NewHTTPError(http.StatusBadRequest, "missing session")
	}
	return owner, nil
}

// RequireUser is ResolveOwner for endpoints that only make sense logged in.
func RequireUser(c echo.Context, jwtSecret []byte) (uint, error) {
	owner, err := ResolveOwner(c, jwtSecret)
	if err != nil {
		return 0, err
	}
	if owner.UserID == nil {
		return 0, echo.NewHTTPError(http.StatusUnauthorized, "missing auth cookie")
	}
	return *owner.UserID, nil
}

// AdminOnly gates the admin route group on the role claim.
func AdminOnly(jwtSecret []byte) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ck, err := c.Cookie(AccessCookie)
			if err != nil || ck.Value == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing auth cookie")
			}
			claims, err := parseClaims(ck.Value, jwtSecret)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}
			if role, _ := claims["role"].(string); role != "admin" {
				return echo.NewHTTPError(http.StatusForbidden, "admin only")
			}
			return next(c)
		}
	}
}

func parseUserID(tokenString string, jwtSecret []byte) (uint, error) {
	claims, err := parseClaims(tokenString, jwtSecret)
	if err != nil {
		return 0, err
	}
	subRaw, ok := claims["sub"].(float64)
	if !ok {
		return 0, fmt.Errorf("invalid subject claim")
	}
	return uint(subRaw), nil
}

func parseClaims(tokenString string, jwtSecret []byte) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

// IssueAccessToken signs a short-lived access token for the user.
func IssueAccessToken(userID uint, role string, jwtSecret []byte, ttl time.Duration) (string, time.Time, error) {
	exp := time.Now().Add(ttl)
	claims := jwt.MapClaims{
		"sub":  userID,
		"role": role,
		"exp":  exp.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(jwtSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}
