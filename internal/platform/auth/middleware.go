package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	UserIDKey    contextKey = "user_id"
	UserRolesKey contextKey = "user_roles"
)

// Headers honoured by DevAuthMiddleware so a developer can act as a
// specific person without minting a token.
const (
	DevUserHeader  = "X-Dev-User-ID"
	DevRolesHeader = "X-Dev-Roles"
)

// Claims is the token payload. Subject is the person id of the caller.
type Claims struct {
	jwt.RegisteredClaims
	Roles []string `json:"roles"`
}

type JWTConfig struct {
	Issuer   string
	Audience string
	JWKSURL  string
	// SigningKey is used for development/testing only
	SigningKey []byte
}

// JWTMiddleware validates bearer tokens and stores the caller on the
// request context. Without a JWKS URL the issuer's well-known path is used.
func JWTMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	var keys *keySet
	methods := []string{"HS256"}
	if len(cfg.SigningKey) == 0 {
		url := cfg.JWKSURL
		if url == "" && cfg.Issuer != "" {
			url = strings.TrimSuffix(cfg.Issuer, "/") + "/.well-known/jwks.json"
		}
		keys = newKeySet(url, defaultKeyTTL)
		methods = []string{"RS256"}
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods(methods), jwt.WithLeeway(30 * time.Second)}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	keyfunc := func(ctx context.Context) jwt.Keyfunc {
		if keys != nil {
			return keys.keyfunc(ctx)
		}
		return func(*jwt.Token) (any, error) { return cfg.SigningKey, nil }
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			scheme, raw, ok := strings.Cut(c.Request().Header.Get(echo.HeaderAuthorization), " ")
			if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(raw) == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing or malformed bearer token")
			}

			ctx := c.Request().Context()
			claims := &Claims{}
			token, err := jwt.ParseWithClaims(raw, claims, keyfunc(ctx), opts...)
			if err != nil || !token.Valid || claims.Subject == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			c.SetRequest(c.Request().WithContext(WithActor(ctx, Actor{ID: claims.Subject, Roles: claims.Roles})))
			return next(c)
		}
	}
}

// DevAuthMiddleware lets every request through. Callers default to an
// admin "dev-user"; the X-Dev-* headers pick another identity.
func DevAuthMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Request().Header
			actor := Actor{ID: "dev-user", Roles: []string{RoleAdmin}}
			if id := h.Get(DevUserHeader); id != "" {
				actor.ID = id
				actor.Roles = nil
				for _, r := range strings.Split(h.Get(DevRolesHeader), ",") {
					if r = strings.TrimSpace(r); r != "" {
						actor.Roles = append(actor.Roles, r)
					}
				}
			}
			c.SetRequest(c.Request().WithContext(WithActor(c.Request().Context(), actor)))
			return next(c)
		}
	}
}

func UserIDFromContext(ctx context.Context) string {
	uid, _ := ctx.Value(UserIDKey).(string)
	return uid
}

func RolesFromContext(ctx context.Context) []string {
	roles, _ := ctx.Value(UserRolesKey).([]string)
	return roles
}
