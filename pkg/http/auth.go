package xhttp

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/nimasrn/voucher-wallet/pkg/logger"
)

const (
	UserIDKey  = "user_id"
	IsAdminKey = "is_admin"
)

// DefaultTokenTTL is the lifetime SignToken gives tokens without an exp claim.
const DefaultTokenTTL = 24 * time.Hour

var bearerPrefix = []byte("Bearer ")

// JWTAuthMiddleware verifies HS256 bearer tokens issued by the identity
// provider and stores the user id (and admin flag) on the request ctx.
// Paths starting with one of skip pass through untouched.
func JWTAuthMiddleware(secret []byte, skip ...string) MiddlewareFunc {
	return func(next RequestHandler) RequestHandler {
		return func(ctx *RequestCtx) {
			if matchesAny(string(ctx.Path()), skip) {
				next(ctx)
				return
			}

			header := ctx.Request.Header.Peek("Authorization")
			if !bytes.HasPrefix(header, bearerPrefix) {
				unauthorized(ctx, "authorization header missing")
				return
			}

			claims, err := ParseToken(secret, string(header[len(bearerPrefix):]))
			if err != nil {
				logger.Warn("[xhttp] rejected token", "error", err, "path", string(ctx.Path()))
				unauthorized(ctx, "invalid token")
				return
			}

			ctx.SetUserValue(UserIDKey, claims.UserID)
			ctx.SetUserValue(IsAdminKey, claims.IsAdmin)
			next(ctx)
		}
	}
}

type Claims struct {
	UserID  int64
	IsAdmin bool
}

// ParseToken validates the signature and expiry and extracts the user
// identity. Tokens without exp are rejected. The subject must be the numeric
// user id.
func ParseToken(secret []byte, raw string) (*Claims, error) {
	token, err := jwt.Parse(raw, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Method.Alg())
		}
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}

	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("unexpected claims type")
	}
	sub, err := mc.GetSubject()
	if err != nil {
		return nil, err
	}
	id, err := strconv.ParseInt(sub, 10, 64)
	if err != nil || id <= 0 {
		return nil, fmt.Errorf("invalid subject %q", sub)
	}

	admin, _ := mc["admin"].(bool)
	return &Claims{UserID: id, IsAdmin: admin}, nil
}

// SignToken issues a token in the format ParseToken accepts. Used by tooling
// and tests, production tokens come from the identity provider.
func SignToken(secret []byte, userID int64, admin bool, claims jwt.MapClaims) (string, error) {
	if claims == nil {
		claims = jwt.MapClaims{}
	}
	claims["sub"] = strconv.FormatInt(userID, 10)
	claims["admin"] = admin
	if _, ok := claims["exp"]; !ok {
		claims["exp"] = time.Now().Add(DefaultTokenTTL).Unix()
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// UserID returns the authenticated user id set by JWTAuthMiddleware.
func UserID(ctx *RequestCtx) (int64, bool) {
	id, ok := ctx.UserValue(UserIDKey).(int64)
	return id, ok && id > 0
}

func IsAdmin(ctx *RequestCtx) bool {
	v, _ := ctx.UserValue(IsAdminKey).(bool)
	return v
}

func unauthorized(ctx *RequestCtx, msg string) {
	ctx.Response.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctx.Response.SetStatusCode(StatusUnauthorized)
	ctx.Response.SetBodyString(`{"error":"` + msg + `"}`)
}

func matchesAny(p string, prefixes []string) bool {
	for _, sp := range prefixes {
		if strings.HasPrefix(p, sp) {
			return true
		}
	}
	return false
}
