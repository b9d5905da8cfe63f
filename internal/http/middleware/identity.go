// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file resolves the calling member. Two modes are supported:
//
//   - Bearer tokens: when a secret is configured, the Authorization header must
//     carry an HS256 JWT whose "memberid" claim holds the numeric member id.
//   - Trusted header: without a secret, the X-Member-ID header is read as-is.
//     This mode is meant for local development and tests behind a gateway.
//
// Either way the id is stored in the Gin context and read with MemberID.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// HeaderMemberID carries the caller id in trusted-header mode.
const HeaderMemberID = "X-Member-ID"

const ctxKeyMemberID = "memberID"

// MemberClaims is the JWT payload understood by Identity.
type MemberClaims struct {
	MemberID int64 `json:"memberid"`
	jwt.RegisteredClaims
}

// MemberLookup reports whether a member id refers to a registered member.
type MemberLookup func(ctx context.Context, id int64) (bool, error)

// IdentityOptions configures Identity.
type IdentityOptions struct {
	// Secret enables bearer-token mode when non-empty.
	Secret []byte
	// Exists, when set, rejects ids that do not belong to a registered member.
	Exists MemberLookup
}

var errNoIdentity = errors.New("missing or invalid credentials")

// Identity authenticates the caller and aborts with 401 when no member id can
// be established.
func Identity(opts IdentityOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := resolveMember(c, opts.Secret)
		if err == nil && opts.Exists != nil {
			found, lerr := opts.Exists(c.Request.Context(), id)
			switch {
			case lerr != nil:
				LoggerFrom(c).Error().Err(lerr).Int64("member_id", id).Msg("member lookup failed")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"request_id": c.Writer.Header().Get(requestIDHeader),
					"code":       "internal_error",
					"message":    "internal server error",
				})
				return
			case !found:
				err = errNoIdentity
			}
		}
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"code":       "unauthorized",
				"message":    err.Error(),
			})
			return
		}
		c.Set(ctxKeyMemberID, id)
		c.Next()
	}
}

// MemberID returns the authenticated member id stored by Identity.
func MemberID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(ctxKeyMemberID)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok && id > 0
}

// SignMemberToken issues an HS256 token for id. Used by tooling and tests.
func SignMemberToken(secret []byte, id int64) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, MemberClaims{MemberID: id}).SignedString(secret)
}

func resolveMember(c *gin.Context, secret []byte) (int64, error) {
	if len(secret) == 0 {
		return parseMemberID(c.GetHeader(HeaderMemberID))
	}

	auth := c.GetHeader("Authorization")
	raw, found := strings.CutPrefix(auth, "Bearer ")
	if !found || strings.TrimSpace(raw) == "" {
		return 0, errNoIdentity
	}
	var claims MemberClaims
	_, err := jwt.ParseWithClaims(strings.TrimSpace(raw), &claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || claims.MemberID <= 0 {
		return 0, errNoIdentity
	}
	return claims.MemberID, nil
}

func parseMemberID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, errNoIdentity
	}
	return id, nil
}
