// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements idempotency support for unsafe HTTP methods (POST).
// It validates an Idempotency-Key request header, consults a lookup for a
// previously completed request with the same (member, route, key) triple, and
// annotates the request context so downstream handlers can:
//   - read the normalized key (GetIdempotencyKey)
//   - detect replays and read the stored result (Replay)
//   - bypass rate limiting when a replay is served
//
// Persistence stays behind the IdempotencyLookup function type; the handlers
// record results once the operation commits.
package middleware

import (
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey is the request header clients use to make a create
// operation safe to retry.
const HeaderIdempotencyKey = "Idempotency-Key"

const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemReplay = "idem.replay" // IdempotencyRecord
	ctxKeyRateBypass = "rate.bypass" // bool
)

var defaultKeyPattern = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)

// IdempotencyRecord is the stored outcome of a completed request.
type IdempotencyRecord struct {
	ResourceID int64
	Status     int
}

// IdempotencyLookup returns the stored outcome for (memberID, scope, key), or
// nil when none is live at now. Errors are logged and treated as a miss.
type IdempotencyLookup func(ctx context.Context, memberID int64, scope, key string, now time.Time) (*IdempotencyRecord, error)

// IdempotencyOptions configures header validation for IdempotencyValidator.
type IdempotencyOptions struct {
	// MaxLen caps the accepted key length. Values <= 0 default to 200.
	MaxLen int
	// Pattern restricts allowed characters. Nil means ^[A-Za-z0-9._~\-:]+$.
	Pattern *regexp.Regexp
}

// GetIdempotencyKey returns the validated key stashed by IdempotencyValidator.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxKeyIdemKey)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// Replay returns the stored outcome when the current request repeats a
// completed one.
func Replay(c *gin.Context) (IdempotencyRecord, bool) {
	v, ok := c.Get(ctxKeyIdemReplay)
	if !ok {
		return IdempotencyRecord{}, false
	}
	rec, ok := v.(IdempotencyRecord)
	return rec, ok
}

// IsReplay reports whether Replay would succeed.
func IsReplay(c *gin.Context) bool {
	_, ok := Replay(c)
	return ok
}

// IdempotencyScope names the operation a key belongs to: the matched route
// pattern, or the raw path when no route matched.
func IdempotencyScope(c *gin.Context) string {
	if p := c.FullPath(); p != "" {
		return p
	}
	return c.Request.URL.Path
}

// IdempotencyValidator validates the Idempotency-Key header on POST requests
// and marks replays.
//
// Behavior:
//   - Non-POST requests and requests without the header pass through.
//   - An invalid key yields 400 {"code":"bad_idempotency_key"}.
//   - When an authenticated member is present and lookup finds a live record,
//     the record is stashed for Replay and rate limiting is bypassed.
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 200
	}
	pat := opts.Pattern
	if pat == nil {
		pat = defaultKeyPattern
	}

	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost {
			c.Next()
			return
		}
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"code":       "bad_idempotency_key",
				"message":    "invalid Idempotency-Key",
			})
			return
		}
		c.Set(ctxKeyIdemKey, key)

		mid, ok := MemberID(c)
		if lookup != nil && ok {
			rec, err := lookup(c.Request.Context(), mid, IdempotencyScope(c), key, time.Now().UTC())
			if err != nil {
				LoggerFrom(c).Warn().Err(err).Msg("idempotency lookup failed")
			} else if rec != nil {
				c.Set(ctxKeyIdemReplay, *rec)
				c.Set(ctxKeyRateBypass, true)
			}
		}

		c.Next()
	}
}
