package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func asMember(id int64) gin.HandlerFunc {
	return func(c *gin.Context) { c.Set(ctxKeyMemberID, id); c.Next() }
}

func TestHelpers_GetIdempotencyKey_Replay(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	if k, ok := GetIdempotencyKey(c); k != "" || ok {
		t.Fatalf("expected empty key when not set")
	}
	if IsReplay(c) {
		t.Fatalf("expected IsReplay=false by default")
	}

	c.Set(ctxKeyIdemKey, 123)
	if _, ok := GetIdempotencyKey(c); ok {
		t.Fatalf("expected non-string key to read as absent")
	}

	c.Set(ctxKeyIdemReplay, IdempotencyRecord{ResourceID: 9, Status: http.StatusCreated})
	rec, ok := Replay(c)
	if !ok || rec.ResourceID != 9 || rec.Status != http.StatusCreated {
		t.Fatalf("unexpected replay %+v ok=%v", rec, ok)
	}

	c.Set(ctxKeyIdemReplay, true)
	if IsReplay(c) {
		t.Fatalf("expected IsReplay=false for a foreign value")
	}

	if got := IdempotencyScope(c); got != "/" {
		t.Fatalf("scope fallback = %q", got)
	}
}

func TestIdempotencyValidator_NoHeaderOrNotPost_NoLookup(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	called := false
	lookup := func(context.Context, int64, string, string, time.Time) (*IdempotencyRecord, error) {
		called = true
		return nil, nil
	}
	r.Use(asMember(1), IdempotencyValidator(IdempotencyOptions{}, lookup))
	r.POST("/chats", func(c *gin.Context) {
		if _, ok := GetIdempotencyKey(c); ok {
			t.Fatalf("key should not be present when header missing")
		}
		c.Status(http.StatusCreated)
	})
	r.GET("/chats", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/chats", nil))
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}

	// Keys on safe methods are ignored, even malformed ones.
	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/chats", nil)
	req.Header.Set(HeaderIdempotencyKey, "not valid!")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for GET, got %d", w.Code)
	}
	if called {
		t.Fatalf("lookup should not run")
	}
}

func TestIdempotencyValidator_InvalidKeys(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name string
		opts IdempotencyOptions
		key  string
	}{
		{"too long", IdempotencyOptions{MaxLen: 5}, "abcdef"},
		{"custom pattern", IdempotencyOptions{Pattern: regexp.MustCompile(`^[0-9]+$`)}, "abc123"},
		{"default pattern", IdempotencyOptions{}, "has space"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.Use(IdempotencyValidator(tc.opts, nil))
			r.POST("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/x", nil)
			req.Header.Set(HeaderIdempotencyKey, tc.key)
			r.ServeHTTP(w, req)

			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", w.Code)
			}
			var body map[string]any
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("invalid json: %v", err)
			}
			if body["code"] != "bad_idempotency_key" {
				t.Fatalf("unexpected body: %v", body)
			}
		})
	}
}

func TestIdempotencyValidator_LookupMissHitAndError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	run := func(t *testing.T, lookup IdempotencyLookup, check func(*gin.Context)) {
		t.Helper()
		r := gin.New()
		r.Use(asMember(77), IdempotencyValidator(IdempotencyOptions{}, lookup))
		r.POST("/api/v1/chats/group", func(c *gin.Context) {
			check(c)
			c.Status(http.StatusCreated)
		})
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/chats/group", nil)
		req.Header.Set(HeaderIdempotencyKey, "key-1")
		r.ServeHTTP(w, req)
		if w.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d", w.Code)
		}
	}

	t.Run("miss", func(t *testing.T) {
		lookup := func(_ context.Context, mid int64, scope, key string, now time.Time) (*IdempotencyRecord, error) {
			if mid != 77 || scope != "/api/v1/chats/group" || key != "key-1" || now.IsZero() {
				t.Fatalf("unexpected lookup args: %d %q %q %v", mid, scope, key, now)
			}
			return nil, nil
		}
		run(t, lookup, func(c *gin.Context) {
			if k, _ := GetIdempotencyKey(c); k != "key-1" {
				t.Fatalf("expected stashed key, got %q", k)
			}
			if IsReplay(c) || IsRateBypass(c) {
				t.Fatalf("expected no replay/bypass on miss")
			}
		})
	})

	t.Run("hit", func(t *testing.T) {
		lookup := func(context.Context, int64, string, string, time.Time) (*IdempotencyRecord, error) {
			return &IdempotencyRecord{ResourceID: 5, Status: http.StatusCreated}, nil
		}
		run(t, lookup, func(c *gin.Context) {
			rec, ok := Replay(c)
			if !ok || rec.ResourceID != 5 {
				t.Fatalf("expected replay of resource 5, got %+v", rec)
			}
			if !IsRateBypass(c) {
				t.Fatalf("expected rate bypass on hit")
			}
		})
	})

	t.Run("lookup error is a miss", func(t *testing.T) {
		lookup := func(context.Context, int64, string, string, time.Time) (*IdempotencyRecord, error) {
			return nil, errors.New("db down")
		}
		run(t, lookup, func(c *gin.Context) {
			if IsReplay(c) {
				t.Fatalf("lookup error must not produce a replay")
			}
		})
	})
}

func TestIdempotencyValidator_SkipsLookupWithoutMember(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(IdempotencyValidator(IdempotencyOptions{}, func(context.Context, int64, string, string, time.Time) (*IdempotencyRecord, error) {
		t.Fatalf("lookup must not run without a member")
		return nil, nil
	}))
	r.POST("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodPost, "/x", nil)
	req.Header.Set(HeaderIdempotencyKey, "k")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}
