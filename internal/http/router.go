// Package httpapi wires the HTTP transport (Gin) to the chat services,
// middleware, and route handlers. It owns the cross-cutting concerns:
// tracing, correlation IDs, redacted logging, panic recovery, compression,
// metrics, CORS, security headers, member identity, idempotency, and rate
// limiting.
//
// Middleware order:
//  1. OpenTelemetry
//  2. RequestID
//  3. RedactingLogger
//  4. Recovery
//  5. Body size limit
//  6. gzip
//  7. Metrics (+ /metrics)
//  8. CORS and security headers
//
// The API group adds Identity, then the idempotency validator (before the
// limiter so replays bypass it), then the per-member rate limiter.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/tbourn/go-chat-core/internal/config"
	"github.com/tbourn/go-chat-core/internal/domain"
	_ "github.com/tbourn/go-chat-core/internal/http/docs"
	"github.com/tbourn/go-chat-core/internal/http/handlers"
	"github.com/tbourn/go-chat-core/internal/http/middleware"
	"github.com/tbourn/go-chat-core/internal/repo"
	"github.com/tbourn/go-chat-core/internal/services"
)

// replayStore persists idempotent create outcomes in the idempotency table.
type replayStore struct {
	db  *gorm.DB
	ttl time.Duration
}

// Remember records resourceID for (memberID, scope, key). An existing record
// is repointed, which happens when the original resource was deleted and the
// retry created a new one.
func (s replayStore) Remember(ctx context.Context, memberID int64, scope, key string, resourceID int64, status int) error {
	_, err := repo.CreateIdempotency(ctx, s.db, memberID, scope, key, resourceID, status, s.ttl)
	if errors.Is(err, repo.ErrDuplicate) {
		return s.db.WithContext(ctx).Model(&domain.Idempotency{}).
			Where("member_id = ? AND scope = ? AND key = ?", memberID, scope, key).
			Updates(map[string]any{
				"resource_id": resourceID,
				"status":      status,
				"expires_at":  time.Now().UTC().Add(s.ttl),
			}).Error
	}
	return err
}

// lookup adapts repo.GetIdempotency to middleware.IdempotencyLookup.
func (s replayStore) lookup(ctx context.Context, memberID int64, scope, key string, now time.Time) (*middleware.IdempotencyRecord, error) {
	rec, err := repo.GetIdempotency(ctx, s.db, memberID, scope, key, now)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &middleware.IdempotencyRecord{ResourceID: rec.ResourceID, Status: rec.Status}, nil
}

// statsShim exposes the repo listing stats to the handlers.
type statsShim struct{ db *gorm.DB }

func (s statsShim) ChatsStats(ctx context.Context) (int64, *time.Time, error) {
	return repo.ChatsStats(ctx, s.db)
}

func (s statsShim) MessagesStats(ctx context.Context, chatID int64) (int64, *time.Time, error) {
	return repo.MessagesStats(ctx, s.db, chatID)
}

// memberExists backs Identity so unknown callers get 401 instead of
// failing later on foreign keys. Concurrent requests for the same member
// share one query, which outlives the cancellation of whichever request
// started it.
func memberExists(db *gorm.DB) middleware.MemberLookup {
	var group singleflight.Group
	return func(ctx context.Context, id int64) (bool, error) {
		v, err, _ := group.Do(strconv.FormatInt(id, 10), func() (any, error) {
			_, err := repo.GetMember(context.WithoutCancel(ctx), db, id)
			if errors.Is(err, repo.ErrNotFound) {
				return false, nil
			}
			return err == nil, err
		})
		if err != nil {
			return false, err
		}
		return v.(bool), nil
	}
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine and mounts the versioned API under cfg.APIBasePath.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{middleware.HeaderMemberID},
	}))
	r.Use(middleware.Recovery())
	r.Use(limitBody(1 << 20))
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	allowHeaders := []string{
		"Origin", "Content-Type", "Accept", "Authorization",
		middleware.HeaderMemberID, middleware.HeaderIdempotencyKey, "If-None-Match",
	}
	exposeHeaders := []string{"X-Request-ID", "Content-Length", "ETag", "Idempotency-Replayed"}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// ACAO is forced even without an Origin header so simple probes see it.
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	} else {
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	chatSvc := services.NewChatService(db, services.StoreChats{})
	if cfg.Limits.ChatNameMax > 0 {
		chatSvc.NameMaxLen = cfg.Limits.ChatNameMax
	}
	replays := replayStore{db: db, ttl: cfg.IdempotencyTTL}
	h := handlers.New(handlers.Deps{
		Chats:     chatSvc,
		Messages:  services.NewMessageService(db, cfg.Limits.MessageMaxRunes),
		Friends:   services.NewFriendService(db),
		Previews:  services.NewPreviewService(db),
		Directory: services.NewDirectory(db),
		Stats:     statsShim{db: db},
		Replays:   replays,
	})

	api := groupWithPrefix(r, cfg.APIBasePath)
	api.Use(middleware.Identity(middleware.IdentityOptions{
		Secret: []byte(cfg.JWTSecret),
		Exists: memberExists(db),
	}))
	api.Use(middleware.IdempotencyValidator(middleware.IdempotencyOptions{MaxLen: 200}, replays.lookup))
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByMemberOrIP())
	api.Use(rl.Handler())
	{
		// Chats
		api.POST("/chats", h.CreateDirectChat)
		api.POST("/chats/group", h.CreateGroupChat)
		api.GET("/chats", h.ListChats)
		api.GET("/chats/:id", h.ListMembers)
		api.PUT("/chats/:id", h.JoinChat)
		api.PUT("/chats/:id/name", h.RenameChat)
		api.DELETE("/chats/:id", h.DeleteChat)
		api.DELETE("/chats/:id/members/:email", h.RemoveMember)

		// Messages
		api.GET("/chats/:id/messages", h.ListMessages)
		api.POST("/chats/:id/messages", h.PostMessage)
		api.DELETE("/chats/:id/messages", h.ClearMessages)

		// Friends and previews
		api.POST("/friends", h.AddFriend)
		api.GET("/friends", h.ListFriends)
		api.GET("/previews", h.GetPreviews)
	}
}

// limitBody caps the request body size at maxBytes. Reads past the cap fail.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
