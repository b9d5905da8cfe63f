package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-chat-core/internal/domain"
	"github.com/tbourn/go-chat-core/internal/http/middleware"
	"github.com/tbourn/go-chat-core/internal/repo"
	"github.com/tbourn/go-chat-core/internal/services"
)

// ---------- test DB ----------

func newHandlerDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:handlers_%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seed(t *testing.T, db *gorm.DB, username string) *domain.Member {
	t.Helper()
	m, err := repo.CreateMember(context.Background(), db, username, username+"@example.com")
	if err != nil {
		t.Fatalf("seed %s: %v", username, err)
	}
	return m
}

// ---------- in-memory collaborators ----------

type memReplays struct {
	mu   sync.Mutex
	recs map[string]middleware.IdempotencyRecord
}

func (m *memReplays) k(memberID int64, scope, key string) string {
	return strconv.FormatInt(memberID, 10) + "|" + scope + "|" + key
}

func (m *memReplays) Remember(_ context.Context, memberID int64, scope, key string, resourceID int64, status int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recs == nil {
		m.recs = map[string]middleware.IdempotencyRecord{}
	}
	m.recs[m.k(memberID, scope, key)] = middleware.IdempotencyRecord{ResourceID: resourceID, Status: status}
	return nil
}

func (m *memReplays) lookup(_ context.Context, memberID int64, scope, key string, _ time.Time) (*middleware.IdempotencyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, found := m.recs[m.k(memberID, scope, key)]; found {
		return &rec, nil
	}
	return nil, nil
}

type dbStats struct{ db *gorm.DB }

func (s dbStats) ChatsStats(ctx context.Context) (int64, *time.Time, error) {
	return repo.ChatsStats(ctx, s.db)
}

func (s dbStats) MessagesStats(ctx context.Context, chatID int64) (int64, *time.Time, error) {
	return repo.MessagesStats(ctx, s.db, chatID)
}

// ---------- router ----------

type testEnv struct {
	db *gorm.DB
	r  *gin.Engine
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	db := newHandlerDB(t)
	replays := &memReplays{}
	h := New(Deps{
		Chats:     services.NewChatService(db, services.StoreChats{}),
		Messages:  services.NewMessageService(db, 200),
		Friends:   services.NewFriendService(db),
		Previews:  services.NewPreviewService(db),
		Directory: services.NewDirectory(db),
		Stats:     dbStats{db: db},
		Replays:   replays,
	})
	return &testEnv{db: db, r: mount(h, replays.lookup)}
}

func mount(h *Handlers, lookup middleware.IdempotencyLookup) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	api := r.Group("/api/v1")
	api.Use(middleware.Identity(middleware.IdentityOptions{}))
	api.Use(middleware.IdempotencyValidator(middleware.IdempotencyOptions{}, lookup))

	api.POST("/chats", h.CreateDirectChat)
	api.POST("/chats/group", h.CreateGroupChat)
	api.GET("/chats", h.ListChats)
	api.GET("/chats/:id", h.ListMembers)
	api.PUT("/chats/:id", h.JoinChat)
	api.PUT("/chats/:id/name", h.RenameChat)
	api.DELETE("/chats/:id", h.DeleteChat)
	api.DELETE("/chats/:id/members/:email", h.RemoveMember)
	api.GET("/chats/:id/messages", h.ListMessages)
	api.POST("/chats/:id/messages", h.PostMessage)
	api.DELETE("/chats/:id/messages", h.ClearMessages)
	api.POST("/friends", h.AddFriend)
	api.GET("/friends", h.ListFriends)
	api.GET("/previews", h.GetPreviews)
	return r
}

// do sends a request as member (0 = anonymous). Extra headers are passed as
// name/value pairs.
func (e *testEnv) do(t *testing.T, method, path string, member int64, body any, hdr ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, "/api/v1"+path, rd)
	req.Header.Set("Content-Type", "application/json")
	if member > 0 {
		req.Header.Set(middleware.HeaderMemberID, strconv.FormatInt(member, 10))
	}
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	w := httptest.NewRecorder()
	e.r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("json: %v; body=%s", err, w.Body.String())
	}
	return v
}

func expectError(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("status=%d want %d; body=%s", w.Code, status, w.Body.String())
	}
	if er := decode[ErrorResponse](t, w); er.Code != code {
		t.Fatalf("code=%q want %q", er.Code, code)
	}
}
