package repo

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-chat-core/internal/domain"
)

func openTemp(t *testing.T, opts Options) *gorm.DB {
	t.Helper()
	if opts.Path == "" {
		opts.Path = filepath.Join(t.TempDir(), "chat.db")
	}
	db, err := Open(opts)
	if err != nil {
		t.Fatalf("Open(%+v): %v", opts, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB(): %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func TestOpenSQLite_MissingDirectory(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "absent", "chat.db")
	if db, err := OpenSQLite(bad); err == nil || db != nil {
		t.Fatalf("expected error for %q, got db=%v err=%v", bad, db, err)
	}
}

func TestOpenSQLite_Pragmas(t *testing.T) {
	db := openTemp(t, Options{Driver: DriverSQLite})

	cases := []struct {
		pragma string
		want   string
	}{
		{"journal_mode", "wal"},
		{"foreign_keys", "1"},
		{"busy_timeout", "5000"},
	}
	for _, tc := range cases {
		var got string
		if err := db.Raw("PRAGMA " + tc.pragma).Row().Scan(&got); err != nil {
			t.Fatalf("PRAGMA %s: %v", tc.pragma, err)
		}
		if strings.ToLower(got) != tc.want {
			t.Fatalf("PRAGMA %s = %q, want %q", tc.pragma, got, tc.want)
		}
	}

	sqlDB, _ := db.DB()
	if got := sqlDB.Stats().MaxOpenConnections; got != 10 {
		t.Fatalf("MaxOpenConnections = %d, want 10", got)
	}
}

func TestAutoMigrate_CascadesFromChats(t *testing.T) {
	db := openTemp(t, Options{})
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	for _, tbl := range []any{&domain.Member{}, &domain.Contact{}, &domain.Chat{}, &domain.ChatMember{}, &domain.Message{}, &domain.Idempotency{}} {
		if !db.Migrator().HasTable(tbl) {
			t.Fatalf("no table for %T", tbl)
		}
	}

	ctx := context.Background()
	now := time.Now().UTC()
	chat, err := CreateChat(ctx, db, "ops", domain.ChatKindGroup, nil)
	if err != nil {
		t.Fatalf("CreateChat: %v", err)
	}
	if _, err := CreateMessage(ctx, db, chat.ID, 1, "deploy at 5", now); err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	if _, err := DeleteChat(ctx, db, chat.ID); err != nil {
		t.Fatalf("DeleteChat: %v", err)
	}

	// Pooled connections enforce foreign keys, so the message went with the chat.
	var left int64
	if err := db.Model(&domain.Message{}).Where("chat_id = ?", chat.ID).Count(&left).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if left != 0 {
		t.Fatalf("%d messages survived their chat", left)
	}
}

func TestOpen_Drivers(t *testing.T) {
	db := openTemp(t, Options{Driver: " SQLite ", MaxOpenConns: 3, Tracing: true})
	sqlDB, _ := db.DB()
	if got := sqlDB.Stats().MaxOpenConnections; got != 3 {
		t.Fatalf("MaxOpenConnections = %d, want 3", got)
	}

	for _, opts := range []Options{
		{Driver: "mysql"},
		{Driver: DriverPQ, DSN: "not a dsn"},
	} {
		if _, err := Open(opts); err == nil {
			t.Fatalf("Open(%q) should fail", opts.Driver)
		}
	}
}
