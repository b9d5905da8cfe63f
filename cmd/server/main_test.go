package main

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-chat-core/internal/domain"
	"github.com/tbourn/go-chat-core/internal/repo"
)

func newDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:server_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, repo.AutoMigrate(db))
	return db
}

func TestSeedDemo_IsRepeatable(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()

	require.NoError(t, seedDemo(ctx, db))
	require.NoError(t, seedDemo(ctx, db))

	var n int64
	require.NoError(t, db.Model(&domain.Member{}).Count(&n).Error)
	require.EqualValues(t, len(demoMembers), n)

	m, err := repo.GetMemberByEmail(ctx, db, "bob@example.com")
	require.NoError(t, err)
	require.Equal(t, "bob", m.Username)
}

func TestPurgeIdempotency_RemovesExpired(t *testing.T) {
	db := newDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := repo.CreateIdempotency(ctx, db, 1, "/api/v1/chats", "old", 1, http.StatusCreated, time.Nanosecond)
	require.NoError(t, err)
	_, err = repo.CreateIdempotency(ctx, db, 1, "/api/v1/chats", "live", 2, http.StatusCreated, time.Hour)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		purgeIdempotency(ctx, db, 5*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool {
		var n int64
		if err := db.Model(&domain.Idempotency{}).Count(&n).Error; err != nil {
			return false
		}
		return n == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done
}
