package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-chat-core/internal/domain"
	"github.com/tbourn/go-chat-core/internal/repo"
)

// newSvcDB opens a fresh in-memory database with the full schema. A single
// connection keeps the shared-cache database alive and serializes writers.
func newSvcDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", uuid.NewString())
	return openSvcDB(t, dsn)
}

// newPooledSvcDB opens a temp-file store through repo.Open, so goroutines
// race on the production pool: ten connections, WAL, busy_timeout.
func newPooledSvcDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := repo.Open(repo.Options{
		Driver:   repo.DriverSQLite,
		Path:     filepath.Join(t.TempDir(), "svc.db"),
		LogLevel: logger.Silent,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, repo.AutoMigrate(db))
	return db
}

func openSvcDB(t *testing.T, dsn string) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, repo.AutoMigrate(db))
	return db
}

func seedMember(t *testing.T, db *gorm.DB, username string) *domain.Member {
	t.Helper()
	m, err := repo.CreateMember(context.Background(), db, username, username+"@example.com")
	require.NoError(t, err)
	return m
}

func countRows(t *testing.T, db *gorm.DB, model any, where string, args ...any) int64 {
	t.Helper()
	var n int64
	q := db.Model(model)
	if where != "" {
		q = q.Where(where, args...)
	}
	require.NoError(t, q.Count(&n).Error)
	return n
}

// raceCalls runs fn from n goroutines at once and tallies the outcomes.
// Any error that is not a Conflict fails the test.
func raceCalls(t *testing.T, n int, fn func(i int) error) (succeeded, conflicted int) {
	t.Helper()
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		start  = make(chan struct{})
		others []error
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			err := fn(i)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case KindOf(err) == KindConflict:
				conflicted++
			default:
				others = append(others, err)
			}
		}(i)
	}
	close(start)
	wg.Wait()
	require.Empty(t, others)
	return succeeded, conflicted
}

var errInjected = errors.New("injected write failure")

// failWrites makes every create or update statement on table fail with
// errInjected before it reaches the database.
func failWrites(t *testing.T, db *gorm.DB, op, table string) {
	t.Helper()
	fail := func(tx *gorm.DB) {
		if tx.Statement.Table == table {
			_ = tx.AddError(errInjected)
		}
	}
	name := "test:fail_" + op + "_" + table
	var err error
	switch op {
	case "create":
		err = db.Callback().Create().Before("gorm:create").Register(name, fail)
	case "update":
		err = db.Callback().Update().Before("gorm:update").Register(name, fail)
	default:
		t.Fatalf("failWrites: unknown op %q", op)
	}
	require.NoError(t, err)
}
