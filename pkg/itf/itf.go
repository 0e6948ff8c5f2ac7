// Package itf is the integration-test framework: each test gets a fresh
// database with migrations applied, a pgx pool, and a context carrying an
// open transaction that is rolled back on cleanup.
package itf

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"

	"github.com/regworks/accredit-sdk/pkg/composables"
	"github.com/regworks/accredit-sdk/pkg/configuration"
	"github.com/regworks/accredit-sdk/pkg/schema"
)

// TestEnvironment contains the per-test dependencies.
type TestEnvironment struct {
	Ctx     context.Context
	Pool    *pgxpool.Pool
	Tx      pgx.Tx
	ActorID uuid.UUID
}

// Setup creates a database named after the test, applies migrations, opens a
// transaction, and returns a context wired with pool, tx, and an actor id.
func Setup(tb testing.TB) *TestEnvironment {
	tb.Helper()

	dbName := sanitizeDBName(tb.Name())
	createDB(tb, dbName)

	pool := newPool(tb, dbOpts(dbName))

	ctx := context.Background()
	tx, err := pool.Begin(ctx)
	if err != nil {
		tb.Fatal(err)
	}

	actorID := uuid.New()
	ctx = composables.WithPool(ctx, pool)
	ctx = composables.WithTx(ctx, tx)
	ctx = composables.WithActorID(ctx, actorID)

	te := &TestEnvironment{
		Ctx:     ctx,
		Pool:    pool,
		Tx:      tx,
		ActorID: actorID,
	}

	tb.Cleanup(func() {
		// Roll back te.Tx, not the tx captured above: CommitAndBegin may
		// have replaced it, and leaving the replacement open deadlocks
		// pool.Close.
		if err := te.Tx.Rollback(context.Background()); err != nil && err != pgx.ErrTxClosed {
			tb.Logf("failed to rollback test transaction: %v", err)
		}
		pool.Close()
	})

	return te
}

// CommitAndBegin commits the environment's transaction and starts a fresh
// one, for tests that exercise cross-transaction behavior such as partial
// unique indexes.
func (te *TestEnvironment) CommitAndBegin(tb testing.TB) {
	tb.Helper()
	if err := te.Tx.Commit(context.Background()); err != nil {
		tb.Fatal(err)
	}
	tx, err := te.Pool.Begin(context.Background())
	if err != nil {
		tb.Fatal(err)
	}
	te.Tx = tx
	te.Ctx = composables.WithTx(te.Ctx, tx)
}

func newPool(tb testing.TB, opts string) *pgxpool.Pool {
	tb.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	config, err := pgxpool.ParseConfig(opts)
	if err != nil {
		tb.Fatal(err)
	}
	config.MaxConns = 4
	config.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		tb.Fatalf("failed to create database pool: %v", err)
	}
	return pool
}

func createDB(tb testing.TB, name string) {
	tb.Helper()
	c := configuration.Use()
	adminConnStr := fmt.Sprintf(
		"host=%s port=%s user=%s dbname=postgres password=%s sslmode=disable",
		c.Database.Host, c.Database.Port, c.Database.User, c.Database.Password,
	)
	admin, err := sql.Open("postgres", adminConnStr)
	if err != nil {
		tb.Fatal(err)
	}
	defer func() {
		if err := admin.Close(); err != nil {
			tb.Logf("failed to close admin connection: %v", err)
		}
	}()

	if _, err := admin.Exec(fmt.Sprintf("DROP DATABASE IF EXISTS %s", name)); err != nil {
		tb.Fatal(err)
	}
	if _, err := admin.Exec(fmt.Sprintf("CREATE DATABASE %s", name)); err != nil {
		tb.Fatal(err)
	}

	opts := c.Database
	opts.Name = name
	db, err := schema.Open(opts)
	if err != nil {
		tb.Fatal(err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			tb.Logf("failed to close migration connection: %v", err)
		}
	}()
	if _, err := schema.Up(db); err != nil {
		tb.Fatalf("failed to apply migrations: %v", err)
	}
}

func dbOpts(name string) string {
	c := configuration.Use()
	return fmt.Sprintf(
		"host=%s port=%s user=%s dbname=%s password=%s sslmode=disable",
		c.Database.Host, c.Database.Port, c.Database.User, name, c.Database.Password,
	)
}

// Postgres caps database names at 63 characters.
const maxDBNameLength = 63

func sanitizeDBName(name string) string {
	sanitized := strings.ToLower(name)
	for _, r := range []string{"/", " ", "-", ".", "(", ")", "[", "]", "#"} {
		sanitized = strings.ReplaceAll(sanitized, r, "_")
	}
	for strings.Contains(sanitized, "__") {
		sanitized = strings.ReplaceAll(sanitized, "__", "_")
	}
	sanitized = strings.Trim(sanitized, "_")
	if sanitized == "" {
		sanitized = "test_db"
	}
	if len(sanitized) <= maxDBNameLength {
		return sanitized
	}
	hash := fmt.Sprintf("%x", sha256.Sum256([]byte(name)))[:8]
	return sanitized[:maxDBNameLength-9] + "_" + hash
}
