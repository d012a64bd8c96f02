// Package testhelpers starts the sales database once per test binary and
// hands out scoped contexts and seeded rows for integration tests.
package testhelpers

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sales/pkg/database"
)

const (
	salesImage    = "postgres:16-alpine"
	salesDatabase = "ekaya_sales_test"
	salesRole     = "ekaya"
)

// SalesDB is a migrated sales database running in a container.
type SalesDB struct {
	DB  *database.DB
	URL string
}

var (
	salesOnce sync.Once
	salesDB   *SalesDB
	salesErr  error
)

// Postgres returns the shared sales database, starting it on first use.
// Integration tests are skipped under -short.
func Postgres(t *testing.T) *SalesDB {
	t.Helper()
	if testing.Short() {
		t.Skip("sales database needs Docker; skipped under -short")
	}

	salesOnce.Do(func() {
		salesDB, salesErr = startSalesDB(context.Background())
	})
	if salesErr != nil {
		t.Fatalf("sales database unavailable: %v", salesErr)
	}
	return salesDB
}

func startSalesDB(ctx context.Context) (*SalesDB, error) {
	container, err := postgres.Run(ctx, salesImage,
		postgres.WithDatabase(salesDatabase),
		postgres.WithUsername(salesRole),
		postgres.WithPassword("sales_test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute)),
	)
	if err != nil {
		return nil, fmt.Errorf("start postgres: %w", err)
	}

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, fmt.Errorf("connection string: %w", err)
	}

	if err := migrate(url); err != nil {
		return nil, err
	}

	db, err := database.NewConnection(ctx, &database.Config{URL: url, MaxConnections: 10})
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	return &SalesDB{DB: db, URL: url}, nil
}

func migrate(url string) error {
	sqlDB, err := database.OpenSQL(url)
	if err != nil {
		return fmt.Errorf("open sql: %w", err)
	}
	defer sqlDB.Close()

	if err := database.RunMigrations(sqlDB, zap.NewNop()); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
