package testutil

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/udisondev/wayfinder/internal/db"
	"github.com/udisondev/wayfinder/internal/pathfind"
)

// postgresImage pins the database version integration tests run against.
const postgresImage = "postgres:16-alpine"

// SetupTestDB starts a PostgreSQL testcontainer, applies the rooms schema
// through db.RunMigrations and returns a ready pool. All cleanup is
// registered on the test.
func SetupTestDB(tb testing.TB) *pgxpool.Pool {
	tb.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx, postgresImage,
		postgres.WithDatabase("wayfinder_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		tb.Fatalf("starting postgres container: %v", err)
	}
	tb.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			tb.Logf("terminating postgres container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		tb.Fatalf("getting connection string: %v", err)
	}

	if _, err := db.RunMigrations(ctx, dsn); err != nil {
		tb.Fatalf("running migrations: %v", err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		tb.Fatalf("connecting to test db: %v", err)
	}
	tb.Cleanup(pool.Close)
	return pool
}

// SeedPlainRooms stores all-plain packed terrain for the named rooms.
func SeedPlainRooms(tb testing.TB, pool *pgxpool.Pool, roomNames ...string) {
	tb.Helper()

	bits, err := pathfind.PackTerrain(make([]byte, pathfind.RoomArea))
	if err != nil {
		tb.Fatalf("packing terrain: %v", err)
	}

	repo := db.NewTerrainRepository(pool)
	for _, name := range roomNames {
		if err := repo.UpsertRoom(context.Background(), name, bits); err != nil {
			tb.Fatalf("seeding room %s: %v", name, err)
		}
	}
}
