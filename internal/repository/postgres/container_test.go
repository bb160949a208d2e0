//go:build container
// +build container

package postgres_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/nextmessage/backend/internal/database"
	"github.com/nextmessage/backend/internal/repository"
	"github.com/nextmessage/backend/internal/repository/postgres"
	"github.com/nextmessage/backend/internal/repository/repotest"
)

func startPostgres(t *testing.T, ctx context.Context) *database.DB {
	t.Helper()

	req := tc.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "messages_test",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatal(err)
	}

	dsn := fmt.Sprintf("host=%s port=%s user=test password=test dbname=messages_test sslmode=disable", host, port.Port())
	db, err := database.NewPostgresDB(dsn)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	if err := database.RunMigrations(db.DB); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	return db
}

func TestContract(t *testing.T) {
	ctx := context.Background()
	db := startPostgres(t, ctx)

	repotest.Run(t, func(t *testing.T) repository.Set {
		if _, err := db.ExecContext(ctx, `TRUNCATE users, messages, group_messages, groups`); err != nil {
			t.Fatalf("truncate: %v", err)
		}
		return postgres.NewSet(db)
	})
}

func TestMigrationsAreIdempotent(t *testing.T) {
	db := startPostgres(t, context.Background())

	if err := database.RunMigrations(db.DB); err != nil {
		t.Fatalf("second run: %v", err)
	}
	applied, err := database.MigrationStatus(db.DB)
	if err != nil {
		t.Fatal(err)
	}
	if len(applied) != len(database.Migrations) {
		t.Errorf("expected %d applied migrations, got %d", len(database.Migrations), len(applied))
	}
}
