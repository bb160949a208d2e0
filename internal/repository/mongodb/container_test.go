//go:build container
// +build container

package mongodb_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/nextmessage/backend/internal/database"
	"github.com/nextmessage/backend/internal/repository"
	"github.com/nextmessage/backend/internal/repository/mongodb"
	"github.com/nextmessage/backend/internal/repository/repotest"
)

func startMongo(t *testing.T, ctx context.Context) *database.MongoDB {
	t.Helper()

	req := tc.ContainerRequest{
		Image:        "mongo:7",
		ExposedPorts: []string{"27017/tcp"},
		WaitingFor:   wait.ForLog("Waiting for connections").WithStartupTimeout(60 * time.Second),
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
	port, err := container.MappedPort(ctx, "27017/tcp")
	if err != nil {
		t.Fatal(err)
	}

	m, err := database.NewMongoDB(ctx, fmt.Sprintf("mongodb://%s:%s", host, port.Port()), "messages_test")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = m.Close(ctx) })
	return m
}

func TestContract(t *testing.T) {
	ctx := context.Background()
	m := startMongo(t, ctx)

	repotest.Run(t, func(t *testing.T) repository.Set {
		if err := m.DB.Drop(ctx); err != nil {
			t.Fatalf("drop: %v", err)
		}
		if err := m.EnsureIndexes(ctx); err != nil {
			t.Fatalf("indexes: %v", err)
		}
		return mongodb.NewSet(m)
	})
}
