//go:build container
// +build container

package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startRedis(t *testing.T, ctx context.Context) *RedisClient {
	t.Helper()

	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
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
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatal(err)
	}

	client, err := NewRedisClient(fmt.Sprintf("%s:%s", host, port.Port()), "", 0)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRedisClient(t *testing.T) {
	ctx := context.Background()
	client := startRedis(t, ctx)

	t.Run("MarkSeen", func(t *testing.T) {
		first, err := client.MarkSeen(ctx, "u1", time.Minute)
		if err != nil || !first {
			t.Fatalf("expected the first mark to win, got %v %v", first, err)
		}
		again, err := client.MarkSeen(ctx, "u1", time.Minute)
		if err != nil || again {
			t.Fatalf("expected the second mark inside the interval to lose, got %v %v", again, err)
		}
		other, _ := client.MarkSeen(ctx, "u2", time.Minute)
		if !other {
			t.Error("marks must be per user")
		}
	})

	t.Run("AllowAction", func(t *testing.T) {
		for i := range 3 {
			ok, err := client.AllowAction(ctx, "u1", "send", 1, 3)
			if err != nil {
				t.Fatal(err)
			}
			if !ok {
				t.Fatalf("request %d within the burst was limited", i)
			}
		}
		ok, err := client.AllowAction(ctx, "u1", "send", 1, 3)
		if err != nil {
			t.Fatal(err)
		}
		if ok {
			t.Error("expected the bucket to be empty")
		}
	})
}
