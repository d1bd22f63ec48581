//go:build integration

package ratelimit

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/repoharvest/ghfetch/pkg/search"
)

// setupRedis starts a Redis container and returns a client
func setupRedis(t *testing.T) (*redis.Client, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	endpoint, err := redisContainer.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("Failed to get Redis endpoint: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: endpoint,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("Failed to connect to Redis: %v", err)
	}

	cleanup := func() {
		client.Close()
		redisContainer.Terminate(ctx)
	}

	return client, cleanup
}

func TestStore_Integration_GetState(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	logger := zerolog.New(os.Stderr).Level(zerolog.Disabled)
	store := NewStore(redisClient, logger)
	ctx := context.Background()

	// Default budget when Redis is empty
	state, err := store.GetState(ctx)
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}

	if state.Remaining != 5000 {
		t.Errorf("Default Remaining = %d, want 5000", state.Remaining)
	}
	if state.Known {
		t.Error("Default state should not be marked as observed telemetry")
	}

	// Store telemetry and read it back
	resetAt := time.Now().Add(45 * time.Minute)
	status := search.RateLimitStatus{Cost: 1, Remaining: 3200, ResetAt: resetAt}

	if err := store.Update(ctx, status); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	state, err = store.GetState(ctx)
	if err != nil {
		t.Fatalf("GetState() after update error = %v", err)
	}

	if state.Remaining != 3200 {
		t.Errorf("Remaining = %d, want 3200", state.Remaining)
	}
	if !state.Known {
		t.Error("State should be marked known after update")
	}

	tolerance := 5 * time.Second
	wait := state.TimeUntilReset(time.Now())
	if wait < 45*time.Minute-tolerance || wait > 45*time.Minute+tolerance {
		t.Errorf("TimeUntilReset = %v, want approximately 45m", wait)
	}
}

func TestStore_Integration_ShouldAllowRequest(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	logger := zerolog.New(os.Stderr).Level(zerolog.Disabled)
	store := NewStore(redisClient, logger)
	ctx := context.Background()

	tests := []struct {
		name      string
		remaining int
		allow     bool
	}{
		{"healthy", 4000, true},
		{"warning band still allowed", 50, true},
		{"critical blocked", 3, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := search.RateLimitStatus{
				Cost:      1,
				Remaining: tt.remaining,
				ResetAt:   time.Now().Add(30 * time.Minute),
			}
			if err := store.Update(ctx, status); err != nil {
				t.Fatalf("Update() error = %v", err)
			}

			allowed, err := store.ShouldAllowRequest(ctx)
			if err != nil {
				t.Fatalf("ShouldAllowRequest() error = %v", err)
			}
			if allowed != tt.allow {
				t.Errorf("ShouldAllowRequest() = %v, want %v", allowed, tt.allow)
			}
		})
	}
}

func TestStore_Integration_BlockLiftsAfterReset(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	logger := zerolog.New(os.Stderr).Level(zerolog.Disabled)
	store := NewStore(redisClient, logger)
	ctx := context.Background()

	// Critical remaining, but the window already reset
	status := search.RateLimitStatus{
		Cost:      1,
		Remaining: 0,
		ResetAt:   time.Now().Add(-time.Minute),
	}
	if err := store.Update(ctx, status); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	allowed, err := store.ShouldAllowRequest(ctx)
	if err != nil {
		t.Fatalf("ShouldAllowRequest() error = %v", err)
	}
	if !allowed {
		t.Error("Request should be allowed once the reset time has passed")
	}
}
