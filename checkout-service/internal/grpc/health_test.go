package grpc

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func startHealthServer(t *testing.T, checks map[string]Check) (*HealthServer, healthpb.HealthClient) {
	t.Helper()
	hs := NewHealthServer(checks, time.Hour)

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = hs.Serve(lis) }()
	t.Cleanup(hs.GracefulStop)

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return hs, healthpb.NewHealthClient(conn)
}

func status(t *testing.T, client healthpb.HealthClient, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.GetStatus()
}

func TestHealthServer_ServingByDefault(t *testing.T) {
	_, client := startHealthServer(t, nil)

	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status(t, client, ""))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status(t, client, ServiceName))
}

func TestHealthServer_ProbeFollowsDependencies(t *testing.T) {
	var failing atomic.Bool
	hs, client := startHealthServer(t, map[string]Check{
		"postgres": func(context.Context) error {
			if failing.Load() {
				return errors.New("connection refused")
			}
			return nil
		},
	})

	failing.Store(true)
	hs.probe(context.Background())
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status(t, client, ServiceName))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status(t, client, ""))

	failing.Store(false)
	hs.probe(context.Background())
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status(t, client, ServiceName))
}

func TestHealthServer_WatchStopsWithContext(t *testing.T) {
	var calls atomic.Int32
	hs, _ := startHealthServer(t, map[string]Check{
		"redis": func(context.Context) error { calls.Add(1); return nil },
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		hs.Watch(ctx)
		close(done)
	}()
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 10*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}
