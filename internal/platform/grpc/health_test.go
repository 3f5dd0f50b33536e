package grpc

import (
	"context"
	"testing"
	"time"

	gogrpc "google.golang.org/grpc"
)

func startHealthServer(t *testing.T, services ...string) *HealthServer {
	t.Helper()
	server, err := ServeHealth("127.0.0.1:0", services...)
	if err != nil {
		t.Fatalf("serve health: %v", err)
	}
	t.Cleanup(func() {
		if err := server.Stop(); err != nil {
			t.Errorf("stop health server: %v", err)
		}
	})
	return server
}

func dialHealthServer(t *testing.T, addr string) *gogrpc.ClientConn {
	t.Helper()
	conn, err := gogrpc.NewClient(addr, ClientOptions()...)
	if err != nil {
		t.Fatalf("dial health server: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestWaitForHealthServing(t *testing.T) {
	server := startHealthServer(t, "reminders.loop")
	conn := dialHealthServer(t, server.Addr())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := WaitForHealth(ctx, conn, "", nil); err != nil {
		t.Fatalf("wait for health: %v", err)
	}
	if err := WaitForHealth(ctx, conn, "reminders.loop", nil); err != nil {
		t.Fatalf("wait for named service: %v", err)
	}
}

func TestWaitForHealthTransitionsToServing(t *testing.T) {
	server := startHealthServer(t, "reminders.loop")
	server.SetServing("reminders.loop", false)
	conn := dialHealthServer(t, server.Addr())

	go func() {
		time.Sleep(200 * time.Millisecond)
		server.SetServing("reminders.loop", true)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := WaitForHealth(ctx, conn, "reminders.loop", nil); err != nil {
		t.Fatalf("wait for health after transition: %v", err)
	}
}

func TestWaitForHealthRespectsContext(t *testing.T) {
	server := startHealthServer(t, "reminders.loop")
	server.SetServing("reminders.loop", false)
	conn := dialHealthServer(t, server.Addr())

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	if err := WaitForHealth(ctx, conn, "reminders.loop", nil); err == nil {
		t.Fatal("expected context error, got nil")
	}
}

func TestWaitForHealthRequiresConnection(t *testing.T) {
	if err := WaitForHealth(context.Background(), nil, "", nil); err == nil {
		t.Fatal("expected error for nil connection")
	}
}

func TestCheckHealth(t *testing.T) {
	server := startHealthServer(t)
	if err := CheckHealth(context.Background(), server.Addr(), "", 2*time.Second, t.Logf); err != nil {
		t.Fatalf("check health: %v", err)
	}
}

func TestCheckHealthTimesOutWithoutServer(t *testing.T) {
	server := startHealthServer(t)
	addr := server.Addr()
	if err := server.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := CheckHealth(context.Background(), addr, "", 300*time.Millisecond, nil); err == nil {
		t.Fatal("expected error for stopped server")
	}
}

func TestServeHealthRequiresAddress(t *testing.T) {
	if _, err := ServeHealth(" "); err == nil {
		t.Fatal("expected error for empty address")
	}
}
