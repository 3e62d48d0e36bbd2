package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/example/taskhub/internal/config"
)

func testConfig(t *testing.T, storage string) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Storage = storage
	cfg.SQLitePath = filepath.Join(t.TempDir(), "taskhub.db")
	cfg.JanitorSchedule = "off"
	cfg.SeedOwners = []string{"alice"}
	cfg.ShutdownTimeout = time.Second
	return cfg
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewApp_Storages(t *testing.T) {
	for _, storage := range []string{config.StorageMemory, config.StorageSQLite} {
		t.Run(storage, func(t *testing.T) {
			app, err := newApp(context.Background(), testConfig(t, storage), discardLogger())
			if err != nil {
				t.Fatalf("newApp failed: %v", err)
			}
			t.Cleanup(func() { _ = app.Close() })

			server := httptest.NewServer(app.handler)
			defer server.Close()

			resp, err := http.Post(server.URL+"/api/owners/alice/events", "application/json",
				strings.NewReader(`{"title":"Review","eventDateTime":"2024-05-01T09:00:00","isRecurring":true,"recurringPattern":"WEEKLY","recurringEndDate":"2024-05-20T00:00:00"}`))
			if err != nil {
				t.Fatalf("POST failed: %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusCreated {
				t.Fatalf("expected 201, got %d", resp.StatusCode)
			}

			var body struct {
				Success bool `json:"success"`
				Data    struct {
					Instances []json.RawMessage `json:"instances"`
				} `json:"data"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("decode failed: %v", err)
			}
			if !body.Success || len(body.Data.Instances) != 2 {
				t.Fatalf("unexpected response: %+v", body)
			}

			health, err := http.Get(server.URL + "/healthz")
			if err != nil {
				t.Fatalf("GET /healthz failed: %v", err)
			}
			health.Body.Close()
			if health.StatusCode != http.StatusOK {
				t.Fatalf("expected healthy, got %d", health.StatusCode)
			}
		})
	}
}

func TestNewApp_SeedingIsIdempotent(t *testing.T) {
	cfg := testConfig(t, config.StorageSQLite)

	first, err := newApp(context.Background(), cfg, discardLogger())
	if err != nil {
		t.Fatalf("first newApp failed: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	second, err := newApp(context.Background(), cfg, discardLogger())
	if err != nil {
		t.Fatalf("second newApp failed: %v", err)
	}
	_ = second.Close()
}

func TestApp_ServeStopsOnCancel(t *testing.T) {
	cfg := testConfig(t, config.StorageMemory)
	cfg.JanitorSchedule = "@every 1h"

	app, err := newApp(context.Background(), cfg, discardLogger())
	if err != nil {
		t.Fatalf("newApp failed: %v", err)
	}
	defer app.Close()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- app.Serve(ctx, listener)
	}()

	url := "http://" + listener.Addr().String() + "/healthz"
	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server did not come up: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve returned error: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}
}
