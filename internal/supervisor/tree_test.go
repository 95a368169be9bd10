// PagePulse - Web Usage Analytics and Realtime Dashboard Engine
// Copyright 2026 PagePulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pagepulse/pagepulse

package supervisor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

// countingService counts how often it is started.
type countingService struct {
	starts atomic.Int32
}

func (s *countingService) Serve(ctx context.Context) error {
	s.starts.Add(1)
	<-ctx.Done()
	return ctx.Err()
}

func (s *countingService) String() string { return "counting-service" }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTreeRunsServices(t *testing.T) {
	tree := NewTree(discardLogger(), DefaultTreeConfig())

	data := &countingService{}
	messaging := &countingService{}
	api := &countingService{}
	tree.AddDataService(data)
	tree.AddMessagingService(messaging)
	tree.AddAPIService(api)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tree.Serve(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for data.starts.Load() == 0 || messaging.starts.Load() == 0 || api.starts.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("services not started: data=%d messaging=%d api=%d",
				data.starts.Load(), messaging.starts.Load(), api.starts.Load())
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("Serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("tree did not stop")
	}
}

func TestTreeRestartsCrashedService(t *testing.T) {
	cfg := DefaultTreeConfig()
	cfg.FailureBackoff = 10 * time.Millisecond
	tree := NewTree(discardLogger(), cfg)

	crasher := &crashingService{crashes: 2}
	tree.AddMessagingService(crasher)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = tree.Serve(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for crasher.starts.Load() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("service started %d times, want at least 3", crasher.starts.Load())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// crashingService fails its first N serves, then blocks.
type crashingService struct {
	starts  atomic.Int32
	crashes int32
}

func (s *crashingService) Serve(ctx context.Context) error {
	n := s.starts.Add(1)
	if n <= s.crashes {
		return errors.New("synthetic crash")
	}
	<-ctx.Done()
	return ctx.Err()
}

func (s *crashingService) String() string { return "crashing-service" }
