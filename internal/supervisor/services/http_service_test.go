// PagePulse - Web Usage Analytics and Realtime Dashboard Engine
// Copyright 2026 PagePulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pagepulse/pagepulse

package services

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"
)

// fakeServer blocks in ListenAndServe until Shutdown or failure.
type fakeServer struct {
	failWith   error
	shutdownCh chan struct{}
	shutdowns  atomic.Int32
}

func newFakeServer(failWith error) *fakeServer {
	return &fakeServer{failWith: failWith, shutdownCh: make(chan struct{})}
}

func (s *fakeServer) ListenAndServe() error {
	if s.failWith != nil {
		return s.failWith
	}
	<-s.shutdownCh
	return http.ErrServerClosed
}

func (s *fakeServer) Shutdown(context.Context) error {
	s.shutdowns.Add(1)
	close(s.shutdownCh)
	return nil
}

func TestHTTPServerServiceGracefulShutdown(t *testing.T) {
	srv := newFakeServer(nil)
	svc := NewHTTPServerService(srv, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	if got := srv.shutdowns.Load(); got != 1 {
		t.Errorf("shutdown called %d times, want 1", got)
	}
}

func TestHTTPServerServiceStartupFailure(t *testing.T) {
	startErr := errors.New("bind: address already in use")
	svc := NewHTTPServerService(newFakeServer(startErr), time.Second)

	err := svc.Serve(context.Background())
	if err == nil || !errors.Is(err, startErr) {
		t.Errorf("Serve returned %v, want wrapped startup error", err)
	}
}
