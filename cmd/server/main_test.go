package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseOptions(t *testing.T) {
	opts, err := parseOptions([]string{"-config", "/etc/adminhub", "-migrate"})
	require.NoError(t, err)
	require.Equal(t, "/etc/adminhub", opts.configPath)
	require.True(t, opts.migrateOnly)

	opts, err = parseOptions(nil)
	require.NoError(t, err)
	require.Empty(t, opts.configPath)
	require.False(t, opts.migrateOnly)

	_, err = parseOptions([]string{"-h"})
	require.True(t, errors.Is(err, flag.ErrHelp))
}

func TestServeStopsOnContextCancel(t *testing.T) {
	srv := &http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler(), ReadHeaderTimeout: time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, srv, time.Second, zap.NewNop()) }()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
}

func TestServeReportsListenFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	srv := &http.Server{Addr: ln.Addr().String(), Handler: http.NotFoundHandler(), ReadHeaderTimeout: time.Second}
	err = serve(context.Background(), srv, time.Second, zap.NewNop())
	require.ErrorContains(t, err, "server error")
}
