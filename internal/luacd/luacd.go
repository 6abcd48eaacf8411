// Copyright 2026 The luac51 Authors
// SPDX-License-Identifier: MIT

// Package luacd provides the Cobra command for luacd, an HTTP server
// that exposes the compiler pipeline as a single POST /compile
// endpoint, wrapped in [handlers.LoggingHandler] and
// [handlers.RecoveryHandler] the way the teacher wraps its own build
// UI server in cmd/zb.
package luacd

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gorilla/handlers"
	"github.com/spf13/cobra"
	"zombiezen.com/go/log"

	"github.com/lua51c/luac51"
	"github.com/lua51c/luac51/internal/luaccache"
	"github.com/lua51c/luac51/internal/luadiag"
)

type config struct {
	Addr            string
	Debug           bool
	MaxNestingDepth int
	CacheDir        string
}

// New returns the "luacd" root command.
func New() *cobra.Command {
	cfg := &config{
		Addr:            "localhost:8080",
		MaxNestingDepth: compile.DefaultMaxNestingDepth,
	}

	c := &cobra.Command{
		Use:                   "luacd [options]",
		Short:                 "serve the Lua 5.1 compiler over HTTP",
		DisableFlagsInUseLine: true,
		Args:                  cobra.NoArgs,
		SilenceErrors:         true,
		SilenceUsage:          true,
	}
	c.Flags().StringVar(&cfg.Addr, "addr", cfg.Addr, "address to listen on")
	c.Flags().BoolVar(&cfg.Debug, "debug", cfg.Debug, "enable verbose logging")
	c.Flags().IntVar(&cfg.MaxNestingDepth, "max-depth", cfg.MaxNestingDepth, "maximum nesting depth for blocks, expressions, and functions")
	c.Flags().StringVar(&cfg.CacheDir, "cache", cfg.CacheDir, "directory of a compile cache to consult and populate")

	c.RunE = func(cmd *cobra.Command, args []string) error {
		initLogging(cfg.Debug)
		return run(cmd.Context(), cfg)
	}
	return c
}

func initLogging(debug bool) {
	minLevel := log.Info
	if debug {
		minLevel = log.Debug
	}
	log.SetDefault(&log.LevelFilter{
		Min:    minLevel,
		Output: log.New(os.Stderr, "luacd: ", log.StdFlags, nil),
	})
}

func run(ctx context.Context, cfg *config) error {
	var cache *luaccache.Cache
	if cfg.CacheDir != "" {
		if err := os.MkdirAll(cfg.CacheDir, 0o777); err != nil {
			return err
		}
		cache = luaccache.Open(filepath.Join(cfg.CacheDir, "cache.db"))
		defer cache.Close(ctx)
	}

	srv := &server{cache: cache, maxNestingDepth: cfg.MaxNestingDepth}

	mux := http.NewServeMux()
	mux.Handle("/compile", handlers.MethodHandler{
		http.MethodPost: http.HandlerFunc(srv.handleCompile),
	})

	handler := handlers.RecoveryHandler(handlers.RecoveryLogger(recoveryLogger{}))(mux)
	handler = handlers.LoggingHandler(recoveryLogger{}, handler)

	listener, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return err
	}
	log.Infof(ctx, "listening on %s", listener.Addr())

	httpServer := &http.Server{
		Handler:  handler,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}
	errc := make(chan error, 1)
	go func() { errc <- httpServer.Serve(listener) }()
	select {
	case <-ctx.Done():
		return httpServer.Close()
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// server holds the state shared by every /compile request.
type server struct {
	cache           *luaccache.Cache
	maxNestingDepth int
}

// handleCompile implements POST /compile: the request body is Lua 5.1
// source, the response body is a binary chunk on success. A
// compilation failure reports 422 with the [lualex.Error],
// [luaparse.Error], or [luacode.Error] message rather than 500, since
// bad Lua source is a client error, not a server fault.
func (srv *server) handleCompile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	source, err := io.ReadAll(io.LimitReader(r.Body, 8<<20))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if srv.cache != nil {
		if chunk, ok, err := srv.cache.Lookup(ctx, source); err == nil && ok {
			w.Header().Set("Content-Type", "application/octet-stream")
			w.Write(chunk)
			return
		}
	}

	chunk, err := compile.Compile(source, compile.Options{
		ChunkName:       "=(http)",
		MaxNestingDepth: srv.maxNestingDepth,
	})
	if err != nil {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusUnprocessableEntity)
		if se, ok := err.(luadiag.SourceError); ok {
			io.WriteString(w, se.Error())
		} else {
			io.WriteString(w, err.Error())
		}
		return
	}

	if srv.cache != nil {
		if err := srv.cache.Store(ctx, source, chunk); err != nil {
			log.Warnf(ctx, "cache store: %v", err)
		}
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write(chunk)
}

// recoveryLogger adapts zombiezen.com/go/log's package-level logging
// functions to the io.Writer/handlers.RecoveryLogger interfaces
// gorilla/handlers expects for its access and panic logs.
type recoveryLogger struct{}

func (recoveryLogger) Write(p []byte) (int, error) {
	log.Infof(context.Background(), "%s", p)
	return len(p), nil
}

func (recoveryLogger) Println(args ...any) {
	log.Errorf(context.Background(), "%v", args)
}
