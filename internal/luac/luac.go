// Copyright 2026 The luac51 Authors
// SPDX-License-Identifier: MIT

// Package luac provides the Cobra command for the luac51 compiler
// CLI, grounded on the teacher's own internal/luac command structure:
// persistent flags on a root [cobra.Command], a RunE that resolves
// input files, and one worker per file compiled concurrently under an
// [errgroup.Group].
package luac

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	jsonv2 "github.com/go-json-experiment/json"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/tailscale/hujson"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"
	"zombiezen.com/go/log"

	"github.com/lua51c/luac51"
	"github.com/lua51c/luac51/internal/luaccache"
	"github.com/lua51c/luac51/internal/luadiag"
)

// config is the merged CLI-flag/config-file settings for one luac
// invocation. Its JSON tags mirror what a HuJSON config file may set,
// following the teacher's globalConfig pattern of a single struct
// consumed by both flags and a config file.
type config struct {
	Debug           bool   `json:"debug"`
	MaxNestingDepth int    `json:"maxNestingDepth"`
	CacheDir        string `json:"cacheDir"`
	Output          string `json:"-"`
}

func defaultConfig() *config {
	return &config{
		MaxNestingDepth: compile.DefaultMaxNestingDepth,
	}
}

// mergeFile merges a HuJSON config file's fields into cfg, the same
// hujson.Standardize-then-jsonv2.Unmarshal pipeline the teacher's
// cmd/zb uses for its own config file, simplified to a plain struct
// decode since this command's config has no fields that need custom
// incremental-merge semantics.
func (cfg *config) mergeFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	standardized, err := hujson.Standardize(raw)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := jsonv2.Unmarshal(standardized, cfg); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return nil
}

// New returns the "luac" root command.
func New() *cobra.Command {
	cfg := defaultConfig()
	var configPath string

	c := &cobra.Command{
		Use:                   "luac [options] FILE...",
		Short:                 "compile Lua 5.1 source to bytecode",
		DisableFlagsInUseLine: true,
		SilenceErrors:         true,
		SilenceUsage:          true,
	}
	c.PersistentFlags().BoolVar(&cfg.Debug, "debug", cfg.Debug, "enable verbose logging")
	c.PersistentFlags().IntVar(&cfg.MaxNestingDepth, "max-depth", cfg.MaxNestingDepth, "maximum nesting depth for blocks, expressions, and functions")
	c.PersistentFlags().StringVar(&cfg.CacheDir, "cache", cfg.CacheDir, "directory of a compile cache to consult and populate")
	c.PersistentFlags().StringVar(&configPath, "config", "", "path to a HuJSON configuration file")
	c.Flags().StringVarP(&cfg.Output, "output", "o", "", "output `file` (defaults to FILE with \"c\" appended, so foo.lua becomes foo.luac, or stdout for a single '-' input)")

	c.RunE = func(cmd *cobra.Command, args []string) error {
		if configPath != "" {
			// Flags set on the command line take precedence over the
			// config file.
			flagCfg := *cfg
			if err := cfg.mergeFile(configPath); err != nil {
				return err
			}
			if cmd.Flags().Changed("debug") {
				cfg.Debug = flagCfg.Debug
			}
			if cmd.Flags().Changed("max-depth") {
				cfg.MaxNestingDepth = flagCfg.MaxNestingDepth
			}
			if cmd.Flags().Changed("cache") {
				cfg.CacheDir = flagCfg.CacheDir
			}
		}
		initLogging(cfg.Debug)
		if len(args) == 0 {
			args = []string{"-"}
		}
		return run(cmd.Context(), cfg, args)
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
		Output: log.New(os.Stderr, "luac: ", log.StdFlags, nil),
	})
}

// run compiles every file in args, each independently, matching
// spec.md §5's "no shared mutable state between compilation runs":
// concurrent compilation is safe by construction because each file
// gets its own tokenizer/parser/codegen call.
func run(ctx context.Context, cfg *config, args []string) error {
	var cache *luaccache.Cache
	if cfg.CacheDir != "" {
		if err := os.MkdirAll(cfg.CacheDir, 0o777); err != nil {
			return err
		}
		cache = luaccache.Open(filepath.Join(cfg.CacheDir, "cache.db"))
		defer cache.Close(ctx)
	}

	if len(args) == 1 && args[0] == "-" && cfg.Output == "" {
		return compileOne(ctx, cfg, cache, "-")
	}

	grp, grpCtx := errgroup.WithContext(ctx)
	grp.SetLimit(4)
	for _, arg := range args {
		arg := arg
		grp.Go(func() error {
			return compileOne(grpCtx, cfg, cache, arg)
		})
	}
	return grp.Wait()
}

func compileOne(ctx context.Context, cfg *config, cache *luaccache.Cache, path string) error {
	source, chunkName, err := readSource(path)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	if cache != nil {
		if chunk, ok, err := cache.Lookup(ctx, source); err == nil && ok {
			log.Debugf(ctx, "cache hit for %s", path)
			return writeOutput(cfg, path, chunk)
		}
	}

	chunk, err := compile.Compile(source, compile.Options{
		ChunkName:       chunkName,
		MaxNestingDepth: cfg.MaxNestingDepth,
	})
	if err != nil {
		reportError(path, err)
		return fmt.Errorf("%s: compile failed", path)
	}

	if cache != nil {
		if err := cache.Store(ctx, source, chunk); err != nil {
			log.Warnf(ctx, "cache store for %s: %v", path, err)
		}
	}

	return writeOutput(cfg, path, chunk)
}

func readSource(path string) (source []byte, chunkName string, err error) {
	if path == "-" {
		source, err = io.ReadAll(os.Stdin)
		return source, "=stdin", err
	}
	source, err = os.ReadFile(path)
	return source, "@" + path, err
}

func reportError(path string, err error) {
	if se, ok := err.(luadiag.SourceError); ok {
		luadiag.Print(os.Stderr, os.Stderr.Fd(), path, se)
		return
	}
	fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
}

func writeOutput(cfg *config, inputPath string, chunk []byte) error {
	if inputPath == "-" && cfg.Output == "" {
		_, err := os.Stdout.Write(chunk)
		return err
	}
	dest := cfg.Output
	if dest == "" {
		dest = inputPath + "c"
	}
	if dest == "-" {
		if term.IsTerminal(int(os.Stdout.Fd())) {
			return fmt.Errorf("refusing to write binary chunk to a terminal; redirect stdout or pass -o")
		}
		_, err := os.Stdout.Write(chunk)
		return err
	}
	return writeAtomic(dest, chunk)
}

// writeAtomic writes data to a temp file named after a fresh UUID in
// the destination's directory, then renames it over dest, so a crash
// or interrupted write never leaves a truncated chunk at dest.
func writeAtomic(dest string, data []byte) error {
	dir := filepath.Dir(dest)
	tmp := filepath.Join(dir, ".luac-"+uuid.NewString()+".tmp")
	if err := os.WriteFile(tmp, data, 0o666); err != nil {
		return err
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
