// Copyright 2026 The luac51 Authors
// SPDX-License-Identifier: MIT

// Command luac compiles Lua 5.1 source files to bytecode.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/lua51c/luac51/internal/luac"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	rootCommand := luac.New()
	rootCommand.SetContext(ctx)
	if err := rootCommand.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "luac:", err)
		os.Exit(1)
	}
}
