// Copyright 2026 The luac51 Authors
// SPDX-License-Identifier: MIT

// Command luacd serves the Lua 5.1 compiler over HTTP.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/lua51c/luac51/internal/luacd"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	rootCommand := luacd.New()
	rootCommand.SetContext(ctx)
	if err := rootCommand.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "luacd:", err)
		os.Exit(1)
	}
}
