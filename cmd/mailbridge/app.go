// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/mailbridge/cmd/mailbridge/cli"
	"github.com/bureau-foundation/mailbridge/lib/config"
	"github.com/bureau-foundation/mailbridge/lib/engine"
	"github.com/bureau-foundation/mailbridge/lib/invalidation"
	"github.com/bureau-foundation/mailbridge/lib/mailstore"
	"github.com/bureau-foundation/mailbridge/lib/mailview"
	"github.com/bureau-foundation/mailbridge/lib/mailwatch"
	"github.com/bureau-foundation/mailbridge/lib/resource"
)

// commonFlags are shared by every command that opens the store.
type commonFlags struct {
	configPath string
	database   string
	user       string
}

func (f *commonFlags) register(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&f.configPath, "config", "", "config file (default $MAILBRIDGE_CONFIG)")
	flagSet.StringVar(&f.database, "db", "", "database path, overriding store.path")
	flagSet.StringVarP(&f.user, "user", "u", "", "mailbox user")
}

// app is everything one command invocation holds open.
type app struct {
	config   *config.Config
	logger   *slog.Logger
	store    *mailstore.Store
	registry *resource.Registry
	bus      *invalidation.Bus
	watch    *mailwatch.Set
	mutate   *mailwatch.Mutations
	view     *mailview.Renderer
	out      io.Writer
	user     engine.UserID
}

func openApp(command string, flags commonFlags) (*app, error) {
	var cfg *config.Config
	var err error
	if flags.configPath != "" {
		cfg, err = config.LoadFile(flags.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if flags.database != "" {
		cfg.Store.Path = flags.database
	}
	if err := cfg.EnsurePaths(); err != nil {
		return nil, err
	}

	logger := cli.NewLogger(cfg.Log.Level, cfg.Log.Format).With("command", command)
	store, err := mailstore.Open(mailstore.Config{
		Path:             cfg.Store.Path,
		PoolSize:         cfg.Store.PoolSize,
		BusyTimeout:      cfg.Store.BusyTimeout,
		PageSize:         cfg.Watch.PageSize,
		Compression:      cfg.Store.Compression,
		ExternalDebounce: cfg.Watch.Debounce,
		Logger:           logger,
	})
	if err != nil {
		return nil, err
	}

	registry := resource.Default()
	bus := invalidation.Default()
	a := &app{
		config:   cfg,
		logger:   logger,
		store:    store,
		registry: registry,
		bus:      bus,
		watch:    mailwatch.New(store, mailwatch.Options{Logger: logger, Registry: registry, Bus: bus}),
		mutate:   mailwatch.NewMutations(store, bus),
		view:     mailview.New(os.Stdout, mailview.DefaultTheme),
		out:      os.Stdout,
		user:     engine.UserID(flags.user),
	}
	if a.user != "" {
		store.SignIn(a.user)
	}
	return a, nil
}

func (a *app) requireUser() error {
	if a.user == "" {
		return fmt.Errorf("--user is required")
	}
	return nil
}

// close releases every native resource, then the store.
func (a *app) close() {
	if released := a.registry.DisconnectAll(); released > 0 {
		a.logger.Debug("released native resources", "count", released)
	}
	if err := a.store.Close(); err != nil {
		a.logger.Error("closing store", "error", err)
	}
}
