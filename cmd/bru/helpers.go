package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/bru-dev/bru/internal/api"
	"github.com/bru-dev/bru/internal/brerrors"
	"github.com/bru-dev/bru/internal/cache"
	"github.com/bru-dev/bru/internal/config"
	"github.com/bru-dev/bru/internal/download"
	"github.com/bru-dev/bru/internal/errmsg"
	"github.com/bru-dev/bru/internal/log"
	"github.com/bru-dev/bru/internal/orchestrator"
)

// app bundles the components every subcommand needs, built once from the
// default config so command bodies stay a few lines of flag parsing plus
// one call into internal/orchestrator, internal/cellar, or internal/tap.
type app struct {
	cfg    *config.Config
	logger log.Logger
	client *api.Client
	orch   *orchestrator.Orchestrator
}

func newApp() (*app, error) {
	cfg, err := config.DefaultConfig()
	if err != nil {
		return nil, fmt.Errorf("resolving prefix: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("preparing prefix: %w", err)
	}

	logger := log.Default()

	prefs, err := config.LoadUserPrefs()
	if err != nil {
		return nil, fmt.Errorf("reading config.toml: %w", err)
	}
	if prefs.DefaultTimeout != "" {
		if _, set := os.LookupEnv(config.EnvAPITimeout); !set {
			os.Setenv(config.EnvAPITimeout, prefs.DefaultTimeout)
		}
	}

	c, err := cache.New(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}

	client := api.New(cfg, c)
	downloader := download.New(cfg, logger)
	orch := orchestrator.New(cfg, logger, client, downloader)

	return &app{cfg: cfg, logger: logger, client: client, orch: orch}, nil
}

func printInfo(a ...any) {
	if quietFlag {
		return
	}
	fmt.Fprintln(os.Stdout, a...)
}

func printInfof(format string, a ...any) {
	if quietFlag {
		return
	}
	fmt.Fprintf(os.Stdout, format, a...)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		printError(err, "")
	}
}

// printError writes a formatted error to stderr. subject, when non-empty,
// seeds errmsg's suggestions (e.g. "bru search <subject>").
func printError(err error, subject string) {
	var ctx *errmsg.ErrorContext
	if subject != "" {
		ctx = &errmsg.ErrorContext{Subject: subject}
	}
	fmt.Fprintln(os.Stderr, errmsg.Format(err, ctx))
}

// exitCodeFor maps an error to the process exit code a script can branch on.
func exitCodeFor(err error) int {
	var bruErr *brerrors.Error
	if !errors.As(err, &bruErr) {
		return ExitGeneral
	}

	switch bruErr.Kind {
	case brerrors.KindNotFound:
		return ExitNotFound
	case brerrors.KindNetwork, brerrors.KindTimeout, brerrors.KindDNS, brerrors.KindConnection, brerrors.KindTLS, brerrors.KindRateLimit:
		return ExitNetwork
	case brerrors.KindChecksumMismatch:
		return ExitChecksumMismatch
	case brerrors.KindRelocationFailed:
		return ExitRelocationFailed
	case brerrors.KindDependentsPresent:
		return ExitDependentsPresent
	case brerrors.KindPinned:
		return ExitPinned
	case brerrors.KindNoBottleForPlatform:
		return ExitNoBottleForPlatform
	default:
		return ExitGeneral
	}
}

// fail prints the error and exits with the code its kind maps to. Command
// Run bodies call this instead of returning an error so cobra never prints
// its own "Error:" line on top of errmsg's formatted output.
func fail(err error, subject string) {
	printError(err, subject)
	exitWithCode(exitCodeFor(err))
}
