package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/bru-dev/bru/internal/buildinfo"
	"github.com/bru-dev/bru/internal/config"
	"github.com/bru-dev/bru/internal/log"
)

var (
	quietFlag   bool
	verboseFlag bool
	debugFlag   bool
)

// globalCtx is canceled on SIGINT/SIGTERM; commands use it for every
// network or subprocess call so Ctrl-C actually stops in-flight work.
var globalCtx context.Context
var globalCancel context.CancelFunc

var rootCmd = &cobra.Command{
	Use:   "bru",
	Short: "A Homebrew-compatible package manager",
	Long: `bru installs, upgrades, and removes Homebrew bottles into a standard
Homebrew-compatible prefix, without requiring the stock brew toolchain.

It shares its on-disk layout with Homebrew (Cellar, opt, Taps) so the two
can coexist: formulae installed by either one are visible to both.`,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Show errors only")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Show verbose output (INFO level)")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Show debug output (includes source locations)")

	rootCmd.PersistentPreRun = initLogger
	rootCmd.Version = buildinfo.Version()

	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(upgradeCmd)
	rootCmd.AddCommand(uninstallCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(outdatedCmd)
	rootCmd.AddCommand(leavesCmd)
	rootCmd.AddCommand(autoremoveCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(tapCmd)
	rootCmd.AddCommand(untapCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(pinCmd)
	rootCmd.AddCommand(unpinCmd)
	rootCmd.AddCommand(shellenvCmd)
	rootCmd.AddCommand(completionCmd)
}

func main() {
	globalCtx, globalCancel = context.WithCancel(context.Background())
	defer globalCancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		fmt.Fprintf(os.Stderr, "\nReceived %s, canceling operation...\n", sig)
		globalCancel()

		<-sigChan
		fmt.Fprintln(os.Stderr, "Forced exit")
		exitWithCode(ExitGeneral)
	}()

	if err := rootCmd.Execute(); err != nil {
		if globalCtx.Err() == context.Canceled {
			exitWithCode(ExitGeneral)
		}
		fmt.Fprintln(os.Stderr, err)
		exitWithCode(ExitGeneral)
	}
}

// initLogger configures the global logger from verbosity flags before any
// command body runs, exactly the way the teacher's rootCmd.PersistentPreRun does.
func initLogger(cmd *cobra.Command, args []string) {
	level := determineLogLevel()
	color := !config.NoColor(isatty.IsTerminal(os.Stderr.Fd()))
	log.SetDefault(log.New(log.NewCLIHandler(level, color)))

	if level == slog.LevelDebug {
		fmt.Fprintln(os.Stderr, "[DEBUG MODE] Output may contain file paths and URLs. Do not share publicly.")
	}
}

// determineLogLevel applies flags over environment variables over the WARN default.
func determineLogLevel() slog.Level {
	if debugFlag {
		return slog.LevelDebug
	}
	if verboseFlag {
		return slog.LevelInfo
	}
	if quietFlag {
		return slog.LevelError
	}

	if isTruthy(os.Getenv("BRU_DEBUG")) {
		return slog.LevelDebug
	}
	if isTruthy(os.Getenv("BRU_VERBOSE")) {
		return slog.LevelInfo
	}
	if isTruthy(os.Getenv("BRU_QUIET")) {
		return slog.LevelError
	}
	return slog.LevelWarn
}

func isTruthy(s string) bool {
	s = strings.ToLower(s)
	return s == "1" || s == "true" || s == "yes" || s == "on"
}
