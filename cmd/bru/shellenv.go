package main

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/bru-dev/bru/internal/config"
)

var shellenvShell string

var shellenvCmd = &cobra.Command{
	Use:   "shellenv",
	Short: "Print export statements that put bru's bin directories on PATH",
	Long: `Add the following to your shell's startup file to make bru-installed
commands available:

  eval "$(bru shellenv)"`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		a, err := newApp()
		if err != nil {
			fail(err, "")
		}

		bin := filepath.Join(a.cfg.Prefix, "bin")
		sbin := filepath.Join(a.cfg.Prefix, "sbin")

		switch config.DetectShell(shellenvShell) {
		case config.ShellFish:
			printInfof("set -gx HOMEBREW_PREFIX \"%s\"\n", a.cfg.Prefix)
			printInfof("fish_add_path --global --move \"%s\" \"%s\"\n", bin, sbin)
		case config.ShellZsh, config.ShellBash:
			fallthrough
		default:
			printInfof("export HOMEBREW_PREFIX=\"%s\"\n", a.cfg.Prefix)
			printInfof("export PATH=\"%s:%s:$PATH\"\n", bin, sbin)
		}
	},
}

func init() {
	shellenvCmd.Flags().StringVar(&shellenvShell, "shell", "", "Shell dialect to emit (bash, zsh, fish); defaults to $SHELL")
}
