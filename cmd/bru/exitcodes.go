package main

import "os"

// Exit codes follow the brerrors.Kind taxonomy where one applies, so
// scripts driving bru can distinguish "not found" from "network" from
// "needs --force" without scraping stderr text.
const (
	ExitSuccess            = 0
	ExitGeneral            = 1
	ExitUsage              = 2
	ExitNotFound           = 3
	ExitNetwork            = 4
	ExitChecksumMismatch   = 5
	ExitRelocationFailed   = 6
	ExitDependentsPresent  = 7
	ExitPinned             = 8
	ExitNoBottleForPlatform = 9
)

func exitWithCode(code int) {
	os.Exit(code)
}
