// Package tui renders cachectl output: tables, status lines and banners when
// stdout is a terminal, plain text otherwise.
package tui

import (
	"os"

	"github.com/mattn/go-isatty"
)

var (
	HasTTY = isatty.IsTerminal(os.Stdout.Fd())
)
