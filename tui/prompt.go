package tui

import (
	"context"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/huh/spinner"
)

// Confirm asks a yes/no question. Without a terminal it returns def.
func Confirm(title string, def bool) (bool, error) {
	if !HasTTY {
		return def, nil
	}
	answer := def
	err := huh.NewConfirm().
		Title(title).
		Affirmative("Yes").
		Negative("No").
		Value(&answer).
		Run()
	return answer, err
}

// Spin shows a spinner with title while action runs. Without a terminal action
// just runs.
func Spin(ctx context.Context, title string, action func()) error {
	if !HasTTY {
		action()
		return nil
	}
	return spinner.New().Context(ctx).Title(title).Action(action).Run()
}
