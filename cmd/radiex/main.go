package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"radiex/internal/config"
)

// Exit codes: 1 for run failures, 2 for configuration problems, 130 when
// the user interrupted the run.
func main() {
	err := newRootCommand().Execute()
	if err == nil {
		return
	}
	if errors.Is(err, context.Canceled) {
		os.Exit(130)
	}
	fmt.Fprintln(os.Stderr, "radiex:", err)
	if errors.Is(err, config.ErrInvalidConfig) {
		os.Exit(2)
	}
	os.Exit(1)
}
