package main

import (
	"errors"
	"fmt"

	"github.com/agent462/corral/internal/config"
)

const (
	exitOK          = 0
	exitHostsFailed = 1 // at least one host failed or was unreachable
	exitConfig      = 2 // bad flags, config, inventory or tasks; nothing ran
)

// hostsFailedError is returned by run after the report has been printed
// when not every host succeeded.
type hostsFailedError struct {
	failed, unreachable int
}

func (e *hostsFailedError) Error() string {
	return fmt.Sprintf("%d failed, %d unreachable", e.failed, e.unreachable)
}

// usageError marks command-line mistakes caught by cobra.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var hf *hostsFailedError
	if errors.As(err, &hf) {
		return exitHostsFailed
	}
	var ce *config.ConfigError
	var ue *usageError
	if errors.As(err, &ce) || errors.As(err, &ue) {
		return exitConfig
	}
	return exitHostsFailed
}
