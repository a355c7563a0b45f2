//go:build !linux

package cmd

import (
	"errors"
	"log/slog"
)

var errNoServiceManager = errors.New("service install is only supported on linux (systemd)")

func install(*slog.Logger, []string) error { return errNoServiceManager }

func uninstall(*slog.Logger) error { return errNoServiceManager }
