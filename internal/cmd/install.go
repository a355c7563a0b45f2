package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Install registers `padlink receive` as a system service so the receiving
// machine comes up bridged after boot.
type Install struct {
	Args []string `arg:"" optional:"" passthrough:"" help:"Extra flags passed to the receive command, e.g. --sink=log"`
}

func (i *Install) Run(logger *slog.Logger) error {
	return install(logger, i.Args)
}

// Uninstall removes the service created by install.
type Uninstall struct{}

func (u *Uninstall) Run(logger *slog.Logger) error {
	return uninstall(logger)
}

func currentExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("locate executable: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return exe, nil
}

// receiveCommandLine quotes the executable and every extra argument.
func receiveCommandLine(exe string, args []string) string {
	parts := []string{fmt.Sprintf("%q", exe), "receive"}
	for _, a := range args {
		parts = append(parts, fmt.Sprintf("%q", a))
	}
	return strings.Join(parts, " ")
}
