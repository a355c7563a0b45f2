// Package config defines the padlink command line.
package config

import (
	"github.com/Alia5/padlink/internal/cmd"
	"github.com/Alia5/padlink/internal/log"
)

// CLI is the root Kong model. Flags can also come from config files; see
// configpaths.ConfigCandidatePaths for the search order.
type CLI struct {
	ConfigFile string     `name:"config" help:"Config file (JSON, YAML or TOML by extension)" type:"path" env:"PADLINK_CONFIG"`
	Log        log.Config `embed:"" prefix:"log."`

	Send      cmd.Send          `cmd:"" help:"Read the local controller and stream it to a receiver"`
	Receive   cmd.Receive       `cmd:"" help:"Drive a virtual controller from a sender's stream"`
	Listen    cmd.Listen        `cmd:"" help:"Print datagrams arriving on the port (connectivity check)"`
	Config    cmd.ConfigCommand `cmd:"" help:"Configuration helpers"`
	Install   cmd.Install       `cmd:"" help:"Install the receiver as a systemd service"`
	Uninstall cmd.Uninstall     `cmd:"" help:"Remove the receiver systemd service"`
}
