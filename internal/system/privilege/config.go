// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package privilege

// Config contains configuration for privilege elevation
type Config struct {
	// Command is the elevation helper, sudo by default
	Command string `yaml:"command" json:"command" mapstructure:"command"`

	// Args are passed to Command before the target program. "-n" keeps sudo
	// from prompting, so a refusal fails instead of hanging the daemon.
	Args []string `yaml:"args" json:"args" mapstructure:"args"`

	// AllowedCommands restricts which programs may be elevated. Empty
	// allows any program.
	AllowedCommands []string `yaml:"allowedCommands" json:"allowedCommands" mapstructure:"allowedcommands"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Command:         "sudo",
		Args:            []string{"-n"},
		AllowedCommands: []string{},
	}
}
