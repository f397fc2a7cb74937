package app

import "github.com/kart-io/contract-assistant/pkg/app/cliflag"

// CliOptions is implemented by every subcommand's options struct.
type CliOptions interface {
	// Flags returns the flags grouped by section.
	Flags() cliflag.NamedFlagSets
	// Complete completes the options with defaults.
	Complete() error
	// Validate validates the options.
	Validate() error
}
