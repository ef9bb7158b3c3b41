// Package config loads, normalizes, and validates reshard configuration.
//
// Configuration is optional: every field has a default, and a TOML file found
// at the --config path, ~/.config/reshard/config.toml, or ./reshard.toml
// overrides those defaults. Path fields are expanded (including "~") and made
// absolute during Load so the rest of the program never sees relative paths.
package config
