package config

const (
	defaultConfigPath  = "~/.config/reshard/config.toml"
	projectConfigName  = "reshard.toml"
	defaultStateDir    = "~/.local/share/reshard"
	defaultLogDir      = "~/.local/share/reshard/logs"
	defaultJournalName = "journal.db"
	defaultPrune       = PruneNested
	defaultLogFormat   = "console"
	defaultLogLevel    = "info"
)

// Prune policies accepted by shard.prune.
const (
	PruneNested = "nested"
	PruneAny    = "any"
	PruneOff    = "off"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		Shard: Shard{
			Prune:     defaultPrune,
			LockRoots: true,
		},
		Journal: Journal{
			Enabled: true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
