package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// OrchestratorChanged is true when any tool-use loop tuning value changed.
	OrchestratorChanged bool

	// CacheChanged is true when any cache policy value changed.
	CacheChanged bool

	// SystemPromptChanged is true when the configured system prompt changed.
	SystemPromptChanged bool
}

// Any reports whether the diff contains at least one change.
func (d ConfigDiff) Any() bool {
	return d.LogLevelChanged || d.OrchestratorChanged || d.CacheChanged || d.SystemPromptChanged
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart; provider and
// MCP server changes require a full restart and are deliberately ignored.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Orchestrator.MaxIterations != new.Orchestrator.MaxIterations ||
		old.Orchestrator.IterationDelay != new.Orchestrator.IterationDelay ||
		old.Orchestrator.ThrottleBackoff != new.Orchestrator.ThrottleBackoff {
		d.OrchestratorChanged = true
	}

	if old.Orchestrator.SystemPrompt != new.Orchestrator.SystemPrompt {
		d.SystemPromptChanged = true
	}

	if old.Cache != new.Cache {
		d.CacheChanged = true
	}

	return d
}
