package config

import "reflect"

// ConfigDiff describes what changed between two configs.
type ConfigDiff struct {
	// LogLevelChanged is hot-reloadable.
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// AnalysisChanged is hot-reloadable: the analysis settings are swapped
	// atomically on the running service.
	AnalysisChanged bool

	// RestartRequired lists the changed sections that only take effect after
	// a restart (listener, providers, fallbacks, limits).
	RestartRequired []string
}

// HasChanges reports whether anything differs.
func (d ConfigDiff) HasChanges() bool {
	return d.LogLevelChanged || d.AnalysisChanged || len(d.RestartRequired) > 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	// Log level
	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if !reflect.DeepEqual(old.Analysis, new.Analysis) {
		d.AnalysisChanged = true
	}

	oldServer, newServer := old.Server, new.Server
	oldServer.LogLevel, newServer.LogLevel = "", ""
	if !reflect.DeepEqual(oldServer, newServer) {
		d.RestartRequired = append(d.RestartRequired, "server")
	}
	if !reflect.DeepEqual(old.Providers, new.Providers) {
		d.RestartRequired = append(d.RestartRequired, "providers")
	}
	if !reflect.DeepEqual(old.Fallbacks, new.Fallbacks) {
		d.RestartRequired = append(d.RestartRequired, "fallbacks")
	}
	if old.Limits != new.Limits {
		d.RestartRequired = append(d.RestartRequired, "limits")
	}
	return d
}
