package config

import (
	"reflect"
	"slices"
)

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	InstancesChanged bool           // true if any instance was added, removed, or rebound
	InstanceChanges  []InstanceDiff // per-instance diffs
	LogLevelChanged  bool
	NewLogLevel      LogLevel
}

// InstanceDiff describes what changed for a single instance between two configs.
type InstanceDiff struct {
	Name             string
	ConnectorChanged bool
	OptionsChanged   bool
	ExposeChanged    bool
	FallbacksChanged bool
	Added            bool
	Removed          bool
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	oldInst := make(map[string]*InstanceConfig, len(old.Instances))
	for i := range old.Instances {
		oldInst[old.Instances[i].Name] = &old.Instances[i]
	}
	newInst := make(map[string]*InstanceConfig, len(new.Instances))
	for i := range new.Instances {
		newInst[new.Instances[i].Name] = &new.Instances[i]
	}

	// Detect modified and removed instances.
	for name, o := range oldInst {
		n, exists := newInst[name]
		if !exists {
			d.InstanceChanges = append(d.InstanceChanges, InstanceDiff{
				Name:    name,
				Removed: true,
			})
			d.InstancesChanged = true
			continue
		}
		id := diffInstance(name, o, n)
		if id.ConnectorChanged || id.OptionsChanged || id.ExposeChanged || id.FallbacksChanged {
			d.InstanceChanges = append(d.InstanceChanges, id)
			d.InstancesChanged = true
		}
	}

	// Detect added instances.
	for name := range newInst {
		if _, exists := oldInst[name]; !exists {
			d.InstanceChanges = append(d.InstanceChanges, InstanceDiff{
				Name:  name,
				Added: true,
			})
			d.InstancesChanged = true
		}
	}

	return d
}

// diffInstance compares two instance configs with the same name.
func diffInstance(name string, old, new *InstanceConfig) InstanceDiff {
	id := InstanceDiff{Name: name}

	if old.Connector != new.Connector {
		id.ConnectorChanged = true
	}

	// Options may hold nested maps from YAML, so a deep comparison is needed.
	if !reflect.DeepEqual(old.Options, new.Options) {
		id.OptionsChanged = true
	}

	if old.Expose != new.Expose {
		id.ExposeChanged = true
	}

	if !slices.Equal(old.Fallbacks, new.Fallbacks) {
		id.FallbacksChanged = true
	}

	return id
}
