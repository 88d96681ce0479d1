// Package config turns the process arguments and environment into the
// immutable configuration of a single run.
package config

import "strings"

// Flags is the raw result of scanning the argument list. Every argument
// that is not recognized lands in Passthrough, in its original order.
type Flags struct {
	Shard    string
	Subshard string
	Manifest string

	// ShuffleSeed is kept raw; Resolve validates it
	ShuffleSeed string

	LocalEngine        string
	LocalEngineHost    string
	LocalEngineSrcPath string

	Verbose      bool
	AbortOnError bool
	DryRun       bool
	Help         bool

	Passthrough []string
}

const (
	flagLocalEngine        = "--local-engine"
	flagLocalEngineHost    = "--local-engine-host"
	flagLocalEngineSrcPath = "--local-engine-src-path"
	flagSeed               = "--test-randomize-ordering-seed"
	flagShard              = "--shard"
	flagSubshard           = "--subshard"
	flagManifest           = "--manifest"
)

// ParseArgs scans args. It never fails: unknown flags are forwarded.
// Valued flags accept both --name=value and --name value; in the second
// form a following argument that starts with "--" is not taken as the value.
func ParseArgs(args []string) Flags {
	var f Flags

	valued := map[string]*string{
		flagLocalEngine:        &f.LocalEngine,
		flagLocalEngineHost:    &f.LocalEngineHost,
		flagLocalEngineSrcPath: &f.LocalEngineSrcPath,
		flagSeed:               &f.ShuffleSeed,
		flagShard:              &f.Shard,
		flagSubshard:           &f.Subshard,
		flagManifest:           &f.Manifest,
	}
	forwarded := map[string]bool{
		flagLocalEngine:        true,
		flagLocalEngineHost:    true,
		flagLocalEngineSrcPath: true,
	}

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "--verbose":
			f.Verbose = true
			continue
		case "--abort-on-error":
			f.AbortOnError = true
			continue
		case "--dry-run":
			f.DryRun = true
			continue
		case "-h", "--help":
			f.Help = true
			continue
		}

		name, value, hasValue := strings.Cut(arg, "=")
		target, ok := valued[name]
		if !ok {
			f.Passthrough = append(f.Passthrough, arg)
			continue
		}
		if !hasValue && i+1 < len(args) && !strings.HasPrefix(args[i+1], "--") {
			i++
			value = args[i]
			hasValue = true
		}
		if !hasValue {
			// No value to take; forward a tool flag untouched
			if forwarded[name] {
				f.Passthrough = append(f.Passthrough, arg)
			}
			continue
		}
		*target = value
		if forwarded[name] {
			f.Passthrough = append(f.Passthrough, name+"="+value)
		}
	}

	return f
}
