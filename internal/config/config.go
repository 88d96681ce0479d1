package config

import (
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/google/uuid"

	disperrors "github.com/maxkimambo/shardrun/internal/errors"
	"github.com/maxkimambo/shardrun/internal/shard"
)

// Environment variables consulted by Resolve
const (
	EnvTaskName = "TASK_NAME"
	EnvShard    = "SHARD"
	EnvSubshard = "SUBSHARD"
	EnvManifest = "SHARDRUN_MANIFEST"

	DefaultManifest = "shards.yaml"
)

// LookupEnv matches os.LookupEnv.
type LookupEnv func(key string) (string, bool)

// RunConfiguration is built once at startup and never modified.
type RunConfiguration struct {
	RunID string

	ShardName string
	Subshard  shard.Spec

	// ShuffleSeed is nil when test ordering is not randomized
	ShuffleSeed *int64

	AbortOnError bool
	Verbose      bool
	DryRun       bool
	ManifestPath string

	LocalEngine        string
	LocalEngineHost    string
	LocalEngineSrcPath string

	PassthroughArgs []string
}

// Resolve combines parsed flags with the environment. Flags win over
// environment variables; TASK_NAME wins over SHARD and SUBSHARD.
func Resolve(flags Flags, lookup LookupEnv) (*RunConfiguration, error) {
	shardName, subshardRaw := selectShard(flags, lookup)
	if shardName == "" {
		return nil, disperrors.NewMissingShardError()
	}

	spec, err := shard.ParseSpec(subshardRaw)
	if err != nil {
		return nil, err
	}

	seed, err := parseSeed(flags.ShuffleSeed)
	if err != nil {
		return nil, err
	}

	manifest := flags.Manifest
	if manifest == "" {
		manifest = getenv(lookup, EnvManifest)
	}
	if manifest == "" {
		manifest = DefaultManifest
	}

	passthrough := make([]string, len(flags.Passthrough))
	copy(passthrough, flags.Passthrough)

	return &RunConfiguration{
		RunID:              uuid.NewString(),
		ShardName:          shardName,
		Subshard:           spec,
		ShuffleSeed:        seed,
		AbortOnError:       flags.AbortOnError,
		Verbose:            flags.Verbose,
		DryRun:             flags.DryRun,
		ManifestPath:       manifest,
		LocalEngine:        flags.LocalEngine,
		LocalEngineHost:    flags.LocalEngineHost,
		LocalEngineSrcPath: flags.LocalEngineSrcPath,
		PassthroughArgs:    passthrough,
	}, nil
}

// ManifestPath resolves only the manifest location, for commands that do
// not need a shard selection.
func ManifestPath(flag string, lookup LookupEnv) string {
	if flag != "" {
		return flag
	}
	if env := getenv(lookup, EnvManifest); env != "" {
		return env
	}
	return DefaultManifest
}

func selectShard(flags Flags, lookup LookupEnv) (string, string) {
	if flags.Shard != "" {
		return flags.Shard, flags.Subshard
	}

	if taskName := getenv(lookup, EnvTaskName); taskName != "" {
		// shard-subshard-platform; the platform part is ignored
		parts := strings.Split(taskName, "-")
		subshard := ""
		if len(parts) >= 3 {
			subshard = parts[1]
		}
		if flags.Subshard != "" {
			subshard = flags.Subshard
		}
		return parts[0], subshard
	}

	subshard := getenv(lookup, EnvSubshard)
	if flags.Subshard != "" {
		subshard = flags.Subshard
	}
	return getenv(lookup, EnvShard), subshard
}

func parseSeed(raw string) (*int64, error) {
	if raw == "" {
		return nil, nil
	}
	if raw == "random" {
		seed := rand.Int64N(1 << 31)
		return &seed, nil
	}
	seed, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, disperrors.NewInvalidSeedError(raw, err)
	}
	return &seed, nil
}

func getenv(lookup LookupEnv, key string) string {
	if lookup == nil {
		return ""
	}
	value, _ := lookup(key)
	return strings.TrimSpace(value)
}
