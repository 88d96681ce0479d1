package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Sentinels for errors.Is checks
var (
	ErrDuplicateShard      = stderrors.New("duplicate shard")
	ErrUnknownShard        = stderrors.New("unknown shard")
	ErrUnknownSubshard     = stderrors.New("unknown subshard")
	ErrInvalidSubshardSpec = stderrors.New("invalid subshard spec")
	ErrMissingShard        = stderrors.New("no shard selected")
	ErrInvalidManifest     = stderrors.New("invalid manifest")
	ErrInvalidSeed         = stderrors.New("invalid shuffle seed")
	ErrCommandStart        = stderrors.New("command failed to start")
)

// Common error codes
const (
	// Shard error codes
	CodeShardDuplicate = "001"
	CodeShardUnknown   = "002"

	// Subshard error codes
	CodeSubshardUnknown = "001"
	CodeSubshardInvalid = "002"

	// Configuration error codes
	CodeConfigMissingShard = "001"
	CodeConfigManifest     = "002"
	CodeConfigSeed         = "003"

	// Execution error codes
	CodeExecutionStart = "001"
)

// NewDuplicateShardError creates an error for a second registration under the same name
func NewDuplicateShardError(name string) *DispatchError {
	return NewDispatchError(ErrorCategoryShard, CodeShardDuplicate,
		fmt.Sprintf("Shard '%s' is already registered", name),
		"Shard registration").
		WithContext("shard", name).
		WithTroubleshooting(
			"Shard names must be unique; rename one of the definitions",
			"Check the manifest for a repeated 'name' entry",
		).
		withKind(ErrDuplicateShard)
}

// NewUnknownShardError creates an error for a shard name that is not registered
func NewUnknownShardError(name string, known []string) *DispatchError {
	return NewDispatchError(ErrorCategoryShard, CodeShardUnknown,
		fmt.Sprintf("Invalid shard: %s", name),
		"Shard selection").
		WithContext("shard", name).
		WithContext("known", strings.Join(known, ", ")).
		WithTroubleshooting(
			"Run 'shardrun list' to see the registered shards",
			"Check the SHARD and TASK_NAME environment variables",
		).
		withKind(ErrUnknownShard)
}

// NewUnknownSubshardError creates an error for a named subshard the shard does not define
func NewUnknownSubshardError(label string, valid []string) *DispatchError {
	return NewDispatchError(ErrorCategorySubshard, CodeSubshardUnknown,
		fmt.Sprintf("Invalid subshard name: %s", label),
		"Subshard selection").
		WithContext("subshard", label).
		WithContext("valid", strings.Join(valid, ", ")).
		WithTroubleshooting(
			fmt.Sprintf("Use one of: %s", strings.Join(valid, ", ")),
			"Or address the subshard by index with the form i_n (for example 2_4)",
		).
		withKind(ErrUnknownSubshard)
}

// NewInvalidSubshardSpecError creates an error for a malformed or out-of-range i_n spec
func NewInvalidSubshardSpecError(spec, reason string) *DispatchError {
	return NewDispatchError(ErrorCategorySubshard, CodeSubshardInvalid,
		fmt.Sprintf("Invalid subshard spec '%s': %s", spec, reason),
		"Subshard parsing").
		WithContext("subshard", spec).
		WithTroubleshooting(
			"Index-of-total subshards have the form i_n with 1 <= i <= n",
		).
		withKind(ErrInvalidSubshardSpec)
}

// NewMissingShardError creates an error for a run with no shard selector at all
func NewMissingShardError() *DispatchError {
	return NewDispatchError(ErrorCategoryConfiguration, CodeConfigMissingShard,
		"No shard selected",
		"Configuration").
		WithTroubleshooting(
			"Set TASK_NAME to shard-subshard-platform",
			"Or set SHARD (and optionally SUBSHARD)",
			"Or pass --shard=<name>",
		).
		withKind(ErrMissingShard)
}

// NewManifestError creates an error for an unreadable or invalid shard manifest
func NewManifestError(path, reason string, originalErr error) *DispatchError {
	return NewDispatchError(ErrorCategoryConfiguration, CodeConfigManifest,
		fmt.Sprintf("Invalid manifest '%s': %s", path, reason),
		"Manifest loading").
		WithContext("manifest", path).
		WithOriginalError(originalErr).
		WithTroubleshooting(
			"Pass --manifest=<path> or set SHARDRUN_MANIFEST",
		).
		withKind(ErrInvalidManifest)
}

// NewInvalidSeedError creates an error for a shuffle seed that is neither an integer nor "random"
func NewInvalidSeedError(raw string, originalErr error) *DispatchError {
	return NewDispatchError(ErrorCategoryConfiguration, CodeConfigSeed,
		fmt.Sprintf("Invalid value for --test-randomize-ordering-seed: '%s'", raw),
		"Configuration").
		WithContext("seed", raw).
		WithOriginalError(originalErr).
		WithTroubleshooting(
			"Pass an integer seed, or 'random' to pick one",
		).
		withKind(ErrInvalidSeed)
}

// NewCommandStartError creates an error for an external command that could not be launched
func NewCommandStartError(executable string, originalErr error) *DispatchError {
	return NewDispatchError(ErrorCategoryExecution, CodeExecutionStart,
		fmt.Sprintf("Failed to start '%s'", executable),
		"Command execution").
		WithContext("executable", executable).
		WithOriginalError(originalErr).
		WithTroubleshooting(
			"Verify the executable is installed and on PATH",
			"Check the working directory exists",
		).
		withKind(ErrCommandStart)
}

// IsConfigurationError reports whether err should abort the run before any task executes
func IsConfigurationError(err error) bool {
	var dispErr *DispatchError
	if !stderrors.As(err, &dispErr) {
		return false
	}
	return dispErr.Category == ErrorCategoryConfiguration ||
		dispErr.Category == ErrorCategoryShard ||
		dispErr.Category == ErrorCategorySubshard
}
