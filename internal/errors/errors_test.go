package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDispatchError_IsMatchesSentinel(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"duplicate shard", NewDuplicateShardError("a"), ErrDuplicateShard},
		{"unknown shard", NewUnknownShardError("x", []string{"a", "b"}), ErrUnknownShard},
		{"unknown subshard", NewUnknownSubshardError("linux", []string{"mac"}), ErrUnknownSubshard},
		{"invalid spec", NewInvalidSubshardSpecError("0_4", "index out of range"), ErrInvalidSubshardSpec},
		{"missing shard", NewMissingShardError(), ErrMissingShard},
		{"manifest", NewManifestError("shards.yaml", "bad", nil), ErrInvalidManifest},
		{"seed", NewInvalidSeedError("abc", nil), ErrInvalidSeed},
		{"command start", NewCommandStartError("flutter", stderrors.New("not found")), ErrCommandStart},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.err, tt.sentinel)

			wrapped := fmt.Errorf("context: %w", tt.err)
			assert.ErrorIs(t, wrapped, tt.sentinel)
		})
	}
}

func TestDispatchError_DoesNotMatchOtherSentinels(t *testing.T) {
	err := NewUnknownShardError("x", nil)
	assert.NotErrorIs(t, err, ErrDuplicateShard)
	assert.NotErrorIs(t, err, ErrUnknownSubshard)
}

func TestDispatchError_UnwrapOriginal(t *testing.T) {
	original := stderrors.New("permission denied")
	err := NewCommandStartError("dart", original)

	assert.ErrorIs(t, err, original)
	assert.Contains(t, err.Error(), "permission denied")
	assert.Equal(t, "EXECUTION-001", GetErrorCode(err))
}

func TestIsConfigurationError(t *testing.T) {
	assert.True(t, IsConfigurationError(NewMissingShardError()))
	assert.True(t, IsConfigurationError(NewUnknownShardError("x", nil)))
	assert.True(t, IsConfigurationError(fmt.Errorf("wrapped: %w", NewInvalidSubshardSpecError("9_3", "index out of range"))))
	assert.False(t, IsConfigurationError(NewCommandStartError("dart", nil)))
	assert.False(t, IsConfigurationError(stderrors.New("plain")))
}

func TestFormatForCLI(t *testing.T) {
	err := NewUnknownShardError("nope", []string{"analyze", "tool_tests"})
	out := FormatForCLI(err)

	assert.Contains(t, out, "SHARD Error [SHARD-002]")
	assert.Contains(t, out, "Invalid shard: nope")
	assert.Contains(t, out, "known: analyze, tool_tests")
	assert.Contains(t, out, "How to resolve:")

	plain := FormatForCLI(stderrors.New("boom"))
	assert.Equal(t, "\nError: boom\n", plain)
}

