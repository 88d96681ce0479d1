package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxkimambo/shardrun/internal/config"
	"github.com/maxkimambo/shardrun/internal/executor"
	"github.com/maxkimambo/shardrun/internal/failure"
	"github.com/maxkimambo/shardrun/internal/logger"
	"github.com/maxkimambo/shardrun/internal/shard"
)

func TestMain(m *testing.M) {
	logger.Setup(false, false, true)
	os.Exit(m.Run())
}

type exitRecorder struct {
	mu    sync.Mutex
	codes []int
}

func (e *exitRecorder) exit(code int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.codes = append(e.codes, code)
}

func registryOf(t *testing.T, groups map[string]shard.RunFunc) RegistryBuilder {
	t.Helper()
	return func(cfg *config.RunConfiguration) (*shard.Registry, *executor.Config, error) {
		registry := shard.NewRegistry()
		for name, run := range groups {
			require.NoError(t, registry.Register(name, run))
		}
		return registry, &executor.Config{}, nil
	}
}

func execute(t *testing.T, args []string, build RegistryBuilder) (*Result, *bytes.Buffer, *exitRecorder) {
	t.Helper()
	var out bytes.Buffer
	rec := &exitRecorder{}
	result := Execute(context.Background(), Options{
		Args:       args,
		LookupEnv:  func(string) (string, bool) { return "", false },
		Build:      build,
		Out:        &out,
		CommandOut: &out,
		Exit:       rec.exit,
	})
	return result, &out, rec
}

func TestExecute_Success(t *testing.T) {
	ran := false
	build := registryOf(t, map[string]shard.RunFunc{
		"analyze": func(ctx context.Context, run *shard.Run) error {
			ran = true
			return nil
		},
	})

	result, out, rec := execute(t, []string{"--shard=analyze"}, build)

	assert.True(t, ran)
	assert.Contains(t, out.String(), "analyze passed")
	assert.NotContains(t, out.String(), "failure(s) reported")
	assert.Equal(t, StateSucceeded, result.State)
	assert.Equal(t, 0, result.ExitCode)
	assert.Equal(t, "analyze", result.Shard)
	assert.NotEmpty(t, result.RunID)
	assert.Empty(t, result.Failures)
	assert.Empty(t, rec.codes)
}

func TestExecute_SelectsOnlyTheRequestedShard(t *testing.T) {
	tests := []struct {
		name         string
		shard        string
		wantState    State
		wantExitCode int
		wantFailures int
		wantRanA     bool
		wantRanB     bool
	}{
		{"failing shard b", "b", StateFailed, 1, 1, false, true},
		{"passing shard a", "a", StateSucceeded, 0, 0, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ranA, ranB := false, false
			build := registryOf(t, map[string]shard.RunFunc{
				"a": func(ctx context.Context, run *shard.Run) error {
					ranA = true
					return nil
				},
				"b": func(ctx context.Context, run *shard.Run) error {
					ranB = true
					run.Reporter.ReportFailure("b failed")
					return nil
				},
			})

			result, _, _ := execute(t, []string{"--shard=" + tt.shard}, build)

			assert.Equal(t, tt.wantState, result.State)
			assert.Equal(t, tt.wantExitCode, result.ExitCode)
			assert.Len(t, result.Failures, tt.wantFailures)
			assert.Equal(t, tt.wantRanA, ranA)
			assert.Equal(t, tt.wantRanB, ranB)
		})
	}
}

func TestExecute_ReportWithoutMessages(t *testing.T) {
	build := registryOf(t, map[string]shard.RunFunc{
		"analyze": func(ctx context.Context, run *shard.Run) error {
			run.Reporter.ReportFailure()
			return nil
		},
	})

	result, _, _ := execute(t, []string{"--shard=analyze"}, build)

	assert.Equal(t, 1, result.ExitCode)
	assert.NotEmpty(t, result.Failures)
}

func TestExecute_ReportedFailuresContinue(t *testing.T) {
	third := false
	build := registryOf(t, map[string]shard.RunFunc{
		"tool_tests": func(ctx context.Context, run *shard.Run) error {
			run.Reporter.ReportFailure("first check failed")
			run.Reporter.ReportFailure("second check failed", "details")
			third = true
			return nil
		},
	})

	result, out, rec := execute(t, []string{"--shard", "tool_tests"}, build)

	assert.True(t, third)
	assert.Equal(t, StateFailed, result.State)
	assert.Equal(t, 1, result.ExitCode)
	assert.Equal(t, []string{
		failure.MessagePrefix + "first check failed",
		failure.MessagePrefix + "second check failed",
		failure.MessagePrefix + "details",
	}, result.Failures)
	assert.Contains(t, out.String(), "ERROR #1")
	assert.Contains(t, out.String(), "ERROR #2")
	assert.Contains(t, out.String(), "2 failure(s) reported")
	assert.Empty(t, rec.codes)
}

func TestExecute_AbortOnError(t *testing.T) {
	second := false
	build := registryOf(t, map[string]shard.RunFunc{
		"tool_tests": func(ctx context.Context, run *shard.Run) error {
			run.Reporter.ReportFailure("first")
			second = true
			run.Reporter.ReportFailure("second")
			return nil
		},
	})

	result, out, rec := execute(t, []string{"--shard=tool_tests", "--abort-on-error"}, build)

	assert.False(t, second)
	assert.Equal(t, StateAbortedOnError, result.State)
	assert.Equal(t, failure.ExitCodeAborted, result.ExitCode)
	assert.Equal(t, []int{failure.ExitCodeAborted}, rec.codes)
	assert.Equal(t, []string{failure.MessagePrefix + "first"}, result.Failures)
	assert.NotContains(t, out.String(), "failure(s) reported")
}

func TestExecute_AbortFromFanOut(t *testing.T) {
	build := registryOf(t, map[string]shard.RunFunc{
		"build_tests": func(ctx context.Context, run *shard.Run) error {
			return run.Runner.RunMany(ctx,
				func(context.Context) error { return nil },
				func(context.Context) error {
					run.Reporter.ReportFailure("branch failed")
					return nil
				},
			)
		},
	})

	result, _, rec := execute(t, []string{"--shard=build_tests", "--abort-on-error"}, build)

	assert.Equal(t, StateAbortedOnError, result.State)
	assert.Equal(t, 1, result.ExitCode)
	assert.Equal(t, []int{1}, rec.codes)
}

func TestExecute_UnexpectedError(t *testing.T) {
	tests := []struct {
		name string
		run  shard.RunFunc
		want string
	}{
		{
			name: "returned error",
			run: func(ctx context.Context, run *shard.Run) error {
				return errors.New("manifest went missing")
			},
			want: "manifest went missing",
		},
		{
			name: "panic",
			run: func(ctx context.Context, run *shard.Run) error {
				var m map[string]int
				m["x"] = 1
				return nil
			},
			want: "assignment to entry in nil map",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			build := registryOf(t, map[string]shard.RunFunc{"analyze": tt.run})

			result, out, _ := execute(t, []string{"--shard=analyze"}, build)

			assert.Equal(t, StateCrashedUnexpectedly, result.State)
			assert.Equal(t, 255, result.ExitCode)
			require.NotEmpty(t, result.Failures)
			assert.Equal(t, failure.MessagePrefix+"UNEXPECTED ERROR!", result.Failures[0])
			assert.Contains(t, out.String(), tt.want)
		})
	}
}

func TestExecute_UnexpectedErrorAfterReportedFailure(t *testing.T) {
	build := registryOf(t, map[string]shard.RunFunc{
		"analyze": func(ctx context.Context, run *shard.Run) error {
			run.Reporter.ReportFailure("lint failed")
			return errors.New("boom")
		},
	})

	result, out, _ := execute(t, []string{"--shard=analyze"}, build)

	assert.Equal(t, StateCrashedUnexpectedly, result.State)
	assert.Equal(t, 255, result.ExitCode)
	assert.Len(t, result.Failures, 4)
	assert.Contains(t, out.String(), "2 failure(s) reported")
}

func TestExecute_StartupErrors(t *testing.T) {
	called := false
	good := registryOf(t, map[string]shard.RunFunc{
		"analyze": func(ctx context.Context, run *shard.Run) error {
			called = true
			return nil
		},
	})
	broken := func(cfg *config.RunConfiguration) (*shard.Registry, *executor.Config, error) {
		return nil, nil, errors.New("cannot read shards.yaml")
	}

	tests := []struct {
		name    string
		args    []string
		build   RegistryBuilder
		want    string
		heading string
	}{
		{"no shard", nil, good, "No shard selected", configurationHeading},
		{"unknown shard", []string{"--shard=nonexistent"}, good, "nonexistent", configurationHeading},
		{"invalid subshard", []string{"--shard=analyze", "--subshard=0_3"}, good, "0_3", configurationHeading},
		{"invalid seed", []string{"--shard=analyze", "--test-randomize-ordering-seed=soon"}, good, "soon", configurationHeading},
		{"builder error", []string{"--shard=analyze"}, broken, "cannot read shards.yaml", startupHeading},
		{"no builder", []string{"--shard=analyze"}, nil, "no registry builder", startupHeading},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, out, _ := execute(t, tt.args, tt.build)

			assert.Equal(t, StateCrashedUnexpectedly, result.State)
			assert.Equal(t, failure.ExitCodeUnexpected, result.ExitCode)
			assert.Contains(t, out.String(), tt.want)
			assert.Contains(t, out.String(), tt.heading)
		})
	}
	assert.False(t, called)
}

func TestExecute_RunReceivesConfiguration(t *testing.T) {
	var got *shard.Run
	build := registryOf(t, map[string]shard.RunFunc{
		"build_tests": func(ctx context.Context, run *shard.Run) error {
			got = run
			return nil
		},
	})

	result, _, _ := execute(t, []string{
		"--shard=build_tests",
		"--subshard=2_4",
		"--test-randomize-ordering-seed=42",
		"--local-engine=host_debug",
		"--coverage",
	}, build)

	require.Equal(t, StateSucceeded, result.State)
	require.NotNil(t, got)
	assert.Equal(t, "build_tests", got.Shard)
	assert.Equal(t, shard.Spec{Kind: shard.SpecIndexOfTotal, Index: 2, Total: 4}, got.Subshard)
	require.NotNil(t, got.ShuffleSeed)
	assert.Equal(t, int64(42), *got.ShuffleSeed)
	assert.Equal(t, []string{"--local-engine=host_debug", "--coverage"}, got.Passthrough)
	assert.NotNil(t, got.Runner)
	assert.NotNil(t, got.Log)
}

func TestExecute_EnvironmentSelectsShard(t *testing.T) {
	ran := ""
	build := registryOf(t, map[string]shard.RunFunc{
		"framework_tests": func(ctx context.Context, run *shard.Run) error {
			ran = run.Describe()
			return nil
		},
	})

	var out bytes.Buffer
	result := Execute(context.Background(), Options{
		LookupEnv: func(key string) (string, bool) {
			if key == config.EnvTaskName {
				return "framework_tests-widgets-linux", true
			}
			return "", false
		},
		Build: build,
		Out:   &out,
		Exit:  (&exitRecorder{}).exit,
	})

	assert.Equal(t, 0, result.ExitCode)
	assert.Equal(t, "framework_tests (subshard widgets)", ran)
}

func TestExecute_RealCommands(t *testing.T) {
	build := registryOf(t, map[string]shard.RunFunc{
		"checks": func(ctx context.Context, run *shard.Run) error {
			run.ExecAll(ctx, []executor.Command{
				{Label: "pass", Executable: "sh", Args: []string{"-c", "echo quiet-output"}},
				{Label: "fail", Executable: "sh", Args: []string{"-c", "echo loud-output; exit 2"}},
			})
			return nil
		},
	})

	result, out, _ := execute(t, []string{"--shard=checks"}, build)

	assert.Equal(t, StateFailed, result.State)
	assert.Equal(t, 1, result.ExitCode)
	assert.NotContains(t, out.String(), "quiet-output")
	assert.Contains(t, out.String(), "loud-output")
	assert.Contains(t, out.String(), "fail failed with exit code 2")
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state    State
		expected string
	}{
		{StateInitializing, "initializing"},
		{StateSelecting, "selecting"},
		{StateRunning, "running"},
		{StateSucceeded, "succeeded"},
		{StateFailed, "failed"},
		{StateAbortedOnError, "aborted-on-error"},
		{StateCrashedUnexpectedly, "crashed-unexpectedly"},
		{State(99), "unknown"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, tt.state.String())
	}
	assert.False(t, StateRunning.Terminal())
	assert.True(t, StateFailed.Terminal())
}
