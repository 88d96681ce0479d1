package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/maxkimambo/shardrun/internal/config"
	disperrors "github.com/maxkimambo/shardrun/internal/errors"
	"github.com/maxkimambo/shardrun/internal/executor"
	"github.com/maxkimambo/shardrun/internal/failure"
	"github.com/maxkimambo/shardrun/internal/logger"
	"github.com/maxkimambo/shardrun/internal/manifest"
	"github.com/maxkimambo/shardrun/internal/orchestrator"
	"github.com/maxkimambo/shardrun/internal/shard"
)

var version = "v0.1.0"

const rootLong = `shardrun runs one named shard of a CI test suite.

The shard is chosen with --shard, or from the TASK_NAME environment variable
(shard-subshard-platform), or from SHARD and SUBSHARD. A subshard is either a
label the shard defines or i_n, which runs block i of n.

Shards are read from a YAML manifest (--manifest, SHARDRUN_MANIFEST, or
shards.yaml). Arguments shardrun does not recognize are forwarded to the
manifest's tool. Only "list" and "version" in first position are subcommands;
anywhere else those words are forwarded too.

Exit codes: 0 success, 1 reported failures, 255 dispatcher error.`

const rootFlags = `Flags:
      --shard <name>                         shard to run
      --subshard <label|i_n>                 part of the shard to run
      --manifest <path>                      shard manifest
      --test-randomize-ordering-seed <n|random>
                                             shuffle test order with a seed
      --local-engine <name>                  forwarded to the tool
      --local-engine-host <name>             forwarded to the tool
      --local-engine-src-path <path>         forwarded to the tool
      --abort-on-error                       stop at the first failure
      --verbose                              stream command output
      --dry-run                              print commands without running them
  -h, --help                                 help for shardrun`

// cli carries what a command run needs from the process
type cli struct {
	lookupEnv config.LookupEnv
	exit      func(int)
	lister    manifest.DirLister
	exitCode  int
}

func newCLI() *cli {
	return &cli{
		lookupEnv: os.LookupEnv,
		exit:      os.Exit,
		lister:    manifest.OSDirLister{},
	}
}

func (c *cli) rootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "shardrun [flags] [tool arguments...]",
		Short: "Run one shard of a CI test suite",
		Long:  rootLong,
		// Unknown flags belong to the tool, so parsing is done by config.ParseArgs
		DisableFlagParsing: true,
		Args:               cobra.ArbitraryArgs,
		SilenceUsage:       true,
		SilenceErrors:      true,
		CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
		RunE: func(cmd *cobra.Command, args []string) error {
			// Drop the separator added by execute
			if len(args) > 0 && args[0] == "--" {
				args = args[1:]
			}
			flags := config.ParseArgs(args)
			if flags.Help {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\n\nUsage:\n  %s\n  shardrun list [--manifest path]\n  shardrun version\n\n%s\n",
					cmd.Long, cmd.UseLine(), rootFlags)
				return nil
			}

			logger.Setup(flags.Verbose, false, false)

			result := orchestrator.Execute(cmd.Context(), orchestrator.Options{
				Args:       args,
				LookupEnv:  c.lookupEnv,
				Build:      c.build,
				Out:        cmd.ErrOrStderr(),
				CommandOut: cmd.OutOrStdout(),
				Exit:       c.exit,
			})
			c.exitCode = result.ExitCode
			return nil
		},
	}

	rootCmd.AddCommand(c.listCommand(), versionCommand())
	return rootCmd
}

func (c *cli) build(cfg *config.RunConfiguration) (*shard.Registry, *executor.Config, error) {
	return manifest.Build(cfg.ManifestPath, c.lister)
}

// execute runs the command line. Subcommands are recognized only as the
// first argument; in any other position their names belong to the tool.
func (c *cli) execute(args []string, stdout, stderr io.Writer) int {
	rootCmd := c.rootCommand()
	if !isSubcommand(rootCmd, args) {
		// "--" stops cobra from looking for a subcommand among the arguments
		args = append([]string{"--"}, args...)
	}
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	if err := rootCmd.Execute(); err != nil {
		_, _ = io.WriteString(stderr, disperrors.FormatForCLI(err)+"\n")
		return failure.ExitCodeUnexpected
	}
	return c.exitCode
}

func isSubcommand(rootCmd *cobra.Command, args []string) bool {
	if len(args) == 0 {
		return false
	}
	for _, sub := range rootCmd.Commands() {
		if sub.Name() == args[0] {
			return true
		}
	}
	return false
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	return newCLI().execute(os.Args[1:], os.Stdout, os.Stderr)
}
