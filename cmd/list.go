package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/maxkimambo/shardrun/internal/config"
	"github.com/maxkimambo/shardrun/internal/manifest"
	"github.com/maxkimambo/shardrun/internal/utils"
)

func (c *cli) listCommand() *cobra.Command {
	var manifestPath string

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the shards defined in the manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := manifest.Load(config.ManifestPath(manifestPath, c.lookupEnv))
			if err != nil {
				return err
			}

			table := utils.NewTableFormatter("SHARD", "MODE", "SUBSHARDS", "WORK")
			for _, s := range m.Shards {
				mode := "sequential"
				if s.Parallel {
					mode = "parallel"
				}
				subshards := strings.Join(s.Labels(), ", ")
				if subshards == "" {
					subshards = "-"
				}
				table.AddRow(s.Name, mode, subshards, describeWork(s))
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Shards in %s:\n%s", m.Path(), table.String())
			return err
		},
	}

	listCmd.Flags().StringVar(&manifestPath, "manifest", "", "Path to the shard manifest")
	return listCmd
}

func describeWork(s manifest.Shard) string {
	var parts []string
	if n := len(s.Commands); n > 0 {
		parts = append(parts, fmt.Sprintf("%d command(s)", n))
	}
	if p := s.Projects; p != nil {
		work := fmt.Sprintf("projects in %s", p.Root)
		if len(p.Modes) > 0 {
			work += fmt.Sprintf(" (%s)", strings.Join(p.Modes, ", "))
		}
		parts = append(parts, work)
	}
	return strings.Join(parts, " + ")
}
