package manifest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/maxkimambo/shardrun/internal/executor"
	"github.com/maxkimambo/shardrun/internal/shard"
)

// DirLister lists the immediate subdirectories of a directory.
type DirLister interface {
	ListDirs(root string) ([]string, error)
}

// OSDirLister reads directories from the local file system.
type OSDirLister struct{}

// ListDirs returns the names of root's subdirectories, sorted. Hidden
// directories are skipped.
func (OSDirLister) ListDirs(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	var dirs []string
	for _, entry := range entries {
		if entry.IsDir() && entry.Name()[0] != '.' {
			dirs = append(dirs, entry.Name())
		}
	}
	sort.Strings(dirs)
	return dirs, nil
}

// item is one schedulable command plus the names a subshard may use for it
type item struct {
	name    string
	group   string
	command executor.Command
}

// Register adds every shard of the manifest to the registry.
func Register(registry *shard.Registry, m *Manifest, lister DirLister) error {
	if lister == nil {
		lister = OSDirLister{}
	}
	for _, s := range m.Shards {
		if err := registry.Register(s.Name, m.runner(s, lister), s.Labels()...); err != nil {
			return err
		}
	}
	return nil
}

// Build loads the manifest at path and returns a populated registry along
// with the runner settings it asks for.
func Build(path string, lister DirLister) (*shard.Registry, *executor.Config, error) {
	m, err := Load(path)
	if err != nil {
		return nil, nil, err
	}
	registry := shard.NewRegistry()
	if err := Register(registry, m, lister); err != nil {
		return nil, nil, err
	}
	return registry, m.ExecutorConfig(), nil
}

func (m *Manifest) runner(s Shard, lister DirLister) shard.RunFunc {
	return func(ctx context.Context, run *shard.Run) error {
		items, err := m.items(s, run, lister)
		if err != nil {
			return err
		}

		named, err := groupSubshards(s, items)
		if err != nil {
			return err
		}

		selected, err := shard.Items(run, items, named)
		if err != nil {
			return err
		}

		commands := make([]executor.Command, len(selected))
		for i, it := range selected {
			commands[i] = it.command
		}

		if run.Log != nil {
			run.Log.WithField("commands", len(commands)).Infof("Running %s", run.Describe())
		}

		if s.Parallel {
			return run.ExecParallel(ctx, commands)
		}
		run.ExecAll(ctx, commands)
		return nil
	}
}

func (m *Manifest) items(s Shard, run *shard.Run, lister DirLister) ([]item, error) {
	items := make([]item, 0, len(s.Commands))

	for _, c := range s.Commands {
		exe := c.Executable
		if exe == "" {
			exe = m.Tool
		}
		items = append(items, item{
			name:  c.Name,
			group: c.Name,
			command: executor.Command{
				Label:      c.Name,
				Executable: exe,
				Args:       m.args(run, exe, c.Args),
				Dir:        c.Dir,
				Env:        envList(c.Env),
				Retries:    c.Retries,
			},
		})
	}

	if p := s.Projects; p != nil {
		dirs, err := lister.ListDirs(p.Root)
		if err != nil {
			return nil, fmt.Errorf("listing projects of %s: %w", s.Name, err)
		}

		exe := p.Executable
		if exe == "" {
			exe = m.Tool
		}
		for _, dir := range dirs {
			if len(p.Modes) == 0 {
				items = append(items, item{
					name:  dir,
					group: dir,
					command: executor.Command{
						Label:      dir,
						Executable: exe,
						Args:       m.args(run, exe, p.Args),
						Dir:        filepath.Join(p.Root, dir),
						Retries:    p.Retries,
					},
				})
				continue
			}
			for _, mode := range p.Modes {
				args := append(append([]string{}, p.Args...), "--"+mode)
				label := dir + ":" + mode
				items = append(items, item{
					name:  label,
					group: dir,
					command: executor.Command{
						Label:      label,
						Executable: exe,
						Args:       m.args(run, exe, args),
						Dir:        filepath.Join(p.Root, dir),
						Retries:    p.Retries,
					},
				})
			}
		}
	}

	return items, nil
}

// args appends the passthrough arguments when the command runs the tool
func (m *Manifest) args(run *shard.Run, exe string, args []string) []string {
	if m.Tool != "" && exe == m.Tool {
		return run.WithPassthrough(args...)
	}
	return append([]string{}, args...)
}

func groupSubshards(s Shard, items []item) (map[string][]item, error) {
	if len(s.Subshards) == 0 {
		return nil, nil
	}

	named := make(map[string][]item, len(s.Subshards))
	for label, members := range s.Subshards {
		wanted := make(map[string]bool, len(members))
		for _, member := range members {
			wanted[member] = true
		}

		matched := make(map[string]bool, len(members))
		selected := []item{}
		for _, it := range items {
			if wanted[it.name] || wanted[it.group] {
				selected = append(selected, it)
				matched[it.name] = true
				matched[it.group] = true
			}
		}
		for _, member := range members {
			if !matched[member] {
				return nil, fmt.Errorf("subshard %s of %s: nothing named %s", label, s.Name, member)
			}
		}
		named[label] = selected
	}
	return named, nil
}

func envList(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	list := make([]string, len(keys))
	for i, k := range keys {
		list[i] = k + "=" + env[k]
	}
	return list
}
