// Package manifest loads shard definitions from YAML and registers them as
// task groups.
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	disperrors "github.com/maxkimambo/shardrun/internal/errors"
	"github.com/maxkimambo/shardrun/internal/executor"
)

// Manifest is the root of a shards.yaml file.
type Manifest struct {
	// Tool is the default executable; passthrough arguments are appended
	// to every command that runs it.
	Tool string `yaml:"tool"`

	Concurrency int       `yaml:"concurrency"`
	QuietPeriod *Duration `yaml:"quiet_period"`

	Shards []Shard `yaml:"shards"`

	path string
}

// Shard defines one task group.
type Shard struct {
	Name     string        `yaml:"name"`
	Parallel bool          `yaml:"parallel"`
	Commands []CommandSpec `yaml:"commands"`
	Projects *Projects     `yaml:"projects"`

	// Subshards maps a label to the commands (or project directories) it runs
	Subshards map[string][]string `yaml:"subshards"`
}

// CommandSpec is a single command entry.
type CommandSpec struct {
	Name       string            `yaml:"name"`
	Executable string            `yaml:"executable"`
	Args       []string          `yaml:"args"`
	Dir        string            `yaml:"dir"`
	Env        map[string]string `yaml:"env"`
	Retries    int               `yaml:"retries"`
}

// Projects expands into one command per directory under Root and per mode.
type Projects struct {
	Root       string   `yaml:"root"`
	Executable string   `yaml:"executable"`
	Args       []string `yaml:"args"`
	Modes      []string `yaml:"modes"`
	Retries    int      `yaml:"retries"`
}

// Duration accepts Go duration strings such as "90s" or "5m".
type Duration struct {
	time.Duration
}

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "0" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("line %d: invalid duration %q", node.Line, raw)
	}
	d.Duration = parsed
	return nil
}

// Load reads and validates the manifest at path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, disperrors.NewManifestError(path, "cannot read manifest", err)
	}
	m, err := Parse(path, data)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Parse decodes manifest data. Unknown keys are rejected.
func Parse(path string, data []byte) (*Manifest, error) {
	var m Manifest

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&m); err != nil && !errors.Is(err, io.EOF) {
		return nil, disperrors.NewManifestError(path, "invalid YAML", err)
	}

	m.path = path
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Path returns where the manifest was loaded from
func (m *Manifest) Path() string {
	return m.path
}

// Validate checks the manifest for problems that would otherwise only show
// up once a shard runs.
func (m *Manifest) Validate() error {
	fail := func(format string, args ...interface{}) error {
		return disperrors.NewManifestError(m.path, fmt.Sprintf(format, args...), nil)
	}

	if len(m.Shards) == 0 {
		return fail("no shards defined")
	}
	if m.Concurrency < 0 {
		return fail("concurrency must not be negative")
	}

	for i, s := range m.Shards {
		if s.Name == "" {
			return fail("shard #%d has no name", i+1)
		}
		if len(s.Commands) == 0 && s.Projects == nil {
			return fail("shard %s has neither commands nor projects", s.Name)
		}

		names := make(map[string]bool, len(s.Commands))
		for j, c := range s.Commands {
			if c.Name == "" {
				return fail("shard %s: command #%d has no name", s.Name, j+1)
			}
			if names[c.Name] {
				return fail("shard %s: command %s is defined twice", s.Name, c.Name)
			}
			names[c.Name] = true
			if c.Executable == "" && m.Tool == "" {
				return fail("shard %s: command %s has no executable and no tool is set", s.Name, c.Name)
			}
			if c.Retries < 0 {
				return fail("shard %s: command %s has negative retries", s.Name, c.Name)
			}
		}

		if p := s.Projects; p != nil {
			if p.Root == "" {
				return fail("shard %s: projects need a root", s.Name)
			}
			if p.Executable == "" && m.Tool == "" {
				return fail("shard %s: projects have no executable and no tool is set", s.Name)
			}
		}

		for label, members := range s.Subshards {
			if label == "" || label[0] == '-' || (label[0] >= '0' && label[0] <= '9') {
				return fail("shard %s: subshard label %q would be read as an index", s.Name, label)
			}
			if len(members) == 0 {
				return fail("shard %s: subshard %s is empty", s.Name, label)
			}
			// Project directories are only known at run time
			if s.Projects != nil {
				continue
			}
			for _, member := range members {
				if !names[member] {
					return fail("shard %s: subshard %s names unknown command %s", s.Name, label, member)
				}
			}
		}
	}
	return nil
}

// Labels returns the shard's named subshards, sorted.
func (s Shard) Labels() []string {
	labels := make([]string, 0, len(s.Subshards))
	for label := range s.Subshards {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// ExecutorConfig derives runner settings from the manifest.
func (m *Manifest) ExecutorConfig() *executor.Config {
	cfg := executor.DefaultConfig()
	cfg.Concurrency = m.Concurrency
	if m.QuietPeriod != nil {
		cfg.QuietPeriod = m.QuietPeriod.Duration
	}
	return cfg
}
