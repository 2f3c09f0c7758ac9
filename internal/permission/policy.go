package permission

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Policy is the on-disk allow-list policy. It pre-seeds the gate and can
// be edited while a session runs; the watcher re-applies it on change.
type Policy struct {
	// Mode overrides the session approval mode when set.
	Mode string `yaml:"mode,omitempty"`

	Allow PolicyAllow `yaml:"allow"`
}

// PolicyAllow holds the per-kind allow lists.
type PolicyAllow struct {
	// Paths grant reads (and, in auto-edit mode, writes) under each prefix.
	Paths []string `yaml:"paths,omitempty"`

	// WritePaths grant writes under each prefix in every mode.
	WritePaths []string `yaml:"write_paths,omitempty"`

	// Commands grant subprocesses whose first token matches.
	Commands []string `yaml:"commands,omitempty"`

	// Hosts grant outbound requests to each hostname.
	Hosts []string `yaml:"hosts,omitempty"`
}

// LoadPolicy reads a policy file. A missing file is an empty policy, not
// an error: the gate still carries its working-directory seed.
func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Policy{}, nil
		}
		return nil, fmt.Errorf("read policy file: %w", err)
	}

	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse policy file: %w", err)
	}

	if p.Mode != "" {
		if _, err := ParseMode(p.Mode); err != nil {
			return nil, err
		}
	}
	return &p, nil
}

// Apply folds the policy into the gate. Entries accumulate; a reload never
// revokes grants already memoized in the running session.
func (p *Policy) Apply(g *Gate) error {
	if p.Mode != "" {
		mode, err := ParseMode(p.Mode)
		if err != nil {
			return err
		}
		g.SetMode(mode)
	}

	for _, path := range p.Allow.Paths {
		g.Seed(Entry{Kind: KindRead, Value: path})
	}
	for _, path := range p.Allow.WritePaths {
		g.Seed(Entry{Kind: KindWrite, Value: path})
	}
	for _, cmd := range p.Allow.Commands {
		g.Seed(Entry{Kind: KindExecute, Value: cmd})
	}
	for _, host := range p.Allow.Hosts {
		g.Seed(Entry{Kind: KindFetch, Value: host})
	}
	return nil
}
