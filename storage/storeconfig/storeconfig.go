// Package storeconfig opens envelope stores from a config file.
//
// Callers still link the backends they want through blank imports; the
// config only selects among registered backends.
//
// Example (JSON; YAML with the same keys is accepted for .yaml/.yml files):
//
//	{
//	  "write_policy": "all",
//	  "backends": [
//	    {"name": "localfs", "config": {"dir": "/var/lib/szdat"}},
//	    {"name": "grpc", "id": "mirror", "config": {"target": "store.example:7777"}}
//	  ]
//	}
//
// WritePolicy "first" (the default) writes only to the first backend; "all"
// writes to every backend and requires them to agree on the ID. Reads fall
// back in listed order either way.
package storeconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"github.com/gordonbrander/szdat/storage"
	"github.com/gordonbrander/szdat/storage/registry"
)

type Config struct {
	WritePolicy string          `json:"write_policy,omitempty" yaml:"write_policy,omitempty"`
	Backends    []BackendConfig `json:"backends" yaml:"backends"`
}

type BackendConfig struct {
	// Name is the registry backend to open (e.g. "localfs", "grpc").
	Name string `json:"name" yaml:"name"`
	// ID is an optional stable alias; Name is used when empty.
	ID     string            `json:"id,omitempty" yaml:"id,omitempty"`
	Config map[string]string `json:"config,omitempty" yaml:"config,omitempty"`
}

func (b BackendConfig) id() string {
	if b.ID != "" {
		return b.ID
	}
	return b.Name
}

// Parse decodes a config. Files ending in .yaml or .yml are YAML; anything
// else is JSON.
func Parse(name string, b []byte) (Config, error) {
	var cfg Config
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("storeconfig: %w", err)
		}
	default:
		dec := json.NewDecoder(strings.NewReader(string(b)))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return cfg, fmt.Errorf("storeconfig: %w", err)
		}
	}
	return cfg, cfg.Validate()
}

func LoadFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("storeconfig: empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(path, b)
}

func (c Config) Validate() error {
	if len(c.Backends) == 0 {
		return errors.New("storeconfig: at least one backend is required")
	}
	seen := make(map[string]struct{}, len(c.Backends))
	for _, b := range c.Backends {
		if b.Name == "" {
			return errors.New("storeconfig: backend name is required")
		}
		if _, ok := seen[b.id()]; ok {
			return fmt.Errorf("storeconfig: duplicate backend id %q", b.id())
		}
		seen[b.id()] = struct{}{}
	}
	switch storage.WritePolicy(c.WritePolicy) {
	case "", storage.WriteFirst, storage.WriteAll:
		return nil
	default:
		return fmt.Errorf("storeconfig: invalid write_policy %q", c.WritePolicy)
	}
}

// Open opens every configured backend and combines them into one store.
//
// If preferred is non-empty, the backend with that name or ID is moved to
// the front, so it takes writes under the "first" policy.
func (c Config) Open(usage registry.Usage, preferred string) (storage.Store, func() error, error) {
	if err := c.Validate(); err != nil {
		return nil, nil, err
	}

	ordered := append([]BackendConfig(nil), c.Backends...)
	if preferred != "" {
		idx := -1
		for i := range ordered {
			if ordered[i].Name == preferred || ordered[i].ID == preferred {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, nil, fmt.Errorf("storeconfig: preferred backend %q not found in config", preferred)
		}
		if idx != 0 {
			b := ordered[idx]
			copy(ordered[1:idx+1], ordered[0:idx])
			ordered[0] = b
		}
	}

	named := make([]storage.NamedStore, 0, len(ordered))
	closers := make([]func() error, 0, len(ordered))
	closeAll := func() error {
		var result *multierror.Error
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				result = multierror.Append(result, err)
			}
		}
		return result.ErrorOrNil()
	}
	for _, b := range ordered {
		s, closeFn, err := registry.OpenWithConfig(b.Name, usage, b.Config)
		if err != nil {
			_ = closeAll()
			return nil, nil, fmt.Errorf("storeconfig: backend %q: %w", b.id(), err)
		}
		named = append(named, storage.NamedStore{Name: b.id(), Store: s})
		if closeFn != nil {
			closers = append(closers, closeFn)
		}
	}

	if len(named) == 1 {
		return named[0].Store, closeAll, nil
	}
	return storage.Mirror{Backends: named, Policy: storage.WritePolicy(c.WritePolicy)}, closeAll, nil
}
