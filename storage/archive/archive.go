// Package archive opens the attestation archive described by configuration.
package archive

import (
	"errors"
	"fmt"

	"xdao.co/attest/storage"
	"xdao.co/attest/storage/localfs"
	"xdao.co/attest/storage/memory"
)

// Backend names.
const (
	Memory  = "memory"
	LocalFS = "localfs"
)

// Config describes one or more archive backends.
//
// WritePolicy "first" (default) writes to the first backend only; "all"
// writes to every backend and requires matching CIDs. Reads fall back in
// order under both policies.
//
// Example (YAML):
//
//	archive:
//	  write_policy: all
//	  backends:
//	    - name: localfs
//	      dir: /var/lib/easd/archive
//	    - name: memory
type Config struct {
	WritePolicy string    `yaml:"write_policy"`
	Backends    []Backend `yaml:"backends"`
}

type Backend struct {
	Name string `yaml:"name"`
	// ID distinguishes two backends of the same kind. Defaults to Name.
	ID  string `yaml:"id"`
	Dir string `yaml:"dir"`
}

func (b Backend) id() string {
	if b.ID != "" {
		return b.ID
	}
	return b.Name
}

func (c Config) Validate() error {
	if len(c.Backends) == 0 {
		return errors.New("archive: at least one backend is required")
	}
	seen := make(map[string]struct{}, len(c.Backends))
	for _, b := range c.Backends {
		switch b.Name {
		case Memory:
		case LocalFS:
			if b.Dir == "" {
				return fmt.Errorf("archive: backend %q needs dir", b.id())
			}
		default:
			return fmt.Errorf("archive: unknown backend %q", b.Name)
		}
		if _, dup := seen[b.id()]; dup {
			return fmt.Errorf("archive: duplicate backend id %q", b.id())
		}
		seen[b.id()] = struct{}{}
	}
	switch c.WritePolicy {
	case "", "first", "all":
		return nil
	default:
		return fmt.Errorf("archive: invalid write_policy %q", c.WritePolicy)
	}
}

// Open builds the archive. A single backend is returned as-is.
func Open(c Config) (storage.CAS, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	named := make([]storage.Named, 0, len(c.Backends))
	for _, b := range c.Backends {
		var cas storage.CAS
		switch b.Name {
		case Memory:
			cas = memory.New()
		case LocalFS:
			fs, err := localfs.New(b.Dir)
			if err != nil {
				return nil, fmt.Errorf("archive: %s: %w", b.id(), err)
			}
			cas = fs
		}
		named = append(named, storage.Named{Name: b.id(), CAS: cas})
	}
	if len(named) == 1 {
		return named[0].CAS, nil
	}
	return storage.Mirror{Backends: named, WriteAll: c.WritePolicy == "all"}, nil
}
