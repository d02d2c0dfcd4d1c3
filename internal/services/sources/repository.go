// Package sources loads per-host scrape profiles from YAML files and resolves
// them by request host.
package sources

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/spinneret/internal/common"
	"github.com/ternarybob/spinneret/internal/interfaces"
	"gopkg.in/yaml.v3"
)

// Repository holds the scrape profiles loaded at startup, keyed by host.
// Profiles are read-only after load so lookups need no locking.
type Repository struct {
	profiles map[string]*interfaces.ScrapeProfile
	logger   arbor.ILogger
}

var _ interfaces.ProfileRepository = (*Repository)(nil)

// profileFile is the on-disk shape: one file may hold several profiles
type profileFile struct {
	Profiles []*interfaces.ScrapeProfile `yaml:"profiles"`
}

// NewRepository loads every *.yaml / *.yml file under dir. A missing directory
// yields an empty repository, malformed files fail the load.
func NewRepository(dir string, logger arbor.ILogger) (*Repository, error) {
	repo := &Repository{
		profiles: make(map[string]*interfaces.ScrapeProfile),
		logger:   logger,
	}

	if dir == "" {
		return repo, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Debug().Str("dir", dir).Msg("Profile directory not found, using defaults for all hosts")
			return repo, nil
		}
		return nil, fmt.Errorf("read profile directory %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		if err := repo.loadFile(filepath.Join(dir, entry.Name())); err != nil {
			return nil, err
		}
	}

	logger.Info().
		Int("profiles", len(repo.profiles)).
		Str("dir", dir).
		Msg("Scrape profiles loaded")

	return repo, nil
}

func (r *Repository) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read profile file %s: %w", path, err)
	}

	var file profileFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse profile file %s: %w", path, err)
	}

	for _, profile := range file.Profiles {
		host := strings.ToLower(strings.TrimSpace(profile.Host))
		if host == "" {
			return fmt.Errorf("profile file %s: profile with empty host", path)
		}
		if _, exists := r.profiles[host]; exists {
			r.logger.Warn().Str("host", host).Str("file", path).Msg("Duplicate profile host, keeping first")
			continue
		}
		profile.Host = host
		r.profiles[host] = profile
	}

	return nil
}

// ResolveProfile returns the profile matching the URI's host. A "www." prefix
// on the request host is ignored when the profile omits it.
func (r *Repository) ResolveProfile(uri string) (*interfaces.ScrapeProfile, bool) {
	host := common.HostOf(uri)
	if host == "" {
		return nil, false
	}

	if profile, ok := r.profiles[host]; ok {
		return profile, true
	}
	if stripped := strings.TrimPrefix(host, "www."); stripped != host {
		if profile, ok := r.profiles[stripped]; ok {
			return profile, true
		}
	}
	return nil, false
}
