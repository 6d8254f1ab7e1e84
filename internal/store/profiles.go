package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog/log"

	"github.com/tunnelward/tunnelward/internal/model"
	"github.com/tunnelward/tunnelward/internal/security"
)

// ProfileStore persists profiles one-per-file as TOML under
// config-dir/profiles/. Filenames derive from the profile name via
// SanitizeName.
type ProfileStore struct {
	paths Paths
}

// NewProfileStore creates a store rooted at the given paths.
func NewProfileStore(paths Paths) *ProfileStore {
	return &ProfileStore{paths: paths}
}

// SanitizeName maps a profile name to a safe filename stem: every
// character outside [A-Za-z0-9_-] becomes an underscore. Collisions after
// sanitization are the caller's responsibility to avoid.
func SanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

func (s *ProfileStore) profilePath(name string) string {
	return filepath.Join(s.paths.ProfilesDir(), SanitizeName(name)+".toml")
}

// List loads every readable profile. A malformed file is logged and
// skipped; it never fails the whole load.
func (s *ProfileStore) List() ([]model.Profile, error) {
	dir := s.paths.ProfilesDir()
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &security.StorageError{Op: "read profiles dir", Err: err}
	}

	var profiles []model.Profile
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".toml") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		p, err := s.loadFile(path)
		if err != nil {
			log.Warn().Str("path", path).Err(err).Msg("skipping malformed profile file")
			continue
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}

// Get returns the profile with the given name.
func (s *ProfileStore) Get(name string) (model.Profile, error) {
	profiles, err := s.List()
	if err != nil {
		return model.Profile{}, err
	}
	for _, p := range profiles {
		if p.Name == name {
			return p, nil
		}
	}
	return model.Profile{}, &security.ProfileNotFoundError{Name: name}
}

// Create validates and saves a new profile; the name must be unused.
func (s *ProfileStore) Create(p *model.Profile) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid profile: %w", err)
	}
	if _, err := s.Get(p.Name); err == nil {
		return &security.ProfileExistsError{Name: p.Name}
	}
	return s.Save(p)
}

// Save writes one profile file, creating the directory on first use.
func (s *ProfileStore) Save(p *model.Profile) error {
	if err := os.MkdirAll(s.paths.ProfilesDir(), 0o700); err != nil {
		return &security.StorageError{Op: "create profiles dir", Err: err}
	}
	b, err := toml.Marshal(p)
	if err != nil {
		return &security.StorageError{Op: "serialize profile", Err: err}
	}
	path := s.profilePath(p.Name)
	if err := writeFileAtomic(path, b, 0o600); err != nil {
		return &security.StorageError{Op: "write profile", Err: err}
	}
	return nil
}

// Update replaces the profile stored under existingName with updated,
// supporting rename: the new file is written first and the old file is
// removed only after the save succeeded.
func (s *ProfileStore) Update(existingName string, updated *model.Profile) error {
	if err := updated.Validate(); err != nil {
		return fmt.Errorf("invalid profile: %w", err)
	}
	if _, err := s.Get(existingName); err != nil {
		return err
	}
	if updated.Name != existingName {
		if _, err := s.Get(updated.Name); err == nil {
			return &security.ProfileExistsError{Name: updated.Name}
		}
	}
	if err := s.Save(updated); err != nil {
		return err
	}
	if updated.Name != existingName {
		if err := os.Remove(s.profilePath(existingName)); err != nil && !os.IsNotExist(err) {
			return &security.StorageError{Op: "remove renamed profile", Err: err}
		}
	}
	return nil
}

// Delete removes the profile file for name.
func (s *ProfileStore) Delete(name string) error {
	if _, err := s.Get(name); err != nil {
		return err
	}
	if err := os.Remove(s.profilePath(name)); err != nil && !os.IsNotExist(err) {
		return &security.StorageError{Op: "delete profile", Err: err}
	}
	return nil
}

func (s *ProfileStore) loadFile(path string) (model.Profile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return model.Profile{}, err
	}
	// Pre-populate defaults that cannot be distinguished from a zero
	// value after decoding; absent keys leave them untouched. Unknown
	// keys are tolerated so files written by newer versions stay
	// readable.
	p := model.Profile{AutoReconnect: true}
	if err := toml.Unmarshal(b, &p); err != nil {
		return model.Profile{}, err
	}
	p.ApplyDefaults()
	return p, nil
}
