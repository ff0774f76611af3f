package resume

import (
	"encoding/json"
	"fmt"
	"os"
)

// Store exposes read-only resume access for the tool layer. The underlying
// document never changes after Load, so the store is safe to share across
// goroutines without locking.
type Store struct {
	data Data
}

// Load reads and validates the resume document at path. Validation failures
// are returned as-is so the caller can fail fast at startup.
func Load(path string) (*Store, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read resume data: %w", err)
	}

	var data Data
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parse resume data %s: %w", path, err)
	}

	return NewStore(data)
}

// NewStore validates the supplied document and wraps it in a Store.
func NewStore(data Data) (*Store, error) {
	if err := data.Validate(); err != nil {
		return nil, err
	}
	return &Store{data: data}, nil
}

// PersonalInfo returns the contact section.
func (s *Store) PersonalInfo() PersonalInfo {
	return s.data.PersonalInfo
}

// Summary returns the professional summary, possibly empty.
func (s *Store) Summary() string {
	return s.data.Summary
}

// Education returns a copy of the education entries.
func (s *Store) Education() []Education {
	return append([]Education(nil), s.data.Education...)
}

// Experience returns a copy of the work experience entries.
func (s *Store) Experience() []Experience {
	return append([]Experience(nil), s.data.Experience...)
}

// Projects returns a copy of the project entries.
func (s *Store) Projects() []Project {
	return append([]Project(nil), s.data.Projects...)
}

// Skills returns a copy of the skills map.
func (s *Store) Skills() map[string][]string {
	skills := make(map[string][]string, len(s.data.Skills))
	for category, list := range s.data.Skills {
		skills[category] = append([]string(nil), list...)
	}
	return skills
}
