// Package capability loads the worker capability registry: the mapping
// from worker-type name to a description of what that worker can do.
// The classifier and the synthesizer both embed this registry in their
// prompts.
package capability

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Registry exposes the current capability set. Implementations are
// injected at construction; the file-backed one re-reads on Load so a
// long-lived process picks up registry edits.
type Registry interface {
	// Load returns worker type -> capability description.
	Load() (map[string]string, error)
}

// FileRegistry reads the registry from a YAML document of the form:
//
//	reminder_worker: "creates reminders and scheduled notifications"
//	weather_worker: "answers weather questions for a location"
type FileRegistry struct {
	path string
}

// NewFileRegistry creates a registry backed by a YAML file.
func NewFileRegistry(path string) *FileRegistry {
	return &FileRegistry{path: path}
}

// Load reads and parses the registry file.
func (r *FileRegistry) Load() (map[string]string, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read capability registry %s: %w", r.path, err)
	}
	caps := make(map[string]string)
	if err := yaml.Unmarshal(data, &caps); err != nil {
		return nil, fmt.Errorf("failed to parse capability registry %s: %w", r.path, err)
	}
	return caps, nil
}

// StaticRegistry is a fixed in-memory registry for tests.
type StaticRegistry map[string]string

// Load returns a copy of the static capability set.
func (r StaticRegistry) Load() (map[string]string, error) {
	caps := make(map[string]string, len(r))
	for k, v := range r {
		caps[k] = v
	}
	return caps, nil
}

// Describe renders a capability map as stable "name: description" lines
// for embedding in prompts.
func Describe(caps map[string]string) string {
	names := make([]string, 0, len(caps))
	for name := range caps {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		fmt.Fprintf(&b, "- %s: %s\n", name, caps[name])
	}
	return b.String()
}
