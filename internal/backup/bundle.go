// Package backup implements the config backup engine: it captures the prior
// state of every managed artifact into a timestamped, append-once bundle that
// rollback later consumes. A bundle is written exactly once and never
// mutated.
package backup

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/hardenlabs/wslharden/internal/artifact"
)

// MetadataFileName is the bundle's self-description, written last so a
// bundle with metadata is known to be complete.
const MetadataFileName = "metadata.json"

// StampLayout names bundle directories by creation time, second resolution.
const StampLayout = "20060102-150405"

// Status records what the backup engine found when probing an artifact.
type Status string

const (
	// StatusPresent means the artifact existed and its content was captured.
	StatusPresent Status = "present"
	// StatusAbsent means the artifact did not exist. Rollback must delete
	// the live artifact to restore this state.
	StatusAbsent Status = "absent"
	// StatusFailed means the probe or copy failed; rollback skips the
	// artifact rather than guessing.
	StatusFailed Status = "failed"
)

// Capture is one artifact's entry in the bundle manifest.
type Capture struct {
	Name   string         `json:"name"`
	Path   string         `json:"path"`
	Scope  artifact.Scope `json:"scope"`
	Status Status         `json:"status"`
}

// Metadata is the bundle's self-describing record.
type Metadata struct {
	Distro       string    `json:"distro"`
	Creator      string    `json:"creator"`
	Host         string    `json:"host"`
	RunID        string    `json:"run_id"`
	CreatedAt    time.Time `json:"created_at"`
	IncludesHost bool      `json:"includes_host_artifacts"`
	Manifest     []Capture `json:"manifest"`
}

// Bundle is a backup bundle on disk.
type Bundle struct {
	Path string
	Meta Metadata

	// Degraded is set when the bundle was loaded without metadata;
	// rollback proceeds with reduced precision.
	Degraded bool
}

// Find returns the manifest entry for an artifact name.
func (b *Bundle) Find(name string) (Capture, bool) {
	for _, c := range b.Meta.Manifest {
		if c.Name == name {
			return c, true
		}
	}
	return Capture{}, false
}

// Content reads a captured artifact's bytes from the bundle.
func (b *Bundle) Content(name string) ([]byte, error) {
	a, ok := artifact.ByName(name)
	if !ok {
		return nil, fmt.Errorf("unknown artifact %q", name)
	}
	data, err := os.ReadFile(filepath.Join(b.Path, filepath.FromSlash(a.BundleRelPath())))
	if err != nil {
		return nil, fmt.Errorf("read capture %s: %w", name, err)
	}
	return data, nil
}

// Load opens an existing bundle. A missing metadata file degrades the bundle
// instead of failing: rollback must still be possible after a partial run.
func Load(path string) (*Bundle, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("bundle %s: %w", path, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("bundle %s: not a directory", path)
	}

	b := &Bundle{Path: path}
	data, err := os.ReadFile(filepath.Join(path, MetadataFileName))
	if err != nil {
		b.Degraded = true
		return b, nil
	}
	if err := json.Unmarshal(data, &b.Meta); err != nil {
		b.Degraded = true
		return b, nil
	}
	return b, nil
}

// List returns all bundles under root, newest first.
func List(root string) ([]*Bundle, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read backup root: %w", err)
	}

	var bundles []*Bundle
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := time.Parse(StampLayout, e.Name()[:min(len(e.Name()), len(StampLayout))]); err != nil {
			continue
		}
		b, err := Load(filepath.Join(root, e.Name()))
		if err != nil {
			continue
		}
		bundles = append(bundles, b)
	}

	sort.Slice(bundles, func(i, j int) bool {
		return filepath.Base(bundles[i].Path) > filepath.Base(bundles[j].Path)
	})
	return bundles, nil
}

// Latest returns the most recent bundle under root.
func Latest(root string) (*Bundle, error) {
	bundles, err := List(root)
	if err != nil {
		return nil, err
	}
	if len(bundles) == 0 {
		return nil, fmt.Errorf("no backup bundles found under %s", root)
	}
	return bundles[0], nil
}
