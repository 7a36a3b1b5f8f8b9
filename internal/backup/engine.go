package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/user"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/hardenlabs/wslharden/internal/artifact"
	"github.com/hardenlabs/wslharden/internal/clock"
	"github.com/hardenlabs/wslharden/internal/config"
	"github.com/hardenlabs/wslharden/internal/logging"
	"github.com/hardenlabs/wslharden/internal/wsl"
)

// Engine captures artifact state into bundles.
type Engine struct {
	runner wsl.Runner
	clk    clock.Clock
	log    *logging.Logger
}

// NewEngine creates a backup engine over the given runner.
func NewEngine(runner wsl.Runner) *Engine {
	return &Engine{
		runner: runner,
		clk:    &clock.RealClock{},
		log:    logging.WithComponent("backup"),
	}
}

// WithClock overrides the time source (tests).
func (e *Engine) WithClock(c clock.Clock) *Engine {
	e.clk = c
	return e
}

// Create captures every catalog artifact into a new bundle under the
// configured backup root. Per-artifact failures are warnings; only an
// unwritable root or an unreachable distro is fatal, and both abort before
// any apply step is allowed to run.
func (e *Engine) Create(ctx context.Context, cfg *config.Run, includeHost bool) (*Bundle, error) {
	if err := wsl.Reachable(ctx, e.runner); err != nil {
		return nil, fmt.Errorf("backup aborted: %w", err)
	}

	dir, err := e.newBundleDir(cfg.BackupRoot)
	if err != nil {
		return nil, fmt.Errorf("backup aborted: %w", err)
	}

	meta := Metadata{
		Distro:       cfg.Distro,
		Creator:      currentUser(),
		Host:         hostname(),
		RunID:        uuid.NewString(),
		CreatedAt:    e.clk.Now().UTC(),
		IncludesHost: includeHost,
	}

	for _, a := range artifact.Catalog() {
		if a.Scope == artifact.ScopeHost && !includeHost {
			continue
		}
		capture := e.captureOne(ctx, dir, a)
		meta.Manifest = append(meta.Manifest, capture)
		e.log.Debug("captured artifact", "name", a.Name, "status", string(capture.Status))
	}

	// Metadata last: a bundle with metadata is complete by construction.
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, MetadataFileName), data, 0644); err != nil {
		return nil, fmt.Errorf("write metadata: %w", err)
	}

	e.log.Info("backup bundle created", "path", dir, "artifacts", len(meta.Manifest))
	logging.Audit("backup", cfg.Distro, map[string]any{"bundle": dir, "run_id": meta.RunID})

	return &Bundle{Path: dir, Meta: meta}, nil
}

func (e *Engine) captureOne(ctx context.Context, dir string, a artifact.Artifact) Capture {
	c := Capture{Name: a.Name, Path: a.Path, Scope: a.Scope}

	var content []byte
	var exists bool
	var err error

	switch a.Scope {
	case artifact.ScopeHost:
		exists, content, err = readHostArtifact(a)
	default:
		exists, err = wsl.FileExists(ctx, e.runner, a.Path)
		if err == nil && exists {
			content, err = wsl.ReadFile(ctx, e.runner, a.Path)
		}
	}

	if err != nil {
		e.log.Warn("artifact capture failed, continuing", "name", a.Name, "error", err)
		c.Status = StatusFailed
		return c
	}
	if !exists {
		c.Status = StatusAbsent
		return c
	}

	dst := filepath.Join(dir, filepath.FromSlash(a.BundleRelPath()))
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		e.log.Warn("artifact capture failed, continuing", "name", a.Name, "error", err)
		c.Status = StatusFailed
		return c
	}
	if err := os.WriteFile(dst, content, 0600); err != nil {
		e.log.Warn("artifact capture failed, continuing", "name", a.Name, "error", err)
		c.Status = StatusFailed
		return c
	}

	c.Status = StatusPresent
	return c
}

// newBundleDir creates a fresh timestamped directory, proving the root is
// writable. A same-second collision gets a numeric suffix.
func (e *Engine) newBundleDir(root string) (string, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return "", fmt.Errorf("backup root not writable: %w", err)
	}

	stamp := e.clk.Now().Format(StampLayout)
	dir := filepath.Join(root, stamp)
	for i := 2; ; i++ {
		err := os.Mkdir(dir, 0755)
		if err == nil {
			return dir, nil
		}
		if !os.IsExist(err) {
			return "", fmt.Errorf("backup root not writable: %w", err)
		}
		dir = filepath.Join(root, fmt.Sprintf("%s-%d", stamp, i))
	}
}

func readHostArtifact(a artifact.Artifact) (bool, []byte, error) {
	path, err := a.HostPath()
	if err != nil {
		return false, nil, err
	}
	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil, nil
	}
	if err != nil {
		return false, nil, err
	}
	return true, content, nil
}

func currentUser() string {
	name := "unknown"
	if u, err := user.Current(); err == nil {
		name = u.Username
	}
	return name + "@" + hostname()
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return h
}
