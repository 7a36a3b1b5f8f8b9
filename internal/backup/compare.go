package backup

import (
	"context"
	"fmt"
	"strings"

	"github.com/hardenlabs/wslharden/internal/artifact"
	"github.com/hardenlabs/wslharden/internal/wsl"
	"github.com/pmezard/go-difflib/difflib"
)

// Compare diffs a captured artifact against its live content. Used by
// `backup diff` so an operator can see what rollback would change.
func Compare(ctx context.Context, r wsl.Runner, b *Bundle, name string) (string, error) {
	cap, ok := b.Find(name)
	if !ok {
		return "", fmt.Errorf("artifact %q not in bundle manifest", name)
	}

	var captured string
	switch cap.Status {
	case StatusPresent:
		data, err := b.Content(name)
		if err != nil {
			return "", err
		}
		captured = string(data)
	case StatusAbsent:
		captured = ""
	default:
		return "", fmt.Errorf("artifact %q capture failed at backup time, nothing to compare", name)
	}

	a, _ := artifact.ByName(name)
	var live string
	exists, err := wsl.FileExists(ctx, r, a.Path)
	if err != nil {
		return "", err
	}
	if exists {
		data, err := wsl.ReadFile(ctx, r, a.Path)
		if err != nil {
			return "", err
		}
		live = string(data)
	}

	if captured == live {
		return "", nil
	}

	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(captured),
		B:        difflib.SplitLines(live),
		FromFile: "bundle/" + name,
		ToFile:   "live/" + name,
		Context:  3,
	})
	if err != nil {
		return "", fmt.Errorf("diff %s: %w", name, err)
	}
	return strings.TrimRight(diff, "\n") + "\n", nil
}
