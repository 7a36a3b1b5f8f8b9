// Package render is the template renderer: plain {{NAME}} placeholder
// substitution over embedded step templates. No control flow, no logic in
// templates; a placeholder that survives rendering is an error, never a
// payload that reaches the target.
package render

import (
	"embed"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strings"
)

//go:embed templates/*.tmpl
var embedded embed.FS

var placeholderRe = regexp.MustCompile(`\{\{([A-Z][A-Z0-9_]*)\}\}`)

// Renderer loads named templates and substitutes placeholders.
type Renderer struct {
	fsys fs.FS
	dir  string
}

// New returns a renderer over the compiled-in templates.
func New() *Renderer {
	return &Renderer{fsys: embedded, dir: "templates"}
}

// NewFromFS returns a renderer over an arbitrary filesystem, used by tests
// and by operators overriding templates on disk.
func NewFromFS(fsys fs.FS, dir string) *Renderer {
	return &Renderer{fsys: fsys, dir: dir}
}

// Names lists available template names, sorted.
func (r *Renderer) Names() ([]string, error) {
	entries, err := fs.ReadDir(r.fsys, r.dir)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".tmpl") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".tmpl"))
	}
	sort.Strings(names)
	return names, nil
}

// Exists reports whether the named template can be loaded.
func (r *Renderer) Exists(name string) bool {
	_, err := fs.Stat(r.fsys, r.path(name))
	return err == nil
}

// Render loads the named template and substitutes every {{NAME}} placeholder
// from vars. It fails if the template references a placeholder vars does not
// define.
func (r *Renderer) Render(name string, vars map[string]string) (string, error) {
	data, err := fs.ReadFile(r.fsys, r.path(name))
	if err != nil {
		return "", fmt.Errorf("template %q: %w", name, err)
	}

	var missing []string
	out := placeholderRe.ReplaceAllStringFunc(string(data), func(match string) string {
		key := placeholderRe.FindStringSubmatch(match)[1]
		val, ok := vars[key]
		if !ok {
			missing = append(missing, key)
			return match
		}
		return val
	})

	if len(missing) > 0 {
		sort.Strings(missing)
		return "", fmt.Errorf("template %q: unresolved placeholders: %s", name, strings.Join(missing, ", "))
	}

	return out, nil
}

func (r *Renderer) path(name string) string {
	return r.dir + "/" + name + ".tmpl"
}
