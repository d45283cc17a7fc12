package pathutil

import (
	"path/filepath"
	"regexp"
	"strings"
)

// Relation describes where a path sits relative to a project root.
type Relation int

const (
	// Unrelated paths share no ancestry with the project (siblings included).
	Unrelated Relation = iota
	// Parent paths are strict ancestors of the project.
	Parent
	// Child paths are strict descendants of the project.
	Child
	// Same paths equal the project.
	Same
)

func (r Relation) String() string {
	switch r {
	case Same:
		return "same"
	case Child:
		return "child"
	case Parent:
		return "parent"
	default:
		return "unrelated"
	}
}

// Relate classifies candidate against project. Both paths must already be
// canonical; Relate does no filesystem access. Component boundaries are
// respected, so /code/ab is unrelated to /code/a.
func Relate(project, candidate string) Relation {
	if project == "" || candidate == "" {
		return Unrelated
	}
	project = filepath.Clean(project)
	candidate = filepath.Clean(candidate)

	if project == candidate {
		return Same
	}
	if isUnder(candidate, project) {
		return Child
	}
	if isUnder(project, candidate) {
		return Parent
	}
	return Unrelated
}

func isUnder(path, root string) bool {
	if root == string(filepath.Separator) {
		return path != root && strings.HasPrefix(path, root)
	}
	return strings.HasPrefix(path, root+string(filepath.Separator))
}

var slugInvalid = regexp.MustCompile(`[^a-z0-9]+`)

// Slug returns the canonical short name of a project directory: the
// lowercased base name with runs of other characters collapsed to '-'.
// tmux session names are compared against it.
func Slug(path string) string {
	base := filepath.Base(filepath.Clean(path))
	if base == "." || base == string(filepath.Separator) {
		return ""
	}
	slug := slugInvalid.ReplaceAllString(strings.ToLower(base), "-")
	return strings.Trim(slug, "-")
}
