package anisystemd

import (
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pkg/errors"
)

// ArtifactSuffix pairs a logical artifact kind with a shared library
// extension. A file named "<anything>_<Kind>.<Ext>" is an artifact.
type ArtifactSuffix struct {
	Kind string
	Ext  string
}

// Pattern returns the glob matching base names that carry this suffix.
func (s ArtifactSuffix) Pattern() string {
	return "*_" + s.Kind + "." + s.Ext
}

// DefaultArtifactKinds lists the artifact kinds recognized by default.
var DefaultArtifactKinds = []string{"plugin", "service"}

// DefaultArtifactExtensions lists the platform shared library extensions
// recognized by default.
var DefaultArtifactExtensions = []string{"so", "dll", "dylib"}

// DefaultArtifactSuffixes returns every pairing of DefaultArtifactKinds and
// DefaultArtifactExtensions.
func DefaultArtifactSuffixes() []ArtifactSuffix {
	suffixes := make([]ArtifactSuffix, 0, len(DefaultArtifactKinds)*len(DefaultArtifactExtensions))
	for _, kind := range DefaultArtifactKinds {
		for _, ext := range DefaultArtifactExtensions {
			suffixes = append(suffixes, ArtifactSuffix{Kind: kind, Ext: ext})
		}
	}
	return suffixes
}

// ArtifactFilter decides whether a path names a plugin or service artifact.
// Only the base name is considered. A zero-value filter matches nothing.
type ArtifactFilter struct {
	patterns []string
}

// NewArtifactFilter creates a filter for the default suffixes plus any extra
// glob patterns. Extra patterns are matched against the base name and use
// doublestar syntax; an invalid pattern is an error.
func NewArtifactFilter(extra ...string) (*ArtifactFilter, error) {
	return NewArtifactFilterSuffixes(DefaultArtifactSuffixes(), extra...)
}

// NewArtifactFilterSuffixes is like NewArtifactFilter, but with a custom
// suffix set.
func NewArtifactFilterSuffixes(suffixes []ArtifactSuffix, extra ...string) (*ArtifactFilter, error) {
	patterns := make([]string, 0, len(suffixes)+len(extra))
	for _, suffix := range suffixes {
		patterns = append(patterns, suffix.Pattern())
	}

	for _, pattern := range append(patterns, extra...) {
		if !doublestar.ValidatePattern(pattern) {
			return nil, errors.Errorf("invalid artifact pattern %q", pattern)
		}
	}

	return &ArtifactFilter{
		patterns: append(patterns, extra...),
	}, nil
}

// Patterns returns the globs the filter matches with.
func (f *ArtifactFilter) Patterns() []string {
	return append([]string(nil), f.patterns...)
}

// Match returns true if the base name of path matches any artifact pattern.
func (f *ArtifactFilter) Match(path string) bool {
	name := filepath.Base(path)
	if name == "." || name == string(filepath.Separator) {
		return false
	}

	for _, pattern := range f.patterns {
		if ok, _ := doublestar.Match(pattern, name); ok {
			return true
		}
	}

	return false
}

// MatchAny returns the paths that Match accepts.
func (f *ArtifactFilter) MatchAny(paths []string) []string {
	var matched []string
	for _, path := range paths {
		if f.Match(path) {
			matched = append(matched, path)
		}
	}
	return matched
}
