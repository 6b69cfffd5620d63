package chunk

import (
	"path/filepath"
	"sync"

	"github.com/gobwas/glob"
)

// filetypeGlob pairs a ripgrep-style glob pattern with the languageTable
// tag it resolves to. Order matters only in that later entries win ties
// on the same filename — mirroring the reference FiletypeMatcher's
// "last match wins" precedence over ripgrep's default type definitions.
type filetypeGlob struct {
	pattern glob.Glob
	tag     string
}

// defaultGlobPatterns is a curated subset of ripgrep's builtin file-type globs,
// limited to the languages turbogrep actually chunks. Ported by name
// from `ignore::types::TypesBuilder::add_defaults()`'s table, which the
// reference implementation borrows wholesale rather than hand-rolling
// its own extension map.
var defaultGlobPatterns = []struct {
	pattern string
	tag     string
}{
	{"*.rs", "rust"},
	{"*.py", "py"},
	{"*.pyi", "py"},
	{"*.js", "js"},
	{"*.jsx", "js"},
	{"*.mjs", "js"},
	{"*.cjs", "js"},
	{"*.ts", "ts"},
	{"*.tsx", "ts"},
	{"*.go", "go"},
	{"*.java", "java"},
	{"*.c", "c"},
	{"*.h", "c"},
	{"*.cpp", "cpp"},
	{"*.cc", "cpp"},
	{"*.cxx", "cpp"},
	{"*.hpp", "cpp"},
	{"*.hh", "cpp"},
	{"*.rb", "ruby"},
	{"*.rake", "ruby"},
	{"Rakefile", "ruby"},
	{"*.sh", "sh"},
	{"*.bash", "bash"},
	{".bashrc", "bash"},
	{".bash_profile", "bash"},
	{"*.md", "md"},
	{"*.markdown", "md"},
	{"*.mkd", "md"},
}

type filetypeMatcher struct {
	globs []filetypeGlob
}

var sharedMatcher = sync.OnceValue(func() *filetypeMatcher {
	m := &filetypeMatcher{}
	for _, p := range defaultGlobPatterns {
		g, err := glob.Compile(p.pattern)
		if err != nil {
			continue
		}
		m.globs = append(m.globs, filetypeGlob{pattern: g, tag: p.tag})
	}
	return m
})

// detectLanguage ports FiletypeMatcher::detect_language: iterate all
// glob matches for the filename and take the last one, matching
// ripgrep's own type-definition precedence.
func (m *filetypeMatcher) detectLanguage(path string) (languageDef, bool) {
	filename := filepath.Base(path)

	var lastTag string
	found := false
	for _, fg := range m.globs {
		if fg.pattern.Match(filename) {
			lastTag = fg.tag
			found = true
		}
	}
	if !found {
		return languageDef{}, false
	}

	def, ok := languageTable[lastTag]
	return def, ok
}

// DetectLanguage resolves path to its chunking language tag, if any.
func DetectLanguage(path string) (string, bool) {
	def, ok := sharedMatcher().detectLanguage(path)
	if !ok {
		return "", false
	}
	return def.name, true
}
