package chunk

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/bash"
	sitterc "github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	tree_sitter_markdown "github.com/smacker/go-tree-sitter/markdown/tree-sitter-markdown"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/ruby"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// languageDef mirrors one arm of the reference FiletypeMatcher's
// detect_language match: a name, a tree-sitter grammar, and the node
// kinds captured as chunks for that language.
type languageDef struct {
	name          string
	language      func() *sitter.Language
	captureKinds  []string
	isMarkdown    bool
}

// languageTable maps the filetype tags that matcher.go's filename globs
// resolve to onto a languageDef. File contents (e.g. a shebang line) are
// never consulted.
var languageTable = map[string]languageDef{
	"rust": {
		name:         "rust",
		language:     rust.GetLanguage,
		captureKinds: []string{"function_item", "struct_item", "impl_item"},
	},
	"py": {
		name:         "python",
		language:     python.GetLanguage,
		captureKinds: []string{"function_definition"},
	},
	"python": {
		name:         "python",
		language:     python.GetLanguage,
		captureKinds: []string{"function_definition"},
	},
	"js": {
		name:         "js",
		language:     javascript.GetLanguage,
		captureKinds: []string{"function_declaration", "function_expression"},
	},
	"ts": {
		name:         "ts",
		language:     tsx.GetLanguage,
		captureKinds: []string{"function_declaration", "function_expression"},
	},
	"typescript": {
		name:         "ts",
		language:     typescript.GetLanguage,
		captureKinds: []string{"function_declaration", "function_expression"},
	},
	"go": {
		name:         "go",
		language:     golang.GetLanguage,
		captureKinds: []string{"function_declaration", "method_declaration"},
	},
	"java": {
		name:         "java",
		language:     java.GetLanguage,
		captureKinds: []string{"method_declaration"},
	},
	"c": {
		name:         "c",
		language:     sitterc.GetLanguage,
		captureKinds: []string{"function_definition"},
	},
	"cpp": {
		name:         "cpp",
		language:     cpp.GetLanguage,
		captureKinds: []string{"function_definition"},
	},
	"ruby": {
		name:         "ruby",
		language:     ruby.GetLanguage,
		captureKinds: []string{"method", "singleton_method"},
	},
	"bash": {
		name:         "bash",
		language:     bash.GetLanguage,
		captureKinds: []string{"function_definition"},
	},
	"sh": {
		name:         "bash",
		language:     bash.GetLanguage,
		captureKinds: []string{"function_definition"},
	},
	"md": {
		name:         "markdown",
		language:     tree_sitter_markdown.GetLanguage,
		captureKinds: []string{"fenced_code_block", "list", "paragraph"},
		isMarkdown:   true,
	},
	"markdown": {
		name:         "markdown",
		language:     tree_sitter_markdown.GetLanguage,
		captureKinds: []string{"fenced_code_block", "list", "paragraph"},
		isMarkdown:   true,
	},
}
