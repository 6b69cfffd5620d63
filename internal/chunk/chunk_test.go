package chunk

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustChunks(t *testing.T, content, path string) []Chunk {
	t.Helper()
	now := time.Unix(1700000000, 0)
	chunks, err := File(context.Background(), []byte(content), path, now, now)
	require.NoError(t, err)
	return chunks
}

func TestFile_UnsupportedExtensionErrors(t *testing.T) {
	now := time.Unix(0, 0)
	_, err := File(context.Background(), []byte("whatever"), "notes.xyz", now, now)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported")
}

func TestFile_SkipsEmptyAndOversizedFiles(t *testing.T) {
	now := time.Unix(0, 0)

	chunks, err := File(context.Background(), []byte{}, "main.go", now, now)
	require.NoError(t, err)
	assert.Nil(t, chunks)

	huge := strings.Repeat("a", maxFileSize+1)
	chunks, err = File(context.Background(), []byte(huge), "main.go", now, now)
	require.NoError(t, err)
	assert.Nil(t, chunks)
}

func TestFile_SkipsInvalidUTF8(t *testing.T) {
	now := time.Unix(0, 0)
	invalid := []byte{0xff, 0xfe, 0xfd}
	chunks, err := File(context.Background(), invalid, "main.go", now, now)
	require.NoError(t, err)
	assert.Nil(t, chunks)
}

func TestFile_GoFunctionChunk(t *testing.T) {
	src := `package main

func add(a, b int) int {
	return a + b
}
`
	chunks := mustChunks(t, src, "add.go")
	require.Len(t, chunks, 1)
	assert.Equal(t, uint32(3), chunks[0].StartLine)
	assert.Equal(t, uint32(5), chunks[0].EndLine)
	require.NotNil(t, chunks[0].Content)
	assert.Contains(t, *chunks[0].Content, "func add")
}

func TestFile_GoFunctionAttachesDocComment(t *testing.T) {
	src := `package main

// add returns the sum of a and b.
func add(a, b int) int {
	return a + b
}
`
	chunks := mustChunks(t, src, "add.go")
	require.Len(t, chunks, 1)
	require.NotNil(t, chunks[0].Content)
	assert.True(t, strings.HasPrefix(*chunks[0].Content, "// add returns"))
	// line range stays anchored to the function node, not the comment.
	assert.Equal(t, uint32(4), chunks[0].StartLine)
}

func TestFile_GoFunctionAttachesContiguousCommentBlock(t *testing.T) {
	src := `package main

// add returns the sum of a and b.
//
// It does not check for overflow.
func add(a, b int) int {
	return a + b
}
`
	chunks := mustChunks(t, src, "add.go")
	require.Len(t, chunks, 1)
	require.NotNil(t, chunks[0].Content)
	assert.Contains(t, *chunks[0].Content, "It does not check for overflow")
	assert.Contains(t, *chunks[0].Content, "add returns the sum")
}

func TestFile_GoFunctionIgnoresDistantComment(t *testing.T) {
	src := `package main

// unrelated top-of-file note.


// this gap is three blank lines, too far from add.



func add(a, b int) int {
	return a + b
}
`
	chunks := mustChunks(t, src, "add.go")
	require.Len(t, chunks, 1)
	require.NotNil(t, chunks[0].Content)
	assert.False(t, strings.Contains(*chunks[0].Content, "unrelated top-of-file"))
}

func TestFile_IDChangesWithContentChange(t *testing.T) {
	src1 := "package main\n\nfunc add(a, b int) int {\n\treturn a + b\n}\n"
	src2 := "package main\n\nfunc add(a, b int) int {\n\treturn a - b\n}\n"

	c1 := mustChunks(t, src1, "add.go")
	c2 := mustChunks(t, src2, "add.go")

	require.Len(t, c1, 1)
	require.Len(t, c2, 1)
	assert.NotEqual(t, c1[0].ID, c2[0].ID)
}

func TestFile_IDStableAcrossRuns(t *testing.T) {
	src := "package main\n\nfunc add(a, b int) int {\n\treturn a + b\n}\n"
	c1 := mustChunks(t, src, "add.go")
	c2 := mustChunks(t, src, "add.go")
	require.Len(t, c1, 1)
	require.Len(t, c2, 1)
	assert.Equal(t, c1[0].ID, c2[0].ID)
}

func TestFile_PythonFunctionChunk(t *testing.T) {
	src := "def add(a, b):\n    return a + b\n"
	chunks := mustChunks(t, src, "add.py")
	require.Len(t, chunks, 1)
	require.NotNil(t, chunks[0].Content)
	assert.Contains(t, *chunks[0].Content, "def add")
}

func TestFile_RustCapturesFunctionsStructsImpls(t *testing.T) {
	src := `struct Point { x: i32, y: i32 }

impl Point {
    fn new() -> Self {
        Point { x: 0, y: 0 }
    }
}

fn main() {}
`
	chunks := mustChunks(t, src, "lib.rs")
	assert.GreaterOrEqual(t, len(chunks), 3)
}

func TestFile_RubyMethodAndSingletonMethod(t *testing.T) {
	src := `class Thing
  def self.build
    Thing.new
  end

  def run
    true
  end
end
`
	chunks := mustChunks(t, src, "thing.rb")
	assert.Len(t, chunks, 2)
}

func TestFile_MarkdownParagraphGetsNearestHeading(t *testing.T) {
	src := `# Title

Intro paragraph.

## Section

Body paragraph under section.
`
	chunks := mustChunks(t, src, "README.md")

	var bodyChunk *Chunk
	for i := range chunks {
		if chunks[i].Content != nil && strings.Contains(*chunks[i].Content, "Body paragraph") {
			bodyChunk = &chunks[i]
		}
	}
	require.NotNil(t, bodyChunk)
	assert.Contains(t, *bodyChunk.Content, "## Section")
	assert.NotContains(t, *bodyChunk.Content, "# Title\n")
}

func TestFile_MarkdownParagraphInsideListIsDiscarded(t *testing.T) {
	src := `# Title

- one
- two, with enough words to form its own paragraph node
`
	chunks := mustChunks(t, src, "README.md")

	for _, c := range chunks {
		if c.Content == nil {
			continue
		}
		assert.NotContains(t, *c.Content, "with enough words")
	}
}

func TestHashFile_IsMetadataOnlyPerFile(t *testing.T) {
	now := time.Unix(1700000000, 0)
	content := []byte("package main\n\nfunc add(a, b int) int { return a + b }\n")

	c := HashFile(content, "add.go", now, now)

	assert.Equal(t, hash64(content), c.ID)
	assert.Equal(t, hash64(content), c.FileHash)
	assert.Equal(t, hash64(content), c.ChunkHash)
	assert.Equal(t, uint32(1), c.StartLine)
	assert.Equal(t, uint32(1), c.EndLine)
	assert.Nil(t, c.Content)
}

func TestDetectLanguage(t *testing.T) {
	cases := map[string]string{
		"main.go":    "go",
		"lib.rs":     "rust",
		"app.py":     "python",
		"index.ts":   "ts",
		"index.tsx":  "ts",
		"script.sh":  "bash",
		"Rakefile":   "ruby",
		"README.md":  "markdown",
		"unknown.xy": "",
	}
	for path, want := range cases {
		got, ok := DetectLanguage(path)
		if want == "" {
			assert.False(t, ok, path)
			continue
		}
		assert.True(t, ok, path)
		assert.Equal(t, want, got, path)
	}
}
