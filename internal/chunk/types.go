// Package chunk implements turbogrep's concrete-syntax chunker: it
// detects a file's language from its name, parses it with tree-sitter,
// captures function/struct/paragraph-level nodes per a per-language
// node-kind table, attaches preceding comments (or, for markdown, the
// nearest heading), and produces content-addressed Chunk records.
package chunk

// Chunk is the unit turbogrep indexes, searches and syncs. ID is
// content-addressed: it changes whenever the file's content, the
// chunk's own content, or its line range changes, which collapses
// incremental sync to a pure set-difference over IDs.
type Chunk struct {
	ID        uint64
	Vector    []float32
	Path      string
	StartLine uint32
	EndLine   uint32
	FileHash  uint64
	ChunkHash uint64
	FileMtime uint64
	FileCtime uint64
	Content   *string
	Distance  *float64
}
