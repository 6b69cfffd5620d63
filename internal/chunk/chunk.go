package chunk

import (
	"bytes"
	"context"
	"time"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/turbopuffer/turbogrep/internal/turboerr"
)

const (
	minFileSize = 1
	maxFileSize = 1_000_000
)

// commentKinds mirrors the node kinds treated as attachable comments in
// extract_function_with_comments, across every grammar turbogrep chunks.
var commentKinds = map[string]bool{
	"comment":               true,
	"line_comment":          true,
	"block_comment":         true,
	"doc_comment":           true,
	"documentation_comment": true,
}

// File chunks content per the capture table for path's detected
// language, attaching preceding comments (or, for markdown, the
// nearest heading). Returns (nil, nil) for files the pre-filter skips:
// empty, oversized, or non-UTF-8 — these are not errors, just not
// indexable.
func File(ctx context.Context, content []byte, path string, mtime, ctime time.Time) ([]Chunk, error) {
	size := len(content)
	if size < minFileSize || size > maxFileSize {
		return nil, nil
	}
	if !utf8.Valid(content) {
		return nil, nil
	}

	def, ok := sharedMatcher().detectLanguage(path)
	if !ok {
		return nil, turboerr.UnsupportedExtension(path)
	}

	lang := def.language()
	parser := sitter.NewParser()
	parser.SetLanguage(lang)
	defer parser.Close()

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil || tree == nil {
		return nil, turboerr.ParseFailed("failed to parse content")
	}
	defer tree.Close()

	fileHash := hash64(content)
	fileMtime := uint64(mtime.Unix())
	fileCtime := uint64(ctime.Unix())

	var captures []*sitter.Node
	collectCaptures(tree.RootNode(), def.captureKinds, &captures)

	chunks := make([]Chunk, 0, len(captures))
	for _, node := range captures {
		var body []byte
		if def.isMarkdown && (node.Type() == "paragraph" || node.Type() == "list") {
			b, ok := extractParagraphWithHeading(node, content)
			if !ok {
				continue
			}
			body = b
		} else {
			body = extractFunctionWithComments(tree, node, content)
		}

		startPos := node.StartPoint()
		endPos := node.EndPoint()
		chunkHash := hash64(body)
		id := computeID(path, startPos.Row, endPos.Row, fileHash, chunkHash)

		bodyStr := string(body)
		chunks = append(chunks, Chunk{
			ID:        id,
			Path:      path,
			StartLine: startPos.Row + 1,
			EndLine:   endPos.Row + 1,
			FileHash:  fileHash,
			ChunkHash: chunkHash,
			FileMtime: fileMtime,
			FileCtime: fileCtime,
			Content:   &bodyStr,
		})
	}

	return chunks, nil
}

// HashFile produces a single metadata-only chunk for path (id ==
// file_hash, no parsing required) — a cheap file-level fingerprint, not
// part of the synchronizer's diff, which needs real per-chunk IDs.
func HashFile(content []byte, path string, mtime, ctime time.Time) Chunk {
	fileHash := hash64(content)
	return Chunk{
		ID:        fileHash,
		Path:      path,
		StartLine: 1,
		EndLine:   1,
		FileHash:  fileHash,
		ChunkHash: fileHash,
		FileMtime: uint64(mtime.Unix()),
		FileCtime: uint64(ctime.Unix()),
	}
}

// collectCaptures performs the tree walk standing in for a tree-sitter
// Query over "(kind) @capture" for each kind in kinds: every node whose
// own type matches is collected, and its subtree is still searched, as
// a query would, so nested captures (a function_item inside an
// impl_item, a paragraph inside a list) are collected too.
func collectCaptures(node *sitter.Node, kinds []string, out *[]*sitter.Node) {
	t := node.Type()
	for _, k := range kinds {
		if t == k {
			*out = append(*out, node)
			break
		}
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		collectCaptures(node.Child(i), kinds, out)
	}
}

// extractFunctionWithComments ports extract_function_with_comments:
// walk backward over functionNode's siblings (within its parent),
// attaching the first near comment (function_start_line <=
// comment_end_line+2) and any further comments contiguous with it
// (last_comment_line <= comment_end_line+2), stopping at the first
// non-comment or gap once at least one comment has been attached.
func extractFunctionWithComments(tree *sitter.Tree, functionNode *sitter.Node, source []byte) []byte {
	functionStartByte := functionNode.StartByte()
	functionEndByte := functionNode.EndByte()
	functionStartLine := functionNode.StartPoint().Row

	commentStartByte := functionStartByte

	parent := functionNode.Parent()
	if parent == nil {
		parent = tree.RootNode()
	}

	type sibling struct {
		node      *sitter.Node
		startByte uint32
	}
	var siblings []sibling
	for i := 0; i < int(parent.ChildCount()); i++ {
		child := parent.Child(i)
		siblings = append(siblings, sibling{node: child, startByte: child.StartByte()})
	}

	funcPos := -1
	for i, s := range siblings {
		if s.node.Equal(functionNode) {
			funcPos = i
			break
		}
	}

	if funcPos >= 0 {
		foundCommentNearFunction := false
		lastCommentLine := functionStartLine

		for i := funcPos - 1; i >= 0; i-- {
			node := siblings[i].node
			startByte := siblings[i].startByte

			if commentKinds[node.Type()] {
				commentStartLine := node.StartPoint().Row
				commentEndLine := node.EndPoint().Row

				if !foundCommentNearFunction && functionStartLine <= commentEndLine+2 {
					foundCommentNearFunction = true
					commentStartByte = startByte
					lastCommentLine = commentStartLine
					continue
				}

				if foundCommentNearFunction && lastCommentLine <= commentEndLine+2 {
					commentStartByte = startByte
					lastCommentLine = commentStartLine
					continue
				}
			}

			if foundCommentNearFunction {
				break
			}
		}
	}

	return source[commentStartByte:functionEndByte]
}

// extractParagraphWithHeading ports extract_paragraph_with_heading:
// discard any paragraph nested under a list ancestor, otherwise prefix
// it with the text of the nearest preceding atx_heading/setext_heading
// found by walking the ancestor chain outward.
func extractParagraphWithHeading(paragraphNode *sitter.Node, source []byte) ([]byte, bool) {
	paragraphStartByte := paragraphNode.StartByte()
	paragraphEndByte := paragraphNode.EndByte()
	paragraphStartLine := paragraphNode.StartPoint().Row

	var searchContexts []*sitter.Node
	current := paragraphNode
	for {
		parent := current.Parent()
		if parent == nil {
			break
		}
		searchContexts = append(searchContexts, parent)
		current = parent

		if parent.Type() == "list" {
			return nil, false
		}
		if parent.Type() == "document" {
			break
		}
	}

	var bestHeading *sitter.Node
	closestDistance := ^uint32(0)

	for _, context := range searchContexts {
		for i := 0; i < int(context.ChildCount()); i++ {
			node := context.Child(i)
			if node.Type() == "atx_heading" || node.Type() == "setext_heading" {
				headingLine := node.StartPoint().Row
				if headingLine < paragraphStartLine {
					distance := paragraphStartLine - headingLine
					if distance < closestDistance {
						bestHeading = node
						closestDistance = distance
					}
				}
			}
		}
		if bestHeading != nil {
			break
		}
	}

	if bestHeading != nil {
		headingStartByte := bestHeading.StartByte()
		headingEndByte := bestHeading.EndByte()
		combined := bytes.Join([][]byte{
			source[headingStartByte:headingEndByte],
			source[paragraphStartByte:paragraphEndByte],
		}, []byte("\n"))
		return combined, true
	}

	return source[paragraphStartByte:paragraphEndByte], true
}
