package chunk

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// CodeChunker implements the syntax-tree splitter: one chunk per
// chunkable node, gap-aware merging of everything else, breadcrumb
// tracking through nested scopes, and a line-based split for oversized
// chunks.
type CodeChunker struct {
	parsers   *ParserPool
	extractor *SymbolExtractor
	registry  *LanguageRegistry
}

// NewCodeChunker creates a chunker against the default language registry.
func NewCodeChunker() *CodeChunker {
	return NewCodeChunkerWithRegistry(DefaultRegistry())
}

// NewCodeChunkerWithRegistry creates a chunker against a custom registry.
// The returned CodeChunker is safe for concurrent use: each call to
// Chunk borrows its own parser from a pool instead of sharing one.
func NewCodeChunkerWithRegistry(registry *LanguageRegistry) *CodeChunker {
	return &CodeChunker{
		parsers:   NewParserPool(registry),
		extractor: NewSymbolExtractorWithRegistry(registry),
		registry:  registry,
	}
}

// Close is a no-op; pooled parsers are released individually after use.
func (c *CodeChunker) Close() {}

// SupportedExtensions returns the file extensions this chunker handles
// with the syntax-tree splitter.
func (c *CodeChunker) SupportedExtensions() []string {
	return c.registry.SupportedExtensions()
}

// Chunk splits a file into an ordered sequence of chunks.
func (c *CodeChunker) Chunk(ctx context.Context, file *FileInput) ([]*Chunk, error) {
	if len(file.Content) == 0 {
		return nil, nil
	}

	fileHash := contentHash(file.Content)

	config, supported := c.registry.GetByName(file.Language)
	if !supported {
		return c.chunkFallback(file, fileHash), nil
	}

	parser := c.parsers.Get()
	defer c.parsers.Put(parser)

	tree, err := parser.Parse(ctx, file.Content, file.Language)
	if err != nil || tree == nil || tree.Root == nil {
		return c.chunkFallback(file, fileHash), nil
	}

	raws := c.collectLevel(tree.Root, file.Content, config, file.Language, nil)
	if len(raws) == 0 {
		return nil, nil
	}

	var out []*Chunk
	for _, r := range raws {
		out = append(out, c.materialize(r, file, fileHash)...)
	}

	return finalizeChunks(out, file.RelativePath, fileHash), nil
}

// rawChunk is a chunk candidate before size-based splitting and index
// assignment.
type rawChunk struct {
	span       Span
	breadcrumb []string
	symbol     *Symbol
}

// collectLevel walks a node's subtree, descending transparently
// through non-matching wrapper nodes (class bodies, blocks,
// declaration lists) to find every chunkable and breadcrumb node,
// and fills whatever those leave uncovered with gap chunks.
func (c *CodeChunker) collectLevel(n *Node, source []byte, config *LanguageConfig, language string, breadcrumb []string) []*rawChunk {
	var chunks []*rawChunk
	var claimed []Span

	var walk func(node *Node)
	walk = func(node *Node) {
		for _, child := range node.Children {
			if isBreadcrumbType(config, child.Type) {
				name := c.extractor.extractName(child, source, config, language)
				childBreadcrumb := breadcrumb
				if name != "" {
					childBreadcrumb = appendBreadcrumb(breadcrumb, name)
				}
				chunks = append(chunks, c.collectLevel(child, source, config, language, childBreadcrumb)...)
				claimed = append(claimed, spanOf(child))
				continue
			}

			if symType, ok := classifyChunkable(config, child.Type); ok {
				if sym := c.buildSymbol(child, source, config, language, symType); sym != nil {
					chunks = append(chunks, &rawChunk{
						span:       spanOf(child),
						breadcrumb: nodeBreadcrumb(child, source, language, breadcrumb),
						symbol:     sym,
					})
					claimed = append(claimed, spanOf(child))
					continue
				}
			}

			if sym := c.extractor.extractSpecialSymbol(child, source, language); sym != nil {
				chunks = append(chunks, &rawChunk{
					span:       spanOf(child),
					breadcrumb: append([]string{}, breadcrumb...),
					symbol:     sym,
				})
				claimed = append(claimed, spanOf(child))
				continue
			}

			walk(child)
		}
	}
	walk(n)

	for _, gap := range gapSpans(spanOf(n), claimed, source) {
		chunks = append(chunks, &rawChunk{
			span:       gap,
			breadcrumb: append([]string{}, breadcrumb...),
			symbol: &Symbol{
				Type:      SymbolTypeGap,
				StartLine: byteToLine(source, gap.Start),
				EndLine:   byteToLine(source, gap.End),
			},
		})
	}

	return chunks
}

// buildSymbol extracts the Symbol record for a matched chunkable node.
func (c *CodeChunker) buildSymbol(n *Node, source []byte, config *LanguageConfig, language string, symType SymbolType) *Symbol {
	name := c.extractor.extractName(n, source, config, language)
	if name == "" {
		return nil
	}
	return &Symbol{
		Name:       name,
		Type:       symType,
		StartLine:  int(n.StartPoint.Row) + 1,
		EndLine:    int(n.EndPoint.Row) + 1,
		Signature:  c.extractor.extractSignature(n, source, symType, language),
		DocComment: c.extractor.extractDocComment(n, source, config),
	}
}

// nodeBreadcrumb returns the breadcrumb for a chunkable node. Go
// methods don't lexically nest inside their type's declaration, so
// their breadcrumb is derived from the receiver type instead of the
// enclosing-scope stack (which is always empty for Go).
func nodeBreadcrumb(n *Node, source []byte, language string, outer []string) []string {
	if language == "go" && n.Type == "method_declaration" {
		if recv := goReceiverTypeName(n, source); recv != "" {
			return []string{recv}
		}
	}
	return append([]string{}, outer...)
}

// goReceiverTypeName extracts the receiver type name from a Go method
// declaration, e.g. "func (s *Store) Get(...)" -> "Store".
func goReceiverTypeName(n *Node, source []byte) string {
	for _, child := range n.Children {
		if child.Type != "parameter_list" {
			continue
		}
		var name string
		child.Walk(func(inner *Node) bool {
			if inner.Type == "type_identifier" && name == "" {
				name = inner.GetContent(source)
			}
			return name == ""
		})
		return name
	}
	return ""
}

// materialize turns a rawChunk into one or more Chunks, splitting
// along line boundaries when the display code is oversized.
func (c *CodeChunker) materialize(r *rawChunk, file *FileInput, fileHash string) []*Chunk {
	display := string(file.Content[r.span.Start:r.span.End])

	if len(display) <= MaxChunkChars {
		return []*Chunk{c.buildChunk(r, display, file, fileHash)}
	}

	return c.splitByLines(r, display, file, fileHash)
}

func (c *CodeChunker) buildChunk(r *rawChunk, display string, file *FileInput, fileHash string) *Chunk {
	breadcrumb := strings.Join(r.breadcrumb, " > ")
	vectorText := display
	if breadcrumb != "" {
		vectorText = breadcrumb + "\n" + display
	}

	return &Chunk{
		RelativePath: file.RelativePath,
		FileHash:     fileHash,
		DisplayCode:  display,
		VectorText:   vectorText,
		Breadcrumb:   breadcrumb,
		Language:     file.Language,
		ContentType:  ContentTypeCode,
		RawSpan:      r.span,
		VectorSpan:   r.span,
		StartLine:    r.symbol.StartLine,
		EndLine:      r.symbol.EndLine,
		Symbol:       r.symbol,
	}
}

// splitByLines splits an oversized chunk into fixed-size, overlapping
// line-aligned pieces, preserving breadcrumb and symbol identity.
func (c *CodeChunker) splitByLines(r *rawChunk, display string, file *FileInput, fileHash string) []*Chunk {
	lines := strings.Split(display, "\n")
	if len(lines) == 0 {
		return nil
	}

	linesPerChunk := FallbackChunkLines
	overlapLines := FallbackOverlapLines

	var out []*Chunk
	startLine := r.symbol.StartLine

	for i := 0; i < len(lines); {
		end := i + linesPerChunk
		if end > len(lines) {
			end = len(lines)
		}

		partContent := strings.Join(lines[i:end], "\n")
		partStartByte := r.span.Start + len(strings.Join(lines[:i], "\n"))
		if i > 0 {
			partStartByte++ // account for the joining newline
		}
		partEndByte := partStartByte + len(partContent)

		partSymbol := &Symbol{
			Name:      fmt.Sprintf("%s_part%d", r.symbol.Name, len(out)+1),
			Type:      r.symbol.Type,
			StartLine: startLine + i,
			EndLine:   startLine + end - 1,
		}

		partBreadcrumb := strings.Join(r.breadcrumb, " > ")
		vectorText := partContent
		if partBreadcrumb != "" {
			vectorText = partBreadcrumb + "\n" + partContent
		}

		out = append(out, &Chunk{
			RelativePath: file.RelativePath,
			FileHash:     fileHash,
			DisplayCode:  partContent,
			VectorText:   vectorText,
			Breadcrumb:   partBreadcrumb,
			Language:     file.Language,
			ContentType:  ContentTypeCode,
			RawSpan:      Span{Start: partStartByte, End: partEndByte},
			VectorSpan:   Span{Start: partStartByte, End: partEndByte},
			StartLine:    partSymbol.StartLine,
			EndLine:      partSymbol.EndLine,
			Symbol:       partSymbol,
		})

		i = end - overlapLines
		if i <= 0 || end >= len(lines) {
			break
		}
	}

	return out
}

// chunkFallback implements the fixed-size, line-aligned fallback
// splitter for files in unsupported or unrecognized languages.
func (c *CodeChunker) chunkFallback(file *FileInput, fileHash string) []*Chunk {
	content := string(file.Content)
	if strings.TrimSpace(content) == "" {
		return nil
	}

	lines := strings.Split(content, "\n")

	var out []*Chunk
	pos := 0

	for i := 0; i < len(lines); {
		end := i + FallbackChunkLines
		if end > len(lines) {
			end = len(lines)
		}

		partContent := strings.Join(lines[i:end], "\n")
		startByte := pos
		endByte := startByte + len(partContent)

		out = append(out, &Chunk{
			RelativePath: file.RelativePath,
			FileHash:     fileHash,
			DisplayCode:  partContent,
			VectorText:   partContent,
			Breadcrumb:   "",
			Language:     file.Language,
			ContentType:  ContentTypeText,
			RawSpan:      Span{Start: startByte, End: endByte},
			VectorSpan:   Span{Start: startByte, End: endByte},
			StartLine:    i + 1,
			EndLine:      end,
			Symbol:       &Symbol{Type: SymbolTypeGap, StartLine: i + 1, EndLine: end},
		})

		nextI := end - FallbackOverlapLines
		if nextI <= i || end >= len(lines) {
			break
		}
		pos = startByte + len(strings.Join(lines[i:nextI], "\n")) + 1
		i = nextI
	}

	return finalizeChunks(out, file.RelativePath, fileHash)
}

// finalizeChunks sorts chunks by start byte, assigns contiguous
// 0-based chunk indexes, and derives each chunk_id.
func finalizeChunks(chunks []*Chunk, relativePath, fileHash string) []*Chunk {
	sort.SliceStable(chunks, func(i, j int) bool {
		return chunks[i].RawSpan.Start < chunks[j].RawSpan.Start
	})
	for i, ch := range chunks {
		ch.ChunkIndex = i
		ch.ChunkID = fmt.Sprintf("%s#%s#%d", relativePath, fileHash, i)
	}
	return chunks
}

// classifyChunkable reports whether nodeType is one of config's
// chunkable node kinds, and which SymbolType it maps to.
func classifyChunkable(config *LanguageConfig, nodeType string) (SymbolType, bool) {
	for _, t := range config.FunctionTypes {
		if t == nodeType {
			return SymbolTypeFunction, true
		}
	}
	for _, t := range config.MethodTypes {
		if t == nodeType {
			return SymbolTypeMethod, true
		}
	}
	for _, t := range config.ClassTypes {
		if t == nodeType {
			return SymbolTypeClass, true
		}
	}
	for _, t := range config.InterfaceTypes {
		if t == nodeType {
			return SymbolTypeInterface, true
		}
	}
	for _, t := range config.TypeDefTypes {
		if t == nodeType {
			return SymbolTypeType, true
		}
	}
	for _, t := range config.ConstantTypes {
		if t == nodeType {
			return SymbolTypeConstant, true
		}
	}
	for _, t := range config.VariableTypes {
		if t == nodeType {
			return SymbolTypeVariable, true
		}
	}
	return "", false
}

func isBreadcrumbType(config *LanguageConfig, nodeType string) bool {
	for _, t := range config.BreadcrumbTypes {
		if t == nodeType {
			return true
		}
	}
	return false
}

func appendBreadcrumb(outer []string, name string) []string {
	next := make([]string, 0, len(outer)+1)
	next = append(next, outer...)
	next = append(next, name)
	return next
}

func spanOf(n *Node) Span {
	return Span{Start: int(n.StartByte), End: int(n.EndByte)}
}

// gapSpans computes the byte ranges within parent not covered by any
// claimed span, then splits each uncovered range into fragments at
// runs of more than GapMaxBlankLines consecutive blank lines,
// dropping any fragment that is entirely whitespace.
func gapSpans(parent Span, claimed []Span, source []byte) []Span {
	sort.Slice(claimed, func(i, j int) bool { return claimed[i].Start < claimed[j].Start })

	var uncovered []Span
	pos := parent.Start
	for _, cl := range claimed {
		if cl.Start > pos {
			uncovered = append(uncovered, Span{Start: pos, End: cl.Start})
		}
		if cl.End > pos {
			pos = cl.End
		}
	}
	if pos < parent.End {
		uncovered = append(uncovered, Span{Start: pos, End: parent.End})
	}

	var gaps []Span
	for _, u := range uncovered {
		gaps = append(gaps, splitGapFragment(u, source)...)
	}
	return gaps
}

// splitGapFragment splits one uncovered byte range into trimmed
// sub-fragments wherever more than GapMaxBlankLines consecutive blank
// lines occur, dropping whitespace-only sub-fragments entirely.
func splitGapFragment(u Span, source []byte) []Span {
	text := source[u.Start:u.End]
	lineStarts := []int{0}
	for i, b := range text {
		if b == '\n' {
			lineStarts = append(lineStarts, i+1)
		}
	}
	lineStarts = append(lineStarts, len(text))

	isBlank := func(lineIdx int) bool {
		start, end := lineStarts[lineIdx], lineStarts[lineIdx+1]
		return len(strings.TrimSpace(string(text[start:end]))) == 0
	}

	var fragments []Span
	fragStart := 0
	blankRun := 0
	nLines := len(lineStarts) - 1

	flush := func(endLine int) {
		if endLine <= fragStart {
			return
		}
		byteStart := u.Start + lineStarts[fragStart]
		byteEnd := u.Start + lineStarts[endLine]
		trimmed := strings.TrimSpace(string(source[byteStart:byteEnd]))
		if trimmed != "" {
			fragments = append(fragments, Span{Start: byteStart, End: byteEnd})
		}
	}

	for i := 0; i < nLines; i++ {
		if isBlank(i) {
			blankRun++
			if blankRun > GapMaxBlankLines {
				flush(i - blankRun + 1)
				fragStart = i + 1
				blankRun = 0
			}
		} else {
			blankRun = 0
		}
	}
	flush(nLines)

	return fragments
}

// byteToLine converts a byte offset into a 1-based line number.
func byteToLine(source []byte, offset int) int {
	if offset > len(source) {
		offset = len(source)
	}
	if offset < 0 {
		offset = 0
	}
	line := 1
	for _, b := range source[:offset] {
		if b == '\n' {
			line++
		}
	}
	return line
}

// contentHash computes the stable digest used as both the File
// record's content_hash and a Chunk's file_hash.
func contentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
