package chunk

import "context"

// Size and split defaults, named after the constants in spec.md §4.2.
const (
	// MaxChunkChars is the display_code length above which a chunk is
	// split further along line boundaries.
	MaxChunkChars = 512 * TokensPerChar

	// MinChunkTokens is the smallest viable chunk, used to avoid
	// pathological one-line splits.
	MinChunkTokens = 100

	// TokensPerChar approximates characters per token for size estimates.
	TokensPerChar = 4

	// FallbackChunkLines is the target size of a fallback (line-based)
	// chunk for unsupported languages.
	FallbackChunkLines = 128

	// FallbackOverlapLines is the overlap between consecutive fallback
	// chunks.
	FallbackOverlapLines = 16

	// GapMaxBlankLines is the maximum number of blank lines allowed
	// between two gap fragments before they are treated as separate
	// gap chunks instead of being coalesced into one.
	GapMaxBlankLines = 1
)

// ContentType tags what kind of content a chunk holds.
type ContentType string

const (
	ContentTypeCode ContentType = "code"
	ContentTypeText ContentType = "text"
)

// Span is a half-open byte range into the source file.
type Span struct {
	Start int
	End   int
}

// Chunk is a retrievable unit of content, the "Chunk" of spec.md §3.
type Chunk struct {
	ChunkID      string // {relative_path}#{content_hash}#{chunk_index}
	RelativePath string
	FileHash     string // content_hash of the file version this chunk belongs to
	ChunkIndex   int    // 0-based order within the file

	DisplayCode string // human-readable source slice, unchanged text
	VectorText  string // breadcrumb + "\n" + display_code (just display_code when breadcrumb is empty)

	Breadcrumb string // "ClassA > methodB", empty if top-level

	Language    string
	ContentType ContentType

	RawSpan    Span // byte range of display_code in the original file
	VectorSpan Span // always equal to RawSpan; the breadcrumb prefix has no file bytes

	StartLine int // 1-based inclusive
	EndLine   int // 1-based inclusive

	Symbol *Symbol // the symbol this chunk was created from, if any

	Vector []float32 // populated by the Indexer after embedding
}

// FileInput is the input to a Chunker.
type FileInput struct {
	RelativePath string
	Content      []byte
	Language     string // language tag derived from extension; "unknown" if unrecognized
}

// Chunker splits a file into an ordered sequence of chunks.
type Chunker interface {
	Chunk(ctx context.Context, file *FileInput) ([]*Chunk, error)
	SupportedExtensions() []string
}

// SymbolType is the kind of code symbol a chunk was built from.
type SymbolType string

const (
	SymbolTypeFunction  SymbolType = "function"
	SymbolTypeClass     SymbolType = "class"
	SymbolTypeInterface SymbolType = "interface"
	SymbolTypeType      SymbolType = "type"
	SymbolTypeVariable  SymbolType = "variable"
	SymbolTypeConstant  SymbolType = "constant"
	SymbolTypeMethod    SymbolType = "method"
	SymbolTypeGap       SymbolType = "gap" // synthetic, gap-aware merged chunk
)

// Symbol describes a code symbol extracted from a parsed syntax tree.
type Symbol struct {
	Name       string
	Type       SymbolType
	StartLine  int
	EndLine    int
	Signature  string
	DocComment string
}

// Tree is a parsed syntax tree, decoupled from the underlying
// tree-sitter binding so the rest of the package never imports it
// directly.
type Tree struct {
	Root     *Node
	Source   []byte
	Language string
}

// Node is a lightweight syntax-tree node.
type Node struct {
	Type       string
	StartByte  uint32
	EndByte    uint32
	StartPoint Point
	EndPoint   Point
	Children   []*Node
	HasError   bool
}

// Point is a row/column position in the source.
type Point struct {
	Row    uint32
	Column uint32
}

// LanguageConfig is the declarative, tagged-variant strategy record for
// one language: which node kinds are chunkable, and which open a
// breadcrumb scope. This is the extension point spec.md §9 calls for
// ("dynamic dispatch over chunkers... use a tagged variant keyed by
// language, with a small per-language strategy record").
type LanguageConfig struct {
	Name       string
	Extensions []string

	FunctionTypes  []string
	ClassTypes     []string
	InterfaceTypes []string
	MethodTypes    []string
	TypeDefTypes   []string
	ConstantTypes  []string
	VariableTypes  []string

	// BreadcrumbTypes lists node kinds that open a named lexical scope
	// (class/struct/interface/module/namespace). A chunk created while
	// inside one or more of these carries their names, joined by " > ",
	// as its breadcrumb.
	BreadcrumbTypes []string

	// LineCommentPrefix is used to scan backward for a doc comment.
	LineCommentPrefix string

	// NameField is the tree-sitter field name used to find a chunkable
	// node's identifier child (e.g. "name", or "declarator" for C/C++
	// declarations that nest the identifier inside a declarator node).
	NameField string
}
