package chunk

import "sync"

// ParserPool amortizes tree-sitter parser construction across many
// files processed by concurrent scan workers. Each *Parser wraps a
// sitter.Parser, which is not safe for concurrent use, so workers
// borrow and return one each, rather than sharing a single instance.
type ParserPool struct {
	pool     sync.Pool
	registry *LanguageRegistry
}

// NewParserPool creates a pool backed by the given registry.
func NewParserPool(registry *LanguageRegistry) *ParserPool {
	p := &ParserPool{registry: registry}
	p.pool.New = func() any {
		return NewParserWithRegistry(p.registry)
	}
	return p
}

// Get borrows a parser, creating one if the pool is empty.
func (p *ParserPool) Get() *Parser {
	return p.pool.Get().(*Parser)
}

// Put returns a parser to the pool for reuse.
func (p *ParserPool) Put(parser *Parser) {
	p.pool.Put(parser)
}
