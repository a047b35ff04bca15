package chunk

import (
	"strings"
)

// bodyNodeTypes are node kinds that hold a declaration's body. Name
// search stops descending into these so it never picks up an
// identifier used inside the body instead of the declaration itself.
var bodyNodeTypes = map[string]bool{
	"compound_statement":     true,
	"block":                  true,
	"field_declaration_list": true,
	"enumerator_list":        true,
	"declaration_list":       true,
}

// SymbolExtractor extracts symbols from a parsed syntax tree.
type SymbolExtractor struct {
	registry *LanguageRegistry
}

// NewSymbolExtractor creates an extractor using the default registry.
func NewSymbolExtractor() *SymbolExtractor {
	return &SymbolExtractor{registry: DefaultRegistry()}
}

// NewSymbolExtractorWithRegistry creates an extractor with a custom registry.
func NewSymbolExtractorWithRegistry(registry *LanguageRegistry) *SymbolExtractor {
	return &SymbolExtractor{registry: registry}
}

// Extract walks the tree and returns every symbol it finds, in
// document order.
func (e *SymbolExtractor) Extract(tree *Tree, source []byte) []*Symbol {
	if tree == nil || tree.Root == nil {
		return []*Symbol{}
	}

	config, ok := e.registry.GetByName(tree.Language)
	if !ok {
		return []*Symbol{}
	}

	var symbols []*Symbol

	tree.Root.Walk(func(n *Node) bool {
		symbol := e.extractSymbolFromNode(n, source, config, tree.Language)
		if symbol != nil {
			symbols = append(symbols, symbol)
		}
		return true
	})

	return symbols
}

func (e *SymbolExtractor) extractSymbolFromNode(n *Node, source []byte, config *LanguageConfig, language string) *Symbol {
	var symbolType SymbolType
	var found bool

	for _, ft := range config.FunctionTypes {
		if n.Type == ft {
			symbolType, found = SymbolTypeFunction, true
			break
		}
	}
	if !found {
		for _, mt := range config.MethodTypes {
			if n.Type == mt {
				symbolType, found = SymbolTypeMethod, true
				break
			}
		}
	}
	if !found {
		for _, ct := range config.ClassTypes {
			if n.Type == ct {
				symbolType, found = SymbolTypeClass, true
				break
			}
		}
	}
	if !found {
		for _, it := range config.InterfaceTypes {
			if n.Type == it {
				symbolType, found = SymbolTypeInterface, true
				break
			}
		}
	}
	if !found {
		for _, tt := range config.TypeDefTypes {
			if n.Type == tt {
				symbolType, found = SymbolTypeType, true
				break
			}
		}
	}
	if !found {
		for _, ct := range config.ConstantTypes {
			if n.Type == ct {
				symbolType, found = SymbolTypeConstant, true
				break
			}
		}
	}
	if !found {
		for _, vt := range config.VariableTypes {
			if n.Type == vt {
				symbolType, found = SymbolTypeVariable, true
				break
			}
		}
	}

	if !found {
		return e.extractSpecialSymbol(n, source, language)
	}

	name := e.extractName(n, source, config, language)
	if name == "" {
		return nil
	}

	docComment := e.extractDocComment(n, source, config)
	signature := e.extractSignature(n, source, symbolType, language)

	return &Symbol{
		Name:       name,
		Type:       symbolType,
		StartLine:  int(n.StartPoint.Row) + 1,
		EndLine:    int(n.EndPoint.Row) + 1,
		Signature:  signature,
		DocComment: docComment,
	}
}

// extractName extracts the identifier for a symbol-defining node.
func (e *SymbolExtractor) extractName(n *Node, source []byte, config *LanguageConfig, language string) string {
	switch language {
	case "go":
		return e.extractGoName(n, source)
	case "typescript", "tsx":
		return e.extractTypeScriptName(n, source)
	case "javascript", "jsx":
		return e.extractJavaScriptName(n, source)
	case "python":
		return e.extractPythonName(n, source)
	case "java", "rust", "c", "cpp", "csharp":
		return e.extractCLikeName(n, source)
	default:
		for _, child := range n.Children {
			if child.Type == "identifier" {
				return child.GetContent(source)
			}
		}
	}
	return ""
}

func (e *SymbolExtractor) extractGoName(n *Node, source []byte) string {
	switch n.Type {
	case "function_declaration":
		for _, child := range n.Children {
			if child.Type == "identifier" {
				return child.GetContent(source)
			}
		}
	case "method_declaration":
		for _, child := range n.Children {
			if child.Type == "field_identifier" {
				return child.GetContent(source)
			}
		}
	case "type_declaration":
		for _, child := range n.Children {
			if child.Type == "type_spec" {
				for _, grandchild := range child.Children {
					if grandchild.Type == "type_identifier" {
						return grandchild.GetContent(source)
					}
				}
			}
		}
	case "const_declaration":
		for _, child := range n.Children {
			if child.Type == "const_spec" {
				for _, grandchild := range child.Children {
					if grandchild.Type == "identifier" {
						return grandchild.GetContent(source)
					}
				}
			}
		}
	case "var_declaration":
		for _, child := range n.Children {
			if child.Type == "var_spec" {
				for _, grandchild := range child.Children {
					if grandchild.Type == "identifier" {
						return grandchild.GetContent(source)
					}
				}
			}
		}
	}
	return ""
}

func (e *SymbolExtractor) extractTypeScriptName(n *Node, source []byte) string {
	if n.Type == "lexical_declaration" || n.Type == "variable_declaration" {
		for _, child := range n.Children {
			if child.Type == "variable_declarator" {
				for _, grandchild := range child.Children {
					if grandchild.Type == "identifier" {
						return grandchild.GetContent(source)
					}
				}
			}
		}
	}

	for _, child := range n.Children {
		if child.Type == "identifier" || child.Type == "type_identifier" {
			return child.GetContent(source)
		}
	}
	return ""
}

func (e *SymbolExtractor) extractJavaScriptName(n *Node, source []byte) string {
	if n.Type == "lexical_declaration" || n.Type == "variable_declaration" {
		for _, child := range n.Children {
			if child.Type == "variable_declarator" {
				for _, grandchild := range child.Children {
					if grandchild.Type == "identifier" {
						return grandchild.GetContent(source)
					}
				}
			}
		}
	}

	for _, child := range n.Children {
		if child.Type == "identifier" {
			return child.GetContent(source)
		}
	}
	return ""
}

func (e *SymbolExtractor) extractPythonName(n *Node, source []byte) string {
	for _, child := range n.Children {
		if child.Type == "identifier" {
			return child.GetContent(source)
		}
	}
	return ""
}

// extractCLikeName finds the declaration's identifier by a pre-order
// search of the node's subtree, without descending into the body.
// This covers java/rust/c/cpp/csharp: each nests its name differently
// (directly, inside a declarator chain, inside an impl block) but all
// place it before the body in child order.
func (e *SymbolExtractor) extractCLikeName(n *Node, source []byte) string {
	for _, child := range n.Children {
		switch child.Type {
		case "identifier", "field_identifier", "type_identifier":
			return child.GetContent(source)
		}
		if bodyNodeTypes[child.Type] {
			continue
		}
		if name := e.extractCLikeName(child, source); name != "" {
			return name
		}
	}
	return ""
}

// extractSpecialSymbol handles symbol shapes that don't match any of a
// language's declared node-type lists, such as `const f = () => {}`.
func (e *SymbolExtractor) extractSpecialSymbol(n *Node, source []byte, language string) *Symbol {
	switch language {
	case "typescript", "tsx", "javascript", "jsx":
		if n.Type == "lexical_declaration" || n.Type == "variable_declaration" {
			return e.extractJSVariableFunctionSymbol(n, source)
		}
	}
	return nil
}

func (e *SymbolExtractor) extractJSVariableFunctionSymbol(n *Node, source []byte) *Symbol {
	for _, child := range n.Children {
		if child.Type == "variable_declarator" {
			var name string
			var hasFunction bool

			for _, grandchild := range child.Children {
				if grandchild.Type == "identifier" {
					name = grandchild.GetContent(source)
				}
				if grandchild.Type == "arrow_function" || grandchild.Type == "function" || grandchild.Type == "function_expression" {
					hasFunction = true
				}
			}

			if name != "" && hasFunction {
				content := n.GetContent(source)
				signature := e.extractFunctionSignature(content, "javascript")

				return &Symbol{
					Name:      name,
					Type:      SymbolTypeFunction,
					StartLine: int(n.StartPoint.Row) + 1,
					EndLine:   int(n.EndPoint.Row) + 1,
					Signature: signature,
				}
			}
		}
	}
	return nil
}

// extractDocComment scans the line immediately preceding a symbol for
// a line comment, using the language's configured comment prefix.
func (e *SymbolExtractor) extractDocComment(n *Node, source []byte, config *LanguageConfig) string {
	if config.LineCommentPrefix == "" || n.StartPoint.Row == 0 {
		return ""
	}
	// Docstring languages (Python) keep documentation inside the body,
	// not on a preceding comment line.
	if config.Name == "python" {
		return ""
	}

	lineStart := int(n.StartByte)
	for lineStart > 0 && source[lineStart-1] != '\n' {
		lineStart--
	}
	if lineStart <= 1 {
		return ""
	}

	prevLineEnd := lineStart - 1
	prevLineStart := prevLineEnd
	for prevLineStart > 0 && source[prevLineStart-1] != '\n' {
		prevLineStart--
	}

	prevLine := strings.TrimSpace(string(source[prevLineStart:prevLineEnd]))
	if strings.HasPrefix(prevLine, config.LineCommentPrefix) {
		return strings.TrimSpace(strings.TrimPrefix(prevLine, config.LineCommentPrefix))
	}
	return ""
}

// extractSignature extracts the first line of a declaration, trimmed
// to the opening brace (or, for Python, kept whole through the colon).
func (e *SymbolExtractor) extractSignature(n *Node, source []byte, symbolType SymbolType, language string) string {
	content := n.GetContent(source)
	if content == "" {
		return ""
	}

	switch symbolType {
	case SymbolTypeFunction, SymbolTypeMethod:
		return e.extractFunctionSignature(content, language)
	case SymbolTypeClass, SymbolTypeInterface, SymbolTypeType:
		return e.extractTypeSignature(content, language)
	}

	return ""
}

func (e *SymbolExtractor) extractFunctionSignature(content, language string) string {
	lines := strings.SplitN(content, "\n", 2)
	if len(lines) == 0 {
		return ""
	}
	firstLine := strings.TrimSpace(lines[0])

	if language == "python" {
		return firstLine
	}

	if idx := strings.Index(firstLine, "{"); idx != -1 {
		return strings.TrimSpace(firstLine[:idx])
	}
	return firstLine
}

func (e *SymbolExtractor) extractTypeSignature(content, language string) string {
	lines := strings.SplitN(content, "\n", 2)
	if len(lines) == 0 {
		return ""
	}
	firstLine := strings.TrimSpace(lines[0])

	if language == "python" {
		return firstLine
	}

	if idx := strings.Index(firstLine, "{"); idx != -1 {
		return strings.TrimSpace(firstLine[:idx])
	}
	return firstLine
}
