package chunk

import (
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"
	"github.com/smacker/go-tree-sitter/csharp"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// LanguageRegistry manages supported languages and their configurations.
type LanguageRegistry struct {
	mu          sync.RWMutex
	configs     map[string]*LanguageConfig // keyed by language name
	extToLang   map[string]string          // extension -> language name
	tsLanguages map[string]*sitter.Language
}

// NewLanguageRegistry creates a registry with all nine languages named
// in spec.md §4.2 registered.
func NewLanguageRegistry() *LanguageRegistry {
	r := &LanguageRegistry{
		configs:     make(map[string]*LanguageConfig),
		extToLang:   make(map[string]string),
		tsLanguages: make(map[string]*sitter.Language),
	}

	r.registerGo()
	r.registerTypeScript()
	r.registerJavaScript()
	r.registerPython()
	r.registerJava()
	r.registerRust()
	r.registerC()
	r.registerCPP()
	r.registerCSharp()

	return r
}

// GetByExtension returns the language configuration for a file extension.
func (r *LanguageRegistry) GetByExtension(ext string) (*LanguageConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	langName, ok := r.extToLang[ext]
	if !ok {
		return nil, false
	}

	config, ok := r.configs[langName]
	return config, ok
}

// GetByName returns the language configuration by name.
func (r *LanguageRegistry) GetByName(name string) (*LanguageConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	config, ok := r.configs[name]
	return config, ok
}

// GetTreeSitterLanguage returns the tree-sitter language for a language name.
func (r *LanguageRegistry) GetTreeSitterLanguage(name string) (*sitter.Language, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lang, ok := r.tsLanguages[name]
	return lang, ok
}

// SupportedExtensions returns all supported file extensions.
func (r *LanguageRegistry) SupportedExtensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exts := make([]string, 0, len(r.extToLang))
	for ext := range r.extToLang {
		exts = append(exts, ext)
	}
	return exts
}

// registerLanguage adds a language to the registry.
func (r *LanguageRegistry) registerLanguage(config *LanguageConfig, tsLang *sitter.Language) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.configs[config.Name] = config
	r.tsLanguages[config.Name] = tsLang

	for _, ext := range config.Extensions {
		r.extToLang[ext] = config.Name
	}
}

func (r *LanguageRegistry) registerGo() {
	config := &LanguageConfig{
		Name:              "go",
		Extensions:        []string{".go"},
		FunctionTypes:     []string{"function_declaration"},
		MethodTypes:       []string{"method_declaration"},
		ClassTypes:        []string{}, // Go doesn't have classes
		TypeDefTypes:      []string{"type_declaration"},
		InterfaceTypes:    []string{}, // Go interfaces are type declarations
		ConstantTypes:     []string{"const_declaration"},
		VariableTypes:     []string{"var_declaration"},
		BreadcrumbTypes:   []string{}, // methods use receiver-based breadcrumbs, see code_chunker.go
		NameField:         "name",
		LineCommentPrefix: "//",
	}

	r.registerLanguage(config, golang.GetLanguage())
}

func (r *LanguageRegistry) registerTypeScript() {
	tsConfig := &LanguageConfig{
		Name:              "typescript",
		Extensions:        []string{".ts"},
		FunctionTypes:     []string{"function_declaration"},
		MethodTypes:       []string{"method_definition"},
		ClassTypes:        []string{"class_declaration"},
		InterfaceTypes:    []string{"interface_declaration"},
		TypeDefTypes:      []string{"type_alias_declaration"},
		ConstantTypes:     []string{"lexical_declaration"}, // const and let
		VariableTypes:     []string{"variable_declaration"},
		BreadcrumbTypes:   []string{"class_declaration", "interface_declaration", "module"},
		NameField:         "name",
		LineCommentPrefix: "//",
	}
	r.registerLanguage(tsConfig, typescript.GetLanguage())

	tsxConfig := &LanguageConfig{
		Name:              "tsx",
		Extensions:        []string{".tsx"},
		FunctionTypes:     tsConfig.FunctionTypes,
		MethodTypes:       tsConfig.MethodTypes,
		ClassTypes:        tsConfig.ClassTypes,
		InterfaceTypes:    tsConfig.InterfaceTypes,
		TypeDefTypes:      tsConfig.TypeDefTypes,
		ConstantTypes:     tsConfig.ConstantTypes,
		VariableTypes:     tsConfig.VariableTypes,
		BreadcrumbTypes:   tsConfig.BreadcrumbTypes,
		NameField:         tsConfig.NameField,
		LineCommentPrefix: tsConfig.LineCommentPrefix,
	}
	r.registerLanguage(tsxConfig, tsx.GetLanguage())
}

func (r *LanguageRegistry) registerJavaScript() {
	jsConfig := &LanguageConfig{
		Name:              "javascript",
		Extensions:        []string{".js", ".mjs"},
		FunctionTypes:     []string{"function_declaration", "function"},
		MethodTypes:       []string{"method_definition"},
		ClassTypes:        []string{"class_declaration"},
		InterfaceTypes:    []string{}, // JS doesn't have interfaces
		TypeDefTypes:      []string{},
		ConstantTypes:     []string{"lexical_declaration"}, // const and let
		VariableTypes:     []string{"variable_declaration"},
		BreadcrumbTypes:   []string{"class_declaration"},
		NameField:         "name",
		LineCommentPrefix: "//",
	}
	r.registerLanguage(jsConfig, javascript.GetLanguage())

	jsxConfig := &LanguageConfig{
		Name:              "jsx",
		Extensions:        []string{".jsx"},
		FunctionTypes:     jsConfig.FunctionTypes,
		MethodTypes:       jsConfig.MethodTypes,
		ClassTypes:        jsConfig.ClassTypes,
		InterfaceTypes:    jsConfig.InterfaceTypes,
		TypeDefTypes:      jsConfig.TypeDefTypes,
		ConstantTypes:     jsConfig.ConstantTypes,
		VariableTypes:     jsConfig.VariableTypes,
		BreadcrumbTypes:   jsConfig.BreadcrumbTypes,
		NameField:         jsConfig.NameField,
		LineCommentPrefix: jsConfig.LineCommentPrefix,
	}
	r.registerLanguage(jsxConfig, javascript.GetLanguage())
}

func (r *LanguageRegistry) registerPython() {
	config := &LanguageConfig{
		Name:              "python",
		Extensions:        []string{".py"},
		FunctionTypes:     []string{"function_definition"},
		MethodTypes:       []string{}, // methods are function_definition inside class
		ClassTypes:        []string{"class_definition"},
		InterfaceTypes:    []string{},
		TypeDefTypes:      []string{},
		ConstantTypes:     []string{}, // Python has no const keyword
		VariableTypes:     []string{"assignment"},
		BreadcrumbTypes:   []string{"class_definition"},
		NameField:         "name",
		LineCommentPrefix: "#",
	}
	r.registerLanguage(config, python.GetLanguage())
}

func (r *LanguageRegistry) registerJava() {
	config := &LanguageConfig{
		Name:           "java",
		Extensions:     []string{".java"},
		FunctionTypes:  []string{},
		MethodTypes:    []string{"method_declaration", "constructor_declaration"},
		ClassTypes:     []string{"class_declaration", "enum_declaration", "record_declaration"},
		InterfaceTypes: []string{"interface_declaration"},
		TypeDefTypes:   []string{},
		ConstantTypes:  []string{},
		VariableTypes:  []string{"field_declaration"},
		BreadcrumbTypes: []string{
			"class_declaration", "interface_declaration", "enum_declaration", "record_declaration",
		},
		NameField:         "name",
		LineCommentPrefix: "//",
	}
	r.registerLanguage(config, java.GetLanguage())
}

func (r *LanguageRegistry) registerRust() {
	config := &LanguageConfig{
		Name:           "rust",
		Extensions:     []string{".rs"},
		FunctionTypes:  []string{"function_item"},
		MethodTypes:    []string{}, // methods are function_item inside impl_item
		ClassTypes:     []string{"struct_item", "enum_item"},
		InterfaceTypes: []string{"trait_item"},
		TypeDefTypes:   []string{"type_item"},
		ConstantTypes:  []string{"const_item", "static_item"},
		VariableTypes:  []string{"let_declaration"},
		BreadcrumbTypes: []string{
			"impl_item", "struct_item", "enum_item", "trait_item", "mod_item",
		},
		NameField:         "name",
		LineCommentPrefix: "//",
	}
	r.registerLanguage(config, rust.GetLanguage())
}

func (r *LanguageRegistry) registerC() {
	config := &LanguageConfig{
		Name:              "c",
		Extensions:        []string{".c", ".h"},
		FunctionTypes:     []string{"function_definition"},
		MethodTypes:       []string{},
		ClassTypes:        []string{"struct_specifier", "enum_specifier", "union_specifier"},
		InterfaceTypes:    []string{},
		TypeDefTypes:      []string{"type_definition"},
		ConstantTypes:     []string{},
		VariableTypes:     []string{"declaration"},
		BreadcrumbTypes:   []string{},
		NameField:         "declarator",
		LineCommentPrefix: "//",
	}
	r.registerLanguage(config, c.GetLanguage())
}

func (r *LanguageRegistry) registerCPP() {
	config := &LanguageConfig{
		Name:           "cpp",
		Extensions:     []string{".cpp", ".cc", ".cxx", ".hpp", ".hh"},
		FunctionTypes:  []string{"function_definition"},
		MethodTypes:    []string{"function_definition"}, // in-class methods share this node type
		ClassTypes:     []string{"class_specifier", "struct_specifier", "enum_specifier"},
		InterfaceTypes: []string{},
		TypeDefTypes:   []string{"type_definition", "alias_declaration"},
		ConstantTypes:  []string{},
		VariableTypes:  []string{"declaration"},
		BreadcrumbTypes: []string{
			"class_specifier", "struct_specifier", "namespace_definition",
		},
		NameField:         "declarator",
		LineCommentPrefix: "//",
	}
	r.registerLanguage(config, cpp.GetLanguage())
}

func (r *LanguageRegistry) registerCSharp() {
	config := &LanguageConfig{
		Name:           "csharp",
		Extensions:     []string{".cs"},
		FunctionTypes:  []string{},
		MethodTypes:    []string{"method_declaration", "constructor_declaration"},
		ClassTypes:     []string{"class_declaration", "struct_declaration", "enum_declaration", "record_declaration"},
		InterfaceTypes: []string{"interface_declaration"},
		TypeDefTypes:   []string{},
		ConstantTypes:  []string{},
		VariableTypes:  []string{"field_declaration"},
		BreadcrumbTypes: []string{
			"class_declaration", "interface_declaration", "struct_declaration",
			"record_declaration", "namespace_declaration",
		},
		NameField:         "name",
		LineCommentPrefix: "//",
	}
	r.registerLanguage(config, csharp.GetLanguage())
}

// defaultRegistry is the process-wide language registry. Unlike the
// rate controller, this holds no per-request mutable state, so one
// shared instance is safe.
var defaultRegistry = NewLanguageRegistry()

// DefaultRegistry returns the process-wide language registry.
func DefaultRegistry() *LanguageRegistry {
	return defaultRegistry
}
