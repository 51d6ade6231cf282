package imports

import (
	"errors"
	"fmt"
	"strings"

	"github.com/GriffinCanCode/jsworker/internal/protocol"
	"github.com/GriffinCanCode/jsworker/internal/serializer"
)

var (
	ErrModuleNotFound  = errors.New("module not found in bundle")
	ErrDuplicateImport = errors.New("duplicate import name")
	ErrInvalidImport   = errors.New("import needs a name and a module id")
)

// Import maps one logical name to a bundler module id.
type Import struct {
	Name   string `json:"name" yaml:"name" toml:"name"`
	Module string `json:"module" yaml:"module" toml:"module"`
}

// ImportMap is resolved in order: a module must come after everything it
// requires.
type ImportMap []Import

// Names returns the logical names in map order.
func (m ImportMap) Names() []string {
	names := make([]string, len(m))
	for i, imp := range m {
		names[i] = imp.Name
	}
	return names
}

// Validate checks that every entry is complete and names are unique.
func (m ImportMap) Validate() error {
	seen := make(map[string]struct{}, len(m))
	for _, imp := range m {
		if imp.Name == "" || imp.Module == "" {
			return fmt.Errorf("%w: %+v", ErrInvalidImport, imp)
		}
		if _, dup := seen[imp.Name]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateImport, imp.Name)
		}
		seen[imp.Name] = struct{}{}
	}
	return nil
}

// Table is read access to a bundler's module factories.
type Table interface {
	Factory(id string) (string, bool)
}

// MapTable is a Table held in memory.
type MapTable map[string]string

func (t MapTable) Factory(id string) (string, bool) {
	src, ok := t[id]
	return src, ok
}

// Names bound by the bootstrap itself. Imports using them are reachable
// through imports[name] only.
var reservedNames = map[string]struct{}{
	"env": {}, "options": {}, "imports": {}, "__imports": {}, "__main": {},
	"registerMsgHandler": {}, "dropMsgHandler": {}, "send": {}, "log": {},
}

var keywords = map[string]struct{}{
	"break": {}, "case": {}, "catch": {}, "class": {}, "const": {}, "continue": {},
	"debugger": {}, "default": {}, "delete": {}, "do": {}, "else": {}, "enum": {},
	"export": {}, "extends": {}, "false": {}, "finally": {}, "for": {}, "function": {},
	"if": {}, "import": {}, "in": {}, "instanceof": {}, "new": {}, "null": {},
	"return": {}, "super": {}, "switch": {}, "this": {}, "throw": {}, "true": {},
	"try": {}, "typeof": {}, "var": {}, "void": {}, "while": {}, "with": {},
	"yield": {}, "let": {}, "static": {}, "await": {}, "arguments": {}, "eval": {},
	"undefined": {}, "NaN": {}, "Infinity": {},
}

// Bindable reports whether name can become a bare variable in the worker
// scope.
func Bindable(name string) bool {
	if !serializer.IsIdentifier(name) {
		return false
	}
	if _, ok := reservedNames[name]; ok {
		return false
	}
	_, ok := keywords[name]
	return !ok
}

// Resolver synthesizes the import prelude of a worker blob.
type Resolver struct {
	table Table
}

// NewResolver creates a resolver over table. A nil table makes the resolver
// inert.
func NewResolver(table Table) *Resolver {
	return &Resolver{table: table}
}

// Enabled reports whether a module table is available.
func (r *Resolver) Enabled() bool {
	return r != nil && r.table != nil
}

// Source returns the statements that rebuild every import of m. It returns
// "" when no table is available or m is empty.
func (r *Resolver) Source(m ImportMap) (string, error) {
	if !r.Enabled() || len(m) == 0 {
		return "", nil
	}
	if err := m.Validate(); err != nil {
		return "", err
	}

	var b strings.Builder
	for _, imp := range m {
		fmt.Fprintf(&b, "__imports.declare(%s, %s);\n", protocol.Quote(imp.Name), protocol.Quote(imp.Module))
	}

	for _, imp := range m {
		factory, ok := r.table.Factory(imp.Module)
		if !ok {
			return "", fmt.Errorf("%w: %s (imported as %q)", ErrModuleNotFound, imp.Module, imp.Name)
		}
		name := protocol.Quote(imp.Name)
		fmt.Fprintf(&b, "(function (module) {\n(%s\n).call(module.exports, module, module.exports, __imports.resolver(%s));\n__imports.provide(%s, module.exports);\n})({exports: {}});\n",
			factory, name, name)
	}

	for _, imp := range m {
		if Bindable(imp.Name) {
			fmt.Fprintf(&b, "var %s = imports[%s];\n", imp.Name, protocol.Quote(imp.Name))
		}
	}
	return b.String(), nil
}
