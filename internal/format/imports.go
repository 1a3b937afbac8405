package format

import (
	"sort"
	"strings"

	"github.com/dwhswenson/codemodel/internal/ast"
	"github.com/dwhswenson/codemodel/internal/parser"
)

// SortImports sorts the leading import block. Plain imports come first,
// one module per line, then from-imports merged per module. Both groups
// are alphabetical and free of duplicates. One blank line separates the
// block from the code after it.
type SortImports struct{}

func (SortImports) Name() string { return "isort" }

func (SortImports) Format(src string) (string, error) {
	lines := strings.Split(src, "\n")
	end := 0
	var imports []*ast.Import
	for ; end < len(lines); end++ {
		line := lines[end]
		if strings.TrimSpace(line) == "" {
			continue
		}
		if strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t") || !parser.IsImportLine(line) {
			break
		}
		imp, err := parser.ParseImport(line)
		if err != nil {
			return "", err
		}
		imports = append(imports, imp)
	}
	if len(imports) == 0 {
		return src, nil
	}

	var b strings.Builder
	for _, imp := range sortImports(imports) {
		b.WriteString(ast.Format(imp))
	}
	rest := strings.TrimLeft(strings.Join(lines[end:], "\n"), "\n")
	if rest != "" {
		b.WriteString("\n")
		b.WriteString(rest)
	}
	return b.String(), nil
}

func sortImports(imports []*ast.Import) []*ast.Import {
	plain := make(map[string]ast.Alias)
	from := make(map[string]map[string]ast.Alias)
	for _, imp := range imports {
		for _, a := range imp.Names {
			if imp.From == "" {
				plain[a.Name+" as "+a.AsName] = a
				continue
			}
			if from[imp.From] == nil {
				from[imp.From] = make(map[string]ast.Alias)
			}
			from[imp.From][a.Name+" as "+a.AsName] = a
		}
	}

	var out []*ast.Import
	for _, key := range sortedKeys(plain) {
		out = append(out, &ast.Import{Names: []ast.Alias{plain[key]}})
	}
	for _, module := range sortedKeys(from) {
		imp := &ast.Import{From: module}
		for _, key := range sortedKeys(from[module]) {
			imp.Names = append(imp.Names, from[module][key])
		}
		out = append(out, imp)
	}
	return out
}

// sortedKeys orders case-insensitively, then by exact text.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		li, lj := strings.ToLower(keys[i]), strings.ToLower(keys[j])
		if li != lj {
			return li < lj
		}
		return keys[i] < keys[j]
	})
	return keys
}
