package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dwhswenson/codemodel"
	"github.com/dwhswenson/codemodel/internal/ast"
)

var (
	dottedName = `[A-Za-z_][A-Za-z0-9_]*(?:\s*\.\s*[A-Za-z_][A-Za-z0-9_]*)*`
	identName  = `[A-Za-z_][A-Za-z0-9_]*`

	importRe  = regexp.MustCompile(`^import\s+(.+)$`)
	fromRe    = regexp.MustCompile(`^from\s+(\.*` + dottedName + `|\.+)\s+import\s+(.+)$`)
	aliasRe   = regexp.MustCompile(`^(` + dottedName + `)(?:\s+as\s+(` + identName + `))?$`)
	simpleRe  = regexp.MustCompile(`^(` + identName + `)(?:\s+as\s+(` + identName + `))?$`)
	spaceRe   = regexp.MustCompile(`\s+`)
	commentRe = regexp.MustCompile(`\s*#.*$`)
)

// ParseImport parses one import statement of the form `import a.b as c, d`
// or `from a import (b as c, d)`.
func ParseImport(line string) (*ast.Import, error) {
	src := strings.TrimSpace(commentRe.ReplaceAllString(line, ""))
	if m := fromRe.FindStringSubmatch(src); m != nil {
		names := strings.TrimSpace(m[2])
		if strings.HasPrefix(names, "(") && strings.HasSuffix(names, ")") {
			names = strings.TrimSpace(names[1 : len(names)-1])
		}
		imp := &ast.Import{From: spaceRe.ReplaceAllString(m[1], "")}
		if names == "*" {
			imp.Names = []ast.Alias{{Name: "*"}}
			return imp, nil
		}
		aliases, err := splitAliases(names, simpleRe)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", line, err)
		}
		imp.Names = aliases
		return imp, nil
	}
	if m := importRe.FindStringSubmatch(src); m != nil {
		aliases, err := splitAliases(m[1], aliasRe)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", line, err)
		}
		return &ast.Import{Names: aliases}, nil
	}
	return nil, fmt.Errorf("not an import statement: %q", line)
}

func splitAliases(list string, re *regexp.Regexp) ([]ast.Alias, error) {
	var out []ast.Alias
	for _, part := range strings.Split(strings.TrimSuffix(strings.TrimSpace(list), ","), ",") {
		m := re.FindStringSubmatch(strings.TrimSpace(part))
		if m == nil {
			return nil, fmt.Errorf("malformed imported name %q", strings.TrimSpace(part))
		}
		out = append(out, ast.Alias{Name: spaceRe.ReplaceAllString(m[1], ""), AsName: m[2]})
	}
	return out, nil
}

// ParseImports parses a list of import statements. Entries may contain
// several statements on separate lines.
func ParseImports(imports []string) ([]*ast.Import, error) {
	var out []*ast.Import
	for _, entry := range imports {
		for _, line := range strings.Split(entry, "\n") {
			if strings.TrimSpace(commentRe.ReplaceAllString(line, "")) == "" {
				continue
			}
			imp, err := ParseImport(line)
			if err != nil {
				return nil, codemodel.NewValidationError("imports", "non-import statement in imports", err)
			}
			out = append(out, imp)
		}
	}
	return out, nil
}

// ValidateImports fails if any entry is not an import statement.
func ValidateImports(imports []string) error {
	_, err := ParseImports(imports)
	return err
}

// ImportNames maps each name bound by the imports to the canonical dotted
// path of what it refers to. `from os import path as p` maps p to os.path;
// `import os.path` maps os.path to itself.
func ImportNames(imports []string) (map[string]string, error) {
	parsed, err := ParseImports(imports)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string)
	for _, imp := range parsed {
		for _, a := range imp.Names {
			bound := a.Name
			if a.AsName != "" {
				bound = a.AsName
			}
			if imp.From != "" {
				names[bound] = imp.From + "." + a.Name
			} else {
				names[bound] = a.Name
			}
		}
	}
	return names, nil
}

// IsImportLine reports whether a source line is an import statement.
func IsImportLine(line string) bool {
	_, err := ParseImport(line)
	return err == nil
}
