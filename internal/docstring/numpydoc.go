// Package docstring reads parameter types and descriptions from numpydoc
// formatted docstrings.
package docstring

import (
	"strings"

	"github.com/dwhswenson/codemodel"
)

// Field is one entry of a numpydoc section such as Parameters.
type Field struct {
	Name string
	Type string
	Desc string
}

// Doc is a parsed docstring.
type Doc struct {
	Summary  string
	Sections map[string][]Field
}

// Parse splits a docstring into its summary and the field sections that
// follow a header underlined with dashes.
func Parse(doc string) Doc {
	lines := cleanLines(doc)
	d := Doc{Sections: make(map[string][]Field)}

	var summary []string
	i := 0
	for ; i < len(lines); i++ {
		if isHeader(lines, i) {
			break
		}
		if strings.TrimSpace(lines[i]) == "" && len(summary) > 0 {
			break
		}
		if s := strings.TrimSpace(lines[i]); s != "" {
			summary = append(summary, s)
		}
	}
	d.Summary = strings.Join(summary, " ")

	var section string
	var current *Field
	flush := func() {
		if current != nil {
			current.Desc = strings.TrimSpace(current.Desc)
			d.Sections[section] = append(d.Sections[section], *current)
			current = nil
		}
	}
	for ; i < len(lines); i++ {
		line := lines[i]
		if isHeader(lines, i) {
			flush()
			section = strings.TrimSpace(line)
			i++
			continue
		}
		if section == "" || strings.TrimSpace(line) == "" {
			continue
		}
		if !strings.HasPrefix(line, " ") && !strings.HasPrefix(line, "\t") {
			flush()
			name, typ, _ := strings.Cut(line, ":")
			current = &Field{Name: strings.TrimSpace(name), Type: strings.TrimSpace(typ)}
			continue
		}
		if current != nil {
			current.Desc += " " + strings.TrimSpace(line)
		}
	}
	flush()
	return d
}

// isHeader reports whether lines[i] is a section title underlined by a
// run of dashes at least as long as the title.
func isHeader(lines []string, i int) bool {
	if i+1 >= len(lines) {
		return false
	}
	title := strings.TrimSpace(lines[i])
	rule := strings.TrimSpace(lines[i+1])
	return title != "" && len(rule) >= len(title) && strings.Trim(rule, "-") == ""
}

// cleanLines removes the common indentation of every line but the first,
// which is usually written right after the opening quotes.
func cleanLines(doc string) []string {
	lines := strings.Split(strings.ReplaceAll(doc, "\r\n", "\n"), "\n")
	indent := -1
	for _, l := range lines[1:] {
		if strings.TrimSpace(l) == "" {
			continue
		}
		n := len(l) - len(strings.TrimLeft(l, " \t"))
		if indent < 0 || n < indent {
			indent = n
		}
	}
	lines[0] = strings.TrimSpace(lines[0])
	for i := 1; i < len(lines); i++ {
		if len(lines[i]) >= indent && indent > 0 {
			lines[i] = lines[i][indent:]
		} else if strings.TrimSpace(lines[i]) == "" {
			lines[i] = ""
		}
	}
	return lines
}

// Numpydoc extracts types and descriptions from a numpydoc section.
type Numpydoc struct {
	// Section is the section read; empty means "Parameters".
	Section string
}

// Extract implements codemodel.DocExtractor. Entries naming several
// parameters ("a, b : int") apply to each; star prefixes are ignored.
// Parameters the section does not mention get the unknown type and an
// empty description.
func (n Numpydoc) Extract(doc string, names []string) (types, descs []string) {
	section := n.Section
	if section == "" {
		section = "Parameters"
	}
	byName := make(map[string]Field)
	for _, f := range Parse(doc).Sections[section] {
		for _, name := range strings.Split(f.Name, ",") {
			byName[strings.TrimLeft(strings.TrimSpace(name), "*")] = f
		}
	}
	types = make([]string, len(names))
	descs = make([]string, len(names))
	for i, name := range names {
		f, ok := byName[name]
		if !ok || f.Type == "" {
			types[i] = codemodel.UnknownType
		} else {
			types[i] = f.Type
		}
		if ok {
			descs[i] = f.Desc
		}
	}
	return types, descs
}
