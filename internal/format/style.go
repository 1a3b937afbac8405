package format

import (
	"strings"

	"github.com/dwhswenson/codemodel/internal/ast"
	"github.com/dwhswenson/codemodel/internal/parser"
)

// DefaultMaxBlank is the longest run of blank lines Style keeps.
const DefaultMaxBlank = 2

// Style re-prints every top-level statement with the canonical printer.
// Comments survive; runs of blank lines between statements are kept up
// to MaxBlank lines.
type Style struct {
	MaxBlank int
}

func (Style) Name() string { return "style" }

type item struct {
	text  string
	blank int
}

func (s Style) Format(src string) (string, error) {
	maxBlank := s.MaxBlank
	if maxBlank <= 0 {
		maxBlank = DefaultMaxBlank
	}

	var items []item
	lines := strings.Split(src, "\n")
	pending := 0
	for i := 0; i < len(lines); {
		line := lines[i]
		switch {
		case strings.TrimSpace(line) == "":
			pending++
			i++
		case isTopLevelImport(line):
			imp, err := parser.ParseImport(line)
			if err != nil {
				return "", err
			}
			items = append(items, item{text: ast.Format(imp), blank: pending})
			pending = 0
			i++
		default:
			j := i
			for j < len(lines) && !isTopLevelImport(lines[j]) {
				j++
			}
			chunk, trailing, err := formatChunk(lines[i:j])
			if err != nil {
				return "", err
			}
			if len(chunk) > 0 {
				chunk[0].blank += pending
			}
			items = append(items, chunk...)
			pending = trailing
			i = j
		}
	}

	var b strings.Builder
	for n, it := range items {
		if n > 0 {
			b.WriteString(strings.Repeat("\n", min(it.blank, maxBlank)))
		}
		b.WriteString(it.text)
	}
	return b.String(), nil
}

func isTopLevelImport(line string) bool {
	return line != "" && line[0] != ' ' && line[0] != '\t' && parser.IsImportLine(line)
}

// formatChunk formats a run of code lines. It returns one item per
// top-level statement, followed by any trailing comment lines, and the
// number of blank lines at the end of the run.
func formatChunk(lines []string) ([]item, int, error) {
	trailingBlank := 0
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
		trailingBlank++
	}
	// Comments after the last statement are carried over as text.
	tail := len(lines)
	for tail > 0 {
		t := strings.TrimSpace(lines[tail-1])
		if t != "" && !strings.HasPrefix(t, "#") {
			break
		}
		tail--
	}

	mod, err := parser.ParseModule("<script>", strings.Join(lines[:tail], "\n"))
	if err != nil {
		return nil, 0, err
	}
	var items []item
	for _, stmt := range mod.Body {
		header := stmt.Position().Line - len(stmt.Comments().Before)
		items = append(items, item{
			text:  ast.Format(stmt),
			blank: blankRunBefore(lines, header),
		})
	}

	blank := 0
	for _, l := range lines[tail:] {
		t := strings.TrimSpace(l)
		if t == "" {
			blank++
			continue
		}
		items = append(items, item{text: t + "\n", blank: blank})
		blank = 0
	}
	return items, trailingBlank + blank, nil
}

// blankRunBefore counts the blank lines right above the 1-based line.
func blankRunBefore(lines []string, line int) int {
	n := 0
	for i := line - 2; i >= 0 && strings.TrimSpace(lines[i]) == ""; i-- {
		n++
	}
	return n
}
