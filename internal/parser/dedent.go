package parser

import "strings"

// Dedent strips the shortest leading whitespace run found on a non-blank
// line from every line, so source taken from inside a class or block parses
// at top level. Runs are counted in characters: a snippet is expected to
// use tabs or spaces consistently.
func Dedent(src string) string {
	lines := strings.Split(src, "\n")
	n := -1
	for _, line := range lines {
		run := len(line) - len(strings.TrimLeft(line, " \t"))
		if run == len(line) {
			continue
		}
		if n < 0 || run < n {
			n = run
		}
	}
	if n <= 0 {
		return src
	}
	for i, line := range lines {
		if len(line) <= n {
			lines[i] = strings.TrimLeft(line, " \t")
			continue
		}
		lines[i] = line[n:]
	}
	return strings.Join(lines, "\n")
}
