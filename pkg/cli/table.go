package cli

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"unicode/utf8"
)

const columnGap = 2

var ansiEscape = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// Table buffers rows and prints them column-aligned. When a width is set,
// wide columns are narrowed and their cells word-wrapped to fit. Empty
// tables produce no output.
type Table struct {
	out     io.Writer
	headers []string
	rows    [][]string
	prefix  string
	width   int
}

// NewTable creates a table on stdout, sized to the terminal if there is one.
func NewTable(headers ...string) *Table {
	return &Table{
		out:     os.Stdout,
		headers: headers,
		width:   TerminalWidth(os.Stdout),
	}
}

// WithWriter redirects output.
func (t *Table) WithWriter(w io.Writer) *Table {
	t.out = w
	return t
}

// WithWidth sets the total line width; 0 disables wrapping.
func (t *Table) WithWidth(width int) *Table {
	t.width = width
	return t
}

// WithPrefix sets a string prepended to each line (headers, divider, rows).
func (t *Table) WithPrefix(prefix string) *Table {
	t.prefix = prefix
	return t
}

// Row adds a row. Missing trailing cells print empty.
func (t *Table) Row(values ...string) {
	t.rows = append(t.rows, values)
}

// Flush prints the table. If no rows were added, nothing is printed.
func (t *Table) Flush() {
	if len(t.rows) == 0 {
		return
	}

	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = visualLen(h)
	}
	for _, row := range t.rows {
		for i := 0; i < len(row) && i < len(widths); i++ {
			if n := visualLen(row[i]); n > widths[i] {
				widths[i] = n
			}
		}
	}
	if t.width > 0 {
		widths = capWidths(widths, t.headers, t.width, visualLen(t.prefix))
	}

	dividers := make([]string, len(t.headers))
	for i, h := range t.headers {
		dividers[i] = strings.Repeat("-", visualLen(h))
	}
	t.line(widths, t.headers)
	t.line(widths, dividers)

	for _, row := range t.rows {
		cells := make([][]string, len(widths))
		height := 1
		for i := range widths {
			value := ""
			if i < len(row) {
				value = row[i]
			}
			cells[i] = wrapCell(value, widths[i])
			if len(cells[i]) > height {
				height = len(cells[i])
			}
		}
		for n := 0; n < height; n++ {
			values := make([]string, len(widths))
			for i := range widths {
				if n < len(cells[i]) {
					values[i] = cells[i][n]
				}
			}
			t.line(widths, values)
		}
	}
}

func (t *Table) line(widths []int, values []string) {
	var b strings.Builder
	b.WriteString(t.prefix)
	for i, v := range values {
		b.WriteString(v)
		if i == len(values)-1 {
			break
		}
		if pad := widths[i] - visualLen(v) + columnGap; pad > 0 {
			b.WriteString(strings.Repeat(" ", pad))
		}
	}
	fmt.Fprintln(t.out, strings.TrimRight(b.String(), " "))
}

// visualLen is the printed width of s, ignoring colour escapes.
func visualLen(s string) int {
	return utf8.RuneCountInString(ansiEscape.ReplaceAllString(s, ""))
}

// capWidths narrows the widest columns until the table fits total columns.
// No column goes below its header width, so the result may still overflow.
func capWidths(widths []int, headers []string, total, prefix int) []int {
	out := append([]int(nil), widths...)
	minWidths := make([]int, len(out))
	for i := range out {
		if i < len(headers) {
			minWidths[i] = visualLen(headers[i])
		}
	}

	sum := prefix + columnGap*(len(out)-1)
	for _, w := range out {
		sum += w
	}
	for sum > total {
		widest := -1
		for i, w := range out {
			if w > minWidths[i] && (widest < 0 || w > out[widest]) {
				widest = i
			}
		}
		if widest < 0 {
			break
		}
		out[widest]--
		sum--
	}
	return out
}

// wrapCell splits s into lines no wider than width, breaking at spaces and
// hard-breaking words that are longer than a line.
func wrapCell(s string, width int) []string {
	if width <= 0 || visualLen(s) <= width {
		return []string{s}
	}

	var lines []string
	cur := ""
	for _, word := range strings.Fields(s) {
		for runes := []rune(word); len(runes) > width; runes = []rune(word) {
			if cur != "" {
				lines = append(lines, cur)
				cur = ""
			}
			lines = append(lines, string(runes[:width]))
			word = string(runes[width:])
		}
		switch {
		case cur == "":
			cur = word
		case visualLen(cur)+1+visualLen(word) <= width:
			cur += " " + word
		default:
			lines = append(lines, cur)
			cur = word
		}
	}
	if cur != "" {
		lines = append(lines, cur)
	}
	return lines
}
