// Package markdown renders article bodies to HTML as a templ component.
//
// Bodies are MDX: Markdown plus top-level import/export statements and JSX
// elements. Statements are dropped and raw HTML/JSX is omitted by the
// renderer, leaving the Markdown content.
package markdown

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
)

var engine = goldmark.New(
	goldmark.WithExtensions(extension.GFM, extension.Footnote),
	goldmark.WithParserOptions(parser.WithAutoHeadingID()),
)

// Markdown returns a templ.Component that renders body as HTML.
func Markdown(body []byte) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		out, err := Render(body)
		if err != nil {
			return err
		}
		_, err = w.Write(out)
		return err
	})
}

// Render converts an MDX body to HTML.
func Render(body []byte) ([]byte, error) {
	src, err := StripStatements(body)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := engine.Convert(src, &buf); err != nil {
		return nil, fmt.Errorf("markdown: render: %w", err)
	}
	return buf.Bytes(), nil
}

// StripStatements removes top-level import and export statements, leaving
// fenced code blocks untouched. A statement spanning several lines ends at a
// line ending in ";", at the line where its braces and parentheses balance,
// or at a blank line.
func StripStatements(body []byte) ([]byte, error) {
	var out bytes.Buffer
	sc := bufio.NewScanner(bytes.NewReader(body))
	sc.Buffer(make([]byte, 0, 64*1024), len(body)+1)
	fence := ""
	inStatement := false
	depth := 0
	for sc.Scan() {
		line := sc.Text()
		trimmed := strings.TrimSpace(line)

		if fence != "" {
			if strings.HasPrefix(trimmed, fence) {
				fence = ""
			}
			out.WriteString(line)
			out.WriteByte('\n')
			continue
		}
		if inStatement {
			depth += nesting(trimmed)
			if trimmed == "" {
				inStatement = false
				out.WriteByte('\n')
			} else if strings.HasSuffix(trimmed, ";") || depth <= 0 {
				inStatement = false
			}
			continue
		}
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			fence = trimmed[:3]
		} else if isStatement(line) {
			depth = nesting(trimmed)
			inStatement = !strings.HasSuffix(trimmed, ";") && (depth > 0 || continues(trimmed))
			continue
		}
		out.WriteString(line)
		out.WriteByte('\n')
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("markdown: strip statements: %w", err)
	}
	return out.Bytes(), nil
}

func isStatement(line string) bool {
	return strings.HasPrefix(line, "import ") || strings.HasPrefix(line, "export ")
}

// nesting returns the net count of opened braces, brackets and parentheses.
func nesting(line string) int {
	n := 0
	for _, r := range line {
		switch r {
		case '{', '(', '[':
			n++
		case '}', ')', ']':
			n--
		}
	}
	return n
}

// continues reports whether a balanced line still expects more input, such
// as "export const x =".
func continues(line string) bool {
	return strings.HasSuffix(line, "=") || strings.HasSuffix(line, ",") ||
		strings.HasSuffix(line, "=>")
}
