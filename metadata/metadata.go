// Package metadata extracts the structured metadata block embedded in an
// article file.
//
// Articles declare their metadata as an object literal:
//
//	export const metadata = {
//	  id: "hello-world",
//	  title: 'Hello, World',
//	  tags: ["go", "web"],
//	};
//
// The literal is decoded as a YAML flow mapping, which covers unquoted keys,
// arrays, booleans and trailing commas. Quoted strings follow JavaScript
// escaping ('Don\'t', "a\nb") and are rewritten to YAML double-quoted form
// before decoding. It is
// data only: anything that would need evaluating (template literals, calls,
// comments) is rejected as malformed. Files without the declaration may use
// regular front matter instead.
package metadata

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/adrg/frontmatter"
	"gopkg.in/yaml.v3"
)

// ErrMalformed is returned when a metadata block is present but cannot be decoded.
var ErrMalformed = errors.New("malformed metadata")

var declPattern = regexp.MustCompile(`(?s)export\s+const\s+metadata\s*=\s*(\{.*?\})\s*;`)

// Metadata is the authored part of an article record.
type Metadata struct {
	ID          string   `yaml:"id" json:"id"`
	Type        string   `yaml:"type" json:"type"`
	Title       string   `yaml:"title" json:"title"`
	Description string   `yaml:"description" json:"description"`
	Tags        []string `yaml:"tags" json:"tags"`
	Categories  []string `yaml:"categories" json:"categories"`
	Category    string   `yaml:"category" json:"category,omitempty"`
	PublishDate string   `yaml:"publishDate" json:"publishDate"`
	Draft       bool     `yaml:"draft" json:"draft"`
	Author      string   `yaml:"author" json:"author"`
	Image       string   `yaml:"image" json:"image"`
}

// Extract locates the metadata declaration in src and decodes it. It returns
// the metadata and the remaining body with the declaration removed. When src
// carries no metadata at all, Extract returns a nil *Metadata and a nil error.
func Extract(src []byte) (*Metadata, []byte, error) {
	if loc := declPattern.FindSubmatchIndex(src); loc != nil {
		literal := src[loc[2]:loc[3]]
		meta, err := parseLiteral(literal)
		if err != nil {
			return nil, nil, err
		}
		body := make([]byte, 0, len(src)-(loc[1]-loc[0]))
		body = append(body, src[:loc[0]]...)
		body = append(body, src[loc[1]:]...)
		return meta, bytes.TrimLeft(body, "\r\n"), nil
	}

	var meta Metadata
	body, err := frontmatter.MustParse(bytes.NewReader(src), &meta)
	if err != nil {
		if errors.Is(err, frontmatter.ErrNotFound) {
			return nil, src, nil
		}
		return nil, nil, fmt.Errorf("%w: front matter: %v", ErrMalformed, err)
	}
	if err := meta.normalize(); err != nil {
		return nil, nil, err
	}
	return &meta, body, nil
}

func parseLiteral(literal []byte) (*Metadata, error) {
	if bytes.ContainsRune(literal, '`') {
		return nil, fmt.Errorf("%w: template literals are not supported", ErrMalformed)
	}
	literal, err := requoteStrings(literal)
	if err != nil {
		return nil, err
	}
	var node yaml.Node
	if err := yaml.Unmarshal(literal, &node); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(node.Content) != 1 || node.Content[0].Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: expected an object literal", ErrMalformed)
	}
	if err := checkLiteral(node.Content[0]); err != nil {
		return nil, err
	}
	var meta Metadata
	if err := node.Content[0].Decode(&meta); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := meta.normalize(); err != nil {
		return nil, err
	}
	return &meta, nil
}

// requoteStrings rewrites every single or double quoted string in literal as
// a YAML double-quoted scalar with JavaScript escape semantics.
func requoteStrings(literal []byte) ([]byte, error) {
	out := make([]byte, 0, len(literal)+8)
	for i := 0; i < len(literal); i++ {
		q := literal[i]
		if q != '\'' && q != '"' {
			out = append(out, q)
			continue
		}
		out = append(out, '"')
		closed := false
		for i++; i < len(literal); i++ {
			c := literal[i]
			if c == q {
				closed = true
				break
			}
			switch c {
			case '\n':
				return nil, fmt.Errorf("%w: unterminated string", ErrMalformed)
			case '"':
				out = append(out, '\\', '"')
			case '\\':
				i++
				if i == len(literal) {
					return nil, fmt.Errorf("%w: unterminated string", ErrMalformed)
				}
				out = appendEscape(out, literal[i])
			default:
				out = append(out, c)
			}
		}
		if !closed {
			return nil, fmt.Errorf("%w: unterminated string", ErrMalformed)
		}
		out = append(out, '"')
	}
	return out, nil
}

func appendEscape(out []byte, c byte) []byte {
	switch c {
	case 'n', 't', 'r', 'b', 'f', 'v', '0', 'u', 'x', '\\', '"':
		return append(out, '\\', c)
	case '\n':
		// line continuation
		return out
	default:
		// \' and unknown escapes stand for the character itself.
		return append(out, c)
	}
}

var keyPattern = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// checkLiteral restricts the decoded YAML to what an object literal of plain
// data can express: identifier or quoted keys, quoted strings, numbers,
// booleans, null, arrays and nested objects.
func checkLiteral(n *yaml.Node) error {
	if n.Kind == yaml.AliasNode || n.Anchor != "" {
		return fmt.Errorf("%w: anchors and aliases are not allowed (line %d)", ErrMalformed, n.Line)
	}
	switch n.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			key, val := n.Content[i], n.Content[i+1]
			if key.Kind != yaml.ScalarNode {
				return fmt.Errorf("%w: unsupported key (line %d)", ErrMalformed, key.Line)
			}
			if key.Style == 0 && !keyPattern.MatchString(key.Value) {
				return fmt.Errorf("%w: invalid key %q (line %d)", ErrMalformed, key.Value, key.Line)
			}
			if err := checkLiteral(val); err != nil {
				return err
			}
		}
	case yaml.SequenceNode:
		for _, c := range n.Content {
			if err := checkLiteral(c); err != nil {
				return err
			}
		}
	case yaml.ScalarNode:
		if n.Style == 0 && n.ShortTag() == "!!str" {
			return fmt.Errorf("%w: unquoted value %q (line %d)", ErrMalformed, n.Value, n.Line)
		}
	}
	return nil
}

func (m *Metadata) normalize() error {
	m.ID = strings.TrimSpace(m.ID)
	if m.ID == "" {
		return fmt.Errorf("%w: id is required", ErrMalformed)
	}
	if c := strings.TrimSpace(m.Category); c != "" {
		found := false
		for _, existing := range m.Categories {
			if strings.EqualFold(existing, c) {
				found = true
				break
			}
		}
		if !found {
			m.Categories = append(m.Categories, c)
		}
	}
	m.Category = ""
	m.Tags = trimAll(m.Tags)
	m.Categories = trimAll(m.Categories)
	m.PublishDate = strings.TrimSpace(m.PublishDate)
	return nil
}

func trimAll(vals []string) []string {
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			out = append(out, s)
		}
	}
	return out
}
