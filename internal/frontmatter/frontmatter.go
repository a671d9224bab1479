// Package frontmatter implements the on-disk codec for record attributes:
// YAML frontmatter between --- delimiters followed by a Markdown body.
package frontmatter

import (
	"bytes"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

var wikilinkRe = regexp.MustCompile(`\[\[(.*?)\]\]`)

// Doc holds the decoded parts of a record file.
type Doc struct {
	Attrs map[string]any
	Body  string
}

// Parse splits raw record bytes into frontmatter attributes and body.
// A file without a frontmatter block yields nil Attrs and the full content
// as body. Invalid YAML inside the block is an error: callers collect it
// per record rather than silently treating attributes as body text.
func Parse(data []byte) (*Doc, error) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return &Doc{Body: string(data)}, nil
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		// No closing delimiter, the whole file is body.
		return &Doc{Body: string(data)}, nil
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(afterDelim), "\n\r")

	var attrs map[string]any
	if err := yaml.Unmarshal(yamlBlock, &attrs); err != nil {
		return nil, fmt.Errorf("frontmatter: invalid yaml: %w", err)
	}

	return &Doc{Attrs: attrs, Body: body}, nil
}

// Serialize re-encodes attributes and body into record bytes. Keys named in
// order are emitted first, in that order; remaining keys follow sorted, so
// repeated round trips are byte stable. Nil or empty attrs produce a file
// with no frontmatter block.
func Serialize(attrs map[string]any, order []string, body string) ([]byte, error) {
	if len(attrs) == 0 {
		return []byte(body), nil
	}

	mapping := &yaml.Node{Kind: yaml.MappingNode}
	emitted := make(map[string]bool, len(attrs))

	appendKey := func(key string) error {
		val, ok := attrs[key]
		if !ok || emitted[key] {
			return nil
		}
		keyNode := &yaml.Node{Kind: yaml.ScalarNode, Value: key}
		valNode := &yaml.Node{}
		if err := valNode.Encode(val); err != nil {
			return fmt.Errorf("frontmatter: encode %s: %w", key, err)
		}
		mapping.Content = append(mapping.Content, keyNode, valNode)
		emitted[key] = true
		return nil
	}

	for _, key := range order {
		if err := appendKey(key); err != nil {
			return nil, err
		}
	}

	var rest []string
	for key := range attrs {
		if !emitted[key] {
			rest = append(rest, key)
		}
	}
	sort.Strings(rest)
	for _, key := range rest {
		if err := appendKey(key); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	buf.WriteString("---\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(mapping); err != nil {
		return nil, fmt.Errorf("frontmatter: encode attrs: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("frontmatter: close encoder: %w", err)
	}
	buf.WriteString("---\n")
	if body != "" {
		buf.WriteString("\n")
		buf.WriteString(body)
	}
	return buf.Bytes(), nil
}

// ExtractLinks returns deduplicated wikilink targets found in s,
// normalising [[Target|Alias]] to Target.
func ExtractLinks(s string) []string {
	matches := wikilinkRe.FindAllStringSubmatch(s, -1)
	seen := make(map[string]struct{}, len(matches))
	var out []string
	for _, m := range matches {
		target := m[1]
		if i := strings.Index(target, "|"); i >= 0 {
			target = target[:i]
		}
		target = strings.TrimSpace(target)
		if target == "" {
			continue
		}
		if _, ok := seen[target]; ok {
			continue
		}
		seen[target] = struct{}{}
		out = append(out, target)
	}
	return out
}

// LinkTargets extracts wikilink targets from an attribute value, which may
// be a single string or a list of strings. Non-string items are skipped.
func LinkTargets(value any) []string {
	switch v := value.(type) {
	case string:
		return ExtractLinks(v)
	case []any:
		seen := make(map[string]struct{})
		var out []string
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				continue
			}
			for _, t := range ExtractLinks(s) {
				if _, dup := seen[t]; dup {
					continue
				}
				seen[t] = struct{}{}
				out = append(out, t)
			}
		}
		return out
	default:
		return nil
	}
}
