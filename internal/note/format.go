package note

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/okvist/zet/internal/apperr"
)

// On-disk form: YAML frontmatter between --- fences, then the Markdown
// body. Timestamps are RFC 3339. Parse(Serialize(n)) == n for any note
// whose Body is normalized (no leading blank lines, single trailing
// newline) — New and Touch only ever produce such notes.

const fmDelim = "---"

var (
	wikilinkRe  = regexp.MustCompile(`\[\[(.*?)\]\]`)
	inlineTagRe = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)
)

type frontmatter struct {
	ID           string   `yaml:"id"`
	Title        string   `yaml:"title"`
	Author       string   `yaml:"author"`
	CreationDate string   `yaml:"creation_date"`
	LastChanged  string   `yaml:"last_changed"`
	Tags         []string `yaml:"tags,omitempty"`
}

// Serialize renders the note into its on-disk representation.
func (n *Note) Serialize() ([]byte, error) {
	fm := frontmatter{
		ID:           n.ID,
		Title:        n.Title,
		Author:       n.Author,
		CreationDate: n.CreationDate.UTC().Format(time.RFC3339),
		LastChanged:  n.LastChanged.UTC().Format(time.RFC3339),
		Tags:         n.Tags,
	}
	head, err := yaml.Marshal(&fm)
	if err != nil {
		return nil, fmt.Errorf("note: marshal frontmatter: %w", err)
	}

	var b bytes.Buffer
	b.WriteString(fmDelim + "\n")
	b.Write(head)
	b.WriteString(fmDelim + "\n\n")
	b.WriteString(strings.TrimRight(n.Body, "\n"))
	b.WriteString("\n")
	return b.Bytes(), nil
}

// Parse deserializes a note's on-disk form. It returns a *apperr.ParseError
// when the frontmatter is absent, malformed, or missing required fields.
func Parse(data []byte) (*Note, error) {
	head, body, ok := splitFrontmatter(data)
	if !ok {
		return nil, &apperr.ParseError{Reason: "missing frontmatter"}
	}

	var fm frontmatter
	if err := yaml.Unmarshal(head, &fm); err != nil {
		return nil, &apperr.ParseError{Reason: "invalid frontmatter", Err: err}
	}

	for field, v := range map[string]string{
		"id":            fm.ID,
		"title":         fm.Title,
		"author":        fm.Author,
		"creation_date": fm.CreationDate,
		"last_changed":  fm.LastChanged,
	} {
		if strings.TrimSpace(v) == "" {
			return nil, &apperr.ParseError{Reason: "missing required field " + field}
		}
	}

	created, err := time.Parse(time.RFC3339, fm.CreationDate)
	if err != nil {
		return nil, &apperr.ParseError{Reason: "unparsable creation_date", Err: err}
	}
	changed, err := time.Parse(time.RFC3339, fm.LastChanged)
	if err != nil {
		return nil, &apperr.ParseError{Reason: "unparsable last_changed", Err: err}
	}
	if changed.Before(created) {
		return nil, &apperr.ParseError{Reason: "last_changed precedes creation_date"}
	}

	n := &Note{
		ID:           fm.ID,
		Slug:         Slugify(fm.Title),
		Title:        fm.Title,
		Author:       fm.Author,
		Tags:         normalizeSet(append(fm.Tags, extractTags(body)...)),
		Links:        extractLinks(body),
		CreationDate: created.UTC(),
		LastChanged:  changed.UTC(),
		Body:         body,
	}
	return n, nil
}

// splitFrontmatter separates the YAML block between leading --- fences
// from the body. Unlike permissive Markdown tools, a note without
// frontmatter is malformed here, so ok reports whether both fences exist.
func splitFrontmatter(data []byte) (head []byte, body string, ok bool) {
	trimmed := bytes.TrimLeft(data, "\n\r")
	if !bytes.HasPrefix(trimmed, []byte(fmDelim)) {
		return nil, "", false
	}
	rest := trimmed[len(fmDelim):]
	idx := bytes.Index(rest, []byte("\n"+fmDelim))
	if idx < 0 {
		return nil, "", false
	}
	head = rest[:idx]
	after := rest[idx+1+len(fmDelim):]
	body = strings.TrimLeft(string(after), "\n\r")
	return head, body, true
}

// extractLinks returns the deduplicated, sorted wikilink targets in body,
// normalising [[target|alias]] to target.
func extractLinks(body string) []string {
	matches := wikilinkRe.FindAllStringSubmatch(body, -1)
	var out []string
	for _, m := range matches {
		target := m[1]
		if i := strings.Index(target, "|"); i >= 0 {
			target = target[:i]
		}
		out = append(out, strings.TrimSpace(target))
	}
	return normalizeSet(out)
}

// extractTags collects inline #tags from the body.
func extractTags(body string) []string {
	matches := inlineTagRe.FindAllStringSubmatch(body, -1)
	var out []string
	for _, m := range matches {
		out = append(out, m[1])
	}
	return out
}
