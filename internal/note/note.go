// Package note defines the zettel model: creation, validation, and the
// slug/id derivation rules shared by every component that handles notes.
package note

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/okvist/zet/internal/apperr"
)

// Note is a single zettel. Tags and Links are sorted, deduplicated sets
// (nil when empty). Links is always exactly the set of wikilink targets
// appearing in Body; Tags is the union of frontmatter and inline #tags.
type Note struct {
	ID           string
	Slug         string
	Title        string
	Author       string
	Tags         []string
	Links        []string
	CreationDate time.Time
	LastChanged  time.Time
	Body         string
}

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

// New builds a fresh note. The id is derived from the creation instant,
// the slug from the title. Explicit links are rendered into a trailing
// Links section of the body so that Links stays body-derived.
func New(title, author string, tags, links []string, body string) (*Note, error) {
	if err := (validation.Errors{
		"title":  validation.Validate(title, validation.Required),
		"author": validation.Validate(author, validation.Required),
	}).Filter(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrValidation, err)
	}
	slug := Slugify(title)
	if slug == "" {
		return nil, fmt.Errorf("%w: title %q contains no usable characters", apperr.ErrValidation, title)
	}

	now := time.Now().UTC().Truncate(time.Second)

	full := composeBody(title, body, links)
	n := &Note{
		ID:           nextID(),
		Slug:         slug,
		Title:        title,
		Author:       author,
		Tags:         normalizeSet(tags),
		Links:        extractLinks(full),
		CreationDate: now,
		LastChanged:  now,
		Body:         full,
	}
	n.Tags = normalizeSet(append(n.Tags, extractTags(full)...))
	return n, nil
}

// NewID derives a note id from t: UTC compact timestamp plus microseconds.
// Monotonically sortable.
func NewID(t time.Time) string {
	t = t.UTC()
	return t.Format("20060102150405") + fmt.Sprintf("%06d", t.Nanosecond()/1000)
}

var (
	idMu   sync.Mutex
	lastID time.Time
)

// nextID returns a fresh time-derived id, bumping the instant by one
// microsecond when two notes are created within the same microsecond so
// ids stay unique and strictly increasing within a process.
func nextID() string {
	idMu.Lock()
	defer idMu.Unlock()
	now := time.Now().UTC().Truncate(time.Microsecond)
	if !now.After(lastID) {
		now = lastID.Add(time.Microsecond)
	}
	lastID = now
	return NewID(now)
}

// Slugify normalizes a title into a filesystem-safe slug: lowercase,
// runs of non-alphanumerics collapsed to a single dash. Idempotent.
func Slugify(title string) string {
	s := slugRe.ReplaceAllString(strings.ToLower(title), "-")
	return strings.Trim(s, "-")
}

// Filename returns the vault-relative file name for the note.
func (n *Note) Filename() string {
	return n.Slug + ".md"
}

// Touch returns a copy of n with LastChanged set to now.
func (n *Note) Touch() *Note {
	c := *n
	c.LastChanged = time.Now().UTC().Truncate(time.Second)
	return &c
}

// composeBody assembles the initial body of a new note: title heading,
// user text, and an explicit Links section for any requested links that
// the text does not already carry.
func composeBody(title, body string, links []string) string {
	var b strings.Builder
	b.WriteString("# " + title + "\n")
	if body != "" {
		b.WriteString("\n" + strings.TrimRight(body, "\n") + "\n")
	}

	present := make(map[string]struct{})
	for _, l := range extractLinks(body) {
		present[l] = struct{}{}
	}
	var missing []string
	for _, l := range normalizeSet(links) {
		if _, ok := present[l]; !ok {
			missing = append(missing, l)
		}
	}
	if len(missing) > 0 {
		b.WriteString("\n## Links\n\n")
		for _, l := range missing {
			b.WriteString("[[" + l + "]]\n")
		}
	}
	return b.String()
}

// normalizeSet trims, deduplicates, and sorts; returns nil when empty.
func normalizeSet(ss []string) []string {
	seen := make(map[string]struct{}, len(ss))
	var out []string
	for _, s := range ss {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
