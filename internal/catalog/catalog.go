// Package catalog loads the curated topic sequences used by casual
// transcription.
package catalog

import (
	_ "embed"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/gosimple/slug"
	"gopkg.in/yaml.v3"

	"github.com/verse-scribe/internal/bible"
	"github.com/verse-scribe/internal/types"
)

//go:embed topics.yaml
var defaultTopics []byte

// File is the top-level structure of a topics YAML file.
//
// Example:
//
//	topics:
//	  - id: love
//	    title: 사랑
//	    verses:
//	      - {book: 요한일서, chapter: 4, verse: 8}
type File struct {
	Topics []TopicDefinition `yaml:"topics"`
}

// TopicDefinition is one topic as written in YAML
type TopicDefinition struct {
	ID          string             `yaml:"id"`
	Title       string             `yaml:"title"`
	Description string             `yaml:"description"`
	Verses      []VerseDefinition `yaml:"verses"`
}

// VerseDefinition references one verse; Text is optional
type VerseDefinition struct {
	Book    string `yaml:"book"`
	Chapter int    `yaml:"chapter"`
	Verse   int    `yaml:"verse"`
	Text    string `yaml:"text"`
}

// Topic is a validated topic with canonical book ids
type Topic struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Verses      []types.Verse `json:"verses"`
}

// Keys returns the verse keys of the topic in curation order
func (t *Topic) Keys() []types.VerseKey {
	keys := make([]types.VerseKey, len(t.Verses))
	for i, v := range t.Verses {
		keys[i] = v.Key()
	}
	return keys
}

// Complete reports whether every verse carries its text
func (t *Topic) Complete() bool {
	for _, v := range t.Verses {
		if v.Text == "" {
			return false
		}
	}
	return true
}

// Summary is the list view of a topic
type Summary struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	VerseCount  int    `json:"verseCount"`
}

// Catalog is an immutable set of topics in file order
type Catalog struct {
	topics []*Topic
	byID   map[string]*Topic
}

// Default returns the catalog shipped with the binary
func Default() (*Catalog, error) {
	return Parse(strings.NewReader(string(defaultTopics)))
}

// Load reads a catalog from path, or the embedded default when path is empty
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}

	f, err := os.Open(path) // #nosec G304 - operator supplied config path
	if err != nil {
		return nil, fmt.Errorf("catalog: open %q: %w", path, err)
	}
	defer f.Close()

	c, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("catalog: parse %q: %w", path, err)
	}
	return c, nil
}

// Parse decodes and validates catalog YAML
func Parse(r io.Reader) (*Catalog, error) {
	var file File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("catalog: decode yaml: %w", err)
	}

	c := &Catalog{byID: make(map[string]*Topic, len(file.Topics))}
	for i, def := range file.Topics {
		topic, err := def.build()
		if err != nil {
			return nil, fmt.Errorf("catalog: topic %d: %w", i+1, err)
		}
		if _, dup := c.byID[topic.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate topic id %q", topic.ID)
		}
		c.byID[topic.ID] = topic
		c.topics = append(c.topics, topic)
	}

	if len(c.topics) == 0 {
		return nil, fmt.Errorf("catalog: no topics defined")
	}
	return c, nil
}

func (d TopicDefinition) build() (*Topic, error) {
	id := strings.TrimSpace(d.ID)
	if id == "" {
		id = slug.Make(d.Title)
	}
	if id == "" {
		return nil, fmt.Errorf("id or title is required")
	}
	if len(d.Verses) == 0 {
		return nil, fmt.Errorf("topic %q has no verses", id)
	}

	t := &Topic{ID: id, Title: d.Title, Description: d.Description}
	seen := make(map[types.VerseKey]bool, len(d.Verses))
	for _, v := range d.Verses {
		book, ok := bible.LookupBook(v.Book)
		if !ok {
			return nil, fmt.Errorf("topic %q: unknown book %q", id, v.Book)
		}
		if !book.HasChapter(v.Chapter) || v.Verse <= 0 {
			return nil, fmt.Errorf("topic %q: invalid reference %s %d:%d", id, v.Book, v.Chapter, v.Verse)
		}
		verse := types.Verse{Book: book.ID, Chapter: v.Chapter, Number: v.Verse, Text: strings.TrimSpace(v.Text)}
		if seen[verse.Key()] {
			return nil, fmt.Errorf("topic %q: duplicate verse %s", id, verse.Reference())
		}
		seen[verse.Key()] = true
		t.Verses = append(t.Verses, verse)
	}
	return t, nil
}

// Get returns a topic by id
func (c *Catalog) Get(id string) (*Topic, bool) {
	t, ok := c.byID[id]
	return t, ok
}

// List returns topic summaries in file order
func (c *Catalog) List() []Summary {
	out := make([]Summary, len(c.topics))
	for i, t := range c.topics {
		out[i] = Summary{ID: t.ID, Title: t.Title, Description: t.Description, VerseCount: len(t.Verses)}
	}
	return out
}

// IDs returns the sorted topic ids
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.byID))
	for id := range c.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
