package memory

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Source identifies where a memory originated.
type Source string

const (
	SourceConversation Source = "conversation"
	SourceManual       Source = "manual"
	SourceDocument     Source = "document"
	SourceSystem       Source = "system"
)

// Metadata carries the descriptive fields attached to a memory item. The
// well-known fields are typed; any other key a caller supplies lands in
// Extra and round-trips through serialization untouched.
type Metadata struct {
	Type      string
	Source    Source
	Tags      []string
	CreatedAt time.Time
	UpdatedAt time.Time
	Extra     map[string]interface{}
}

// Metadata serializes flat: well-known keys and Extra keys share one JSON
// object, so {"type":"fact","project":"x"} puts "project" into Extra.
func (m Metadata) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, 5+len(m.Extra))
	for k, v := range m.Extra {
		out[k] = v
	}
	if m.Type != "" {
		out["type"] = m.Type
	}
	if m.Source != "" {
		out["source"] = string(m.Source)
	}
	if m.Tags != nil {
		out["tags"] = m.Tags
	}
	if !m.CreatedAt.IsZero() {
		out["created_at"] = m.CreatedAt.Format(time.RFC3339Nano)
	}
	if !m.UpdatedAt.IsZero() {
		out["updated_at"] = m.UpdatedAt.Format(time.RFC3339Nano)
	}
	return json.Marshal(out)
}

func (m *Metadata) UnmarshalJSON(data []byte) error {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = Metadata{}
	for key, val := range raw {
		switch key {
		case "type":
			if s, ok := val.(string); ok {
				m.Type = s
				continue
			}
		case "source":
			if s, ok := val.(string); ok {
				m.Source = Source(s)
				continue
			}
		case "tags":
			if list, ok := val.([]interface{}); ok {
				tags := make([]string, 0, len(list))
				for _, t := range list {
					if s, ok := t.(string); ok {
						tags = append(tags, s)
					}
				}
				m.Tags = tags
				continue
			}
		case "created_at":
			if ts, ok := parseTimestamp(val); ok {
				m.CreatedAt = ts
				continue
			}
		case "updated_at":
			if ts, ok := parseTimestamp(val); ok {
				m.UpdatedAt = ts
				continue
			}
		}
		if m.Extra == nil {
			m.Extra = make(map[string]interface{})
		}
		m.Extra[key] = val
	}
	return nil
}

func parseTimestamp(val interface{}) (time.Time, bool) {
	s, ok := val.(string)
	if !ok {
		return time.Time{}, false
	}
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// get returns the metadata value for a filter key as a string.
func (m Metadata) get(key string) (string, bool) {
	switch key {
	case "type":
		return m.Type, m.Type != ""
	case "source":
		return string(m.Source), m.Source != ""
	case "created_at":
		if m.CreatedAt.IsZero() {
			return "", false
		}
		return m.CreatedAt.Format(time.RFC3339Nano), true
	case "updated_at":
		if m.UpdatedAt.IsZero() {
			return "", false
		}
		return m.UpdatedAt.Format(time.RFC3339Nano), true
	}
	if v, ok := m.Extra[key]; ok {
		if s, ok := v.(string); ok {
			return s, true
		}
		return fmt.Sprintf("%v", v), true
	}
	return "", false
}

// Matches reports whether the metadata satisfies every filter entry. Tags
// match when the filter value equals any tag.
func (m Metadata) Matches(filter map[string]string) bool {
	for key, want := range filter {
		if key == "tags" {
			if !containsString(m.Tags, want) {
				return false
			}
			continue
		}
		got, ok := m.get(key)
		if !ok || got != want {
			return false
		}
	}
	return true
}

func containsString(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}

func (m Metadata) clone() Metadata {
	out := m
	if m.Tags != nil {
		out.Tags = append([]string(nil), m.Tags...)
	}
	if m.Extra != nil {
		out.Extra = make(map[string]interface{}, len(m.Extra))
		for k, v := range m.Extra {
			out.Extra[k] = v
		}
	}
	return out
}

// Item is a single stored memory: an id, the remembered text, and its
// metadata.
type Item struct {
	ID       string   `json:"id"`
	Memory   string   `json:"memory"`
	Metadata Metadata `json:"metadata"`
}

// NewItem builds an item with a fresh UUID and creation timestamps.
func NewItem(text string, meta Metadata) *Item {
	item := &Item{ID: uuid.NewString(), Memory: text, Metadata: meta}
	now := time.Now().UTC()
	if item.Metadata.CreatedAt.IsZero() {
		item.Metadata.CreatedAt = now
	}
	if item.Metadata.UpdatedAt.IsZero() {
		item.Metadata.UpdatedAt = item.Metadata.CreatedAt
	}
	return item
}

// normalize fills in the id and timestamps a caller left unset.
func (i *Item) normalize() {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if i.Metadata.CreatedAt.IsZero() {
		i.Metadata.CreatedAt = now
	}
	if i.Metadata.UpdatedAt.IsZero() {
		i.Metadata.UpdatedAt = i.Metadata.CreatedAt
	}
}

// Validate checks the invariants every stored item must hold: a UUID id
// and non-blank memory text.
func (i *Item) Validate() error {
	if _, err := uuid.Parse(i.ID); err != nil {
		return fmt.Errorf("%w: id %q is not a valid UUID", ErrInvalidItem, i.ID)
	}
	if strings.TrimSpace(i.Memory) == "" {
		return fmt.Errorf("%w: memory text is empty", ErrInvalidItem)
	}
	return nil
}

func (i *Item) clone() *Item {
	if i == nil {
		return nil
	}
	out := *i
	out.Metadata = i.Metadata.clone()
	return &out
}

// SearchResult pairs an item with its relevance score. Higher is more
// relevant for both backends.
type SearchResult struct {
	Item  *Item
	Score float64
}
