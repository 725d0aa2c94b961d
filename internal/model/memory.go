// Package model defines the core memory gateway data types.
package model

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// MemoryType classifies what a memory records.
type MemoryType string

const (
	TypeSemantic    MemoryType = "semantic"
	TypeEpisodic    MemoryType = "episodic"
	TypeProcedural  MemoryType = "procedural"
	TypeProspective MemoryType = "prospective"
)

// AllTypes lists memory types in presentation order for grouped output.
var AllTypes = []MemoryType{TypeSemantic, TypeEpisodic, TypeProcedural, TypeProspective}

// ValidTypes are the allowed memory types.
var ValidTypes = map[MemoryType]bool{
	TypeSemantic:    true,
	TypeEpisodic:    true,
	TypeProcedural:  true,
	TypeProspective: true,
}

// Sensitivity is the privacy classification of a memory, ordered low < medium < high.
type Sensitivity string

const (
	SensitivityLow    Sensitivity = "low"
	SensitivityMedium Sensitivity = "medium"
	SensitivityHigh   Sensitivity = "high"
)

// Rank returns the ordering of a sensitivity level. Unknown values rank
// above high so they never pass a client's ceiling.
func (s Sensitivity) Rank() int {
	switch s {
	case SensitivityLow:
		return 0
	case SensitivityMedium:
		return 1
	case SensitivityHigh:
		return 2
	}
	return 3
}

// ProvenanceEntry records where a memory (or part of it) came from.
// The provenance list on a memory is append-only.
type ProvenanceEntry struct {
	Service   string    `json:"service"`
	Timestamp time.Time `json:"timestamp"`
	Snippet   string    `json:"snippet,omitempty"`
}

// Link is a directed relation from one memory to another. Links are not
// necessarily symmetric and the resulting graph may contain cycles.
type Link struct {
	Rel string `json:"rel"`
	To  string `json:"to"`
}

// Memory is a durable fact, episode, procedure, or future intention.
type Memory struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Type        MemoryType        `json:"type"`
	Branch      string            `json:"branch"`
	Salience    float64           `json:"salience"`
	Sensitivity Sensitivity       `json:"sensitivity"`
	Content     map[string]any    `json:"content"`
	Provenance  []ProvenanceEntry `json:"provenance"`
	Links       []Link            `json:"links,omitempty"`
	UpdatedAt   time.Time         `json:"updated_at"`
	Version     int               `json:"version"`
	DeletedAt   *time.Time        `json:"deleted_at,omitempty"`
}

// Tombstoned reports whether the memory has been soft-deleted. Tombstoned
// memories are excluded from every read path but keep their provenance.
func (m *Memory) Tombstoned() bool {
	return m.DeletedAt != nil
}

// Validate checks the structural invariants of a memory.
func (m *Memory) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("%w: memory id is empty", ErrInvalidArgument)
	}
	if !ValidTypes[m.Type] {
		return fmt.Errorf("%w: unknown memory type %q", ErrInvalidArgument, m.Type)
	}
	if m.Branch == "" {
		return fmt.Errorf("%w: memory branch is empty", ErrInvalidArgument)
	}
	if m.Salience < 0 || m.Salience > 1 {
		return fmt.Errorf("%w: salience %v outside [0,1]", ErrInvalidArgument, m.Salience)
	}
	if m.Sensitivity.Rank() > SensitivityHigh.Rank() {
		return fmt.Errorf("%w: unknown sensitivity %q", ErrInvalidArgument, m.Sensitivity)
	}
	return nil
}

// ContentText flattens the content payload to a searchable string with
// deterministic key order.
func (m *Memory) ContentText() string {
	if len(m.Content) == 0 {
		return ""
	}
	keys := make([]string, 0, len(m.Content))
	for k := range m.Content {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(k)
		b.WriteByte(' ')
		b.WriteString(flatten(m.Content[k]))
	}
	return b.String()
}

func flatten(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		parts := make([]string, len(t))
		for i, e := range t {
			parts[i] = flatten(e)
		}
		return strings.Join(parts, " ")
	case []string:
		return strings.Join(t, " ")
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(t))
		for _, k := range keys {
			parts = append(parts, k+" "+flatten(t[k]))
		}
		return strings.Join(parts, " ")
	default:
		return fmt.Sprint(v)
	}
}

// BranchMatches reports whether branch equals prefix or falls under it as a
// path, so "Travel" covers "Travel/Normandy" but not "Travels".
func BranchMatches(branch, prefix string) bool {
	if prefix == "" {
		return false
	}
	if branch == prefix {
		return true
	}
	return strings.HasPrefix(branch, prefix+"/")
}

// ValidateContent checks the per-type content schema at the candidate to
// memory boundary. Payloads stay loose key-value maps; each type has a
// minimal required shape so approval never turns an empty proposal into a
// memory.
func ValidateContent(t MemoryType, content map[string]any) error {
	if len(content) == 0 {
		return fmt.Errorf("%w: %s content is empty", ErrInvalidArgument, t)
	}
	var anyOf []string
	switch t {
	case TypeEpisodic:
		anyOf = []string{"summary", "when"}
	case TypeProcedural:
		anyOf = []string{"steps"}
	case TypeProspective:
		anyOf = []string{"due", "intent"}
	default:
		return nil // semantic content is free-form
	}
	for _, k := range anyOf {
		if _, ok := content[k]; ok {
			return nil
		}
	}
	return fmt.Errorf("%w: %s content needs one of %v", ErrInvalidArgument, t, anyOf)
}
