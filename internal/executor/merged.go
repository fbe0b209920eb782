package executor

import (
	language "github.com/hanpama/gqlexec/internal/language"
)

// MergedField is the non-empty group of field nodes that share one response
// key within a selection set. The first node is the representative one.
type MergedField struct {
	fields   []*language.Field
	deferred int
	label    string
}

// Name is the schema field name.
func (m *MergedField) Name() string { return m.fields[0].Name }

// ResultKey is the alias, or the name when unaliased.
func (m *MergedField) ResultKey() string {
	if a := m.fields[0].Alias; a != "" {
		return a
	}
	return m.fields[0].Name
}

func (m *MergedField) SingleField() *language.Field     { return m.fields[0] }
func (m *MergedField) Fields() []*language.Field        { return m.fields }
func (m *MergedField) Arguments() language.ArgumentList { return m.fields[0].Arguments }
func (m *MergedField) IsSingleField() bool              { return len(m.fields) == 1 }

// Deferred reports whether every node of the field asked for deferred
// delivery, and the label of the first such request.
func (m *MergedField) Deferred() (label string, ok bool) {
	return m.label, m.deferred > 0 && m.deferred == len(m.fields)
}

// MergedSelectionSet maps response keys to merged fields in document order.
type MergedSelectionSet struct {
	keys   []string
	fields map[string]*MergedField
}

func newMergedSelectionSet() *MergedSelectionSet {
	return &MergedSelectionSet{fields: make(map[string]*MergedField)}
}

func (s *MergedSelectionSet) add(key string, f *language.Field, deferred bool, label string) {
	mf, ok := s.fields[key]
	if !ok {
		mf = &MergedField{}
		s.fields[key] = mf
		s.keys = append(s.keys, key)
	}
	mf.fields = append(mf.fields, f)
	if deferred {
		if mf.deferred == 0 {
			mf.label = label
		}
		mf.deferred++
	}
}

func (s *MergedSelectionSet) Keys() []string { return s.keys }

func (s *MergedSelectionSet) Get(key string) *MergedField { return s.fields[key] }

func (s *MergedSelectionSet) Len() int { return len(s.keys) }

func (s *MergedSelectionSet) IsEmpty() bool { return len(s.keys) == 0 }

// Fields returns the merged fields in key order.
func (s *MergedSelectionSet) Fields() []*MergedField {
	out := make([]*MergedField, len(s.keys))
	for i, k := range s.keys {
		out[i] = s.fields[k]
	}
	return out
}
