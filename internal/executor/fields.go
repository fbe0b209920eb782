package executor

import (
	language "github.com/hanpama/gqlexec/internal/language"
	schema "github.com/hanpama/gqlexec/internal/schema"
)

// CollectorParams is what field collection needs besides the selection set.
type CollectorParams struct {
	Schema     *schema.Schema
	ObjectType *schema.Type
	Fragments  language.FragmentDefinitions
	Variables  map[string]any

	// IgnoreDefer collects deferred fields as ordinary ones.
	IgnoreDefer bool
}

// CollectFields groups the fields of selectionSet that apply to
// p.ObjectType by response key, in document order.
func CollectFields(p CollectorParams, selectionSet language.SelectionSet) *MergedSelectionSet {
	out := newMergedSelectionSet()
	c := collector{params: p, visited: make(map[string]bool), out: out}
	c.collect(selectionSet, deferState{})
	return out
}

// CollectSubfields collects the merged sub-selections of every node of
// field, sharing one set of visited fragments.
func CollectSubfields(p CollectorParams, field *MergedField) *MergedSelectionSet {
	out := newMergedSelectionSet()
	c := collector{params: p, visited: make(map[string]bool), out: out}
	for _, f := range field.Fields() {
		c.collect(f.SelectionSet, deferState{})
	}
	return out
}

type deferState struct {
	on    bool
	label string
}

type collector struct {
	params  CollectorParams
	visited map[string]bool
	out     *MergedSelectionSet
}

func (c *collector) collect(selectionSet language.SelectionSet, d deferState) {
	p := c.params
	for _, selection := range selectionSet {
		switch sel := selection.(type) {
		case *language.Field:
			if !shouldIncludeNode(p.Schema, sel.Directives, p.Variables) {
				continue
			}
			fd := c.deferOf(sel.Directives, d)
			responseName := sel.Alias
			if responseName == "" {
				responseName = sel.Name
			}
			c.out.add(responseName, sel, fd.on, fd.label)

		case *language.InlineFragment:
			if !shouldIncludeNode(p.Schema, sel.Directives, p.Variables) {
				continue
			}
			if !doesFragmentConditionMatch(p.Schema, sel.TypeCondition, p.ObjectType) {
				continue
			}
			c.collect(sel.SelectionSet, c.deferOf(sel.Directives, d))

		case *language.FragmentSpread:
			if !shouldIncludeNode(p.Schema, sel.Directives, p.Variables) {
				continue
			}
			if c.visited[sel.Name] {
				continue
			}
			c.visited[sel.Name] = true

			fragmentDef := p.Fragments.ForName(sel.Name)
			if fragmentDef == nil {
				continue
			}
			if !shouldIncludeNode(p.Schema, fragmentDef.Directives, p.Variables) {
				continue
			}
			if !doesFragmentConditionMatch(p.Schema, fragmentDef.TypeCondition, p.ObjectType) {
				continue
			}
			c.collect(fragmentDef.SelectionSet, c.deferOf(sel.Directives, d))
		}
	}
}

func (c *collector) deferOf(directives language.DirectiveList, inherited deferState) deferState {
	if c.params.IgnoreDefer {
		return deferState{}
	}
	if label, ok := deferDirective(c.params.Schema, directives, c.params.Variables); ok {
		return deferState{on: true, label: label}
	}
	return inherited
}

// doesFragmentConditionMatch reports whether a fragment with the given type
// condition applies to objectType: an absent condition, the object type
// itself, or an abstract type the object is a possible type of.
func doesFragmentConditionMatch(sch *schema.Schema, condition string, objectType *schema.Type) bool {
	if condition == "" || condition == objectType.Name {
		return true
	}
	condType := sch.Type(condition)
	if condType == nil || !condType.IsAbstract() {
		return false
	}
	return sch.IsPossibleType(condType, objectType)
}
