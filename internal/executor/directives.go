package executor

import (
	language "github.com/hanpama/gqlexec/internal/language"
	schema "github.com/hanpama/gqlexec/internal/schema"
)

// shouldIncludeNode evaluates @skip and @include. Skip wins when both apply.
func shouldIncludeNode(sch *schema.Schema, directives language.DirectiveList, variables map[string]any) bool {
	if skip := directives.ForName("skip"); skip != nil {
		if v, ok := directiveArgument(sch, skip, "if", variables); ok && v == true {
			return false
		}
	}
	if include := directives.ForName("include"); include != nil {
		if v, ok := directiveArgument(sch, include, "if", variables); ok && v == false {
			return false
		}
	}
	return true
}

// deferDirective reports whether @defer applies and its label.
func deferDirective(sch *schema.Schema, directives language.DirectiveList, variables map[string]any) (string, bool) {
	d := directives.ForName("defer")
	if d == nil {
		return "", false
	}
	if v, ok := directiveArgument(sch, d, "if", variables); ok && v == false {
		return "", false
	}
	label, _ := directiveArgument(sch, d, "label", variables)
	s, _ := label.(string)
	return s, true
}

// directiveArgument coerces the named argument of a directive the same way
// field arguments are coerced.
func directiveArgument(sch *schema.Schema, d *language.Directive, name string, variables map[string]any) (any, bool) {
	def := sch.Directive(d.Name)
	if def == nil {
		def = schema.BuiltinDirective(d.Name)
	}
	if def == nil {
		return nil, false
	}
	args, err := ArgumentValues(sch, def.Arguments, d.Arguments, variables)
	if err != nil {
		return nil, false
	}
	v, ok := args[name]
	return v, ok
}
