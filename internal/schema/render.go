package schema

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Render prints s as SDL. Types and directives are sorted by name; the
// built-in scalars and directives are left out.
func Render(s *Schema) string {
	if s == nil {
		return ""
	}
	p := &printer{}
	p.schemaBlock(s)

	names := make([]string, 0, len(s.Types))
	for name, t := range s.Types {
		if !isBuiltinType(t) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		p.typ(s.Types[name])
	}

	names = names[:0]
	for name, d := range s.Directives {
		if !isBuiltinDirective(d) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		p.directive(s.Directives[name])
	}
	return strings.TrimRight(p.String(), "\n") + "\n"
}

func isBuiltinType(t *Type) bool {
	switch t {
	case stringType, intType, floatType, booleanType, idType:
		return true
	}
	return false
}

func isBuiltinDirective(d *Directive) bool {
	switch d {
	case includeDirective, skipDirective, deferDirective, deprecatedDirective:
		return true
	}
	return false
}

type printer struct {
	strings.Builder
}

func (p *printer) printf(format string, args ...any) {
	fmt.Fprintf(&p.Builder, format, args...)
}

// schemaBlock is only written when a root type has a non-default name.
func (p *printer) schemaBlock(s *Schema) {
	roots := [][2]string{{"query", s.QueryType}, {"mutation", s.MutationType}, {"subscription", s.SubscriptionType}}
	custom := false
	for _, r := range roots {
		if r[1] != "" && !strings.EqualFold(r[0], r[1]) {
			custom = true
		}
	}
	if !custom {
		return
	}
	p.WriteString("schema {\n")
	for _, r := range roots {
		if r[1] != "" {
			p.printf("  %s: %s\n", r[0], r[1])
		}
	}
	p.WriteString("}\n\n")
}

func (p *printer) description(desc, indent string) {
	if desc == "" {
		return
	}
	p.printf("%s\"\"\"\n%s%s\n%s\"\"\"\n", indent, indent, strings.ReplaceAll(desc, `"""`, `\"""`), indent)
}

func (p *printer) typ(t *Type) {
	p.description(t.Description, "")
	switch t.Kind {
	case TypeKindScalar:
		p.printf("scalar %s", t.Name)
		if t.SpecifiedByURL != nil {
			p.printf(" @specifiedBy(url: %s)", strconv.Quote(*t.SpecifiedByURL))
		}
		p.WriteString("\n\n")
	case TypeKindObject, TypeKindInterface:
		keyword := "type"
		if t.Kind == TypeKindInterface {
			keyword = "interface"
		}
		p.printf("%s %s", keyword, t.Name)
		if len(t.Interfaces) > 0 {
			p.printf(" implements %s", strings.Join(t.Interfaces, " & "))
		}
		p.WriteString(" {\n")
		for _, f := range t.Fields {
			p.description(f.Description, "  ")
			p.printf("  %s%s: %s%s\n", f.Name, p.arguments(f.Arguments), f.Type, deprecated(f.IsDeprecated, f.DeprecationReason))
		}
		p.WriteString("}\n\n")
	case TypeKindUnion:
		p.printf("union %s = %s\n\n", t.Name, strings.Join(t.PossibleTypes, " | "))
	case TypeKindEnum:
		p.printf("enum %s {\n", t.Name)
		for _, v := range t.EnumValues {
			p.description(v.Description, "  ")
			p.printf("  %s%s\n", v.Name, deprecated(v.IsDeprecated, v.DeprecationReason))
		}
		p.WriteString("}\n\n")
	case TypeKindInputObject:
		p.printf("input %s", t.Name)
		if t.OneOf {
			p.WriteString(" @oneOf")
		}
		p.WriteString(" {\n")
		for _, f := range t.InputFields {
			p.description(f.Description, "  ")
			p.printf("  %s%s\n", inputValueSDL(f), deprecated(f.IsDeprecated, f.DeprecationReason))
		}
		p.WriteString("}\n\n")
	}
}

func (p *printer) directive(d *Directive) {
	p.description(d.Description, "")
	p.printf("directive @%s%s", d.Name, p.arguments(d.Arguments))
	if d.IsRepeatable {
		p.WriteString(" repeatable")
	}
	locs := make([]string, len(d.Locations))
	for i, l := range d.Locations {
		locs[i] = string(l)
	}
	p.printf(" on %s\n\n", strings.Join(locs, " | "))
}

func (p *printer) arguments(args []*InputValue) string {
	if len(args) == 0 {
		return ""
	}
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = inputValueSDL(a)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func inputValueSDL(v *InputValue) string {
	s := v.Name + ": " + v.Type.String()
	if v.HasDefault() {
		s += " = " + renderDefault(v)
	}
	return s
}

func deprecated(is bool, reason string) string {
	switch {
	case !is:
		return ""
	case reason == "":
		return " @deprecated"
	}
	return fmt.Sprintf(" @deprecated(reason: %s)", strconv.Quote(reason))
}

func renderDefault(v *InputValue) string {
	if v.DefaultLiteral != nil {
		return v.DefaultLiteral.String()
	}
	return renderValue(v.DefaultValue)
}

// renderValue prints a runtime value as a GraphQL literal. Strings are
// quoted; anything unrecognized, enum values included, is printed as is.
func renderValue(value any) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(v)
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case []any:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = renderValue(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + ": " + renderValue(v[k])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	return fmt.Sprint(value)
}
