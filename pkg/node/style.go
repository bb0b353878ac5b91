package node

import (
	"strings"
)

// Declaration is one CSS property/value pair.
type Declaration struct {
	Property string
	Value    string
}

// Style is an ordered list of declarations. Later declarations of the same
// property are folded into the first by Set.
type Style []Declaration

// Get returns the value of prop.
func (s Style) Get(prop string) (string, bool) {
	for _, d := range s {
		if d.Property == prop {
			return d.Value, true
		}
	}
	return "", false
}

// Set returns s with prop set to value, keeping its position if present.
func (s Style) Set(prop, value string) Style {
	for i, d := range s {
		if d.Property == prop {
			s[i].Value = value
			return s
		}
	}
	return append(s, Declaration{prop, value})
}

// Delete returns s without prop.
func (s Style) Delete(prop string) Style {
	out := s[:0]
	for _, d := range s {
		if d.Property != prop {
			out = append(out, d)
		}
	}
	return out
}

// Map returns the declarations as a map.
func (s Style) Map() map[string]string {
	m := make(map[string]string, len(s))
	for _, d := range s {
		m[d.Property] = d.Value
	}
	return m
}

// String renders s back to inline-style syntax.
func (s Style) String() string {
	parts := make([]string, len(s))
	for i, d := range s {
		parts[i] = d.Property + ":" + d.Value
	}
	return strings.Join(parts, ";")
}

// ParseStyle parses an inline style attribute. Declarations are split on
// semicolons outside parentheses and quotes so data URIs inside url(...)
// survive intact. "&amp;" is unescaped first. Quotes around font-family
// names are stripped.
func ParseStyle(raw string) Style {
	raw = strings.ReplaceAll(raw, "&amp;", "&")

	var (
		out   Style
		depth int
		quote rune
		start int
	)
	flush := func(end int) {
		if d, ok := parseDeclaration(raw[start:end]); ok {
			out = out.Set(d.Property, d.Value)
		}
		start = end + 1
	}
	for i, r := range raw {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
		case r == '(':
			depth++
		case r == ')':
			if depth > 0 {
				depth--
			}
		case r == ';' && depth == 0:
			flush(i)
		}
	}
	if start < len(raw) {
		flush(len(raw))
	}
	return out
}

func parseDeclaration(s string) (Declaration, bool) {
	prop, value, ok := strings.Cut(s, ":")
	if !ok {
		return Declaration{}, false
	}
	prop = strings.ToLower(strings.TrimSpace(prop))
	value = strings.TrimSpace(value)
	if prop == "" || value == "" {
		return Declaration{}, false
	}
	if prop == "font-family" {
		value = stripFamilyQuotes(value)
	}
	return Declaration{prop, value}, true
}

func stripFamilyQuotes(v string) string {
	families := strings.Split(v, ",")
	for i, f := range families {
		families[i] = strings.Trim(strings.TrimSpace(f), `"'`)
	}
	return strings.Join(families, ", ")
}
