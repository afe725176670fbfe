// Package casing translates record keys between client camelCase and
// remote snake_case.
package casing

import (
	"strings"
	"unicode"
)

// CamelToSnake converts "supervisorNationalId" to "supervisor_national_id".
func CamelToSnake(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 4)
	for _, r := range s {
		if unicode.IsUpper(r) {
			b.WriteByte('_')
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SnakeToCamel converts "supervisor_national_id" to "supervisorNationalId".
// An underscore not followed by a letter is kept.
func SnakeToCamel(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r == '_' && i+1 < len(runes) && unicode.IsLetter(runes[i+1]) {
			b.WriteRune(unicode.ToUpper(runes[i+1]))
			i++
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Reversible reports whether a client field name survives
// CamelToSnake followed by SnakeToCamel unchanged.
func Reversible(name string) bool {
	return SnakeToCamel(CamelToSnake(name)) == name
}

// ToRemoteShape returns a copy of v with every map key converted to snake_case.
// Maps and slices are walked recursively; other values are returned as is.
func ToRemoteShape(v any) any {
	return convert(v, CamelToSnake)
}

// ToLocalShape returns a copy of v with every map key converted to camelCase.
func ToLocalShape(v any) any {
	return convert(v, SnakeToCamel)
}

func convert(v any, key func(string) string) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[key(k)] = convert(val, key)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = convert(val, key)
		}
		return out
	case []map[string]any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = convert(val, key)
		}
		return out
	default:
		return v
	}
}
