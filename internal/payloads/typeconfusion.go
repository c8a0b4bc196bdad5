// Package payloads provides the alternate value shapes used to probe for
// type confusion
package payloads

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// GarbageValue replaces a parameter value to prove the endpoint reads it
const GarbageValue = "s:dfh@%^124g2376#@<<"

// NumberGarbage replaces a numeric JSON value in the same role, since a
// string would itself be a type change
const NumberGarbage = "65534"

// Duplicate-key disambiguators appended to the second copy of the value
const (
	QuerySuffix = "1"
	BodySuffix  = "2"
)

// MutationKind names an alternate representation of a value
type MutationKind int

const (
	DuplicateKey MutationKind = iota
	BracketArray
	IndexedArray
	NestedArray
	NumberCoercion
	StringCoercion
)

func (k MutationKind) String() string {
	switch k {
	case DuplicateKey:
		return "duplicate_key"
	case BracketArray:
		return "bracket_array"
	case IndexedArray:
		return "indexed_array"
	case NestedArray:
		return "nested_array"
	case NumberCoercion:
		return "number_coercion"
	case StringCoercion:
		return "string_coercion"
	default:
		return "unknown"
	}
}

// Mutation renders a parameter as a text fragment of another shape
type Mutation struct {
	Kind   MutationKind
	Render func(name, value string) string
}

// FormMutations returns the urlencoded array mutations in probe order. The
// value is URL-encoded; the second copy carries suffix.
func FormMutations(suffix string) []Mutation {
	pair := func(first, second string) func(name, value string) string {
		return func(name, value string) string {
			v := url.QueryEscape(value)
			return fmt.Sprintf("%s%s=%s&%s%s=%s%s", name, first, v, name, second, v, suffix)
		}
	}
	return []Mutation{
		{Kind: DuplicateKey, Render: pair("", "")},
		{Kind: BracketArray, Render: pair("[]", "[]")},
		{Kind: IndexedArray, Render: pair("[0]", "[1]")},
	}
}

// JSONArrayMutations returns the array wraps for a string property. Render
// expects the value already serialized as a JSON string literal.
func JSONArrayMutations() []Mutation {
	return []Mutation{
		{Kind: BracketArray, Render: func(name, serialized string) string {
			return `"` + name + `":[` + serialized + `]`
		}},
		{Kind: NestedArray, Render: func(name, serialized string) string {
			return `"` + name + `":[[` + serialized + `]]`
		}},
	}
}

// NumberGarbageMember renders a JSON member whose value is NumberGarbage
func NumberGarbageMember(name string) string {
	return `"` + name + `":` + NumberGarbage
}

// ReplaceFirstFormParam replaces the first "name=<value>" in s with
// fragment. The value runs up to the next '&', '#' or '$'. The name is not
// anchored, so "id" also matches inside "userid=".
func ReplaceFirstFormParam(s, name, fragment string) string {
	re := regexp.MustCompile(regexp.QuoteMeta(name) + `=[^&#$]*`)
	return replaceFirst(re, s, fragment)
}

// ReplaceFirstJSONMember replaces the first `"name" : literal` in body with
// fragment. literal is matched as written.
func ReplaceFirstJSONMember(body, name, literal, fragment string) string {
	re := regexp.MustCompile(`"` + regexp.QuoteMeta(name) + `"\s*:\s*` + regexp.QuoteMeta(literal))
	return replaceFirst(re, body, fragment)
}

// HasJSONKey reports whether the quoted name occurs anywhere in body
func HasJSONKey(body, name string) bool {
	return strings.Contains(body, `"`+name+`"`)
}

func replaceFirst(re *regexp.Regexp, s, replacement string) string {
	loc := re.FindStringIndex(s)
	if loc == nil {
		return s
	}
	return s[:loc[0]] + replacement + s[loc[1]:]
}
