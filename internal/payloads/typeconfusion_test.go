package payloads

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func render(ms []Mutation, name, value string) []string {
	var out []string
	for _, m := range ms {
		out = append(out, m.Render(name, value))
	}
	return out
}

func TestFormMutations_Query(t *testing.T) {
	ms := FormMutations(QuerySuffix)
	require.Len(t, ms, 3)

	assert.Equal(t, []MutationKind{DuplicateKey, BracketArray, IndexedArray},
		[]MutationKind{ms[0].Kind, ms[1].Kind, ms[2].Kind})
	assert.Equal(t, []string{
		"id=5&id=51",
		"id[]=5&id[]=51",
		"id[0]=5&id[1]=51",
	}, render(ms, "id", "5"))
}

func TestFormMutations_BodyUsesOtherSuffix(t *testing.T) {
	assert.Equal(t, []string{
		"pin=42&pin=422",
		"pin[]=42&pin[]=422",
		"pin[0]=42&pin[1]=422",
	}, render(FormMutations(BodySuffix), "pin", "42"))
}

func TestFormMutations_EncodesValue(t *testing.T) {
	got := FormMutations(QuerySuffix)[0].Render("q", "a b&c")
	assert.Equal(t, "q=a+b%26c&q=a+b%26c1", got)
}

func TestJSONArrayMutations(t *testing.T) {
	assert.Equal(t, []string{
		`"qty":["3"]`,
		`"qty":[["3"]]`,
	}, render(JSONArrayMutations(), "qty", `"3"`))
}

func TestNumberGarbageMember(t *testing.T) {
	assert.Equal(t, `"qty":65534`, NumberGarbageMember("qty"))
}

func TestReplaceFirstFormParam(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		param    string
		fragment string
		expected string
	}{
		{"middle", "a=1&id=5&b=2", "id", "id=5&id=51", "a=1&id=5&id=51&b=2"},
		{"first occurrence only", "id=5&id=6", "id", "X", "X&id=6"},
		{"stops at hash", "id=5#frag", "id", "X", "X#frag"},
		{"stops at dollar", "id=5$x", "id", "X", "X$x"},
		{"empty value", "id=&b=2", "id", "X", "X&b=2"},
		{"unanchored name", "userid=9&id=5", "id", "X", "userX&id=5"},
		{"regex characters in name", "a.b=1&axb=2", "a.b", "X", "X&axb=2"},
		{"dollar in fragment kept literally", "id=5", "id", "id=$1", "id=$1"},
		{"missing", "x=1", "id", "X", "x=1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ReplaceFirstFormParam(tt.input, tt.param, tt.fragment))
		})
	}
}

func TestReplaceFirstJSONMember(t *testing.T) {
	body := `{"qty" : "3", "other": {"qty":"3"}}`
	got := ReplaceFirstJSONMember(body, "qty", `"3"`, `"qty":["3"]`)
	assert.Equal(t, `{"qty":["3"], "other": {"qty":"3"}}`, got)

	num := ReplaceFirstJSONMember(`{"price":3.5}`, "price", "3.5", NumberGarbageMember("price"))
	assert.Equal(t, `{"price":65534}`, num)

	unchanged := ReplaceFirstJSONMember(`{"price":305}`, "price", "3.5", "X")
	assert.Equal(t, `{"price":305}`, unchanged, "the literal is not a pattern")
}

func TestHasJSONKey(t *testing.T) {
	assert.True(t, HasJSONKey(`{"qty":3}`, "qty"))
	assert.False(t, HasJSONKey(`{"quantity":3}`, "qty"))
}
