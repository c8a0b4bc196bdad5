package httpmsg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseForm(t *testing.T) {
	s := "id=5&name=a%20b&flag&=x"
	params := ParseForm(s)
	require.Len(t, params, 4)

	assert.Equal(t, "id", params[0].Name)
	assert.Equal(t, "5", s[params[0].ValueStart:params[0].ValueEnd])

	assert.Equal(t, "name", params[1].Name)
	assert.Equal(t, "a b", params[1].Value)
	assert.Equal(t, "a%20b", s[params[1].ValueStart:params[1].ValueEnd])

	assert.Equal(t, "flag", params[2].Name)
	assert.Equal(t, params[2].NameEnd, params[2].ValueStart)
	assert.Equal(t, params[2].ValueStart, params[2].ValueEnd)

	assert.Equal(t, "", params[3].Name)
	assert.Equal(t, "x", params[3].Value)
}

func TestRemoveFormParam(t *testing.T) {
	tests := []struct {
		in, name, want string
		ok             bool
	}{
		{"id=5&x=1", "id", "x=1", true},
		{"x=1&id=5", "id", "x=1", true},
		{"x=1&id=5&y=2", "id", "x=1&y=2", true},
		{"id=5&id=6", "id", "id=6", true},
		{"id=5", "id", "", true},
		{"x=1", "id", "x=1", false},
		{"a%5B%5D=1&b=2", "a[]", "b=2", true},
	}

	for _, tt := range tests {
		t.Run(tt.in+"-"+tt.name, func(t *testing.T) {
			got, ok := removeFormParam(tt.in, tt.name)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScanJSON(t *testing.T) {
	body := `{"user": {"name": "bob \"b\"", "age": 42}, "tags": ["a", 7], "ok": true, "nil": null}`

	members, err := ScanJSON(body)
	require.NoError(t, err)

	byValue := map[string]JSONMember{}
	for _, m := range members {
		byValue[m.Name+"="+m.Value] = m
	}

	name := byValue[`name=bob "b"`]
	assert.Equal(t, byte('"'), name.Kind)
	assert.Equal(t, `"bob \"b\""`, body[name.ValueStart:name.ValueEnd])
	assert.Equal(t, `"name"`, body[name.NameStart:name.NameStart+6])

	age := byValue["age=42"]
	assert.Equal(t, byte('0'), age.Kind)
	assert.Equal(t, "42", body[age.ValueStart:age.ValueEnd])

	elem := byValue["tags=7"]
	assert.Equal(t, -1, elem.NameStart, "array elements carry the enclosing member name")

	assert.Equal(t, byte('t'), byValue["ok=true"].Kind)
	assert.Equal(t, byte('n'), byValue["nil=null"].Kind)

	var user JSONMember
	for _, m := range members {
		if m.Name == "user" {
			user = m
		}
	}
	assert.Equal(t, byte('{'), user.Kind)
	assert.False(t, user.IsScalar())
	assert.Equal(t, `{"name": "bob \"b\"", "age": 42}`, body[user.ValueStart:user.ValueEnd])

	for i := 1; i < len(members); i++ {
		assert.LessOrEqual(t, members[i-1].ValueStart, members[i].ValueStart, "members are ordered by position")
	}
}

func TestScanJSON_Malformed(t *testing.T) {
	_, err := ScanJSON(`{"a": }`)
	assert.ErrorIs(t, err, ErrMalformedJSON)
}

func TestRemoveJSONMember(t *testing.T) {
	tests := []struct {
		name, body, param, want string
	}{
		{"first", `{"qty":3,"sku":"x"}`, "qty", `{"sku":"x"}`},
		{"last", `{"sku":"x", "qty":3}`, "qty", `{"sku":"x"}`},
		{"only", `{"qty": 3}`, "qty", `{}`},
		{"object value", `{"a":{"b":1},"c":2}`, "a", `{"c":2}`},
		{"nested", `{"o":{"qty":1,"z":2}}`, "qty", `{"o":{"z":2}}`},
		{"first of duplicates", `{"qty":1,"qty":2}`, "qty", `{"qty":2}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok, err := removeJSONMember(tt.body, tt.param)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	_, ok, err := removeJSONMember(`{"a":1}`, "qty")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWithRemovedParameter(t *testing.T) {
	get := mustParse(t, "GET /item?id=5&x=1 HTTP/1.1\r\nHost: x\r\n\r\n")
	removed, err := get.WithRemovedParameter("id", ParamURL)
	require.NoError(t, err)
	assert.Equal(t, "/item?x=1", removed.Path())

	_, err = get.WithRemovedParameter("nope", ParamURL)
	assert.ErrorIs(t, err, ErrParameterNotFound)

	form := mustParse(t, "POST /f HTTP/1.1\r\nHost: x\r\nContent-Type: application/x-www-form-urlencoded\r\nContent-Length: 7\r\n\r\nid=5&x=1")
	removed, err = form.WithRemovedParameter("id", ParamBody)
	require.NoError(t, err)
	assert.Equal(t, "x=1", removed.Body())
	assert.Equal(t, "3", removed.Header("Content-Length"))

	js := mustParse(t, "POST /j HTTP/1.1\r\nHost: x\r\nContent-Type: application/json\r\n\r\n{\"qty\":3,\"sku\":\"a\"}")
	removed, err = js.WithRemovedParameter("qty", ParamJSON)
	require.NoError(t, err)
	assert.Equal(t, `{"sku":"a"}`, removed.Body())

	_, err = js.WithRemovedParameter("qty", ParamCookie)
	assert.Error(t, err)
}

func TestCookies(t *testing.T) {
	req := mustParse(t, "GET / HTTP/1.1\r\nHost: x\r\nCookie: session=abc; theme=dark\r\n\r\n")
	raw := req.String()

	cookies := req.Cookies()
	require.Len(t, cookies, 2)
	assert.Equal(t, "session", cookies[0].Name)
	assert.Equal(t, "abc", raw[cookies[0].ValueStart:cookies[0].ValueEnd])
	assert.Equal(t, "theme", raw[cookies[1].NameStart:cookies[1].NameEnd])
	assert.Equal(t, "dark", raw[cookies[1].ValueStart:cookies[1].ValueEnd])
}
