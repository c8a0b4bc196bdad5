package inference

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-json-experiment/json"
)

// ErrUnserializable is returned when a value cannot be written as a JSON
// string, for example because it is not valid UTF-8
var ErrUnserializable = errors.New("value cannot be serialized as a JSON string")

// JSONType is the inferred type of a JSON property value
type JSONType string

const (
	JSONString JSONType = "string"
	JSONNumber JSONType = "number"
	JSONBool   JSONType = "bool"
	JSONObject JSONType = "object"
	JSONArray  JSONType = "array"
)

// SerializeJSONString returns value as a quoted, escaped JSON string literal
func SerializeJSONString(value string) (string, error) {
	b, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnserializable, err)
	}
	return string(b), nil
}

// ClassifyJSONProperty infers the type of property name in the raw JSON
// body, given its current value as text. The value is a string when its
// string literal appears right after the quoted key; otherwise the type is
// read from the shape of the value itself and anything not recognised is a
// number.
func ClassifyJSONProperty(body, name, value string) (JSONType, error) {
	serialized, err := SerializeJSONString(value)
	if err != nil {
		return "", err
	}

	pattern, err := regexp.Compile(`"` + regexp.QuoteMeta(name) + `"\s*:\s*` + regexp.QuoteMeta(serialized))
	if err != nil {
		return "", fmt.Errorf("compiling property pattern for %q: %w", name, err)
	}
	if pattern.MatchString(body) {
		return JSONString, nil
	}

	switch {
	case strings.HasPrefix(value, "{"):
		return JSONObject, nil
	case strings.HasPrefix(value, "["):
		return JSONArray, nil
	case value == "true" || value == "false":
		return JSONBool, nil
	default:
		return JSONNumber, nil
	}
}
