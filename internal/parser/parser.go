// Package parser loads base request/response pairs from traffic captures,
// raw request files, URL lists and API descriptions
package parser

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/su1ph3r/typeconfusion/internal/httpmsg"
	"github.com/su1ph3r/typeconfusion/pkg/types"
)

// Parser loads targets from one input
type Parser interface {
	// Parse returns the base requests, with their recorded responses when
	// the input carries them
	Parse() ([]httpmsg.RequestResponse, error)

	// Type returns the input type
	Type() types.InputType
}

// Errors
var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrInvalidInput      = errors.New("invalid input")
	ErrFileNotFound      = errors.New("file not found")
	ErrParseFailed       = errors.New("failed to parse input")
)

// NewParser creates a parser based on the input file. baseURL overrides
// the target service where the input format allows it.
func NewParser(filePath string, baseURL string) (Parser, error) {
	if filePath == "" {
		return nil, fmt.Errorf("%w: empty file path", ErrInvalidInput)
	}

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, filePath)
	}

	switch DetectInputType(filePath) {
	case types.InputTypeOpenAPI:
		return NewOpenAPIParser(filePath, baseURL), nil
	case types.InputTypeHAR:
		return NewHARParser(filePath, baseURL), nil
	case types.InputTypeBurp:
		return NewBurpParser(filePath, baseURL), nil
	case types.InputTypeRequest:
		return NewRequestParser(filePath, baseURL, ""), nil
	case types.InputTypeRaw:
		return NewRawParserFromFile(filePath, baseURL)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filePath)
	}
}

// DetectInputType detects the input type from file extension and content
func DetectInputType(filePath string) types.InputType {
	ext := strings.ToLower(filepath.Ext(filePath))

	switch ext {
	case ".har":
		return types.InputTypeHAR
	case ".xml":
		if isBurpExport(filePath) {
			return types.InputTypeBurp
		}
		return types.InputTypeUnknown
	case ".http", ".req":
		return types.InputTypeRequest
	case ".txt", ".lst", ".list":
		if looksLikeRequest(filePath) {
			return types.InputTypeRequest
		}
		return types.InputTypeRaw
	}

	if ext == ".json" || ext == ".yaml" || ext == ".yml" {
		content, err := os.ReadFile(filePath)
		if err != nil {
			return types.InputTypeUnknown
		}

		contentStr := string(content)
		if strings.Contains(contentStr, "openapi") || strings.Contains(contentStr, "swagger") {
			return types.InputTypeOpenAPI
		}
		if strings.Contains(contentStr, "\"log\"") && strings.Contains(contentStr, "\"entries\"") {
			return types.InputTypeHAR
		}
		if ext == ".yaml" || ext == ".yml" {
			return types.InputTypeOpenAPI
		}
	}

	return types.InputTypeUnknown
}

func isBurpExport(filePath string) bool {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return false
	}
	contentStr := string(content)
	return strings.Contains(contentStr, "<items") && strings.Contains(contentStr, "<item>")
}

// looksLikeRequest reports whether the first line of the file is an HTTP
// request line
func looksLikeRequest(filePath string) bool {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return false
	}
	line, _, _ := strings.Cut(string(content), "\n")
	fields := strings.Fields(line)
	return len(fields) == 3 && isHTTPMethod(fields[0]) && strings.HasPrefix(fields[2], "HTTP/")
}

// ParseMultiple parses multiple input files and combines their targets
func ParseMultiple(files []string, baseURL string) ([]httpmsg.RequestResponse, error) {
	var all []httpmsg.RequestResponse

	for _, file := range files {
		parser, err := NewParser(file, baseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create parser for %s: %w", file, err)
		}

		targets, err := parser.Parse()
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", file, err)
		}

		all = append(all, targets...)
	}

	return Deduplicate(all), nil
}

// Deduplicate drops targets whose request is byte-identical to an earlier
// one, keeping the first
func Deduplicate(targets []httpmsg.RequestResponse) []httpmsg.RequestResponse {
	seen := make(map[string]bool)
	var unique []httpmsg.RequestResponse

	for _, t := range targets {
		key := t.Request.Service().BaseURL() + "\n" + t.Request.String()
		if !seen[key] {
			seen[key] = true
			unique = append(unique, t)
		}
	}

	return unique
}

// NormalizeMethod normalizes HTTP method to uppercase
func NormalizeMethod(method string) string {
	return strings.ToUpper(strings.TrimSpace(method))
}

func isHTTPMethod(s string) bool {
	switch s {
	case "GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS", "TRACE", "CONNECT":
		return true
	}
	return false
}

// serviceOverride parses baseURL into a service, returning ok=false when
// baseURL is empty
func serviceOverride(baseURL string) (httpmsg.Service, bool, error) {
	if baseURL == "" {
		return httpmsg.Service{}, false, nil
	}
	if err := types.ValidateURL(baseURL); err != nil {
		return httpmsg.Service{}, false, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	u, err := parseURL(baseURL)
	if err != nil {
		return httpmsg.Service{}, false, err
	}
	return httpmsg.ServiceFromURL(u), true, nil
}
