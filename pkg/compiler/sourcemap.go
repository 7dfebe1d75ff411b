package compiler

import (
	_ "embed"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

const (
	sourceMapCommentStart = "/*# sourceMappingURL="
	sourceMapCommentEnd   = "*/"
	dataURLPrefix         = "data:"
	embedURLPrefix        = "data:application/json;charset=utf-8;base64,"
	fileURLPrefix         = "file://"
)

// stdinSources are the names compilers give to a stylesheet read from standard input.
var stdinSources = map[string]bool{"-": true, "stdin": true, "data:": true}

// ErrInvalidSourceMap is returned for maps that fail schema validation.
var ErrInvalidSourceMap = errors.New("invalid source map")

//go:embed sourcemap.schema.json
var sourceMapSchema []byte

var compiledSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewBytesLoader(sourceMapSchema))
})

// SourceMap is a version 3 source map.
type SourceMap struct {
	Version        int       `json:"version"`
	File           string    `json:"file,omitempty"`
	SourceRoot     string    `json:"sourceRoot,omitempty"`
	Sources        []string  `json:"sources"`
	SourcesContent []*string `json:"sourcesContent,omitempty"`
	Names          []string  `json:"names"`
	Mappings       string    `json:"mappings"`
}

// ParseSourceMap validates data against the v3 schema and decodes it.
func ParseSourceMap(data []byte) (*SourceMap, error) {
	schema, err := compiledSchema()
	if err != nil {
		return nil, fmt.Errorf("load source map schema: %w", err)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSourceMap, err)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}

		return nil, fmt.Errorf("%w: %s", ErrInvalidSourceMap, strings.Join(details, "; "))
	}

	var m SourceMap

	unmarshalErr := json.Unmarshal(data, &m)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSourceMap, unmarshalErr)
	}

	if m.Names == nil {
		m.Names = []string{}
	}

	return &m, nil
}

// Relativize rewrites sources relative to root, stripping file:// prefixes so that
// maps never leak absolute paths. A source naming standard input becomes path.
func (m *SourceMap) Relativize(root, path string) {
	for i, src := range m.Sources {
		if stdinSources[src] {
			src = path
		}

		if rest, ok := strings.CutPrefix(src, fileURLPrefix); ok {
			if unescaped, err := url.PathUnescape(rest); err == nil {
				rest = unescaped
			}

			src = filepath.FromSlash(rest)
		}

		if root != "" && filepath.IsAbs(src) {
			if rel, err := filepath.Rel(root, src); err == nil {
				src = filepath.ToSlash(rel)
			}
		}

		m.Sources[i] = src
	}

	m.SourceRoot = ""
}

// Marshal encodes the map as JSON.
func (m *SourceMap) Marshal() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode source map: %w", err)
	}

	return data, nil
}

// EmbedComment returns a sourceMappingURL comment carrying data inline.
func EmbedComment(data []byte) string {
	return sourceMapCommentStart + embedURLPrefix + base64.StdEncoding.EncodeToString(data) + " " + sourceMapCommentEnd
}

// ExtractSourceMap removes a trailing sourceMappingURL comment from css. When the
// comment carries an inline data URL, its decoded payload is returned as well.
func ExtractSourceMap(css string) (string, []byte, error) {
	start := strings.LastIndex(css, sourceMapCommentStart)
	if start < 0 {
		return css, nil, nil
	}

	end := strings.Index(css[start:], sourceMapCommentEnd)
	if end < 0 {
		return css, nil, nil
	}

	ref := strings.TrimSpace(css[start+len(sourceMapCommentStart) : start+end])
	stripped := strings.TrimRight(css[:start], " \t\r\n") + css[start+end+len(sourceMapCommentEnd):]

	if !strings.HasPrefix(ref, dataURLPrefix) {
		return stripped, nil, nil
	}

	meta, payload, found := strings.Cut(ref[len(dataURLPrefix):], ",")
	if !found {
		return stripped, nil, fmt.Errorf("%w: malformed data url", ErrInvalidSourceMap)
	}

	if strings.HasSuffix(meta, ";base64") {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return stripped, nil, fmt.Errorf("%w: %w", ErrInvalidSourceMap, err)
		}

		return stripped, data, nil
	}

	decoded, err := url.PathUnescape(payload)
	if err != nil {
		return stripped, nil, fmt.Errorf("%w: %w", ErrInvalidSourceMap, err)
	}

	return stripped, []byte(decoded), nil
}
