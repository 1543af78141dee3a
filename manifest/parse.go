package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Format selects the document syntax of a manifest
type Format string

const (
	// JSON also accepts JSONC: // and /* */ comments plus trailing commas
	JSON Format = "json"
	YAML Format = "yaml"
)

// FormatFor picks the format from a file extension. .yaml and .yml select YAML,
// everything else is read as JSON(C).
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAML
	default:
		return JSON
	}
}

// ReadFile reads and parses the manifest at path
func ReadFile(path string) (*Value, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest %s: %w", path, err)
	}
	v, err := Parse(data, FormatFor(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return v, nil
}

// Parse parses a manifest document. Object key order is preserved.
func Parse(data []byte, format Format) (*Value, error) {
	switch format {
	case JSON:
		return parseJSON(data)
	case YAML:
		return parseYAML(data)
	default:
		return nil, fmt.Errorf("unknown manifest format %q", format)
	}
}

func parseJSON(data []byte) (*Value, error) {
	dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
	v, err := decodeJSONValue(dec)
	if err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing manifest: unexpected data after top-level value")
	}
	return v, nil
}

// decodeJSONValue walks the token stream so that object keys keep document order
func decodeJSONValue(dec *json.Decoder) (*Value, error) {
	tok, err := dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			obj := NewObject()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("object key %v is not a string", keyTok)
				}
				child, err := decodeJSONValue(dec)
				if err != nil {
					return nil, err
				}
				obj.Fields = append(obj.Fields, F(key, child))
			}
			if _, err := dec.Token(); err != nil { // '}'
				return nil, err
			}
			return obj, nil
		case '[':
			for dec.More() {
				if _, err := decodeJSONValue(dec); err != nil {
					return nil, err
				}
			}
			if _, err := dec.Token(); err != nil { // ']'
				return nil, err
			}
			return NewInvalid("array"), nil
		default:
			return nil, fmt.Errorf("unexpected delimiter %q", t)
		}
	case string:
		return NewString(t), nil
	case json.Number, float64:
		return NewInvalid("number"), nil
	case bool:
		return NewInvalid("bool"), nil
	case nil:
		return NewInvalid("null"), nil
	default:
		return nil, fmt.Errorf("unexpected token %v", tok)
	}
}

func parseYAML(data []byte) (*Value, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return nil, fmt.Errorf("parsing manifest: empty document")
	}
	return convertYAMLNode(doc.Content[0], 0)
}

// maxAliasDepth guards against alias cycles and alias bombs
const maxAliasDepth = 64

func convertYAMLNode(n *yaml.Node, aliasDepth int) (*Value, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return NewInvalid("null"), nil
		}
		return convertYAMLNode(n.Content[0], aliasDepth)
	case yaml.AliasNode:
		if aliasDepth >= maxAliasDepth {
			return nil, fmt.Errorf("line %d: alias nesting too deep", n.Line)
		}
		return convertYAMLNode(n.Alias, aliasDepth+1)
	case yaml.MappingNode:
		obj := NewObject()
		for i := 0; i+1 < len(n.Content); i += 2 {
			keyNode, valNode := n.Content[i], n.Content[i+1]
			if keyNode.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("line %d: mapping key must be a scalar", keyNode.Line)
			}
			if keyNode.Tag == "!!merge" {
				return nil, fmt.Errorf("line %d: merge keys are not supported", keyNode.Line)
			}
			child, err := convertYAMLNode(valNode, aliasDepth)
			if err != nil {
				return nil, err
			}
			obj.Fields = append(obj.Fields, F(keyNode.Value, child))
		}
		return obj, nil
	case yaml.SequenceNode:
		return NewInvalid("array"), nil
	case yaml.ScalarNode:
		if n.ShortTag() == "!!str" {
			return NewString(n.Value), nil
		}
		return NewInvalid(strings.TrimPrefix(n.ShortTag(), "!!")), nil
	default:
		return nil, fmt.Errorf("line %d: unsupported yaml node", n.Line)
	}
}
