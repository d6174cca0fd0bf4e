// Package jsoncodec selects the JSON implementation used by text formats.
//
// Files written through a Codec record its name, so a reader picks the
// matching implementation with ByName regardless of the current Default.
package jsoncodec

import (
	"encoding/json"

	gojson "github.com/goccy/go-json"
)

// Codec encodes and decodes values. Implementations must be safe for
// concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// ByName returns the built-in codec with the given stable name.
func ByName(name string) (Codec, bool) {
	switch name {
	case Std{}.Name():
		return Std{}, true
	case GoJSON{}.Name():
		return GoJSON{}, true
	default:
		return nil, false
	}
}

// Default is used for newly written files.
var Default Codec = GoJSON{}

// GoJSON is backed by github.com/goccy/go-json.
type GoJSON struct{}

func (GoJSON) Marshal(v any) ([]byte, error)      { return gojson.Marshal(v) }
func (GoJSON) Unmarshal(data []byte, v any) error { return gojson.Unmarshal(data, v) }
func (GoJSON) Name() string                       { return "go-json" }

// Std is the encoding/json codec. Its output is byte-compatible with GoJSON
// for the plain structs the text formats store.
type Std struct{}

func (Std) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (Std) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (Std) Name() string                       { return "json" }
