// Package json implements the context engine for the JSON format.
//
// Decoding is strict: a field that the message does not define is refused, as
// well as trailing data after the value.
package json

import (
	"bytes"
	"encoding/json"

	"go.dedis.ch/concord/serde"
	"golang.org/x/xerrors"
)

// jsonEngine is a context engine to marshal and unmarshal in JSON format.
//
// - implements serde.ContextEngine
type jsonEngine struct{}

// NewContext returns a JSON context.
func NewContext() serde.Context {
	return serde.NewContext(jsonEngine{})
}

// GetFormat implements serde.ContextEngine. It returns the JSON format name.
func (jsonEngine) GetFormat() serde.Format {
	return serde.FormatJSON
}

// Marshal implements serde.ContextEngine. It returns the bytes of the message
// marshaled in JSON format.
func (jsonEngine) Marshal(m interface{}) ([]byte, error) {
	return json.Marshal(m)
}

// Unmarshal implements serde.ContextEngine. It populates the message using the
// JSON format definition.
func (jsonEngine) Unmarshal(data []byte, m interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	err := dec.Decode(m)
	if err != nil {
		return err
	}

	if dec.More() {
		return xerrors.New("unexpected data after the value")
	}

	return nil
}
