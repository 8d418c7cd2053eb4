// Package serde defines the primitives to serialize and deserialize (serde)
// the messages exchanged by the miners.
//
// A message is serialized by looking up the format engine registered for the
// format of the context. This keeps the data models free of any encoding
// detail, and the payload of a proposal is always carried as an opaque byte
// slice.
package serde

// Format is the identifier of a serialization format.
type Format string

// FormatJSON is the identifier of the JSON format.
const FormatJSON Format = "JSON"

// Message is the interface that a data model must implement to be serialized.
type Message interface {
	// Serialize returns the data of the message serialized according to the
	// format of the context.
	Serialize(ctx Context) ([]byte, error)
}

// Factory is the interface to implement to instantiate a message from its
// serialized data.
type Factory interface {
	// Deserialize returns the message implementation of the data, or an error
	// if the data is malformed.
	Deserialize(ctx Context, data []byte) (Message, error)
}

// FormatEngine is the interface to implement to support a message in a given
// format.
type FormatEngine interface {
	// Encode returns the data of the message for the format.
	Encode(ctx Context, message Message) ([]byte, error)

	// Decode returns the message populated from the data.
	Decode(ctx Context, data []byte) (Message, error)
}
