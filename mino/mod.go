// Package mino defines the Minimalistic Overlay Network (MINO) used by the
// miners to talk to each other.
//
// The facility does not care how messages are transported, it only needs
// request/response calls to an ordered set of participants. The index of a
// participant in the set is its identity for the protocol.
package mino

import (
	"context"
	"encoding"

	"go.dedis.ch/concord/serde"
)

// Address is the representation of a participant of the network.
type Address interface {
	encoding.TextMarshaler

	// Equal returns true when both addresses point to the same participant.
	Equal(other Address) bool

	String() string
}

// AddressFactory is the factory to instantiate addresses from their text
// representation.
type AddressFactory interface {
	FromText(text []byte) Address
}

// AddressIterator is an iterator over a list of addresses.
type AddressIterator interface {
	// Seek moves the iterator to a specific index.
	Seek(int)

	// HasNext returns true if an address is available, false otherwise.
	HasNext() bool

	// GetNext returns the next address and moves the iterator forward, or nil
	// when the end is reached.
	GetNext() Address
}

// Players is an ordered set of participants.
type Players interface {
	// Take returns a subset of the players according to the filters.
	Take(...Filter) Players

	// AddressIterator returns an iterator over the addresses of the players.
	AddressIterator() AddressIterator

	// Len returns the number of players.
	Len() int
}

// Request is the input of a handler.
type Request struct {
	// Address is the address of the sender of the request.
	Address Address

	// Message is the message of the request.
	Message serde.Message
}

// Response is the output of a call. It is either a message or an error.
type Response interface {
	// GetFrom returns the address of the participant that produced the
	// response.
	GetFrom() Address

	// GetMessageOrError returns the message of the response, or the error if
	// the participant failed to process the request.
	GetMessageOrError() (serde.Message, error)
}

// Handler is the interface to implement to process the requests of an RPC.
type Handler interface {
	// Process handles a single request and returns the reply. A nil reply
	// without error means nothing is sent back.
	Process(req Request) (resp serde.Message, err error)
}

// RPC is a remote procedure call to a group of participants.
type RPC interface {
	// Call sends the message to every player and returns a channel populated
	// with their responses. The channel is closed when every player has
	// answered or when the context is done.
	Call(ctx context.Context, req serde.Message, players Players) (<-chan Response, error)
}

// Mino is a representation of an overlay network instance.
type Mino interface {
	// GetAddressFactory returns the factory for the addresses of this network.
	GetAddressFactory() AddressFactory

	// GetAddress returns the address other participants should use to contact
	// this instance.
	GetAddress() Address

	// CreateRPC creates an RPC bound to a unique name. Incoming requests are
	// decoded with the factory and processed by the handler.
	CreateRPC(name string, h Handler, f serde.Factory) (RPC, error)
}
