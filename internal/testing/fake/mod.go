// Package fake provides fake implementations for interfaces commonly used in
// the repository.
// The implementations offer configuration to return errors when it is needed by
// the unit test and it is also possible to record the call of functions of an
// object in some cases.
package fake

import (
	"context"
	"fmt"
	"sync"

	"go.dedis.ch/concord/mino"
	"go.dedis.ch/concord/serde"
	"golang.org/x/xerrors"
)

var fakeErr = xerrors.New("fake error")

// Err returns the fake error wrapped in the given message, like the
// components of the repository do.
func Err(msg string) string {
	return fmt.Sprintf("%s: %v", msg, fakeErr)
}

// Call is a tool to keep track of a function calls. It is safe for concurrent
// use.
type Call struct {
	sync.Mutex
	calls [][]interface{}
}

// Get returns the nth call ith parameter.
func (c *Call) Get(n, i int) interface{} {
	c.Lock()
	defer c.Unlock()

	return c.calls[n][i]
}

// Len returns the number of calls.
func (c *Call) Len() int {
	if c == nil {
		return 0
	}

	c.Lock()
	defer c.Unlock()

	return len(c.calls)
}

// Add adds a call to the list.
func (c *Call) Add(args ...interface{}) {
	if c == nil {
		return
	}

	c.Lock()
	c.calls = append(c.calls, args)
	c.Unlock()
}

// Clear clears the list of calls.
func (c *Call) Clear() {
	c.Lock()
	c.calls = nil
	c.Unlock()
}

// Address is a fake implementation of mino.Address.
type Address struct {
	index int
}

// NewAddress returns a fake address with the given index.
func NewAddress(index int) Address {
	return Address{index: index}
}

// Equal implements mino.Address.
func (a Address) Equal(o mino.Address) bool {
	other, ok := o.(Address)
	return ok && other.index == a.index
}

// MarshalText implements encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(fmt.Sprintf("%d", a.index)), nil
}

// String implements fmt.Stringer.
func (a Address) String() string {
	return fmt.Sprintf("fake.Address[%d]", a.index)
}

// AddressFactory is a fake implementation of mino.AddressFactory.
type AddressFactory struct{}

// FromText implements mino.AddressFactory.
func (f AddressFactory) FromText(text []byte) mino.Address {
	var index int
	fmt.Sscanf(string(text), "%d", &index)

	return Address{index: index}
}

// NewPlayers returns players made of n fake addresses.
func NewPlayers(n int) mino.Players {
	addrs := make([]mino.Address, n)
	for i := range addrs {
		addrs[i] = NewAddress(i)
	}

	return mino.NewAddresses(addrs...)
}

// Message is a fake implementation of serde.Message.
type Message struct {
	Digest []byte
}

// Serialize implements serde.Message.
func (m Message) Serialize(ctx serde.Context) ([]byte, error) {
	return ctx.Marshal(m)
}

// BadMessage is a fake message that fails to serialize.
type BadMessage struct{}

// Serialize implements serde.Message. It always returns an error.
func (BadMessage) Serialize(serde.Context) ([]byte, error) {
	return nil, fakeErr
}

// MessageFactory is a fake implementation of serde.Factory.
type MessageFactory struct{}

// Deserialize implements serde.Factory.
func (f MessageFactory) Deserialize(ctx serde.Context, data []byte) (serde.Message, error) {
	m := Message{}
	err := ctx.Unmarshal(data, &m)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// Format is a fake implementation of serde.FormatEngine.
type Format struct {
	Msg  serde.Message
	Call *Call
	err  error
}

// NewBadFormat returns a format that always returns an error.
func NewBadFormat() Format {
	return Format{err: fakeErr}
}

// Encode implements serde.FormatEngine.
func (f Format) Encode(ctx serde.Context, msg serde.Message) ([]byte, error) {
	f.Call.Add(ctx, msg)

	if f.err != nil {
		return nil, f.err
	}

	return []byte("fake format"), nil
}

// Decode implements serde.FormatEngine.
func (f Format) Decode(ctx serde.Context, data []byte) (serde.Message, error) {
	f.Call.Add(ctx, data)

	if f.err != nil {
		return nil, f.err
	}

	return f.Msg, nil
}

// GoodFormat is the format of the default fake context. Data models register
// a working engine for it in their tests.
const GoodFormat = serde.Format("FakeGood")

// BadFormat is the format of the bad fake context. Data models register a
// failing engine for it in their tests.
const BadFormat = serde.Format("FakeBad")

// ContextEngine is a fake implementation of serde.ContextEngine.
type ContextEngine struct {
	Format serde.Format
	err    error
}

// NewContext returns a context using the fake engine.
func NewContext() serde.Context {
	return NewContextWithFormat(GoodFormat)
}

// NewContextWithFormat returns a context using the fake engine with the given
// format.
func NewContextWithFormat(f serde.Format) serde.Context {
	return serde.NewContext(ContextEngine{Format: f})
}

// NewBadContext returns a context that fails to marshal and unmarshal.
func NewBadContext() serde.Context {
	return serde.NewContext(ContextEngine{Format: BadFormat, err: fakeErr})
}

// GetFormat implements serde.ContextEngine.
func (ctx ContextEngine) GetFormat() serde.Format {
	return ctx.Format
}

// Marshal implements serde.ContextEngine.
func (ctx ContextEngine) Marshal(message interface{}) ([]byte, error) {
	if ctx.err != nil {
		return nil, ctx.err
	}

	return []byte("fake"), nil
}

// Unmarshal implements serde.ContextEngine.
func (ctx ContextEngine) Unmarshal(data []byte, message interface{}) error {
	return ctx.err
}

// Mino is a fake implementation of mino.Mino.
type Mino struct {
	index int
	err   error
}

// NewMino returns a fake mino with the address at the given index.
func NewMino(index int) Mino {
	return Mino{index: index}
}

// NewBadMino returns a fake mino that fails to create an RPC.
func NewBadMino() Mino {
	return Mino{err: fakeErr}
}

// GetAddressFactory implements mino.Mino.
func (m Mino) GetAddressFactory() mino.AddressFactory {
	return AddressFactory{}
}

// GetAddress implements mino.Mino.
func (m Mino) GetAddress() mino.Address {
	return NewAddress(m.index)
}

// CreateRPC implements mino.Mino.
func (m Mino) CreateRPC(string, mino.Handler, serde.Factory) (mino.RPC, error) {
	if m.err != nil {
		return nil, m.err
	}

	return NewRPC(), nil
}

// RPC is a fake implementation of mino.RPC. It never answers.
type RPC struct {
	Calls *Call
	msgs  chan mino.Response
}

// NewRPC returns a fake rpc.
func NewRPC() *RPC {
	return &RPC{
		Calls: &Call{},
		msgs:  make(chan mino.Response, 100),
	}
}

// Call implements mino.RPC. It records the call.
func (rpc *RPC) Call(ctx context.Context, msg serde.Message,
	players mino.Players) (<-chan mino.Response, error) {

	rpc.Calls.Add(ctx, msg, players)

	return rpc.msgs, nil
}
