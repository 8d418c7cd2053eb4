// Package minoch is an implementation of Mino that is using channels and a
// local manager to exchange messages.
//
// Because it is using only Go channels to communicate, this implementation can
// only be used by multiple instances in the same process. It is used by the
// tests and by the local cluster of the command line, therefore it also
// provides filters to simulate participants that stop answering.
//
// Every message is serialized by the sender and deserialized by the receiver
// so that no memory is shared between two instances.
package minoch

import (
	"sync"

	"go.dedis.ch/concord"
	"go.dedis.ch/concord/mino"
	"go.dedis.ch/concord/serde"
	"go.dedis.ch/concord/serde/json"
	"golang.org/x/xerrors"
)

// Filter is a function called for any request to an RPC which will drop it if
// it returns false.
type Filter func(mino.Request) bool

// Minoch is an implementation of the Mino interface using channels. Each
// instance must have a unique string assigned to it.
//
// - implements mino.Mino
type Minoch struct {
	sync.Mutex

	manager    *Manager
	identifier string
	rpcs       map[string]*RPC
	context    serde.Context
	filters    []Filter
}

// NewMinoch creates a new instance of a local Mino instance.
func NewMinoch(manager *Manager, identifier string) (*Minoch, error) {
	inst := &Minoch{
		manager:    manager,
		identifier: identifier,
		rpcs:       make(map[string]*RPC),
		context:    json.NewContext(),
	}

	err := manager.insert(inst)
	if err != nil {
		return nil, xerrors.Errorf("manager refused: %v", err)
	}

	concord.Logger.Trace().Msgf("new instance with identifier %s", identifier)

	return inst, nil
}

// MustCreate creates a new minoch instance and panic if the identifier is
// refused by the manager.
func MustCreate(manager *Manager, identifier string) *Minoch {
	m, err := NewMinoch(manager, identifier)
	if err != nil {
		panic(err)
	}

	return m
}

// GetAddressFactory implements mino.Mino. It returns the address factory.
func (m *Minoch) GetAddressFactory() mino.AddressFactory {
	return AddressFactory{}
}

// GetAddress implements mino.Mino. It returns the address that other
// participants should use to contact this instance.
func (m *Minoch) GetAddress() mino.Address {
	return address{id: m.identifier}
}

// AddFilter adds the filter to the instance. Every incoming request is dropped
// when one of the filters returns false.
func (m *Minoch) AddFilter(filter Filter) {
	m.Lock()
	m.filters = append(m.filters, filter)
	m.Unlock()
}

// CreateRPC implements mino.Mino. It creates an RPC that can send to and
// receive from the unique name.
func (m *Minoch) CreateRPC(name string, h mino.Handler, f serde.Factory) (mino.RPC, error) {
	rpc := &RPC{
		manager: m.manager,
		addr:    m.GetAddress(),
		name:    name,
		h:       h,
		context: m.context,
		factory: f,
	}

	m.Lock()
	defer m.Unlock()

	_, found := m.rpcs[name]
	if found {
		return nil, xerrors.Errorf("rpc '%s' already exists", name)
	}

	m.rpcs[name] = rpc

	return rpc, nil
}

func (m *Minoch) getRPC(name string) (*RPC, bool) {
	m.Lock()
	defer m.Unlock()

	rpc, found := m.rpcs[name]

	return rpc, found
}

func (m *Minoch) accept(req mino.Request) bool {
	m.Lock()
	defer m.Unlock()

	for _, filter := range m.filters {
		if !filter(req) {
			return false
		}
	}

	return true
}
