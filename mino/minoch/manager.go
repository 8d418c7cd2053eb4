package minoch

import (
	"sync"

	"go.dedis.ch/concord/mino"
	"golang.org/x/xerrors"
)

// Manager is an orchestrator to manage the communication between the local
// instances of Mino.
type Manager struct {
	sync.Mutex
	instances map[address]*Minoch
}

// NewManager creates a new empty manager.
func NewManager() *Manager {
	return &Manager{
		instances: make(map[address]*Minoch),
	}
}

func (m *Manager) get(a mino.Address) (*Minoch, error) {
	addr, ok := a.(address)
	if !ok {
		return nil, xerrors.Errorf("invalid address type '%T'", a)
	}

	m.Lock()
	defer m.Unlock()

	inst, ok := m.instances[addr]
	if !ok {
		return nil, xerrors.Errorf("address <%s> not found", addr)
	}

	return inst, nil
}

func (m *Manager) insert(inst *Minoch) error {
	addr := inst.GetAddress().(address)
	if addr.String() == "" {
		return xerrors.New("identifier must not be empty")
	}

	m.Lock()
	defer m.Unlock()

	if _, ok := m.instances[addr]; ok {
		return xerrors.Errorf("identifier <%s> already exists", addr)
	}

	m.instances[addr] = inst

	return nil
}
