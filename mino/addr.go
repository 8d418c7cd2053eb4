package mino

// addressIterator is an implementation of the iterator for addresses.
//
// - implements mino.AddressIterator
type addressIterator struct {
	index int
	addrs []Address
}

// Seek implements mino.AddressIterator.
func (it *addressIterator) Seek(index int) {
	it.index = index
}

// HasNext implements mino.AddressIterator. It returns true if there is an
// address available.
func (it *addressIterator) HasNext() bool {
	return it.index < len(it.addrs)
}

// GetNext implements mino.AddressIterator. It returns the address at the
// current index and moves the iterator to the next address.
func (it *addressIterator) GetNext() Address {
	if it.HasNext() {
		res := it.addrs[it.index]
		it.index++
		return res
	}

	return nil
}

// roster is the default implementation of the players.
//
// - implements mino.Players
type roster struct {
	addrs []Address
}

// NewAddresses returns the players made of the addresses in the given order.
func NewAddresses(addrs ...Address) Players {
	return roster{addrs: addrs}
}

// Take implements mino.Players. It returns a subset of the roster according to
// the filters.
func (r roster) Take(updaters ...Filter) Players {
	filters := ApplyFilters(updaters)

	addrs := make([]Address, 0, len(filters.Indices))
	for _, k := range filters.Indices {
		if k >= 0 && k < len(r.addrs) {
			addrs = append(addrs, r.addrs[k])
		}
	}

	return roster{addrs: addrs}
}

// AddressIterator implements mino.Players. It returns an iterator for the
// roster.
func (r roster) AddressIterator() AddressIterator {
	return &addressIterator{addrs: r.addrs}
}

// Len implements mino.Players. It returns the length of the roster.
func (r roster) Len() int {
	return len(r.addrs)
}

// IndexOf returns the index of the address in the players, or -1 if it is not
// part of it.
func IndexOf(players Players, addr Address) int {
	iter := players.AddressIterator()

	for i := 0; iter.HasNext(); i++ {
		if iter.GetNext().Equal(addr) {
			return i
		}
	}

	return -1
}

// Get returns the address at the given index, or nil if it is out of range.
func Get(players Players, index int) Address {
	if index < 0 {
		return nil
	}

	iter := players.AddressIterator()
	iter.Seek(index)

	return iter.GetNext()
}
