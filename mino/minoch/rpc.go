package minoch

import (
	"context"
	"sync"

	"go.dedis.ch/concord/mino"
	"go.dedis.ch/concord/serde"
	"golang.org/x/xerrors"
)

// RPC is an implementation of the mino.RPC interface.
//
// - implements mino.RPC
type RPC struct {
	manager *Manager
	addr    mino.Address
	name    string
	h       mino.Handler
	context serde.Context
	factory serde.Factory
}

// Call implements mino.RPC. It sends the message to all participants and
// gathers their replies. A participant that drops the request does not
// produce a response. The channel is closed once every participant is done.
func (c *RPC) Call(ctx context.Context, req serde.Message,
	players mino.Players) (<-chan mino.Response, error) {

	data, err := c.context.Serialize(req)
	if err != nil {
		return nil, xerrors.Errorf("failed to serialize: %v", err)
	}

	out := make(chan mino.Response, players.Len())

	wg := sync.WaitGroup{}

	iter := players.AddressIterator()
	for iter.HasNext() {
		to := iter.GetNext()

		peer, err := c.manager.get(to)
		if err != nil {
			out <- mino.NewResponseWithError(to, xerrors.Errorf("couldn't find peer: %v", err))
			continue
		}

		wg.Add(1)

		go func(peer *Minoch) {
			defer wg.Done()

			resp, ok := c.process(peer, data)
			if !ok {
				return
			}

			select {
			case out <- resp:
			case <-ctx.Done():
			}
		}(peer)
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	return out, nil
}

// process delivers the data to the peer and returns its response, or false if
// the peer dropped the request.
func (c *RPC) process(peer *Minoch, data []byte) (mino.Response, bool) {
	from := peer.GetAddress()

	rpc, found := peer.getRPC(c.name)
	if !found {
		return mino.NewResponseWithError(from, xerrors.Errorf("unknown rpc %s", c.name)), true
	}

	msg, err := rpc.factory.Deserialize(rpc.context, data)
	if err != nil {
		return mino.NewResponseWithError(from, xerrors.Errorf("couldn't deserialize: %v", err)), true
	}

	req := mino.Request{
		Address: c.addr,
		Message: msg,
	}

	if !peer.accept(req) {
		return nil, false
	}

	reply, err := rpc.h.Process(req)
	if err != nil {
		return mino.NewResponseWithError(from, xerrors.Errorf("couldn't process request: %v", err)), true
	}

	if reply == nil {
		return nil, false
	}

	buffer, err := rpc.context.Serialize(reply)
	if err != nil {
		return mino.NewResponseWithError(from, xerrors.Errorf("couldn't serialize reply: %v", err)), true
	}

	reply, err = c.factory.Deserialize(c.context, buffer)
	if err != nil {
		return mino.NewResponseWithError(from, xerrors.Errorf("couldn't deserialize reply: %v", err)), true
	}

	return mino.NewResponse(from, reply), true
}
