package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/rs/zerolog"
	"go.dedis.ch/concord"
	"go.dedis.ch/concord/core"
	"go.dedis.ch/concord/core/optype"
	"go.dedis.ch/concord/core/pipeline/types"
	"go.dedis.ch/concord/core/result"
	"go.dedis.ch/concord/mino"
	"golang.org/x/xerrors"

	// Register the JSON format for the messages of the pipeline.
	_ "go.dedis.ch/concord/core/pipeline/json"
)

// local is the state of a proposal made by this miner.
type local struct {
	optype    string
	callback  interface{}
	state     State
	proposals []optype.Datum
	watchdog  *time.Timer
}

// Service is the pipeline of a miner. It accepts the proposals of the local
// facility, forwards them to the leader and participates in the rounds. When
// the miner is the leader, it also runs the rounds.
type Service struct {
	sync.Mutex

	me       mino.Address
	players  mino.Players
	leader   mino.Players
	rpc      mino.RPC
	registry *optype.Registry
	table    *result.Table
	locals   map[uint32]*local
	queue    chan types.ProposeMessage
	watcher  core.Observable
	conf     config
	logger   zerolog.Logger

	// slots is only set on the leader.
	slots *slots

	ctx       context.Context
	cancel    context.CancelFunc
	closed    bool
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewService creates the pipeline of the miner reachable by the overlay. The
// roster must contain the address of the miner, and its first player is the
// leader. Proposals are finalized in the table, and the operation types are
// looked up in the registry.
func NewService(m mino.Mino, players mino.Players, reg *optype.Registry,
	table *result.Table, opts ...Option) (*Service, error) {

	if players == nil || players.Len() == 0 {
		return nil, xerrors.New("roster is empty")
	}

	me := m.GetAddress()

	index := mino.IndexOf(players, me)
	if index < 0 {
		return nil, xerrors.Errorf("address <%v> is not in the roster", me)
	}

	conf := config{
		roundTimeout:    DefaultRoundTimeout,
		proposalTimeout: DefaultProposalTimeout,
		finalizeTimeout: DefaultFinalizeTimeout,
		queueSize:       DefaultQueueSize,
		firstSeq:        1,
		tracer:          opentracing.NoopTracer{},
		logger:          concord.Logger,
	}

	for _, opt := range opts {
		opt(&conf)
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &Service{
		me:       me,
		players:  players,
		leader:   players.Take(mino.IndexFilter(0)),
		registry: reg,
		table:    table,
		locals:   make(map[uint32]*local),
		queue:    make(chan types.ProposeMessage, conf.queueSize),
		watcher:  core.NewWatcher(),
		conf:     conf,
		logger:   conf.logger.With().Str("addr", me.String()).Logger(),
		ctx:      ctx,
		cancel:   cancel,
	}

	rpc, err := m.CreateRPC(rpcName, handler{Service: s}, types.NewMessageFactory())
	if err != nil {
		cancel()
		return nil, xerrors.Errorf("failed to create rpc: %v", err)
	}

	s.rpc = rpc

	s.wg.Add(1)
	go s.sendProposals()

	if index == 0 {
		s.slots = newSlots(conf.firstSeq, players.Len())

		s.wg.Add(1)
		go s.lead()
	}

	s.logger.Debug().
		Int("index", index).
		Int("miners", players.Len()).
		Msg("pipeline started")

	return s, nil
}

// IsLeader returns true if the miner leads the rounds.
func (s *Service) IsLeader() bool {
	return s.slots != nil
}

// Propose submits the payload of this miner for the sequence number. The
// payload is copied, and the call returns as soon as the proposal is queued.
// The record of the sequence number in the table is finalized when the round
// ends. The callback is given to the operation type on this miner only.
func (s *Service) Propose(seq uint32, name string, datum optype.Datum, callback interface{}) error {
	s.Lock()

	if s.closed {
		s.Unlock()
		s.fail(seq, "service is closed")
		return ErrClosed
	}

	_, found := s.locals[seq]
	if found {
		s.Unlock()
		return xerrors.Errorf("sequence %d is already proposed", seq)
	}

	msg := types.NewProposeMessage(seq, name, append(optype.Datum{}, datum...))

	select {
	case s.queue <- msg:
	default:
		s.Unlock()
		s.fail(seq, "queue is full")
		return ErrQueueFull
	}

	s.locals[seq] = &local{
		optype:   name,
		callback: callback,
		state:    Proposed,
		watchdog: time.AfterFunc(s.conf.finalizeTimeout, func() {
			s.logger.Warn().Uint32("seq", seq).Msg("proposal not finalized in time")
			s.finalize(seq, result.Failed, nil)
		}),
	}

	s.Unlock()

	s.watcher.Notify(StateEvent{Seq: seq, State: Proposed})

	return nil
}

// GetState returns the state of the sequence number on this miner.
func (s *Service) GetState(seq uint32) State {
	s.Lock()
	entry, found := s.locals[seq]
	if found {
		state := entry.state
		s.Unlock()

		return state
	}
	s.Unlock()

	record, found := s.table.Get(seq)
	if !found {
		return None
	}

	switch record.Status {
	case result.Done:
		return Done
	case result.Failed:
		return Failed
	default:
		return None
	}
}

// Watch returns a channel populated with the state changes of the proposals
// of this miner. The observer is removed when the context is done.
func (s *Service) Watch(ctx context.Context) <-chan StateEvent {
	ch := make(chan StateEvent, 100)

	core.WatchFunc(ctx, s.watcher, func(event interface{}) {
		select {
		case ch <- event.(StateEvent):
		default:
			// The watcher is too slow, the event is dropped.
		}
	})

	return ch
}

// Close stops the service. The proposals of this miner that are not final are
// failed.
func (s *Service) Close() error {
	s.closeOnce.Do(func() {
		s.Lock()
		s.closed = true
		s.Unlock()

		s.cancel()
		s.wg.Wait()

		s.Lock()
		pending := make([]uint32, 0, len(s.locals))
		for seq := range s.locals {
			pending = append(pending, seq)
		}
		s.Unlock()

		for _, seq := range pending {
			s.finalize(seq, result.Failed, nil)
		}

		s.logger.Debug().Int("pending", len(pending)).Msg("pipeline closed")
	})

	return nil
}

// sendProposals forwards the proposals to the leader one after the other so
// that they reach it in the order they were made.
func (s *Service) sendProposals() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case msg := <-s.queue:
			refused, err := s.send(msg)
			if refused {
				// The leader will never run a round with this proposal.
				s.logger.Warn().Err(err).Uint32("seq", msg.GetSeq()).Msg("proposal refused")
				s.finalize(msg.GetSeq(), result.Failed, nil)
			} else if err != nil {
				s.logger.Warn().Err(err).Uint32("seq", msg.GetSeq()).Msg("proposal not delivered")
			}
		}
	}
}

// send delivers the proposal to the leader. It returns true when the leader
// answered with a refusal, in which case the proposal is never part of a round.
func (s *Service) send(msg types.ProposeMessage) (bool, error) {
	ctx, cancel := context.WithTimeout(s.ctx, s.conf.roundTimeout)
	defer cancel()

	resps, err := s.rpc.Call(ctx, msg, s.leader)
	if err != nil {
		return false, xerrors.Errorf("call failed: %v", err)
	}

	for {
		select {
		case <-ctx.Done():
			return false, xerrors.Errorf("leader did not answer: %v", ctx.Err())
		case resp, more := <-resps:
			if !more {
				return false, nil
			}

			_, err := resp.GetMessageOrError()
			if err != nil {
				return true, xerrors.Errorf("leader refused: %v", err)
			}
		}
	}
}

// setState moves a local proposal to the next state and notifies it.
func (s *Service) setState(seq uint32, state State) {
	s.Lock()
	entry, found := s.locals[seq]
	if found {
		entry.state = state
	}
	s.Unlock()

	if found {
		s.watcher.Notify(StateEvent{Seq: seq, State: state})
	}
}

// finalize finalizes a local proposal. It does nothing if the proposal is
// already final on this miner.
func (s *Service) finalize(seq uint32, status result.Status, results []optype.ResultType) {
	s.Lock()
	entry, found := s.locals[seq]
	if found {
		delete(s.locals, seq)
		entry.watchdog.Stop()
	}
	s.Unlock()

	if !found {
		return
	}

	err := s.table.Finalize(seq, status, results)
	if err != nil {
		s.logger.Warn().Err(err).Uint32("seq", seq).Msg("failed to finalize")
	}

	state := Done
	if status == result.Failed {
		state = Failed
	}

	s.watcher.Notify(StateEvent{Seq: seq, State: state})
}

// fail finalizes a proposal that never entered the pipeline.
func (s *Service) fail(seq uint32, reason string) {
	err := s.table.Finalize(seq, result.Failed, nil)
	if err != nil {
		s.logger.Debug().Err(err).Uint32("seq", seq).Msg("failed to finalize")
	}

	s.logger.Warn().Uint32("seq", seq).Str("reason", reason).Msg("proposal refused")
}
