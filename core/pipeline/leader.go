package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"go.dedis.ch/concord/core/optype"
	"go.dedis.ch/concord/core/pipeline/types"
	"go.dedis.ch/concord/mino"
	"go.dedis.ch/concord/serde"
	"golang.org/x/xerrors"
)

const (
	outcomeCommitted = "committed"
	outcomeRejected  = "rejected"
	outcomeAborted   = "aborted"
)

// slot gathers the proposals of the miners for a sequence number. The
// proposals are stored at the index of the miner in the roster.
type slot struct {
	seq       uint32
	optypes   []string
	proposals []optype.Datum
	filled    []bool
	count     int
	created   time.Time
}

func (s *slot) isComplete() bool {
	return s.count == len(s.filled)
}

// slots is the set of slots of the leader. The proposals of a sequence number
// smaller than the head are refused.
type slots struct {
	sync.Mutex

	size      int
	head      uint32
	headSince time.Time
	store     map[uint32]*slot
	notify    chan struct{}
}

func newSlots(first uint32, size int) *slots {
	return &slots{
		size:      size,
		head:      first,
		headSince: time.Now(),
		store:     make(map[uint32]*slot),
		notify:    make(chan struct{}, 1),
	}
}

func (s *slots) add(index int, msg types.ProposeMessage) error {
	s.Lock()
	defer s.Unlock()

	seq := msg.GetSeq()

	if seq < s.head {
		return xerrors.Errorf("sequence %d is already processed", seq)
	}

	sl := s.store[seq]
	if sl == nil {
		sl = &slot{
			seq:       seq,
			optypes:   make([]string, s.size),
			proposals: make([]optype.Datum, s.size),
			filled:    make([]bool, s.size),
			created:   time.Now(),
		}

		s.store[seq] = sl
	}

	if sl.filled[index] {
		return xerrors.Errorf("duplicate proposal of miner %d for %d", index, seq)
	}

	sl.optypes[index] = msg.GetOperationType()
	sl.proposals[index] = msg.GetDatum()
	sl.filled[index] = true
	sl.count++

	select {
	case s.notify <- struct{}{}:
	default:
	}

	return nil
}

// peek returns the slot of the head if it is complete. Otherwise it returns
// the deadline after which the head is aborted, if any.
func (s *slots) peek(timeout time.Duration) (uint32, *slot, time.Time, bool) {
	s.Lock()
	defer s.Unlock()

	sl := s.store[s.head]
	if sl != nil && sl.isComplete() {
		return s.head, sl, time.Time{}, true
	}

	// The head is waited for as soon as any proposal is known, starting from
	// the moment it became the head.
	var first time.Time
	for _, other := range s.store {
		if first.IsZero() || other.created.Before(first) {
			first = other.created
		}
	}

	if first.IsZero() {
		return s.head, nil, time.Time{}, false
	}

	if first.Before(s.headSince) {
		first = s.headSince
	}

	return s.head, nil, first.Add(timeout), true
}

// advance moves the head to the next sequence number.
func (s *slots) advance() {
	s.Lock()
	delete(s.store, s.head)
	s.head++
	s.headSince = time.Now()
	s.Unlock()
}

// lead runs the rounds in ascending order of sequence number until the
// service is closed.
func (s *Service) lead() {
	defer s.wg.Done()

	for {
		seq, sl, deadline, ok := s.slots.peek(s.conf.proposalTimeout)

		if sl != nil {
			s.runRound(sl)
			s.slots.advance()
			continue
		}

		if ok && !time.Now().Before(deadline) {
			s.abortRound(seq, "proposals are missing")
			s.slots.advance()
			continue
		}

		var expire <-chan time.Time
		var timer *time.Timer

		if ok {
			timer = time.NewTimer(time.Until(deadline))
			expire = timer.C
		}

		select {
		case <-s.ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case <-s.slots.notify:
		case <-expire:
		}

		if timer != nil {
			timer.Stop()
		}
	}
}

// runRound decides the equivalence of the proposals of the slot, then runs the
// execution and the commit on all the miners.
func (s *Service) runRound(sl *slot) {
	start := time.Now()
	round := xid.New().String()

	span := s.conf.tracer.StartSpan("pipeline.round")
	span.SetTag("seq", sl.seq)
	span.SetTag("round", round)
	defer span.Finish()

	logger := s.logger.With().Uint32("seq", sl.seq).Str("round", round).Logger()

	outcome, err := s.decide(sl, round, span, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("round failed")

		ext.Error.Set(span, true)
		span.SetTag("reason", err.Error())

		switch outcome {
		case outcomeRejected:
			s.broadcast(types.NewVerdictMessage(sl.seq, round, false, "", nil), logger)
		default:
			s.broadcast(types.NewAbortMessage(sl.seq, round, err.Error()), logger)
		}
	}

	span.SetTag("outcome", outcome)

	promRounds.WithLabelValues(outcome).Inc()
	promRoundDuration.Observe(time.Since(start).Seconds())

	logger.Debug().Str("outcome", outcome).Dur("duration", time.Since(start)).Msg("round done")
}

func (s *Service) decide(sl *slot, round string, span opentracing.Span,
	logger zerolog.Logger) (string, error) {

	name := sl.optypes[0]
	for i, other := range sl.optypes[1:] {
		if other != name {
			return outcomeRejected, xerrors.Errorf("miner %d proposed '%s' instead of '%s'",
				i+1, other, name)
		}
	}

	span.SetTag("optype", name)

	t, err := s.registry.Get(name)
	if err != nil {
		return outcomeRejected, xerrors.Errorf("registry: %v", err)
	}

	if !t.Equivalent(optype.Copy(sl.proposals)) {
		return outcomeRejected, xerrors.New("proposals are not equivalent")
	}

	logger.Trace().Str("optype", name).Msg("proposals are equivalent")

	verdict := types.NewVerdictMessage(sl.seq, round, true, name, sl.proposals)

	results, err := s.execute(verdict, logger)
	if err != nil {
		return outcomeAborted, xerrors.Errorf("execution failed: %v", err)
	}

	s.broadcast(types.NewCommitMessage(sl.seq, round, results), logger)

	return outcomeCommitted, nil
}

// execute sends the verdict to every miner and gathers their result codes.
func (s *Service) execute(verdict types.VerdictMessage,
	logger zerolog.Logger) ([]optype.ResultType, error) {

	ctx, cancel := context.WithTimeout(s.ctx, s.conf.roundTimeout)
	defer cancel()

	resps, err := s.rpc.Call(ctx, verdict, s.players)
	if err != nil {
		return nil, xerrors.Errorf("call failed: %v", err)
	}

	n := s.players.Len()
	results := make([]optype.ResultType, n)
	received := make([]bool, n)
	count := 0

	for count < n {
		select {
		case <-ctx.Done():
			return nil, xerrors.Errorf("missing results (%d/%d): %v", count, n, ctx.Err())
		case resp, more := <-resps:
			if !more {
				return nil, xerrors.Errorf("missing results (%d/%d)", count, n)
			}

			msg, err := resp.GetMessageOrError()
			if err != nil {
				logger.Warn().Err(err).Stringer("from", resp.GetFrom()).Msg("miner failed")
				continue
			}

			index, code, err := s.readResult(verdict.GetSeq(), resp.GetFrom(), msg)
			if err != nil {
				logger.Warn().Err(err).Msg("invalid result")
				continue
			}

			if !received[index] {
				results[index] = code
				received[index] = true
				count++
			}
		}
	}

	return results, nil
}

func (s *Service) readResult(seq uint32, from mino.Address,
	msg serde.Message) (int, optype.ResultType, error) {

	res, ok := msg.(types.ResultMessage)
	if !ok {
		return -1, 0, xerrors.Errorf("unexpected message of type '%T'", msg)
	}

	if res.GetSeq() != seq {
		return -1, 0, xerrors.Errorf("result for %d instead of %d", res.GetSeq(), seq)
	}

	index := mino.IndexOf(s.players, from)
	if index < 0 {
		return -1, 0, xerrors.Errorf("unknown miner <%v>", from)
	}

	return index, res.GetCode(), nil
}

// abortRound fails a sequence number for which the proposals are not all
// known.
func (s *Service) abortRound(seq uint32, reason string) {
	round := xid.New().String()

	logger := s.logger.With().Uint32("seq", seq).Str("round", round).Logger()
	logger.Warn().Str("reason", reason).Msg("round aborted")

	promRounds.WithLabelValues(outcomeAborted).Inc()

	s.broadcast(types.NewAbortMessage(seq, round, reason), logger)
}

// broadcast sends the message to every miner and waits for them to process
// it, so that the next round cannot overtake it.
func (s *Service) broadcast(msg serde.Message, logger zerolog.Logger) {
	ctx, cancel := context.WithTimeout(s.ctx, s.conf.roundTimeout)
	defer cancel()

	resps, err := s.rpc.Call(ctx, msg, s.players)
	if err != nil {
		logger.Warn().Err(err).Msg("broadcast failed")
		return
	}

	for {
		select {
		case <-ctx.Done():
			logger.Warn().Err(ctx.Err()).Msg("broadcast interrupted")
			return
		case resp, more := <-resps:
			if !more {
				return
			}

			_, err := resp.GetMessageOrError()
			if err != nil {
				logger.Warn().Err(err).
					Stringer("from", resp.GetFrom()).
					Str("message", fmt.Sprintf("%T", msg)).
					Msg("message refused")
			}
		}
	}
}
