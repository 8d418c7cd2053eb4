package pipeline

import (
	"go.dedis.ch/concord/core/optype"
	"go.dedis.ch/concord/core/pipeline/types"
	"go.dedis.ch/concord/core/result"
	"go.dedis.ch/concord/mino"
	"go.dedis.ch/concord/serde"
	"golang.org/x/xerrors"
)

// handler processes the messages of the pipeline.
//
// - implements mino.Handler
type handler struct {
	*Service
}

// Process implements mino.Handler. It dispatches the message to the phase it
// belongs to.
func (h handler) Process(req mino.Request) (serde.Message, error) {
	switch msg := req.Message.(type) {
	case types.ProposeMessage:
		err := h.receiveProposal(req.Address, msg)
		if err != nil {
			return nil, xerrors.Errorf("proposal refused: %v", err)
		}

		return nil, nil
	case types.VerdictMessage:
		err := h.checkLeader(req.Address)
		if err != nil {
			return nil, err
		}

		return h.processVerdict(msg)
	case types.CommitMessage:
		err := h.checkLeader(req.Address)
		if err != nil {
			return nil, err
		}

		err = h.processCommit(msg)
		if err != nil {
			return nil, xerrors.Errorf("commit failed: %v", err)
		}

		return nil, nil
	case types.AbortMessage:
		err := h.checkLeader(req.Address)
		if err != nil {
			return nil, err
		}

		h.processAbort(msg)

		return nil, nil
	default:
		return nil, xerrors.Errorf("unsupported message of type '%T'", req.Message)
	}
}

func (h handler) checkLeader(from mino.Address) error {
	if !mino.Get(h.players, 0).Equal(from) {
		return xerrors.Errorf("<%v> is not the leader", from)
	}

	return nil
}

func (h handler) receiveProposal(from mino.Address, msg types.ProposeMessage) error {
	if h.slots == nil {
		return xerrors.New("not the leader")
	}

	index := mino.IndexOf(h.players, from)
	if index < 0 {
		return xerrors.Errorf("unknown miner <%v>", from)
	}

	err := h.slots.add(index, msg)
	if err != nil {
		return err
	}

	h.logger.Trace().
		Uint32("seq", msg.GetSeq()).
		Int("from", index).
		Msg("proposal received")

	return nil
}

// processVerdict executes the operation when the verdict is positive and
// replies with the result code of this miner.
func (h handler) processVerdict(msg types.VerdictMessage) (serde.Message, error) {
	seq := msg.GetSeq()

	if !msg.IsAccepted() {
		h.logger.Debug().Uint32("seq", seq).Str("round", msg.GetRound()).Msg("proposals rejected")
		h.finalize(seq, result.Failed, nil)
		return nil, nil
	}

	h.Lock()

	entry, found := h.locals[seq]
	if !found {
		h.Unlock()
		return nil, xerrors.Errorf("sequence %d is unknown or final", seq)
	}

	if entry.optype != msg.GetOperationType() {
		h.Unlock()
		return nil, xerrors.Errorf("operation type mismatch: %s != %s",
			entry.optype, msg.GetOperationType())
	}

	if len(msg.GetProposals()) != h.players.Len() {
		h.Unlock()
		return nil, xerrors.Errorf("expected %d proposals, got %d",
			h.players.Len(), len(msg.GetProposals()))
	}

	t, err := h.registry.Get(entry.optype)
	if err != nil {
		h.Unlock()
		return nil, xerrors.Errorf("registry: %v", err)
	}

	entry.proposals = msg.GetProposals()
	entry.state = EquivalenceChecked
	callback := entry.callback

	h.Unlock()

	h.watcher.Notify(StateEvent{Seq: seq, State: EquivalenceChecked})

	h.setState(seq, Executing)

	code := t.Execute(optype.Copy(msg.GetProposals()), callback)

	h.logger.Debug().
		Uint32("seq", seq).
		Str("round", msg.GetRound()).
		Uint8("code", uint8(code)).
		Msg("operation executed")

	return types.NewResultMessage(seq, code), nil
}

// processCommit commits the operation and finalizes the proposal.
func (h handler) processCommit(msg types.CommitMessage) error {
	seq := msg.GetSeq()

	h.Lock()

	entry, found := h.locals[seq]
	if !found {
		h.Unlock()
		return xerrors.Errorf("sequence %d is unknown or final", seq)
	}

	if entry.proposals == nil {
		h.Unlock()
		return xerrors.Errorf("sequence %d is not executed", seq)
	}

	if len(msg.GetResults()) != h.players.Len() {
		h.Unlock()
		return xerrors.Errorf("expected %d results, got %d",
			h.players.Len(), len(msg.GetResults()))
	}

	entry.state = Committing
	proposals := entry.proposals
	callback := entry.callback
	name := entry.optype

	h.Unlock()

	h.watcher.Notify(StateEvent{Seq: seq, State: Committing})

	t, err := h.registry.Get(name)
	if err != nil {
		return xerrors.Errorf("registry: %v", err)
	}

	results := append([]optype.ResultType{}, msg.GetResults()...)

	// The operation type gets its own copy of the result codes.
	t.Commit(optype.Copy(proposals), append([]optype.ResultType{}, results...), callback)

	h.finalize(seq, result.Done, results)

	h.logger.Debug().Uint32("seq", seq).Str("round", msg.GetRound()).Msg("operation committed")

	return nil
}

func (h handler) processAbort(msg types.AbortMessage) {
	h.logger.Debug().
		Uint32("seq", msg.GetSeq()).
		Str("round", msg.GetRound()).
		Str("reason", msg.GetReason()).
		Msg("round aborted")

	h.finalize(msg.GetSeq(), result.Failed, nil)
}
