// Package json defines the JSON messages of the pipeline.
package json

import (
	"go.dedis.ch/concord/core/optype"
	"go.dedis.ch/concord/core/pipeline/types"
	"go.dedis.ch/concord/serde"
	"golang.org/x/xerrors"
)

func init() {
	types.RegisterMessageFormat(serde.FormatJSON, msgFormat{})
}

// ProposeMessageJSON is the JSON message to send a proposal to the leader.
type ProposeMessageJSON struct {
	Seq           uint32
	OperationType string
	Datum         []byte
}

// VerdictMessageJSON is the JSON message to announce the equivalence verdict.
type VerdictMessageJSON struct {
	Seq           uint32
	Round         string
	Accepted      bool
	OperationType string
	Proposals     [][]byte
}

// ResultMessageJSON is the JSON message to reply the result of an execution.
type ResultMessageJSON struct {
	Seq  uint32
	Code uint8
}

// CommitMessageJSON is the JSON message to commit a round.
type CommitMessageJSON struct {
	Seq     uint32
	Round   string
	Results []uint8
}

// AbortMessageJSON is the JSON message to abort a round.
type AbortMessageJSON struct {
	Seq    uint32
	Round  string
	Reason string
}

// MessageJSON is the JSON message that wraps the different kinds of messages.
type MessageJSON struct {
	Propose *ProposeMessageJSON `json:",omitempty"`
	Verdict *VerdictMessageJSON `json:",omitempty"`
	Result  *ResultMessageJSON  `json:",omitempty"`
	Commit  *CommitMessageJSON  `json:",omitempty"`
	Abort   *AbortMessageJSON   `json:",omitempty"`
}

// MsgFormat is the engine to encode and decode the messages of the pipeline in
// JSON format.
//
// - implements serde.FormatEngine
type msgFormat struct{}

// Encode implements serde.FormatEngine. It returns the data serialized for the
// message if appropriate, otherwise an error.
func (f msgFormat) Encode(ctx serde.Context, msg serde.Message) ([]byte, error) {
	var m MessageJSON

	switch in := msg.(type) {
	case types.ProposeMessage:
		m.Propose = &ProposeMessageJSON{
			Seq:           in.GetSeq(),
			OperationType: in.GetOperationType(),
			Datum:         in.GetDatum(),
		}
	case types.VerdictMessage:
		proposals := make([][]byte, len(in.GetProposals()))
		for i, p := range in.GetProposals() {
			proposals[i] = p
		}

		m.Verdict = &VerdictMessageJSON{
			Seq:           in.GetSeq(),
			Round:         in.GetRound(),
			Accepted:      in.IsAccepted(),
			OperationType: in.GetOperationType(),
			Proposals:     proposals,
		}
	case types.ResultMessage:
		m.Result = &ResultMessageJSON{
			Seq:  in.GetSeq(),
			Code: uint8(in.GetCode()),
		}
	case types.CommitMessage:
		results := make([]uint8, len(in.GetResults()))
		for i, res := range in.GetResults() {
			results[i] = uint8(res)
		}

		m.Commit = &CommitMessageJSON{
			Seq:     in.GetSeq(),
			Round:   in.GetRound(),
			Results: results,
		}
	case types.AbortMessage:
		m.Abort = &AbortMessageJSON{
			Seq:    in.GetSeq(),
			Round:  in.GetRound(),
			Reason: in.GetReason(),
		}
	default:
		return nil, xerrors.Errorf("unsupported message of type '%T'", msg)
	}

	data, err := ctx.Marshal(m)
	if err != nil {
		return nil, xerrors.Errorf("couldn't marshal: %v", err)
	}

	return data, nil
}

// Decode implements serde.FormatEngine. It populates the message from the JSON
// data if appropriate, otherwise it returns an error.
func (f msgFormat) Decode(ctx serde.Context, data []byte) (serde.Message, error) {
	m := MessageJSON{}
	err := ctx.Unmarshal(data, &m)
	if err != nil {
		return nil, xerrors.Errorf("couldn't unmarshal message: %v", err)
	}

	switch {
	case m.Propose != nil:
		return types.NewProposeMessage(m.Propose.Seq, m.Propose.OperationType,
			m.Propose.Datum), nil
	case m.Verdict != nil:
		proposals := make([]optype.Datum, len(m.Verdict.Proposals))
		for i, p := range m.Verdict.Proposals {
			proposals[i] = p
		}

		return types.NewVerdictMessage(m.Verdict.Seq, m.Verdict.Round,
			m.Verdict.Accepted, m.Verdict.OperationType, proposals), nil
	case m.Result != nil:
		return types.NewResultMessage(m.Result.Seq, optype.ResultType(m.Result.Code)), nil
	case m.Commit != nil:
		results := make([]optype.ResultType, len(m.Commit.Results))
		for i, res := range m.Commit.Results {
			results[i] = optype.ResultType(res)
		}

		return types.NewCommitMessage(m.Commit.Seq, m.Commit.Round, results), nil
	case m.Abort != nil:
		return types.NewAbortMessage(m.Abort.Seq, m.Abort.Round, m.Abort.Reason), nil
	}

	return nil, xerrors.New("message is empty")
}
