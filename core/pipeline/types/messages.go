// Package types defines the messages exchanged by the miners to agree on a
// proposal.
package types

import (
	"go.dedis.ch/concord/core/optype"
	"go.dedis.ch/concord/serde"
	"go.dedis.ch/concord/serde/registry"
	"golang.org/x/xerrors"
)

var msgFormats = registry.NewSimpleRegistry()

// RegisterMessageFormat registers the engine for the provided format.
func RegisterMessageFormat(f serde.Format, e serde.FormatEngine) {
	msgFormats.Register(f, e)
}

// ProposeMessage is sent by a miner to the leader to announce the payload it
// proposes for a sequence number.
//
// - implements serde.Message
type ProposeMessage struct {
	seq    uint32
	optype string
	datum  optype.Datum
}

// NewProposeMessage creates a new propose message.
func NewProposeMessage(seq uint32, name string, datum optype.Datum) ProposeMessage {
	return ProposeMessage{
		seq:    seq,
		optype: name,
		datum:  datum,
	}
}

// GetSeq returns the sequence number of the proposal.
func (m ProposeMessage) GetSeq() uint32 {
	return m.seq
}

// GetOperationType returns the name of the operation type.
func (m ProposeMessage) GetOperationType() string {
	return m.optype
}

// GetDatum returns the payload.
func (m ProposeMessage) GetDatum() optype.Datum {
	return m.datum
}

// Serialize implements serde.Message. It returns the serialized data for this
// message.
func (m ProposeMessage) Serialize(ctx serde.Context) ([]byte, error) {
	return encode(ctx, m)
}

// VerdictMessage is broadcast by the leader once the equivalence of a round is
// decided. When accepted, it carries the proposals of every miner in the order
// of the roster.
//
// - implements serde.Message
type VerdictMessage struct {
	seq       uint32
	round     string
	accepted  bool
	optype    string
	proposals []optype.Datum
}

// NewVerdictMessage creates a new verdict message.
func NewVerdictMessage(seq uint32, round string, accepted bool, name string,
	proposals []optype.Datum) VerdictMessage {

	return VerdictMessage{
		seq:       seq,
		round:     round,
		accepted:  accepted,
		optype:    name,
		proposals: proposals,
	}
}

// GetSeq returns the sequence number of the round.
func (m VerdictMessage) GetSeq() uint32 {
	return m.seq
}

// GetRound returns the identifier of the round.
func (m VerdictMessage) GetRound() string {
	return m.round
}

// IsAccepted returns true if the proposals are equivalent.
func (m VerdictMessage) IsAccepted() bool {
	return m.accepted
}

// GetOperationType returns the name of the operation type.
func (m VerdictMessage) GetOperationType() string {
	return m.optype
}

// GetProposals returns the proposals of the miners.
func (m VerdictMessage) GetProposals() []optype.Datum {
	return m.proposals
}

// Serialize implements serde.Message.
func (m VerdictMessage) Serialize(ctx serde.Context) ([]byte, error) {
	return encode(ctx, m)
}

// ResultMessage is the reply of a miner to an accepted verdict with the result
// code of its execution.
//
// - implements serde.Message
type ResultMessage struct {
	seq  uint32
	code optype.ResultType
}

// NewResultMessage creates a new result message.
func NewResultMessage(seq uint32, code optype.ResultType) ResultMessage {
	return ResultMessage{
		seq:  seq,
		code: code,
	}
}

// GetSeq returns the sequence number.
func (m ResultMessage) GetSeq() uint32 {
	return m.seq
}

// GetCode returns the result code of the execution.
func (m ResultMessage) GetCode() optype.ResultType {
	return m.code
}

// Serialize implements serde.Message.
func (m ResultMessage) Serialize(ctx serde.Context) ([]byte, error) {
	return encode(ctx, m)
}

// CommitMessage is broadcast by the leader when every miner executed the
// operation. The results are in the order of the roster.
//
// - implements serde.Message
type CommitMessage struct {
	seq     uint32
	round   string
	results []optype.ResultType
}

// NewCommitMessage creates a new commit message.
func NewCommitMessage(seq uint32, round string, results []optype.ResultType) CommitMessage {
	return CommitMessage{
		seq:     seq,
		round:   round,
		results: results,
	}
}

// GetSeq returns the sequence number.
func (m CommitMessage) GetSeq() uint32 {
	return m.seq
}

// GetRound returns the identifier of the round.
func (m CommitMessage) GetRound() string {
	return m.round
}

// GetResults returns the result codes of the miners.
func (m CommitMessage) GetResults() []optype.ResultType {
	return m.results
}

// Serialize implements serde.Message.
func (m CommitMessage) Serialize(ctx serde.Context) ([]byte, error) {
	return encode(ctx, m)
}

// AbortMessage is broadcast by the leader when a round fails.
//
// - implements serde.Message
type AbortMessage struct {
	seq    uint32
	round  string
	reason string
}

// NewAbortMessage creates a new abort message.
func NewAbortMessage(seq uint32, round, reason string) AbortMessage {
	return AbortMessage{
		seq:    seq,
		round:  round,
		reason: reason,
	}
}

// GetSeq returns the sequence number.
func (m AbortMessage) GetSeq() uint32 {
	return m.seq
}

// GetRound returns the identifier of the round.
func (m AbortMessage) GetRound() string {
	return m.round
}

// GetReason returns the reason of the failure.
func (m AbortMessage) GetReason() string {
	return m.reason
}

// Serialize implements serde.Message.
func (m AbortMessage) Serialize(ctx serde.Context) ([]byte, error) {
	return encode(ctx, m)
}

// MessageFactory is the factory to deserialize the messages of the pipeline.
//
// - implements serde.Factory
type MessageFactory struct{}

// NewMessageFactory creates a new message factory.
func NewMessageFactory() MessageFactory {
	return MessageFactory{}
}

// Deserialize implements serde.Factory. It populates the message from the data
// if appropriate, otherwise it returns an error.
func (f MessageFactory) Deserialize(ctx serde.Context, data []byte) (serde.Message, error) {
	format := msgFormats.Get(ctx.GetFormat())

	msg, err := format.Decode(ctx, data)
	if err != nil {
		return nil, xerrors.Errorf("decoding failed: %v", err)
	}

	return msg, nil
}

func encode(ctx serde.Context, m serde.Message) ([]byte, error) {
	format := msgFormats.Get(ctx.GetFormat())

	data, err := format.Encode(ctx, m)
	if err != nil {
		return nil, xerrors.Errorf("encoding failed: %v", err)
	}

	return data, nil
}
