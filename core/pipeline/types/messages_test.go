package types

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/concord/core/optype"
	"go.dedis.ch/concord/internal/testing/fake"
	"go.dedis.ch/concord/serde"
)

func init() {
	RegisterMessageFormat(fake.GoodFormat, fake.Format{Msg: ResultMessage{}})
	RegisterMessageFormat(fake.BadFormat, fake.NewBadFormat())
}

func TestProposeMessage_Getters(t *testing.T) {
	msg := NewProposeMessage(1, "A", optype.Datum("abc"))

	require.Equal(t, uint32(1), msg.GetSeq())
	require.Equal(t, "A", msg.GetOperationType())
	require.Equal(t, optype.Datum("abc"), msg.GetDatum())
}

func TestVerdictMessage_Getters(t *testing.T) {
	proposals := []optype.Datum{{1}, {2}}
	msg := NewVerdictMessage(2, "round", true, "A", proposals)

	require.Equal(t, uint32(2), msg.GetSeq())
	require.Equal(t, "round", msg.GetRound())
	require.True(t, msg.IsAccepted())
	require.Equal(t, "A", msg.GetOperationType())
	require.Equal(t, proposals, msg.GetProposals())
}

func TestResultMessage_Getters(t *testing.T) {
	msg := NewResultMessage(3, 4)

	require.Equal(t, uint32(3), msg.GetSeq())
	require.Equal(t, optype.ResultType(4), msg.GetCode())
}

func TestCommitMessage_Getters(t *testing.T) {
	msg := NewCommitMessage(5, "round", []optype.ResultType{0, 1})

	require.Equal(t, uint32(5), msg.GetSeq())
	require.Equal(t, "round", msg.GetRound())
	require.Equal(t, []optype.ResultType{0, 1}, msg.GetResults())
}

func TestAbortMessage_Getters(t *testing.T) {
	msg := NewAbortMessage(6, "round", "timeout")

	require.Equal(t, uint32(6), msg.GetSeq())
	require.Equal(t, "round", msg.GetRound())
	require.Equal(t, "timeout", msg.GetReason())
}

func TestMessages_Serialize(t *testing.T) {
	msgs := []serde.Message{
		NewProposeMessage(1, "A", nil),
		NewVerdictMessage(1, "", false, "A", nil),
		NewResultMessage(1, 0),
		NewCommitMessage(1, "", nil),
		NewAbortMessage(1, "", ""),
	}

	for _, msg := range msgs {
		data, err := msg.Serialize(fake.NewContext())
		require.NoError(t, err)
		require.Equal(t, "fake format", string(data))

		_, err = msg.Serialize(fake.NewContextWithFormat(fake.BadFormat))
		require.EqualError(t, err, fake.Err("encoding failed"))
	}
}

func TestMessageFactory_Deserialize(t *testing.T) {
	fac := NewMessageFactory()

	msg, err := fac.Deserialize(fake.NewContext(), nil)
	require.NoError(t, err)
	require.Equal(t, ResultMessage{}, msg)

	_, err = fac.Deserialize(fake.NewContextWithFormat(fake.BadFormat), nil)
	require.EqualError(t, err, fake.Err("decoding failed"))
}
