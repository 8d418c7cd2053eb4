package serde

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"
)

func TestContext_GetFormat(t *testing.T) {
	ctx := NewContext(fakeEngine{})

	require.Equal(t, Format("FAKE"), ctx.GetFormat())
}

func TestContext_Serialize(t *testing.T) {
	ctx := NewContext(fakeEngine{})

	data, err := ctx.Serialize(fakeMessage{})
	require.NoError(t, err)
	require.Equal(t, []byte("FAKE:message"), data)

	data, err = ctx.Serialize(nil)
	require.NoError(t, err)
	require.Nil(t, data)

	_, err = ctx.Serialize(fakeMessage{err: xerrors.New("oops")})
	require.EqualError(t, err, "oops")
}

// -----------------------------------------------------------------------------
// Utility functions

type fakeEngine struct {
	ContextEngine
}

func (fakeEngine) GetFormat() Format {
	return Format("FAKE")
}

type fakeMessage struct {
	err error
}

func (m fakeMessage) Serialize(ctx Context) ([]byte, error) {
	if m.err != nil {
		return nil, m.err
	}

	return []byte(string(ctx.GetFormat()) + ":message"), nil
}
