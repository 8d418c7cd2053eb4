package builtin

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/concord/core/optype"
	"go.dedis.ch/concord/core/store/kv"
	"golang.org/x/xerrors"
)

func TestAllIdentical(t *testing.T) {
	require.False(t, AllIdentical(nil))
	require.True(t, AllIdentical([]optype.Datum{{1}}))
	require.True(t, AllIdentical([]optype.Datum{{1, 2}, {1, 2}, {1, 2}}))
	require.False(t, AllIdentical([]optype.Datum{{1, 2}, {1, 3}}))
	require.True(t, AllIdentical([]optype.Datum{nil, {}}))
}

func TestIdentical_Scenario(t *testing.T) {
	executed := 0
	committed := 0

	ot := NewIdentical("transfer",
		func([]optype.Datum, interface{}) optype.ResultType {
			executed++
			return 2
		},
		func(_ []optype.Datum, results []optype.ResultType, _ interface{}) {
			committed++
			require.Equal(t, []optype.ResultType{2, 2}, results)
		})

	require.Equal(t, "transfer", ot.GetName())
	require.NoError(t, ot.Check())

	reg := optype.NewRegistry()
	require.NoError(t, reg.Add(ot))

	proposals := []optype.Datum{[]byte("a"), []byte("a")}
	require.True(t, ot.Equivalent(proposals))
	require.Equal(t, optype.ResultType(2), ot.Execute(proposals, nil))

	ot.Commit(proposals, []optype.ResultType{2, 2}, nil)

	require.Equal(t, 1, executed)
	require.Equal(t, 1, committed)

	err := reg.Add(NewIdentical("incomplete", nil, nil))
	require.EqualError(t, err,
		"operation type 'incomplete' is incomplete: missing execute: bad operation type")
}

func TestParseAssignment(t *testing.T) {
	key, value, err := ParseAssignment([]byte("a=b=c"))
	require.NoError(t, err)
	require.Equal(t, []byte("a"), key)
	require.Equal(t, []byte("b=c"), value)

	key, value, err = ParseAssignment([]byte("a="))
	require.NoError(t, err)
	require.Equal(t, []byte("a"), key)
	require.Empty(t, value)

	_, _, err = ParseAssignment([]byte("abc"))
	require.EqualError(t, err, "missing separator")

	_, _, err = ParseAssignment([]byte("=abc"))
	require.EqualError(t, err, "key is empty")
}

func TestRegister_Scenario(t *testing.T) {
	db, err := kv.New(filepath.Join(t.TempDir(), "register.db"))
	require.NoError(t, err)

	defer db.Close()

	r := NewRegister(db)
	require.Equal(t, RegisterName, r.GetName())

	value, err := r.Get([]byte("a"))
	require.NoError(t, err)
	require.Nil(t, value)

	entries, err := r.Entries()
	require.NoError(t, err)
	require.Empty(t, entries)

	// Reading never creates the bucket.
	err = db.View(defaultBucket, func(kv.Bucket) error { return nil })
	require.True(t, xerrors.Is(err, kv.ErrBucketNotFound))

	proposals := []optype.Datum{[]byte("a=1"), []byte("a=1")}

	require.True(t, r.Equivalent(proposals))
	require.False(t, r.Equivalent([]optype.Datum{[]byte("a=1"), []byte("a=2")}))
	require.Equal(t, ResultOK, r.Execute(proposals, nil))

	r.Commit(proposals, []optype.ResultType{ResultOK, ResultOK}, nil)

	value, err = r.Get([]byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("1"), value)

	// A miner failed, nothing is written.
	r.Commit([]optype.Datum{[]byte("a=2"), []byte("a=2")},
		[]optype.ResultType{ResultOK, ResultMalformed}, nil)

	value, err = r.Get([]byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("1"), value)

	r.Commit([]optype.Datum{[]byte("b=")}, []optype.ResultType{ResultOK}, nil)

	entries, err = r.Entries()
	require.NoError(t, err)
	require.Equal(t, map[string][]byte{"a": []byte("1"), "b": {}}, entries)
}

func TestRegister_Malformed_Execute(t *testing.T) {
	r := NewRegister(nil, WithRegisterName("reg"), WithBucket([]byte("bucket")))
	require.Equal(t, "reg", r.GetName())

	require.Equal(t, ResultMalformed, r.Execute(nil, nil))
	require.Equal(t, ResultMalformed, r.Execute([]optype.Datum{[]byte("abc")}, nil))
}
