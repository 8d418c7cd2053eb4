package kv

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"
)

func TestBoltDB_New(t *testing.T) {
	dir := t.TempDir()

	db, err := New(filepath.Join(dir, "test.db"), WithOpenTimeout(10*time.Millisecond))
	require.NoError(t, err)

	// The file lock is held by the first instance.
	_, err = New(filepath.Join(dir, "test.db"), WithOpenTimeout(10*time.Millisecond))
	require.EqualError(t, err, "failed to open db: timeout")

	require.NoError(t, db.Close())

	_, err = New(filepath.Join(dir, "missing", "test.db"))
	require.Error(t, err)
}

func TestBoltDB_UpdateAndView(t *testing.T) {
	db := makeDB(t)

	err := db.Update([]byte("bucket"), func(b Bucket) error {
		return b.Set([]byte("ping"), []byte("pong"))
	})
	require.NoError(t, err)

	err = db.View([]byte("bucket"), func(b Bucket) error {
		value := b.Get([]byte("ping"))
		require.Equal(t, []byte("pong"), value)

		return nil
	})
	require.NoError(t, err)

	err = db.View([]byte{0xaa}, nil)
	require.EqualError(t, err, "bucket 'aa': bucket not found")
	require.True(t, xerrors.Is(err, ErrBucketNotFound))

	err = db.Update(nil, nil)
	require.EqualError(t, err, "failed to create bucket: bucket name required")
}

func TestBoltBucket_Get_Set_Delete(t *testing.T) {
	db := makeDB(t)

	err := db.Update([]byte("bucket"), func(b Bucket) error {
		require.NoError(t, b.Set([]byte("ping"), []byte("pong")))

		value := b.Get([]byte("ping"))
		require.Equal(t, []byte("pong"), value)

		value = b.Get([]byte("pong"))
		require.Nil(t, value)

		require.NoError(t, b.Delete([]byte("ping")))

		value = b.Get([]byte("ping"))
		require.Nil(t, value)

		return nil
	})

	require.NoError(t, err)
}

func TestBoltBucket_ForEach(t *testing.T) {
	db := makeDB(t)

	err := db.Update([]byte("bucket"), func(b Bucket) error {
		require.NoError(t, b.Set([]byte{2}, []byte{2}))
		require.NoError(t, b.Set([]byte{1}, []byte{1}))
		require.NoError(t, b.Set([]byte{0}, []byte{0}))

		var i byte = 0
		return b.ForEach(func(k, v []byte) error {
			require.Equal(t, []byte{i}, k)
			require.Equal(t, []byte{i}, v)
			i++
			return nil
		})
	})
	require.NoError(t, err)
}

func makeDB(t *testing.T) DB {
	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	t.Cleanup(func() { db.Close() })

	return db
}
