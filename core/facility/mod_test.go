package facility

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/concord"
	"go.dedis.ch/concord/core/optype"
	"go.dedis.ch/concord/core/pipeline"
	"go.dedis.ch/concord/core/result"
	"go.dedis.ch/concord/core/sequence"
	"go.dedis.ch/concord/internal/testing/fake"
	"go.dedis.ch/concord/mino"
	"go.dedis.ch/concord/mino/minoch"
)

func TestLifecycle_String(t *testing.T) {
	require.Equal(t, "uninitialized", Uninitialized.String())
	require.Equal(t, "running", Running.String())
	require.Equal(t, "stopped", Stopped.String())
	require.Equal(t, "unknown", Lifecycle(9).String())
}

func TestFacility_Start(t *testing.T) {
	f := NewFacility(fake.NewMino(0))
	require.Equal(t, Uninitialized, f.GetLifecycle())
	require.Nil(t, f.GetService())

	err := f.Start(fake.NewPlayers(0))
	require.EqualError(t, err, "failed to start pipeline: roster is empty")
	require.Equal(t, Uninitialized, f.GetLifecycle())

	require.NoError(t, f.Start(fake.NewPlayers(1)))
	require.Equal(t, Running, f.GetLifecycle())
	require.NotNil(t, f.GetService())

	err = f.Start(fake.NewPlayers(1))
	require.EqualError(t, err, "facility is running")

	require.NoError(t, f.Stop())
	require.Equal(t, Stopped, f.GetLifecycle())

	err = f.Start(fake.NewPlayers(1))
	require.EqualError(t, err, "facility is stopped")
}

func TestFacility_Stop(t *testing.T) {
	f := NewFacility(fake.NewMino(0))

	err := f.Stop()
	require.EqualError(t, err, "facility is uninitialized: not started")
	require.Equal(t, concord.NotStarted, concord.CodeOf(err))
}

func TestFacility_AddOperationType(t *testing.T) {
	f := NewFacility(fake.NewMino(0), WithRegistry(optype.NewRegistry(optype.WithCapacity(1))))

	require.NoError(t, f.AddOperationType(fake.NewOperationType("A")))

	err := f.AddOperationType(fake.NewOperationType("A"))
	require.EqualError(t, err,
		"failed to add operation type: operation type 'A' exists: duplicate operation type")
	require.Equal(t, concord.DuplicateOperationType, concord.CodeOf(err))

	err = f.AddOperationType(nil)
	require.Equal(t, concord.BadOperationType, concord.CodeOf(err))

	err = f.AddOperationType(optype.New("B", nil, nil, nil))
	require.Equal(t, concord.BadOperationType, concord.CodeOf(err))

	err = f.AddOperationType(fake.NewOperationType("C"))
	require.Equal(t, concord.OutOfMemory, concord.CodeOf(err))
}

func TestFacility_NotStarted_Propose(t *testing.T) {
	f := NewFacility(fake.NewMino(0))
	require.NoError(t, f.AddOperationType(fake.NewOperationType("A")))

	_, err := f.Propose("A", nil, nil)
	require.EqualError(t, err, "facility is uninitialized: not started")
	require.Equal(t, concord.NotStarted, concord.CodeOf(err))

	err = f.BlockingPropose(context.Background(), "A", nil, nil)
	require.Equal(t, concord.NotStarted, concord.CodeOf(err))

	require.NoError(t, f.Start(fake.NewPlayers(1)))
	require.NoError(t, f.Stop())

	_, err = f.Propose("A", nil, nil)
	require.EqualError(t, err, "facility is stopped: not started")
}

func TestFacility_Propose(t *testing.T) {
	f := NewFacility(fake.NewMino(0), WithMaxPayload(4))
	require.NoError(t, f.AddOperationType(fake.NewOperationType("A")))
	require.NoError(t, f.Start(fake.NewPlayers(1)))

	defer f.Stop()

	seq, err := f.Propose("A", []byte{1, 2}, nil)
	require.NoError(t, err)
	require.Equal(t, uint32(1), seq)
	require.Equal(t, concord.Again, f.Done(seq))

	record, err := f.Result(seq)
	require.NoError(t, err)
	require.Equal(t, result.Pending, record.Status)

	_, err = f.Propose("B", nil, nil)
	require.EqualError(t, err, "registry: operation type 'B' not found: bad operation type")
	require.Equal(t, concord.BadOperationType, concord.CodeOf(err))

	_, err = f.Propose("A", make([]byte, 5), nil)
	require.EqualError(t, err, "payload of 5 bytes exceeds 4: out of memory")
	require.Equal(t, concord.OutOfMemory, concord.CodeOf(err))

	// Refused proposals do not consume sequence numbers.
	seq, err = f.Propose("A", nil, nil)
	require.NoError(t, err)
	require.Equal(t, uint32(2), seq)
}

func TestFacility_Exhausted_Propose(t *testing.T) {
	f := NewFacility(fake.NewMino(0), WithAllocator(sequence.NewAllocatorAt(^uint32(0))))
	require.NoError(t, f.AddOperationType(fake.NewOperationType("A")))
	require.NoError(t, f.Start(fake.NewPlayers(1)))

	defer f.Stop()

	_, err := f.Propose("A", nil, nil)
	require.EqualError(t, err, "failed to allocate: sequence numbers exhausted")
	require.Equal(t, concord.UnknownError, concord.CodeOf(err))
}

func TestFacility_QueueFull_Propose(t *testing.T) {
	// The fake overlay never answers, so that the queue fills up.
	f := NewFacility(fake.NewMino(0),
		WithPipelineOptions(pipeline.WithQueueSize(1), pipeline.WithRoundTimeout(time.Hour)))
	require.NoError(t, f.AddOperationType(fake.NewOperationType("A")))
	require.NoError(t, f.Start(fake.NewPlayers(1)))

	defer f.Stop()

	var err error
	for i := 0; i < 5 && err == nil; i++ {
		_, err = f.Propose("A", nil, nil)
	}

	require.Error(t, err)
	require.Equal(t, concord.OutOfMemory, concord.CodeOf(err))

	// The sequence number of the refused proposal is failed.
	seq := f.alloc.Current()
	require.Equal(t, concord.Fail, f.Done(seq))
}

func TestFacility_Done(t *testing.T) {
	table := result.NewTable()
	f := NewFacility(fake.NewMino(0), WithTable(table))

	require.Equal(t, concord.UnknownError, f.Done(1))

	_, err := f.Result(1)
	require.EqualError(t, err, "sequence 1 not found: unknown error")

	require.NoError(t, table.Insert(1))
	require.Equal(t, concord.Again, f.Done(1))

	require.NoError(t, table.Finalize(1, result.Done, nil))
	require.Equal(t, concord.OK, f.Done(1))

	require.NoError(t, table.Insert(2))
	require.NoError(t, table.Finalize(2, result.Failed, nil))
	require.Equal(t, concord.Fail, f.Done(2))

	// A terminal answer never changes.
	require.Error(t, table.Finalize(2, result.Done, nil))
	require.Equal(t, concord.Fail, f.Done(2))
}

func TestFacility_Interrupted_BlockingPropose(t *testing.T) {
	f := NewFacility(fake.NewMino(0))
	require.NoError(t, f.AddOperationType(fake.NewOperationType("A")))
	require.NoError(t, f.Start(fake.NewPlayers(1)))

	defer f.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := f.BlockingPropose(ctx, "A", nil, nil)
	require.EqualError(t, err, "failed to wait: interrupted while waiting for 1: context canceled")
	require.Equal(t, concord.UnknownError, concord.CodeOf(err))

	// The operation is still running.
	require.Equal(t, concord.Again, f.Done(1))
}

func TestFacility_Concurrent_Propose(t *testing.T) {
	facilities, _ := makeFacilities(t, 1)

	const n = 10

	var wg sync.WaitGroup
	seqs := make([]uint32, n)
	errs := make([]error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			seqs[i], errs[i] = facilities[0].Propose("transfer", []byte{byte(i)}, nil)
		}(i)
	}

	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })

	for i, seq := range seqs {
		require.Equal(t, uint32(i+1), seq)
	}

	for _, seq := range seqs {
		record, err := facilities[0].table.Wait(timeout(t), seq)
		require.NoError(t, err)
		require.Equal(t, result.Done, record.Status)
		require.Equal(t, concord.OK, facilities[0].Done(seq))
	}
}

func TestFacility_Identical_Scenario(t *testing.T) {
	facilities, types := makeFacilities(t, 2)

	errs := blockingProposeAll(facilities, []byte("pay 10"), []byte("pay 10"))

	for i, err := range errs {
		require.NoError(t, err)
		require.Equal(t, concord.OK, facilities[i].Done(1))
		require.Equal(t, 1, types[i].Executions.Len())
		require.Equal(t, 1, types[i].Commits.Len())

		record, err := facilities[i].Result(1)
		require.NoError(t, err)
		require.Equal(t, []optype.ResultType{0, 0}, record.Results)

		// The record returned to the caller is a copy.
		record.Results[0] = 42

		record, err = facilities[i].Result(1)
		require.NoError(t, err)
		require.Equal(t, []optype.ResultType{0, 0}, record.Results)
	}
}

func TestFacility_NoHistory_BlockingPropose(t *testing.T) {
	m := minoch.MustCreate(minoch.NewManager(), "miner0")

	f := NewFacility(m, WithTable(result.NewTable(result.WithHistory(0))))
	require.NoError(t, f.AddOperationType(fake.NewOperationType("transfer")))
	require.NoError(t, f.Start(mino.NewAddresses(m.GetAddress())))

	defer f.Stop()

	// The record is evicted as soon as it is final.
	err := f.BlockingPropose(timeout(t), "transfer", []byte("pay 10"), nil)
	require.NoError(t, err)
	require.Equal(t, concord.UnknownError, f.Done(1))
}

func TestFacility_Different_Scenario(t *testing.T) {
	facilities, types := makeFacilities(t, 2)

	errs := blockingProposeAll(facilities, []byte("pay 10"), []byte("pay 20"))

	for i, err := range errs {
		require.EqualError(t, err, "sequence 1 failed: fail")
		require.Equal(t, concord.Fail, concord.CodeOf(err))
		require.Equal(t, concord.Fail, facilities[i].Done(1))
		require.Equal(t, 0, types[i].Executions.Len())
	}
}

// -----------------------------------------------------------------------------
// Utility functions

func makeFacilities(t *testing.T, n int) ([]*Facility, []fake.OperationType) {
	manager := minoch.NewManager()

	minos := make([]*minoch.Minoch, n)
	addrs := make([]mino.Address, n)

	for i := range minos {
		minos[i] = minoch.MustCreate(manager, fmt.Sprintf("miner%d", i))
		addrs[i] = minos[i].GetAddress()
	}

	players := mino.NewAddresses(addrs...)

	facilities := make([]*Facility, n)
	types := make([]fake.OperationType, n)

	for i := range facilities {
		types[i] = fake.NewOperationType("transfer")

		f := NewFacility(minos[i])
		require.NoError(t, f.AddOperationType(types[i]))
		require.NoError(t, f.Start(players))

		t.Cleanup(func() { f.Stop() })

		facilities[i] = f
	}

	return facilities, types
}

func blockingProposeAll(facilities []*Facility, payloads ...[]byte) []error {
	errs := make([]error, len(facilities))

	var wg sync.WaitGroup
	for i, f := range facilities {
		wg.Add(1)

		go func(i int, f *Facility) {
			defer wg.Done()

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			errs[i] = f.BlockingPropose(ctx, "transfer", payloads[i], i)
		}(i, f)
	}

	wg.Wait()

	return errs
}

func timeout(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	return ctx
}
