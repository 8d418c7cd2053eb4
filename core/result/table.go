package result

import (
	"context"
	"encoding/binary"
	"sync"

	"github.com/rs/zerolog"
	"go.dedis.ch/concord"
	"go.dedis.ch/concord/core"
	"go.dedis.ch/concord/core/optype"
	"go.dedis.ch/concord/core/store/kv"
	"golang.org/x/xerrors"
)

// DefaultHistory is the default number of finalized records kept in memory.
const DefaultHistory = 4096

var archiveBucket = []byte("results")

// ErrAlreadyFinal is returned when a terminal record is finalized again.
var ErrAlreadyFinal = xerrors.New("record is already final")

type entry struct {
	record   Record
	done     chan struct{}
	archived bool
}

// Table is the table of the records indexed by sequence number. It is safe
// for concurrent use and owned by a single facility.
type Table struct {
	sync.RWMutex

	logger  zerolog.Logger
	entries map[uint32]*entry
	history []uint32
	size    int
	archive kv.DB
	watcher core.Observable
}

// TableOption is the type of option to create a table.
type TableOption func(*Table)

// WithHistory sets the number of finalized records kept in memory. The oldest
// ones are evicted first. A negative value disables the eviction.
func WithHistory(n int) TableOption {
	return func(t *Table) {
		t.size = n
	}
}

// WithArchive sets the database where every finalized record is written, so
// that a record evicted from memory can still be read.
func WithArchive(db kv.DB) TableOption {
	return func(t *Table) {
		t.archive = db
	}
}

// WithLogger sets the logger of the table.
func WithLogger(logger zerolog.Logger) TableOption {
	return func(t *Table) {
		t.logger = logger
	}
}

// NewTable returns a new empty table.
func NewTable(opts ...TableOption) *Table {
	t := &Table{
		logger:  concord.Logger.With().Str("component", "results").Logger(),
		entries: make(map[uint32]*entry),
		size:    DefaultHistory,
		watcher: core.NewWatcher(),
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Insert creates a pending record for the sequence number.
func (t *Table) Insert(seq uint32) error {
	_, err := t.Track(seq)

	return err
}

// Track creates a pending record for the sequence number and returns a waiter
// bound to it. The waiter stays usable after the record is evicted.
func (t *Table) Track(seq uint32) (Waiter, error) {
	t.Lock()
	defer t.Unlock()

	_, found := t.entries[seq]
	if found {
		return Waiter{}, xerrors.Errorf("record %d already exists", seq)
	}

	e := &entry{
		record: Record{Seq: seq, Status: Pending},
		done:   make(chan struct{}),
	}

	t.entries[seq] = e

	promPending.Inc()

	return Waiter{table: t, seq: seq, entry: e}, nil
}

// Finalize moves the record to a terminal status with the result codes of the
// miners. A record is finalized at most once.
func (t *Table) Finalize(seq uint32, status Status, results []optype.ResultType) error {
	if !status.IsTerminal() {
		return xerrors.Errorf("invalid status '%s'", status)
	}

	t.Lock()

	e, found := t.entries[seq]
	if !found {
		t.Unlock()
		return xerrors.Errorf("record %d not found: %w", seq, concord.UnknownError)
	}

	if e.record.Status.IsTerminal() {
		t.Unlock()
		return xerrors.Errorf("record %d is %s: %w", seq, e.record.Status, ErrAlreadyFinal)
	}

	e.record = Record{
		Seq:     seq,
		Status:  status,
		Results: append([]optype.ResultType{}, results...),
	}

	record := e.record

	close(e.done)

	t.history = append(t.history, seq)

	t.Unlock()

	err := t.store(record)
	if err != nil {
		t.logger.Err(err).Uint32("seq", seq).Msg("failed to archive the record")
	}

	t.Lock()
	// The record can be evicted from now on, even if the archive failed.
	e.archived = true
	t.evict()
	t.Unlock()

	promPending.Dec()
	promFinalized.WithLabelValues(status.String()).Inc()

	t.logger.Debug().Uint32("seq", seq).Stringer("status", status).Msg("record finalized")

	t.watcher.Notify(Event{Record: record.Clone()})

	if err != nil {
		return xerrors.Errorf("failed to archive: %v", err)
	}

	return nil
}

// Get returns the record of the sequence number if it exists.
func (t *Table) Get(seq uint32) (Record, bool) {
	t.RLock()
	e, found := t.entries[seq]
	if found {
		record := e.record.Clone()
		t.RUnlock()

		return record, true
	}
	t.RUnlock()

	record, err := t.load(seq)
	if err != nil {
		return Record{}, false
	}

	return record, true
}

// Wait waits for the record to become terminal and returns it. It returns an
// error if the sequence number is unknown or if the context is done first.
func (t *Table) Wait(ctx context.Context, seq uint32) (Record, error) {
	t.RLock()
	e, found := t.entries[seq]
	t.RUnlock()

	if !found {
		record, err := t.load(seq)
		if err != nil {
			return Record{}, xerrors.Errorf("record %d not found: %w", seq, concord.UnknownError)
		}

		return record, nil
	}

	return Waiter{table: t, seq: seq, entry: e}.Wait(ctx)
}

// Evict removes a terminal record from the memory and from the archive.
func (t *Table) Evict(seq uint32) error {
	t.Lock()
	defer t.Unlock()

	e, found := t.entries[seq]
	if found && !e.record.Status.IsTerminal() {
		return xerrors.Errorf("record %d is pending", seq)
	}

	delete(t.entries, seq)

	if t.archive != nil {
		err := t.archive.Update(archiveBucket, func(b kv.Bucket) error {
			return b.Delete(makeKey(seq))
		})
		if err != nil {
			return xerrors.Errorf("failed to delete from archive: %v", err)
		}
	}

	return nil
}

// Len returns the number of records in memory.
func (t *Table) Len() int {
	t.RLock()
	defer t.RUnlock()

	return len(t.entries)
}

// Watch returns a channel populated with the records that become terminal. The
// channel is not closed, the observer is removed when the context is done.
func (t *Table) Watch(ctx context.Context) <-chan Event {
	ch := make(chan Event, 100)

	core.WatchFunc(ctx, t.watcher, func(event interface{}) {
		select {
		case ch <- Event{Record: event.(Event).Clone()}:
		default:
			// The watcher is too slow, the event is dropped.
		}
	})

	return ch
}

// Waiter waits for the completion of a single record.
type Waiter struct {
	table *Table
	seq   uint32
	entry *entry
}

// Wait waits for the record to become terminal and returns a copy of it. It
// returns an error if the context is done first.
func (w Waiter) Wait(ctx context.Context) (Record, error) {
	select {
	case <-w.entry.done:
		w.table.RLock()
		defer w.table.RUnlock()

		return w.entry.record.Clone(), nil
	case <-ctx.Done():
		return Record{}, xerrors.Errorf("interrupted while waiting for %d: %v", w.seq, ctx.Err())
	}
}

// evict drops the oldest finalized records above the history size, in the
// order of finalization. The lock must be held.
func (t *Table) evict() {
	if t.size < 0 {
		return
	}

	for len(t.history) > t.size {
		seq := t.history[0]

		e, found := t.entries[seq]
		if found && !e.archived {
			// The record is being archived and it will be evicted later.
			return
		}

		t.history = t.history[1:]

		if found {
			delete(t.entries, seq)
		}
	}
}

func (t *Table) store(record Record) error {
	if t.archive == nil {
		return nil
	}

	return t.archive.Update(archiveBucket, func(b kv.Bucket) error {
		return b.Set(makeKey(record.Seq), encodeRecord(record))
	})
}

func (t *Table) load(seq uint32) (Record, error) {
	if t.archive == nil {
		return Record{}, xerrors.New("no archive")
	}

	var record Record

	err := t.archive.View(archiveBucket, func(b kv.Bucket) error {
		value := b.Get(makeKey(seq))
		if value == nil {
			return xerrors.Errorf("record %d not archived", seq)
		}

		var err error
		record, err = decodeRecord(seq, value)

		return err
	})

	if err != nil {
		return Record{}, err
	}

	return record, nil
}

func makeKey(seq uint32) []byte {
	key := make([]byte, 4)
	binary.BigEndian.PutUint32(key, seq)

	return key
}

func encodeRecord(record Record) []byte {
	buffer := make([]byte, 1+len(record.Results))
	buffer[0] = byte(record.Status)

	for i, res := range record.Results {
		buffer[i+1] = byte(res)
	}

	return buffer
}

func decodeRecord(seq uint32, data []byte) (Record, error) {
	if len(data) == 0 {
		return Record{}, xerrors.Errorf("record %d is empty", seq)
	}

	record := Record{
		Seq:     seq,
		Status:  Status(data[0]),
		Results: make([]optype.ResultType, len(data)-1),
	}

	for i, b := range data[1:] {
		record.Results[i] = optype.ResultType(b)
	}

	return record, nil
}
