// Package facility implements the front-end of the consensus facility. It
// validates the requests of the callers and delegates the protocol to the
// pipeline.
//
// A facility is created for a miner and started on a roster. Once running, a
// caller proposes a payload for a registered operation type and receives the
// sequence number assigned to it. The completion is either polled with Done
// or awaited with BlockingPropose.
//
// Documentation Last Review: 18.10.2026
package facility

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.dedis.ch/concord"
	"go.dedis.ch/concord/core/optype"
	"go.dedis.ch/concord/core/pipeline"
	"go.dedis.ch/concord/core/result"
	"go.dedis.ch/concord/core/sequence"
	"go.dedis.ch/concord/mino"
	"golang.org/x/xerrors"
)

var promProposals = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "concord_facility_proposals_total",
	Help: "total number of accepted proposals",
}, []string{"optype"})

func init() {
	concord.PromCollectors = append(concord.PromCollectors, promProposals)
}

// Lifecycle is the state of a facility.
type Lifecycle uint8

const (
	// Uninitialized is the state of a facility that has never been started.
	Uninitialized Lifecycle = iota

	// Running is the state of a facility that accepts proposals.
	Running

	// Stopped is the state of a facility after it is stopped. It cannot be
	// started again.
	Stopped
)

func (l Lifecycle) String() string {
	switch l {
	case Uninitialized:
		return "uninitialized"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Option is the type of option to create a facility.
type Option func(*Facility)

// WithRegistry sets the registry of the operation types.
func WithRegistry(reg *optype.Registry) Option {
	return func(f *Facility) {
		f.registry = reg
	}
}

// WithTable sets the table where the results are stored.
func WithTable(table *result.Table) Option {
	return func(f *Facility) {
		f.table = table
	}
}

// WithAllocator sets the allocator of the sequence numbers.
func WithAllocator(alloc *sequence.Allocator) Option {
	return func(f *Facility) {
		f.alloc = alloc
	}
}

// WithPipelineOptions sets the options of the pipeline created when the
// facility starts.
func WithPipelineOptions(opts ...pipeline.Option) Option {
	return func(f *Facility) {
		f.pipeOpts = append(f.pipeOpts, opts...)
	}
}

// WithMaxPayload sets the maximum size of a payload in bytes. Zero means no
// limit.
func WithMaxPayload(size int) Option {
	return func(f *Facility) {
		f.maxPayload = size
	}
}

// Facility is the consensus facility of a miner.
type Facility struct {
	sync.RWMutex

	mino       mino.Mino
	registry   *optype.Registry
	table      *result.Table
	alloc      *sequence.Allocator
	pipeOpts   []pipeline.Option
	maxPayload int
	state      Lifecycle
	service    *pipeline.Service
	logger     zerolog.Logger
}

// NewFacility creates a new facility for the miner reachable through the
// overlay.
func NewFacility(m mino.Mino, opts ...Option) *Facility {
	f := &Facility{
		mino:   m,
		logger: concord.Logger.With().Str("addr", m.GetAddress().String()).Logger(),
	}

	for _, opt := range opts {
		opt(f)
	}

	if f.registry == nil {
		f.registry = optype.NewRegistry()
	}

	if f.table == nil {
		f.table = result.NewTable(result.WithLogger(f.logger))
	}

	if f.alloc == nil {
		f.alloc = sequence.NewAllocator()
	}

	return f
}

// GetLifecycle returns the state of the facility.
func (f *Facility) GetLifecycle() Lifecycle {
	f.RLock()
	defer f.RUnlock()

	return f.state
}

// GetService returns the pipeline of the facility, or nil if it is not
// running.
func (f *Facility) GetService() *pipeline.Service {
	f.RLock()
	defer f.RUnlock()

	return f.service
}

// Start starts the pipeline with the roster of the miners. The first player
// of the roster leads the rounds.
func (f *Facility) Start(players mino.Players) error {
	f.Lock()
	defer f.Unlock()

	if f.state != Uninitialized {
		return xerrors.Errorf("facility is %s", f.state)
	}

	opts := append([]pipeline.Option{
		pipeline.WithLogger(f.logger),
		pipeline.WithFirstSequence(f.alloc.Current() + 1),
	}, f.pipeOpts...)

	srv, err := pipeline.NewService(f.mino, players, f.registry, f.table, opts...)
	if err != nil {
		return xerrors.Errorf("failed to start pipeline: %v", err)
	}

	f.service = srv
	f.state = Running

	f.logger.Info().Int("miners", players.Len()).Msg("facility started")

	return nil
}

// Stop stops the pipeline. The pending proposals of this miner are failed.
func (f *Facility) Stop() error {
	f.Lock()
	defer f.Unlock()

	if f.state != Running {
		return xerrors.Errorf("facility is %s: %w", f.state, concord.NotStarted)
	}

	err := f.service.Close()
	if err != nil {
		return xerrors.Errorf("failed to close pipeline: %v", err)
	}

	f.service = nil
	f.state = Stopped

	f.logger.Info().Msg("facility stopped")

	return nil
}

// AddOperationType registers the operation type. The facility can be in any
// state.
func (f *Facility) AddOperationType(t optype.OperationType) error {
	err := f.registry.Add(t)
	if err != nil {
		return xerrors.Errorf("failed to add operation type: %w", err)
	}

	return nil
}

// Propose proposes the payload for the operation type and returns the sequence
// number assigned to it. It does not wait for the operation to complete. The
// payload is copied, and the callback is given to the operation type when it
// is executed and committed on this miner.
func (f *Facility) Propose(name string, data []byte, callback interface{}) (uint32, error) {
	seq, _, err := f.propose(name, data, callback)

	return seq, err
}

// BlockingPropose proposes the payload like Propose, then waits for the
// operation to complete. It returns nil when the operation is done on every
// miner, or an error with the Fail code otherwise. When the context is done
// first, the operation keeps running in the background.
func (f *Facility) BlockingPropose(ctx context.Context, name string, data []byte,
	callback interface{}) error {

	seq, waiter, err := f.propose(name, data, callback)
	if err != nil {
		return err
	}

	// The waiter outlives the eviction of the record from the table.
	record, err := waiter.Wait(ctx)
	if err != nil {
		return xerrors.Errorf("failed to wait: %v", err)
	}

	if record.Status != result.Done {
		return xerrors.Errorf("sequence %d failed: %w", seq, concord.Fail)
	}

	return nil
}

func (f *Facility) propose(name string, data []byte,
	callback interface{}) (uint32, result.Waiter, error) {

	f.RLock()
	defer f.RUnlock()

	if f.state != Running {
		return 0, result.Waiter{}, xerrors.Errorf("facility is %s: %w", f.state, concord.NotStarted)
	}

	if f.maxPayload > 0 && len(data) > f.maxPayload {
		return 0, result.Waiter{}, xerrors.Errorf("payload of %d bytes exceeds %d: %w",
			len(data), f.maxPayload, concord.OutOfMemory)
	}

	_, err := f.registry.Get(name)
	if err != nil {
		return 0, result.Waiter{}, xerrors.Errorf("registry: %w", err)
	}

	seq, err := f.alloc.Next()
	if err != nil {
		return 0, result.Waiter{}, xerrors.Errorf("failed to allocate: %v", err)
	}

	waiter, err := f.table.Track(seq)
	if err != nil {
		return 0, result.Waiter{}, xerrors.Errorf("failed to insert: %v", err)
	}

	err = f.service.Propose(seq, name, data, callback)
	if err != nil {
		return 0, result.Waiter{}, xerrors.Errorf("pipeline refused %d: %w", seq, err)
	}

	promProposals.WithLabelValues(name).Inc()

	f.logger.Debug().Uint32("seq", seq).Str("optype", name).Msg("proposal accepted")

	return seq, waiter, nil
}

// Done returns the status of the sequence number without waiting: OK when the
// operation is done, Again when it is pending, Fail when it failed, and
// UnknownError when the sequence number is not known.
func (f *Facility) Done(seq uint32) concord.Code {
	record, found := f.table.Get(seq)
	if !found {
		return concord.UnknownError
	}

	switch record.Status {
	case result.Pending:
		return concord.Again
	case result.Done:
		return concord.OK
	default:
		return concord.Fail
	}
}

// Result returns the record of the sequence number with the result codes of
// every miner.
func (f *Facility) Result(seq uint32) (result.Record, error) {
	record, found := f.table.Get(seq)
	if !found {
		return result.Record{}, xerrors.Errorf("sequence %d not found: %w", seq, concord.UnknownError)
	}

	return record, nil
}
