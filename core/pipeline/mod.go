// Package pipeline implements the protocol that drives every proposal through
// the equivalence check, the execution and the commit on all the miners.
//
// The miner at the first index of the roster is the leader. Every miner
// forwards its proposals to the leader in the order of their sequence
// numbers. The leader gathers the proposal of every miner for a sequence
// number, decides if they are equivalent and broadcasts its verdict. Each
// miner then executes the operation and replies with its result code. When
// the leader holds all the codes, it broadcasts the commit. The rounds are
// processed one after the other in ascending order of sequence number so that
// no miner commits a sequence before the previous one is final.
//
// A round fails when the proposals are rejected, or when a miner does not
// participate in time. Every miner also guards its own proposals with a
// watchdog so that a sequence number is always finalized eventually.
package pipeline

import (
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.dedis.ch/concord"
	"golang.org/x/xerrors"
)

const (
	rpcName = "pipeline"

	// DefaultRoundTimeout is the default time the leader waits for the
	// replies of the miners in a phase of a round.
	DefaultRoundTimeout = 10 * time.Second

	// DefaultProposalTimeout is the default time the leader waits for the
	// proposals of all the miners for the next sequence number.
	DefaultProposalTimeout = 10 * time.Second

	// DefaultFinalizeTimeout is the default time after which a miner gives up
	// on one of its proposals.
	DefaultFinalizeTimeout = time.Minute

	// DefaultQueueSize is the default number of proposals waiting to be sent
	// to the leader.
	DefaultQueueSize = 256
)

// ErrQueueFull is returned when a proposal cannot be queued.
var ErrQueueFull = xerrors.Errorf("queue is full: %w", concord.OutOfMemory)

// ErrClosed is returned when the service is closed.
var ErrClosed = xerrors.Errorf("service is closed: %w", concord.NotStarted)

// State is the state of a sequence number in the pipeline of a miner.
type State uint8

const (
	// None is the state of an unknown sequence number.
	None State = iota

	// Proposed means the proposal is waiting for the verdict of the leader.
	Proposed

	// EquivalenceChecked means the leader accepted the proposals.
	EquivalenceChecked

	// Executing means the operation is being executed.
	Executing

	// Committing means the operation is being committed.
	Committing

	// Done means the operation is committed.
	Done

	// Failed means the operation did not succeed.
	Failed
)

var stateNames = map[State]string{
	None:               "none",
	Proposed:           "proposed",
	EquivalenceChecked: "equivalence-checked",
	Executing:          "executing",
	Committing:         "committing",
	Done:               "done",
	Failed:             "failed",
}

func (s State) String() string {
	name, found := stateNames[s]
	if !found {
		return "unknown"
	}

	return name
}

// StateEvent is the event notified when a sequence number changes state.
type StateEvent struct {
	Seq   uint32
	State State
}

type config struct {
	roundTimeout    time.Duration
	proposalTimeout time.Duration
	finalizeTimeout time.Duration
	queueSize       int
	firstSeq        uint32
	tracer          opentracing.Tracer
	logger          zerolog.Logger
}

// Option is the type of option to create a service.
type Option func(*config)

// WithRoundTimeout sets the time the leader waits for the replies of the
// miners in each phase of a round.
func WithRoundTimeout(d time.Duration) Option {
	return func(c *config) {
		c.roundTimeout = d
	}
}

// WithProposalTimeout sets the time the leader waits for the proposals of all
// the miners for a sequence number.
func WithProposalTimeout(d time.Duration) Option {
	return func(c *config) {
		c.proposalTimeout = d
	}
}

// WithFinalizeTimeout sets the time after which a miner fails a proposal that
// the leader did not finalize.
func WithFinalizeTimeout(d time.Duration) Option {
	return func(c *config) {
		c.finalizeTimeout = d
	}
}

// WithQueueSize sets the number of proposals that can wait to be sent to the
// leader.
func WithQueueSize(n int) Option {
	return func(c *config) {
		c.queueSize = n
	}
}

// WithFirstSequence sets the first sequence number that the leader expects.
func WithFirstSequence(seq uint32) Option {
	return func(c *config) {
		c.firstSeq = seq
	}
}

// WithTracer sets the tracer used to trace the rounds.
func WithTracer(tracer opentracing.Tracer) Option {
	return func(c *config) {
		c.tracer = tracer
	}
}

// WithLogger sets the logger of the service.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

var (
	promRounds = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "concord_pipeline_rounds_total",
		Help: "total number of rounds run by the leader",
	}, []string{"outcome"})

	promRoundDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "concord_pipeline_round_seconds",
		Help:    "duration of the rounds run by the leader",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 16),
	})
)

func init() {
	concord.PromCollectors = append(concord.PromCollectors, promRounds, promRoundDuration)
}
