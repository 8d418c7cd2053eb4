// Package result implements the table that tracks the completion of the
// proposals.
//
// A record is created as pending when a proposal is accepted, and the
// pipeline is its single writer: it finalizes the record once, as done or
// failed, after which the record is immutable. Readers poll the status or wait
// for it without spinning.
//
// Finalized records are kept in memory for a bounded history. An archive can
// be provided so that evicted records remain readable.
package result

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.dedis.ch/concord"
	"go.dedis.ch/concord/core/optype"
)

// Status is the completion status of a proposal.
type Status byte

const (
	// Pending means the proposal is still in the pipeline.
	Pending Status = iota

	// Done means the proposal has been committed by all the miners.
	Done

	// Failed means the proposal did not succeed on all the miners.
	Failed
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsTerminal returns true if the status cannot change anymore.
func (s Status) IsTerminal() bool {
	return s == Done || s == Failed
}

// Record is the state of a proposal.
type Record struct {
	Seq     uint32
	Status  Status
	Results []optype.ResultType
}

func (r Record) String() string {
	return fmt.Sprintf("Record[%d:%s:%v]", r.Seq, r.Status, r.Results)
}

// Clone returns a copy of the record that does not share the result codes.
func (r Record) Clone() Record {
	if r.Results != nil {
		r.Results = append([]optype.ResultType{}, r.Results...)
	}

	return r
}

// Event is the event notified when a record becomes terminal.
type Event struct {
	Record
}

var (
	promPending = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "concord_results_pending",
		Help: "number of proposals waiting for their completion",
	})

	promFinalized = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "concord_results_finalized_total",
		Help: "total number of finalized proposals",
	}, []string{"status"})
)

func init() {
	concord.PromCollectors = append(concord.PromCollectors, promPending, promFinalized)
}
