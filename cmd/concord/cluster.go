package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.dedis.ch/concord"
	"go.dedis.ch/concord/core/facility"
	"go.dedis.ch/concord/core/optype"
	"go.dedis.ch/concord/core/optype/builtin"
	"go.dedis.ch/concord/core/pipeline"
	"go.dedis.ch/concord/core/result"
	"go.dedis.ch/concord/core/store/kv"
	"go.dedis.ch/concord/internal/tracing"
	"go.dedis.ch/concord/mino"
	"go.dedis.ch/concord/mino/minoch"
	"golang.org/x/xerrors"
)

// miner is a member of the local cluster.
type miner struct {
	facility *facility.Facility
	register builtin.Register
	db       kv.DB
}

// cluster is a set of miners running in the same process and connected by
// channels.
type cluster struct {
	miners  []miner
	players mino.Players
	tmpDir  string
	server  *http.Server
}

// newCluster creates and starts the miners of the configuration. Each miner has
// its own database, which stores the register and the archive of the results.
func newCluster(cfg Config) (*cluster, error) {
	c := &cluster{}

	dir := cfg.DataDir
	if dir == "" {
		tmp, err := os.MkdirTemp("", "concord-")
		if err != nil {
			return nil, xerrors.Errorf("failed to create temp dir: %v", err)
		}

		c.tmpDir = tmp
		dir = tmp
	}

	err := os.MkdirAll(dir, 0700)
	if err != nil {
		c.close()
		return nil, xerrors.Errorf("failed to create data dir: %v", err)
	}

	manager := minoch.NewManager()

	minos := make([]mino.Mino, cfg.Miners)
	addrs := make([]mino.Address, cfg.Miners)

	for i := range minos {
		m, err := minoch.NewMinoch(manager, fmt.Sprintf("miner%d", i))
		if err != nil {
			c.close()
			return nil, xerrors.Errorf("failed to create overlay: %v", err)
		}

		minos[i] = m
		addrs[i] = m.GetAddress()
	}

	c.players = mino.NewAddresses(addrs...)

	for i, m := range minos {
		mnr, err := newMiner(cfg, dir, i, m)
		if err != nil {
			c.close()
			return nil, xerrors.Errorf("miner %d: %v", i, err)
		}

		c.miners = append(c.miners, mnr)
	}

	for i, mnr := range c.miners {
		err := mnr.facility.Start(c.players)
		if err != nil {
			c.close()
			return nil, xerrors.Errorf("failed to start miner %d: %v", i, err)
		}
	}

	if cfg.Metrics != "" {
		err := c.serveMetrics(cfg.Metrics)
		if err != nil {
			c.close()
			return nil, err
		}
	}

	return c, nil
}

func newMiner(cfg Config, dir string, index int, m mino.Mino) (miner, error) {
	db, err := kv.New(filepath.Join(dir, fmt.Sprintf("miner%d.db", index)))
	if err != nil {
		return miner{}, xerrors.Errorf("failed to open database: %v", err)
	}

	opts := []pipeline.Option{
		pipeline.WithRoundTimeout(cfg.RoundTimeout),
		pipeline.WithProposalTimeout(cfg.ProposalTimeout),
		pipeline.WithFinalizeTimeout(cfg.FinalizeTimeout),
	}

	if cfg.Tracing {
		tracer, err := tracing.GetTracerForAddr(m.GetAddress().String())
		if err != nil {
			db.Close()
			return miner{}, xerrors.Errorf("failed to get tracer: %v", err)
		}

		opts = append(opts, pipeline.WithTracer(tracer))
	}

	table := result.NewTable(
		result.WithHistory(cfg.History),
		result.WithArchive(db),
	)

	f := facility.NewFacility(m,
		facility.WithRegistry(optype.NewRegistry()),
		facility.WithTable(table),
		facility.WithMaxPayload(cfg.MaxPayload),
		facility.WithPipelineOptions(opts...),
	)

	register := builtin.NewRegister(db)

	err = f.AddOperationType(register)
	if err != nil {
		db.Close()
		return miner{}, xerrors.Errorf("failed to register: %v", err)
	}

	return miner{facility: f, register: register, db: db}, nil
}

// serveMetrics exposes the collectors of the packages on the address.
func (c *cluster) serveMetrics(addr string) error {
	reg := prometheus.NewRegistry()

	for _, collector := range concord.PromCollectors {
		err := reg.Register(collector)
		if err != nil {
			return xerrors.Errorf("failed to register collector: %v", err)
		}
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return xerrors.Errorf("failed to listen: %v", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	c.server = &http.Server{Handler: mux}

	go func() {
		err := c.server.Serve(ln)
		if err != nil && err != http.ErrServerClosed {
			concord.Logger.Err(err).Msg("metrics server stopped")
		}
	}()

	concord.Logger.Info().Stringer("addr", ln.Addr()).Msg("metrics available")

	return nil
}

// proposeAll makes every miner propose the same assignments in the same
// order. The miners propose concurrently, each of them waiting for an
// operation to complete before proposing the next one.
func (c *cluster) proposeAll(ctx context.Context, ops int) []error {
	errs := make([]error, len(c.miners))

	var wg sync.WaitGroup

	for i, mnr := range c.miners {
		wg.Add(1)

		go func(i int, f *facility.Facility) {
			defer wg.Done()

			for k := 1; k <= ops; k++ {
				data := []byte(fmt.Sprintf("key%d=value%d", k, k))

				err := f.BlockingPropose(ctx, builtin.RegisterName, data, nil)
				if err != nil && concord.CodeOf(err) != concord.Fail {
					errs[i] = xerrors.Errorf("miner %d: %v", i, err)
					return
				}
			}
		}(i, mnr.facility)
	}

	wg.Wait()

	return errs
}

// report prints the record of each sequence number as seen by the first
// miner.
func (c *cluster) report(out io.Writer, ops int) error {
	f := c.miners[0].facility

	for seq := uint32(1); seq <= uint32(ops); seq++ {
		record, err := f.Result(seq)
		if err != nil {
			return xerrors.Errorf("failed to read result: %v", err)
		}

		codes := make([]int, len(record.Results))
		for i, code := range record.Results {
			codes[i] = int(code)
		}

		fmt.Fprintf(out, "seq %d: %s %v\n", seq, record.Status, codes)
	}

	return nil
}

// close stops the miners and releases the resources of the cluster.
func (c *cluster) close() error {
	var first error

	keep := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}

	if c.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		keep(c.server.Shutdown(ctx))
		cancel()
	}

	for _, mnr := range c.miners {
		if mnr.facility.GetLifecycle() == facility.Running {
			keep(mnr.facility.Stop())
		}

		keep(mnr.db.Close())
	}

	keep(tracing.CloseAll())

	if c.tmpDir != "" {
		keep(os.RemoveAll(c.tmpDir))
	}

	return first
}
