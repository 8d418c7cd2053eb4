// Package main implements a command line tool that runs a consensus cluster in
// a single process.
//
//	go run ./cmd/concord run --miners 4 --ops 10
//	go run ./cmd/concord run --config cluster.yaml --metrics :9100
//	go run ./cmd/concord version
//
// The configuration file uses the following keys, all optional:
//
//	miners: 4
//	ops: 10
//	datadir: /tmp/concord
//	history: 1024
//	maxpayload: 4096
//	roundtimeout: 10s
//	proposaltimeout: 10s
//	finalizetimeout: 1m
//	metrics: ":9100"
//	tracing: false
//
// The flags of the run command can also be set with environment variables,
// for instance CONCORD_MINERS=4.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.dedis.ch/concord"
	"go.dedis.ch/concord/cli"
	"go.dedis.ch/concord/cli/ucli"
	"golang.org/x/xerrors"
)

// Version is the version of the tool.
const Version = "v0.1.0"

var printer io.Writer = os.Stdout

func main() {
	err := run(os.Args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%+v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	builder := ucli.NewBuilder("concord", "run a consensus cluster in a single process")
	builder.SetEnvPrefix("concord")

	cmd := builder.SetCommand("run")
	cmd.SetDescription("run a local cluster and propose operations on every miner")
	cmd.SetFlags(
		cli.StringFlag{
			Name:  "config",
			Usage: "path to a YAML configuration file",
		},
		cli.IntFlag{
			Name:  "miners",
			Usage: "number of miners in the cluster",
			Value: DefaultConfig().Miners,
		},
		cli.IntFlag{
			Name:  "ops",
			Usage: "number of operations to propose",
			Value: DefaultConfig().Ops,
		},
		cli.StringFlag{
			Name:  "db",
			Usage: "directory of the databases of the miners",
		},
		cli.StringFlag{
			Name:  "metrics",
			Usage: "address to expose the Prometheus metrics",
		},
		cli.BoolFlag{
			Name:  "tracing",
			Usage: "trace the rounds with Jaeger",
		},
		cli.DurationFlag{
			Name:  "timeout",
			Usage: "timeout of a round",
			Value: DefaultConfig().RoundTimeout,
		},
	)
	cmd.SetAction(runAction)

	cmd = builder.SetCommand("version")
	cmd.SetDescription("print the version")
	cmd.SetAction(func(cli.Flags) error {
		fmt.Fprintln(printer, Version)
		return nil
	})

	return builder.Build().Run(args)
}

func runAction(flags cli.Flags) error {
	cfg := DefaultConfig()

	path := flags.String("config")
	if path != "" {
		var err error

		cfg, err = LoadConfig(path)
		if err != nil {
			return err
		}
	}

	cfg.Override(flags)

	err := cfg.Validate()
	if err != nil {
		return err
	}

	c, err := newCluster(cfg)
	if err != nil {
		return xerrors.Errorf("failed to create cluster: %v", err)
	}

	concord.Logger.Info().
		Int("miners", cfg.Miners).
		Int("ops", cfg.Ops).
		Msg("cluster started")

	for _, err := range c.proposeAll(context.Background(), cfg.Ops) {
		if err != nil {
			c.close()
			return xerrors.Errorf("failed to propose: %v", err)
		}
	}

	err = c.report(printer, cfg.Ops)
	if err != nil {
		c.close()
		return err
	}

	err = c.close()
	if err != nil {
		return xerrors.Errorf("failed to close cluster: %v", err)
	}

	return nil
}
