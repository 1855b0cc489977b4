// Command statedbd is the thin operational entrypoint: it opens a
// backend at a configured path and drives the submission pipeline.
// Consensus and p2p daemon wiring live outside this repo; this is only
// the minimal entrypoint that exercises the state database itself.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/urfave/cli/v2"

	"github.com/trust-net/go-forkstate/backend"
	"github.com/trust-net/go-forkstate/config"
	"github.com/trust-net/go-forkstate/forkdb"
	statedblog "github.com/trust-net/go-forkstate/log"
	"github.com/trust-net/go-forkstate/mq"
	"github.com/trust-net/go-forkstate/pipeline"
)

func main() {
	app := &cli.App{
		Name:  "statedbd",
		Usage: "fork-aware versioned state database daemon",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "backend.driver"},
			&cli.StringFlag{Name: "backend.path"},
			&cli.IntFlag{Name: "pipeline.max_queue_size"},
			&cli.IntFlag{Name: "execution.stack_limit"},
			&cli.BoolFlag{Name: "mq.enabled", Value: false, Usage: "publish accept events to AMQP"},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg, err := config.Load(rawArgs(c))
	if err != nil {
		return err
	}

	logger := statedblog.NewLogger("statedbd")

	var store backend.Backend
	switch cfg.BackendDriver {
	case config.DriverLevel:
		store, err = backend.NewLevelBackend(cfg.BackendPath, 256, 256)
	default:
		store = backend.NewMemBackend()
	}
	if err != nil {
		return err
	}
	defer store.Close()

	fork := forkdb.New(store, cfg.RootCodec)

	controller := pipeline.New(fork, cfg.MaxQueueSize)
	controller.SetHostAPI(newHostAPI(), cfg.StackLimit)
	if c.Bool("mq.enabled") {
		amqpPub, err := mq.Dial(cfg.AMQPURL, cfg.AMQPEventName)
		if err != nil {
			return err
		}
		defer amqpPub.Close()
		controller.SetPublisher(amqpPub)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	logger.Info("statedbd starting, backend=%s path=%s", cfg.BackendDriver, cfg.BackendPath)
	return controller.Run(ctx, 1)
}

func rawArgs(c *cli.Context) []string {
	var args []string
	for _, name := range []string{"backend.driver", "backend.path", "pipeline.max_queue_size", "execution.stack_limit"} {
		if c.IsSet(name) {
			args = append(args, "--"+name, c.String(name))
		}
	}
	return args
}
