package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lib/pq"
	"github.com/pterm/pterm"
	"github.com/urfave/cli/v2"

	"github.com/bartossh/Federation/configuration"
	"github.com/bartossh/Federation/dataprovider"
	"github.com/bartossh/Federation/federation"
	"github.com/bartossh/Federation/logger"
	"github.com/bartossh/Federation/logging"
	"github.com/bartossh/Federation/logo"
	"github.com/bartossh/Federation/natsclient"
	"github.com/bartossh/Federation/reactive"
	"github.com/bartossh/Federation/repomongo"
	"github.com/bartossh/Federation/repository"
	"github.com/bartossh/Federation/server"
	"github.com/bartossh/Federation/stdoutwriter"
	"github.com/bartossh/Federation/telemetry"
	"github.com/bartossh/Federation/wallet"
	"github.com/bartossh/Federation/webhooks"
	"github.com/bartossh/Federation/zincadapter"
)

const usage = `Federation node runs the federation coordinator of the cross-ledger bridge.
It keeps the federators registry and the transaction proposals ledger in the journal,
serves the REST and websocket API and fans committed events out to webhooks and nats.`

const (
	eventsBufferSize     = 1024
	droppedGauge         = "reactive_dropped_events"
	journalLastIDGauge   = "journal_last_event_id"
	observeDropsInterval = 5 * time.Second
)

// journal is the storage of the federation events able to serve transaction history.
type journal interface {
	federation.Journal
	server.HistoryReader
}

func main() {
	logo.Display()

	var file string
	configurator := func() (configuration.Configuration, error) {
		if file == "" {
			return configuration.Configuration{}, errors.New("please specify configuration file path with -c <path to file>")
		}

		cfg, err := configuration.Read(file)
		if err != nil {
			return cfg, err
		}
		if err := cfg.Federation.Validate(); err != nil {
			return cfg, err
		}

		return cfg, nil
	}

	app := &cli.App{
		Name:  "federation",
		Usage: usage,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Load configuration from `FILE`",
				Destination: &file,
			},
		},
		Action: func(_ *cli.Context) error {
			cfg, err := configurator()
			if err != nil {
				return err
			}
			return run(cfg)
		},
	}

	if err := app.Run(os.Args); err != nil {
		pterm.Error.Println(err.Error())
		os.Exit(1)
	}
}

func run(cfg configuration.Configuration) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		cancel()
	}()

	callbackOnErr := func(err error) {
		fmt.Println("error with logger: ", err)
	}

	callbackOnFatal := func(err error) {
		panic(fmt.Sprintf("error with logger: %s", err))
	}

	writers := []io.Writer{stdoutwriter.Logger{}}
	var j journal
	var closers []func(context.Context) error

	switch cfg.Federation.Storage {
	case federation.StoragePostgres:
		db, err := repository.Connect(ctx, cfg.Database)
		if err != nil {
			return err
		}
		closers = append(closers, db.Disconnect)
		if err := db.RunMigration(ctx); err != nil {
			return err
		}
		j = db
		writers = append(writers, db)
	case federation.StorageMongo:
		db, err := repomongo.Connect(ctx, cfg.Mongo)
		if err != nil {
			return err
		}
		closers = append(closers, db.Disconnect)
		if err := db.RunMigration(ctx); err != nil {
			return err
		}
		j = db
		writers = append(writers, db)
	default:
		j = federation.NewMemoryJournal()
	}
	defer func() {
		ctxx, cancelx := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelx()
		for _, disconnect := range closers {
			if err := disconnect(ctxx); err != nil {
				pterm.Error.Println(err.Error())
			}
		}
	}()

	if cfg.Zinc.Address != "" {
		zinc, err := zincadapter.New(cfg.Zinc)
		if err != nil {
			pterm.Error.Println(err.Error())
			return err
		}
		writers = append(writers, zinc)
	}

	log := logging.New(callbackOnErr, callbackOnFatal, writers...).WithLevel(cfg.LogLevel)

	tele, err := telemetry.Run(ctx, cancel, cfg.Telemetry.Port)
	if err != nil {
		log.Error(err.Error())
		return err
	}

	obs := reactive.New[federation.Event](eventsBufferSize)
	fed, err := federation.New(ctx, cfg.Federation.Members, cfg.Federation.Owner, j, obs, log)
	if err != nil {
		log.Error(fmt.Sprintf("federation cannot start: %s", err))
		return err
	}
	go observeDrops(ctx, obs, tele)

	if cfg.Federation.Storage == federation.StoragePostgres {
		if err := watchJournal(ctx, cfg.Database, tele, log); err != nil {
			log.Warn(fmt.Sprintf("journal notifications are not available: %s", err))
		}
	}

	deps := server.Dependencies{
		Federation:   fed,
		History:      j,
		DataProvider: dataprovider.New(ctx, cfg.DataProvider),
		Verifier:     wallet.NewVerifier(),
		Webhooks:     webhooks.New(log),
		Subscription: obs.Subscribe(),
		Telemetry:    tele,
	}

	if cfg.Nats.Address != "" {
		pub, err := natsclient.PublisherConnect(cfg.Nats)
		if err != nil {
			log.Error(fmt.Sprintf("nats publisher cannot connect: %s", err))
			return err
		}
		defer pub.Disconnect()
		deps.Publisher = pub
	}

	log.Info(fmt.Sprintf("federation node starting on port [ %d ] with [ %s ] journal", cfg.Server.Port, cfg.Federation.Storage))

	if err := server.Run(ctx, cfg.Server, deps, log); err != nil {
		log.Error(err.Error())
		return err
	}
	return nil
}

func observeDrops(ctx context.Context, obs *reactive.Observable[federation.Event], tele *telemetry.Measurements) {
	tele.CreateUpdateObservableGauge(droppedGauge, "Number of events missed by slow subscribers.")
	ticker := time.NewTicker(observeDropsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tele.SetGauge(droppedGauge, float64(obs.Dropped()))
		}
	}
}

// watchJournal follows postgres notifications about appended journal rows.
func watchJournal(ctx context.Context, cfg repository.DBConfig, tele *telemetry.Measurements, log logger.Logger) error {
	report := func(ev pq.ListenerEventType, err error) {
		if err != nil {
			log.Warn(fmt.Sprintf("journal listener event [ %d ]: %s", ev, err))
		}
	}
	listener, err := repository.Listen(cfg, report)
	if err != nil {
		return err
	}

	tele.CreateUpdateObservableGauge(journalLastIDGauge, "Identifier of the last appended journal row.")
	ids := make(chan int64, eventsBufferSize)
	listener.SubscribeAppended(ctx, ids)

	go func() {
		defer listener.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case id := <-ids:
				tele.SetGauge(journalLastIDGauge, float64(id))
				log.Debug(fmt.Sprintf("journal row [ %d ] appended", id))
			}
		}
	}()
	return nil
}
