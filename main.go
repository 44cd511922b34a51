package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/maxpert/logcursor/cfg"
	_ "github.com/maxpert/logcursor/logclient/backend"
	"github.com/maxpert/logcursor/telemetry"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const version = "0.1.0"

func main() {
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}

	cmd := args[0]
	switch cmd {
	case "version":
		fmt.Printf("logcursor version %s\n", version)
		return
	case "help", "-h", "--help":
		printUsage()
		return
	}

	// Load configuration
	if err := cfg.Load(*cfg.ConfigPathFlag); err != nil {
		panic(err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("Invalid configuration: %v", err))
	}

	setupLogging()
	telemetry.InitializeTelemetry()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error
	switch cmd {
	case "produce":
		err = runProduce(ctx, args[1:])
	case "consume":
		err = runConsume(ctx, args[1:])
	case "next-offsets":
		err = runNextOffsets(ctx, args[1:])
	case "latest-cursors":
		err = runLatestCursors(ctx, args[1:])
	case "create-topic":
		err = runCreateTopic(ctx, args[1:])
	case "topic-config":
		err = runTopicConfig(ctx, args[1:])
	case "serve":
		err = runServe(ctx, args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		log.Fatal().Err(err).Str("command", cmd).Msg("Command failed")
	}
}

// setupLogging sends logs to stderr so command output on stdout stays machine readable
func setupLogging() {
	var gLog zerolog.Logger
	if cfg.Config.Logging.Format == "json" {
		gLog = zerolog.New(os.Stderr)
	} else {
		gLog = zerolog.New(zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) {
			w.Out = os.Stderr
		}))
	}

	gLog = gLog.With().
		Timestamp().
		Str("backend", string(cfg.Config.Log.Backend)).
		Logger()

	if cfg.Config.Logging.Verbose {
		log.Logger = gLog.Level(zerolog.DebugLevel)
	} else {
		log.Logger = gLog.Level(zerolog.InfoLevel)
	}
}

func printUsage() {
	fmt.Println(`logcursor - cursors and test traffic for partitioned logs

Usage:
  logcursor [global options] <command> [options]

Global Options:
  --config        Path to configuration file (default: logcursor.toml)
  --backend       kafka | nats | local (overrides config)
  --brokers       Comma-separated broker addresses (overrides config)
  --local-dir     Data directory of the local backend (overrides config)

Commands:
  produce         Write a quoted test message to a partition
  consume         Read records written after a cursor
  next-offsets    Print the high-water mark of every partition
  latest-cursors  Print cursors that only see events written from now on
  create-topic    Create a topic
  topic-config    Print retention.ms and cleanup.policy of a topic
  serve           Run the admin HTTP server and offset collector
  version         Print version
  help            Show this help

Produce Options:
  --topic         Topic name (required)
  --partition     Partition id (default: routed by key hash)
  --message       Message text, written wrapped in double quotes
  --times         Number of copies to write (default: 1)

Consume Options:
  --topic         Topic name (required)
  --partition     Partition id (default: 0)
  --cursor        Cursor token to read after (default: 001-0001--1)
  --max           Maximum records to return (default: 100)

Create Topic Options:
  --topic               Topic name (required)
  --partitions          Partition count (default: from config)
  --replication-factor  Replication factor (default: from config)
  --retention-ms        retention.ms entry (optional)
  --cleanup-policy      cleanup.policy entry (optional)

Examples:
  logcursor --backend=local create-topic --topic=orders --partitions=3
  logcursor --backend=local produce --topic=orders --partition=1 --message=hello --times=5
  logcursor --backend=local latest-cursors --topic=orders
  logcursor --brokers=localhost:9092 serve`)
}
