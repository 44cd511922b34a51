package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/maxpert/logcursor/admin"
	"github.com/maxpert/logcursor/cfg"
	"github.com/maxpert/logcursor/cursor"
	"github.com/maxpert/logcursor/logclient"
	"github.com/maxpert/logcursor/telemetry"
	"github.com/rs/zerolog/log"
)

var errTopicRequired = errors.New("--topic is required")

func openHelper() (*logclient.Helper, error) {
	backend, err := logclient.NewBackend(cfg.Config)
	if err != nil {
		return nil, err
	}
	return logclient.NewHelper(backend, logclient.HelperConfigFrom(cfg.Config)), nil
}

// requestContext bounds one backend call by the configured request timeout
func requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, time.Duration(cfg.Config.Log.RequestTimeoutMS)*time.Millisecond)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseFlags(fs *flag.FlagSet, args []string) {
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		os.Exit(1)
	}
}

func runProduce(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("produce", flag.ExitOnError)
	topic := fs.String("topic", "", "Topic name")
	partition := fs.String("partition", "", "Partition id (empty routes by key)")
	message := fs.String("message", "", "Message text")
	times := fs.Int("times", 1, "Number of copies to write")
	parseFlags(fs, args)

	if *topic == "" {
		return errTopicRequired
	}

	helper, err := openHelper()
	if err != nil {
		return err
	}
	defer helper.Close()

	ctx, cancel := requestContext(ctx)
	defer cancel()

	if *partition == "" {
		err = helper.WriteMessages(ctx, *topic, *message, *times)
	} else {
		err = helper.WriteMultipleMessagesToPartition(ctx, *partition, *topic, *message, *times)
	}
	if err != nil {
		return err
	}

	log.Info().Str("topic", *topic).Str("partition", *partition).Int("count", *times).Msg("Messages written")
	return nil
}

type consumedRecord struct {
	Cursor string    `json:"cursor"`
	Key    string    `json:"key"`
	Value  string    `json:"value"`
	Time   time.Time `json:"time"`
}

func runConsume(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("consume", flag.ExitOnError)
	topic := fs.String("topic", "", "Topic name")
	partition := fs.String("partition", "0", "Partition id")
	token := fs.String("cursor", cursor.SentinelOffset, "Cursor token to read after")
	maxRecords := fs.Int("max", 100, "Maximum records to return")
	parseFlags(fs, args)

	if *topic == "" {
		return errTopicRequired
	}

	helper, err := openHelper()
	if err != nil {
		return err
	}
	defer helper.Close()

	ctx, cancel := requestContext(ctx)
	defer cancel()

	records, err := helper.ReadAfter(ctx, *topic, cursor.FromText(*partition, *token), *maxRecords)
	if err != nil {
		return err
	}

	out := make([]consumedRecord, 0, len(records))
	for _, r := range records {
		c, err := cursor.New(strconv.Itoa(r.Partition), r.Offset)
		if err != nil {
			return err
		}
		out = append(out, consumedRecord{Cursor: c.Offset, Key: string(r.Key), Value: string(r.Value), Time: r.Time})
	}
	return printJSON(out)
}

func runNextOffsets(ctx context.Context, args []string) error {
	return runResolve(ctx, "next-offsets", args, (*logclient.Helper).GetNextOffsets)
}

func runLatestCursors(ctx context.Context, args []string) error {
	return runResolve(ctx, "latest-cursors", args, (*logclient.Helper).GetOffsetsToReadFromLatest)
}

func runResolve(ctx context.Context, name string, args []string, resolve func(*logclient.Helper, context.Context, string) ([]cursor.Cursor, error)) error {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	topic := fs.String("topic", "", "Topic name")
	parseFlags(fs, args)

	if *topic == "" {
		return errTopicRequired
	}

	helper, err := openHelper()
	if err != nil {
		return err
	}
	defer helper.Close()

	ctx, cancel := requestContext(ctx)
	defer cancel()

	cursors, err := resolve(helper, ctx, *topic)
	if err != nil {
		return err
	}
	return printJSON(cursors)
}

func runCreateTopic(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("create-topic", flag.ExitOnError)
	topic := fs.String("topic", "", "Topic name")
	partitions := fs.Int("partitions", cfg.Config.Topic.Partitions, "Partition count")
	replication := fs.Int("replication-factor", cfg.Config.Topic.ReplicationFactor, "Replication factor")
	retention := fs.String("retention-ms", "", "retention.ms entry")
	cleanup := fs.String("cleanup-policy", "", "cleanup.policy entry")
	parseFlags(fs, args)

	if *topic == "" {
		return errTopicRequired
	}

	config := make(map[string]string, len(cfg.Config.Topic.Config)+2)
	for k, v := range cfg.Config.Topic.Config {
		config[k] = v
	}
	if *retention != "" {
		config[logclient.PropertyRetentionMS] = *retention
	}
	if *cleanup != "" {
		config[logclient.PropertyCleanupPolicy] = *cleanup
	}

	helper, err := openHelper()
	if err != nil {
		return err
	}
	defer helper.Close()

	ctx, cancel := requestContext(ctx)
	defer cancel()

	return helper.CreateTopicWithSpec(ctx, logclient.TopicSpec{
		Name:              *topic,
		Partitions:        *partitions,
		ReplicationFactor: *replication,
		Config:            config,
	})
}

func runTopicConfig(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("topic-config", flag.ExitOnError)
	topic := fs.String("topic", "", "Topic name")
	parseFlags(fs, args)

	if *topic == "" {
		return errTopicRequired
	}

	helper, err := openHelper()
	if err != nil {
		return err
	}
	defer helper.Close()

	ctx, cancel := requestContext(ctx)
	defer cancel()

	out := make(map[string]interface{})
	if retention, err := helper.GetTopicRetentionTime(ctx, *topic); err == nil {
		out[logclient.PropertyRetentionMS] = retention
	} else {
		log.Debug().Err(err).Msg("retention.ms unavailable")
	}
	if policy, err := helper.GetTopicCleanupPolicy(ctx, *topic); err == nil {
		out[logclient.PropertyCleanupPolicy] = policy
	} else {
		log.Debug().Err(err).Msg("cleanup.policy unavailable")
	}
	return printJSON(out)
}

func runServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	bind := fs.String("bind", cfg.Config.Admin.BindAddress, "Bind address")
	port := fs.Int("port", cfg.Config.Admin.Port, "Port")
	parseFlags(fs, args)

	helper, err := openHelper()
	if err != nil {
		return err
	}
	defer helper.Close()

	var collector *telemetry.OffsetCollector
	if len(cfg.Config.Admin.WatchTopics) > 0 {
		collector, err = telemetry.NewOffsetCollector(
			helper.Resolver(),
			helper,
			cfg.Config.Admin.WatchTopics,
			time.Duration(cfg.Config.Admin.WatchIntervalMS)*time.Millisecond,
			time.Duration(cfg.Config.Log.RequestTimeoutMS)*time.Millisecond,
		)
		if err != nil {
			return err
		}
		collector.Start()
		defer collector.Stop()

		log.Info().Strs("patterns", cfg.Config.Admin.WatchTopics).Msg("Watching high-water marks")
	}

	router := admin.NewRouter(admin.NewAdminHandlers(helper, collector))
	return admin.Serve(ctx, *bind, *port, router)
}
