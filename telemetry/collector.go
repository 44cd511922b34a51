package telemetry

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/gobwas/glob"
	"github.com/maxpert/logcursor/cursor"
	"github.com/rs/zerolog/log"
)

// MarkSource reports the high-water marks of a topic, typically a *cursor.Resolver
type MarkSource interface {
	Marks(ctx context.Context, topic string) ([]cursor.PartitionMark, error)
}

// TopicLister reports the topics present on the backend
type TopicLister interface {
	Topics(ctx context.Context) ([]string, error)
}

// OffsetCollector periodically polls high-water marks of topics matching the
// watched glob patterns and publishes them as gauges
type OffsetCollector struct {
	source   MarkSource
	lister   TopicLister
	patterns []string
	globs    []glob.Glob
	interval time.Duration
	timeout  time.Duration

	latest   map[string][]cursor.PartitionMark
	latestMu sync.RWMutex

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewOffsetCollector creates a new offset collector.
// With a nil lister the patterns are polled as literal topic names.
func NewOffsetCollector(source MarkSource, lister TopicLister, patterns []string, interval, timeout time.Duration) (*OffsetCollector, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid watch pattern %q: %w", pattern, err)
		}
		globs = append(globs, g)
	}

	return &OffsetCollector{
		source:   source,
		lister:   lister,
		patterns: patterns,
		globs:    globs,
		interval: interval,
		timeout:  timeout,
		latest:   make(map[string][]cursor.PartitionMark),
		stopCh:   make(chan struct{}),
	}, nil
}

// Start begins the periodic collection
func (oc *OffsetCollector) Start() {
	oc.wg.Add(1)
	go oc.collectLoop()
}

// Stop stops the collector
func (oc *OffsetCollector) Stop() {
	close(oc.stopCh)
	oc.wg.Wait()
}

// Latest returns the marks seen by the last successful poll of topic
func (oc *OffsetCollector) Latest(topic string) ([]cursor.PartitionMark, bool) {
	oc.latestMu.RLock()
	defer oc.latestMu.RUnlock()
	marks, ok := oc.latest[topic]
	return marks, ok
}

func (oc *OffsetCollector) collectLoop() {
	defer oc.wg.Done()

	ticker := time.NewTicker(oc.interval)
	defer ticker.Stop()

	oc.collect()

	for {
		select {
		case <-ticker.C:
			oc.collect()
		case <-oc.stopCh:
			return
		}
	}
}

func (oc *OffsetCollector) collect() {
	if oc.source == nil {
		return
	}

	for _, topic := range oc.watchedTopics() {
		ctx, cancel := context.WithTimeout(context.Background(), oc.timeout)
		marks, err := oc.source.Marks(ctx, topic)
		cancel()

		if err != nil {
			OffsetCollectionFailures.With(topic).Inc()
			log.Warn().Err(err).Str("topic", topic).Msg("Failed to poll high-water marks")
			continue
		}

		for _, m := range marks {
			PartitionHighWaterMark.With(topic, strconv.Itoa(m.Partition)).Set(float64(m.HighWaterMark))
		}

		oc.latestMu.Lock()
		oc.latest[topic] = marks
		oc.latestMu.Unlock()
	}
}

func (oc *OffsetCollector) watchedTopics() []string {
	if oc.lister == nil {
		return oc.patterns
	}

	ctx, cancel := context.WithTimeout(context.Background(), oc.timeout)
	defer cancel()

	all, err := oc.lister.Topics(ctx)
	if err != nil {
		OffsetCollectionFailures.With("*").Inc()
		log.Warn().Err(err).Msg("Failed to list topics")
		return nil
	}

	matched := make([]string, 0, len(all))
	for _, topic := range all {
		for _, g := range oc.globs {
			if g.Match(topic) {
				matched = append(matched, topic)
				break
			}
		}
	}
	sort.Strings(matched)
	return matched
}
