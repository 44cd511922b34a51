package telemetry

// Histogram bucket definitions for different latency profiles
var (
	// ResolutionBuckets for cursor resolution (one metadata + one offsets round trip)
	ResolutionBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}

	// ProduceBuckets for synchronous single message writes
	ProduceBuckets = []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1}
)

// Producer / consumer metrics
var (
	// MessagesProducedTotal counts messages written by topic and result (success, failed)
	MessagesProducedTotal CounterVec = noopCounterVec{}

	// ProduceDurationSeconds measures single message write latency
	ProduceDurationSeconds Histogram = NoopStat{}

	// MessagesConsumedTotal counts records read back by topic
	MessagesConsumedTotal CounterVec = noopCounterVec{}
)

// Cursor metrics
var (
	// CursorResolutionsTotal counts resolutions by operation (next, latest) and result
	CursorResolutionsTotal CounterVec = noopCounterVec{}

	// CursorResolutionSeconds measures resolution latency by operation
	CursorResolutionSeconds HistogramVec = noopHistogramVec{}

	// PartitionHighWaterMark tracks the last observed high-water mark per topic/partition
	PartitionHighWaterMark GaugeVec = noopGaugeVec{}

	// OffsetCollectionFailures counts failed polls of watched topics
	OffsetCollectionFailures CounterVec = noopCounterVec{}
)

// Topic admin metrics
var (
	// TopicsCreatedTotal counts topic provisioning attempts by result
	TopicsCreatedTotal CounterVec = noopCounterVec{}
)

// InitMetrics initializes all Prometheus metrics.
// Called by InitializeTelemetry once the registry exists.
func InitMetrics() {
	MessagesProducedTotal = NewCounterVec(
		"messages_produced_total",
		"Messages written by topic and result",
		[]string{"topic", "result"},
	)
	ProduceDurationSeconds = NewHistogramWithBuckets(
		"produce_duration_seconds",
		"Single message write duration in seconds",
		ProduceBuckets,
	)
	MessagesConsumedTotal = NewCounterVec(
		"messages_consumed_total",
		"Records read back by topic",
		[]string{"topic"},
	)

	CursorResolutionsTotal = NewCounterVec(
		"cursor_resolutions_total",
		"Cursor resolutions by operation and result",
		[]string{"op", "result"},
	)
	CursorResolutionSeconds = NewHistogramVec(
		"cursor_resolution_seconds",
		"Cursor resolution duration in seconds",
		[]string{"op"},
		ResolutionBuckets,
	)
	PartitionHighWaterMark = NewGaugeVec(
		"partition_high_water_mark",
		"Last observed high-water mark",
		[]string{"topic", "partition"},
	)
	OffsetCollectionFailures = NewCounterVec(
		"offset_collection_failures_total",
		"Failed high-water mark polls by topic",
		[]string{"topic"},
	)

	TopicsCreatedTotal = NewCounterVec(
		"topics_created_total",
		"Topic provisioning attempts by result",
		[]string{"result"},
	)
}
