package admin

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/maxpert/logcursor/cursor"
	"github.com/maxpert/logcursor/locallog"
	"github.com/maxpert/logcursor/logclient"
	"github.com/maxpert/logcursor/telemetry"
	"github.com/rs/zerolog/log"
)

const (
	defaultReadLimit = 100
	maxReadLimit     = 1024
	maxMessageBytes  = 1 << 20 // 1MB
)

// AdminHandlers serves cursor and topic endpoints on top of a Helper
type AdminHandlers struct {
	helper    *logclient.Helper
	collector *telemetry.OffsetCollector
}

// NewAdminHandlers creates a new AdminHandlers instance.
// collector may be nil when no topics are watched.
func NewAdminHandlers(helper *logclient.Helper, collector *telemetry.OffsetCollector) *AdminHandlers {
	return &AdminHandlers{
		helper:    helper,
		collector: collector,
	}
}

func (h *AdminHandlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, map[string]string{"status": "ok"})
}

func (h *AdminHandlers) handleNextOffsets(w http.ResponseWriter, r *http.Request, topic string) {
	cursors, err := h.helper.GetNextOffsets(r.Context(), topic)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSONResponse(w, cursors)
}

func (h *AdminHandlers) handleLatestCursors(w http.ResponseWriter, r *http.Request, topic string) {
	cursors, err := h.helper.GetOffsetsToReadFromLatest(r.Context(), topic)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSONResponse(w, cursors)
}

// handleWatchedMarks serves the last marks polled by the collector, without a round trip
func (h *AdminHandlers) handleWatchedMarks(w http.ResponseWriter, r *http.Request, topic string) {
	if h.collector == nil {
		writeErrorResponse(w, http.StatusNotFound, "no topics are watched")
		return
	}

	marks, ok := h.collector.Latest(topic)
	if !ok {
		writeErrorResponse(w, http.StatusNotFound, fmt.Sprintf("topic '%s' is not watched", topic))
		return
	}

	cursors, err := cursor.LatestFromMarks(marks)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSONResponse(w, cursors)
}

func (h *AdminHandlers) handleTopicConfig(w http.ResponseWriter, r *http.Request, topic string) {
	retention, err := h.helper.GetTopicRetentionTime(r.Context(), topic)
	if err != nil {
		writeError(w, err)
		return
	}
	policy, err := h.helper.GetTopicCleanupPolicy(r.Context(), topic)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSONResponse(w, map[string]interface{}{
		logclient.PropertyRetentionMS:   retention,
		logclient.PropertyCleanupPolicy: policy,
	})
}

// handleWriteMessage writes the request body as quoted messages to one partition
func (h *AdminHandlers) handleWriteMessage(w http.ResponseWriter, r *http.Request, topic, partition string) {
	h.writeMessages(w, r, func(message string, times int) error {
		return h.helper.WriteMultipleMessagesToPartition(r.Context(), partition, topic, message, times)
	})
}

// handleWriteKeyedMessage writes the request body as quoted messages routed by key
func (h *AdminHandlers) handleWriteKeyedMessage(w http.ResponseWriter, r *http.Request, topic string) {
	h.writeMessages(w, r, func(message string, times int) error {
		return h.helper.WriteMessages(r.Context(), topic, message, times)
	})
}

func (h *AdminHandlers) writeMessages(w http.ResponseWriter, r *http.Request, write func(message string, times int) error) {
	times, err := parseTimes(r)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxMessageBytes))
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "failed to read body")
		return
	}

	if err := write(string(body), times); err != nil {
		writeError(w, err)
		return
	}
	writeJSONResponse(w, map[string]int{"written": times})
}

// handleReadAfter returns records written after the cursor given as ?offset=
func (h *AdminHandlers) handleReadAfter(w http.ResponseWriter, r *http.Request, topic, partition string) {
	limit, err := parseLimit(r)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	offset := r.URL.Query().Get("offset")
	if offset == "" {
		offset = cursor.SentinelOffset
	}

	records, err := h.helper.ReadAfter(r.Context(), topic, cursor.FromText(partition, offset), limit)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]recordResponse, 0, len(records))
	for _, rec := range records {
		c, err := cursor.New(partition, rec.Offset)
		if err != nil {
			writeError(w, err)
			return
		}
		out = append(out, recordResponse{
			Cursor: c.Offset,
			Key:    string(rec.Key),
			Value:  string(rec.Value),
		})
	}
	writeJSONResponse(w, out)
}

type recordResponse struct {
	Cursor string `json:"cursor"`
	Key    string `json:"key"`
	Value  string `json:"value"`
}

// writeError maps domain errors to status codes
func writeError(w http.ResponseWriter, err error) {
	var (
		malformed *cursor.MalformedOffsetError
		invalid   *cursor.InvalidOffsetError
		query     *cursor.PartitionQueryError
	)

	switch {
	case errors.Is(err, locallog.ErrTopicNotFound):
		writeErrorResponse(w, http.StatusNotFound, err.Error())
	case errors.As(err, &malformed), errors.As(err, &invalid):
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &query):
		writeErrorResponse(w, http.StatusBadGateway, err.Error())
	default:
		log.Warn().Err(err).Msg("Admin request failed")
		writeErrorResponse(w, http.StatusInternalServerError, err.Error())
	}
}

// writeJSONResponse writes a successful JSON response
func writeJSONResponse(w http.ResponseWriter, data interface{}) {
	response := map[string]interface{}{
		"data": data,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error JSON response
func writeErrorResponse(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	response := map[string]interface{}{
		"error": message,
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Error().Err(err).Msg("Failed to encode error response")
	}
}

// parseLimit parses limit parameter with defaults
func parseLimit(r *http.Request) (int, error) {
	limitStr := r.URL.Query().Get("limit")
	if limitStr == "" {
		return defaultReadLimit, nil
	}

	limit, err := strconv.Atoi(limitStr)
	if err != nil {
		return 0, fmt.Errorf("invalid limit parameter: %w", err)
	}

	if limit < 1 {
		return 0, fmt.Errorf("limit must be positive")
	}

	if limit > maxReadLimit {
		return 0, fmt.Errorf("limit cannot exceed %d", maxReadLimit)
	}

	return limit, nil
}

func parseTimes(r *http.Request) (int, error) {
	timesStr := r.URL.Query().Get("times")
	if timesStr == "" {
		return 1, nil
	}

	times, err := strconv.Atoi(timesStr)
	if err != nil || times < 1 {
		return 0, fmt.Errorf("invalid times parameter %q", timesStr)
	}
	return times, nil
}
