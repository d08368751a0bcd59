package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"

	"github.com/seantiz/kiln/internal/async"
	"github.com/seantiz/kiln/internal/model"
)

// Execution is the handle for one dispatched function invocation. Results
// are the function's result slots; Done is closed once every slot has
// resolved and the outcome has been recorded.
type Execution struct {
	ID      string
	Program string
	Results []*async.Value

	start time.Time
	done  chan struct{}
}

// Done returns a channel closed when the execution has finished.
func (e *Execution) Done() <-chan struct{} { return e.done }

// Await blocks until the execution finishes or ctx is done. It returns the
// result values, or the first result error.
func (e *Execution) Await(ctx context.Context) ([]cty.Value, error) {
	select {
	case <-e.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return collect(e.Results)
}

func collect(results []*async.Value) ([]cty.Value, error) {
	vals := make([]cty.Value, len(results))
	for i, r := range results {
		v, err := r.Get()
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	return vals, nil
}

// encodeResults renders result values as a JSON array.
func encodeResults(vals []cty.Value) (json.RawMessage, error) {
	out := make([]ctyjson.SimpleJSONValue, len(vals))
	for i, v := range vals {
		out[i] = ctyjson.SimpleJSONValue{Value: v}
	}
	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encode results: %w", err)
	}
	return data, nil
}

// finish records the outcome of e. It runs once, after every result slot
// has resolved.
func (h *RequestHandler) finish(e *Execution) {
	defer close(e.done)

	elapsed := time.Since(e.start)
	durationMS := int(elapsed.Milliseconds())
	executionDuration.Observe(elapsed.Seconds())
	logger := h.logger.With("program", e.Program, "execution_id", e.ID)

	now := time.Now().UTC()
	rec := &model.Execution{
		ID:         e.ID,
		Status:     model.StatusCompleted,
		DurationMS: &durationMS,
		FinishedAt: &now,
	}

	vals, err := collect(e.Results)
	if err == nil {
		rec.Results, err = encodeResults(vals)
	}
	if err != nil {
		rec.Status = model.StatusFailed
		rec.Error = err.Error()
		logger.Warn("execution failed", "duration_ms", durationMS, "error", err)
	} else {
		logger.Info("execution completed", "duration_ms", durationMS)
	}
	executionsTotal.WithLabelValues(rec.Status).Inc()

	if h.store == nil {
		return
	}
	if err := h.store.UpdateExecution(context.Background(), rec); err != nil {
		logger.Error("failed to record execution outcome", "error", err)
	}
}
