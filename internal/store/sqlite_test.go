package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/seantiz/kiln/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func makeTestExecution(program string) *model.Execution {
	return &model.Execution{
		ID:         model.NewID(),
		Program:    program,
		Status:     model.StatusPending,
		NumArgs:    1,
		NumResults: 2,
		CreatedAt:  time.Now().UTC().Truncate(time.Second),
	}
}

func TestCreateAndGetExecution(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	e := makeTestExecution("prog_a")

	if err := s.CreateExecution(ctx, e); err != nil {
		t.Fatalf("CreateExecution: %v", err)
	}

	got, err := s.GetExecution(ctx, e.ID)
	if err != nil {
		t.Fatalf("GetExecution: %v", err)
	}
	if got.ID != e.ID {
		t.Errorf("ID = %q, want %q", got.ID, e.ID)
	}
	if got.Program != e.Program {
		t.Errorf("Program = %q, want %q", got.Program, e.Program)
	}
	if got.Status != model.StatusPending {
		t.Errorf("Status = %q, want %q", got.Status, model.StatusPending)
	}
	if got.NumArgs != 1 || got.NumResults != 2 {
		t.Errorf("signature = %d args, %d results, want 1, 2", got.NumArgs, got.NumResults)
	}
	if !got.CreatedAt.Equal(e.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, e.CreatedAt)
	}
	if got.Results != nil {
		t.Errorf("Results = %s, want nil", got.Results)
	}
	if got.StartedAt != nil || got.FinishedAt != nil || got.DurationMS != nil {
		t.Error("pending execution has timing fields set")
	}
}

func TestGetExecutionNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetExecution(context.Background(), "nonexistent")
	if err != ErrNotFound {
		t.Errorf("GetExecution error = %v, want ErrNotFound", err)
	}
}

func TestListExecutionsPagination(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		e := makeTestExecution("prog_a")
		e.CreatedAt = time.Now().UTC().Add(time.Duration(i) * time.Second).Truncate(time.Second)
		if err := s.CreateExecution(ctx, e); err != nil {
			t.Fatalf("CreateExecution[%d]: %v", i, err)
		}
	}

	page1, total, err := s.ListExecutions(ctx, "", 2, 0)
	if err != nil {
		t.Fatalf("ListExecutions: %v", err)
	}
	if total != 5 {
		t.Errorf("total = %d, want 5", total)
	}
	if len(page1) != 2 {
		t.Errorf("len(page1) = %d, want 2", len(page1))
	}

	page3, total, err := s.ListExecutions(ctx, "", 2, 4)
	if err != nil {
		t.Fatalf("ListExecutions page 3: %v", err)
	}
	if total != 5 {
		t.Errorf("total page 3 = %d, want 5", total)
	}
	if len(page3) != 1 {
		t.Errorf("len(page3) = %d, want 1", len(page3))
	}
}

func TestListExecutionsOrdering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		e := makeTestExecution("prog_a")
		e.CreatedAt = time.Date(2026, 1, 1+i, 0, 0, 0, 0, time.UTC)
		if err := s.CreateExecution(ctx, e); err != nil {
			t.Fatalf("CreateExecution[%d]: %v", i, err)
		}
	}

	executions, _, err := s.ListExecutions(ctx, "", 10, 0)
	if err != nil {
		t.Fatalf("ListExecutions: %v", err)
	}
	for i := 1; i < len(executions); i++ {
		if executions[i].CreatedAt.After(executions[i-1].CreatedAt) {
			t.Errorf("executions not newest first: [%d]=%v > [%d]=%v",
				i, executions[i].CreatedAt, i-1, executions[i-1].CreatedAt)
		}
	}
}

func TestListExecutionsByProgram(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, program := range []string{"prog_a", "prog_b", "prog_a"} {
		if err := s.CreateExecution(ctx, makeTestExecution(program)); err != nil {
			t.Fatalf("CreateExecution: %v", err)
		}
	}

	executions, total, err := s.ListExecutions(ctx, "prog_a", 10, 0)
	if err != nil {
		t.Fatalf("ListExecutions: %v", err)
	}
	if total != 2 || len(executions) != 2 {
		t.Fatalf("total = %d, len = %d, want 2, 2", total, len(executions))
	}
	for _, e := range executions {
		if e.Program != "prog_a" {
			t.Errorf("Program = %q, want prog_a", e.Program)
		}
	}
}

func TestListExecutionsEmpty(t *testing.T) {
	s := newTestStore(t)

	executions, total, err := s.ListExecutions(context.Background(), "", 10, 0)
	if err != nil {
		t.Fatalf("ListExecutions: %v", err)
	}
	if total != 0 {
		t.Errorf("total = %d, want 0", total)
	}
	if executions != nil {
		t.Errorf("executions = %v, want nil", executions)
	}
}

func TestUpdateExecutionStatusLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	e := makeTestExecution("prog_a")

	if err := s.CreateExecution(ctx, e); err != nil {
		t.Fatalf("CreateExecution: %v", err)
	}

	if err := s.UpdateExecutionStatus(ctx, e.ID, model.StatusRunning); err != nil {
		t.Fatalf("pending→running: %v", err)
	}
	got, _ := s.GetExecution(ctx, e.ID)
	if got.Status != model.StatusRunning {
		t.Errorf("Status = %q, want %q", got.Status, model.StatusRunning)
	}
	if got.StartedAt == nil {
		t.Error("StartedAt is nil, expected it to be set for running status")
	}

	if err := s.UpdateExecutionStatus(ctx, e.ID, model.StatusCompleted); err != nil {
		t.Fatalf("running→completed: %v", err)
	}
	got, _ = s.GetExecution(ctx, e.ID)
	if got.Status != model.StatusCompleted {
		t.Errorf("Status = %q, want %q", got.Status, model.StatusCompleted)
	}
	if got.FinishedAt == nil {
		t.Error("FinishedAt is nil, expected it to be set for completed status")
	}
}

func TestUpdateExecutionStatusNotFound(t *testing.T) {
	s := newTestStore(t)

	err := s.UpdateExecutionStatus(context.Background(), "nonexistent", model.StatusRunning)
	if err != ErrNotFound {
		t.Errorf("UpdateExecutionStatus error = %v, want ErrNotFound", err)
	}
}

func TestUpdateExecutionStatusInvalidTransition(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		from, to string
	}{
		{"pending→completed", model.StatusPending, model.StatusCompleted},
		{"completed→running", model.StatusCompleted, model.StatusRunning},
		{"failed→completed", model.StatusFailed, model.StatusCompleted},
		{"running→pending", model.StatusRunning, model.StatusPending},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := makeTestExecution("prog_a")
			e.Status = tc.from
			if err := s.CreateExecution(ctx, e); err != nil {
				t.Fatalf("CreateExecution: %v", err)
			}

			err := s.UpdateExecutionStatus(ctx, e.ID, tc.to)
			if !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("got error %v, want ErrInvalidTransition", err)
			}
		})
	}
}

func TestUpdateExecution(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	e := makeTestExecution("prog_a")

	if err := s.CreateExecution(ctx, e); err != nil {
		t.Fatalf("CreateExecution: %v", err)
	}
	if err := s.UpdateExecutionStatus(ctx, e.ID, model.StatusRunning); err != nil {
		t.Fatalf("UpdateExecutionStatus: %v", err)
	}

	durationMS := 150
	finishedAt := time.Now().UTC()
	e.Status = model.StatusCompleted
	e.Results = json.RawMessage(`[1,"two"]`)
	e.DurationMS = &durationMS
	e.FinishedAt = &finishedAt

	if err := s.UpdateExecution(ctx, e); err != nil {
		t.Fatalf("UpdateExecution: %v", err)
	}

	got, err := s.GetExecution(ctx, e.ID)
	if err != nil {
		t.Fatalf("GetExecution: %v", err)
	}
	if got.Status != model.StatusCompleted {
		t.Errorf("Status = %q, want %q", got.Status, model.StatusCompleted)
	}
	if string(got.Results) != `[1,"two"]` {
		t.Errorf("Results = %s", got.Results)
	}
	if got.DurationMS == nil || *got.DurationMS != 150 {
		t.Errorf("DurationMS = %v, want 150", got.DurationMS)
	}
	if got.StartedAt == nil {
		t.Error("StartedAt was cleared by UpdateExecution")
	}
	if got.FinishedAt == nil {
		t.Error("FinishedAt is nil")
	}
}

func TestUpdateExecutionFailed(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	e := makeTestExecution("prog_a")

	if err := s.CreateExecution(ctx, e); err != nil {
		t.Fatalf("CreateExecution: %v", err)
	}

	e.Status = model.StatusFailed
	e.Error = "boom"
	if err := s.UpdateExecution(ctx, e); err != nil {
		t.Fatalf("UpdateExecution: %v", err)
	}
	got, _ := s.GetExecution(ctx, e.ID)
	if got.Error != "boom" {
		t.Errorf("Error = %q, want boom", got.Error)
	}
}

func TestUpdateExecutionNotFound(t *testing.T) {
	s := newTestStore(t)

	e := makeTestExecution("prog_a")
	err := s.UpdateExecution(context.Background(), e)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("got error %v, want ErrNotFound", err)
	}
}

func TestUpdateExecutionInvalidTransition(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	e := makeTestExecution("prog_a")

	if err := s.CreateExecution(ctx, e); err != nil {
		t.Fatalf("CreateExecution: %v", err)
	}

	e.Status = model.StatusCompleted
	err := s.UpdateExecution(ctx, e)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("got error %v, want ErrInvalidTransition", err)
	}
}

func TestGetExecutionStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	durations := []int{100, 300}
	for i, program := range []string{"prog_a", "prog_a", "prog_b"} {
		e := makeTestExecution(program)
		if err := s.CreateExecution(ctx, e); err != nil {
			t.Fatalf("CreateExecution: %v", err)
		}
		if i < len(durations) {
			if err := s.UpdateExecutionStatus(ctx, e.ID, model.StatusRunning); err != nil {
				t.Fatalf("UpdateExecutionStatus: %v", err)
			}
			e.Status = model.StatusCompleted
			e.DurationMS = &durations[i]
			if err := s.UpdateExecution(ctx, e); err != nil {
				t.Fatalf("UpdateExecution: %v", err)
			}
		}
	}

	stats, err := s.GetExecutionStats(ctx)
	if err != nil {
		t.Fatalf("GetExecutionStats: %v", err)
	}
	if stats.Total != 3 {
		t.Errorf("Total = %d, want 3", stats.Total)
	}
	if stats.CountByStatus[model.StatusCompleted] != 2 || stats.CountByStatus[model.StatusPending] != 1 {
		t.Errorf("CountByStatus = %v", stats.CountByStatus)
	}
	if stats.CountByProgram["prog_a"] != 2 || stats.CountByProgram["prog_b"] != 1 {
		t.Errorf("CountByProgram = %v", stats.CountByProgram)
	}
	if stats.AvgDurationMS != 200 {
		t.Errorf("AvgDurationMS = %v, want 200", stats.AvgDurationMS)
	}
}

func TestGetExecutionStatsEmpty(t *testing.T) {
	s := newTestStore(t)

	stats, err := s.GetExecutionStats(context.Background())
	if err != nil {
		t.Fatalf("GetExecutionStats: %v", err)
	}
	if stats.Total != 0 || stats.AvgDurationMS != 0 {
		t.Errorf("stats = %+v, want zero", stats)
	}
}

func TestConcurrentWrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := range 20 {
		wg.Go(func() {
			e := makeTestExecution(fmt.Sprintf("prog_%d", i%4))
			if err := s.CreateExecution(ctx, e); err != nil {
				errs <- err
				return
			}
			if err := s.UpdateExecutionStatus(ctx, e.ID, model.StatusRunning); err != nil {
				errs <- err
			}
		})
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent write: %v", err)
	}

	_, total, err := s.ListExecutions(ctx, "", 100, 0)
	if err != nil {
		t.Fatalf("ListExecutions: %v", err)
	}
	if total != 20 {
		t.Errorf("total = %d, want 20", total)
	}
}
