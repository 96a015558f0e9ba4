package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type stubJob struct {
	runs atomic.Int64
	err  error
}

func (j *stubJob) Run(ctx context.Context) error {
	j.runs.Add(1)
	return j.err
}

func (j *stubJob) NextRunTime() time.Time {
	return time.Now().Add(time.Hour)
}

func TestRunNow(t *testing.T) {
	s := NewScheduler()
	job := &stubJob{}
	s.Register("stub", job)

	if err := s.RunNow("stub"); err != nil {
		t.Fatalf("RunNow returned error: %v", err)
	}
	if got := job.runs.Load(); got != 1 {
		t.Errorf("job ran %d times, want 1", got)
	}
}

func TestRunNowPropagatesError(t *testing.T) {
	s := NewScheduler()
	wantErr := errors.New("sweep failed")
	s.Register("failing", &stubJob{err: wantErr})

	if err := s.RunNow("failing"); !errors.Is(err, wantErr) {
		t.Errorf("RunNow error = %v, want %v", err, wantErr)
	}
}

func TestRunNowUnknownJob(t *testing.T) {
	s := NewScheduler()
	if err := s.RunNow("missing"); err != nil {
		t.Errorf("RunNow for unknown job should be a no-op, got %v", err)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	s := NewScheduler()
	s.Register("stub", &stubJob{})
	s.Start()
	s.Stop()
	s.Stop()
}
