package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func recordingSteps(calls *[]string, failAt string, failWith error) []Step {
	names := []string{StepFetch, StepArchive, StepRetrieve, StepLoad}
	steps := make([]Step, len(names))
	for i, name := range names {
		name := name
		steps[i] = Step{
			Name: name,
			Run: func(ctx context.Context, run *Run) error {
				*calls = append(*calls, name+"@"+run.RunDate)
				if name == failAt {
					return failWith
				}
				return nil
			},
		}
	}
	return steps
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestRunnerRunsAllSteps(t *testing.T) {
	var calls []string
	now := time.Date(2024, 1, 19, 0, 0, 5, 0, time.UTC)
	r := NewRunner(recordingSteps(&calls, "", nil), WithClock(fixedClock(now)), WithLocation(time.UTC))

	before := testutil.ToFloat64(stepRuns.WithLabelValues(StepLoad, "success"))

	result, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !result.Succeeded() {
		t.Error("Succeeded() = false, want true")
	}

	want := []string{
		StepFetch + "@19-01-24",
		StepArchive + "@19-01-24",
		StepRetrieve + "@19-01-24",
		StepLoad + "@19-01-24",
	}
	if !reflect.DeepEqual(calls, want) {
		t.Errorf("calls = %v, want %v", calls, want)
	}
	if len(result.Steps) != 4 {
		t.Errorf("recorded %d steps, want 4", len(result.Steps))
	}
	if got := testutil.ToFloat64(stepRuns.WithLabelValues(StepLoad, "success")); got != before+1 {
		t.Errorf("success counter = %v, want %v", got, before+1)
	}
}

func TestRunnerStopsAtFirstFailure(t *testing.T) {
	var calls []string
	cause := newError(ErrNoArchivedObjects, "list bucket", nil)
	r := NewRunner(recordingSteps(&calls, StepRetrieve, cause), WithLocation(time.UTC))

	result, err := r.Run(context.Background())
	if err == nil {
		t.Fatal("Run() error = nil, want error")
	}
	if !errors.Is(err, ErrNoArchivedObjects) {
		t.Errorf("error = %v, want ErrNoArchivedObjects", err)
	}
	if Kind(err) != ErrNoArchivedObjects {
		t.Errorf("Kind() = %v, want ErrNoArchivedObjects", Kind(err))
	}
	if len(calls) != 3 {
		t.Errorf("ran %d steps, want 3 (load must not run)", len(calls))
	}
	if result.Succeeded() {
		t.Error("Succeeded() = true, want false")
	}
	if last := result.Steps[len(result.Steps)-1]; last.Name != StepRetrieve || last.Error == "" {
		t.Errorf("last step = %+v, want failed %s", last, StepRetrieve)
	}
}

func TestRunnerRunStep(t *testing.T) {
	var calls []string
	now := time.Date(2024, 1, 18, 23, 30, 0, 0, time.UTC)
	loc := time.FixedZone("UTC+2", 2*60*60)
	r := NewRunner(recordingSteps(&calls, "", nil), WithClock(fixedClock(now)), WithLocation(loc))

	if _, err := r.RunStep(context.Background(), StepArchive); err != nil {
		t.Fatalf("RunStep() error = %v", err)
	}
	// The run date follows the configured zone.
	if want := []string{StepArchive + "@19-01-24"}; !reflect.DeepEqual(calls, want) {
		t.Errorf("calls = %v, want %v", calls, want)
	}

	_, err := r.RunStep(context.Background(), "transform")
	if !errors.Is(err, ErrUnknownStep) {
		t.Errorf("RunStep(unknown) error = %v, want ErrUnknownStep", err)
	}
}

func TestRunnerLast(t *testing.T) {
	var calls []string
	r := NewRunner(recordingSteps(&calls, StepFetch, errors.New("boom")))

	if _, ok := r.Last(); ok {
		t.Fatal("Last() ok = true before any run")
	}

	_, _ = r.Run(context.Background())
	last, ok := r.Last()
	if !ok {
		t.Fatal("Last() ok = false after a run")
	}
	if last.Succeeded() {
		t.Error("last run succeeded, want failure")
	}

	data, err := json.Marshal(last)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["error"] != "step download_spotify_data: boom" {
		t.Errorf("error field = %v", decoded["error"])
	}
}

func TestRunnerStepNames(t *testing.T) {
	r := NewRunner(Steps(nil, nil, nil, nil))
	want := []string{"download_spotify_data", "load_data_into_s3", "download_data_from_s3", "load_data_into_rds"}
	if got := r.StepNames(); !reflect.DeepEqual(got, want) {
		t.Errorf("StepNames() = %v, want %v", got, want)
	}
}
