package client

import (
	"context"
	"testing"
	"time"

	"assessment-jobs/internal/errors"
	"assessment-jobs/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() PollerConfig {
	return PollerConfig{
		Interval:             0,
		MaxAttempts:          1200,
		MaxConsecutiveErrors: 10,
		MaxNotFound:          5,
	}
}

func TestPoller_CompletesAndKeepsResourceID(t *testing.T) {
	api := newFakeAPI()
	done := statusStep(models.JobCompleted, 100)
	done.status.ResourceID = "res-9"
	api.steps["j"] = []pollStep{statusStep(models.JobQueued, 0), statusStep(models.JobProcessing, 40), done}

	result, err := NewPoller(api, fastConfig()).Poll(context.Background(), "j", "res-9", nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, result.Outcome)
	assert.Equal(t, "res-9", result.ResourceID)
	assert.Equal(t, 3, result.Attempts)
	assert.False(t, result.Recovered)
}

func TestPoller_NineErrorsThenSuccessResetsCounter(t *testing.T) {
	api := newFakeAPI()
	var script []pollStep
	script = append(script, repeatStep(transient(), 9)...)
	script = append(script, statusStep(models.JobProcessing, 30))
	script = append(script, repeatStep(transient(), 9)...)
	script = append(script, statusStep(models.JobCompleted, 100))
	api.steps["j"] = script

	result, err := NewPoller(api, fastConfig()).Poll(context.Background(), "j", "res-1", nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, result.Outcome)
	assert.Equal(t, 20, api.pollCount("j"))
	assert.Equal(t, 0, api.resourceCalls, "fallback must not run while the counter keeps resetting")
}

func TestPoller_TenErrorsTriggerExactlyOneFallback(t *testing.T) {
	api := newFakeAPI()
	api.repeat = transient()

	result, err := NewPoller(api, fastConfig()).Poll(context.Background(), "j", "res-1", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrTransientNetwork))
	assert.Equal(t, OutcomeUnreachable, result.Outcome)
	assert.Equal(t, "j", result.JobID)
	assert.Equal(t, 10, api.pollCount("j"), "no polls after the bound")
	assert.Equal(t, 1, api.resourceCalls)
}

func TestPoller_FallbackRecoversGeneratedResource(t *testing.T) {
	api := newFakeAPI()
	api.repeat = transient()
	api.resource = &models.ResourceResponse{Resource: models.Resource{ID: "res-1"}, Generated: true}

	result, err := NewPoller(api, fastConfig()).Poll(context.Background(), "j", "res-1", nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, result.Outcome)
	assert.True(t, result.Recovered)
	assert.Equal(t, 1, api.resourceCalls)
}

func TestPoller_FallbackIgnoresUngeneratedDraft(t *testing.T) {
	api := newFakeAPI()
	api.repeat = transient()
	api.resource = &models.ResourceResponse{Resource: models.Resource{ID: "res-1", Status: models.ResourceDraft}}

	result, err := NewPoller(api, fastConfig()).Poll(context.Background(), "j", "res-1", nil)
	assert.True(t, errors.Is(err, errors.ErrTransientNetwork))
	assert.Equal(t, OutcomeUnreachable, result.Outcome)
	assert.Equal(t, 1, api.resourceCalls)
}

func TestPoller_NotFoundGrace(t *testing.T) {
	api := newFakeAPI()
	api.steps["j"] = append(repeatStep(notFoundStep(), 5), statusStep(models.JobCompleted, 100))

	result, err := NewPoller(api, fastConfig()).Poll(context.Background(), "j", "res-1", nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, result.Outcome)
}

func TestPoller_NotFoundBeyondGrace(t *testing.T) {
	api := newFakeAPI()
	api.repeat = notFoundStep()

	_, err := NewPoller(api, fastConfig()).Poll(context.Background(), "j", "res-1", nil)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
	assert.Equal(t, 6, api.pollCount("j"))
	assert.Equal(t, 0, api.resourceCalls)
}

func TestPoller_NotFoundIsNotCountedAsError(t *testing.T) {
	api := newFakeAPI()
	var script []pollStep
	script = append(script, repeatStep(notFoundStep(), 5)...)
	script = append(script, repeatStep(transient(), 9)...)
	script = append(script, statusStep(models.JobCompleted, 100))
	api.steps["j"] = script

	result, err := NewPoller(api, fastConfig()).Poll(context.Background(), "j", "res-1", nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, result.Outcome)
	assert.Equal(t, 0, api.resourceCalls)
}

func TestPoller_BudgetPreservesJobID(t *testing.T) {
	api := newFakeAPI()
	cfg := fastConfig()
	cfg.MaxAttempts = 5

	result, err := NewPoller(api, cfg).Poll(context.Background(), "j", "res-1", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrTimeout))
	require.NotNil(t, result)
	assert.Equal(t, OutcomeTimedOut, result.Outcome)
	assert.Equal(t, "j", result.JobID)
	assert.Equal(t, 5, result.Attempts)
	assert.Equal(t, 5, api.pollCount("j"))
}

func TestPoller_FailedJobCarriesError(t *testing.T) {
	api := newFakeAPI()
	api.steps["j"] = []pollStep{statusStep(models.JobProcessing, 20), failedStep("upstream 502")}

	result, err := NewPoller(api, fastConfig()).Poll(context.Background(), "j", "res-1", nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, result.Outcome)
	require.NotNil(t, result.Error)
	assert.Equal(t, "upstream 502", result.Error.Message)
}

func TestPoller_ProgressEstimateAndMonotonicDisplay(t *testing.T) {
	api := newFakeAPI()
	api.steps["j"] = []pollStep{
		statusStep(models.JobQueued, 0),
		statusStep(models.JobProcessing, 40),
		statusStep(models.JobProcessing, 20),
		statusStep(models.JobProcessing, 0),
		statusStep(models.JobCompleted, 100),
	}

	poller := NewPoller(api, fastConfig())
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	poller.now = func() time.Time {
		clock = clock.Add(100 * time.Second)
		return clock
	}

	var updates []Update
	_, err := poller.Poll(context.Background(), "j", "res-1", func(u Update) { updates = append(updates, u) })
	require.NoError(t, err)
	require.Len(t, updates, 4)

	assert.True(t, updates[0].Estimated)
	assert.Equal(t, 15, updates[0].Progress) // 5 + 100s/10
	assert.Equal(t, 40, updates[1].Progress)
	assert.Equal(t, 40, updates[2].Progress)
	assert.True(t, updates[3].Estimated)
	assert.Equal(t, 45, updates[3].Progress) // 5 + 400s/10
	for _, u := range updates {
		assert.NotEmpty(t, u.Advisory)
	}
}

func TestPoller_CancelStopsLoop(t *testing.T) {
	api := newFakeAPI()
	cfg := fastConfig()
	cfg.Interval = 5 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())

	_, err := NewPoller(api, cfg).Poll(ctx, "j", "res-1", func(Update) { cancel() })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, api.pollCount("j"))
}

func TestPoller_NoUpdateAfterTerminal(t *testing.T) {
	api := newFakeAPI()
	api.steps["j"] = []pollStep{statusStep(models.JobCompleted, 100)}

	calls := 0
	result, err := NewPoller(api, fastConfig()).Poll(context.Background(), "j", "res-1", func(Update) { calls++ })
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, result.Outcome)
	assert.Equal(t, 0, calls)
	assert.Equal(t, 1, api.pollCount("j"))
}

func TestPoller_FallbackChecksContentBelongsToJob(t *testing.T) {
	tests := []struct {
		name      string
		latest    *models.JobStatusResponse
		recovered bool
	}{
		{"this job completed", &models.JobStatusResponse{JobID: "j", Status: models.JobCompleted}, true},
		{"this job still running over old content", &models.JobStatusResponse{JobID: "j", Status: models.JobProcessing}, false},
		{"content from another job", &models.JobStatusResponse{JobID: "other", Status: models.JobCompleted}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newFakeAPI()
			api.repeat = transient()
			api.resource = &models.ResourceResponse{
				Resource:  models.Resource{ID: "res-1", Status: models.ResourceDraft},
				Generated: true,
				LatestJob: tt.latest,
			}

			result, err := NewPoller(api, fastConfig()).Poll(context.Background(), "j", "res-1", nil)
			assert.Equal(t, 1, api.resourceCalls)
			if tt.recovered {
				require.NoError(t, err)
				assert.Equal(t, OutcomeCompleted, result.Outcome)
				assert.True(t, result.Recovered)
				return
			}
			assert.True(t, errors.Is(err, errors.ErrTransientNetwork))
			assert.Equal(t, OutcomeUnreachable, result.Outcome)
		})
	}
}

func TestPoller_IgnoresBackwardStatus(t *testing.T) {
	api := newFakeAPI()
	api.steps["j"] = []pollStep{
		statusStep(models.JobProcessing, 40),
		statusStep(models.JobQueued, 0),
		statusStep(models.JobCompleted, 100),
	}

	var updates []Update
	result, err := NewPoller(api, fastConfig()).Poll(context.Background(), "j", "res-1", func(u Update) { updates = append(updates, u) })
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, result.Outcome)
	require.Len(t, updates, 2)
	assert.Equal(t, models.JobProcessing, updates[0].Status)
	assert.Equal(t, models.JobProcessing, updates[1].Status)
	assert.Equal(t, 40, updates[1].Progress)
}
