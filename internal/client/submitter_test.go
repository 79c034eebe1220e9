package client

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"assessment-jobs/internal/errors"
	"assessment-jobs/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitter_RejectsSecondSubmissionWhileInFlight(t *testing.T) {
	api := newFakeAPI()
	entered := make(chan struct{})
	unblock := make(chan struct{})
	api.createHook = func() {
		close(entered)
		<-unblock
	}
	sub := NewSubmitter(api)

	type submitted struct {
		token uint64
		err   error
	}
	done := make(chan submitted, 1)
	go func() {
		_, token, err := sub.Submit(context.Background(), &models.CreateJobRequest{Title: "first"})
		done <- submitted{token, err}
	}()
	<-entered

	_, _, err := sub.Submit(context.Background(), &models.CreateJobRequest{Title: "second"})
	assert.ErrorIs(t, err, errors.ErrSubmissionInFlight)

	close(unblock)
	first := <-done
	require.NoError(t, first.err)
	assert.True(t, sub.InFlight(), "guard is held until Release")
	assert.Len(t, api.created, 1)

	assert.True(t, sub.Release(first.token))
	assert.False(t, sub.InFlight())
}

func TestSubmitter_ConcurrentSubmitsCreateOneJob(t *testing.T) {
	api := newFakeAPI()
	sub := NewSubmitter(api)

	var accepted, rejected atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := sub.Submit(context.Background(), &models.CreateJobRequest{Title: "race"})
			switch {
			case err == nil:
				accepted.Add(1)
			case errors.Is(err, errors.ErrSubmissionInFlight):
				rejected.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), accepted.Load())
	assert.Equal(t, int32(31), rejected.Load())
	assert.Len(t, api.created, 1)
}

func TestSubmitter_ReleasesGuardOnError(t *testing.T) {
	api := newFakeAPI()
	api.createErr = errors.Validationf("title is required")
	sub := NewSubmitter(api)

	_, _, err := sub.Submit(context.Background(), &models.CreateJobRequest{})
	assert.True(t, errors.Is(err, errors.ErrValidation))
	assert.False(t, sub.InFlight())

	api.createErr = nil
	resp, token, err := sub.Submit(context.Background(), &models.CreateJobRequest{Title: "ok"})
	require.NoError(t, err)
	assert.Equal(t, "job-a", resp.JobID)
	assert.NotZero(t, token)
}

func TestSubmitter_StaleReleaseKeepsLaterClaim(t *testing.T) {
	sub := NewSubmitter(newFakeAPI())

	first, ok := sub.Acquire()
	require.True(t, ok)
	require.True(t, sub.Release(first))

	second, ok := sub.Acquire()
	require.True(t, ok)
	assert.NotEqual(t, first, second)

	assert.False(t, sub.Release(first))
	assert.True(t, sub.InFlight())
	assert.True(t, sub.Release(second))
	assert.False(t, sub.InFlight())
}

func TestSubmitter_CreateAfterReleaseSendsNothing(t *testing.T) {
	api := newFakeAPI()
	sub := NewSubmitter(api)

	token, ok := sub.Acquire()
	require.True(t, ok)
	sub.Release(token)

	_, err := sub.Create(context.Background(), token, &models.CreateJobRequest{Title: "late"})
	assert.ErrorIs(t, err, ErrGuardReleased)
	assert.Empty(t, api.created)
}
