package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMarkedErrorsKeepMessage(t *testing.T) {
	err := Validationf("start time must be at least %d minutes ahead", 5)

	assert.True(t, Is(err, ErrValidation))
	assert.False(t, Is(err, ErrNotFound))
	assert.Equal(t, "start time must be at least 5 minutes ahead", err.Error())
}

func TestWrappedErrorsStayClassified(t *testing.T) {
	err := Wrap(NotFoundf("job %s not found", "abc"), "poll status")

	assert.True(t, Is(err, ErrNotFound))
	assert.Equal(t, CodeNotFound, Code(err))
}

func TestCodeRoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"validation", Validationf("bad"), ErrValidation},
		{"transition", InvalidTransitionf("bad"), ErrInvalidTransition},
		{"not found", NotFoundf("bad"), ErrNotFound},
		{"conflict", Conflictf("bad"), ErrConflict},
		{"generation", GenerationFailuref("bad"), ErrGenerationFailure},
		{"rate limited", Mark(New("slow down"), ErrRateLimited), ErrRateLimited},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rebuilt := FromCode(Code(tt.err), tt.err.Error())
			assert.True(t, Is(rebuilt, tt.sentinel))
			assert.Equal(t, tt.err.Error(), rebuilt.Error())
		})
	}
}

func TestCodeDefaultsToInternal(t *testing.T) {
	assert.Equal(t, CodeInternal, Code(New("disk on fire")))
	assert.Equal(t, "", Code(nil))
	assert.Equal(t, "boom", FromCode("something_else", "boom").Error())
}
