package domain

import "testing"

func TestCanTransition(t *testing.T) {
	legal := []struct{ from, to JobStatus }{
		{JobStatusQueued, JobStatusProcessing},
		{JobStatusQueued, JobStatusPreviewReady},
		{JobStatusQueued, JobStatusCompleted},
		{JobStatusQueued, JobStatusFailed},
		{JobStatusProcessing, JobStatusPreviewReady},
		{JobStatusProcessing, JobStatusCompleted},
		{JobStatusProcessing, JobStatusFailed},
		{JobStatusPreviewReady, JobStatusCompleted},
		{JobStatusPreviewReady, JobStatusFailed},
	}
	for _, tc := range legal {
		if !CanTransition(tc.from, tc.to) {
			t.Errorf("CanTransition(%s, %s) = false, want true", tc.from, tc.to)
		}
	}

	illegal := []struct{ from, to JobStatus }{
		{JobStatusCompleted, JobStatusFailed},
		{JobStatusCompleted, JobStatusPreviewReady},
		{JobStatusFailed, JobStatusCompleted},
		{JobStatusFailed, JobStatusProcessing},
		{JobStatusPreviewReady, JobStatusProcessing},
		{JobStatusProcessing, JobStatusQueued},
	}
	for _, tc := range illegal {
		if CanTransition(tc.from, tc.to) {
			t.Errorf("CanTransition(%s, %s) = true, want false", tc.from, tc.to)
		}
	}
}

func TestTerminal(t *testing.T) {
	for _, s := range []JobStatus{JobStatusCompleted, JobStatusFailed} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []JobStatus{JobStatusQueued, JobStatusProcessing, JobStatusPreviewReady} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}
