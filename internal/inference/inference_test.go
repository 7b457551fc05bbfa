package inference

import (
	"context"
	"errors"
	"testing"
)

func TestRetrySleepClampsToLastDuration(t *testing.T) {
	last := retrySleep(len(retrySleepDurations))
	beyond := retrySleep(len(retrySleepDurations) + 5)
	if beyond != last {
		t.Fatalf("expected retrySleep to clamp to last duration, got %v want %v", beyond, last)
	}
}

func TestIsRetryable(t *testing.T) {
	plain := errors.New("boom")
	if isRetryable(plain) {
		t.Fatalf("plain error should not be retryable")
	}
	wrapped := makeRetryable(plain)
	if !isRetryable(wrapped) {
		t.Fatalf("wrapped error should be retryable")
	}
}

func TestScriptedStreamReplaysInOrder(t *testing.T) {
	s := NewScripted(
		[]Delta{{Type: DeltaTypeText, Text: "a"}, {Type: DeltaTypeDone}},
		[]Delta{{Type: DeltaTypeText, Text: "b"}, {Type: DeltaTypeDone}},
	)

	ch1 := s.Stream(context.Background(), nil, nil)
	var got1 []Delta
	for d := range ch1 {
		got1 = append(got1, d)
	}
	if len(got1) != 2 || got1[0].Text != "a" {
		t.Fatalf("unexpected first script result: %+v", got1)
	}

	ch2 := s.Stream(context.Background(), nil, nil)
	var got2 []Delta
	for d := range ch2 {
		got2 = append(got2, d)
	}
	if len(got2) != 2 || got2[0].Text != "b" {
		t.Fatalf("unexpected second script result: %+v", got2)
	}

	s.Cancel()
	if s.Canceled != 1 {
		t.Fatalf("expected Cancel to be observed once, got %d", s.Canceled)
	}
}
