package failure

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cuemby/streamharness/pkg/workservice"
)

func TestHandleDropsKeyTokenInvalidWithoutReporting(t *testing.T) {
	client := workservice.NewLocalClient()
	r := NewReporter(client, &LastException{}, time.Millisecond)

	retried := false
	r.Handle(context.Background(), "c1", []byte("k"), 1,
		&KeyTokenInvalidError{Key: []byte("k"), WorkToken: 1},
		func() { retried = true })

	if retried {
		t.Error("expected no retry for a key-token-invalid failure")
	}
	if len(client.Reports()) != 0 {
		t.Error("expected key-token-invalid failures to never reach ReportStats")
	}
}

func TestHandleRetriesWhenServiceAcceptsRetry(t *testing.T) {
	client := workservice.NewLocalClient()
	last := &LastException{}
	r := NewReporter(client, last, time.Millisecond)

	retried := false
	r.Handle(context.Background(), "c1", []byte("k"), 1, errors.New("boom"), func() { retried = true })

	if !retried {
		t.Error("expected retry when the service reports the item as still retryable")
	}
	if last.Get() == nil {
		t.Error("expected the failure to be recorded as the last exception")
	}
	if len(client.Reports()) != 1 {
		t.Fatalf("expected exactly one ReportStats call, got %d", len(client.Reports()))
	}
}

func TestHandleAbandonsWhenServiceRejectsRetry(t *testing.T) {
	client := workservice.NewLocalClient()
	client.FailNextReport(true)
	r := NewReporter(client, &LastException{}, time.Millisecond)

	retried := false
	r.Handle(context.Background(), "c1", []byte("k"), 1, errors.New("boom"), func() { retried = true })

	if retried {
		t.Error("expected no retry once the service reports the item as failed/abandoned")
	}
}

func TestIsKeyTokenInvalidSeesThroughUserCodeWrapper(t *testing.T) {
	inner := &KeyTokenInvalidError{Key: []byte("k"), WorkToken: 1}
	wrapped := &UserCodeWrapperError{Err: inner}

	if !IsKeyTokenInvalid(wrapped) {
		t.Error("expected IsKeyTokenInvalid to find the cause through a user-code wrapper")
	}
}

func TestBuildReportWalksCauseChain(t *testing.T) {
	cause := errors.New("root cause")
	wrapped := &UserCodeWrapperError{Err: cause}

	rep := buildReport(wrapped)
	if rep.Cause == nil {
		t.Fatal("expected a cause frame for a wrapped error")
	}
	if rep.Cause.StackFrames[0] != "root cause" {
		t.Errorf("expected cause frame text %q, got %q", "root cause", rep.Cause.StackFrames[0])
	}
}
