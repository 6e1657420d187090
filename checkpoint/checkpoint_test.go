package checkpoint

import (
	"errors"
	"io"
	"strings"
	"testing"
)

var (
	errSentinel = errors.New("mount failed")
	errCause    = errors.New("exit status 32")
)

func TestFrom(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantNil bool
		wantRaw bool
	}{
		{name: "nil", err: nil, wantNil: true},
		{name: "io.EOF stays raw", err: io.EOF, wantRaw: true},
		{name: "io.ErrUnexpectedEOF stays raw", err: io.ErrUnexpectedEOF, wantRaw: true},
		{name: "normal error", err: errCause},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := From(tt.err)
			if (got == nil) != tt.wantNil {
				t.Fatalf("From() = %v, wantNil %v", got, tt.wantNil)
			}
			if tt.wantRaw && got != tt.err {
				t.Errorf("From() = %#v, want the raw error %#v", got, tt.err)
			}
			if got != nil && !errors.Is(got, tt.err) {
				t.Errorf("errors.Is(From(), err) = false")
			}
		})
	}
}

func TestWrap(t *testing.T) {
	if got := Wrap(nil, errSentinel); got != nil {
		t.Errorf("Wrap(nil, ...) = %v, want nil", got)
	}
	if got := Wrap(io.EOF, errSentinel); got != io.EOF {
		t.Errorf("Wrap(io.EOF, ...) = %v, want io.EOF", got)
	}

	err := Wrap(errCause, errSentinel)
	if !errors.Is(err, errSentinel) {
		t.Error("errors.Is(err, sentinel) = false")
	}
	if !errors.Is(err, errCause) {
		t.Error("errors.Is(err, cause) = false")
	}
}

func TestCheckpoint_Error(t *testing.T) {
	err := Wrap(From(errCause), errSentinel)
	msg := err.Error()

	if strings.Contains(msg, "\n") {
		t.Errorf("Error() = %q must be a single line", msg)
	}
	if !strings.HasPrefix(msg, "checkpoint_test.go:") {
		t.Errorf("Error() = %q should start with the caller location", msg)
	}
	if !strings.HasSuffix(msg, "mount failed: exit status 32") {
		t.Errorf("Error() = %q should end with the error chain", msg)
	}
	if strings.Count(msg, "checkpoint_test.go:") != 1 {
		t.Errorf("Error() = %q should contain only the outer location", msg)
	}
}

type kindError struct{ kind string }

func (e *kindError) Error() string { return e.kind }

func TestCheckpoint_As(t *testing.T) {
	err := Wrap(errCause, &kindError{kind: "truncated"})

	var target *kindError
	if !errors.As(err, &target) {
		t.Fatal("errors.As() = false")
	}
	if target.kind != "truncated" {
		t.Errorf("errors.As() target = %v, want truncated", target.kind)
	}
}
