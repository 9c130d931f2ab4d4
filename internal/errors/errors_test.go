package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestRollcallError_Error(t *testing.T) {
	err := New(ErrCategoryRoster, CodeRosterWriteFailed, "append failed")
	expected := "[ROSTER:ROSTER_WRITE_FAILED] append failed"
	if err.Error() != expected {
		t.Errorf("got %q, want %q", err.Error(), expected)
	}
}

func TestRollcallError_ErrorWithCause(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := Wrap(ErrCategoryRoster, CodeRosterWriteFailed, "append failed", cause)
	expected := "[ROSTER:ROSTER_WRITE_FAILED] append failed: disk full"
	if err.Error() != expected {
		t.Errorf("got %q, want %q", err.Error(), expected)
	}
}

func TestRollcallError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("root cause")
	err := Wrap(ErrCategoryRegistry, CodeQueryFailed, "insert failed", cause)
	if !errors.Is(err, cause) {
		t.Error("Unwrap should allow errors.Is to find the cause")
	}
}

func TestRollcallError_Is(t *testing.T) {
	err1 := New(ErrCategoryRegistry, CodeEventNotFound, "first")
	err2 := New(ErrCategoryRegistry, CodeEventNotFound, "second")
	err3 := New(ErrCategoryRegistry, CodeForbidden, "different code")

	if !errors.Is(err1, err2) {
		t.Error("errors with same category+code should match via Is")
	}
	if errors.Is(err1, err3) {
		t.Error("errors with different codes should not match via Is")
	}
}

func TestClassifiers(t *testing.T) {
	nf := NewNotFoundError(7)
	fb := NewForbiddenError(7)
	inc := New(ErrCategoryRoster, CodeRosterMissing, "roster missing for event 7")

	if !IsNotFound(nf) || IsNotFound(fb) {
		t.Error("IsNotFound misclassified")
	}
	if !IsForbidden(fb) || IsForbidden(nf) {
		t.Error("IsForbidden misclassified")
	}
	if !IsInconsistent(inc) || IsInconsistent(nf) {
		t.Error("IsInconsistent misclassified")
	}

	// Classifiers should see through wrapping.
	wrapped := fmt.Errorf("handler: %w", nf)
	if !IsNotFound(wrapped) {
		t.Error("IsNotFound should match through error chains")
	}
}

func TestGetCategoryAndCode(t *testing.T) {
	err := NewStorageError(CodeUploadFailed, "put failed", fmt.Errorf("timeout"))
	if got := GetCategory(err); got != ErrCategoryStorage {
		t.Errorf("GetCategory: got %q, want %q", got, ErrCategoryStorage)
	}
	if got := GetCode(err); got != CodeUploadFailed {
		t.Errorf("GetCode: got %q, want %q", got, CodeUploadFailed)
	}
	if got := GetCategory(fmt.Errorf("plain")); got != "" {
		t.Errorf("GetCategory on plain error: got %q, want empty", got)
	}
}
