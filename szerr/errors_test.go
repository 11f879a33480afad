package szerr

import (
	"errors"
	"fmt"
	"io"
	"testing"
)

func TestWrap_UnwrapsCause(t *testing.T) {
	err := Wrap(KindIO, "SZDAT-IO-001", "read file", io.ErrUnexpectedEOF)
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected wrapped cause to be reachable via errors.Is")
	}
	if got := err.Error(); got != "read file: unexpected EOF" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestWrap_NilCauseBehavesLikeNew(t *testing.T) {
	err := Wrap(KindDecode, "SZDAT-DEC-001", "malformed", nil)
	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if e.Cause != nil {
		t.Fatalf("expected nil cause")
	}
}

func TestIsKindAndRuleID_ThroughFmtWrap(t *testing.T) {
	base := New(KindVerification, "SZDAT-SIG-401", "signature invalid")
	err := fmt.Errorf("unarchive: %w", base)

	if !IsKind(err, KindVerification) {
		t.Fatalf("expected KindVerification")
	}
	if IsKind(err, KindDecode) {
		t.Fatalf("did not expect KindDecode")
	}
	if got := RuleID(err); got != "SZDAT-SIG-401" {
		t.Fatalf("expected RuleID SZDAT-SIG-401, got %q", got)
	}
	if got := RuleID(errors.New("plain")); got != "" {
		t.Fatalf("expected empty RuleID for unstructured error, got %q", got)
	}
}
