package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestRun_ListBackends(t *testing.T) {
	var out, errOut bytes.Buffer
	if code := run([]string{"--list-backends"}, &out, &errOut); code != 0 {
		t.Fatalf("exit %d: %s", code, errOut.String())
	}
	if !strings.Contains(out.String(), "localfs") {
		t.Fatalf("expected localfs in backend list, got %q", out.String())
	}
	if strings.Contains(out.String(), "grpc") {
		t.Fatalf("daemon must not offer the grpc client backend")
	}
}

func TestRun_UsageErrors(t *testing.T) {
	cases := [][]string{
		{"--bogus"},
		{"--log-level", "loud"},
		{"--backend", "localfs"},
		{"--backend", "nope"},
	}
	for _, args := range cases {
		var out, errOut bytes.Buffer
		if code := run(args, &out, &errOut); code != 2 {
			t.Fatalf("%v: expected exit 2, got %d (%s)", args, code, errOut.String())
		}
	}
}
