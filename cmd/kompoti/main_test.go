package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestRun_NoArgsPrintsUsage(t *testing.T) {
	var out, errOut bytes.Buffer
	if code := run(nil, &out, &errOut); code != 2 {
		t.Fatalf("exit = %d, want 2", code)
	}
	if out.Len() != 0 {
		t.Fatalf("usage went to stdout: %q", out.String())
	}
	if !strings.Contains(errOut.String(), "kompoti ingest") || !strings.Contains(errOut.String(), "kompoti join") {
		t.Fatalf("usage missing subcommands:\n%s", errOut.String())
	}
}

func TestRun_UnknownCommand(t *testing.T) {
	var out, errOut bytes.Buffer
	if code := run([]string{"frobnicate"}, &out, &errOut); code != 2 {
		t.Fatalf("exit = %d, want 2", code)
	}
	if !strings.Contains(errOut.String(), "unknown command: frobnicate") {
		t.Fatalf("missing unknown-command line:\n%s", errOut.String())
	}
}

func TestRun_HelpGoesToStdout(t *testing.T) {
	var out, errOut bytes.Buffer
	if code := run([]string{"help"}, &out, &errOut); code != 0 {
		t.Fatalf("exit = %d, want 0", code)
	}
	if errOut.Len() != 0 {
		t.Fatalf("help went to stderr: %q", errOut.String())
	}
	if !strings.Contains(out.String(), "KOMPOTI_DATA_DIR") {
		t.Fatalf("help missing env var docs:\n%s", out.String())
	}
}

func TestRun_SubcommandArity(t *testing.T) {
	cases := [][]string{
		{"ingest"},
		{"ingest", "a.json", "b.json"},
		{"join"},
		{"join", "t1", "t2"},
	}
	for _, args := range cases {
		var out, errOut bytes.Buffer
		if code := run(args, &out, &errOut); code != 2 {
			t.Fatalf("run(%v) = %d, want 2", args, code)
		}
		if !strings.Contains(errOut.String(), "usage: kompoti") {
			t.Fatalf("run(%v) missing usage line:\n%s", args, errOut.String())
		}
	}
}

func TestRun_JoinBadTicketFails(t *testing.T) {
	t.Setenv("KOMPOTI_DATA_DIR", t.TempDir())
	var out, errOut bytes.Buffer
	if code := run([]string{"join", "definitely-not-a-ticket"}, &out, &errOut); code != 1 {
		t.Fatalf("exit = %d, want 1", code)
	}
	if !strings.Contains(errOut.String(), "join:") {
		t.Fatalf("missing phase-tagged error:\n%s", errOut.String())
	}
}
