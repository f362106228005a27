package main

import (
	"testing"
)

func TestCommandTree(t *testing.T) {
	root := newRootCommand()
	for _, path := range [][]string{
		{"migrate"},
		{"seed"},
		{"audit", "export"},
		{"audit", "verify"},
		{"audit", "tail"},
		{"tokens", "purge-user"},
	} {
		cmd, rest, err := root.Find(path)
		if err != nil || len(rest) != 0 {
			t.Fatalf("Find(%v) = %v, %v, %v", path, cmd, rest, err)
		}
		if cmd.Name() != path[len(path)-1] {
			t.Fatalf("Find(%v) resolved %q", path, cmd.Name())
		}
	}
}

func TestExportRequiresOutput(t *testing.T) {
	root := newRootCommand()
	root.SetArgs([]string{"audit", "export"})
	if err := root.Execute(); err == nil {
		t.Fatal("export without --output succeeded")
	}
}

func TestFormatID(t *testing.T) {
	id := int64(42)
	if got := formatID(&id); got != "42" {
		t.Fatalf("formatID(42) = %q", got)
	}
	if got := formatID(nil); got != "-" {
		t.Fatalf("formatID(nil) = %q", got)
	}
}
