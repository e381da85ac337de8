package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cruppstahl/ups"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// resetFlags restores every flag to its default; cobra keeps parsed values
// between Execute calls.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetArgs(args)
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestLoadDumpInfo(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "ups-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)
	path := filepath.Join(tmpDir, "cli.db")

	out, err := run(t, "b\t2\na\t1\n\nc\t3\n", "load", path, "--db", "2")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if !strings.Contains(out, "loaded 3 items") {
		t.Fatalf("unexpected load output %q", out)
	}

	out, err = run(t, "", "dump", path, "--db", "2")
	if err != nil {
		t.Fatalf("dump failed: %v", err)
	}
	if out != "a\t1\nb\t2\nc\t3\n" {
		t.Fatalf("unexpected dump %q", out)
	}

	out, err = run(t, "", "dump", path, "--db", "2", "--hex")
	if err != nil {
		t.Fatalf("dump --hex failed: %v", err)
	}
	if !strings.HasPrefix(out, "61\t31\n") {
		t.Fatalf("unexpected hex dump %q", out)
	}

	out, err = run(t, "", "info", path)
	if err != nil {
		t.Fatalf("info failed: %v", err)
	}
	for _, want := range []string{"database 2", "key type:    binary", "keys:        3"} {
		if !strings.Contains(out, want) {
			t.Fatalf("info output misses %q:\n%s", want, out)
		}
	}
}

func TestQuery(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "ups-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)
	path := filepath.Join(tmpDir, "cli.db")

	if _, err := run(t, "a\t1\nb\t2\nc\t3\n", "load", path, "--db", "2"); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	out, err := run(t, "", "query", path, "COUNT($key) FROM DATABASE 2")
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if out != "COUNT\t3\n" {
		t.Fatalf("unexpected query output %q", out)
	}
	out, err = run(t, "", "query", path, "value($key, $record) from database 2 limit 2")
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if out != "a\t1\nb\t2\n" {
		t.Fatalf("unexpected query output %q", out)
	}
	if _, err := run(t, "", "query", path, "count($key) database 2"); ups.Code(err) != ups.ErrParserError {
		t.Fatalf("expected ErrParserError, got %v", err)
	}
}

func TestLoadDuplicates(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "ups-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)
	path := filepath.Join(tmpDir, "dups.db")
	input := filepath.Join(tmpDir, "in.tsv")
	if err := os.WriteFile(input, []byte("k\tx\nk\ty\n"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	if _, err := run(t, "", "load", path, "--dups", "--input", input); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	out, err := run(t, "", "dump", path)
	if err != nil {
		t.Fatalf("dump failed: %v", err)
	}
	if out != "k\tx\nk\ty\n" {
		t.Fatalf("unexpected dump %q", out)
	}
}

func TestLoadRollsBackOnError(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "ups-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)
	path := filepath.Join(tmpDir, "bad.db")

	if _, err := run(t, "a\t1\nno separator\n", "load", path); err == nil {
		t.Fatal("load of malformed input succeeded")
	}
	out, err := run(t, "", "dump", path)
	if err != nil {
		t.Fatalf("dump failed: %v", err)
	}
	if out != "" {
		t.Fatalf("partial load was committed: %q", out)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("UPSCTL_IN_MEMORY", "true")
	out, err := run(t, "a\t1\n", "load", "ignored.db")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if !strings.Contains(out, "loaded 1 items") {
		t.Fatalf("unexpected output %q", out)
	}
	if _, err := os.Stat("ignored.db"); !os.IsNotExist(err) {
		t.Fatal("in-memory load created a file")
	}
}

func TestVersion(t *testing.T) {
	out, err := run(t, "", "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.HasPrefix(out, "upsctl v") || !strings.Contains(out, "engine ") {
		t.Fatalf("unexpected output %q", out)
	}
}
