package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MolEvolEpid/novel-hcv-subtypes/pkg/config"
	"github.com/MolEvolEpid/novel-hcv-subtypes/pkg/pipeline"
)

func run(args ...string) (string, error) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	out, err := run(args...)
	if err != nil {
		t.Fatalf("%v: %v\n%s", args, err, out)
	}
	return out
}

func TestWindowsCommand(t *testing.T) {
	out := execute(t, "windows", "1000")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 11 {
		t.Fatalf("expected header plus 10 windows, got:\n%s", out)
	}
	if lines[1] != "0\t500\t" || lines[10] != "450\t950\t" {
		t.Fatalf("unexpected windows:\n%s", out)
	}
}

func TestConfigDefaultRoundTrip(t *testing.T) {
	out := execute(t, "config", "default")
	cfg, err := config.Parse([]byte(out))
	if err != nil {
		t.Fatalf("default config does not parse: %v\n%s", err, out)
	}
	if cfg.Window.Length != 500 || cfg.Density.GridPoints != 512 {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestRunCommand(t *testing.T) {
	dir := t.TempDir()
	fasta := ">r1\n" + strings.Repeat("ACGT", 15) + "\n" +
		">r2\n" + strings.Repeat("ACGA", 15) + "\n" +
		">r3\n" + strings.Repeat("TCGA", 15) + "\n" +
		">r4\n" + strings.Repeat("TCCA", 15) + "\n" +
		">q1\n" + strings.Repeat("ACGG", 15) + "\n"
	meta := "id\tgenotype\tsubtype\nr1\t1\ta\nr2\t1\tb\nr3\t2\ta\nr4\t2\ta\nq1\tNA\t\n"
	alnPath := filepath.Join(dir, "aln.fasta")
	metaPath := filepath.Join(dir, "meta.tsv")
	if err := os.WriteFile(alnPath, []byte(fasta), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(metaPath, []byte(meta), 0o644); err != nil {
		t.Fatal(err)
	}

	outDir := filepath.Join(dir, "results")
	args := []string{"run", alnPath, metaPath,
		"--output", outDir, "--window", "20", "--step", "10", "--compress", "zstd",
		"--log-level", "error", "--workers", "2"}
	out := execute(t, args...)
	if !strings.Contains(out, "Analysis complete") || !strings.Contains(out, "Windows: 4") {
		t.Fatalf("unexpected summary:\n%s", out)
	}
	for _, name := range []string{"calls.tsv.zst", "overlaps.tsv.zst", "run.json"} {
		if _, err := os.Stat(filepath.Join(outDir, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}

	// a second run into the same directory needs --force
	if out, err := run(args...); !errors.Is(err, pipeline.ErrResultsExist) {
		t.Fatalf("expected ErrResultsExist, got %v\n%s", err, out)
	}
	execute(t, append(args, "--force")...)

	out = execute(t, "summary", outDir)
	for _, want := range []string{"Windows: 4", "calls.tsv.zst", "4 rows", "distances.tsv.zst", "10 rows", "undefined_distance"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary lacks %q:\n%s", want, out)
		}
	}
}
