package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stellarlinkco/checkrank/internal/ranking"
	"github.com/stellarlinkco/checkrank/internal/store"
)

func writeCLIConfig(t *testing.T, dbPath string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "storage:\n  path: " + dbPath + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func seedScores(t *testing.T, dbPath string) {
	t.Helper()
	st, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer st.Close()

	rows := []store.ScoreRow{
		{Model: "model-a", PromptID: "p1", Score: 0.9},
		{Model: "model-b", PromptID: "p1", Score: 0.3},
	}
	if err := st.SaveScores(context.Background(), "t1", rows); err != nil {
		t.Fatalf("SaveScores: %v", err)
	}
}

func TestExportCmd_WritesPairwiseCSV(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cli.db")
	seedScores(t, dbPath)
	cfgPath := writeCLIConfig(t, dbPath)
	outPath := filepath.Join(t.TempDir(), "pairwise.csv")

	cmd := newRootCmd()
	cmd.SetArgs([]string{"--config", cfgPath, "export", "t1", "--out", outPath})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	b, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	if len(lines) != 2 {
		t.Fatalf("csv lines: %v", lines)
	}
	if lines[0] != "model_a,model_b,prompt_id,outcome" {
		t.Fatalf("header: %q", lines[0])
	}
	if lines[1] != "model-a,model-b,p1,win" {
		t.Fatalf("record: %q", lines[1])
	}
}

func TestExportCmd_MissingTask(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cli.db")
	cfgPath := writeCLIConfig(t, dbPath)

	cmd := newRootCmd()
	cmd.SetArgs([]string{"--config", cfgPath, "export", "missing"})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error for missing task scores")
	}
}

func TestRankCmd_MissingTask(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cli.db")
	cfgPath := writeCLIConfig(t, dbPath)

	cmd := newRootCmd()
	cmd.SetArgs([]string{"--config", cfgPath, "rank", "missing"})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error for missing ranking")
	}
}

func TestWritePairwiseCSV(t *testing.T) {
	var buf bytes.Buffer
	records := []ranking.PairwiseRecord{
		{ModelA: "a", ModelB: "b", PromptID: "p1", Outcome: ranking.OutcomeTie},
	}
	if err := writePairwiseCSV(&buf, records); err != nil {
		t.Fatalf("writePairwiseCSV: %v", err)
	}
	want := "model_a,model_b,prompt_id,outcome\na,b,p1,tie\n"
	if buf.String() != want {
		t.Fatalf("csv: got %q want %q", buf.String(), want)
	}
}
