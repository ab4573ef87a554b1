package dataset

import (
	"os"
	"path/filepath"
	"testing"
)

func writeDataset(t *testing.T, root, name string) {
	t.Helper()
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(filepath.Join(dir, "responses"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	files := map[string]string{
		"prompts.yaml": `
- id: p1
  text: "Explain photosynthesis."
- id: p2
  text: "Summarize the plot of Hamlet."
`,
		"models.yaml": `
- name: model-b
  split: train
- name: model-a
  split: train
- name: model-c
  split: test
- name: model-a
  split: test
`,
		"responses/model-a.yaml": `
p1: "Plants convert light."
p2: "A prince seeks revenge."
`,
	}
	for rel, content := range files {
		if err := os.WriteFile(filepath.Join(dir, rel), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", rel, err)
		}
	}
}

func TestRegistry_Prompts(t *testing.T) {
	root := t.TempDir()
	writeDataset(t, root, "demo")

	r, err := NewRegistry(root)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	prompts, err := r.Prompts("demo")
	if err != nil {
		t.Fatalf("Prompts: %v", err)
	}
	if len(prompts) != 2 {
		t.Fatalf("len(prompts): got %d want 2", len(prompts))
	}
	if prompts[0].ID != "p1" || prompts[1].ID != "p2" {
		t.Fatalf("prompt order: %+v", prompts)
	}
}

func TestRegistry_TargetModels_SplitsAndDedup(t *testing.T) {
	root := t.TempDir()
	writeDataset(t, root, "demo")

	r, err := NewRegistry(root)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	train, err := r.TargetModels("demo", SplitTrain)
	if err != nil {
		t.Fatalf("TargetModels(train): %v", err)
	}
	if len(train) != 2 || train[0] != "model-b" || train[1] != "model-a" {
		t.Fatalf("train models: %v", train)
	}

	// model-a appears in both splits; full must keep one entry, train first.
	full, err := r.TargetModels("demo", SplitFull)
	if err != nil {
		t.Fatalf("TargetModels(full): %v", err)
	}
	want := []string{"model-b", "model-a", "model-c"}
	if len(full) != len(want) {
		t.Fatalf("full models: got %v want %v", full, want)
	}
	for i := range want {
		if full[i] != want[i] {
			t.Fatalf("full models: got %v want %v", full, want)
		}
	}
}

func TestRegistry_Responses(t *testing.T) {
	root := t.TempDir()
	writeDataset(t, root, "demo")

	r, err := NewRegistry(root)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	resp, err := r.Responses("demo", "model-a")
	if err != nil {
		t.Fatalf("Responses: %v", err)
	}
	if resp["p1"] != "Plants convert light." {
		t.Fatalf("p1 response: %q", resp["p1"])
	}

	if _, err := r.Responses("demo", "missing-model"); err == nil {
		t.Fatal("expected error for missing response file")
	}
}

func TestRegistry_MissingDataset(t *testing.T) {
	r, err := NewRegistry(t.TempDir())
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if _, err := r.Prompts("nope"); err == nil {
		t.Fatal("expected error for missing dataset")
	}
}

func TestRegistry_InvalidSplit(t *testing.T) {
	root := t.TempDir()
	writeDataset(t, root, "demo")

	r, err := NewRegistry(root)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if _, err := r.TargetModels("demo", Split("weird")); err == nil {
		t.Fatal("expected error for invalid split")
	}
}
