package dataset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Registry resolves dataset names into prompts, target models, and recorded
// responses. Layout on disk:
//
//	<root>/<dataset>/prompts.yaml             list of {id, text}
//	<root>/<dataset>/models.yaml              list of {name, split}
//	<root>/<dataset>/responses/<model>.yaml   map prompt id -> response text
type Registry struct {
	root string
}

func NewRegistry(root string) (*Registry, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.New("dataset: empty registry root")
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("dataset: registry root %q: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("dataset: registry root %q is not a directory", root)
	}
	return &Registry{root: root}, nil
}

// Prompts loads the ordered prompt list for a dataset.
func (r *Registry) Prompts(dataset string) ([]Prompt, error) {
	if r == nil {
		return nil, errors.New("dataset: nil registry")
	}
	dataset = strings.TrimSpace(dataset)
	if dataset == "" {
		return nil, errors.New("dataset: empty dataset name")
	}

	path := filepath.Join(r.root, dataset, "prompts.yaml")
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: read prompts %q: %w", path, err)
	}

	var prompts []Prompt
	if err := yaml.Unmarshal(b, &prompts); err != nil {
		return nil, fmt.Errorf("dataset: parse prompts %q: %w", path, err)
	}

	seen := make(map[string]struct{}, len(prompts))
	out := make([]Prompt, 0, len(prompts))
	for _, p := range prompts {
		id := strings.TrimSpace(p.ID)
		if id == "" {
			return nil, fmt.Errorf("dataset: %s: prompt with empty id", dataset)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("dataset: %s: duplicate prompt id %q", dataset, id)
		}
		seen[id] = struct{}{}
		out = append(out, Prompt{ID: id, Text: p.Text})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("dataset: %s: no prompts", dataset)
	}
	return out, nil
}

// TargetModels returns the ordered, de-duplicated model names for a split.
// SplitFull yields train followed by test, preserving file order.
func (r *Registry) TargetModels(dataset string, split Split) ([]string, error) {
	if r == nil {
		return nil, errors.New("dataset: nil registry")
	}
	if !split.Valid() {
		return nil, fmt.Errorf("dataset: invalid split %q", split)
	}

	models, err := r.loadModels(dataset)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(models))
	var out []string
	appendSplit := func(want Split) {
		for _, m := range models {
			if m.Split != want {
				continue
			}
			if _, dup := seen[m.Name]; dup {
				continue
			}
			seen[m.Name] = struct{}{}
			out = append(out, m.Name)
		}
	}

	switch split {
	case SplitFull:
		appendSplit(SplitTrain)
		appendSplit(SplitTest)
	default:
		appendSplit(split)
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("dataset: %s: no target models for split %q", dataset, split)
	}
	return out, nil
}

// Responses loads a model's recorded responses, keyed by prompt id.
func (r *Registry) Responses(dataset, model string) (map[string]string, error) {
	if r == nil {
		return nil, errors.New("dataset: nil registry")
	}
	dataset = strings.TrimSpace(dataset)
	model = strings.TrimSpace(model)
	if dataset == "" || model == "" {
		return nil, errors.New("dataset: missing dataset/model")
	}

	path := filepath.Join(r.root, dataset, "responses", model+".yaml")
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: read responses %q: %w", path, err)
	}

	out := make(map[string]string)
	if err := yaml.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("dataset: parse responses %q: %w", path, err)
	}
	return out, nil
}

func (r *Registry) loadModels(dataset string) ([]TargetModel, error) {
	dataset = strings.TrimSpace(dataset)
	if dataset == "" {
		return nil, errors.New("dataset: empty dataset name")
	}

	path := filepath.Join(r.root, dataset, "models.yaml")
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: read models %q: %w", path, err)
	}

	var models []TargetModel
	if err := yaml.Unmarshal(b, &models); err != nil {
		return nil, fmt.Errorf("dataset: parse models %q: %w", path, err)
	}

	out := make([]TargetModel, 0, len(models))
	for _, m := range models {
		name := strings.TrimSpace(m.Name)
		if name == "" {
			return nil, fmt.Errorf("dataset: %s: model with empty name", dataset)
		}
		if m.Split != SplitTrain && m.Split != SplitTest {
			return nil, fmt.Errorf("dataset: %s: model %q has invalid split %q", dataset, name, m.Split)
		}
		out = append(out, TargetModel{Name: name, Split: m.Split})
	}
	return out, nil
}
