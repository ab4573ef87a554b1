package backend

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

type fakeEngine struct {
	mu      sync.Mutex
	device  int
	batches [][]Request
	fail    bool
	short   bool
}

func (e *fakeEngine) Infer(ctx context.Context, batch []Request) ([]string, error) {
	e.mu.Lock()
	e.batches = append(e.batches, batch)
	e.mu.Unlock()

	if e.fail {
		return nil, errors.New("worker crashed")
	}

	out := make([]string, len(batch))
	for i, req := range batch {
		out[i] = fmt.Sprintf("dev%d:%s", e.device, req.User)
	}
	if e.short {
		out = out[:len(out)-1]
	}
	return out, nil
}

func newFakeLocal(t *testing.T, devices []int, engines map[int]*fakeEngine) *Local {
	t.Helper()
	l, err := NewLocal(devices, func(device int) (Engine, error) {
		eng, ok := engines[device]
		if !ok {
			return nil, fmt.Errorf("no engine for device %d", device)
		}
		eng.device = device
		return eng, nil
	})
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	return l
}

func TestLocal_PartitionsContiguously(t *testing.T) {
	engines := map[int]*fakeEngine{0: {}, 1: {}}
	l := newFakeLocal(t, []int{0, 1}, engines)

	batch := make([]Request, 5)
	for i := range batch {
		batch[i] = Request{User: fmt.Sprintf("r%d", i)}
	}

	results, err := l.Generate(context.Background(), batch)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(results) != 5 {
		t.Fatalf("len(results): got %d want 5", len(results))
	}

	// 5 items over 2 workers: device 0 takes r0..r2, device 1 takes r3..r4.
	wants := []string{"dev0:r0", "dev0:r1", "dev0:r2", "dev1:r3", "dev1:r4"}
	for i, want := range wants {
		if results[i].Text != want {
			t.Fatalf("result %d: got %q want %q", i, results[i].Text, want)
		}
	}
	if len(engines[0].batches) != 1 || len(engines[0].batches[0]) != 3 {
		t.Fatalf("device 0 chunk: %+v", engines[0].batches)
	}
	if len(engines[1].batches) != 1 || len(engines[1].batches[0]) != 2 {
		t.Fatalf("device 1 chunk: %+v", engines[1].batches)
	}
}

func TestLocal_WorkerFailureIsFatal(t *testing.T) {
	engines := map[int]*fakeEngine{0: {}, 1: {fail: true}}
	l := newFakeLocal(t, []int{0, 1}, engines)

	batch := []Request{{User: "a"}, {User: "b"}, {User: "c"}, {User: "d"}}
	if _, err := l.Generate(context.Background(), batch); err == nil {
		t.Fatal("expected fatal error when a worker fails")
	}
}

func TestLocal_ShortCompletionIsFatal(t *testing.T) {
	engines := map[int]*fakeEngine{0: {short: true}}
	l := newFakeLocal(t, []int{0}, engines)

	if _, err := l.Generate(context.Background(), []Request{{User: "a"}, {User: "b"}}); err == nil {
		t.Fatal("expected fatal error on completion count mismatch")
	}
}

func TestLocal_MoreWorkersThanItems(t *testing.T) {
	engines := map[int]*fakeEngine{0: {}, 1: {}, 2: {}}
	l := newFakeLocal(t, []int{0, 1, 2}, engines)

	results, err := l.Generate(context.Background(), []Request{{User: "only"}})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(results) != 1 || results[0].Text != "dev0:only" {
		t.Fatalf("results: %+v", results)
	}
}

func TestLocal_DuplicateDevices(t *testing.T) {
	_, err := NewLocal([]int{0, 0}, func(device int) (Engine, error) {
		return &fakeEngine{}, nil
	})
	if err == nil {
		t.Fatal("expected error for duplicate device ids")
	}
}

func TestPartition_Bounds(t *testing.T) {
	cases := []struct {
		n, workers int
		want       []int
	}{
		{n: 5, workers: 2, want: []int{0, 3, 5}},
		{n: 4, workers: 2, want: []int{0, 2, 4}},
		{n: 1, workers: 3, want: []int{0, 1, 1, 1}},
		{n: 0, workers: 2, want: []int{0, 0, 0}},
	}
	for _, tc := range cases {
		got := partition(tc.n, tc.workers)
		if len(got) != len(tc.want) {
			t.Fatalf("partition(%d,%d): got %v want %v", tc.n, tc.workers, got, tc.want)
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Fatalf("partition(%d,%d): got %v want %v", tc.n, tc.workers, got, tc.want)
			}
		}
	}
}
