package backend

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Engine is one locally-hosted inference worker, typically bound to a
// single accelerator device. It must return one completion per request.
type Engine interface {
	Infer(ctx context.Context, batch []Request) ([]string, error)
}

// EngineFactory builds the engine for one device id.
type EngineFactory func(device int) (Engine, error)

// Local partitions a batch into contiguous chunks, one per declared device,
// and runs each chunk on that device's engine. Partitions are independent,
// so no mid-batch synchronization is needed. A worker failure fails the
// whole batch: local inference cannot resume at sub-batch granularity, so a
// silent partial result would corrupt downstream artifacts.
type Local struct {
	devices []int
	engines []Engine
}

func NewLocal(devices []int, factory EngineFactory) (*Local, error) {
	if len(devices) == 0 {
		return nil, errors.New("backend: local: no devices")
	}
	if factory == nil {
		return nil, errors.New("backend: local: nil engine factory")
	}

	seen := make(map[int]struct{}, len(devices))
	engines := make([]Engine, 0, len(devices))
	for _, d := range devices {
		if _, dup := seen[d]; dup {
			return nil, fmt.Errorf("backend: local: duplicate device %d", d)
		}
		seen[d] = struct{}{}

		eng, err := factory(d)
		if err != nil {
			return nil, fmt.Errorf("backend: local: engine for device %d: %w", d, err)
		}
		if eng == nil {
			return nil, fmt.Errorf("backend: local: nil engine for device %d", d)
		}
		engines = append(engines, eng)
	}

	return &Local{devices: devices, engines: engines}, nil
}

func (l *Local) Name() string {
	return "local"
}

func (l *Local) Generate(ctx context.Context, batch []Request) ([]Result, error) {
	if l == nil || len(l.engines) == 0 {
		return nil, errors.New("backend: local: no engines")
	}
	if ctx == nil {
		return nil, errors.New("backend: local: nil context")
	}
	if len(batch) == 0 {
		return nil, nil
	}

	bounds := partition(len(batch), len(l.engines))
	out := make([]Result, len(batch))
	errs := make([]error, len(l.engines))

	var wg sync.WaitGroup
	for w := range l.engines {
		lo, hi := bounds[w], bounds[w+1]
		if lo == hi {
			continue
		}

		worker := w
		wg.Add(1)
		go func() {
			defer wg.Done()

			texts, err := l.engines[worker].Infer(ctx, batch[lo:hi])
			if err != nil {
				errs[worker] = fmt.Errorf("backend: local: device %d: %w", l.devices[worker], err)
				return
			}
			if len(texts) != hi-lo {
				errs[worker] = fmt.Errorf("backend: local: device %d: got %d completions want %d",
					l.devices[worker], len(texts), hi-lo)
				return
			}
			for i, text := range texts {
				out[lo+i] = Result{Text: text}
			}
		}()
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// partition returns len(workers)+1 contiguous chunk boundaries covering n
// items, spreading the remainder over the leading workers.
func partition(n, workers int) []int {
	bounds := make([]int, workers+1)
	chunk := n / workers
	rem := n % workers

	pos := 0
	for w := 0; w < workers; w++ {
		bounds[w] = pos
		pos += chunk
		if w < rem {
			pos++
		}
	}
	bounds[workers] = pos
	return bounds
}
