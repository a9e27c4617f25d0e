package tasks

import (
	"errors"
	"sync"
)

// PendingWrites tracks persistence operations dispatched without blocking the caller.
//
// Wait returns once every dispatched write finished, joining their errors.
type PendingWrites struct {
	wg   sync.WaitGroup
	mu   sync.Mutex
	errs []error
}

// Go runs write in its own goroutine.
func (p *PendingWrites) Go(write func() error) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := write(); err != nil {
			p.mu.Lock()
			p.errs = append(p.errs, err)
			p.mu.Unlock()
		}
	}()
}

func (p *PendingWrites) Wait() error {
	p.wg.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	return errors.Join(p.errs...)
}
