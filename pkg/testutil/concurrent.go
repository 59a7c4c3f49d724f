package testutil

import (
	"sync"

	dErrors "trash4cash/pkg/domain-errors"
)

// Outcomes counts how concurrent calls ended. Failed calls are grouped by the
// domain code they carry; errors without one count as internal_error.
type Outcomes struct {
	Successes int
	Failures  map[dErrors.Code]int
}

// Failed returns how many calls failed with code.
func (o *Outcomes) Failed(code dErrors.Code) int {
	return o.Failures[code]
}

// Total returns the number of calls made.
func (o *Outcomes) Total() int {
	n := o.Successes
	for _, c := range o.Failures {
		n += c
	}
	return n
}

// RunConcurrent calls fn from n goroutines released at the same instant, so
// the calls overlap, and waits for all of them.
func RunConcurrent(n int, fn func(idx int) error) *Outcomes {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		gate = make(chan struct{})
		out  = &Outcomes{Failures: make(map[dErrors.Code]int)}
	)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-gate
			err := fn(i)

			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				out.Successes++
				return
			}
			out.Failures[dErrors.CodeOf(err)]++
		}()
	}
	close(gate)
	wg.Wait()
	return out
}
