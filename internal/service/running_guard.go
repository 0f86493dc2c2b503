package service

import (
	"context"
	"sort"
	"sync"
	"time"
)

// ActiveRun describes an import that is executing right now.
type ActiveRun struct {
	JobID   string    `json:"jobId"`
	Trigger string    `json:"trigger"`
	Started time.Time `json:"started"`
}

// runGuard serializes runs per job. A manual run, a cron tick and a file
// event for the same job never overlap; different jobs run in parallel.
type runGuard struct {
	mu     sync.Mutex
	active map[string]ActiveRun
	wg     sync.WaitGroup
	now    func() time.Time
}

// acquire claims jobID for one run. ok is false when a run is already in
// flight; otherwise release must be called exactly once.
func (g *runGuard) acquire(jobID, trigger string) (release func(), ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.active[jobID]; busy {
		return nil, false
	}
	if g.active == nil {
		g.active = make(map[string]ActiveRun)
	}
	started := time.Now()
	if g.now != nil {
		started = g.now()
	}
	g.active[jobID] = ActiveRun{JobID: jobID, Trigger: trigger, Started: started}
	g.wg.Add(1)

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.active, jobID)
			g.mu.Unlock()
			g.wg.Done()
		})
	}, true
}

func (g *runGuard) isActive(jobID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.active[jobID]
	return ok
}

// list returns the active runs, oldest first.
func (g *runGuard) list() []ActiveRun {
	g.mu.Lock()
	runs := make([]ActiveRun, 0, len(g.active))
	for _, r := range g.active {
		runs = append(runs, r)
	}
	g.mu.Unlock()

	sort.Slice(runs, func(i, j int) bool {
		if runs[i].Started.Equal(runs[j].Started) {
			return runs[i].JobID < runs[j].JobID
		}
		return runs[i].Started.Before(runs[j].Started)
	})
	return runs
}

// wait blocks until no run is active. It returns ctx.Err() when ctx ends first.
func (g *runGuard) wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
