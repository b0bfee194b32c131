// File: workpool/workpool.go
// Author: momentics <momentics@gmail.com>
//
// WorkPool is a multi-worker executor that accepts cheap Task
// submissions from many producers and runs them with minimal
// contention across a bank of lock-free run-queues.

package workpool

import (
	"log"
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"

	"github.com/jsl-go/collider/api"
	"github.com/jsl-go/collider/control"
	"github.com/jsl-go/collider/internal/gate"
	"github.com/jsl-go/collider/internal/runqueue"
)

// WorkPool owns a bank of run-queues, a shared-count gate and a fixed
// set of worker goroutines draining them.
type WorkPool struct {
	name             string
	threads          int
	contentionFactor int

	bank *runqueue.Bank
	gate *gate.Gate

	running atomic.Bool
	wg      sync.WaitGroup

	drainedMu sync.Mutex
	drained   *queue.Queue

	tasksRun atomic.Int64
	panics   atomic.Int64

	metrics *control.MetricsRegistry
	debug   *control.DebugProbes
}

// Option configures optional ambient collaborators on a WorkPool.
type Option func(*WorkPool)

// WithMetrics attaches a metrics registry that Stats publishes into.
func WithMetrics(m *control.MetricsRegistry) Option {
	return func(p *WorkPool) { p.metrics = m }
}

// WithDebugProbes registers a state dump probe under the pool's name.
func WithDebugProbes(d *control.DebugProbes) Option {
	return func(p *WorkPool) { p.debug = d }
}

// New constructs a WorkPool. threads must be >= 1; contentionFactor <=
// 0 selects api.DefaultContentionFactor.
func New(name string, threads, contentionFactor int, opts ...Option) *WorkPool {
	if threads < 1 {
		panic("workpool: threads must be >= 1")
	}
	if contentionFactor <= 0 {
		contentionFactor = api.DefaultContentionFactor
	}
	p := &WorkPool{
		name:             name,
		threads:          threads,
		contentionFactor: contentionFactor,
		bank:             runqueue.NewBank(contentionFactor),
		gate:             gate.New(0, threads),
		drained:          queue.New(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.debug != nil {
		p.debug.RegisterProbe(name, func() any { return p.dumpState() })
	}
	return p
}

// Start launches the configured number of worker goroutines. Start
// must be called at most once.
func (p *WorkPool) Start() {
	if !p.running.CompareAndSwap(false, true) {
		panic("workpool: Start called more than once")
	}
	for i := 0; i < p.threads; i++ {
		p.wg.Add(1)
		go p.workerLoop(i)
	}
}

// Submit enqueues task for execution by some worker. Submit panics if
// the pool has been stopped.
func (p *WorkPool) Submit(task api.Task) {
	if !p.running.Load() {
		panic(api.ErrPoolStopped)
	}
	p.bank.Submit(task)
	p.gate.Release(1)
}

// Stop tells all workers to exit once they observe it, wakes them all
// unconditionally via the gate's saturation ceiling, and waits for them
// to finish. After Stop returns it is illegal to Submit; any tasks
// still queued at the moment a worker observed the stop are moved into
// the drained queue instead of being run or silently dropped. Stop
// panics if the pool is not running (a second Stop, or Stop before
// Start).
func (p *WorkPool) Stop() {
	if !p.running.CompareAndSwap(true, false) {
		panic("workpool: Stop called on a pool that is not running")
	}
	p.gate.Release(p.threads)
	p.wg.Wait()
	p.drainRemaining()
}

// Drained returns, in FIFO order, the tasks that were still queued when
// Stop ran and were not executed.
func (p *WorkPool) Drained() []api.Task {
	p.drainedMu.Lock()
	defer p.drainedMu.Unlock()
	out := make([]api.Task, 0, p.drained.Length())
	for p.drained.Length() > 0 {
		out = append(out, p.drained.Remove().(api.Task))
	}
	return out
}

func (p *WorkPool) drainRemaining() {
	p.drainedMu.Lock()
	defer p.drainedMu.Unlock()
	for i := 0; i < p.bank.Size(); i++ {
		for {
			task, ok := p.bank.DequeueAt(i)
			if !ok {
				break
			}
			p.drained.Add(task)
		}
	}
}

// workerLoop is one worker's probe/run/park cycle, per spec: acquire a
// permit, probe up to contentionFactor queues starting at a local
// cursor before re-parking, running anything found and resetting the
// probe credit so a busy worker never parks prematurely.
func (p *WorkPool) workerLoop(slot int) {
	defer p.wg.Done()
	q := 0
	for {
		p.gate.Acquire(1)
		if !p.running.Load() {
			// Stop() woke every worker via the saturation release;
			// hand the permit straight back so the gate ends up at
			// max once every worker has joined, and leave whatever
			// is still queued for drainRemaining rather than racing
			// to drain it here.
			p.gate.Release(1)
			return
		}
		credit := p.contentionFactor
		for credit > 0 {
			task, ok := p.bank.DequeueAt(q)
			if ok {
				p.runTask(task)
				credit = p.contentionFactor
			} else {
				credit--
			}
			q = (q + 1) % p.contentionFactor
		}
	}
}

// runTask executes task, recovering and logging a panic so that one
// failing unit of work never terminates its worker.
func (p *WorkPool) runTask(task api.Task) {
	defer func() {
		if r := recover(); r != nil {
			p.panics.Add(1)
			log.Printf("workpool %s: task panicked: %v", p.name, r)
		}
		p.tasksRun.Add(1)
		p.publishMetrics()
	}()
	task.RunInPool()
}

func (p *WorkPool) publishMetrics() {
	if p.metrics == nil {
		return
	}
	p.metrics.Set(p.name+".tasks_run", p.tasksRun.Load())
	p.metrics.Set(p.name+".panics", p.panics.Load())
	p.metrics.Set(p.name+".gate_count", p.gate.Count())
}

// Stats returns a snapshot of this pool's own counters merged with
// whatever a supplied MetricsRegistry currently holds.
func (p *WorkPool) Stats() map[string]any {
	out := p.dumpState()
	if p.metrics == nil {
		return out
	}
	for k, v := range p.metrics.GetSnapshot() {
		out[k] = v
	}
	return out
}

func (p *WorkPool) dumpState() map[string]any {
	return map[string]any{
		"name":              p.name,
		"threads":           p.threads,
		"contention_factor": p.contentionFactor,
		"running":           p.running.Load(),
		"gate_count":        p.gate.Count(),
		"tasks_run":         p.tasksRun.Load(),
		"panics":            p.panics.Load(),
	}
}
