package broadcast

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// Dispatcher runs submitted tasks on a fixed set of workers. The queue is
// bounded; when it is full the oldest queued task is dropped to make room.
type Dispatcher struct {
	tasks   chan func()
	wg      sync.WaitGroup
	dropped atomic.Int64
	onDrop  func()

	mu     sync.RWMutex
	closed bool
}

// NewDispatcher starts workers goroutines over a queue of queueSize tasks.
// onDrop, if set, is called for every dropped task.
func NewDispatcher(workers, queueSize int, onDrop func()) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}

	d := &Dispatcher{
		tasks:  make(chan func(), queueSize),
		onDrop: onDrop,
	}
	d.wg.Add(workers)
	for range workers {
		go d.work()
	}
	return d
}

// Submit queues task and returns immediately.
func (d *Dispatcher) Submit(task func()) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return ErrHubStopped
	}

	for {
		select {
		case d.tasks <- task:
			return nil
		default:
		}

		select {
		case <-d.tasks:
			d.dropped.Add(1)
			if d.onDrop != nil {
				d.onDrop()
			}
			slog.Warn("Broadcast queue full, dropped oldest fan-out task", "capacity", cap(d.tasks))
		default:
		}
	}
}

// Dropped returns how many tasks were discarded because the queue was full.
func (d *Dispatcher) Dropped() int64 {
	return d.dropped.Load()
}

// Stop rejects new tasks, lets workers finish what is queued, and waits for them.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.tasks)
	d.mu.Unlock()

	d.wg.Wait()
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for task := range d.tasks {
		d.run(task)
	}
}

func (d *Dispatcher) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Broadcast task panicked", "panic", r)
		}
	}()
	task()
}
