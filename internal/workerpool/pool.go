// Package workerpool implements the bounded-queue executor the push and
// pull pipelines submit their per-chunk jobs to: a fixed set of worker
// goroutines draining one channel, with a one-shot callback once every
// worker has exited.
package workerpool

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// Job is one unit of work submitted to the pool.
type Job func()

type message struct {
	job Job
	end bool
}

// Pool is a bounded-queue executor with a one-shot termination callback.
type Pool struct {
	jobs     chan message
	wg       sync.WaitGroup
	log      *logrus.Entry
	workers  int
	callback func()
	once     sync.Once
	done     chan struct{}
}

// New constructs a Pool with the given worker count and queue depth
// (0 = rendezvous, matching an unbuffered channel).
func New(workers, maxQueueSize int, log *logrus.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	if maxQueueSize < 0 {
		maxQueueSize = 0
	}

	p := &Pool{
		jobs:    make(chan message, maxQueueSize),
		log:     logrus.NewEntry(log).WithField("component", "pool"),
		workers: workers,
		done:    make(chan struct{}),
	}

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker(i)
	}
	return p
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for msg := range p.jobs {
		if msg.end {
			return
		}
		p.runJob(id, msg.job)
	}
}

// runJob isolates a panicking job so it cannot poison the pool's state.
func (p *Pool) runJob(id int, job Job) {
	defer func() {
		if r := recover(); r != nil {
			p.log.WithFields(logrus.Fields{"worker": id, "panic": fmt.Sprint(r)}).Error("job panicked")
		}
	}()
	job()
}

// Execute enqueues job, blocking while the queue is full. It never returns
// an error in this implementation: shutdown is caller-driven via Close,
// after which Execute must not be called again.
func (p *Pool) Execute(job Job) {
	p.jobs <- message{job: job}
}

// WithCallback registers a one-shot function invoked after every worker has
// drained and exited.
func (p *Pool) WithCallback(fn func()) {
	p.callback = fn
}

// Close sends one End token per worker, joins all workers, then invokes the
// registered callback exactly once.
func (p *Pool) Close() {
	p.once.Do(func() {
		for i := 0; i < p.workers; i++ {
			p.jobs <- message{end: true}
		}
		close(p.jobs)
		p.wg.Wait()
		if p.callback != nil {
			p.callback()
		}
		close(p.done)
	})
}

// Done returns a channel closed once Close has fully drained the pool.
func (p *Pool) Done() <-chan struct{} {
	return p.done
}

// Workers reports the pool's worker count, used to size bounded channels
// fed by pool jobs (e.g. the Puller's writer channel).
func (p *Pool) Workers() int {
	return p.workers
}
