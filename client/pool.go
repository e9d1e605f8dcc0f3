package client

import (
	"sync"
)

// pool is a fixed set of workers draining a bounded task queue. Submission
// never blocks: a full queue or a closed pool rejects the task.
type pool struct {
	mtx    sync.Mutex
	tasks  chan func()
	closed bool
	wg     sync.WaitGroup
}

func newPool(workers int, depth int) *pool {
	p := &pool{tasks: make(chan func(), depth)}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.work()
	}
	return p
}

func (p *pool) work() {
	defer p.wg.Done()
	for task := range p.tasks {
		task()
	}
}

func (p *pool) submit(task func()) bool {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	if p.closed {
		return false
	}
	select {
	case p.tasks <- task:
		return true
	default:
		return false
	}
}

// close stops the workers after they finish any queued tasks.
func (p *pool) close() {
	p.mtx.Lock()
	if !p.closed {
		p.closed = true
		close(p.tasks)
	}
	p.mtx.Unlock()
	p.wg.Wait()
}
