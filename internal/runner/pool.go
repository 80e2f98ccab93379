package runner

import (
	"sync"
	"time"
)

type workerMeta struct {
	ch        chan Job
	id        int
	lastUsed  time.Time
	enqueued  bool // is in the idle queue
	discarded bool // is targeted as delete
}

type jobPool struct {
	mu       sync.Mutex
	cond     *sync.Cond
	idle     []*workerMeta
	metadata map[chan Job]*workerMeta
	min      int
	max      int
	running  int
	nextID   int
	expiry   time.Duration
}

const defaultWorkerIdle = 30 * time.Second

func newJobPool(minWorkers, maxWorkers int, idle time.Duration) *jobPool {
	if minWorkers < 1 {
		minWorkers = 1
	}
	if maxWorkers < minWorkers {
		maxWorkers = minWorkers
	}
	if idle <= 0 {
		idle = defaultWorkerIdle
	}
	p := &jobPool{
		metadata: make(map[chan Job]*workerMeta),
		min:      minWorkers,
		max:      maxWorkers,
		expiry:   idle,
	}
	p.cond = sync.NewCond(&p.mu)
	go p.purgeStaleWorkers()
	return p
}

// spawnWorker adds a released worker, used to warm the pool up to min.
func (p *jobPool) spawnWorker() {
	p.mu.Lock()
	if p.running >= p.max {
		p.mu.Unlock()
		return
	}
	meta := p.newWorkerLocked()
	p.mu.Unlock()
	go p.runWorker(meta)
	p.Release(meta.ch)
}

// acquire gets an idle worker, or spawns a new one. Blocks when the pool is
// saturated until a worker is released or retired.
func (p *jobPool) acquire() chan Job {
	for {
		p.mu.Lock()
		if meta := p.popIdleLocked(); meta != nil {
			p.mu.Unlock()
			return meta.ch
		}
		if p.running < p.max {
			meta := p.newWorkerLocked()
			p.mu.Unlock()
			go p.runWorker(meta)
			return meta.ch
		}
		p.cond.Wait()
		p.mu.Unlock()
	}
}

// Release puts a worker back into the idle queue.
func (p *jobPool) Release(ch chan Job) {
	p.mu.Lock()
	meta, ok := p.metadata[ch]
	if !ok || meta.discarded || meta.enqueued {
		p.mu.Unlock()
		return
	}
	meta.enqueued = true
	meta.lastUsed = time.Now()
	p.idle = append(p.idle, meta)
	p.mu.Unlock()
	p.cond.Signal()
}

func (p *jobPool) retire(ch chan Job) {
	p.mu.Lock()
	if meta, ok := p.metadata[ch]; ok {
		delete(p.metadata, ch)
		meta.discarded = true
		if p.running > 0 {
			p.running--
		}
	}
	p.mu.Unlock()
	p.cond.Broadcast()
}

func (p *jobPool) workerID(ch chan Job) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if meta, ok := p.metadata[ch]; ok {
		return meta.id
	}
	return -1
}

// newWorkerLocked registers a worker; caller holds p.mu.
func (p *jobPool) newWorkerLocked() *workerMeta {
	p.nextID++
	meta := &workerMeta{
		ch: make(chan Job),
		id: p.nextID,
	}
	p.metadata[meta.ch] = meta
	p.running++
	return meta
}

func (p *jobPool) runWorker(meta *workerMeta) {
	for job := range meta.ch {
		if job.stop {
			p.retire(meta.ch)
			return
		}
		debugLog("[runner] worker-%d running job for user %d", meta.id, job.userID)
		job.run()
		p.Release(meta.ch)
	}
}

// popIdleLocked checks if the pool has an idle worker, then returns it.
func (p *jobPool) popIdleLocked() *workerMeta {
	for len(p.idle) > 0 {
		meta := p.idle[0]
		p.idle = p.idle[1:]
		if meta.discarded {
			continue
		}
		meta.enqueued = false
		return meta
	}
	return nil
}

func (p *jobPool) purgeStaleWorkers() {
	ticker := time.NewTicker(p.expiry)
	defer ticker.Stop()
	for {
		<-ticker.C
		p.shutdownExpired()
	}
}

// shutdownExpired retires idle workers past the expiry, keeping min running.
func (p *jobPool) shutdownExpired() {
	var stale []*workerMeta
	now := time.Now()

	p.mu.Lock()
	if len(p.idle) == 0 || p.running <= p.min {
		p.mu.Unlock()
		return
	}
	remaining := p.idle[:0] // keep the original array
	for _, meta := range p.idle {
		if meta.discarded {
			continue
		}
		if now.Sub(meta.lastUsed) >= p.expiry && p.running-len(stale) > p.min {
			meta.discarded = true
			meta.enqueued = false
			stale = append(stale, meta)
			continue
		}
		remaining = append(remaining, meta)
	}
	p.idle = remaining
	p.mu.Unlock()

	for _, meta := range stale {
		meta.ch <- Job{stop: true}
	}
}
