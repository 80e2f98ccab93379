package runner

import (
	"container/list"
	"sync"
	"time"
)

type userQueue struct {
	jobs     []Job
	enqueued bool
}

// Dispatcher fans jobs out to the worker pool with per-user fairness: users
// take turns in arrival order, so one user queueing many papers cannot
// starve everyone else.
type Dispatcher struct {
	pool     *jobPool
	jobQueue chan Job

	mu        sync.Mutex
	queues    map[int64]*userQueue
	ready     *list.List // round-robin queue of user IDs
	positions map[int64]*list.Element
}

func NewDispatcher(minWorkers, maxWorkers, queueSize int, idleTimeout time.Duration) *Dispatcher {
	if queueSize < 1 {
		queueSize = 16
	}
	pool := newJobPool(minWorkers, maxWorkers, idleTimeout)

	d := &Dispatcher{
		queues:    make(map[int64]*userQueue),
		ready:     list.New(),
		positions: make(map[int64]*list.Element),
		pool:      pool,
		jobQueue:  make(chan Job, queueSize),
	}

	for i := 0; i < minWorkers; i++ {
		d.pool.spawnWorker()
	}

	go d.run()
	return d
}

// Enqueue submits a job; blocks only when the intake queue is full.
func (d *Dispatcher) Enqueue(job Job) {
	d.jobQueue <- job
}

func (d *Dispatcher) run() {
	for {
		// dispatch one job of the user in front of the round-robin queue
		if !d.dispatchOne() {
			job := <-d.jobQueue // force congestion
			d.enqueueJob(job)
			continue
		}
		select {
		case job := <-d.jobQueue: // non-congestion
			d.enqueueJob(job)
		default:
		}
	}
}

func (d *Dispatcher) enqueueJob(job Job) {
	d.mu.Lock()
	defer d.mu.Unlock()

	q := d.queues[job.userID]
	if q == nil {
		q = &userQueue{}
		d.queues[job.userID] = q
	}
	q.jobs = append(q.jobs, job)
	if q.enqueued {
		return
	}
	q.enqueued = true
	elem := d.ready.PushBack(job.userID)
	d.positions[job.userID] = elem
}

// dispatchOne takes the first queued user's next job and hands it to a
// worker, rotating the user to the back when more jobs remain.
func (d *Dispatcher) dispatchOne() bool {
	d.mu.Lock()
	elem := d.ready.Front()
	if elem == nil {
		d.mu.Unlock()
		return false
	}
	userID := elem.Value.(int64)
	q := d.queues[userID]
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	if len(q.jobs) == 0 {
		q.enqueued = false
		d.ready.Remove(elem)
		delete(d.positions, userID)
		delete(d.queues, userID)
	} else {
		d.ready.MoveToBack(elem)
	}
	d.mu.Unlock()

	workerChan := d.pool.acquire()
	debugLog("[runner] assign job for user %d to worker-%d", userID, d.pool.workerID(workerChan))
	workerChan <- job
	return true
}
