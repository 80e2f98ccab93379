package runner

// Job is one unit of pipeline work bound to the submitting user. A stop job
// is a pool-internal sentinel that retires the receiving worker.
type Job struct {
	userID int64
	run    func()
	stop   bool
}
