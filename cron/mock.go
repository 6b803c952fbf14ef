package cron

import "sync"

// Mock is a Registrar that only records what it is asked to do. Use it to
// check that an application registers the jobs you expect; it never runs
// them.
type Mock struct {
	mu   sync.Mutex
	jobs []MockJob
}

// MockJob is a job recorded by a Mock.
type MockJob struct {
	Job
	Killed bool
}

// Register records jobs.
func (m *Mock) Register(jobs ...Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, j := range jobs {
		m.jobs = append(m.jobs, MockJob{Job: j})
	}
	return nil
}

// Kill marks every recorded job with the given name as killed.
func (m *Mock) Kill(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	found := false
	for i := range m.jobs {
		if m.jobs[i].Name == name {
			m.jobs[i].Killed = true
			found = true
		}
	}
	return found
}

// KillAll marks every recorded job as killed.
func (m *Mock) KillAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.jobs {
		m.jobs[i].Killed = true
	}
}

// Jobs returns a copy of the recorded jobs.
func (m *Mock) Jobs() []MockJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockJob(nil), m.jobs...)
}

var (
	_ Registrar = (*Cron)(nil)
	_ Registrar = (*Mock)(nil)
)
