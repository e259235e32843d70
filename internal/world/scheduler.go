package world

import (
	"sync"

	"github.com/OCharnyshevich/voxelworld/internal/world/chunk"
	"github.com/OCharnyshevich/voxelworld/pkg/world/coord"
)

type job struct {
	pos coord.ChunkPos
	c   *chunk.Chunk
}

// scheduler runs deferred chunk generation on a fixed set of workers. A chunk
// is queued at most once until its job finishes.
type scheduler struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []job
	pending map[*chunk.Chunk]struct{}
	active  int
	closed  bool

	run func(job)
	wg  sync.WaitGroup
}

func newScheduler(workers int, run func(job)) *scheduler {
	s := &scheduler{
		pending: make(map[*chunk.Chunk]struct{}),
		run:     run,
	}
	s.cond = sync.NewCond(&s.mu)
	s.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go s.worker()
	}
	return s
}

// enqueue adds a job unless the chunk is already queued or running. It
// reports whether the job was added.
func (s *scheduler) enqueue(j job) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	if _, ok := s.pending[j.c]; ok {
		return false
	}
	s.pending[j.c] = struct{}{}
	s.queue = append(s.queue, j)
	s.cond.Signal()
	return true
}

func (s *scheduler) worker() {
	defer s.wg.Done()
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if s.closed {
			s.mu.Unlock()
			return
		}
		j := s.queue[0]
		s.queue[0] = job{}
		s.queue = s.queue[1:]
		s.active++
		s.mu.Unlock()

		s.run(j)

		s.mu.Lock()
		delete(s.pending, j.c)
		s.active--
		s.cond.Broadcast()
		s.mu.Unlock()
	}
}

// wait blocks until the queue is empty and no job is running, or the
// scheduler is closed.
func (s *scheduler) wait() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for (len(s.queue) > 0 || s.active > 0) && !s.closed {
		s.cond.Wait()
	}
}

// backlog returns the number of queued and running jobs.
func (s *scheduler) backlog() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue) + s.active
}

// close drops queued jobs and waits for running ones to finish.
func (s *scheduler) close() {
	s.mu.Lock()
	s.closed = true
	s.queue = nil
	s.cond.Broadcast()
	s.mu.Unlock()
	s.wg.Wait()
}
