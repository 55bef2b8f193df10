package timer

import (
	"container/heap"
	"sync"
	"time"
)

// Task is one scheduled one-shot callback. The callback receives the
// task's own id so callers never share an id variable with the callback
// goroutine.
type Task struct {
	ID       int64
	Execute  time.Time
	Callback func(taskID int64)
	index    int
}

type taskQueue []*Task

func (q taskQueue) Len() int { return len(q) }

func (q taskQueue) Less(i, j int) bool {
	return q[i].Execute.Before(q[j].Execute)
}

func (q taskQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *taskQueue) Push(x interface{}) {
	n := len(*q)
	task := x.(*Task)
	task.index = n
	*q = append(*q, task)
}

func (q *taskQueue) Pop() interface{} {
	old := *q
	n := len(old)
	task := old[n-1]
	task.index = -1
	*q = old[0 : n-1]
	return task
}

// Manager schedules cancellable one-shot callbacks on a single ticking
// goroutine. Callbacks run on their own goroutines.
//
// Cancellation is best-effort: a task already popped for execution still
// runs. Callers that arm phase timers therefore re-validate their state
// when the callback fires instead of trusting Cancel alone.
type Manager struct {
	queue      taskQueue
	mutex      sync.Mutex
	nextID     int64
	trigger    chan *Task
	done       chan struct{}
	resolution time.Duration
}

// NewManager starts a manager ticking at the default 100ms resolution.
func NewManager() *Manager {
	return NewManagerWithResolution(100 * time.Millisecond)
}

// NewManagerWithResolution is used by tests that schedule millisecond
// timers.
func NewManagerWithResolution(resolution time.Duration) *Manager {
	m := &Manager{
		queue:      make(taskQueue, 0),
		trigger:    make(chan *Task, 1000),
		done:       make(chan struct{}),
		nextID:     1,
		resolution: resolution,
	}
	heap.Init(&m.queue)
	go m.process()
	return m
}

// Schedule runs callback once after delay and returns the task id. The
// same id is passed to the callback when it fires.
func (m *Manager) Schedule(delay time.Duration, callback func(taskID int64)) int64 {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	task := &Task{
		ID:       m.nextID,
		Execute:  time.Now().Add(delay),
		Callback: callback,
	}
	m.nextID++

	heap.Push(&m.queue, task)
	return task.ID
}

// Cancel removes a pending task. It is a no-op for unknown or already
// fired ids.
func (m *Manager) Cancel(taskID int64) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for i, task := range m.queue {
		if task.ID == taskID {
			heap.Remove(&m.queue, i)
			break
		}
	}
}

// Pending returns the number of scheduled tasks.
func (m *Manager) Pending() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.queue.Len()
}

// Stop shuts the ticking goroutine down. Pending tasks never fire.
func (m *Manager) Stop() {
	close(m.done)
}

func (m *Manager) process() {
	ticker := time.NewTicker(m.resolution)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.mutex.Lock()
			now := time.Now()
			for m.queue.Len() > 0 {
				task := m.queue[0]
				if task.Execute.After(now) {
					break
				}
				heap.Pop(&m.queue)
				m.trigger <- task
			}
			m.mutex.Unlock()

		case task := <-m.trigger:
			go task.Callback(task.ID)

		case <-m.done:
			return
		}
	}
}
