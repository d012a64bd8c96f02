package workqueue

import "sync"

// TaskKind separates tasks that call the LLM from plain data tasks.
type TaskKind int

const (
	KindData TaskKind = iota
	KindLLM
)

func kindOf(t Task) TaskKind {
	if t.RequiresLLM() {
		return KindLLM
	}
	return KindData
}

// ConcurrencyStrategy decides whether another task of a kind may start.
// The queue calls OnStart/OnComplete around every execution.
type ConcurrencyStrategy interface {
	CanStart(kind TaskKind) bool
	OnStart(kind TaskKind)
	OnComplete(kind TaskKind)
}

// SlotStrategy allows a fixed number of running tasks per kind.
// A limit of 0 means unlimited.
type SlotStrategy struct {
	mu      sync.Mutex
	limits  map[TaskKind]int
	running map[TaskKind]int
}

// NewSlotStrategy creates a strategy with the given per-kind limits.
func NewSlotStrategy(llmLimit, dataLimit int) *SlotStrategy {
	return &SlotStrategy{
		limits:  map[TaskKind]int{KindLLM: llmLimit, KindData: dataLimit},
		running: make(map[TaskKind]int),
	}
}

// NewSerializedStrategy runs one LLM task and one data task at a time.
func NewSerializedStrategy() *SlotStrategy {
	return NewSlotStrategy(1, 1)
}

// NewThrottledLLMStrategy runs up to maxConcurrent LLM tasks alongside one data task.
func NewThrottledLLMStrategy(maxConcurrent int) *SlotStrategy {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return NewSlotStrategy(maxConcurrent, 1)
}

func (s *SlotStrategy) CanStart(kind TaskKind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	limit := s.limits[kind]
	return limit == 0 || s.running[kind] < limit
}

func (s *SlotStrategy) OnStart(kind TaskKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running[kind]++
}

func (s *SlotStrategy) OnComplete(kind TaskKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running[kind] > 0 {
		s.running[kind]--
	}
}

// Running returns the number of running tasks of a kind.
func (s *SlotStrategy) Running(kind TaskKind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running[kind]
}
