// Package sched implements the priority-queue event scheduler that drives
// every time-based behavior in the core: a monotonic cycle counter plus a
// min-heap of (deadline, tag) pairs, ordered FIFO on ties so replay stays
// deterministic (spec.md §4.1).
package sched

import "container/heap"

// EventTag enumerates the closed set of asynchronous actions the scheduler
// can carry. Kept as a plain enum (not a callback) so events stay copyable
// and ordering stays deterministic, per the "Scheduler tag set" design note.
type EventTag int

const (
	TagStopRun EventTag = iota
	TagPpuHDraw
	TagPpuHBlank
	TagPpuVBlank
	TagDmaActivate0
	TagDmaActivate1
	TagDmaActivate2
	TagDmaActivate3
	TagTimerOverflow
	TagAudioSample
)

func (t EventTag) String() string {
	switch t {
	case TagStopRun:
		return "StopRun"
	case TagPpuHDraw:
		return "PpuHDraw"
	case TagPpuHBlank:
		return "PpuHBlank"
	case TagPpuVBlank:
		return "PpuVBlank"
	case TagDmaActivate0, TagDmaActivate1, TagDmaActivate2, TagDmaActivate3:
		return "DmaActivate"
	case TagTimerOverflow:
		return "TimerOverflow"
	case TagAudioSample:
		return "AudioSample"
	default:
		return "Unknown"
	}
}

// DmaActivateTag returns the activation tag for DMA channel ch (0..3).
func DmaActivateTag(ch int) EventTag {
	return TagDmaActivate0 + EventTag(ch)
}

type event struct {
	deadline uint64
	seq      uint64
	tag      EventTag
}

// eventHeap is a min-heap ordered by deadline, then insertion sequence —
// this is what gives equal-deadline events FIFO delivery order.
type eventHeap []event

func (h eventHeap) Len() int { return len(h) }
func (h eventHeap) Less(i, j int) bool {
	if h[i].deadline != h[j].deadline {
		return h[i].deadline < h[j].deadline
	}
	return h[i].seq < h[j].seq
}
func (h eventHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *eventHeap) Push(x any)        { *h = append(*h, x.(event)) }
func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

// Scheduler owns the monotonic clock and the pending-event heap.
type Scheduler struct {
	now    uint64
	nextID uint64
	heap   eventHeap
}

func New() *Scheduler {
	s := &Scheduler{}
	heap.Init(&s.heap)
	return s
}

// Timestamp returns the current cycle count.
func (s *Scheduler) Timestamp() uint64 { return s.now }

// Advance adds delta cycles to now.
func (s *Scheduler) Advance(delta uint64) { s.now += delta }

// Schedule inserts (now+delay, tag).
func (s *Scheduler) Schedule(tag EventTag, delay uint64) {
	s.nextID++
	heap.Push(&s.heap, event{deadline: s.now + delay, seq: s.nextID, tag: tag})
}

// ScheduleAt inserts (at, tag) directly, for callers that already computed
// an absolute deadline (the timer block recomputing its next overflow).
func (s *Scheduler) ScheduleAt(tag EventTag, at uint64) {
	s.nextID++
	heap.Push(&s.heap, event{deadline: at, seq: s.nextID, tag: tag})
}

// Cancel removes all pending entries whose tag matches.
func (s *Scheduler) Cancel(tag EventTag) {
	kept := s.heap[:0]
	for _, e := range s.heap {
		if e.tag != tag {
			kept = append(kept, e)
		}
	}
	s.heap = kept
	heap.Init(&s.heap)
}

// PeekDeadline returns the earliest pending deadline, if any.
func (s *Scheduler) PeekDeadline() (uint64, bool) {
	if len(s.heap) == 0 {
		return 0, false
	}
	return s.heap[0].deadline, true
}

// PopDue pops and returns the earliest event if its deadline has passed,
// along with how late it fired (now - deadline, always >= 0).
func (s *Scheduler) PopDue() (tag EventTag, lateness uint64, ok bool) {
	if len(s.heap) == 0 || s.heap[0].deadline > s.now {
		return 0, 0, false
	}
	e := heap.Pop(&s.heap).(event)
	return e.tag, s.now - e.deadline, true
}

// SkipTo fast-forwards now to t, used when the CPU is halted and no work
// is pending sooner than t.
func (s *Scheduler) SkipTo(t uint64) {
	if t > s.now {
		s.now = t
	}
}

// HasPending reports whether any event is still queued.
func (s *Scheduler) HasPending() bool { return len(s.heap) > 0 }
