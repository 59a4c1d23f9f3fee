package core

// Timer represents a job scheduled on a watchdog tick
type Timer struct {
	WakeTick uint32
	Handler  func(*Timer) uint8
	Next     *Timer
}

const (
	SF_DONE       = 0
	SF_RESCHEDULE = 1
)

// TimerQueue keeps timers sorted by WakeTick. It is owned by the main loop;
// ISRs only advance the tick counter that is later passed to Dispatch.
type TimerQueue struct {
	head *Timer
	now  uint32
}

// tickBefore reports whether a is earlier than b, tolerating counter wrap.
func tickBefore(a, b uint32) bool {
	return int32(a-b) < 0
}

// Schedule adds a timer to the queue
func (q *TimerQueue) Schedule(t *Timer) {
	t.Next = nil
	if q.head == nil || tickBefore(t.WakeTick, q.head.WakeTick) {
		t.Next = q.head
		q.head = t
		return
	}

	current := q.head
	for current.Next != nil && !tickBefore(t.WakeTick, current.Next.WakeTick) {
		current = current.Next
	}

	t.Next = current.Next
	current.Next = t
}

// ScheduleIn schedules t to fire delay ticks after the last dispatch.
func (q *TimerQueue) ScheduleIn(t *Timer, delay uint32) {
	t.WakeTick = q.now + delay
	q.Schedule(t)
}

// Cancel removes t from the queue. Returns false if it was not queued.
func (q *TimerQueue) Cancel(t *Timer) bool {
	if q.head == t {
		q.head = t.Next
		t.Next = nil
		return true
	}
	for current := q.head; current != nil; current = current.Next {
		if current.Next == t {
			current.Next = t.Next
			t.Next = nil
			return true
		}
	}
	return false
}

// Scheduled reports whether t is currently queued
func (q *TimerQueue) Scheduled(t *Timer) bool {
	for current := q.head; current != nil; current = current.Next {
		if current == t {
			return true
		}
	}
	return false
}

// Now returns the tick passed to the most recent Dispatch
func (q *TimerQueue) Now() uint32 {
	return q.now
}

// Dispatch runs every timer whose WakeTick is at or before now.
// A handler returning SF_RESCHEDULE must have moved its WakeTick forward.
func (q *TimerQueue) Dispatch(now uint32) {
	q.now = now
	for q.head != nil && !tickBefore(now, q.head.WakeTick) {
		timer := q.head
		q.head = timer.Next
		timer.Next = nil

		if timer.Handler(timer) == SF_RESCHEDULE {
			q.Schedule(timer)
		}
	}
}
