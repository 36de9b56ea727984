package recorder

import (
	"container/heap"
	"time"
)

// restartEvent is one pending relaunch.
// index is required for heap.Fix + O(log n) removals.
type restartEvent struct {
	cameraID string
	when     time.Time
	index    int
}

// restartQueue orders pending relaunches by due time. It is only touched by
// the supervisor goroutine.
type restartQueue struct {
	h       restartHeap
	entries map[string]*restartEvent
}

func newRestartQueue() *restartQueue {
	h := restartHeap{}
	heap.Init(&h)
	return &restartQueue{
		h:       h,
		entries: make(map[string]*restartEvent),
	}
}

// push schedules cameraID at when, replacing any earlier entry for it.
func (q *restartQueue) push(cameraID string, when time.Time) {
	if old, ok := q.entries[cameraID]; ok {
		old.when = when
		heap.Fix(&q.h, old.index)
		return
	}
	ev := &restartEvent{cameraID: cameraID, when: when}
	q.entries[cameraID] = ev
	heap.Push(&q.h, ev)
}

// next peeks at the soonest entry.
func (q *restartQueue) next() (cameraID string, when time.Time, ok bool) {
	if len(q.h) == 0 {
		return "", time.Time{}, false
	}
	ev := q.h[0]
	return ev.cameraID, ev.when, true
}

// pop removes the head entry.
func (q *restartQueue) pop() {
	if len(q.h) == 0 {
		return
	}
	ev := heap.Pop(&q.h).(*restartEvent)
	delete(q.entries, ev.cameraID)
}

// due pops and returns every entry scheduled at or before now, soonest first.
func (q *restartQueue) due(now time.Time) []string {
	var out []string
	for {
		id, when, ok := q.next()
		if !ok || when.After(now) {
			return out
		}
		q.pop()
		out = append(out, id)
	}
}

func (q *restartQueue) len() int { return len(q.h) }

// restartHeap is a min-heap ordered by due time, then camera ID.
type restartHeap []*restartEvent

func (h restartHeap) Len() int { return len(h) }

func (h restartHeap) Less(i, j int) bool {
	if h[i].when.Equal(h[j].when) {
		return h[i].cameraID < h[j].cameraID
	}
	return h[i].when.Before(h[j].when)
}

func (h restartHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *restartHeap) Push(x any) {
	ev := x.(*restartEvent)
	ev.index = len(*h)
	*h = append(*h, ev)
}

func (h *restartHeap) Pop() any {
	old := *h
	n := len(old)
	ev := old[n-1]
	ev.index = -1
	*h = old[:n-1]
	return ev
}
