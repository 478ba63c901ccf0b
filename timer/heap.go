// File: timer/heap.go
// Author: momentics <momentics@gmail.com>
//
// A container/heap-backed ordered set of *Timer, standing in for the
// source's std::set<shared_ptr<Timer>, Comparator>. container/heap gives us
// O(log n) insert/pop/remove, which is all TimerManager ever needs
// (front-peek for get_next_delay, repeated front-pop for harvest_expired,
// arbitrary removal for cancel/refresh/reset).

package timer

import "container/heap"

type timerHeap []*Timer

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool { return less(h[i], h[j]) }

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIndex = i
	h[j].heapIndex = j
}

func (h *timerHeap) Push(x any) {
	t := x.(*Timer)
	t.heapIndex = len(*h)
	*h = append(*h, t)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.heapIndex = -1
	*h = old[:n-1]
	return t
}

func (h *timerHeap) peek() *Timer {
	if len(*h) == 0 {
		return nil
	}
	return (*h)[0]
}

// removeTimer removes t from the heap in place, if it is still present.
func (h *timerHeap) removeTimer(t *Timer) {
	if t.heapIndex < 0 || t.heapIndex >= len(*h) || (*h)[t.heapIndex] != t {
		return
	}
	heap.Remove(h, t.heapIndex)
}
