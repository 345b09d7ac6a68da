package sim

import (
	"container/heap"
	"container/list"
	"log"
)

// EventQueue keeps pending events ordered by (timestamp, uid). The
// context tag plays no role in the ordering.
//
// Queue implementations are not safe for concurrent use. The simulator
// serializes access with its own mutex, so the compound sequences it
// needs (peek, then decide, then remove) stay atomic.
type EventQueue interface {
	// Insert adds an event to the queue.
	Insert(id EventID)

	// RemoveNext returns and removes the event with the least key.
	// It panics if the queue is empty; callers check IsEmpty first.
	RemoveNext() EventID

	// PeekNext returns the event with the least key without removing
	// it. It panics if the queue is empty.
	PeekNext() EventID

	// Remove erases the event with the same uid from the queue,
	// returning whether it was found.
	Remove(id EventID) bool

	// IsEmpty returns true if no event is pending.
	IsEmpty() bool

	// Len returns the number of pending events.
	Len() int
}

// HeapQueue is an EventQueue backed by a binary heap.
type HeapQueue struct {
	events eventHeap
}

// NewHeapQueue creates and returns an empty HeapQueue.
func NewHeapQueue() *HeapQueue {
	q := new(HeapQueue)
	q.events = make(eventHeap, 0)
	heap.Init(&q.events)

	return q
}

// Insert adds an event to the queue.
func (q *HeapQueue) Insert(id EventID) {
	heap.Push(&q.events, id)
}

// RemoveNext returns and removes the event with the least (ts, uid).
func (q *HeapQueue) RemoveNext() EventID {
	if len(q.events) == 0 {
		log.Panic("removing from an empty event queue")
	}

	return heap.Pop(&q.events).(EventID)
}

// PeekNext returns the event with the least (ts, uid) without removing
// it from the queue.
func (q *HeapQueue) PeekNext() EventID {
	if len(q.events) == 0 {
		log.Panic("peeking into an empty event queue")
	}

	return q.events[0]
}

// Remove erases the event carrying the given uid. The heap is scanned
// linearly to locate the entry, then repaired around the hole.
func (q *HeapQueue) Remove(id EventID) bool {
	for i, ev := range q.events {
		if ev.uid == id.uid {
			heap.Remove(&q.events, i)
			return true
		}
	}

	return false
}

// IsEmpty returns true if no event is pending.
func (q *HeapQueue) IsEmpty() bool {
	return len(q.events) == 0
}

// Len returns the number of pending events.
func (q *HeapQueue) Len() int {
	return len(q.events)
}

type eventHeap []EventID

func (h eventHeap) Len() int {
	return len(h)
}

// Less orders events by timestamp, breaking ties with the uid. Events
// scheduled first carry smaller uids, so same-time events dispatch in
// scheduling order.
func (h eventHeap) Less(i, j int) bool {
	if h[i].ts != h[j].ts {
		return h[i].ts < h[j].ts
	}

	return h[i].uid < h[j].uid
}

func (h eventHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
}

func (h *eventHeap) Push(x interface{}) {
	*h = append(*h, x.(EventID))
}

func (h *eventHeap) Pop() interface{} {
	old := *h
	n := len(old)
	id := old[n-1]
	*h = old[0 : n-1]

	return id
}

// InsertionQueue is an EventQueue based on insertion sort. It beats the
// heap when most insertions land near the tail of the timeline.
type InsertionQueue struct {
	l *list.List
}

// NewInsertionQueue returns a new InsertionQueue.
func NewInsertionQueue() *InsertionQueue {
	q := new(InsertionQueue)
	q.l = list.New()

	return q
}

// Insert adds an event to the queue, walking from the back since new
// events usually carry the latest timestamps.
func (q *InsertionQueue) Insert(id EventID) {
	for ele := q.l.Back(); ele != nil; ele = ele.Prev() {
		if !less(id, ele.Value.(EventID)) {
			q.l.InsertAfter(id, ele)
			return
		}
	}

	q.l.PushFront(id)
}

// RemoveNext returns the event with the least key and removes it from
// the queue.
func (q *InsertionQueue) RemoveNext() EventID {
	front := q.l.Front()
	if front == nil {
		log.Panic("removing from an empty event queue")
	}

	return q.l.Remove(front).(EventID)
}

// PeekNext returns the event at the front of the queue without removing
// it.
func (q *InsertionQueue) PeekNext() EventID {
	front := q.l.Front()
	if front == nil {
		log.Panic("peeking into an empty event queue")
	}

	return front.Value.(EventID)
}

// Remove erases the event carrying the given uid, returning whether it
// was found.
func (q *InsertionQueue) Remove(id EventID) bool {
	for ele := q.l.Front(); ele != nil; ele = ele.Next() {
		if ele.Value.(EventID).uid == id.uid {
			q.l.Remove(ele)
			return true
		}
	}

	return false
}

// IsEmpty returns true if no event is pending.
func (q *InsertionQueue) IsEmpty() bool {
	return q.l.Len() == 0
}

// Len returns the number of events in the queue.
func (q *InsertionQueue) Len() int {
	return q.l.Len()
}

func less(a, b EventID) bool {
	if a.ts != b.ts {
		return a.ts < b.ts
	}

	return a.uid < b.uid
}
