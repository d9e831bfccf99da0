package fiber

import "sync"

// dirtyChunkSize mirrors the teacher's ChunkedIngress chunk sizing: enough
// tasks per node for cache locality and to amortize allocation, without
// wasting much memory on a mostly-idle runtime.
const dirtyChunkSize = 128

// dirtyChunk is one fixed-size node in the dirty queue's chunked linked
// list. Grounded directly on eventloop/ingress.go's chunk/ChunkedIngress.
type dirtyChunk struct {
	tasks   [dirtyChunkSize]*Task
	next    *dirtyChunk
	readPos int
	pos     int
}

var dirtyChunkPool = sync.Pool{New: func() any { return &dirtyChunk{} }}

func newDirtyChunk() *dirtyChunk {
	c := dirtyChunkPool.Get().(*dirtyChunk)
	c.pos, c.readPos, c.next = 0, 0, nil
	return c
}

func returnDirtyChunk(c *dirtyChunk) {
	for i := 0; i < c.pos; i++ {
		c.tasks[i] = nil
	}
	c.pos, c.readPos, c.next = 0, 0, nil
	dirtyChunkPool.Put(c)
}

// dirtyQueue is the spec §3/§4.5 "Dirty queue": a single-consumer,
// multi-producer lane by which other schedulers hand ready tasks into this
// scheduler. Per the teacher's own benchmarked rationale (see loop.go's doc
// comment on ChunkedIngress), this uses a plain mutex rather than a
// lock-free Vyukov-style MPSC queue — spec §9 explicitly allows "a bounded
// MPMC ring" or any structure meeting the contract "non-blocking push from
// any thread, single-consumer pop, FIFO per producer", which a
// mutex-protected chunked list satisfies.
type dirtyQueue struct {
	mu     sync.Mutex
	head   *dirtyChunk
	tail   *dirtyChunk
	length int
}

// push enqueues t. Safe to call from any goroutine/thread.
func (q *dirtyQueue) push(t *Task) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.tail == nil {
		q.tail = newDirtyChunk()
		q.head = q.tail
	}
	if q.tail.pos == len(q.tail.tasks) {
		next := newDirtyChunk()
		q.tail.next = next
		q.tail = next
	}
	q.tail.tasks[q.tail.pos] = t
	q.tail.pos++
	q.length++
}

// drainInto pops every currently queued task into dst, in FIFO order,
// returning the extended slice. Must only be called by the owning
// scheduler's own goroutine.
func (q *dirtyQueue) drainInto(dst []*Task) []*Task {
	q.mu.Lock()
	head := q.head
	q.head, q.tail, q.length = nil, nil, 0
	q.mu.Unlock()

	for head != nil {
		for i := head.readPos; i < head.pos; i++ {
			dst = append(dst, head.tasks[i])
		}
		next := head.next
		returnDirtyChunk(head)
		head = next
	}
	return dst
}

func (q *dirtyQueue) size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.length
}
