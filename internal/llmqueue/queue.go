// Package llmqueue implements the core's single LLM inference slot: a
// priority queue with FIFO tie-breaks feeding a bounded worker pool.
//
// Grounded on spec.md §9's instruction to use a binary heap ordered by
// (priority, sequence_number), mirroring the teacher's envelope/broker
// concurrency style of one owning goroutine per resource plus a
// worker pool for blocking calls.
//
// Called by: dispatcher (llm.chat service action), admin (free-text
// reflection and extraction prompts).
package llmqueue

import (
	"container/heap"
	"context"
	"fmt"
	"sync"
)

// Priority levels. Lower values are dispatched first.
const (
	PriorityAdmin = 0
	PriorityAgent = 1
)

// Capability is the synchronous LLM inference call the queue invokes.
// It is injected so tests can supply a fake; production wiring uses
// the HTTP-backed implementation in package llm.
type Capability interface {
	Chat(ctx context.Context, prompt, model, system string) (string, error)
}

// Request describes one call to submit to the queue.
type Request struct {
	Priority int
	Prompt   string
	Model    string
	System   string
}

// Result is delivered on a request's completion channel.
type Result struct {
	Text string
	Err  error
}

type item struct {
	req    Request
	seq    int64
	result chan Result
	index  int
}

// itemHeap orders by (priority, seq) ascending, so item i
// dispatches before item j whenever i.priority < j.priority, or
// priorities tie and i was enqueued first.
type itemHeap []*item

func (h itemHeap) Len() int { return len(h) }
func (h itemHeap) Less(i, j int) bool {
	if h[i].req.Priority != h[j].req.Priority {
		return h[i].req.Priority < h[j].req.Priority
	}
	return h[i].seq < h[j].seq
}
func (h itemHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index, h[j].index = i, j
}
func (h *itemHeap) Push(x any) {
	it := x.(*item)
	it.index = len(*h)
	*h = append(*h, it)
}
func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return it
}

// Queue is the bounded-concurrency LLM request queue. One Queue backs
// the whole core process: admin and every connected agent share it.
type Queue struct {
	capability Capability

	mu      sync.Mutex
	heap    itemHeap
	nextSeq int64
	notify  chan struct{}

	sem chan struct{} // bounds in-flight Capability.Chat calls

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a queue backed by capability with maxConcurrent workers
// (defaulting to 1, matching spec.md's default).
func New(capability Capability, maxConcurrent int) *Queue {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		capability: capability,
		notify:     make(chan struct{}, 1),
		sem:        make(chan struct{}, maxConcurrent),
		ctx:        ctx,
		cancel:     cancel,
	}
	heap.Init(&q.heap)

	q.wg.Add(1)
	go q.loop()
	return q
}

// Stop shuts the queue's dispatch loop down. Items still queued are
// dropped and their channels never receive a Result; items already
// dispatched to a worker run to the end with the queue's context
// cancelled, and Stop waits for them.
func (q *Queue) Stop() {
	q.cancel()
	q.wg.Wait()
}

// Submit enqueues req and returns a channel that receives exactly one
// Result once the request completes.
func (q *Queue) Submit(req Request) <-chan Result {
	resultCh := make(chan Result, 1)

	q.mu.Lock()
	q.nextSeq++
	it := &item{req: req, seq: q.nextSeq, result: resultCh}
	heap.Push(&q.heap, it)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}

	return resultCh
}

// loop is the queue's single dispatcher goroutine: wait for a free
// semaphore slot, then pop the highest-priority item queued at that
// moment and hand it to a worker. Popping only after a slot is free
// lets an item submitted while every slot is busy overtake
// lower-priority items queued before it. It never blocks the process
// event loop because the blocking Capability.Chat call happens in a
// separate goroutine.
func (q *Queue) loop() {
	defer q.wg.Done()
	for {
		select {
		case q.sem <- struct{}{}:
		case <-q.ctx.Done():
			return
		}

		it := q.popNext()
		for it == nil {
			select {
			case <-q.notify:
				it = q.popNext()
			case <-q.ctx.Done():
				return
			}
		}

		q.wg.Add(1)
		go q.run(it)
	}
}

func (q *Queue) popNext() *item {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.heap.Len() == 0 {
		return nil
	}
	return heap.Pop(&q.heap).(*item)
}

func (q *Queue) run(it *item) {
	defer q.wg.Done()
	defer func() { <-q.sem }()

	text, err := q.capability.Chat(q.ctx, it.req.Prompt, it.req.Model, it.req.System)
	if err != nil {
		err = fmt.Errorf("llmqueue: chat failed: %w", err)
	}
	it.result <- Result{Text: text, Err: err}
}
