package tagreader

import (
	"sync"
)

// BroadcastReply aggregates the per-worker replies of a broadcast request
// into one future. It is finished once every child reply is finished, and
// successful only if every child succeeded.
//
// The child list is fixed at construction; workers joining the pool after
// the broadcast was issued are not part of it.
type BroadcastReply struct {
	mu        sync.Mutex
	request   *Message
	children  []*Reply
	remaining int
	finished  bool
	success   bool
	done      chan struct{}
	callbacks []func(success bool)
}

// NewBroadcastReply composes the per-worker replies of one broadcast
// request. With zero children (empty pool) there is nobody to answer, so
// the result completes immediately as failed rather than vacuously
// succeeding; callers see the same signal as a pool that cannot dispatch.
func NewBroadcastReply(request *Message, children []*Reply) *BroadcastReply {
	br := &BroadcastReply{
		request:   request,
		children:  children,
		remaining: len(children),
		done:      make(chan struct{}),
	}

	if len(children) == 0 {
		br.finished = true
		close(br.done)
		return br
	}

	for _, child := range children {
		child.OnFinished(func(bool) {
			br.childFinished()
		})
	}
	return br
}

// childFinished is invoked once per child. The tally and the final
// transition happen under one lock so concurrent child completions cannot
// both miss the "all finished" edge.
func (br *BroadcastReply) childFinished() {
	br.mu.Lock()
	br.remaining--
	if br.remaining > 0 || br.finished {
		br.mu.Unlock()
		return
	}

	successes := 0
	for _, child := range br.children {
		if child.IsSuccessful() {
			successes++
		}
	}
	br.finished = true
	br.success = successes == len(br.children)
	success := br.success
	callbacks := br.callbacks
	br.callbacks = nil
	close(br.done)
	br.mu.Unlock()

	for _, fn := range callbacks {
		fn(success)
	}
}

// Request returns the broadcast request envelope
func (br *BroadcastReply) Request() *Message {
	return br.request
}

// Replies returns the child replies in pool iteration order at broadcast
// time. Their response payloads are only valid once the broadcast is
// finished.
func (br *BroadcastReply) Replies() []*Reply {
	return br.children
}

// IsFinished reports whether every child reply has completed
func (br *BroadcastReply) IsFinished() bool {
	br.mu.Lock()
	defer br.mu.Unlock()
	return br.finished
}

// IsSuccessful reports whether every child reply succeeded.
// False while still pending and false for an empty broadcast.
func (br *BroadcastReply) IsSuccessful() bool {
	br.mu.Lock()
	defer br.mu.Unlock()
	return br.success
}

// WaitForFinished blocks until every child has completed and returns the
// aggregate success flag. Idempotent after completion.
func (br *BroadcastReply) WaitForFinished() bool {
	<-br.done
	return br.IsSuccessful()
}

// OnFinished registers a completion callback. See Future.
func (br *BroadcastReply) OnFinished(fn func(success bool)) {
	br.mu.Lock()
	if br.finished {
		success := br.success
		br.mu.Unlock()
		fn(success)
		return
	}
	br.callbacks = append(br.callbacks, fn)
	br.mu.Unlock()
}
