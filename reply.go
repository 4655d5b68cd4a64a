package tagreader

import (
	"sync"
)

// Future is the read side shared by Reply and BroadcastReply: a single-shot
// result that any goroutine may query or block on.
type Future interface {
	// WaitForFinished blocks until completion and returns the success flag.
	// Calling it again after completion returns the same value without
	// blocking. It must not be called from the pool's dispatch goroutine.
	WaitForFinished() bool
	IsFinished() bool
	IsSuccessful() bool
	// OnFinished registers a callback invoked exactly once when the result
	// completes, in registration order. A callback registered after
	// completion is invoked immediately on the caller's goroutine.
	OnFinished(fn func(success bool))
}

// Reply is a single-shot future for one outstanding worker request. It owns
// the request envelope; the pool writes the response into it exactly once.
//
// Completion is single-writer: only the pool's dispatch goroutine resolves
// or rejects a reply. Any goroutine may query or wait.
type Reply struct {
	mu        sync.Mutex
	message   *Message
	finished  bool
	success   bool
	err       error
	done      chan struct{}
	callbacks []func(success bool)
}

// NewReply creates a pending reply owning the given request envelope
func NewReply(msg *Message) *Reply {
	return &Reply{
		message: msg,
		done:    make(chan struct{}),
	}
}

// Message returns the owned envelope. The response variants are only valid
// once the reply is finished.
func (r *Reply) Message() *Message {
	return r.message
}

// IsFinished reports whether the reply has completed
func (r *Reply) IsFinished() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.finished
}

// IsSuccessful reports whether the reply completed successfully.
// False while still pending.
func (r *Reply) IsSuccessful() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.success
}

// Err returns the rejection error, or nil if pending or successful
func (r *Reply) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// WaitForFinished blocks until the reply completes and returns the success
// flag. Safe to call from multiple goroutines and after completion.
func (r *Reply) WaitForFinished() bool {
	<-r.done
	return r.IsSuccessful()
}

// OnFinished registers a completion callback. See Future.
func (r *Reply) OnFinished(fn func(success bool)) {
	r.mu.Lock()
	if r.finished {
		success := r.success
		r.mu.Unlock()
		fn(success)
		return
	}
	r.callbacks = append(r.callbacks, fn)
	r.mu.Unlock()
}

// Resolve writes the worker's answer into the envelope and completes the
// reply successfully. Completing a reply twice is a protocol violation and
// panics.
func (r *Reply) Resolve(answer *Message) {
	r.complete(answer, true, nil)
}

// Reject completes the reply as failed without a response payload
func (r *Reply) Reject(err error) {
	r.complete(nil, false, err)
}

func (r *Reply) complete(answer *Message, success bool, err error) {
	r.mu.Lock()
	if r.finished {
		r.mu.Unlock()
		panic("tagreader: reply completed twice")
	}
	if answer != nil {
		r.message.adoptResponse(answer)
	}
	r.finished = true
	r.success = success
	r.err = err
	callbacks := r.callbacks
	r.callbacks = nil
	close(r.done)
	r.mu.Unlock()

	for _, fn := range callbacks {
		fn(success)
	}
}
