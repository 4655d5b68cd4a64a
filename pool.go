package tagreader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	zmq "github.com/go-zeromq/zmq4"
)

// Pool routes request envelopes to worker processes and resolves the
// matching replies. ProcessPool is the in-repo implementation; tests use an
// in-memory fake.
type Pool interface {
	// SendMessage routes one request to exactly one live worker. The
	// returned reply is rejected immediately if no worker is available.
	SendMessage(msg *Message) *Reply

	// Broadcast sends the request to every worker live at call time and
	// returns one reply per worker, in pool iteration order.
	Broadcast(msg *Message) []*Reply

	// OnDispatchGoroutine reports whether the caller is the goroutine that
	// delivers completions. Blocking on a reply from that goroutine would
	// deadlock; the client facade uses this to fail loudly instead.
	OnDispatchGoroutine() bool
}

var (
	ErrNoWorkers  = errors.New("no workers available")
	ErrPoolClosed = errors.New("pool is closed")
)

// EnvWorkerPort is set in a spawned worker's environment to the TCP port
// its pool socket listens on.
const EnvWorkerPort = "TAGREADER_WORKER_PORT"

// ProcessPoolConfig holds configuration for creating a ProcessPool
type ProcessPoolConfig struct {
	// ExecutableName is the worker binary, looked up on PATH and in the
	// working directory.
	ExecutableName string
	ExecutableArgs []string

	// WorkerCount defaults to the CPU count.
	WorkerCount int

	Logger *slog.Logger
}

// ProcessPool spawns worker processes and speaks the envelope protocol to
// them, one DEALER socket per worker. A single dispatch goroutine owns
// pending-reply resolution; sends may happen on any caller goroutine and
// are FIFO per worker.
type ProcessPool struct {
	executable  string
	args        []string
	workerCount int
	log         *slog.Logger

	mu      sync.Mutex
	workers []*poolWorker
	next    int
	pending map[string]*pendingReply
	running bool
	closed  bool

	events      chan poolEvent
	dispatchGID atomic.Int64
	stopChan    chan struct{}
}

type poolWorker struct {
	id      int
	port    int
	socket  zmq.Socket
	process *exec.Cmd
	exited  chan struct{}
	alive   bool

	// serializes Send calls so per-worker FIFO holds
	sendMu sync.Mutex
}

type pendingReply struct {
	reply  *Reply
	worker *poolWorker
}

type poolEvent struct {
	worker *poolWorker
	data   []byte
	exited bool
	err    error
}

// NewProcessPool creates a pool with the given config. Call Start to spawn
// the workers.
func NewProcessPool(config ProcessPoolConfig) *ProcessPool {
	if config.WorkerCount <= 0 {
		config.WorkerCount = runtime.NumCPU()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &ProcessPool{
		executable:  config.ExecutableName,
		args:        config.ExecutableArgs,
		workerCount: config.WorkerCount,
		log:         config.Logger,
		pending:     make(map[string]*pendingReply),
		events:      make(chan poolEvent, 64),
		stopChan:    make(chan struct{}),
	}
}

// Start spawns the worker processes and begins dispatching. Individual
// workers that fail to start are logged and skipped; Start fails only when
// not a single worker came up.
func (p *ProcessPool) Start() error {
	path, err := exec.LookPath(p.executable)
	if err != nil {
		p.log.Error("worker executable not found in the current directory or on the PATH; file tags cannot be read without it",
			"executable", p.executable)
		return fmt.Errorf("worker executable %q not found: %w", p.executable, err)
	}

	for i := 0; i < p.workerCount; i++ {
		worker, err := p.startWorker(i, path)
		if err != nil {
			p.log.Error("worker failed to start", "worker", i, "error", err)
			continue
		}
		p.mu.Lock()
		p.workers = append(p.workers, worker)
		p.mu.Unlock()
	}

	p.mu.Lock()
	started := len(p.workers)
	p.running = started > 0
	p.mu.Unlock()

	if started == 0 {
		return fmt.Errorf("start pool: %w", ErrNoWorkers)
	}

	go p.dispatchLoop()
	return nil
}

// startWorker binds a socket for one worker and spawns its process
func (p *ProcessPool) startWorker(id int, path string) (*poolWorker, error) {
	worker := &poolWorker{
		id:     id,
		port:   findFreePort(),
		socket: zmq.NewDealer(context.Background()),
	}

	endpoint := fmt.Sprintf("tcp://127.0.0.1:%d", worker.port)
	if err := worker.socket.Listen(endpoint); err != nil {
		return nil, fmt.Errorf("failed to bind to %s: %w", endpoint, err)
	}

	cmd := exec.Command(path, p.args...)
	cmd.Env = append(os.Environ(), fmt.Sprintf("%s=%d", EnvWorkerPort, worker.port))
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		worker.socket.Close()
		return nil, fmt.Errorf("failed to start process: %w", err)
	}

	worker.process = cmd
	worker.exited = make(chan struct{})
	worker.alive = true

	go p.recvLoop(worker)
	go func() {
		err := cmd.Wait()
		close(worker.exited)
		select {
		case p.events <- poolEvent{worker: worker, exited: true, err: err}:
		case <-p.stopChan:
		}
	}()

	return worker, nil
}

// Attach adds a standalone worker registered under serviceID to the pool
// instead of spawning one. The worker keeps its own lifecycle.
func (p *ProcessPool) Attach(serviceID string, timeout time.Duration) error {
	port, err := Discover(serviceID, timeout)
	if err != nil {
		return fmt.Errorf("failed to discover worker %q: %w", serviceID, err)
	}

	worker := &poolWorker{
		port:   port,
		socket: zmq.NewDealer(context.Background()),
		alive:  true,
	}

	endpoint := fmt.Sprintf("tcp://localhost:%d", port)
	if err := worker.socket.Dial(endpoint); err != nil {
		return fmt.Errorf("failed to connect to %s: %w", endpoint, err)
	}

	p.mu.Lock()
	worker.id = len(p.workers)
	p.workers = append(p.workers, worker)
	if !p.running {
		p.running = true
		p.mu.Unlock()
		go p.dispatchLoop()
		return nil
	}
	p.mu.Unlock()
	return nil
}

// recvLoop pumps one worker's socket into the dispatch channel
func (p *ProcessPool) recvLoop(worker *poolWorker) {
	for {
		msg, err := worker.socket.Recv()
		if err != nil {
			select {
			case <-p.stopChan:
				return
			default:
				time.Sleep(10 * time.Millisecond)
				continue
			}
		}

		// DEALER socket receives: [empty_frame, message_data]
		frames := msg.Frames
		if len(frames) < 2 {
			continue
		}
		select {
		case p.events <- poolEvent{worker: worker, data: frames[1]}:
		case <-p.stopChan:
			return
		}
	}
}

// dispatchLoop is the single goroutine that resolves replies. Blocking
// facade calls must never run here.
func (p *ProcessPool) dispatchLoop() {
	p.dispatchGID.Store(goroutineID())

	for {
		select {
		case <-p.stopChan:
			return
		case ev := <-p.events:
			if ev.exited {
				p.handleWorkerExit(ev.worker, ev.err)
			} else {
				p.handleResponse(ev.data)
			}
		}
	}
}

// handleResponse matches a worker's answer to its pending reply
func (p *ProcessPool) handleResponse(data []byte) {
	msg, err := Unpack(data)
	if err != nil {
		p.log.Warn("failed to unpack worker response", "error", err)
		return
	}
	if msg.App != AppName || msg.ID == "" {
		return
	}

	p.mu.Lock()
	pending, exists := p.pending[msg.ID]
	if exists {
		delete(p.pending, msg.ID)
	}
	p.mu.Unlock()

	if !exists {
		p.log.Warn("response for unknown request", "id", msg.ID)
		return
	}

	pending.reply.Resolve(msg)
}

// handleWorkerExit drops a dead worker and rejects its in-flight requests
func (p *ProcessPool) handleWorkerExit(worker *poolWorker, exitErr error) {
	p.mu.Lock()
	worker.alive = false
	var orphaned []*Reply
	for id, pending := range p.pending {
		if pending.worker == worker {
			orphaned = append(orphaned, pending.reply)
			delete(p.pending, id)
		}
	}
	p.mu.Unlock()

	p.log.Warn("worker exited", "worker", worker.id, "error", exitErr, "orphaned_requests", len(orphaned))
	worker.socket.Close()

	for _, reply := range orphaned {
		reply.Reject(&RemoteCallError{Message: "worker exited before answering", Err: exitErr})
	}
}

// SendMessage routes the envelope to the next live worker round-robin
func (p *ProcessPool) SendMessage(msg *Message) *Reply {
	reply := NewReply(msg)

	worker := p.nextWorker()
	if worker == nil {
		p.log.Warn("cannot dispatch request, no workers available", "kind", msg.RequestKind())
		reply.Reject(ErrNoWorkers)
		return reply
	}

	p.registerAndSend(worker, msg, reply)
	return reply
}

// Broadcast sends a copy of the envelope to every live worker. Each copy
// gets its own correlation ID so the answers resolve independently.
func (p *ProcessPool) Broadcast(msg *Message) []*Reply {
	workers := p.liveWorkers()

	replies := make([]*Reply, 0, len(workers))
	for _, worker := range workers {
		copied := *msg
		copied.ID = uuid.New().String()
		reply := NewReply(&copied)
		p.registerAndSend(worker, &copied, reply)
		replies = append(replies, reply)
	}
	return replies
}

// registerAndSend books the reply as pending and writes the envelope to
// the worker's socket, rejecting on any send-side failure
func (p *ProcessPool) registerAndSend(worker *poolWorker, msg *Message, reply *Reply) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		reply.Reject(ErrPoolClosed)
		return
	}
	p.pending[msg.ID] = &pendingReply{reply: reply, worker: worker}
	p.mu.Unlock()

	fail := func(err error) {
		p.mu.Lock()
		delete(p.pending, msg.ID)
		p.mu.Unlock()
		reply.Reject(err)
	}

	data, err := msg.Pack()
	if err != nil {
		fail(fmt.Errorf("failed to pack message: %w", err))
		return
	}

	// DEALER envelope: [empty_frame, message_data]
	worker.sendMu.Lock()
	err = worker.socket.Send(zmq.NewMsgFrom([]byte{}, data))
	worker.sendMu.Unlock()
	if err != nil {
		fail(fmt.Errorf("failed to send message: %w", err))
	}
}

// nextWorker picks the next live worker round-robin, or nil
func (p *ProcessPool) nextWorker() *poolWorker {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := 0; i < len(p.workers); i++ {
		worker := p.workers[p.next%len(p.workers)]
		p.next++
		if worker.alive {
			return worker
		}
	}
	return nil
}

// liveWorkers snapshots the currently live workers in pool order
func (p *ProcessPool) liveWorkers() []*poolWorker {
	p.mu.Lock()
	defer p.mu.Unlock()

	live := make([]*poolWorker, 0, len(p.workers))
	for _, worker := range p.workers {
		if worker.alive {
			live = append(live, worker)
		}
	}
	return live
}

// LiveWorkerCount returns how many workers can currently take requests
func (p *ProcessPool) LiveWorkerCount() int {
	return len(p.liveWorkers())
}

// OnDispatchGoroutine implements Pool
func (p *ProcessPool) OnDispatchGoroutine() bool {
	return p.dispatchGID.Load() != 0 && p.dispatchGID.Load() == goroutineID()
}

// Close stops dispatching, rejects all pending replies and terminates
// spawned worker processes
func (p *ProcessPool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.running = false
	pending := p.pending
	p.pending = make(map[string]*pendingReply)
	workers := p.workers
	p.mu.Unlock()

	close(p.stopChan)

	for _, entry := range pending {
		entry.reply.Reject(ErrPoolClosed)
	}

	for _, worker := range workers {
		worker.socket.Close()
		if worker.process == nil || worker.process.Process == nil {
			continue
		}
		worker.process.Process.Signal(os.Interrupt)

		select {
		case <-worker.exited:
		case <-time.After(2 * time.Second):
			worker.process.Process.Kill()
			<-worker.exited
		}
	}

	return nil
}
