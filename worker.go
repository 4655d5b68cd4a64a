package tagreader

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	zmq "github.com/go-zeromq/zmq4"
)

// Handler answers one request envelope. The request-variant fields name the
// operation; the handler writes the matching response variant into the
// returned message. Tag parsing, art extraction and remote probing live
// behind this interface, not in the protocol layer.
type Handler interface {
	HandleMessage(msg *Message) *Message
}

// HandlerFunc adapts a function to the Handler interface
type HandlerFunc func(msg *Message) *Message

func (f HandlerFunc) HandleMessage(msg *Message) *Message {
	return f(msg)
}

// Worker is the worker-process side of the envelope protocol. It connects
// back to the pool through the port passed in the environment (spawn mode)
// or binds its own port and registers it for discovery (standalone mode),
// then answers requests FIFO through the Handler.
type Worker struct {
	// ServiceID enables standalone mode when the pool did not pass a port.
	ServiceID string

	handler Handler
	log     *slog.Logger

	running bool
	socket  zmq.Socket
	port    int
	done    chan struct{}
}

// NewWorker creates a worker that answers requests with the given handler
func NewWorker(handler Handler, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		handler: handler,
		log:     logger,
		done:    make(chan struct{}),
	}
}

// Start connects or binds the socket and begins the message loop
func (w *Worker) Start() error {
	w.socket = zmq.NewRouter(context.Background())

	portEnv := os.Getenv(EnvWorkerPort)
	switch {
	case portEnv != "":
		// Spawn mode: the pool told us where it listens
		port, err := strconv.Atoi(portEnv)
		if err != nil {
			return fmt.Errorf("invalid port %q: %w", portEnv, err)
		}
		w.port = port

		endpoint := fmt.Sprintf("tcp://localhost:%d", w.port)
		if err := w.socket.Dial(endpoint); err != nil {
			return fmt.Errorf("failed to connect to %s: %w", endpoint, err)
		}

	case w.ServiceID != "":
		// Standalone mode: bind, then publish the port for Attach
		w.port = findFreePort()
		if err := Register(w.ServiceID, w.port); err != nil {
			return fmt.Errorf("failed to register worker: %w", err)
		}

		endpoint := fmt.Sprintf("tcp://*:%d", w.port)
		if err := w.socket.Listen(endpoint); err != nil {
			return fmt.Errorf("failed to bind to %s: %w", endpoint, err)
		}
		w.log.Info("worker ready", "service", w.ServiceID, "port", w.port)

	default:
		return fmt.Errorf("need %s env or ServiceID", EnvWorkerPort)
	}

	w.running = true
	go w.messageLoop()
	return nil
}

// messageLoop answers requests one at a time, preserving per-worker FIFO
func (w *Worker) messageLoop() {
	for w.running {
		// ROUTER socket receives: [sender_id, empty_frame, message_data]
		msg, err := w.socket.Recv()
		if err != nil {
			if w.running {
				w.log.Error("receive error", "error", err)
			}
			continue
		}

		frames := msg.Frames
		if len(frames) < 3 {
			continue
		}
		w.handleRequest(frames[2], frames[0])
	}
}

// handleRequest unpacks one envelope, runs the handler and sends the answer
func (w *Worker) handleRequest(data []byte, senderID []byte) {
	msg, err := Unpack(data)
	if err != nil {
		w.log.Error("failed to unpack message", "error", err)
		return
	}
	if msg.App != AppName || msg.ID == "" {
		return
	}
	if msg.RequestKind() == KindNone {
		w.log.Warn("envelope without request variant", "id", msg.ID)
		return
	}

	answered := w.handler.HandleMessage(msg)
	if answered == nil {
		w.log.Warn("handler returned no answer", "kind", msg.RequestKind(), "id", msg.ID)
		return
	}

	// The wire answer carries only the correlation ID and response payload
	response := NewMessage()
	response.ID = msg.ID
	response.adoptResponse(answered)

	out, err := response.Pack()
	if err != nil {
		w.log.Error("failed to pack response", "error", err)
		return
	}

	// ROUTER envelope: [sender_id, empty_frame, response_data]
	if err := w.socket.Send(zmq.NewMsgFrom(senderID, []byte{}, out)); err != nil {
		w.log.Error("failed to send response", "error", err)
	}
}

// Stop stops the worker and cleans up resources
func (w *Worker) Stop() {
	if !w.running {
		return
	}
	w.running = false

	if w.ServiceID != "" {
		if err := Unregister(w.ServiceID); err != nil {
			w.log.Warn("failed to unregister worker", "error", err)
		}
	}
	if w.socket != nil {
		w.socket.Close()
	}
	close(w.done)
}

// Run starts the worker and blocks until a termination signal (blocking)
func (w *Worker) Run() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		w.log.Info("received signal, shutting down")
		w.Stop()
	}()

	if err := w.Start(); err != nil {
		w.log.Error("worker startup failed", "error", err)
		os.Exit(1)
	}

	<-w.done
}

// Port returns the port the worker is using
func (w *Worker) Port() int {
	return w.port
}

// IsRunning returns whether the worker loop is active
func (w *Worker) IsRunning() bool {
	return w.running
}
