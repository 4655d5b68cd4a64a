// Package tagreader provides an asynchronous request/reply client for a
// pool of external worker processes that read and write file metadata:
// tags, embedded art, play statistics, ratings and remote-file probing.
//
// # Architecture
//
// The library uses a ROUTER/DEALER socket pattern over ZeroMQ with
// msgpack-encoded envelopes:
//   - ProcessPool spawns worker processes, one DEALER socket per worker
//   - Worker uses a ROUTER socket and answers requests through a Handler
//   - Client is the typed facade: one async and one blocking method per
//     request kind
//
// Every request is a single-shot future: the pool resolves the Reply when
// the worker answers, and any goroutine may block on it or subscribe to its
// completion. Broadcast requests fan out to every live worker and come back
// as one BroadcastReply that finishes when all workers have answered.
//
// # Quick Start
//
// Client side:
//
//	pool := tagreader.NewProcessPool(tagreader.ProcessPoolConfig{
//	    ExecutableName: "tagreader-worker",
//	})
//	if err := pool.Start(); err != nil {
//	    log.Fatal(err)
//	}
//	defer pool.Close()
//
//	client := tagreader.NewClient(pool, tagreader.ClientConfig{})
//
//	// Async: returns immediately, block or subscribe later
//	reply := client.ReadFile("song.flac")
//	reply.OnFinished(func(ok bool) { ... })
//
//	// Blocking: waits and returns the value directly
//	song := client.ReadFileBlocking("song.flac")
//
// Worker side (separate process):
//
//	worker := tagreader.NewWorker(myHandler, nil)
//	worker.Run()
//
// Blocking calls must never run on the pool's dispatch goroutine: that
// goroutine delivers the completions the calls wait for, so blocking it
// deadlocks. The client panics on that misuse instead of hanging.
package tagreader

// Version is the current library version
const Version = "1.0.0"
