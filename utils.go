package tagreader

import (
	"bytes"
	"net"
	"runtime"
	"strconv"
)

// findFreePort finds an available port for a worker socket
func findFreePort() int {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 5555
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 5555
	}
	defer l.Close()

	return l.Addr().(*net.TCPAddr).Port
}

// goroutineID parses the current goroutine's id out of its stack header
// ("goroutine 18 [running]:"). Used only for the dispatch-goroutine
// precondition check, never for synchronization.
func goroutineID() int64 {
	buf := make([]byte, 64)
	buf = buf[:runtime.Stack(buf, false)]
	buf = bytes.TrimPrefix(buf, []byte("goroutine "))
	if i := bytes.IndexByte(buf, ' '); i >= 0 {
		buf = buf[:i]
	}
	id, err := strconv.ParseInt(string(buf), 10, 64)
	if err != nil {
		return -1
	}
	return id
}
