package tagreader

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	RegistryFileName = "tagreader_workers.json"
	DiscoveryTimeout = 5 * time.Second
)

var ErrWorkerNotFound = errors.New("worker not found")

// workerRegistry publishes standalone workers through a JSON file so a pool
// on the same machine can attach to them.
type workerRegistry struct {
	mu       sync.RWMutex
	workers  map[string]WorkerInfo
	filePath string
}

// WorkerInfo holds one registered worker's contact data
type WorkerInfo struct {
	Port      int       `json:"port"`
	PID       int       `json:"pid"`
	StartTime time.Time `json:"start_time"`
}

var registrySingleton *workerRegistry
var registryOnce sync.Once

func getRegistry() *workerRegistry {
	registryOnce.Do(func() {
		registrySingleton = &workerRegistry{
			workers:  make(map[string]WorkerInfo),
			filePath: filepath.Join(os.TempDir(), RegistryFileName),
		}
		registrySingleton.load()
	})
	return registrySingleton
}

func (r *workerRegistry) load() error {
	data, err := os.ReadFile(r.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return json.Unmarshal(data, &r.workers)
}

func (r *workerRegistry) save() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	data, err := json.MarshalIndent(r.workers, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(r.filePath, data, 0644)
}

// Register publishes a standalone worker under serviceID
func Register(serviceID string, port int) error {
	r := getRegistry()

	r.mu.Lock()
	r.workers[serviceID] = WorkerInfo{
		Port:      port,
		PID:       os.Getpid(),
		StartTime: time.Now(),
	}
	r.mu.Unlock()

	return r.save()
}

// Unregister removes a worker from the registry
func Unregister(serviceID string) error {
	r := getRegistry()

	r.mu.Lock()
	delete(r.workers, serviceID)
	r.mu.Unlock()

	return r.save()
}

// Discover polls the registry for a worker registered under serviceID and
// returns its port
func Discover(serviceID string, timeout time.Duration) (int, error) {
	if timeout == 0 {
		timeout = DiscoveryTimeout
	}

	r := getRegistry()
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		if err := r.load(); err != nil {
			time.Sleep(100 * time.Millisecond)
			continue
		}

		r.mu.RLock()
		info, exists := r.workers[serviceID]
		r.mu.RUnlock()

		if exists {
			return info.Port, nil
		}
		time.Sleep(100 * time.Millisecond)
	}

	return 0, ErrWorkerNotFound
}

// ListWorkers returns all registered standalone workers
func ListWorkers() (map[string]WorkerInfo, error) {
	r := getRegistry()
	if err := r.load(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]WorkerInfo, len(r.workers))
	for k, v := range r.workers {
		result[k] = v
	}
	return result, nil
}
