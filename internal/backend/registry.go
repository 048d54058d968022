package backend

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cachegate/cachegate/internal/apperrors"
)

// Config holds the configuration needed to create a backend instance.
type Config struct {
	// Priority orders this backend for selection; higher wins.
	Priority int

	// Size is the maximum number of entries for in-memory backends.
	Size int

	// TTL is the time-to-live for in-memory entries.
	TTL time.Duration

	// RedisAddress is the Redis/Valkey server address (e.g., "localhost:6379").
	RedisAddress string

	// RedisPassword is the password for the Redis/Valkey server.
	RedisPassword string

	// RedisDB is the Redis/Valkey database number.
	RedisDB int

	// KeyPrefix namespaces all cache keys held by external backends.
	KeyPrefix string

	// Logger receives error reports from backend operations.
	Logger zerolog.Logger

	// Instrument wraps the backend with Prometheus metric instrumentation
	// (eviction and error counters labeled with the backend name, plus a lazy
	// availability gauge evaluated at scrape time).
	Instrument bool
}

// Factory is a constructor function that creates a Backend from config.
type Factory func(cfg Config) (Backend, error)

var (
	mu        sync.RWMutex
	factories = make(map[string]Factory)
)

// Register registers a backend factory under the given name.
// It panics if the name is already registered or the factory is nil.
func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()

	if f == nil {
		panic("backend: Register factory is nil")
	}
	if _, exists := factories[name]; exists {
		panic(fmt.Sprintf("backend: factory %q already registered", name))
	}
	factories[name] = f
}

// New creates a new Backend using the named factory and the given config.
func New(name string, cfg Config) (Backend, error) {
	mu.RLock()
	f, ok := factories[name]
	mu.RUnlock()

	if !ok {
		return nil, &apperrors.ErrUnknownBackend{Name: name, Registered: RegisteredBackends()}
	}

	inner, err := f(cfg)
	if err != nil {
		return nil, err
	}

	if !cfg.Instrument {
		return inner, nil
	}
	return newInstrumentedBackend(inner), nil
}

// RegisteredBackends returns a sorted list of registered backend names.
func RegisteredBackends() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
