package task

import (
	"context"
	"hash/fnv"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// MemoryRegistryConfig configures a MemoryRegistry.
type MemoryRegistryConfig struct {
	// ResultTTL is how long a finished task stays readable. Zero keeps
	// finished tasks until the entry cap evicts them.
	ResultTTL time.Duration

	// MaxEntries caps the number of tasks held. When full, the oldest
	// finished task is evicted; pending tasks are never evicted.
	// Zero means unbounded.
	MaxEntries int

	// EvictionInterval is how often the janitor sweeps expired entries.
	EvictionInterval time.Duration

	// Shards is the number of independently locked partitions.
	Shards int
}

// DefaultMemoryRegistryConfig returns a MemoryRegistryConfig with reasonable defaults
func DefaultMemoryRegistryConfig() MemoryRegistryConfig {
	return MemoryRegistryConfig{
		ResultTTL:        time.Hour,
		MaxEntries:       10000,
		EvictionInterval: time.Minute,
		Shards:           16,
	}
}

type registryShard struct {
	mu      sync.RWMutex
	records map[uuid.UUID]*Record
}

// MemoryRegistry is an in-process Registry partitioned into shards keyed by
// task id.
type MemoryRegistry struct {
	shards   []*registryShard
	config   MemoryRegistryConfig
	perShard int
	logger   *slog.Logger
	now      func() time.Time

	startOnce sync.Once
	stopOnce  sync.Once
	running   atomic.Bool
	stop      chan struct{}
	done      chan struct{}
}

// NewMemoryRegistry creates an empty registry. Call Start to run the
// background janitor.
func NewMemoryRegistry(config MemoryRegistryConfig, logger *slog.Logger) *MemoryRegistry {
	if config.Shards <= 0 {
		config.Shards = DefaultMemoryRegistryConfig().Shards
	}
	if config.EvictionInterval <= 0 {
		config.EvictionInterval = DefaultMemoryRegistryConfig().EvictionInterval
	}

	perShard := 0
	if config.MaxEntries > 0 {
		perShard = (config.MaxEntries + config.Shards - 1) / config.Shards
	}

	shards := make([]*registryShard, config.Shards)
	for i := range shards {
		shards[i] = &registryShard{records: make(map[uuid.UUID]*Record)}
	}

	return &MemoryRegistry{
		shards:   shards,
		config:   config,
		perShard: perShard,
		logger:   logger.With("component", "memory_registry"),
		now:      time.Now,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (m *MemoryRegistry) shard(id uuid.UUID) *registryShard {
	h := fnv.New32a()
	_, _ = h.Write(id[:])
	return m.shards[h.Sum32()%uint32(len(m.shards))]
}

// Create implements Registry.
func (m *MemoryRegistry) Create(_ context.Context, id uuid.UUID) error {
	s := m.shard(id)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; ok {
		return ErrTaskExists
	}

	if m.perShard > 0 && len(s.records) >= m.perShard {
		m.evictOldestTerminal(s)
	}

	s.records[id] = &Record{
		ID:        id,
		Status:    StatusPending,
		CreatedAt: m.now().UTC(),
	}
	return nil
}

// evictOldestTerminal drops the finished record that finished earliest.
// Caller holds s.mu. If every record is pending nothing is evicted and the
// shard temporarily exceeds its cap.
func (m *MemoryRegistry) evictOldestTerminal(s *registryShard) {
	var (
		oldestID uuid.UUID
		oldest   time.Time
		found    bool
	)
	for id, rec := range s.records {
		if !rec.Status.IsTerminal() {
			continue
		}
		if !found || rec.FinishedAt.Before(oldest) {
			oldestID, oldest, found = id, rec.FinishedAt, true
		}
	}
	if found {
		delete(s.records, oldestID)
		m.logger.Debug("evicted finished task to stay under capacity", "task_id", oldestID)
	}
}

// SetTerminal implements Registry.
func (m *MemoryRegistry) SetTerminal(_ context.Context, id uuid.UUID, outcome Outcome) error {
	s := m.shard(id)
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return ErrTaskNotFound
	}
	if rec.Status.IsTerminal() {
		return ErrTaskAlreadyTerminal
	}

	rec.Status = outcome.Status()
	rec.Result = outcome.Result().Clone()
	rec.Error = outcome.Error()
	rec.FinishedAt = m.now().UTC()
	return nil
}

// Get implements Registry.
func (m *MemoryRegistry) Get(_ context.Context, id uuid.UUID) (*Record, error) {
	s := m.shard(id)
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	return rec.Clone(), nil
}

// Delete implements Registry.
func (m *MemoryRegistry) Delete(_ context.Context, id uuid.UUID) error {
	s := m.shard(id)
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, id)
	return nil
}

// Len returns the number of tasks currently held.
func (m *MemoryRegistry) Len() int {
	n := 0
	for _, s := range m.shards {
		s.mu.RLock()
		n += len(s.records)
		s.mu.RUnlock()
	}
	return n
}

// EvictExpired removes finished tasks whose TTL elapsed before now and
// returns how many were removed.
func (m *MemoryRegistry) EvictExpired(now time.Time) int {
	if m.config.ResultTTL <= 0 {
		return 0
	}
	cutoff := now.Add(-m.config.ResultTTL)

	removed := 0
	for _, s := range m.shards {
		s.mu.Lock()
		for id, rec := range s.records {
			if rec.Status.IsTerminal() && rec.FinishedAt.Before(cutoff) {
				delete(s.records, id)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// Start runs the janitor that periodically evicts expired tasks until Stop
// is called.
func (m *MemoryRegistry) Start() {
	m.startOnce.Do(func() {
		m.running.Store(true)
		go m.janitor()
	})
}

func (m *MemoryRegistry) janitor() {
	defer close(m.done)

	ticker := time.NewTicker(m.config.EvictionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			if n := m.EvictExpired(m.now()); n > 0 {
				m.logger.Debug("evicted expired tasks", "count", n)
			}
		}
	}
}

// Stop terminates the janitor started by Start and waits for it to exit.
func (m *MemoryRegistry) Stop() {
	m.stopOnce.Do(func() {
		close(m.stop)
	})
	if m.running.Load() {
		<-m.done
	}
}
