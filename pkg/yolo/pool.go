package yolo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pinthoz/analogic-watch-detector/pkg/client"
)

const (
	DefaultPoolSize = 2
	AcquireTimeout  = 5 * time.Second
)

var (
	ErrPoolClosed  = fmt.Errorf("%w: pool is closed", client.ErrUnavailable)
	ErrPoolTimeout = fmt.Errorf("%w: timeout waiting for available session", client.ErrUnavailable)
)

// sessionFactory builds one pooled session
type sessionFactory func() (*ModelSession, error)

// SessionPool hands out model sessions to concurrent requests
type SessionPool struct {
	sessions chan *ModelSession
	size     int
	mu       sync.Mutex
	closed   bool
	metrics  poolMetrics
	newFn    sessionFactory
}

type poolMetrics struct {
	mu              sync.RWMutex
	inUse           int
	totalAcquired   int64
	totalReleased   int64
	acquireFailures int64
	waitTime        time.Duration
}

// PoolStats is a snapshot of pool usage
type PoolStats struct {
	Size            int           `json:"pool_size"`
	InUse           int           `json:"sessions_in_use"`
	TotalAcquired   int64         `json:"total_acquired"`
	TotalReleased   int64         `json:"total_released"`
	AcquireFailures int64         `json:"acquire_failures"`
	WaitTime        time.Duration `json:"wait_time_ns"`
}

// NewSessionPool loads size sessions of the model
func NewSessionPool(modelPath string, numClasses, size, threads int) (*SessionPool, error) {
	return newPool(size, func() (*ModelSession, error) {
		return newSession(modelPath, numClasses, threads)
	})
}

func newPool(size int, newFn sessionFactory) (*SessionPool, error) {
	if size <= 0 {
		size = DefaultPoolSize
	}

	pool := &SessionPool{
		sessions: make(chan *ModelSession, size),
		size:     size,
		newFn:    newFn,
	}

	for i := 0; i < size; i++ {
		session, err := newFn()
		if err != nil {
			pool.Destroy()
			return nil, fmt.Errorf("failed to initialize session %d: %w", i, err)
		}
		pool.sessions <- session
	}

	return pool, nil
}

// Acquire waits for a free session, up to AcquireTimeout or ctx cancellation
func (p *SessionPool) Acquire(ctx context.Context) (*ModelSession, error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return nil, ErrPoolClosed
	}

	start := time.Now()
	defer func() {
		p.metrics.mu.Lock()
		p.metrics.waitTime += time.Since(start)
		p.metrics.mu.Unlock()
	}()

	timer := time.NewTimer(AcquireTimeout)
	defer timer.Stop()

	select {
	case session, ok := <-p.sessions:
		if !ok {
			return nil, ErrPoolClosed
		}
		p.metrics.mu.Lock()
		p.metrics.inUse++
		p.metrics.totalAcquired++
		p.metrics.mu.Unlock()
		return session, nil
	case <-timer.C:
		p.metrics.mu.Lock()
		p.metrics.acquireFailures++
		p.metrics.mu.Unlock()
		return nil, ErrPoolTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release returns a session to the pool
func (p *SessionPool) Release(session *ModelSession) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		session.Destroy()
		return
	}

	p.metrics.mu.Lock()
	p.metrics.inUse--
	p.metrics.totalReleased++
	p.metrics.mu.Unlock()

	p.sessions <- session
}

// Destroy closes the pool and releases idle sessions
func (p *SessionPool) Destroy() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}

	p.closed = true
	close(p.sessions)

	for session := range p.sessions {
		session.Destroy()
	}
}

// Stats returns a snapshot of pool usage
func (p *SessionPool) Stats() PoolStats {
	p.metrics.mu.RLock()
	defer p.metrics.mu.RUnlock()
	return PoolStats{
		Size:            p.size,
		InUse:           p.metrics.inUse,
		TotalAcquired:   p.metrics.totalAcquired,
		TotalReleased:   p.metrics.totalReleased,
		AcquireFailures: p.metrics.acquireFailures,
		WaitTime:        p.metrics.waitTime,
	}
}
