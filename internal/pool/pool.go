// ABOUTME: Bounded per-backend session pool with health eviction and catalog rebuilds
// ABOUTME: Lease/return lifecycle guarded by one coarse mutex; creation goes through the resilience wrapper

package pool

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/2389/toolgate/internal/catalog"
	"github.com/2389/toolgate/internal/config"
	"github.com/2389/toolgate/internal/errkind"
	"github.com/2389/toolgate/internal/events"
	"github.com/2389/toolgate/internal/resilience"
	"github.com/2389/toolgate/internal/transport"
)

// warmSessionsPerServer is how many sessions Start dials per backend before
// serving traffic, capped by the per-server limit.
const warmSessionsPerServer = 2

// Options bounds the pool.
type Options struct {
	MaxConnectionsPerServer int
	HealthCheckInterval     time.Duration
	ConnectTimeout          time.Duration
}

// Stats is a point-in-time snapshot of the pool for the status surface.
type Stats struct {
	Servers  map[string]ServerStats `json:"servers"`
	Breakers map[string]string      `json:"breakers"`
}

// ServerStats counts sessions per backend by status.
type ServerStats struct {
	Connected int `json:"connected"`
	Leased    int `json:"leased"`
	Failed    int `json:"failed"`
}

// Pool owns, per backend name, a bounded list of live sessions.
//
// All structural state is protected by one coarse mutex; lease scanning and
// even synchronous session creation run under it. That serializes creation
// system-wide, which costs throughput under contention but keeps the cap
// invariant and status transitions trivially correct. Deliberate trade-off;
// revisit only with evidence.
type Pool struct {
	mu       sync.Mutex
	sessions map[string][]*Session
	closed   bool

	servers map[string]config.Server
	opts    Options
	dial    transport.DialFunc
	wrapper *resilience.Wrapper

	catalog atomic.Pointer[catalog.Catalog]

	healthCancel context.CancelFunc
	healthDone   chan struct{}

	emitter *events.Emitter
	logger  *slog.Logger
}

// New creates a pool over the given backend table. Nothing is dialed until
// Start or the first lease.
func New(servers map[string]config.Server, opts Options, dial transport.DialFunc, wrapper *resilience.Wrapper, emitter *events.Emitter, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pool{
		sessions: make(map[string][]*Session),
		servers:  servers,
		opts:     opts,
		dial:     dial,
		wrapper:  wrapper,
		emitter:  emitter,
		logger:   logger.With("component", "pool"),
	}
	p.catalog.Store(catalog.Build(nil))
	return p
}

// Start warms the pool and launches the health probe loop. Individual warm-up
// failures are logged and tolerated; a backend that refuses connections will
// be retried on first lease.
func (p *Pool) Start(ctx context.Context) {
	for name := range p.servers {
		warm := warmSessionsPerServer
		if warm > p.opts.MaxConnectionsPerServer {
			warm = p.opts.MaxConnectionsPerServer
		}
		for i := 0; i < warm; i++ {
			p.mu.Lock()
			sess, err := p.createLocked(ctx, name)
			if err == nil {
				sess.Status = StatusConnected
			}
			p.mu.Unlock()
			if err != nil {
				p.logger.Warn("warm-up connection failed", "server", name, "error", err)
				break
			}
		}
	}

	p.logger.Info("pool started",
		"servers", len(p.servers),
		"health_check_interval", p.opts.HealthCheckInterval,
	)

	if p.opts.HealthCheckInterval > 0 {
		healthCtx, cancel := context.WithCancel(context.Background())
		p.healthCancel = cancel
		p.healthDone = make(chan struct{})
		go p.healthLoop(healthCtx)
	}
}

// Lease hands out an exclusively owned Connected session for the backend,
// creating one through the resilience wrapper when the pool is below cap.
// At cap with nothing leasable it fails fast with PoolExhausted.
func (p *Pool) Lease(ctx context.Context, server string) (*Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, errkind.New(errkind.Internal, "pool is shut down")
	}
	if _, ok := p.servers[server]; !ok {
		return nil, errkind.Newf(errkind.Validation, "unknown server %q", server)
	}

	// Scan for a leasable session, evicting failed ones as we go.
	kept := p.sessions[server][:0]
	var leased *Session
	evicted := false
	for _, sess := range p.sessions[server] {
		if leased == nil && sess.Status == StatusConnected {
			leased = sess
			kept = append(kept, sess)
			continue
		}
		if sess.Status == StatusFailed {
			p.evictLocked(sess, "returned with error")
			evicted = true
			continue
		}
		kept = append(kept, sess)
	}
	p.sessions[server] = kept
	if evicted {
		p.rebuildCatalogLocked()
	}

	if leased != nil {
		leased.Status = StatusLeased
		leased.LastUsedAt = time.Now()
		return leased, nil
	}

	if len(p.sessions[server]) < p.opts.MaxConnectionsPerServer {
		sess, err := p.createLocked(ctx, server)
		if err != nil {
			return nil, err
		}
		sess.Status = StatusLeased
		return sess, nil
	}

	p.emitter.Emit(events.Event{Name: events.PoolExhausted, Server: server})
	return nil, errkind.Newf(errkind.PoolExhausted, "no session available for %q and pool is at capacity (%d)",
		server, p.opts.MaxConnectionsPerServer)
}

// Return gives a leased session back. A failure outcome marks it Failed so
// the next lease scan or health pass evicts it; success resets it to
// Connected.
func (p *Pool) Return(server string, sess *Session, callErr error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	sess.LastUsedAt = time.Now()
	if callErr != nil {
		sess.ErrorCount++
		sess.Status = StatusFailed
		p.logger.Warn("session returned with error",
			"server", server,
			"session_id", sess.ID,
			"error_count", sess.ErrorCount,
			"error", callErr,
		)
		return
	}
	sess.Status = StatusConnected
}

// Catalog returns the current unified tool catalog snapshot.
func (p *Pool) Catalog() *catalog.Catalog {
	return p.catalog.Load()
}

// Stats snapshots per-server session counts.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	stats := Stats{Servers: make(map[string]ServerStats, len(p.servers))}
	for name := range p.servers {
		var s ServerStats
		for _, sess := range p.sessions[name] {
			switch sess.Status {
			case StatusConnected:
				s.Connected++
			case StatusLeased:
				s.Leased++
			case StatusFailed:
				s.Failed++
			}
		}
		stats.Servers[name] = s
	}
	stats.Breakers = p.wrapper.BreakerStates()
	return stats
}

// Shutdown stops the health loop first, then closes every pooled session,
// logging and continuing past individual close failures.
func (p *Pool) Shutdown() {
	if p.healthCancel != nil {
		p.healthCancel()
		<-p.healthDone
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	for server, list := range p.sessions {
		for _, sess := range list {
			if err := sess.Transport.Close(); err != nil {
				p.logger.Warn("closing session during shutdown",
					"server", server,
					"session_id", sess.ID,
					"error", err,
				)
			}
		}
		delete(p.sessions, server)
	}
	p.logger.Info("pool shut down")
}

// createLocked dials a new session through the resilience wrapper, caches its
// tool list, appends it to the pool, and rebuilds the catalog. Caller holds
// the pool mutex; the dial itself is the documented under-lock I/O.
func (p *Pool) createLocked(ctx context.Context, server string) (*Session, error) {
	cfg := p.servers[server]

	var ts transport.Session
	var tools []transport.ToolDef
	err := p.wrapper.Do(ctx, server, func(ctx context.Context) error {
		dialCtx := ctx
		if p.opts.ConnectTimeout > 0 {
			var cancel context.CancelFunc
			dialCtx, cancel = context.WithTimeout(ctx, p.opts.ConnectTimeout)
			defer cancel()
		}

		s, err := p.dial(dialCtx, cfg)
		if err != nil {
			return err
		}

		// Caching the capability list is part of acquisition: a session we
		// cannot list tools on is not usable and must not leak.
		defs, err := s.ListTools(dialCtx)
		if err != nil {
			_ = s.Close()
			return err
		}

		ts = s
		tools = defs
		return nil
	})
	if err != nil {
		p.emitter.Emit(events.Event{Name: events.SessionFailed, Server: server, Detail: err.Error()})
		return nil, err
	}

	sess := &Session{
		ID:         uuid.New().String(),
		Server:     server,
		Transport:  ts,
		Status:     StatusConnecting,
		CreatedAt:  time.Now(),
		LastUsedAt: time.Now(),
		Tools:      tools,
	}
	p.sessions[server] = append(p.sessions[server], sess)
	p.rebuildCatalogLocked()

	p.emitter.Emit(events.Event{Name: events.SessionCreated, Server: server})
	p.logger.Info("session created",
		"server", server,
		"session_id", sess.ID,
		"tools", len(tools),
	)
	return sess, nil
}

// evictLocked closes a session's transport and emits the eviction event.
// Caller holds the pool mutex and is responsible for removing the session
// from its list.
func (p *Pool) evictLocked(sess *Session, reason string) {
	if err := sess.Transport.Close(); err != nil {
		p.logger.Warn("closing evicted session",
			"server", sess.Server,
			"session_id", sess.ID,
			"error", err,
		)
	}
	p.emitter.Emit(events.Event{Name: events.SessionEvicted, Server: sess.Server, Detail: reason})
	p.logger.Info("session evicted",
		"server", sess.Server,
		"session_id", sess.ID,
		"reason", reason,
	)
}

// healthLoop probes every pooled session on a fixed interval until cancelled.
func (p *Pool) healthLoop(ctx context.Context) {
	defer close(p.healthDone)

	ticker := time.NewTicker(p.opts.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.healthCheck(ctx)
		}
	}
}

// healthCheck probes every idle session with a lightweight capability call.
// Sessions that fail the probe are closed and dropped; survivors form the new
// pool. Leased sessions are skipped — their health is judged by Return.
func (p *Pool) healthCheck(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	changed := false
	for server, list := range p.sessions {
		survivors := list[:0]
		for _, sess := range list {
			if sess.Status == StatusLeased {
				survivors = append(survivors, sess)
				continue
			}

			if err := p.probe(ctx, sess); err != nil {
				sess.Status = StatusFailed
				p.evictLocked(sess, "health probe failed: "+err.Error())
				changed = true
				continue
			}
			sess.Status = StatusConnected
			survivors = append(survivors, sess)
		}
		p.sessions[server] = survivors
	}

	if changed {
		p.rebuildCatalogLocked()
	}
	p.logger.Debug("health check complete")
}

// probe issues the lightweight capability call with a bounded deadline.
func (p *Pool) probe(ctx context.Context, sess *Session) error {
	probeCtx := ctx
	if p.opts.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		probeCtx, cancel = context.WithTimeout(ctx, p.opts.ConnectTimeout)
		defer cancel()
	}
	_, err := sess.Transport.ListTools(probeCtx)
	return err
}

// rebuildCatalogLocked rebuilds the whole catalog from the current session
// membership. Caller holds the pool mutex.
func (p *Pool) rebuildCatalogLocked() {
	toolsByServer := make(map[string][]transport.ToolDef)
	for server, list := range p.sessions {
		for _, sess := range list {
			if len(sess.Tools) > 0 {
				toolsByServer[server] = sess.Tools
				break
			}
		}
	}
	p.catalog.Store(catalog.Build(toolsByServer))
}
