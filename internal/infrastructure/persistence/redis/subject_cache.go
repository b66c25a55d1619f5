package redis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/unadm-hub/academic-core/internal/domain/shared"
	"github.com/unadm-hub/academic-core/internal/domain/subject"
	"github.com/unadm-hub/academic-core/pkg/circuitbreaker"
	"github.com/unadm-hub/academic-core/pkg/logger"
)

// store is the part of Cache the subject decorator needs.
type store interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

var _ store = (*Cache)(nil)

// ══════════════════════════════════════════════════════════════════════════════
// BREAKER
// ══════════════════════════════════════════════════════════════════════════════

// NewBreaker returns a breaker that opens after consecutive Redis connection
// failures. Misses and rejected input never count.
func NewBreaker(log *zap.Logger, opts ...circuitbreaker.Option) *circuitbreaker.CircuitBreaker {
	if log == nil {
		log = zap.NewNop()
	}
	base := []circuitbreaker.Option{
		circuitbreaker.WithFailureThreshold(3),
		circuitbreaker.WithSuccessThreshold(1),
		circuitbreaker.WithTimeout(30 * time.Second),
		circuitbreaker.WithIsFailure(isConnectionFailure),
		circuitbreaker.WithOnStateChange(func(name string, from, to circuitbreaker.State) {
			log.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
		}),
	}
	return circuitbreaker.New("redis", append(base, opts...)...)
}

func isConnectionFailure(err error) bool {
	switch {
	case errors.Is(err, ErrCacheMiss),
		errors.Is(err, ErrCacheKeyEmpty),
		errors.Is(err, ErrCacheNilValue),
		errors.Is(err, ErrCacheInvalidTTL),
		errors.Is(err, ErrCacheSerialization):
		return false
	}
	return true
}

// guardedStore sends reads and fills through a breaker. Deletes always reach
// Redis so an invalidation is never skipped.
type guardedStore struct {
	store
	breaker *circuitbreaker.CircuitBreaker
}

func (g guardedStore) Get(ctx context.Context, key string, dest any) error {
	return g.breaker.Execute(ctx, func(ctx context.Context) error {
		return g.store.Get(ctx, key, dest)
	})
}

func (g guardedStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	return g.breaker.Execute(ctx, func(ctx context.Context) error {
		return g.store.Set(ctx, key, value, ttl)
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// METRICS
// ══════════════════════════════════════════════════════════════════════════════

// Cache lookup results.
const (
	resultHit     = "hit"
	resultMiss    = "miss"
	resultError   = "error"
	// resultSkipped means the breaker kept the lookup away from Redis.
	resultSkipped = "skipped"
)

// Metrics counts subject cache lookups. A nil *Metrics records nothing.
type Metrics struct {
	lookups       *prometheus.CounterVec
	invalidations prometheus.Counter
}

// NewMetrics registers the subject cache collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "academic_subject_cache_lookups_total",
			Help: "Subject cache lookups by operation and result",
		}, []string{"operation", "result"}),
		invalidations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "academic_subject_cache_invalidations_total",
			Help: "Subject cache invalidations caused by saves",
		}),
	}
	reg.MustRegister(m.lookups, m.invalidations)
	return m
}

func (m *Metrics) lookup(op, result string) {
	if m == nil {
		return
	}
	m.lookups.WithLabelValues(op, result).Inc()
}

func (m *Metrics) invalidated() {
	if m == nil {
		return
	}
	m.invalidations.Inc()
}

// ══════════════════════════════════════════════════════════════════════════════
// SUBJECT CACHE
// ══════════════════════════════════════════════════════════════════════════════

// SubjectCache is a read-through subject.Repository. Reads are served from
// Redis when possible and filled from next otherwise. Redis failures are
// logged and never fail the call.
type SubjectCache struct {
	next    subject.Repository
	cache   store
	ttl     time.Duration
	log     *zap.Logger
	metrics *Metrics
}

var _ subject.Repository = (*SubjectCache)(nil)

// NewSubjectCache wraps next. A zero ttl uses TTLSubjectCache.
func NewSubjectCache(next subject.Repository, cache store, ttl time.Duration, log *zap.Logger, metrics *Metrics) *SubjectCache {
	if ttl <= 0 {
		ttl = TTLSubjectCache
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &SubjectCache{
		next:    next,
		cache:   cache,
		ttl:     ttl,
		log:     log.With(logger.Component("subject_cache")),
		metrics: metrics,
	}
}

// WithBreaker puts cb in front of Redis reads and fills.
func (c *SubjectCache) WithBreaker(cb *circuitbreaker.CircuitBreaker) *SubjectCache {
	c.cache = guardedStore{store: c.cache, breaker: cb}
	return c
}

// Save writes through to next and then drops every key the subject could
// be cached under, including its previous code.
func (c *SubjectCache) Save(ctx context.Context, s *subject.Subject) error {
	keys := []string{SubjectKey(s.ID()), SubjectCodeKey(s.Code().String()), SubjectListKey}

	previous, err := c.next.GetByID(ctx, s.ID())
	if err != nil {
		return err
	}
	if previous != nil && previous.Code() != s.Code() {
		keys = append(keys, SubjectCodeKey(previous.Code().String()))
	}

	if err := c.next.Save(ctx, s); err != nil {
		return err
	}

	if err := c.cache.Delete(ctx, keys...); err != nil {
		c.log.Warn("failed to invalidate subject cache", logger.SubjectID(s.ID()), zap.Error(err))
		return nil
	}
	c.metrics.invalidated()
	return nil
}

// GetByID implements subject.Repository.
func (c *SubjectCache) GetByID(ctx context.Context, id uuid.UUID) (*subject.Subject, error) {
	return c.readOne(ctx, "get_by_id", SubjectKey(id), func() (*subject.Subject, error) {
		return c.next.GetByID(ctx, id)
	})
}

// GetByCode implements subject.Repository.
func (c *SubjectCache) GetByCode(ctx context.Context, code shared.SubjectCode) (*subject.Subject, error) {
	return c.readOne(ctx, "get_by_code", SubjectCodeKey(code.String()), func() (*subject.Subject, error) {
		return c.next.GetByCode(ctx, code)
	})
}

// ListAll implements subject.Repository.
func (c *SubjectCache) ListAll(ctx context.Context) ([]*subject.Subject, error) {
	const op = "list_all"

	var records []subjectRecord
	switch err := c.cache.Get(ctx, SubjectListKey, &records); {
	case err == nil:
		subjects, convErr := fromRecords(records)
		if convErr == nil {
			c.metrics.lookup(op, resultHit)
			return subjects, nil
		}
		c.discard(ctx, op, SubjectListKey, convErr)
	case errors.Is(err, ErrCacheMiss):
		c.metrics.lookup(op, resultMiss)
	case circuitbreaker.IsRejected(err):
		c.metrics.lookup(op, resultSkipped)
	default:
		c.failed(op, SubjectListKey, err)
	}

	subjects, err := c.next.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	c.fill(ctx, SubjectListKey, toRecords(subjects))
	return subjects, nil
}

func (c *SubjectCache) readOne(ctx context.Context, op, key string, load func() (*subject.Subject, error)) (*subject.Subject, error) {
	var record subjectRecord
	switch err := c.cache.Get(ctx, key, &record); {
	case err == nil:
		s, convErr := record.toSubject()
		if convErr == nil {
			c.metrics.lookup(op, resultHit)
			return s, nil
		}
		c.discard(ctx, op, key, convErr)
	case errors.Is(err, ErrCacheMiss):
		c.metrics.lookup(op, resultMiss)
	case circuitbreaker.IsRejected(err):
		c.metrics.lookup(op, resultSkipped)
	default:
		c.failed(op, key, err)
	}

	s, err := load()
	if err != nil || s == nil {
		return s, err
	}
	c.fill(ctx, key, toRecord(s))
	return s, nil
}

func (c *SubjectCache) fill(ctx context.Context, key string, value any) {
	if err := c.cache.Set(ctx, key, value, c.ttl); err != nil && !circuitbreaker.IsRejected(err) {
		c.log.Warn("failed to fill subject cache", zap.String("key", key), zap.Error(err))
	}
}

func (c *SubjectCache) failed(op, key string, err error) {
	c.metrics.lookup(op, resultError)
	c.log.Warn("subject cache unavailable", logger.Operation(op), zap.String("key", key), zap.Error(err))
}

// discard drops an entry that no longer rebuilds into a valid subject.
func (c *SubjectCache) discard(ctx context.Context, op, key string, err error) {
	c.failed(op, key, err)
	if delErr := c.cache.Delete(ctx, key); delErr != nil {
		c.log.Warn("failed to drop stale subject entry", zap.String("key", key), zap.Error(delErr))
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CACHED FORM
// ══════════════════════════════════════════════════════════════════════════════

type subjectRecord struct {
	ID            uuid.UUID   `json:"id"`
	Module        int         `json:"module"`
	Semester      int         `json:"semester"`
	Block         int         `json:"block"`
	Code          string      `json:"code"`
	Acronym       string      `json:"acronym,omitempty"`
	Name          string      `json:"name"`
	Credits       float64     `json:"credits"`
	Prerequisites []uuid.UUID `json:"prerequisites"`
}

func toRecord(s *subject.Subject) subjectRecord {
	p := s.Params()
	return subjectRecord{
		ID:            p.ID,
		Module:        int(p.Module),
		Semester:      int(p.Semester),
		Block:         int(p.Block),
		Code:          p.Code,
		Acronym:       p.Acronym,
		Name:          p.Name,
		Credits:       p.Credits.Float64(),
		Prerequisites: p.Prerequisites,
	}
}

func (r subjectRecord) toSubject() (*subject.Subject, error) {
	return subject.New(subject.NewSubjectParams{
		ID:            r.ID,
		Module:        subject.Module(r.Module),
		Semester:      subject.Semester(r.Semester),
		Block:         subject.Block(r.Block),
		Code:          r.Code,
		Acronym:       r.Acronym,
		Name:          r.Name,
		Credits:       subject.Credits(r.Credits),
		Prerequisites: r.Prerequisites,
	})
}

func toRecords(subjects []*subject.Subject) []subjectRecord {
	records := make([]subjectRecord, 0, len(subjects))
	for _, s := range subjects {
		records = append(records, toRecord(s))
	}
	return records
}

func fromRecords(records []subjectRecord) ([]*subject.Subject, error) {
	subjects := make([]*subject.Subject, 0, len(records))
	for _, r := range records {
		s, err := r.toSubject()
		if err != nil {
			return nil, err
		}
		subjects = append(subjects, s)
	}
	return subjects, nil
}
