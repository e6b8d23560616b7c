package payment

import (
	"errors"
	"sync/atomic"
	"time"

	domainpayment "paymonitor/internal/domain/payment"
	"paymonitor/internal/ports"
)

var (
	errRepositoryRequired = errors.New("payment repository is required")
	errUnitOfWorkRequired = errors.New("payment unit of work is required")
	errCacheRequired      = errors.New("cache is required when dedup by key is enabled")
	errHubRequired        = errors.New("live view is not configured")
)

type Service struct {
	repo    ports.PaymentRepository
	uow     ports.UnitOfWork
	cache   ports.Cache
	parser  atomic.Pointer[domainpayment.Parser]
	metrics ports.IngestMetrics
	hub     *Hub
	now     func() time.Time

	dedupByKey  bool
	dedupWindow time.Duration
}

type Option func(*Service)

// WithClock sets the capture clock used for new records.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithMetrics(metrics ports.IngestMetrics) Option {
	return func(s *Service) {
		s.metrics = metrics
	}
}

func WithHub(hub *Hub) Option {
	return func(s *Service) {
		s.hub = hub
	}
}

// WithDedupByKey makes re-delivered events with a known origin key resolve to
// the record stored for the first delivery, for window after it. A
// non-positive window never expires.
func WithDedupByKey(window time.Duration) Option {
	return func(s *Service) {
		s.dedupByKey = true
		s.dedupWindow = window
	}
}

// NewService wires payment usecases with repository, unit of work and cache.
// A nil parser falls back to the built-in rules.
func NewService(repo ports.PaymentRepository, uow ports.UnitOfWork, cache ports.Cache, parser *domainpayment.Parser, opts ...Option) *Service {
	if parser == nil {
		parser = domainpayment.NewParser(nil, "")
	}
	s := &Service{
		repo:  repo,
		uow:   uow,
		cache: cache,
		now:   time.Now,
	}
	s.parser.Store(parser)
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *Service) Parser() *domainpayment.Parser {
	return s.parser.Load()
}

// SetParser swaps the parser used by later ingests. Ingests already running
// finish with the parser they started with.
func (s *Service) SetParser(parser *domainpayment.Parser) {
	if parser == nil {
		return
	}
	s.parser.Store(parser)
}

func (s *Service) Hub() *Hub {
	return s.hub
}
