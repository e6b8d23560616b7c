package payment

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"paymonitor/internal/bootstrap/logging"
	domainpayment "paymonitor/internal/domain/payment"
	"paymonitor/internal/errs"
	"paymonitor/internal/ports"
)

type HubState string

const (
	HubLoading HubState = "loading"
	HubReady   HubState = "ready"
)

// View is the ordered record set a subscriber sees after one commit.
type View struct {
	Records []domainpayment.Record `json:"records"`
	Version uint64                 `json:"version"`
	Filter  ports.RecordFilter     `json:"-"`
}

type subscriber struct {
	filter   ports.RecordFilter
	ch       chan View
	done     chan struct{}
	stopOnce sync.Once
}

// stop releases the goroutine watching the subscriber's context.
func (s *subscriber) stop() {
	s.stopOnce.Do(func() { close(s.done) })
}

// offer keeps only the newest undelivered view. Callers hold Hub.mu.
func (s *subscriber) offer(view View) {
	select {
	case s.ch <- view:
		return
	default:
	}
	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- view:
	default:
	}
}

// Hub keeps the newest-first record set in memory and pushes filtered views
// to subscribers after every commit.
type Hub struct {
	repo ports.PaymentReadRepository

	// loadMu orders reloads so an older read never overwrites a newer one.
	loadMu sync.Mutex

	mu      sync.Mutex
	records []domainpayment.Record
	version uint64
	state   HubState
	nextID  uint64
	subs    map[uint64]*subscriber
	closed  bool

	watchers sync.WaitGroup
}

// NewHub registers the hub on notifier so each commit reloads it once. Every
// reload lists the whole table under the write gate, so a write costs a full
// scan; fine for a personal ledger, not for millions of rows.
func NewHub(repo ports.PaymentReadRepository, notifier ports.CommitNotifier) *Hub {
	h := &Hub{
		repo:  repo,
		state: HubLoading,
		subs:  make(map[uint64]*subscriber),
	}
	if notifier != nil {
		notifier.OnCommit(h.onCommit)
	}
	return h
}

func (h *Hub) onCommit(ctx context.Context) {
	if err := h.Refresh(ctx); err != nil {
		logging.Error(logging.WithComponent(ctx, "usecase.payment.hub"), "reload live view failed",
			slog.Any("err", errs.Loggable(err)),
		)
	}
}

func (h *Hub) State() HubState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Refresh reloads the record set and republishes it to every subscriber.
func (h *Hub) Refresh(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if h.repo == nil {
		return errRepositoryRequired
	}

	h.loadMu.Lock()
	defer h.loadMu.Unlock()

	records, err := h.repo.List(ctx, ports.RecordFilter{})
	if err != nil {
		return errs.Wrap(err, "load live view")
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.records = records
	h.version++
	h.state = HubReady
	for _, sub := range h.subs {
		sub.offer(h.viewLocked(sub.filter))
	}
	return nil
}

// Subscribe returns a channel that first carries the current view and then
// one view per commit. Slow readers only see the newest view. The returned
// func unsubscribes; cancelling ctx does the same.
func (h *Hub) Subscribe(ctx context.Context, filter ports.RecordFilter) (<-chan View, func(), error) {
	if ctx == nil {
		return nil, nil, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, errs.Wrap(err, "check context")
	}
	if h.State() == HubLoading {
		if err := h.Refresh(ctx); err != nil {
			return nil, nil, err
		}
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, nil, errors.New("live view is closed")
	}
	h.nextID++
	id := h.nextID
	sub := &subscriber{filter: filter, ch: make(chan View, 1), done: make(chan struct{})}
	h.subs[id] = sub
	sub.offer(h.viewLocked(filter))
	h.watchers.Add(1)
	h.mu.Unlock()

	cancel := func() {
		sub.stop()
		h.mu.Lock()
		if _, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(sub.ch)
		}
		h.mu.Unlock()
	}
	go func() {
		defer h.watchers.Done()
		select {
		case <-ctx.Done():
			cancel()
		case <-sub.done:
		}
	}()

	return sub.ch, cancel, nil
}

// Close ends every subscription and waits for their context watchers.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	for id, sub := range h.subs {
		delete(h.subs, id)
		close(sub.ch)
		sub.stop()
	}
	h.mu.Unlock()

	h.watchers.Wait()
}

func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) viewLocked(filter ports.RecordFilter) View {
	records := make([]domainpayment.Record, 0, len(h.records))
	for _, record := range h.records {
		if filter.Match(record) {
			records = append(records, record)
		}
	}
	return View{Records: records, Version: h.version, Filter: filter}
}
