package payment

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"paymonitor/internal/bootstrap/logging"
	domainpayment "paymonitor/internal/domain/payment"
	"paymonitor/internal/errs"
	"paymonitor/internal/ports"
)

const dedupKeyPrefix = "dedup:"

type IngestResult struct {
	// Record is nil when the event was dropped.
	Record  *domainpayment.Record    `json:"record,omitempty"`
	Outcome ports.IngestOutcome      `json:"outcome"`
	Reason  domainpayment.DropReason `json:"reason,omitempty"`
}

// Ingest turns one notification into a stored record. Events that are not
// payments are dropped with a reason and no error.
func (s *Service) Ingest(ctx context.Context, event domainpayment.NotificationEvent) (IngestResult, error) {
	if ctx == nil {
		return IngestResult{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return IngestResult{}, errs.Wrap(err, "check context")
	}
	if s.repo == nil {
		return IngestResult{}, errRepositoryRequired
	}

	started := time.Now()
	result, err := s.ingest(ctx, event)
	s.observe(event, result, err, time.Since(started))
	return result, err
}

func (s *Service) ingest(ctx context.Context, event domainpayment.NotificationEvent) (IngestResult, error) {
	record, reason := s.parser.Load().Parse(event, s.now())
	if reason != domainpayment.DropNone {
		logging.Debug(ctx, "notification dropped",
			slog.String("origin", event.Origin),
			slog.String("reason", string(reason)),
		)
		return IngestResult{Outcome: ports.IngestDropped, Reason: reason}, nil
	}

	if !s.dedupByKey || record.OriginalKey == nil {
		id, err := s.repo.Insert(ctx, record)
		if err != nil {
			return IngestResult{}, errs.Wrap(err, "store payment record")
		}
		record.ID = id
		s.logStored(ctx, record)
		return IngestResult{Record: &record, Outcome: ports.IngestStored}, nil
	}

	return s.ingestOnce(ctx, record)
}

// ingestOnce checks the dedup marker and inserts in one transaction so two
// deliveries of the same key cannot both store a row.
func (s *Service) ingestOnce(ctx context.Context, record domainpayment.Record) (IngestResult, error) {
	if s.uow == nil {
		return IngestResult{}, errUnitOfWorkRequired
	}
	if s.cache == nil {
		return IngestResult{}, errCacheRequired
	}

	cacheKey := dedupKeyPrefix + record.Key()
	var result IngestResult
	err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		value, found, err := s.cache.Get(txCtx, cacheKey)
		if err != nil {
			return errs.Wrap(err, "read dedup marker")
		}
		if found {
			existing, err := s.lookupMarked(txCtx, value)
			if err != nil {
				return err
			}
			if existing != nil {
				result = IngestResult{Record: existing, Outcome: ports.IngestDuplicate}
				return nil
			}
		}

		id, err := s.repo.Insert(txCtx, record)
		if err != nil {
			return errs.Wrap(err, "store payment record")
		}
		record.ID = id
		if err := s.cache.Set(txCtx, cacheKey, strconv.FormatUint(id, 10), s.dedupWindow); err != nil {
			return errs.Wrap(err, "write dedup marker")
		}
		result = IngestResult{Record: &record, Outcome: ports.IngestStored}
		return nil
	})
	if err != nil {
		return IngestResult{}, err
	}

	if result.Outcome == ports.IngestDuplicate {
		logging.Info(ctx, "duplicate notification ignored",
			slog.String("key", record.Key()),
			slog.Uint64("record_id", result.Record.ID),
		)
	} else {
		s.logStored(ctx, *result.Record)
	}
	return result, nil
}

// lookupMarked returns nil when the marked record no longer exists.
func (s *Service) lookupMarked(ctx context.Context, value string) (*domainpayment.Record, error) {
	id, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return nil, nil
	}
	existing, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, ports.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Wrap(err, "load deduplicated record")
	}
	return &existing, nil
}

// IngestBatch ingests events in order and stops at the first store failure.
// Results for the events handled before the failure are still returned.
func (s *Service) IngestBatch(ctx context.Context, events []domainpayment.NotificationEvent) ([]IngestResult, error) {
	results := make([]IngestResult, 0, len(events))
	for i, event := range events {
		result, err := s.Ingest(ctx, event)
		if err != nil {
			return results, errs.Wrapf(err, "ingest event %d", i)
		}
		results = append(results, result)
	}
	return results, nil
}

func (s *Service) logStored(ctx context.Context, record domainpayment.Record) {
	logging.Info(ctx, "payment recorded",
		slog.Uint64("record_id", record.ID),
		slog.String("source", record.Source.String()),
		slog.String("amount", record.Amount.String()),
	)
}

func (s *Service) observe(event domainpayment.NotificationEvent, result IngestResult, err error, elapsed time.Duration) {
	if s.metrics == nil {
		return
	}

	obs := ports.IngestObservation{
		Outcome:  result.Outcome,
		Reason:   string(result.Reason),
		Duration: elapsed,
	}
	if err != nil {
		obs.Outcome = ports.IngestFailed
	}
	if source, ok := domainpayment.ClassifyOrigin(event.Origin); ok {
		obs.Source = source.String()
	}
	if result.Record != nil {
		obs.Amount = result.Record.Amount
	}
	s.metrics.ObserveIngest(obs)
}
