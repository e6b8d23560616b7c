package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"paymonitor/internal/bootstrap/logging"
	domainpayment "paymonitor/internal/domain/payment"
	"paymonitor/internal/errs"
	"paymonitor/internal/ports"
)

// Summary totals one snapshot of records. Total is always Alipay + Wechat.
type Summary struct {
	Total  decimal.Decimal `json:"total"`
	Alipay decimal.Decimal `json:"alipay"`
	Wechat decimal.Decimal `json:"wechat"`
	Count  int64           `json:"count"`
}

func (s *Service) check(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}
	if s.repo == nil {
		return errRepositoryRequired
	}
	return nil
}

func (s *Service) ListRecords(ctx context.Context, filter ports.RecordFilter) ([]domainpayment.Record, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, filter)
}

func (s *Service) RecordsPage(ctx context.Context, limit int, offset int) ([]domainpayment.Record, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	return s.repo.Page(ctx, limit, offset)
}

func (s *Service) GetRecord(ctx context.Context, id uint64) (domainpayment.Record, error) {
	if err := s.check(ctx); err != nil {
		return domainpayment.Record{}, err
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) CountRecords(ctx context.Context) (int64, error) {
	if err := s.check(ctx); err != nil {
		return 0, err
	}
	return s.repo.Count(ctx)
}

// Summary reads the records inside [start, end] once and splits the sum by
// source, so the three totals always agree.
func (s *Service) Summary(ctx context.Context, start *time.Time, end *time.Time) (Summary, error) {
	if err := s.check(ctx); err != nil {
		return Summary{}, err
	}

	records, err := s.repo.List(ctx, ports.RecordFilter{Start: start, End: end})
	if err != nil {
		return Summary{}, errs.Wrap(err, "load records for summary")
	}

	out := Summary{
		Total:  decimal.Zero,
		Alipay: decimal.Zero,
		Wechat: decimal.Zero,
		Count:  int64(len(records)),
	}
	for _, record := range records {
		switch record.Source {
		case domainpayment.SourceAlipay:
			out.Alipay = out.Alipay.Add(record.Amount)
		case domainpayment.SourceWechat:
			out.Wechat = out.Wechat.Add(record.Amount)
		}
	}
	out.Total = out.Alipay.Add(out.Wechat)
	return out, nil
}

func (s *Service) SumAll(ctx context.Context) (decimal.Decimal, error) {
	if err := s.check(ctx); err != nil {
		return decimal.Zero, err
	}
	return s.repo.Sum(ctx, ports.RecordFilter{})
}

func (s *Service) SumBySource(ctx context.Context, source domainpayment.Source) (decimal.Decimal, error) {
	if err := s.check(ctx); err != nil {
		return decimal.Zero, err
	}
	if !source.Valid() {
		return decimal.Zero, domainpayment.ErrUnknownSource
	}
	return s.repo.Sum(ctx, ports.RecordFilter{Source: &source})
}

// SumByTimeRange sums records with start <= timestamp <= end.
func (s *Service) SumByTimeRange(ctx context.Context, start time.Time, end time.Time) (decimal.Decimal, error) {
	if err := s.check(ctx); err != nil {
		return decimal.Zero, err
	}
	return s.repo.Sum(ctx, ports.RecordFilter{Start: &start, End: &end})
}

func (s *Service) InsertRecord(ctx context.Context, record domainpayment.Record) (uint64, error) {
	if err := s.check(ctx); err != nil {
		return 0, err
	}
	return s.repo.Insert(ctx, record)
}

func (s *Service) InsertRecords(ctx context.Context, records []domainpayment.Record) ([]uint64, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	return s.repo.InsertMany(ctx, records)
}

func (s *Service) UpdateRecord(ctx context.Context, record domainpayment.Record) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	return s.repo.Update(ctx, record)
}

func (s *Service) DeleteRecord(ctx context.Context, id uint64) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) DeleteAll(ctx context.Context) (int64, error) {
	if err := s.check(ctx); err != nil {
		return 0, err
	}
	removed, err := s.repo.DeleteAll(ctx)
	if err != nil {
		return 0, err
	}
	logging.Info(ctx, "payment records cleared", slog.Int64("removed", removed))
	return removed, nil
}

// DeleteBefore removes records strictly older than cutoff.
func (s *Service) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := s.check(ctx); err != nil {
		return 0, err
	}
	removed, err := s.repo.DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	logging.Info(ctx, "payment records pruned",
		slog.Time("cutoff", cutoff),
		slog.Int64("removed", removed),
	)
	if _, err := s.PurgeExpiredMarkers(ctx); err != nil {
		logging.Warn(ctx, "purge expired dedup markers failed", slog.Any("err", errs.Loggable(err)))
	}
	return removed, nil
}

// PurgeExpiredMarkers drops dedup markers whose window has passed.
func (s *Service) PurgeExpiredMarkers(ctx context.Context) (int64, error) {
	if err := s.check(ctx); err != nil {
		return 0, err
	}
	if s.cache == nil {
		return 0, nil
	}
	purged, err := s.cache.PurgeExpired(ctx)
	if err != nil {
		return 0, errs.Wrap(err, "purge expired cache entries")
	}
	if purged > 0 {
		logging.Info(ctx, "expired dedup markers purged", slog.Int64("purged", purged))
	}
	return purged, nil
}

// PruneOlderThan removes records captured more than maxAge ago.
func (s *Service) PruneOlderThan(ctx context.Context, maxAge time.Duration) (int64, error) {
	if maxAge <= 0 {
		return 0, fmt.Errorf("max age must be positive, got %s", maxAge)
	}
	return s.DeleteBefore(ctx, s.now().Add(-maxAge))
}

// RecordQuery combines a filter with an optional window. Limit 0 means no
// limit.
type RecordQuery struct {
	Filter ports.RecordFilter
	Limit  int
	Offset int
}

func (q RecordQuery) filtered() bool {
	return q.Filter.Source != nil || q.Filter.Start != nil || q.Filter.End != nil
}

// QueryRecords lists matching records newest first and applies the window.
func (s *Service) QueryRecords(ctx context.Context, query RecordQuery) ([]domainpayment.Record, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	if query.Limit < 0 || query.Offset < 0 {
		return nil, fmt.Errorf("%w: limit=%d offset=%d", ports.ErrInvalidPage, query.Limit, query.Offset)
	}
	if query.Limit > 0 && !query.filtered() {
		return s.repo.Page(ctx, query.Limit, query.Offset)
	}

	records, err := s.repo.List(ctx, query.Filter)
	if err != nil {
		return nil, err
	}
	if query.Offset >= len(records) {
		return []domainpayment.Record{}, nil
	}
	records = records[query.Offset:]
	if query.Limit > 0 && query.Limit < len(records) {
		records = records[:query.Limit]
	}
	return records, nil
}

// RecordPatch carries the fields to change; nil fields are kept.
type RecordPatch struct {
	Amount      *decimal.Decimal      `json:"amount,omitempty"`
	Source      *domainpayment.Source `json:"source,omitempty"`
	Timestamp   *time.Time            `json:"timestamp,omitempty"`
	Title       *string               `json:"title,omitempty"`
	Description *string               `json:"description,omitempty"`
}

// PatchRecord applies patch to the stored record and returns the result.
func (s *Service) PatchRecord(ctx context.Context, id uint64, patch RecordPatch) (domainpayment.Record, error) {
	if err := s.check(ctx); err != nil {
		return domainpayment.Record{}, err
	}

	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domainpayment.Record{}, err
	}
	if patch.Amount != nil {
		record.Amount = *patch.Amount
	}
	if patch.Source != nil {
		record.Source = *patch.Source
	}
	if patch.Timestamp != nil {
		record.Timestamp = patch.Timestamp.UTC()
	}
	if patch.Title != nil {
		record.Title = *patch.Title
	}
	if patch.Description != nil {
		record.Description = *patch.Description
	}

	if err := s.repo.Update(ctx, record); err != nil {
		return domainpayment.Record{}, err
	}
	return record, nil
}
