package payment

import (
	"context"
	"time"

	domainpayment "paymonitor/internal/domain/payment"
	"paymonitor/internal/ports"
)

func (s *Service) WatchAll(ctx context.Context) (<-chan View, func(), error) {
	return s.watch(ctx, ports.RecordFilter{})
}

func (s *Service) WatchBySource(ctx context.Context, source domainpayment.Source) (<-chan View, func(), error) {
	if !source.Valid() {
		return nil, nil, domainpayment.ErrUnknownSource
	}
	return s.watch(ctx, ports.RecordFilter{Source: &source})
}

func (s *Service) WatchByTimeRange(ctx context.Context, start time.Time, end time.Time) (<-chan View, func(), error) {
	return s.watch(ctx, ports.RecordFilter{Start: &start, End: &end})
}

func (s *Service) watch(ctx context.Context, filter ports.RecordFilter) (<-chan View, func(), error) {
	if s.hub == nil {
		return nil, nil, errHubRequired
	}
	return s.hub.Subscribe(ctx, filter)
}

// RefreshView reloads the live view, picking up commits made by other
// processes sharing the store.
func (s *Service) RefreshView(ctx context.Context) error {
	if s.hub == nil {
		return errHubRequired
	}
	return s.hub.Refresh(ctx)
}
