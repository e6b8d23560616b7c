package ports

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"paymonitor/internal/domain/payment"
)

var (
	ErrRecordNotFound = errors.New("payment record not found")
	ErrInvalidPage    = errors.New("invalid page request")
)

// RecordFilter narrows reads. Nil fields do not filter; Start and End are
// inclusive.
type RecordFilter struct {
	Source *payment.Source
	Start  *time.Time
	End    *time.Time
}

func (f RecordFilter) Match(record payment.Record) bool {
	if f.Source != nil && record.Source != *f.Source {
		return false
	}
	if f.Start != nil && record.Timestamp.Before(*f.Start) {
		return false
	}
	if f.End != nil && record.Timestamp.After(*f.End) {
		return false
	}
	return true
}

type PaymentReadRepository interface {
	GetByID(ctx context.Context, id uint64) (payment.Record, error)
	// List returns matching records newest first.
	List(ctx context.Context, filter RecordFilter) ([]payment.Record, error)
	// Sum is zero when nothing matches.
	Sum(ctx context.Context, filter RecordFilter) (decimal.Decimal, error)
	Page(ctx context.Context, limit int, offset int) ([]payment.Record, error)
	Count(ctx context.Context) (int64, error)
}

type PaymentRepository interface {
	PaymentReadRepository
	Insert(ctx context.Context, record payment.Record) (uint64, error)
	InsertMany(ctx context.Context, records []payment.Record) ([]uint64, error)
	Update(ctx context.Context, record payment.Record) error
	Delete(ctx context.Context, id uint64) error
	DeleteAll(ctx context.Context) (int64, error)
	// DeleteBefore removes records whose timestamp is strictly before cutoff.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
