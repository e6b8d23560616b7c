package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"paymonitor/internal/domain/payment"
	"paymonitor/internal/errs"
	"paymonitor/internal/infrastructure/persistence/sqlite/model"
	"paymonitor/internal/infrastructure/persistence/sqlite/uow"
	"paymonitor/internal/ports"
)

const newestFirst = "timestamp desc, id desc"

type PaymentRepository struct {
	db   *gorm.DB
	gate *uow.Gate
}

var _ ports.PaymentRepository = (*PaymentRepository)(nil)

func NewPaymentRepository(db *gorm.DB, gate *uow.Gate) *PaymentRepository {
	return &PaymentRepository{db: db, gate: gate}
}

func (r *PaymentRepository) dbFromContext(ctx context.Context) (*gorm.DB, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	tx := ports.TxFromContext(ctx)
	if tx == nil {
		return r.db.WithContext(ctx), nil
	}

	gormTx, ok := tx.(*gorm.DB)
	if !ok || gormTx == nil {
		return nil, fmt.Errorf("invalid tx in context: %T", tx)
	}
	return gormTx.WithContext(ctx), nil
}

// write runs fn inside the caller's unit of work, or in its own transaction
// under the gate so commit hooks observe it.
func (r *PaymentRepository) write(ctx context.Context, fn func(db *gorm.DB) error) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if ports.TxFromContext(ctx) != nil {
		db, err := r.dbFromContext(ctx)
		if err != nil {
			return err
		}
		return fn(db)
	}

	return r.gate.Do(ctx, func() error {
		return r.db.WithContext(ctx).Transaction(fn)
	})
}

func (r *PaymentRepository) Insert(ctx context.Context, record payment.Record) (uint64, error) {
	if err := record.Validate(); err != nil {
		return 0, err
	}

	row := toModel(record)
	row.ID = 0
	err := r.write(ctx, func(db *gorm.DB) error {
		return db.Create(&row).Error
	})
	if err != nil {
		return 0, errs.Wrap(err, "insert payment record")
	}
	return row.ID, nil
}

// InsertMany stores all records or none of them.
func (r *PaymentRepository) InsertMany(ctx context.Context, records []payment.Record) ([]uint64, error) {
	if len(records) == 0 {
		return nil, nil
	}

	rows := make([]model.PaymentRecord, 0, len(records))
	for i, record := range records {
		if err := record.Validate(); err != nil {
			return nil, errs.Wrapf(err, "record %d", i)
		}
		row := toModel(record)
		row.ID = 0
		rows = append(rows, row)
	}

	err := r.write(ctx, func(db *gorm.DB) error {
		for i := range rows {
			if err := db.Create(&rows[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, errs.Wrap(err, "insert payment records")
	}

	ids := make([]uint64, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	return ids, nil
}

func (r *PaymentRepository) Update(ctx context.Context, record payment.Record) error {
	if record.ID == 0 {
		return fmt.Errorf("%w: id is required", payment.ErrInvalidRecord)
	}
	if err := record.Validate(); err != nil {
		return err
	}

	row := toModel(record)
	return r.write(ctx, func(db *gorm.DB) error {
		result := db.Model(&model.PaymentRecord{}).
			Where("id = ?", row.ID).
			Updates(map[string]any{
				"amount":       row.Amount,
				"source":       row.Source,
				"timestamp":    row.Timestamp,
				"title":        row.Title,
				"description":  row.Description,
				"original_key": row.OriginalKey,
			})
		if result.Error != nil {
			return errs.Wrap(result.Error, "update payment record")
		}
		if result.RowsAffected == 0 {
			return ports.ErrRecordNotFound
		}
		return nil
	})
}

// Delete is a no-op for unknown ids.
func (r *PaymentRepository) Delete(ctx context.Context, id uint64) error {
	return r.write(ctx, func(db *gorm.DB) error {
		if err := db.Where("id = ?", id).Delete(&model.PaymentRecord{}).Error; err != nil {
			return errs.Wrap(err, "delete payment record")
		}
		return nil
	})
}

func (r *PaymentRepository) DeleteAll(ctx context.Context) (int64, error) {
	var removed int64
	err := r.write(ctx, func(db *gorm.DB) error {
		result := db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&model.PaymentRecord{})
		if result.Error != nil {
			return errs.Wrap(result.Error, "delete all payment records")
		}
		removed = result.RowsAffected
		return nil
	})
	return removed, err
}

func (r *PaymentRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var removed int64
	err := r.write(ctx, func(db *gorm.DB) error {
		result := db.Where("timestamp < ?", cutoff.UnixNano()).Delete(&model.PaymentRecord{})
		if result.Error != nil {
			return errs.Wrap(result.Error, "delete payment records before cutoff")
		}
		removed = result.RowsAffected
		return nil
	})
	return removed, err
}

func (r *PaymentRepository) GetByID(ctx context.Context, id uint64) (payment.Record, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return payment.Record{}, err
	}

	var row model.PaymentRecord
	if err := db.Where("id = ?", id).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return payment.Record{}, ports.ErrRecordNotFound
		}
		return payment.Record{}, errs.Wrap(err, "get payment record")
	}
	return toRecord(row)
}

func (r *PaymentRepository) List(ctx context.Context, filter ports.RecordFilter) ([]payment.Record, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.PaymentRecord
	if err := applyFilter(db.Model(&model.PaymentRecord{}), filter).
		Order(newestFirst).
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "list payment records")
	}
	return toRecords(rows)
}

// Sum adds amounts in Go since SQLite would round them through REAL.
func (r *PaymentRepository) Sum(ctx context.Context, filter ports.RecordFilter) (decimal.Decimal, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return decimal.Zero, err
	}

	var rows []model.PaymentRecord
	if err := applyFilter(db.Model(&model.PaymentRecord{}), filter).
		Select("amount").
		Find(&rows).Error; err != nil {
		return decimal.Zero, errs.Wrap(err, "sum payment records")
	}

	total := decimal.Zero
	for _, row := range rows {
		total = total.Add(row.Amount)
	}
	return total, nil
}

func (r *PaymentRepository) Page(ctx context.Context, limit int, offset int) ([]payment.Record, error) {
	if limit <= 0 || offset < 0 {
		return nil, fmt.Errorf("%w: limit=%d offset=%d", ports.ErrInvalidPage, limit, offset)
	}
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.PaymentRecord
	if err := db.Model(&model.PaymentRecord{}).
		Order(newestFirst).
		Limit(limit).
		Offset(offset).
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "page payment records")
	}
	return toRecords(rows)
}

func (r *PaymentRepository) Count(ctx context.Context) (int64, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return 0, err
	}

	var count int64
	if err := db.Model(&model.PaymentRecord{}).Count(&count).Error; err != nil {
		return 0, errs.Wrap(err, "count payment records")
	}
	return count, nil
}

func applyFilter(query *gorm.DB, filter ports.RecordFilter) *gorm.DB {
	if filter.Source != nil {
		query = query.Where("source = ?", filter.Source.String())
	}
	if filter.Start != nil {
		query = query.Where("timestamp >= ?", filter.Start.UnixNano())
	}
	if filter.End != nil {
		query = query.Where("timestamp <= ?", filter.End.UnixNano())
	}
	return query
}

func toModel(record payment.Record) model.PaymentRecord {
	return model.PaymentRecord{
		ID:          record.ID,
		Amount:      record.Amount,
		Source:      record.Source.String(),
		Timestamp:   record.Timestamp.UnixNano(),
		Title:       record.Title,
		Description: record.Description,
		OriginalKey: record.OriginalKey,
	}
}

func toRecord(row model.PaymentRecord) (payment.Record, error) {
	source, err := payment.ParseSource(row.Source)
	if err != nil {
		return payment.Record{}, errs.Wrapf(err, "payment record %d", row.ID)
	}
	return payment.Record{
		ID:          row.ID,
		Amount:      row.Amount,
		Source:      source,
		Timestamp:   time.Unix(0, row.Timestamp).UTC(),
		Title:       row.Title,
		Description: row.Description,
		OriginalKey: row.OriginalKey,
	}, nil
}

func toRecords(rows []model.PaymentRecord) ([]payment.Record, error) {
	records := make([]payment.Record, 0, len(rows))
	for _, row := range rows {
		record, err := toRecord(row)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}
