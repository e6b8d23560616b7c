package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"paymonitor/internal/domain/payment"
	"paymonitor/internal/infrastructure/persistence/sqlite/model"
	"paymonitor/internal/infrastructure/persistence/sqlite/uow"
	"paymonitor/internal/ports"
)

var baseTime = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

func setupRepository(t *testing.T) (*PaymentRepository, *uow.Gate, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(gormsqlite.Open(filepath.Join(t.TempDir(), "payments.sqlite")), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(model.All()...); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	gate := uow.NewGate()
	return NewPaymentRepository(db, gate), gate, db
}

func newRecord(amount string, source payment.Source, at time.Time) payment.Record {
	return payment.Record{
		Amount:      decimal.RequireFromString(amount),
		Source:      source,
		Timestamp:   at,
		Title:       "收款通知",
		Description: "收款" + amount + "元",
	}
}

func mustInsert(t *testing.T, repo *PaymentRepository, record payment.Record) uint64 {
	t.Helper()
	id, err := repo.Insert(context.Background(), record)
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	return id
}

func TestInsertAndGetRoundTrip(t *testing.T) {
	repo, _, _ := setupRepository(t)
	ctx := context.Background()

	key := "0|com.eg.android.AlipayGphone|1|null|10001"
	record := newRecord("12.34", payment.SourceAlipay, baseTime.Add(123*time.Nanosecond))
	record.OriginalKey = &key

	id := mustInsert(t, repo, record)
	if id == 0 {
		t.Fatalf("Insert() id = 0, want assigned id")
	}

	got, err := repo.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.ID != id {
		t.Fatalf("ID = %d, want %d", got.ID, id)
	}
	if !got.Amount.Equal(record.Amount) || got.Amount.String() != "12.34" {
		t.Fatalf("Amount = %s, want 12.34", got.Amount)
	}
	if got.Source != payment.SourceAlipay {
		t.Fatalf("Source = %v, want ALIPAY", got.Source)
	}
	if !got.Timestamp.Equal(record.Timestamp) {
		t.Fatalf("Timestamp = %v, want %v", got.Timestamp, record.Timestamp)
	}
	if got.Title != record.Title || got.Description != record.Description {
		t.Fatalf("text fields = (%q, %q), want (%q, %q)", got.Title, got.Description, record.Title, record.Description)
	}
	if got.Key() != key {
		t.Fatalf("OriginalKey = %q, want %q", got.Key(), key)
	}
}

func TestInsertIgnoresCallerIDAndRejectsInvalid(t *testing.T) {
	repo, _, _ := setupRepository(t)
	ctx := context.Background()

	record := newRecord("1.00", payment.SourceWechat, baseTime)
	record.ID = 999
	id := mustInsert(t, repo, record)
	if id == 999 {
		t.Fatalf("Insert() kept caller id")
	}

	bad := newRecord("0", payment.SourceWechat, baseTime)
	if _, err := repo.Insert(ctx, bad); !errors.Is(err, payment.ErrInvalidRecord) {
		t.Fatalf("Insert(zero amount) error = %v, want ErrInvalidRecord", err)
	}

	count, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 1 {
		t.Fatalf("Count() = %d, want 1", count)
	}
}

func TestInsertManyIsAllOrNothing(t *testing.T) {
	repo, _, _ := setupRepository(t)
	ctx := context.Background()

	ids, err := repo.InsertMany(ctx, []payment.Record{
		newRecord("1.00", payment.SourceAlipay, baseTime),
		newRecord("2.00", payment.SourceWechat, baseTime.Add(time.Minute)),
	})
	if err != nil {
		t.Fatalf("InsertMany() error = %v", err)
	}
	if len(ids) != 2 || ids[0] == ids[1] {
		t.Fatalf("InsertMany() ids = %v, want two distinct ids", ids)
	}

	_, err = repo.InsertMany(ctx, []payment.Record{
		newRecord("3.00", payment.SourceAlipay, baseTime),
		{Amount: decimal.RequireFromString("4.00"), Timestamp: baseTime, Title: "x"},
	})
	if !errors.Is(err, payment.ErrInvalidRecord) {
		t.Fatalf("InsertMany(invalid) error = %v, want ErrInvalidRecord", err)
	}

	count, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 2 {
		t.Fatalf("Count() = %d, want 2", count)
	}
}

func TestListOrdersNewestFirstWithIDTiebreak(t *testing.T) {
	repo, _, _ := setupRepository(t)
	ctx := context.Background()

	older := mustInsert(t, repo, newRecord("1.00", payment.SourceAlipay, baseTime))
	tieA := mustInsert(t, repo, newRecord("2.00", payment.SourceWechat, baseTime.Add(time.Hour)))
	tieB := mustInsert(t, repo, newRecord("3.00", payment.SourceAlipay, baseTime.Add(time.Hour)))

	records, err := repo.List(ctx, ports.RecordFilter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	want := []uint64{tieB, tieA, older}
	if len(records) != len(want) {
		t.Fatalf("List() len = %d, want %d", len(records), len(want))
	}
	for i, id := range want {
		if records[i].ID != id {
			t.Fatalf("List()[%d].ID = %d, want %d", i, records[i].ID, id)
		}
	}
}

func TestListAndSumApplyFilters(t *testing.T) {
	repo, _, _ := setupRepository(t)
	ctx := context.Background()

	mustInsert(t, repo, newRecord("10.10", payment.SourceAlipay, baseTime))
	mustInsert(t, repo, newRecord("0.20", payment.SourceWechat, baseTime.Add(time.Hour)))
	mustInsert(t, repo, newRecord("5.05", payment.SourceAlipay, baseTime.Add(2*time.Hour)))

	total, err := repo.Sum(ctx, ports.RecordFilter{})
	if err != nil {
		t.Fatalf("Sum() error = %v", err)
	}
	if total.String() != "15.35" {
		t.Fatalf("Sum(all) = %s, want 15.35", total)
	}

	alipay := payment.SourceAlipay
	alipayTotal, err := repo.Sum(ctx, ports.RecordFilter{Source: &alipay})
	if err != nil {
		t.Fatalf("Sum(alipay) error = %v", err)
	}
	if alipayTotal.String() != "15.15" {
		t.Fatalf("Sum(alipay) = %s, want 15.15", alipayTotal)
	}

	start := baseTime.Add(time.Hour)
	end := baseTime.Add(2 * time.Hour)
	ranged, err := repo.List(ctx, ports.RecordFilter{Start: &start, End: &end})
	if err != nil {
		t.Fatalf("List(range) error = %v", err)
	}
	if len(ranged) != 2 {
		t.Fatalf("List(range) len = %d, want 2 with inclusive bounds", len(ranged))
	}

	empty := baseTime.Add(-time.Hour)
	none, err := repo.Sum(ctx, ports.RecordFilter{End: &empty})
	if err != nil {
		t.Fatalf("Sum(empty) error = %v", err)
	}
	if !none.IsZero() {
		t.Fatalf("Sum(empty) = %s, want 0", none)
	}
}

func TestPageBounds(t *testing.T) {
	repo, _, _ := setupRepository(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		mustInsert(t, repo, newRecord("1.00", payment.SourceAlipay, baseTime.Add(time.Duration(i)*time.Minute)))
	}

	page, err := repo.Page(ctx, 2, 1)
	if err != nil {
		t.Fatalf("Page() error = %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("Page(2,1) len = %d, want 2", len(page))
	}
	if !page[0].Timestamp.Equal(baseTime.Add(3 * time.Minute)) {
		t.Fatalf("Page(2,1)[0].Timestamp = %v, want second newest", page[0].Timestamp)
	}

	past, err := repo.Page(ctx, 10, 50)
	if err != nil {
		t.Fatalf("Page(past end) error = %v", err)
	}
	if len(past) != 0 {
		t.Fatalf("Page(past end) len = %d, want 0", len(past))
	}

	if _, err := repo.Page(ctx, 0, 0); !errors.Is(err, ports.ErrInvalidPage) {
		t.Fatalf("Page(0,0) error = %v, want ErrInvalidPage", err)
	}
	if _, err := repo.Page(ctx, 1, -1); !errors.Is(err, ports.ErrInvalidPage) {
		t.Fatalf("Page(1,-1) error = %v, want ErrInvalidPage", err)
	}
}

func TestUpdateAndDelete(t *testing.T) {
	repo, _, _ := setupRepository(t)
	ctx := context.Background()

	id := mustInsert(t, repo, newRecord("1.00", payment.SourceAlipay, baseTime))
	updated := newRecord("8.88", payment.SourceWechat, baseTime.Add(time.Hour))
	updated.ID = id
	updated.Title = "微信支付"
	if err := repo.Update(ctx, updated); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, err := repo.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Amount.String() != "8.88" || got.Source != payment.SourceWechat || got.Title != "微信支付" {
		t.Fatalf("GetByID() after update = %+v", got)
	}

	missing := updated
	missing.ID = id + 100
	if err := repo.Update(ctx, missing); !errors.Is(err, ports.ErrRecordNotFound) {
		t.Fatalf("Update(missing) error = %v, want ErrRecordNotFound", err)
	}

	if err := repo.Delete(ctx, id); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := repo.Delete(ctx, id); err != nil {
		t.Fatalf("Delete(again) error = %v", err)
	}
	if _, err := repo.GetByID(ctx, id); !errors.Is(err, ports.ErrRecordNotFound) {
		t.Fatalf("GetByID(deleted) error = %v, want ErrRecordNotFound", err)
	}
}

func TestTimestampsOutsideStorableRangeRejected(t *testing.T) {
	repo, _, _ := setupRepository(t)
	ctx := context.Background()

	id := mustInsert(t, repo, newRecord("1.00", payment.SourceAlipay, baseTime))
	for _, at := range []time.Time{
		time.Date(2300, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(1600, 1, 1, 0, 0, 0, 0, time.UTC),
	} {
		if _, err := repo.Insert(ctx, newRecord("2.00", payment.SourceWechat, at)); !errors.Is(err, payment.ErrInvalidRecord) {
			t.Fatalf("Insert(%s) error = %v, want ErrInvalidRecord", at.Format(time.DateOnly), err)
		}

		moved := newRecord("1.00", payment.SourceAlipay, at)
		moved.ID = id
		if err := repo.Update(ctx, moved); !errors.Is(err, payment.ErrInvalidRecord) {
			t.Fatalf("Update(%s) error = %v, want ErrInvalidRecord", at.Format(time.DateOnly), err)
		}
	}

	edge := time.Date(2262, 1, 1, 0, 0, 0, 0, time.UTC)
	edgeID := mustInsert(t, repo, newRecord("3.00", payment.SourceWechat, edge))
	got, err := repo.GetByID(ctx, edgeID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if !got.Timestamp.Equal(edge) {
		t.Fatalf("Timestamp = %s, want %s", got.Timestamp, edge)
	}

	records, err := repo.List(ctx, ports.RecordFilter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(records) != 2 || records[0].ID != edgeID || !records[1].Timestamp.Equal(baseTime) {
		t.Fatalf("List() = %+v, want edge record first and original untouched", records)
	}
}

func TestDeleteBeforeAndDeleteAll(t *testing.T) {
	repo, _, _ := setupRepository(t)
	ctx := context.Background()

	mustInsert(t, repo, newRecord("1.00", payment.SourceAlipay, baseTime))
	mustInsert(t, repo, newRecord("2.00", payment.SourceAlipay, baseTime.Add(time.Hour)))
	mustInsert(t, repo, newRecord("3.00", payment.SourceWechat, baseTime.Add(2*time.Hour)))

	removed, err := repo.DeleteBefore(ctx, baseTime.Add(time.Hour))
	if err != nil {
		t.Fatalf("DeleteBefore() error = %v", err)
	}
	if removed != 1 {
		t.Fatalf("DeleteBefore() removed = %d, want 1 (cutoff is exclusive)", removed)
	}

	removed, err = repo.DeleteAll(ctx)
	if err != nil {
		t.Fatalf("DeleteAll() error = %v", err)
	}
	if removed != 2 {
		t.Fatalf("DeleteAll() removed = %d, want 2", removed)
	}

	count, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 0 {
		t.Fatalf("Count() = %d, want 0", count)
	}
}

func TestWritesFireCommitHooks(t *testing.T) {
	repo, gate, db := setupRepository(t)
	ctx := context.Background()

	var seen []int64
	gate.OnCommit(func(ctx context.Context) {
		count, err := repo.Count(ctx)
		if err != nil {
			t.Errorf("Count() in hook error = %v", err)
			return
		}
		seen = append(seen, count)
	})

	id := mustInsert(t, repo, newRecord("1.00", payment.SourceAlipay, baseTime))
	mustInsert(t, repo, newRecord("2.00", payment.SourceAlipay, baseTime))
	if err := repo.Delete(ctx, id); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	want := []int64{1, 2, 1}
	if len(seen) != len(want) {
		t.Fatalf("hook observations = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("hook observations = %v, want %v", seen, want)
		}
	}

	unit := uow.NewUnitOfWork(db, gate)
	err := unit.WithTx(ctx, func(txCtx context.Context) error {
		if _, err := repo.Insert(txCtx, newRecord("3.00", payment.SourceWechat, baseTime)); err != nil {
			return err
		}
		_, err := repo.Insert(txCtx, newRecord("4.00", payment.SourceWechat, baseTime))
		return err
	})
	if err != nil {
		t.Fatalf("WithTx() error = %v", err)
	}
	if len(seen) != 4 || seen[3] != 3 {
		t.Fatalf("hook observations after tx = %v, want one more at count 3", seen)
	}
}
