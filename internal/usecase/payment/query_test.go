package payment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	domainpayment "paymonitor/internal/domain/payment"
	"paymonitor/internal/ports"
)

func TestQueryRecordsWindows(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		mustIngest(t, env.service, alipayEvent("收款到账1.00元"))
		env.clock.Advance(time.Minute)
		mustIngest(t, env.service, wechatEvent("微信支付收款2.00元"))
		env.clock.Advance(time.Minute)
	}

	page, err := env.service.QueryRecords(ctx, RecordQuery{Limit: 2})
	if err != nil {
		t.Fatalf("QueryRecords(page) error = %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("QueryRecords(page) len = %d, want 2", len(page))
	}

	wechat := domainpayment.SourceWechat
	filtered, err := env.service.QueryRecords(ctx, RecordQuery{
		Filter: ports.RecordFilter{Source: &wechat},
		Limit:  2,
		Offset: 1,
	})
	if err != nil {
		t.Fatalf("QueryRecords(filtered) error = %v", err)
	}
	if len(filtered) != 2 {
		t.Fatalf("QueryRecords(filtered) len = %d, want 2", len(filtered))
	}
	for _, record := range filtered {
		if record.Source != domainpayment.SourceWechat {
			t.Fatalf("QueryRecords(filtered) returned %v", record.Source)
		}
	}

	past, err := env.service.QueryRecords(ctx, RecordQuery{Filter: ports.RecordFilter{Source: &wechat}, Offset: 10})
	if err != nil {
		t.Fatalf("QueryRecords(past end) error = %v", err)
	}
	if len(past) != 0 {
		t.Fatalf("QueryRecords(past end) len = %d, want 0", len(past))
	}

	if _, err := env.service.QueryRecords(ctx, RecordQuery{Limit: -1}); !errors.Is(err, ports.ErrInvalidPage) {
		t.Fatalf("QueryRecords(limit=-1) error = %v, want ErrInvalidPage", err)
	}
}

func TestPatchRecord(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	stored := mustIngest(t, env.service, alipayEvent("收款到账1.00元"))
	amount := decimal.RequireFromString("2.50")
	title := "手工修正"

	patched, err := env.service.PatchRecord(ctx, stored.Record.ID, RecordPatch{Amount: &amount, Title: &title})
	if err != nil {
		t.Fatalf("PatchRecord() error = %v", err)
	}
	if !patched.Amount.Equal(amount) || patched.Title != title || patched.Source != domainpayment.SourceAlipay {
		t.Fatalf("PatchRecord() = %+v", patched)
	}

	zero := decimal.Zero
	if _, err := env.service.PatchRecord(ctx, stored.Record.ID, RecordPatch{Amount: &zero}); !errors.Is(err, domainpayment.ErrInvalidRecord) {
		t.Fatalf("PatchRecord(zero amount) error = %v, want ErrInvalidRecord", err)
	}
	if _, err := env.service.PatchRecord(ctx, stored.Record.ID+100, RecordPatch{Title: &title}); !errors.Is(err, ports.ErrRecordNotFound) {
		t.Fatalf("PatchRecord(missing) error = %v, want ErrRecordNotFound", err)
	}
}
