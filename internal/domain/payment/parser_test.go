package payment

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

var capturedAt = time.Date(2026, 10, 18, 9, 30, 0, 0, time.FixedZone("CST", 8*3600))

func TestParseAlipayNotification(t *testing.T) {
	parser := NewParser(nil, "")
	event := NotificationEvent{
		Origin: AlipayOrigin,
		Title:  "支付宝",
		Body:   "您已收款到账15.50元",
		Key:    "0|com.eg.android.AlipayGphone|1|null|10086",
	}

	record, reason := parser.Parse(event, capturedAt)
	if reason != DropNone {
		t.Fatalf("Parse() reason = %q, want none", reason)
	}
	if record.ID != 0 {
		t.Fatalf("record.ID = %d, want 0 before insert", record.ID)
	}
	if !record.Amount.Equal(decimal.RequireFromString("15.50")) {
		t.Fatalf("record.Amount = %s, want 15.50", record.Amount)
	}
	if record.Source != SourceAlipay {
		t.Fatalf("record.Source = %v", record.Source)
	}
	if record.Title != "支付宝" {
		t.Fatalf("record.Title = %q", record.Title)
	}
	if record.Description != "支付宝 您已收款到账15.50元" {
		t.Fatalf("record.Description = %q", record.Description)
	}
	if record.Key() != event.Key {
		t.Fatalf("record.Key() = %q", record.Key())
	}
	if !record.Timestamp.Equal(capturedAt) || record.Timestamp.Location() != time.UTC {
		t.Fatalf("record.Timestamp = %v, want %v in UTC", record.Timestamp, capturedAt)
	}
	if err := record.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestParseWechatWithoutTitleUsesDefault(t *testing.T) {
	parser := NewParser(nil, "Payment notification")
	record, reason := parser.Parse(NotificationEvent{
		Origin: WechatOrigin,
		Body:   "微信收款助手 收款成功 ¥100.00",
	}, capturedAt)
	if reason != DropNone {
		t.Fatalf("Parse() reason = %q", reason)
	}
	if !record.Amount.Equal(decimal.RequireFromString("100")) {
		t.Fatalf("record.Amount = %s, want 100.00", record.Amount)
	}
	if record.Title != "Payment notification" {
		t.Fatalf("record.Title = %q", record.Title)
	}
	if record.OriginalKey != nil {
		t.Fatalf("record.OriginalKey = %v, want nil", *record.OriginalKey)
	}
}

func TestParseDropReasons(t *testing.T) {
	parser := NewParser(DefaultRules(), "")
	testCases := []struct {
		name  string
		event NotificationEvent
		want  DropReason
	}{
		{
			name:  "unknown origin with payment text",
			event: NotificationEvent{Origin: "com.example.fake", Body: "您已收款到账15.50元"},
			want:  DropUnknownOrigin,
		},
		{
			name:  "amount without keyword",
			event: NotificationEvent{Origin: AlipayOrigin, Body: "您有一笔订单 ¥88.00 待支付"},
			want:  DropNotPayment,
		},
		{
			name:  "keyword without amount",
			event: NotificationEvent{Origin: WechatOrigin, Title: "微信收款助手", Body: "收款成功"},
			want:  DropNoAmount,
		},
		{
			name:  "zero amount",
			event: NotificationEvent{Origin: AlipayOrigin, Body: "收款到账 收到0元"},
			want:  DropNoAmount,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, reason := parser.Parse(tc.event, capturedAt)
			if reason != tc.want {
				t.Fatalf("Parse() reason = %q, want %q", reason, tc.want)
			}
		})
	}
}

func TestRecordValidate(t *testing.T) {
	valid := Record{
		Amount:    decimal.RequireFromString("1.00"),
		Source:    SourceAlipay,
		Timestamp: capturedAt,
		Title:     DefaultTitle,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	invalid := []Record{
		{Amount: decimal.Zero, Source: SourceAlipay, Timestamp: capturedAt, Title: "t"},
		{Amount: decimal.RequireFromString("-1"), Source: SourceAlipay, Timestamp: capturedAt, Title: "t"},
		{Amount: decimal.RequireFromString("1"), Timestamp: capturedAt, Title: "t"},
		{Amount: decimal.RequireFromString("1"), Source: SourceWechat, Timestamp: capturedAt, Title: " "},
		{Amount: decimal.RequireFromString("1"), Source: SourceWechat, Title: "t"},
		{Amount: decimal.RequireFromString("1"), Source: SourceWechat, Title: "t", Timestamp: time.Date(2300, 1, 1, 0, 0, 0, 0, time.UTC)},
		{Amount: decimal.RequireFromString("1"), Source: SourceWechat, Title: "t", Timestamp: time.Date(1600, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	for i, record := range invalid {
		if err := record.Validate(); err == nil {
			t.Fatalf("Validate(invalid[%d]) error = nil, want error", i)
		}
	}
}
