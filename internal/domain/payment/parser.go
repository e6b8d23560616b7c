package payment

import (
	"time"

	"github.com/shopspring/decimal"
)

// DropReason explains why an event did not produce a record.
type DropReason string

const (
	DropNone          DropReason = ""
	DropUnknownOrigin DropReason = "unknown_origin"
	DropNotPayment    DropReason = "not_payment"
	DropNoAmount      DropReason = "no_amount"
)

// Parser runs assemble -> classify -> filter -> extract -> build. It holds no
// mutable state and is safe for concurrent use.
type Parser struct {
	rules        *Rules
	defaultTitle string
}

func NewParser(rules *Rules, defaultTitle string) *Parser {
	if rules == nil {
		rules = DefaultRules()
	}
	if defaultTitle == "" {
		defaultTitle = DefaultTitle
	}
	return &Parser{rules: rules, defaultTitle: defaultTitle}
}

func (p *Parser) Rules() *Rules {
	return p.rules
}

// Parse returns the record for event or the reason it was dropped.
func (p *Parser) Parse(event NotificationEvent, capturedAt time.Time) (Record, DropReason) {
	text := AssembleText(event)

	source, ok := ClassifyOrigin(event.Origin)
	if !ok {
		return Record{}, DropUnknownOrigin
	}
	if !p.rules.IsPaymentNotification(text, source) {
		return Record{}, DropNotPayment
	}

	amount, ok := p.rules.ExtractAmount(text)
	if !ok || !amount.GreaterThan(decimal.Zero) {
		return Record{}, DropNoAmount
	}

	return BuildRecord(BuildInput{
		Source:       source,
		Text:         text,
		Amount:       amount,
		Title:        event.Title,
		Key:          event.Key,
		CapturedAt:   capturedAt,
		DefaultTitle: p.defaultTitle,
	}), DropNone
}
