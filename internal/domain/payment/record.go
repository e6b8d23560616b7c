package payment

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Record is a captured incoming payment. ID is assigned by the store and is
// zero until the record has been inserted.
type Record struct {
	ID          uint64          `json:"id"`
	Amount      decimal.Decimal `json:"amount"`
	Source      Source          `json:"source"`
	Timestamp   time.Time       `json:"timestamp"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	OriginalKey *string         `json:"original_key,omitempty"`
}

// Validate checks the invariants every stored record must satisfy.
func (r Record) Validate() error {
	if !r.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive, got %s", ErrInvalidRecord, r.Amount)
	}
	if !r.Source.Valid() {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, ErrUnknownSource)
	}
	if strings.TrimSpace(r.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidRecord)
	}
	if r.Timestamp.IsZero() {
		return fmt.Errorf("%w: timestamp is required", ErrInvalidRecord)
	}
	if !storable(r.Timestamp) {
		return fmt.Errorf("%w: timestamp %s is outside the storable range", ErrInvalidRecord, r.Timestamp.UTC().Format(time.RFC3339))
	}
	return nil
}

// storable reports whether t survives the unix-nanosecond column, which
// covers roughly the years 1678 to 2262.
func storable(t time.Time) bool {
	return time.Unix(0, t.UnixNano()).Equal(t)
}

func (r Record) Key() string {
	if r.OriginalKey == nil {
		return ""
	}
	return *r.OriginalKey
}

type BuildInput struct {
	Source       Source
	Text         string
	Amount       decimal.Decimal
	Title        string
	Key          string
	CapturedAt   time.Time
	DefaultTitle string
}

// BuildRecord assembles a record from already validated pipeline output.
func BuildRecord(in BuildInput) Record {
	title := in.Title
	if title == "" {
		title = in.DefaultTitle
	}
	if title == "" {
		title = DefaultTitle
	}

	var key *string
	if in.Key != "" {
		k := in.Key
		key = &k
	}

	return Record{
		Amount:      in.Amount,
		Source:      in.Source,
		Timestamp:   in.CapturedAt.UTC().Round(0),
		Title:       title,
		Description: in.Text,
		OriginalKey: key,
	}
}

// DefaultTitle labels records whose notification carried no title.
const DefaultTitle = "收款通知"
