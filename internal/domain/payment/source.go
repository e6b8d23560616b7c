package payment

import (
	"fmt"
	"strings"
)

// Source is the closed set of payment apps the pipeline understands.
type Source uint8

const (
	sourceUnknown Source = iota
	SourceAlipay
	SourceWechat

	sourceCount
)

const (
	AlipayOrigin = "com.eg.android.AlipayGphone"
	WechatOrigin = "com.tencent.mm"
)

type sourceSpec struct {
	name     string
	label    string
	origin   string
	keywords []string
}

// sourceSpecs is the only place per-source data lives. Adding a Source
// constant without a row here panics at init.
var sourceSpecs = [sourceCount]sourceSpec{
	SourceAlipay: {
		name:   "ALIPAY",
		label:  "支付宝",
		origin: AlipayOrigin,
		keywords: []string{
			"收钱到账",
			"收款到账",
			"支付宝收钱",
			"转账到账",
		},
	},
	SourceWechat: {
		name:   "WECHAT",
		label:  "微信",
		origin: WechatOrigin,
		keywords: []string{
			"微信收款助手",
			"收款到账通知",
			"微信支付收款",
			"收款成功",
		},
	},
}

var sourceByOrigin = map[string]Source{}

func init() {
	for _, s := range Sources() {
		entry := sourceSpecs[s]
		if entry.name == "" || entry.origin == "" || len(entry.keywords) == 0 {
			panic(fmt.Sprintf("payment: source %d has no table entry", s))
		}
		if _, dup := sourceByOrigin[entry.origin]; dup {
			panic("payment: duplicate origin " + entry.origin)
		}
		sourceByOrigin[entry.origin] = s
	}
}

// Sources lists every known source in declaration order.
func Sources() []Source {
	out := make([]Source, 0, sourceCount-1)
	for s := sourceUnknown + 1; s < sourceCount; s++ {
		out = append(out, s)
	}
	return out
}

// ClassifyOrigin maps an origin identifier to its source. Unknown origins
// report false; they are not an error.
func ClassifyOrigin(origin string) (Source, bool) {
	s, ok := sourceByOrigin[origin]
	return s, ok
}

func ParseSource(raw string) (Source, error) {
	normalized := strings.ToUpper(strings.TrimSpace(raw))
	for _, s := range Sources() {
		if sourceSpecs[s].name == normalized {
			return s, nil
		}
	}
	return sourceUnknown, fmt.Errorf("%w: %q", ErrUnknownSource, raw)
}

func (s Source) Valid() bool {
	return s > sourceUnknown && s < sourceCount
}

func (s Source) String() string {
	if !s.Valid() {
		return fmt.Sprintf("Source(%d)", uint8(s))
	}
	return sourceSpecs[s].name
}

// Label is the human-facing name of the payment app.
func (s Source) Label() string {
	if !s.Valid() {
		return "-"
	}
	return sourceSpecs[s].label
}

func (s Source) Origin() string {
	if !s.Valid() {
		return ""
	}
	return sourceSpecs[s].origin
}

func (s Source) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownSource, uint8(s))
	}
	return []byte(s.String()), nil
}

func (s *Source) UnmarshalText(text []byte) error {
	parsed, err := ParseSource(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
