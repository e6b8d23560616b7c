package payment

import "strings"

// NotificationEvent is one notification as delivered by the event source.
type NotificationEvent struct {
	Origin  string `json:"origin"`
	Title   string `json:"title,omitempty"`
	Body    string `json:"body,omitempty"`
	BigText string `json:"big_text,omitempty"`
	SubText string `json:"sub_text,omitempty"`
	Key     string `json:"key,omitempty"`
}

// AssembleText joins title, body, big text and sub text in that order with a
// single space, skipping empty fragments.
func AssembleText(event NotificationEvent) string {
	var b strings.Builder
	for _, fragment := range [...]string{event.Title, event.Body, event.BigText, event.SubText} {
		if fragment == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(fragment)
	}
	return b.String()
}
