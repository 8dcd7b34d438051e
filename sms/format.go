package sms

import (
	"html"
	"strings"
	"time"
)

// DefaultLayout renders "1/2/2006, 3:04:05 PM".
const DefaultLayout = "1/2/2006, 3:04:05 PM"

// Formatter builds the HTML notification text for a Message.
type Formatter struct {
	// Location the timestamp is rendered in. Nil means UTC.
	Location *time.Location

	// Layout is a Go time layout. Empty means DefaultLayout.
	Layout string
}

// NewFormatter resolves zone as an IANA time zone name.
func NewFormatter(zone, layout string) (*Formatter, error) {
	loc := time.UTC
	if zone != "" {
		l, err := time.LoadLocation(zone)
		if err != nil {
			return nil, err
		}
		loc = l
	}
	return &Formatter{Location: loc, Layout: layout}, nil
}

// Format returns the notification text. Sender and body are HTML-escaped so
// they cannot break the Telegram markup.
func (f *Formatter) Format(m Message) string {
	var b strings.Builder
	b.WriteString("<b>📩 New SMS</b>\n\n")
	b.WriteString("<b>From:</b> ")
	b.WriteString(html.EscapeString(m.Sender))
	b.WriteString("\n<b>Time:</b> ")
	b.WriteString(f.FormatTime(m.ReceivedAt))
	b.WriteString("\n\n")
	b.WriteString(html.EscapeString(m.Text))
	return b.String()
}

// FormatTime renders t with the formatter's location and layout.
func (f *Formatter) FormatTime(t time.Time) string {
	loc := f.Location
	if loc == nil {
		loc = time.UTC
	}
	layout := f.Layout
	if layout == "" {
		layout = DefaultLayout
	}
	return t.In(loc).Format(layout)
}
