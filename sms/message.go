// Package sms renders inbound SMS events as Telegram notifications.
package sms

import "time"

// Message is an SMS received by a registered device.
type Message struct {
	DeviceID   string
	Sender     string
	Text       string
	ReceivedAt time.Time
}

// TimeFromMillis converts an epoch-milliseconds timestamp. A nil or zero
// value yields now().
func TimeFromMillis(ms *int64, now func() time.Time) time.Time {
	if ms == nil || *ms == 0 {
		return now()
	}
	return time.UnixMilli(*ms)
}
