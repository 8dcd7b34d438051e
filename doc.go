// Package smsrelay relays SMS events from registered devices to Telegram.
//
// A device registers once with a bot token and a chat ID. Every SMS it then
// reports is rendered as an HTML notification and sent to that chat through
// the Telegram Bot API. Callers may also relay a message directly with
// explicit credentials.
//
// The registry lives in memory and is lost on restart. Nothing is retried:
// each relay is a single outbound call whose failure is reported to the
// caller as a *RelayError.
//
// Quick start:
//
//	r, err := smsrelay.New(
//	    smsrelay.WithStore(memory.New()),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	r.RegisterDevice(ctx, smsrelay.RegisterInput{
//	    DeviceID: "pixel-7",
//	    BotToken: "123456:ABC...",
//	    ChatID:   "987654321",
//	})
//
//	r.ProcessSMS(ctx, smsrelay.SMSInput{
//	    DeviceID: "pixel-7",
//	    Sender:   "+15551234567",
//	    Message:  "Your code is 4242",
//	})
package smsrelay
