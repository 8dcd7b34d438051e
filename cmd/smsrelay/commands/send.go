package commands

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/xraph/smsrelay"
	"github.com/xraph/smsrelay/store/memory"
)

// send <text>: relay one message with explicit credentials.
func sendCmd() *cobra.Command {
	var (
		token    string
		chat     string
		endpoint string
		timeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "send <text>",
		Short: "Relay a single message to a Telegram chat",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := []smsrelay.Option{
				smsrelay.WithStore(memory.New()),
				smsrelay.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
				smsrelay.WithRelayTimeout(timeout),
			}
			if endpoint != "" {
				opts = append(opts, smsrelay.WithTelegramEndpoint(endpoint))
			}

			r, err := smsrelay.New(opts...)
			if err != nil {
				return err
			}
			defer r.Close()

			err = r.SendToTelegram(cmd.Context(), smsrelay.SendInput{
				BotToken: token,
				ChatID:   chat,
				Message:  strings.Join(args, " "),
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "sent")
			return nil
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "Telegram bot token")
	cmd.Flags().StringVar(&chat, "chat", "", "destination chat ID or @channel")
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "Bot API URL format (default public API)")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "request timeout")
	_ = cmd.MarkFlagRequired("token")
	_ = cmd.MarkFlagRequired("chat")
	return cmd
}
