package services

import (
	"context"
	"log/slog"
	"time"
)

type NotificationKind string

const (
	NotifyInviteSent            NotificationKind = "invite-sent"
	NotifyInviteResponse        NotificationKind = "invite-response"
	NotifyRegistrationConfirmed NotificationKind = "registration-confirmed"
	NotifyRoleChanged           NotificationKind = "role-changed"
	NotifyPaymentVerified       NotificationKind = "payment-verified"
	NotifyTeamIncomplete        NotificationKind = "team-incomplete"
)

// Notifier is the outbound mail sink. Implementations may fail independently;
// core operations never consult the result.
type Notifier interface {
	Notify(ctx context.Context, kind NotificationKind, recipient string, data map[string]string) error
}

const notifyTimeout = 10 * time.Second

// notifyAsync dispatches a notification after the core write has committed.
// Failures are logged and swallowed; the caller's operation already succeeded.
func notifyAsync(logger *slog.Logger, notifier Notifier, kind NotificationKind, recipient string, data map[string]string) {
	if notifier == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := notifier.Notify(ctx, kind, recipient, data); err != nil && logger != nil {
			logger.Warn("notification dispatch failed",
				slog.String("kind", string(kind)),
				slog.String("recipient", recipient),
				slog.Any("error", err))
		}
	}()
}
