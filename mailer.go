package authcore

import (
	"context"
	"fmt"

	"github.com/MrEthical07/authcore/internal/notify"
)

// Mailer delivers the two account emails. Calls happen on a background
// worker; errors are logged and never reach the caller of the operation
// that triggered them.
type Mailer interface {
	SendVerificationEmail(ctx context.Context, to, token string) error
	SendResetEmail(ctx context.Context, to, token string) error
}

func mailerSender(m Mailer) notify.Sender {
	return notify.SenderFunc(func(ctx context.Context, msg notify.Message) error {
		switch msg.Kind {
		case notify.KindVerification:
			return m.SendVerificationEmail(ctx, msg.To, msg.Token)
		case notify.KindReset:
			return m.SendResetEmail(ctx, msg.To, msg.Token)
		}
		return fmt.Errorf("unknown message kind %v", msg.Kind)
	})
}
