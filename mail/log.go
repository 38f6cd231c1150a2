package mail

import (
	"context"
	"log/slog"

	"github.com/photoshare/photoauth"
)

// LogMailer logs the confirmation link instead of sending mail.
type LogMailer struct {
	logger *slog.Logger
}

var _ photoauth.Mailer = (*LogMailer)(nil)

func NewLogMailer(logger *slog.Logger) *LogMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMailer{logger: logger}
}

func (m *LogMailer) SendVerification(ctx context.Context, vm photoauth.VerificationMail) error {
	m.logger.InfoContext(ctx, "verification mail",
		"to", vm.Email,
		"link", ConfirmLink(vm.BaseURL, vm.Token),
	)
	return nil
}
