package services

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/resend/resend-go/v2"

	"github.com/KOSOTSU-dev/tel-plus/internal/config"
	"github.com/KOSOTSU-dev/tel-plus/internal/logging"
)

// EmailService delivers transactional mail. With the "console"
// provider (the development default) messages are logged instead of
// sent.
type EmailService struct {
	cfg    *config.EmailConfig
	client *resend.Client
}

var sendResendEmail = func(ctx context.Context, client *resend.Client, params *resend.SendEmailRequest) error {
	_, err := client.Emails.SendWithContext(ctx, params)
	return err
}

func NewEmailService(cfg *config.EmailConfig) *EmailService {
	svc := &EmailService{cfg: cfg}
	if cfg.Provider == "resend" && cfg.ResendAPIKey != "" {
		svc.client = resend.NewClient(cfg.ResendAPIKey)
	}
	return svc
}

func (s *EmailService) SendVerificationEmail(ctx context.Context, to, token string) error {
	verifyURL := fmt.Sprintf("%s/verify-email?token=%s", s.cfg.BaseURL, token)
	subject, htmlBody, textBody := buildVerificationEmail(verifyURL)
	return s.send(ctx, to, subject, htmlBody, textBody)
}

func (s *EmailService) send(ctx context.Context, to, subject, htmlBody, textBody string) error {
	if s.client == nil {
		logging.Info("email (console provider)", map[string]interface{}{
			"to":      to,
			"subject": subject,
			"body":    textBody,
		})
		return nil
	}

	params := &resend.SendEmailRequest{
		From:    fmt.Sprintf("%s <%s>", s.cfg.FromName, s.cfg.FromAddress),
		To:      []string{to},
		Subject: subject,
		Html:    htmlBody,
		Text:    textBody,
	}
	if err := sendResendEmail(ctx, s.client, params); err != nil {
		return fmt.Errorf("sending email: %w", err)
	}
	return nil
}

func buildVerificationEmail(verifyURL string) (string, string, string) {
	safeURL := templateEscape(verifyURL)

	subject := "tel-plus のメールアドレスを確認してください"

	htmlBody := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; max-width: 640px; margin: 0 auto; padding: 24px;">
  <h1 style="color: #333; font-size: 24px;">tel-plus</h1>
  <p>以下のボタンからメールアドレスの確認を完了してください。</p>
  <p>
    <a href="%s" style="display: inline-block; background: #2563eb; color: white; padding: 10px 18px; text-decoration: none; border-radius: 6px; margin: 12px 0;">メールアドレスを確認</a>
  </p>
  <p style="color: #666; font-size: 14px;">このメールに心当たりがない場合は破棄してください。</p>
</body>
</html>`,
		safeURL,
	)

	textBody := fmt.Sprintf(`以下のリンクからメールアドレスの確認を完了してください。

%s

このメールに心当たりがない場合は破棄してください。

--
tel-plus`,
		verifyURL,
	)

	return subject, htmlBody, textBody
}

func templateEscape(s string) string {
	return strings.ReplaceAll(html.EscapeString(s), "`", "&#96;")
}
