// Package sender отправляет служебные письма пользователям платформы.
package sender

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"strings"

	"github.com/magabrotheeeer/lms-identity/internal/apperr"
	"github.com/magabrotheeeer/lms-identity/internal/lib/sl"
	"github.com/magabrotheeeer/lms-identity/internal/lib/smtp"
)

// SenderService отправляет письма через SMTP транспорт.
type SenderService struct {
	transport smtp.TransportInterface
	log       *slog.Logger
}

// NewSenderService создает новый экземпляр SenderService.
func NewSenderService(log *slog.Logger, transport smtp.TransportInterface) *SenderService {
	return &SenderService{
		transport: transport,
		log:       log,
	}
}

// SendHTML отправляет HTML-письмо одному получателю.
// Любой сбой возвращается как apperr.ErrUpstream.
func (s *SenderService) SendHTML(ctx context.Context, to, subject, html string) error {
	const op = "sender.SendHTML"
	if err := s.sendEmail(ctx, to, subject, html); err != nil {
		return apperr.Upstream(op, err)
	}
	return nil
}

func (s *SenderService) sendEmail(ctx context.Context, to, subject, body string) error {
	from := s.transport.From()
	msg := strings.Join([]string{
		"From: " + from,
		"To: " + to,
		"Subject: " + mime.QEncoding.Encode("utf-8", subject),
		"MIME-Version: 1.0",
		"Content-Type: text/html; charset=\"UTF-8\"",
		"",
		body,
	}, "\r\n")

	client, err := s.transport.Connect(ctx)
	if err != nil {
		s.log.Error("failed to connect to SMTP server", sl.Err(err))
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	if err := client.Mail(from); err != nil {
		s.log.Error("failed to set MAIL FROM", slog.String("from", from), sl.Err(err))
		return fmt.Errorf("mail from: %w", err)
	}

	if err := client.Rcpt(to); err != nil {
		s.log.Error("failed to set RCPT TO", slog.String("recipient", to), sl.Err(err))
		return fmt.Errorf("rcpt to: %w", err)
	}

	wc, err := client.Data()
	if err != nil {
		s.log.Error("failed to get Data writer", sl.Err(err))
		return fmt.Errorf("data: %w", err)
	}

	if _, err = wc.Write([]byte(msg)); err != nil {
		s.log.Error("failed to write email body", sl.Err(err))
		return fmt.Errorf("write body: %w", err)
	}

	if err = wc.Close(); err != nil {
		s.log.Error("failed to close Data writer", sl.Err(err))
		return fmt.Errorf("close data: %w", err)
	}

	if err = client.Quit(); err != nil {
		s.log.Error("failed to quit SMTP client", sl.Err(err))
		return fmt.Errorf("quit: %w", err)
	}

	s.log.Info("email sent successfully", slog.String("to", to))
	return nil
}
