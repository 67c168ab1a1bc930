package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/smtp"
	"strings"

	"kidshop/internal/config"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/ses"
	"github.com/aws/aws-sdk-go/service/ses/sesiface"
	"github.com/rs/zerolog/log"
)

// ErrEmailNotConfigured is returned when neither SES nor SMTP is set up
var ErrEmailNotConfigured = errors.New("email service not configured")

// EmailService sends HTML email through Amazon SES, falling back to SMTP
type EmailService struct {
	sesClient sesiface.SESAPI
	sesFrom   string

	smtpHost     string
	smtpPort     string
	smtpUser     string
	smtpPassword string
	smtpFrom     string

	// sendMail is smtp.SendMail; replaced in tests
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmailService creates a new email service. It never fails when nothing is configured;
// SendEmail then returns ErrEmailNotConfigured.
func NewEmailService(cfg config.EmailConfig) (*EmailService, error) {
	s := &EmailService{
		smtpHost:     cfg.SMTPHost,
		smtpPort:     cfg.SMTPPort,
		smtpUser:     cfg.SMTPUser,
		smtpPassword: cfg.SMTPPassword,
		smtpFrom:     cfg.SMTPFrom,
		sendMail:     smtp.SendMail,
	}

	if cfg.SESConfigured() {
		sess, err := session.NewSession(&aws.Config{
			Region:      aws.String(cfg.AWSRegion),
			Credentials: credentials.NewStaticCredentials(cfg.AWSAccessKey, cfg.AWSSecretKey, ""),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create AWS session: %w", err)
		}
		s.sesClient = ses.New(sess)
		s.sesFrom = cfg.SESFrom
		log.Info().Str("region", cfg.AWSRegion).Str("from", cfg.SESFrom).Msg("AWS SES configured")
	}

	if cfg.SMTPConfigured() {
		log.Info().Str("host", cfg.SMTPHost).Msg("SMTP configured")
	}

	return s, nil
}

// Configured reports whether any transport is available
func (s *EmailService) Configured() bool {
	return s.sesClient != nil || s.smtpHost != ""
}

// SendEmail sends an HTML email. SES is tried first; on error or when SES is missing
// the message goes through SMTP.
func (s *EmailService) SendEmail(ctx context.Context, to []string, subject, body string) error {
	if len(to) == 0 {
		return fmt.Errorf("no recipients")
	}

	var sesErr error
	if s.sesClient != nil {
		sesErr = s.sendWithSES(ctx, to, subject, body)
		if sesErr == nil {
			return nil
		}
		log.Warn().Err(sesErr).Strs("to", to).Msg("SES send failed, trying SMTP fallback")
	}

	if s.smtpHost != "" {
		if err := s.sendWithSMTP(to, subject, body); err != nil {
			if sesErr != nil {
				return fmt.Errorf("%v; %w", sesErr, err)
			}
			return err
		}
		return nil
	}

	if sesErr != nil {
		return sesErr
	}
	return ErrEmailNotConfigured
}

func (s *EmailService) sendWithSES(ctx context.Context, to []string, subject, body string) error {
	var toAddresses []*string
	for _, addr := range to {
		toAddresses = append(toAddresses, aws.String(addr))
	}

	input := &ses.SendEmailInput{
		Destination: &ses.Destination{
			ToAddresses: toAddresses,
		},
		Message: &ses.Message{
			Body: &ses.Body{
				Html: &ses.Content{
					Charset: aws.String("UTF-8"),
					Data:    aws.String(body),
				},
			},
			Subject: &ses.Content{
				Charset: aws.String("UTF-8"),
				Data:    aws.String(subject),
			},
		},
		Source: aws.String(s.sesFrom),
	}

	if _, err := s.sesClient.SendEmailWithContext(ctx, input); err != nil {
		return fmt.Errorf("failed to send email via SES: %w", err)
	}
	return nil
}

func (s *EmailService) sendWithSMTP(to []string, subject, body string) error {
	message := buildMIMEMessage(s.smtpFrom, to, subject, body)

	var auth smtp.Auth
	if s.smtpUser != "" {
		auth = smtp.PlainAuth("", s.smtpUser, s.smtpPassword, s.smtpHost)
	}

	if err := s.sendMail(s.smtpHost+":"+s.smtpPort, auth, s.smtpFrom, to, message); err != nil {
		return fmt.Errorf("failed to send email via SMTP: %w", err)
	}
	return nil
}

func buildMIMEMessage(from string, to []string, subject, body string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + strings.Join(to, ", ") + "\r\n")
	// RFC 2047 encoded-word subject
	b.WriteString("Subject: =?UTF-8?B?" + encodeBase64(subject) + "?=\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
	b.WriteString(body)
	return []byte(b.String())
}

func encodeBase64(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}
