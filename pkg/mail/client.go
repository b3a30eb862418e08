package mail

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	defaultHost  = "https://api.sendgrid.com"
	sendEndpoint = "/v3/mail/send"
)

var errAPIKeyRequired = errors.New("sendgrid api key is required")

// Address is a display name plus email.
type Address struct {
	Name  string
	Email string
}

// Attachment is an inline file sent with a message.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Message is a single transactional email.
type Message struct {
	To          []Address
	ReplyTo     *Address
	Subject     string
	Text        string
	HTML        string
	Attachments []Attachment
}

// Sender delivers transactional email.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Client sends mail through the SendGrid v3 API.
type Client struct {
	apiKey string
	host   string
	from   Address
}

// NewClient builds a SendGrid backed sender from config.
func NewClient(cfg config.SendgridConfig) (*Client, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, errAPIKeyRequired
	}
	if strings.TrimSpace(cfg.DefaultFrom) == "" {
		return nil, errors.New("sendgrid from email is required")
	}
	return &Client{
		apiKey: key,
		host:   defaultHost,
		from:   Address{Name: cfg.FromName, Email: cfg.DefaultFrom},
	}, nil
}

// NewSender returns the SendGrid client when configured, otherwise a logging sender for dev.
func NewSender(cfg config.SendgridConfig, isDev bool, logg *logger.Logger) (Sender, error) {
	client, err := NewClient(cfg)
	if err == nil {
		return client, nil
	}
	if errors.Is(err, errAPIKeyRequired) && isDev {
		return &LogSender{logg: logg}, nil
	}
	return nil, err
}

func (c *Client) Send(ctx context.Context, msg Message) error {
	if err := validate(msg); err != nil {
		return err
	}

	body := sgmail.GetRequestBody(c.build(msg))
	request := sendgrid.GetRequest(c.apiKey, sendEndpoint, c.host)
	request.Method = http.MethodPost
	request.Body = body

	resp, err := sendgrid.MakeRequestWithContext(ctx, request)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("sendgrid send: status %d: %s", resp.StatusCode, truncate(resp.Body, 512))
	}
	return nil
}

func (c *Client) build(msg Message) *sgmail.SGMailV3 {
	m := sgmail.NewV3Mail()
	m.SetFrom(sgmail.NewEmail(c.from.Name, c.from.Email))
	m.Subject = msg.Subject

	p := sgmail.NewPersonalization()
	for _, to := range msg.To {
		p.AddTos(sgmail.NewEmail(to.Name, to.Email))
	}
	m.AddPersonalizations(p)

	if msg.ReplyTo != nil {
		m.SetReplyTo(sgmail.NewEmail(msg.ReplyTo.Name, msg.ReplyTo.Email))
	}
	if msg.Text != "" {
		m.AddContent(sgmail.NewContent("text/plain", msg.Text))
	}
	if msg.HTML != "" {
		m.AddContent(sgmail.NewContent("text/html", msg.HTML))
	}
	for _, att := range msg.Attachments {
		a := sgmail.NewAttachment()
		a.SetContent(base64.StdEncoding.EncodeToString(att.Content))
		a.SetType(att.ContentType)
		a.SetFilename(att.Filename)
		a.SetDisposition("attachment")
		m.AddAttachment(a)
	}
	return m
}

// LogSender writes messages to the log instead of delivering them.
type LogSender struct {
	logg *logger.Logger
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	if err := validate(msg); err != nil {
		return err
	}
	if s.logg != nil {
		recipients := make([]string, 0, len(msg.To))
		for _, to := range msg.To {
			recipients = append(recipients, to.Email)
		}
		ctx = s.logg.WithFields(ctx, map[string]any{
			"to":          recipients,
			"subject":     msg.Subject,
			"attachments": len(msg.Attachments),
		})
		s.logg.Info(ctx, "mail delivery skipped (no sendgrid key)")
	}
	return nil
}

func validate(msg Message) error {
	if len(msg.To) == 0 {
		return errors.New("at least one recipient is required")
	}
	for _, to := range msg.To {
		if strings.TrimSpace(to.Email) == "" {
			return errors.New("recipient email is required")
		}
	}
	if strings.TrimSpace(msg.Subject) == "" {
		return errors.New("subject is required")
	}
	if msg.Text == "" && msg.HTML == "" {
		return errors.New("message body is required")
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
