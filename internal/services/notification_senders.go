package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/pratik-mahalle/assetwatch/internal/domain/alert"
	"github.com/pratik-mahalle/assetwatch/internal/domain/notification"
	"github.com/pratik-mahalle/assetwatch/internal/pkg/logger"
)

// SMTPConfig holds outgoing mail settings
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// SMTPSender delivers email through an SMTP relay
type SMTPSender struct {
	cfg      SMTPConfig
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPSender creates an email sender
func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg, sendMail: smtp.SendMail}
}

func (s *SMTPSender) Channel() notification.Channel {
	return notification.ChannelEmail
}

func (s *SMTPSender) Send(ctx context.Context, msg *notification.Message) error {
	to := msg.Recipient.Contact.Email
	if to == "" {
		return fmt.Errorf("recipient %s has no email address", msg.Recipient.ID)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if s.cfg.User != "" {
		auth = smtp.PlainAuth("", s.cfg.User, s.cfg.Password, s.cfg.Host)
	}

	var body bytes.Buffer
	fmt.Fprintf(&body, "From: %s\r\n", s.cfg.From)
	fmt.Fprintf(&body, "To: %s\r\n", to)
	fmt.Fprintf(&body, "Subject: %s\r\n", msg.Subject)
	body.WriteString("MIME-Version: 1.0\r\n")
	body.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n\r\n")
	body.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	if err := s.sendMail(addr, auth, s.cfg.From, []string{to}, body.Bytes()); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// LogSender writes messages to the log instead of delivering them
type LogSender struct {
	channel notification.Channel
	logger  *logger.Logger
}

// NewLogSender creates a sender for channel that only logs
func NewLogSender(channel notification.Channel, log *logger.Logger) *LogSender {
	return &LogSender{channel: channel, logger: log.Component("notifications")}
}

func (s *LogSender) Channel() notification.Channel {
	return s.channel
}

func (s *LogSender) Send(ctx context.Context, msg *notification.Message) error {
	s.logger.WithFields(map[string]interface{}{
		"channel":      s.channel,
		"recipient_id": msg.Recipient.ID,
		"alert_id":     msg.Alert.ID,
		"subject":      msg.Subject,
	}).Info("Notification logged (delivery not configured)")
	return nil
}

// SlackSender posts push notifications to a Slack incoming webhook
type SlackSender struct {
	webhookURL string
	httpClient *http.Client
}

// NewSlackSender creates a push sender
func NewSlackSender(webhookURL string, timeout time.Duration) *SlackSender {
	return &SlackSender{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (s *SlackSender) Channel() notification.Channel {
	return notification.ChannelPush
}

func (s *SlackSender) Send(ctx context.Context, msg *notification.Message) error {
	payload, err := json.Marshal(buildSlackMessage(msg))
	if err != nil {
		return fmt.Errorf("failed to marshal Slack message: %w", err)
	}
	return postJSON(ctx, s.httpClient, s.webhookURL, payload, nil)
}

// buildSlackMessage builds a Slack attachment coloured by priority
func buildSlackMessage(msg *notification.Message) map[string]interface{} {
	a := msg.Alert

	color := "#36a64f"
	switch a.Priority {
	case alert.PriorityCritical:
		color = "#ff0000"
	case alert.PriorityHigh:
		color = "#ff8c00"
	case alert.PriorityMedium:
		color = "#ffcc00"
	}

	emoji := ":bell:"
	switch a.Type {
	case alert.TypeMaintenanceOverdue, alert.TypeMaintenanceDue:
		emoji = ":wrench:"
	case alert.TypeAssetDamaged:
		emoji = ":warning:"
	case alert.TypeReturnOverdue:
		emoji = ":hourglass:"
	case alert.TypeLowAvailability, alert.TypeHighUtilization:
		emoji = ":chart_with_downwards_trend:"
	case alert.TypeWarrantyExpiring:
		emoji = ":page_facing_up:"
	case alert.TypeRequestPending:
		emoji = ":inbox_tray:"
	}

	fields := []map[string]interface{}{
		{"title": "Priority", "value": string(a.Priority), "short": true},
		{"title": "Status", "value": string(a.Status), "short": true},
	}
	if a.Department != "" {
		fields = append(fields, map[string]interface{}{"title": "Department", "value": a.Department, "short": true})
	}

	return map[string]interface{}{
		"text": fmt.Sprintf("<@%s>", msg.Recipient.ID),
		"attachments": []map[string]interface{}{
			{
				"color":  color,
				"title":  fmt.Sprintf("%s %s", emoji, a.Title),
				"text":   a.Message,
				"fields": fields,
				"footer": "AssetWatch",
				"ts":     a.Timestamp.Unix(),
			},
		},
	}
}

// SMSSender delivers critical alerts through a JSON HTTP SMS gateway
type SMSSender struct {
	gatewayURL string
	apiKey     string
	httpClient *http.Client
}

// NewSMSSender creates an SMS sender
func NewSMSSender(gatewayURL, apiKey string, timeout time.Duration) *SMSSender {
	return &SMSSender{
		gatewayURL: gatewayURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (s *SMSSender) Channel() notification.Channel {
	return notification.ChannelSMS
}

func (s *SMSSender) Send(ctx context.Context, msg *notification.Message) error {
	phone := msg.Recipient.Contact.Phone
	if phone == "" {
		return fmt.Errorf("recipient %s has no phone number", msg.Recipient.ID)
	}

	text := msg.Subject + ": " + msg.Alert.Message
	if len(text) > 160 {
		text = text[:157] + "..."
	}

	payload, err := json.Marshal(map[string]string{"to": phone, "message": text})
	if err != nil {
		return fmt.Errorf("failed to marshal SMS payload: %w", err)
	}

	headers := map[string]string{}
	if s.apiKey != "" {
		headers["Authorization"] = "Bearer " + s.apiKey
	}
	return postJSON(ctx, s.httpClient, s.gatewayURL, payload, headers)
}

// NopPublisher discards events
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, e *notification.Event) error {
	return nil
}

// WebhookPublisher posts signed events to a fixed set of URLs
type WebhookPublisher struct {
	urls       []string
	secret     string
	httpClient *http.Client
	logger     *logger.Logger
}

// NewWebhookPublisher creates a publisher. Events are signed when secret is set.
func NewWebhookPublisher(urls []string, secret string, timeout time.Duration, log *logger.Logger) *WebhookPublisher {
	return &WebhookPublisher{
		urls:       urls,
		secret:     secret,
		httpClient: &http.Client{Timeout: timeout},
		logger:     log.Component("webhooks"),
	}
}

// Publish delivers e to every URL, returning the joined delivery errors
func (p *WebhookPublisher) Publish(ctx context.Context, e *notification.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	headers := map[string]string{
		"X-Webhook-Event":     string(e.Type),
		"X-Webhook-Timestamp": strconv.FormatInt(e.Timestamp.Unix(), 10),
	}
	if p.secret != "" {
		headers["X-Webhook-Signature"] = SignPayload(payload, p.secret)
	}

	var errs []error
	for _, url := range p.urls {
		if err := postJSON(ctx, p.httpClient, url, payload, headers); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", url, err))
			continue
		}
		p.logger.WithFields(map[string]interface{}{
			"url":   url,
			"event": e.Type,
		}).Debug("Webhook delivered")
	}
	return stderrors.Join(errs...)
}

// SignPayload signs the payload with HMAC-SHA256
func SignPayload(payload []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return "sha256=" + hex.EncodeToString(h.Sum(nil))
}

func postJSON(ctx context.Context, client *http.Client, url string, payload []byte, headers map[string]string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("endpoint returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
