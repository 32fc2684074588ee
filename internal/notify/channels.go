package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
)

type ChannelName string

const (
	ChannelSMS   ChannelName = "sms"
	ChannelPush  ChannelName = "push"
	ChannelEmail ChannelName = "email"
)

// ErrNoDestination means the channel is enabled but the user has nowhere to receive it.
var ErrNoDestination = errors.New("notify: no destination")

// Channel delivers one message to one user.
type Channel interface {
	Name() ChannelName
	Enabled(p Preferences) bool
	Send(ctx context.Context, p Preferences, msg Message) error
}

// SMSSender is satisfied by the telephony provider.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

type SMSChannel struct {
	sender SMSSender
}

func NewSMSChannel(sender SMSSender) *SMSChannel { return &SMSChannel{sender: sender} }

func (c *SMSChannel) Name() ChannelName          { return ChannelSMS }
func (c *SMSChannel) Enabled(p Preferences) bool { return p.SMSEnabled }

func (c *SMSChannel) Send(ctx context.Context, p Preferences, msg Message) error {
	if p.Phone == "" {
		return ErrNoDestination
	}
	return c.sender.SendSMS(ctx, p.Phone, msg.Body)
}

// PushConfig holds the VAPID key pair used to sign Web Push requests.
type PushConfig struct {
	Subscriber      string
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	TTL             int
	HTTPClient      webpush.HTTPClient
}

type PushChannel struct {
	cfg PushConfig
}

func NewPushChannel(cfg PushConfig) *PushChannel {
	if cfg.TTL <= 0 {
		cfg.TTL = 60
	}
	return &PushChannel{cfg: cfg}
}

func (c *PushChannel) Name() ChannelName          { return ChannelPush }
func (c *PushChannel) Enabled(p Preferences) bool { return p.PushEnabled }

func (c *PushChannel) Send(ctx context.Context, p Preferences, msg Message) error {
	if p.Push == nil {
		return ErrNoDestination
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: p.Push.Endpoint,
		Keys:     webpush.Keys{Auth: p.Push.Auth, P256dh: p.Push.P256dh},
	}, &webpush.Options{
		HTTPClient:      c.cfg.HTTPClient,
		Subscriber:      c.cfg.Subscriber,
		VAPIDPublicKey:  c.cfg.VAPIDPublicKey,
		VAPIDPrivateKey: c.cfg.VAPIDPrivateKey,
		TTL:             c.cfg.TTL,
		Urgency:         webpush.UrgencyHigh,
	})
	if err != nil {
		return fmt.Errorf("notify: push: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("notify: push rejected: %d %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type EmailChannel struct {
	cfg      SMTPConfig
	sendMail sendMailFunc
}

func NewEmailChannel(cfg SMTPConfig) *EmailChannel {
	return &EmailChannel{cfg: cfg, sendMail: smtp.SendMail}
}

func (c *EmailChannel) Name() ChannelName          { return ChannelEmail }
func (c *EmailChannel) Enabled(p Preferences) bool { return p.EmailEnabled }

// Send has no context support in net/smtp; the dispatcher timeout bounds the wait instead.
func (c *EmailChannel) Send(ctx context.Context, p Preferences, msg Message) error {
	if p.Email == "" {
		return ErrNoDestination
	}
	if c.cfg.Host == "" {
		return errors.New("notify: smtp not configured")
	}
	var auth smtp.Auth
	if c.cfg.Username != "" {
		auth = smtp.PlainAuth("", c.cfg.Username, c.cfg.Password, c.cfg.Host)
	}
	addr := c.cfg.Host + ":" + strconv.Itoa(c.cfg.Port)

	done := make(chan error, 1)
	go func() {
		done <- c.sendMail(addr, auth, c.cfg.From, []string{p.Email}, composeEmail(c.cfg.From, p.Email, msg))
	}()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("notify: email: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func composeEmail(from, to string, msg Message) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + msg.Title + "\r\n")
	b.WriteString("Date: " + time.Now().UTC().Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(msg.Body + "\r\n")
	return []byte(b.String())
}
