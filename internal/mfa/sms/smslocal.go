package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultBaseURL is the SMS Local bulk v2 endpoint used when Config.BaseURL is empty.
const DefaultBaseURL = "https://www.smslocal.com/dev/bulkV2"

const (
	defaultTimeout = 15 * time.Second
	maxErrorBody   = 512
)

var (
	ErrNotConfigured = errors.New("sms: api key not configured")
	ErrInvalidPhone  = errors.New("sms: invalid phone number")
)

// Sender delivers a one-time code to a phone number.
type Sender interface {
	SendOTP(ctx context.Context, phone, otp string) error
}

// Config configures the SMS Local client.
type Config struct {
	APIKey   string
	BaseURL  string
	SenderID string
	Timeout  time.Duration
}

// Client sends verification codes through the SMS Local OTP route.
type Client struct {
	cfg  Config
	http *http.Client
}

type otpRequest struct {
	Route     string `json:"route"`
	Numbers   string `json:"numbers"`
	Variables string `json:"variables"`
	SenderID  string `json:"sender_id,omitempty"`
}

// NewClient fills in defaults for BaseURL and Timeout.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}
}

// Digits strips formatting from an enrolled phone number ("+1 (555) 010-0000")
// and returns the country code and subscriber number as digits only.
func Digits(phone string) (string, error) {
	var b strings.Builder
	for i, r := range strings.TrimSpace(phone) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
		default:
			return "", ErrInvalidPhone
		}
	}
	if n := b.Len(); n < 8 || n > 15 {
		return "", ErrInvalidPhone
	}
	return b.String(), nil
}

// SendOTP never logs or echoes the code.
func (c *Client) SendOTP(ctx context.Context, phone, otp string) error {
	if c.cfg.APIKey == "" {
		return ErrNotConfigured
	}
	number, err := Digits(phone)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(otpRequest{Route: "otp", Numbers: number, Variables: otp, SenderID: c.cfg.SenderID})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.cfg.APIKey)
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("sms: send: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("sms: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	return nil
}
