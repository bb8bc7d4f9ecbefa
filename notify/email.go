// Package notify sends transactional emails through the external dispatch endpoint
// (POST {endpoint}/api/send-email).
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/padraicbc/raceops/models"
)

// EmailType is the template selector understood by the dispatch endpoint.
type EmailType string

const (
	Welcome                EmailType = "welcome"
	PasswordChanged        EmailType = "passwordChanged"
	OrderConfirmation      EmailType = "orderConfirmation"
	PaymentPending         EmailType = "paymentPending"
	PaymentFailed          EmailType = "paymentFailed"
	KitShipped             EmailType = "kitShipped"
	OrderCancelled         EmailType = "orderCancelled"
	AbandonedCart          EmailType = "abandonedCart"
	ProfileUpdated         EmailType = "profileUpdated"
	ContactConfirmation    EmailType = "contactConfirmation"
	IdentificationPending  EmailType = "identificationPending"
	NewContactMessageAdmin EmailType = "newContactMessageAdmin"
)

// SettingsKey is the automation_settings row holding the per-type switches.
const SettingsKey = "emailConfig"

// Notifier is what services depend on. Notify never fails the caller.
type Notifier interface {
	Notify(ctx context.Context, to string, t EmailType, data map[string]any)
}

// SettingsReader loads the per-type enable switches.
type SettingsReader interface {
	GetAutomationSetting(ctx context.Context, key string) (*models.AutomationSetting, error)
}

type sendRequest struct {
	To   string         `json:"to"`
	Type EmailType      `json:"type"`
	Data map[string]any `json:"data"`
}

type sendResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Details string `json:"details"`
}

// Client posts emails to the dispatch endpoint.
type Client struct {
	endpoint string
	http     *http.Client
	settings SettingsReader
	log      *zap.Logger
}

// NewClient builds a client for the dispatch service at baseURL. settings may be nil,
// in which case every type is enabled.
func NewClient(baseURL string, settings SettingsReader, log *zap.Logger) *Client {
	return &Client{
		endpoint: strings.TrimRight(baseURL, "/") + "/api/send-email",
		http:     &http.Client{Timeout: 10 * time.Second},
		settings: settings,
		log:      log,
	}
}

// Send posts one email and returns the dispatcher's error, if any.
func (c *Client) Send(ctx context.Context, to string, t EmailType, data map[string]any) error {
	body, err := json.Marshal(sendRequest{To: to, Type: t, Data: data})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send %s email: %w", t, err)
	}
	defer resp.Body.Close()

	var out sendResponse
	_ = json.NewDecoder(resp.Body).Decode(&out)
	if resp.StatusCode >= http.StatusBadRequest {
		if out.Details != "" {
			return fmt.Errorf("send %s email: %d %s: %s", t, resp.StatusCode, out.Error, out.Details)
		}
		return fmt.Errorf("send %s email: %d %s", t, resp.StatusCode, out.Error)
	}
	return nil
}

func (c *Client) enabled(ctx context.Context, t EmailType) bool {
	if c.settings == nil {
		return true
	}
	setting, err := c.settings.GetAutomationSetting(ctx, SettingsKey)
	if err != nil {
		c.log.Warn("load email settings", zap.Error(err))
		return true
	}
	return setting.EmailEnabled(string(t))
}

// Notify sends the email if its type is enabled and logs any failure.
func (c *Client) Notify(ctx context.Context, to string, t EmailType, data map[string]any) {
	if strings.TrimSpace(to) == "" {
		return
	}
	if !c.enabled(ctx, t) {
		c.log.Debug("email type disabled", zap.String("type", string(t)))
		return
	}
	if err := c.Send(ctx, to, t, data); err != nil {
		c.log.Warn("email dispatch failed", zap.String("type", string(t)), zap.String("to", to), zap.Error(err))
		return
	}
	c.log.Info("email sent", zap.String("type", string(t)), zap.String("to", to))
}

// Discard is a Notifier that sends nothing. Used when no endpoint is configured.
type Discard struct{}

func (Discard) Notify(context.Context, string, EmailType, map[string]any) {}
