// Package payment предоставляет клиент платёжной системы для работы
// с платёжными намерениями.
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrNotConfigured возвращается, если клиент не настроен (нет секретного ключа).
var ErrNotConfigured = errors.New("payment client not configured")

// clientSecretDelimiter отделяет идентификатор платёжного намерения
// от секретной части client_secret.
const clientSecretDelimiter = "_secret"

// Client инкапсулирует HTTP-взаимодействие с платёжной системой.
type Client struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
}

// Intent описывает платёжное намерение, созданное платёжной системой.
type Intent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
}

// Metadata содержит данные сессии, прикрепляемые к платёжному намерению.
type Metadata struct {
	Bag      string
	SaveInfo string
	Username string
}

// NewClient создаёт клиент платёжной системы по указанному адресу API
// и секретному ключу.
func NewClient(baseURL, secretKey string) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		secretKey: secretKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// IntentID возвращает идентификатор платёжного намерения — часть
// client_secret до разделителя. Пустая строка означает некорректный секрет.
func IntentID(clientSecret string) string {
	pid, _, found := strings.Cut(clientSecret, clientSecretDelimiter)
	if !found {
		return ""
	}
	return pid
}

// CreateIntent создаёт платёжное намерение на указанную сумму в минимальных
// единицах валюты и возвращает его вместе с client_secret.
func (c *Client) CreateIntent(ctx context.Context, amount int64, currency string) (*Intent, error) {
	if c == nil || c.secretKey == "" {
		return nil, ErrNotConfigured
	}

	form := url.Values{}
	form.Set("amount", strconv.FormatInt(amount, 10))
	form.Set("currency", currency)

	var intent Intent
	if err := c.postForm(ctx, "/v1/payment_intents", form, &intent); err != nil {
		return nil, err
	}

	return &intent, nil
}

// ModifyIntentMetadata обновляет метаданные платёжного намерения.
// Последняя запись побеждает, повторный вызов с теми же данными безопасен.
func (c *Client) ModifyIntentMetadata(ctx context.Context, id string, md Metadata) error {
	if c == nil || c.secretKey == "" {
		return ErrNotConfigured
	}

	form := url.Values{}
	form.Set("metadata[bag]", md.Bag)
	form.Set("metadata[save_info]", md.SaveInfo)
	form.Set("metadata[username]", md.Username)

	return c.postForm(ctx, "/v1/payment_intents/"+id, form, nil)
}

func (c *Client) postForm(ctx context.Context, path string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path,
		strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+c.secretKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("payment api status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}
