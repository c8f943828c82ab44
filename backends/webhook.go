// Package backends hands queued music and speech requests to the programs playing them.
package backends

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"stream-lab/domain"
	"stream-lab/errors"
	"time"

	"github.com/goccy/go-json"
)

// WebhookBackend posts each request to an external player.
// The player reports completion later on the control API.
type WebhookBackend struct {
	url    string
	token  string
	client *http.Client
	log    *slog.Logger
}

func NewWebhookBackend(url, token string, timeout time.Duration, log *slog.Logger) *WebhookBackend {
	return &WebhookBackend{url: url, token: token, client: &http.Client{Timeout: timeout}, log: log}
}

func (w *WebhookBackend) Submit(ctx context.Context, req domain.BackendRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if w.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+w.token)
	}

	resp, err := w.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %s", errors.ErrExternalFailure, err.Error())
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s answered %d", errors.ErrExternalFailure, w.url, resp.StatusCode)
	}
	w.log.Debug("Request handed to webhook", "kind", req.Kind, "request_id", req.ID)
	return nil
}
