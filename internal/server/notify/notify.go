// Package notify delivers reload diffs and sync summaries to operators.
// Delivery is fire-and-forget: failures are logged and never reach the
// caller.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/dmitrijs2005/addonkeeper/internal/logging"
	"github.com/dmitrijs2005/addonkeeper/internal/server/reload"
	"github.com/hashicorp/go-cleanhttp"
)

// Summary aggregates one batch run.
type Summary struct {
	AccountID string `json:"accountId"`
	Scope     string `json:"scope"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	Skipped   int    `json:"skipped"`
	Total     int    `json:"total"`
}

// Notifier receives operator-facing events.
type Notifier interface {
	ReloadDiff(ctx context.Context, addonName string, diff reload.Diff)
	SyncSummary(ctx context.Context, summary Summary)
}

// Nop discards every event.
type Nop struct{}

func (Nop) ReloadDiff(context.Context, string, reload.Diff) {}
func (Nop) SyncSummary(context.Context, Summary)            {}

type event struct {
	Kind    string       `json:"kind"`
	Addon   string       `json:"addon,omitempty"`
	Diff    *reload.Diff `json:"diff,omitempty"`
	Summary *Summary     `json:"summary,omitempty"`
	SentAt  time.Time    `json:"sentAt"`
}

// WebhookNotifier posts events as JSON to a webhook URL.
type WebhookNotifier struct {
	url    string
	client *http.Client
	logger logging.Logger
	wg     sync.WaitGroup
}

// NewWebhookNotifier returns a notifier posting to url.
func NewWebhookNotifier(url string, timeout time.Duration, logger logging.Logger) *WebhookNotifier {
	client := cleanhttp.DefaultClient()
	client.Timeout = timeout
	return &WebhookNotifier{url: url, client: client, logger: logger.With("module", "notify")}
}

// ReloadDiff reports capability changes of one add-on. Empty diffs are
// not sent.
func (n *WebhookNotifier) ReloadDiff(ctx context.Context, addonName string, diff reload.Diff) {
	if diff.Empty() {
		return
	}
	n.send(ctx, event{Kind: "reload", Addon: addonName, Diff: &diff})
}

// SyncSummary reports the counts of one sync batch.
func (n *WebhookNotifier) SyncSummary(ctx context.Context, summary Summary) {
	n.send(ctx, event{Kind: "sync", Summary: &summary})
}

// Wait blocks until in-flight deliveries finish.
func (n *WebhookNotifier) Wait() {
	n.wg.Wait()
}

func (n *WebhookNotifier) send(ctx context.Context, ev event) {
	ev.SentAt = time.Now().UTC()
	body, err := json.Marshal(ev)
	if err != nil {
		n.logger.Error(ctx, "encode notification", "error", err)
		return
	}

	// Delivery must outlive the request that triggered it.
	ctx = context.WithoutCancel(ctx)

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		if err := n.post(ctx, body); err != nil {
			n.logger.Warn(ctx, "notification not delivered", "kind", ev.Kind, "error", err)
		}
	}()
}

func (n *WebhookNotifier) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook status %d", resp.StatusCode)
	}
	return nil
}
