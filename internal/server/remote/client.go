// Package remote talks to the media platform's add-on collection API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/addonkeeper/internal/common"
	"github.com/dmitrijs2005/addonkeeper/internal/logging"
	"github.com/dmitrijs2005/addonkeeper/internal/server/models"
	"github.com/hashicorp/go-cleanhttp"
	"golang.org/x/time/rate"
)

const (
	methodGet = "addonCollectionGet"
	methodSet = "addonCollectionSet"
)

// Client reads and replaces users' add-on collections. Requests are
// throttled client-side so batch syncs stay within the platform's limits.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	logger  logging.Logger
}

// NewClient returns a Client for the API rooted at baseURL. limit is in
// requests per second; a non-positive limit disables throttling.
func NewClient(baseURL string, timeout time.Duration, limit float64, burst int, logger logging.Logger) *Client {
	httpClient := cleanhttp.DefaultPooledClient()
	httpClient.Timeout = timeout

	l := rate.Inf
	if limit > 0 {
		l = rate.Limit(limit)
	}
	if burst < 1 {
		burst = 1
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/") + "/",
		http:    httpClient,
		limiter: rate.NewLimiter(l, burst),
		logger:  logger.With("module", "remote"),
	}
}

type apiError struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

type envelope struct {
	Result json.RawMessage `json:"result"`
	Error  *apiError       `json:"error"`
}

type collectionResult struct {
	Addons []models.RemoteAddon `json:"addons"`
}

type setResult struct {
	Success bool `json:"success"`
}

// GetCollection returns the user's collection in platform order.
func (c *Client) GetCollection(ctx context.Context, authKey string) ([]models.RemoteAddon, error) {
	var res collectionResult
	err := c.call(ctx, methodGet, map[string]any{
		"type":    "AddonCollectionGet",
		"authKey": authKey,
		"update":  true,
	}, &res)
	if err != nil {
		return nil, err
	}
	if res.Addons == nil {
		res.Addons = []models.RemoteAddon{}
	}
	return res.Addons, nil
}

// SetCollection replaces the user's whole collection with addons.
func (c *Client) SetCollection(ctx context.Context, authKey string, addons []models.RemoteAddon) error {
	if addons == nil {
		addons = []models.RemoteAddon{}
	}

	var res setResult
	err := c.call(ctx, methodSet, map[string]any{
		"type":    "AddonCollectionSet",
		"authKey": authKey,
		"addons":  addons,
	}, &res)
	if err != nil {
		return err
	}
	if !res.Success {
		return fmt.Errorf("%w: %s not acknowledged", common.ErrRemote, methodSet)
	}
	return nil
}

func (c *Client) call(ctx context.Context, method string, payload any, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+method, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", common.ErrRemote, method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", common.ErrRemote, method, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s: status %d", common.ErrRemote, method, resp.StatusCode)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("%w: %s: %v", common.ErrRemote, method, err)
	}
	if env.Error != nil {
		c.logger.Warn(ctx, "remote api error", "method", method, "code", env.Error.Code, "message", env.Error.Message)
		return fmt.Errorf("%w: %s: %s", common.ErrRemote, method, env.Error.Message)
	}
	if len(env.Result) == 0 || string(env.Result) == "null" {
		return fmt.Errorf("%w: %s: empty result", common.ErrRemote, method)
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("%w: %s: %v", common.ErrRemote, method, err)
	}
	return nil
}
