package document

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/waterreg/registry-server/internal/system/constants"
	"github.com/waterreg/registry-server/internal/system/log"
)

// Renderer is the external headless-browser service.
type Renderer interface {
	Screenshot(ctx context.Context, pageURL string) ([]byte, error)
	PDF(ctx context.Context, html string) ([]byte, error)
}

// ToolsClient calls the tools service over HTTP.
type ToolsClient struct {
	httpClient *http.Client
	baseURL    string
	logger     *log.Logger
}

type pdfMargins struct {
	Top    int `json:"top"`
	Bottom int `json:"bottom"`
	Left   int `json:"left"`
	Right  int `json:"right"`
}

type pdfRequest struct {
	HTML    string     `json:"html"`
	Height  int        `json:"height"`
	Width   int        `json:"width"`
	Margins pdfMargins `json:"margins"`
}

// NewToolsClient creates a client for the service at baseURL.
func NewToolsClient(baseURL string, timeout time.Duration) *ToolsClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &ToolsClient{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		baseURL: baseURL,
		logger:  log.GetLogger().With(log.String(log.LoggerKeyComponentName, "ToolsClient")),
	}
}

// Screenshot captures pageURL as JPEG.
func (c *ToolsClient) Screenshot(ctx context.Context, pageURL string) ([]byte, error) {
	q := url.Values{}
	q.Set("url", pageURL)
	q.Set("quality", "75")
	q.Set("type", "jpeg")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/screenshot?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create screenshot request: %w", err)
	}
	return c.do(ctx, req)
}

// PDF prints html on an A5-sized page.
func (c *ToolsClient) PDF(ctx context.Context, html string) ([]byte, error) {
	body, err := json.Marshal(pdfRequest{
		HTML:    html,
		Height:  877,
		Width:   620,
		Margins: pdfMargins{Top: 50, Bottom: 50, Left: 50, Right: 50},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal pdf request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/pdf", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create pdf request: %w", err)
	}
	req.Header.Set(constants.ContentTypeHeaderName, constants.ContentTypeJSON)
	return c.do(ctx, req)
}

func (c *ToolsClient) do(ctx context.Context, req *http.Request) ([]byte, error) {
	if id, ok := ctx.Value(log.ContextKeyCorrelationID).(string); ok {
		req.Header.Set(constants.CorrelationIDHeaderName, id)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)
	if err != nil {
		c.logger.WithContext(ctx).Error("Tools service call failed",
			log.String("url", req.URL.Path), log.Any("duration", duration), log.Error(err))
		return nil, fmt.Errorf("tools service call failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read tools response: %w", err)
	}

	c.logger.WithContext(ctx).Debug("Tools service response received",
		log.Int("statusCode", resp.StatusCode), log.Any("duration", duration), log.String("url", req.URL.Path))

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tools service returned status %d", resp.StatusCode)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("tools service returned an empty body")
	}
	return data, nil
}
