package client

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"apteka/parser/internal/config"
	"apteka/parser/internal/domain"
	"apteka/parser/internal/proxy"

	log "github.com/sirupsen/logrus"
	"go.uber.org/ratelimit"
	"resty.dev/v3"
)

// AptekaClient is the fetch capability for the catalog JSON API.
// Every failure it returns wraps domain.ErrFetchFailure.
type AptekaClient interface {
	GetCatalogPage(ctx context.Context, cursor domain.PageCursor) ([]domain.ProductStub, error)
	GetProductDetail(ctx context.Context, id int64) (*domain.ProductDetail, error)
}

type aptekaClient struct {
	rl            ratelimit.Limiter
	baseURL       string
	cookieHeader  string
	httpClient    *resty.Client
	proxySupplier proxy.ProxySupplier
	breaker       *circuitBreaker

	// held for reading by in-flight requests, for writing while switching proxy
	proxyMu sync.RWMutex
}

type catalogSearchResponse struct {
	Goods *[]domain.ProductStub `json:"goods"`
}

func NewAptekaClient(cfg config.AptekaConfig, proxySupplier proxy.ProxySupplier) AptekaClient {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(2*time.Second).
		SetRetryMaxWaitTime(10*time.Second).
		SetHeader("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36").
		SetHeader("Accept", "application/json, text/plain, */*").
		SetHeader("Accept-Language", "ru-RU,ru;q=0.9,en;q=0.5").
		SetTLSClientConfig(&tls.Config{
			InsecureSkipVerify: true,
		})

	if proxySupplier != nil {
		if proxyURL := proxySupplier.Get(); proxyURL != "" {
			client.SetProxy(proxyURL)
			log.Infof("🔗 Using initial proxy: %s", proxyURL)
		}
	}

	rl := ratelimit.NewUnlimited()
	if cfg.MaxRequestsPerSecond > 0 {
		rl = ratelimit.New(cfg.MaxRequestsPerSecond)
	}

	return &aptekaClient{
		rl:            rl,
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		cookieHeader:  cookieHeader(cfg.Cookies),
		httpClient:    client,
		proxySupplier: proxySupplier,
		breaker:       newCircuitBreaker(30 * time.Minute),
	}
}

func (c *aptekaClient) GetCatalogPage(ctx context.Context, cursor domain.PageCursor) ([]domain.ProductStub, error) {
	url := c.baseURL + "/api/catalog/search"
	params := map[string]string{
		"slug":   cursor.Slug.String(),
		"offset": strconv.Itoa(cursor.Offset),
		"limit":  strconv.Itoa(cursor.PageSize),
	}

	var page catalogSearchResponse
	if err := c.fetchJSON(ctx, url, params, &page); err != nil {
		return nil, fmt.Errorf("catalog page %s@%d: %w", cursor.Slug, cursor.Offset, err)
	}
	if page.Goods == nil {
		return nil, fmt.Errorf("catalog page %s@%d: %w: response has no goods", cursor.Slug, cursor.Offset, domain.ErrFetchFailure)
	}

	log.Debugf("Fetched catalog page %s@%d with %d goods", cursor.Slug, cursor.Offset, len(*page.Goods))
	return *page.Goods, nil
}

func (c *aptekaClient) GetProductDetail(ctx context.Context, id int64) (*domain.ProductDetail, error) {
	url := fmt.Sprintf("%s/api/catalog/%d", c.baseURL, id)

	var detail domain.ProductDetail
	if err := c.fetchJSON(ctx, url, nil, &detail); err != nil {
		return nil, fmt.Errorf("product %d: %w", id, err)
	}

	log.Debugf("Fetched product detail %d", id)
	return &detail, nil
}

func (c *aptekaClient) fetchJSON(ctx context.Context, url string, params map[string]string, out any) error {
	body, err := c.fetch(ctx, url, params)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrFetchFailure, err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decode %s: %w", domain.ErrFetchFailure, url, err)
	}
	return nil
}

func (c *aptekaClient) fetch(ctx context.Context, url string, params map[string]string) ([]byte, error) {
	if c.breaker.isOpen() {
		remaining := c.breaker.remaining()
		log.Debugf("🚫 Request blocked by circuit breaker. Remaining time: %v", remaining.Round(time.Second))
		return nil, fmt.Errorf("circuit breaker is open - requests disabled for %v more", remaining.Round(time.Second))
	}

	c.rl.Take()

	resp, err := c.do(ctx, url, params)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode() == http.StatusTooManyRequests {
		log.Warnf("🚫 Rate limit exceeded for URL: %s", url)

		if newProxy := c.rotateProxy(); newProxy != "" {
			retryResp, retryErr := c.do(ctx, url, params)
			if retryErr == nil && !retryResp.IsError() {
				log.Infof("✅ Retry successful with new proxy")
				return []byte(retryResp.String()), nil
			}
		}

		c.breaker.trip()
		return nil, fmt.Errorf("rate limited - circuit breaker activated for %v", c.breaker.delay)
	}

	if resp.IsError() {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode(), resp.Status())
	}

	return []byte(resp.String()), nil
}

func (c *aptekaClient) do(ctx context.Context, url string, params map[string]string) (*resty.Response, error) {
	req := c.httpClient.R().
		SetContext(ctx).
		SetQueryParams(params)
	if c.cookieHeader != "" {
		req.SetHeader("Cookie", c.cookieHeader)
	}

	c.proxyMu.RLock()
	resp, err := req.Get(url)
	c.proxyMu.RUnlock()
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("request cancelled: %w", ctx.Err())
		}
		return nil, fmt.Errorf("failed to fetch URL %s: %w", url, err)
	}
	return resp, nil
}

// rotateProxy switches the shared client to the next proxy and returns it,
// or returns "" when the pool has no other proxy to switch to.
func (c *aptekaClient) rotateProxy() string {
	if c.proxySupplier == nil || c.proxySupplier.Len() < 2 {
		return ""
	}

	c.proxyMu.Lock()
	defer c.proxyMu.Unlock()

	newProxy := c.proxySupplier.Get()
	log.Infof("🔄 Switching to new proxy: %s", newProxy)
	c.httpClient.SetProxy(newProxy)
	return newProxy
}

// cookieHeader renders the fixed cookie set in a stable order.
func cookieHeader(cookies map[string]string) string {
	names := make([]string, 0, len(cookies))
	for name := range cookies {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, (&http.Cookie{Name: name, Value: cookies[name]}).String())
	}
	return strings.Join(parts, "; ")
}
