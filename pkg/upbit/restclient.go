package upbit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type RESTClient struct {
	baseURL     string
	httpClient  *http.Client
	credentials Credentials
}

type Option func(*RESTClient)

// WithCredentials enables the private endpoints (accounts).
func WithCredentials(creds Credentials) Option {
	return func(c *RESTClient) { c.credentials = creds }
}

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *RESTClient) { c.httpClient = hc }
}

func NewRESTClient(baseURL string, timeout time.Duration, opts ...Option) *RESTClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &RESTClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *RESTClient) HTTPClient() *http.Client {
	return c.httpClient
}

// GetAccounts fetches every balance of the authenticated account.
func (c *RESTClient) GetAccounts(ctx context.Context) ([]Account, error) {
	token, err := c.credentials.Token("")
	if err != nil {
		return nil, err
	}

	var accounts []Account
	if err := c.get(ctx, accountsPath, nil, token, &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

// GetTickers fetches the current ticker for each market. Large market lists are split
// into several requests; results keep the order Upbit returns them in per request.
func (c *RESTClient) GetTickers(ctx context.Context, markets []string) ([]Ticker, error) {
	if len(markets) == 0 {
		return nil, nil
	}

	out := make([]Ticker, 0, len(markets))
	for start := 0; start < len(markets); start += maxTickerMarkets {
		end := min(start+maxTickerMarkets, len(markets))

		query := url.Values{}
		query.Set("markets", strings.Join(markets[start:end], ","))

		var batch []Ticker
		if err := c.get(ctx, tickerPath, query, "", &batch); err != nil {
			return nil, err
		}
		out = append(out, batch...)
	}
	return out, nil
}

// GetMarkets lists every market tradable on Upbit.
func (c *RESTClient) GetMarkets(ctx context.Context) ([]Market, error) {
	query := url.Values{}
	query.Set("isDetails", "false")

	var markets []Market
	if err := c.get(ctx, marketsPath, query, "", &markets); err != nil {
		return nil, err
	}
	return markets, nil
}

// GetMarketsByQuote returns the market codes quoted in quote, e.g. "KRW" -> ["KRW-BTC", ...].
func (c *RESTClient) GetMarketsByQuote(ctx context.Context, quote string) ([]string, error) {
	markets, err := c.GetMarkets(ctx)
	if err != nil {
		return nil, err
	}

	prefix := quote + "-"
	var codes []string
	for _, m := range markets {
		if strings.HasPrefix(m.Market, prefix) {
			codes = append(codes, m.Market)
		}
	}
	return codes, nil
}

func (c *RESTClient) get(ctx context.Context, path string, query url.Values, token string, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	// Construct the GET request with context for timeout/cancel support
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
		var parsed errorResponse
		if json.Unmarshal(body, &parsed) == nil && parsed.Error.Name != "" {
			apiErr.Name = parsed.Error.Name
			apiErr.Message = parsed.Error.Message
		}
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
