package telegraph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"go.uber.org/zap"

	"moonread/internal/models"
)

// DefaultBaseURL is the public Telegraph API endpoint
const DefaultBaseURL = "https://api.telegra.ph"

// maxTitleLength is Telegraph's limit on page titles
const maxTitleLength = 256

// Config holds the client settings
type Config struct {
	BaseURL     string
	AccessToken string
	AuthorName  string
	AuthorURL   string
	Attempts    uint
	RetryDelay  time.Duration
	HTTPClient  *http.Client
}

// Client talks to the Telegraph API
type Client struct {
	httpClient  *http.Client
	baseURL     string
	accessToken string
	authorName  string
	authorURL   string
	attempts    uint
	retryDelay  time.Duration
	logger      *zap.Logger
}

// NewClient creates a Telegraph client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	c := &Client{
		httpClient:  cfg.HTTPClient,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		accessToken: cfg.AccessToken,
		authorName:  cfg.AuthorName,
		authorURL:   cfg.AuthorURL,
		attempts:    cfg.Attempts,
		retryDelay:  cfg.RetryDelay,
		logger:      logger,
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	// retry.Attempts(0) means retry forever
	if c.attempts == 0 {
		c.attempts = 1
	}
	if c.retryDelay <= 0 {
		c.retryDelay = time.Second
	}
	return c
}

// HasToken reports whether the client can create pages
func (c *Client) HasToken() bool {
	return c.accessToken != ""
}

// CreateAccount registers a new account and uses its token for later calls
func (c *Client) CreateAccount(ctx context.Context, shortName, authorName, authorURL string) (Account, error) {
	form := url.Values{}
	form.Set("short_name", shortName)
	if authorName != "" {
		form.Set("author_name", authorName)
	}
	if authorURL != "" {
		form.Set("author_url", authorURL)
	}

	var account Account
	if err := c.call(ctx, "createAccount", form, &account); err != nil {
		return Account{}, err
	}
	if account.AccessToken == "" {
		return Account{}, fmt.Errorf("telegraph createAccount: empty access token")
	}

	c.accessToken = account.AccessToken
	c.logger.Info("Telegraph account created", zap.String("short_name", account.ShortName))
	return account, nil
}

// CreatePage publishes a page
func (c *Client) CreatePage(ctx context.Context, page PageRequest) (Page, error) {
	if c.accessToken == "" {
		return Page{}, fmt.Errorf("telegraph createPage: no access token")
	}

	content, err := json.Marshal(page.Content)
	if err != nil {
		return Page{}, fmt.Errorf("failed to encode page content: %w", err)
	}

	title := page.Title
	if r := []rune(title); len(r) > maxTitleLength {
		title = string(r[:maxTitleLength])
	}

	form := url.Values{}
	form.Set("access_token", c.accessToken)
	form.Set("title", title)
	form.Set("content", string(content))
	form.Set("return_content", "false")
	if page.AuthorName != "" {
		form.Set("author_name", page.AuthorName)
	}
	if page.AuthorURL != "" {
		form.Set("author_url", page.AuthorURL)
	}

	var result Page
	if err := c.call(ctx, "createPage", form, &result); err != nil {
		return Page{}, err
	}
	return result, nil
}

// Publish renders doc as a numbered list of links and creates a page for it
func (c *Client) Publish(ctx context.Context, doc models.Document) (string, error) {
	page, err := c.CreatePage(ctx, PageRequest{
		Title:      doc.Title,
		AuthorName: c.authorName,
		AuthorURL:  c.authorURL,
		Content:    RenderBooks(doc.Books),
	})
	if err != nil {
		return "", err
	}
	if page.URL == "" {
		return "", fmt.Errorf("telegraph createPage: response has no url")
	}
	return page.URL, nil
}

// RenderBooks builds page content listing books in order
func RenderBooks(books []models.Book) []Node {
	items := make([]Node, 0, len(books))
	for _, book := range books {
		var child Node = book.Title
		if book.Link != "" {
			child = Element{
				Tag:      "a",
				Attrs:    map[string]string{"href": book.Link},
				Children: []Node{book.Title},
			}
		}
		items = append(items, Element{Tag: "li", Children: []Node{child}})
	}

	return []Node{
		Element{Tag: "p", Children: []Node{fmt.Sprintf("Total: %d book(s)", len(books))}},
		Element{Tag: "ol", Children: items},
	}
}

type envelope struct {
	OK     bool            `json:"ok"`
	Error  string          `json:"error"`
	Result json.RawMessage `json:"result"`
}

// call POSTs form to method, retrying transport failures, 429 and 5xx responses
// and FLOOD_WAIT errors. Other API errors are returned immediately.
func (c *Client) call(ctx context.Context, method string, form url.Values, out any) error {
	endpoint := c.baseURL + "/" + method

	return retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
			if err != nil {
				return retry.Unrecoverable(err)
			}
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer func() { _ = resp.Body.Close() }()

			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
				_, _ = io.Copy(io.Discard, resp.Body)
				return fmt.Errorf("telegraph %s: unexpected status %d", method, resp.StatusCode)
			}
			if resp.StatusCode != http.StatusOK {
				return retry.Unrecoverable(fmt.Errorf("telegraph %s: unexpected status %d", method, resp.StatusCode))
			}

			var env envelope
			if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
				return retry.Unrecoverable(fmt.Errorf("telegraph %s: invalid response: %w", method, err))
			}
			if !env.OK {
				apiErr := &APIError{Method: method, Code: env.Error}
				if strings.HasPrefix(env.Error, "FLOOD_WAIT") {
					return apiErr
				}
				return retry.Unrecoverable(apiErr)
			}
			if err := json.Unmarshal(env.Result, out); err != nil {
				return retry.Unrecoverable(fmt.Errorf("telegraph %s: invalid result: %w", method, err))
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.retryDelay),
		retry.MaxJitter(c.retryDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Warn("Retrying Telegraph request",
				zap.String("method", method),
				zap.Uint("attempt", n+1),
				zap.Error(err),
			)
		}),
	)
}

// IsAPIError reports whether err carries a Telegraph API error code
func IsAPIError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}
