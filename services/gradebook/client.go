package gradebooksvc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-grading/core"
	"github.com/trezcool/masomo-grading/core/scheme"
)

const headerRequestID = "X-Request-ID"

// StatusError is returned when the gradebook answers with a non-2xx status.
type StatusError struct {
	Op         string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string { return fmt.Sprintf("%s: %s", e.Op, e.Status) }

// Client talks to the gradebook that owns the saved grading schemes.
// Fetched schemes are cached per class and auth token; saving a scheme invalidates its class.
type Client struct {
	baseURL string
	http    *http.Client
	cache   *cache.Cache
}

var (
	_ scheme.Saver  = (*Client)(nil)
	_ scheme.Loader = (*Client)(nil)
)

func NewClient(conf core.GradebookConfig) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(conf.BaseURL, "/"),
		http:    &http.Client{Timeout: conf.Timeout},
		cache:   cache.New(conf.CacheTTL, 10*time.Minute),
	}
}

func (c *Client) schemeURL(classID string) string {
	return c.baseURL + "/classes/" + url.PathEscape(classID) + "/grading-scheme"
}

// cacheKey is scoped to the token: the gradebook authorizes every fetch.
func cacheKey(classID string, sess core.Session) string {
	return classID + "\x00" + sess.AuthToken
}

func (c *Client) invalidate(classID string) {
	prefix := classID + "\x00"
	for key := range c.cache.Items() {
		if strings.HasPrefix(key, prefix) {
			c.cache.Delete(key)
		}
	}
}

func (c *Client) newRequest(ctx context.Context, method, target string, sess core.Session, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if sess.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+sess.AuthToken)
	}
	if sess.RequestID != "" {
		req.Header.Set(headerRequestID, sess.RequestID)
	}
	return req, nil
}

// SaveScheme stores p as the grading scheme of the class.
func (c *Client) SaveScheme(ctx context.Context, sess core.Session, classID string, p scheme.Persistable) error {
	body, err := json.Marshal(p)
	if err != nil {
		return errors.Wrap(err, "encoding scheme")
	}
	req, err := c.newRequest(ctx, http.MethodPut, c.schemeURL(classID), sess, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "creating request")
	}

	res, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "saving scheme")
	}
	defer func() { _ = res.Body.Close() }()
	_, _ = io.Copy(io.Discard, res.Body)

	if res.StatusCode/100 != 2 {
		return &StatusError{Op: "save scheme", StatusCode: res.StatusCode, Status: res.Status}
	}
	c.invalidate(classID)
	return nil
}

// FetchScheme returns the serialized entries saved for the class, or "" when none were saved yet.
func (c *Client) FetchScheme(ctx context.Context, sess core.Session, classID string) (string, error) {
	key := cacheKey(classID, sess)
	if data, found := c.cache.Get(key); found {
		return data.(string), nil
	}

	req, err := c.newRequest(ctx, http.MethodGet, c.schemeURL(classID), sess, nil)
	if err != nil {
		return "", errors.Wrap(err, "creating request")
	}
	res, err := c.http.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "fetching scheme")
	}
	defer func() { _ = res.Body.Close() }()

	switch {
	case res.StatusCode == http.StatusNotFound:
		c.cache.SetDefault(key, "")
		return "", nil
	case res.StatusCode/100 != 2:
		return "", &StatusError{Op: "fetch scheme", StatusCode: res.StatusCode, Status: res.Status}
	}

	// the entries are handed over raw: malformed data falls back to defaults when the draft is opened
	var payload struct {
		Schemes json.RawMessage `json:"schemes"`
	}
	if err = json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return "", errors.Wrap(err, "decoding scheme")
	}
	data := string(payload.Schemes)
	c.cache.SetDefault(key, data)
	return data, nil
}
