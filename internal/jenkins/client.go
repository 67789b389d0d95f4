package jenkins

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sirupsen/logrus"

	"github.com/shinji-kodama/node-janitor/internal/logging"
	"github.com/shinji-kodama/node-janitor/internal/model"
)

// builtInNode is the path segment Jenkins uses for the controller's own
// executor. Older releases called it "master".
const builtInNode = "(built-in)"

const (
	defaultTimeout  = 15 * time.Second
	defaultMaxTries = 3
)

// NodeStatus is the subset of /computer/<name>/api/json this package reads.
type NodeStatus struct {
	DisplayName        string `json:"displayName"`
	Idle               bool   `json:"idle"`
	Offline            bool   `json:"offline"`
	TemporarilyOffline bool   `json:"temporarilyOffline"`
}

// crumb is a CSRF token from /crumbIssuer/api/json.
type crumb struct {
	Crumb             string `json:"crumb"`
	CrumbRequestField string `json:"crumbRequestField"`
}

// StatusError is returned when Jenkins answers with an unexpected HTTP status.
type StatusError struct {
	Method string
	URL    string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.URL, e.Code, e.Body)
	}
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.URL, e.Code)
}

// Options configures a Client.
type Options struct {
	BaseURL string
	User    string
	Token   string
	Node    string

	// HTTPClient overrides the default client. Its CheckRedirect and Jar
	// are left untouched when set.
	HTTPClient *http.Client

	// MaxTries bounds attempts per request, including the first.
	MaxTries uint

	// NewBackOff creates the retry schedule for one request.
	NewBackOff func() backoff.BackOff

	Log logrus.FieldLogger
}

// Client is a NodeController backed by the Jenkins REST API.
type Client struct {
	base       *url.URL
	user       string
	token      string
	node       string
	http       *http.Client
	maxTries   uint
	newBackOff func() backoff.BackOff
	log        logrus.FieldLogger

	mu sync.Mutex
	// drained is set while the node is offline because this client took
	// it offline. BringOnline restores only such a node.
	drained bool
}

// NewClient validates opts and returns a Client.
func NewClient(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid Jenkins URL %q", opts.BaseURL)
	}
	if opts.Node == "" {
		return nil, errors.New("jenkins node name is required")
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		// The crumb is bound to the session cookie on recent Jenkins
		// releases, so keep cookies between the crumb and the POST.
		jar, _ := cookiejar.New(nil)
		httpClient = &http.Client{
			Timeout: defaultTimeout,
			Jar:     jar,
			// toggleOffline answers with a redirect to the node page;
			// the redirect itself is the success signal.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	}

	maxTries := opts.MaxTries
	if maxTries == 0 {
		maxTries = defaultMaxTries
	}
	newBackOff := opts.NewBackOff
	if newBackOff == nil {
		newBackOff = func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxInterval = 5 * time.Second
			return b
		}
	}

	log := opts.Log
	if log == nil {
		log = logging.Discard()
	}

	return &Client{
		base:       base,
		user:       opts.User,
		token:      opts.Token,
		node:       NodePathName(opts.Node),
		http:       httpClient,
		maxTries:   maxTries,
		newBackOff: newBackOff,
		log:        log,
	}, nil
}

// NodePathName maps the configured node name to the URL path segment
// Jenkins expects. The controller's own node goes by several names.
func NodePathName(name string) string {
	switch strings.ToLower(name) {
	case "master", "built-in", builtInNode:
		return builtInNode
	default:
		return name
	}
}

// Status fetches the node's current scheduling state.
func (c *Client) Status(ctx context.Context) (*NodeStatus, error) {
	body, err := c.do(ctx, http.MethodGet, c.nodePath("api/json"), nil, false)
	if err != nil {
		return nil, err
	}
	var st NodeStatus
	if err := json.Unmarshal(body, &st); err != nil {
		return nil, fmt.Errorf("failed to decode status of node %s: %w", c.node, err)
	}
	return &st, nil
}

// TakeOffline marks the node temporarily offline if it is idle.
func (c *Client) TakeOffline(ctx context.Context, reason string) (bool, error) {
	st, err := c.Status(ctx)
	if err != nil {
		return false, wrapControllerError("failed to read node status", err)
	}

	if !st.Idle {
		c.log.WithField("node", c.node).Warn("node is currently not idle, not making it offline")
		return false, nil
	}

	c.log.WithField("node", c.node).Info("node is currently idle, trying to put it offline")
	if st.TemporarilyOffline {
		// Someone else's mark; BringOnline leaves it in place.
		c.log.WithField("node", c.node).Info("node is already offline, keeping its offline mark")
		return true, nil
	}

	q := url.Values{}
	q.Set("offlineMessage", reason)
	if _, err := c.do(ctx, http.MethodPost, c.nodePath("toggleOffline"), q, true); err != nil {
		return false, wrapControllerError("failed to take node offline", err)
	}

	c.mu.Lock()
	c.drained = true
	c.mu.Unlock()
	c.log.WithField("node", c.node).Info("node is now offline")
	return true, nil
}

// BringOnline clears the temporary offline mark set by TakeOffline. A node
// that was already offline before TakeOffline stays offline. toggleOffline
// is a toggle, so the state is read first to avoid taking an online node
// down.
func (c *Client) BringOnline(ctx context.Context) error {
	c.mu.Lock()
	drained := c.drained
	c.mu.Unlock()
	if !drained {
		c.log.WithField("node", c.node).Info("node was not taken offline by node-janitor, leaving it as is")
		return nil
	}

	c.log.WithField("node", c.node).Info("putting node back online")

	st, err := c.Status(ctx)
	if err != nil {
		return wrapControllerError("failed to read node status", err)
	}
	if st.TemporarilyOffline {
		if _, err := c.do(ctx, http.MethodPost, c.nodePath("toggleOffline"), nil, true); err != nil {
			return wrapControllerError("failed to bring node online", err)
		}
	}

	c.mu.Lock()
	c.drained = false
	c.mu.Unlock()
	return nil
}

// nodePath returns the unescaped request path for a node endpoint;
// url.URL escapes it when the request is built.
func (c *Client) nodePath(suffix string) string {
	return "/computer/" + c.node + "/" + suffix
}

// do performs one logical request with retries. Transport errors and 5xx
// responses are retried; any other non-success status is permanent.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, needsCrumb bool) ([]byte, error) {
	op := func() ([]byte, error) {
		var cr *crumb
		if needsCrumb {
			var err error
			if cr, err = c.fetchCrumb(ctx); err != nil {
				return nil, err
			}
		}
		return c.send(ctx, method, path, query, cr)
	}

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(c.newBackOff()),
		backoff.WithMaxTries(c.maxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.log.WithError(err).WithField("retry_in", next).Debug("jenkins request failed, retrying")
		}),
	)
}

// fetchCrumb returns a CSRF crumb, or nil when CSRF protection is disabled.
func (c *Client) fetchCrumb(ctx context.Context) (*crumb, error) {
	body, err := c.send(ctx, http.MethodGet, "/crumbIssuer/api/json", nil, nil)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	var cr crumb
	if err := json.Unmarshal(body, &cr); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to decode crumb: %w", err))
	}
	return &cr, nil
}

// send performs a single HTTP round trip and classifies the outcome.
func (c *Client) send(ctx context.Context, method, path string, query url.Values, cr *crumb) ([]byte, error) {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawPath = ""
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	if c.user != "" || c.token != "" {
		req.SetBasicAuth(c.user, c.token)
	}
	if cr != nil && cr.CrumbRequestField != "" {
		req.Header.Set(cr.CrumbRequestField, cr.Crumb)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 400 {
		return body, nil
	}

	se := &StatusError{Method: method, URL: u.Path, Code: resp.StatusCode, Body: snippet(body)}
	if resp.StatusCode >= 500 {
		return nil, se
	}
	return nil, backoff.Permanent(se)
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}

func wrapControllerError(msg string, err error) error {
	return model.WrapCLIError(model.ExitControllerError, msg, err)
}
