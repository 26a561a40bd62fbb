package syscfg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/concave-dev/rtconfig/internal/config"
	"github.com/concave-dev/rtconfig/internal/logging"
	"github.com/concave-dev/rtconfig/internal/netutil"
	"github.com/concave-dev/rtconfig/internal/validate"
	"github.com/go-resty/resty/v2"
)

// ClientOptions configures a Client. Zero values fall back to the defaults
// in internal/config.
type ClientOptions struct {
	// DiscoveryAddr is the host:port of any rtconfigd instance. It answers
	// FindSystems and StatusDescription.
	DiscoveryAddr string

	// DefaultPort is used for targets given without a port.
	DefaultPort int

	SessionTimeout       time.Duration
	RestartTimeout       time.Duration
	FormatTimeout        time.Duration
	RestartPollInterval  time.Duration
	FirmwarePollInterval time.Duration

	// RequestTimeout bounds any single HTTP exchange, including image
	// transfers.
	RequestTimeout time.Duration

	// Retries is how many times a request that failed in transit, without
	// reaching the target's handler, is sent again.
	Retries int

	UserAgent string
	Logger    resty.Logger
}

func (o *ClientOptions) setDefaults() {
	if o.DefaultPort == 0 {
		o.DefaultPort = config.DefaultAPIPort
	}
	if o.DiscoveryAddr == "" {
		o.DiscoveryAddr = net.JoinHostPort("127.0.0.1", strconv.Itoa(o.DefaultPort))
	}
	if o.SessionTimeout <= 0 {
		o.SessionTimeout = config.DefaultSessionTimeout
	}
	if o.RestartTimeout <= 0 {
		o.RestartTimeout = config.DefaultRestartTimeout
	}
	if o.FormatTimeout <= 0 {
		o.FormatTimeout = config.DefaultFormatTimeout
	}
	if o.RestartPollInterval <= 0 {
		o.RestartPollInterval = config.DefaultRestartPollInterval
	}
	if o.FirmwarePollInterval <= 0 {
		o.FirmwarePollInterval = config.DefaultFirmwarePollInterval
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = config.DefaultRequestTimeout
	}
	if o.UserAgent == "" {
		o.UserAgent = "rtconfig"
	}
}

// Client implements Service over the rtconfigd REST API.
//
// Targets are addressed directly: each session talks to the target's own
// API. Names returned by FindSystems are remembered so a later OpenSession
// with the same name reaches the address discovery reported, even when the
// name does not resolve through DNS.
type Client struct {
	opts ClientOptions
	http *resty.Client

	mu    sync.RWMutex
	known map[string]string
}

// NewClient creates a Client with resty configured for the service: JSON
// headers, request logging through internal/logging, and retries limited to
// transport failures.
func NewClient(opts ClientOptions) *Client {
	opts.setDefaults()

	client := resty.New()
	if opts.Logger != nil {
		client.SetLogger(opts.Logger)
	}

	client.
		SetTimeout(opts.RequestTimeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", opts.UserAgent)

	// Only retry on transport errors, never on HTTP errors. A target that
	// refuses the connection is down, not flaky.
	client.
		SetRetryCount(opts.Retries).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil && !netutil.IsUnreachableError(err) && !errors.Is(err, context.Canceled)
		})

	client.OnBeforeRequest(func(c *resty.Client, req *resty.Request) error {
		logging.Debug("Making API request: %s %s", req.Method, req.URL)
		return nil
	})

	client.OnAfterResponse(func(c *resty.Client, resp *resty.Response) error {
		logging.Debug("API response: %d %s (took %v)",
			resp.StatusCode(), resp.Status(), resp.Time())
		return nil
	})

	client.OnError(func(req *resty.Request, err error) {
		logging.Debug("API request failed: %s %s - %v", req.Method, req.URL, err)
	})

	return &Client{
		opts:  opts,
		http:  client,
		known: make(map[string]string),
	}
}

// Options returns the effective options after defaults were applied.
func (c *Client) Options() ClientOptions {
	return c.opts
}

// resolve turns a target reference into the host:port of its API.
func (c *Client) resolve(target string) (string, error) {
	c.mu.RLock()
	addr, ok := c.known[target]
	c.mu.RUnlock()
	if ok {
		return addr, nil
	}

	host, port, err := validate.TargetAddress(target, c.opts.DefaultPort)
	if err != nil {
		return "", Errorf(StatusSystemNotFound, "resolve target", "%v", err)
	}
	return net.JoinHostPort(host, strconv.Itoa(port)), nil
}

func (c *Client) remember(name, addr string) {
	if name == "" || addr == "" {
		return
	}
	c.mu.Lock()
	c.known[name] = addr
	c.mu.Unlock()
}

func apiURL(addr, path string) string {
	return "http://" + addr + APIPrefix + path
}

// execute runs req and turns transport and service failures into *Error.
// The response is returned on success so callers can read headers or the
// raw body.
func (c *Client) execute(op string, req *resty.Request, method, url string) (*resty.Response, error) {
	resp, err := req.Execute(method, url)
	if err != nil {
		return nil, transportError(req.Context(), op, err)
	}
	if resp.IsError() {
		return resp, responseError(op, resp.StatusCode(), resp.Body())
	}
	return resp, nil
}

// transportError classifies a request that never got an HTTP response.
func transportError(ctx context.Context, op string, err error) error {
	if ctx != nil && errors.Is(ctx.Err(), context.Canceled) {
		return fmt.Errorf("%s: %w", op, ctx.Err())
	}
	switch {
	case netutil.IsTimeoutError(err):
		return Errorf(StatusTimeout, op, "%v", err)
	case netutil.IsUnreachableError(err):
		return Errorf(StatusSystemNotFound, op, "%v", err)
	default:
		return Errorf(StatusServiceError, op, "%v", err)
	}
}

// responseError decodes the error envelope. Bodies that are not an envelope
// (proxies, non-rtconfigd servers) fall back to a status derived from the
// HTTP code.
func responseError(op string, httpStatus int, body []byte) error {
	var env Response[json.RawMessage]
	if err := json.Unmarshal(body, &env); err == nil && env.Code != StatusOK {
		return &Error{Status: env.Code, Op: op, Message: env.Message}
	}

	status := StatusServiceError
	switch httpStatus {
	case 401, 403:
		status = StatusAccessDenied
	case 404:
		status = StatusSystemNotFound
	case 408, 504:
		status = StatusTimeout
	case 503:
		status = StatusBusy
	}
	return &Error{Status: status, Op: op, Message: fmt.Sprintf("HTTP %d", httpStatus)}
}

// OpenSession implements Service.
func (c *Client) OpenSession(ctx context.Context, target string, opts SessionOptions) (Session, error) {
	addr, err := c.resolve(target)
	if err != nil {
		return nil, err
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = c.opts.SessionTimeout
	}
	openCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var out Response[SessionResponse]
	req := c.http.R().SetContext(openCtx).SetResult(&out)
	if opts.User != "" || opts.Password != "" {
		req.SetBasicAuth(opts.User, opts.Password)
	}
	if _, err := c.execute("open session", req, resty.MethodPost, apiURL(addr, "/sessions")); err != nil {
		return nil, err
	}
	if out.Data.SessionID == "" {
		return nil, Errorf(StatusServiceError, "open session", "target returned no session id")
	}

	logging.Debug("Opened session %s on %s (%s)", out.Data.SessionID, target, addr)
	return &clientSession{
		client:  c,
		target:  target,
		addr:    addr,
		id:      out.Data.SessionID,
		pending: make(map[SystemProperty]string),
	}, nil
}

// FindSystems implements Service by asking the discovery address for the
// systems it can see over gossip.
func (c *Client) FindSystems(ctx context.Context, opts FindOptions) (SystemEnumerator, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	var out Response[[]DiscoveredSystem]
	req := c.http.R().SetContext(ctx).SetResult(&out)
	if _, err := c.execute("find systems", req, resty.MethodGet, apiURL(c.opts.DiscoveryAddr, "/systems")); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(out.Data))
	for _, sys := range out.Data {
		name := sys.Name(opts.Format)
		if name == "" {
			continue
		}
		c.remember(name, sys.APIAddress)
		names = append(names, name)
	}
	return &systemEnum{names: names}, nil
}

// StatusDescription implements Service. When the discovery service cannot
// be reached the client library's own table answers instead.
func (c *Client) StatusDescription(ctx context.Context, status Status) (string, error) {
	var out Response[StatusDescriptionResponse]
	req := c.http.R().SetContext(ctx).SetResult(&out)
	url := apiURL(c.opts.DiscoveryAddr, "/status/"+strconv.Itoa(int(status)))
	if _, err := c.execute("status description", req, resty.MethodGet, url); err != nil {
		if s, ok := StatusOf(err); ok && (s == StatusSystemNotFound || s == StatusTimeout) {
			return status.Description(), nil
		}
		return "", err
	}
	return out.Data.Description, nil
}

// health reads GET /health on addr.
func (c *Client) health(ctx context.Context, addr string) (HealthResponse, error) {
	var out Response[HealthResponse]
	req := c.http.R().SetContext(ctx).SetResult(&out)
	if _, err := c.execute("health", req, resty.MethodGet, apiURL(addr, "/health")); err != nil {
		return HealthResponse{}, err
	}
	return out.Data, nil
}

// systemEnum walks a fixed list of names.
type systemEnum struct {
	names []string
	pos   int
}

func (e *systemEnum) Next(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if e.pos >= len(e.names) {
		return "", ErrEndOfEnum
	}
	name := e.names[e.pos]
	e.pos++
	return name, nil
}

func (e *systemEnum) Close() error {
	e.names = nil
	return nil
}
