package syscfg

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/concave-dev/rtconfig/internal/archive"
	"github.com/concave-dev/rtconfig/internal/logging"
	"github.com/go-resty/resty/v2"
)

// clientSession is a Session backed by a session id on one target.
type clientSession struct {
	client *Client
	target string
	addr   string
	id     string

	pending map[SystemProperty]string
	closed  bool
}

func (s *clientSession) Target() string {
	return s.target
}

func (s *clientSession) request(ctx context.Context) *resty.Request {
	return s.client.http.R().SetContext(ctx).SetHeader(SessionHeader, s.id)
}

func (s *clientSession) check(op string) error {
	if s.closed {
		return Errorf(StatusSessionInvalid, op, "session already closed")
	}
	return nil
}

func (s *clientSession) SystemInfo(ctx context.Context) (SystemInfo, error) {
	if err := s.check("get system info"); err != nil {
		return SystemInfo{}, err
	}
	var out Response[SystemInfo]
	req := s.request(ctx).SetResult(&out)
	if _, err := s.client.execute("get system info", req, resty.MethodGet, apiURL(s.addr, "/system")); err != nil {
		return SystemInfo{}, err
	}
	return out.Data, nil
}

func (s *clientSession) SetSystemProperty(p SystemProperty, value string) error {
	if err := s.check("set system property"); err != nil {
		return err
	}
	if !WritableSystemProperties[p] {
		return Errorf(StatusReadOnly, "set system property", "%s cannot be set", p)
	}
	s.pending[p] = value
	return nil
}

// SaveChanges sends every staged property in one request. The target
// validates the whole set before applying any of it, so a failed save leaves
// the target untouched and the changes stay staged.
func (s *clientSession) SaveChanges(ctx context.Context) (SaveResult, error) {
	if err := s.check("save changes"); err != nil {
		return SaveResult{}, err
	}
	if len(s.pending) == 0 {
		return SaveResult{}, nil
	}

	var out Response[SaveResult]
	req := s.request(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(SystemPatchRequest{Properties: s.pending}).
		SetResult(&out)
	if _, err := s.client.execute("save changes", req, resty.MethodPatch, apiURL(s.addr, "/system")); err != nil {
		return SaveResult{}, err
	}
	s.pending = make(map[SystemProperty]string)
	return out.Data, nil
}

func (s *clientSession) FindHardware(ctx context.Context, f *Filter) (ResourceEnumerator, error) {
	if err := s.check("find hardware"); err != nil {
		return nil, err
	}
	var out Response[[]ResourceInfo]
	req := s.request(ctx).SetQueryParamsFromValues(f.Encode()).SetResult(&out)
	if _, err := s.client.execute("find hardware", req, resty.MethodGet, apiURL(s.addr, "/hardware")); err != nil {
		return nil, err
	}
	return &resourceEnum{session: s, items: out.Data}, nil
}

// Restart asks the target to reboot and then polls its health endpoint
// until it answers again or RestartTimeout passes. The session does not
// survive the reboot.
func (s *clientSession) Restart(ctx context.Context) (RestartResult, error) {
	if err := s.check("restart"); err != nil {
		return RestartResult{}, err
	}
	req := s.request(ctx)
	if _, err := s.client.execute("restart", req, resty.MethodPost, apiURL(s.addr, "/system/restart")); err != nil {
		return RestartResult{}, err
	}

	health, err := s.waitOnline(ctx, "restart", s.client.opts.RestartTimeout)
	if err != nil {
		return RestartResult{}, err
	}
	return RestartResult{IPAddress: health.IPAddress}, nil
}

// Format erases the target's configuration and waits for it to finish.
func (s *clientSession) Format(ctx context.Context) error {
	if err := s.check("format"); err != nil {
		return err
	}
	req := s.request(ctx)
	if _, err := s.client.execute("format", req, resty.MethodPost, apiURL(s.addr, "/system/format")); err != nil {
		return err
	}
	_, err := s.waitOnline(ctx, "format", s.client.opts.FormatTimeout)
	return err
}

// waitOnline polls /health until the target reports it is running. Errors
// while the target is down are expected and only logged at debug level.
func (s *clientSession) waitOnline(ctx context.Context, op string, timeout time.Duration) (HealthResponse, error) {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var health HealthResponse
	err := retry.Do(
		func() error {
			h, err := s.client.health(waitCtx, s.addr)
			if err != nil {
				return err
			}
			if h.State != "running" {
				return Errorf(StatusBusy, op, "target is %s", h.State)
			}
			health = h
			return nil
		},
		retry.Context(waitCtx),
		retry.Attempts(0),
		retry.Delay(s.client.opts.RestartPollInterval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logging.Debug("Waiting for %s to come back (attempt %d): %v", s.target, n+1, err)
		}),
	)
	if err == nil {
		return health, nil
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		return HealthResponse{}, ctx.Err()
	}
	if waitCtx.Err() != nil {
		return HealthResponse{}, Errorf(StatusTimeout, op, "target did not come back within %v", timeout)
	}
	return HealthResponse{}, err
}

// GetImage streams the target's image and extracts it into dir.
func (s *clientSession) GetImage(ctx context.Context, dir string) (ImageInfo, error) {
	if err := s.check("get image"); err != nil {
		return ImageInfo{}, err
	}
	resp, err := s.request(ctx).
		SetHeader("Accept", "application/gzip").
		SetDoNotParseResponse(true).
		Get(apiURL(s.addr, "/system/image"))
	if err != nil {
		return ImageInfo{}, transportError(ctx, "get image", err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() >= 400 {
		data, _ := io.ReadAll(body)
		return ImageInfo{}, responseError("get image", resp.StatusCode(), data)
	}

	n, err := archive.UnpackDir(body, dir)
	if err != nil {
		return ImageInfo{}, Errorf(StatusImageIncompatible, "get image", "%v", err)
	}
	return ImageInfo{Bytes: n}, nil
}

// SetImage packs dir and uploads it to the target.
func (s *clientSession) SetImage(ctx context.Context, dir string, opts ImageOptions) error {
	if err := s.check("set image"); err != nil {
		return err
	}
	if _, err := os.Stat(dir); err != nil {
		return Errorf(StatusFileNotFound, "set image", "%v", err)
	}

	var buf bytes.Buffer
	if err := archive.PackDir(&buf, dir); err != nil {
		return Errorf(StatusImageIncompatible, "set image", "%v", err)
	}

	network := "preserve"
	if opts.ResetNetwork {
		network = "reset"
	}
	req := s.request(ctx).
		SetQueryParam("network", network).
		SetFileReader("image", "image.tar.gz", &buf)
	_, err := s.client.execute("set image", req, resty.MethodPut, apiURL(s.addr, "/system/image"))
	return err
}

// Close ends the session on the target. A session the target already
// dropped, for example across a restart, closes without error.
func (s *clientSession) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	ctx, cancel := context.WithTimeout(context.Background(), s.client.opts.SessionTimeout)
	defer cancel()
	req := s.client.http.R().SetContext(ctx)
	_, err := s.client.execute("close session", req, resty.MethodDelete, apiURL(s.addr, "/sessions/"+s.id))
	if errors.Is(err, StatusSessionInvalid) {
		return nil
	}
	if err != nil {
		logging.Debug("Closing session %s on %s: %v", s.id, s.target, err)
	}
	return err
}

// resourceEnum walks the resources returned by one hardware query.
type resourceEnum struct {
	session *clientSession
	items   []ResourceInfo
	pos     int
}

func (e *resourceEnum) Next(ctx context.Context) (Resource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if e.pos >= len(e.items) {
		return nil, ErrEndOfEnum
	}
	info := e.items[e.pos]
	e.pos++
	return &clientResource{session: e.session, info: info, pending: make(map[Property]string)}, nil
}

func (e *resourceEnum) Close() error {
	e.items = nil
	return nil
}
