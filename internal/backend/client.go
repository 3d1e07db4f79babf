package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/jobscan/internal/history"
	"github.com/GriffinCanCode/jobscan/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/jobscan/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/jobscan/internal/logging"
)

var (
	// ErrJobFailed is returned when the backend reports a job as failed.
	ErrJobFailed = errors.New("backend: job failed")
	// ErrUnavailable is returned while the circuit breaker rejects calls.
	ErrUnavailable = errors.New("backend: unavailable")
)

// StatusError is a non-2xx answer from the backend.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend: status %d", e.StatusCode)
	}
	return fmt.Sprintf("backend: status %d: %s", e.StatusCode, e.Message)
}

// Config configures the client.
type Config struct {
	BaseURL      string
	Token        string
	UserAgent    string
	Timeout      time.Duration
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	// RateLimit is requests per second; zero or less disables limiting.
	RateLimit    float64
	Burst        int
	PollInterval time.Duration
	// Stream awaits jobs over the websocket stream, falling back to polling.
	Stream bool
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL:      "http://localhost:8080",
		UserAgent:    "jobscan/1.0",
		Timeout:      30 * time.Second,
		RetryMax:     3,
		RetryWaitMin: time.Second,
		RetryWaitMax: 30 * time.Second,
		RateLimit:    5,
		Burst:        10,
		PollInterval: 2 * time.Second,
		Stream:       true,
	}
}

// ArtifactRecorder stores generated documents.
type ArtifactRecorder interface {
	Add(ctx context.Context, a history.Artifact) (history.Artifact, error)
}

// Client talks to the matching backend.
type Client struct {
	cfg      Config
	resty    *resty.Client
	limiter  *rate.Limiter
	breaker  *resilience.Breaker
	logger   *logging.Logger
	metrics  *monitoring.Metrics
	recorder ArtifactRecorder
}

// Option configures a Client.
type Option func(*Client)

// WithHistory records generated artifacts from Apply.
func WithHistory(r ArtifactRecorder) Option { return func(c *Client) { c.recorder = r } }

// New creates a client.
func New(cfg Config, logger *logging.Logger, metrics *monitoring.Metrics, opts ...Option) *Client {
	defaults := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaults.PollInterval
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaults.UserAgent
	}
	logger = logging.OrNop(logger).Named("backend")

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.RetryMax
	retryClient.RetryWaitMin = cfg.RetryWaitMin
	retryClient.RetryWaitMax = cfg.RetryWaitMax
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	retryClient.Logger = retryLogger{logger.Sugar()}

	rc := resty.NewWithClient(retryClient.StandardClient()).
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", cfg.UserAgent).
		SetHeader("Accept", "application/json").
		SetJSONMarshaler(sonic.Marshal).
		SetJSONUnmarshaler(sonic.Unmarshal)
	if cfg.Token != "" {
		rc.SetAuthToken(cfg.Token)
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	breaker := resilience.New("backend", resilience.Settings{
		MaxRequests: 2,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to))
		},
	})

	c := &Client{
		cfg:     cfg,
		resty:   rc,
		limiter: limiter,
		breaker: breaker,
		logger:  logger,
		metrics: metrics,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Breaker exposes the client's circuit breaker state for health reporting.
func (c *Client) Breaker() *resilience.Breaker { return c.breaker }

// Initiate submits a scanned application. Every call carries a fresh
// idempotency key so transport retries cannot start two jobs.
func (c *Client) Initiate(ctx context.Context, payload ScanPayload) (*Initiation, error) {
	var out Initiation
	key := uuid.NewString()
	_, err := c.do(ctx, "initiate", http.MethodPost, "/v1/applications", func(r *resty.Request) {
		r.SetHeader("Idempotency-Key", key).SetBody(payload).SetResult(&out)
	})
	if err != nil {
		return nil, err
	}
	if out.ImmediateFields == nil {
		out.ImmediateFields = []FieldValue{}
	}
	return &out, nil
}

// Status reports the state of a job.
func (c *Client) Status(ctx context.Context, jobID string) (*JobStatus, error) {
	var out JobStatus
	_, err := c.do(ctx, "status", http.MethodGet, "/v1/jobs/{id}", func(r *resty.Request) {
		r.SetPathParam("id", jobID).SetResult(&out)
	})
	if err != nil {
		return nil, err
	}
	if out.JobID == "" {
		out.JobID = jobID
	}
	return &out, nil
}

// Result fetches the output of a completed job.
func (c *Client) Result(ctx context.Context, jobID string) (*Result, error) {
	var out Result
	_, err := c.do(ctx, "result", http.MethodGet, "/v1/jobs/{id}/result", func(r *resty.Request) {
		r.SetPathParam("id", jobID).SetResult(&out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ForceApply re-runs generation for a result whose requirements were not
// met and returns the new job id.
func (c *Client) ForceApply(ctx context.Context, resultRef, jobID string) (string, error) {
	var out forceApplyResponse
	key := uuid.NewString()
	_, err := c.do(ctx, "force_apply", http.MethodPost, "/v1/results/{ref}/force-apply", func(r *resty.Request) {
		r.SetPathParam("ref", resultRef).
			SetHeader("Idempotency-Key", key).
			SetBody(forceApplyRequest{JobID: jobID}).
			SetResult(&out)
	})
	if err != nil {
		return "", err
	}
	if out.JobID == "" {
		return "", fmt.Errorf("force_apply: %w", &StatusError{StatusCode: http.StatusOK, Message: "missing job_id"})
	}
	return out.JobID, nil
}

// WaitForResult polls Status until the job finishes and returns its result.
func (c *Client) WaitForResult(ctx context.Context, jobID string) (*Result, error) {
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		st, err := c.Status(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if st.State.Terminal() {
			return c.finish(ctx, st)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Apply runs the whole exchange: immediate fields are handed to fill before
// anything else, then, when the backend started a job, the result is awaited
// and its generated documents recorded.
func (c *Client) Apply(ctx context.Context, payload ScanPayload, fill func([]FieldValue)) (*Outcome, error) {
	init, err := c.Initiate(ctx, payload)
	if err != nil {
		return nil, err
	}
	if fill != nil {
		fill(init.ImmediateFields)
	}

	outcome := &Outcome{Initiation: *init}
	if init.JobID == "" {
		return outcome, nil
	}

	result, err := c.await(ctx, init.JobID)
	if err != nil {
		return outcome, err
	}
	outcome.Result = result
	c.record(ctx, payload, init.JobID, result)
	return outcome, nil
}

func (c *Client) await(ctx context.Context, jobID string) (*Result, error) {
	if c.cfg.Stream {
		updates, err := c.Subscribe(ctx, jobID)
		if err == nil {
			for st := range updates {
				if st.State.Terminal() {
					return c.finish(ctx, &st)
				}
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Debug("status stream ended early, polling", zap.String("job_id", jobID))
		} else {
			c.logger.Debug("status stream unavailable, polling", zap.String("job_id", jobID), zap.Error(err))
		}
	}
	return c.WaitForResult(ctx, jobID)
}

func (c *Client) finish(ctx context.Context, st *JobStatus) (*Result, error) {
	if st.State == JobFailed {
		if st.Error != "" {
			return nil, fmt.Errorf("%w: %s", ErrJobFailed, st.Error)
		}
		return nil, ErrJobFailed
	}
	return c.Result(ctx, st.JobID)
}

func (c *Client) record(ctx context.Context, payload ScanPayload, jobID string, result *Result) {
	if c.recorder == nil {
		return
	}
	docs := []struct {
		kind history.Kind
		ref  *FileRef
	}{
		{history.KindResume, result.Generated.Resume},
		{history.KindCoverLetter, result.Generated.CoverLetter},
	}
	for _, d := range docs {
		if d.ref == nil {
			continue
		}
		content := d.ref.Content
		if content == "" {
			content = d.ref.URL
		}
		_, err := c.recorder.Add(ctx, history.Artifact{
			Kind:      d.kind,
			JobID:     jobID,
			SessionID: payload.SessionID,
			Company:   payload.Company,
			Title:     payload.Title,
			Content:   content,
		})
		if err != nil {
			c.logger.Warn("failed to record artifact", zap.String("job_id", jobID), zap.Error(err))
		}
	}
}

// do runs one call through the limiter and the breaker. Only transport
// errors and 5xx answers count against the breaker.
func (c *Client) do(ctx context.Context, op, method, path string, build func(*resty.Request)) (*resty.Response, error) {
	timer := monitoring.NewTimer(c.metrics, op)

	if err := c.limiter.Wait(ctx); err != nil {
		timer.Stop("rate_limited")
		return nil, fmt.Errorf("%s: rate limit: %w", op, err)
	}

	resp, err := resilience.Execute(c.breaker, func() (*resty.Response, error) {
		req := c.resty.R().SetContext(ctx).SetError(&apiErrorBody{})
		build(req)
		resp, err := req.Execute(method, path)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode() >= http.StatusInternalServerError {
			return resp, statusError(resp)
		}
		return resp, nil
	})

	switch {
	case errors.Is(err, resilience.ErrCircuitOpen), errors.Is(err, resilience.ErrTooManyRequests):
		timer.Stop("unavailable")
		return nil, fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
	case err != nil:
		timer.Stop("error")
		c.logger.Debug("backend call failed", zap.String("op", op), zap.Error(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	case resp.IsError():
		timer.Stop(strconv.Itoa(resp.StatusCode()))
		return nil, fmt.Errorf("%s: %w", op, statusError(resp))
	}

	timer.Stop("ok")
	return resp, nil
}

func statusError(resp *resty.Response) *StatusError {
	e := &StatusError{StatusCode: resp.StatusCode()}
	if body, ok := resp.Error().(*apiErrorBody); ok && body != nil {
		e.Message = body.Message
		if e.Message == "" {
			e.Message = body.Error
		}
	}
	if e.Message == "" {
		e.Message = strings.TrimSpace(resp.String())
	}
	if len(e.Message) > 200 {
		e.Message = e.Message[:200]
	}
	return e
}

// eventsURL maps the REST base URL to the job's websocket stream.
func (c *Client) eventsURL(jobID string) (string, error) {
	u, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/v1/jobs/" + jobID + "/events"
	u.RawPath = ""
	return u.String(), nil
}

// retryLogger adapts zap to retryablehttp.LeveledLogger. Attempt chatter
// goes to debug.
type retryLogger struct {
	l *zap.SugaredLogger
}

func (r retryLogger) Error(msg string, kv ...interface{}) { r.l.Warnw(msg, kv...) }
func (r retryLogger) Info(msg string, kv ...interface{})  { r.l.Debugw(msg, kv...) }
func (r retryLogger) Debug(msg string, kv ...interface{}) { r.l.Debugw(msg, kv...) }
func (r retryLogger) Warn(msg string, kv ...interface{})  { r.l.Warnw(msg, kv...) }
