package coachingapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Amund211/batchroom/internal/config"
	"github.com/Amund211/batchroom/internal/constants"
	"github.com/Amund211/batchroom/internal/domain"
	"github.com/Amund211/batchroom/internal/logging"
	"github.com/Amund211/batchroom/internal/reporting"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// Requests per second we allow ourselves against the coaching API
const requestRate = 20
const requestBurst = 40

type HttpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// API is the coaching API. Reads return the raw json of the requested resource.
type API interface {
	ListBatches(ctx context.Context, coachingID string, status domain.BatchStatus) (json.RawMessage, error)
	GetBatch(ctx context.Context, coachingID, batchID string) (json.RawMessage, error)
	CreateBatch(ctx context.Context, coachingID string, in domain.BatchInput) (json.RawMessage, error)
	UpdateBatch(ctx context.Context, coachingID, batchID string, in domain.BatchInput) (json.RawMessage, error)
	DeleteBatch(ctx context.Context, coachingID, batchID string) error

	ListMembers(ctx context.Context, coachingID, batchID string) (json.RawMessage, error)
	AddMembers(ctx context.Context, coachingID, batchID string, userIDs []string) (json.RawMessage, error)
	RemoveMember(ctx context.Context, coachingID, batchID, userID string) error

	ListNotes(ctx context.Context, coachingID, batchID string) (json.RawMessage, error)
	ListRecentNotes(ctx context.Context, coachingID string) (json.RawMessage, error)
	CreateNote(ctx context.Context, coachingID, batchID string, in domain.NoteInput) (json.RawMessage, error)
	DeleteNote(ctx context.Context, coachingID, batchID, noteID string) error

	ListNotices(ctx context.Context, coachingID, batchID string) (json.RawMessage, error)
	CreateNotice(ctx context.Context, coachingID, batchID string, in domain.NoticeInput) (json.RawMessage, error)
	DeleteNotice(ctx context.Context, coachingID, batchID, noticeID string) error
}

type clientMetricsCollection struct {
	requestCount    metric.Int64Counter
	requestDuration metric.Float64Histogram
}

func setupClientMetrics(meter metric.Meter) (clientMetricsCollection, error) {
	requestCount, err := meter.Int64Counter(
		"coachingapi/request_count",
		metric.WithDescription("Requests sent to the coaching API"),
	)
	if err != nil {
		return clientMetricsCollection{}, fmt.Errorf("failed to create request count metric: %w", err)
	}

	requestDuration, err := meter.Float64Histogram(
		"coachingapi/request_duration_seconds",
		metric.WithDescription("Duration of requests to the coaching API"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return clientMetricsCollection{}, fmt.Errorf("failed to create request duration metric: %w", err)
	}

	return clientMetricsCollection{
		requestCount:    requestCount,
		requestDuration: requestDuration,
	}, nil
}

type Client struct {
	httpClient HttpClient
	baseURL    string
	token      string
	limiter    *rate.Limiter

	metrics clientMetricsCollection
	tracer  trace.Tracer
}

func NewClient(httpClient HttpClient, baseURL string, token string) (*Client, error) {
	const name = "batchroom/coachingapi"

	meter := otel.Meter(name)
	tracer := otel.Tracer(name)

	metrics, err := setupClientMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("failed to set up metrics: %w", err)
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      token,
		limiter:    rate.NewLimiter(rate.Limit(requestRate), requestBurst),

		metrics: metrics,
		tracer:  tracer,
	}, nil
}

// NewCoachingAPIOrMock returns a client for the configured coaching API, or an in-memory
// mock in development when no API is configured
func NewCoachingAPIOrMock(conf config.Config, httpClient HttpClient) (API, error) {
	if conf.CoachingAPIURL() != "" {
		return NewClient(httpClient, conf.CoachingAPIURL(), conf.CoachingAPIToken())
	}
	if conf.IsDevelopment() {
		return NewMock(time.Now), nil
	}
	return nil, fmt.Errorf("missing coaching API url in non-development environment")
}

func resourcePath(segments ...string) string {
	var builder strings.Builder
	for _, segment := range segments {
		builder.WriteString("/")
		builder.WriteString(url.PathEscape(segment))
	}
	return builder.String()
}

func batchesPath(coachingID string, rest ...string) string {
	return resourcePath(append([]string{"coachings", coachingID, "batches"}, rest...)...)
}

func (c *Client) ListBatches(ctx context.Context, coachingID string, status domain.BatchStatus) (json.RawMessage, error) {
	query := url.Values{}
	if status != domain.BatchStatusAll {
		query.Set("status", string(status))
	}
	return c.do(ctx, "ListBatches", http.MethodGet, batchesPath(coachingID), query, nil)
}

func (c *Client) GetBatch(ctx context.Context, coachingID, batchID string) (json.RawMessage, error) {
	return c.do(ctx, "GetBatch", http.MethodGet, batchesPath(coachingID, batchID), nil, nil)
}

func (c *Client) CreateBatch(ctx context.Context, coachingID string, in domain.BatchInput) (json.RawMessage, error) {
	return c.do(ctx, "CreateBatch", http.MethodPost, batchesPath(coachingID), nil, batchInputToWire(in))
}

func (c *Client) UpdateBatch(ctx context.Context, coachingID, batchID string, in domain.BatchInput) (json.RawMessage, error) {
	return c.do(ctx, "UpdateBatch", http.MethodPut, batchesPath(coachingID, batchID), nil, batchInputToWire(in))
}

func (c *Client) DeleteBatch(ctx context.Context, coachingID, batchID string) error {
	_, err := c.do(ctx, "DeleteBatch", http.MethodDelete, batchesPath(coachingID, batchID), nil, nil)
	return err
}

func (c *Client) ListMembers(ctx context.Context, coachingID, batchID string) (json.RawMessage, error) {
	return c.do(ctx, "ListMembers", http.MethodGet, batchesPath(coachingID, batchID, "members"), nil, nil)
}

func (c *Client) AddMembers(ctx context.Context, coachingID, batchID string, userIDs []string) (json.RawMessage, error) {
	return c.do(ctx, "AddMembers", http.MethodPost, batchesPath(coachingID, batchID, "members"), nil, addMembersWire{UserIDs: userIDs})
}

func (c *Client) RemoveMember(ctx context.Context, coachingID, batchID, userID string) error {
	_, err := c.do(ctx, "RemoveMember", http.MethodDelete, batchesPath(coachingID, batchID, "members", userID), nil, nil)
	return err
}

func (c *Client) ListNotes(ctx context.Context, coachingID, batchID string) (json.RawMessage, error) {
	return c.do(ctx, "ListNotes", http.MethodGet, batchesPath(coachingID, batchID, "notes"), nil, nil)
}

func (c *Client) ListRecentNotes(ctx context.Context, coachingID string) (json.RawMessage, error) {
	return c.do(ctx, "ListRecentNotes", http.MethodGet, resourcePath("coachings", coachingID, "notes", "recent"), nil, nil)
}

func (c *Client) CreateNote(ctx context.Context, coachingID, batchID string, in domain.NoteInput) (json.RawMessage, error) {
	return c.do(ctx, "CreateNote", http.MethodPost, batchesPath(coachingID, batchID, "notes"), nil, noteInputToWire(in))
}

func (c *Client) DeleteNote(ctx context.Context, coachingID, batchID, noteID string) error {
	_, err := c.do(ctx, "DeleteNote", http.MethodDelete, batchesPath(coachingID, batchID, "notes", noteID), nil, nil)
	return err
}

func (c *Client) ListNotices(ctx context.Context, coachingID, batchID string) (json.RawMessage, error) {
	return c.do(ctx, "ListNotices", http.MethodGet, batchesPath(coachingID, batchID, "notices"), nil, nil)
}

func (c *Client) CreateNotice(ctx context.Context, coachingID, batchID string, in domain.NoticeInput) (json.RawMessage, error) {
	return c.do(ctx, "CreateNotice", http.MethodPost, batchesPath(coachingID, batchID, "notices"), nil, noticeInputToWire(in))
}

func (c *Client) DeleteNotice(ctx context.Context, coachingID, batchID, noticeID string) error {
	_, err := c.do(ctx, "DeleteNotice", http.MethodDelete, batchesPath(coachingID, batchID, "notices", noticeID), nil, nil)
	return err
}

func (c *Client) do(ctx context.Context, operation string, method string, path string, query url.Values, body any) (json.RawMessage, error) {
	ctx, span := c.tracer.Start(ctx, "CoachingAPI."+operation)
	defer span.End()

	logger := logging.FromContext(ctx).With("operation", operation)

	requestURL := c.baseURL + path
	if len(query) > 0 {
		requestURL += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			err := fmt.Errorf("failed to marshal request body: %w", err)
			reporting.Report(ctx, err)
			return nil, err
		}
		bodyReader = bytes.NewReader(encoded)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		logger.WarnContext(ctx, "Did not send request due to rate limiting", "ctx_error", ctx.Err())
		return nil, fmt.Errorf("%w: too many requests to coaching API: %w", domain.ErrTemporarilyUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, requestURL, bodyReader)
	if err != nil {
		err := fmt.Errorf("failed to create request: %w", err)
		reporting.Report(ctx, err)
		return nil, err
	}

	req.Header.Set("User-Agent", constants.USER_AGENT)
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method == http.MethodPost {
		// NOTE: A client retrying with the same key gets the original result back from the coaching API
		idempotencyKey, ok := domain.IdempotencyKeyFromContext(ctx)
		if !ok {
			idempotencyKey = uuid.NewString()
		}
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: request to coaching API cancelled: %w", domain.ErrTemporarilyUnavailable, err)
		}
		err := fmt.Errorf("failed to send request: %w", err)
		reporting.Report(ctx, err)
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		err := fmt.Errorf("failed to read response body: %w", err)
		reporting.Report(ctx, err)
		return nil, err
	}

	duration := time.Since(start)
	attributes := metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("status_code", strconv.Itoa(resp.StatusCode)),
	)
	c.metrics.requestCount.Add(ctx, 1, attributes)
	c.metrics.requestDuration.Record(ctx, duration.Seconds(), attributes)

	logger.InfoContext(ctx, "coaching API request completed", "status", resp.StatusCode, "duration", duration.String())

	result, err := dataFromResponse(resp.StatusCode, data, method == http.MethodDelete)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrInvalidInput) || errors.Is(err, domain.ErrTemporarilyUnavailable) {
			// Pass through error but don't report
			return nil, err
		}

		err := fmt.Errorf("failed to get data from coaching API response: %w", err)
		reporting.Report(ctx, err, map[string]string{
			"data":   string(data),
			"status": strconv.Itoa(resp.StatusCode),
		})
		return nil, err
	}

	return result, nil
}

type responseEnvelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// dataFromResponse extracts the data field of a response.
// With bodyless set a successful response carries no data and its body is ignored.
func dataFromResponse(statusCode int, data []byte, bodyless bool) (json.RawMessage, error) {
	var envelope responseEnvelope
	parseErr := json.Unmarshal(data, &envelope)

	message := fmt.Sprintf("coaching API returned status code %d", statusCode)
	if parseErr == nil && envelope.Error != nil {
		message = fmt.Sprintf("%s (%s: %s)", message, envelope.Error.Code, envelope.Error.Message)
	}

	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return nil, fmt.Errorf("%w: %s", domain.ErrTemporarilyUnavailable, message)
	case http.StatusNotFound,
		http.StatusGone:
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, message)
	case http.StatusBadRequest,
		http.StatusConflict,
		http.StatusUnprocessableEntity:
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidInput, message)
	}

	if statusCode < 200 || statusCode >= 300 {
		return nil, errors.New(message)
	}

	if bodyless {
		return nil, nil
	}

	if parseErr != nil {
		return nil, fmt.Errorf("failed to parse coaching API response: %w", parseErr)
	}

	if len(envelope.Data) == 0 || bytes.Equal(envelope.Data, []byte("null")) {
		return nil, fmt.Errorf("coaching API response with status code %d has no data", statusCode)
	}

	return envelope.Data, nil
}
