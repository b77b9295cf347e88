// Package wire implements the typed transport layer for the Gemini
// JSON-over-HTTPS API: request/response encoding, unary and streamed-array
// exchanges, the resumable upload protocol, and the classification of every
// transport or HTTP failure into a closed error taxonomy.
package wire

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	log "github.com/nghyane/gemini-wire/internal/logging"
)

const (
	// DefaultBaseURL is the public Gemini API endpoint.
	DefaultBaseURL = "https://generativelanguage.googleapis.com"

	apiKeyHeader    = "x-goog-api-key"
	requestIDHeader = "x-goog-request-id"

	defaultUserAgent = "gemini-wire/1.0"

	// streamReadSize is the read granularity for streamed array bodies.
	// Buffering never grows past the current incomplete element plus one read.
	streamReadSize = 16 * 1024
)

// Client performs request/response exchanges against one API base URL.
// It holds no per-call state: every operation owns its connection and its
// outcome exclusively, and a Client may be shared across goroutines.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      func() string
	tokenSource oauth2.TokenSource
	userAgent   string
	timeout     time.Duration
}

// Option configures a Client at construction time.
type Option func(*Client)

// WithAPIKey sets a static API key credential.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = func() string { return key } }
}

// WithAPIKeySource sets a dynamic API key credential. The function is
// consulted on every call, so a rotated key takes effect without rebuilding
// the client.
func WithAPIKeySource(source func() string) Option {
	return func(c *Client) { c.apiKey = source }
}

// WithTokenSource sets an OAuth bearer credential used when no API key is
// configured.
func WithTokenSource(ts oauth2.TokenSource) Option {
	return func(c *Client) { c.tokenSource = ts }
}

// WithBaseURL overrides the API endpoint.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = baseURL }
}

// WithHTTPClient substitutes the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithTimeout bounds every unary call issued by the client, applied as a
// per-call context deadline. Streaming calls are never bounded by it: a
// server-controlled stream has no meaningful total duration, so only the
// caller's own context can end one.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// NewClient builds a client over the shared tuned transport.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Transport: SharedTransport},
		baseURL:    DefaultBaseURL,
		userAgent:  defaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the endpoint the client targets.
func (c *Client) BaseURL() string { return c.baseURL }

// unaryContext derives the deadline-bounded context for one unary exchange.
// The cancel func is always non-nil.
func (c *Client) unaryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

// newRequest builds an authenticated request. Returns a missing-credential
// error when neither an API key nor a token source is configured.
func (c *Client) newRequest(ctx context.Context, method, url string, body io.Reader) (*http.Request, *Error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, NewError(KindInvalidRequest, "build request: "+err.Error(), err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set(requestIDHeader, uuid.NewString())

	if c.apiKey != nil {
		if key := c.apiKey(); key != "" {
			req.Header.Set(apiKeyHeader, key)
			return req, nil
		}
	}
	if c.tokenSource != nil {
		tok, tokenErr := c.tokenSource.Token()
		if tokenErr != nil {
			return nil, NewError(KindInvalidAPIKey, "fetch bearer token: "+tokenErr.Error(), tokenErr)
		}
		tok.SetAuthHeader(req)
		return req, nil
	}
	return nil, NewError(KindMissingAPIKey, "no API key or token source configured", nil)
}

// do issues the request and unwraps any content encoding on the response.
// Transport faults come back classified; HTTP status handling is the
// caller's job.
func (c *Client) do(req *http.Request) (*http.Response, *Error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, ClassifyTransport(err)
	}
	decoded, decErr := decodeResponseBody(resp.Body, resp.Header.Get("Content-Encoding"))
	if decErr != nil {
		_ = resp.Body.Close()
		return nil, NewError(KindConnectionError, decErr.Error(), decErr)
	}
	resp.Body = decoded
	return resp, nil
}

// Post performs one unary exchange: encode the request, issue exactly one
// HTTP call, and either decode the 2xx body into Resp or return one
// classified error. There is no partial success and nothing is retried.
func Post[Req, Resp any](ctx context.Context, c *Client, path string, request Req) (Resp, *Error) {
	var zero Resp

	body, cerr := Encode(request)
	if cerr != nil {
		return zero, cerr
	}

	ctx, cancel := c.unaryContext(ctx)
	defer cancel()

	req, cerr := c.newRequest(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if cerr != nil {
		return zero, cerr
	}

	resp, cerr := c.do(req)
	if cerr != nil {
		log.WithField("path", path).WithError(cerr).Debug("unary call failed")
		return zero, cerr
	}
	defer func() {
		if errClose := resp.Body.Close(); errClose != nil {
			log.Errorf("unary client: close response body error: %v", errClose)
		}
	}()

	data, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return zero, ClassifyTransport(readErr)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Debugf("unary client: error status %d on %s", resp.StatusCode, path)
		return zero, Classify(resp.StatusCode, string(data))
	}
	return Decode[Resp](data)
}

// Stream is a pull-based, single-consumer view over a streamed JSON array
// response. Each Next advances to one decoded element; it blocks only on
// the bytes needed to complete that element, so a slow consumer exerts
// backpressure on the connection instead of buffering.
//
// Iterate with:
//
//	for stream.Next() {
//	    use(stream.Current())
//	}
//	if err := stream.Err(); err != nil { ... }
//
// Close releases the connection and is safe on every exit path, including
// early abandonment.
type Stream[T any] struct {
	body     io.ReadCloser
	splitter *arraySplitter
	readBuf  []byte
	queue    [][]byte
	current  T
	err      *Error
	// pendingErr holds a fault observed while complete elements were still
	// queued: those elements are surfaced first, the error after them.
	pendingErr *Error
	finished   bool
	closed     bool
}

func newStream[T any](body io.ReadCloser) *Stream[T] {
	return &Stream[T]{
		body:     body,
		splitter: newArraySplitter(),
		readBuf:  make([]byte, streamReadSize),
	}
}

// Next advances to the next element. It returns false at the end of the
// array or on the first failure; after a failure Err is non-nil and the
// elements already returned remain valid.
func (s *Stream[T]) Next() bool {
	if s.err != nil {
		return false
	}

	for len(s.queue) == 0 {
		if s.pendingErr != nil {
			s.err = s.pendingErr
			return false
		}
		if s.finished {
			return false
		}

		n, readErr := s.body.Read(s.readBuf)
		if n > 0 {
			elems, splitErr := s.splitter.feed(s.readBuf[:n])
			s.queue = append(s.queue, elems...)
			if splitErr != nil {
				s.halt(NewError(KindStreamInterrupted, splitErr.Error(), splitErr))
				continue
			}
			if s.splitter.done {
				s.finished = true
				_ = s.Close()
				continue
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				if finErr := s.splitter.finish(); finErr != nil {
					s.halt(NewError(KindStreamInterrupted, finErr.Error(), finErr))
				} else {
					s.finished = true
					_ = s.Close()
				}
			} else {
				s.halt(NewError(KindStreamInterrupted, readErr.Error(), readErr))
			}
		}
	}

	raw := s.queue[0]
	s.queue = s.queue[1:]
	value, decErr := Decode[T](raw)
	if decErr != nil {
		// One undecodable element terminates the sequence; the prefix the
		// consumer already saw is not revoked.
		s.queue = nil
		s.err = NewError(KindStreamInterrupted, decErr.Message(), decErr)
		_ = s.Close()
		return false
	}
	s.current = value
	return true
}

// Current returns the element produced by the last successful Next.
func (s *Stream[T]) Current() T { return s.current }

// Err returns the terminal classified error, or nil after normal completion.
func (s *Stream[T]) Err() *Error { return s.err }

// Close releases the underlying connection. Idempotent; never panics on
// double close or close-after-error.
func (s *Stream[T]) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.body.Close()
}

func (s *Stream[T]) halt(err *Error) {
	if s.pendingErr == nil {
		s.pendingErr = err
	}
	_ = s.Close()
}

// PostStream performs a streaming exchange: the response body is one JSON
// array whose elements surface through the returned Stream as they arrive.
// A non-2xx status observed before any body bytes short-circuits to the
// classified error without touching the array decoder; a transport fault at
// initiation classifies as a stream initialization failure.
func PostStream[Req, Resp any](ctx context.Context, c *Client, path string, request Req) (*Stream[Resp], *Error) {
	body, cerr := Encode(request)
	if cerr != nil {
		return nil, cerr
	}

	req, cerr := c.newRequest(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if cerr != nil {
		return nil, cerr
	}

	resp, cerr := c.do(req)
	if cerr != nil {
		log.WithField("path", path).WithError(cerr).Debug("stream call failed to start")
		return nil, NewError(KindStreamInitializationError, cerr.Message(), cerr)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		log.Debugf("streaming client: error status %d on %s", resp.StatusCode, path)
		return nil, Classify(resp.StatusCode, string(data))
	}
	return newStream[Resp](resp.Body), nil
}
