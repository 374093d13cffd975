package probe

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/himanishpuri/AdvertDNA/pkg/advertdna/audio"
	"github.com/himanishpuri/AdvertDNA/pkg/logger"
	"github.com/himanishpuri/AdvertDNA/pkg/utils"
)

var (
	// ErrInvalidURL is the only error Probe returns. Network failures become
	// an unreachable Result.
	ErrInvalidURL = errors.New("invalid stream url")
	// ErrTransport tags logged network failures.
	ErrTransport = errors.New("stream transport error")
)

// Measurer reports the bitrate in kb/s of the sample at path.
type Measurer func(ctx context.Context, path string) (int, error)

type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Debugf(format string, args ...any)
}

// Result is the outcome of probing one stream.
type Result struct {
	Reachable   bool
	BitrateKbps int
	// SampledBytes is the size of the prefix handed to the measurer.
	SampledBytes int64
}

type Prober struct {
	client         *http.Client
	attempts       int
	initialBackoff time.Duration
	sampleDuration time.Duration
	maxBytes       int64
	scratchDir     string
	measure        Measurer
	log            Logger
}

type Option func(*Prober)

func WithHTTPClient(c *http.Client) Option {
	return func(p *Prober) { p.client = c }
}

// WithRetry sets the total number of attempts and the first backoff delay.
func WithRetry(attempts int, initial time.Duration) Option {
	return func(p *Prober) {
		p.attempts = attempts
		p.initialBackoff = initial
	}
}

// WithSampleBudget caps how long and how many bytes of the stream are read.
func WithSampleBudget(d time.Duration, maxBytes int64) Option {
	return func(p *Prober) {
		p.sampleDuration = d
		p.maxBytes = maxBytes
	}
}

func WithScratchDir(dir string) Option {
	return func(p *Prober) { p.scratchDir = dir }
}

func WithMeasurer(m Measurer) Option {
	return func(p *Prober) { p.measure = m }
}

// WithTranscoder measures samples with the given ffmpeg binary.
func WithTranscoder(binary string) Option {
	return func(p *Prober) {
		p.measure = func(ctx context.Context, path string) (int, error) {
			return audio.MeasureBitrate(ctx, binary, path)
		}
	}
}

func WithLogger(log Logger) Option {
	return func(p *Prober) { p.log = log }
}

func New(opts ...Option) *Prober {
	p := &Prober{
		client:         &http.Client{},
		attempts:       3,
		initialBackoff: 500 * time.Millisecond,
		sampleDuration: 10 * time.Second,
		maxBytes:       1 << 20,
		scratchDir:     os.TempDir(),
	}
	WithTranscoder("ffmpeg")(p)
	for _, opt := range opts {
		opt(p)
	}
	if p.attempts < 1 {
		p.attempts = 1
	}
	if p.log == nil {
		p.log = logger.GetLogger()
	}
	return p
}

// Probe checks that rawURL answers 200 and measures the bitrate of a bounded
// prefix of the stream. Callers bound the overall duration through ctx.
func (p *Prober) Probe(ctx context.Context, rawURL string) (Result, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Result{}, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}

	resp, err := p.fetch(ctx, u.String())
	if err != nil {
		p.log.Warnf("%v: %s: %v", ErrTransport, u.Redacted(), err)
		return Result{}, nil
	}
	defer resp.Body.Close()

	res := Result{Reachable: true}
	path, n, err := p.sample(resp.Body)
	defer func() {
		if err := utils.RemoveIfExists(path); err != nil {
			p.log.Warnf("%v", err)
		}
	}()
	if err != nil {
		p.log.Warnf("Sampling %s: %v", u.Redacted(), err)
		return res, nil
	}
	res.SampledBytes = n
	if n == 0 {
		p.log.Warnf("Stream %s returned no audio", u.Redacted())
		return res, nil
	}

	kbps, err := p.measure(ctx, path)
	if err != nil {
		p.log.Warnf("Measuring bitrate of %s: %v", u.Redacted(), err)
		return res, nil
	}
	res.BitrateKbps = kbps
	p.log.Infof("Stream %s: %d kb/s from %d sampled bytes", u.Redacted(), kbps, n)
	return res, nil
}

// fetch retries transient failures with exponential backoff. TLS failures
// and non-retryable statuses stop immediately.
func (p *Prober) fetch(ctx context.Context, target string) (*http.Response, error) {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.initialBackoff
	exp.MaxElapsedTime = 0
	exp.Reset()

	policy := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(p.attempts-1)), ctx)

	attempt := 0
	return backoff.RetryWithData(func() (*http.Response, error) {
		attempt++
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, backoff.Permanent(err)
		}

		resp, err := p.client.Do(req)
		if err != nil {
			if isTLSError(err) {
				return nil, backoff.Permanent(err)
			}
			p.log.Debugf("Attempt %d/%d for %s failed: %v", attempt, p.attempts, req.URL.Redacted(), err)
			return nil, err
		}

		if resp.StatusCode == http.StatusOK {
			return resp, nil
		}
		resp.Body.Close()

		statusErr := fmt.Errorf("unexpected status %s", resp.Status)
		if retryableStatus(resp.StatusCode) {
			p.log.Debugf("Attempt %d/%d for %s: %v", attempt, p.attempts, req.URL.Redacted(), statusErr)
			return nil, statusErr
		}
		return nil, backoff.Permanent(statusErr)
	}, policy)
}

// sample copies at most maxBytes of body into a scratch file, giving up on
// the stream once sampleDuration has passed.
func (p *Prober) sample(body io.ReadCloser) (string, int64, error) {
	f, err := os.CreateTemp(p.scratchDir, "probe-*.sample")
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	timer := time.AfterFunc(p.sampleDuration, func() { body.Close() })
	defer timer.Stop()

	n, err := io.Copy(f, io.LimitReader(body, p.maxBytes))
	if err != nil && n == 0 {
		return f.Name(), 0, err
	}
	// A live stream never ends, so hitting either budget is the normal exit.
	return f.Name(), n, nil
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

func isTLSError(err error) bool {
	var (
		verifyErr   *tls.CertificateVerificationError
		headerErr   tls.RecordHeaderError
		alertErr    tls.AlertError
		unknownAuth x509.UnknownAuthorityError
		hostnameErr x509.HostnameError
		invalidCert x509.CertificateInvalidError
	)
	return errors.As(err, &verifyErr) ||
		errors.As(err, &headerErr) ||
		errors.As(err, &alertErr) ||
		errors.As(err, &unknownAuth) ||
		errors.As(err, &hostnameErr) ||
		errors.As(err, &invalidCert)
}
