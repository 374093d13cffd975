package probe

import (
	"bytes"
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/himanishpuri/AdvertDNA/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingMeasurer struct {
	kbps  int
	calls int
	data  []byte
}

func (m *recordingMeasurer) measure(_ context.Context, path string) (int, error) {
	m.calls++
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	m.data = data
	return m.kbps, nil
}

func newTestProber(t *testing.T, m *recordingMeasurer, opts ...Option) *Prober {
	t.Helper()
	base := []Option{
		WithRetry(3, time.Millisecond),
		WithSampleBudget(2*time.Second, 4096),
		WithScratchDir(t.TempDir()),
		WithMeasurer(m.measure),
		WithLogger(logger.Discard()),
	}
	return New(append(base, opts...)...)
}

func TestProbeReachableStream(t *testing.T) {
	payload := bytes.Repeat([]byte{0xff, 0xfb}, 1000)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write(payload)
	}))
	defer srv.Close()

	m := &recordingMeasurer{kbps: 128}
	res, err := newTestProber(t, m).Probe(context.Background(), srv.URL+"/live")
	require.NoError(t, err)
	assert.True(t, res.Reachable)
	assert.Equal(t, 128, res.BitrateKbps)
	assert.Equal(t, int64(len(payload)), res.SampledBytes)
	assert.Equal(t, payload, m.data)
}

func TestProbeRetriesTransientFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("audio"))
	}))
	defer srv.Close()

	m := &recordingMeasurer{kbps: 64}
	res, err := newTestProber(t, m).Probe(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.True(t, res.Reachable)
	assert.Equal(t, 64, res.BitrateKbps)
	assert.Equal(t, int32(3), hits.Load())
}

func TestProbeGivesUpAfterThreeAttempts(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	m := &recordingMeasurer{}
	res, err := newTestProber(t, m).Probe(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
	assert.Equal(t, int32(3), hits.Load())
	assert.Zero(t, m.calls)
}

func TestProbeClientErrorIsNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	res, err := newTestProber(t, &recordingMeasurer{}).Probe(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.False(t, res.Reachable)
	assert.Equal(t, int32(1), hits.Load())
}

func TestProbeTLSFailureIsUnreachableWithoutRetry(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("audio"))
	}))
	defer srv.Close()

	m := &recordingMeasurer{}
	p := newTestProber(t, m, WithRetry(3, 300*time.Millisecond))

	start := time.Now()
	res, err := p.Probe(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.False(t, res.Reachable)
	assert.Zero(t, res.BitrateKbps)
	assert.Less(t, time.Since(start), 250*time.Millisecond, "certificate errors must not be retried")
}

func TestProbeUnreachableHost(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	res, err := newTestProber(t, &recordingMeasurer{}).Probe(context.Background(), url)
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
}

func TestProbeByteBudget(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(bytes.Repeat([]byte("a"), 64*1024))
	}))
	defer srv.Close()

	m := &recordingMeasurer{kbps: 96}
	res, err := newTestProber(t, m).Probe(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, int64(4096), res.SampledBytes)
	assert.Len(t, m.data, 4096)
}

func TestProbeTimeBudgetOnEndlessStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("first chunk"))
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	m := &recordingMeasurer{kbps: 128}
	p := newTestProber(t, m, WithSampleBudget(100*time.Millisecond, 1<<20))

	start := time.Now()
	res, err := p.Probe(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.True(t, res.Reachable)
	assert.Equal(t, 128, res.BitrateKbps)
	assert.Equal(t, []byte("first chunk"), m.data)
}

func TestProbeEmptyBodySkipsMeasurement(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	m := &recordingMeasurer{kbps: 128}
	res, err := newTestProber(t, m).Probe(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.True(t, res.Reachable)
	assert.Zero(t, res.BitrateKbps)
	assert.Zero(t, m.calls)
}

func TestProbeLeavesNoScratchFiles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("audio"))
	}))
	defer srv.Close()

	scratch := t.TempDir()
	p := newTestProber(t, &recordingMeasurer{kbps: 1}, WithScratchDir(scratch))
	_, err := p.Probe(context.Background(), srv.URL)
	require.NoError(t, err)

	entries, err := os.ReadDir(scratch)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestProbeRejectsInvalidURL(t *testing.T) {
	p := newTestProber(t, &recordingMeasurer{})
	for _, raw := range []string{"", "ftp://example.com/a", "not a url", "http://"} {
		_, err := p.Probe(context.Background(), raw)
		assert.ErrorIs(t, err, ErrInvalidURL, raw)
	}
}

// pcm128 returns five seconds of 8 kHz 16-bit mono WAV, a 128 kb/s stream.
func pcm128(t *testing.T) []byte {
	t.Helper()

	const rate = 8000
	samples := make([]int, 5*rate)
	for i := range samples {
		samples[i] = int(12000 * math.Sin(2*math.Pi*440*float64(i)/rate))
	}

	path := filepath.Join(t.TempDir(), "stream.wav")
	f, err := os.Create(path)
	require.NoError(t, err)
	enc := wav.NewEncoder(f, rate, 16, 1, 1)
	require.NoError(t, enc.Write(&goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: rate},
		Data:           samples,
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

func TestProbeMeasuresStreamWithFFmpeg(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skipf("ffmpeg not found in PATH: %v", err)
	}

	payload := pcm128(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/wav")
		w.Write(payload)
	}))
	defer srv.Close()

	p := New(
		WithRetry(1, time.Millisecond),
		WithSampleBudget(5*time.Second, int64(len(payload))),
		WithScratchDir(t.TempDir()),
		WithLogger(logger.Discard()),
	)
	res, err := p.Probe(context.Background(), srv.URL+"/live.wav")
	require.NoError(t, err)
	assert.True(t, res.Reachable)
	assert.Equal(t, int64(len(payload)), res.SampledBytes)
	assert.InDelta(t, 128, res.BitrateKbps, 1)
}
