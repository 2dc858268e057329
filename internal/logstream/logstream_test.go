//go:build unit
// +build unit

package logstream_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"testing/iotest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daytonaio/go-sdk/internal/logstream"
)

type fakeChunk struct {
	data []byte
	err  error
}

// fakeSource 的分片由测试通过 push 控制，close 后返回 io.EOF
type fakeSource struct {
	chunks chan fakeChunk

	calls       int32
	inflight    int32
	maxInflight int32
	cancelled   int32
	closed      int32
}

func newFakeSource(chunks ...string) *fakeSource {
	s := &fakeSource{chunks: make(chan fakeChunk, 16)}
	for _, c := range chunks {
		s.push(c)
	}
	return s
}

func (s *fakeSource) push(chunk string) {
	s.chunks <- fakeChunk{data: []byte(chunk)}
}

func (s *fakeSource) pushErr(err error) {
	s.chunks <- fakeChunk{err: err}
}

func (s *fakeSource) end() {
	close(s.chunks)
}

func (s *fakeSource) Next(ctx context.Context) ([]byte, error) {
	atomic.AddInt32(&s.calls, 1)
	n := atomic.AddInt32(&s.inflight, 1)
	defer atomic.AddInt32(&s.inflight, -1)
	for {
		max := atomic.LoadInt32(&s.maxInflight)
		if n <= max || atomic.CompareAndSwapInt32(&s.maxInflight, max, n) {
			break
		}
	}

	select {
	case c, ok := <-s.chunks:
		if !ok {
			return nil, io.EOF
		}
		return c.data, c.err
	case <-ctx.Done():
		atomic.AddInt32(&s.cancelled, 1)
		return nil, ctx.Err()
	}
}

func (s *fakeSource) Close() error {
	atomic.StoreInt32(&s.closed, 1)
	return nil
}

type collector struct {
	mu     sync.Mutex
	chunks []string
}

func (c *collector) handle(chunk string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chunks = append(c.chunks, chunk)
}

func (c *collector) get() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.chunks...)
}

type fakeStatus struct {
	calls int32
	fn    func(call int) (*int, error)
}

func (s *fakeStatus) check(ctx context.Context) (*int, error) {
	call := int(atomic.AddInt32(&s.calls, 1))
	if s.fn == nil {
		return nil, nil
	}
	return s.fn(call)
}

func (s *fakeStatus) count() int {
	return int(atomic.LoadInt32(&s.calls))
}

func exitCode(code int) *int {
	return &code
}

func alwaysExited(int) (*int, error) {
	return exitCode(0), nil
}

func TestFollowChunksUntilEOF(t *testing.T) {
	src := newFakeSource("a", "b")
	src.end()
	status := &fakeStatus{fn: alwaysExited}
	var out collector

	err := logstream.Follow(context.Background(), src, status.check, out.handle,
		logstream.WithPollInterval(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, out.get())
	assert.Zero(t, status.count())
	assert.EqualValues(t, 1, atomic.LoadInt32(&src.closed))
	assert.EqualValues(t, 3, atomic.LoadInt32(&src.calls))
}

func TestFollowManyChunksInOrder(t *testing.T) {
	src := newFakeSource()
	var want []string
	go func() {
		for i := 0; i < 100; i++ {
			src.push(strings.Repeat("x", i+1))
		}
		src.end()
	}()
	for i := 0; i < 100; i++ {
		want = append(want, strings.Repeat("x", i+1))
	}
	var out collector

	err := logstream.Follow(context.Background(), src, (&fakeStatus{}).check, out.handle,
		logstream.WithPollInterval(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, want, out.get())
}

func TestFollowStopsAfterExitCodeSeenTwice(t *testing.T) {
	src := newFakeSource("out")
	status := &fakeStatus{fn: alwaysExited}
	var out collector

	err := logstream.Follow(context.Background(), src, status.check, out.handle,
		logstream.WithPollInterval(10*time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, []string{"out"}, out.get())
	assert.Equal(t, 2, status.count())
	// 未完成的读取被取消而不是被遗弃
	assert.EqualValues(t, 1, atomic.LoadInt32(&src.cancelled))
	assert.EqualValues(t, 0, atomic.LoadInt32(&src.inflight))
	assert.EqualValues(t, 1, atomic.LoadInt32(&src.closed))
}

func TestFollowChunkResetsExitCodeCounter(t *testing.T) {
	src := newFakeSource()
	status := &fakeStatus{}
	status.fn = func(call int) (*int, error) {
		if call == 1 {
			// 第一次看到退出码之后又有输出到达
			src.push("late")
		}
		return exitCode(0), nil
	}
	var out collector

	err := logstream.Follow(context.Background(), src, status.check, out.handle,
		logstream.WithPollInterval(50*time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, []string{"late"}, out.get())
	// 分片重置了计数，需要再连续两次看到退出码
	assert.Equal(t, 3, status.count())
}

func TestFollowKeepsSingleOutstandingFetch(t *testing.T) {
	src := newFakeSource()
	status := &fakeStatus{fn: func(call int) (*int, error) {
		if call < 4 {
			return nil, nil
		}
		return exitCode(1), nil
	}}
	var out collector

	err := logstream.Follow(context.Background(), src, status.check, out.handle,
		logstream.WithPollInterval(5*time.Millisecond))
	require.NoError(t, err)
	assert.Empty(t, out.get())
	assert.Equal(t, 5, status.count())
	// 多次超时复用同一个读取
	assert.EqualValues(t, 1, atomic.LoadInt32(&src.calls))
	assert.EqualValues(t, 1, atomic.LoadInt32(&src.maxInflight))
}

func TestFollowCancelledMidFetch(t *testing.T) {
	src := newFakeSource()
	var out collector
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := logstream.Follow(ctx, src, (&fakeStatus{}).check, out.handle,
		logstream.WithPollInterval(time.Hour))
	require.Error(t, err)
	assert.ErrorIs(t, err, logstream.ErrCancelled)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, out.get())
	assert.EqualValues(t, 0, atomic.LoadInt32(&src.inflight))
	assert.EqualValues(t, 1, atomic.LoadInt32(&src.closed))

	// 取消之后到达的数据不会再触发回调
	src.push("too late")
	assert.Empty(t, out.get())
}

func TestFollowCancelledDuringStatusCheck(t *testing.T) {
	src := newFakeSource()
	ctx, cancel := context.WithCancel(context.Background())
	status := func(ctx context.Context) (*int, error) {
		cancel()
		<-ctx.Done()
		return nil, ctx.Err()
	}

	err := logstream.Follow(ctx, src, status, func(string) {},
		logstream.WithPollInterval(time.Millisecond))
	assert.ErrorIs(t, err, logstream.ErrCancelled)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFollowDecodeError(t *testing.T) {
	src := newFakeSource("ok", "bad\xff")
	var out collector

	err := logstream.Follow(context.Background(), src, (&fakeStatus{}).check, out.handle,
		logstream.WithPollInterval(time.Hour))
	var decodeErr *logstream.DecodeError
	require.True(t, errors.As(err, &decodeErr))
	assert.Equal(t, 3, decodeErr.Offset)
	assert.Equal(t, []string{"ok"}, out.get())
	assert.EqualValues(t, 1, atomic.LoadInt32(&src.closed))
}

func TestFollowPropagatesSourceError(t *testing.T) {
	boom := errors.New("connection reset")
	src := newFakeSource("a")
	src.pushErr(boom)
	var out collector

	err := logstream.Follow(context.Background(), src, (&fakeStatus{}).check, out.handle,
		logstream.WithPollInterval(time.Hour))
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, logstream.ErrCancelled)
	assert.Equal(t, []string{"a"}, out.get())
}

func TestFollowPropagatesStatusError(t *testing.T) {
	boom := errors.New("status 500")
	src := newFakeSource()
	status := &fakeStatus{fn: func(int) (*int, error) { return nil, boom }}

	err := logstream.Follow(context.Background(), src, status.check, func(string) {},
		logstream.WithPollInterval(time.Millisecond))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, status.count())
	assert.EqualValues(t, 0, atomic.LoadInt32(&src.inflight))
	assert.EqualValues(t, 1, atomic.LoadInt32(&src.closed))
}

func TestFollowEmptyChunkEndsStream(t *testing.T) {
	src := newFakeSource("a", "", "b")
	var out collector

	err := logstream.Follow(context.Background(), src, (&fakeStatus{}).check, out.handle,
		logstream.WithPollInterval(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, out.get())
}

func TestFollowExitCodeThreshold(t *testing.T) {
	src := newFakeSource()
	status := &fakeStatus{fn: alwaysExited}

	err := logstream.Follow(context.Background(), src, status.check, func(string) {},
		logstream.WithPollInterval(time.Millisecond),
		logstream.WithExitCodeThreshold(1))
	require.NoError(t, err)
	assert.Equal(t, 1, status.count())
}

func TestReaderSourceKeepsRunesWhole(t *testing.T) {
	const text = "héllo, 世界 ✓\n"
	src := logstream.NewReaderSource(io.NopCloser(iotest.OneByteReader(strings.NewReader(text))), 0)
	var out collector

	err := logstream.Follow(context.Background(), src, (&fakeStatus{}).check, out.handle,
		logstream.WithPollInterval(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, text, strings.Join(out.get(), ""))
	for _, chunk := range out.get() {
		assert.NotContains(t, chunk, "�")
	}
}

func TestReaderSourceTruncatedRune(t *testing.T) {
	src := logstream.NewReaderSource(io.NopCloser(strings.NewReader("abc\xe4\xb8")), 2)

	var out collector
	err := logstream.Follow(context.Background(), src, (&fakeStatus{}).check, out.handle,
		logstream.WithPollInterval(time.Hour))
	var decodeErr *logstream.DecodeError
	require.True(t, errors.As(err, &decodeErr))
	assert.Equal(t, "abc", strings.Join(out.get(), ""))
}

type blockingReader struct {
	closed chan struct{}
	once   sync.Once
}

func (r *blockingReader) Read([]byte) (int, error) {
	<-r.closed
	return 0, errors.New("read on closed body")
}

func (r *blockingReader) Close() error {
	r.once.Do(func() { close(r.closed) })
	return nil
}

func TestReaderSourceCloseUnblocksRead(t *testing.T) {
	body := &blockingReader{closed: make(chan struct{})}
	src := logstream.NewReaderSource(body, 0)
	status := &fakeStatus{fn: alwaysExited}

	done := make(chan error, 1)
	go func() {
		done <- logstream.Follow(context.Background(), src, status.check, func(string) {},
			logstream.WithPollInterval(5*time.Millisecond))
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Follow did not return after the command exited")
	}
	assert.Equal(t, 2, status.count())
}
