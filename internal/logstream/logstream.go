// Package logstream 实现会话命令日志的跟随读取。
//
// 日志流本身不保证在命令结束后关闭，因此读取分片与定时查询退出码并行进行：
// 分片先到则分发给回调；定时器先到则查询一次退出码，连续若干次查询都看到退出码
// 且期间没有新分片时认为命令已经结束。
package logstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
)

const (
	DefaultPollInterval      = 2 * time.Second
	DefaultExitCodeThreshold = 2
)

// ErrCancelled 表示调用方主动取消了跟随，返回的错误同时包装了 ctx.Err()。
var ErrCancelled = errors.New("log stream cancelled")

// DecodeError 表示日志分片不是合法的 UTF-8。
type DecodeError struct {
	// Offset 为分片中第一个非法字节的位置
	Offset int
	Chunk  []byte
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("log chunk is not valid utf-8 at byte %d", e.Offset)
}

// Source 是一个只能顺序读取一次的日志分片序列。
type Source interface {
	// Next 阻塞直到下一个分片到达，数据结束时返回 io.EOF
	Next(ctx context.Context) ([]byte, error)
	// Close 释放底层连接，并使阻塞中的 Next 尽快返回
	Close() error
}

// StatusFunc 查询命令退出码，命令仍在运行时返回 nil。
type StatusFunc func(ctx context.Context) (exitCode *int, err error)

// Handler 按到达顺序接收解码后的日志分片，不会被并发调用。
type Handler func(chunk string)

type Option func(*options)

type options struct {
	interval  time.Duration
	threshold int
	logger    logrus.FieldLogger
}

// WithPollInterval 设置等待分片的时长，超过后查询一次退出码。
func WithPollInterval(d time.Duration) Option {
	return func(o *options) { o.interval = d }
}

// WithExitCodeThreshold 设置连续看到退出码多少次后结束跟随。
func WithExitCodeThreshold(n int) Option {
	return func(o *options) { o.threshold = n }
}

// WithLogger 设置调试日志输出。
func WithLogger(logger logrus.FieldLogger) Option {
	return func(o *options) { o.logger = logger }
}

func applyOptions(opts []Option) *options {
	o := &options{
		interval:  DefaultPollInterval,
		threshold: DefaultExitCodeThreshold,
	}
	for _, fn := range opts {
		fn(o)
	}
	if o.interval <= 0 {
		o.interval = DefaultPollInterval
	}
	if o.threshold <= 0 {
		o.threshold = DefaultExitCodeThreshold
	}
	if o.logger == nil {
		o.logger = logrus.StandardLogger()
	}
	return o
}

type fetchResult struct {
	chunk []byte
	err   error
}

// Follow 读取 src 直到数据结束、命令确认退出、出错或 ctx 被取消。
// 任意时刻最多只有一个 Next 调用在进行；返回前会取消该调用、关闭 src 并等待其退出。
// 数据结束或命令退出时返回 nil。
func Follow(ctx context.Context, src Source, status StatusFunc, handler Handler, opts ...Option) (err error) {
	o := applyOptions(opts)

	fetchCtx, cancelFetch := context.WithCancel(ctx)
	var (
		wg      sync.WaitGroup
		pending <-chan fetchResult
	)
	defer func() {
		cancelFetch()
		if closeErr := src.Close(); closeErr != nil {
			o.logger.WithError(closeErr).Debug("close log source")
		}
		wg.Wait()
	}()

	cancelled := func() error {
		return fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
	}

	seen := 0
	for {
		if pending == nil {
			ch := make(chan fetchResult, 1)
			wg.Add(1)
			go func() {
				defer wg.Done()
				chunk, err := src.Next(fetchCtx)
				ch <- fetchResult{chunk: chunk, err: err}
			}()
			pending = ch
		}

		timer := time.NewTimer(o.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return cancelled()

		case res := <-pending:
			timer.Stop()
			pending = nil
			if res.err != nil {
				if errors.Is(res.err, io.EOF) {
					return nil
				}
				if ctx.Err() != nil {
					return cancelled()
				}
				return res.err
			}
			if len(res.chunk) == 0 {
				return nil
			}
			if !utf8.Valid(res.chunk) {
				return &DecodeError{Offset: invalidOffset(res.chunk), Chunk: res.chunk}
			}
			seen = 0
			handler(string(res.chunk))

		case <-timer.C:
			exitCode, err := status(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return cancelled()
				}
				return err
			}
			if exitCode == nil {
				continue
			}
			seen++
			o.logger.WithFields(logrus.Fields{
				"exit_code": *exitCode,
				"seen":      seen,
			}).Debug("command exit code observed while waiting for logs")
			if seen >= o.threshold {
				return nil
			}
		}
	}
}

func invalidOffset(b []byte) int {
	for i := 0; i < len(b); {
		r, size := utf8.DecodeRune(b[i:])
		if r == utf8.RuneError && size <= 1 {
			return i
		}
		i += size
	}
	return len(b)
}
