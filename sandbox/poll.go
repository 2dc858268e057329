package sandbox

import (
	"context"
	"time"

	"github.com/daytonaio/go-sdk/internal/backoff"
)

// defaultStatePollInterval 是等待沙箱状态变化时的默认轮询间隔
const defaultStatePollInterval = 100 * time.Millisecond

// PollOption 配置轮询行为的选项。
type PollOption func(*pollOpts)

type pollOpts struct {
	interval    time.Duration
	maxInterval time.Duration
	multiplier  float64 // 退避倍数，默认 1.0（无退避）
	onPoll      func(attempt int)
}

func defaultPollOpts(defaultInterval time.Duration) *pollOpts {
	return &pollOpts{
		interval:   defaultInterval,
		multiplier: 1.0,
	}
}

func applyPollOpts(defaultInterval time.Duration, opts []PollOption) *pollOpts {
	o := defaultPollOpts(defaultInterval)
	for _, fn := range opts {
		fn(o)
	}
	return o
}

// WithPollInterval 设置轮询间隔。
func WithPollInterval(d time.Duration) PollOption {
	return func(o *pollOpts) { o.interval = d }
}

// WithBackoff 设置指数退避倍数和最大间隔。
// multiplier 为每次轮询后间隔的乘数（如 1.5 表示每次增加 50%），
// maxInterval 为间隔上限（0 表示不限制）。
func WithBackoff(multiplier float64, maxInterval time.Duration) PollOption {
	return func(o *pollOpts) {
		o.multiplier = multiplier
		o.maxInterval = maxInterval
	}
}

// WithOnPoll 设置每次轮询时的回调函数。
// attempt 从 1 开始递增。
func WithOnPoll(fn func(attempt int)) PollOption {
	return func(o *pollOpts) { o.onPoll = fn }
}

// pollLoop 是等待沙箱启动、停止共享的轮询循环。
// pollFn 在每次轮询时被调用，返回 (done, result, error)。
func pollLoop[T any](ctx context.Context, opts *pollOpts, pollFn func() (bool, T, error)) (T, error) {
	if opts.interval <= 0 {
		opts.interval = defaultStatePollInterval
	}
	b := backoff.NewFixed(opts.interval)
	if opts.multiplier > 1.0 {
		b = backoff.NewLimited(backoff.NewExponential(opts.interval, opts.multiplier), 0, opts.maxInterval)
	}

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	attempt := 0
	for {
		attempt++
		if opts.onPoll != nil {
			opts.onPoll(attempt)
		}

		done, result, err := pollFn()
		if err != nil {
			return result, err
		}
		if done {
			return result, nil
		}

		interval := b.Time(ctx, &backoff.Options{Attempts: attempt})
		if timer == nil {
			timer = time.NewTimer(interval)
		} else {
			timer.Reset(interval)
		}
		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		case <-timer.C:
		}
	}
}
