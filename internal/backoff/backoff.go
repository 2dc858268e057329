package backoff

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/alex-ant/gomath/rational"
)

type (
	// Backoff 退避器接口
	Backoff interface {
		// Time 获取第 Attempts 次重试（或轮询）前的等待时长
		Time(context.Context, *Options) time.Duration
	}

	// Options 退避器选项
	Options struct {
		// Attempts 已经尝试的次数，从 0 开始
		Attempts int
	}
)

func attemptsOf(opts *Options) int {
	if opts == nil {
		return 0
	}
	return opts.Attempts
}

type funcBackoff func(context.Context, *Options) time.Duration

// New 使用自定义函数创建退避器
func New(fn func(context.Context, *Options) time.Duration) Backoff {
	return funcBackoff(fn)
}

func (f funcBackoff) Time(ctx context.Context, opts *Options) time.Duration {
	return f(ctx, opts)
}

type fixedBackoff time.Duration

// NewFixed 创建固定时长的退避器
func NewFixed(wait time.Duration) Backoff {
	return fixedBackoff(wait)
}

func (f fixedBackoff) Time(context.Context, *Options) time.Duration {
	return time.Duration(f)
}

type exponentialBackoff struct {
	wait time.Duration
	base float64
}

// NewExponential 创建时长按 base 指数增长的退避器，第 0 次尝试等待 wait
func NewExponential(wait time.Duration, base float64) Backoff {
	return exponentialBackoff{wait: wait, base: base}
}

func (e exponentialBackoff) Time(_ context.Context, opts *Options) time.Duration {
	return time.Duration(float64(e.wait) * math.Pow(e.base, float64(attemptsOf(opts))))
}

type limitedBackoff struct {
	base     Backoff
	min, max time.Duration
}

// NewLimited 将 base 的结果限制在 [min, max] 之间，max 为 0 时不限制上限
func NewLimited(base Backoff, min, max time.Duration) Backoff {
	return limitedBackoff{base: base, min: min, max: max}
}

func (l limitedBackoff) Time(ctx context.Context, opts *Options) time.Duration {
	d := l.base.Time(ctx, opts)
	if d < l.min {
		return l.min
	}
	if l.max > 0 && d > l.max {
		return l.max
	}
	return d
}

type randomizedBackoff struct {
	base                        Backoff
	minification, magnification rational.Rational

	mu sync.Mutex
	r  *rand.Rand
}

// NewRandomized 在 [base*minification, base*magnification) 区间内随机选取等待时长
func NewRandomized(base Backoff, minification, magnification rational.Rational) Backoff {
	if minification.LessThanNum(0) {
		panic("minification must be greater than or equal to 0")
	}
	if magnification.LessThanNum(0) || magnification.GetNumerator() == 0 {
		panic("magnification must be greater than 0")
	}
	return &randomizedBackoff{
		base:          base,
		minification:  minification,
		magnification: magnification,
		r:             rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (s *randomizedBackoff) Time(ctx context.Context, opts *Options) time.Duration {
	b := s.base.Time(ctx, opts)
	min := s.minification.MultiplyByNum(int64(b))
	max := s.magnification.MultiplyByNum(int64(b))
	diff := int64(max.Subtract(min).Float64())
	if diff <= 0 {
		return time.Duration(min.Float64())
	}
	s.mu.Lock()
	r := s.r.Int63n(diff)
	s.mu.Unlock()
	return time.Duration(min.AddNum(r).Float64())
}

// DefaultRetry 返回传输层重试使用的退避器：
// 从 100ms 开始翻倍，随机抖动 ±50%，最长 5s。
func DefaultRetry() Backoff {
	return NewLimited(
		NewRandomized(NewExponential(100*time.Millisecond, 2), rational.New(1, 2), rational.New(3, 2)),
		10*time.Millisecond,
		5*time.Second,
	)
}
