package sandbox

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/daytonaio/go-sdk/internal/clientv2"
	"github.com/daytonaio/go-sdk/internal/configfile"
	"github.com/daytonaio/go-sdk/internal/env"
)

// DefaultServerURL 是 Daytona API 的默认服务地址。
const DefaultServerURL = "https://app.daytona.io/api"

// DefaultRetryMax 是幂等请求默认的最大重试次数。
const DefaultRetryMax = 3

// Target 是沙箱所在的区域。
type Target string

const (
	TargetEU   Target = "eu"
	TargetUS   Target = "us"
	TargetAsia Target = "asia"
)

// DefaultTarget 是未指定区域时使用的区域。
const DefaultTarget = TargetUS

// Config 是沙箱客户端的配置。
//
// 未设置的字段依次从环境变量（DAYTONA_API_KEY、DAYTONA_SERVER_URL、DAYTONA_TARGET）
// 和配置文件（DAYTONA_CONFIG_FILE，默认 ~/.daytona/config.toml，profile 由 DAYTONA_PROFILE 指定）中读取。
type Config struct {
	// APIKey 是用于身份认证的 API 密钥（必填）。
	APIKey string `validate:"required"`

	// ServerURL 是 API 服务地址（可选，默认值：DefaultServerURL）。
	ServerURL string `validate:"required,url"`

	// Target 是创建沙箱的默认区域（可选，默认值：DefaultTarget）。
	Target Target `validate:"required,oneof=eu us asia"`

	// HTTPClient 自定义 HTTP 客户端（可选，默认值：http.DefaultClient）。
	// 日志跟随使用长连接，不要设置 http.Client.Timeout。
	HTTPClient *http.Client `validate:"-"`

	// RetryMax 是幂等请求的最大重试次数，0 表示 DefaultRetryMax，负数表示不重试。
	RetryMax int

	// Logger 是 SDK 的日志输出（可选，默认值：logrus.StandardLogger()）。
	Logger logrus.FieldLogger `validate:"-"`
}

// Client 是沙箱 SDK 的高级客户端。
type Client struct {
	config Config
	http   clientv2.Client
	logger logrus.FieldLogger
}

// NewClient 创建一个新的沙箱客户端。config 为 nil 时完全使用环境变量和配置文件。
func NewClient(config *Config) (*Client, error) {
	cfg, err := resolveConfig(config)
	if err != nil {
		return nil, err
	}

	var coreClient clientv2.Client
	if cfg.HTTPClient != nil {
		coreClient = cfg.HTTPClient
	}
	interceptors := []clientv2.Interceptor{
		clientv2.NewAuthInterceptor(clientv2.AuthConfig{APIKey: cfg.APIKey}),
	}
	if cfg.RetryMax > 0 {
		interceptors = append(interceptors, clientv2.NewSimpleRetryInterceptor(clientv2.RetryOptions{
			RetryMax: cfg.RetryMax,
		}))
	}

	return &Client{
		config: cfg,
		http:   clientv2.NewClient(coreClient, interceptors...),
		logger: cfg.Logger,
	}, nil
}

func resolveConfig(config *Config) (Config, error) {
	var cfg Config
	if config != nil {
		cfg = *config
	}

	if cfg.APIKey == "" {
		cfg.APIKey = env.APIKeyFromEnvironment()
	}
	if cfg.ServerURL == "" {
		cfg.ServerURL = env.ServerURLFromEnvironment()
	}
	if cfg.Target == "" {
		cfg.Target = Target(env.TargetFromEnvironment())
	}

	if cfg.APIKey == "" || cfg.ServerURL == "" || cfg.Target == "" {
		profile, err := configfile.CurrentProfile()
		if err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
		if profile != nil {
			if cfg.APIKey == "" {
				cfg.APIKey = profile.APIKey
			}
			if cfg.ServerURL == "" {
				cfg.ServerURL = profile.ServerURL
			}
			if cfg.Target == "" {
				cfg.Target = Target(profile.Target)
			}
		}
	}

	if cfg.APIKey == "" {
		return cfg, ErrMissingAPIKey
	}
	if cfg.ServerURL == "" {
		cfg.ServerURL = DefaultServerURL
	}
	cfg.ServerURL = strings.TrimSuffix(cfg.ServerURL, "/")
	if cfg.Target == "" {
		cfg.Target = DefaultTarget
	}
	switch {
	case cfg.RetryMax == 0:
		cfg.RetryMax = DefaultRetryMax
	case cfg.RetryMax < 0:
		cfg.RetryMax = 0
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}

	if err := defaultValidator.Validate(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ServerURL 返回客户端使用的 API 服务地址。
func (c *Client) ServerURL() string { return c.config.ServerURL }

// Target 返回客户端创建沙箱时的默认区域。
func (c *Client) Target() Target { return c.config.Target }
