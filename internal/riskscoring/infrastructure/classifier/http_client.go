// Package classifier 外部风险分类服务的 HTTP 适配器
package classifier

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"

	"github.com/wyfcoding/paymentrisk/internal/riskscoring/domain"
	"github.com/wyfcoding/paymentrisk/pkg/logger"
)

// Config 分类服务客户端配置
type Config struct {
	BaseURL            string
	Timeout            time.Duration
	BreakerMaxFailures uint32
	BreakerOpenTimeout time.Duration
}

type predictRequest struct {
	Amount               float64 `json:"amount"`
	Scheme               string  `json:"scheme"`
	Vendor               string  `json:"vendor"`
	PaymentBehavior      string  `json:"payment_behavior"`
	DaysSinceLastPayment *int    `json:"days_since_last_payment,omitempty"`
}

type predictResponse struct {
	RiskScore *float64 `json:"risk_score"`
	Reasons   []string `json:"reasons"`
	IsAnomaly bool     `json:"is_anomaly"`
}

// HTTPClassifier 通过 resty 调用 POST /predict，熔断打开或调用失败时返回本地降级结果
type HTTPClassifier struct {
	client  *resty.Client
	breaker *gobreaker.CircuitBreaker
}

// New 创建分类服务客户端
func New(cfg Config) *HTTPClassifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.BreakerMaxFailures == 0 {
		cfg.BreakerMaxFailures = 5
	}
	if cfg.BreakerOpenTimeout <= 0 {
		cfg.BreakerOpenTimeout = 30 * time.Second
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	maxFailures := cfg.BreakerMaxFailures
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "risk-classifier",
		MaxRequests: 1,
		Timeout:     cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn(context.Background(), "classifier circuit breaker state changed",
				"breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &HTTPClassifier{client: client, breaker: breaker}
}

// Classify 永不返回错误：任何失败都落到 domain.FallbackClassification
func (c *HTTPClassifier) Classify(ctx context.Context, req domain.ClassificationRequest) domain.Classification {
	body := predictRequest{
		Amount:               req.Amount.InexactFloat64(),
		Scheme:               req.Scheme,
		Vendor:               req.Vendor,
		PaymentBehavior:      string(req.PaymentBehavior),
		DaysSinceLastPayment: req.DaysSinceLastPayment,
	}

	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.predict(ctx, body)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			logger.Debug(ctx, "classifier breaker open, using fallback")
		} else {
			logger.Warn(ctx, "classifier call failed, using fallback", "error", err)
		}
		return domain.FallbackClassification(req.Amount)
	}

	resp := out.(*predictResponse)
	return domain.Classification{
		Score:     clamp(*resp.RiskScore),
		Reasons:   resp.Reasons,
		IsAnomaly: resp.IsAnomaly,
		Available: true,
	}
}

func (c *HTTPClassifier) predict(ctx context.Context, body predictRequest) (*predictResponse, error) {
	var result predictResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&result).
		Post("/predict")
	if err != nil {
		return nil, fmt.Errorf("classifier request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("classifier returned status %d", resp.StatusCode())
	}
	if result.RiskScore == nil {
		return nil, fmt.Errorf("classifier response missing risk_score")
	}
	return &result, nil
}

// Ping 调用 GET / 检查服务可达
func (c *HTTPClassifier) Ping(ctx context.Context) error {
	resp, err := c.client.R().SetContext(ctx).Get("/")
	if err != nil {
		return fmt.Errorf("classifier unreachable: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("classifier health returned status %d", resp.StatusCode())
	}
	return nil
}

// State 熔断器当前状态
func (c *HTTPClassifier) State() string {
	return c.breaker.State().String()
}

// clamp 先在浮点域截断再取整，超大分值不会溢出
func clamp(score float64) int {
	switch {
	case math.IsNaN(score) || score <= 0:
		return 0
	case score >= domain.MaxRiskScore:
		return domain.MaxRiskScore
	}
	return int(math.Round(score))
}
