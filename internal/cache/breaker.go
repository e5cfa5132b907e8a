package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"CityClaim/pkg/logger"
)

// State 熔断器状态
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrBreakerOpen 熔断中，调用被直接拒绝
var ErrBreakerOpen = errors.New("circuit breaker is open")

// CircuitBreaker 连续 maxFailures 次失败后熔断 resetTimeout，
// 之后半开放行少量探测请求，成功即恢复，失败重新熔断。
// 保护统计缓存和上游任务生成服务
type CircuitBreaker struct {
	name         string
	maxFailures  int
	resetTimeout time.Duration
	halfOpenMax  int
	now          func() time.Time

	mu            sync.Mutex
	state         State
	failures      int
	openedAt      time.Time
	halfOpenCalls int
}

func NewCircuitBreaker(name string, maxFailures int, resetTimeout time.Duration) *CircuitBreaker {
	if maxFailures <= 0 {
		maxFailures = 1
	}
	return &CircuitBreaker{
		name:         name,
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		halfOpenMax:  3,
		now:          time.Now,
	}
}

// Call 熔断中返回 ErrBreakerOpen；调用方取消的 ctx 不计入失败
func (cb *CircuitBreaker) Call(ctx context.Context, operation func() error) error {
	if !cb.allow() {
		return ErrBreakerOpen
	}

	err := operation()

	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch {
	case err == nil:
		cb.failures = 0
		if cb.state == StateHalfOpen {
			cb.setState(StateClosed)
		}
	case errors.Is(err, context.Canceled):
	default:
		cb.failures++
		if cb.state == StateHalfOpen || cb.failures >= cb.maxFailures {
			cb.openedAt = cb.now()
			cb.setState(StateOpen)
		}
	}
	return err
}

func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen && cb.now().Sub(cb.openedAt) >= cb.resetTimeout {
		cb.setState(StateHalfOpen)
	}

	switch cb.state {
	case StateClosed:
		return true
	case StateHalfOpen:
		if cb.halfOpenCalls >= cb.halfOpenMax {
			return false
		}
		cb.halfOpenCalls++
		return true
	default:
		return false
	}
}

// setState 调用方持有 mu
func (cb *CircuitBreaker) setState(next State) {
	if cb.state == next {
		return
	}
	prev := cb.state
	cb.state = next
	cb.halfOpenCalls = 0
	if next == StateClosed {
		cb.failures = 0
	}

	log := logger.L().Info
	if next == StateOpen {
		log = logger.L().Warn
	}
	log("Circuit breaker state changed",
		zap.String("breaker", cb.name),
		zap.Stringer("from", prev),
		zap.Stringer("to", next),
		zap.Int("failures", cb.failures),
	)
}

func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
