package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"

	"multimodal-rag/internal/logger"
)

// Guard rate-limits calls to a generator and stops calling it for a while
// after repeated failures.
type Guard struct {
	next    Generator
	name    string
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

// GuardSettings configures a Guard. RequestsPerMinute <= 0 disables rate
// limiting.
type GuardSettings struct {
	Name              string
	RequestsPerMinute int
	// OpenTimeout is how long the breaker stays open before probing again
	OpenTimeout time.Duration
	Logger      *slog.Logger
}

// NewGuard wraps next
func NewGuard(next Generator, s GuardSettings) *Guard {
	log := logger.OrNop(s.Logger)
	if s.Name == "" {
		s.Name = "llm"
	}
	if s.OpenTimeout <= 0 {
		s.OpenTimeout = 60 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	})

	limiter := rate.NewLimiter(rate.Inf, 0)
	if s.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(s.RequestsPerMinute)/60.0), max(s.RequestsPerMinute/10, 1))
	}

	return &Guard{next: next, name: s.Name, breaker: breaker, limiter: limiter}
}

func (g *Guard) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, span := otel.Tracer("multimodal-rag/llm").Start(ctx, "llm.generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.name", g.name),
		attribute.Int("llm.prompt_chars", len(prompt)),
	)

	if err := g.limiter.Wait(ctx); err != nil {
		span.SetAttributes(attribute.Bool("llm.rate_limited", true))
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	result, err := g.breaker.Execute(func() (interface{}, error) {
		return g.next.Generate(ctx, prompt)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	text := result.(string)
	span.SetAttributes(attribute.Int("llm.response_chars", len(text)))
	return text, nil
}

// State reports the breaker state, e.g. "closed" or "open"
func (g *Guard) State() string {
	return g.breaker.State().String()
}
