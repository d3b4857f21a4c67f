package dispatch

import (
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// UnboundPolicy decides what happens to operations without a handler.
type UnboundPolicy int

const (
	// SkipUnbound leaves the operation unrouted and logs a warning.
	SkipUnbound UnboundPolicy = iota
	// RejectUnbound makes New fail with UnboundHandler.
	RejectUnbound
)

// DefaultUnauthorizedBody is the JSON body of a 401.
const DefaultUnauthorizedBody = "Authorization Error"

// Settings configures a Dispatcher.
type Settings struct {
	// Schemas are shared schema documents addressable by "$id" from any
	// synthesized schema.
	Schemas []any
	// Env is threaded into every Request and every security Credential.
	Env     any
	Logger  *slog.Logger
	Unbound UnboundPolicy

	// UnauthorizedBody is JSON-encoded into 401 responses; nil sends an
	// empty body.
	UnauthorizedBody any
	Metrics          *Metrics
	TracerProvider   trace.TracerProvider
}

// DefaultSettings returns the defaults New starts from.
func DefaultSettings() Settings {
	return Settings{
		Logger:           slog.Default(),
		Unbound:          SkipUnbound,
		UnauthorizedBody: DefaultUnauthorizedBody,
		TracerProvider:   otel.GetTracerProvider(),
	}
}

type Option func(*Settings)

func WithSchemas(docs ...any) Option           { return func(s *Settings) { s.Schemas = append(s.Schemas, docs...) } }
func WithEnv(env any) Option                   { return func(s *Settings) { s.Env = env } }
func WithUnboundPolicy(p UnboundPolicy) Option { return func(s *Settings) { s.Unbound = p } }
func WithUnauthorizedBody(body any) Option     { return func(s *Settings) { s.UnauthorizedBody = body } }
func WithMetrics(m *Metrics) Option            { return func(s *Settings) { s.Metrics = m } }

func WithLogger(l *slog.Logger) Option {
	return func(s *Settings) {
		if l != nil {
			s.Logger = l
		}
	}
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Settings) {
		if tp != nil {
			s.TracerProvider = tp
		}
	}
}
