// Package dispatch turns a normalized API description into one pipeline
// per operation and registers the pipelines with an HTTP router.
//
// Each request runs, in order: security evaluation (401), request
// validation (400), the business handler, response resolution by exact
// status then "default" (500), content negotiation on the Accept header
// (406), response validation (500), and finally the write. Handler errors
// are returned to the router's error path untouched.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mark3labs/oasrouter/internal/schema"
	"github.com/mark3labs/oasrouter/internal/security"
	"github.com/mark3labs/oasrouter/internal/spec"
	"github.com/mark3labs/oasrouter/internal/validate"
)

const tracerName = "github.com/mark3labs/oasrouter/internal/dispatch"

// Route is one registered operation.
type Route struct {
	Operation *spec.Operation
	Method    string // upper case
	Security  []security.Requirement

	handler Handler
}

// Dispatcher holds the compiled state of an API. It is immutable after New
// and may be mounted on any number of routers.
type Dispatcher struct {
	api          *spec.API
	routes       []Route
	evaluator    *security.Evaluator
	registry     *validate.Registry
	settings     Settings
	tracer       trace.Tracer
	unauthorized []byte
}

// New binds handlers to the operations of api and compiles every request and
// response validator. Compile failures abort with a *SetupError.
func New(api *spec.API, handlers Handlers, schemes security.Handlers, opts ...Option) (*Dispatcher, error) {
	s := DefaultSettings()
	for _, o := range opts {
		o(&s)
	}
	d := &Dispatcher{
		api:      api,
		settings: s,
		tracer:   s.TracerProvider.Tracer(tracerName),
		evaluator: security.NewEvaluator(
			security.SchemesFromComponents(api.SecuritySchemes),
			schemes,
			security.WithEnv(s.Env),
			security.WithLogger(s.Logger),
		),
	}
	if s.UnauthorizedBody != nil {
		b, err := json.Marshal(s.UnauthorizedBody)
		if err != nil {
			return nil, &SetupError{Code: InvalidOperation, Message: "unauthorized body", Cause: err}
		}
		d.unauthorized = b
	}

	var bound []spec.Operation
	for i := range api.Operations {
		op := &api.Operations[i]
		h, err := d.bind(op, handlers)
		if err != nil {
			return nil, err
		}
		if h == nil {
			continue
		}
		bound = append(bound, *op)
		d.routes = append(d.routes, Route{
			Operation: op,
			Method:    op.Method.Upper(),
			Security:  security.Requirements(api.EffectiveSecurity(op)),
			handler:   h,
		})
	}

	compiler, err := validate.NewCompiler(s.Schemas...)
	if err != nil {
		return nil, &SetupError{Code: CompileError, Message: "shared schemas", Cause: err}
	}
	reg, err := validate.Build(compiler, api, bound)
	if err != nil {
		return nil, &SetupError{Code: CompileError, Cause: err}
	}
	d.registry = reg
	return d, nil
}

// bind returns the handler of op, or nil when op stays unrouted.
func (d *Dispatcher) bind(op *spec.Operation, handlers Handlers) (Handler, error) {
	if op.OperationID == "" {
		if d.settings.Unbound == RejectUnbound {
			return nil, &SetupError{Code: InvalidOperation, Operation: op.ID, Message: "missing operationId"}
		}
		d.settings.Logger.Warn("operation has no operationId, not routed", slog.String("operation", op.ID))
		return nil, nil
	}
	h, ok := handlers[op.OperationID]
	if ok && h != nil {
		return h, nil
	}
	if d.settings.Unbound == RejectUnbound {
		return nil, &SetupError{Code: UnboundHandler, Operation: op.ID, Message: "no handler for " + op.OperationID}
	}
	d.settings.Logger.Warn("no handler bound, not routed",
		slog.String("operation", op.ID),
		slog.String("operationId", op.OperationID))
	return nil, nil
}

// Routes lists the operations that get registered, in API order.
func (d *Dispatcher) Routes() []Route {
	out := make([]Route, len(d.routes))
	copy(out, d.routes)
	return out
}

// Validators names the distinct compiled validators.
func (d *Dispatcher) Validators() []string { return d.registry.Names() }

// Audit lists security configuration defects of the registered routes.
func (d *Dispatcher) Audit() []error {
	var reqs []security.Requirement
	for _, rt := range d.routes {
		reqs = append(reqs, rt.Security...)
	}
	return d.evaluator.Audit(reqs)
}

// Mount registers every route with r.
func (d *Dispatcher) Mount(r Router) {
	for i := range d.routes {
		rt := &d.routes[i]
		r.Handle(rt.Method, TranslatePath(rt.Operation.Path, r.Style()), func(ex Exchange) error {
			return d.serve(rt, ex)
		})
	}
}

func (d *Dispatcher) serve(rt *Route, ex Exchange) (err error) {
	op := rt.Operation
	ctx, span := d.tracer.Start(ex.Context(), "dispatch "+op.OperationID,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("oasrouter.operation", op.ID),
			attribute.String("http.method", rt.Method),
			attribute.String("http.route", op.Path),
		))
	outcome := OutcomeError
	defer func() {
		d.settings.Metrics.outcome(op.OperationID, outcome)
		span.SetAttributes(attribute.String("oasrouter.outcome", outcome))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	log := d.settings.Logger.With(slog.String("operation", op.ID))

	principals, err := d.authorize(ctx, rt, ex)
	if err != nil {
		if !errors.Is(err, security.ErrUnauthorized) {
			return err
		}
		outcome = OutcomeUnauthorized
		if d.unauthorized == nil {
			return ex.Write(http.StatusUnauthorized, "", nil)
		}
		return ex.Write(http.StatusUnauthorized, "application/json", d.unauthorized)
	}

	in, err := requestValue(ex)
	if err != nil {
		if !errors.Is(err, ErrMalformedBody) {
			return err
		}
		outcome = OutcomeBadRequest
		log.Debug("request body rejected", slog.Any("error", err))
		return ex.Write(http.StatusBadRequest, "", nil)
	}
	shaped, err := d.registry.Request(op.ID).Validate(in)
	if err != nil {
		outcome = OutcomeBadRequest
		log.Debug("request rejected", slog.Any("error", err))
		return ex.Write(http.StatusBadRequest, "", nil)
	}
	fields := shaped.(map[string]any)
	req := &Request{
		Operation: op,
		Headers:   ex.Headers(),
		Params:    asObject(fields[schema.MemberParams]),
		Query:     asObject(fields[schema.MemberQuery]),
		Body:      fields[schema.MemberBody],
		Security:  principals,
		Env:       d.settings.Env,
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	res, err := d.invoke(ctx, rt, req)
	if err != nil {
		return err
	}

	status, contentType, body, outcome := d.resolve(rt, ex.Header("Accept"), res, log)
	return ex.Write(status, contentType, body)
}

func (d *Dispatcher) authorize(ctx context.Context, rt *Route, ex Exchange) (security.Principals, error) {
	if len(rt.Security) == 0 {
		return security.Principals{}, nil
	}
	ctx, span := d.tracer.Start(ctx, "security")
	defer span.End()
	p, err := d.evaluator.Evaluate(ctx, rt.Security, ex)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	return p, err
}

func (d *Dispatcher) invoke(ctx context.Context, rt *Route, req *Request) (Result, error) {
	ctx, span := d.tracer.Start(ctx, "handler "+rt.Operation.OperationID)
	defer span.End()
	start := time.Now()
	res, err := rt.handler.Handle(ctx, req)
	d.settings.Metrics.handlerDuration(rt.Operation.OperationID, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}
	span.SetAttributes(attribute.Int("http.status_code", res.StatusCode))
	return res, nil
}

// resolve matches a handler result against the declared responses and
// returns what to write.
func (d *Dispatcher) resolve(rt *Route, accept string, res Result, log *slog.Logger) (int, string, []byte, string) {
	op := rt.Operation
	resp := op.Response(strconv.Itoa(res.StatusCode))
	if resp == nil {
		resp = op.Response("default")
	}
	if resp == nil {
		log.Error("no declared response for status", slog.Int("status", res.StatusCode))
		return http.StatusInternalServerError, "", nil, OutcomeUnresolvedResponse
	}

	contentType := "application/json"
	if len(resp.Content) > 0 {
		media := resp.Media(accept)
		if media == nil {
			return http.StatusNotAcceptable, "", nil, OutcomeNotAcceptable
		}
		contentType = media.Mime
		if v := d.registry.Response(op.ID, resp.Status, media.Mime); v != nil {
			if _, err := v.Validate(res.Content); err != nil {
				log.Error("response rejected",
					slog.Int("status", res.StatusCode),
					slog.String("contentType", media.Mime),
					slog.Any("error", err))
				return http.StatusInternalServerError, "", nil, OutcomeInvalidResponse
			}
		}
	}

	if res.Content == nil {
		return res.StatusCode, "", nil, OutcomeOK
	}
	body, err := encodeContent(contentType, res.Content)
	if err != nil {
		log.Error("response not encodable", slog.Any("error", err))
		return http.StatusInternalServerError, "", nil, OutcomeInvalidResponse
	}
	return res.StatusCode, contentType, body, OutcomeOK
}

// requestValue builds the { params, query, body } composite. The body
// member is left out when the request has none.
func requestValue(ex Exchange) (map[string]any, error) {
	params := make(map[string]any)
	for k, v := range ex.PathParams() {
		params[k] = v
	}
	query := make(map[string]any)
	for k, vs := range ex.QueryParams() {
		switch len(vs) {
		case 0:
		case 1:
			query[k] = vs[0]
		default:
			list := make([]any, len(vs))
			for i, v := range vs {
				list[i] = v
			}
			query[k] = list
		}
	}
	in := map[string]any{
		schema.MemberParams: params,
		schema.MemberQuery:  query,
	}
	raw, err := ex.Body()
	if err != nil {
		return nil, err
	}
	body, err := DecodeBody(ex.Header("Content-Type"), raw)
	if err != nil {
		return nil, err
	}
	if body != nil {
		in[schema.MemberBody] = body
	}
	return in, nil
}

func asObject(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}
