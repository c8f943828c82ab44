package router

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"stream-lab/contract"
	"stream-lab/domain"
	"stream-lab/domain/event"
	"stream-lab/errors"
	"strings"
	"sync"
	"time"
)

type route struct {
	handler contract.CommandHandler
	minRole domain.Role
}

// Router maps command names to handlers and closes every dispatch with one CommandResult.
type Router struct {
	mu        sync.RWMutex
	routes    map[string]route
	pub       contract.Publisher
	log       *slog.Logger
	telemetry chan event.Telemetry
}

func New(pub contract.Publisher, log *slog.Logger) *Router {
	return &Router{routes: make(map[string]route), pub: pub, log: log}
}

// WithTelemetry makes the router report dispatch latency, best effort.
func (r *Router) WithTelemetry(ch chan event.Telemetry) *Router {
	r.telemetry = ch
	return r
}

// Register binds names to a handler. It is safe to call while dispatching.
func (r *Router) Register(h contract.CommandHandler, minRole domain.Role, names ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range names {
		n = strings.ToLower(strings.TrimPrefix(n, prefix))
		if !h.CanHandle(n) {
			return fmt.Errorf("handler cannot serve %q: %w", n, errors.ErrInvalidArgument)
		}
		if _, exists := r.routes[n]; exists {
			return fmt.Errorf("%q: %w", n, errors.ErrDuplicateCommand)
		}
	}
	for _, n := range names {
		r.routes[strings.ToLower(strings.TrimPrefix(n, prefix))] = route{handler: h, minRole: minRole}
	}
	return nil
}

// Commands lists the names a role may use, sorted.
func (r *Router) Commands(role domain.Role) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var names []string
	for n, rt := range r.routes {
		if role >= rt.minRole {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names
}

func (r *Router) lookup(name string) (route, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rt, ok := r.routes[name]
	return rt, ok
}

// Dispatch runs the command in text on behalf of issuer. It returns false when text
// is not a command, the caller then treats it as chat.
func (r *Router) Dispatch(ctx context.Context, issuer domain.Viewer, evt event.Event, text string) bool {
	name, args, rest, ok := Parse(text)
	if !ok {
		return false
	}
	inv := domain.Invocation{Issuer: issuer, Name: name, Args: args, Rest: rest, Raw: text, Seq: evt.Seq}
	res := r.dispatch(ctx, inv)
	r.pub.Publish(event.NewResult(issuer.ID, issuer.Name(), res))
	r.report(inv, evt.At)
	return true
}

func (r *Router) dispatch(ctx context.Context, inv domain.Invocation) event.CommandResult {
	res := event.CommandResult{Command: inv.Name}
	if inv.Issuer.Banned {
		res.Status, res.Reason = event.StatusRejected, event.ReasonBanned
		return res
	}
	rt, ok := r.lookup(inv.Name)
	if !ok {
		r.log.Debug("Unknown command", "command", inv.Name, "viewer_id", inv.Issuer.ID)
		res.Status = event.StatusUnknown
		return res
	}
	if inv.Issuer.Role() < rt.minRole {
		res.Status = event.StatusForbidden
		res.Message = fmt.Sprintf("!%s requires %s", inv.Name, rt.minRole)
		return res
	}

	out, err := r.invoke(ctx, rt.handler, inv)
	res.Message, res.Item = out.Message, out.Item
	if err != nil {
		res.Status = StatusOf(err)
		if res.Message == "" && res.Status != event.StatusInternal {
			res.Message = err.Error()
		}
		if res.Status == event.StatusInternal {
			r.log.Error("Command failed", "command", inv.Name, "viewer_id", inv.Issuer.ID, "error", err)
		}
		return res
	}
	res.Status = out.Status
	if res.Status == "" {
		res.Status = event.StatusAccepted
	}
	return res
}

func (r *Router) invoke(ctx context.Context, h contract.CommandHandler, inv domain.Invocation) (out contract.Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("Command handler panic", "command", inv.Name, "panic", p, "stack", string(debug.Stack()))
			out, err = contract.Result{}, fmt.Errorf("panic in !%s: %v: %w", inv.Name, p, errors.ErrInternal)
		}
	}()
	return h.Handle(ctx, inv, r.pub)
}

func (r *Router) report(inv domain.Invocation, at time.Time) {
	if r.telemetry == nil {
		return
	}
	select {
	case r.telemetry <- event.Telemetry{
		Type:      event.DispatchLatencyType,
		CreatedAt: time.Now().UTC(),
		Payload:   event.DispatchLatency{ViewerID: string(inv.Issuer.ID), Command: inv.Name, Seq: inv.Seq, At: at},
	}:
	default:
		r.log.Debug("Observability telemetry event lost")
	}
}

// StatusOf maps a handler error onto the status reported to the issuer.
func StatusOf(err error) event.Status {
	switch {
	case err == nil:
		return event.StatusAccepted
	case stderrors.Is(err, errors.ErrQueueFull):
		return event.StatusQueueFull
	case stderrors.Is(err, errors.ErrInsufficientPoints):
		return event.StatusInsufficientPoints
	case stderrors.Is(err, errors.ErrNotFound):
		return event.StatusNotFound
	case stderrors.Is(err, errors.ErrInvalidArgument):
		return event.StatusInvalid
	case stderrors.Is(err, errors.ErrForbidden):
		return event.StatusForbidden
	case stderrors.Is(err, errors.ErrRejected):
		return event.StatusRejected
	case stderrors.Is(err, errors.ErrExternalFailure):
		return event.StatusExternalFailure
	default:
		return event.StatusInternal
	}
}
