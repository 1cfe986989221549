// Package xrapi is the handle-based entry layer of the runtime. Every
// function resolves its handles, checks the session is not lost, checks
// the owning extension is enabled, and only then validates arguments and
// calls into the session and tracker packages. Each call is traced,
// counted, and (when error logging is on) logged under its API name.
package xrapi

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/banshee-data/xrstate/internal/handle"
	"github.com/banshee-data/xrstate/internal/monitoring"
	"github.com/banshee-data/xrstate/internal/session"
	"github.com/banshee-data/xrstate/internal/xrerr"
)

const tracerName = "github.com/banshee-data/xrstate/internal/xrapi"

// Observer receives one record per completed entry point call.
type Observer interface {
	ObserveCall(fn string, kind xrerr.Kind, elapsed time.Duration)
}

// Options configures a Runtime.
type Options struct {
	Instance *session.Instance
	// TracerProvider defaults to the global provider.
	TracerProvider trace.TracerProvider
	// Observer is optional.
	Observer Observer
}

// Runtime serves API calls against one Instance.
type Runtime struct {
	inst     *session.Instance
	tracer   trace.Tracer
	observer Observer
}

// New returns a Runtime over opts.Instance.
func New(opts Options) (*Runtime, error) {
	if opts.Instance == nil {
		return nil, errors.New("xrapi: nil instance")
	}
	tp := opts.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Runtime{
		inst:     opts.Instance,
		tracer:   tp.Tracer(tracerName),
		observer: opts.Observer,
	}, nil
}

// Instance returns the instance the runtime serves.
func (rt *Runtime) Instance() *session.Instance { return rt.inst }

// call tracks one entry point invocation.
type call struct {
	rt    *Runtime
	fn    string
	log   monitoring.Call
	span  trace.Span
	start time.Time
}

func (rt *Runtime) enter(ctx context.Context, fn string, ids ...handle.ID) (context.Context, *call) {
	ctx, span := rt.tracer.Start(ctx, fn)
	for _, id := range ids {
		if id != handle.Nil {
			span.SetAttributes(handleAttr(id))
		}
	}
	return ctx, &call{
		rt:    rt,
		fn:    fn,
		log:   monitoring.NewCall(fn),
		span:  span,
		start: rt.inst.Time().Clock().Now(),
	}
}

func handleAttr(id handle.ID) attribute.KeyValue {
	return attribute.String("xr.handle."+string(id.Kind()), string(id))
}

// done attributes err to the call's function, logs and records it, and
// ends the span. It returns the attributed error.
func (c *call) done(err error) error {
	kind := xrerr.KindOf(err)
	if err != nil {
		var xe *xrerr.Error
		if errors.As(err, &xe) {
			err = xe.In(c.fn)
		}
		c.log.Errorf("%v", err)
		c.span.RecordError(err)
		c.span.SetStatus(codes.Error, kind.String())
	}
	c.span.SetAttributes(attribute.String("xr.result", kind.String()))
	c.span.End()
	if c.rt.observer != nil {
		c.rt.observer.ObserveCall(c.fn, kind, c.rt.inst.Time().Clock().Since(c.start))
	}
	return err
}

// liveSession resolves a session handle and checks it is not lost.
func (rt *Runtime) liveSession(id handle.ID) (*session.Session, error) {
	s, err := rt.inst.Session(id)
	if err != nil {
		return nil, err
	}
	if err := s.CheckNotLost(); err != nil {
		return nil, err
	}
	return s, nil
}

func (rt *Runtime) extension(ext session.Extension) xrerr.Check {
	return xrerr.Extension(string(ext), rt.inst.ExtensionEnabled(ext))
}

// PollEvent returns the next queued event, or the EventUnavailable
// qualifier when the queue is empty.
func (rt *Runtime) PollEvent(ctx context.Context) (session.Event, xrerr.Qualifier, error) {
	_, c := rt.enter(ctx, "xrPollEvent", rt.inst.ID())
	ev, q := rt.inst.PollEvent()
	return ev, q, c.done(nil)
}

// Close destroys the instance and everything under it.
func (rt *Runtime) Close(ctx context.Context) error {
	_, c := rt.enter(ctx, "xrDestroyInstance", rt.inst.ID())
	return c.done(rt.inst.Close())
}
