//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"
	"stream-lab/domain"
	"stream-lab/domain/event"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	if n, ok := w.(interface{ Name() string }); ok {
		return n.Name()
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink consumes events delivered by a bus subscription.
type EventSink interface {
	Consume(ctx context.Context, e event.Event) error
}

// GetSinkName names a sink in logs the same way workers are named.
func GetSinkName(s EventSink) string {
	if s == nil {
		return "NilSink"
	}
	if n, ok := s.(interface{ Name() string }); ok {
		return n.Name()
	}
	t := reflect.TypeOf(s)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// Publisher is the only way to put an event on the bus.
type Publisher interface {
	Publish(e event.Event) event.Event
}

// Result is what a command handler reports back to the router.
// An empty Status means accepted.
type Result struct {
	Status  event.Status
	Message string
	Item    *domain.QueueItem
}

type CommandHandler interface {
	CanHandle(name string) bool
	Handle(ctx context.Context, inv domain.Invocation, pub Publisher) (Result, error)
}

// Backend executes queued work out of process. Completion is reported later
// through the completion router, Submit only hands the request over.
type Backend interface {
	Submit(ctx context.Context, req domain.BackendRequest) error
}

// Ingester accepts raw events from an adapter.
type Ingester interface {
	Ingest(ctx context.Context, raw domain.RawEvent) error
}

// Source is an ingestion adapter feeding an Ingester until ctx is done.
type Source interface {
	Run(ctx context.Context, in Ingester) error
}

// Replier sends bot messages back to the broadcast platform.
type Replier interface {
	Reply(ctx context.Context, text string) error
}

type IOrchestrator interface {
	Ingester
	RegisterSinks(sinks ...EventSink)
	Start(ctx context.Context) error
	Stop()
}
