//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chatwire/domain"
	"chatwire/domain/event"
	"context"
	"reflect"
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
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// Connection is one live transport session bound to a single identity.
// Push must not block the caller; implementations drop when saturated.
type Connection interface {
	ID() string
	IdentityID() string
	Push(e event.Event) error
	Close()
}

// IRegistry tracks which identities currently own live connections.
type IRegistry interface {
	Register(conn Connection)
	Unregister(identityID string, connID string)
	ConnectionsFor(identityID string) []Connection
	OnlineIdentities() []string
}

// IRelay accepts outbound commands and serves conversation history.
type IRelay interface {
	Send(ctx context.Context, cmd domain.SendCommand) (domain.Message, error)
	History(ctx context.Context, cmd domain.HistoryCommand) ([]domain.Message, error)
}

// Authenticator resolves a bearer credential to a verified identity.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (domain.Identity, error)
}
