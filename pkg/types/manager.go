package types

import "context"

// CoreDatabase is the logical database every session can reach.
const CoreDatabase = "core"

// ReconnectFunc is told the replacement DAO after a handle for the
// subscribed name was reopened.
type ReconnectFunc func(ctx context.Context, dao DAO) error

// Subscription identifies one reconnect subscriber.
type Subscription struct {
	ID   string
	Name string
}

// ConnectionState is the lifecycle state of one logical database.
type ConnectionState string

// Connection lifecycle states.
const (
	StateUnregistered ConnectionState = "unregistered"
	StateRegistered   ConnectionState = "registered"
	StateConnecting   ConnectionState = "connecting"
	StateOpen         ConnectionState = "open"
	StateClosing      ConnectionState = "closing"
)

// ConnectionStatus is a snapshot of one logical database.
type ConnectionStatus struct {
	Name    string
	State   ConnectionState
	Path    string
	Version string
	Active  bool
}

// ConnectionManager owns every open handle and hands out DAOs for logical
// databases.
type ConnectionManager interface {
	RegisterSchema(name string, schema *DatabaseSchema) error
	RegisterSchemas(schemas map[string]*DatabaseSchema) error
	RegisterRole(role RoleConfig) error
	SetCreationPolicy(name string, opts InitOptions)

	SetUserRoles(ctx context.Context, roles []string, primary string) error
	CurrentRoles() []string
	ActiveDatabases() []string
	HasAccess(name string) bool

	GetOrOpenConnection(ctx context.Context, name string) (DAO, error)
	EnsureConnection(ctx context.Context, name string) (DAO, error)
	CloseConnection(ctx context.Context, name string) error
	CloseAll(ctx context.Context) error

	Suspend(ctx context.Context) error
	Resume(ctx context.Context) error

	SetMaxConnections(n int) error
	MaxConnections() int
	OpenCount() int
	Status() []ConnectionStatus

	OnReconnect(name string, fn ReconnectFunc) Subscription
	OffReconnect(sub Subscription) bool

	ExecuteCrossSchemaTransaction(ctx context.Context, names []string, fn func(ctx context.Context, daos map[string]DAO) error) error
}
