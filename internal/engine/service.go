// Package engine exposes terminal sessions to the API layer. It owns the
// session registry and wires each session to price ticks and position refreshes.
package engine

import (
	"context"

	"terminal-core/internal/position"
	"terminal-core/internal/terminal"
)

// Service defines the operations the API layer may perform on terminal sessions.
// The API layer should only interact with sessions through this interface.
type Service interface {
	// Session lifecycle
	OpenSession(ctx context.Context, req OpenRequest) (terminal.View, error)
	Session(ctx context.Context, id string) (terminal.View, error)
	ListSessions(ctx context.Context) []SessionInfo
	CloseSession(ctx context.Context, id string) error

	// Draft editing
	Edit(ctx context.Context, id, key, value string) (EditResult, error)
	TogglePanel(ctx context.Context, id string, panel terminal.PanelName) (terminal.View, error)
	AddTarget(ctx context.Context, id, group string) (terminal.View, error)
	RemoveTarget(ctx context.Context, id, group string, target *int) (terminal.View, error)
	Assemble(ctx context.Context, id string) (terminal.Payload, error)
	Payloads(ctx context.Context, id string, limit int) ([]PayloadInfo, error)

	// Positions
	RefreshPosition(ctx context.Context, id string) (terminal.View, error)
	ApplyPosition(ctx context.Context, e position.Entity) (bool, error)

	// Push updates of one session; stop releases the subscription.
	Updates(ctx context.Context, id string) (<-chan terminal.View, func(), error)

	// Symbols and system
	Symbols(ctx context.Context) []SymbolInfo
	GetSystemStatus(ctx context.Context) *SystemStatus
}
