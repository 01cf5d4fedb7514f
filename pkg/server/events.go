package server

import (
	"context"
	"log/slog"
)

// Event is one observability event emitted by the gateway. Room and
// Path are empty when the event is not tied to a specific room or
// resource.
type Event struct {
	Level  slog.Level
	Room   string
	Path   string
	Action string
	Msg    string
}

// Event actions emitted by the gateway.
const (
	ActionRoomCreate   = "room_create"
	ActionClientJoin   = "client_join"
	ActionRoomDelete   = "room_delete"
	ActionLoaderDelete = "loader_delete"
	ActionConflict     = "conflict"
)

// Emitter receives gateway lifecycle events. Implementations must be
// safe for concurrent use and must not block.
type Emitter interface {
	Emit(ev Event)
}

// LogEmitter writes events to a slog.Logger. It is the default emitter.
type LogEmitter struct {
	logger *slog.Logger
}

// NewLogEmitter creates an emitter backed by logger.
func NewLogEmitter(logger *slog.Logger) *LogEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogEmitter{logger: logger.With("component", "events")}
}

func (e *LogEmitter) Emit(ev Event) {
	e.logger.Log(context.Background(), ev.Level, ev.Msg,
		"action", ev.Action,
		"room", ev.Room,
		"path", ev.Path)
}
