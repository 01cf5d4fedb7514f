package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/docrelay-dev/docrelay/pkg/protocol"
	"github.com/docrelay-dev/docrelay/pkg/room"
)

// CloseSessionExpired is the WebSocket close code sent when a client
// presents a session token from a previous server process.
const CloseSessionExpired = 4003

// handleRoom upgrades the connection and attaches it to its room. The
// handler blocks for the lifetime of the connection.
func (g *Gateway) handleRoom(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomid")
	identity := room.ParseIdentity(roomID)

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Error("websocket upgrade failed", "room", roomID, "error", err)
		return
	}
	conn.SetReadLimit(protocol.MaxMessageSize)

	c := newClient(uuid.NewString(), conn, g.config.WriteTimeout, g.logger)

	// Document rooms are only valid within the process that issued the
	// session token. A mismatch means the server restarted and every
	// file id the client holds may be stale.
	if identity.IsDocument() {
		if sid := r.URL.Query().Get("sessionId"); sid != g.session {
			g.metrics.staleSessions.Inc()
			g.logger.Info("stale session rejected",
				"room", roomID, "session", sid, "error", ErrSessionExpired)
			c.closeWithCode(CloseSessionExpired, "session expired: "+sid)
			return
		}
	}

	rm, created, err := g.rooms.GetOrCreate(roomID, func() (room.Room, error) {
		return g.buildRoom(r.Context(), identity)
	})
	if err != nil {
		g.logger.Error("cannot open room", "room", roomID, "error", err)
		c.closeWithCode(websocketInternalError, "cannot open room")
		return
	}
	if created {
		kind := "transient"
		path := ""
		if identity.IsDocument() {
			kind = "document"
			path = g.paths.Path(identity.FileID)
		}
		g.metrics.roomsCreated.WithLabelValues(kind).Inc()
		g.metrics.activeRooms.Inc()
		g.events.Emit(Event{
			Level:  slog.LevelInfo,
			Room:   roomID,
			Path:   path,
			Action: ActionRoomCreate,
			Msg:    "room created",
		})
	}

	doc, isDocument := rm.(*room.DocumentRoom)
	if isDocument {
		doc.CancelCleanup()
		if err := doc.Initialize(r.Context()); err != nil {
			g.metrics.loadErrors.Inc()
			g.logger.Error("room initialization failed",
				"error", NewRoomError(roomID, "initialize", err))
			// Tear the failed room down so it does not linger in the
			// registry with zero clients and a live loader; the next
			// connect gets a fresh instance and a fresh attempt.
			doc.Close()
			c.closeWithCode(websocketInternalError, "initialization failed")
			return
		}
	}

	if err := rm.AddClient(c); err != nil {
		// The room was destroyed between lookup and attach. The client
		// reconnects and gets a fresh instance.
		g.logger.Warn("attach raced room teardown",
			"error", NewRoomError(roomID, "attach", err))
		c.closeWithCode(websocketTryAgainLater, "room closed")
		return
	}
	g.metrics.connectedClients.Inc()
	g.clientCount.Add(1)
	g.events.Emit(Event{
		Level:  slog.LevelInfo,
		Room:   roomID,
		Action: ActionClientJoin,
		Msg:    "client joined",
	})

	go c.readLoop()

	// Awareness ids this connection announced, removed from the users
	// directory when it goes away.
	announced := make(map[uint64]struct{})
	c.serve(func(msg []byte) {
		mt, err := protocol.TypeOf(msg)
		if err != nil {
			g.logger.Debug("dropping invalid frame", "room", roomID, "error", err)
			return
		}
		if mt == protocol.MessageAwareness {
			g.trackAwareness(msg, announced)
		}
		if err := rm.HandleMessage(c, msg); err != nil {
			g.logger.Error("message rejected", "room", roomID, "error", err)
			return
		}
		g.metrics.messagesRelayed.Inc()
		g.relayedWindow.Add(1)
		if isDocument && mt != protocol.MessageAwareness {
			// Every accepted sync frame schedules a debounced save.
			g.metrics.savesScheduled.Inc()
		}
	})

	// End of stream: the read loop closed the queue.
	remaining := rm.RemoveClient(c)
	g.metrics.connectedClients.Dec()
	g.clientCount.Add(-1)
	for id := range announced {
		g.users.Remove(id)
	}
	if isDocument && remaining == 0 {
		doc.ScheduleCleanup(g.config.CleanupDelay)
	}
	c.close()
}

// Internal close codes from RFC 6455.
const (
	websocketInternalError = 1011
	websocketTryAgainLater = 1013
)

// buildRoom constructs the room for an identity. Runs inside the room
// registry's critical section.
func (g *Gateway) buildRoom(ctx context.Context, identity room.Identity) (room.Room, error) {
	if !identity.IsDocument() {
		return room.NewTransientRoom(identity.String()), nil
	}

	if g.paths.Path(identity.FileID) == "" {
		return nil, ErrResourceNotFound
	}

	// Another identity already serving the same file means two rooms
	// will write the same resource. Known limitation: warn and proceed.
	if g.loaders.Has(identity.FileID) {
		g.events.Emit(Event{
			Level:  slog.LevelWarn,
			Room:   identity.String(),
			Path:   g.paths.Path(identity.FileID),
			Action: ActionConflict,
			Msg:    "file already served under a different room identity",
		})
	}

	l, err := g.loaders.Acquire(ctx, identity.FileID, identity.Format, identity.FileType)
	if err != nil {
		return nil, err
	}
	return room.NewDocumentRoom(identity, l, nil, g.config.LogRoot, g.logger, g.onRoomDestroy), nil
}

// onRoomDestroy runs after a document room tears itself down.
func (g *Gateway) onRoomDestroy(doc *room.DocumentRoom) {
	roomID := doc.ID()
	fileID := doc.Identity().FileID
	path := g.paths.Path(fileID)

	g.rooms.Delete(roomID)
	g.loaders.Release(fileID)
	g.metrics.activeRooms.Dec()

	g.events.Emit(Event{
		Level:  slog.LevelInfo,
		Room:   roomID,
		Path:   path,
		Action: ActionRoomDelete,
		Msg:    "room deleted",
	})
	if !g.loaders.Has(fileID) {
		g.events.Emit(Event{
			Level:  slog.LevelInfo,
			Room:   roomID,
			Path:   path,
			Action: ActionLoaderDelete,
			Msg:    "content loader released",
		})
	}
}

// trackAwareness folds an awareness message into the connected-users
// directory. Decode failures are ignored; the directory is best effort
// and never blocks relay.
func (g *Gateway) trackAwareness(msg []byte, announced map[uint64]struct{}) {
	update, err := protocol.DecodeAwarenessUpdate(msg[1:])
	if err != nil {
		g.logger.Debug("awareness decode failed", "error", err)
		return
	}
	for _, e := range update.Added() {
		if name := e.DisplayName(); name != "" {
			g.users.Set(e.ClientID, name)
			announced[e.ClientID] = struct{}{}
		}
	}
	for _, id := range update.RemovedIDs() {
		g.users.Remove(id)
		delete(announced, id)
	}
}

type sessionRequest struct {
	Format string `json:"format"`
	Type   string `json:"type"`
}

type sessionResponse struct {
	Format    string `json:"format"`
	Type      string `json:"type"`
	FileID    string `json:"fileId"`
	SessionID string `json:"sessionId"`
}

// handleSession resolves a resource path to a stable file id and the
// process session token. 201 when the path was indexed by this call,
// 200 when it already had an id, 404 when the resource does not exist.
func (g *Gateway) handleSession(w http.ResponseWriter, r *http.Request) {
	path := chi.URLParam(r, "*")

	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id, created, err := g.paths.Index(r.Context(), path)
	if err != nil {
		writeJSONError(w, http.StatusNotFound, "file "+path+" does not exist")
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(sessionResponse{
		Format:    req.Format,
		Type:      req.Type,
		FileID:    id,
		SessionID: g.session,
	})
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
