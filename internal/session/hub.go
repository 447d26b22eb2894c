package session

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/ductline/ductline/backend-go/internal/branch"
	"github.com/ductline/ductline/backend-go/internal/engine"
	"github.com/ductline/ductline/backend-go/internal/geom"
	"github.com/ductline/ductline/backend-go/internal/snap"
)

// Room is one project's live drawing session. The engine is
// single-threaded by contract; the mutex serializes every engine call
// across the room's clients.
type Room struct {
	projectID string
	clients   map[string]*Client // clientID -> client
	presence  *PresenceManager

	mu     sync.Mutex
	engine *engine.Engine

	alerted bool
}

func NewRoom(projectID string, gridSpacing float64) *Room {
	e := engine.NewEngine()
	e.LoadEmptyDesign(projectID, "untitled")
	if gridSpacing > 0 {
		e.SetGridSpacing(gridSpacing)
	}
	return &Room{
		projectID: projectID,
		clients:   make(map[string]*Client),
		presence:  NewPresenceManager(),
		engine:    e,
	}
}

// Engine exposes the room's engine for seeding a persisted design.
// Callers must hold no concurrent websocket traffic for the room.
func (r *Room) Engine() *engine.Engine {
	return r.engine
}

type Hub struct {
	mu         sync.RWMutex
	rooms      map[string]*Room // projectID -> room
	register   chan *Client
	unregister chan *Client

	// loadDesign seeds a new room's engine with persisted state; nil
	// rooms start empty.
	loadDesign func(projectID string) (string, bool)

	// gridSpacing is applied to every new room's engine; zero leaves
	// grid snapping off.
	gridSpacing float64
}

func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]*Room),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// SetDesignLoader installs the persistence hook used when a room is
// first opened. Must be called before Run.
func (h *Hub) SetDesignLoader(load func(projectID string) (string, bool)) {
	h.loadDesign = load
}

// SetGridSpacing sets the grid snap spacing applied to new rooms. Must
// be called before Run.
func (h *Hub) SetGridSpacing(spacing float64) {
	h.gridSpacing = spacing
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

// RoomMetrics returns the live performance snapshot for a project room,
// if open.
func (h *Hub) RoomMetrics(projectID string) (engine.Metrics, bool) {
	h.mu.RLock()
	room, ok := h.rooms[projectID]
	h.mu.RUnlock()
	if !ok {
		return engine.Metrics{}, false
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	return room.engine.Metrics(), true
}

// RoomDesignJSON returns the live design for a project room, if open.
func (h *Hub) RoomDesignJSON(projectID string) (string, bool) {
	h.mu.RLock()
	room, ok := h.rooms[projectID]
	h.mu.RUnlock()
	if !ok {
		return "", false
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	return room.engine.DesignJSON(), true
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	room, ok := h.rooms[client.ProjectID]
	if !ok {
		room = NewRoom(client.ProjectID, h.gridSpacing)
		if h.loadDesign != nil {
			if data, found := h.loadDesign(client.ProjectID); found {
				if err := room.engine.LoadDesign(data); err != nil {
					slog.Warn("load persisted design", "project", client.ProjectID, "error", err)
				}
			}
		}
		h.rooms[client.ProjectID] = room
	}
	room.clients[client.ClientID] = client
	h.mu.Unlock()

	// Send current presence state to new client
	stateMsg := room.presence.StateMessage()
	if stateMsg != nil {
		client.Send(stateMsg)
	}

	// Broadcast join to other clients
	joinPayload, _ := json.Marshal(PresenceJoinPayload{
		UserID:      client.UserID,
		DisplayName: client.DisplayName,
	})
	joinMsg := &Message{
		Type:    TypePresenceJoin,
		UserID:  client.UserID,
		Payload: joinPayload,
	}
	h.broadcastToRoom(client.ProjectID, joinMsg, client.ClientID)

	slog.Info("client joined", "user", client.UserID, "project", client.ProjectID)
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	room, ok := h.rooms[client.ProjectID]
	if !ok {
		h.mu.Unlock()
		return
	}

	delete(room.clients, client.ClientID)
	close(client.send)
	room.presence.Remove(client.UserID)

	if len(room.clients) == 0 {
		delete(h.rooms, client.ProjectID)
	}
	h.mu.Unlock()

	leavePayload, _ := json.Marshal(PresenceLeavePayload{
		UserID: client.UserID,
	})
	leaveMsg := &Message{
		Type:    TypePresenceLeave,
		UserID:  client.UserID,
		Payload: leavePayload,
	}
	h.broadcastToRoom(client.ProjectID, leaveMsg, "")

	slog.Info("client left", "user", client.UserID, "project", client.ProjectID)
}

func (h *Hub) room(projectID string) *Room {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rooms[projectID]
}

func (h *Hub) handleMessage(sender *Client, msg *Message) {
	room := h.room(sender.ProjectID)
	if room == nil {
		return
	}

	switch msg.Type {
	case TypePointerMove:
		h.handlePointerMove(room, sender, msg)
	case TypePointerClick, TypePointerDoubleClick:
		h.handlePointerClick(room, sender, msg)
	case TypeKeyChange:
		h.handleKeyChange(room, sender, msg)
	case TypeGesture:
		h.handleGesture(room, sender, msg)
	case TypeDrawingUndo, TypeDrawingRedo, TypeDrawingCancel, TypeDrawingComplete:
		h.handleDrawingCommand(room, sender, msg)
	case TypeSnapConfig:
		h.handleSnapConfig(room, sender, msg)
	case TypeViewportUpdate:
		h.handleViewportUpdate(room, sender, msg)
	case TypeConvert:
		h.handleConvert(room, sender)
	case TypeBranchCreate:
		h.handleBranchCreate(room, sender, msg)
	case TypeAnalyzeJunction:
		h.handleAnalyzeJunction(room, sender, msg)
	case TypePresenceUpdate:
		h.handlePresenceUpdate(room, sender, msg)
	default:
		slog.Warn("unknown message type", "type", msg.Type, "user", sender.UserID)
	}
}

func (h *Hub) handlePointerMove(room *Room, sender *Client, msg *Message) {
	var p PointerPayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		h.sendError(sender, "invalid pointer payload")
		return
	}

	room.mu.Lock()
	if p.Viewport != nil {
		room.engine.SetViewport(*p.Viewport)
	}
	attraction, err := room.engine.OnPointerMove(geom.Point2D{X: p.X, Y: p.Y})
	room.mu.Unlock()
	if err != nil {
		h.sendError(sender, err.Error())
		return
	}

	h.sendPayload(sender, TypeSnapResult, SnapResultPayload{Attraction: attraction})

	// Share the attracted cursor with the rest of the room.
	cursor := attraction.AttractedPosition
	presence := &PresencePayload{Cursor: &cursor, DisplayName: sender.DisplayName}
	room.presence.Update(sender.UserID, presence)
	outPayload, _ := json.Marshal(presence)
	h.broadcastToRoom(sender.ProjectID, &Message{
		Type:    TypePresenceUpdate,
		UserID:  sender.UserID,
		Payload: outPayload,
	}, sender.ClientID)

	h.maybeAlert(room)
}

func (h *Hub) handlePointerClick(room *Room, sender *Client, msg *Message) {
	var p PointerPayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		h.sendError(sender, "invalid pointer payload")
		return
	}

	room.mu.Lock()
	if p.Viewport != nil {
		room.engine.SetViewport(*p.Viewport)
	}
	var (
		status engine.DrawingStatus
		err    error
	)
	if msg.Type == TypePointerDoubleClick {
		status, err = room.engine.OnPointerDoubleClick(geom.Point2D{X: p.X, Y: p.Y})
	} else {
		status, err = room.engine.OnPointerClick(geom.Point2D{X: p.X, Y: p.Y})
	}
	room.mu.Unlock()
	if err != nil {
		h.sendError(sender, err.Error())
		return
	}

	h.broadcastPayload(sender.ProjectID, TypeDrawingState, DrawingStatePayload{Status: status}, sender.UserID)
}

func (h *Hub) handleKeyChange(room *Room, sender *Client, msg *Message) {
	var mods snap.Modifiers
	if err := json.Unmarshal(msg.Payload, &mods); err != nil {
		h.sendError(sender, "invalid key payload")
		return
	}
	room.mu.Lock()
	room.engine.OnKeyChange(mods)
	room.mu.Unlock()
}

func (h *Hub) handleGesture(room *Room, sender *Client, msg *Message) {
	var g snap.Gesture
	if err := json.Unmarshal(msg.Payload, &g); err != nil {
		h.sendError(sender, "invalid gesture payload")
		return
	}
	room.mu.Lock()
	room.engine.OnGesture(g)
	room.mu.Unlock()
}

func (h *Hub) handleDrawingCommand(room *Room, sender *Client, msg *Message) {
	room.mu.Lock()
	var (
		status engine.DrawingStatus
		err    error
	)
	switch msg.Type {
	case TypeDrawingUndo:
		status, err = room.engine.Undo()
	case TypeDrawingRedo:
		status, err = room.engine.Redo()
	case TypeDrawingCancel:
		status, err = room.engine.CancelDrawing()
	case TypeDrawingComplete:
		status, err = room.engine.CompleteDrawing()
	}
	room.mu.Unlock()
	if err != nil {
		h.sendError(sender, err.Error())
		return
	}
	h.broadcastPayload(sender.ProjectID, TypeDrawingState, DrawingStatePayload{Status: status}, sender.UserID)
}

func (h *Hub) handleSnapConfig(room *Room, sender *Client, msg *Message) {
	var cfg snap.Config
	if err := json.Unmarshal(msg.Payload, &cfg); err != nil {
		h.sendError(sender, "invalid snap config payload")
		return
	}
	room.mu.Lock()
	room.engine.SetSnapConfig(cfg)
	room.mu.Unlock()
}

func (h *Hub) handleViewportUpdate(room *Room, sender *Client, msg *Message) {
	var vp geom.Viewport
	if err := json.Unmarshal(msg.Payload, &vp); err != nil {
		h.sendError(sender, "invalid viewport payload")
		return
	}
	room.mu.Lock()
	room.engine.SetViewport(vp)
	room.mu.Unlock()
}

func (h *Hub) handleConvert(room *Room, sender *Client) {
	room.mu.Lock()
	result := room.engine.ConvertToDuctwork()
	room.mu.Unlock()
	h.broadcastPayload(sender.ProjectID, TypeDuctworkResult, DuctworkResultPayload{Result: result}, sender.UserID)
}

func (h *Hub) handleBranchCreate(room *Room, sender *Client, msg *Message) {
	var p BranchCreatePayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		h.sendError(sender, "invalid branch payload")
		return
	}
	room.mu.Lock()
	bp, err := room.engine.CreateBranchPoint(p.CenterlineID, p.SegmentIndex, p.SegmentPosition, p.AngleDeg)
	room.mu.Unlock()
	if err != nil {
		h.sendError(sender, err.Error())
		return
	}
	h.broadcastPayload(sender.ProjectID, TypeBranchResult, bp, sender.UserID)
}

func (h *Hub) handleAnalyzeJunction(room *Room, sender *Client, msg *Message) {
	var p AnalyzeJunctionPayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		h.sendError(sender, "invalid junction payload")
		return
	}
	req := branch.DefaultRequirements()
	if p.Requirements != nil {
		req = *p.Requirements
	}
	room.mu.Lock()
	sols, err := room.engine.AnalyzeIntersection(p.MainCenterlineID, p.BranchIDs, p.Point, req)
	room.mu.Unlock()
	if err != nil {
		h.sendError(sender, err.Error())
		return
	}
	h.sendPayload(sender, TypeJunctionResult, JunctionResultPayload{Solutions: sols})
}

func (h *Hub) handlePresenceUpdate(room *Room, sender *Client, msg *Message) {
	var presence PresencePayload
	if err := json.Unmarshal(msg.Payload, &presence); err != nil {
		slog.Warn("invalid presence payload", "error", err)
		return
	}

	presence.DisplayName = sender.DisplayName
	room.presence.Update(sender.UserID, &presence)

	outPayload, _ := json.Marshal(presence)
	h.broadcastToRoom(sender.ProjectID, &Message{
		Type:    TypePresenceUpdate,
		UserID:  sender.UserID,
		Payload: outPayload,
	}, sender.ClientID)
}

// maybeAlert broadcasts perf alerts once per alert episode: it fires
// when alerts first appear and re-arms once they clear.
func (h *Hub) maybeAlert(room *Room) {
	room.mu.Lock()
	alerts := room.engine.Metrics().Alerts
	fire := len(alerts) > 0 && !room.alerted
	room.alerted = len(alerts) > 0
	room.mu.Unlock()
	if !fire {
		return
	}
	h.broadcastPayload(room.projectID, TypePerfAlert, PerfAlertPayload{Alerts: alerts}, "")
}

func (h *Hub) sendError(c *Client, message string) {
	h.sendPayload(c, TypeError, ErrorPayload{Message: message})
}

func (h *Hub) sendPayload(c *Client, msgType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal payload", "type", msgType, "error", err)
		return
	}
	c.Send(&Message{Type: msgType, Payload: data})
}

func (h *Hub) broadcastPayload(projectID, msgType string, payload any, userID string) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal payload", "type", msgType, "error", err)
		return
	}
	h.broadcastToRoom(projectID, &Message{Type: msgType, UserID: userID, Payload: data}, "")
}

func (h *Hub) broadcastToRoom(projectID string, msg *Message, excludeClientID string) {
	h.mu.RLock()
	room, ok := h.rooms[projectID]
	if !ok {
		h.mu.RUnlock()
		return
	}

	clients := make([]*Client, 0, len(room.clients))
	for _, c := range room.clients {
		if c.ClientID != excludeClientID {
			clients = append(clients, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.Send(msg)
	}
}
