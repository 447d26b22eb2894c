// Package session is the websocket layer: each project gets a room that
// owns one drawing engine, and connected clients drive it with input
// events and receive snap, drawing, and conversion results.
package session

import (
	"encoding/json"

	"github.com/ductline/ductline/backend-go/internal/branch"
	"github.com/ductline/ductline/backend-go/internal/ductwork"
	"github.com/ductline/ductline/backend-go/internal/engine"
	"github.com/ductline/ductline/backend-go/internal/geom"
	"github.com/ductline/ductline/backend-go/internal/perf"
	"github.com/ductline/ductline/backend-go/internal/snap"
)

type Message struct {
	Type      string          `json:"type"`
	ProjectID string          `json:"projectId,omitempty"`
	ClientID  string          `json:"clientId,omitempty"`
	UserID    string          `json:"userId,omitempty"`
	Seq       int64           `json:"seq,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

const (
	// Connection
	TypeWelcome = "welcome"
	TypeError   = "error"

	// Input events (client → server)
	TypePointerMove        = "pointer.move"
	TypePointerClick       = "pointer.click"
	TypePointerDoubleClick = "pointer.doubleClick"
	TypeKeyChange          = "key.change"
	TypeGesture            = "gesture"

	// Drawing commands (client → server)
	TypeDrawingUndo     = "drawing.undo"
	TypeDrawingRedo     = "drawing.redo"
	TypeDrawingCancel   = "drawing.cancel"
	TypeDrawingComplete = "drawing.complete"

	// Session commands (client → server)
	TypeSnapConfig      = "snap.config"
	TypeViewportUpdate  = "viewport.update"
	TypeConvert         = "ductwork.convert"
	TypeBranchCreate    = "branch.create"
	TypeAnalyzeJunction = "junction.analyze"

	// Results (server → client)
	TypeSnapResult     = "snap.result"
	TypeDrawingState   = "drawing.state"
	TypeDuctworkResult = "ductwork.result"
	TypeBranchResult   = "branch.result"
	TypeJunctionResult = "junction.result"
	TypePerfAlert      = "perf.alert"

	// Presence
	TypePresenceUpdate = "presence.update"
	TypePresenceState  = "presence.state"
	TypePresenceJoin   = "presence.join"
	TypePresenceLeave  = "presence.leave"
)

// PointerPayload is a raw pointer event in screen space. The viewport
// transform rides along so the engine converts at the sender's zoom.
type PointerPayload struct {
	X        float64        `json:"x"`
	Y        float64        `json:"y"`
	Viewport *geom.Viewport `json:"viewport,omitempty"`
}

// BranchCreatePayload requests a branch point on a centerline.
type BranchCreatePayload struct {
	CenterlineID    string  `json:"centerlineId"`
	SegmentIndex    int     `json:"segmentIndex"`
	SegmentPosition float64 `json:"segmentPosition"`
	AngleDeg        float64 `json:"angleDeg"`
}

// AnalyzeJunctionPayload requests complex fitting analysis of a
// multi-branch intersection.
type AnalyzeJunctionPayload struct {
	MainCenterlineID string               `json:"mainCenterlineId"`
	BranchIDs        []string             `json:"branchIds"`
	Point            geom.Point2D         `json:"point"`
	Requirements     *branch.Requirements `json:"requirements,omitempty"`
}

// JunctionResultPayload carries the ranked solutions back.
type JunctionResultPayload struct {
	Solutions []*branch.Solution `json:"solutions"`
}

// DrawingStatePayload broadcasts the drawing state machine after a
// mutation.
type DrawingStatePayload struct {
	Status engine.DrawingStatus `json:"status"`
}

// SnapResultPayload answers a pointer.move with the attracted cursor.
type SnapResultPayload struct {
	Attraction snap.AttractionResult `json:"attraction"`
}

// DuctworkResultPayload broadcasts a completed conversion.
type DuctworkResultPayload struct {
	Result ductwork.ConversionResult `json:"result"`
}

// PerfAlertPayload carries threshold violations for the debug overlay.
type PerfAlertPayload struct {
	Alerts []perf.Alert `json:"alerts"`
}

// ErrorPayload reports a rejected command.
type ErrorPayload struct {
	Message string `json:"message"`
}

type PresencePayload struct {
	Cursor      *geom.Point2D `json:"cursor,omitempty"`
	Selection   []string      `json:"selection,omitempty"`
	DisplayName string        `json:"displayName,omitempty"`
}

type PresenceStatePayload struct {
	Presences map[string]*PresencePayload `json:"presences"`
}

type PresenceJoinPayload struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}

type PresenceLeavePayload struct {
	UserID string `json:"userId"`
}
