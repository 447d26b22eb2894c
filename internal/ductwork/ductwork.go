// Package ductwork models 3D duct segments and fittings, and converts
// finished centerline graphs into them.
package ductwork

import (
	"github.com/ductline/ductline/backend-go/internal/geom"
)

// Shape is a duct cross-section shape.
type Shape string

const (
	ShapeRectangular Shape = "rectangular"
	ShapeRound       Shape = "round"
	ShapeOval        Shape = "oval"
)

// FittingType identifies a duct fitting.
type FittingType string

const (
	FittingElbow     FittingType = "elbow"
	FittingTee       FittingType = "tee"
	FittingWye       FittingType = "wye"
	FittingCross     FittingType = "cross"
	FittingDoubleWye FittingType = "double_wye"
	FittingReducer   FittingType = "reducer"
	FittingCustom    FittingType = "custom"
)

// ConnectionStatus tracks whether a connection point has been linked.
type ConnectionStatus string

const (
	ConnectionAvailable ConnectionStatus = "available"
	ConnectionConnected ConnectionStatus = "connected"
	ConnectionBlocked   ConnectionStatus = "blocked"
)

// Dimensions carries the cross-section size in inches. Width/Height are
// used for rectangular and oval shapes, Diameter for round.
type Dimensions struct {
	Width    float64 `json:"width,omitempty"`
	Height   float64 `json:"height,omitempty"`
	Diameter float64 `json:"diameter,omitempty"`
}

// ConnectionPoint is one open face of a segment or fitting. A segment or
// fitting is closed only when every connection point is connected.
type ConnectionPoint struct {
	ID          string           `json:"id"`
	Position    geom.Point2D     `json:"position"`
	Direction   geom.Vector3     `json:"direction"`
	Shape       Shape            `json:"shape"`
	Dimensions  Dimensions       `json:"dimensions"`
	Status      ConnectionStatus `json:"status"`
	ConnectedTo string           `json:"connectedTo,omitempty"`
}

// FlowProperties are seeded with defaults at conversion time and filled
// in by the downstream calculation engine.
type FlowProperties struct {
	AirflowCFM   float64 `json:"airflowCfm"`
	VelocityFPM  float64 `json:"velocityFpm"`
	PressureDrop float64 `json:"pressureDrop"`
	FrictionRate float64 `json:"frictionRate"`
	IsCalculated bool    `json:"isCalculated"`
}

// CalculationState marks whether downstream sizing has run.
type CalculationState string

const (
	CalcNeedsRecalculation CalculationState = "needs_recalculation"
	CalcUpToDate           CalculationState = "up_to_date"
)

// DuctSegment is one straight 3D duct run between two connection points.
type DuctSegment struct {
	ID                      string           `json:"id"`
	CenterlineID            string           `json:"centerlineId"`
	Shape                   Shape            `json:"shape"`
	Dimensions              Dimensions       `json:"dimensions"`
	Material                string           `json:"material"`
	Start                   geom.Point2D     `json:"start"`
	End                     geom.Point2D     `json:"end"`
	Length                  float64          `json:"length"`
	Inlet                   ConnectionPoint  `json:"inlet"`
	Outlet                  ConnectionPoint  `json:"outlet"`
	FlowProperties          FlowProperties   `json:"flowProperties"`
	ConnectionRelationships []string         `json:"connectionRelationships"`
	CalculationState        CalculationState `json:"calculationState"`
}

// DuctFitting joins segments at direction changes and branch points.
// Connections always holds exactly the two main-run points (inlet and
// outlet); a fitting is closed when both are connected. Takeoff ports for
// branch runs live in BranchPorts and are resolved by the downstream
// calculation engine, outside the main-run closure accounting.
type DuctFitting struct {
	ID               string            `json:"id"`
	Type             FittingType       `json:"type"`
	Position         geom.Point2D      `json:"position"`
	AngleDeg         float64           `json:"angleDeg"`
	Required         bool              `json:"required"`
	Shape            Shape             `json:"shape"`
	Dimensions       Dimensions        `json:"dimensions"`
	Material         string            `json:"material"`
	Connections      []ConnectionPoint `json:"connections"`
	BranchPorts      []ConnectionPoint `json:"branchPorts,omitempty"`
	CalculationState CalculationState  `json:"calculationState"`
}

// SystemStats summarizes a conversion.
type SystemStats struct {
	TotalLength     float64 `json:"totalLength"`
	SegmentCount    int     `json:"segmentCount"`
	FittingCount    int     `json:"fittingCount"`
	ConnectionCount int     `json:"connectionCount"`
}

// ConversionResult is the output of CenterlineTo3DConverter.
type ConversionResult struct {
	Success         bool              `json:"success"`
	DuctSegments    []*DuctSegment    `json:"ductSegments"`
	Fittings        []*DuctFitting    `json:"fittings"`
	Warnings        []string          `json:"warnings,omitempty"`
	Errors          []string          `json:"errors,omitempty"`
	OpenConnections []ConnectionPoint `json:"openConnections"`
	SystemStats     SystemStats       `json:"systemStats"`
}
