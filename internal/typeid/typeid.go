package typeid

import (
	"fmt"

	"go.jetify.com/typeid/v2"
)

const (
	PrefixProject    = "proj"
	PrefixSnapshot   = "ss"
	PrefixSnapPoint  = "sp"
	PrefixCenterline = "cl"
	PrefixBranch     = "br"
	PrefixSegment    = "seg"
	PrefixFitting    = "fit"
	PrefixConnection = "conn"
	PrefixSolution   = "sol"
	PrefixRoom       = "room"
	PrefixEquipment  = "equip"
	PrefixDrawing    = "dwg"
)

func New(prefix string) string {
	id := typeid.MustGenerate(prefix)
	return id.String()
}

func NewProjectID() string    { return New(PrefixProject) }
func NewSnapshotID() string   { return New(PrefixSnapshot) }
func NewSnapPointID() string  { return New(PrefixSnapPoint) }
func NewCenterlineID() string { return New(PrefixCenterline) }
func NewBranchID() string     { return New(PrefixBranch) }
func NewSegmentID() string    { return New(PrefixSegment) }
func NewFittingID() string    { return New(PrefixFitting) }
func NewConnectionID() string { return New(PrefixConnection) }
func NewSolutionID() string   { return New(PrefixSolution) }
func NewRoomID() string       { return New(PrefixRoom) }
func NewEquipmentID() string  { return New(PrefixEquipment) }
func NewDrawingID() string    { return New(PrefixDrawing) }

func Validate(id, expectedPrefix string) error {
	parsed, err := typeid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid typeid %q: %w", id, err)
	}
	if parsed.Prefix() != expectedPrefix {
		return fmt.Errorf("expected prefix %q but got %q in id %q", expectedPrefix, parsed.Prefix(), id)
	}
	return nil
}
