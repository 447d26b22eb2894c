package export

import (
	"fmt"
	"sort"

	"github.com/ductline/ductline/backend-go/internal/ductwork"
)

// Line is one aggregated row of a bill of materials. Straight duct of the
// same shape, size, and material collapses into a single line with a summed
// length; fittings aggregate by type, size, and material.
type Line struct {
	Item        string  `json:"item"` // "duct" or the fitting type
	Description string  `json:"description"`
	Shape       string  `json:"shape"`
	Size        string  `json:"size"`
	Material    string  `json:"material"`
	Quantity    int     `json:"quantity"`
	TotalLength float64 `json:"totalLength,omitempty"` // duct lines only
}

// BOM is a complete bill of materials for one conversion result.
type BOM struct {
	Lines     []Line               `json:"lines"`
	Stats     ductwork.SystemStats `json:"stats"`
	OpenPorts int                  `json:"openPorts"`
	Warnings  []string             `json:"warnings,omitempty"`
}

// Build aggregates a conversion result into a bill of materials.
func Build(result ductwork.ConversionResult) BOM {
	type key struct {
		item     string
		shape    string
		size     string
		material string
	}

	totals := make(map[key]*Line)

	add := func(k key, desc string, length float64) {
		line, ok := totals[k]
		if !ok {
			line = &Line{
				Item:        k.item,
				Description: desc,
				Shape:       k.shape,
				Size:        k.size,
				Material:    k.material,
			}
			totals[k] = line
		}
		line.Quantity++
		line.TotalLength += length
	}

	for _, seg := range result.DuctSegments {
		k := key{
			item:     "duct",
			shape:    string(seg.Shape),
			size:     sizeLabel(seg.Shape, seg.Dimensions),
			material: seg.Material,
		}
		add(k, "straight duct", seg.Length)
	}

	for _, fit := range result.Fittings {
		k := key{
			item:     string(fit.Type),
			shape:    string(fit.Shape),
			size:     sizeLabel(fit.Shape, fit.Dimensions),
			material: fit.Material,
		}
		add(k, fittingDescription(fit), 0)
	}

	lines := make([]Line, 0, len(totals))
	for _, line := range totals {
		lines = append(lines, *line)
	}
	// Duct first, then fittings alphabetically, then by size for a stable
	// document ordering.
	sort.Slice(lines, func(i, j int) bool {
		if lines[i].Item != lines[j].Item {
			if lines[i].Item == "duct" {
				return true
			}
			if lines[j].Item == "duct" {
				return false
			}
			return lines[i].Item < lines[j].Item
		}
		return lines[i].Size < lines[j].Size
	})

	return BOM{
		Lines:     lines,
		Stats:     result.SystemStats,
		OpenPorts: len(result.OpenConnections),
		Warnings:  result.Warnings,
	}
}

func sizeLabel(shape ductwork.Shape, d ductwork.Dimensions) string {
	if shape == ductwork.ShapeRound {
		return fmt.Sprintf(`%.0f" dia`, d.Diameter)
	}
	return fmt.Sprintf(`%.0fx%.0f`, d.Width, d.Height)
}

func fittingDescription(fit *ductwork.DuctFitting) string {
	switch fit.Type {
	case ductwork.FittingElbow:
		return fmt.Sprintf("%.0f deg elbow", fit.AngleDeg)
	case ductwork.FittingTee:
		return "tee branch"
	case ductwork.FittingWye:
		return fmt.Sprintf("%.0f deg wye branch", fit.AngleDeg)
	case ductwork.FittingCross:
		return "cross junction"
	case ductwork.FittingDoubleWye:
		return "double wye junction"
	case ductwork.FittingReducer:
		return "reducer"
	default:
		return "custom fabricated fitting"
	}
}
