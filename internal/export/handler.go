// Package export renders converted ductwork into downloadable bill of
// materials documents.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ductline/ductline/backend-go/internal/ductwork"
)

const maxRequestSize = 20 << 20 // 20MB

type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

// ExportBOM handles POST /export/bom. The body is a conversion result and
// the response is a CSV or JSON bill of materials, chosen by the "format"
// query parameter (csv by default).
func (h *Handler) ExportBOM(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestSize)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "request too large", http.StatusBadRequest)
		return
	}

	var result ductwork.ConversionResult
	if err := json.Unmarshal(body, &result); err != nil {
		http.Error(w, "invalid conversion result: "+err.Error(), http.StatusBadRequest)
		return
	}

	if len(result.DuctSegments) == 0 && len(result.Fittings) == 0 {
		http.Error(w, "nothing to export", http.StatusBadRequest)
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}
	if format != "csv" && format != "json" {
		http.Error(w, "invalid format: must be csv or json", http.StatusBadRequest)
		return
	}

	name := r.URL.Query().Get("name")
	if name == "" {
		name = "ductwork"
	}
	// Sanitize filename
	name = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}
		return '-'
	}, name)

	bom := Build(result)

	slog.Info("bom export", "format", format, "lines", len(bom.Lines))

	switch format {
	case "json":
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s-bom.json"`, name))
		json.NewEncoder(w).Encode(bom)

	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s-bom.csv"`, name))
		cw := csv.NewWriter(w)
		cw.Write([]string{"item", "description", "shape", "size", "material", "quantity", "total_length"})
		for _, line := range bom.Lines {
			cw.Write([]string{
				line.Item,
				line.Description,
				line.Shape,
				line.Size,
				line.Material,
				fmt.Sprintf("%d", line.Quantity),
				fmt.Sprintf("%.1f", line.TotalLength),
			})
		}
		cw.Flush()
		if err := cw.Error(); err != nil {
			slog.Error("write csv", "error", err)
		}
	}
}
