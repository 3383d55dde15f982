package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
)

const mvtContentType = "application/vnd.mapbox-vector-tile"

// TileHandler serves /tiles/{layer}/{z}/{x}/{y}.mvt, the optional filter
// query parameter limits the tile to one sewerage or upload.
func TileHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var coords [3]int
		for i, name := range []string{"z", "x", "y"} {
			value := strings.TrimSuffix(chi.URLParam(r, name), ".mvt")
			n, err := strconv.Atoi(value)
			if err != nil {
				HandleError(w, badRequest(fmt.Sprintf("invalid tile coordinate %s=%q", name, value)))
				return
			}
			coords[i] = n
		}

		var filter int64
		if v := r.URL.Query().Get("filter"); v != "" {
			id, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				HandleError(w, badRequest(fmt.Sprintf("invalid filter %q", v)))
				return
			}
			filter = id
		}

		tile, err := svc.Tile(r.Context(), chi.URLParam(r, "layer"), coords[0], coords[1], coords[2], filter)
		if err != nil {
			HandleError(w, err)
			return
		}

		w.Header().Set("Content-Type", mvtContentType)
		w.WriteHeader(http.StatusOK)
		w.Write(tile)
	}
}
