package handlers

import (
	"fmt"
	"net/http"

	"github.com/tebben/riool/errors"
)

func NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	details := fmt.Sprintf("Path '%s' not found", r.URL.Path)
	HandleError(w, errors.NewAPIError(http.StatusNotFound, "Not found", &details))
}
