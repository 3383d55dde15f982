package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/tebben/riool/service"
)

type SideProfileFilesResult struct {
	Body struct {
		Files []service.SideProfileFile `json:"files"`
	}
}

func SideProfileFilesHandler(svc Service) func(ctx context.Context, input *struct{}) (*SideProfileFilesResult, error) {
	return func(ctx context.Context, input *struct{}) (*SideProfileFilesResult, error) {
		files, err := svc.SideProfileFiles(ctx)
		if err != nil {
			return nil, humaError(err)
		}

		result := &SideProfileFilesResult{}
		result.Body.Files = files
		return result, nil
	}
}

// SideProfilePopupHandler takes the form posted by the map: upload_id,
// putten[], strengen[], width and height.
func SideProfilePopupHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			HandleError(w, badRequest(err.Error()))
			return
		}

		id, err := strconv.ParseInt(r.PostForm.Get("upload_id"), 10, 64)
		if err != nil {
			HandleError(w, badRequest(fmt.Sprintf("invalid upload_id %q", r.PostForm.Get("upload_id"))))
			return
		}

		popup, err := svc.SideProfilePopup(id, r.PostForm["putten[]"], r.PostForm["strengen[]"],
			r.PostForm.Get("width"), r.PostForm.Get("height"))
		if err != nil {
			HandleError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, popup)
	}
}

// SideProfileImageHandler renders the side profile of the query string made
// by SideProfilePopupHandler.
func SideProfileImageHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()

		id, err := strconv.ParseInt(query.Get("upload_id"), 10, 64)
		if err != nil {
			HandleError(w, badRequest(fmt.Sprintf("invalid upload_id %q", query.Get("upload_id"))))
			return
		}

		var manholes []string
		if err := json.Unmarshal([]byte(query.Get("putten")), &manholes); err != nil {
			HandleError(w, badRequest(fmt.Sprintf("invalid putten: %v", err)))
			return
		}

		width, err := strconv.Atoi(query.Get("width"))
		if err != nil || !service.ValidSize(width) {
			HandleError(w, badRequest(fmt.Sprintf("invalid width %q", query.Get("width"))))
			return
		}
		height, err := strconv.Atoi(query.Get("height"))
		if err != nil || !service.ValidSize(height) {
			HandleError(w, badRequest(fmt.Sprintf("invalid height %q", query.Get("height"))))
			return
		}

		png, err := svc.SideProfile(r.Context(), id, manholes, width, height)
		if err != nil {
			HandleError(w, err)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.WriteHeader(http.StatusOK)
		w.Write(png)
	}
}
