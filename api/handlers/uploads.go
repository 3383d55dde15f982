package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/tebben/riool/service"
	"github.com/tebben/riool/upload"

	log "github.com/sirupsen/logrus"
)

// maxChunkMemory is the part of a multipart chunk kept in memory.
const maxChunkMemory = 32 << 20

type uploadFailure struct {
	Error struct {
		Details string `json:"details"`
	} `json:"error"`
}

// UploadHandler receives one chunk of a multipart upload. It always answers
// 200, failures are reported in the body.
func UploadHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := receiveChunk(svc, r); err != nil {
			log.Warnf("Upload failed: %v", err)
			failure := uploadFailure{}
			failure.Error.Details = err.Error()
			writeJSON(w, http.StatusOK, failure)
			return
		}
		writeJSON(w, http.StatusOK, struct{}{})
	}
}

func receiveChunk(svc Service, r *http.Request) error {
	if err := r.ParseMultipartForm(maxChunkMemory); err != nil {
		return fmt.Errorf("invalid upload: %w", err)
	}
	defer r.MultipartForm.RemoveAll()

	chunk := upload.Chunk{Filename: r.FormValue("filename"), Chunks: 1}
	if v := r.FormValue("chunk"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid chunk %q", v)
		}
		chunk.Chunk = n
	}
	if v := r.FormValue("chunks"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid chunks %q", v)
		}
		chunk.Chunks = n
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return fmt.Errorf("missing file: %w", err)
	}
	defer file.Close()

	if chunk.Filename == "" {
		chunk.Filename = header.Filename
	}
	chunk.Data = file

	return svc.HandleChunk(r.Context(), chunk)
}

type UploadIDInput struct {
	ID int64 `path:"id" minimum:"1" doc:"Upload id" example:"1"`
}

type UploadsResult struct {
	Body struct {
		Uploads []service.UploadItem `json:"uploads"`
	}
}

func UploadsHandler(svc Service) func(ctx context.Context, input *struct{}) (*UploadsResult, error) {
	return func(ctx context.Context, input *struct{}) (*UploadsResult, error) {
		uploads, err := svc.Uploads(ctx)
		if err != nil {
			return nil, humaError(err)
		}

		result := &UploadsResult{}
		result.Body.Uploads = uploads
		return result, nil
	}
}

type UploadErrorsResult struct {
	Body service.UploadErrorsPage
}

func UploadErrorsHandler(svc Service) func(ctx context.Context, input *UploadIDInput) (*UploadErrorsResult, error) {
	return func(ctx context.Context, input *UploadIDInput) (*UploadErrorsResult, error) {
		page, err := svc.UploadErrors(ctx, input.ID)
		if err != nil {
			return nil, humaError(err)
		}
		return &UploadErrorsResult{Body: page}, nil
	}
}

type DeleteUploadResult struct {
	Body struct {
		Success bool `json:"success"`
	}
}

func DeleteUploadHandler(svc Service) func(ctx context.Context, input *UploadIDInput) (*DeleteUploadResult, error) {
	return func(ctx context.Context, input *UploadIDInput) (*DeleteUploadResult, error) {
		if err := svc.DeleteUpload(ctx, input.ID); err != nil {
			return nil, humaError(err)
		}
		result := &DeleteUploadResult{}
		result.Body.Success = true
		return result, nil
	}
}

type ExtentResult struct {
	Body service.Extent
}

func ExtentHandler(svc Service) func(ctx context.Context, input *UploadIDInput) (*ExtentResult, error) {
	return func(ctx context.Context, input *UploadIDInput) (*ExtentResult, error) {
		extent, err := svc.Extent(ctx, input.ID)
		if err != nil {
			return nil, humaError(err)
		}
		return &ExtentResult{Body: extent}, nil
	}
}

// ResultsHandler downloads the SUFRIB results of an upload.
func ResultsHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			HandleError(w, err)
			return
		}

		filename, data, err := svc.Results(r.Context(), id)
		if err != nil {
			HandleError(w, err)
			return
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
		w.WriteHeader(http.StatusOK)
		w.Write(data)
	}
}

// PercentagesHandler returns the flood percentages of an upload as GeoJSON.
func PercentagesHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			HandleError(w, err)
			return
		}

		fc, err := svc.PercentagesGeoJSON(r.Context(), id, r.URL.Query().Get("srs"))
		writeGeoJSON(w, fc, err)
	}
}

func pathID(r *http.Request, name string) (int64, error) {
	value := chi.URLParam(r, name)
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil || id < 1 {
		return 0, badRequest(fmt.Sprintf("invalid %s %q", name, value))
	}
	return id, nil
}
