package handlers

import (
	"context"
	"net/http"

	"github.com/paulmach/orb/geojson"
	"github.com/tebben/riool/capacity"
	"github.com/tebben/riool/service"
)

type Sewerage struct {
	ID       int64  `json:"id" doc:"Sewerage id"`
	UploadID int64  `json:"upload_id" doc:"Upload the sewerage was read from"`
	Name     string `json:"name" doc:"Name of the sewerage"`
}

type SeweragesResult struct {
	Body struct {
		Sewerages []Sewerage `json:"sewerages"`
	}
}

func SeweragesHandler(svc Service) func(ctx context.Context, input *struct{}) (*SeweragesResult, error) {
	return func(ctx context.Context, input *struct{}) (*SeweragesResult, error) {
		sewerages, err := svc.Sewerages(ctx)
		if err != nil {
			return nil, humaError(err)
		}

		result := &SeweragesResult{}
		result.Body.Sewerages = make([]Sewerage, len(sewerages))
		for i, s := range sewerages {
			result.Body.Sewerages[i] = Sewerage{ID: s.ID, UploadID: s.UploadID, Name: s.Name}
		}
		return result, nil
	}
}

func ManholesHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			HandleError(w, err)
			return
		}

		fc, err := svc.ManholesGeoJSON(r.Context(), id, r.URL.Query().Get("srs"))
		writeGeoJSON(w, fc, err)
	}
}

func SewersHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			HandleError(w, err)
			return
		}

		fc, err := svc.SewersGeoJSON(r.Context(), id, r.URL.Query().Get("srs"))
		writeGeoJSON(w, fc, err)
	}
}

func writeGeoJSON(w http.ResponseWriter, fc *geojson.FeatureCollection, err error) {
	if err != nil {
		HandleError(w, err)
		return
	}

	data, err := fc.MarshalJSON()
	if err != nil {
		HandleError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

type NearestManholeInput struct {
	X           float64 `query:"x" required:"true" doc:"X coordinate of the click" example:"155000"`
	Y           float64 `query:"y" required:"true" doc:"Y coordinate of the click" example:"463000"`
	Radius      float64 `query:"radius" minimum:"0" doc:"Search radius in meters" example:"10"`
	SRS         string  `query:"srs" doc:"Projection of the coordinates, default EPSG:28992" example:"EPSG:28992"`
	SewerageIDs []int64 `query:"sewerage_ids" doc:"Sewerages to search, all active ones when empty"`
}

type NearestManholeResult struct {
	// Body is a service.FoundManhole or an empty object.
	Body any
}

// NearestManholeHandler answers an empty object when no manhole is near.
func NearestManholeHandler(svc Service) func(ctx context.Context, input *NearestManholeInput) (*NearestManholeResult, error) {
	return func(ctx context.Context, input *NearestManholeInput) (*NearestManholeResult, error) {
		m, err := svc.FindManhole(ctx, input.X, input.Y, input.Radius, input.SRS, input.SewerageIDs)
		if err != nil {
			return nil, humaError(err)
		}
		if m == nil {
			return &NearestManholeResult{Body: struct{}{}}, nil
		}
		return &NearestManholeResult{Body: m}, nil
	}
}

type SearchManholesInput struct {
	SewerageID int64  `query:"sewerage_id" required:"true" minimum:"1" doc:"Sewerage to search in" example:"1"`
	Q          string `query:"q" required:"true" minLength:"1" doc:"Manhole code or the start of it" example:"PUT-0"`
	Fuzzy      bool   `query:"fuzzy" doc:"Match codes within a small edit distance instead of by prefix"`
	Limit      int    `query:"limit" minimum:"0" maximum:"100" default:"10" doc:"Maximum number of codes to return"`
}

type SearchManholesResult struct {
	Body struct {
		Codes []string `json:"codes"`
	}
}

func SearchManholesHandler(svc Service) func(ctx context.Context, input *SearchManholesInput) (*SearchManholesResult, error) {
	return func(ctx context.Context, input *SearchManholesInput) (*SearchManholesResult, error) {
		codes, err := svc.SearchManholes(input.SewerageID, input.Q, input.Fuzzy, input.Limit)
		if err != nil {
			return nil, humaError(err)
		}

		result := &SearchManholesResult{}
		result.Body.Codes = codes
		return result, nil
	}
}

type PathInput struct {
	SewerageID int64  `query:"upload_id" required:"true" doc:"Sewerage id" example:"1"`
	Source     string `query:"source" required:"true" doc:"Code of the first manhole"`
	Target     string `query:"target" required:"true" doc:"Code of the last manhole"`
	SRS        string `query:"srs" doc:"Projection of the returned coordinates, default EPSG:28992" example:"EPSG:28992"`
}

type PathResult struct {
	Body service.Path
}

// PathHandler always answers 200, an empty path means there is none.
func PathHandler(svc Service) func(ctx context.Context, input *PathInput) (*PathResult, error) {
	return func(ctx context.Context, input *PathInput) (*PathResult, error) {
		return &PathResult{Body: svc.FindPath(ctx, input.SewerageID, input.Source, input.Target, input.SRS)}, nil
	}
}

type ClassesResult struct {
	Body struct {
		Classes []capacity.Class `json:"classes"`
	}
}

func ClassesHandler(svc Service) func(ctx context.Context, input *struct{}) (*ClassesResult, error) {
	return func(ctx context.Context, input *struct{}) (*ClassesResult, error) {
		result := &ClassesResult{}
		result.Body.Classes = svc.Classes()
		return result, nil
	}
}
