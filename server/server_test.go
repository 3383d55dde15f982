package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tebben/riool/capacity"
	"github.com/tebben/riool/models"
	"github.com/tebben/riool/service"
	"github.com/tebben/riool/settings"
	"github.com/tebben/riool/upload"
)

type fakeService struct {
	chunks   []upload.Chunk
	chunkErr error
	deleted  []int64
	manholes []string
	popup    []string
	ids      []int64
}

func (f *fakeService) HandleChunk(_ context.Context, chunk upload.Chunk) error {
	data, _ := io.ReadAll(chunk.Data)
	chunk.Data = bytes.NewReader(data)
	f.chunks = append(f.chunks, chunk)
	return f.chunkErr
}

func (f *fakeService) Uploads(_ context.Context) ([]service.UploadItem, error) {
	return []service.UploadItem{{ID: "uploaded-file-1", UploadID: 1, Name: "a.rmb", Status: "Verwerkt"}}, nil
}

func (f *fakeService) UploadErrors(_ context.Context, id int64) (service.UploadErrorsPage, error) {
	if id != 1 {
		return service.UploadErrorsPage{}, models.ErrNotFound
	}
	return service.UploadErrorsPage{Filename: "a.rmb", GeneralErrors: []string{"no *RIOO"}, Lines: []service.ErrorLine{}}, nil
}

func (f *fakeService) DeleteUpload(_ context.Context, id int64) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeService) Results(_ context.Context, _ int64) (string, []byte, error) {
	return "a_results.txt", []byte("*ALGE|x"), nil
}

func (f *fakeService) Extent(_ context.Context, _ int64) (service.Extent, error) {
	return service.Extent{West: 1, South: 2, East: 3, North: 4}, nil
}

func (f *fakeService) PercentagesGeoJSON(_ context.Context, _ int64, srs string) (*geojson.FeatureCollection, error) {
	if _, err := service.ParseSRS(srs); err != nil {
		return nil, err
	}
	fc := geojson.NewFeatureCollection()
	fc.Append(geojson.NewFeature(orb.Point{1, 2}))
	return fc, nil
}

func (f *fakeService) SideProfileFiles(_ context.Context) ([]service.SideProfileFile, error) {
	return []service.SideProfileFile{{UploadID: 1, Name: "a.rmb", Available: true}}, nil
}

func (f *fakeService) SideProfilePopup(id int64, putten, strengen []string, width, height string) (service.Popup, error) {
	f.popup = append(putten, strengen...)
	return service.Popup{QueryString: "upload_id=1", Width: 900, Height: 300}, nil
}

func (f *fakeService) SideProfile(_ context.Context, _ int64, manholes []string, _, _ int) ([]byte, error) {
	f.manholes = manholes
	return []byte("\x89PNG"), nil
}

func (f *fakeService) Sewerages(_ context.Context) ([]models.Sewerage, error) {
	return []models.Sewerage{{ID: 2, UploadID: 1, Name: "a.rmb", Active: true}}, nil
}

func (f *fakeService) ManholesGeoJSON(_ context.Context, _ int64, _ string) (*geojson.FeatureCollection, error) {
	return geojson.NewFeatureCollection(), nil
}

func (f *fakeService) SewersGeoJSON(_ context.Context, _ int64, _ string) (*geojson.FeatureCollection, error) {
	return geojson.NewFeatureCollection(), nil
}

func (f *fakeService) FindManhole(_ context.Context, x, y, _ float64, _ string, ids []int64) (*service.FoundManhole, error) {
	f.ids = ids
	if x == 0 {
		return nil, nil
	}
	return &service.FoundManhole{X: x, Y: y, Put: "MH1", SewerageID: 1}, nil
}

func (f *fakeService) SearchManholes(_ int64, q string, _ bool, _ int) ([]string, error) {
	return []string{strings.ToUpper(q) + "1"}, nil
}

func (f *fakeService) FindPath(_ context.Context, _ int64, _, _, _ string) service.Path {
	return service.Path{Strengen: []string{}, Putten: []service.PathManhole{}}
}

func (f *fakeService) Classes() []capacity.Class {
	return capacity.Classes
}

func (f *fakeService) Tile(_ context.Context, layer string, z, x, y int, _ int64) ([]byte, error) {
	if layer != "sewers" {
		return nil, models.ErrNotFound
	}
	return []byte{0x1a, byte(z), byte(x), byte(y)}, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *fakeService) {
	t.Helper()
	svc := &fakeService{}
	srv := httptest.NewServer(CreateRouter(settings.Default(), svc, func() bool { return true }))
	t.Cleanup(srv.Close)
	return srv, svc
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if v != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp.StatusCode
}

func TestStatus(t *testing.T) {
	srv, _ := newTestServer(t)

	var body map[string]string
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/status", &body))
	assert.Equal(t, "running", body["tasks"])
	assert.NotEmpty(t, body["uptime"])
}

func TestNotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	var body map[string]any
	assert.Equal(t, http.StatusNotFound, getJSON(t, srv.URL+"/unknown", &body))
	assert.Equal(t, float64(http.StatusNotFound), body["status"])
}

func postChunk(t *testing.T, url string, fields map[string]string, data string) map[string]any {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	part, err := w.CreateFormFile("file", "blob")
	require.NoError(t, err)
	_, err = part.Write([]byte(data))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	resp, err := http.Post(url+"/upload", w.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestUpload(t *testing.T) {
	srv, svc := newTestServer(t)

	body := postChunk(t, srv.URL, map[string]string{"filename": "survey.rmb", "chunk": "1", "chunks": "3"}, "data")
	assert.Empty(t, body)

	require.Len(t, svc.chunks, 1)
	assert.Equal(t, "survey.rmb", svc.chunks[0].Filename)
	assert.Equal(t, 1, svc.chunks[0].Chunk)
	assert.Equal(t, 3, svc.chunks[0].Chunks)
	data, _ := io.ReadAll(svc.chunks[0].Data)
	assert.Equal(t, "data", string(data))
}

func TestUpload_Failure(t *testing.T) {
	srv, svc := newTestServer(t)
	svc.chunkErr = assert.AnError

	body := postChunk(t, srv.URL, map[string]string{"filename": "survey.txt"}, "data")
	require.Contains(t, body, "error")
	assert.Equal(t, assert.AnError.Error(), body["error"].(map[string]any)["details"])

	body = postChunk(t, srv.URL, map[string]string{"filename": "survey.rmb", "chunk": "one"}, "data")
	assert.Contains(t, body, "error")
}

func TestUploads(t *testing.T) {
	srv, svc := newTestServer(t)

	var list struct {
		Uploads []service.UploadItem `json:"uploads"`
	}
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/uploads", &list))
	require.Len(t, list.Uploads, 1)
	assert.Equal(t, "uploaded-file-1", list.Uploads[0].ID)

	var page service.UploadErrorsPage
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/uploads/1/errors", &page))
	assert.Equal(t, []string{"no *RIOO"}, page.GeneralErrors)
	assert.Equal(t, http.StatusNotFound, getJSON(t, srv.URL+"/uploads/2/errors", nil))

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/uploads/5", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []int64{5}, svc.deleted)
}

func TestResults(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/uploads/1/results")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `attachment; filename="a_results.txt"`, resp.Header.Get("Content-Disposition"))
	data, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "*ALGE|x", string(data))

	assert.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/uploads/abc/results", nil))
}

func TestExtentAndPercentages(t *testing.T) {
	srv, _ := newTestServer(t)

	var extent service.Extent
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/uploads/1/extent", &extent))
	assert.Equal(t, service.Extent{West: 1, South: 2, East: 3, North: 4}, extent)

	resp, err := http.Get(srv.URL + "/uploads/1/percentages.geojson")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "application/geo+json", resp.Header.Get("Content-Type"))
	fc, err := geojson.UnmarshalFeatureCollection(mustRead(t, resp.Body))
	require.NoError(t, err)
	assert.Len(t, fc.Features, 1)

	assert.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/uploads/1/percentages.geojson?srs=bogus", nil))
}

func mustRead(t *testing.T, r io.Reader) []byte {
	t.Helper()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	return data
}

func TestSideProfile(t *testing.T) {
	srv, svc := newTestServer(t)

	form := url.Values{}
	form.Set("upload_id", "2")
	form.Add("putten[]", "MH1")
	form.Add("putten[]", "MH2")
	form.Add("strengen[]", "S1")
	form.Set("width", "900.5")
	resp, err := http.PostForm(srv.URL+"/side-profile/popup", form)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"MH1", "MH2", "S1"}, svc.popup)

	query := url.Values{}
	query.Set("upload_id", "2")
	query.Set("putten", `["MH1","MH2"]`)
	query.Set("width", "900")
	query.Set("height", "300")
	resp, err = http.Get(srv.URL + "/side-profile.png?" + query.Encode())
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.Equal(t, []string{"MH1", "MH2"}, svc.manholes)

	query.Set("putten", "MH1")
	assert.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/side-profile.png?"+query.Encode(), nil))

	svc.manholes = nil
	query.Set("putten", `["MH1","MH2"]`)
	for _, size := range []string{"0", "4001", "5000000000"} {
		query.Set("width", size)
		assert.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/side-profile.png?"+query.Encode(), nil), size)
	}
	query.Set("width", "900")
	query.Set("height", "100000")
	assert.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/side-profile.png?"+query.Encode(), nil))
	assert.Nil(t, svc.manholes)

	var files struct {
		Files []service.SideProfileFile `json:"files"`
	}
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/side-profile/files", &files))
	assert.Len(t, files.Files, 1)
}

func TestManholes(t *testing.T) {
	srv, svc := newTestServer(t)

	var found service.FoundManhole
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/manholes/nearest?x=5&y=6&sewerage_ids=1,2", &found))
	assert.Equal(t, "MH1", found.Put)
	assert.Equal(t, []int64{1, 2}, svc.ids)

	var empty map[string]any
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/manholes/nearest?x=0&y=6", &empty))
	assert.NotContains(t, empty, "put")

	var search struct {
		Codes []string `json:"codes"`
	}
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/manholes/search?sewerage_id=2&q=mh", &search))
	assert.Equal(t, []string{"MH1"}, search.Codes)

	var path service.Path
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/path?upload_id=2&source=MH1&target=MH9", &path))
	assert.Empty(t, path.Strengen)
	assert.NotNil(t, path.Putten)
}

func TestSeweragesAndClasses(t *testing.T) {
	srv, _ := newTestServer(t)

	var sewerages struct {
		Sewerages []map[string]any `json:"sewerages"`
	}
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/sewerages", &sewerages))
	require.Len(t, sewerages.Sewerages, 1)
	assert.Equal(t, "a.rmb", sewerages.Sewerages[0]["name"])

	var classes struct {
		Classes []capacity.Class `json:"classes"`
	}
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/layers/classes", &classes))
	assert.Len(t, classes.Classes, 6)

	resp, err := http.Get(srv.URL + "/sewerages/2/sewers.geojson")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestTiles(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/tiles/sewers/3/4/5.mvt")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/vnd.mapbox-vector-tile", resp.Header.Get("Content-Type"))
	assert.Equal(t, []byte{0x1a, 3, 4, 5}, mustRead(t, resp.Body))

	assert.Equal(t, http.StatusNotFound, getJSON(t, srv.URL+"/tiles/roads/3/4/5.mvt", nil))
	assert.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/tiles/sewers/a/4/5.mvt", nil))
}

func TestMetrics(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
