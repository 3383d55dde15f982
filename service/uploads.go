package service

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tebben/riool/export"
	"github.com/tebben/riool/metrics"
	"github.com/tebben/riool/models"
	"github.com/tebben/riool/sufrib"
	"github.com/tebben/riool/upload"

	log "github.com/sirupsen/logrus"
)

// shortLineLength is the length of a file line shown on the error page.
const shortLineLength = 300

type UploadItem struct {
	ID               string `json:"id" doc:"Element id of the upload in the file list"`
	UploadID         int64  `json:"upload_id" doc:"Database id of the upload"`
	Name             string `json:"name" doc:"File name"`
	Status           string `json:"status" doc:"Processing status"`
	ErrorDescription string `json:"error_description" doc:"Summary of the errors found, empty when there are none"`
	ErrorURL         string `json:"error_url" doc:"Page with the errors of the file"`
	DeleteURL        string `json:"delete_url" doc:"URL to delete the upload"`
}

type ErrorLine struct {
	LineNumber    int      `json:"line_number"`
	HasError      bool     `json:"has_error"`
	FileLine      string   `json:"file_line"`
	FileLineShort string   `json:"file_line_short"`
	Errors        []string `json:"errors"`
}

type UploadErrorsPage struct {
	Filename      string      `json:"filename"`
	GeneralErrors []string    `json:"general_errors"`
	Lines         []ErrorLine `json:"lines"`
}

// HandleChunk stores a chunk of an upload. After the last chunk the file is
// moved to its permanent location and queued for processing.
func (s *Service) HandleChunk(ctx context.Context, chunk upload.Chunk) error {
	tmp, done, err := s.assembler.Write(chunk)
	if err != nil {
		return err
	}
	if !done {
		return nil
	}

	u, err := s.createUpload(ctx, chunk.Filename, tmp)
	if err != nil {
		return err
	}

	return s.queue.ProcessUploadAsync(u.ID)
}

func (s *Service) createUpload(ctx context.Context, filename, tmp string) (models.Upload, error) {
	kind, err := sufrib.Kind(filename)
	if err != nil {
		return models.Upload{}, err
	}

	path, err := s.assembler.Store(tmp)
	if err != nil {
		return models.Upload{}, err
	}

	u := models.Upload{
		Filename: filepath.Base(filename),
		Path:     path,
		Kind:     kind,
		Status:   models.StatusUploaded,
	}
	if err := s.store.CreateUpload(ctx, &u); err != nil {
		upload.Remove(path)
		return models.Upload{}, err
	}

	log.Infof("Stored upload %d: %s", u.ID, u.Filename)
	return u, nil
}

// Load stores a local survey file as an upload and processes it right away.
func (s *Service) Load(ctx context.Context, path string) (models.Upload, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.Upload{}, err
	}
	defer f.Close()

	tmp, _, err := s.assembler.Write(upload.Chunk{Filename: filepath.Base(path), Data: f})
	if err != nil {
		return models.Upload{}, err
	}

	u, err := s.createUpload(ctx, filepath.Base(path), tmp)
	if err != nil {
		return models.Upload{}, err
	}

	if err := s.processUpload(ctx, u.ID, false); err != nil {
		return u, err
	}
	if u.Kind == sufrib.KindRMB {
		if err := s.ComputeLostCapacity(ctx, u.ID); err != nil && !errors.Is(err, models.ErrNotFound) {
			return u, err
		}
	}

	return s.store.Upload(ctx, u.ID)
}

// ProcessUpload parses a stored upload. Files with errors are marked as
// failed and keep their errors, other files are stored as a sewerage. Lost
// capacity of rmb files is queued.
func (s *Service) ProcessUpload(ctx context.Context, uploadID int64) error {
	return s.processUpload(ctx, uploadID, true)
}

func (s *Service) processUpload(ctx context.Context, uploadID int64, queueCapacity bool) error {
	u, err := s.store.Upload(ctx, uploadID)
	if errors.Is(err, models.ErrNotFound) {
		log.Warnf("Upload %d was deleted before processing", uploadID)
		return nil
	}
	if err != nil {
		return err
	}
	if u.Status == models.StatusProcessed || u.Status == models.StatusFailed {
		return nil
	}

	u.Status = models.StatusProcessing
	if err := s.store.UpdateUpload(ctx, u); err != nil {
		return err
	}

	file, err := sufrib.ParseFile(u.Path)
	if err != nil {
		file = &sufrib.File{Errors: []sufrib.ParseError{{Line: 0, Message: err.Error()}}}
	}

	if file.HasErrors() {
		metrics.ParseErrorsTotal.Add(float64(len(file.Errors)))
		metrics.UploadsTotal.WithLabelValues(u.Kind, "failed").Inc()
		log.Infof("Upload %d has %d errors", u.ID, len(file.Errors))

		if err := s.store.SaveUploadErrors(ctx, u.ID, uploadErrors(u.ID, file.Errors)); err != nil {
			return err
		}
		u.Status = models.StatusFailed
		return s.store.UpdateUpload(ctx, u)
	}

	manholes, sewers := networkFromFile(file)
	sewerage := models.Sewerage{UploadID: u.ID, Name: u.Filename, Active: true}
	if err := s.store.SaveSewerage(ctx, &sewerage, manholes, sewers); err != nil {
		return err
	}

	if s.index != nil {
		codes := make([]string, len(manholes))
		for i, m := range manholes {
			codes[i] = m.Code
		}
		if err := s.index.Replace(sewerage.ID, codes); err != nil {
			log.Errorf("Failed to index manholes of sewerage %d: %v", sewerage.ID, err)
		}
	}

	u.Status = models.StatusProcessed
	if err := s.store.UpdateUpload(ctx, u); err != nil {
		return err
	}
	metrics.UploadsTotal.WithLabelValues(u.Kind, "ok").Inc()

	if queueCapacity && u.Kind == sufrib.KindRMB {
		return s.queue.ComputeLostCapacityAsync()
	}
	return nil
}

func statusString(u models.Upload) string {
	switch u.Status {
	case models.StatusUploaded:
		return "Wacht op verwerking"
	case models.StatusProcessing:
		return "Wordt verwerkt"
	case models.StatusProcessed:
		return "Verwerkt"
	case models.StatusFailed:
		return "Fout"
	default:
		return u.Status.String()
	}
}

func errorDescription(u models.Upload) string {
	switch {
	case u.ErrorCount == 1:
		return "1 fout gevonden"
	case u.ErrorCount > 1:
		return fmt.Sprintf("%d fouten gevonden", u.ErrorCount)
	default:
		return ""
	}
}

func (s *Service) Uploads(ctx context.Context) ([]UploadItem, error) {
	uploads, err := s.store.Uploads(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]UploadItem, len(uploads))
	for i, u := range uploads {
		items[i] = UploadItem{
			ID:               fmt.Sprintf("uploaded-file-%d", u.ID),
			UploadID:         u.ID,
			Name:             u.Filename,
			Status:           statusString(u),
			ErrorDescription: errorDescription(u),
			ErrorURL:         fmt.Sprintf("/uploads/%d/errors", u.ID),
			DeleteURL:        fmt.Sprintf("/uploads/%d", u.ID),
		}
	}
	return items, nil
}

// UploadErrors returns the errors of an upload. Lines of the file are only
// included when there are line errors and the file still exists.
func (s *Service) UploadErrors(ctx context.Context, uploadID int64) (UploadErrorsPage, error) {
	u, err := s.store.Upload(ctx, uploadID)
	if err != nil {
		return UploadErrorsPage{}, err
	}

	errs, err := s.store.UploadErrors(ctx, uploadID)
	if err != nil {
		return UploadErrorsPage{}, err
	}

	page := UploadErrorsPage{Filename: u.Filename, GeneralErrors: []string{}, Lines: []ErrorLine{}}
	byLine := make(map[int][]string)
	for _, e := range errs {
		if e.Line == 0 {
			page.GeneralErrors = append(page.GeneralErrors, e.Message)
			continue
		}
		byLine[e.Line] = append(byLine[e.Line], e.Message)
	}

	if len(byLine) == 0 {
		return page, nil
	}

	f, err := os.Open(u.Path)
	if err != nil {
		log.Warnf("File of upload %d is not available: %v", uploadID, err)
		return page, nil
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for lineNumber := 1; scanner.Scan(); lineNumber++ {
		line := strings.TrimRight(scanner.Text(), "\r\n")
		short := line
		if len(short) > shortLineLength {
			short = short[:shortLineLength]
		}
		page.Lines = append(page.Lines, ErrorLine{
			LineNumber:    lineNumber,
			HasError:      len(byLine[lineNumber]) > 0,
			FileLine:      line,
			FileLineShort: short,
			Errors:        byLine[lineNumber],
		})
	}

	return page, scanner.Err()
}

// DeleteUpload removes an upload, its sewerage and its file. A missing upload
// is not an error.
func (s *Service) DeleteUpload(ctx context.Context, uploadID int64) error {
	u, err := s.store.Upload(ctx, uploadID)
	if errors.Is(err, models.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if sewerage, err := s.store.SewerageByUpload(ctx, uploadID); err == nil && s.index != nil {
		if err := s.index.Remove(sewerage.ID); err != nil {
			log.Errorf("Failed to remove manholes of sewerage %d from index: %v", sewerage.ID, err)
		}
	}

	if err := s.store.DeleteUpload(ctx, uploadID); err != nil {
		return err
	}

	if err := upload.Remove(u.Path); err != nil {
		log.Errorf("Failed to remove file of upload %d: %v", uploadID, err)
	}

	log.Infof("Deleted upload %d: %s", u.ID, u.Filename)
	return nil
}

// Results returns the SUFRIB results of an upload and their file name. The
// results are empty until flood percentages are computed.
func (s *Service) Results(ctx context.Context, uploadID int64) (string, []byte, error) {
	u, err := s.store.Upload(ctx, uploadID)
	if err != nil {
		return "", nil, err
	}

	if !u.HasComputedPercentages {
		return u.ResultsFilename(), []byte{}, nil
	}

	nodes, err := s.store.StoredGraph(ctx, uploadID, models.SRID)
	if err != nil {
		return "", nil, err
	}
	percentages := make(map[string]float64, len(nodes))
	for _, n := range nodes {
		percentages[n.SufID] = n.FloodedPercentage
	}

	file, err := sufrib.ParseFile(u.Path)
	if err != nil {
		return "", nil, err
	}

	var buf bytes.Buffer
	if err := export.Results(file, percentages, &buf); err != nil {
		return "", nil, err
	}

	return u.ResultsFilename(), buf.Bytes(), nil
}
