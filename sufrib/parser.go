package sufrib

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb"
	log "github.com/sirupsen/logrus"
)

const (
	KindRIB = "rib"
	KindRMB = "rmb"
)

var ErrBadExtension = errors.New("Upload een .RIB of .RMB file.")

// Kind returns rib or rmb for a file name.
func Kind(filename string) (string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".rib":
		return KindRIB, nil
	case ".rmb":
		return KindRMB, nil
	default:
		return "", ErrBadExtension
	}
}

// ParseError is a problem with a single line, Line 0 is the file as a whole.
type ParseError struct {
	Line    int
	Message string
}

func (e ParseError) Error() string {
	if e.Line == 0 {
		return e.Message
	}
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

// File holds the records of a survey file in file order.
type File struct {
	Records []Record
	Errors  []ParseError
}

type lineParser func(line string, lineNo int) (Record, []error)

var lineParsers = map[string]lineParser{
	TypeAlge:        parseAlge,
	TypePut:         parsePut,
	TypeRiool:       parseRiool,
	TypeMeasurement: parseMeasurement,
}

// ParseFile opens and parses a survey file.
func ParseFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Parse(f)
}

// Parse reads survey records line by line. Lines with an unknown record type
// and *WAAR records are skipped. Field errors are collected in File.Errors,
// the returned error is only set when reading fails.
func Parse(r io.Reader) (*File, error) {
	file := &File{}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var prev Record
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r\n")
		recordType, _, _ := strings.Cut(line, separator)

		parse, ok := lineParsers[recordType]
		if !ok {
			continue
		}

		record, errs := parse(line, lineNo)
		for _, err := range errs {
			file.addError(lineNo, err)
		}

		if _, ok := record.(*Alge); ok {
			file.Records = append(file.Records, record)
			continue
		}

		if err := record.updateCoordinates(prev); err != nil {
			file.addError(lineNo, err)
			continue
		}

		file.Records = append(file.Records, record)
		prev = record
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading survey file: %w", err)
	}

	file.resolve()
	log.Debugf("Parsed %d records, %d errors", len(file.Records), len(file.Errors))

	return file, nil
}

func (f *File) addError(line int, err error) {
	f.Errors = append(f.Errors, ParseError{Line: line, Message: err.Error()})
}

// resolve fills missing sewer node coordinates from manholes with the same
// code and places the measurements once all coordinates are known.
func (f *File) resolve() {
	puts := make(map[string]*Put)
	for _, p := range f.Puts() {
		if p.HasPoint {
			puts[p.Code] = p
		}
	}

	riolen := f.Riolen()
	if len(riolen) == 0 {
		f.Errors = append(f.Errors, ParseError{Line: 0, Message: "file contains no *RIOO records"})
	}

	for _, r := range riolen {
		if p, ok := puts[r.Node1]; ok && !r.HasPoint1 {
			r.Point1, r.HasPoint1 = p.Point, true
		}
		if p, ok := puts[r.Node2]; ok && !r.HasPoint2 {
			r.Point2, r.HasPoint2 = p.Point, true
		}
		if !r.HasPoint1 {
			f.addError(r.Line, fmt.Errorf("no coordinates for manhole %s", r.Node1))
		}
		if !r.HasPoint2 {
			f.addError(r.Line, fmt.Errorf("no coordinates for manhole %s", r.Node2))
		}
	}

	for _, m := range f.Measurements() {
		m.locate()
	}
}

// HasErrors reports whether the file should be rejected.
func (f *File) HasErrors() bool {
	return len(f.Errors) > 0
}

func (f *File) Puts() []*Put {
	var puts []*Put
	for _, r := range f.Records {
		if p, ok := r.(*Put); ok {
			puts = append(puts, p)
		}
	}
	return puts
}

func (f *File) Riolen() []*Riool {
	var riolen []*Riool
	for _, r := range f.Records {
		if riool, ok := r.(*Riool); ok {
			riolen = append(riolen, riool)
		}
	}
	return riolen
}

func (f *File) Measurements() []*Measurement {
	var measurements []*Measurement
	for _, r := range f.Records {
		if m, ok := r.(*Measurement); ok {
			measurements = append(measurements, m)
		}
	}
	return measurements
}

// Pool groups the records per sewer code: the *RIOO followed by its *MRIO
// records, in file order.
func (f *File) Pool() map[string][]Record {
	pool := make(map[string][]Record)
	for _, r := range f.Records {
		switch rec := r.(type) {
		case *Riool:
			pool[rec.Code] = append(pool[rec.Code], rec)
		case *Measurement:
			pool[rec.Riool.Code] = append(pool[rec.Riool.Code], rec)
		}
	}
	return pool
}

func parseAlge(line string, lineNo int) (Record, []error) {
	return &Alge{Line: lineNo, Raw: line}, nil
}

func parsePut(line string, lineNo int) (Record, []error) {
	var errs []error
	p := &Put{Line: lineNo, Code: putLayout.extract(line, "CAA")}
	if p.Code == "" {
		errs = append(errs, errors.New("missing manhole code (CAA)"))
	}

	x, y, ok, err := parseCoordinate(putLayout.extract(line, "CAB"))
	if err != nil {
		errs = append(errs, fmt.Errorf("CAB: %w", err))
	}
	p.Point, p.HasPoint = orb.Point{x, y}, ok

	p.GroundLevel, err = parseFloat(putLayout.extract(line, "CCU"))
	if err != nil {
		errs = append(errs, fmt.Errorf("CCU: %w", err))
	}

	return p, errs
}

func parseRiool(line string, lineNo int) (Record, []error) {
	var errs []error
	r := &Riool{
		Line:  lineNo,
		Raw:   line,
		Code:  rioolLayout.extract(line, "AAA"),
		Node1: rioolLayout.extract(line, "AAD"),
		Node2: rioolLayout.extract(line, "AAF"),
	}
	if r.Code == "" {
		errs = append(errs, errors.New("missing sewer code (AAA)"))
	}
	if r.Node1 == "" || r.Node2 == "" {
		errs = append(errs, errors.New("missing manhole code (AAD/AAF)"))
	}

	x, y, ok, err := parseCoordinate(rioolLayout.extract(line, "AAE"))
	if err != nil {
		errs = append(errs, fmt.Errorf("AAE: %w", err))
	}
	r.Point1, r.HasPoint1 = orb.Point{x, y}, ok

	x, y, ok, err = parseCoordinate(rioolLayout.extract(line, "AAG"))
	if err != nil {
		errs = append(errs, fmt.Errorf("AAG: %w", err))
	}
	r.Point2, r.HasPoint2 = orb.Point{x, y}, ok

	for _, f := range []struct {
		name string
		dst  *float64
	}{{"ACR", &r.Bob1}, {"ACS", &r.Bob2}, {"ACB", &r.Height}} {
		v, err := parseFloat(rioolLayout.extract(line, f.name))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", f.name, err))
		} else if math.IsNaN(v) {
			errs = append(errs, fmt.Errorf("%s: missing value", f.name))
		}
		*f.dst = v
	}

	return r, errs
}

func parseMeasurement(line string, lineNo int) (Record, []error) {
	var errs []error
	m := &Measurement{
		Line:      lineNo,
		Direction: measurementLayout.extract(line, "ZYB"),
		Type:      measurementLayout.extract(line, "ZYR"),
	}

	var err error
	m.Distance, err = parseFloat(measurementLayout.extract(line, "ZYA"))
	if err != nil {
		errs = append(errs, fmt.Errorf("ZYA: %w", err))
	} else if math.IsNaN(m.Distance) {
		errs = append(errs, errors.New("ZYA: missing value"))
	}

	if m.Direction != DirectionFromNode1 && m.Direction != DirectionFromNode2 {
		errs = append(errs, fmt.Errorf("ZYB: invalid direction %q", m.Direction))
	}
	if m.Type != MeasurementAbsolute && m.Type != MeasurementRelative {
		errs = append(errs, fmt.Errorf("ZYR: invalid measurement type %q", m.Type))
	}

	m.Value, err = parseFloat(measurementLayout.extract(line, "ZYS"))
	if err != nil {
		errs = append(errs, fmt.Errorf("ZYS: %w", err))
	} else if math.IsNaN(m.Value) {
		errs = append(errs, errors.New("ZYS: missing value"))
	}

	return m, errs
}
