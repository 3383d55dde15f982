package export

import (
	"bufio"
	"fmt"
	"io"

	"github.com/tebben/riool/capacity"
	"github.com/tebben/riool/sufrib"

	log "github.com/sirupsen/logrus"
)

const (
	// ObservationFlooding is the *WAAR code of a lost capacity result.
	ObservationFlooding = "BDD"
	Remark              = "Door Lizard Riool Toolkit"
)

// Results writes the flooding results of a survey file as *WAAR records. The
// *ALGE and *RIOO lines of the file are copied, every *RIOO is followed by a
// *WAAR for each measurement where the flooding class changes. percentages
// maps measurement SufIDs to their flooded fraction.
func Results(file *sufrib.File, percentages map[string]float64, w io.Writer) error {
	bw := bufio.NewWriter(w)
	pool := file.Pool()
	first := true

	writeLine := func(line string) error {
		if !first {
			if err := bw.WriteByte('\n'); err != nil {
				return err
			}
		}
		first = false
		_, err := bw.WriteString(line)
		return err
	}

	for _, record := range file.Records {
		switch r := record.(type) {
		case *sufrib.Alge:
			if err := writeLine(r.Raw); err != nil {
				return err
			}
		case *sufrib.Riool:
			if err := writeLine(r.Raw); err != nil {
				return err
			}
			for _, waar := range observations(r.Code, pool[r.Code], percentages) {
				if err := writeLine(waar.String()); err != nil {
					return err
				}
			}
		}
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}
	return nil
}

func observations(code string, records []sufrib.Record, percentages map[string]float64) []*sufrib.Waar {
	var waars []*sufrib.Waar
	previous := ""

	for _, record := range records {
		m, ok := record.(*sufrib.Measurement)
		if !ok {
			continue
		}

		pct, ok := percentages[m.SufID()]
		if !ok {
			log.Debugf("No stored graph node for %s", m.SufID())
			continue
		}

		class := capacity.ClassFor(pct)
		if class.Name == previous {
			continue
		}
		previous = class.Name

		waars = append(waars, &sufrib.Waar{
			Distance:  m.Distance,
			Direction: m.Direction,
			Riool:     code,
			Code:      ObservationFlooding,
			Min:       class.Min,
			Max:       class.Max,
			Remark:    Remark,
		})
	}

	return waars
}
