package refdata

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/talgya/flatten-sim/internal/agents"
)

// LoadPopulationCSV reads rows with a header containing zip, total, the
// bracket columns 0, 20, 40, 60, 80 and optionally county.
func LoadPopulationCSV(r io.Reader) ([]PopulationRow, error) {
	records, cols, err := readCSV(r, append([]string{"zip", "total"}, agents.BracketKeys[:]...)...)
	if err != nil {
		return nil, fmt.Errorf("population csv: %w", err)
	}

	countyCol, hasCounty := cols["county"]
	rows := make([]PopulationRow, 0, len(records))
	for i, rec := range records {
		row := PopulationRow{Region: normalizeRegion(rec[cols["zip"]])}
		if row.Total, err = count(rec[cols["total"]]); err != nil {
			return nil, fmt.Errorf("population csv line %d total: %w", i+2, err)
		}
		for b, key := range agents.BracketKeys {
			if row.Brackets[b], err = count(rec[cols[key]]); err != nil {
				return nil, fmt.Errorf("population csv line %d bracket %s: %w", i+2, key, err)
			}
		}
		if hasCounty {
			row.County = strings.TrimSpace(rec[countyCol])
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// LoadHospitalsCSV reads rows with a header containing zip and beds.
func LoadHospitalsCSV(r io.Reader) ([]HospitalRow, error) {
	records, cols, err := readCSV(r, "zip", "beds")
	if err != nil {
		return nil, fmt.Errorf("hospitals csv: %w", err)
	}
	rows := make([]HospitalRow, 0, len(records))
	for i, rec := range records {
		beds, err := count(rec[cols["beds"]])
		if err != nil {
			return nil, fmt.Errorf("hospitals csv line %d beds: %w", i+2, err)
		}
		rows = append(rows, HospitalRow{Region: normalizeRegion(rec[cols["zip"]]), Beds: beds})
	}
	return rows, nil
}

// LoadFiles reads both tables from disk.
func LoadFiles(populationPath, hospitalsPath string) (*Tables, error) {
	pf, err := os.Open(populationPath)
	if err != nil {
		return nil, fmt.Errorf("open population table: %w", err)
	}
	defer pf.Close()
	pop, err := LoadPopulationCSV(pf)
	if err != nil {
		return nil, err
	}

	tables := &Tables{Population: pop}
	if hospitalsPath == "" {
		return tables, nil
	}

	hf, err := os.Open(hospitalsPath)
	if err != nil {
		return nil, fmt.Errorf("open hospitals table: %w", err)
	}
	defer hf.Close()
	if tables.Hospitals, err = LoadHospitalsCSV(hf); err != nil {
		return nil, err
	}
	return tables, nil
}

// readCSV returns data records and a header index, requiring the named columns.
func readCSV(r io.Reader, required ...string) ([][]string, map[string]int, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			return nil, nil, fmt.Errorf("missing column %q", name)
		}
	}

	var records [][]string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		if len(rec) < len(header) {
			padded := make([]string, len(header))
			copy(padded, rec)
			rec = padded
		}
		records = append(records, rec)
	}
	return records, cols, nil
}

// count is atoi restricted to non-negative values.
func count(s string) (int, error) {
	n, err := atoi(s)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("negative count %d", n)
	}
	return n, nil
}

// atoi accepts blanks as zero and tolerates decimal values from spreadsheet exports.
func atoi(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}
