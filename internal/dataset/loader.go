package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/stemsi/scorecast/internal/model"
)

// Loader errors.
var (
	ErrDatasetNotFound = errors.New("no dataset found at any candidate path")
	ErrMissingColumn   = errors.New("missing required column")
	ErrEmpty           = errors.New("dataset has no rows")
)

// DefaultCandidates are the conventional dataset locations, searched in order.
func DefaultCandidates() []string {
	candidates := []string{
		filepath.Join("data", "sample.csv"),
		"sample.csv",
	}
	if exe, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(exe), "data", "sample.csv"))
	}
	return candidates
}

// Locate returns the first candidate that exists as a regular file.
func Locate(candidates []string) (string, error) {
	for _, p := range candidates {
		if p == "" {
			continue
		}
		info, err := os.Stat(p)
		if err == nil && info.Mode().IsRegular() {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w (searched %s)", ErrDatasetNotFound, strings.Join(candidates, ", "))
}

// LoadFirst locates the dataset and loads it, reporting the path used.
func LoadFirst(candidates []string) ([]model.StudentRecord, string, error) {
	path, err := Locate(candidates)
	if err != nil {
		return nil, "", err
	}
	records, err := Load(path)
	if err != nil {
		return nil, path, err
	}
	return records, path, nil
}

// Load reads a dataset file.
func Load(path string) ([]model.StudentRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	records, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return records, nil
}

// Parse reads CSV rows with a header line. Columns are matched by name, so
// extra columns and any column order are accepted.
func Parse(r io.Reader) ([]model.StudentRecord, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}

	required := append(model.FeatureColumns[:], model.ColumnFinalExamScore, model.ColumnPassFail)
	for _, col := range required {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}

	var records []model.StudentRecord
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		rec, err := parseRow(row, idx)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, rec)
	}

	if len(records) == 0 {
		return nil, ErrEmpty
	}
	return records, nil
}

func parseRow(row []string, idx map[string]int) (model.StudentRecord, error) {
	str := func(col string) string {
		return strings.TrimSpace(row[idx[col]])
	}
	num := func(col string) (float64, error) {
		v, err := strconv.ParseFloat(str(col), 64)
		if err != nil {
			return 0, fmt.Errorf("column %s: %w", col, err)
		}
		return v, nil
	}

	var (
		rec model.StudentRecord
		err error
	)
	rec.Gender = str(model.ColumnGender)
	rec.ParentalEducationLevel = str(model.ColumnParentalEducationLevel)
	rec.InternetAccessAtHome = str(model.ColumnInternetAccessAtHome)
	rec.ExtracurricularActivities = str(model.ColumnExtracurricularActivities)
	rec.PassFail = str(model.ColumnPassFail)

	if rec.StudyHoursPerWeek, err = num(model.ColumnStudyHoursPerWeek); err != nil {
		return rec, err
	}
	if rec.AttendanceRate, err = num(model.ColumnAttendanceRate); err != nil {
		return rec, err
	}
	if rec.PastExamScores, err = num(model.ColumnPastExamScores); err != nil {
		return rec, err
	}
	if rec.FinalExamScore, err = num(model.ColumnFinalExamScore); err != nil {
		return rec, err
	}
	return rec, nil
}
