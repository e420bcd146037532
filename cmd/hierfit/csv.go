package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/hierbayes/hierfit/internal/standata"
)

// Dataset CSV layout: one row per observation, columns matched by header
// name. Exposure files need "group" and "unit" (plus optional "cluster",
// "time", "conc"); outcome files need "study" and "exposure" (plus optional
// "unit", "at_risk", "y"). Identifier columns are treated as opaque labels.

func readCSV(path string) (header map[string]int, rows [][]string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening dataset: %w", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("parsing dataset: %w", err)
	}
	if len(records) < 2 {
		return nil, nil, fmt.Errorf("dataset %s has no observation rows", path)
	}

	header = make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		header[name] = i
	}
	return header, records[1:], nil
}

func column(header map[string]int, rows [][]string, name string) []string {
	idx, ok := header[name]
	if !ok {
		return nil
	}
	out := make([]string, len(rows))
	for i, row := range rows {
		out[i] = row[idx]
	}
	return out
}

func floatColumn(header map[string]int, rows [][]string, name string) ([]float64, error) {
	raw := column(header, rows, name)
	if raw == nil {
		return nil, nil
	}
	out := make([]float64, len(raw))
	for i, s := range raw {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("column %s row %d: bad number %q", name, i+1, s)
		}
		out[i] = v
	}
	return out, nil
}

func intColumn(header map[string]int, rows [][]string, name string) ([]int, error) {
	raw := column(header, rows, name)
	if raw == nil {
		return nil, nil
	}
	out := make([]int, len(raw))
	for i, s := range raw {
		v, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("column %s row %d: bad integer %q", name, i+1, s)
		}
		out[i] = v
	}
	return out, nil
}

func readExposureCSV(path string) (*standata.ExposureData, error) {
	header, rows, err := readCSV(path)
	if err != nil {
		return nil, err
	}

	groups := column(header, rows, "group")
	if groups == nil {
		return nil, fmt.Errorf("dataset %s is missing the group column", path)
	}
	units := column(header, rows, "unit")
	if units == nil {
		return nil, fmt.Errorf("dataset %s is missing the unit column", path)
	}
	clusters := column(header, rows, "cluster")
	if inactiveClusterColumn(clusters) {
		clusters = nil
	}

	times, err := floatColumn(header, rows, "time")
	if err != nil {
		return nil, err
	}
	conc, err := floatColumn(header, rows, "conc")
	if err != nil {
		return nil, err
	}
	return standata.NewExposure(groups, clusters, units, conc, times)
}

// inactiveClusterColumn reports whether a cluster column holds only the "0"
// (or empty) codes that writeExposureCSV emits for an inactive level.
func inactiveClusterColumn(clusters []string) bool {
	for _, c := range clusters {
		if c != "0" && c != "" {
			return false
		}
	}
	return true
}

func readOutcomeCSV(path string) (*standata.OutcomeData, error) {
	header, rows, err := readCSV(path)
	if err != nil {
		return nil, err
	}

	studies := column(header, rows, "study")
	if studies == nil {
		return nil, fmt.Errorf("dataset %s is missing the study column", path)
	}
	units := column(header, rows, "unit")

	exposure, err := floatColumn(header, rows, "exposure")
	if err != nil {
		return nil, err
	}
	if exposure == nil {
		return nil, fmt.Errorf("dataset %s is missing the exposure column", path)
	}
	atRisk, err := floatColumn(header, rows, "at_risk")
	if err != nil {
		return nil, err
	}
	y, err := intColumn(header, rows, "y")
	if err != nil {
		return nil, err
	}
	return standata.NewOutcome(studies, units, y, exposure, atRisk)
}

// writeExposureCSV writes a sampled exposure dataset. Level identifiers are
// written as their dense 1-based codes.
func writeExposureCSV(path string, d *standata.ExposureData) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"group", "cluster", "unit", "time", "conc"}); err != nil {
		return err
	}
	for o := 0; o < d.N; o++ {
		row := []string{
			strconv.Itoa(d.GroupOfObs[o]),
			strconv.Itoa(d.ClusterOfObs[o]),
			strconv.Itoa(d.UnitOfObs[o]),
			strconv.FormatFloat(d.Time[o], 'g', -1, 64),
			strconv.FormatFloat(d.Conc[o], 'g', -1, 64),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
