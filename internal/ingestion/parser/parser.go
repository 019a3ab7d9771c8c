// Package parser turns delimited production payloads into typed rows.
//
// A payload is UTF-8 text: up to ten leading key,value metadata lines,
// followed by one header line naming at minimum the timestamp, production
// value, capacity factor, and availability columns, followed by one
// comma-separated data row per line. Quoted fields may contain literal
// commas. Blank lines are ignored.
package parser

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	ingestion "github.com/p-vbordei/solar-forecast-sub001/internal/ingestion/domain"
)

// metadataScanLimit bounds the header search: a header must appear within the
// first ten lines.
const metadataScanLimit = 10

// Payload is the structural parse result. Rows whose column count does not
// match the header are skipped and reported in Errors; parsing never aborts
// on a single bad row. RowNums holds each accepted row's original data-row
// number so later validation reports the physical row, not the surviving
// row's index.
type Payload struct {
	Metadata map[string]string
	Headers  []string
	Rows     [][]string
	RowNums  []int
	Errors   []string
}

// Parse splits a delimited payload into metadata, header, and data rows.
// It fails with ErrMalformedInput when no header or no data row can be
// found, and with ErrMissingColumns when the header lacks required columns.
func Parse(text string) (Payload, error) {
	payload := Payload{Metadata: make(map[string]string)}

	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	headerAt := -1
	scanned := 0
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		scanned++
		if scanned > metadataScanLimit {
			break
		}
		fields := splitQuoted(line)
		if isHeaderLine(fields) {
			payload.Headers = trimAll(fields)
			headerAt = i
			break
		}
		if len(fields) == 2 && !containsToken(fields, "timestamp") {
			payload.Metadata[strings.TrimSpace(fields[0])] = strings.TrimSpace(fields[1])
		}
	}
	if headerAt < 0 {
		return payload, fmt.Errorf("%w: no header row within first %d lines", ingestion.ErrMalformedInput, metadataScanLimit)
	}

	if missing := missingColumns(payload.Headers); len(missing) > 0 {
		return payload, fmt.Errorf("%w: %s", ingestion.ErrMissingColumns, strings.Join(missing, ", "))
	}

	rowNum := 0
	for _, line := range lines[headerAt+1:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		rowNum++
		fields := splitQuoted(line)
		if len(fields) != len(payload.Headers) {
			payload.Errors = append(payload.Errors, fmt.Sprintf("Row %d: column count mismatch", rowNum))
			continue
		}
		payload.Rows = append(payload.Rows, trimAll(fields))
		payload.RowNums = append(payload.RowNums, rowNum)
	}
	if len(payload.Rows) == 0 && len(payload.Errors) == 0 {
		return payload, fmt.Errorf("%w: no data rows", ingestion.ErrMalformedInput)
	}
	return payload, nil
}

// splitQuoted splits a line on commas outside double quotes. Quote characters
// toggle the in-quotes flag and are otherwise passed through.
func splitQuoted(line string) []string {
	var fields []string
	var field strings.Builder
	inQuotes := false
	for _, r := range line {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case r == ',' && !inQuotes:
			fields = append(fields, field.String())
			field.Reset()
		default:
			field.WriteRune(r)
		}
	}
	fields = append(fields, field.String())
	return fields
}

func trimAll(fields []string) []string {
	out := make([]string, len(fields))
	for i, field := range fields {
		out[i] = strings.TrimSpace(field)
	}
	return out
}

func containsToken(fields []string, token string) bool {
	for _, field := range fields {
		if strings.Contains(strings.ToLower(field), token) {
			return true
		}
	}
	return false
}

// isHeaderLine recognizes the header: it must name both a timestamp column
// and a production-value column.
func isHeaderLine(fields []string) bool {
	hasTimestamp := false
	hasProduction := false
	for _, field := range fields {
		name := normalize(field)
		if strings.Contains(name, "timestamp") {
			hasTimestamp = true
		}
		if isProductionColumn(name) {
			hasProduction = true
		}
	}
	return hasTimestamp && hasProduction
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func isProductionColumn(name string) bool {
	return strings.Contains(name, "production") ||
		strings.Contains(name, "powermw") ||
		strings.Contains(name, "power_mw")
}

func missingColumns(headers []string) []string {
	hasTimestamp, hasProduction, hasCapacity, hasAvailability := false, false, false, false
	for _, header := range headers {
		name := normalize(header)
		switch {
		case strings.Contains(name, "timestamp"):
			hasTimestamp = true
		case isProductionColumn(name):
			hasProduction = true
		case strings.Contains(name, "capacity_factor"):
			hasCapacity = true
		case strings.Contains(name, "availability"):
			hasAvailability = true
		}
	}
	var missing []string
	if !hasTimestamp {
		missing = append(missing, "timestamp")
	}
	if !hasProduction {
		missing = append(missing, "production (powerMw)")
	}
	if !hasCapacity {
		missing = append(missing, "capacity_factor")
	}
	if !hasAvailability {
		missing = append(missing, "availability")
	}
	return missing
}

// RowDecoder maps header positions and applies per-row semantic validation.
type RowDecoder struct {
	tsIdx       int
	powerIdx    int
	capacityIdx int
	availIdx    int
	energyIdx   int
}

// NewRowDecoder resolves the required column positions from a parsed header.
func NewRowDecoder(headers []string) (*RowDecoder, error) {
	if missing := missingColumns(headers); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ingestion.ErrMissingColumns, strings.Join(missing, ", "))
	}
	decoder := &RowDecoder{tsIdx: -1, powerIdx: -1, capacityIdx: -1, availIdx: -1, energyIdx: -1}
	for i, header := range headers {
		name := normalize(header)
		switch {
		case decoder.tsIdx < 0 && strings.Contains(name, "timestamp"):
			decoder.tsIdx = i
		case decoder.powerIdx < 0 && isProductionColumn(name):
			decoder.powerIdx = i
		case decoder.capacityIdx < 0 && strings.Contains(name, "capacity_factor"):
			decoder.capacityIdx = i
		case decoder.availIdx < 0 && strings.Contains(name, "availability"):
			decoder.availIdx = i
		case decoder.energyIdx < 0 && strings.Contains(name, "energy"):
			decoder.energyIdx = i
		}
	}
	return decoder, nil
}

// Decode validates one data row. Every violated rule appends one message; a
// row with any error is excluded from the insertable set, but decoding always
// continues so the caller sees the full error list.
func (d *RowDecoder) Decode(rowNum int, fields []string) (ingestion.Measurement, []string) {
	var errs []string
	var m ingestion.Measurement

	ts, err := parseTimestamp(fields[d.tsIdx])
	if err != nil {
		errs = append(errs, fmt.Sprintf("Row %d: invalid timestamp %q", rowNum, fields[d.tsIdx]))
	} else {
		m.TS = ts
	}

	power, err := strconv.ParseFloat(fields[d.powerIdx], 64)
	if err != nil || math.IsNaN(power) || math.IsInf(power, 0) || power < 0 {
		errs = append(errs, fmt.Sprintf("Row %d: production value must be a finite non-negative number, got %q", rowNum, fields[d.powerIdx]))
	} else {
		m.PowerMW = power
	}

	capacity, err := parseUnitRatio(fields[d.capacityIdx])
	if err != nil {
		errs = append(errs, fmt.Sprintf("Row %d: capacity factor must be in [0,1], got %q", rowNum, fields[d.capacityIdx]))
	} else {
		m.CapacityFactor = capacity
	}

	availability, err := parseUnitRatio(fields[d.availIdx])
	if err != nil {
		errs = append(errs, fmt.Sprintf("Row %d: availability must be in [0,1], got %q", rowNum, fields[d.availIdx]))
	} else {
		m.Availability = availability
	}

	if d.energyIdx >= 0 && fields[d.energyIdx] != "" {
		energy, err := strconv.ParseFloat(fields[d.energyIdx], 64)
		if err != nil || math.IsNaN(energy) || math.IsInf(energy, 0) || energy < 0 {
			errs = append(errs, fmt.Sprintf("Row %d: energy must be a finite non-negative number, got %q", rowNum, fields[d.energyIdx]))
		} else {
			m.EnergyMWh = &energy
		}
	}

	return m, errs
}

var timestampLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05"}

func parseTimestamp(value string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", value)
}

func parseUnitRatio(value string) (float64, error) {
	ratio, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(ratio) || math.IsInf(ratio, 0) || ratio < 0 || ratio > 1 {
		return 0, fmt.Errorf("out of range: %v", ratio)
	}
	return ratio, nil
}
