package parser

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"location-logger/internal/models"
)

// Parser handles parsing of location sample files
type Parser struct {
	format string
}

// NewParser creates a new parser with the specified format
func NewParser(format string) *Parser {
	return &Parser{format: format}
}

// ParseFile parses a sample file
func (p *Parser) ParseFile(filename string) ([]models.Location, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	switch strings.ToLower(p.format) {
	case "csv":
		return p.parseCSV(file)
	case "json":
		return p.parseJSON(file)
	default:
		return nil, fmt.Errorf("unsupported format: %s", p.format)
	}
}

// parseCSV parses CSV formatted samples
func (p *Parser) parseCSV(r io.Reader) ([]models.Location, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // Allow variable fields

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	indices := make(map[string]int)
	for i, h := range header {
		indices[strings.ToLower(strings.TrimSpace(h))] = i
	}

	var results []models.Location
	lineNum := 1

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return results, fmt.Errorf("error at line %d: %w", lineNum, err)
		}
		lineNum++

		loc, err := recordToLocation(record, indices)
		if err != nil {
			// Log error but continue parsing
			fmt.Printf("Warning: line %d: %v\n", lineNum, err)
			continue
		}
		results = append(results, loc)
	}

	return results, nil
}

// recordToLocation converts a CSV record to a Location
func recordToLocation(record []string, indices map[string]int) (models.Location, error) {
	var loc models.Location

	getValue := func(key string) string {
		if idx, ok := indices[key]; ok && idx < len(record) {
			return strings.TrimSpace(record[idx])
		}
		return ""
	}

	ts, err := parseTimestamp(getValue("timestamp"))
	if err != nil {
		return loc, fmt.Errorf("invalid timestamp: %w", err)
	}
	loc.Timestamp = ts

	loc.Latitude, _ = strconv.ParseFloat(getValue("latitude"), 64)
	loc.Longitude, _ = strconv.ParseFloat(getValue("longitude"), 64)
	loc.Accuracy, _ = strconv.ParseFloat(getValue("accuracy"), 64)
	loc.Provider = getValue("provider")
	loc.BatteryLevel, _ = strconv.Atoi(getValue("battery_level"))
	loc.Event = strings.ToLower(getValue("event"))
	loc.ExtraInfo = getValue("extra_info")

	return loc, nil
}

// parseJSON parses a JSON array or newline-delimited JSON samples
func (p *Parser) parseJSON(r io.Reader) ([]models.Location, error) {
	// Read everything up front: a failed array decode must not eat the
	// input the line-by-line fallback still needs.
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}

	var results []models.Location
	if err := json.Unmarshal(data, &results); err == nil {
		return results, nil
	}

	return p.parseJSONLines(bytes.NewReader(data))
}

// parseJSONLines parses newline-delimited JSON
func (p *Parser) parseJSONLines(r io.Reader) ([]models.Location, error) {
	var results []models.Location
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line == "[" || line == "]" {
			continue
		}
		line = strings.TrimSuffix(line, ",")

		var loc models.Location
		if err := json.Unmarshal([]byte(line), &loc); err != nil {
			fmt.Printf("Warning: line %d: %v\n", lineNum, err)
			continue
		}
		results = append(results, loc)
	}

	return results, scanner.Err()
}

// parseTimestamp accepts epoch milliseconds or a handful of date layouts
func parseTimestamp(s string) (int64, error) {
	if s == "" {
		return 0, fmt.Errorf("missing timestamp")
	}

	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ms, nil
	}

	formats := []string{
		time.RFC3339,
		time.RFC3339Nano,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
	}
	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t.UnixMilli(), nil
		}
	}

	return 0, fmt.Errorf("unable to parse timestamp: %s", s)
}

// ValidateLocation validates a location sample
func ValidateLocation(loc *models.Location) []string {
	var errors []string

	if loc.Timestamp <= 0 {
		errors = append(errors, "timestamp is required")
	}
	if loc.Latitude < -90 || loc.Latitude > 90 {
		errors = append(errors, "latitude must be between -90 and 90")
	}
	if loc.Longitude < -180 || loc.Longitude > 180 {
		errors = append(errors, "longitude must be between -180 and 180")
	}
	if loc.Accuracy < 0 {
		errors = append(errors, "accuracy cannot be negative")
	}

	return errors
}

// ParseFuelArgs parses the "ODO AMOUNT PRICE" argument shape of the fuel
// command. The odometer value tolerates a trailing "km" suffix.
func ParseFuelArgs(args []string) (odo int, amount, price float64, err error) {
	if len(args) != 3 {
		return 0, 0, 0, fmt.Errorf("expected ODO AMOUNT PRICEPERLITRE, got %d values", len(args))
	}

	odoStr := strings.TrimSpace(strings.Replace(strings.ToLower(args[0]), "km", "", 1))
	odo, err = strconv.Atoi(odoStr)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid odometer value %q", args[0])
	}

	amount, err = strconv.ParseFloat(strings.TrimSpace(args[1]), 64)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid amount %q", args[1])
	}

	price, err = strconv.ParseFloat(strings.TrimSpace(args[2]), 64)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid price %q", args[2])
	}
	if price == 0 {
		return 0, 0, 0, fmt.Errorf("price per litre cannot be zero")
	}

	return odo, amount, price, nil
}
