package storage

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"propscout/models"
)

var csvHeader = []string{
	"id", "source", "address", "postcode", "price", "bedrooms", "bathrooms",
	"property_type", "yield", "flags", "url", "image_url", "listed_date",
}

// CSVWriter writes property records as CSV. It is safe for concurrent use.
type CSVWriter struct {
	mu     sync.Mutex
	closer io.Closer
	writer *csv.Writer
}

// NewCSVWriter creates (or truncates) the CSV file at the given path and
// writes the header row. Intermediate directories are created automatically.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv: create file %q: %w", path, err)
	}

	cw, err := newCSVWriter(f, f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return cw, nil
}

// NewCSVStream writes CSV to w, e.g. an HTTP response. Close only flushes.
func NewCSVStream(w io.Writer) (*CSVWriter, error) {
	return newCSVWriter(w, nil)
}

func newCSVWriter(w io.Writer, closer io.Closer) (*CSVWriter, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("csv: write header: %w", err)
	}
	cw.Flush()
	return &CSVWriter{closer: closer, writer: cw}, nil
}

// Write appends one row per property.
func (c *CSVWriter) Write(properties []models.Property) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, p := range properties {
		yield := ""
		if p.Yield != nil {
			yield = strconv.FormatFloat(*p.Yield, 'f', 2, 64)
		}
		row := []string{
			p.ID,
			p.Source,
			p.Address,
			p.Postcode,
			strconv.Itoa(p.Price),
			strconv.Itoa(p.Bedrooms),
			strconv.Itoa(p.Bathrooms),
			p.PropertyType,
			yield,
			strings.Join(p.Flags, "; "),
			p.URL,
			p.ImageURL,
			p.ListedDate,
		}
		if err := c.writer.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes and closes the underlying file, if any.
func (c *CSVWriter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writer.Flush()
	if c.closer != nil {
		return c.closer.Close()
	}
	return c.writer.Error()
}
