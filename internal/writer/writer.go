package writer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/insightdelivered/cas-extractor/internal/models"
)

// ErrUnsupportedFormat is returned by New for an unknown output format.
var ErrUnsupportedFormat = errors.New("unsupported output format")

// Report is everything a writer may render. Rows, when set, replaces the
// flattened transactions of Statement (filtered exports).
type Report struct {
	SourceFile     string
	ExtractedAt    time.Time
	Statement      *models.Statement
	Rows           []models.FlatTransaction
	FilterMetadata *models.FilterMetadata
	RawText        string
	Sheets         []string
}

// Transactions returns the rows to export.
func (r *Report) Transactions() []models.FlatTransaction {
	if r.Rows != nil {
		return r.Rows
	}
	if r.Statement == nil {
		return []models.FlatTransaction{}
	}
	return models.Flatten(r.Statement.Transactions)
}

// Filtered reports whether this is a filtered export.
func (r *Report) Filtered() bool {
	return r.FilterMetadata != nil
}

func (r *Report) portfolio() *models.PortfolioData {
	if r.Statement == nil || r.Statement.Portfolio == nil {
		return &models.PortfolioData{}
	}
	return r.Statement.Portfolio
}

func (r *Report) result() *models.ExtractionResult {
	if r.Statement == nil || r.Statement.Transactions == nil {
		return &models.ExtractionResult{}
	}
	return r.Statement.Transactions
}

// Writer renders a Report in one output format.
type Writer interface {
	Write(out io.Writer, r *Report) error
	ContentType() string
	Extension() string
}

// New returns the writer for format: excel (xlsx), json, csv or text (txt).
func New(format string) (Writer, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "excel", "xlsx", "":
		return &ExcelWriter{}, nil
	case "json":
		return &JSONWriter{}, nil
	case "csv":
		return &CSVWriter{IncludeHeader: true}, nil
	case "text", "txt":
		return &TextWriter{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// WriteToFile renders r into a new file at path.
func WriteToFile(w Writer, path string, r *Report) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file %q: %w", path, err)
	}
	if err := w.Write(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
