package writer

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/insightdelivered/cas-extractor/internal/models"
)

// Metadata heads every JSON export.
type Metadata struct {
	ExtractedAt    time.Time              `json:"extractedAt"`
	SourceFile     string                 `json:"sourceFile,omitempty"`
	Summary        models.Summary         `json:"summary"`
	FilterMetadata *models.FilterMetadata `json:"filterMetadata,omitempty"`
}

// Envelope is the JSON export document.
type Envelope struct {
	Metadata        Metadata                 `json:"metadata"`
	PortfolioData   *models.PortfolioData    `json:"portfolioData"`
	TransactionData *models.ExtractionResult `json:"transactionData"`
	Transactions    []models.FlatTransaction `json:"transactions"`
	RawText         string                   `json:"rawText,omitempty"`
}

// JSONWriter writes the full nested and flattened data as indented JSON.
type JSONWriter struct{}

func (w *JSONWriter) ContentType() string { return "application/json" }
func (w *JSONWriter) Extension() string   { return ".json" }

func (w *JSONWriter) Write(out io.Writer, r *Report) error {
	env := Envelope{
		Metadata: Metadata{
			ExtractedAt:    r.ExtractedAt,
			SourceFile:     r.SourceFile,
			FilterMetadata: r.FilterMetadata,
		},
		PortfolioData:   r.portfolio(),
		TransactionData: r.result(),
		Transactions:    r.Transactions(),
		RawText:         r.RawText,
	}
	if r.Statement != nil {
		env.Metadata.Summary = r.Statement.Summary
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(env); err != nil {
		return fmt.Errorf("failed to write JSON: %w", err)
	}
	return nil
}
