package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/rs/zerolog"

	"github.com/insightdelivered/cas-extractor/internal/extractor"
	"github.com/insightdelivered/cas-extractor/internal/filter"
	"github.com/insightdelivered/cas-extractor/internal/logger"
	"github.com/insightdelivered/cas-extractor/internal/metrics"
	"github.com/insightdelivered/cas-extractor/internal/models"
	"github.com/insightdelivered/cas-extractor/internal/parser"
	"github.com/insightdelivered/cas-extractor/internal/store"
	"github.com/insightdelivered/cas-extractor/internal/writer"
)

// TextExtractor pulls plain text out of an uploaded PDF.
type TextExtractor interface {
	ExtractText(ctx context.Context, data []byte, password string) (string, error)
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// AvailableFilters lists the values a client can filter on.
type AvailableFilters struct {
	TransactionTypes []string `json:"transactionTypes"`
	FolioNumbers     []string `json:"folioNumbers"`
}

// DataResponse is the JSON response from /api/extract-cas-data.
type DataResponse struct {
	Success          bool                     `json:"success"`
	Metadata         writer.Metadata          `json:"metadata"`
	PortfolioData    *models.PortfolioData    `json:"portfolioData"`
	TransactionData  *models.ExtractionResult `json:"transactionData"`
	Transactions     []models.FlatTransaction `json:"transactions"`
	AvailableFilters AvailableFilters         `json:"availableFilters"`
}

// ExportRequest is the body of /api/export-filtered.
type ExportRequest struct {
	FilteredTransactions []models.FlatTransaction `json:"filteredTransactions"`
	PortfolioData        *models.PortfolioData    `json:"portfolioData"`
	TransactionData      *models.ExtractionResult `json:"transactionData"`
	FilterMetadata       *models.FilterMetadata   `json:"filterMetadata"`
	OutputFormat         string                   `json:"outputFormat"`
	SelectedSheets       []string                 `json:"selectedSheets"`
	SourceFileName       string                   `json:"sourceFileName"`
}

// Handler holds the HTTP handlers for the API.
type Handler struct {
	Extractor TextExtractor
	Parser    *parser.Parser
	Store     *store.Local
	Metrics   *metrics.Metrics
	Log       zerolog.Logger
	StaticDir string
	Version   string

	now     func() time.Time
	started time.Time
}

func (h *Handler) clock() time.Time {
	if h.now != nil {
		return h.now()
	}
	return time.Now()
}

// App builds the fiber application with middleware and routes.
func (h *Handler) App(bodyLimitMB int) *fiber.App {
	if bodyLimitMB <= 0 {
		bodyLimitMB = 10
	}
	app := fiber.New(fiber.Config{
		AppName:               "cas-extractor",
		BodyLimit:             bodyLimitMB << 20,
		DisableStartupMessage: true,
		ErrorHandler:          h.handleError,
	})
	app.Use(recoverer(h.Log), requestLogger(h.Log), cors.New())
	h.RegisterRoutes(app)
	return app
}

// RegisterRoutes sets up the HTTP routes.
func (h *Handler) RegisterRoutes(app *fiber.App) {
	h.started = h.clock()
	api := app.Group("/api")
	api.Post("/extract-cas", h.HandleExtract)
	api.Post("/extract-cas-data", h.HandleExtractData)
	api.Post("/export-filtered", h.HandleExportFiltered)
	api.Get("/status", h.HandleStatus)
	api.Get("/health", h.HandleHealth)

	if h.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(h.Metrics.Handler()))
	}

	// Serve the React build, falling back to index.html for client routes.
	if h.StaticDir != "" {
		app.Static("/", h.StaticDir)
		app.Get("/*", func(c *fiber.Ctx) error {
			if strings.HasPrefix(c.Path(), "/api/") {
				return fiber.ErrNotFound
			}
			return c.SendFile(filepath.Join(h.StaticDir, "index.html"))
		})
	}
}

func (h *Handler) HandleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"engine":  "fiber",
		"version": h.Version,
	})
}

func (h *Handler) HandleStatus(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "running",
		"version": h.Version,
		"uptime":  int64(h.clock().Sub(h.started).Seconds()),
		"formats": []string{"excel", "json", "csv", "text"},
		"sheets":  []string{writer.SheetPortfolio, writer.SheetTransactions, writer.SheetHoldings},
	})
}

// HandleExtract parses an uploaded statement and returns the report as a download.
func (h *Handler) HandleExtract(c *fiber.Ctx) error {
	format := c.FormValue("outputFormat", "excel")
	w, err := writer.New(format)
	if err != nil {
		return badRequest("Invalid output format", err.Error())
	}
	var sheets []string
	if raw := c.FormValue("sheets"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &sheets); err != nil {
			return badRequest("Invalid sheets", "sheets must be a JSON array of sheet names")
		}
	}

	x, err := h.extract(c)
	if err != nil {
		return err
	}

	report := &writer.Report{
		SourceFile:  x.source,
		ExtractedAt: h.clock(),
		Statement:   x.statement,
		RawText:     x.text,
		Sheets:      sheets,
	}
	name := downloadName(x.source, fullReportLabel(w), h.clock(), w.Extension())
	return h.sendReport(c, w, report, name)
}

// HandleExtractData parses an uploaded statement and returns everything as JSON,
// optionally narrowed by a "filters" form field.
func (h *Handler) HandleExtractData(c *fiber.Ctx) error {
	var state filter.State
	if raw := c.FormValue("filters"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &state); err != nil {
			return badRequest("Invalid filters", err.Error())
		}
	}

	x, err := h.extract(c)
	if err != nil {
		return err
	}

	st := x.statement
	all := models.Flatten(st.Transactions)
	resp := DataResponse{
		Success: true,
		Metadata: writer.Metadata{
			ExtractedAt: h.clock(),
			SourceFile:  x.source,
			Summary:     st.Summary,
		},
		PortfolioData:   st.Portfolio,
		TransactionData: st.Transactions,
		Transactions:    all,
		AvailableFilters: AvailableFilters{
			TransactionTypes: filter.UniqueTransactionTypes(all),
			FolioNumbers:     filter.UniqueFolioNumbers(all),
		},
	}
	if filter.HasActive(state) {
		rows := filter.Apply(all, state)
		meta := filter.NewMetadata(state, len(all), len(rows), h.clock())
		resp.Transactions = rows
		resp.TransactionData = filter.Reconstruct(rows, st.Transactions)
		resp.Metadata.FilterMetadata = &meta
	}
	return c.JSON(resp)
}

// HandleExportFiltered renders client-filtered transactions as a download.
func (h *Handler) HandleExportFiltered(c *fiber.Ctx) error {
	var req ExportRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest("Invalid data", "request body must be JSON")
	}
	if req.FilteredTransactions == nil {
		return badRequest("Invalid data", "filteredTransactions array is required")
	}
	w, err := writer.New(req.OutputFormat)
	if err != nil {
		return badRequest("Invalid output format", err.Error())
	}
	if req.SourceFileName == "" {
		req.SourceFileName = "CAS_Data"
	}

	rows := req.FilteredTransactions
	rebuilt := filter.Reconstruct(rows, req.TransactionData)
	meta := req.FilterMetadata
	if meta == nil {
		original := len(rows)
		if req.TransactionData != nil {
			original = req.TransactionData.CountTransactions()
		}
		meta = &models.FilterMetadata{AppliedAt: h.clock(), OriginalCount: original, FilteredCount: len(rows)}
	}
	summary := models.Summary{TotalFolios: rebuilt.TotalFolios, TotalTransactions: len(rows)}
	if req.PortfolioData != nil {
		summary.TotalFunds = req.PortfolioData.FundCount
	}

	report := &writer.Report{
		SourceFile:  req.SourceFileName,
		ExtractedAt: h.clock(),
		Statement: &models.Statement{
			Portfolio:    req.PortfolioData,
			Transactions: rebuilt,
			Summary:      summary,
		},
		Rows:           rows,
		FilterMetadata: meta,
		Sheets:         req.SelectedSheets,
	}
	log := logger.FromContext(c.UserContext())
	log.Info().
		Str("format", req.OutputFormat).
		Int("filtered", len(rows)).
		Int("original", meta.OriginalCount).
		Msg("exporting filtered transactions")

	name := downloadName(req.SourceFileName, "Filtered", h.clock(), w.Extension())
	return h.sendReport(c, w, report, name)
}

type extraction struct {
	source    string
	text      string
	statement *models.Statement
}

// extract reads the "pdf" upload and runs text extraction and parsing.
func (h *Handler) extract(c *fiber.Ctx) (*extraction, error) {
	log := logger.FromContext(c.UserContext())

	fh, err := c.FormFile("pdf")
	if err != nil {
		return nil, badRequest("No file uploaded", "Please upload a PDF file")
	}
	if !strings.EqualFold(filepath.Ext(fh.Filename), ".pdf") {
		return nil, badRequest("Invalid file", "Only PDF files are supported")
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload: %w", err)
	}
	data, err := io.ReadAll(f)
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}

	password := c.FormValue("password")
	log.Info().
		Str("file", fh.Filename).
		Int64("size", fh.Size).
		Bool("password", password != "").
		Msg("processing statement")

	text, err := h.Extractor.ExtractText(c.UserContext(), data, password)
	if err != nil {
		return nil, h.extractionFailed(c, err)
	}
	st, err := h.Parser.Parse(text)
	if err != nil {
		return nil, h.extractionFailed(c, err)
	}
	h.Metrics.ObserveExtraction(metrics.OutcomeSuccess, st.Summary.TotalTransactions)
	log.Info().
		Str("issuer", string(st.Issuer)).
		Int("funds", st.Summary.TotalFunds).
		Int("folios", st.Summary.TotalFolios).
		Int("transactions", st.Summary.TotalTransactions).
		Msg("extraction complete")

	return &extraction{source: fh.Filename, text: text, statement: st}, nil
}

func (h *Handler) extractionFailed(c *fiber.Ctx, err error) error {
	outcome := metrics.OutcomeParseError
	switch {
	case errors.Is(err, extractor.ErrPasswordRequired):
		outcome = metrics.OutcomePasswordRequired
	case errors.Is(err, extractor.ErrUnreadable):
		outcome = metrics.OutcomeUnreadable
	}
	h.Metrics.ObserveExtraction(outcome, 0)
	log := logger.FromContext(c.UserContext())
	log.Error().Err(err).Str("outcome", outcome).Msg("extraction failed")
	return &apiError{Status: fiber.StatusInternalServerError, Title: "Extraction failed", Err: err}
}

// sendReport stores the rendered report and streams it back as an attachment.
// Stored outputs are removed later by the sweeper.
func (h *Handler) sendReport(c *fiber.Ctx, w writer.Writer, r *writer.Report, name string) error {
	info, err := h.Store.Save(name, w.ContentType(), func(out io.Writer) error {
		return w.Write(out, r)
	})
	if err != nil {
		log := logger.FromContext(c.UserContext())
		log.Error().Err(err).Msg("failed to generate output")
		return &apiError{Status: fiber.StatusInternalServerError, Title: "Export failed", Err: err}
	}
	if err := c.Download(info.Path, info.DownloadName); err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, info.ContentType)
	return nil
}

// apiError is an error with the status and title to report it under.
type apiError struct {
	Status int
	Title  string
	Err    error
}

func (e *apiError) Error() string { return e.Err.Error() }
func (e *apiError) Unwrap() error { return e.Err }

func badRequest(title, msg string) error {
	return &apiError{Status: fiber.StatusBadRequest, Title: title, Err: errors.New(msg)}
}

func (h *Handler) handleError(c *fiber.Ctx, err error) error {
	var ae *apiError
	if errors.As(err, &ae) {
		return c.Status(ae.Status).JSON(ErrorResponse{Error: ae.Title, Message: ae.Error()})
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(ErrorResponse{Error: "Request failed", Message: fe.Message})
	}
	log := logger.FromContext(c.UserContext())
	log.Error().Err(err).Msg("unhandled error")
	return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "Internal server error", Message: err.Error()})
}

func fullReportLabel(w writer.Writer) string {
	switch w.(type) {
	case *writer.JSONWriter:
		return "CAS_Data"
	case *writer.TextWriter:
		return "CAS_Extracted"
	case *writer.CSVWriter:
		return "CAS_Transactions"
	default:
		return "CAS_Report"
	}
}

// downloadName builds "<source>_<label>_<unix millis><ext>".
func downloadName(source, label string, at time.Time, ext string) string {
	base := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	if base == "" || base == "." {
		base = "CAS_Data"
	}
	return fmt.Sprintf("%s_%s_%d%s", base, label, at.UnixMilli(), ext)
}
