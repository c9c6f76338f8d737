package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightdelivered/cas-extractor/internal/extractor"
	"github.com/insightdelivered/cas-extractor/internal/metrics"
	"github.com/insightdelivered/cas-extractor/internal/parser"
	"github.com/insightdelivered/cas-extractor/internal/store"
	"github.com/insightdelivered/cas-extractor/internal/writer"
)

const statementText = `Consolidated Account Statement
01-Apr-2014 To 19-Jul-2025
Email Id: investor@example.com
Ravi Kumar
PORTFOLIO SUMMARY
Aditya Birla Sun Life Mutual Fund 2,50,000.00 9,14,287.60
HDFC Mutual Fund 10,000.00 11,000.00
Total 2,60,000.00 9,25,287.60
Folio No: 1234567 / 89 PAN: ABCDE1234F
G357-Aditya Birla Sun Life Small Cap Fund - Growth - ISIN: INF209K01EN2(Advisor: ARN-123456) Registrar : CAMS
Opening Unit Balance: 12,871.468
27-Sep-2023 (50,000.00) 23.4671 (2,130.664) 10,740.804
*Switch-Out - To ABSL Small Cap Fund Growth , less STT
27-Sep-2023 0.50
*** STT Paid ***
Closing Unit Balance: 10,740.804 NAV on 18-Jul-2025: INR 85.1234 Total Cost Value: 2,50,000.00 Market Value on 18-Jul-2025: INR 9,14,287.60
Folio No: 9988776 PAN: ABCDE1234F
H123-HDFC Flexi Cap Fund - Regular Plan - Growth - ISIN: INF179K01608(Advisor: ARN-654321) Registrar : CAMS
Opening Unit Balance: 0.000
15-Mar-2024 10,000.00 100.00 100.000 100.000
*Purchase - Regular Plan
15-Mar-2024 0.50
*** Stamp Duty ***
Closing Unit Balance: 100.000 NAV on 18-Jul-2025: INR 110.00 Total Cost Value: 10,000.00 Market Value on 18-Jul-2025: INR 11,000.00
Computer Age Management Services Ltd. www.camsonline.com`

type fakeExtractor struct {
	text     string
	err      error
	password string
}

func (f *fakeExtractor) ExtractText(_ context.Context, _ []byte, password string) (string, error) {
	f.password = password
	return f.text, f.err
}

func setupTestApp(t *testing.T, ext TextExtractor) *fiber.App {
	t.Helper()
	st, err := store.NewLocal(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)
	h := &Handler{
		Extractor: ext,
		Parser:    parser.New(zerolog.Nop()),
		Store:     st,
		Metrics:   metrics.New(),
		Log:       zerolog.Nop(),
		Version:   "test",
		now:       func() time.Time { return time.Date(2025, time.July, 19, 10, 0, 0, 0, time.UTC) },
	}
	return h.App(10)
}

func uploadRequest(t *testing.T, path, filename string, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if filename != "" {
		fw, err := mw.CreateFormFile("pdf", filename)
		require.NoError(t, err)
		_, err = fw.Write([]byte("%PDF-1.4 test"))
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func do(t *testing.T, app *fiber.App, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func decodeError(t *testing.T, body []byte) ErrorResponse {
	t.Helper()
	var e ErrorResponse
	require.NoError(t, json.Unmarshal(body, &e))
	return e
}

func TestHealthEndpoint(t *testing.T) {
	app := setupTestApp(t, &fakeExtractor{})

	resp, body := do(t, app, httptest.NewRequest("GET", "/api/health", nil))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var result map[string]string
	require.NoError(t, json.Unmarshal(body, &result))
	assert.Equal(t, "ok", result["status"])
	assert.Equal(t, "fiber", result["engine"])
	assert.NotEmpty(t, resp.Header.Get(fiber.HeaderXRequestID))
}

func TestStatusEndpoint(t *testing.T) {
	app := setupTestApp(t, &fakeExtractor{})

	resp, body := do(t, app, httptest.NewRequest("GET", "/api/status", nil))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var result map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &result))
	assert.Equal(t, "running", result["status"])
	assert.Equal(t, "test", result["version"])
}

func TestUploadValidation(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		filename string
		fields   map[string]string
		want     string
	}{
		{"missing file", "/api/extract-cas-data", "", nil, "No file uploaded"},
		{"not a pdf", "/api/extract-cas-data", "statement.docx", nil, "Invalid file"},
		{"bad format", "/api/extract-cas", "statement.pdf", map[string]string{"outputFormat": "pptx"}, "Invalid output format"},
		{"bad sheets", "/api/extract-cas", "statement.pdf", map[string]string{"sheets": "portfolio"}, "Invalid sheets"},
		{"bad filters", "/api/extract-cas-data", "statement.pdf", map[string]string{"filters": "{"}, "Invalid filters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := setupTestApp(t, &fakeExtractor{text: statementText})
			resp, body := do(t, app, uploadRequest(t, tt.path, tt.filename, tt.fields))
			assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, tt.want, decodeError(t, body).Error)
		})
	}
}

func TestExtractData(t *testing.T) {
	ext := &fakeExtractor{text: statementText}
	app := setupTestApp(t, ext)

	resp, body := do(t, app, uploadRequest(t, "/api/extract-cas-data", "statement.pdf", map[string]string{"password": "ABCDE1234F"}))
	require.Equal(t, fiber.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, "ABCDE1234F", ext.password)

	var data DataResponse
	require.NoError(t, json.Unmarshal(body, &data))
	assert.True(t, data.Success)
	assert.Equal(t, "statement.pdf", data.Metadata.SourceFile)
	assert.Equal(t, 2, data.Metadata.Summary.TotalFunds)
	assert.Equal(t, 2, data.Metadata.Summary.TotalFolios)
	assert.Equal(t, 4, data.Metadata.Summary.TotalTransactions)
	assert.Nil(t, data.Metadata.FilterMetadata)
	require.Len(t, data.Transactions, 4)
	assert.Equal(t, "1234567/89", data.Transactions[0].FolioNumber)
	assert.Equal(t, "INF209K01EN2", data.Transactions[0].ISIN)
	assert.Len(t, data.TransactionData.Funds, 2)
	assert.Equal(t, []string{"1234567/89", "9988776"}, data.AvailableFilters.FolioNumbers)
	assert.Contains(t, data.AvailableFilters.TransactionTypes, "Stamp Duty")
}

func TestExtractDataWithFilters(t *testing.T) {
	app := setupTestApp(t, &fakeExtractor{text: statementText})

	fields := map[string]string{"filters": `{"transactionTypes":["administrative"]}`}
	resp, body := do(t, app, uploadRequest(t, "/api/extract-cas-data", "statement.pdf", fields))
	require.Equal(t, fiber.StatusOK, resp.StatusCode, string(body))

	var data DataResponse
	require.NoError(t, json.Unmarshal(body, &data))
	require.Len(t, data.Transactions, 2)
	for _, tx := range data.Transactions {
		assert.True(t, tx.IsAdministrative)
	}
	require.NotNil(t, data.Metadata.FilterMetadata)
	assert.Equal(t, 4, data.Metadata.FilterMetadata.OriginalCount)
	assert.Equal(t, 2, data.Metadata.FilterMetadata.FilteredCount)
	assert.Equal(t, 2, data.TransactionData.TotalTransactions)
}

func TestExtractDownloads(t *testing.T) {
	tests := []struct {
		format string
		name   string
		check  func(t *testing.T, body []byte)
	}{
		{
			format: "json",
			name:   "statement_CAS_Data_",
			check: func(t *testing.T, body []byte) {
				var env writer.Envelope
				require.NoError(t, json.Unmarshal(body, &env))
				assert.Len(t, env.Transactions, 4)
				assert.Equal(t, statementText, env.RawText)
				assert.Equal(t, 4, env.Metadata.Summary.TotalTransactions)
			},
		},
		{
			format: "text",
			name:   "statement_CAS_Extracted_",
			check: func(t *testing.T, body []byte) {
				assert.Equal(t, statementText, string(body))
			},
		},
		{
			format: "csv",
			name:   "statement_CAS_Transactions_",
			check: func(t *testing.T, body []byte) {
				assert.Contains(t, string(body), "Folio Number")
				assert.Contains(t, string(body), "9988776")
			},
		},
		{
			format: "excel",
			name:   "statement_CAS_Report_",
			check: func(t *testing.T, body []byte) {
				assert.True(t, bytes.HasPrefix(body, []byte("PK")), "xlsx is a zip archive")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			app := setupTestApp(t, &fakeExtractor{text: statementText})
			fields := map[string]string{"outputFormat": tt.format, "sheets": `["transactions"]`}
			resp, body := do(t, app, uploadRequest(t, "/api/extract-cas", "statement.pdf", fields))
			require.Equal(t, fiber.StatusOK, resp.StatusCode, string(body))

			disposition := resp.Header.Get(fiber.HeaderContentDisposition)
			assert.True(t, strings.HasPrefix(disposition, "attachment"), disposition)
			assert.Contains(t, disposition, tt.name)
			tt.check(t, body)
		})
	}
}

func TestExtractFailures(t *testing.T) {
	tests := []struct {
		name    string
		ext     *fakeExtractor
		message string
		outcome string
	}{
		{"password", &fakeExtractor{err: extractor.ErrPasswordRequired}, "password", metrics.OutcomePasswordRequired},
		{"unreadable", &fakeExtractor{err: extractor.ErrUnreadable}, "readable", metrics.OutcomeUnreadable},
		{"too short", &fakeExtractor{text: "Consolidated Account Statement"}, "sufficient text", metrics.OutcomeParseError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := setupTestApp(t, tt.ext)
			resp, body := do(t, app, uploadRequest(t, "/api/extract-cas-data", "statement.pdf", nil))
			assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
			e := decodeError(t, body)
			assert.Equal(t, "Extraction failed", e.Error)
			assert.Contains(t, e.Message, tt.message)

			_, scraped := do(t, app, httptest.NewRequest("GET", "/metrics", nil))
			assert.Contains(t, string(scraped), `cas_extractions_total{outcome="`+tt.outcome+`"} 1`)
		})
	}
}

func TestExportFilteredValidation(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		contentType string
	}{
		{"missing transactions", `{"outputFormat":"json"}`, fiber.MIMEApplicationJSON},
		{"null transactions", `{"filteredTransactions":null}`, fiber.MIMEApplicationJSON},
		{"malformed json", `{"filteredTransactions":[`, fiber.MIMEApplicationJSON},
		{"not json", `filteredTransactions=1`, fiber.MIMETextPlain},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := setupTestApp(t, &fakeExtractor{})
			req := httptest.NewRequest("POST", "/api/export-filtered", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.contentType)
			resp, body := do(t, app, req)
			assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, "Invalid data", decodeError(t, body).Error)
		})
	}
}

func TestExportFiltered(t *testing.T) {
	app := setupTestApp(t, &fakeExtractor{})

	payload := `{
		"filteredTransactions": [{
			"date": "2024-03-15", "amount": 10000, "nav": 100, "units": 100, "unitBalance": 100,
			"transactionType": "Purchase", "description": "Purchase - Regular Plan", "isAdministrative": false,
			"schemeName": "HDFC Flexi Cap Fund - Regular Plan - Growth", "folioNumber": "9988776", "isin": "INF179K01608"
		}],
		"filterMetadata": {"appliedAt": "2025-07-19T10:00:00Z", "filters": {"folioNumber": "9988776"}, "originalCount": 4, "filteredCount": 1},
		"outputFormat": "text",
		"sourceFileName": "cas.pdf"
	}`
	req := httptest.NewRequest("POST", "/api/export-filtered", strings.NewReader(payload))
	req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)
	resp, body := do(t, app, req)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, string(body))

	assert.Contains(t, resp.Header.Get(fiber.HeaderContentDisposition), "cas_Filtered_")
	out := string(body)
	assert.Contains(t, out, "Folio: 9988776")
	assert.Contains(t, out, "Showing 1 of 4 transactions")
	assert.Contains(t, out, "Amount: ₹10,000.00")
}
