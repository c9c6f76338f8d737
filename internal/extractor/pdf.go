package extractor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"sort"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/rs/zerolog"
)

var (
	// ErrPasswordRequired means the PDF is encrypted and no usable password was given.
	ErrPasswordRequired = errors.New("PDF is password protected: provide the statement password")
	// ErrUnreadable means every extraction method produced garbage or nothing.
	ErrUnreadable = errors.New("no readable text could be extracted from PDF; it may be image-based or scanned")
)

// Extractor turns CAS PDFs into plain text, one line per visual row.
type Extractor struct {
	log          zerolog.Logger
	usePdftotext bool
}

// New returns an Extractor. When usePdftotext is set, poppler's pdftotext is
// tried after the Go library if it is on PATH.
func New(log zerolog.Logger, usePdftotext bool) *Extractor {
	return &Extractor{log: log.With().Str("component", "extractor").Logger(), usePdftotext: usePdftotext}
}

// ExtractFile reads the PDF at path and extracts its text.
func (e *Extractor) ExtractFile(ctx context.Context, path, password string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return e.ExtractText(ctx, data, password)
}

// ExtractText decrypts the document when a password is supplied, then tries
// the structured library and finally pdftotext. Garbage text is never returned.
func (e *Extractor) ExtractText(ctx context.Context, data []byte, password string) (string, error) {
	plain := data
	if password != "" {
		decrypted, err := decrypt(data, password)
		if err != nil {
			return "", err
		}
		plain = decrypted
	}

	pages, libErr := extractWithLibrary(plain)
	if libErr == nil && isReadableText(pages) {
		e.log.Debug().Int("pages", len(pages)).Str("method", "library").Msg("text extracted")
		return strings.Join(pages, "\n"), nil
	}
	if errors.Is(libErr, pdf.ErrInvalidPassword) {
		return "", ErrPasswordRequired
	}
	if libErr != nil {
		e.log.Debug().Err(libErr).Msg("library extraction failed")
	}

	if e.usePdftotext {
		text, err := extractWithPdftotext(ctx, data, password)
		if err == nil && isReadableText([]string{text}) {
			e.log.Debug().Str("method", "pdftotext").Msg("text extracted")
			return text, nil
		}
		if err != nil {
			e.log.Debug().Err(err).Msg("pdftotext extraction failed")
		}
	}

	if libErr != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreadable, libErr)
	}
	return "", ErrUnreadable
}

// decrypt removes the statement password with pdfcpu so the text library
// only ever sees an unencrypted document.
func decrypt(data []byte, password string) ([]byte, error) {
	conf := model.NewDefaultConfiguration()
	conf.UserPW = password
	conf.OwnerPW = password

	var out bytes.Buffer
	if err := api.Decrypt(bytes.NewReader(data), &out, conf); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "password") {
			return nil, fmt.Errorf("%w: %v", ErrPasswordRequired, err)
		}
		// pdfcpu refuses documents that are not encrypted at all.
		if strings.Contains(strings.ToLower(err.Error()), "not encrypted") {
			return data, nil
		}
		return nil, fmt.Errorf("decrypting PDF: %w", err)
	}
	return out.Bytes(), nil
}

// textQuality returns the share of characters that are plain ASCII letters,
// digits, whitespace or common statement punctuation.
func textQuality(pages []string) float64 {
	const punct = ".,-/:;()'\"₹$%&@#!?+=*"
	total, readable := 0, 0
	for _, page := range pages {
		for _, r := range page {
			total++
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
				(r >= '0' && r <= '9') || unicode.IsSpace(r) || strings.ContainsRune(punct, r) {
				readable++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(readable) / float64(total)
}

// Words found in every consolidated account statement.
var commonWords = []string{
	"folio", "isin", "nav", "units", "unit balance", "amount", "scheme",
	"mutual fund", "statement", "purchase", "redemption", "registrar",
	"opening", "closing", "portfolio", "valuation",
}

func containsCommonWords(pages []string) bool {
	combined := strings.ToLower(strings.Join(pages, " "))
	for _, word := range commonWords {
		if strings.Contains(combined, word) {
			return true
		}
	}
	return false
}

// isReadableText requires more than 50 characters, over 60% readable
// characters and at least one statement word.
func isReadableText(pages []string) bool {
	if totalTextLen(pages) <= 50 {
		return false
	}
	if textQuality(pages) <= 0.6 {
		return false
	}
	return containsCommonWords(pages)
}

// IsReadableText is the exported version for use by other packages.
func IsReadableText(text string) bool {
	return isReadableText([]string{text})
}

// extractWithPdftotext shells out to poppler. The input goes through a
// temporary file because pdftotext cannot read encrypted PDFs from stdin.
func extractWithPdftotext(ctx context.Context, data []byte, password string) (string, error) {
	if _, err := exec.LookPath("pdftotext"); err != nil {
		return "", fmt.Errorf("pdftotext not available: %w", err)
	}

	tmp, err := os.CreateTemp("", "cas-*.pdf")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}

	args := []string{"-layout"}
	if password != "" {
		args = append(args, "-upw", password)
	}
	args = append(args, tmp.Name(), "-")
	out, err := exec.CommandContext(ctx, "pdftotext", args...).Output()
	if err != nil {
		return "", fmt.Errorf("pdftotext failed: %w", err)
	}
	text := strings.TrimSpace(string(out))
	if text == "" {
		return "", errors.New("pdftotext produced no output")
	}
	return text, nil
}

// extractWithLibrary uses ledongthuc/pdf, trying row grouping first and then
// progressively looser methods.
func extractWithLibrary(data []byte) (pages []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("PDF library crashed: %v", r)
		}
	}()

	r, openErr := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if openErr != nil {
		return nil, openErr
	}

	numPages := r.NumPage()
	if numPages == 0 {
		return nil, errors.New("PDF has no pages")
	}

	pages = extractByRow(r, numPages)
	if isReadableText(pages) {
		return pages, nil
	}

	pages = extractByContent(r, numPages)
	if isReadableText(pages) {
		return pages, nil
	}

	plainText := extractByReaderPlainText(r)
	if isReadableText([]string{plainText}) {
		return []string{plainText}, nil
	}

	return pages, nil
}

// extractByRow keeps the library's own row grouping.
func extractByRow(r *pdf.Reader, numPages int) []string {
	var pages []string
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			continue
		}
		var lines []string
		for _, row := range rows {
			parts := make([]string, 0, len(row.Content))
			for _, word := range row.Content {
				parts = append(parts, word.S)
			}
			if line := strings.TrimSpace(strings.Join(parts, " ")); line != "" {
				lines = append(lines, line)
			}
		}
		pages = append(pages, strings.Join(lines, "\n"))
	}
	return pages
}

// extractByContent rebuilds rows from raw glyph positions: pieces are grouped
// by rounded Y (top of page first) and ordered by X within a row.
func extractByContent(r *pdf.Reader, numPages int) []string {
	type piece struct {
		x float64
		s string
	}

	var pages []string
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		content := page.Content()
		if len(content.Text) == 0 {
			continue
		}

		rowMap := make(map[int][]piece)
		for _, t := range content.Text {
			if strings.TrimSpace(t.S) == "" {
				continue
			}
			y := int(math.Round(t.Y))
			rowMap[y] = append(rowMap[y], piece{x: t.X, s: t.S})
		}

		ys := make([]int, 0, len(rowMap))
		for y := range rowMap {
			ys = append(ys, y)
		}
		sort.Sort(sort.Reverse(sort.IntSlice(ys)))

		var lines []string
		for _, y := range ys {
			items := rowMap[y]
			sort.Slice(items, func(a, b int) bool { return items[a].x < items[b].x })

			var sb strings.Builder
			var prevX float64
			for j, item := range items {
				// A wide gap separates columns.
				if j > 0 && item.x-prevX > 15 {
					sb.WriteString(" ")
				}
				sb.WriteString(item.s)
				prevX = item.x
			}
			if line := strings.TrimSpace(sb.String()); line != "" {
				lines = append(lines, line)
			}
		}
		pages = append(pages, strings.Join(lines, "\n"))
	}
	return pages
}

func extractByReaderPlainText(r *pdf.Reader) string {
	reader, err := r.GetPlainText()
	if err != nil {
		return ""
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func totalTextLen(pages []string) int {
	n := 0
	for _, p := range pages {
		n += len(strings.TrimSpace(p))
	}
	return n
}
