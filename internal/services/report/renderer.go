// Package report renders audit findings into single-page PDF documents.
package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/google/uuid"

	"vanguard/internal/domain"
)

const (
	utf8Family = "vanguard"

	title            = "VANGUARD SAI-838"
	bannerDiscovery  = "INTEL DISCOVERY REPORT"
	bannerRemediated = "REMEDIATION SUCCESSFUL"
)

// Document is a rendered report. Lines holds the text content in page order.
type Document struct {
	Name    string
	Lines   []string
	Content []byte
}

type Renderer struct {
	now      func() time.Time
	newName  func() string
	fontPath string
}

type Option func(*Renderer)

// WithClock fixes the creation date written into the PDF.
func WithClock(now func() time.Time) Option {
	return func(r *Renderer) { r.now = now }
}

// WithNamer replaces the document name generator.
func WithNamer(newName func() string) Option {
	return func(r *Renderer) { r.newName = newName }
}

// WithUTF8Font embeds the TrueType font at path so non-Latin text renders.
// Without it the core Arial font is used, which only covers cp1252.
func WithUTF8Font(path string) Option {
	return func(r *Renderer) { r.fontPath = path }
}

func New(opts ...Option) *Renderer {
	r := &Renderer{
		now:     time.Now,
		newName: func() string { return "vanguard_" + uuid.NewString() + ".pdf" },
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Lines returns the text of a report in page order. Cost and work estimate
// appear only on discovery reports.
func Lines(f domain.Finding, remediated bool) []string {
	banner := bannerDiscovery
	if remediated {
		banner = bannerRemediated
	}
	lines := []string{
		title,
		"STATUS: " + banner,
		"TARGET: " + f.Target,
	}
	if f.Balance != "" {
		lines = append(lines, "BALANCE: "+f.Balance)
	}
	lines = append(lines, "FINDINGS:")
	for _, issue := range f.Issues {
		lines = append(lines, "> "+issue)
	}
	if !remediated {
		lines = append(lines,
			fmt.Sprintf("PRICE TO SECURE: $%d", f.Cost),
			fmt.Sprintf("ESTIMATED WORK: %d Days", f.RemediationDays),
		)
	}
	return lines
}

// Render lays out the finding on a dark A4 page. The finding is not modified.
func (r *Renderer) Render(f domain.Finding, remediated bool) (Document, error) {
	lines := Lines(f, remediated)

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(false)
	pdf.SetCatalogSort(true)
	pdf.SetCreationDate(r.now())
	family := "Arial"
	// cp1252: characters outside it are dropped from the page.
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	if r.fontPath != "" {
		pdf.AddUTF8Font(utf8Family, "", r.fontPath)
		pdf.AddUTF8Font(utf8Family, "B", r.fontPath)
		if err := pdf.Error(); err != nil {
			return Document{}, fmt.Errorf("load font %s: %w", r.fontPath, err)
		}
		family = utf8Family
		tr = func(s string) string { return s }
	}

	pdf.AddPage()
	pdf.SetFillColor(10, 10, 10)
	pdf.Rect(0, 0, 210, 297, "F")

	// lines[0] title, lines[1] status, lines[2] target, then optional balance.
	pdf.SetTextColor(0, 102, 204)
	pdf.SetFont(family, "B", 24)
	pdf.CellFormat(190, 20, tr(lines[0]), "", 1, "C", false, 0, "")

	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont(family, "", 12)
	pdf.Ln(10)
	i := 1
	for ; lines[i] != "FINDINGS:"; i++ {
		pdf.CellFormat(190, 10, tr(lines[i]), "", 1, "L", false, 0, "")
	}
	pdf.Ln(10)

	pdf.SetTextColor(200, 0, 0)
	pdf.SetFont(family, "B", 14)
	pdf.CellFormat(190, 10, tr(lines[i]), "", 1, "L", false, 0, "")
	pdf.SetFont(family, "", 10)
	pdf.SetTextColor(255, 255, 255)
	for _, issue := range f.Issues {
		pdf.MultiCell(0, 10, tr("> "+issue), "", "L", false)
	}

	if !remediated {
		pdf.Ln(10)
		pdf.SetTextColor(255, 255, 0)
		for _, line := range lines[len(lines)-2:] {
			pdf.CellFormat(190, 10, tr(line), "", 1, "L", false, 0, "")
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return Document{}, fmt.Errorf("render pdf: %w", err)
	}
	return Document{Name: r.newName(), Lines: lines, Content: buf.Bytes()}, nil
}
