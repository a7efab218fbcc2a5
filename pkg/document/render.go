package document

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"
)

const (
	fontFamily = "Helvetica"
	lineHeight = 6.0
)

// Render lays the document out on A4 pages and returns the PDF bytes.
func Render(doc *Document) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetTitle(doc.Title, true)
	pdf.SetAuthor("SiteCraft", true)
	pdf.SetCreator("SiteCraft", true)
	pdf.SetCreationDate(doc.IssuedAt)
	pdf.SetModificationDate(doc.IssuedAt)
	pdf.SetMargins(18, 18, 18)
	pdf.SetAutoPageBreak(true, 18)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-14)
		pdf.SetFont(fontFamily, "I", 8)
		pdf.CellFormat(0, 6, fmt.Sprintf("%s %s - page %d", doc.Title, doc.Number, pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont(fontFamily, "B", 18)
	pdf.CellFormat(0, 10, tr(doc.Title), "", 1, "L", false, 0, "")
	pdf.SetFont(fontFamily, "", 10)
	pdf.CellFormat(0, lineHeight, tr("No. "+doc.Number), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, lineHeight, "Date: "+doc.IssuedAt.Format("2 January 2006"), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, lineHeight, tr(fmt.Sprintf("Project #%d: %s", doc.ProjectID, doc.ProjectTitle)), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	for _, p := range doc.Parties {
		pdf.SetFont(fontFamily, "B", 10)
		pdf.CellFormat(0, lineHeight, tr(p.Role), "", 1, "L", false, 0, "")
		pdf.SetFont(fontFamily, "", 10)
		for _, line := range []string{p.Name, p.Company, p.Email, p.Phone} {
			if line != "" {
				pdf.CellFormat(0, 5, tr(line), "", 1, "L", false, 0, "")
			}
		}
		pdf.Ln(2)
	}

	if len(doc.Items) > 0 {
		renderItems(pdf, tr, doc)
	}

	for _, s := range doc.Sections {
		pdf.Ln(3)
		pdf.SetFont(fontFamily, "B", 11)
		pdf.CellFormat(0, lineHeight, tr(s.Heading), "", 1, "L", false, 0, "")
		pdf.SetFont(fontFamily, "", 10)
		pdf.MultiCell(0, 5, tr(s.Body), "", "L", false)
	}

	if doc.Kind == KindContract {
		pdf.Ln(12)
		for range doc.Parties {
			pdf.CellFormat(80, lineHeight, "______________________________", "", 0, "L", false, 0, "")
		}
		pdf.Ln(lineHeight)
		for _, p := range doc.Parties {
			pdf.CellFormat(80, lineHeight, tr(p.Role+": "+p.Name), "", 0, "L", false, 0, "")
		}
		pdf.Ln(lineHeight)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render %s: %w", doc.Kind, err)
	}
	return buf.Bytes(), nil
}

func renderItems(pdf *fpdf.Fpdf, tr func(string) string, doc *Document) {
	widths := []float64{104, 16, 27, 27}
	pdf.Ln(2)
	pdf.SetFont(fontFamily, "B", 10)
	pdf.SetFillColor(235, 235, 235)
	for i, h := range []string{"Description", "Qty", "Unit price", "Amount"} {
		align := "R"
		if i == 0 {
			align = "L"
		}
		pdf.CellFormat(widths[i], 7, h, "1", 0, align, true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont(fontFamily, "", 10)
	for _, it := range doc.Items {
		pdf.CellFormat(widths[0], 7, tr(it.Description), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 7, fmt.Sprint(it.Quantity), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[2], 7, fmt.Sprintf("%.2f", it.UnitPrice), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[3], 7, fmt.Sprintf("%.2f", it.Amount), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	totals := [][2]string{{"Total", Money(doc.Currency, doc.Total)}}
	if doc.Paid > 0 {
		totals = append(totals, [2]string{"Paid", Money(doc.Currency, doc.Paid)})
	}
	totals = append(totals, [2]string{"Balance due", Money(doc.Currency, doc.Balance)})
	pdf.SetFont(fontFamily, "B", 10)
	for _, row := range totals {
		pdf.CellFormat(widths[0]+widths[1]+widths[2], 7, row[0], "", 0, "R", false, 0, "")
		pdf.CellFormat(widths[3], 7, row[1], "", 1, "R", false, 0, "")
	}
}
