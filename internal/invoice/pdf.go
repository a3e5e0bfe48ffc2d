package invoice

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"
)

// Page geometry in millimeters, A4 portrait.
const (
	pageLeft    = 15.0
	pageRight   = 195.0
	bodyBottom  = 265.0 // last Y a table row may start at
	rowHeight   = 8.0
	footerSpace = 20.0
)

// Column widths for the line item table. Sum matches the printable width.
var colWidths = [4]float64{80, 30, 35, 35}

func (r *renderer) renderPDF(doc *Document) *fpdf.Fpdf {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pageLeft, 15, 210-pageRight)
	pdf.SetAutoPageBreak(false, footerSpace)
	pdf.AliasNbPages("")

	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d of {nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()
	r.drawHeader(pdf, doc)
	r.drawBilling(pdf, doc)
	r.drawLines(pdf, doc)
	r.drawTotals(pdf, doc)
	return pdf
}

func pdfBytes(pdf *fpdf.Fpdf) ([]byte, error) {
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (r *renderer) drawHeader(pdf *fpdf.Fpdf, doc *Document) {
	pdf.SetFont("Helvetica", "B", 18)
	pdf.SetTextColor(0, 0, 0)
	pdf.CellFormat(0, 10, "INVOICE", "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(0, 6, r.company.Name, "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	if r.company.Address != "" {
		pdf.CellFormat(0, 5, r.company.Address, "", 1, "L", false, 0, "")
	}
	if r.company.Email != "" {
		pdf.CellFormat(0, 5, r.company.Email, "", 1, "L", false, 0, "")
	}
	if r.company.TaxID != "" {
		pdf.CellFormat(0, 5, "Tax ID: "+r.company.TaxID, "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 5, "Invoice no: "+doc.Number, "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 5, "Date: "+doc.IssuedAt.Format("2 Jan 2006"), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 5, "Order status: "+string(doc.Order.Status), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 5, "Payment method: "+strings.ReplaceAll(string(doc.Order.PaymentMethod), "_", " "), "", 1, "L", false, 0, "")
	pdf.Ln(4)
}

func (r *renderer) drawBilling(pdf *fpdf.Fpdf, doc *Document) {
	addr := doc.Order.ShippingAddress

	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(0, 6, "Billed to", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	if addr.FullName != "" {
		pdf.CellFormat(0, 5, addr.FullName, "", 1, "L", false, 0, "")
	}
	if doc.Order.CustomerEmail != "" {
		pdf.CellFormat(0, 5, doc.Order.CustomerEmail, "", 1, "L", false, 0, "")
	}
	if addr.Street != "" {
		pdf.CellFormat(0, 5, addr.Street, "", 1, "L", false, 0, "")
	}
	cityLine := strings.TrimSpace(strings.Join([]string{addr.City, addr.State, addr.PostalCode}, " "))
	if cityLine != "" {
		pdf.CellFormat(0, 5, cityLine, "", 1, "L", false, 0, "")
	}
	if addr.Country != "" {
		pdf.CellFormat(0, 5, addr.Country, "", 1, "L", false, 0, "")
	}
	pdf.Ln(6)
}

func (r *renderer) drawTableHead(pdf *fpdf.Fpdf) {
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(235, 235, 235)
	pdf.CellFormat(colWidths[0], rowHeight, "Item", "1", 0, "L", true, 0, "")
	pdf.CellFormat(colWidths[1], rowHeight, "Qty", "1", 0, "R", true, 0, "")
	pdf.CellFormat(colWidths[2], rowHeight, "Unit price", "1", 0, "R", true, 0, "")
	pdf.CellFormat(colWidths[3], rowHeight, "Amount", "1", 1, "R", true, 0, "")
}

func (r *renderer) drawLines(pdf *fpdf.Fpdf, doc *Document) {
	r.drawTableHead(pdf)
	pdf.SetFont("Helvetica", "", 9)

	for _, line := range doc.Lines {
		// Rows never straddle the footer band; continue on a new page
		// with a repeated table header.
		if pdf.GetY()+rowHeight > bodyBottom {
			pdf.AddPage()
			r.drawTableHead(pdf)
			pdf.SetFont("Helvetica", "", 9)
		}

		name := line.Name
		if line.SKU != "" {
			name = fmt.Sprintf("%s (%s)", line.Name, line.SKU)
		}
		unit, amount := formatCents(line.UnitCents), formatCents(line.AmountCents)
		if line.Unavailable {
			unit, amount = "-", "-"
		}
		pdf.CellFormat(colWidths[0], rowHeight, name, "1", 0, "L", false, 0, "")
		pdf.CellFormat(colWidths[1], rowHeight, fmt.Sprintf("%d", line.Quantity), "1", 0, "R", false, 0, "")
		pdf.CellFormat(colWidths[2], rowHeight, unit, "1", 0, "R", false, 0, "")
		pdf.CellFormat(colWidths[3], rowHeight, amount, "1", 1, "R", false, 0, "")
	}
}

func (r *renderer) drawTotals(pdf *fpdf.Fpdf, doc *Document) {
	rows := []struct {
		label string
		cents int64
		bold  bool
	}{
		{"Subtotal", doc.SubtotalCents, false},
		{"Shipping", doc.ShippingCents, false},
		{"Tax", doc.TaxCents, false},
		{"Grand total", doc.GrandTotalCents, true},
	}

	if pdf.GetY()+rowHeight*float64(len(rows)) > bodyBottom {
		pdf.AddPage()
	}
	pdf.Ln(2)

	labelX := pageRight - colWidths[2] - colWidths[3]
	for _, row := range rows {
		style := ""
		if row.bold {
			style = "B"
		}
		pdf.SetFont("Helvetica", style, 9)
		pdf.SetX(labelX)
		pdf.CellFormat(colWidths[2], rowHeight, row.label, "", 0, "R", false, 0, "")
		pdf.CellFormat(colWidths[3], rowHeight, formatCents(row.cents), "1", 1, "R", false, 0, "")
	}
}
