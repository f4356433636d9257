package closing

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/phpdave11/gofpdf"

	"github.com/codr1/courtbook/internal/email"
)

// Header is the metadata printed above a closing report.
type Header struct {
	Title     string
	Note      string
	CreatedBy string
	CreatedAt time.Time
}

var columns = []struct {
	title string
	width float64
	align string
}{
	{"Hora", 14, "L"},
	{"Cliente", 52, "L"},
	{"Precio", 24, "R"},
	{"SINPE", 22, "R"},
	{"Efectivo", 22, "R"},
	{"Pendiente", 24, "R"},
	{"Estado", 22, "L"},
}

// RenderPDF lays the report out on A4 pages: a totals block, the full
// listing by date and court, then the problem bookings.
func RenderPDF(report Report, header Header) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	title := header.Title
	if title == "" {
		title = "Cierre de caja"
	}
	pdf.SetTitle(title, false)
	pdf.SetAuthor(header.CreatedBy, false)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 6, fmt.Sprintf("Pagina %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, title)
	pdf.Ln(11)

	pdf.SetFont("Helvetica", "", 10)
	pdf.Cell(0, 6, "Fechas: "+joinDates(report))
	pdf.Ln(6)
	if !header.CreatedAt.IsZero() {
		pdf.Cell(0, 6, "Generado: "+header.CreatedAt.Format("2006-01-02 15:04 MST"))
		pdf.Ln(6)
	}
	if header.CreatedBy != "" {
		pdf.Cell(0, 6, "Responsable: "+header.CreatedBy)
		pdf.Ln(6)
	}
	if header.Note != "" {
		pdf.MultiCell(0, 5, "Nota: "+header.Note, "", "", false)
	}
	pdf.Ln(3)

	writeTotals(pdf, report.Totals)

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", 13)
	pdf.Cell(0, 8, "Detalle")
	pdf.Ln(9)
	writeGroups(pdf, report.Days)

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", 13)
	pdf.Cell(0, 8, fmt.Sprintf("Pendientes (%d)", report.Totals.Problems))
	pdf.Ln(9)
	if len(report.Problems) == 0 {
		pdf.SetFont("Helvetica", "I", 10)
		pdf.Cell(0, 6, "Sin pendientes.")
		pdf.Ln(6)
	} else {
		writeGroups(pdf, report.Problems)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render closing pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func writeTotals(pdf *gofpdf.Fpdf, t Totals) {
	rows := [][2]string{
		{"Reservas", fmt.Sprintf("%d", t.Bookings)},
		{"Esperado", email.FormatAmount(t.Expected)},
		{"Cobrado", email.FormatAmount(t.Paid)},
		{"SINPE", email.FormatAmount(t.Sinpe)},
		{"Efectivo", email.FormatAmount(t.Cash)},
		{"Faltante", email.FormatAmount(t.Shortfall)},
	}
	pdf.SetFont("Helvetica", "", 11)
	for _, r := range rows {
		pdf.CellFormat(40, 7, r[0], "1", 0, "L", false, 0, "")
		pdf.CellFormat(40, 7, r[1], "1", 1, "R", false, 0, "")
	}
}

func writeGroups(pdf *gofpdf.Fpdf, days []DateGroup) {
	for _, day := range days {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.Cell(0, 7, fmt.Sprintf("%s  (esperado %s, cobrado %s)",
			day.Date, email.FormatAmount(day.Totals.Expected), email.FormatAmount(day.Totals.Paid)))
		pdf.Ln(7)

		for _, court := range day.Courts {
			pdf.SetFont("Helvetica", "B", 10)
			pdf.Cell(0, 6, court.CourtName)
			pdf.Ln(6)

			pdf.SetFillColor(230, 230, 230)
			for _, c := range columns {
				pdf.CellFormat(c.width, 6, c.title, "1", 0, c.align, true, 0, "")
			}
			pdf.Ln(-1)

			pdf.SetFont("Helvetica", "", 9)
			for _, l := range court.Lines {
				status := l.Status
				if !l.Checked {
					status += " *"
				}
				values := []string{
					fmt.Sprintf("%02d:00", l.DisplayHour),
					truncate(l.Customer, 30),
					email.FormatAmount(l.Price),
					email.FormatAmount(l.Sinpe),
					email.FormatAmount(l.Cash),
					email.FormatAmount(l.Outstanding),
					status,
				}
				for i, c := range columns {
					pdf.CellFormat(c.width, 6, values[i], "1", 0, c.align, false, 0, "")
				}
				pdf.Ln(-1)
			}
			pdf.Ln(2)
		}
	}
}

func joinDates(report Report) string {
	parts := make([]string, len(report.Dates))
	for i, d := range report.Dates {
		parts[i] = d.String()
	}
	return strings.Join(parts, ", ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "."
}
