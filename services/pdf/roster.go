// Package pdfsvc renders printable attendance documents.
package pdfsvc

import (
	"bytes"
	"strconv"

	"github.com/jung-kurt/gofpdf"
	"github.com/pkg/errors"

	"github.com/mkabenga/presencia/core/report"
)

type rosterRenderer struct {
	appName string
}

var _ report.Renderer = (*rosterRenderer)(nil)

func NewRosterRenderer(appName string) *rosterRenderer {
	return &rosterRenderer{appName: appName}
}

func (r *rosterRenderer) RenderRoster(doc report.RosterDocument) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(r.appName+" - Attendance Roster", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 8, doc.CourseName, "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, doc.Date.Format("Monday, 02 Jan 2006")+"  "+doc.StartTime+" - "+doc.EndTime, "", 1, "C", false, 0, "")
	pdf.Ln(4)

	// header row
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(230, 230, 230)
	pdf.CellFormat(15, 7, "#", "1", 0, "C", true, 0, "")
	pdf.CellFormat(80, 7, "Student", "1", 0, "L", true, 0, "")
	pdf.CellFormat(35, 7, "Code", "1", 0, "L", true, 0, "")
	pdf.CellFormat(30, 7, "State", "1", 0, "C", true, 0, "")
	pdf.CellFormat(30, 7, "Recorded", "1", 1, "C", true, 0, "")

	pdf.SetFont("Helvetica", "", 9)
	for i, row := range doc.Rows {
		pdf.CellFormat(15, 6, strconv.Itoa(i+1), "1", 0, "C", false, 0, "")
		pdf.CellFormat(80, 6, row.Name, "1", 0, "L", false, 0, "")
		pdf.CellFormat(35, 6, row.Code, "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 6, string(row.State), "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, row.RecordedAt, "1", 1, "C", false, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, errors.Wrap(err, "rendering roster PDF")
	}
	return buf.Bytes(), nil
}
