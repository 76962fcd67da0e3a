// Package report renders run results for the dashboard layer.
package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"weatherbench/internal/analytics"
	"weatherbench/internal/runstore"
)

// BuildRunPDF renders a minimal PDF summary for one run.
func BuildRunPDF(rec runstore.Record, frags analytics.Fragments) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Benchmark Run Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Run: %s", rec.ID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Backend: %s", rec.Backend))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Parallelism: %d", rec.Parallelism))
	pdf.Ln(5)
	if rec.ElapsedMS < 0 {
		pdf.Cell(0, 6, "Elapsed: failed (timed out)")
	} else {
		pdf.Cell(0, 6, fmt.Sprintf("Elapsed: %.2f ms", rec.ElapsedMS))
	}
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Started: %s", rec.StartedAt.Format(time.RFC3339)))
	pdf.Ln(5)
	if rec.Validation != nil {
		pdf.Cell(0, 6, fmt.Sprintf("True positives: %d", rec.Validation.TruePositives))
		pdf.Ln(5)
	}

	pdf.Ln(4)
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(50, 6, "Station", "1", 0, "C", false, 0, "")
	pdf.CellFormat(45, 6, "Sensor", "1", 0, "C", false, 0, "")
	pdf.CellFormat(45, 6, "Anomaly %", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, p := range frags.Percentages {
		pdf.CellFormat(50, 6, p.StationID, "1", 0, "C", false, 0, "")
		pdf.CellFormat(45, 6, string(p.Sensor), "1", 0, "C", false, 0, "")
		pdf.CellFormat(45, 6, fmt.Sprintf("%.4f", p.Pct), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	pdf.Ln(4)
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(70, 6, "Station", "1", 0, "C", false, 0, "")
	pdf.CellFormat(70, 6, "Co-occurrence windows", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, c := range frags.CoOccurrences {
		pdf.CellFormat(70, 6, c.StationID, "1", 0, "C", false, 0, "")
		pdf.CellFormat(70, 6, fmt.Sprintf("%d", c.Windows), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildRunXLSX renders one run as a workbook: a summary sheet plus one
// sheet per metric collection.
func BuildRunXLSX(rec runstore.Record, frags analytics.Fragments) ([]byte, error) {
	f := excelize.NewFile()
	summarySheet := "summary"
	pctSheet := "anomaly_pct"
	coocSheet := "co_occurrence"
	avgSheet := "regional_avg"
	f.SetSheetName("Sheet1", summarySheet)
	f.NewSheet(pctSheet)
	f.NewSheet(coocSheet)
	f.NewSheet(avgSheet)

	_ = f.SetCellValue(summarySheet, "A1", "Benchmark Run Report")
	_ = f.SetCellValue(summarySheet, "A3", "Run")
	_ = f.SetCellValue(summarySheet, "B3", rec.ID)
	_ = f.SetCellValue(summarySheet, "A4", "Backend")
	_ = f.SetCellValue(summarySheet, "B4", rec.Backend)
	_ = f.SetCellValue(summarySheet, "A5", "Parallelism")
	_ = f.SetCellValue(summarySheet, "B5", rec.Parallelism)
	_ = f.SetCellValue(summarySheet, "A6", "Elapsed (ms)")
	_ = f.SetCellValue(summarySheet, "B6", rec.ElapsedMS)
	_ = f.SetCellValue(summarySheet, "A7", "Started")
	_ = f.SetCellValue(summarySheet, "B7", rec.StartedAt.Format(time.RFC3339))
	if rec.Validation != nil {
		_ = f.SetCellValue(summarySheet, "A8", "True positives")
		_ = f.SetCellValue(summarySheet, "B8", rec.Validation.TruePositives)
	}

	_ = f.SetCellValue(pctSheet, "A1", "Station")
	_ = f.SetCellValue(pctSheet, "B1", "Sensor")
	_ = f.SetCellValue(pctSheet, "C1", "Anomaly %")
	for i, p := range frags.Percentages {
		row := i + 2
		_ = f.SetCellValue(pctSheet, fmt.Sprintf("A%d", row), p.StationID)
		_ = f.SetCellValue(pctSheet, fmt.Sprintf("B%d", row), string(p.Sensor))
		_ = f.SetCellValue(pctSheet, fmt.Sprintf("C%d", row), p.Pct)
	}

	_ = f.SetCellValue(coocSheet, "A1", "Station")
	_ = f.SetCellValue(coocSheet, "B1", "Windows")
	for i, c := range frags.CoOccurrences {
		row := i + 2
		_ = f.SetCellValue(coocSheet, fmt.Sprintf("A%d", row), c.StationID)
		_ = f.SetCellValue(coocSheet, fmt.Sprintf("B%d", row), c.Windows)
	}

	_ = f.SetCellValue(avgSheet, "A1", "Region")
	_ = f.SetCellValue(avgSheet, "B1", "Timestamp")
	_ = f.SetCellValue(avgSheet, "C1", "Temperature")
	_ = f.SetCellValue(avgSheet, "D1", "Humidity")
	_ = f.SetCellValue(avgSheet, "E1", "Pressure")
	for i, r := range frags.RegionalAverages {
		row := i + 2
		_ = f.SetCellValue(avgSheet, fmt.Sprintf("A%d", row), r.Region)
		_ = f.SetCellValue(avgSheet, fmt.Sprintf("B%d", row), r.TS.Format(time.RFC3339))
		_ = f.SetCellValue(avgSheet, fmt.Sprintf("C%d", row), r.Temperature)
		_ = f.SetCellValue(avgSheet, fmt.Sprintf("D%d", row), r.Humidity)
		_ = f.SetCellValue(avgSheet, fmt.Sprintf("E%d", row), r.Pressure)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
