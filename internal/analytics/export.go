package analytics

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/resumatch/internal/models"
	"github.com/hyperjump/resumatch/pkg/apperror"
)

// Sheet names of an exported workbook, in order.
const (
	SheetEvaluations  = "Evaluations"
	SheetDistribution = "Distribution"
	SheetVerdicts     = "Verdicts"
	SheetTimeline     = "Timeline"
	SheetPerJD        = "Per JD"
)

// Export writes the evaluations selected by f and every report over them to an
// XLSX workbook. It returns the file bytes and a suggested filename.
func (s *Service) Export(ctx context.Context, f Filter) ([]byte, string, error) {
	evs, err := s.Evaluations(ctx, f)
	if err != nil {
		return nil, "", err
	}
	jds, err := s.jdIndex(ctx, nil)
	if err != nil {
		return nil, "", err
	}
	data, err := BuildWorkbook(evs, jds)
	if err != nil {
		return nil, "", apperror.Internal(err)
	}
	filename := fmt.Sprintf("resumatch_report_%s.xlsx", time.Now().UTC().Format("20060102_150405"))
	return data, filename, nil
}

// BuildWorkbook renders evs into an XLSX workbook.
func BuildWorkbook(evs []*models.Evaluation, jds map[int64]*models.JobDescription) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetEvaluations); err != nil {
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}
	for _, name := range []string{SheetDistribution, SheetVerdicts, SheetTimeline, SheetPerJD} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("failed to add sheet %s: %w", name, err)
		}
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#1E3A5F"}},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	w := &sheetWriter{f: f, headerStyle: headerStyle}

	rows := make([][]interface{}, 0, len(evs))
	for _, ev := range evs {
		title := ""
		if jd, ok := jds[ev.JDID]; ok {
			title = jd.DisplayTitle()
		}
		rows = append(rows, []interface{}{
			ev.ID, ev.ResumeID, ev.JDID, title, ev.Score, string(ev.Verdict),
			strings.Join(ev.MissingSkills, ", "), ev.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
		})
	}
	w.table(SheetEvaluations, []string{"ID", "RESUME ID", "JD ID", "JD TITLE", "SCORE", "VERDICT", "MISSING SKILLS", "CREATED AT"}, rows)

	dist := ScoreDistribution(evs)
	rows = rows[:0]
	for _, l := range BucketLabels {
		rows = append(rows, []interface{}{l, dist[l]})
	}
	w.table(SheetDistribution, []string{"SCORE RANGE", "COUNT"}, rows)

	breakdown := VerdictBreakdown(evs)
	rows = rows[:0]
	for _, v := range VerdictLabels {
		rows = append(rows, []interface{}{string(v), breakdown[string(v)]})
	}
	w.table(SheetVerdicts, []string{"VERDICT", "COUNT"}, rows)

	rows = rows[:0]
	for _, d := range Timeline(evs) {
		rows = append(rows, []interface{}{d.Date, d.Count})
	}
	w.table(SheetTimeline, []string{"DATE", "COUNT"}, rows)

	rows = rows[:0]
	for _, a := range AvgScorePerJD(evs, jds) {
		rows = append(rows, []interface{}{a.JDID, a.Title, a.AvgScore, a.Count})
	}
	w.table(SheetPerJD, []string{"JD ID", "TITLE", "AVG SCORE", "EVALUATIONS"}, rows)

	if w.err != nil {
		return nil, w.err
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write Excel file: %w", err)
	}
	return buf.Bytes(), nil
}

// sheetWriter keeps the first error so table calls can be chained.
type sheetWriter struct {
	f           *excelize.File
	headerStyle int
	err         error
}

func (w *sheetWriter) table(sheet string, headers []string, rows [][]interface{}) {
	if w.err != nil {
		return
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := w.f.SetCellValue(sheet, cell, h); err != nil {
			w.err = fmt.Errorf("failed to write %s header: %w", sheet, err)
			return
		}
	}
	endCell, _ := excelize.CoordinatesToCellName(len(headers), 1)
	if err := w.f.SetCellStyle(sheet, "A1", endCell, w.headerStyle); err != nil {
		w.err = fmt.Errorf("failed to style %s header: %w", sheet, err)
		return
	}
	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := w.f.SetCellValue(sheet, cell, v); err != nil {
				w.err = fmt.Errorf("failed to write %s row %d: %w", sheet, r+1, err)
				return
			}
		}
	}
	for i := range headers {
		col, _ := excelize.ColumnNumberToName(i + 1)
		_ = w.f.SetColWidth(sheet, col, col, 20)
	}
}
