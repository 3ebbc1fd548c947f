// Package report renders a session's learning path progress as an XLSX
// workbook.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/interview-coach/internal/curriculum"
	"github.com/p-n-ai/interview-coach/internal/progress"
	"github.com/p-n-ai/interview-coach/internal/scoring"
)

// Sheet names, in workbook order.
const (
	SheetOverview = "Overview"
	SheetLevels   = "Levels"
	SheetScores   = "Scores"
	SheetBadges   = "Badges"
)

// ContentType is the MIME type of the rendered workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Input is everything a report shows.
type Input struct {
	SessionID   string
	GeneratedAt time.Time
	Catalog     *curriculum.Catalog
	State       progress.State
}

// Write renders the workbook for in to w.
func Write(w io.Writer, in Input) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"DDEBF7"}},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	ov := progress.BuildOverview(in.Catalog, in.State)

	if err := f.SetSheetName("Sheet1", SheetOverview); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	for _, name := range []string{SheetLevels, SheetScores, SheetBadges} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %s: %w", name, err)
		}
	}

	sheets := []struct {
		name   string
		header []any
		rows   [][]any
		widths []float64
	}{
		{SheetOverview, []any{"Field", "Value"}, overviewRows(in, ov), []float64{22, 40}},
		{SheetLevels, []any{"Level", "Name", "Difficulty", "Status", "Answered", "Total", "Avg Score", "Rating"}, levelRows(ov), []float64{8, 26, 12, 14, 10, 8, 10, 12}},
		{SheetScores, []any{"Level", "Question ID", "Topic", "Question", "Structure", "Clarity", "Technical", "Average", "Rating"}, scoreRows(ov), []float64{8, 12, 22, 60, 10, 10, 10, 10, 12}},
		{SheetBadges, []any{"Badge", "Name", "Description", "Level", "Required Avg", "Earned"}, badgeRows(in), []float64{22, 22, 50, 8, 13, 8}},
	}

	for _, s := range sheets {
		if err := writeTable(f, s.name, header, s.header, s.rows, s.widths); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeTable(f *excelize.File, sheet string, style int, header []any, rows [][]any, widths []float64) error {
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("%s header: %w", sheet, err)
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
		return fmt.Errorf("%s header style: %w", sheet, err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("%s row %d: %w", sheet, i+2, err)
		}
	}

	for i, w := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheet, col, col, w); err != nil {
			return fmt.Errorf("%s column width: %w", sheet, err)
		}
	}
	return nil
}

func overviewRows(in Input, ov progress.Overview) [][]any {
	current := "All levels completed"
	if ov.CurrentLevelID != 0 {
		if l, ok := in.Catalog.LevelByID(ov.CurrentLevelID); ok {
			current = fmt.Sprintf("%d. %s", l.ID, l.Name)
		}
	}
	return [][]any{
		{"Session", in.SessionID},
		{"Track", in.Catalog.Name()},
		{"Generated", in.GeneratedAt.UTC().Format(time.RFC3339)},
		{"Questions answered", fmt.Sprintf("%d / %d", in.State.TotalQuestionsCompleted, in.State.TotalQuestions)},
		{"Percent complete", fmt.Sprintf("%.0f%%", ov.PercentComplete)},
		{"Current level", current},
		{"Streak", in.State.StreakCount},
		{"Badges earned", len(in.State.EarnedBadges)},
	}
}

func levelRows(ov progress.Overview) [][]any {
	rows := make([][]any, 0, len(ov.Levels))
	for _, l := range ov.Levels {
		rating := ""
		if l.Answered > 0 {
			rating = scoring.Label(l.AvgScore)
		}
		rows = append(rows, []any{
			l.LevelID, l.Name, l.Difficulty.String(), string(l.Status),
			l.Answered, l.Total, l.AvgScore, rating,
		})
	}
	return rows
}

func scoreRows(ov progress.Overview) [][]any {
	var rows [][]any
	for _, l := range ov.Levels {
		for _, q := range l.Questions {
			if q.Score == nil {
				continue
			}
			rows = append(rows, []any{
				l.LevelID, q.ID, q.Topic, q.Question,
				q.Score.StructureScore, q.Score.ClarityScore, q.Score.TechnicalScore, q.Score.AverageScore,
				scoring.Label(q.Score.AverageScore),
			})
		}
	}
	return rows
}

func badgeRows(in Input) [][]any {
	rows := make([][]any, 0, len(in.Catalog.Badges()))
	for _, b := range in.Catalog.Badges() {
		level := "streak"
		if b.LevelID != nil {
			level = fmt.Sprint(*b.LevelID)
		}
		earned := "no"
		if in.State.HasBadge(b.ID) {
			earned = "yes"
		}
		rows = append(rows, []any{
			b.ID, b.Emoji + " " + b.Name, b.Description, level, b.RequiredAvgScore, earned,
		})
	}
	return rows
}
