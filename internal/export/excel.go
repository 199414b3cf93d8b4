package export

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/spigell/cv-ranker/internal/models"
)

const (
	SummarySheet    = "Summary"
	CandidatesSheet = "Ranked Candidates"
)

var candidateHeaders = []string{
	"Rank", "Candidate", "Score", "Seniority", "Experience (years)",
	"Email", "Last Role", "Skills", "Strengths", "Weaknesses", "Justification",
}

// ToExcel writes report as an xlsx workbook with a summary sheet and a
// ranked candidates sheet. The .xlsx extension is appended when missing.
func ToExcel(report models.ConsolidatedReport, outputPath string) (string, error) {
	if !strings.HasSuffix(strings.ToLower(outputPath), ".xlsx") {
		outputPath += ".xlsx"
	}
	outputPath = filepath.Clean(outputPath)

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return "", fmt.Errorf("rename summary sheet: %w", err)
	}
	if _, err := f.NewSheet(CandidatesSheet); err != nil {
		return "", fmt.Errorf("create candidates sheet: %w", err)
	}

	if err := writeSummary(f, report); err != nil {
		return "", fmt.Errorf("write summary sheet: %w", err)
	}
	if err := writeCandidates(f, report.Ranking); err != nil {
		return "", fmt.Errorf("write candidates sheet: %w", err)
	}

	if err := f.SaveAs(outputPath); err != nil {
		return "", fmt.Errorf("save workbook %s: %w", outputPath, err)
	}

	return outputPath, nil
}

func writeSummary(f *excelize.File, report models.ConsolidatedReport) error {
	if err := f.SetColWidth(SummarySheet, "A", "A", 25); err != nil {
		return err
	}
	if err := f.SetColWidth(SummarySheet, "B", "B", 80); err != nil {
		return err
	}

	labelStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	wrapStyle, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
	})
	if err != nil {
		return err
	}

	rows := [][2]any{
		{"Job Description:", report.JobDescription},
		{"Generated:", report.GeneratedAt.Format("2006-01-02 15:04:05 MST")},
		{"Total Candidates:", report.TotalCandidates},
		{"Degraded Profiles:", countDegraded(report.Ranking)},
		{"Recommendation:", report.Recommendation},
	}

	for i, row := range rows {
		label := fmt.Sprintf("A%d", i+1)
		value := fmt.Sprintf("B%d", i+1)

		if err := f.SetCellValue(SummarySheet, label, row[0]); err != nil {
			return err
		}
		if err := f.SetCellStyle(SummarySheet, label, label, labelStyle); err != nil {
			return err
		}
		if err := f.SetCellValue(SummarySheet, value, row[1]); err != nil {
			return err
		}
		if err := f.SetCellStyle(SummarySheet, value, value, wrapStyle); err != nil {
			return err
		}
	}

	return nil
}

func writeCandidates(f *excelize.File, ranking []models.RankedCandidate) error {
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return err
	}

	for col, header := range candidateHeaders {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(CandidatesSheet, cell, header); err != nil {
			return err
		}
		if err := f.SetCellStyle(CandidatesSheet, cell, cell, headerStyle); err != nil {
			return err
		}
	}

	for i, entry := range ranking {
		c := entry.Candidate
		values := []any{
			entry.Rank,
			c.FullName,
			entry.Score,
			string(c.Seniority),
			c.YearsOfExperience,
			c.Email,
			c.LastRole,
			strings.Join(c.Skills, ", "),
			strings.Join(c.Strengths, "; "),
			strings.Join(c.Weaknesses, "; "),
			c.RankingJustification,
		}

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(CandidatesSheet, cell, &values); err != nil {
			return err
		}
	}

	if len(ranking) > 0 {
		last, err := excelize.CoordinatesToCellName(len(candidateHeaders), len(ranking)+1)
		if err != nil {
			return err
		}
		if err := f.AutoFilter(CandidatesSheet, "A1:"+last, nil); err != nil {
			return err
		}
	}

	return f.SetPanes(CandidatesSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func countDegraded(ranking []models.RankedCandidate) int {
	n := 0
	for _, entry := range ranking {
		if entry.Candidate.IsDegraded() {
			n++
		}
	}
	return n
}
