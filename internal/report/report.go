package report

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"wedding-rsvp/internal/models"
)

const (
	guestsSheet  = "Guests"
	summarySheet = "Summary"
)

// Header is the column row of the guests sheet
var Header = []string{
	"Record ID",
	"Guest",
	"Type",
	"Attending",
	"Kids Invited",
	"Notes",
	"Song Request",
}

var columnWidths = []float64{20, 28, 12, 12, 14, 40, 30}

// FamilySource lists every family record
type FamilySource interface {
	All(ctx context.Context) ([]models.FamilyGroup, error)
}

// Exporter writes the guest list as a spreadsheet
type Exporter struct {
	source FamilySource
	logger zerolog.Logger
}

// NewExporter creates an exporter
func NewExporter(source FamilySource, logger zerolog.Logger) *Exporter {
	return &Exporter{
		source: source,
		logger: logger.With().Str("component", "report").Logger(),
	}
}

// Totals counts guests by answer
type Totals struct {
	Attending int
	Declined  int
	Pending   int
}

// Export writes an xlsx workbook with one row per guest
func (e *Exporter) Export(ctx context.Context, w io.Writer) (Totals, error) {
	families, err := e.source.All(ctx)
	if err != nil {
		return Totals{}, fmt.Errorf("failed to load families: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(guestsSheet)
	if err != nil {
		return Totals{}, fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return Totals{}, fmt.Errorf("failed to delete default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return Totals{}, fmt.Errorf("failed to create header style: %w", err)
	}

	if err := writeRow(f, guestsSheet, 1, toRow(Header)); err != nil {
		return Totals{}, err
	}
	last, err := excelize.CoordinatesToCellName(len(Header), 1)
	if err != nil {
		return Totals{}, fmt.Errorf("failed to convert coordinates: %w", err)
	}
	if err := f.SetCellStyle(guestsSheet, "A1", last, headerStyle); err != nil {
		return Totals{}, fmt.Errorf("failed to set header style: %w", err)
	}
	for i, width := range columnWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return Totals{}, fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(guestsSheet, col, col, width); err != nil {
			return Totals{}, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	var totals Totals
	row := 2
	for _, family := range families {
		for _, g := range family.Guests {
			if g.Type.IsChild() && !family.KidsInvited {
				continue
			}
			answer := ""
			switch {
			case g.Attending == nil:
				totals.Pending++
			case *g.Attending:
				answer = "Yes"
				totals.Attending++
			default:
				answer = "No"
				totals.Declined++
			}
			values := []any{family.RecordID, g.Name, g.Type.String(), answer, yesNo(family.KidsInvited), family.Notes, family.SongRequest}
			if err := writeRow(f, guestsSheet, row, values); err != nil {
				return Totals{}, err
			}
			row++
		}
	}

	if _, err := f.NewSheet(summarySheet); err != nil {
		return Totals{}, fmt.Errorf("failed to create sheet: %w", err)
	}
	summary := [][]any{
		{"Families", len(families)},
		{"Attending", totals.Attending},
		{"Declined", totals.Declined},
		{"Pending", totals.Pending},
	}
	for i, values := range summary {
		if err := writeRow(f, summarySheet, i+1, values); err != nil {
			return Totals{}, err
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return Totals{}, fmt.Errorf("failed to write workbook: %w", err)
	}

	e.logger.Info().
		Int("families", len(families)).
		Int("attending", totals.Attending).
		Int("declined", totals.Declined).
		Int("pending", totals.Pending).
		Msg("Guest list exported")
	return totals, nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("failed to convert coordinates: %w", err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write row %d: %w", row, err)
	}
	return nil
}

func toRow(values []string) []any {
	row := make([]any, len(values))
	for i, v := range values {
		row[i] = v
	}
	return row
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
