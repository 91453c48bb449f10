package report

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"wedding-rsvp/internal/models"
)

type fakeSource struct {
	families []models.FamilyGroup
	err      error
}

func (f fakeSource) All(context.Context) ([]models.FamilyGroup, error) {
	return f.families, f.err
}

func answer(b bool) *bool {
	return &b
}

func TestExport(t *testing.T) {
	kid, err := models.Child(1)
	require.NoError(t, err)
	source := fakeSource{families: []models.FamilyGroup{
		{
			RecordID:    "recA",
			KidsInvited: true,
			Notes:       "Allergic to cats",
			SongRequest: "September",
			Guests: []models.Guest{
				models.NewGuest("recA", models.Primary, "Ann Lee", answer(true)),
				models.NewGuest("recA", models.Partner, "Bo Lee", answer(false)),
				models.NewGuest("recA", kid, "Cal Lee", nil),
			},
		},
		{
			RecordID: "recB",
			Guests: []models.Guest{
				models.NewGuest("recB", models.Primary, "Dee Park", nil),
				models.NewGuest("recB", kid, "Eli Park", nil),
			},
		},
	}}

	var buf bytes.Buffer
	totals, err := NewExporter(source, zerolog.Nop()).Export(context.Background(), &buf)
	require.NoError(t, err)
	assert.Equal(t, Totals{Attending: 1, Declined: 1, Pending: 2}, totals)

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Guests", "Summary"}, f.GetSheetList())

	rows, err := f.GetRows("Guests")
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, Header, rows[0])
	assert.Equal(t, []string{"recA", "Ann Lee", "primary", "Yes", "Yes", "Allergic to cats", "September"}, rows[1])
	assert.Equal(t, "No", rows[2][3])
	assert.Equal(t, []string{"recA", "Cal Lee", "child-1", "", "Yes", "Allergic to cats", "September"}, rows[3])
	assert.Equal(t, []string{"recB", "Dee Park", "primary", "", "No"}, rows[4])

	summary, err := f.GetRows("Summary")
	require.NoError(t, err)
	assert.Equal(t, []string{"Families", "2"}, summary[0])
	assert.Equal(t, []string{"Pending", "2"}, summary[3])
}

func TestExport_SourceError(t *testing.T) {
	var buf bytes.Buffer
	_, err := NewExporter(fakeSource{err: errors.New("boom")}, zerolog.Nop()).Export(context.Background(), &buf)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load families")
	assert.Zero(t, buf.Len())
}
