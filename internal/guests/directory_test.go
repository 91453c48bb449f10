package guests

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wedding-rsvp/internal/airtable"
	"wedding-rsvp/internal/apperr"
	"wedding-rsvp/internal/models"
)

type fakeStore struct {
	records  []airtable.Record
	err      error
	formulas []string
}

func (f *fakeStore) ListRecords(ctx context.Context, formula string) ([]airtable.Record, error) {
	f.formulas = append(f.formulas, formula)
	if f.err != nil {
		return nil, f.err
	}
	return f.records, nil
}

func newDirectory(store RecordLister) *Directory {
	return NewDirectory(store, "1", nil, zerolog.Nop())
}

func TestLookup_PrimaryOnly(t *testing.T) {
	store := &fakeStore{records: []airtable.Record{
		{ID: "recA", Fields: map[string]any{"First Name": "Ann", "Last Name": "Lee"}},
	}}

	guests, err := newDirectory(store).Lookup(context.Background(), "(555) 123-4567")
	require.NoError(t, err)
	require.Len(t, guests, 1)
	assert.Equal(t, "recA-primary", guests[0].ID)
	assert.Equal(t, "Ann Lee", guests[0].Name)
	assert.Equal(t, models.Primary, guests[0].Type)
	assert.Nil(t, guests[0].Attending)
}

func TestLookup_CountsPartnerAndChildren(t *testing.T) {
	store := &fakeStore{records: []airtable.Record{{
		ID: "recA",
		Fields: map[string]any{
			"First Name":         "Ann",
			"Partner First Name": "Bob",
			"Partner Last Name":  "Lee",
			"Child 1":            "Cy",
			"Child 2":            "   ",
			"Child 4":            " Di ",
			"Person1-RSVP":       "Yes",
			"Person2-RSVP":       "No",
			"Children-RSVP":      "Yes",
		},
	}}}

	guests, err := newDirectory(store).Lookup(context.Background(), "5551234567")
	require.NoError(t, err)
	require.Len(t, guests, 4)

	assert.Equal(t, "Bob Lee", guests[1].Name)
	assert.Equal(t, "recA-child-1", guests[2].ID)
	assert.Equal(t, "recA-child-4", guests[3].ID)
	assert.Equal(t, "Di", guests[3].Name)

	require.NotNil(t, guests[0].Attending)
	assert.True(t, *guests[0].Attending)
	require.NotNil(t, guests[1].Attending)
	assert.False(t, *guests[1].Attending)
	require.NotNil(t, guests[3].Attending)
	assert.True(t, *guests[3].Attending)
}

func TestLookup_NoMatchIsEmpty(t *testing.T) {
	guests, err := newDirectory(&fakeStore{}).Lookup(context.Background(), "555-000-0000")
	require.NoError(t, err)
	assert.NotNil(t, guests)
	assert.Empty(t, guests)
}

func TestLookup_MultipleRecordsUnmerged(t *testing.T) {
	store := &fakeStore{records: []airtable.Record{
		{ID: "recA", Fields: map[string]any{"First Name": "Ann"}},
		{ID: "recB", Fields: map[string]any{"First Name": "Ann", "Kids-Invited": true}},
	}}

	families, err := newDirectory(store).Families(context.Background(), "5551234567")
	require.NoError(t, err)
	require.Len(t, families, 2)
	assert.Equal(t, "recA", families[0].RecordID)
	assert.False(t, families[0].KidsInvited)
	assert.True(t, families[1].KidsInvited)
}

func TestLookup_UpstreamFailure(t *testing.T) {
	store := &fakeStore{err: apperr.Upstream("airtable", errors.New("503"))}

	guests, err := newDirectory(store).Lookup(context.Background(), "5551234567")
	require.Error(t, err)
	assert.Nil(t, guests)
	assert.True(t, apperr.Is(err, apperr.KindUpstream))
}

func TestLookup_Validation(t *testing.T) {
	store := &fakeStore{}
	d := newDirectory(store)

	_, err := d.Lookup(context.Background(), "  ")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = d.Lookup(context.Background(), "abc")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Empty(t, store.formulas)
}

func TestLookup_NotConfigured(t *testing.T) {
	store := &fakeStore{}
	d := NewDirectory(store, "1", func() error { return apperr.Configuration("AIRTABLE_API_KEY") }, zerolog.Nop())

	_, err := d.Lookup(context.Background(), "5551234567")
	assert.True(t, apperr.Is(err, apperr.KindConfiguration))
	assert.Empty(t, store.formulas)
}

func TestLookup_FormulaIgnoresPunctuation(t *testing.T) {
	store := &fakeStore{}
	d := newDirectory(store)

	for _, input := range []string{"(555) 123-4567", "555.123.4567", "+1 555 123 4567"} {
		_, err := d.Lookup(context.Background(), input)
		require.NoError(t, err)
	}
	require.Len(t, store.formulas, 3)
	assert.Equal(t, store.formulas[0], store.formulas[1])
	assert.Equal(t, store.formulas[0], store.formulas[2])
}

func TestFilterFormula(t *testing.T) {
	formula := FilterFormula([]string{"5551234567", "15551234567"})

	assert.Contains(t, formula, `{Phone Number}`)
	assert.Contains(t, formula, `{Partner Phone Number}`)
	assert.Contains(t, formula, `= "15551234567"`)
	assert.Contains(t, formula, `SUBSTITUTE(SUBSTITUTE(`)
	assert.Contains(t, formula, `"(", ""`)
	assert.True(t, len(formula) > 4 && formula[:3] == "OR(")
}
