package guests

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"wedding-rsvp/internal/airtable"
	"wedding-rsvp/internal/apperr"
	"wedding-rsvp/internal/metrics"
	"wedding-rsvp/internal/models"
	"wedding-rsvp/internal/phone"
)

// formattingChars are stripped from stored phone numbers before comparison
var formattingChars = []string{"+", " ", "-", "(", ")", "."}

// RecordLister reads family records from the record store
type RecordLister interface {
	ListRecords(ctx context.Context, filterFormula string) ([]airtable.Record, error)
}

// Directory translates phone numbers into the guests invited under them
type Directory struct {
	store       RecordLister
	countryCode string
	ready       func() error
	logger      zerolog.Logger
}

// NewDirectory creates a guest directory. ready reports missing configuration on first use.
func NewDirectory(store RecordLister, countryCode string, ready func() error, logger zerolog.Logger) *Directory {
	if ready == nil {
		ready = func() error { return nil }
	}
	return &Directory{
		store:       store,
		countryCode: countryCode,
		ready:       ready,
		logger:      logger.With().Str("component", "guests").Logger(),
	}
}

// Lookup returns every guest on the family records matching the phone number.
// No match is an empty list, not an error.
func (d *Directory) Lookup(ctx context.Context, phoneNumber string) ([]models.Guest, error) {
	families, err := d.Families(ctx, phoneNumber)
	if err != nil {
		return nil, err
	}
	return models.Flatten(families), nil
}

// Families returns the matching family records, one group per record, unmerged
func (d *Directory) Families(ctx context.Context, phoneNumber string) ([]models.FamilyGroup, error) {
	if strings.TrimSpace(phoneNumber) == "" {
		return nil, apperr.Validation("Phone number is required")
	}
	candidates := phone.Candidates(phoneNumber, d.countryCode)
	if len(candidates) == 0 {
		return nil, apperr.Validation("Phone number must contain digits")
	}
	if err := d.ready(); err != nil {
		return nil, err
	}

	log := d.logger.With().Str("phone", phone.Redact(phoneNumber)).Logger()
	log.Info().Msg("Searching for guests")

	records, err := d.store.ListRecords(ctx, FilterFormula(candidates))
	if err != nil {
		metrics.GuestLookupsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to search guests: %w", err)
	}

	families := make([]models.FamilyGroup, 0, len(records))
	for _, record := range records {
		families = append(families, FamilyFromRecord(record))
	}

	if len(records) == 0 {
		metrics.GuestLookupsTotal.WithLabelValues("not_found").Inc()
	} else {
		metrics.GuestLookupsTotal.WithLabelValues("found").Inc()
	}
	log.Info().Int("records", len(records)).Msg("Guest search complete")

	return families, nil
}

// All returns every family record in the table
func (d *Directory) All(ctx context.Context) ([]models.FamilyGroup, error) {
	if err := d.ready(); err != nil {
		return nil, err
	}
	records, err := d.store.ListRecords(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list guests: %w", err)
	}
	families := make([]models.FamilyGroup, 0, len(records))
	for _, record := range records {
		families = append(families, FamilyFromRecord(record))
	}
	return families, nil
}

// FilterFormula matches any candidate against both phone fields after stripping formatting
func FilterFormula(candidates []string) string {
	var clauses []string
	for _, field := range airtable.PhoneFields {
		stripped := "{" + field + "}"
		for _, ch := range formattingChars {
			stripped = fmt.Sprintf("SUBSTITUTE(%s, %q, \"\")", stripped, ch)
		}
		for _, c := range candidates {
			clauses = append(clauses, fmt.Sprintf("%s = %q", stripped, phone.Normalize(c)))
		}
	}
	return "OR(" + strings.Join(clauses, ", ") + ")"
}

// FamilyFromRecord flattens one family record into its guests
func FamilyFromRecord(record airtable.Record) models.FamilyGroup {
	f := record.Fields
	family := models.FamilyGroup{
		RecordID:    record.ID,
		KidsInvited: airtable.FieldChecked(f, airtable.FieldKidsInvited),
		Notes:       airtable.FieldString(f, airtable.FieldNotes),
		SongRequest: airtable.FieldString(f, airtable.FieldSongRequest),
		Guests:      make([]models.Guest, 0),
	}

	if first := strings.TrimSpace(airtable.FieldString(f, airtable.FieldFirstName)); first != "" {
		name := fullName(first, airtable.FieldString(f, airtable.FieldLastName))
		family.Guests = append(family.Guests, models.NewGuest(record.ID, models.Primary, name,
			airtable.FieldYesNo(f, airtable.RSVPField(models.Primary))))
	}

	if first := strings.TrimSpace(airtable.FieldString(f, airtable.FieldPartnerFirstName)); first != "" {
		name := fullName(first, airtable.FieldString(f, airtable.FieldPartnerLastName))
		family.Guests = append(family.Guests, models.NewGuest(record.ID, models.Partner, name,
			airtable.FieldYesNo(f, airtable.RSVPField(models.Partner))))
	}

	for i := 1; i <= models.MaxChildren; i++ {
		name := strings.TrimSpace(airtable.FieldString(f, airtable.ChildNameField(i)))
		if name == "" {
			continue
		}
		child, _ := models.Child(i)
		family.Guests = append(family.Guests, models.NewGuest(record.ID, child, name,
			airtable.FieldYesNo(f, airtable.RSVPField(child))))
	}

	return family
}

func fullName(first, last string) string {
	return strings.TrimSpace(strings.TrimSpace(first) + " " + strings.TrimSpace(last))
}
