package rsvp

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"wedding-rsvp/internal/airtable"
	"wedding-rsvp/internal/apperr"
	"wedding-rsvp/internal/metrics"
	"wedding-rsvp/internal/models"
	"wedding-rsvp/internal/outbox"
	"wedding-rsvp/internal/phone"
	"wedding-rsvp/internal/spotify"
)

// RecordUpdater writes family records to the record store
type RecordUpdater interface {
	UpdateRecords(ctx context.Context, updates []airtable.RecordUpdate) (int, error)
}

// SubmissionLog keeps a local history of accepted submissions
type SubmissionLog interface {
	RecordSubmission(ctx context.Context, rec *models.SubmissionRecord) error
}

// Enqueuer records follow-up intents
type Enqueuer interface {
	Enqueue(ctx context.Context, kind string, payload any) error
}

// Options configures a Submitter
type Options struct {
	// Ready reports missing record store configuration on first use
	Ready func() error
	// CountryCode is prefixed to national numbers for confirmation messages
	CountryCode string
	// Confirmations enqueues a WhatsApp confirmation per submission
	Confirmations bool
}

// Submitter persists RSVP answers onto family records
type Submitter struct {
	store  RecordUpdater
	log    SubmissionLog
	outbox Enqueuer
	opts   Options
	logger zerolog.Logger
}

// NewSubmitter creates a submitter. log and outbox may be nil.
func NewSubmitter(store RecordUpdater, log SubmissionLog, outbox Enqueuer, opts Options, logger zerolog.Logger) *Submitter {
	if opts.Ready == nil {
		opts.Ready = func() error { return nil }
	}
	return &Submitter{
		store:  store,
		log:    log,
		outbox: outbox,
		opts:   opts,
		logger: logger.With().Str("component", "rsvp").Logger(),
	}
}

// Submit writes every family's answers in one batched update.
// Follow-ups run only after the write succeeded and never change the result.
func (s *Submitter) Submit(ctx context.Context, sub models.Submission) (result models.SubmitResult, err error) {
	defer func() {
		metrics.SubmissionsTotal.WithLabelValues(metrics.Result(err)).Inc()
	}()

	families, err := Regroup(sub)
	if err != nil {
		return models.SubmitResult{}, err
	}
	if err := s.opts.Ready(); err != nil {
		return models.SubmitResult{}, err
	}

	updates := make([]airtable.RecordUpdate, 0, len(families))
	for _, f := range families {
		fields, err := BuildFields(f, sub)
		if err != nil {
			return models.SubmitResult{}, err
		}
		updates = append(updates, airtable.RecordUpdate{ID: f.RecordID, Fields: fields})
	}

	log := s.logger.With().Str("phone", phone.Redact(sub.PhoneNumber)).Int("records", len(updates)).Logger()

	updated, err := s.store.UpdateRecords(ctx, updates)
	if err != nil {
		log.Error().Err(err).Msg("Failed to persist RSVP")
		return models.SubmitResult{}, fmt.Errorf("failed to submit RSVP: %w", err)
	}
	log.Info().Int("updated", updated).Msg("RSVP persisted")

	s.followUp(ctx, sub, families)

	return models.SubmitResult{
		Success:        true,
		Message:        "RSVP submitted successfully",
		UpdatedRecords: updated,
	}, nil
}

func (s *Submitter) followUp(ctx context.Context, sub models.Submission, families []models.FamilyResponse) {
	attending, declined := tally(families)

	if s.log != nil {
		ids := make([]string, 0, len(families))
		for _, f := range families {
			ids = append(ids, f.RecordID)
		}
		rec := &models.SubmissionRecord{
			Phone:          phone.Redact(sub.PhoneNumber),
			RecordIDs:      strings.Join(ids, ","),
			AttendingCount: len(attending),
			DeclinedCount:  len(declined),
			SongRequest:    firstNonEmpty(families[0].SongRequest, sub.SongRequest),
			TrackURI:       sub.TrackURI(),
		}
		if err := s.log.RecordSubmission(ctx, rec); err != nil {
			s.logger.Error().Err(err).Msg("Failed to record submission")
		}
	}

	if s.outbox == nil {
		return
	}
	if uri := sub.TrackURI(); uri != "" {
		if id, ok := spotify.ParseTrackURI(uri); ok {
			payload := outbox.PlaylistAdd{TrackURI: spotify.TrackURI(id)}
			if err := s.outbox.Enqueue(ctx, outbox.KindPlaylistAdd, payload); err != nil {
				s.logger.Error().Err(err).Msg("Failed to enqueue playlist add")
			}
		} else {
			s.logger.Warn().Str("track_uri", uri).Msg("Ignoring invalid track URI")
		}
	}
	if s.opts.Confirmations {
		payload := outbox.WhatsAppConfirmation{
			Phone:     phone.International(sub.PhoneNumber, s.opts.CountryCode),
			Attending: attending,
			Declined:  declined,
		}
		if err := s.outbox.Enqueue(ctx, outbox.KindWhatsAppConfirmation, payload); err != nil {
			s.logger.Error().Err(err).Msg("Failed to enqueue confirmation")
		}
	}
}

// Regroup validates a submission and merges bundles that share a record id, in first-seen order
func Regroup(sub models.Submission) ([]models.FamilyResponse, error) {
	if strings.TrimSpace(sub.PhoneNumber) == "" {
		return nil, apperr.Validation("Phone number is required")
	}
	if phone.Normalize(sub.PhoneNumber) == "" {
		return nil, apperr.Validation("Phone number must contain digits")
	}
	if len(sub.Responses) == 0 {
		return nil, apperr.Validation("At least one response is required")
	}

	var families []models.FamilyResponse
	index := make(map[string]int)
	for _, r := range sub.Responses {
		id := strings.TrimSpace(r.RecordID)
		if id == "" {
			return nil, apperr.Validation("Every response needs a recordId")
		}
		for _, g := range r.GuestResponses {
			if _, err := models.ParseGuestType(g.Type, g.GuestID); err != nil {
				return nil, apperr.Validation("Invalid guest type for %q: %v", g.Name, err)
			}
		}

		i, ok := index[id]
		if !ok {
			r.RecordID = id
			r.GuestResponses = append([]models.GuestResponse(nil), r.GuestResponses...)
			index[id] = len(families)
			families = append(families, r)
			continue
		}
		f := &families[i]
		f.GuestResponses = append(f.GuestResponses, r.GuestResponses...)
		f.KidsInvited = f.KidsInvited || r.KidsInvited
		f.Notes = firstNonEmpty(f.Notes, r.Notes)
		f.SongRequest = firstNonEmpty(f.SongRequest, r.SongRequest)
		f.SpotifyTrackURI = firstNonEmpty(f.SpotifyTrackURI, r.SpotifyTrackURI)
	}

	if len(families) > airtable.MaxBatchSize {
		return nil, apperr.Validation("Too many family records in one submission (max %d)", airtable.MaxBatchSize)
	}
	return families, nil
}

// BuildFields maps one family's answers onto record fields.
// Child answers are dropped unless the family has kids invited; unanswered slots are left untouched.
func BuildFields(f models.FamilyResponse, sub models.Submission) (map[string]any, error) {
	fields := make(map[string]any)

	var (
		childAnswered  bool
		childAttending bool
		childDiet      models.DietaryRestrictions
		childDietSet   bool
	)

	for _, g := range f.GuestResponses {
		t, err := models.ParseGuestType(g.Type, g.GuestID)
		if err != nil {
			return nil, apperr.Validation("Invalid guest type for %q: %v", g.Name, err)
		}

		if t.IsChild() {
			if !f.KidsInvited {
				continue
			}
			childAnswered = true
			if g.Attending {
				childAttending = true
				if g.DietaryRestrictions != nil {
					childDiet = childDiet.Merge(*g.DietaryRestrictions)
					childDietSet = true
				}
			}
			continue
		}

		fields[airtable.RSVPField(t)] = airtable.YesNo(g.Attending)
		if g.Attending && g.DietaryRestrictions != nil {
			for k, v := range airtable.DietaryFields(airtable.RSVPPrefix(t), *g.DietaryRestrictions) {
				fields[k] = v
			}
		}
	}

	if childAnswered {
		child, _ := models.Child(1)
		fields[airtable.RSVPField(child)] = airtable.YesNo(childAttending)
		if childDietSet {
			for k, v := range airtable.DietaryFields(airtable.RSVPPrefix(child), childDiet) {
				fields[k] = v
			}
		}
	}

	fields[airtable.FieldNotes] = firstNonEmpty(f.Notes, sub.Notes)
	fields[airtable.FieldSongRequest] = firstNonEmpty(f.SongRequest, sub.SongRequest)

	trackID := ""
	if id, ok := spotify.ParseTrackURI(firstNonEmpty(f.SpotifyTrackURI, sub.TrackURI())); ok {
		trackID = id
	}
	fields[airtable.FieldTrackID] = trackID

	return fields, nil
}

func tally(families []models.FamilyResponse) (attending, declined []string) {
	attending = make([]string, 0)
	declined = make([]string, 0)
	for _, f := range families {
		for _, g := range f.GuestResponses {
			t, err := models.ParseGuestType(g.Type, g.GuestID)
			if err != nil || (t.IsChild() && !f.KidsInvited) {
				continue
			}
			name := strings.TrimSpace(g.Name)
			if name == "" {
				name = t.String()
			}
			if g.Attending {
				attending = append(attending, name)
			} else {
				declined = append(declined, name)
			}
		}
	}
	return attending, declined
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
