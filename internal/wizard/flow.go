package wizard

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"wedding-rsvp/internal/apperr"
	"wedding-rsvp/internal/models"
	"wedding-rsvp/internal/phone"
	"wedding-rsvp/internal/spotify"
)

// Step is a screen of the RSVP wizard
type Step string

const (
	StepPhone  Step = "phone"
	StepGuests Step = "guests"
	StepThanks Step = "thanks"
)

const minPhoneDigits = 10

// ErrWrongStep is returned when an action does not belong to the current step
var ErrWrongStep = errors.New("action not allowed on this step")

// FamilyFinder looks up the family records of a phone number
type FamilyFinder interface {
	Families(ctx context.Context, phoneNumber string) ([]models.FamilyGroup, error)
}

// Submitter persists a completed RSVP
type Submitter interface {
	Submit(ctx context.Context, sub models.Submission) (models.SubmitResult, error)
}

// Flow walks one party through phone lookup, answers and confirmation
type Flow struct {
	finder    FamilyFinder
	submitter Submitter

	step     Step
	phone    string
	families []models.FamilyGroup
	answers  map[string]bool
	dietary  map[string]models.DietaryRestrictions
	notes    string
	song     string
	trackURI string
}

// New creates a flow on the phone step
func New(finder FamilyFinder, submitter Submitter) *Flow {
	f := &Flow{finder: finder, submitter: submitter}
	f.Reset()
	return f
}

// Step returns the current step
func (f *Flow) Step() Step {
	return f.step
}

// Families returns the families found for the phone number
func (f *Flow) Families() []models.FamilyGroup {
	return f.families
}

// Reset clears all answers and returns to the phone step
func (f *Flow) Reset() {
	f.step = StepPhone
	f.phone = ""
	f.families = nil
	f.answers = make(map[string]bool)
	f.dietary = make(map[string]models.DietaryRestrictions)
	f.notes = ""
	f.song = ""
	f.trackURI = ""
}

func (f *Flow) expect(step Step, action string) error {
	if f.step != step {
		return fmt.Errorf("%w: cannot %s on the %s step", ErrWrongStep, action, f.step)
	}
	return nil
}

// SubmitPhone looks up the invitation. The flow stays on the phone step on any failure.
func (f *Flow) SubmitPhone(ctx context.Context, phoneNumber string) error {
	if err := f.expect(StepPhone, "search"); err != nil {
		return err
	}
	digits := phone.Normalize(phoneNumber)
	if len(digits) < minPhoneDigits {
		return apperr.Validation("Please enter a complete phone number")
	}

	families, err := f.finder.Families(ctx, digits)
	if err != nil {
		return fmt.Errorf("failed to find invitation: %w", err)
	}
	if len(families) == 0 {
		return apperr.NotFound("No guests found with that phone number")
	}

	f.phone = digits
	f.families = families
	f.step = StepGuests
	return nil
}

// VisibleGuests returns the guests that can answer. Children are hidden unless their family has kids invited.
func (f *Flow) VisibleGuests() []models.Guest {
	var guests []models.Guest
	for _, family := range f.families {
		for _, g := range family.Guests {
			if g.Type.IsChild() && !family.KidsInvited {
				continue
			}
			guests = append(guests, g)
		}
	}
	return guests
}

func (f *Flow) visible(guestID string) bool {
	for _, g := range f.VisibleGuests() {
		if g.ID == guestID {
			return true
		}
	}
	return false
}

// Answer records whether a guest will attend
func (f *Flow) Answer(guestID string, attending bool) error {
	if err := f.expect(StepGuests, "answer"); err != nil {
		return err
	}
	if !f.visible(guestID) {
		return apperr.Validation("Unknown guest %q", guestID)
	}
	f.answers[guestID] = attending
	return nil
}

// SetDietary records a guest's meal flags
func (f *Flow) SetDietary(guestID string, d models.DietaryRestrictions) error {
	if err := f.expect(StepGuests, "set dietary restrictions"); err != nil {
		return err
	}
	if !f.visible(guestID) {
		return apperr.Validation("Unknown guest %q", guestID)
	}
	f.dietary[guestID] = d
	return nil
}

// SetNotes sets the party's free-text notes
func (f *Flow) SetNotes(notes string) error {
	if err := f.expect(StepGuests, "set notes"); err != nil {
		return err
	}
	f.notes = strings.TrimSpace(notes)
	return nil
}

// SetSongRequest sets the party's song request and, optionally, a picked track
func (f *Flow) SetSongRequest(song, trackURI string) error {
	if err := f.expect(StepGuests, "set song request"); err != nil {
		return err
	}
	trackURI = strings.TrimSpace(trackURI)
	if trackURI != "" {
		id, ok := spotify.ParseTrackURI(trackURI)
		if !ok {
			return apperr.Validation("Invalid Spotify track URI")
		}
		trackURI = spotify.TrackURI(id)
	}
	f.song = strings.TrimSpace(song)
	f.trackURI = trackURI
	return nil
}

// Unanswered returns the visible guests still missing an answer
func (f *Flow) Unanswered() []models.Guest {
	var missing []models.Guest
	for _, g := range f.VisibleGuests() {
		if _, ok := f.answers[g.ID]; !ok {
			missing = append(missing, g)
		}
	}
	return missing
}

// Submission builds the request the flow would send
func (f *Flow) Submission() models.Submission {
	sub := models.Submission{
		PhoneNumber:     f.phone,
		Notes:           f.notes,
		SongRequest:     f.song,
		SpotifyTrackURI: f.trackURI,
	}
	for _, family := range f.families {
		resp := models.FamilyResponse{
			RecordID:        family.RecordID,
			GuestResponses:  []models.GuestResponse{},
			Notes:           f.notes,
			SongRequest:     f.song,
			SpotifyTrackURI: f.trackURI,
			KidsInvited:     family.KidsInvited,
		}
		for _, g := range family.Guests {
			attending, ok := f.answers[g.ID]
			if !ok {
				continue
			}
			gr := models.GuestResponse{
				GuestID:   g.ID,
				Name:      g.Name,
				Type:      g.Type.String(),
				Attending: attending,
			}
			if d, ok := f.dietary[g.ID]; ok && d.Any() {
				gr.DietaryRestrictions = &d
			}
			resp.GuestResponses = append(resp.GuestResponses, gr)
		}
		sub.Responses = append(sub.Responses, resp)
	}
	return sub
}

// Submit sends the answers. Every visible guest must be answered; on failure the flow stays on the guests step.
func (f *Flow) Submit(ctx context.Context) (models.SubmitResult, error) {
	if err := f.expect(StepGuests, "submit"); err != nil {
		return models.SubmitResult{}, err
	}
	if len(f.Unanswered()) > 0 {
		return models.SubmitResult{}, apperr.Validation("Please select whether each guest will attend")
	}

	result, err := f.submitter.Submit(ctx, f.Submission())
	if err != nil {
		return models.SubmitResult{}, fmt.Errorf("failed to submit RSVP: %w", err)
	}
	f.step = StepThanks
	return result, nil
}
