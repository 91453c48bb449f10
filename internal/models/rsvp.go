package models

import "time"

// DietaryRestrictions are the per-guest meal flags collected with an RSVP
type DietaryRestrictions struct {
	GlutenFree    bool `json:"glutenFree,omitempty"`
	Vegetarian    bool `json:"vegetarian,omitempty"`
	Pescatarian   bool `json:"pescatarian,omitempty"`
	SoyAllergy    bool `json:"soyAllergy,omitempty"`
	SesameAllergy bool `json:"sesameAllergy,omitempty"`
	EggAllergy    bool `json:"eggAllergy,omitempty"`
	NutAllergy    bool `json:"nutAllergy,omitempty"`
}

// Any reports whether any flag is set
func (d DietaryRestrictions) Any() bool {
	return d != DietaryRestrictions{}
}

// Merge returns the union of both sets of flags
func (d DietaryRestrictions) Merge(other DietaryRestrictions) DietaryRestrictions {
	return DietaryRestrictions{
		GlutenFree:    d.GlutenFree || other.GlutenFree,
		Vegetarian:    d.Vegetarian || other.Vegetarian,
		Pescatarian:   d.Pescatarian || other.Pescatarian,
		SoyAllergy:    d.SoyAllergy || other.SoyAllergy,
		SesameAllergy: d.SesameAllergy || other.SesameAllergy,
		EggAllergy:    d.EggAllergy || other.EggAllergy,
		NutAllergy:    d.NutAllergy || other.NutAllergy,
	}
}

// GuestResponse is one guest's answer inside a family response
type GuestResponse struct {
	GuestID             string               `json:"guestId"`
	Name                string               `json:"name"`
	Type                string               `json:"type" validate:"required"`
	Attending           bool                 `json:"attending"`
	DietaryRestrictions *DietaryRestrictions `json:"dietaryRestrictions,omitempty"`
}

// FamilyResponse bundles the answers for one family record
type FamilyResponse struct {
	RecordID        string          `json:"recordId" validate:"required"`
	GuestResponses  []GuestResponse `json:"guestResponses" validate:"dive"`
	Notes           string          `json:"notes"`
	SongRequest     string          `json:"songRequest"`
	SpotifyTrackURI string          `json:"spotifyTrackUri,omitempty"`
	KidsInvited     bool            `json:"kidsInvited"`
}

// Submission is the body of an RSVP submission
type Submission struct {
	PhoneNumber     string           `json:"phoneNumber" validate:"required"`
	Responses       []FamilyResponse `json:"responses" validate:"required,min=1,dive"`
	Notes           string           `json:"notes"`
	SongRequest     string           `json:"songRequest"`
	SpotifyTrackURI string           `json:"spotifyTrackUri,omitempty"`
}

// TrackURI returns the submission-level track, falling back to the first family that set one
func (s Submission) TrackURI() string {
	if s.SpotifyTrackURI != "" {
		return s.SpotifyTrackURI
	}
	for _, r := range s.Responses {
		if r.SpotifyTrackURI != "" {
			return r.SpotifyTrackURI
		}
	}
	return ""
}

// SubmitResult is the outcome reported to the submitter
type SubmitResult struct {
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	UpdatedRecords int    `json:"updatedRecords"`
}

// SubmissionRecord is the local log entry of an accepted submission
type SubmissionRecord struct {
	ID             int64     `db:"id" json:"id"`
	Phone          string    `db:"phone" json:"phone"`
	RecordIDs      string    `db:"record_ids" json:"recordIds"`
	AttendingCount int       `db:"attending_count" json:"attendingCount"`
	DeclinedCount  int       `db:"declined_count" json:"declinedCount"`
	SongRequest    string    `db:"song_request" json:"songRequest"`
	TrackURI       string    `db:"track_uri" json:"trackUri"`
	SubmittedAt    time.Time `db:"submitted_at" json:"submittedAt"`
}
