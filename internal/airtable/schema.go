package airtable

import (
	"strconv"

	"wedding-rsvp/internal/models"
)

// Field names of the guest table
const (
	FieldFirstName        = "First Name"
	FieldLastName         = "Last Name"
	FieldPartnerFirstName = "Partner First Name"
	FieldPartnerLastName  = "Partner Last Name"
	FieldPhone            = "Phone Number"
	FieldPartnerPhone     = "Partner Phone Number"
	FieldKidsInvited      = "Kids-Invited"
	FieldNotes            = "Additional_Notes"
	FieldSongRequest      = "Song_Request"
	FieldTrackID          = "Track_ID"
)

// PhoneFields are the fields a guest lookup matches against
var PhoneFields = []string{FieldPhone, FieldPartnerPhone}

// ChildNameField returns the name field of child slot i
func ChildNameField(i int) string {
	return "Child " + strconv.Itoa(i)
}

// RSVPPrefix returns the field prefix of a guest slot. All children share one set of fields.
func RSVPPrefix(t models.GuestType) string {
	switch t.Kind() {
	case models.KindPrimary:
		return "Person1"
	case models.KindPartner:
		return "Person2"
	default:
		return "Children"
	}
}

// RSVPField returns the attendance field of a guest slot
func RSVPField(t models.GuestType) string {
	return RSVPPrefix(t) + "-RSVP"
}

// DietaryFields encodes restrictions as "Yes"/"No" fields under the slot prefix
func DietaryFields(prefix string, d models.DietaryRestrictions) map[string]any {
	return map[string]any{
		prefix + "-GlutenFree":    YesNo(d.GlutenFree),
		prefix + "-Vegetarian":    YesNo(d.Vegetarian),
		prefix + "-Pescatarian":   YesNo(d.Pescatarian),
		prefix + "-SoyAllergy":    YesNo(d.SoyAllergy),
		prefix + "-SesameAllergy": YesNo(d.SesameAllergy),
		prefix + "-EggAllergy":    YesNo(d.EggAllergy),
		prefix + "-NutAllergy":    YesNo(d.NutAllergy),
	}
}
