package whatsapp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var details = Details{
	WeddingDate:     "Saturday, June 7, 2025",
	WeddingLocation: "The Barn",
	BrideName:       "Anat",
	GroomName:       "David",
}

func TestConfirmationText_Attending(t *testing.T) {
	msg := ConfirmationText(details, []string{"Ann Lee", "Cy Lee"}, []string{"Bob Lee"})

	assert.Contains(t, msg, "*Anat* & *David*")
	assert.Contains(t, msg, "✅ Attending: Ann Lee, Cy Lee")
	assert.Contains(t, msg, "❌ Not attending: Bob Lee")
	assert.Contains(t, msg, "📅 Date: Saturday, June 7, 2025")
	assert.Contains(t, msg, "📍 Location: The Barn")
}

func TestConfirmationText_AllDeclined(t *testing.T) {
	msg := ConfirmationText(details, nil, []string{"Ann Lee"})

	assert.NotContains(t, msg, "Attending:")
	assert.NotContains(t, msg, "📅")
	assert.Contains(t, msg, "sorry you can't make it")
}
