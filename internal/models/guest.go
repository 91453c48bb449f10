package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// MaxChildren is the number of child slots on a family record
const MaxChildren = 6

// GuestKind is the slot category of a guest on a family record
type GuestKind string

const (
	KindPrimary GuestKind = "primary"
	KindPartner GuestKind = "partner"
	KindChild   GuestKind = "child"
)

// GuestType identifies a guest slot: primary, partner or child 1..6
type GuestType struct {
	kind  GuestKind
	index int
}

var (
	Primary = GuestType{kind: KindPrimary}
	Partner = GuestType{kind: KindPartner}
)

// Child returns the guest type for child slot index (1..6)
func Child(index int) (GuestType, error) {
	if index < 1 || index > MaxChildren {
		return GuestType{}, fmt.Errorf("child index %d out of range 1..%d", index, MaxChildren)
	}
	return GuestType{kind: KindChild, index: index}, nil
}

// Kind returns the slot category
func (t GuestType) Kind() GuestKind {
	return t.kind
}

// ChildIndex returns the child slot, or 0 for adults
func (t GuestType) ChildIndex() int {
	return t.index
}

// IsChild reports whether the slot is a child slot
func (t GuestType) IsChild() bool {
	return t.kind == KindChild
}

// IsZero reports whether the type was never set
func (t GuestType) IsZero() bool {
	return t.kind == ""
}

func (t GuestType) String() string {
	if t.kind == KindChild {
		return "child-" + strconv.Itoa(t.index)
	}
	return string(t.kind)
}

// MarshalJSON encodes the slot category; the child index lives in the guest id
func (t GuestType) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(t.kind))
}

// ParseGuestType parses "primary", "partner", "child" or "child-N".
// A bare "child" takes its index from a guest id ending in "-child-N".
func ParseGuestType(kind, guestID string) (GuestType, error) {
	kind = strings.ToLower(strings.TrimSpace(kind))
	switch kind {
	case string(KindPrimary):
		return Primary, nil
	case string(KindPartner):
		return Partner, nil
	case string(KindChild):
		i := strings.LastIndex(guestID, "-child-")
		if i < 0 {
			return GuestType{}, fmt.Errorf("child guest %q has no slot index", guestID)
		}
		return parseChildIndex(guestID[i+len("-child-"):])
	}
	if strings.HasPrefix(kind, "child-") {
		return parseChildIndex(strings.TrimPrefix(kind, "child-"))
	}
	return GuestType{}, fmt.Errorf("unknown guest type %q", kind)
}

func parseChildIndex(s string) (GuestType, error) {
	index, err := strconv.Atoi(s)
	if err != nil {
		return GuestType{}, fmt.Errorf("invalid child index %q", s)
	}
	return Child(index)
}

// Guest is one individually answerable invitee derived from a family record
type Guest struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Type      GuestType `json:"type"`
	RecordID  string    `json:"recordId"`
	Attending *bool     `json:"attending"`
}

// GuestID derives the stable id of a guest slot within a record
func GuestID(recordID string, t GuestType) string {
	return recordID + "-" + t.String()
}

// NewGuest builds a guest view for a slot on a record
func NewGuest(recordID string, t GuestType, name string, attending *bool) Guest {
	return Guest{
		ID:        GuestID(recordID, t),
		Name:      name,
		Type:      t,
		RecordID:  recordID,
		Attending: attending,
	}
}

// FamilyGroup is the guests sharing one family record
type FamilyGroup struct {
	RecordID    string  `json:"recordId"`
	KidsInvited bool    `json:"kidsInvited"`
	Notes       string  `json:"notes"`
	SongRequest string  `json:"songRequest"`
	Guests      []Guest `json:"guests"`
}

// GroupByRecord groups guests by record id in first-seen order
func GroupByRecord(guests []Guest) []FamilyGroup {
	var groups []FamilyGroup
	index := make(map[string]int)
	for _, g := range guests {
		i, ok := index[g.RecordID]
		if !ok {
			i = len(groups)
			index[g.RecordID] = i
			groups = append(groups, FamilyGroup{RecordID: g.RecordID})
		}
		groups[i].Guests = append(groups[i].Guests, g)
	}
	return groups
}

// Flatten returns every guest of the given families in order
func Flatten(families []FamilyGroup) []Guest {
	guests := make([]Guest, 0)
	for _, f := range families {
		guests = append(guests, f.Guests...)
	}
	return guests
}
