package signal

import (
	"encoding/base64"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

// UnknownName is shown for recipients that cannot be resolved.
const UnknownName = "Unknown"

// RecipientType distinguishes contacts from groups.
type RecipientType int

const (
	RecipientTypeContact RecipientType = iota
	RecipientTypeGroup
)

// Contact holds the naming fields of a private conversation.
type Contact struct {
	ACI               string // account identity
	Name              string
	ProfileName       string
	ProfileFamilyName string
	ProfileJoinedName string
	Phone             string
	Username          string
}

// Group holds the naming fields of a group conversation.
type Group struct {
	ID   string
	Name string
}

// Recipient is a contact or a group.
type Recipient struct {
	Type    RecipientType
	Contact Contact
	Group   Group
}

// Resolver looks up recipients by the identifiers that appear in message
// JSON. A nil result means the recipient is unknown.
type Resolver interface {
	RecipientFromConversationID(id string) *Recipient
	RecipientFromPhone(phone string) *Recipient
	RecipientFromACI(aci string) *Recipient
}

func (r *Recipient) displayNameAndDetail() (string, string) {
	name, detail := UnknownName, ""
	if r == nil {
		return name, detail
	}

	switch r.Type {
	case RecipientTypeContact:
		c := r.Contact
		switch {
		case c.Name != "":
			name = c.Name
		case c.ProfileJoinedName != "":
			name = c.ProfileJoinedName
		case c.ProfileName != "":
			name = c.ProfileName
		case c.Phone != "":
			name = c.Phone
		case c.Username != "":
			name = c.Username
		case c.ACI != "":
			name = c.ACI
		}
		switch {
		case c.Phone != "":
			detail = c.Phone
		case c.Username != "":
			detail = c.Username
		case c.ACI != "":
			detail = c.ACI
		}
	case RecipientTypeGroup:
		if r.Group.Name != "" {
			name = r.Group.Name
		}
		detail = groupIDDetail(r.Group.ID)
	}
	return name, detail
}

// groupIDDetail renders newer 32-byte base64 group ids as unpadded base64url
// and older raw ids as hex.
func groupIDDetail(id string) string {
	if id == "" {
		return ""
	}
	raw, err := base64.StdEncoding.DecodeString(id)
	if err == nil && len(raw) == 32 {
		return base64.RawURLEncoding.EncodeToString(raw)
	}
	return hex.EncodeToString([]byte(id))
}

// DisplayName returns the best available name for r.
func (r *Recipient) DisplayName() string {
	name, _ := r.displayNameAndDetail()
	return name
}

// DetailedDisplayName returns the display name followed by the phone number,
// username, ACI or group id in parentheses.
func (r *Recipient) DetailedDisplayName() string {
	name, detail := r.displayNameAndDetail()
	if detail == "" {
		return name
	}
	return name + " (" + detail + ")"
}

// TrimBidiChars removes one surrounding pair of FSI (U+2068) and PDI (U+2069)
// characters from s.
func TrimBidiChars(s string) string {
	const fsi, pdi = "\xe2\x81\xa8", "\xe2\x81\xa9"
	if strings.HasPrefix(s, fsi) && strings.HasSuffix(s[len(fsi):], pdi) {
		return s[len(fsi) : len(s)-len(pdi)]
	}
	return s
}

// Directory is an in-memory Resolver.
type Directory struct {
	byConversationID map[string]*Recipient
	byPhone          map[string]*Recipient
	byACI            map[string]*Recipient
}

// NewDirectory returns an empty directory.
func NewDirectory() *Directory {
	return &Directory{
		byConversationID: make(map[string]*Recipient),
		byPhone:          make(map[string]*Recipient),
		byACI:            make(map[string]*Recipient),
	}
}

// Add registers r under its conversation id and, for contacts, under its
// phone number and ACI.
func (d *Directory) Add(conversationID string, r *Recipient) {
	d.byConversationID[conversationID] = r
	if r.Type != RecipientTypeContact {
		return
	}
	if r.Contact.Phone != "" {
		d.byPhone[r.Contact.Phone] = r
	}
	if r.Contact.ACI != "" {
		d.byACI[normalizeACI(r.Contact.ACI)] = r
	}
}

// Len returns the number of conversations in the directory.
func (d *Directory) Len() int {
	return len(d.byConversationID)
}

func (d *Directory) RecipientFromConversationID(id string) *Recipient {
	return d.byConversationID[id]
}

func (d *Directory) RecipientFromPhone(phone string) *Recipient {
	return d.byPhone[phone]
}

func (d *Directory) RecipientFromACI(aci string) *Recipient {
	return d.byACI[normalizeACI(aci)]
}

func normalizeACI(aci string) string {
	if id, err := uuid.Parse(aci); err == nil {
		return id.String()
	}
	return strings.ToLower(aci)
}
