package signal

import (
	"fmt"
	"strings"

	"github.com/tbvdm/sigtop/internal/jsontok"
)

// Reaction is an emoji reaction to a message. TimeSent is the timestamp of
// the message reacted to.
type Reaction struct {
	Recipient *Recipient
	Emoji     string
	TimeSent  int64
	TimeRecv  int64
}

func (d *Decoder) parseReactions(doc *jsontok.Doc, arr int) ([]Reaction, error) {
	elems, err := doc.Elements(arr)
	if err != nil {
		return nil, err
	}

	rcts := make([]Reaction, 0, len(elems))
	for _, obj := range elems {
		if doc.Tokens[obj].Kind != jsontok.Object {
			return nil, fmt.Errorf("%w: reaction is not an object", jsontok.ErrStructure)
		}

		var rct Reaction
		fromID, err := requiredString(doc, obj, "fromId")
		if err != nil {
			return nil, fmt.Errorf("reaction: %w", err)
		}
		rct.Recipient = d.recipientFromReactionID(fromID)
		if rct.Emoji, err = requiredString(doc, obj, "emoji"); err != nil {
			return nil, fmt.Errorf("reaction: %w", err)
		}
		if rct.TimeSent, err = requiredInt64(doc, obj, "targetTimestamp"); err != nil {
			return nil, fmt.Errorf("reaction: %w", err)
		}
		if rct.TimeRecv, err = requiredInt64(doc, obj, "timestamp"); err != nil {
			return nil, fmt.Errorf("reaction: %w", err)
		}
		rcts = append(rcts, rct)
	}
	return rcts, nil
}

// recipientFromReactionID resolves a reaction sender. Old databases key
// reactions by phone number without the plus sign, which is also the
// conversation id. Newer databases use conversation ids but may still hold
// reactions keyed by phone number.
func (d *Decoder) recipientFromReactionID(id string) *Recipient {
	if d.dbVersion < 20 {
		return d.recipients.RecipientFromConversationID(strings.TrimPrefix(id, "+"))
	}
	if strings.HasPrefix(id, "+") {
		return d.recipients.RecipientFromPhone(id)
	}
	return d.recipients.RecipientFromConversationID(id)
}
