package signal

import (
	"fmt"

	"github.com/tbvdm/sigtop/internal/jsontok"
)

// Edit is one version of an edited message. Signal stores the versions
// newest first, the current one included.
type Edit struct {
	Body        MessageBody
	Attachments []Attachment
	Quote       *Quote
	TimeEdit    int64
}

func (d *Decoder) parseEdits(doc *jsontok.Doc, arr int, msg *Message) ([]Edit, error) {
	elems, err := doc.Elements(arr)
	if err != nil {
		return nil, err
	}

	edits := make([]Edit, 0, len(elems))
	for _, obj := range elems {
		if doc.Tokens[obj].Kind != jsontok.Object {
			return nil, fmt.Errorf("%w: edit is not an object", jsontok.ErrStructure)
		}

		var edit Edit
		if edit.Body.Text, err = optionalString(doc, obj, "body"); err != nil {
			return nil, fmt.Errorf("edit body: %w", err)
		}

		idx, err := doc.Number(obj, "timestamp")
		if err != nil {
			return nil, err
		}
		if idx >= 0 {
			if edit.TimeEdit, err = int64Value(doc, idx); err != nil {
				return nil, fmt.Errorf("edit timestamp: %w", err)
			}
		}

		if idx, err = doc.Array(obj, "attachments"); err != nil {
			return nil, err
		}
		if idx >= 0 {
			if edit.Attachments, err = parseAttachments(doc, idx, msg); err != nil {
				return nil, err
			}
		}

		if idx, err = doc.Array(obj, "bodyRanges"); err != nil {
			return nil, err
		}
		if idx >= 0 {
			if edit.Body.Mentions, err = d.parseMentions(doc, idx); err != nil {
				return nil, err
			}
		}

		if idx, err = doc.Object(obj, "quote"); err != nil {
			return nil, err
		}
		if idx >= 0 {
			if edit.Quote, err = d.parseQuote(doc, idx); err != nil {
				return nil, err
			}
		}

		if err := edit.Body.spliceMentions(); err != nil {
			return nil, fmt.Errorf("edit body: %w", err)
		}
		edits = append(edits, edit)
	}
	return edits, nil
}
