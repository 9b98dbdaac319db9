package signal

import (
	"fmt"
	"strings"

	"github.com/tbvdm/sigtop/internal/jsontok"
)

// Attachment describes a file sent with a message. Path is relative to the
// attachments directory and uses forward slashes.
type Attachment struct {
	Path        string
	FileName    string
	ContentType string
	Size        int64
	Pending     bool
	TimeSent    int64
	TimeRecv    int64
}

func parseAttachments(doc *jsontok.Doc, arr int, msg *Message) ([]Attachment, error) {
	elems, err := doc.Elements(arr)
	if err != nil {
		return nil, err
	}

	atts := make([]Attachment, 0, len(elems))
	for _, obj := range elems {
		if doc.Tokens[obj].Kind != jsontok.Object {
			return nil, fmt.Errorf("%w: attachment is not an object", jsontok.ErrStructure)
		}
		att := Attachment{
			TimeSent: msg.TimeSent,
			TimeRecv: msg.TimeRecv,
		}
		if att.Path, err = optionalString(doc, obj, "path"); err != nil {
			return nil, fmt.Errorf("attachment path: %w", err)
		}
		att.Path = strings.ReplaceAll(att.Path, `\`, "/")
		if att.FileName, err = optionalString(doc, obj, "fileName"); err != nil {
			return nil, fmt.Errorf("attachment fileName: %w", err)
		}
		if att.ContentType, err = optionalString(doc, obj, "contentType"); err != nil {
			return nil, fmt.Errorf("attachment contentType: %w", err)
		}

		idx, err := doc.Number(obj, "size")
		if err != nil {
			return nil, err
		}
		if idx >= 0 {
			if att.Size, err = int64Value(doc, idx); err != nil {
				return nil, fmt.Errorf("attachment size: %w", err)
			}
		}

		if idx, err = doc.FindKey(obj, "pending"); err != nil {
			return nil, err
		}
		att.Pending = idx >= 0 && doc.IsTrue(idx)

		atts = append(atts, att)
	}
	return atts, nil
}
