package signal

import (
	"fmt"

	"github.com/tbvdm/sigtop/internal/jsontok"
)

// LongTextType is the content type of attachments that carry the full text of
// a long message.
const LongTextType = "text/x-signal-plain"

// Quote is the preview of the message a reply refers to. ID is the sent time
// of the quoted message.
type Quote struct {
	ID          int64
	Recipient   *Recipient
	Body        MessageBody
	Attachments []QuoteAttachment
}

type QuoteAttachment struct {
	FileName    string
	ContentType string
}

func (d *Decoder) parseQuote(doc *jsontok.Doc, obj int) (*Quote, error) {
	var qte Quote

	// The id used to be stored as a string.
	idx, err := doc.NumberOrString(obj, "id")
	if err != nil {
		return nil, err
	}
	if idx < 0 {
		return nil, fmt.Errorf("%w: quote without id", ErrMessage)
	}
	id, err := quoteID(doc, idx)
	if err != nil {
		return nil, fmt.Errorf("quote id: %w", err)
	}
	qte.ID = id

	if qte.Recipient, err = d.quoteAuthor(doc, obj); err != nil {
		return nil, err
	}

	if qte.Body.Text, err = optionalString(doc, obj, "text"); err != nil {
		return nil, fmt.Errorf("quote text: %w", err)
	}

	if idx, err = doc.Array(obj, "attachments"); err != nil {
		return nil, err
	}
	if idx >= 0 {
		if qte.Attachments, err = parseQuoteAttachments(doc, idx); err != nil {
			return nil, err
		}
	}

	if idx, err = doc.Array(obj, "bodyRanges"); err != nil {
		return nil, err
	}
	if idx >= 0 {
		if qte.Body.Mentions, err = d.parseMentions(doc, idx); err != nil {
			return nil, err
		}
	}
	if err := qte.Body.spliceMentions(); err != nil {
		return nil, fmt.Errorf("quote text: %w", err)
	}
	return &qte, nil
}

func quoteID(doc *jsontok.Doc, idx int) (int64, error) {
	t := doc.Tokens[idx]
	// A string id is decoded as if its contents were a bare number.
	t.Kind = jsontok.Primitive
	v, err := jsontok.DecodeUint64(doc.JSON, t)
	if err != nil {
		return 0, err
	}
	return toInt64(v)
}

// quoteAuthor resolves the quoted author. Newer quotes carry an authorAci or
// authorUuid, older ones an author phone number.
func (d *Decoder) quoteAuthor(doc *jsontok.Doc, obj int) (*Recipient, error) {
	for _, key := range []string{"authorAci", "authorUuid"} {
		aci, err := optionalString(doc, obj, key)
		if err != nil {
			return nil, fmt.Errorf("quote %s: %w", key, err)
		}
		if aci != "" {
			return d.recipients.RecipientFromACI(aci), nil
		}
	}
	phone, err := optionalString(doc, obj, "author")
	if err != nil {
		return nil, fmt.Errorf("quote author: %w", err)
	}
	if phone == "" {
		return nil, fmt.Errorf("%w: quote without author", ErrMessage)
	}
	return d.recipients.RecipientFromPhone(phone), nil
}

func parseQuoteAttachments(doc *jsontok.Doc, arr int) ([]QuoteAttachment, error) {
	elems, err := doc.Elements(arr)
	if err != nil {
		return nil, err
	}

	var atts []QuoteAttachment
	for _, obj := range elems {
		if doc.Tokens[obj].Kind != jsontok.Object {
			return nil, fmt.Errorf("%w: quote attachment is not an object", jsontok.ErrStructure)
		}
		var att QuoteAttachment
		if att.ContentType, err = optionalString(doc, obj, "contentType"); err != nil {
			return nil, fmt.Errorf("quote attachment contentType: %w", err)
		}
		if att.ContentType == LongTextType {
			continue
		}
		if att.FileName, err = optionalString(doc, obj, "fileName"); err != nil {
			return nil, fmt.Errorf("quote attachment fileName: %w", err)
		}
		atts = append(atts, att)
	}
	return atts, nil
}
