package signal

import (
	"fmt"
	"math"

	"github.com/tbvdm/sigtop/internal/jsontok"
)

// Message is one stored message. The store fills the row fields; Decoder
// fills the fields derived from the message JSON.
type Message struct {
	ConversationID string
	Conversation   *Recipient
	Source         *Recipient
	Type           string
	TimeSent       int64
	TimeRecv       int64
	Body           MessageBody
	JSON           string
	Attachments    []Attachment
	Reactions      []Reaction
	Quote          *Quote
	Edits          []Edit
}

// IsOutgoing reports whether the message was sent by the account owner.
func (m *Message) IsOutgoing() bool {
	return m.Type == "outgoing"
}

// Decoder extracts attachments, mentions, reactions and quotes from message
// JSON. It reuses one token table and must not be shared between goroutines.
type Decoder struct {
	parser     *jsontok.Parser
	recipients Resolver
	dbVersion  int
}

// NewDecoder returns a decoder that resolves recipients through r. The
// database version selects how reaction sender ids are interpreted.
func NewDecoder(r Resolver, dbVersion int) *Decoder {
	return &Decoder{
		parser:     jsontok.NewParser(jsontok.MessageCapacity),
		recipients: r,
		dbVersion:  dbVersion,
	}
}

// Decode parses msg.JSON and fills the derived fields of msg. The body text
// must already be set; its mentions are spliced in. On error msg is not
// modified.
func (d *Decoder) Decode(msg *Message) error {
	doc, err := d.parser.Parse([]byte(msg.JSON))
	if err != nil {
		return fmt.Errorf("parse message json: %w", err)
	}
	root, err := doc.Root()
	if err != nil {
		return fmt.Errorf("parse message json: %w", err)
	}

	out := *msg
	out.Body.Mentions = nil

	// received_at holds a counter in newer databases and the time in older
	// ones.
	idx, err := doc.Number(root, "received_at_ms")
	if err == nil && idx < 0 {
		idx, err = doc.Number(root, "received_at")
	}
	if err != nil {
		return err
	}
	if idx >= 0 {
		if out.TimeRecv, err = int64Value(doc, idx); err != nil {
			return fmt.Errorf("message received time: %w", err)
		}
	}

	if idx, err = doc.Array(root, "attachments"); err != nil {
		return err
	}
	if idx >= 0 {
		if out.Attachments, err = parseAttachments(doc, idx, &out); err != nil {
			return err
		}
	}

	if idx, err = doc.Array(root, "bodyRanges"); err != nil {
		return err
	}
	if idx >= 0 {
		if out.Body.Mentions, err = d.parseMentions(doc, idx); err != nil {
			return err
		}
	}

	if idx, err = doc.Array(root, "reactions"); err != nil {
		return err
	}
	if idx >= 0 {
		if out.Reactions, err = d.parseReactions(doc, idx); err != nil {
			return err
		}
	}

	if idx, err = doc.Object(root, "quote"); err != nil {
		return err
	}
	if idx >= 0 {
		if out.Quote, err = d.parseQuote(doc, idx); err != nil {
			return err
		}
	}

	if idx, err = doc.Array(root, "editHistory"); err != nil {
		return err
	}
	if idx >= 0 {
		if out.Edits, err = d.parseEdits(doc, idx, &out); err != nil {
			return err
		}
	}

	if err := out.Body.spliceMentions(); err != nil {
		return fmt.Errorf("message body: %w", err)
	}
	*msg = out
	return nil
}

// parseMentions collects the mentions of a bodyRanges array in start order.
// Ranges without a mention id only carry styling and are skipped.
func (d *Decoder) parseMentions(doc *jsontok.Doc, arr int) ([]Mention, error) {
	elems, err := doc.Elements(arr)
	if err != nil {
		return nil, err
	}

	var mentions []Mention
	for _, obj := range elems {
		if doc.Tokens[obj].Kind != jsontok.Object {
			return nil, fmt.Errorf("%w: body range is not an object", jsontok.ErrStructure)
		}
		id, err := optionalString(doc, obj, "mentionAci")
		if err != nil {
			return nil, fmt.Errorf("mention id: %w", err)
		}
		if id == "" {
			if id, err = optionalString(doc, obj, "mentionUuid"); err != nil {
				return nil, fmt.Errorf("mention id: %w", err)
			}
		}
		if id == "" {
			continue
		}

		start, err := requiredInt(doc, obj, "start")
		if err != nil {
			return nil, fmt.Errorf("mention start: %w", err)
		}
		length, err := requiredInt(doc, obj, "length")
		if err != nil {
			return nil, fmt.Errorf("mention length: %w", err)
		}
		mentions = insertMention(mentions, Mention{
			Recipient: d.recipients.RecipientFromACI(id),
			Start:     start,
			Length:    length,
		})
	}
	return mentions, nil
}

// optionalString decodes a string field, returning "" if it is absent.
func optionalString(doc *jsontok.Doc, obj int, key string) (string, error) {
	idx, err := doc.Str(obj, key)
	if err != nil || idx < 0 {
		return "", err
	}
	return doc.Text(idx)
}

// requiredString decodes a string field that must be present.
func requiredString(doc *jsontok.Doc, obj int, key string) (string, error) {
	idx, err := doc.Str(obj, key)
	if err != nil {
		return "", err
	}
	if idx < 0 {
		return "", fmt.Errorf("%w: missing %s", ErrMessage, key)
	}
	return doc.Text(idx)
}

// requiredInt64 decodes a numeric field that must be present.
func requiredInt64(doc *jsontok.Doc, obj int, key string) (int64, error) {
	idx, err := doc.Number(obj, key)
	if err != nil {
		return 0, err
	}
	if idx < 0 {
		return 0, fmt.Errorf("%w: missing %s", ErrMessage, key)
	}
	return int64Value(doc, idx)
}

func requiredInt(doc *jsontok.Doc, obj int, key string) (int, error) {
	v, err := requiredInt64(doc, obj, key)
	if err != nil {
		return 0, err
	}
	if v > math.MaxInt {
		return 0, fmt.Errorf("%w: %s out of range", jsontok.ErrNumber, key)
	}
	return int(v), nil
}

func int64Value(doc *jsontok.Doc, idx int) (int64, error) {
	v, err := doc.Uint64(idx)
	if err != nil {
		return 0, err
	}
	return toInt64(v)
}

func toInt64(v uint64) (int64, error) {
	if v > math.MaxInt64 {
		return 0, fmt.Errorf("%w: %d out of range", jsontok.ErrNumber, v)
	}
	return int64(v), nil
}
