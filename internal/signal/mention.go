package signal

import (
	"fmt"
	"math"
	"strings"
)

// Mention marks a range of message text that refers to a recipient. Start and
// Length count UTF-16 code units until the mention is spliced, and bytes of
// the spliced text afterwards.
type Mention struct {
	Recipient *Recipient
	Start     int
	Length    int
}

// MessageBody is message or quote text together with its mentions.
type MessageBody struct {
	Text     string
	Mentions []Mention
}

// insertMention adds m to mentions, keeping them ordered by start. A mention
// goes before existing mentions with the same start. Mentions usually arrive
// in order, so the search runs from the end.
func insertMention(mentions []Mention, m Mention) []Mention {
	i := len(mentions)
	for i > 0 && mentions[i-1].Start >= m.Start {
		i--
	}
	mentions = append(mentions, Mention{})
	copy(mentions[i+1:], mentions[i:])
	mentions[i] = m
	return mentions
}

// SpliceMentions replaces each mentioned range of text with "@" followed by
// the recipient's name. Mentions must be ordered by start and must not
// overlap. The returned mentions locate the inserted names in the returned
// text in bytes.
//
// If name is nil, Recipient.DisplayName is used. An empty name is replaced
// with UnknownName. Empty text or an empty mention list is returned as is.
func SpliceMentions(text string, mentions []Mention, name func(*Recipient) string) (string, []Mention, error) {
	if text == "" || len(mentions) == 0 {
		return text, mentions, nil
	}
	if name == nil {
		name = (*Recipient).DisplayName
	}

	for i, m := range mentions {
		if m.Start < 0 || m.Length < 0 {
			return "", nil, fmt.Errorf("%w: negative range [%d,+%d)", ErrMention, m.Start, m.Length)
		}
		if m.Start > math.MaxInt-m.Length {
			return "", nil, fmt.Errorf("%w: range [%d,+%d) overflows", ErrMention, m.Start, m.Length)
		}
		if i > 0 && m.Start < mentions[i-1].Start+mentions[i-1].Length {
			return "", nil, fmt.Errorf("%w: unordered or overlapping ranges at mention %d", ErrMention, i)
		}
	}

	type span struct{ start, end int }
	spans := make([]span, len(mentions))
	repls := make([]string, len(mentions))
	size := len(text)
	for i, m := range mentions {
		start := UTF16UnitsToUTF8Bytes(text, m.Start)
		end := start + UTF16UnitsToUTF8Bytes(text[start:], m.Length)
		if i > 0 && start < spans[i-1].end {
			return "", nil, fmt.Errorf("%w: mention %d overlaps its predecessor in bytes", ErrMention, i)
		}
		spans[i] = span{start, end}

		n := name(m.Recipient)
		if n == "" {
			n = UnknownName
		}
		repls[i] = "@" + n
		size -= end - start
		if size > math.MaxInt-len(repls[i]) {
			return "", nil, fmt.Errorf("%w: spliced text too long", ErrMention)
		}
		size += len(repls[i])
	}

	var b strings.Builder
	b.Grow(size)
	spliced := make([]Mention, len(mentions))
	off := 0
	for i, m := range mentions {
		b.WriteString(text[off:spans[i].start])
		spliced[i] = Mention{
			Recipient: m.Recipient,
			Start:     b.Len(),
			Length:    len(repls[i]),
		}
		b.WriteString(repls[i])
		off = spans[i].end
	}
	b.WriteString(text[off:])
	return b.String(), spliced, nil
}

// spliceMentions splices the body's mentions into its text. The body is
// left untouched on error.
func (b *MessageBody) spliceMentions() error {
	text, mentions, err := SpliceMentions(b.Text, b.Mentions, nil)
	if err != nil {
		return err
	}
	b.Text, b.Mentions = text, mentions
	return nil
}
