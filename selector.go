package main

import (
	"errors"
	"regexp"
	"strings"

	"github.com/tbvdm/sigtop/internal/signal"
)

// selectConversations filters convs by selectors. Each selector picks the
// conversations it matches that earlier selectors did not pick:
//
//	+phone   contact phone number
//	/regexp  display name, case-insensitive
//	:id      contact ACI or group id
//	=name    display name, case-insensitive
//	name     same as =name
//
// No selectors select every conversation.
func selectConversations(convs []conversation, selectors []string) ([]conversation, error) {
	if len(selectors) == 0 {
		return convs, nil
	}

	remaining := append([]conversation(nil), convs...)
	var selected []conversation
	for _, s := range selectors {
		match, err := conversationMatcher(s)
		if err != nil {
			return nil, err
		}
		rest := remaining[:0]
		for _, conv := range remaining {
			if conv.recipient != nil && match(conv.recipient) {
				selected = append(selected, conv)
			} else {
				rest = append(rest, conv)
			}
		}
		remaining = rest
	}
	return selected, nil
}

func conversationMatcher(s string) (func(*signal.Recipient) bool, error) {
	if s == "" || (len(s) == 1 && strings.ContainsAny(s, "+/:=")) {
		return nil, errors.New("empty conversation selector")
	}

	switch s[0] {
	case '+':
		return func(r *signal.Recipient) bool {
			return r.Type == signal.RecipientTypeContact && r.Contact.Phone == s
		}, nil
	case '/':
		re, err := regexp.Compile("(?i)" + s[1:])
		if err != nil {
			return nil, err
		}
		return func(r *signal.Recipient) bool {
			return re.MatchString(r.DisplayName())
		}, nil
	case ':':
		id := s[1:]
		return func(r *signal.Recipient) bool {
			switch r.Type {
			case signal.RecipientTypeContact:
				return strings.EqualFold(id, r.Contact.ACI)
			case signal.RecipientTypeGroup:
				return strings.EqualFold(id, r.Group.ID)
			default:
				return false
			}
		}, nil
	case '=':
		s = s[1:]
	}
	return func(r *signal.Recipient) bool {
		return strings.EqualFold(s, r.DisplayName())
	}, nil
}
