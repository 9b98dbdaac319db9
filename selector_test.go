package main

import (
	"strings"
	"testing"

	"github.com/tbvdm/sigtop/internal/signal"
)

func testConversations() []conversation {
	return []conversation{
		{id: "c1", recipient: &signal.Recipient{Type: signal.RecipientTypeContact, Contact: signal.Contact{Name: "Alice", Phone: "+31600000001", ACI: aliceACI}}},
		{id: "c2", recipient: &signal.Recipient{Type: signal.RecipientTypeContact, Contact: signal.Contact{ProfileJoinedName: "Bob B", ACI: bobACI}}},
		{id: "c3", recipient: &signal.Recipient{Type: signal.RecipientTypeGroup, Group: signal.Group{ID: "GroupID", Name: "Friends"}}},
		{id: "c4"},
	}
}

func selectedIDs(convs []conversation) string {
	ids := make([]string, 0, len(convs))
	for _, conv := range convs {
		ids = append(ids, conv.id)
	}
	return strings.Join(ids, ",")
}

func TestSelectConversations(t *testing.T) {
	t.Parallel()

	cases := []struct {
		selectors []string
		want      string
	}{
		{nil, "c1,c2,c3,c4"},
		{[]string{"+31600000001"}, "c1"},
		{[]string{"alice"}, "c1"},
		{[]string{"=BOB B"}, "c2"},
		{[]string{"/^b"}, "c2"},
		{[]string{"/i"}, "c1,c3"},
		{[]string{":groupid"}, "c3"},
		{[]string{":" + strings.ToUpper(bobACI)}, "c2"},
		{[]string{"friends", "/."}, "c3,c1,c2"},
		{[]string{"alice", "alice"}, "c1"},
		{[]string{"nobody"}, ""},
	}
	for _, tc := range cases {
		got, err := selectConversations(testConversations(), tc.selectors)
		if err != nil {
			t.Fatalf("select %q: %v", tc.selectors, err)
		}
		if selectedIDs(got) != tc.want {
			t.Fatalf("select %q: got=%q want=%q", tc.selectors, selectedIDs(got), tc.want)
		}
	}
}

func TestSelectConversationsErrors(t *testing.T) {
	t.Parallel()

	for _, sel := range []string{"", "+", "/", ":", "=", "/("} {
		if _, err := selectConversations(testConversations(), []string{sel}); err == nil {
			t.Fatalf("select %q: expected error", sel)
		}
	}
}
