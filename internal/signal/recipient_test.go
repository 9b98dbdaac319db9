package signal

import "testing"

func TestDisplayNameFallbackChain(t *testing.T) {
	t.Parallel()

	cases := []struct {
		contact  Contact
		name     string
		detailed string
	}{
		{Contact{Name: "N", ProfileJoinedName: "PJ", Phone: "+1"}, "N", "N (+1)"},
		{Contact{ProfileJoinedName: "PJ", ProfileName: "P", Username: "u.01"}, "PJ", "PJ (u.01)"},
		{Contact{ProfileName: "P", ACI: aliceACI}, "P", "P (" + aliceACI + ")"},
		{Contact{Phone: "+1", Username: "u.01"}, "+1", "+1 (+1)"},
		{Contact{Username: "u.01"}, "u.01", "u.01 (u.01)"},
		{Contact{ACI: aliceACI}, aliceACI, aliceACI + " (" + aliceACI + ")"},
		{Contact{}, "Unknown", "Unknown"},
	}
	for _, tc := range cases {
		r := &Recipient{Type: RecipientTypeContact, Contact: tc.contact}
		if got := r.DisplayName(); got != tc.name {
			t.Fatalf("%+v name: got=%q want=%q", tc.contact, got, tc.name)
		}
		if got := r.DetailedDisplayName(); got != tc.detailed {
			t.Fatalf("%+v detailed: got=%q want=%q", tc.contact, got, tc.detailed)
		}
	}

	var missing *Recipient
	if got := missing.DetailedDisplayName(); got != "Unknown" {
		t.Fatalf("nil recipient: got=%q want=%q", got, "Unknown")
	}
}

func TestGroupDetailedDisplayName(t *testing.T) {
	t.Parallel()

	newer := &Recipient{Type: RecipientTypeGroup, Group: Group{ID: "AAECAwQFBgcICQoLDA0ODxAREhMUFRYXGBkaGxwdHh8=", Name: "Team"}}
	if got, want := newer.DetailedDisplayName(), "Team (AAECAwQFBgcICQoLDA0ODxAREhMUFRYXGBkaGxwdHh8)"; got != want {
		t.Fatalf("newer group: got=%q want=%q", got, want)
	}
	older := &Recipient{Type: RecipientTypeGroup, Group: Group{ID: "abc"}}
	if got, want := older.DetailedDisplayName(), "Unknown (616263)"; got != want {
		t.Fatalf("older group: got=%q want=%q", got, want)
	}
}

func TestTrimBidiChars(t *testing.T) {
	t.Parallel()

	const fsi, pdi = "\xe2\x81\xa8", "\xe2\x81\xa9"
	cases := map[string]string{
		fsi + "Alice" + pdi:             "Alice",
		fsi + fsi + "Alice" + pdi + pdi: fsi + "Alice" + pdi,
		fsi + "Alice":                   fsi + "Alice",
		fsi + pdi:                       "",
		fsi:                             fsi,
		"Alice":                         "Alice",
	}
	for in, want := range cases {
		if got := TrimBidiChars(in); got != want {
			t.Fatalf("%q: got=%q want=%q", in, got, want)
		}
	}
}

func TestDirectoryLookups(t *testing.T) {
	t.Parallel()

	dir := testDirectory()
	if dir.Len() != 3 {
		t.Fatalf("directory size: got=%d want=3", dir.Len())
	}
	if r := dir.RecipientFromACI("0D6C3B9A-1E2F-4A5B-8C7D-9E0F1A2B3C4D"); r.DisplayName() != "Alice" {
		t.Fatalf("ACI lookup is case sensitive")
	}
	if r := dir.RecipientFromPhone("+15550001"); r.DisplayName() != "Alice" {
		t.Fatalf("phone lookup failed")
	}
	if r := dir.RecipientFromConversationID("conv-group"); r.DisplayName() != "Friends" {
		t.Fatalf("conversation lookup failed")
	}
	if r := dir.RecipientFromACI("not-a-uuid"); r != nil {
		t.Fatalf("unexpected recipient %+v", r)
	}
}
