package main

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/tbvdm/sigtop/internal/jsontok"
	"github.com/tbvdm/sigtop/internal/signal"
)

const (
	aliceACI = "a1a1a1a1-0000-4000-8000-000000000001"
	bobACI   = "b2b2b2b2-0000-4000-8000-000000000002"

	// U+FFFC, the placeholder Signal stores in place of a mention.
	objectReplacement = "\xef\xbf\xbc"
)

const testSchema = `
	CREATE TABLE conversations (
		id TEXT PRIMARY KEY,
		json TEXT,
		type TEXT NOT NULL,
		name TEXT,
		profileName TEXT,
		profileFamilyName TEXT,
		profileFullName TEXT,
		e164 TEXT,
		serviceId TEXT,
		groupId TEXT
	);
	CREATE TABLE messages (
		id TEXT PRIMARY KEY,
		conversationId TEXT,
		sourceServiceId TEXT,
		type TEXT,
		body TEXT,
		json TEXT,
		sent_at INTEGER,
		received_at INTEGER
	);
`

type testMessageRow struct {
	id             string
	conversationID string
	source         string
	kind           string
	body           string
	json           string
	sentAt         int64
}

var testMessages = []testMessageRow{
	{"m1", "c-alice", aliceACI, "incoming", "hi", `{"received_at_ms":1700000001000}`, 1700000000000},
	{"m2", "c-alice", "", "outgoing", objectReplacement + " see this",
		`{"bodyRanges":[{"start":0,"length":1,"mentionAci":"` + bobACI + `"}],` +
			`"attachments":[{"path":"ab\\cd","fileName":"a.jpg","contentType":"image/jpeg","size":2048}]}`,
		1700000100000},
	{"m3", "c-alice", aliceACI, "incoming", "broken", `{"bodyRanges":`, 1700000200000},
	{"m4", "c-group", bobACI, "incoming", "group msg", `{"quote":{"id":1700000000000,"authorAci":"` + aliceACI + `","text":"hi"}}`, 1700086400000},
}

func mustExec(t *testing.T, db *sql.DB, query string, args ...any) {
	t.Helper()
	if _, err := db.Exec(query, args...); err != nil {
		t.Fatalf("exec query failed: %v\nquery:\n%s", err, query)
	}
}

// newTestDB writes a Signal Desktop database of the given schema version and
// returns its path.
func newTestDB(t *testing.T, version int) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "db.sqlite")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	defer db.Close()

	mustExec(t, db, testSchema)
	mustExec(t, db, "PRAGMA user_version = "+strconv.Itoa(version))

	convs := []struct {
		id, data, kind, name, fullName, phone, serviceID, groupID string
	}{
		{"c-alice", `{"username":"alice.01"}`, "private", "Alice", "", "+31600000001", aliceACI, ""},
		{"c-bob", `{}`, "private", "", "Bob B", "", bobACI, ""},
		{"c-group", `{}`, "group", "Friends", "", "", "", "group-1"},
		{"c-empty", `{}`, "private", "Nobody", "", "", "", ""},
	}
	for _, c := range convs {
		mustExec(t, db,
			"INSERT INTO conversations (id, json, type, name, profileFullName, e164, serviceId, groupId) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
			c.id, c.data, c.kind, nullIfEmpty(c.name), nullIfEmpty(c.fullName), nullIfEmpty(c.phone), nullIfEmpty(c.serviceID), nullIfEmpty(c.groupID))
	}
	for i, m := range testMessages {
		mustExec(t, db,
			"INSERT INTO messages (id, conversationId, sourceServiceId, type, body, json, sent_at, received_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
			m.id, m.conversationID, nullIfEmpty(m.source), m.kind, m.body, m.json, m.sentAt, i)
	}
	return path
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func openTestStore(t *testing.T) *messageStore {
	t.Helper()
	store, err := openMessageStore(context.Background(), newTestDB(t, 88))
	if err != nil {
		t.Fatalf("open message store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestOpenMessageStoreLoadsRecipients(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	if store.dbVersion != 88 {
		t.Fatalf("db version: got=%d want=88", store.dbVersion)
	}
	if got := store.recipients.Len(); got != 4 {
		t.Fatalf("recipient count: got=%d want=4", got)
	}

	alice := store.recipients.RecipientFromACI(strings.ToUpper(aliceACI))
	if alice == nil {
		t.Fatalf("alice not found by upper-case ACI")
	}
	if alice.Contact.Username != "alice.01" || alice.Contact.Phone != "+31600000001" {
		t.Fatalf("alice contact: got=%+v", alice.Contact)
	}
	if got := store.recipients.RecipientFromConversationID("c-group"); got == nil || got.Type != signal.RecipientTypeGroup {
		t.Fatalf("group recipient: got=%+v", got)
	}
}

func TestReadDatabaseVersionRejectsOldDatabases(t *testing.T) {
	t.Parallel()

	_, err := openMessageStore(context.Background(), newTestDB(t, 18))
	if err == nil || !strings.Contains(err.Error(), "not supported") {
		t.Fatalf("expected unsupported version error, got %v", err)
	}
}

func TestOpenMessageStoreMissingFile(t *testing.T) {
	t.Parallel()

	_, err := openMessageStore(context.Background(), filepath.Join(t.TempDir(), "missing.sqlite"))
	if err == nil || !strings.Contains(err.Error(), "open sqlite db") {
		t.Fatalf("expected open error, got %v", err)
	}
}

func TestConversationsHaveMessagesAndAreOrdered(t *testing.T) {
	t.Parallel()

	convs, err := openTestStore(t).conversations(context.Background())
	if err != nil {
		t.Fatalf("conversations: %v", err)
	}
	var names []string
	for _, conv := range convs {
		names = append(names, conv.displayName())
	}
	if strings.Join(names, ",") != "Alice,Friends" {
		t.Fatalf("conversations: got=%v want=[Alice Friends]", names)
	}
	if convs[0].messageCount != 3 {
		t.Fatalf("alice message count: got=%d want=3", convs[0].messageCount)
	}
}

func TestConversationMessagesAbortPolicy(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	convs, err := store.conversations(context.Background())
	if err != nil {
		t.Fatalf("conversations: %v", err)
	}

	_, err = store.conversationMessages(context.Background(), convs[0], interval{}, messageErrorPolicy(policyAbort, convs[0]))
	if !errors.Is(err, jsontok.ErrSyntax) {
		t.Fatalf("abort policy: got err=%v want ErrSyntax", err)
	}
}

func TestConversationMessagesSkipPolicy(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	convs, err := store.conversations(context.Background())
	if err != nil {
		t.Fatalf("conversations: %v", err)
	}

	var skipped []int64
	onError := func(msg *signal.Message, err error) error {
		skipped = append(skipped, msg.TimeSent)
		return nil
	}
	msgs, err := store.conversationMessages(context.Background(), convs[0], interval{}, onError)
	if err != nil {
		t.Fatalf("conversation messages: %v", err)
	}
	if len(msgs) != 2 || len(skipped) != 1 || skipped[0] != 1700000200000 {
		t.Fatalf("skip policy: got %d messages, skipped=%v", len(msgs), skipped)
	}

	in := msgs[0]
	if in.Source == nil || in.Source.DisplayName() != "Alice" || in.TimeRecv != 1700000001000 {
		t.Fatalf("incoming message: got source=%v recv=%d", in.Source.DisplayName(), in.TimeRecv)
	}

	out := msgs[1]
	if !out.IsOutgoing() || out.Body.Text != "@Bob B see this" {
		t.Fatalf("outgoing body: got=%q", out.Body.Text)
	}
	if len(out.Body.Mentions) != 1 || out.Body.Mentions[0].Start != 0 || out.Body.Mentions[0].Length != len("@Bob B") {
		t.Fatalf("outgoing mentions: got=%+v", out.Body.Mentions)
	}
	if len(out.Attachments) != 1 || out.Attachments[0].Path != "ab/cd" || out.Attachments[0].Size != 2048 {
		t.Fatalf("outgoing attachments: got=%+v", out.Attachments)
	}
}

func TestConversationMessagesInterval(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	convs, err := store.conversations(context.Background())
	if err != nil {
		t.Fatalf("conversations: %v", err)
	}

	ival := interval{min: time.UnixMilli(1700000050000), max: time.UnixMilli(1700000150000)}
	msgs, err := store.conversationMessages(context.Background(), convs[0], ival, messageErrorPolicy(policyAbort, convs[0]))
	if err != nil {
		t.Fatalf("conversation messages: %v", err)
	}
	if len(msgs) != 1 || msgs[0].TimeSent != 1700000100000 {
		t.Fatalf("interval messages: got=%d", len(msgs))
	}
}

func TestMessageQueryPerDatabaseVersion(t *testing.T) {
	t.Parallel()

	cases := []struct {
		version int
		want    string
	}{
		{19, "m.source,"},
		{20, "m.sourceUuid = c.uuid"},
		{87, "m.sourceUuid = c.uuid"},
		{88, "m.sourceServiceId = c.serviceId"},
	}
	for _, tc := range cases {
		s := &messageStore{dbVersion: tc.version}
		query, args := s.messageQuery(interval{})
		if !strings.Contains(query, tc.want) || len(args) != 0 {
			t.Fatalf("version %d: got query=%q args=%v", tc.version, query, args)
		}
	}

	s := &messageStore{dbVersion: 88}
	query, args := s.messageQuery(interval{max: time.UnixMilli(5)})
	if !strings.Contains(query, messageWhereSentBefore) || len(args) != 1 || args[0] != int64(5) {
		t.Fatalf("open start: got query=%q args=%v", query, args)
	}
	query, args = s.messageQuery(interval{min: time.UnixMilli(1), max: time.UnixMilli(5)})
	if !strings.Contains(query, messageWhereSentBetween) || len(args) != 2 {
		t.Fatalf("closed interval: got query=%q args=%v", query, args)
	}
}

func TestCheckDatabaseCleanDatabase(t *testing.T) {
	t.Parallel()

	db, err := openSignalDB(newTestDB(t, 88))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	findings, err := checkDatabase(context.Background(), db)
	if err != nil {
		t.Fatalf("check database: %v", err)
	}
	if len(findings) != 0 {
		t.Fatalf("findings: got=%v want none", findings)
	}
}

func TestCheckDatabaseReportsForeignKeyViolations(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "fk.sqlite")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	defer db.Close()
	mustExec(t, db, `
		CREATE TABLE parents (id INTEGER PRIMARY KEY);
		CREATE TABLE children (id INTEGER PRIMARY KEY, parent INTEGER REFERENCES parents(id));
		INSERT INTO children (id, parent) VALUES (7, 42);
	`)

	var out strings.Builder
	err = runDatabaseCheck(context.Background(), db, &out)
	if err == nil {
		t.Fatalf("expected check to fail")
	}
	if !strings.Contains(out.String(), "foreign key violation in row 7 of table children") {
		t.Fatalf("findings: got=%q", out.String())
	}
}

func TestFormatTimestamp(t *testing.T) {
	t.Parallel()

	if got := formatTimestamp(-1); got != "unknown" {
		t.Fatalf("negative timestamp: got=%q want=unknown", got)
	}
	want := time.UnixMilli(1700000000000).Format("2006-01-02 15:04")
	if got := formatShortTimestamp(1700000000000); got != want {
		t.Fatalf("short timestamp: got=%q want=%q", got, want)
	}
}
