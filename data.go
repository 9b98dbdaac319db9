package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/tidwall/gjson"
	_ "modernc.org/sqlite"

	"github.com/tbvdm/sigtop/internal/signal"
)

const (
	// For database version 19
	recipientQuery19 = "SELECT " +
		"id, " +
		"json, " +
		"type, " +
		"name, " +
		"profileName, " +
		"profileFamilyName, " +
		"profileFullName, " +
		"iif(type = 'private', '+' || id, NULL), " + // e164
		"NULL, " + // service id
		"iif(type = 'group', id, NULL) " + // group id
		"FROM conversations"

	// For database versions [20, 87]
	recipientQuery20 = "SELECT " +
		"id, json, type, name, profileName, profileFamilyName, profileFullName, " +
		"e164, uuid, groupId " +
		"FROM conversations"

	// For database versions >= 88
	recipientQuery88 = "SELECT " +
		"id, json, type, name, profileName, profileFamilyName, profileFullName, " +
		"e164, serviceId, groupId " +
		"FROM conversations"
)

const (
	// For database versions [8, 19]
	messageSelect8 = "SELECT " +
		"m.conversationId, m.source, m.type, m.body, m.json, m.sent_at " +
		"FROM messages AS m "

	// For database versions [20, 87]
	messageSelect20 = "SELECT " +
		"m.conversationId, c.id, m.type, m.body, m.json, m.sent_at " +
		"FROM messages AS m " +
		"LEFT JOIN conversations AS c ON m.sourceUuid = c.uuid "

	// For database versions >= 88
	messageSelect88 = "SELECT " +
		"m.conversationId, c.id, m.type, m.body, m.json, m.sent_at " +
		"FROM messages AS m " +
		"LEFT JOIN conversations AS c ON m.sourceServiceId = c.serviceId "

	messageWhereConversationID  = "WHERE m.conversationId = ? "
	messageWhereSentBefore      = "AND (m.sent_at <= ? OR m.sent_at IS NULL) "
	messageWhereSentAfter       = "AND m.sent_at >= ? "
	messageWhereSentBetween     = "AND m.sent_at BETWEEN ? AND ? "
	messageOrder                = "ORDER BY m.received_at, m.sent_at"
	conversationMessageCountSQL = "SELECT conversationId, COUNT(*) FROM messages WHERE conversationId IS NOT NULL GROUP BY conversationId"
)

type sqlQueryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// conversation is one conversation with at least one message.
type conversation struct {
	id           string
	recipient    *signal.Recipient
	messageCount int
}

func (c conversation) displayName() string {
	return c.recipient.DisplayName()
}

// messageStore reads conversations and messages from a Signal Desktop
// database.
type messageStore struct {
	db         *sql.DB
	path       string
	dbVersion  int
	recipients *signal.Directory
}

// messageErrorHandler decides what happens to a message whose JSON cannot be
// decoded. Returning nil skips the message; returning an error stops the
// load.
type messageErrorHandler func(msg *signal.Message, err error) error

func openSignalDB(path string) (*sql.DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open sqlite db %q: %w", path, err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db %q: %w", path, err)
	}
	return db, nil
}

// openMessageStore opens the database at path and loads its recipients.
func openMessageStore(ctx context.Context, path string) (*messageStore, error) {
	db, err := openSignalDB(path)
	if err != nil {
		return nil, err
	}

	version, err := readDatabaseVersion(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	recipients, err := loadRecipients(ctx, db, version)
	if err != nil {
		db.Close()
		return nil, err
	}
	log.Debug("opened database", "path", path, "version", version, "recipients", recipients.Len())

	return &messageStore{
		db:         db,
		path:       path,
		dbVersion:  version,
		recipients: recipients,
	}, nil
}

func (s *messageStore) Close() error {
	return s.db.Close()
}

func readDatabaseVersion(ctx context.Context, q sqlQueryer) (int, error) {
	var version int
	if err := q.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("read database version: %w", err)
	}
	if version < 19 {
		return 0, fmt.Errorf("database version %d not supported", version)
	}
	return version, nil
}

func loadRecipients(ctx context.Context, q sqlQueryer, version int) (*signal.Directory, error) {
	query := recipientQuery88
	switch {
	case version < 20:
		query = recipientQuery19
	case version < 88:
		query = recipientQuery20
	}

	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query recipients: %w", err)
	}
	defer rows.Close()

	dir := signal.NewDirectory()
	for rows.Next() {
		var (
			id, kind                                   string
			data, name, profileName, profileFamilyName sql.NullString
			profileFullName, phone, serviceID, groupID sql.NullString
		)
		if err := rows.Scan(&id, &data, &kind, &name, &profileName, &profileFamilyName, &profileFullName, &phone, &serviceID, &groupID); err != nil {
			return nil, fmt.Errorf("scan recipient row: %w", err)
		}

		var r *signal.Recipient
		switch kind {
		case "private":
			r = &signal.Recipient{
				Type: signal.RecipientTypeContact,
				Contact: signal.Contact{
					ACI:               serviceID.String,
					Name:              signal.TrimBidiChars(name.String),
					ProfileName:       profileName.String,
					ProfileFamilyName: profileFamilyName.String,
					ProfileJoinedName: profileFullName.String,
					Phone:             phone.String,
					Username:          gjson.Get(data.String, "username").String(),
				},
			}
		case "group":
			r = &signal.Recipient{
				Type: signal.RecipientTypeGroup,
				Group: signal.Group{
					ID:   groupID.String,
					Name: name.String,
				},
			}
		default:
			return nil, fmt.Errorf("conversation %q: unknown recipient type %q", id, kind)
		}
		dir.Add(id, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recipient rows: %w", err)
	}
	return dir, nil
}

// conversations returns the conversations that have messages, ordered by
// display name.
func (s *messageStore) conversations(ctx context.Context) ([]conversation, error) {
	rows, err := s.db.QueryContext(ctx, conversationMessageCountSQL)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()

	var convs []conversation
	for rows.Next() {
		var conv conversation
		if err := rows.Scan(&conv.id, &conv.messageCount); err != nil {
			return nil, fmt.Errorf("scan conversation row: %w", err)
		}
		conv.recipient = s.recipients.RecipientFromConversationID(conv.id)
		if conv.recipient == nil {
			log.Warn("cannot find conversation recipient", "id", conv.id)
		}
		convs = append(convs, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversation rows: %w", err)
	}

	sort.SliceStable(convs, func(i, j int) bool {
		a, b := strings.ToLower(convs[i].displayName()), strings.ToLower(convs[j].displayName())
		if a != b {
			return a < b
		}
		return convs[i].id < convs[j].id
	})
	return convs, nil
}

func (s *messageStore) messageQuery(ival interval) (string, []any) {
	query := messageSelect88
	switch {
	case s.dbVersion < 20:
		query = messageSelect8
	case s.dbVersion < 88:
		query = messageSelect20
	}
	query += messageWhereConversationID

	var args []any
	switch {
	case ival.min.IsZero() && ival.max.IsZero():
	case ival.min.IsZero():
		query += messageWhereSentBefore
		args = append(args, ival.max.UnixMilli())
	case ival.max.IsZero():
		query += messageWhereSentAfter
		args = append(args, ival.min.UnixMilli())
	default:
		query += messageWhereSentBetween
		args = append(args, ival.min.UnixMilli(), ival.max.UnixMilli())
	}
	return query + messageOrder, args
}

// conversationMessages loads and decodes the messages of conv sent within
// ival. Messages that fail to decode are passed to onError.
func (s *messageStore) conversationMessages(ctx context.Context, conv conversation, ival interval, onError messageErrorHandler) ([]signal.Message, error) {
	query, args := s.messageQuery(ival)
	rows, err := s.db.QueryContext(ctx, query, append([]any{conv.id}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("query messages for conversation %q: %w", conv.id, err)
	}
	defer rows.Close()

	decoder := signal.NewDecoder(s.recipients, s.dbVersion)
	var msgs []signal.Message
	for rows.Next() {
		var (
			conversationID             string
			sourceID, kind, body, data sql.NullString
			sentAt                     sql.NullInt64
		)
		if err := rows.Scan(&conversationID, &sourceID, &kind, &body, &data, &sentAt); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}

		msg := signal.Message{
			ConversationID: conversationID,
			Conversation:   conv.recipient,
			Type:           kind.String,
			TimeSent:       sentAt.Int64,
			Body:           signal.MessageBody{Text: body.String},
			JSON:           data.String,
		}
		if sourceID.Valid {
			msg.Source = s.recipients.RecipientFromConversationID(sourceID.String)
			if msg.Source == nil {
				log.Debug("cannot find source recipient", "id", sourceID.String)
			}
		}
		if err := decoder.Decode(&msg); err != nil {
			if herr := onError(&msg, err); herr != nil {
				return nil, herr
			}
			continue
		}
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate message rows: %w", err)
	}
	return msgs, nil
}

// checkDatabase runs the integrity and foreign key checks and returns their
// findings.
func checkDatabase(ctx context.Context, q sqlQueryer) ([]string, error) {
	rows, err := q.QueryContext(ctx, "PRAGMA integrity_check")
	if err != nil {
		return nil, fmt.Errorf("integrity check: %w", err)
	}
	var findings []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan integrity check row: %w", err)
		}
		findings = append(findings, line)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate integrity check rows: %w", err)
	}
	if len(findings) == 1 && findings[0] == "ok" {
		findings = nil
	}

	rows, err = q.QueryContext(ctx, "PRAGMA foreign_key_check")
	if err != nil {
		return nil, fmt.Errorf("foreign key check: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			table, parent string
			rowID         sql.NullInt64
			fkid          int
		)
		if err := rows.Scan(&table, &rowID, &parent, &fkid); err != nil {
			return nil, fmt.Errorf("scan foreign key check row: %w", err)
		}
		if rowID.Valid {
			findings = append(findings, fmt.Sprintf("foreign key violation in row %d of table %s", rowID.Int64, table))
		} else {
			findings = append(findings, fmt.Sprintf("foreign key violation in table %s", table))
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate foreign key check rows: %w", err)
	}
	return findings, nil
}

func formatTimestamp(msec int64) string {
	if msec < 0 {
		return "unknown"
	}
	return time.UnixMilli(msec).Format("Mon, 2 Jan 2006 15:04:05 -0700")
}

func formatShortTimestamp(msec int64) string {
	return time.UnixMilli(msec).Format("2006-01-02 15:04")
}
