package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/tidwall/pretty"

	"github.com/tbvdm/sigtop/internal/signal"
)

type exportOptions struct {
	format      string
	onError     string
	incremental bool
	ival        interval
	selectors   []string
}

func newExportMessagesCommand(a *app) *cobra.Command {
	var (
		intervalArg string
		selectors   []string
	)
	cmd := &cobra.Command{
		Use:     "export-messages [flags] [directory]",
		Aliases: []string{"msg"},
		Short:   "Export messages to one file per conversation",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ival, err := parseOptionalInterval(intervalArg)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			opts := exportOptions{
				format:      a.cfg.Format,
				onError:     a.cfg.OnError,
				incremental: a.cfg.Incremental,
				ival:        ival,
				selectors:   selectors,
			}
			return exportMessages(ctx, store, dir, opts)
		},
	}

	f := cmd.Flags()
	f.StringP("format", "f", "", "output format: text, text-short or json")
	f.String("on-error", "", "what to do with undecodable messages: abort or skip")
	f.BoolP("incremental", "i", false, "rewrite existing export files instead of failing")
	f.StringVarP(&intervalArg, "interval", "s", "", "only messages sent within min,max")
	f.StringArrayVarP(&selectors, "conversation", "c", nil, "select a conversation (repeatable)")
	mustBindFlag(a.v, "format", f.Lookup("format"))
	mustBindFlag(a.v, "on-error", f.Lookup("on-error"))
	mustBindFlag(a.v, "incremental", f.Lookup("incremental"))
	return cmd
}

func parseOptionalInterval(str string) (interval, error) {
	if str == "" {
		return interval{}, nil
	}
	return parseInterval(str)
}

// exportMessages writes the selected conversations into dir, one file each.
// Conversations without messages in the interval produce no file.
func exportMessages(ctx context.Context, store *messageStore, dir string, opts exportOptions) error {
	if err := os.MkdirAll(dir, 0o777); err != nil {
		return err
	}

	convs, err := store.conversations(ctx)
	if err != nil {
		return err
	}
	if convs, err = selectConversations(convs, opts.selectors); err != nil {
		return err
	}

	used := make(map[string]bool)
	exported := 0
	for _, conv := range convs {
		ok, err := exportConversation(ctx, store, dir, conv, opts, used)
		if err != nil {
			return err
		}
		if ok {
			exported++
		}
	}
	log.Info("exported messages", "conversations", exported, "dir", dir)
	return nil
}

func exportConversation(ctx context.Context, store *messageStore, dir string, conv conversation, opts exportOptions, used map[string]bool) (bool, error) {
	msgs, err := store.conversationMessages(ctx, conv, opts.ival, messageErrorPolicy(opts.onError, conv))
	if err != nil {
		return false, err
	}
	if len(msgs) == 0 {
		log.Debug("no messages to export", "conversation", conv.displayName())
		return false, nil
	}

	ext := ".txt"
	if opts.format == formatJSON {
		ext = ".json"
	}
	path := filepath.Join(dir, conversationFilename(conv, ext, used))
	flags := os.O_WRONLY | os.O_CREATE
	if opts.incremental {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0o666)
	if errors.Is(err, fs.ErrExist) {
		return false, fmt.Errorf("%s already exists", path)
	}
	if err != nil {
		return false, err
	}

	w := bufio.NewWriter(f)
	switch opts.format {
	case formatJSON:
		writeJSONMessages(w, msgs)
	case formatTextShort:
		writeTextShortMessages(w, msgs)
	default:
		writeTextMessages(w, conv, msgs)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return false, err
	}
	log.Debug("exported conversation", "conversation", conv.displayName(), "messages", len(msgs), "file", path)
	return true, nil
}

// messageErrorPolicy returns the handler for messages of conv that cannot be
// decoded. In skip mode the message is logged and left out.
func messageErrorPolicy(policy string, conv conversation) messageErrorHandler {
	return func(msg *signal.Message, err error) error {
		if policy == policySkip {
			log.Warn("skipping message", "conversation", conv.displayName(), "sent", msg.TimeSent, "err", err)
			return nil
		}
		return fmt.Errorf("conversation %s: message sent at %d: %w", conv.displayName(), msg.TimeSent, err)
	}
}

// conversationFilename derives a unique file name from the detailed display
// name of conv.
func conversationFilename(conv conversation, ext string, used map[string]bool) string {
	base := conv.recipient.DetailedDisplayName()
	name := sanitizeFilename(base + ext)
	for n := 2; used[name]; n++ {
		name = sanitizeFilename(base + " (" + strconv.Itoa(n) + ")" + ext)
	}
	used[name] = true
	return name
}

func sanitizeFilename(name string) string {
	if name == "" || name == "." || name == ".." {
		return name + "_"
	}
	return strings.Map(func(r rune) rune {
		if r == '/' || r == 0 {
			return '_'
		}
		return r
	}, name)
}

// writeJSONMessages writes the stored JSON of each message on its own line.
func writeJSONMessages(w io.Writer, msgs []signal.Message) {
	for i := range msgs {
		data := []byte(msgs[i].JSON)
		if bytes.ContainsAny(data, "\r\n") {
			data = pretty.Ugly(data)
		}
		w.Write(data)
		io.WriteString(w, "\n")
	}
}

func writeTextMessages(w io.Writer, conv conversation, msgs []signal.Message) {
	writeTextField(w, "", "Conversation", conv.recipient.DetailedDisplayName())
	fmt.Fprintln(w)
	for i := range msgs {
		writeTextMessage(w, &msgs[i])
	}
}

func writeTextMessage(w io.Writer, msg *signal.Message) {
	if msg.IsOutgoing() {
		writeTextField(w, "", "From", "You")
	} else if msg.Source != nil {
		writeTextField(w, "", "From", msg.Source.DetailedDisplayName())
	}
	kind := msg.Type
	if kind == "" {
		kind = "unknown"
	}
	writeTextField(w, "", "Type", kind)
	if msg.TimeSent != 0 {
		writeTextField(w, "", "Sent", formatTimestamp(msg.TimeSent))
	}
	if !msg.IsOutgoing() {
		writeTextField(w, "", "Received", formatTimestamp(msg.TimeRecv))
	}
	writeTextAttachments(w, "", msg.Attachments)
	for _, rct := range msg.Reactions {
		writeTextField(w, "", "Reaction", fmt.Sprintf("%s from %s", rct.Emoji, rct.Recipient.DetailedDisplayName()))
	}
	if len(msg.Edits) == 0 {
		writeTextQuote(w, "", msg.Quote)
		writeTextBody(w, "", msg.Body.Text)
	} else {
		writeTextField(w, "", "Edited", fmt.Sprintf("%d versions", len(msg.Edits)))
		writeTextEdits(w, msg.Edits)
	}
	fmt.Fprintln(w)
}

func writeTextAttachments(w io.Writer, prefix string, atts []signal.Attachment) {
	for _, att := range atts {
		writeTextField(w, prefix, "Attachment", fmt.Sprintf("%s (%s, %d bytes)", fileNameOrDefault(att.FileName), att.ContentType, att.Size))
	}
}

// writeTextEdits writes every version of an edited message, the latest
// first, each line prefixed with "|".
func writeTextEdits(w io.Writer, edits []signal.Edit) {
	fmt.Fprintln(w)
	const prefix = "|"
	for i := range edits {
		writeTextField(w, prefix, "Version", strconv.Itoa(len(edits)-i))
		writeTextAttachments(w, prefix, edits[i].Attachments)
		writeTextField(w, prefix, "Sent", formatTimestamp(edits[i].TimeEdit))
		writeTextQuote(w, prefix, edits[i].Quote)
		writeTextBody(w, prefix, edits[i].Body.Text)
		if i+1 < len(edits) {
			fmt.Fprintln(w, prefix)
		}
	}
}

func writeTextField(w io.Writer, prefix, field, value string) {
	if prefix != "" {
		prefix += " "
	}
	fmt.Fprintf(w, "%s%s: %s\n", prefix, field, value)
}

func writeTextQuote(w io.Writer, prefix string, qte *signal.Quote) {
	if qte == nil {
		return
	}
	fmt.Fprintln(w, prefix)
	if prefix != "" {
		prefix += " "
	}
	prefix += ">"
	writeTextField(w, prefix, "From", qte.Recipient.DetailedDisplayName())
	writeTextField(w, prefix, "Sent", formatTimestamp(qte.ID))
	for _, att := range qte.Attachments {
		writeTextField(w, prefix, "Attachment", fmt.Sprintf("%s (%s)", fileNameOrDefault(att.FileName), att.ContentType))
	}
	writeTextBody(w, prefix, qte.Body.Text)
}

func writeTextBody(w io.Writer, prefix, text string) {
	if text == "" {
		return
	}
	fmt.Fprintln(w, prefix)
	if prefix != "" {
		prefix += " "
	}
	for _, line := range strings.Split(text, "\n") {
		fmt.Fprintln(w, prefix+line)
	}
}

func fileNameOrDefault(name string) string {
	if name == "" {
		return "no filename"
	}
	return name
}

func writeTextShortMessages(w io.Writer, msgs []signal.Message) {
	for i := range msgs {
		writeTextShortMessage(w, &msgs[i])
	}
}

func writeTextShortMessage(w io.Writer, msg *signal.Message) {
	name := "You"
	if !msg.IsOutgoing() {
		name = msg.Source.DisplayName()
	}
	fmt.Fprintf(w, "%s %s:", formatShortTimestamp(msg.TimeSent), name)
	if msg.Type != "incoming" && msg.Type != "outgoing" {
		fmt.Fprintf(w, " [%s message]", msg.Type)
		fmt.Fprintln(w)
		return
	}

	var details []string
	if msg.Quote != nil {
		details = append(details, fmt.Sprintf("reply to %s on %s", msg.Quote.Recipient.DisplayName(), formatShortTimestamp(msg.Quote.ID)))
	}
	if len(msg.Edits) > 0 {
		details = append(details, "edited")
	}
	if n := len(msg.Attachments); n > 0 {
		plural := ""
		if n > 1 {
			plural = "s"
		}
		details = append(details, fmt.Sprintf("%d attachment%s", n, plural))
	}
	if len(details) > 0 {
		fmt.Fprintf(w, " [%s]", strings.Join(details, ", "))
	}
	if msg.Body.Text != "" {
		fmt.Fprint(w, " "+msg.Body.Text)
	}
	fmt.Fprintln(w)
}
