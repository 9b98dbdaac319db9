package main

import (
	"context"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newListConversationsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "list-conversations",
		Aliases: []string{"conv"},
		Short:   "List conversations that have messages",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()
			return listConversations(ctx, store, cmd.OutOrStdout())
		},
	}
}

func listConversations(ctx context.Context, store *messageStore, w io.Writer) error {
	convs, err := store.conversations(ctx)
	if err != nil {
		return err
	}
	for _, conv := range convs {
		fmt.Fprintf(w, "%6d  %s\n", conv.messageCount, conv.recipient.DetailedDisplayName())
	}
	return nil
}

func newListAttachmentsCommand(a *app) *cobra.Command {
	var (
		intervalArg string
		selectors   []string
	)
	cmd := &cobra.Command{
		Use:     "list-attachments",
		Aliases: []string{"att"},
		Short:   "List message attachments and their metadata",
		Args:    cobra.NoArgs,
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
			opts := exportOptions{
				onError:   a.cfg.OnError,
				ival:      ival,
				selectors: selectors,
			}
			return listAttachments(ctx, store, cmd.OutOrStdout(), opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&intervalArg, "interval", "s", "", "only messages sent within min,max")
	f.StringArrayVarP(&selectors, "conversation", "c", nil, "select a conversation (repeatable)")
	return cmd
}

// listAttachments prints one line per attachment of the selected
// conversations. Pending attachments have no file yet.
func listAttachments(ctx context.Context, store *messageStore, w io.Writer, opts exportOptions) error {
	convs, err := store.conversations(ctx)
	if err != nil {
		return err
	}
	if convs, err = selectConversations(convs, opts.selectors); err != nil {
		return err
	}

	for _, conv := range convs {
		msgs, err := store.conversationMessages(ctx, conv, opts.ival, messageErrorPolicy(opts.onError, conv))
		if err != nil {
			return err
		}
		for _, msg := range msgs {
			for _, att := range msg.Attachments {
				path := att.Path
				if att.Pending || path == "" {
					path = "(pending)"
				}
				fmt.Fprintf(w, "%s  %s  %s  %s (%s, %s)\n",
					formatShortTimestamp(att.TimeSent),
					conv.displayName(),
					path,
					fileNameOrDefault(att.FileName),
					att.ContentType,
					humanize.Bytes(uint64(max(att.Size, 0))))
			}
		}
	}
	return nil
}
