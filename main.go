package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/wordwrap"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/tbvdm/sigtop/internal/signal"
)

type screen int

const (
	screenConversations screen = iota
	screenMessages
)

// model tracks browser state across both navigation levels.
type model struct {
	ctx        context.Context
	screen     screen
	store      *messageStore
	skipErrors bool

	conversations      []conversation
	conversationCursor int
	messages           []signal.Message
	skipped            int

	msgViewport viewport.Model
	width       int
	height      int

	status string
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("69"))
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))

	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("230")).Background(lipgloss.Color("62"))

	incomingStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	outgoingStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	quoteStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	attachmentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	mentionStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
)

// app carries the configuration shared by all commands.
type app struct {
	v          *viper.Viper
	configFile string
	cfg        config
}

func main() {
	cmd, err := newRootCommand().ExecuteContextC(context.Background())
	if err != nil {
		name := "sigtop"
		if cmd != nil {
			name = cmd.CommandPath()
		}
		fmt.Fprintf(os.Stderr, "%s failed: %v\n", name, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:   "sigtop",
		Short: "Export and browse Signal Desktop messages",
		Long: `sigtop reads the message database of Signal Desktop. Without a command
it opens an interactive browser of conversations and messages.`,
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBrowser(cmd.Context(), a.cfg)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configFile, "config", "", "config file (default $XDG_CONFIG_HOME/sigtop/sigtop.yaml)")
	pf.StringP("signal-dir", "d", "", "Signal Desktop directory")
	pf.String("db", "", "database file (default <signal-dir>/sql/db.sqlite)")
	pf.String("log-level", "", "log level: debug, info, warn or error")
	mustBindFlag(a.v, "signal-dir", pf.Lookup("signal-dir"))
	mustBindFlag(a.v, "db-path", pf.Lookup("db"))
	mustBindFlag(a.v, "log-level", pf.Lookup("log-level"))

	root.AddCommand(
		newExportMessagesCommand(a),
		newListConversationsCommand(a),
		newListAttachmentsCommand(a),
		newExportKeyCommand(a),
		newCheckDatabaseCommand(a),
	)
	return root
}

func (a *app) load() error {
	cfg, err := loadConfig(a.v, a.configFile)
	if err != nil {
		return err
	}
	a.cfg = cfg
	newLogger(cfg.LogLevel)
	log.Debug("loaded config", "file", a.v.ConfigFileUsed(), "signal-dir", cfg.SignalDir)
	return nil
}

func (a *app) openStore(ctx context.Context) (*messageStore, error) {
	return openMessageStore(ctx, a.cfg.databasePath())
}

func runBrowser(ctx context.Context, cfg config) error {
	store, err := openMessageStore(ctx, cfg.databasePath())
	if err != nil {
		return err
	}
	defer store.Close()

	// Log lines would corrupt the alternate screen.
	log.Default().SetOutput(io.Discard)
	defer log.Default().SetOutput(os.Stderr)

	m := newModel(ctx, store, cfg.OnError == policySkip)
	program := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err = program.Run()
	return err
}

func newModel(ctx context.Context, store *messageStore, skipErrors bool) model {
	m := model{
		ctx:        ctx,
		screen:     screenConversations,
		store:      store,
		skipErrors: skipErrors,
	}
	if err := m.loadConversations(); err != nil {
		m.status = "Error: " + err.Error()
	}
	return m
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeViewport()
		m.refreshMessageViewport()
		return m, nil
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			return m, tea.Quit
		}
		return m.handleKey(msg)
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.screen {
	case screenConversations:
		return m.handleConversationsKey(msg)
	case screenMessages:
		return m.handleMessagesKey(msg)
	default:
		return m, nil
	}
}

func (m model) handleConversationsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		m.conversationCursor = clamp(m.conversationCursor-1, 0, len(m.conversations)-1)
	case "down", "j":
		m.conversationCursor = clamp(m.conversationCursor+1, 0, len(m.conversations)-1)
	case "g":
		m.conversationCursor = 0
	case "G":
		m.conversationCursor = max(0, len(m.conversations)-1)
	case "enter":
		conv, ok := m.currentConversation()
		if !ok {
			m.status = "No conversation selected"
			return m, nil
		}
		if err := m.loadMessages(conv); err != nil {
			m.status = "Error: " + err.Error()
			return m, nil
		}
		m.screen = screenMessages
		m.refreshMessageViewport()
		m.status = m.loadedStatus("Loaded", conv)
	case "r":
		if err := m.loadConversations(); err != nil {
			m.status = "Error: " + err.Error()
			return m, nil
		}
		m.conversationCursor = clamp(m.conversationCursor, 0, len(m.conversations)-1)
	}
	return m, nil
}

func (m model) handleMessagesKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		m.msgViewport.LineUp(1)
	case "down", "j":
		m.msgViewport.LineDown(1)
	case "pgup":
		m.msgViewport.HalfViewUp()
	case "pgdown":
		m.msgViewport.HalfViewDown()
	case "g":
		m.msgViewport.GotoTop()
	case "G":
		m.msgViewport.GotoBottom()
	case "b", "backspace":
		m.screen = screenConversations
		m.messages = nil
		m.status = "Back to conversations"
	case "r":
		conv, ok := m.currentConversation()
		if !ok {
			m.status = "No conversation selected"
			return m, nil
		}
		if err := m.loadMessages(conv); err != nil {
			m.status = "Error: " + err.Error()
			return m, nil
		}
		m.refreshMessageViewport()
		m.status = m.loadedStatus("Reloaded", conv)
	}
	return m, nil
}

func (m *model) loadConversations() error {
	convs, err := m.store.conversations(m.ctx)
	if err != nil {
		return err
	}
	m.conversations = convs
	m.status = fmt.Sprintf("Loaded %d conversations from %s", len(convs), m.store.path)
	return nil
}

func (m *model) loadMessages(conv conversation) error {
	skipped := 0
	onError := func(msg *signal.Message, err error) error {
		if !m.skipErrors {
			return fmt.Errorf("message sent at %d: %w", msg.TimeSent, err)
		}
		skipped++
		return nil
	}
	msgs, err := m.store.conversationMessages(m.ctx, conv, interval{}, onError)
	if err != nil {
		return err
	}
	m.messages = msgs
	m.skipped = skipped
	return nil
}

func (m model) loadedStatus(verb string, conv conversation) string {
	status := fmt.Sprintf("%s %d messages from %s", verb, len(m.messages), conv.displayName())
	if m.skipped > 0 {
		status += fmt.Sprintf(" (%d skipped)", m.skipped)
	}
	return status
}

func (m model) View() string {
	if m.width <= 0 || m.height <= 0 {
		return "Initializing sigtop..."
	}

	header := m.renderHeader()
	body := m.renderBody()
	footer := helpStyle.Render(m.status)
	return header + "\n" + body + "\n" + footer
}

func (m model) renderHeader() string {
	title := "sigtop"
	switch m.screen {
	case screenConversations:
		title += " | Conversations"
	case screenMessages:
		title += " | Messages"
		if conv, ok := m.currentConversation(); ok {
			title += " | " + conv.recipient.DetailedDisplayName()
		}
	}
	return titleStyle.Render(title) + "\n" + helpStyle.Render(m.renderHelp())
}

func (m model) renderHelp() string {
	switch m.screen {
	case screenConversations:
		return "up/down: move | g/G: top/bottom | enter: open conversation | r: reload | q: quit"
	case screenMessages:
		return "j/k/up/down: scroll | pgup/pgdown | g/G: top/bottom | r: reload | b: back | q: quit"
	default:
		return "q: quit"
	}
}

func (m model) renderBody() string {
	switch m.screen {
	case screenConversations:
		return m.renderConversations()
	case screenMessages:
		return m.renderMessages()
	default:
		return "Unknown screen"
	}
}

func (m model) renderConversations() string {
	if len(m.conversations) == 0 {
		return "No conversations with messages found"
	}
	visible := max(1, m.height-4)
	offset := listOffset(m.conversationCursor, len(m.conversations), visible)
	nameWidth := max(10, m.width-16)

	lines := make([]string, 0, visible)
	for idx := offset; idx < min(len(m.conversations), offset+visible); idx++ {
		conv := m.conversations[idx]
		name := runewidth.FillRight(runewidth.Truncate(conv.displayName(), nameWidth, "..."), nameWidth)
		entry := fmt.Sprintf("%s  %6d", name, conv.messageCount)
		line := "  " + entry
		if idx == m.conversationCursor {
			line = selectedStyle.Render("> " + entry)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func (m model) renderMessages() string {
	if len(m.messages) == 0 {
		return "No messages in this conversation"
	}
	if m.msgViewport.Width <= 0 || m.msgViewport.Height <= 0 {
		return "Resizing message viewport..."
	}
	return m.msgViewport.View()
}

func (m *model) resizeViewport() {
	width := max(20, m.width-2)
	height := max(3, m.height-4)
	if m.msgViewport.Width == 0 {
		m.msgViewport = viewport.New(width, height)
		return
	}
	m.msgViewport.Width = width
	m.msgViewport.Height = height
}

func (m *model) refreshMessageViewport() {
	if m.msgViewport.Width <= 0 || m.msgViewport.Height <= 0 {
		return
	}
	if len(m.messages) == 0 {
		m.msgViewport.SetContent("No messages loaded")
		m.msgViewport.GotoTop()
		return
	}
	m.msgViewport.SetContent(renderMessageText(m.messages, m.msgViewport.Width))
	m.msgViewport.GotoBottom()
}

func renderMessageText(messages []signal.Message, width int) string {
	maxWidth := max(20, width-2)
	chunks := make([]string, 0, len(messages))
	for i := range messages {
		msg := &messages[i]
		style := incomingStyle
		sender := msg.Source.DisplayName()
		if msg.IsOutgoing() {
			style = outgoingStyle
			sender = "You"
		}
		header := formatShortTimestamp(msg.TimeSent) + "  " + sender

		var parts []string
		if qte := msg.Quote; qte != nil {
			quoted := qte.Recipient.DisplayName() + ": " + oneLine(highlightMentions(qte.Body))
			parts = append(parts, quoteStyle.Render(indentLines(wrapText(quoted, maxWidth-2), "> ")))
		}
		if body := highlightMentions(msg.Body); strings.TrimSpace(body) != "" {
			parts = append(parts, wrapText(body, maxWidth))
		}
		for _, att := range msg.Attachments {
			parts = append(parts, attachmentStyle.Render(formatAttachment(att)))
		}
		for _, rct := range msg.Reactions {
			parts = append(parts, helpStyle.Render(fmt.Sprintf("%s reacted %s", rct.Recipient.DisplayName(), rct.Emoji)))
		}
		if len(parts) == 0 {
			parts = append(parts, "(no text content)")
		}

		body := indentLines(strings.Join(parts, "\n"), "  ")
		chunks = append(chunks, style.Bold(true).Render(header)+"\n"+body)
	}
	return strings.Join(chunks, "\n\n")
}

// highlightMentions styles the spliced mention names of body.
func highlightMentions(body signal.MessageBody) string {
	if len(body.Mentions) == 0 {
		return body.Text
	}
	var b strings.Builder
	prev := 0
	for _, mnt := range body.Mentions {
		start, end := mnt.Start, mnt.Start+mnt.Length
		if start < prev || end > len(body.Text) {
			continue
		}
		b.WriteString(body.Text[prev:start])
		b.WriteString(mentionStyle.Render(body.Text[start:end]))
		prev = end
	}
	b.WriteString(body.Text[prev:])
	return b.String()
}

func formatAttachment(att signal.Attachment) string {
	name := att.FileName
	if name == "" {
		name = "(no file name)"
	}
	details := att.ContentType
	if att.Size > 0 {
		details += ", " + humanize.Bytes(uint64(att.Size))
	}
	if att.Pending {
		details += ", pending"
	}
	return fmt.Sprintf("[attachment] %s (%s)", name, details)
}

func wrapText(text string, width int) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ""
	}
	wrapped := wordwrap.String(trimmed, width)
	return strings.ReplaceAll(wrapped, "\r", "")
}

func indentLines(text, prefix string) string {
	lines := strings.Split(text, "\n")
	for idx := range lines {
		lines[idx] = prefix + lines[idx]
	}
	return strings.Join(lines, "\n")
}

func oneLine(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

func (m model) currentConversation() (conversation, bool) {
	if len(m.conversations) == 0 || m.conversationCursor < 0 || m.conversationCursor >= len(m.conversations) {
		return conversation{}, false
	}
	return m.conversations[m.conversationCursor], true
}

func listOffset(cursor, total, visible int) int {
	if total <= visible {
		return 0
	}
	offset := cursor - visible/2
	maxOffset := total - visible
	return clamp(offset, 0, maxOffset)
}

func clamp(value, low, high int) int {
	if high < low {
		return low
	}
	if value < low {
		return low
	}
	if value > high {
		return high
	}
	return value
}

func mustBindFlag(v *viper.Viper, key string, flag *pflag.Flag) {
	if err := v.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("bind flag %q: %v", key, err))
	}
}
