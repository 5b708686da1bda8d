package client

import (
	"encoding/base64"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/koscakluka/ema-room/core/playback"
	"github.com/muesli/reflow/wordwrap"
)

const (
	addCommand = "/add"
	pngDataURL = "data:image/png;base64,"

	headerHeight = 1
	footerHeight = 2
	inputHeight  = 1
)

// Sender is what the terminal sends perceptions through.
type Sender interface {
	SendMessage(text string) error
	AddObject(image, description string) error
}

type (
	messageMsg      Message
	errorMsg        struct{ err error }
	talkingMsg      bool
	disconnectedMsg struct{}
	sentMsg         struct{ text string }
	sendFailedMsg   struct{ err error }
	hearingMsg      string
	heardMsg        string
)

// Feed carries what happens in the room into the terminal. Its methods are
// safe to use as client and scheduler callbacks.
type Feed struct {
	msgs     chan tea.Msg
	done     chan struct{}
	stopOnce sync.Once
}

func NewFeed() *Feed {
	return &Feed{msgs: make(chan tea.Msg), done: make(chan struct{})}
}

func (f *Feed) Message(m Message) { f.send(messageMsg(m)) }
func (f *Feed) Error(err error) { f.send(errorMsg{err: err}) }
func (f *Feed) TalkingStarted(playback.Key) { f.send(talkingMsg(true)) }
func (f *Feed) TalkingStopped(playback.Key) { f.send(talkingMsg(false)) }
func (f *Feed) Disconnected() { f.send(disconnectedMsg{}) }
func (f *Feed) PlaybackFailed(err *playback.PlaybackError) { f.send(errorMsg{err: err}) }
func (f *Feed) Hearing(transcript string) { f.send(hearingMsg(transcript)) }
func (f *Feed) Heard(transcript string) { f.send(heardMsg(transcript)) }

// Stop releases everyone still sending into the feed.
func (f *Feed) Stop() {
	f.stopOnce.Do(func() { close(f.done) })
}

func (f *Feed) send(msg tea.Msg) {
	select {
	case f.msgs <- msg:
	case <-f.done:
	}
}

func (f *Feed) next() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-f.msgs:
			return msg
		case <-f.done:
			return nil
		}
	}
}

// Model is the terminal view of the room: the soul's messages, whether it
// is talking and a prompt to talk back or drop objects into the room.
type Model struct {
	sender   Sender
	feed     *Feed
	soulName string
	readFile func(string) ([]byte, error)

	viewport  viewport.Model
	textinput textinput.Model
	spinner   spinner.Model
	styles    styles

	width    int
	messages []string
	talking  bool
	status   string
	err      error
	gone     bool
}

func NewModel(sender Sender, feed *Feed, soulName string) Model {
	styles := defaultStyles()

	ti := textinput.New()
	ti.Placeholder = "Say something, or /add <image.png> [description] (Ctrl+C to exit)"
	ti.Focus()
	ti.Prompt = "│ "
	ti.CharLimit = 2048
	ti.Width = 80
	ti.PromptStyle = styles.Prompt

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Spinner

	vp := viewport.New(80, 20)
	vp.SetContent("")

	return Model{
		sender:    sender,
		feed:      feed,
		soulName:  soulName,
		readFile:  os.ReadFile,
		viewport:  vp,
		textinput: ti,
		spinner:   sp,
		styles:    styles,
		width:     80,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spinner.Tick,
		m.feed.next(),
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.feed.Stop()
			return m, tea.Quit
		case tea.KeyEnter:
			input := strings.TrimSpace(m.textinput.Value())
			m.textinput.Reset()
			if input == "" {
				return m, nil
			}
			return m, m.send(input)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-headerHeight-footerHeight-inputHeight, 1)
		m.textinput.Width = max(msg.Width-4, 1)
		m.refresh()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case messageMsg:
		// A fragment is shown once even when the soul repeats itself.
		if !slices.Contains(m.messages, msg.Text) {
			m.messages = append(m.messages, msg.Text)
			m.refresh()
		}
		return m, m.feed.next()

	case talkingMsg:
		m.talking = bool(msg)
		return m, m.feed.next()

	case errorMsg:
		m.err = msg.err
		return m, m.feed.next()

	case hearingMsg:
		m.status = "hearing: " + string(msg)
		return m, m.feed.next()

	case heardMsg:
		m.status = "said: " + string(msg)
		m.err = nil
		return m, m.feed.next()

	case disconnectedMsg:
		m.gone = true
		m.talking = false
		return m, m.feed.next()

	case sentMsg:
		m.status = msg.text
		m.err = nil
		return m, nil

	case sendFailedMsg:
		m.err = msg.err
		return m, nil
	}

	var cmd tea.Cmd
	m.textinput, cmd = m.textinput.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// send turns prompt input into a perception. Sending happens off the update
// loop.
func (m Model) send(input string) tea.Cmd {
	sender, readFile := m.sender, m.readFile

	if rest, ok := strings.CutPrefix(input, addCommand); ok && (rest == "" || rest[0] == ' ') {
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			return func() tea.Msg { return sendFailedMsg{err: fmt.Errorf("usage: %s <image.png> [description]", addCommand)} }
		}
		path, description := fields[0], strings.Join(fields[1:], " ")
		return func() tea.Msg {
			image, err := readFile(path)
			if err != nil {
				return sendFailedMsg{err: fmt.Errorf("failed to read image: %w", err)}
			}
			if err := sender.AddObject(pngDataURL+base64.StdEncoding.EncodeToString(image), description); err != nil {
				return sendFailedMsg{err: err}
			}
			return sentMsg{text: fmt.Sprintf("added %s to the room", path)}
		}
	}

	return func() tea.Msg {
		if err := sender.SendMessage(input); err != nil {
			return sendFailedMsg{err: err}
		}
		return sentMsg{text: "said: " + input}
	}
}

func (m *Model) refresh() {
	width := max(m.width-4, 10)
	rendered := make([]string, 0, len(m.messages))
	for _, message := range m.messages {
		rendered = append(rendered, m.styles.Message.Render(wordwrap.String(message, width)))
	}
	m.viewport.SetContent(strings.Join(rendered, "\n"))
	m.viewport.GotoBottom()
}

func (m Model) View() string {
	header := m.styles.Header.Render(fmt.Sprintf("%s is trapped in a room", m.soulName))
	if m.talking {
		header = lipgloss.JoinHorizontal(lipgloss.Center, header, " ", m.spinner.View(), m.styles.Talking.Render(m.soulName+" is talking"))
	}

	var footer string
	switch {
	case m.gone:
		footer = m.styles.Error.Render("disconnected from the room")
	case m.err != nil:
		footer = m.styles.Error.Render(m.err.Error())
	default:
		footer = m.styles.Muted.Render(m.status)
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		header,
		m.viewport.View(),
		footer,
		m.textinput.View(),
	)
}

// Messages is what the terminal currently shows, oldest first.
func (m Model) Messages() []string {
	return append([]string(nil), m.messages...)
}
