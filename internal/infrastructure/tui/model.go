// Package tui provides the terminal chat widget.
// Clean Architecture: Framework/driver layer, a bubbletea front-end over one session.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/0xcro3dile/amplon-searchbot/internal/domain/entities"
	"github.com/0xcro3dile/amplon-searchbot/internal/domain/ports"
	"github.com/0xcro3dile/amplon-searchbot/internal/domain/usecases"
	"github.com/0xcro3dile/amplon-searchbot/internal/render"
)

const (
	headerHeight = 2
	inputHeight  = 3
)

// snapshotMsg carries a session change into the program.
type snapshotMsg entities.Snapshot

// submitDoneMsg is returned once a submission has settled.
type submitDoneMsg struct{ err error }

type styles struct {
	title   lipgloss.Style
	user    lipgloss.Style
	bot     lipgloss.Style
	loading lipgloss.Style
	input   lipgloss.Style
	button  lipgloss.Style
	busy    lipgloss.Style
}

func defaultStyles() styles {
	bubble := lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	return styles{
		title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		user:    bubble.BorderForeground(lipgloss.Color("12")),
		bot:     bubble.BorderForeground(lipgloss.Color("8")),
		loading: lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("8")),
		input:   lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(0, 1),
		button:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		busy:    lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
	}
}

// Model is the bubbletea model for one chat session.
type Model struct {
	ctx    context.Context
	sess   *usecases.Session
	search *usecases.SearchUseCase

	// UI Components
	textinput textinput.Model
	viewport  viewport.Model
	spinner   spinner.Model
	styles    styles

	// State
	view   render.View
	width  int
	height int
	ready  bool
}

// NewModel builds the widget for sess.
func NewModel(ctx context.Context, sess *usecases.Session, searchUC *usecases.SearchUseCase) Model {
	ti := textinput.New()
	ti.Placeholder = render.InputPlaceholder
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		ctx:       ctx,
		sess:      sess,
		search:    searchUC,
		textinput: ti,
		spinner:   sp,
		styles:    defaultStyles(),
		view:      render.Build(sess.Snapshot()),
	}
}

// Init starts the cursor blink and the spinner.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spinner.Tick,
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit

		case tea.KeyEnter:
			if m.view.InputDisabled {
				return m, nil
			}
			return m, m.submit(m.textinput.Value())
		}

		if !m.view.InputDisabled {
			m.textinput, tiCmd = m.textinput.Update(msg)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		vpHeight := max(msg.Height-headerHeight-inputHeight, 1)
		if !m.ready {
			m.viewport = viewport.New(msg.Width, vpHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = vpHeight
		}
		m.textinput.Width = max(msg.Width-len(render.BusySendLabel)-8, 10)
		m.refresh()

	case snapshotMsg:
		if msg.Seq < m.view.Version {
			return m, nil
		}
		m.view = render.Build(entities.Snapshot(msg))
		if m.view.InputDisabled {
			m.textinput.Blur()
		} else {
			tiCmd = m.textinput.Focus()
		}
		m.refresh()

	case submitDoneMsg:
		if msg.err == nil {
			m.textinput.Reset()
		}

	case spinner.TickMsg:
		var spCmd tea.Cmd
		m.spinner, spCmd = m.spinner.Update(msg)
		if m.hasLoading() {
			m.refresh()
		}
		return m, spCmd
	}

	if m.ready {
		m.viewport, vpCmd = m.viewport.Update(msg)
	}
	return m, tea.Batch(tiCmd, vpCmd)
}

// submit hands the draft to the search use case off the event loop.
// Session observers call back into the program, so the session must not be
// touched from Update itself.
func (m Model) submit(query string) tea.Cmd {
	ctx, sess, uc := m.ctx, m.sess, m.search
	return func() tea.Msg {
		sess.SetDraft(query)
		err := uc.SubmitDraft(ctx, sess)
		if errors.Is(err, usecases.ErrEmptyQuery) || errors.Is(err, usecases.ErrBusy) {
			return nil
		}
		return submitDoneMsg{err: err}
	}
}

func (m Model) hasLoading() bool {
	for _, b := range m.view.Bubbles {
		if b.Loading != "" {
			return true
		}
	}
	return false
}

func (m *Model) refresh() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

func (m Model) renderTranscript() string {
	width := m.width
	if width <= 0 {
		width = 80
	}
	maxBubble := max(width*3/4, 20)

	parts := make([]string, 0, len(m.view.Bubbles))
	for _, b := range m.view.Bubbles {
		text := render.BubbleText(b)
		if b.Loading != "" {
			text = strings.TrimSuffix(text, b.Loading) + m.spinner.View() + " " + m.styles.loading.Render(b.Loading)
		}

		style, pos := m.styles.bot, lipgloss.Left
		if b.Align == render.AlignRight {
			style, pos = m.styles.user, lipgloss.Right
		}
		box := style.MaxWidth(maxBubble).Render(lipgloss.NewStyle().Width(min(lipgloss.Width(text), maxBubble-4)).Render(text))
		parts = append(parts, lipgloss.PlaceHorizontal(width, pos, box))
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) View() string {
	if !m.ready {
		return render.LoadingText
	}

	label := m.styles.button.Render("[" + m.view.SendLabel + "]")
	if m.view.InputDisabled {
		label = m.styles.busy.Render("[" + m.view.SendLabel + "]")
	}
	input := lipgloss.JoinHorizontal(lipgloss.Center,
		m.styles.input.Render(m.textinput.View()),
		" ",
		label,
	)

	return lipgloss.JoinVertical(lipgloss.Left,
		m.styles.title.Render(m.view.Title),
		"",
		m.viewport.View(),
		input,
	)
}

// Run shows the widget for sess until the user quits or ctx is done, then
// prints the transcript to stdout.
func Run(ctx context.Context, sess *usecases.Session, searchUC *usecases.SearchUseCase) error {
	p := tea.NewProgram(NewModel(ctx, sess, searchUC), tea.WithAltScreen(), tea.WithContext(ctx))

	unsubscribe := sess.Subscribe(usecases.Latest(ports.ObserverFunc(func(snap entities.Snapshot) {
		p.Send(snapshotMsg(snap))
	})))
	defer unsubscribe()

	_, err := p.Run()
	if err != nil && !(errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil) {
		return err
	}

	fmt.Println(render.PlainText(render.Build(sess.Snapshot())))
	return nil
}
