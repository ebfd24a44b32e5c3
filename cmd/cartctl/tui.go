package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/NimbleMarkets/ntcharts/canvas/runes"
	"github.com/NimbleMarkets/ntcharts/linechart/streamlinechart"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/gwillem/cartctl/pkg/cart"
	"github.com/gwillem/cartctl/pkg/console"
	"github.com/gwillem/cartctl/pkg/control"
	"github.com/gwillem/cartctl/pkg/link"
)

const (
	headerHeight = 2 // title + blank line
	legendHeight = 1
	inputHeight  = 1
	footerHeight = 10 // log box height
	maxLogs      = 8  // number of log lines to show
	borderSize   = 2  // chart border
	tableWidth   = 30
)

var seriesColors = map[string]string{
	"throttle": "208", // orange
	"steering": "51",  // cyan
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	chartStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	onStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)

	levelStyles = map[console.Level]lipgloss.Style{
		console.Info:     lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
		console.Error:    lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
		console.Response: lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		console.Text:     lipgloss.NewStyle(),
	}
)

type driveModel struct {
	ctx      context.Context
	sess     *control.Session
	port     string
	input    textinput.Model
	chart    *streamlinechart.Model
	width    int // terminal width
	height   int // terminal height
	logs     []console.Line
	state    cart.State // last state seen after an exchange
	busy     bool
	quitting bool
	err      error // transport failure that ended the UI
}

// resultMsg carries the output of a command run off the UI goroutine, with
// the state read once the exchange is over. The session lock is held for a
// whole exchange, so the view never reads it directly.
type resultMsg struct {
	console.Result
	State cart.State
}

func runLine(ctx context.Context, sess *control.Session, line string) tea.Cmd {
	return func() tea.Msg {
		r := console.Run(ctx, sess, line)
		return resultMsg{Result: r, State: sess.State()}
	}
}

func sendIdle(ctx context.Context, sess *control.Session) tea.Cmd {
	return func() tea.Msg {
		ex, err := sess.SendCurrentState(ctx)
		r := console.Result{Lines: console.ResponseLines(ex.Response)}
		if err != nil {
			r.Err = fmt.Errorf("send idle state: %w", err)
			r.Lines = append(r.Lines, console.Line{Level: console.Error, Text: console.Describe(err)})
			return resultMsg{Result: r, State: sess.State()}
		}
		r.Lines = append(r.Lines, console.Line{Level: console.Info, Text: "Type 'help' for a list of commands."})
		return resultMsg{Result: r, State: sess.State()}
	}
}

func initialDriveModel(ctx context.Context, sess *control.Session, port string) driveModel {
	chart := streamlinechart.New(80, 12,
		streamlinechart.WithYRange(cart.MinLevel, cart.MaxLevel),
	)
	for name, color := range seriesColors {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(color))
		chart.SetDataSetStyles(name, runes.ThinLineStyle, style)
	}

	input := textinput.New()
	input.Prompt = "> "
	input.Placeholder = "th 70, st 40, li, horn, show, help, q"
	input.CharLimit = 64
	input.Focus()

	return driveModel{
		ctx:   ctx,
		sess:  sess,
		port:  port,
		input: input,
		chart: &chart,
		state: sess.State(),
		busy:  true,
	}
}

func (m *driveModel) addLines(lines []console.Line) {
	m.logs = append(m.logs, lines...)
	if len(m.logs) > maxLogs {
		m.logs = m.logs[len(m.logs)-maxLogs:]
	}
}

// chartSize calculates the size of the chart based on terminal dimensions
func (m *driveModel) chartSize() (width, height int) {
	if m.width == 0 || m.height == 0 {
		return 60, 12
	}
	width = max(m.width-tableWidth-borderSize-2, 30)
	height = max(m.height-headerHeight-legendHeight-inputHeight-footerHeight-borderSize, 8)
	return width, height
}

func (m *driveModel) plot() {
	m.chart.PushDataSet("throttle", float64(m.state.Throttle))
	m.chart.PushDataSet("steering", float64(m.state.Steering))
	m.chart.DrawAll()
}

func (m driveModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, sendIdle(m.ctx, m.sess))
}

func (m driveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.chart.Resize(m.chartSize())
		m.input.Width = max(m.width-4, 20)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "enter":
			if m.busy {
				return m, nil
			}
			line := m.input.Value()
			m.input.Reset()
			if strings.TrimSpace(line) == "" {
				return m, nil
			}
			m.addLines([]console.Line{{Level: console.Text, Text: "> " + line}})
			m.busy = true
			return m, runLine(m.ctx, m.sess, line)
		}

	case resultMsg:
		m.busy = false
		m.state = msg.State
		m.addLines(msg.Lines)
		m.plot()
		if msg.Quit {
			m.quitting = true
			return m, tea.Quit
		}
		if errors.Is(msg.Err, link.ErrTransport) {
			m.err = msg.Err
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m driveModel) View() string {
	if m.quitting {
		return ""
	}

	var sb strings.Builder

	// Header
	sb.WriteString(titleStyle.Render("cartctl drive"))
	sb.WriteString(" - " + m.port)
	if m.width > 0 {
		sb.WriteString(statusStyle.Render(fmt.Sprintf("  [%dx%d]", m.width, m.height)))
	}
	sb.WriteString("\n\n")

	sb.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		renderState(m.state),
		chartStyle.Render(m.chart.View()),
	))
	sb.WriteString("\n")
	sb.WriteString(renderLegend())
	sb.WriteString("\n")

	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Width(max(m.width-4, 40)).
		Height(maxLogs)

	var logLines []string
	for _, l := range m.logs {
		logLines = append(logLines, levelStyles[l.Level].Render(l.String()))
	}
	if len(logLines) == 0 {
		logLines = append(logLines, statusStyle.Render("Sending idle state..."))
	}
	sb.WriteString(logStyle.Render(strings.Join(logLines, "\n")))
	sb.WriteString("\n")

	if m.busy {
		sb.WriteString(statusStyle.Render("  waiting for the cart..."))
	} else {
		sb.WriteString(m.input.View())
	}
	return sb.String()
}

func renderState(st cart.State) string {
	tableHeaderStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	tableNameStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Padding(0, 1)
	tableCellStyle := lipgloss.NewStyle().Padding(0, 1)

	rows := [][]string{
		{"Throttle", fmt.Sprintf("%d", st.Throttle)},
		{"Steering", fmt.Sprintf("%d", st.Steering)},
	}
	on := map[int]bool{}
	for _, f := range cart.AllFlags() {
		if st.Get(f) {
			on[len(rows)] = true
			rows = append(rows, []string{f.String(), "ON"})
		} else {
			rows = append(rows, []string{f.String(), "OFF"})
		}
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Field", "Value").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return tableHeaderStyle
			case col == 0:
				return tableNameStyle
			case on[row]:
				return onStyle.Padding(0, 1)
			default:
				return tableCellStyle
			}
		})
	return t.Render()
}

func renderLegend() string {
	var items []string
	for _, name := range []string{"throttle", "steering"} {
		colorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(seriesColors[name])).Bold(true)
		items = append(items, colorStyle.Render("━━")+" "+name)
	}
	return strings.Join(items, "  ")
}

// runTUI runs the full-screen console until the operator quits, the context
// ends or the link fails.
func runTUI(ctx context.Context, sess *control.Session, port string) error {
	p := tea.NewProgram(initialDriveModel(ctx, sess, port), tea.WithAltScreen(), tea.WithContext(ctx))
	final, err := p.Run()
	if err != nil {
		if errors.Is(err, tea.ErrProgramKilled) || errors.Is(err, tea.ErrInterrupted) {
			return nil
		}
		return fmt.Errorf("run console: %w", err)
	}

	m := final.(driveModel)
	// the alt screen is gone; keep the last lines visible
	printLines(os.Stdout, m.logs)
	return m.err
}
