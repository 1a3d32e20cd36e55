package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Config
const (
	pollRate       = time.Second
	maxVersions    = 10
	viewportHeight = 20
)

var daemonURL = func() string {
	if v := os.Getenv("NETLORD_API_URL"); v != "" {
		return v
	}
	return "http://localhost:8090"
}()

// Styles
var (
	subtleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))

	// Layout styles
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			Width(100)

	paneStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1).
			Width(100)

	// Violation styles
	codeStyle    = lipgloss.NewStyle().Width(25).Bold(true)
	nodeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("99")) // Purple
	fatalStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("201"))
	errSevStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")) // Red
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214")) // Orange
	infoSevStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))  // Blue
)

// API types (mirrored from pkg/store and pkg/rules to avoid CGO deps)

type VersionInfo struct {
	Version     int64     `json:"version"`
	TsCommitted time.Time `json:"ts_committed"`
	Namespace   string    `json:"namespace"`
	NodeCount   int       `json:"node_count"`
	EdgeCount   int       `json:"edge_count"`
}

type Violation struct {
	Code     string   `json:"code"`
	Severity string   `json:"severity"`
	Message  string   `json:"message"`
	Nodes    []string `json:"nodes"`
}

type Report struct {
	Version    int64       `json:"version"`
	RuleSet    string      `json:"rule_set"`
	Violations []Violation `json:"violations"`
	Valid      bool        `json:"valid"`
}

type tickMsg time.Time

type dataMsg struct {
	versions []VersionInfo
	report   *Report
	err      error
}

type model struct {
	spinner  spinner.Model
	viewport viewport.Model
	versions []VersionInfo
	report   *Report
	err      error
	ready    bool
}

func initialModel() model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return model{
		spinner: s,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		fetchData(),
		tick(),
	)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		// Pass key messages to viewport
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
		return m, tea.Batch(cmds...)

	case spinner.TickMsg:
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case tickMsg:
		cmds = append(cmds, fetchData(), tick())

	case dataMsg:
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.err = nil
			m.versions = msg.versions
			m.report = msg.report
			m.updateViewportContent()
		}

		if !m.ready {
			m.ready = true
		}

	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, viewportHeight)
			m.viewport.Style = lipgloss.NewStyle().
				BorderStyle(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("62")).
				PaddingRight(2)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = viewportHeight
		}
	}

	return m, tea.Batch(cmds...)
}

func (m *model) updateViewportContent() {
	var sb strings.Builder

	if m.report == nil {
		sb.WriteString(subtleStyle.Render("No report yet. Apply a patch to trigger validation."))
		m.viewport.SetContent(sb.String())
		return
	}

	if len(m.report.Violations) == 0 {
		sb.WriteString(okStyle.Render(fmt.Sprintf("Version %d is clean (%s).", m.report.Version, m.report.RuleSet)))
		m.viewport.SetContent(sb.String())
		return
	}

	// The daemon already sorts violations by severity, worst first.
	for _, v := range m.report.Violations {
		var sev string
		switch v.Severity {
		case "fatal":
			sev = fatalStyle.Render("FATAL")
		case "error":
			sev = errSevStyle.Render("ERROR")
		case "warning":
			sev = warnStyle.Render("WARN ")
		default:
			sev = infoSevStyle.Render("INFO ")
		}

		line := fmt.Sprintf("%s %s %s\n       %s\n",
			sev,
			codeStyle.Render(v.Code),
			nodeStyle.Render(strings.Join(v.Nodes, ", ")),
			v.Message,
		)
		sb.WriteString(line)
	}

	m.viewport.SetContent(sb.String())
}

func (m model) View() string {
	if !m.ready {
		return fmt.Sprintf("\n%s Initializing...", m.spinner.View())
	}

	// Top pane: version history
	var history strings.Builder
	history.WriteString(lipgloss.NewStyle().Bold(true).Underline(true).Render("Version History") + "\n\n")

	if len(m.versions) == 0 {
		history.WriteString(subtleStyle.Render("No versions committed."))
	} else {
		for _, v := range m.versions {
			history.WriteString(fmt.Sprintf("• v%d  %s  %d nodes / %d edges  %s\n",
				v.Version, v.TsCommitted.Format("15:04:05"), v.NodeCount, v.EdgeCount, v.Namespace))
		}
	}

	topPane := paneStyle.Render(history.String())

	// Bottom pane: latest violation report
	title := "Latest Report"
	if m.report != nil {
		title = fmt.Sprintf("Report for v%d (%s)", m.report.Version, m.report.RuleSet)
	}
	header := headerStyle.Render(fmt.Sprintf("%s %s", m.spinner.View(), title))
	bottomPane := m.viewport.View()

	// Status footer
	var status string
	if m.err != nil {
		status = errorStyle.Render(fmt.Sprintf("Offline: %v", m.err))
	} else if m.report != nil && !m.report.Valid {
		status = errorStyle.Render(fmt.Sprintf("INVALID • %d violations • %d versions", len(m.report.Violations), len(m.versions)))
	} else {
		n := 0
		if m.report != nil {
			n = len(m.report.Violations)
		}
		status = okStyle.Render(fmt.Sprintf("Valid • %d violations • %d versions", n, len(m.versions)))
	}
	footer := subtleStyle.Render(fmt.Sprintf("\n%s\nPress q to quit", status))

	return lipgloss.JoinVertical(lipgloss.Left, topPane, header, bottomPane, footer)
}

// Commands

func fetchData() tea.Cmd {
	return func() tea.Msg {
		versions, err := getVersions()
		if err != nil {
			return dataMsg{err: err}
		}

		report, err := getReport()
		if err != nil {
			return dataMsg{err: err}
		}

		return dataMsg{
			versions: versions,
			report:   report,
			err:      nil,
		}
	}
}

func getVersions() ([]VersionInfo, error) {
	c := &http.Client{Timeout: 500 * time.Millisecond}
	resp, err := c.Get(fmt.Sprintf("%s/v1/versions?limit=%d", daemonURL, maxVersions))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("versions status %d", resp.StatusCode)
	}

	var versions []VersionInfo
	if err := json.NewDecoder(resp.Body).Decode(&versions); err != nil {
		return nil, err
	}
	return versions, nil
}

func getReport() (*Report, error) {
	c := &http.Client{Timeout: 500 * time.Millisecond}
	resp, err := c.Get(daemonURL + "/v1/report")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	// No report yet is not an error; the daemon may be freshly booted.
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("report status %d", resp.StatusCode)
	}

	var report Report
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return nil, err
	}
	return &report, nil
}

func tick() tea.Cmd {
	return tea.Tick(pollRate, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func main() {
	p := tea.NewProgram(initialModel(), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Printf("Alas, there's been an error: %v", err)
		os.Exit(1)
	}
}
