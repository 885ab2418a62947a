package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/openmined/storagebrowser/internal/transport"
)

const (
	txtUsernamePlaceholder = "username"
	txtPasswordPlaceholder = "password"
	txtLoggingIn           = "Logging in..."
	txtHelp                = "Enter to submit. Tab to switch field. Esc or Ctrl+C to quit."
	txtMissingFields       = "Username and password are required"
)

var (
	focusedStyle = green
	helpStyle    = gray
	errorStyle   = red
	titleStyle   = cyan.Bold(true)
)

type LoginTUIOpts struct {
	Username      string
	ServerURL     string
	SubmitHandler func(username, password string) error
}

type loginModel struct {
	opts *LoginTUIOpts

	inputs  []textinput.Model
	focus   int
	spinner spinner.Model

	loading  bool
	done     bool
	errorMsg string
}

type loginProcessedMsg struct{ err error }

func newLoginModel(opts *LoginTUIOpts) loginModel {
	username := textinput.New()
	username.Placeholder = txtUsernamePlaceholder
	username.SetValue(opts.Username)
	username.CharLimit = 128
	username.Width = 40
	username.PromptStyle = focusedStyle
	username.TextStyle = focusedStyle

	password := textinput.New()
	password.Placeholder = txtPasswordPlaceholder
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'
	password.CharLimit = 256
	password.Width = 40

	m := loginModel{
		opts:    opts,
		inputs:  []textinput.Model{username, password},
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(cyan)),
	}
	if opts.Username != "" {
		m.focus = 1
	}
	m.inputs[m.focus].Focus()
	return m
}

func (m loginModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

func (m loginModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyTab, tea.KeyShiftTab, tea.KeyUp, tea.KeyDown:
			return m.switchFocus(), textinput.Blink
		case tea.KeyEnter:
			if m.loading {
				return m, nil
			}
			if m.focus == 0 && m.inputs[1].Value() == "" {
				return m.switchFocus(), textinput.Blink
			}
			return m.submit()
		}

		m.errorMsg = ""
		var cmd tea.Cmd
		m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
		return m, cmd

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case loginProcessedMsg:
		m.loading = false
		if msg.err != nil {
			m.errorMsg = loginErrorMessage(msg.err)
			m.inputs[1].SetValue("")
			m.focus = 1
			m.inputs[0].Blur()
			m.inputs[1].Focus()
			return m, textinput.Blink
		}
		m.done = true
		return m, tea.Quit
	}

	return m, nil
}

func (m loginModel) switchFocus() loginModel {
	m.inputs[m.focus].Blur()
	m.focus = (m.focus + 1) % len(m.inputs)
	m.inputs[m.focus].Focus()
	return m
}

func (m loginModel) submit() (tea.Model, tea.Cmd) {
	username := strings.TrimSpace(m.inputs[0].Value())
	password := m.inputs[1].Value()
	if username == "" || password == "" {
		m.errorMsg = txtMissingFields
		return m, nil
	}

	m.loading = true
	m.errorMsg = ""
	return m, func() tea.Msg {
		return loginProcessedMsg{err: m.opts.SubmitHandler(username, password)}
	}
}

func (m loginModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Log in to "+m.opts.ServerURL) + "\n\n")
	for _, input := range m.inputs {
		b.WriteString(input.View() + "\n")
	}
	b.WriteString("\n")

	switch {
	case m.loading:
		b.WriteString(fmt.Sprintf("%s %s\n", m.spinner.View(), txtLoggingIn))
	case m.errorMsg != "":
		b.WriteString(errorStyle.Render(m.errorMsg) + "\n")
	case m.done:
		return ""
	}

	b.WriteString("\n" + helpStyle.Render(txtHelp) + "\n")
	return b.String()
}

func loginErrorMessage(err error) string {
	switch transport.KindOf(err) {
	case transport.KindNoConnection:
		return "Cannot reach the server"
	case transport.KindAuth, transport.KindStatus:
		if msg := transport.Message(err); msg != "" {
			return msg
		}
	}
	return err.Error()
}

func RunLoginTUI(opts LoginTUIOpts) error {
	_, err := tea.NewProgram(newLoginModel(&opts)).Run()
	return err
}
