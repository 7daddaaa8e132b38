// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
)

// InputReader reads one line of user input per call. The translate
// session uses it to collect contract file paths between runs.
type InputReader interface {
	// ReadLine blocks until a line is submitted. Returns io.EOF when the
	// user closes the stream (Ctrl+D or end of piped input).
	ReadLine() (string, error)
}

// =============================================================================
// Stdin Reader (piped input, CI)
// =============================================================================

type stdinReader struct {
	scanner *bufio.Scanner
}

// NewStdinReader reads plain lines from stdin without any terminal
// handling. Used when stdin is not a TTY.
func NewStdinReader() InputReader {
	return &stdinReader{scanner: bufio.NewScanner(os.Stdin)}
}

func (r *stdinReader) ReadLine() (string, error) {
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(r.scanner.Text()), nil
}

// =============================================================================
// Interactive Reader (bubbletea, with history)
// =============================================================================

// interactiveReader provides line editing and up/down history navigation
// on a TTY. History is in-memory only and capped at maxHistory entries.
type interactiveReader struct {
	history    []string
	maxHistory int
	prompt     string
}

// NewInputReader returns the interactive reader when stdin is a TTY and
// falls back to the plain stdin reader otherwise.
func NewInputReader(prompt string, maxHistory int) InputReader {
	if !isatty.IsTerminal(os.Stdin.Fd()) && !isatty.IsCygwinTerminal(os.Stdin.Fd()) {
		return NewStdinReader()
	}
	return &interactiveReader{
		history:    make([]string, 0, maxHistory),
		maxHistory: maxHistory,
		prompt:     prompt,
	}
}

func (r *interactiveReader) ReadLine() (string, error) {
	ti := textinput.New()
	ti.Prompt = r.prompt
	ti.Focus()
	ti.CharLimit = 4096
	ti.Width = 80

	m := lineModel{textInput: ti, history: r.history, historyIndex: -1}

	p := tea.NewProgram(m, tea.WithOutput(os.Stderr))
	finalModel, err := p.Run()
	if err != nil {
		return "", err
	}
	result, ok := finalModel.(lineModel)
	if !ok {
		return "", fmt.Errorf("unexpected model type from bubbletea: %T", finalModel)
	}

	if result.eof && result.textInput.Value() == "" {
		return "", io.EOF
	}

	line := strings.TrimSpace(result.textInput.Value())
	if line != "" {
		r.remember(line)
	}
	return line, nil
}

// remember appends to history, skipping immediate duplicates.
func (r *interactiveReader) remember(line string) {
	if len(r.history) > 0 && r.history[len(r.history)-1] == line {
		return
	}
	r.history = append(r.history, line)
	if len(r.history) > r.maxHistory {
		r.history = r.history[1:]
	}
}

// lineModel is the bubbletea model behind interactiveReader.
type lineModel struct {
	textInput    textinput.Model
	history      []string
	historyIndex int
	pending      string // input in progress before history navigation
	eof          bool
}

func (m lineModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m lineModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyEnter:
			return m, tea.Quit

		case tea.KeyCtrlC:
			m.textInput.SetValue("")
			return m, tea.Quit

		case tea.KeyCtrlD:
			m.eof = true
			m.textInput.SetValue("")
			return m, tea.Quit

		case tea.KeyUp:
			if len(m.history) == 0 {
				return m, nil
			}
			if m.historyIndex == -1 {
				m.pending = m.textInput.Value()
				m.historyIndex = len(m.history) - 1
			} else if m.historyIndex > 0 {
				m.historyIndex--
			}
			m.textInput.SetValue(m.history[m.historyIndex])
			m.textInput.CursorEnd()
			return m, nil

		case tea.KeyDown:
			if m.historyIndex == -1 {
				return m, nil
			}
			if m.historyIndex < len(m.history)-1 {
				m.historyIndex++
				m.textInput.SetValue(m.history[m.historyIndex])
			} else {
				m.historyIndex = -1
				m.textInput.SetValue(m.pending)
			}
			m.textInput.CursorEnd()
			return m, nil
		}
	}

	m.textInput, cmd = m.textInput.Update(msg)
	return m, cmd
}

func (m lineModel) View() string {
	return m.textInput.View()
}
