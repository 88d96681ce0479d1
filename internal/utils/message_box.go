package utils

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// MessageType defines the type of message box to render.
type MessageType int

const (
	// InfoMessage represents an informational message.
	InfoMessage MessageType = iota
	// SuccessMessage represents a success message.
	SuccessMessage
	// ErrorMessage represents a failure report.
	ErrorMessage
)

const (
	infoPrefix    = "ℹ"
	successPrefix = "✓"
	errorPrefix   = "✗"
)

const (
	topLeft     = "╔"
	topRight    = "╗"
	bottomLeft  = "╚"
	bottomRight = "╝"
	horizontal  = "═"
	vertical    = "║"
)

var (
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// Box is a builder for creating formatted message boxes.
type Box struct {
	messageType MessageType
	title       string
	content     []string
	width       int
}

// NewBox creates a new message box with a specific type.
func NewBox(messageType MessageType, title string) *Box {
	return &Box{
		messageType: messageType,
		title:       title,
		content:     []string{},
		width:       getTerminalWidth() - 8,
	}
}

// AddLine adds a line of text to the message box content.
func (b *Box) AddLine(text string) *Box {
	b.content = append(b.content, text)
	return b
}

// Render builds and returns the formatted message box as a string.
// Lines are never wrapped: failure output is copied verbatim into CI logs.
func (b *Box) Render() string {
	style, prefix := b.getStyleAndPrefix()

	inner := b.width - 4
	if inner < 20 {
		inner = 20
	}

	var sb strings.Builder
	title := fmt.Sprintf("%s %s ", prefix, b.title)
	fill := inner - utf8.RuneCountInString(title)
	if fill < 2 {
		fill = 2
	}
	sb.WriteString(style.Render(topLeft+horizontal+" "+title+strings.Repeat(horizontal, fill)+topRight) + "\n")

	for _, line := range b.content {
		for _, part := range strings.Split(line, "\n") {
			sb.WriteString(style.Render(vertical) + " " + part + "\n")
		}
	}

	sb.WriteString(style.Render(bottomLeft + strings.Repeat(horizontal, inner+3) + bottomRight))
	return sb.String()
}

func (b *Box) getStyleAndPrefix() (lipgloss.Style, string) {
	switch b.messageType {
	case SuccessMessage:
		return successStyle, successPrefix
	case ErrorMessage:
		return errorStyle, errorPrefix
	default:
		return infoStyle, infoPrefix
	}
}

// ErrorMarker renders the single-line banner that precedes every failure report.
func ErrorMarker(title string) string {
	return errorStyle.Bold(true).Render(fmt.Sprintf("╡ %s %s ╞", errorPrefix, title))
}

// Success renders a green box, used for the closing line of a passing run.
func Success(title string, lines ...string) string {
	box := NewBox(SuccessMessage, title)
	for _, line := range lines {
		box.AddLine(line)
	}
	return box.Render()
}

// getTerminalWidth returns the terminal width or defaults to 80 if unable to detect.
func getTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return 80
	}
	return width
}
