// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/mattn/go-runewidth"
	"golang.org/x/term"

	"github.com/jeranaias/deskchat/internal/store"
	"github.com/jeranaias/deskchat/internal/util"
)

// replyWrap is the word-wrap width for rendered replies.
const replyWrap = 80

// printer writes chat output, rendering agent replies as markdown when the
// destination is a terminal and markdown is enabled.
type printer struct {
	out      io.Writer
	renderer *glamour.TermRenderer
}

func newPrinter(out io.Writer, markdown, noColor bool) *printer {
	p := &printer{out: out}
	if !markdown || !isTerminal(out) {
		return p
	}
	style := glamour.WithAutoStyle()
	if noColor {
		style = glamour.WithStandardStyle("notty")
	}
	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(replyWrap))
	if err == nil {
		p.renderer = r
	}
	return p
}

// reply prints an agent reply.
func (p *printer) reply(text string) {
	if p.renderer != nil {
		if rendered, err := p.renderer.Render(text); err == nil {
			fmt.Fprint(p.out, rendered)
			return
		}
	}
	fmt.Fprintln(p.out, text)
}

// message prints a stored message with its role and time.
func (p *printer) message(m store.Message) {
	header := fmt.Sprintf("[%s] %s", m.Timestamp.Local().Format(time.DateTime), m.Role)
	if m.HasAttachment {
		header += " (screenshot)"
	}
	fmt.Fprintln(p.out, header)
	if m.Role == store.RoleAgent {
		p.reply(m.Content)
	} else {
		fmt.Fprintln(p.out, m.Content)
	}
	fmt.Fprintln(p.out)
}

// chatRow formats one line of a chat listing.
func chatRow(c store.Chat, current bool) string {
	marker := " "
	if current {
		marker = "*"
	}
	title := runewidth.FillRight(util.TruncateWidth(strings.TrimSpace(c.Title), 30), 30)
	return fmt.Sprintf("%s %4d  %s  %s", marker, c.ID, title,
		c.CreatedAt.Local().Format(time.DateTime))
}

// isTerminal reports whether w is a terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
