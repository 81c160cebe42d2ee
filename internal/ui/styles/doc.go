// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling system for the deskchat TUI and
its CLI output.

All colors use Lip Gloss AdaptiveColor for automatic light/dark terminal
detection.

# Color System (colors.go)

  - Purple - agent messages and the spinner
  - Cyan - brand, user highlights, the focused input
  - Amber - pending chats and the screenshot toggle
  - Rose - failed turns and the fatal screen
  - Emerald - success

Status helpers (RenderSuccess, RenderError, RenderWarning, RenderInfo) pair
each color with an ASCII indicator so state is readable without color.

# Theme System (theme.go)

	theme := styles.NewTheme(cfg.UI.NoColor)
	theme.SetSize(msg.Width, msg.Height)
	if theme.ChatListWidth() == 0 {
		// narrow terminal: hide the chat list
	}
*/
package styles
