//go:build linux

package input

import (
	"context"
	"errors"
	"os/exec"
	"strings"
)

// ExecClipboard shells out to the usual clipboard helpers, trying the Wayland
// tool first and falling back to the X11 ones.
type ExecClipboard struct{}

func newPlatformClipboard() Clipboard {
	return &ExecClipboard{}
}

// Text returns the current clipboard text.
func (c *ExecClipboard) Text(ctx context.Context) (string, error) {
	var lastErr error
	for _, argv := range [][]string{
		{"wl-paste", "--no-newline"},
		{"xclip", "-selection", "clipboard", "-o"},
		{"xsel", "--clipboard", "--output"},
	} {
		out, err := exec.CommandContext(ctx, argv[0], argv[1:]...).Output()
		if err == nil {
			return string(out), nil
		}
		lastErr = err
	}
	return "", errors.Join(ErrNotAvailable, lastErr)
}

// SetText replaces the clipboard content.
func (c *ExecClipboard) SetText(ctx context.Context, text string) error {
	var lastErr error
	for _, argv := range [][]string{
		{"wl-copy"},
		{"xclip", "-selection", "clipboard", "-in"},
		{"xsel", "--clipboard", "--input"},
	} {
		cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
		cmd.Stdin = strings.NewReader(text)
		err := cmd.Run()
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return errors.Join(ErrNotAvailable, lastErr)
}
