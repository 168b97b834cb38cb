//go:build !linux

package input

import (
	"context"

	"github.com/sergeivaskov/punto/internal/layout"
)

// unsupported satisfies every facility interface on platforms without an
// implementation yet.
type unsupported struct{}

func newPlatformKeySource() KeySource         { return unsupported{} }
func newPlatformTypist() Typist               { return unsupported{} }
func newPlatformClipboard() Clipboard         { return unsupported{} }
func newPlatformSwitcher(SwitcherOptions) LayoutSwitcher { return unsupported{} }
func newPlatformOracle() FieldOracle          { return unsupported{} }

func (unsupported) Start(context.Context) error { return ErrNotAvailable }
func (unsupported) Stop() error                 { return nil }
func (unsupported) Events() <-chan KeyEvent     { return nil }
func (unsupported) Available() (bool, string) {
	return false, "no input backend for this platform"
}

func (unsupported) Backspace(context.Context, int) error { return ErrNotAvailable }
func (unsupported) TypeText(context.Context, string, layout.Layout) error {
	return ErrNotAvailable
}
func (unsupported) Copy(context.Context) error  { return ErrNotAvailable }
func (unsupported) Paste(context.Context) error { return ErrNotAvailable }

func (unsupported) Text(context.Context) (string, error)    { return "", ErrNotAvailable }
func (unsupported) SetText(context.Context, string) error   { return ErrNotAvailable }

func (unsupported) Current(context.Context) (layout.Layout, error) {
	return layout.Latin, ErrNotAvailable
}
func (unsupported) Activate(context.Context, layout.Layout) error { return ErrNotAvailable }

func (unsupported) Frontmost(context.Context) (Field, error) { return Field{}, ErrNotAvailable }
