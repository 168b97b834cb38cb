package input

// SwitcherOptions configures the platform layout switcher. On Linux the
// sources are IBus engine names; other platforms ignore them.
type SwitcherOptions struct {
	LatinSource    string
	CyrillicSource string
}

// NewKeySource creates a KeySource for the current platform.
func NewKeySource() KeySource {
	return newPlatformKeySource()
}

// NewTypist creates a Typist for the current platform.
func NewTypist() Typist {
	return newPlatformTypist()
}

// NewClipboard creates a Clipboard for the current platform.
func NewClipboard() Clipboard {
	return newPlatformClipboard()
}

// NewSwitcher creates a LayoutSwitcher for the current platform.
func NewSwitcher(opts SwitcherOptions) LayoutSwitcher {
	return newPlatformSwitcher(opts)
}

// NewOracle creates a FieldOracle for the current platform.
func NewOracle() FieldOracle {
	return newPlatformOracle()
}
