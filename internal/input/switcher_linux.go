//go:build linux

package input

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"

	"github.com/sergeivaskov/punto/internal/layout"
)

// Default IBus engine names for the two layouts.
const (
	DefaultLatinEngine    = "xkb:us::eng"
	DefaultCyrillicEngine = "xkb:ru::rus"
)

// IBusSwitcher drives the system layout through the IBus portal interface on
// the session bus.
type IBusSwitcher struct {
	mu      sync.Mutex
	conn    *dbus.Conn
	engines map[layout.Layout]string
}

func newPlatformSwitcher(opts SwitcherOptions) LayoutSwitcher {
	latin := opts.LatinSource
	if latin == "" {
		latin = DefaultLatinEngine
	}
	cyrillic := opts.CyrillicSource
	if cyrillic == "" {
		cyrillic = DefaultCyrillicEngine
	}
	return &IBusSwitcher{
		engines: map[layout.Layout]string{
			layout.Latin:    latin,
			layout.Cyrillic: cyrillic,
		},
	}
}

func (s *IBusSwitcher) object() (dbus.BusObject, error) {
	if s.conn == nil {
		conn, err := dbus.SessionBus()
		if err != nil {
			return nil, fmt.Errorf("session bus: %w", err)
		}
		s.conn = conn
	}
	return s.conn.Object("org.freedesktop.portal.IBus", "/org/freedesktop/IBus"), nil
}

// Current returns the active system layout by inspecting the global engine.
func (s *IBusSwitcher) Current(ctx context.Context) (layout.Layout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	obj, err := s.object()
	if err != nil {
		return layout.Latin, err
	}
	prop, err := obj.GetProperty("org.freedesktop.IBus.GlobalEngine")
	if err != nil {
		return layout.Latin, fmt.Errorf("query global engine: %w", err)
	}

	name := engineName(prop.Value())
	for l, engine := range s.engines {
		if name == engine {
			return l, nil
		}
	}
	// Unrecognized engine; "xkb:ru..." style names still identify the script.
	if strings.HasPrefix(name, "xkb:ru") {
		return layout.Cyrillic, nil
	}
	return layout.Latin, nil
}

// Activate switches the global engine to the one configured for l.
func (s *IBusSwitcher) Activate(ctx context.Context, l layout.Layout) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	obj, err := s.object()
	if err != nil {
		return err
	}
	call := obj.CallWithContext(ctx, "org.freedesktop.IBus.SetGlobalEngine", 0, s.engines[l])
	if call.Err != nil {
		return fmt.Errorf("set global engine %q: %w", s.engines[l], call.Err)
	}
	return nil
}

// engineName digs the engine name out of the serialized IBusEngineDesc. The
// desc is a struct whose exact shape varies across IBus versions, so scan for
// the first string that looks like an engine identifier.
func engineName(v interface{}) string {
	switch val := v.(type) {
	case string:
		// Engine identifiers look like "xkb:us::eng"; the desc also carries
		// plain strings (type tag, long name) that must not match.
		if strings.Contains(val, ":") {
			return val
		}
	case dbus.Variant:
		return engineName(val.Value())
	case []interface{}:
		for _, elem := range val {
			if name := engineName(elem); name != "" {
				return name
			}
		}
	}
	return ""
}
