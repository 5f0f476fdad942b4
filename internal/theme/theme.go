// ABOUTME: Terminal theme selection: light, dark, or follow the terminal background
// ABOUTME: The chosen mode is persisted under the theme-mode preference

package theme

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/muesli/termenv"

	"github.com/2389/skillchat/internal/store"
)

// Mode is the user's theme choice.
type Mode string

const (
	ModeLight  Mode = "light"
	ModeDark   Mode = "dark"
	ModeSystem Mode = "system"
)

// ErrInvalidMode is returned for names other than light, dark and system.
var ErrInvalidMode = errors.New("theme mode must be light, dark or system")

// ParseMode validates a mode name.
func ParseMode(name string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(name))); m {
	case ModeLight, ModeDark, ModeSystem:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, name)
	}
}

// PreferenceStore is the persistence the manager needs.
type PreferenceStore interface {
	GetPreference(ctx context.Context, key string) (string, error)
	SetPreference(ctx context.Context, key, value string) error
}

// Manager tracks the current mode and resolves system mode to light or dark.
type Manager struct {
	mu     sync.RWMutex
	mode   Mode
	prefs  PreferenceStore
	isDark func() bool
	logger *slog.Logger
}

// NewManager creates a manager starting in fallback mode until Load runs.
// Pass nil prefs for a memory-only manager and nil logger for the default.
func NewManager(prefs PreferenceStore, fallback Mode, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := ParseMode(string(fallback)); err != nil {
		fallback = ModeSystem
	}
	return &Manager{
		mode:   fallback,
		prefs:  prefs,
		isDark: termenv.HasDarkBackground,
		logger: logger.With("component", "theme"),
	}
}

// SetDetector replaces terminal background detection.
func (m *Manager) SetDetector(isDark func() bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.isDark = isDark
}

// Load restores the persisted mode. A missing or unreadable value keeps the current mode.
func (m *Manager) Load(ctx context.Context) error {
	if m.prefs == nil {
		return nil
	}
	value, err := m.prefs.GetPreference(ctx, store.KeyThemeMode)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("loading theme mode: %w", err)
	}

	mode, err := ParseMode(value)
	if err != nil {
		m.logger.Warn("ignoring stored theme mode", "value", value)
		return nil
	}

	m.mu.Lock()
	m.mode = mode
	m.mu.Unlock()
	return nil
}

// Mode returns the chosen mode, which may be system.
func (m *Manager) Mode() Mode {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.mode
}

// Set changes and persists the mode.
func (m *Manager) Set(ctx context.Context, mode Mode) error {
	if _, err := ParseMode(string(mode)); err != nil {
		return err
	}
	if m.prefs != nil {
		if err := m.prefs.SetPreference(ctx, store.KeyThemeMode, string(mode)); err != nil {
			return fmt.Errorf("saving theme mode: %w", err)
		}
	}

	m.mu.Lock()
	m.mode = mode
	m.mu.Unlock()

	m.logger.Debug("theme changed", "mode", mode)
	return nil
}

// Resolved returns light or dark, consulting the terminal when the mode is system.
func (m *Manager) Resolved() Mode {
	m.mu.RLock()
	mode, isDark := m.mode, m.isDark
	m.mu.RUnlock()

	if mode != ModeSystem {
		return mode
	}
	if isDark() {
		return ModeDark
	}
	return ModeLight
}

// Palette returns the colors for the resolved mode.
func (m *Manager) Palette() *Palette {
	return NewPalette(m.Resolved())
}

// Palette holds the colors used by the terminal client.
type Palette struct {
	Mode      Mode
	User      *color.Color
	Assistant *color.Color
	Thinking  *color.Color
	Heading   *color.Color
	Code      *color.Color
	Link      *color.Color
	Muted     *color.Color
	Success   *color.Color
	Warning   *color.Color
	Error     *color.Color
}

// NewPalette builds the palette for light or dark. System is treated as dark.
func NewPalette(mode Mode) *Palette {
	if mode == ModeLight {
		return &Palette{
			Mode:      ModeLight,
			User:      color.New(color.FgBlue, color.Bold),
			Assistant: color.New(color.FgBlack),
			Thinking:  color.New(color.FgHiBlack, color.Italic),
			Heading:   color.New(color.FgMagenta, color.Bold),
			Code:      color.New(color.FgRed),
			Link:      color.New(color.FgBlue, color.Underline),
			Muted:     color.New(color.FgHiBlack),
			Success:   color.New(color.FgGreen),
			Warning:   color.New(color.FgYellow),
			Error:     color.New(color.FgRed, color.Bold),
		}
	}
	return &Palette{
		Mode:      ModeDark,
		User:      color.New(color.FgHiCyan, color.Bold),
		Assistant: color.New(color.FgHiWhite),
		Thinking:  color.New(color.FgHiBlack, color.Italic),
		Heading:   color.New(color.FgHiMagenta, color.Bold),
		Code:      color.New(color.FgHiYellow),
		Link:      color.New(color.FgHiBlue, color.Underline),
		Muted:     color.New(color.FgHiBlack),
		Success:   color.New(color.FgHiGreen),
		Warning:   color.New(color.FgYellow),
		Error:     color.New(color.FgHiRed, color.Bold),
	}
}
