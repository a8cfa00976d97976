package collab

import "github.com/SoCo-NP/SoCo/internal/config"

// TimingFromConfig takes the debounce intervals from the sync settings,
// falling back to the defaults for unset ones
func TimingFromConfig(cfg *config.SyncConfig) Timing {
	t := DefaultTiming()
	if cfg == nil {
		return t
	}
	if cfg.TextDebounce > 0 {
		t.Text = cfg.TextDebounce
	}
	if cfg.CursorDebounce > 0 {
		t.Cursor = cfg.CursorDebounce
	}
	if cfg.ViewportDebounce > 0 {
		t.Viewport = cfg.ViewportDebounce
	}
	return t
}

// NewWorkspaceFromConfig builds a workspace tuned by the sync settings
func NewWorkspaceFromConfig(sender Sender, bench Workbench, cfg *config.SyncConfig) *Workspace {
	w := NewWorkspace(sender, bench, TimingFromConfig(cfg))
	if cfg != nil {
		w.SetKeystrokeMode(cfg.KeystrokeMode)
	}
	return w
}
