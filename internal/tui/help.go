package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

var helpLines = []string{
	"stateflow help",
	"==============",
	"",
	"Mouse:",
	"------",
	"  drag state        Move it (snaps to neighbours and the grid)",
	"  drag from a side  Start a transition from the selected state",
	"  drag endpoint     Reroute or re-anchor the selected transition",
	"  drag line         Insert a waypoint on a curved transition",
	"  drag ◇ handle     Move an elbow segment along its axis",
	"  double-click ○    Remove a waypoint",
	"  drag label        Offset the transition label",
	"  wheel             Zoom around the pointer",
	"",
	"Navigation:",
	"-----------",
	"  h/←/j/↓/k/↑/l/→   Move the cursor",
	"  H/J/K/L           Pan the view",
	"  +/-/0             Zoom in, out, reset",
	"  tab               Select the next state",
	"",
	"Modes:",
	"------",
	"  a                 Connect mode: drag from state to state",
	"  R                 Resize mode: drag the ■ handles of the selected state",
	"  z                 Pan mode: drag to pan",
	"  Esc               Cancel the gesture, leave the mode, clear selection",
	"",
	"States:",
	"-------",
	"  n                 New state at the cursor",
	"  s / e             New start / end marker at the cursor",
	"  r / Enter         Rename the selection",
	"  d / x             Delete the selection (with its transitions)",
	"",
	"Transitions:",
	"------------",
	"  A                 Cycle arrow head: filled, open, none",
	"  t                 Toggle curved / elbow routing",
	"  y                 Cycle line style: solid, dashed, dotted",
	"  o                 Reset route (waypoints, anchors, label)",
	"  g / G             Add a gate / remove the last gate",
	"",
	"General:",
	"--------",
	"  c / p             Copy / paste the selection",
	"  u / U             Undo / redo",
	"  #                 Toggle snapping",
	"  P                 Export PNG",
	"  T                 Export text snapshot",
	"  ctrl+r            Reload from the store after failed writes",
	"  ?                 Toggle this help screen",
	"  q / ctrl+c        Quit",
}

func (m Model) helpKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "j", "down":
		maxScroll := max(len(helpLines)-m.canvasHeight(), 0)
		if m.helpScroll < maxScroll {
			m.helpScroll++
		}
	case "k", "up":
		if m.helpScroll > 0 {
			m.helpScroll--
		}
	default:
		m.mode, m.helpScroll = ModeNormal, 0
	}
	return m, nil
}

func (m Model) helpView() string {
	visible := m.canvasHeight()
	start := min(m.helpScroll, max(len(helpLines)-visible, 0))
	end := min(start+visible, len(helpLines))

	status := fmt.Sprintf("Help (%d-%d of %d lines) | j/k to scroll, any other key to close",
		start+1, end, len(helpLines))
	return strings.Join(helpLines[start:end], "\n") + "\n" + status
}
