// Package tui renders a live terminal view of a running scene: a particle
// scatter beside kinetic energy history and step stats.
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/sphstep/internal/forces"
	"github.com/san-kum/sphstep/internal/scene"
)

const (
	width           = 70
	height          = 22
	historyCapacity = 600
)

var (
	canvasStyle = lipgloss.NewStyle().Padding(1, 2)
	statsStyle  = lipgloss.NewStyle().Border(lipgloss.NormalBorder(), false, false, false, true).BorderForeground(lipgloss.Color("240")).Padding(1, 2).Width(42)
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true).MarginBottom(1)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(10)
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	graphStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("49")).Padding(1, 0)
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginTop(2)
)

type TickMsg time.Time

// Model drives one timestep per tick and renders the particle positions.
type Model struct {
	sc      *scene.Scene
	canvas  *canvas
	scale   float64
	t       float64
	step    int
	running bool
	err     error

	energyHistory []float64
}

func NewModel(sc *scene.Scene, scale float64) Model {
	if scale <= 0 {
		scale = 2.0
	}
	return Model{
		sc:            sc,
		canvas:        newCanvas(width, height),
		scale:         scale,
		running:       true,
		energyHistory: make([]float64, 0, historyCapacity),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Tick(time.Second/60, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			m.running = m.err == nil && !m.running
		}
	case TickMsg:
		if m.running {
			m.advance()
		}
		m.draw()
		return m, tea.Tick(time.Second/60, func(t time.Time) tea.Msg { return TickMsg(t) })
	}
	return m, nil
}

// advance runs one timestep and samples kinetic energy. Any step failure is
// final: the runtime state is undefined afterwards, so the view freezes.
func (m *Model) advance() {
	if err := m.sc.Runtime.Step(m.t, m.sc.Dt); err != nil {
		m.err = err
		m.running = false
		return
	}
	m.t += m.sc.Dt
	m.step++

	e, err := forces.KineticEnergy(m.sc.Registry, m.sc.Dests)
	if err != nil {
		m.err = err
		m.running = false
		return
	}
	m.energyHistory = append(m.energyHistory, e)
	if len(m.energyHistory) > historyCapacity {
		m.energyHistory = m.energyHistory[1:]
	}
}

func (m *Model) draw() {
	m.canvas.clear()
	cw, ch := width*2, height*4
	cx, cy := cw/2, ch/2
	sx := float64(ch) / (2 * m.scale)
	for _, name := range m.sc.Dests {
		dest, err := m.sc.Registry.Resolve(name)
		if err != nil {
			continue
		}
		x, errX := dest.Buffer("x")
		y, errY := dest.Buffer("y")
		if errX != nil || errY != nil {
			continue
		}
		n := dest.Count(true)
		for i := 0; i < n; i++ {
			px := cx + int(x.Get(i)*sx)
			py := cy - int(y.Get(i)*sx)
			m.canvas.set(px, py)
		}
	}
}

func (m Model) View() string {
	var s strings.Builder
	s.WriteString(headerStyle.Render("SPHSTEP") + "\n")
	switch {
	case m.err != nil:
		s.WriteString(errStyle.Render("FAILED: "+m.err.Error()) + "\n\n")
	case m.running:
		s.WriteString("RUNNING\n\n")
	default:
		s.WriteString("PAUSED\n\n")
	}
	if len(m.energyHistory) > 1 {
		chart := asciigraph.Plot(m.energyHistory, asciigraph.Height(4), asciigraph.Width(30), asciigraph.Caption("Kinetic energy"))
		s.WriteString(graphStyle.Render(chart) + "\n\n")
	}
	s.WriteString(labelStyle.Render("Time") + valueStyle.Render(fmt.Sprintf("%.4f", m.t)) + "\n")
	s.WriteString(labelStyle.Render("Step") + valueStyle.Render(fmt.Sprintf("%d", m.step)) + "\n")
	energy := 0.0
	if len(m.energyHistory) > 0 {
		energy = m.energyHistory[len(m.energyHistory)-1]
	}
	s.WriteString(labelStyle.Render("Energy") + valueStyle.Render(fmt.Sprintf("%.4f", energy)) + "\n")
	s.WriteString(labelStyle.Render("Backend") + valueStyle.Render(m.sc.Backend.Name()) + "\n")
	s.WriteString(helpStyle.Render("SP:Pause Q:Quit"))
	statsView := statsStyle.Render(s.String())
	canvasView := canvasStyle.Render(m.canvas.String())
	return lipgloss.JoinHorizontal(lipgloss.Top, canvasView, statsView)
}
