package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/brensch/blockdrop/executor/selfplay"
	"github.com/brensch/blockdrop/game"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	panelStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	emptyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))

	kindColors = map[game.Kind]lipgloss.Color{
		game.I: lipgloss.Color("51"),
		game.O: lipgloss.Color("226"),
		game.T: lipgloss.Color("129"),
		game.J: lipgloss.Color("33"),
		game.L: lipgloss.Color("208"),
		game.S: lipgloss.Color("46"),
		game.Z: lipgloss.Color("196"),
		game.X: lipgloss.Color("250"),
	}
)

const recentGames = 10

type model struct {
	gamesPlayed int
	pieces      int
	lines       int
	toppedOut   int
	moves       int64
	startTime   time.Time
	recentGames []string

	board *game.Board
	turn  int

	stats   statsProvider
	updates <-chan GameUpdate
	steps   <-chan selfplay.Step
}

func initialModel(updates <-chan GameUpdate, steps <-chan selfplay.Step, stats statsProvider) model {
	return model{
		startTime: time.Now(),
		updates:   updates,
		steps:     steps,
		stats:     stats,
	}
}

type TickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(time.Millisecond*100, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func (m model) Init() tea.Cmd {
	return tea.Batch(waitForUpdate(m.updates), waitForStep(m.steps), tickCmd())
}

func waitForUpdate(updates <-chan GameUpdate) tea.Cmd {
	return func() tea.Msg {
		return <-updates
	}
}

func waitForStep(steps <-chan selfplay.Step) tea.Cmd {
	return func() tea.Msg {
		return <-steps
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case TickMsg:
		m.moves = totalMoves.Load()
		return m, tickCmd()
	case selfplay.Step:
		m.board = msg.Board
		m.turn = msg.Turn
		return m, waitForStep(m.steps)
	case GameUpdate:
		m.gamesPlayed++
		m.pieces += msg.Pieces
		m.lines += msg.Lines
		if msg.ToppedOut {
			m.toppedOut++
		}
		end := "cap"
		if msg.ToppedOut {
			end = "top-out"
		}
		line := fmt.Sprintf("w%-3d %s pieces=%d lines=%d (%s)", msg.WorkerID, msg.GameID, msg.Pieces, msg.Lines, end)
		m.recentGames = append([]string{line}, m.recentGames...)
		if len(m.recentGames) > recentGames {
			m.recentGames = m.recentGames[:recentGames]
		}
		return m, waitForUpdate(m.updates)
	}
	return m, nil
}

func (m model) statsView() string {
	duration := time.Since(m.startTime)
	perSec := func(n float64) float64 {
		if duration < time.Second {
			return 0
		}
		return n / duration.Seconds()
	}

	var sb strings.Builder
	sb.WriteString(titleStyle.Render("blockdrop self-play") + "\n\n")
	fmt.Fprintf(&sb, "Games Played:  %d\n", m.gamesPlayed)
	fmt.Fprintf(&sb, "Topped Out:    %d\n", m.toppedOut)
	fmt.Fprintf(&sb, "Pieces:        %d\n", m.pieces)
	fmt.Fprintf(&sb, "Lines:         %d\n", m.lines)
	fmt.Fprintf(&sb, "Moves:         %d\n", m.moves)
	fmt.Fprintf(&sb, "Duration:      %s\n", duration.Round(time.Second))
	fmt.Fprintf(&sb, "Games/Sec:     %.2f\n", perSec(float64(m.gamesPlayed)))
	fmt.Fprintf(&sb, "Moves/Sec:     %.2f\n", perSec(float64(m.moves)))
	if m.stats != nil {
		st := m.stats.Stats()
		fmt.Fprintf(&sb, "Batch avg:     %.1f (last %d, queue %d)\n", st.AvgBatchSize, st.LastBatchSize, st.QueueLen)
		fmt.Fprintf(&sb, "Run avg:       %.2fms\n", st.AvgRunMs)
	}
	sb.WriteString("\nRecent Games:\n")
	for _, g := range m.recentGames {
		sb.WriteString(g + "\n")
	}
	sb.WriteString("\nPress q to quit.")
	return sb.String()
}

func (m model) View() string {
	left := panelStyle.Render(m.statsView())
	if m.board == nil {
		return left + "\n"
	}
	right := panelStyle.Render(fmt.Sprintf("worker 0, turn %d\n%s", m.turn, renderBoard(m.board)))
	return lipgloss.JoinHorizontal(lipgloss.Top, left, right) + "\n"
}

// renderBoard draws the rows that hold cells plus two above, top first.
func renderBoard(b *game.Board) string {
	top := 0
	for y := 0; y < b.Height(); y++ {
		for x := 0; x < b.Width(); x++ {
			if b.Cell(x, y) != 0 {
				top = y + 1
				break
			}
		}
	}
	top = min(top+2, b.Height())

	var sb strings.Builder
	for y := top - 1; y >= 0; y-- {
		for x := 0; x < b.Width(); x++ {
			k := game.Kind(b.Cell(x, y))
			if k == 0 {
				sb.WriteString(emptyStyle.Render(" ·"))
				continue
			}
			sb.WriteString(lipgloss.NewStyle().Foreground(kindColors[k]).Render("██"))
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
