package selfplay

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// DashboardModel is a bubbletea model that renders a live scoreboard of a
// running self-play batch: games played, wins/draws/losses (from the
// perspective of the player to move at the start of each game), and
// throughput.
type DashboardModel struct {
	gamesPlayed int
	wins        int
	draws       int
	losses      int
	startTime   time.Time
	recentGames []string
	updates     <-chan Update
}

// NewDashboardModel constructs a DashboardModel that consumes Updates from
// the channel produced by Run.
func NewDashboardModel(updates <-chan Update) DashboardModel {
	return DashboardModel{startTime: time.Now(), updates: updates}
}

type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(time.Millisecond*250, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func waitForUpdate(updates <-chan Update) tea.Cmd {
	return func() tea.Msg {
		return <-updates
	}
}

func (m DashboardModel) Init() tea.Cmd {
	return tea.Batch(waitForUpdate(m.updates), tickCmd())
}

func (m DashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case tickMsg:
		return m, tickCmd()
	case Update:
		m.gamesPlayed++
		switch {
		case msg.Score > 0:
			m.wins++
		case msg.Score < 0:
			m.losses++
		default:
			m.draws++
		}

		logLine := fmt.Sprintf("%s: score %+.0f over %d turns", msg.GameID, msg.Score, msg.Turns)
		m.recentGames = append([]string{logLine}, m.recentGames...)
		if len(m.recentGames) > 10 {
			m.recentGames = m.recentGames[:10]
		}
		return m, waitForUpdate(m.updates)
	}
	return m, nil
}

func (m DashboardModel) View() string {
	duration := time.Since(m.startTime)
	gamesPerSec := 0.0
	if duration.Seconds() >= 1 {
		gamesPerSec = float64(m.gamesPlayed) / duration.Seconds()
	}

	s := fmt.Sprintf("Games Played: %d (W %d / D %d / L %d)\n", m.gamesPlayed, m.wins, m.draws, m.losses)
	s += fmt.Sprintf("Duration:     %s\n", duration.Round(time.Second))
	s += fmt.Sprintf("Games/Sec:    %.2f\n\n", gamesPerSec)

	s += "Recent Games:\n"
	for _, g := range m.recentGames {
		s += g + "\n"
	}

	s += "\nPress q to quit.\n"
	return s
}
