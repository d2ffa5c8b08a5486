package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	w      io.Writer
}

// NewOutput creates a new Output formatter writing to w
func NewOutput(format string, w io.Writer) *Output {
	if w == nil {
		w = os.Stdout
	}
	return &Output{format: format, w: w}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		_, _ = fmt.Fprintln(o.w, string(data))
	} else {
		_, _ = fmt.Fprintln(o.w, msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	if _, ok := data.(Event); !ok {
		enc.SetIndent("", "  ")
	}
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case HealthResult:
		_, _ = fmt.Fprintf(o.w, "Status: %s\n", v.Status)
	case StatusResult:
		o.printStatus(v)
	case LeaderboardResult:
		o.printLeaderboard(v)
	case PlayerStats:
		o.printPlayerStats(v)
	case MatchHistory:
		o.printMatchHistory(v)
	case Event:
		o.printEvent(v)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

// HealthResult is the health endpoint response
type HealthResult struct {
	Status string `json:"status"`
}

// StatusResult is the live status response
type StatusResult struct {
	Rooms             map[string]int `json:"rooms"`
	QueueLength       int            `json:"queue_length"`
	QueueByVariant    map[string]int `json:"queue_by_variant"`
	RegisteredPlayers int            `json:"registered_players"`
}

// LeaderboardEntry is one ranked player
type LeaderboardEntry struct {
	Rank        int    `json:"rank"`
	Username    string `json:"username"`
	Rating      int    `json:"rating"`
	GamesPlayed int    `json:"games_played"`
	Wins        int    `json:"wins"`
	Losses      int    `json:"losses"`
}

// LeaderboardResult is the leaderboard response
type LeaderboardResult struct {
	Players []LeaderboardEntry `json:"players"`
}

// PlayerStats is a player's rating and record
type PlayerStats struct {
	Username      string    `json:"username"`
	Rating        int       `json:"rating"`
	GamesPlayed   int       `json:"games_played"`
	Wins          int       `json:"wins"`
	Losses        int       `json:"losses"`
	WinRate       float64   `json:"win_rate"`
	PointsFor     int       `json:"points_for"`
	PointsAgainst int       `json:"points_against"`
	CurrentStreak int       `json:"current_streak"`
	BestStreak    int       `json:"best_streak"`
	LongestRally  int       `json:"longest_rally"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Match is one completed match from the player's side
type Match struct {
	ID           string    `json:"id"`
	RoomCode     string    `json:"room_code"`
	Variant      string    `json:"variant"`
	Opponent     string    `json:"opponent"`
	Won          bool      `json:"won"`
	Scores       [2]int    `json:"scores"`
	RatingChange int       `json:"rating_change"`
	LongestRally int       `json:"longest_rally"`
	DurationMS   int64     `json:"duration_ms"`
	CompletedAt  time.Time `json:"completed_at"`
}

// MatchHistory is the match history response
type MatchHistory struct {
	Username string  `json:"username"`
	Matches  []Match `json:"matches"`
}

// Event is a message received over the websocket
type Event struct {
	Type    string          `json:"type"`
	ID      json.RawMessage `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func (o *Output) printStatus(s StatusResult) {
	_, _ = fmt.Fprintf(o.w, "Registered players: %d\n", s.RegisteredPlayers)
	_, _ = fmt.Fprintf(o.w, "Rooms: %s\n", formatCounts(s.Rooms))
	_, _ = fmt.Fprintf(o.w, "Queue: %d", s.QueueLength)
	if s.QueueLength > 0 {
		_, _ = fmt.Fprintf(o.w, " (%s)", formatCounts(s.QueueByVariant))
	}
	_, _ = fmt.Fprintln(o.w)
}

func (o *Output) printLeaderboard(l LeaderboardResult) {
	if len(l.Players) == 0 {
		_, _ = fmt.Fprintln(o.w, "No rated players yet")
		return
	}
	tw := tabwriter.NewWriter(o.w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "RANK\tPLAYER\tRATING\tW-L")
	for _, p := range l.Players {
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%d\t%d-%d\n", p.Rank, p.Username, p.Rating, p.Wins, p.Losses)
	}
	_ = tw.Flush()
}

func (o *Output) printPlayerStats(s PlayerStats) {
	_, _ = fmt.Fprintf(o.w, "Player: %s\n", s.Username)
	_, _ = fmt.Fprintf(o.w, "Rating: %d\n", s.Rating)
	_, _ = fmt.Fprintf(o.w, "Record: %d-%d (%.0f%% of %d games)\n", s.Wins, s.Losses, s.WinRate*100, s.GamesPlayed)
	_, _ = fmt.Fprintf(o.w, "Points: %d for, %d against\n", s.PointsFor, s.PointsAgainst)
	_, _ = fmt.Fprintf(o.w, "Streak: %d (best %d)\n", s.CurrentStreak, s.BestStreak)
	_, _ = fmt.Fprintf(o.w, "Longest rally: %d\n", s.LongestRally)
}

func (o *Output) printMatchHistory(h MatchHistory) {
	if len(h.Matches) == 0 {
		_, _ = fmt.Fprintf(o.w, "%s has no completed matches\n", h.Username)
		return
	}
	tw := tabwriter.NewWriter(o.w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "WHEN\tRESULT\tOPPONENT\tSCORE\tRATING\tVARIANT")
	for _, m := range h.Matches {
		result := "L"
		if m.Won {
			result = "W"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%d-%d\t%+d\t%s\n",
			m.CompletedAt.Format(time.DateTime), result, m.Opponent,
			m.Scores[0], m.Scores[1], m.RatingChange, m.Variant)
	}
	_ = tw.Flush()
}

func (o *Output) printEvent(e Event) {
	timestamp := time.Now().Format("15:04:05")
	if len(e.Payload) == 0 {
		_, _ = fmt.Fprintf(o.w, "[%s] %s\n", timestamp, e.Type)
		return
	}
	_, _ = fmt.Fprintf(o.w, "[%s] %s %s\n", timestamp, e.Type, string(e.Payload))
}

func formatCounts(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, counts[k])
	}
	return strings.Join(parts, " ")
}
