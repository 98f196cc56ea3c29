// Package record defines the box-score data model and the local CSV
// artifacts partition workers produce.
package record

import (
	"strconv"

	"github.com/courtsync-io/courtsync/internal/partition"
)

// GameID is the stable contest identifier extracted from a game link.
// Unique within a date; used as the join key across partitions.
type GameID string

func (id GameID) String() string { return string(id) }

// StatLine is one player's line in a box score.
type StatLine struct {
	Player   string
	Position string
	Minutes  string
	Points   int
	Rebounds int
	Assists  int
	Steals   int
	Blocks   int
	Turnovers int
	FGM      int
	FGA      int
	TPM      int
	TPA      int
	FTM      int
	FTA      int
}

// TeamBox holds one team's side of a game.
type TeamBox struct {
	Team     string
	Opponent string
	Lines    []StatLine
}

// Game is a complete scraped contest: both teams' box scores plus the
// metadata columns carried into the CSV output.
type Game struct {
	ID        GameID
	Link      string
	Date      string // ISO yyyy-mm-dd
	Partition partition.Key
	Home      TeamBox
	Away      TeamBox

	// Duplicate marks a game listed by more than one partition's scoreboard.
	// Set on the fetching partition's rows as well as on rows copied from
	// the owning partition's artifact, so the flag agrees across every
	// artifact carrying the game.
	Duplicate bool
}

// csvHeader is the column layout of artifact files. Order is fixed so output
// is byte-for-byte reproducible.
var csvHeader = []string{
	"PLAYER", "POS", "MIN", "PTS", "REB", "AST", "STL", "BLK", "TO",
	"FGM", "FGA", "3PM", "3PA", "FTM", "FTA",
	"TEAM", "OPP", "GAMEID", "GAMELINK", "DATE", "DIVISION", "GENDER",
	"DUPLICATE_ACROSS_DIVISIONS",
}

// rows flattens the game into CSV rows, home team first.
func (g *Game) rows() [][]string {
	out := make([][]string, 0, len(g.Home.Lines)+len(g.Away.Lines))
	for _, side := range []TeamBox{g.Home, g.Away} {
		for _, l := range side.Lines {
			out = append(out, []string{
				l.Player, l.Position, l.Minutes,
				strconv.Itoa(l.Points), strconv.Itoa(l.Rebounds), strconv.Itoa(l.Assists),
				strconv.Itoa(l.Steals), strconv.Itoa(l.Blocks), strconv.Itoa(l.Turnovers),
				strconv.Itoa(l.FGM), strconv.Itoa(l.FGA),
				strconv.Itoa(l.TPM), strconv.Itoa(l.TPA),
				strconv.Itoa(l.FTM), strconv.Itoa(l.FTA),
				side.Team, side.Opponent, string(g.ID), g.Link, g.Date,
				string(g.Partition.Division), string(g.Partition.Gender),
				strconv.FormatBool(g.Duplicate),
			})
		}
	}
	return out
}
