package ncaa

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/courtsync-io/courtsync/internal/chrono"
	"github.com/courtsync-io/courtsync/internal/partition"
	"github.com/courtsync-io/courtsync/internal/record"
	"github.com/courtsync-io/courtsync/internal/source"
)

// FetchGame retrieves a contest's individual-stats page and extracts both
// teams' box scores.
func (c *Client) FetchGame(ctx context.Context, date chrono.Date, key partition.Key, id record.GameID) (*record.Game, error) {
	path := fmt.Sprintf("/contests/%s/individual_stats", id)

	resp, err := c.http.R().SetContext(ctx).Get(path)
	if err != nil {
		return nil, source.Transient(err)
	}
	if resp.StatusCode() == 404 {
		return nil, &source.ParseError{ID: id, Err: fmt.Errorf("contest page not found")}
	}
	if resp.IsError() {
		return nil, source.Transient(fmt.Errorf("contest page returned %d", resp.StatusCode()))
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(resp.String()))
	if err != nil {
		return nil, source.Transient(fmt.Errorf("parse contest page: %w", err))
	}

	teams, err := extractTeams(doc)
	if err != nil {
		return nil, &source.ParseError{ID: id, Err: err}
	}
	if len(teams) != 2 {
		return nil, &source.ParseError{ID: id, Err: fmt.Errorf("expected 2 team tables, found %d", len(teams))}
	}

	teams[0].Opponent = teams[1].Team
	teams[1].Opponent = teams[0].Team

	return &record.Game{
		ID:        id,
		Link:      c.cfg.BaseURL + path,
		Date:      date.ISO(),
		Partition: key,
		Away:      teams[0],
		Home:      teams[1],
	}, nil
}

// boxColumns maps the stat table headers we extract to StatLine fields.
var boxColumns = map[string]func(*record.StatLine, string){
	"Name":   func(l *record.StatLine, v string) { l.Player = v },
	"P":      func(l *record.StatLine, v string) { l.Position = v },
	"Pos":    func(l *record.StatLine, v string) { l.Position = v },
	"MP":     func(l *record.StatLine, v string) { l.Minutes = v },
	"Min":    func(l *record.StatLine, v string) { l.Minutes = v },
	"PTS":    func(l *record.StatLine, v string) { l.Points = atoi(v) },
	"TRB":    func(l *record.StatLine, v string) { l.Rebounds = atoi(v) },
	"REB":    func(l *record.StatLine, v string) { l.Rebounds = atoi(v) },
	"AST":    func(l *record.StatLine, v string) { l.Assists = atoi(v) },
	"STL":    func(l *record.StatLine, v string) { l.Steals = atoi(v) },
	"BLK":    func(l *record.StatLine, v string) { l.Blocks = atoi(v) },
	"TO":     func(l *record.StatLine, v string) { l.Turnovers = atoi(v) },
	"FGM":    func(l *record.StatLine, v string) { l.FGM = atoi(v) },
	"FGA":    func(l *record.StatLine, v string) { l.FGA = atoi(v) },
	"3FG":    func(l *record.StatLine, v string) { l.TPM = atoi(v) },
	"3PM":    func(l *record.StatLine, v string) { l.TPM = atoi(v) },
	"3FGA":   func(l *record.StatLine, v string) { l.TPA = atoi(v) },
	"3PA":    func(l *record.StatLine, v string) { l.TPA = atoi(v) },
	"FT":     func(l *record.StatLine, v string) { l.FTM = atoi(v) },
	"FTM":    func(l *record.StatLine, v string) { l.FTM = atoi(v) },
	"FTA":    func(l *record.StatLine, v string) { l.FTA = atoi(v) },
}

// extractTeams pulls per-team stat tables out of the page. Each team is a
// card whose header carries the team name and whose table body holds one row
// per player.
func extractTeams(doc *goquery.Document) ([]record.TeamBox, error) {
	var teams []record.TeamBox
	var parseErr error

	doc.Find("div.card").EachWithBreak(func(_ int, card *goquery.Selection) bool {
		table := card.Find("table")
		if table.Length() == 0 {
			return true
		}

		name := strings.TrimSpace(card.Find(".card-header").First().Text())
		if name == "" {
			return true
		}

		headers := []string{}
		table.Find("thead th").Each(func(_ int, th *goquery.Selection) {
			headers = append(headers, strings.TrimSpace(th.Text()))
		})
		if len(headers) == 0 {
			parseErr = fmt.Errorf("team table for %q has no header row", name)
			return false
		}

		box := record.TeamBox{Team: name}
		table.Find("tbody tr").Each(func(_ int, tr *goquery.Selection) {
			var line record.StatLine
			tr.Find("td").Each(func(i int, td *goquery.Selection) {
				if i >= len(headers) {
					return
				}
				if set, ok := boxColumns[headers[i]]; ok {
					set(&line, strings.TrimSpace(td.Text()))
				}
			})
			// Totals rows carry no player name.
			if line.Player != "" && !strings.EqualFold(line.Player, "totals") {
				box.Lines = append(box.Lines, line)
			}
		})

		if len(box.Lines) > 0 {
			teams = append(teams, box)
		}
		return true
	})

	if parseErr != nil {
		return nil, parseErr
	}
	if len(teams) == 0 {
		return nil, fmt.Errorf("no team stat tables found")
	}
	return teams, nil
}

func atoi(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}
