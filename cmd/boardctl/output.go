package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"tubeboard.app/internal/board"
	"tubeboard.app/internal/models"
	"tubeboard.app/internal/rtt"
	"tubeboard.app/internal/transit"
)

type printer struct {
	w *tabwriter.Writer
}

// emit prints v as indented JSON with --json, otherwise through table.
func (c *cli) emit(v any, table func(p *printer)) error {
	if c.asJSON {
		enc := json.NewEncoder(c.env.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	p := &printer{w: tabwriter.NewWriter(c.env.out, 0, 4, 2, ' ', 0)}
	table(p)
	return p.w.Flush()
}

func (p *printer) linef(format string, args ...any) {
	fmt.Fprintf(p.w, format+"\n", args...)
}

func (p *printer) lines(lines []board.LineTile) {
	if len(lines) == 0 {
		p.linef("No lines match the active filters.")
		return
	}
	p.linef("ID\tNAME\tMODE\tSTATUS")
	for _, l := range lines {
		status := l.Status
		if l.Disrupted {
			status = "! " + status
		}
		p.linef("%s\t%s\t%s\t%s", l.ID, l.Name, l.Mode, status)
	}
}

func (p *printer) stations(stations []board.StationTile) {
	if len(stations) == 0 {
		p.linef("No stations.")
		return
	}
	p.linef("ID\tNAME\tFAV\tRAIL")
	for _, s := range stations {
		p.linef("%s\t%s\t%s\t%s", s.ID, s.ShortName, mark(s.Favorite, "*"), mark(s.Rail, "yes"))
	}
}

func (p *printer) board(b transit.Board) {
	if len(b.Lines) > 0 {
		names := make([]string, 0, len(b.Lines))
		for _, l := range b.Lines {
			if l.Active {
				names = append(names, l.Name)
			} else {
				names = append(names, l.Name+" (hidden)")
			}
		}
		p.linef("Lines: %s", strings.Join(names, ", "))
	}
	if b.Empty || len(b.Platforms) == 0 {
		p.linef("No arrivals.")
		return
	}
	for _, group := range b.Platforms {
		p.linef("%s", group.Name)
		for _, row := range group.Arrivals {
			p.linef("  %s\t%s\t%s\t%s", row.LineName, row.Destination, row.TimeText, row.Expected)
		}
	}
}

func (p *printer) rail(rows []rtt.Arrival) {
	if len(rows) == 0 {
		p.linef("No rail arrivals.")
		return
	}
	p.linef("TIME\tPLAT\tDESTINATION\tOPERATOR\tSOURCE")
	for _, r := range rows {
		source := "timetable"
		if r.Realtime {
			source = "live"
		}
		p.linef("%s\t%s\t%s\t%s\t%s", r.Time, r.Platform, r.Destination, r.Operator, source)
	}
}

func (p *printer) nearby(near []board.NearbyStation, limitExceeded bool) {
	if len(near) == 0 {
		p.linef("No known stations nearby.")
		return
	}
	p.linef("ID\tNAME\tDISTANCE")
	for _, n := range near {
		p.linef("%s\t%s\t%s", n.Station.ID, n.Station.CommonName, humanize.SIWithDigits(n.Distance, 1, "m"))
	}
	if limitExceeded {
		p.linef("More stations are nearby; raise --limit to see them.")
	}
}

func (p *printer) toggle(t models.FavoriteToggle) {
	verb := "Removed"
	if t.Favorite {
		verb = "Added"
	}
	p.linef("%s %s (%d favourites)", verb, t.StationID, len(t.Favorites))
}

func (p *printer) filters(f models.FiltersData) {
	p.linef("Active:\t%s", listOrNone(f.Active))
	p.linef("Available:\t%s", listOrNone(f.Available))
}

func (p *printer) session(entry sessionEntry, now time.Time) {
	title := "Station"
	if entry.Station != nil {
		title = entry.Station.ShortName
	}
	switch {
	case entry.UpdatedAt.IsZero():
		p.linef("%s, waiting for data", title)
	case entry.Stale:
		p.linef("%s, updated %s (stale)", title, humanize.RelTime(entry.UpdatedAt, now, "ago", "from now"))
	default:
		p.linef("%s, updated %s", title, humanize.RelTime(entry.UpdatedAt, now, "ago", "from now"))
	}
	for _, n := range entry.Notices {
		p.linef("! %s", n.Message)
	}
	if entry.Board != nil {
		p.board(*entry.Board)
	}
	p.linef("")
}

func mark(on bool, s string) string {
	if on {
		return s
	}
	return ""
}

func listOrNone(list []string) string {
	if len(list) == 0 {
		return "(none)"
	}
	return strings.Join(list, ", ")
}
