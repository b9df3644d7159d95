// Package catalog loads the observational inputs of a run: the event,
// station and arrival CSV files, joined into the read-only arrival set the
// inversion consumes. Coordinates are model-frame kilometres (z down) and
// times are seconds on the catalog clock; the observed travel time of an
// arrival is its pick time minus the event origin time, computed here once.
package catalog

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/banshee-data/tomo.report/internal/monitoring"
	"github.com/banshee-data/tomo.report/internal/tomo"
)

// Event is one seismic event with a located hypocenter.
type Event struct {
	ID         string
	Hypocenter tomo.Point
	OriginTime float64
}

// Station is one receiver. IDs follow the network.code convention and match
// the travel-time field naming on disk.
type Station struct {
	ID       string
	Position tomo.Point
}

// Catalog is the joined observational dataset.
type Catalog struct {
	Events   []Event
	Stations []Station
	Arrivals []tomo.Arrival
	Skipped  int // arrival rows dropped while joining
}

// StationPositions returns station coordinates keyed by ID, the form the
// forward field computers take.
func (c *Catalog) StationPositions() map[string]tomo.Point {
	m := make(map[string]tomo.Point, len(c.Stations))
	for _, s := range c.Stations {
		m[s.ID] = s.Position
	}
	return m
}

// Load reads the three catalog files and joins them. Malformed rows are
// errors; arrival rows referencing unknown events or stations, or with a
// non-positive travel time, are skipped and counted.
func Load(eventsPath, stationsPath, arrivalsPath string) (*Catalog, error) {
	events, err := LoadEvents(eventsPath)
	if err != nil {
		return nil, err
	}
	stations, err := LoadStations(stationsPath)
	if err != nil {
		return nil, err
	}
	picks, err := loadPicks(arrivalsPath)
	if err != nil {
		return nil, err
	}

	eventByID := make(map[string]Event, len(events))
	for _, ev := range events {
		eventByID[ev.ID] = ev
	}
	stationByID := make(map[string]Station, len(stations))
	for _, s := range stations {
		stationByID[s.ID] = s
	}

	c := &Catalog{Events: events, Stations: stations}
	c.Arrivals = make([]tomo.Arrival, 0, len(picks))
	for _, pk := range picks {
		ev, okEv := eventByID[pk.eventID]
		st, okSt := stationByID[pk.station]
		if !okEv || !okSt {
			c.Skipped++
			continue
		}
		tt := pk.time - ev.OriginTime
		if tt <= 0 {
			c.Skipped++
			continue
		}
		c.Arrivals = append(c.Arrivals, tomo.Arrival{
			EventID:  pk.eventID,
			Station:  pk.station,
			Phase:    pk.phase,
			Time:     tt,
			Source:   ev.Hypocenter,
			Receiver: st.Position,
		})
	}
	if c.Skipped > 0 {
		monitoring.Logf("catalog: skipped %d of %d arrival rows (unknown refs or non-positive travel time)", c.Skipped, len(picks))
	}
	return c, nil
}

// LoadEvents reads an events CSV with header event_id,x,y,z,origin_time.
func LoadEvents(path string) ([]Event, error) {
	records, err := readCSV(path, []string{"event_id", "x", "y", "z", "origin_time"})
	if err != nil {
		return nil, fmt.Errorf("events file %s: %w", path, err)
	}
	events := make([]Event, 0, len(records))
	seen := make(map[string]bool, len(records))
	for i, rec := range records {
		line := i + 2
		id := strings.TrimSpace(rec[0])
		if id == "" {
			return nil, fmt.Errorf("events file %s: empty event_id at line %d", path, line)
		}
		if seen[id] {
			return nil, fmt.Errorf("events file %s: duplicate event_id %q at line %d", path, id, line)
		}
		seen[id] = true
		p, err := parsePoint(rec[1], rec[2], rec[3])
		if err != nil {
			return nil, fmt.Errorf("events file %s: line %d: %w", path, line, err)
		}
		origin, err := strconv.ParseFloat(strings.TrimSpace(rec[4]), 64)
		if err != nil {
			return nil, fmt.Errorf("events file %s: invalid origin_time at line %d: %w", path, line, err)
		}
		events = append(events, Event{ID: id, Hypocenter: p, OriginTime: origin})
	}
	return events, nil
}

// LoadStations reads a stations CSV with header station,x,y,z.
func LoadStations(path string) ([]Station, error) {
	records, err := readCSV(path, []string{"station", "x", "y", "z"})
	if err != nil {
		return nil, fmt.Errorf("stations file %s: %w", path, err)
	}
	stations := make([]Station, 0, len(records))
	seen := make(map[string]bool, len(records))
	for i, rec := range records {
		line := i + 2
		id := strings.TrimSpace(rec[0])
		if id == "" {
			return nil, fmt.Errorf("stations file %s: empty station at line %d", path, line)
		}
		if seen[id] {
			return nil, fmt.Errorf("stations file %s: duplicate station %q at line %d", path, id, line)
		}
		seen[id] = true
		p, err := parsePoint(rec[1], rec[2], rec[3])
		if err != nil {
			return nil, fmt.Errorf("stations file %s: line %d: %w", path, line, err)
		}
		stations = append(stations, Station{ID: id, Position: p})
	}
	return stations, nil
}

type pick struct {
	eventID string
	station string
	phase   tomo.Phase
	time    float64
}

// loadPicks reads an arrivals CSV with header event_id,station,phase,time.
func loadPicks(path string) ([]pick, error) {
	records, err := readCSV(path, []string{"event_id", "station", "phase", "time"})
	if err != nil {
		return nil, fmt.Errorf("arrivals file %s: %w", path, err)
	}
	picks := make([]pick, 0, len(records))
	for i, rec := range records {
		line := i + 2
		phase, err := parsePhase(rec[2])
		if err != nil {
			return nil, fmt.Errorf("arrivals file %s: line %d: %w", path, line, err)
		}
		tm, err := strconv.ParseFloat(strings.TrimSpace(rec[3]), 64)
		if err != nil {
			return nil, fmt.Errorf("arrivals file %s: invalid time at line %d: %w", path, line, err)
		}
		picks = append(picks, pick{
			eventID: strings.TrimSpace(rec[0]),
			station: strings.TrimSpace(rec[1]),
			phase:   phase,
			time:    tm,
		})
	}
	return picks, nil
}

func parsePhase(s string) (tomo.Phase, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "P":
		return tomo.PhaseP, nil
	case "S":
		return tomo.PhaseS, nil
	}
	return "", fmt.Errorf("invalid phase %q, expected P or S", s)
}

func parsePoint(xs, ys, zs string) (tomo.Point, error) {
	x, err := strconv.ParseFloat(strings.TrimSpace(xs), 64)
	if err != nil {
		return tomo.Point{}, fmt.Errorf("invalid x: %w", err)
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(ys), 64)
	if err != nil {
		return tomo.Point{}, fmt.Errorf("invalid y: %w", err)
	}
	z, err := strconv.ParseFloat(strings.TrimSpace(zs), 64)
	if err != nil {
		return tomo.Point{}, fmt.Errorf("invalid z: %w", err)
	}
	return tomo.Point{X: x, Y: y, Z: z}, nil
}

// readCSV loads a CSV file and validates its header, returning the data
// rows. The csv reader enforces a uniform field count.
func readCSV(path string, header []string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	if len(records) < 1 {
		return nil, fmt.Errorf("missing header row")
	}
	got := records[0]
	if len(got) != len(header) {
		return nil, fmt.Errorf("invalid header, expected %s", strings.Join(header, ","))
	}
	for i, name := range header {
		if !strings.EqualFold(strings.TrimSpace(got[i]), name) {
			return nil, fmt.Errorf("invalid header, expected %s", strings.Join(header, ","))
		}
	}
	return records[1:], nil
}
