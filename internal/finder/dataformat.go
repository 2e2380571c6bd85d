package finder

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/banshee-data/rupture.report/internal/geo"
)

// ParseObservations reads the whitespace-delimited playback format, one
// station per line:
//
//	<lat> <lon> <NET.STA.LOC.CHA> <trigger_flag> <pga>
//
// Blank lines and lines starting with # are skipped. The timestamp (unix
// seconds) applies to every observation in the file since playback
// advances one file per timestep.
func ParseObservations(r io.Reader, timestamp float64) ([]Observation, error) {
	var out []Observation
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 5 {
			return nil, fmt.Errorf("line %d: want 5 fields, got %d", lineNo, len(fields))
		}
		lat, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad latitude %q", lineNo, fields[0])
		}
		lon, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad longitude %q", lineNo, fields[1])
		}
		parts := strings.Split(fields[2], ".")
		if len(parts) != 4 {
			return nil, fmt.Errorf("line %d: bad channel id %q", lineNo, fields[2])
		}
		trig, err := strconv.Atoi(fields[3])
		if err != nil {
			return nil, fmt.Errorf("line %d: bad trigger flag %q", lineNo, fields[3])
		}
		pga, err := strconv.ParseFloat(fields[4], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad pga %q", lineNo, fields[4])
		}
		out = append(out, Observation{
			Network:   parts[0],
			Station:   parts[1],
			Location:  parts[2],
			Channel:   parts[3],
			Coord:     geo.Coord{Lat: lat, Lon: lon},
			PGA:       pga,
			Timestamp: timestamp,
			Include:   true,
			Triggered: trig != 0,
		})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
