package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"fareradar/internal/flights"
	"fareradar/internal/service"
)

// Rank labels the flights in a JSON file with the same engine the API uses.
// The file holds either a bare array of flights or a search response object.
func (a *App) Rank(ctx context.Context, opts RankOptions) error {
	raw, err := os.ReadFile(opts.InputPath)
	if err != nil {
		return fmt.Errorf("read flights: %w", err)
	}
	results, err := decodeFlights(raw)
	if err != nil {
		return err
	}

	ranked := service.Annotate(results, nil)
	if opts.JSON {
		enc := json.NewEncoder(a.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(ranked)
	}

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tAirline\tPrice\tDuration\tStops\tScore\tLabel\tPrice context")
	for _, f := range ranked {
		minutes := flights.ParseDurationToMinutes(f.Duration)
		fmt.Fprintf(writer, "%s\t%s\t%d\t%s\t%s\t%.0f\t%s\t%s\n",
			f.ID,
			f.Airline,
			f.Price,
			flights.FormatDuration(minutes),
			f.Stops,
			flights.CalculateScore(f.FlightResult),
			f.Label,
			f.PriceContext,
		)
	}
	return writer.Flush()
}

func decodeFlights(raw []byte) ([]flights.FlightResult, error) {
	raw = bytes.TrimSpace(raw)
	var results []flights.FlightResult
	if len(raw) > 0 && raw[0] == '[' {
		if err := json.Unmarshal(raw, &results); err != nil {
			return nil, fmt.Errorf("decode flights: %w", err)
		}
		return results, nil
	}

	var wrapped struct {
		Flights []flights.FlightResult `json:"flights"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("decode flights: %w", err)
	}
	return wrapped.Flights, nil
}
