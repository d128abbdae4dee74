package cli

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/spf13/cobra"
)

var iataCode = regexp.MustCompile(`^[A-Z]{3}$`)

// routeFlags are the --origin/--destination pair shared by route commands.
type routeFlags struct {
	origin      string
	destination string
}

func (r *routeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&r.origin, "origin", "", "Origin IATA code")
	cmd.Flags().StringVar(&r.destination, "destination", "", "Destination IATA code")
	_ = cmd.MarkFlagRequired("origin")
	_ = cmd.MarkFlagRequired("destination")
}

func (r *routeFlags) validate() error {
	r.origin = strings.ToUpper(strings.TrimSpace(r.origin))
	r.destination = strings.ToUpper(strings.TrimSpace(r.destination))
	if !iataCode.MatchString(r.origin) {
		return fmt.Errorf("--origin must be a 3-letter IATA code, got %q", r.origin)
	}
	if !iataCode.MatchString(r.destination) {
		return fmt.Errorf("--destination must be a 3-letter IATA code, got %q", r.destination)
	}
	if r.origin == r.destination {
		return fmt.Errorf("--origin and --destination must differ")
	}
	return nil
}
