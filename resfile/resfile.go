package resfile

import (
	"fmt"
	"regexp"
	"time"

	"github.com/gammadia/jeeves/reservation"
)

const ResfileVersion = "1"

// Resfile is the declarative, on-disk form of a reservation.
type Resfile struct {
	Version string
	Name    string
	Site    string

	Cluster  string
	Nodes    int
	Hosts    []string
	Switches int

	Walltime string
	At       string

	Mode   string
	Vlan   string
	Slash  int
	Subnet string

	Command string
	// Environment is the OS image deployed once the reservation is running.
	// Requires deploy mode.
	Environment string
}

var nameRegex = regexp.MustCompile(`^[a-z][a-z0-9_-]+$`)

func (r Resfile) Validate() error {
	if r.Version != ResfileVersion {
		return fmt.Errorf("unsupported version '%s'", r.Version)
	}

	if r.Name != "" && !nameRegex.MatchString(r.Name) {
		return fmt.Errorf("name must be a valid identifier")
	}

	if r.Site == "" {
		return fmt.Errorf("site is required")
	}

	if r.Walltime != "" {
		if _, err := time.ParseDuration(r.Walltime); err != nil {
			return fmt.Errorf("walltime must be a valid duration: %w", err)
		}
	}

	if r.At != "" {
		if _, err := time.Parse(time.RFC3339, r.At); err != nil {
			return fmt.Errorf("at must be a valid RFC 3339 timestamp: %w", err)
		}
	}

	if r.Environment != "" && r.Mode != string(reservation.ModeDeploy) {
		return fmt.Errorf("environment requires mode '%s'", reservation.ModeDeploy)
	}

	return nil
}

// Request translates the file into the reservation request it describes.
// It must only be called on a file that Validate accepted: malformed
// walltime or at values are dropped here, not reported. Field-level
// validation beyond syntax is left to reservation.Compile.
func (r Resfile) Request() reservation.Request {
	request := reservation.Request{
		Name:     r.Name,
		Cluster:  r.Cluster,
		Nodes:    r.Nodes,
		Hosts:    r.Hosts,
		Switches: r.Switches,
		Mode:     reservation.Mode(r.Mode),
		Vlan:     reservation.Vlan(r.Vlan),
		Slash:    r.Slash,
		Subnet:   reservation.Subnet(r.Subnet),
		Command:  r.Command,
	}

	if r.Walltime != "" {
		request.Walltime, _ = time.ParseDuration(r.Walltime)
	}
	if r.At != "" {
		request.StartAt, _ = time.Parse(time.RFC3339, r.At)
	}

	return request
}
