package reservation

import (
	"fmt"
	"time"

	"github.com/gammadia/jeeves/namegen"
	"github.com/samber/lo"
)

// Mode selects what the platform lets you do with the nodes once granted.
type Mode string

const (
	// ModeClassicSSH grants SSH access to nodes running the standard
	// environment.
	ModeClassicSSH Mode = "allow_classic_ssh"
	// ModeDeploy grants the right to reimage the nodes with Deploy.
	ModeDeploy Mode = "deploy"
)

// Vlan selects the network isolation granted alongside the nodes.
type Vlan string

const (
	VlanNone     Vlan = ""
	VlanRouted   Vlan = "routed"
	VlanIsolated Vlan = "isolated"
)

// Subnet is one of the platform's predefined subnet widths.
type Subnet string

const (
	Slash18 Subnet = "slash_18"
	Slash19 Subnet = "slash_19"
	Slash20 Subnet = "slash_20"
	Slash21 Subnet = "slash_21"
	Slash22 Subnet = "slash_22"
)

// Request describes a desired allocation in declarative terms. The zero
// value asks for one node for one hour in classic SSH mode.
type Request struct {
	// Nodes is how many nodes to reserve. Mutually exclusive with Hosts.
	Nodes int
	// Hosts reserves these specific machines instead of a node count.
	Hosts []string
	// DeadHosts are machines known to be out of service; they are dropped
	// from Hosts before compilation.
	DeadHosts []string

	// Cluster constrains the allocation to a single cluster.
	Cluster string
	// Switches constrains the allocation to span this many switches.
	Switches int

	// Walltime is the duration of the reservation, 1h when zero.
	Walltime time.Duration
	// StartAt asks for an advance reservation starting at that instant
	// instead of an immediate allocation.
	StartAt time.Time

	Mode Mode
	Vlan Vlan
	// Slash asks for a subnet of this bit width (e.g. 22 for a /22). Takes
	// priority over Subnet when both are set.
	Slash int
	// Subnet asks for one of the predefined subnet widths.
	Subnet Subnet

	// Command runs on the head node once the resources are granted.
	// Defaults to sleeping for the walltime.
	Command string
	// Name is the display name of the job.
	Name string
	// Async submits the reservation and returns immediately instead of
	// blocking until it is running.
	Async bool
}

const DefaultWalltime = time.Hour

// withDefaults returns a copy of the request with the optional fields
// resolved, leaving the original untouched.
func (r Request) withDefaults() Request {
	if r.Nodes == 0 && len(r.Hosts) == 0 {
		r.Nodes = 1
	}
	r.Walltime = lo.Must(lo.Coalesce(r.Walltime, DefaultWalltime))
	r.Mode = lo.Must(lo.Coalesce(r.Mode, ModeClassicSSH))
	r.Command = lo.Must(lo.Coalesce(r.Command, fmt.Sprintf("sleep %d", int(r.Walltime.Seconds()))))
	if r.Name == "" {
		r.Name = namegen.Prefixed("jeeves").String()
	}
	return r
}

// Validate rejects invalid or conflicting requests. It runs before any
// network call and its failures are never retried.
func (r Request) Validate() error {
	if r.Nodes > 0 && len(r.Hosts) > 0 {
		return &ConfigurationError{Option: "nodes", Reason: "nodes and hosts are mutually exclusive"}
	}
	if r.Nodes < 0 {
		return &ConfigurationError{Option: "nodes", Reason: fmt.Sprintf("node count must be a positive integer, got %d", r.Nodes)}
	}
	if r.Switches < 0 {
		return &ConfigurationError{Option: "switches", Reason: fmt.Sprintf("switch count must be a positive integer, got %d", r.Switches)}
	}
	if r.Walltime < 0 {
		return &ConfigurationError{Option: "walltime", Reason: fmt.Sprintf("walltime must be a positive duration, got %s", r.Walltime)}
	}

	switch r.Mode {
	case "", ModeClassicSSH, ModeDeploy:
	default:
		return &ConfigurationError{Option: "mode", Reason: fmt.Sprintf("unrecognized mode '%s'", r.Mode)}
	}

	switch r.Vlan {
	case VlanNone, VlanRouted, VlanIsolated:
	default:
		return &ConfigurationError{Option: "vlan", Reason: fmt.Sprintf("unrecognized vlan option '%s'", r.Vlan)}
	}

	switch r.Subnet {
	case "", Slash18, Slash19, Slash20, Slash21, Slash22:
	default:
		return &ConfigurationError{Option: "subnet", Reason: fmt.Sprintf("unrecognized subnet width '%s'", r.Subnet)}
	}

	if r.Slash < 0 || (r.Slash > 0 && (r.Slash < 16 || r.Slash > 22)) {
		return &ConfigurationError{Option: "slash", Reason: fmt.Sprintf("subnet bit width must be between 16 and 22, got %d", r.Slash)}
	}

	if r.Vlan == VlanIsolated && (r.Slash > 0 || r.Subnet != "") {
		return &ConfigurationError{Option: "vlan", Reason: "an isolated vlan cannot be combined with a subnet width"}
	}

	return nil
}
