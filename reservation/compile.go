package reservation

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"
)

// Spec is the compiled form of a Request: the platform's textual resource
// selector plus an optional properties filter.
type Spec struct {
	Resources  string
	Properties string
	// Nodes is the resolved node count, which may differ from the request
	// when a host list was filtered.
	Nodes int
}

// Compile translates a Request into the platform's resource-selection
// grammar. It is pure and deterministic: the same request always yields the
// same spec, and no network call is ever made.
func Compile(request Request) (Spec, error) {
	if err := request.Validate(); err != nil {
		return Spec{}, err
	}
	request = request.withDefaults()

	spec := Spec{Nodes: request.Nodes}

	if len(request.Hosts) > 0 {
		alive := lo.Without(request.Hosts, request.DeadHosts...)
		sort.Strings(alive)
		// An empty surviving list compiles to nodes=0; rejecting that is
		// the caller's call.
		spec.Nodes = len(alive)
		spec.Properties = fmt.Sprintf("host in (%s)", strings.Join(
			lo.Map(alive, func(host string, _ int) string { return fmt.Sprintf("'%s'", host) }), ","))
	}

	resources := fmt.Sprintf("/nodes=%d,walltime=%s", spec.Nodes, formatWalltime(request.Walltime))
	if request.Switches > 0 {
		resources = fmt.Sprintf("/switch=%d", request.Switches) + resources
	}
	if request.Cluster != "" {
		resources = fmt.Sprintf("{cluster='%s'}", request.Cluster) + resources
	}
	if request.Vlan == VlanIsolated {
		resources = "{type='kavlan'}/vlan=1+" + resources
	}
	if bits := subnetBits(request); bits > 0 {
		resources = fmt.Sprintf("slash_%d=1+", bits) + resources
	}

	spec.Resources = resources
	return spec, nil
}

// subnetBits resolves the width of the subnet sub-allocation, 0 when none is
// wanted. An explicit bit count silently takes priority over a predefined
// width.
func subnetBits(request Request) int {
	if request.Slash > 0 {
		return request.Slash
	}
	if request.Subnet != "" {
		var bits int
		fmt.Sscanf(string(request.Subnet), "slash_%d", &bits)
		return bits
	}
	if request.Vlan == VlanRouted {
		// A routed vlan is a routed subnet of the default width.
		return 22
	}
	return 0
}

// formatWalltime renders a duration in the H:MM:SS grammar the platform
// expects. Hours are not zero-padded.
func formatWalltime(d time.Duration) string {
	seconds := int(d.Seconds())
	return fmt.Sprintf("%d:%02d:%02d", seconds/3600, seconds/60%60, seconds%60)
}
