package reservation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileDefaults(t *testing.T) {
	spec, err := Compile(Request{})
	require.NoError(t, err)
	assert.Equal(t, "/nodes=1,walltime=1:00:00", spec.Resources)
	assert.Empty(t, spec.Properties)
	assert.Equal(t, 1, spec.Nodes)
}

func TestCompileClusterAndWalltime(t *testing.T) {
	spec, err := Compile(Request{Cluster: "paravance", Nodes: 2, Walltime: 30 * time.Minute})
	require.NoError(t, err)
	assert.Equal(t, "{cluster='paravance'}/nodes=2,walltime=0:30:00", spec.Resources)
}

func TestCompileIsolatedVlan(t *testing.T) {
	spec, err := Compile(Request{Vlan: VlanIsolated, Nodes: 1, Walltime: time.Hour})
	require.NoError(t, err)
	assert.Equal(t, "{type='kavlan'}/vlan=1+/nodes=1,walltime=1:00:00", spec.Resources)
}

func TestCompileRoutedVlanIsDefaultWidthSubnet(t *testing.T) {
	spec, err := Compile(Request{Vlan: VlanRouted, Nodes: 1})
	require.NoError(t, err)
	assert.Equal(t, "slash_22=1+/nodes=1,walltime=1:00:00", spec.Resources)
}

func TestCompileNamedSubnetWidth(t *testing.T) {
	spec, err := Compile(Request{Subnet: Slash18, Nodes: 3})
	require.NoError(t, err)
	assert.Equal(t, "slash_18=1+/nodes=3,walltime=1:00:00", spec.Resources)
}

func TestCompileExplicitSlashTakesPriorityOverNamedWidth(t *testing.T) {
	spec, err := Compile(Request{Slash: 20, Subnet: Slash18, Nodes: 1})
	require.NoError(t, err)
	assert.Equal(t, "slash_20=1+/nodes=1,walltime=1:00:00", spec.Resources)
}

func TestCompileSwitches(t *testing.T) {
	spec, err := Compile(Request{Nodes: 4, Switches: 1})
	require.NoError(t, err)
	assert.Equal(t, "/switch=1/nodes=4,walltime=1:00:00", spec.Resources)
}

func TestCompileHostsAreSorted(t *testing.T) {
	spec, err := Compile(Request{Hosts: []string{"nodeB", "nodeA"}})
	require.NoError(t, err)
	assert.Equal(t, "host in ('nodeA','nodeB')", spec.Properties)
	assert.Equal(t, 2, spec.Nodes)
	assert.Equal(t, "/nodes=2,walltime=1:00:00", spec.Resources)
}

func TestCompileDeadHostsAreFiltered(t *testing.T) {
	spec, err := Compile(Request{
		Hosts:     []string{"nodeC", "nodeA", "nodeB"},
		DeadHosts: []string{"nodeB"},
	})
	require.NoError(t, err)
	assert.Equal(t, "host in ('nodeA','nodeC')", spec.Properties)
	assert.Equal(t, 2, spec.Nodes)
}

func TestCompileAllHostsDeadStillCompiles(t *testing.T) {
	spec, err := Compile(Request{
		Hosts:     []string{"nodeA"},
		DeadHosts: []string{"nodeA"},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, spec.Nodes)
	assert.Equal(t, "/nodes=0,walltime=1:00:00", spec.Resources)
}

func TestCompileNodesAndHostsAreMutuallyExclusive(t *testing.T) {
	_, err := Compile(Request{Nodes: 2, Hosts: []string{"nodeA"}})
	var configErr *ConfigurationError
	require.ErrorAs(t, err, &configErr)
	assert.Equal(t, "nodes", configErr.Option)
}

func TestCompileIsolatedVlanRejectsSubnetWidth(t *testing.T) {
	_, err := Compile(Request{Vlan: VlanIsolated, Slash: 22})
	var configErr *ConfigurationError
	require.ErrorAs(t, err, &configErr)
	assert.Equal(t, "vlan", configErr.Option)
}

func TestCompileUnrecognizedVlan(t *testing.T) {
	_, err := Compile(Request{Vlan: "purple"})
	var configErr *ConfigurationError
	require.ErrorAs(t, err, &configErr)
	assert.Equal(t, "vlan", configErr.Option)
}

func TestCompileUnrecognizedMode(t *testing.T) {
	_, err := Compile(Request{Mode: "interactive"})
	var configErr *ConfigurationError
	require.ErrorAs(t, err, &configErr)
	assert.Equal(t, "mode", configErr.Option)
}

func TestCompileUnrecognizedSubnetWidth(t *testing.T) {
	_, err := Compile(Request{Subnet: "slash_8"})
	var configErr *ConfigurationError
	require.ErrorAs(t, err, &configErr)
	assert.Equal(t, "subnet", configErr.Option)
}

func TestCompileNegativeNodes(t *testing.T) {
	_, err := Compile(Request{Nodes: -1})
	var configErr *ConfigurationError
	require.ErrorAs(t, err, &configErr)
}

func TestCompileNegativeWalltime(t *testing.T) {
	_, err := Compile(Request{Nodes: 1, Walltime: -30 * time.Minute})
	var configErr *ConfigurationError
	require.ErrorAs(t, err, &configErr)
	assert.Equal(t, "walltime", configErr.Option)
}

func TestCompileIsDeterministic(t *testing.T) {
	request := Request{
		Hosts:     []string{"nodeB", "nodeA", "nodeC"},
		DeadHosts: []string{"nodeC"},
		Cluster:   "parasilo",
		Walltime:  90 * time.Minute,
	}
	first, err := Compile(request)
	require.NoError(t, err)
	second, err := Compile(request)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestCompileDoesNotMutateTheRequest(t *testing.T) {
	request := Request{Hosts: []string{"nodeB", "nodeA"}}
	_, err := Compile(request)
	require.NoError(t, err)
	assert.Equal(t, []string{"nodeB", "nodeA"}, request.Hosts)
	assert.Zero(t, request.Walltime)
}
