// File: internal/concurrency/affinity.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Cross-platform NUMA topology queries. Dispatches to the build-tagged
// platformPreferredCPUID/platformCurrentNUMANodeID/platformNUMANodes
// variants (affinity_linux.go, affinity_windows.go, affinity_other.go,
// ...) so callers never need their own per-OS branches.

package concurrency

// PreferredCPUID returns a suggested logical CPU index for the given NUMA node.
func PreferredCPUID(numaNode int) int {
	return platformPreferredCPUID(numaNode)
}

// CurrentNUMANodeID returns the NUMA node ID of the current thread, or -1
// if the platform cannot report one.
func CurrentNUMANodeID() int {
	return platformCurrentNUMANodeID()
}

// NUMANodes returns the number of NUMA nodes configured on this host. Pool
// and transport sizing code uses it to fan buffer pools and listeners out
// per node; platforms without NUMA topology information report 1.
func NUMANodes() int {
	return platformNUMANodes()
}
