package topology

import "sync/atomic"

// PublishedViews holds the two snapshots readers consume: hosts ordered by
// RTT, and hosts grouped by role. Each is stored behind its own
// atomic.Pointer so publication is wait-free for readers and lock-free for
// the single writer -- the Go analogue of the RCU primitive this component
// was originally built on: readers load an immutable snapshot and the
// garbage collector reclaims the previous one once no reader holds it.
//
// The two variables are updated sequentially by Publish, not as one atomic
// unit; a reader that reads both may observe the new AliveByRtt with the
// still-old IndicesByRole for one brief window. Consumers must tolerate
// this, exactly as spec'd: every index present in either view is a real,
// currently-alive host, and role assignment may lag by at most one cycle.
type PublishedViews struct {
	aliveByRtt    atomic.Pointer[[]int]
	indicesByRole atomic.Pointer[map[HostRole][]int]
}

// NewPublishedViews returns views in their starting, empty state.
func NewPublishedViews() *PublishedViews {
	v := &PublishedViews{}
	empty := []int{}
	emptyRoles := map[HostRole][]int{}
	v.aliveByRtt.Store(&empty)
	v.indicesByRole.Store(&emptyRoles)
	return v
}

// AliveByRtt returns a stable snapshot of alive host indices, ascending RTT.
// The returned slice must not be mutated by the caller.
func (v *PublishedViews) AliveByRtt() []int {
	return *v.aliveByRtt.Load()
}

// IndicesByRole returns a stable snapshot mapping role to host indices.
// The returned map must not be mutated by the caller.
func (v *PublishedViews) IndicesByRole() map[HostRole][]int {
	return *v.indicesByRole.Load()
}

// Publish replaces both snapshots with the result of a completed discovery
// cycle, each atomically, AliveByRtt first and IndicesByRole second. Called exactly once per cycle, strictly after
// every probe for that cycle has joined.
func (v *PublishedViews) Publish(alive []int, byRole map[HostRole][]int) {
	v.aliveByRtt.Store(&alive)
	v.indicesByRole.Store(&byRole)
}
