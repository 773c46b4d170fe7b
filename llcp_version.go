package ll

import (
	"github.com/blang/semver"

	"github.com/paypal/go-ll-controller/internal/llcp"
)

// ourVersion is the Core spec LL version this controller implements
// (4.2), expressed as the local half of VERSION_IND: version, company ID
// (Bluetooth SIG member ID, 0xFFFF = "unassigned" here since this is not a
// registered implementation), sub-version.
const (
	ourLLVersion  uint8  = 8 // Core 4.2 per the Bluetooth SIG assigned-numbers table
	ourCompanyID  uint16 = 0xFFFF
	ourSubVersion uint16 = 1
)

// VersionIndSend is the host API entry point for sending VERSION_IND.
// A previously cached peer version short-circuits to a local response
// without going back on air, since the version exchange only ever needs
// to happen once per connection.
func (c *Controller) VersionIndSend(handle Handle) Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	conn, ok := c.conns[handle]
	if !ok {
		return StatusUnknownConnHandle
	}
	if conn.LLCP.Version.Cached {
		return StatusSuccess
	}
	if conn.LLCP.Outer.Active() != llcp.ProcNone {
		return StatusProcedureInProgress
	}
	conn.LLCP.Outer.Begin(llcp.ProcVersionExchange)
	conn.LLCP.Outer.Version = llcp.VersionState{Sent: true}
	ind := llcp.VersionInd{VersNr: ourLLVersion, CompID: ourCompanyID, SubVersNr: ourSubVersion}
	if err := c.sendCtrl(conn, llcp.OpVersionInd, ind.Marshal()); err != nil {
		conn.LLCP.Outer.End()
		return StatusNoResources
	}
	return StatusSuccess
}

// rxVersionInd caches the peer's version as a semver.Version
// and, if we have
// not yet sent our own VERSION_IND on this connection, replies with one.
func (c *Controller) rxVersionInd(conn *Connection, body []byte) {
	var ind llcp.VersionInd
	if err := ind.Unmarshal(body); err != nil {
		return
	}
	conn.LLCP.Version = versionInfo{
		Cached: true,
		Peer: semver.Version{
			Major: uint64(ind.VersNr),
			Minor: uint64(ind.SubVersNr >> 8),
			Patch: uint64(ind.SubVersNr & 0xFF),
		},
	}
	if conn.LLCP.Outer.Active() == llcp.ProcVersionExchange {
		conn.LLCP.Outer.End()
		c.metrics.ProceduresDone.WithLabelValues(llcp.ProcVersionExchange.String()).Inc()
		return
	}
	if !conn.LLCP.Outer.Version.Sent {
		conn.LLCP.Outer.Version.Sent = true
		rsp := llcp.VersionInd{VersNr: ourLLVersion, CompID: ourCompanyID, SubVersNr: ourSubVersion}
		_ = c.sendCtrl(conn, llcp.OpVersionInd, rsp.Marshal())
	}
}

// peerAtLeast reports whether the cached peer version is >= the given LL
// version number, the feature-gating comparison motivates
// representing the version as a semver.Version for.
func peerAtLeast(conn *Connection, llVersion uint8) bool {
	if !conn.LLCP.Version.Cached {
		return false
	}
	want := semver.Version{Major: uint64(llVersion)}
	return conn.LLCP.Version.Peer.GTE(want)
}
