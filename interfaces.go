package courtside

// ConnectivityMonitor reports network availability changes. The platform
// layer owns detection (OS reachability APIs, probe requests); the core
// only consumes the resulting signal.
//
// Changes returns a channel carrying true when the uplink becomes
// available and false when it is lost. The channel may be closed to stop
// reporting; the sync engine then falls back to its periodic cadence.
type ConnectivityMonitor interface {
	Changes() <-chan bool
}
