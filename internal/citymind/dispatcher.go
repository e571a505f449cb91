package citymind

// Callbacks are the typed events a session client emits. Both are optional;
// nil callbacks are skipped. OnStatusChanged fires exactly once per status
// transition with the new value. OnDataChanged fires once at the end of a
// completed update cycle (and after an alert-settings mutation reload), so
// observers always see a consistent snapshot rather than a partially
// updated one.
//
// Callbacks are invoked synchronously from the client's calling goroutine;
// implementations that need to do real work should hand off (the poller
// signals a channel).
type Callbacks struct {
	OnStatusChanged func(status ConnectivityStatus)
	OnDataChanged   func()
}

func (c Callbacks) statusChanged(status ConnectivityStatus) {
	if c.OnStatusChanged != nil {
		c.OnStatusChanged(status)
	}
}

func (c Callbacks) dataChanged() {
	if c.OnDataChanged != nil {
		c.OnDataChanged()
	}
}
