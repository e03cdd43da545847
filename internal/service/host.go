package service

// InProcessHost adapts the priority machine to a standalone daemon that is
// its own process controller: start requests are granted immediately from
// a separate goroutine, and termination is forwarded to a callback.
type InProcessHost struct {
	confirm   func()
	terminate func()
}

// NewInProcessHost returns an unbound host. Bind must be called before the
// host receives its first request.
func NewInProcessHost() *InProcessHost { return &InProcessHost{} }

// Bind installs the confirmation and termination callbacks. The terminate
// callback may be nil.
func (h *InProcessHost) Bind(confirm, terminate func()) {
	h.confirm = confirm
	h.terminate = terminate
}

// RequestStart grants the promotion asynchronously, the way a real host
// controller answers from its own context.
func (h *InProcessHost) RequestStart(StartStopReason) {
	if h.confirm != nil {
		go h.confirm()
	}
}

// Terminate forwards the teardown to the bound callback.
func (h *InProcessHost) Terminate() {
	if h.terminate != nil {
		go h.terminate()
	}
}
