package bridge

// Router delivers inbound act messages to the addressed device mirror.
//
// Both device cloud sessions subscribe to the same act topic and funnel
// into one router, so a single actuation can arrive once per session.
// RecordAct is idempotent under duplicate delivery, which makes the second
// arrival harmless.
type Router struct {
	mirrors map[string]*Mirror
	logger  Logger
}

// NewRouter creates a router over the given mirrors.
func NewRouter(mirrors []*Mirror, logger Logger) *Router {
	byName := make(map[string]*Mirror, len(mirrors))
	for _, m := range mirrors {
		byName[m.Name()] = m
	}
	return &Router{
		mirrors: byName,
		logger:  logger,
	}
}

// Route parses an act payload and records the actuation on the addressed
// mirror.
//
// Anything that cannot be routed is dropped: malformed JSON, a missing or
// misshapen switch_status_value, or a device name the bridge does not
// manage. Drops are logged at debug level and never mutate any mirror.
// Errors never propagate back to the transport.
func (r *Router) Route(payload []byte) {
	msg, err := ParseSwitchMessage(payload)
	if err != nil {
		r.logDebug("dropping unparseable act payload", "error", err)
		return
	}

	mirror, ok := r.mirrors[msg.DeviceID]
	if !ok {
		r.logDebug("dropping act for unmanaged device", "device", msg.DeviceID)
		return
	}

	mirror.RecordAct(msg.Status)
	r.logDebug("act recorded", "device", msg.DeviceID, "status", msg.Status.String())
}

// logDebug logs a debug message if a logger is set.
func (r *Router) logDebug(msg string, keysAndValues ...any) {
	if r.logger != nil {
		r.logger.Debug(msg, keysAndValues...)
	}
}
