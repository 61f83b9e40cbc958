package notify

// Event types emitted by the gateway and poll pipeline.
const (
	// EventFallbackEnter fires when a poll cycle had to serve fallback data
	// after the previous cycle was live.
	EventFallbackEnter = "fallback_enter"

	// EventFallbackExit fires when live data returns after one or more
	// fallback cycles.
	EventFallbackExit = "fallback_exit"

	// EventPollError fires when a poll cycle fails outright, including the
	// fallback path.
	EventPollError = "poll_error"
)
