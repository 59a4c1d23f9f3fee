package core

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// EventSink receives every recorded event, e.g. a telemetry encoder
type EventSink func(Event)

// Event captures a state-machine or scheduler event for post-mortem analysis
type Event struct {
	Type   uint8  // Event type code
	Tick   uint32 // Watchdog tick at event
	Value1 uint32 // Context-dependent value
	Value2 uint32 // Context-dependent value
}

// Event type codes
const (
	EvtBoot       = 1  // v1=input strategy, v2=cold boot
	EvtPress      = 2  // v1=press class, v2=raw reading
	EvtMode       = 3  // v1=new index, v2=level
	EvtStepDown   = 4  // v1=cause, v2=new index
	EvtShutoff    = 5  // v1=cause, v2=last reading
	EvtStepUp     = 6  // v1=cause, v2=new index
	EvtMenuEnter  = 7  // v1=fast presses
	EvtToggle     = 8  // v1=item, v2=new value
	EvtRevert     = 9  // v1=item, v2=restored value
	EvtFirstBoot  = 10 // v1=reason
	EvtStoreError = 11 // v1=address
	EvtSleep      = 12 // v1=sleep mode
	EvtSample     = 13 // v1=source, v2=reading
)

// Step-down causes carried in Value1 of EvtStepDown/EvtShutoff/EvtStepUp
const (
	CauseBattery = 1
	CauseThermal = 2
	CauseTurbo   = 3
)

const (
	EventRingSize = 32 // Keep last 32 events for post-mortem
)

var (
	// debugPrintln is the global debug print function (can be set by platform code)
	debugPrintln DebugWriter = func(s string) {} // No-op by default

	// debugEnabled controls whether debug output is active
	debugEnabled bool = false

	eventRing     [EventRingSize]Event
	eventRingHead uint8
	eventSink     EventSink
)

// SetDebugWriter sets the platform-specific debug output function
// This allows platforms to redirect debug output to UART, USB, etc.
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

// SetDebugEnabled enables or disables debug output
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// IsDebugEnabled returns whether debug output is enabled
func IsDebugEnabled() bool {
	return debugEnabled
}

// SetEventSink installs fn to be called for every recorded event.
// Pass nil to detach.
func SetEventSink(fn EventSink) {
	eventSink = fn
}

// DebugPrintln writes a debug message using the platform-specific writer
func DebugPrintln(msg string) {
	if debugEnabled && debugPrintln != nil {
		debugPrintln(msg)
	}
}

// RecordEvent appends an event to the ring buffer and forwards it to the sink.
func RecordEvent(eventType uint8, tick, value1, value2 uint32) {
	evt := Event{
		Type:   eventType,
		Tick:   tick,
		Value1: value1,
		Value2: value2,
	}
	idx := eventRingHead
	eventRing[idx] = evt
	eventRingHead = (idx + 1) % EventRingSize

	if debugEnabled {
		DebugPrintln("[EVT] " + FormatEvent(evt))
	}
	if eventSink != nil {
		eventSink(evt)
	}
}

// Events returns the recorded events from oldest to newest
func Events() []Event {
	out := make([]Event, 0, EventRingSize)
	start := eventRingHead
	for i := uint8(0); i < EventRingSize; i++ {
		evt := eventRing[(start+i)%EventRingSize]
		if evt.Type == 0 {
			continue // Empty slot
		}
		out = append(out, evt)
	}
	return out
}

// EventName returns the short name of an event type
func EventName(eventType uint8) string {
	switch eventType {
	case EvtBoot:
		return "BOOT"
	case EvtPress:
		return "PRESS"
	case EvtMode:
		return "MODE"
	case EvtStepDown:
		return "STEPDOWN"
	case EvtShutoff:
		return "SHUTOFF"
	case EvtStepUp:
		return "STEPUP"
	case EvtMenuEnter:
		return "MENU"
	case EvtToggle:
		return "TOGGLE"
	case EvtRevert:
		return "REVERT"
	case EvtFirstBoot:
		return "FIRSTBOOT"
	case EvtStoreError:
		return "STORE_ERR"
	case EvtSleep:
		return "SLEEP"
	case EvtSample:
		return "SAMPLE"
	default:
		return "UNKNOWN"
	}
}

// FormatEvent renders an event without fmt
func FormatEvent(evt Event) string {
	return EventName(evt.Type) +
		" tick=" + utoa(evt.Tick) +
		" v1=" + utoa(evt.Value1) +
		" v2=" + utoa(evt.Value2)
}

// DumpEvents outputs the event ring (call on shutdown/error)
func DumpEvents() {
	if debugPrintln == nil {
		return
	}
	debugPrintln("[EVT] === Event Ring Dump ===")
	for _, evt := range Events() {
		debugPrintln("[EVT] " + FormatEvent(evt))
	}
	debugPrintln("[EVT] === End Dump ===")
}

// ClearEvents clears the event buffer
func ClearEvents() {
	for i := range eventRing {
		eventRing[i] = Event{}
	}
	eventRingHead = 0
}
