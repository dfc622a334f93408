package telemetry

// Span and attribute names.
const (
	SpanIngestFix   = "fixes.ingest"
	SpanApplyFix    = "sessions.apply_fix"
	SpanRenderFrame = "sessions.snapshot"

	AttrDeviceID  = "device.id"
	AttrSessionID = "session.id"
	AttrAccuracy  = "fix.accuracy_m"
)
