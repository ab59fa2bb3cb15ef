package acquire

// MethodConfig holds the per-scheme capability flags a worker announces via
// its 100 Capabilities message (§6), parsed once at worker startup and
// consulted for the rest of the run.
type MethodConfig struct {
	Scheme string

	SingleInstance bool // only one worker may run at a time for this scheme
	Pipeline       bool // the worker accepts multiple in-flight 600s before reading responses
	SendConfig     bool // the worker wants a 601 Configuration dump before its first 600
	LocalOnly      bool // this scheme never touches the network (file://, copy://)
	NeedsCleanup   bool // the worker process should be torn down between runs
	Removable      bool // this scheme may prompt 403 Media Change (cdrom://)
}

// ParseCapabilities builds a MethodConfig from a 100 Capabilities Message.
func ParseCapabilities(scheme string, m *Message) MethodConfig {
	return MethodConfig{
		Scheme:         scheme,
		SingleInstance: m.Get("Single-Instance") == "true",
		Pipeline:       m.Get("Pipeline") == "true",
		SendConfig:     m.Get("Send-Config") == "true",
		LocalOnly:      m.Get("Local-Only") == "true",
		NeedsCleanup:   m.Get("Needs-Cleanup") == "true",
		Removable:      m.Get("Removable") == "true",
	}
}
