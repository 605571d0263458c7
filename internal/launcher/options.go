package launcher

// ProviderSelection picks a tool and model explicitly, overriding config
// defaults (spec §4.3 "launch options").
type ProviderSelection struct {
	Tool  string
	Model string
}

// Options configures a single launch.
type Options struct {
	// ProjectOverride replaces the ticket's own project for path resolution.
	ProjectOverride string
	Provider        *ProviderSelection
	YoloMode        bool
	DockerMode      bool
}

// LaunchModeString renders the combination of YoloMode/DockerMode into the
// AgentRecord.launch_mode value (spec §3: default|yolo|docker|docker-yolo).
func (o Options) LaunchModeString() string {
	switch {
	case o.DockerMode && o.YoloMode:
		return "docker-yolo"
	case o.DockerMode:
		return "docker"
	case o.YoloMode:
		return "yolo"
	default:
		return "default"
	}
}

// RelaunchOptions extends Options with an optional resume session-id, used
// when a terminal session died but the ticket is still in progress.
type RelaunchOptions struct {
	Options
	ResumeSessionID string
}
