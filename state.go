package worker

// State is where a job has got to. States are logged as "state".
type State string

const (
	StateClaimed       State = "claimed"
	StateAcknowledged  State = "acknowledged"
	StateDownloaded    State = "downloaded"
	StateExpanded      State = "expanded"
	StateAuthenticated State = "authenticated"
	StatePublished     State = "published"
	StateReported      State = "reported"
	StateCleanedUp     State = "cleaned-up"
	StateAbandoned     State = "abandoned"
	StateFailed        State = "failed"
	StateReportMissing State = "report-missing"
)
