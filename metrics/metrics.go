package metrics

/*
Labels and so on for metrics used in the worker.
*/

const (
	LabelSuccess      = "success"
	LabelArtifactType = "artifact_type"
	LabelOutcome      = "outcome"
)
