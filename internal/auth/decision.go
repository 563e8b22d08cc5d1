package auth

// Stage identifies one link of the verification chain.
type Stage string

const (
	StagePIN   Stage = "pin"
	StageFace  Stage = "face"
	StageVoice Stage = "voice"
)

// MatchResult is the terminal result of one face evaluation.
// It is a closed set rather than a boolean because the failure mode drives
// retry policy and diagnostics.
type MatchResult string

const (
	FaceMatched          MatchResult = "matched"
	FaceNotMatched       MatchResult = "not_matched"
	FaceNoFaceDetected   MatchResult = "no_face_detected"
	FaceMultipleDetected MatchResult = "multiple_faces_detected"
	FaceCaptureFailed    MatchResult = "capture_failed"
)

// FaceDecision is the outcome of a FaceMatcher evaluation.
type FaceDecision struct {
	Result   MatchResult
	Distance float64 // distance of the last compared embedding, -1 if none
	Attempts int     // physical captures performed
	// MultipleFaces flags that more than one face was in frame and the first
	// was used. Possible tailgating, so it survives even on a match.
	MultipleFaces bool
}

// Message returns a user-facing description of the decision.
func (d FaceDecision) Message() string {
	switch d.Result {
	case FaceMatched:
		return "Face verified"
	case FaceNoFaceDetected:
		return "No face detected"
	case FaceMultipleDetected:
		return "Multiple faces detected"
	case FaceCaptureFailed:
		return "Could not capture image"
	default:
		return "Face verification failed"
	}
}

// Outcome is the terminal result of the full authentication chain.
type Outcome struct {
	Granted bool
	Stage   Stage  // failing stage; empty when granted
	Reason  string // user-facing message
}

// Granted constructs a successful outcome.
func granted() Outcome {
	return Outcome{Granted: true, Reason: "Access granted"}
}

// denied constructs a failed outcome for a stage.
func denied(stage Stage, reason string) Outcome {
	return Outcome{Stage: stage, Reason: reason}
}
