package auth

import (
	"context"
	"log"

	"github.com/kozaktomas/auth-gate/internal/capture"
)

// MessageFaceUnavailable marks a face denial caused by the environment
// (unusable reference image, embedding service down) rather than the person
// in front of the camera. The web layer maps it to a server fault.
const MessageFaceUnavailable = "Face verification unavailable"

// Orchestrator runs the verification chain: PIN, then face, then voice.
// Ordering is strict and short-circuiting; a later stage never starts until
// the previous one passed. A panic inside any stage is contained and turned
// into a denial so a broken dependency cannot take the caller down.
type Orchestrator struct {
	pin   *PinVerifier
	face  *FaceMatcher
	voice *VoiceMatcher
}

func NewOrchestrator(pin *PinVerifier, face *FaceMatcher, voice *VoiceMatcher) *Orchestrator {
	return &Orchestrator{pin: pin, face: face, voice: voice}
}

// Authenticate runs the full chain and reports the terminal outcome.
func (o *Orchestrator) Authenticate(ctx context.Context, pinInput string, faceSource capture.ImageSource, voiceSource capture.AudioSource) Outcome {
	if outcome := o.runPIN(pinInput); !outcome.Granted {
		return outcome
	}
	if outcome := o.runFace(ctx, faceSource); !outcome.Granted {
		return outcome
	}
	if outcome := o.runVoice(ctx, voiceSource); !outcome.Granted {
		return outcome
	}
	log.Printf("authentication granted: all stages passed")
	return granted()
}

func (o *Orchestrator) runPIN(pinInput string) (outcome Outcome) {
	defer containPanic(StagePIN, "PIN verification failed", &outcome)

	if !o.pin.Verify(pinInput) {
		log.Printf("authentication denied at PIN stage")
		return denied(StagePIN, "Incorrect PIN")
	}
	return granted()
}

func (o *Orchestrator) runFace(ctx context.Context, source capture.ImageSource) (outcome Outcome) {
	defer containPanic(StageFace, "Face verification failed", &outcome)

	decision, err := o.face.Evaluate(ctx, source)
	if err != nil {
		log.Printf("face stage environment fault: %v", err)
		return denied(StageFace, MessageFaceUnavailable)
	}
	if decision.Result != FaceMatched {
		log.Printf("authentication denied at face stage: %s after %d attempts", decision.Result, decision.Attempts)
		return denied(StageFace, decision.Message())
	}
	if decision.MultipleFaces {
		log.Printf("face matched with multiple faces in frame (distance %.3f)", decision.Distance)
	}
	return granted()
}

func (o *Orchestrator) runVoice(ctx context.Context, source capture.AudioSource) (outcome Outcome) {
	defer containPanic(StageVoice, "Voice verification failed", &outcome)

	ok, message := o.voice.Evaluate(ctx, source)
	if !ok {
		log.Printf("authentication denied at voice stage: %s", message)
		return denied(StageVoice, message)
	}
	return granted()
}

// containPanic converts a stage panic into a generic denial. Raw panic
// values never reach the caller.
func containPanic(stage Stage, message string, outcome *Outcome) {
	if r := recover(); r != nil {
		log.Printf("panic in %s stage: %v", stage, r)
		*outcome = denied(stage, message)
	}
}
