package domain

import "fmt"

// EngineError is the unified error type for the engine.
// Each error has a numeric code and human-readable message; codes are
// grouped into ranges by recovery class.
type EngineError struct {
	Code    int
	Message string
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	return fmt.Sprintf("engine error %d: %s", e.Code, e.Message)
}

// NewEngineError creates a new EngineError.
func NewEngineError(code int, msg string) *EngineError {
	return &EngineError{Code: code, Message: msg}
}

// WrapEngineError creates an EngineError that includes a cause.
func WrapEngineError(code int, msg string, cause error) *EngineError {
	return &EngineError{Code: code, Message: fmt.Sprintf("%s: %v", msg, cause)}
}

// ---- Validation errors (-32210 to -32239): caller-facing, recoverable ----

var (
	ErrNotYourTurn      = &EngineError{Code: -32210, Message: "not your turn"}
	ErrInputEmpty       = &EngineError{Code: -32211, Message: "required input is empty"}
	ErrAlreadySubmitted = &EngineError{Code: -32212, Message: "contribution already submitted"}
	ErrActivityFinished = &EngineError{Code: -32213, Message: "activity already completed"}
	ErrPartnerIDEmpty   = &EngineError{Code: -32214, Message: "partner id is empty"}
	ErrSelfPairing      = &EngineError{Code: -32215, Message: "cannot pair with yourself outside test mode"}
	ErrTossUnresolved   = &EngineError{Code: -32216, Message: "coin toss has not been resolved"}
	ErrUnknownAction    = &EngineError{Code: -32217, Message: "unknown turn action"}
	ErrQuotaReached     = &EngineError{Code: -32218, Message: "per-participant quota already reached"}
	ErrNotParticipant   = &EngineError{Code: -32219, Message: "caller is not a participant of this session"}
)

// ---- State errors (-32240 to -32269): precondition violated ----

var (
	ErrActivityInProgress = &EngineError{Code: -32240, Message: "an activity is already in progress"}
	ErrPartnerMissing     = &EngineError{Code: -32241, Message: "partner has not joined the session yet"}
	ErrExperienceComplete = &EngineError{Code: -32242, Message: "experience flow already complete"}
	ErrUnknownVariant     = &EngineError{Code: -32243, Message: "unknown activity variant"}
)

// ---- Conflict errors (-32270 to -32299): pairing conflicts ----

var (
	ErrPartnerAlreadyPaired = &EngineError{Code: -32270, Message: "partner is already in another session"}
	ErrSessionFull          = &EngineError{Code: -32271, Message: "session already has two participants"}
	ErrAlreadyInSession     = &EngineError{Code: -32272, Message: "caller already occupies a session"}
)

// ---- Not-found errors (-32300 to -32329) ----

var (
	ErrSessionNotFound  = &EngineError{Code: -32300, Message: "session not found"}
	ErrActivityNotFound = &EngineError{Code: -32301, Message: "activity not found"}
)

// ---- Sync errors (-32330 to -32359): store failures and guard rejections ----

var (
	ErrTurnConflict    = &EngineError{Code: -32330, Message: "turn already taken: conditional write rejected"}
	ErrVersionConflict = &EngineError{Code: -32331, Message: "document was modified concurrently"}
	ErrStoreInit       = &EngineError{Code: -32332, Message: "failed to initialize store"}
	ErrStoreQuery      = &EngineError{Code: -32333, Message: "store query failed"}
	ErrStoreWrite      = &EngineError{Code: -32334, Message: "store write failed"}
	ErrConfigInvalid   = &EngineError{Code: -32335, Message: "invalid configuration"}
)
