package domain

import "errors"

// Domain errors
var (
	ErrPlayerNotFound        = errors.New("player not found")
	ErrScoreNotFound         = errors.New("score not found")
	ErrBeatmapNotFound       = errors.New("beatmap not found")
	ErrBeatmapNotSubmittable = errors.New("beatmap not approved for submission")
	ErrSessionMismatch       = errors.New("session token does not match")
	ErrUsernameTaken         = errors.New("username already taken")
	ErrWrongPassword         = errors.New("wrong password")
	ErrInvalidRequest        = errors.New("invalid request")
	ErrInternalError         = errors.New("internal server error")

	// Replay submission-string errors
	ErrMalformedReplay     = errors.New("malformed replay data")
	ErrInvalidNumericField = errors.New("replay field is not numeric")
	ErrUnrankedMods        = errors.New("mod combination is unranked")
	ErrIncompatibleMods    = errors.New("mod combination is incompatible")
	ErrSubmissionTimedOut  = errors.New("submission arrived outside the response budget")

	// Replay upload integrity errors
	ErrNotBestScore       = errors.New("replay does not belong to a best score")
	ErrAlreadyUploaded    = errors.New("score already has a replay")
	ErrUploadTimedOut     = errors.New("replay upload timed out")
	ErrUsernameMismatch   = errors.New("replay player name does not match score owner")
	ErrStaleReplayVersion = errors.New("replay format version too old")
	ErrAccuracyMismatch   = errors.New("replay accuracy does not match score")
	ErrHitCountMismatch   = errors.New("replay hit counts do not match score")
	ErrComboMismatch      = errors.New("replay combo does not match score")
	ErrSpeedMismatch      = errors.New("replay speed does not match declared custom speed")
	ErrScoreMismatch      = errors.New("estimated replay score outside tolerance")
)

// IsNotFoundError checks if an error is a not-found type error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrPlayerNotFound) ||
		errors.Is(err, ErrScoreNotFound) ||
		errors.Is(err, ErrBeatmapNotFound)
}

// IsIntegrityError reports whether an error is one of the replay-upload
// integrity gates. These delete the offending score and restore the
// previous best.
func IsIntegrityError(err error) bool {
	for _, target := range []error{
		ErrUploadTimedOut,
		ErrMalformedReplay,
		ErrUsernameMismatch,
		ErrStaleReplayVersion,
		ErrAccuracyMismatch,
		ErrHitCountMismatch,
		ErrComboMismatch,
		ErrSpeedMismatch,
		ErrScoreMismatch,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
