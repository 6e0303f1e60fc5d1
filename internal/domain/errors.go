package domain

import "errors"

var (
	// ErrInvalidInput covers a blank display name or malformed room code.
	ErrInvalidInput = errors.New("invalid input")
	// ErrRoomNotFound is returned when joining a code with no room document.
	ErrRoomNotFound = errors.New("room not found")
	// ErrNotReady indicates the room store connection is unavailable.
	ErrNotReady = errors.New("room store not ready")
	// ErrPermissionDenied is a store-reported authorization failure.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrUnauthenticated is a store-reported authentication failure.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrUnavailable is a store-reported transient failure.
	ErrUnavailable = errors.New("store unavailable")
	// ErrConflictIgnored marks a write that lost a benign race. Callers treat it as success.
	ErrConflictIgnored = errors.New("conflict ignored")

	// ErrNoActiveRoom is returned for room actions before create/join.
	ErrNoActiveRoom = errors.New("no active room")
	// ErrNotHost is returned when a non-host tries to drive the room.
	ErrNotHost = errors.New("only the host can do that")
	// ErrInvalidTransition is returned when the room is not in the required status.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrRoundClosed is returned for answers outside a playing round.
	ErrRoundClosed = errors.New("round is not accepting answers")
	// ErrAlreadyAnswered is returned for a second answer to the same question.
	ErrAlreadyAnswered = errors.New("already answered this question")
	// ErrSubmissionInFlight is returned when a submission from this client is still pending.
	ErrSubmissionInFlight = errors.New("answer submission in flight")
)

var kinds = []struct {
	err  error
	kind string
	msg  string
}{
	{ErrInvalidInput, "invalid_input", "Check the name and room code and try again."},
	{ErrRoomNotFound, "room_not_found", "That room code doesn't exist. Check the code and try again."},
	{ErrNotReady, "not_ready", "The game server isn't ready. Try again in a moment."},
	{ErrPermissionDenied, "permission_denied", "The room store rejected the request."},
	{ErrUnauthenticated, "unauthenticated", "The room store requires authentication."},
	{ErrUnavailable, "unavailable", "The room store is temporarily unavailable. Try again in a moment."},
	{ErrConflictIgnored, "conflict_ignored", ""},
	{ErrNoActiveRoom, "no_active_room", "Create or join a room first."},
	{ErrNotHost, "not_host", "Only the host can do that."},
	{ErrInvalidTransition, "invalid_transition", "The room isn't ready for that yet."},
	{ErrRoundClosed, "round_closed", "This round is no longer accepting answers."},
	{ErrAlreadyAnswered, "already_answered", "You already answered this question."},
	{ErrSubmissionInFlight, "submission_in_flight", "Your answer is still being sent."},
}

// KindOf returns a stable identifier for err, or "internal" for unknown errors.
func KindOf(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return "internal"
}

// UserMessage maps err to the text shown to players. Unknown errors fall back to
// their own message, or fallback when that is empty.
func UserMessage(err error, fallback string) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) && k.msg != "" {
			return k.msg
		}
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return fallback
}
