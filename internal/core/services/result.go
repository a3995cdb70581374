package services

import (
	"time"

	"tempvoice/internal/core/domain"
)

// ResultKind classifies the outcome of a lifecycle or control operation.
type ResultKind int

const (
	ResultOK ResultKind = iota
	// ResultIgnored means the event did not concern a managed room.
	ResultIgnored
	ResultConfigMissing
	ResultCooldownDenied
	ResultConflict
	ResultNotFound
	ResultForbidden
	ResultInvalidInput
	ResultPlatformFailure
)

func (k ResultKind) String() string {
	switch k {
	case ResultOK:
		return "ok"
	case ResultIgnored:
		return "ignored"
	case ResultConfigMissing:
		return "config_missing"
	case ResultCooldownDenied:
		return "cooldown_denied"
	case ResultConflict:
		return "conflict"
	case ResultNotFound:
		return "not_found"
	case ResultForbidden:
		return "forbidden"
	case ResultInvalidInput:
		return "invalid_input"
	case ResultPlatformFailure:
		return "platform_failure"
	default:
		return "unknown"
	}
}

// Result is returned instead of a bare error so callers can switch on the
// kind of outcome. Err carries the cause for failure kinds.
type Result struct {
	Kind    ResultKind
	Room    *domain.TempRoom
	RetryAt time.Time
	Err     error
}

// OK reports whether the operation succeeded.
func (r Result) OK() bool {
	return r.Kind == ResultOK
}

func ok(room *domain.TempRoom) Result {
	return Result{Kind: ResultOK, Room: room}
}

func failed(kind ResultKind, err error) Result {
	return Result{Kind: kind, Err: err}
}
