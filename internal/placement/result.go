package placement

import "fmt"

// Status tags the first failing placement check.
type Status uint8

const (
	Valid Status = iota
	OutOfBounds
	Occupied
	LimitReached
	NotUnlocked
	InsufficientFunds
)

var statusNames = [...]string{"valid", "out_of_bounds", "occupied", "limit_reached", "not_unlocked", "insufficient_funds"}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("status(%d)", s)
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(b []byte) error {
	for i, name := range statusNames {
		if name == string(b) {
			*s = Status(i)
			return nil
		}
	}
	return fmt.Errorf("unknown placement status %q", b)
}

// Result is the outcome of a placement check. It is never persisted.
type Result struct {
	CanPlace bool   `json:"can_place"`
	Status   Status `json:"status"`
	Message  string `json:"message"`
}

func ok(msg string) Result { return Result{CanPlace: true, Status: Valid, Message: msg} }

func fail(s Status, format string, args ...any) Result {
	return Result{Status: s, Message: fmt.Sprintf(format, args...)}
}
