package cli

import "errors"

// ErrUsage matches errors caused by bad flags, config files or output targets.
var ErrUsage = errors.New("cli usage error")

// usageError carries a message meant for the person at the terminal.
type usageError struct {
	msg string
}

func newUsageError(msg string) error {
	return usageError{msg: msg}
}

func (e usageError) Error() string {
	return e.msg
}

func (e usageError) Is(target error) bool {
	return target == ErrUsage
}
