package cli

import "fmt"

// ConfigError reports an unusable configuration or bindings file.
type ConfigError struct {
	Path    string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Path == "" {
		return "config error: " + e.Message
	}
	return fmt.Sprintf("config error in %s: %s", e.Path, e.Message)
}

// CommandError wraps the failure of a command.
type CommandError struct {
	Command string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %s failed: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// ExitCode returns the process exit code for err: 0 for nil, 2 for a
// ConfigError and 1 otherwise.
func ExitCode(err error) int {
	switch err.(type) {
	case nil:
		return 0
	case *ConfigError:
		return 2
	default:
		return 1
	}
}

// NewConfigError creates a new ConfigError.
func NewConfigError(path, message string) *ConfigError {
	return &ConfigError{
		Path:    path,
		Message: message,
	}
}

// NewCommandError creates a new CommandError.
func NewCommandError(command string, err error) *CommandError {
	return &CommandError{
		Command: command,
		Err:     err,
	}
}
