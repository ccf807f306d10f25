package domain

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// CommandName a signal the dashboard may send to the backend.
type CommandName string

const (
	CommandPause   CommandName = "pause"
	CommandResume  CommandName = "resume"
	CommandFlatten CommandName = "flatten"
)

// Command payload for POST /api/command. ID makes retries idempotent
// on the backend side.
type Command struct {
	ID   string      `json:"id"`
	Name CommandName `json:"name"`
	// Account optional target; empty means all accounts.
	Account string `json:"account,omitempty"`
}

// NewCommand builds a command with a fresh id.
func NewCommand(name CommandName, account string) (Command, error) {
	switch name {
	case CommandPause, CommandResume, CommandFlatten:
	default:
		return Command{}, errors.Errorf("unknown command %q", name)
	}
	return Command{ID: uuid.NewString(), Name: name, Account: account}, nil
}

// CommandReceipt backend acknowledgement for a command.
type CommandReceipt struct {
	ID       string `json:"id"`
	Accepted bool   `json:"accepted"`
	Message  string `json:"message,omitempty"`
}
