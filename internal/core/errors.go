package core

import (
	"fmt"
	"strings"

	"github.com/JonMunkholm/crmsync/internal/crm"
)

// RemoteOperationError is a well-formed response reporting that one row's
// save or delete failed. It never stops a run.
type RemoteOperationError struct {
	Line   int
	Op     string
	Result crm.OperationResult
}

func (e *RemoteOperationError) Error() string {
	msg := strings.Join(e.Result.Messages(), "; ")
	if msg == "" {
		msg = "no message"
	}
	target := strings.TrimSpace(e.Result.Object + " " + e.Result.Key)
	return fmt.Sprintf("line %d: %s %s failed: %s", e.Line, e.Op, target, msg)
}
