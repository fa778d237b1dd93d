package email

import (
	"context"
)

// Vars carries per-send personalization values substituted into templates.
type Vars map[string]string

// Service is the collaborator the executor uses for send_email actions.
// Success or failure of the underlying provider is the return value; the
// caller decides what a failure means for the queued action.
type Service interface {
	SendTemplate(ctx context.Context, templateID, to string, vars Vars) error
}
