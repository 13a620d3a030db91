package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/JonMunkholm/crmsync/internal/crm"
	"github.com/google/uuid"
)

// Remote is the subset of the remote API a run needs.
// Satisfied by *crm.Client.
type Remote interface {
	Authenticate(ctx context.Context, creds crm.Credentials) (*crm.Session, error)
	Describe(ctx context.Context, sess *crm.Session, objectType string) (crm.SchemaDescriptor, error)
	Save(ctx context.Context, sess *crm.Session, objectType string, args crm.Args) (crm.OperationResult, error)
	Delete(ctx context.Context, sess *crm.Session, objectType, key string) (crm.OperationResult, error)
	GetObject(ctx context.Context, sess *crm.Session, objectType, key string) (crm.Object, error)
}

var _ Remote = (*crm.Client)(nil)

// Mode selects what a run does with each row.
type Mode string

const (
	ModeSave   Mode = "save"
	ModeDelete Mode = "delete"
	ModeFetch  Mode = "fetch"
)

// KeyPolicy controls how the <type>_KEY column is sent on save.
type KeyPolicy string

const (
	// KeyPolicyPassthrough sends <type>_KEY under its own name.
	KeyPolicyPassthrough KeyPolicy = "passthrough"
	// KeyPolicyTranslate sends a non-empty <type>_KEY as key and writes the
	// key returned by the remote side back into the result row.
	KeyPolicyTranslate KeyPolicy = "translate"
)

// ParseKeyPolicy accepts "passthrough" or "translate"; "" means passthrough.
func ParseKeyPolicy(s string) (KeyPolicy, error) {
	switch KeyPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", KeyPolicyPassthrough:
		return KeyPolicyPassthrough, nil
	case KeyPolicyTranslate:
		return KeyPolicyTranslate, nil
	default:
		return "", fmt.Errorf("unknown key policy %q (want passthrough or translate)", s)
	}
}

// wireKey is the argument name save and delete use for the primary key. It
// is reserved and may not appear as an input column.
const wireKey = "key"

// Options describe one run. They are built by the caller; nothing in this
// package reads the environment.
type Options struct {
	Mode       Mode
	ObjectType string
	// InputPath is the file to process. In fetch mode it is the file the
	// object is written to.
	InputPath string
	// Key is the object key for fetch mode.
	Key          string
	Credentials  crm.Credentials
	StrictSchema bool
	KeyPolicy    KeyPolicy
	SampleSize   int
	HTMLReport   bool
}

// KeyField is the column holding the primary key, e.g. event_KEY.
func (o Options) KeyField() string { return o.ObjectType + "_KEY" }

// Validate checks the options a run cannot start without.
func (o Options) Validate() error {
	var errs []error
	switch o.Mode {
	case ModeSave, ModeDelete:
	case ModeFetch:
		if o.Key == "" {
			errs = append(errs, errors.New("fetch mode needs a key"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown mode %q", o.Mode))
	}
	if strings.TrimSpace(o.ObjectType) == "" {
		errs = append(errs, errors.New("object type is required"))
	}
	if o.InputPath == "" {
		errs = append(errs, errors.New("file path is required"))
	}
	if o.Credentials.Email == "" {
		errs = append(errs, errors.New("email is required"))
	}
	switch o.KeyPolicy {
	case "", KeyPolicyPassthrough, KeyPolicyTranslate:
	default:
		errs = append(errs, fmt.Errorf("unknown key policy %q", o.KeyPolicy))
	}
	if o.SampleSize < 0 {
		errs = append(errs, fmt.Errorf("sample size must be positive, got %d", o.SampleSize))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}
	return nil
}

// RunResult summarizes a finished run.
type RunResult struct {
	RunID      uuid.UUID
	OutputPath string
	// ReportPath is set when an HTML summary was written.
	ReportPath string
	Rows       int
	Succeeded  int
	Failed     int
	Duration   time.Duration
}
