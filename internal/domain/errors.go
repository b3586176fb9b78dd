package domain

import "errors"

// Error kinds. Lower layers wrap these with fmt.Errorf("...: %w", ...) and
// the orchestrator re-wraps everything into *Error at its boundary.
var (
	// ErrConfiguration indicates a missing credential, dataset file or an
	// unusable persistence path.
	ErrConfiguration = errors.New("configuration error")

	// ErrKnowledgeBaseEmpty indicates no dataset yielded a usable document.
	ErrKnowledgeBaseEmpty = errors.New("knowledge base empty")

	// ErrIndexBuildFailed indicates embedding, chunking or snapshot writing failed.
	ErrIndexBuildFailed = errors.New("index build failed")

	// ErrIndexIntegrity indicates a persisted snapshot failed its checksum.
	ErrIndexIntegrity = errors.New("index integrity check failed")

	// ErrIndexStale indicates a persisted snapshot was built from different
	// documents, a different embedder or different chunking.
	ErrIndexStale = errors.New("index snapshot stale")

	// ErrRetrieval indicates similarity search failed against the index.
	ErrRetrieval = errors.New("retrieval failed")

	// ErrGenerationFailed indicates the language model backend failed.
	ErrGenerationFailed = errors.New("generation failed")

	// ErrInitialization is the kind of every error returned by construction.
	ErrInitialization = errors.New("initialization failed")

	// ErrNotReady indicates a query against an assistant that never finished
	// initializing.
	ErrNotReady = errors.New("assistant not ready")
)

// Error is the single caller-facing error. Error() only ever returns the
// safe Message; the cause stays reachable through errors.Is / errors.As for
// logging.
type Error struct {
	Kind    error
	Message string
	Err     error
}

// NewError builds a caller-facing error of the given kind.
func NewError(kind error, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Kind != nil {
		return e.Kind.Error()
	}
	return "lexa error"
}

// Unwrap exposes both the kind and the underlying cause.
func (e *Error) Unwrap() []error {
	var errs []error
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Detail returns the full error chain for logs. Never show it to end users.
func (e *Error) Detail() string {
	if e.Err == nil {
		return e.Error()
	}
	return e.Error() + ": " + e.Err.Error()
}
