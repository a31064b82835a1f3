// Package narrative turns a finance snapshot into a prompt and asks a text
// generation service for a markdown diagnosis.
package narrative

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/api/option"
)

// DefaultTemperature is the sampling temperature used for diagnoses.
const DefaultTemperature = 0.7

// Kind classifies a failed completion.
type Kind string

const (
	// KindBlocked means the provider refused to answer (safety filters).
	KindBlocked Kind = "blocked"
	// KindEmpty means the provider answered without any text.
	KindEmpty Kind = "empty"
	// KindTransport covers network, quota and protocol errors.
	KindTransport Kind = "transport"
)

// Error is the typed failure returned by every Completer.
type Error struct {
	Kind     Kind
	Provider string
	Reason   string
	Err      error
}

var (
	ErrBlocked   = &Error{Kind: KindBlocked}
	ErrEmpty     = &Error{Kind: KindEmpty}
	ErrTransport = &Error{Kind: KindTransport}
)

func (e *Error) Error() string {
	var b strings.Builder
	if e.Provider != "" {
		b.WriteString(e.Provider)
		b.WriteString(": ")
	}
	b.WriteString("completion ")
	b.WriteString(string(e.Kind))
	if e.Reason != "" {
		b.WriteString(" (")
		b.WriteString(e.Reason)
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrBlocked)
// works for errors carrying details.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// KindOf returns the failure kind of err, or "" when err is not a
// completion failure.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func blocked(provider, reason string) error {
	return &Error{Kind: KindBlocked, Provider: provider, Reason: reason}
}

func empty(provider, reason string) error {
	return &Error{Kind: KindEmpty, Provider: provider, Reason: reason}
}

func transport(provider string, err error) error {
	return &Error{Kind: KindTransport, Provider: provider, Err: err}
}

// Request is one completion call.
type Request struct {
	System      string
	Prompt      string
	Temperature float64
}

// Completer performs a single completion. Implementations never retry;
// failures are returned as *Error.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Config selects and configures a provider.
type Config struct {
	Provider string // gemini, ollama or static
	APIKey   string
	Model    string
	Endpoint string
	Timeout  time.Duration

	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
}

// New builds the Completer named by cfg.Provider.
func New(ctx context.Context, cfg Config) (Completer, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "gemini", "":
		var opts []option.ClientOption
		if cfg.Endpoint != "" {
			opts = append(opts, option.WithEndpoint(cfg.Endpoint))
		}
		if cfg.HTTPClient != nil {
			opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
		}
		return NewGemini(ctx, cfg.APIKey, cfg.Model, cfg.Timeout, opts...)
	case "ollama":
		return NewOllama(cfg.Endpoint, cfg.Model, cfg.Timeout, cfg.HTTPClient), nil
	case "static":
		return Static{}, nil
	default:
		return nil, fmt.Errorf("unknown narrative provider %q", cfg.Provider)
	}
}
