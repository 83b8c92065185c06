package credentials

import (
	"context"
	"fmt"
	"os"
	"sync"
)

// Logger defines the logging interface for credential acquisition.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Credentials is one username and password pair. It is passed by value
// and never logged.
type Credentials struct {
	Username string
	Password string
}

// Provider acquires cloud account credentials, preferring the
// environment and falling back to interactive prompts when allowed.
//
// Thread Safety: safe for concurrent use. Prompting is serialised so
// two callers never interleave questions on the same terminal.
type Provider struct {
	usernameEnv string
	passwordEnv string
	allowPrompt bool
	prompter    Prompter
	log         Logger

	// promptMu admits one interactive username/password exchange at a time.
	promptMu sync.Mutex
}

// NewProvider creates a Provider.
//
// Parameters:
//   - usernameEnv: Environment variable holding the account username
//   - passwordEnv: Environment variable holding the account password
//   - allowPrompt: Whether interactive prompting is permitted
//   - prompter: Prompt implementation; nil uses the process terminal
//   - log: Destination for acquisition events; never receives secrets
func NewProvider(usernameEnv, passwordEnv string, allowPrompt bool, prompter Prompter, log Logger) *Provider {
	if prompter == nil {
		prompter = terminalPrompter{}
	}
	if log == nil {
		log = noopLogger{}
	}
	return &Provider{
		usernameEnv: usernameEnv,
		passwordEnv: passwordEnv,
		allowPrompt: allowPrompt,
		prompter:    prompter,
		log:         log,
	}
}

// Initial returns the startup credentials: both environment variables
// when set, otherwise one interactive prompt.
func (p *Provider) Initial(ctx context.Context) (Credentials, error) {
	username := os.Getenv(p.usernameEnv)
	password := os.Getenv(p.passwordEnv)
	if username != "" && password != "" {
		p.log.Debug("credentials taken from environment", "variable", p.usernameEnv)
		return Credentials{Username: username, Password: password}, nil
	}

	if !p.allowPrompt {
		return Credentials{}, fmt.Errorf("%w: set %s and %s or enable prompting",
			ErrNoCredentials, p.usernameEnv, p.passwordEnv)
	}

	return p.prompt(ctx)
}

// Session begins a bounded run of recovery prompts, used after the
// upstream rejects the current credentials. Environment values are not
// consulted: they are what just failed.
func (p *Provider) Session(maxAttempts int) *Session {
	return &Session{provider: p, remaining: maxAttempts}
}

// prompt performs one interactive credential read.
func (p *Provider) prompt(ctx context.Context) (Credentials, error) {
	p.promptMu.Lock()
	defer p.promptMu.Unlock()

	username, err := readWithContext(ctx, func() (string, error) {
		return p.prompter.ReadLine("Cloud account email: ")
	})
	if err != nil {
		return Credentials{}, fmt.Errorf("prompting for username: %w", err)
	}

	password, err := readWithContext(ctx, func() (string, error) {
		return p.prompter.ReadSecret("Cloud account password: ")
	})
	if err != nil {
		return Credentials{}, fmt.Errorf("prompting for password: %w", err)
	}

	return Credentials{Username: username, Password: password}, nil
}

// Session is one bounded run of credential recovery attempts.
//
// Each Next call costs one attempt regardless of what the caller does
// with the result; the budget caps prompts shown to the operator, not
// verification outcomes.
type Session struct {
	provider  *Provider
	remaining int
}

// Remaining reports how many attempts are left.
func (s *Session) Remaining() int {
	return s.remaining
}

// Next returns replacement credentials, or ErrExhausted once the
// attempt budget is spent. With prompting disabled there is nowhere to
// get replacements from, so the session is born exhausted.
func (s *Session) Next(ctx context.Context) (Credentials, error) {
	if !s.provider.allowPrompt {
		return Credentials{}, fmt.Errorf("%w: prompting disabled", ErrExhausted)
	}
	if s.remaining <= 0 {
		return Credentials{}, ErrExhausted
	}
	s.remaining--

	s.provider.log.Info("prompting for replacement credentials",
		"attempts_left", s.remaining,
	)
	return s.provider.prompt(ctx)
}
