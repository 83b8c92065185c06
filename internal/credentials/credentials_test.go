package credentials

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fakePrompter serves scripted prompt answers.
type fakePrompter struct {
	lines   []string
	secrets []string
	asked   int
	block   bool
}

func (f *fakePrompter) ReadLine(string) (string, error) {
	if f.block {
		select {}
	}
	f.asked++
	line := f.lines[0]
	f.lines = f.lines[1:]
	return line, nil
}

func (f *fakePrompter) ReadSecret(string) (string, error) {
	secret := f.secrets[0]
	f.secrets = f.secrets[1:]
	return secret, nil
}

func TestProvider_InitialFromEnvironment(t *testing.T) {
	t.Setenv("TAPO_EMAIL", "user@example.com")
	t.Setenv("TAPO_PASSWORD", "hunter2")

	prompter := &fakePrompter{}
	p := NewProvider("TAPO_EMAIL", "TAPO_PASSWORD", true, prompter, nil)

	creds, err := p.Initial(context.Background())
	if err != nil {
		t.Fatalf("Initial() error = %v", err)
	}
	if creds.Username != "user@example.com" || creds.Password != "hunter2" {
		t.Errorf("Initial() = %+v, want environment values", creds)
	}
	if prompter.asked != 0 {
		t.Error("environment credentials should not prompt")
	}
}

func TestProvider_InitialPromptFallback(t *testing.T) {
	t.Setenv("TAPO_EMAIL", "")
	t.Setenv("TAPO_PASSWORD", "")

	prompter := &fakePrompter{
		lines:   []string{"typed@example.com"},
		secrets: []string{"typed-password"},
	}
	p := NewProvider("TAPO_EMAIL", "TAPO_PASSWORD", true, prompter, nil)

	creds, err := p.Initial(context.Background())
	if err != nil {
		t.Fatalf("Initial() error = %v", err)
	}
	if creds.Username != "typed@example.com" || creds.Password != "typed-password" {
		t.Errorf("Initial() = %+v, want prompted values", creds)
	}
}

func TestProvider_InitialPartialEnvironmentPrompts(t *testing.T) {
	// One variable set without the other is not usable.
	t.Setenv("TAPO_EMAIL", "user@example.com")
	t.Setenv("TAPO_PASSWORD", "")

	prompter := &fakePrompter{
		lines:   []string{"typed@example.com"},
		secrets: []string{"typed-password"},
	}
	p := NewProvider("TAPO_EMAIL", "TAPO_PASSWORD", true, prompter, nil)

	creds, err := p.Initial(context.Background())
	if err != nil {
		t.Fatalf("Initial() error = %v", err)
	}
	if creds.Username != "typed@example.com" {
		t.Errorf("username = %q, want the prompted value", creds.Username)
	}
}

func TestProvider_InitialPromptingDisabled(t *testing.T) {
	t.Setenv("TAPO_EMAIL", "")
	t.Setenv("TAPO_PASSWORD", "")

	p := NewProvider("TAPO_EMAIL", "TAPO_PASSWORD", false, &fakePrompter{}, nil)

	_, err := p.Initial(context.Background())
	if !errors.Is(err, ErrNoCredentials) {
		t.Errorf("Initial() error = %v, want ErrNoCredentials", err)
	}
}

func TestSession_BoundedAttempts(t *testing.T) {
	prompter := &fakePrompter{
		lines:   []string{"a@example.com", "b@example.com", "c@example.com"},
		secrets: []string{"pw-a", "pw-b", "pw-c"},
	}
	p := NewProvider("TAPO_EMAIL", "TAPO_PASSWORD", true, prompter, nil)

	session := p.Session(3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		creds, err := session.Next(ctx)
		if err != nil {
			t.Fatalf("Next() #%d error = %v", i+1, err)
		}
		if creds.Username == "" || creds.Password == "" {
			t.Fatalf("Next() #%d returned empty credentials", i+1)
		}
	}

	// The fourth attempt never prompts.
	asked := prompter.asked
	_, err := session.Next(ctx)
	if !errors.Is(err, ErrExhausted) {
		t.Errorf("Next() after budget error = %v, want ErrExhausted", err)
	}
	if prompter.asked != asked {
		t.Error("an exhausted session must not prompt again")
	}
}

func TestSession_PromptingDisabled(t *testing.T) {
	p := NewProvider("TAPO_EMAIL", "TAPO_PASSWORD", false, &fakePrompter{}, nil)

	_, err := p.Session(3).Next(context.Background())
	if !errors.Is(err, ErrExhausted) {
		t.Errorf("Next() error = %v, want ErrExhausted when prompting is disabled", err)
	}
}

func TestSession_Remaining(t *testing.T) {
	prompter := &fakePrompter{
		lines:   []string{"a@example.com"},
		secrets: []string{"pw-a"},
	}
	p := NewProvider("TAPO_EMAIL", "TAPO_PASSWORD", true, prompter, nil)

	session := p.Session(3)
	if session.Remaining() != 3 {
		t.Errorf("Remaining() = %d, want 3", session.Remaining())
	}
	if _, err := session.Next(context.Background()); err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if session.Remaining() != 2 {
		t.Errorf("Remaining() = %d, want 2 after one attempt", session.Remaining())
	}
}

func TestPrompt_ContextCancellation(t *testing.T) {
	t.Setenv("TAPO_EMAIL", "")
	t.Setenv("TAPO_PASSWORD", "")

	p := NewProvider("TAPO_EMAIL", "TAPO_PASSWORD", true, &fakePrompter{block: true}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := p.Initial(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Initial() error = %v, want deadline exceeded", err)
	}
}
