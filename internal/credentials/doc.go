// Package credentials acquires the cloud account credentials the tapo
// bridge authenticates with.
//
// Startup credentials come from the environment when both variables are
// set, falling back to an interactive terminal prompt. After an
// upstream rejection the poller opens a bounded recovery Session: each
// attempt prompts the operator once, and when the budget is spent the
// session reports exhaustion and the affected devices are disabled for
// the process lifetime.
//
// Security considerations:
//   - Credentials live in memory only; nothing here writes them to disk
//   - Log lines name the environment variable consulted, never a value
//   - Passwords are read without terminal echo
package credentials
