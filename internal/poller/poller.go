package poller

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-energy/internal/bridges"
	"github.com/nerrad567/gray-logic-energy/internal/credentials"
	"github.com/nerrad567/gray-logic-energy/internal/device"
	"github.com/nerrad567/gray-logic-energy/internal/schema"
)

// Logger defines the logging interface for the poll loop.
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

// Status describes where a device sits in its poll lifecycle.
type Status string

const (
	// StatusIdle is the state before first contact.
	StatusIdle Status = "idle"

	// StatusAuthenticating marks the startup session handshake.
	StatusAuthenticating Status = "authenticating"

	// StatusPolling is the steady state: the device is read every cycle.
	StatusPolling Status = "polling"

	// StatusRecovering suspends regular reads while replacement
	// credentials are acquired and verified.
	StatusRecovering Status = "auth_recovering"

	// StatusDisabled is terminal until process restart.
	StatusDisabled Status = "disabled"
)

// SchemaSource supplies the active schema set. *schema.Watcher
// satisfies it.
type SchemaSource interface {
	// Current returns the active set. The poller snapshots it once per
	// cycle, so a reload never lands mid-cycle.
	Current() *schema.Set

	// Reload re-reads the backing source, reporting whether the set
	// changed.
	Reload() (bool, error)
}

// Datastore persists projected records. *store.Store satisfies it.
type Datastore interface {
	EnsureTable(ctx context.Context, sch *schema.Schema) error
	Insert(ctx context.Context, sch *schema.Schema, rec schema.Record) error
}

// Sink receives a copy of each record after it has been persisted.
type Sink interface {
	// Name identifies the sink in logs.
	Name() string

	// Publish forwards one persisted record.
	Publish(ctx context.Context, dev device.Device, sch *schema.Schema, rec schema.Record) error
}

// Options configures a Poller. Zero-valued tunables take the documented
// defaults; collaborators are required unless noted.
type Options struct {
	// Schemas supplies the active schema set and its between-cycle
	// reload check.
	Schemas SchemaSource

	// Devices is the configured inventory. Every device's connector
	// must have a matching bridge.
	Devices []device.Device

	// Bridges are the protocol implementations, one per connector.
	Bridges []bridges.Bridge

	// Store receives projected readings.
	Store Datastore

	// Credentials supplies cloud account credentials. Required when any
	// device uses a bridge that implements bridges.Authenticator.
	Credentials *credentials.Provider

	// Sinks receive a copy of each persisted record. Optional.
	Sinks []Sink

	// Interval is the gap between poll cycles. Default 5s.
	Interval time.Duration

	// CloudTimeout bounds one read of an authenticated cloud device.
	// Default 2s. Modbus reads are bounded by the bridge's own connect
	// and IO deadlines instead.
	CloudTimeout time.Duration

	// MaxAuthAttempts bounds each credential recovery session. Default 3.
	MaxAuthAttempts int

	// HotReload enables the between-cycle schema reload check.
	HotReload bool

	// Logger receives poll lifecycle events. Optional.
	Logger Logger
}

// deviceState is one device's slot in the poll loop, guarded by the
// poller mutex. dev itself is read-only after construction.
type deviceState struct {
	dev      device.Device
	status   Status
	inFlight bool
	reads    uint64
	faults   uint64
	lastErr  error
}

// readResult carries one read outcome from the read goroutine to its
// cycle task.
type readResult struct {
	reading schema.Reading
	err     error
}

// Poller drives the read, project, persist loop across all configured
// devices at a fixed interval.
//
// Thread Safety: Run is intended to be called once; Stats is safe to
// call concurrently with a running loop.
type Poller struct {
	schemas SchemaSource
	bridges map[device.Connector]bridges.Bridge
	authers []bridges.Authenticator
	creds   *credentials.Provider
	store   Datastore
	sinks   []Sink
	log     Logger

	interval        time.Duration
	cloudTimeout    time.Duration
	maxAuthAttempts int
	hotReload       bool
	needsAuth       bool

	mu      sync.Mutex
	devices map[string]*deviceState
	order   []string

	// wg tracks read goroutines and recovery sessions so shutdown can
	// drain them.
	wg sync.WaitGroup
}

// New validates the options and builds a Poller.
//
// Parameters:
//   - opts: Collaborators and tunables; see Options
//
// Returns:
//   - *Poller: Ready to Run
//   - error: If a required collaborator is missing or a device has no bridge
func New(opts Options) (*Poller, error) {
	if opts.Schemas == nil {
		return nil, ErrNoSchemas
	}
	if opts.Store == nil {
		return nil, ErrNoDatastore
	}
	log := opts.Logger
	if log == nil {
		log = noopLogger{}
	}

	brs := make(map[device.Connector]bridges.Bridge, len(opts.Bridges))
	var authers []bridges.Authenticator
	for _, br := range opts.Bridges {
		if _, dup := brs[br.Connector()]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateBridge, br.Connector())
		}
		brs[br.Connector()] = br
		if auth, ok := br.(bridges.Authenticator); ok {
			authers = append(authers, auth)
		}
	}

	devices := make(map[string]*deviceState, len(opts.Devices))
	order := make([]string, 0, len(opts.Devices))
	needsAuth := false
	for _, dev := range opts.Devices {
		br, ok := brs[dev.Connector]
		if !ok {
			return nil, fmt.Errorf("%w: device %q uses %q", ErrNoBridge, dev.Name, dev.Connector)
		}
		if _, ok := br.(bridges.Authenticator); ok {
			needsAuth = true
		}
		devices[dev.Name] = &deviceState{dev: dev, status: StatusIdle}
		order = append(order, dev.Name)
	}
	sort.Strings(order)

	if needsAuth && opts.Credentials == nil {
		return nil, ErrNoCredentialProvider
	}

	interval := opts.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	cloudTimeout := opts.CloudTimeout
	if cloudTimeout <= 0 {
		cloudTimeout = 2 * time.Second
	}
	maxAuth := opts.MaxAuthAttempts
	if maxAuth <= 0 {
		maxAuth = 3
	}

	return &Poller{
		schemas:         opts.Schemas,
		bridges:         brs,
		authers:         authers,
		creds:           opts.Credentials,
		store:           opts.Store,
		sinks:           opts.Sinks,
		log:             log,
		interval:        interval,
		cloudTimeout:    cloudTimeout,
		maxAuthAttempts: maxAuth,
		hotReload:       opts.HotReload,
		needsAuth:       needsAuth,
		devices:         devices,
		order:           order,
	}, nil
}

// Run executes the poll loop until the context is cancelled, then
// returns after all in-flight reads, recovery sessions, and datastore
// writes have drained.
//
// The error return covers startup only: a failure to acquire cloud
// credentials refuses to start. Per-device faults after startup are
// logged and absorbed.
func (p *Poller) Run(ctx context.Context) error {
	if err := p.startup(ctx); err != nil {
		return err
	}

	p.log.Info("poll loop started",
		"interval", p.interval.String(),
		"devices", len(p.order),
	)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.Info("poll loop stopping")
			p.wg.Wait()
			p.logSummary()
			return nil
		case <-ticker.C:
			p.cycle(ctx)
		}
	}
}

// startup acquires cloud credentials and makes first contact with every
// configured device before the steady loop begins. Devices are visited
// in name order so any interactive prompts appear deterministically.
func (p *Poller) startup(ctx context.Context) error {
	if p.needsAuth {
		creds, err := p.creds.Initial(ctx)
		if err != nil {
			return fmt.Errorf("acquiring cloud credentials: %w", err)
		}
		p.setCredentials(creds)
	}

	disabled := 0
	for _, name := range p.order {
		if ctx.Err() != nil {
			return fmt.Errorf("startup interrupted: %w", ctx.Err())
		}
		st := p.devices[name]
		p.firstContact(ctx, st)
		if p.statusOf(st) == StatusDisabled {
			disabled++
		}
	}

	p.log.Info("first contact complete",
		"devices", len(p.order),
		"disabled", disabled,
	)
	return nil
}

// firstContact authenticates where the bridge supports it and takes one
// reading, so each device enters the steady loop with a known state. An
// authentication rejection runs the same bounded recovery as the steady
// loop; any other failure leaves the device scheduled for the next
// cycle.
func (p *Poller) firstContact(ctx context.Context, st *deviceState) {
	br := p.bridges[st.dev.Connector]

	if auth, ok := br.(bridges.Authenticator); ok {
		p.setStatus(st, StatusAuthenticating)
		if err := p.authenticate(ctx, auth, st.dev); err != nil {
			p.markFault(st, err)
			if errors.Is(err, bridges.ErrAuthentication) {
				p.log.Warn("startup authentication rejected",
					"device", st.dev.Name,
					"error", err,
				)
				p.setStatus(st, StatusRecovering)
				p.recoverDevice(ctx, st)
				return
			}
			p.log.Warn("startup authentication failed",
				"device", st.dev.Name,
				"error", err,
			)
			p.setStatus(st, StatusPolling)
			return
		}
	}

	p.setStatus(st, StatusPolling)

	reading, err := p.readOnce(ctx, st.dev)
	switch {
	case err == nil:
		p.persist(ctx, p.schemas.Current(), st, reading)
	case errors.Is(err, bridges.ErrAuthentication):
		p.markFault(st, err)
		p.log.Warn("startup read rejected authentication",
			"device", st.dev.Name,
			"error", err,
		)
		p.setStatus(st, StatusRecovering)
		p.recoverDevice(ctx, st)
	default:
		p.markFault(st, err)
		p.log.Warn("startup read failed",
			"device", st.dev.Name,
			"type", st.dev.Type,
			"error", err,
		)
	}
}

// cycle runs one fan-out over every schedulable device and waits for
// all bounded tasks before returning to the interval timer.
func (p *Poller) cycle(ctx context.Context) {
	if p.hotReload {
		changed, err := p.schemas.Reload()
		switch {
		case err != nil:
			p.log.Warn("schema reload failed, keeping previous set", "error", err)
		case changed:
			p.log.Info("schema set reloaded")
		}
	}
	set := p.schemas.Current()

	var tasks sync.WaitGroup
	polled := 0
	for _, name := range p.order {
		st := p.claim(name)
		if st == nil {
			continue
		}
		polled++
		tasks.Add(1)
		go func(st *deviceState) {
			defer tasks.Done()
			p.pollDevice(ctx, set, st)
		}(st)
	}
	tasks.Wait()

	p.log.Debug("poll cycle complete", "polled", polled)
}

// claim reserves a device's poll slot for one task, returning nil when
// the device is not schedulable this cycle.
func (p *Poller) claim(name string) *deviceState {
	p.mu.Lock()
	defer p.mu.Unlock()

	st := p.devices[name]
	if st.status != StatusPolling {
		return nil
	}
	if st.inFlight {
		p.log.Debug("previous attempt still in flight, skipping device", "device", name)
		return nil
	}
	st.inFlight = true
	return st
}

// release frees a device's poll slot.
func (p *Poller) release(st *deviceState) {
	p.mu.Lock()
	st.inFlight = false
	p.mu.Unlock()
}

// pollDevice performs one bounded read attempt for a claimed device.
//
// The read runs in its own goroutine so a stalled device cannot hold
// the cycle past its deadline: on timeout the attempt counts as a
// transient fault, the late result is discarded when it eventually
// arrives, and the slot stays held until then so reads of one device
// never overlap.
func (p *Poller) pollDevice(ctx context.Context, set *schema.Set, st *deviceState) {
	readCtx := ctx
	cancel := context.CancelFunc(func() {})
	if d, ok := p.timeoutFor(st.dev); ok {
		readCtx, cancel = context.WithTimeout(ctx, d)
	}
	defer cancel()

	br := p.bridges[st.dev.Connector]
	results := make(chan readResult)
	abandoned := make(chan struct{})

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		reading, err := br.Read(readCtx, st.dev)
		select {
		case results <- readResult{reading: reading, err: err}:
			// The task took the result and owns the slot from here.
		case <-abandoned:
			// The task moved on at its deadline: discard the late result
			// and free the slot for the next cycle.
			p.release(st)
		}
	}()

	select {
	case res := <-results:
		p.handleResult(ctx, set, st, res)
	case <-readCtx.Done():
		close(abandoned)
		if ctx.Err() == nil {
			err := fmt.Errorf("%w: %v", bridges.ErrTransient, readCtx.Err())
			p.markFault(st, err)
			p.log.Warn("device read timed out",
				"device", st.dev.Name,
				"type", st.dev.Type,
				"timeout", p.cloudTimeout.String(),
			)
		}
	}
}

// handleResult routes a completed read: persist on success, bounded
// recovery on an authentication rejection, retry next cycle on anything
// else.
func (p *Poller) handleResult(ctx context.Context, set *schema.Set, st *deviceState, res readResult) {
	switch {
	case res.err == nil:
		p.persist(ctx, set, st, res.reading)
		p.release(st)

	case errors.Is(res.err, bridges.ErrAuthentication):
		p.markFault(st, res.err)
		p.log.Warn("authentication rejected, suspending device",
			"device", st.dev.Name,
			"error", res.err,
		)
		p.setStatus(st, StatusRecovering)
		// Recovery can wait minutes for an operator; it keeps the slot
		// but runs outside the cycle so every other device keeps polling.
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			defer p.release(st)
			p.recoverDevice(ctx, st)
		}()

	default:
		p.markFault(st, res.err)
		p.log.Warn("device read failed",
			"device", st.dev.Name,
			"type", st.dev.Type,
			"error", res.err,
		)
		p.release(st)
	}
}

// recoverDevice runs one bounded credential recovery session for a
// suspended device: each attempt acquires a fresh pair and verifies it
// with one read. A verified pair resumes polling and its reading is
// persisted; a transient failure resumes polling with the new pair
// unproven; exhaustion disables the device until process restart.
func (p *Poller) recoverDevice(ctx context.Context, st *deviceState) {
	session := p.creds.Session(p.maxAuthAttempts)
	for {
		creds, err := session.Next(ctx)
		if err != nil {
			if errors.Is(err, credentials.ErrExhausted) {
				p.setStatus(st, StatusDisabled)
				p.log.Error("credential attempts exhausted, device disabled until restart",
					"device", st.dev.Name,
					"error", err,
				)
			} else {
				p.log.Info("credential recovery interrupted",
					"device", st.dev.Name,
					"error", err,
				)
			}
			return
		}
		p.setCredentials(creds)

		reading, readErr := p.readOnce(ctx, st.dev)
		switch {
		case readErr == nil:
			p.persist(ctx, p.schemas.Current(), st, reading)
			p.setStatus(st, StatusPolling)
			p.log.Info("credentials verified, polling resumed", "device", st.dev.Name)
			return
		case errors.Is(readErr, bridges.ErrAuthentication):
			p.markFault(st, readErr)
			p.log.Warn("replacement credentials rejected",
				"device", st.dev.Name,
				"attempts_left", session.Remaining(),
			)
		default:
			// Not proven bad: keep the new pair and let the regular
			// cycle retry.
			p.markFault(st, readErr)
			p.setStatus(st, StatusPolling)
			p.log.Warn("credential verification inconclusive, resuming",
				"device", st.dev.Name,
				"error", readErr,
			)
			return
		}
	}
}

// persist projects a reading onto the device type's schema, writes it,
// and fans the record out to any configured sinks.
func (p *Poller) persist(ctx context.Context, set *schema.Set, st *deviceState, reading schema.Reading) {
	sch, ok := set.Schema(st.dev.Type)
	if !ok {
		err := fmt.Errorf("%w: %q", schema.ErrUnknownType, st.dev.Type)
		p.markFault(st, err)
		p.log.Error("no schema for device type, reading dropped",
			"device", st.dev.Name,
			"type", st.dev.Type,
		)
		return
	}

	rec := schema.Project(reading, sch, st.dev.Name)

	// Writes for readings already taken run to completion even while
	// the poll loop is being cancelled.
	writeCtx := context.WithoutCancel(ctx)

	if err := p.store.EnsureTable(writeCtx, sch); err != nil {
		p.markFault(st, err)
		p.log.Error("ensuring datastore table",
			"device", st.dev.Name,
			"table", sch.Table,
			"error", err,
		)
		return
	}
	if err := p.store.Insert(writeCtx, sch, rec); err != nil {
		p.markFault(st, err)
		p.log.Error("persisting reading",
			"device", st.dev.Name,
			"table", sch.Table,
			"error", err,
		)
		return
	}
	p.markSuccess(st)
	p.log.Debug("reading persisted",
		"device", st.dev.Name,
		"table", sch.Table,
		"columns", len(rec.Fields),
	)

	for _, sink := range p.sinks {
		if err := sink.Publish(writeCtx, st.dev, sch, rec); err != nil {
			p.log.Warn("sink publish failed",
				"sink", sink.Name(),
				"device", st.dev.Name,
				"error", err,
			)
		}
	}
}

// readOnce performs a single bounded read outside the cycle machinery,
// used for first contact and credential verification.
func (p *Poller) readOnce(ctx context.Context, dev device.Device) (schema.Reading, error) {
	if d, ok := p.timeoutFor(dev); ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	return p.bridges[dev.Connector].Read(ctx, dev)
}

// authenticate performs one bounded session handshake.
func (p *Poller) authenticate(ctx context.Context, auth bridges.Authenticator, dev device.Device) error {
	ctx, cancel := context.WithTimeout(ctx, p.cloudTimeout)
	defer cancel()
	return auth.Authenticate(ctx, dev)
}

// timeoutFor returns the per-read deadline for a device. Authenticated
// cloud protocols get the configured cloud timeout; Modbus reads are
// already bounded by the bridge's own connect and IO deadlines.
func (p *Poller) timeoutFor(dev device.Device) (time.Duration, bool) {
	if _, ok := p.bridges[dev.Connector].(bridges.Authenticator); ok {
		return p.cloudTimeout, true
	}
	return 0, false
}

// setCredentials installs one account pair on every authenticating
// bridge.
func (p *Poller) setCredentials(creds credentials.Credentials) {
	for _, auth := range p.authers {
		auth.SetCredentials(creds.Username, creds.Password)
	}
}

func (p *Poller) setStatus(st *deviceState, status Status) {
	p.mu.Lock()
	st.status = status
	p.mu.Unlock()
}

func (p *Poller) statusOf(st *deviceState) Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return st.status
}

func (p *Poller) markSuccess(st *deviceState) {
	p.mu.Lock()
	st.reads++
	st.lastErr = nil
	p.mu.Unlock()
}

func (p *Poller) markFault(st *deviceState, err error) {
	p.mu.Lock()
	st.faults++
	st.lastErr = err
	p.mu.Unlock()
}

// DeviceStats is a point-in-time snapshot of one device's poll state.
type DeviceStats struct {
	Name      string           `json:"name"`
	Type      string           `json:"type"`
	Connector device.Connector `json:"connector"`
	Status    Status           `json:"status"`
	Reads     uint64           `json:"reads"`
	Faults    uint64           `json:"faults"`
	LastError string           `json:"last_error,omitempty"`
}

// Stats returns a snapshot for every configured device, sorted by name.
func (p *Poller) Stats() []DeviceStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]DeviceStats, 0, len(p.order))
	for _, name := range p.order {
		st := p.devices[name]
		ds := DeviceStats{
			Name:      st.dev.Name,
			Type:      st.dev.Type,
			Connector: st.dev.Connector,
			Status:    st.status,
			Reads:     st.reads,
			Faults:    st.faults,
		}
		if st.lastErr != nil {
			ds.LastError = st.lastErr.Error()
		}
		out = append(out, ds)
	}
	return out
}

// logSummary reports loop totals once at shutdown.
func (p *Poller) logSummary() {
	var reads, faults uint64
	disabled := 0
	for _, ds := range p.Stats() {
		reads += ds.Reads
		faults += ds.Faults
		if ds.Status == StatusDisabled {
			disabled++
		}
	}
	p.log.Info("poll loop stopped",
		"readings", reads,
		"faults", faults,
		"disabled_devices", disabled,
	)
}
