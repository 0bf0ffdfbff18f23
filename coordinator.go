package authclient

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
)

// SessionCoordinator is the single source of truth for "am I authenticated,
// and as whom". It reconciles the password-based backend session and the
// federated identity assertion into one canonical Session, and it is the only
// writer of the persisted Credential.
type SessionCoordinator struct {
	backend   Backend
	store     CredentialStore
	federated FederatedSignIn
	logger    Logger
	sink      ActivitySink

	mu             sync.Mutex
	session        Session
	authenticating bool
	evictionEpoch  uint64
	listeners      []func(Session)
}

var _ Coordinator = (*SessionCoordinator)(nil)

// NewSessionCoordinator returns a coordinator bound to the given backend and
// credential store. When the backend announces forced evictions (the REST
// client does) the coordinator subscribes so a 401 from any call converges
// the in-memory session with the already-cleared store.
func NewSessionCoordinator(backend Backend, store CredentialStore, opts ...CoordinatorOption) *SessionCoordinator {
	c := &SessionCoordinator{
		backend: backend,
		store:   store,
		logger:  defLogger{},
		sink:    noopActivitySink{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	if notifier, ok := backend.(EvictionNotifier); ok {
		notifier.OnEviction(c.forceEviction)
	}

	return c
}

// CoordinatorOption configures the session coordinator.
type CoordinatorOption func(*SessionCoordinator)

// WithLogger overrides the coordinator logger.
func WithLogger(l Logger) CoordinatorOption {
	return func(c *SessionCoordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func WithActivitySink(sink ActivitySink) CoordinatorOption {
	return func(c *SessionCoordinator) {
		c.sink = normalizeActivitySink(sink)
	}
}

// WithFederatedSignIn wires the federated identity adapter used for redirect
// completion on startup and provider sign-out on logout.
func WithFederatedSignIn(f FederatedSignIn) CoordinatorOption {
	return func(c *SessionCoordinator) {
		c.federated = f
	}
}

// Current returns a copy of the published session.
func (c *SessionCoordinator) Current() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.clone()
}

// State reports the coordinator's position in the state machine.
func (c *SessionCoordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *SessionCoordinator) stateLocked() State {
	if c.authenticating {
		return StateAuthenticating
	}
	if c.session.IsAuthenticated() {
		return StateAuthenticated
	}
	return StateUnauthenticated
}

// OnChange registers a listener invoked with a session copy after every
// published transition.
func (c *SessionCoordinator) OnChange(fn func(Session)) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Initialize restores a persisted session on process start. An existing
// credential enters Authenticated optimistically and is validated with a
// profile refresh; any refresh failure evicts the record so a stale token
// never outlives the backend's view of it. It also drains a pending
// redirect-flow sign-in, once per load.
func (c *SessionCoordinator) Initialize(ctx context.Context) error {
	cred, err := c.store.Get(ctx)
	if err != nil {
		c.logger.Warn("credential read failed on startup: %v", err)
	}

	if cred != nil && cred.Token != "" {
		if cred.User != nil {
			user := cred.User.Clone()
			user.EnsureRole()
			c.setSession(Session{Token: cred.Token, User: user})
		}

		fresh, err := c.backend.Me(ctx)
		if err != nil {
			c.logger.Warn("startup profile refresh failed, evicting: %v", err)
			c.evictLocal(ctx, "stale-credential")
		} else if err := c.store.Set(ctx, &Credential{Token: cred.Token, User: fresh}); err != nil {
			c.logger.Error("credential rewrite failed, evicting: %v", err)
			c.evictLocal(ctx, "credential-store")
		} else {
			c.setSession(Session{Token: cred.Token, User: fresh})
		}
	}

	if c.federated != nil {
		pending, err := c.federated.ConsumeRedirectResult(ctx)
		if err != nil {
			c.logger.Warn("redirect sign-in completion failed: %v", err)
		} else if pending != nil && pending.Assertion != nil {
			if _, err := c.AuthenticateFederated(ctx, pending.Assertion, pending.RequestedRole); err != nil {
				c.logger.Warn("pending federated sign-in failed: %v", err)
			}
		}
	}

	return nil
}

// Login authenticates with an email and password pair. The credential is
// persisted before success is reported; failures leave the coordinator
// Unauthenticated and are returned as structured results.
func (c *SessionCoordinator) Login(ctx context.Context, email, password string) (*Session, error) {
	if err := validateLoginInput(email, password); err != nil {
		return nil, err
	}

	epoch, from, err := c.beginAuthentication()
	if err != nil {
		return nil, err
	}
	defer c.endAuthentication()

	res, err := c.backend.Login(ctx, email, password)
	if err != nil {
		mapped := c.mapCredentialError(err)
		c.emitAuthEvent(ctx, ActivityEventLoginFailure, "", from, StateUnauthenticated, map[string]any{
			"email": email,
			"error": mapped.Error(),
		})
		return nil, mapped
	}

	// The profile fetch is signed from the store, so the fresh token must be
	// persisted before the fetch goes out.
	if err := c.stageCredential(ctx, res.AccessToken); err != nil {
		return nil, err
	}

	user, err := c.backend.Me(ctx)
	if err != nil {
		c.logger.Error("post-login profile fetch failed: %v", err)
		c.discardStagedCredential(ctx)
		c.emitAuthEvent(ctx, ActivityEventLoginFailure, "", from, StateUnauthenticated, map[string]any{
			"email": email,
			"error": err.Error(),
		})
		return nil, wrapWithSource(ErrProfileUnavailable, err, nil)
	}
	user.EnsureRole()

	session := Session{Token: res.AccessToken, User: user}
	if err := c.commit(ctx, session, epoch); err != nil {
		return nil, err
	}

	c.emitAuthEvent(ctx, ActivityEventLoginSuccess, user.ID, from, StateAuthenticated, map[string]any{
		"email": email,
		"role":  user.Role,
	})

	published := session.clone()
	return &published, nil
}

// AuthenticateFederated exchanges a provider assertion for a backend session,
// applying the role-elevation retry policy: user-tagged exchange first, one
// admin-tagged retry when elevation was requested. The first attempt the
// backend accepts fixes the resulting role.
func (c *SessionCoordinator) AuthenticateFederated(ctx context.Context, assertion *Assertion, requested Role) (*Session, error) {
	if assertion == nil || assertion.IDToken == "" {
		return nil, ErrMissingAssertion
	}
	requested = NormalizeRole(string(requested))

	epoch, from, err := c.beginAuthentication()
	if err != nil {
		return nil, err
	}
	defer c.endAuthentication()

	outcome := resolveWithElevation(ctx, c.backend, assertion, requested)
	if !outcome.Succeeded() {
		mapped := c.mapExchangeError(outcome.Err, requested)
		c.emitAuthEvent(ctx, ActivityEventFederatedFailure, "", from, StateUnauthenticated, map[string]any{
			"provider":  assertion.Provider,
			"subject":   assertion.SubjectID,
			"requested": requested,
			"attempts":  len(outcome.Attempts),
			"error":     mapped.Error(),
		})
		return nil, mapped
	}

	user := outcome.User
	if user == nil {
		// Some deployments omit the profile from the exchange response;
		// fall back to the profile endpoint. The fetch is signed from the
		// store, so the granted token must be persisted first.
		if err := c.stageCredential(ctx, outcome.Token); err != nil {
			return nil, err
		}

		user, err = c.backend.Me(ctx)
		if err != nil {
			c.discardStagedCredential(ctx)
			c.emitAuthEvent(ctx, ActivityEventFederatedFailure, "", from, StateUnauthenticated, map[string]any{
				"provider": assertion.Provider,
				"error":    err.Error(),
			})
			return nil, wrapWithSource(ErrProfileUnavailable, err, nil)
		}
	}
	user.EnsureRole()

	session := Session{
		Token:     outcome.Token,
		User:      user,
		Federated: assertion.Identity(),
	}
	if err := c.commit(ctx, session, epoch); err != nil {
		return nil, err
	}

	c.emitAuthEvent(ctx, ActivityEventFederatedSuccess, user.ID, from, StateAuthenticated, map[string]any{
		"provider":  assertion.Provider,
		"subject":   assertion.SubjectID,
		"requested": requested,
		"granted":   outcome.Granted,
		"attempts":  len(outcome.Attempts),
	})

	published := session.clone()
	return &published, nil
}

// Signup creates an account through the backend user registry. It never
// authenticates: every signup outcome requires a fresh, explicit login, for
// both the password and the federated paths.
func (c *SessionCoordinator) Signup(ctx context.Context, msg SignupMessage) (*User, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	created, err := c.backend.CreateUser(ctx, msg)
	if err != nil {
		return nil, c.mapCredentialError(err)
	}

	// Registration is a side channel: it never moves the state machine.
	state := c.State()
	c.emitAuthEvent(ctx, ActivityEventSignup, created.ID, state, state, map[string]any{
		"email": created.Email,
	})

	return created, nil
}

// Logout revokes the backend session and signs out of the federated provider,
// best effort. Local eviction is unconditional and runs last, regardless of
// upstream failures. Calling Logout while already unauthenticated is a no-op
// that reports success.
func (c *SessionCoordinator) Logout(ctx context.Context) error {
	session := c.Current()

	defer c.evictLocal(ctx, "logout")

	if session.IsAuthenticated() {
		if err := c.backend.Logout(ctx); err != nil {
			c.logger.Warn("backend logout failed: %v", err)
		}
	}

	if c.federated != nil && session.Federated != nil {
		if err := c.federated.SignOut(ctx); err != nil {
			c.logger.Warn("federated sign-out failed: %v", err)
		}
	}

	if session.IsAuthenticated() {
		userID := ""
		if session.User != nil {
			userID = session.User.ID
		}
		c.emitAuthEvent(ctx, ActivityEventLogout, userID, StateAuthenticated, StateUnauthenticated, nil)
	}

	return nil
}

// forceEviction converges the in-memory session after the REST client cleared
// the store on a 401. It wins over any in-flight authentication: the epoch
// bump makes a pending commit fail closed.
func (c *SessionCoordinator) forceEviction(ctx context.Context) {
	c.mu.Lock()
	from := c.stateLocked()
	c.evictionEpoch++
	c.session = Session{}
	listeners := c.snapshotListenersLocked()
	published := c.session.clone()
	c.mu.Unlock()

	c.logger.Info("session evicted by unauthorized response")
	c.emitAuthEvent(ctx, ActivityEventForcedEviction, "", from, StateUnauthenticated, nil)

	for _, fn := range listeners {
		fn(published)
	}
}

// evictLocal clears the persisted credential and resets the in-memory
// session. It never fails: store errors are logged and the reset proceeds,
// resolving any uncertainty toward Unauthenticated.
func (c *SessionCoordinator) evictLocal(ctx context.Context, reason string) {
	if err := c.store.Clear(ctx); err != nil {
		c.logger.Error("credential clear failed (%s): %v", reason, err)
	}

	c.mu.Lock()
	c.evictionEpoch++
	c.session = Session{}
	listeners := c.snapshotListenersLocked()
	published := c.session.clone()
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(published)
	}
}

// beginAuthentication acquires the single pending-operation slot. A second
// login or federated exchange issued while one is pending is rejected rather
// than interleaved. Returns the current eviction epoch and the state the
// machine is transitioning out of.
func (c *SessionCoordinator) beginAuthentication() (uint64, State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.authenticating {
		return 0, StateAuthenticating, ErrOperationInFlight
	}
	from := c.stateLocked()
	c.authenticating = true
	return c.evictionEpoch, from, nil
}

func (c *SessionCoordinator) endAuthentication() {
	c.mu.Lock()
	c.authenticating = false
	c.mu.Unlock()
}

// stageCredential persists a token-only credential so a follow-up profile
// fetch through the REST client goes out signed. The full credential replaces
// it on commit; a failed operation discards it.
func (c *SessionCoordinator) stageCredential(ctx context.Context, token string) error {
	if err := c.store.Set(ctx, &Credential{Token: token}); err != nil {
		c.logger.Error("credential stage failed: %v", err)
		return wrapWithSource(ErrCredentialStore, err, nil)
	}
	return nil
}

func (c *SessionCoordinator) discardStagedCredential(ctx context.Context) {
	if err := c.store.Clear(ctx); err != nil {
		c.logger.Error("staged credential clear failed: %v", err)
	}
}

// commit persists the credential and then publishes the session. The store
// write happens-before success is reported. A forced eviction that landed
// since the operation began wins: the commit is rolled back and the
// operation fails closed.
func (c *SessionCoordinator) commit(ctx context.Context, session Session, epoch uint64) error {
	cred := &Credential{Token: session.Token, User: session.User}
	if err := c.store.Set(ctx, cred); err != nil {
		c.logger.Error("credential persist failed: %v", err)
		return wrapWithSource(ErrCredentialStore, err, nil)
	}

	c.mu.Lock()
	if c.evictionEpoch != epoch {
		c.mu.Unlock()
		if err := c.store.Clear(ctx); err != nil {
			c.logger.Error("rollback clear failed: %v", err)
		}
		return ErrSessionRevoked
	}
	c.session = session
	listeners := c.snapshotListenersLocked()
	published := c.session.clone()
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(published)
	}
	return nil
}

func (c *SessionCoordinator) setSession(session Session) {
	c.mu.Lock()
	c.session = session
	listeners := c.snapshotListenersLocked()
	published := c.session.clone()
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(published)
	}
}

func (c *SessionCoordinator) snapshotListenersLocked() []func(Session) {
	listeners := make([]func(Session), len(c.listeners))
	copy(listeners, c.listeners)
	return listeners
}

// mapCredentialError converts backend rejections into user-displayable
// structured errors, carrying the backend detail when present.
func (c *SessionCoordinator) mapCredentialError(err error) error {
	switch StatusFromError(err) {
	case 400, 401, 403:
		return wrapWithSource(ErrInvalidCredentials, err, errorDetailMetadata(err))
	case 0:
		return errors.Wrap(err, errors.CategoryOperation, "backend unreachable")
	default:
		return errors.Wrap(err, errors.CategoryOperation, "authentication failed")
	}
}

func (c *SessionCoordinator) mapExchangeError(err error, requested Role) error {
	base := ErrExchangeRejected
	if requested == RoleAdmin {
		base = ErrElevationDenied
	}

	switch StatusFromError(err) {
	case 400, 401, 403:
		return wrapWithSource(base, err, errorDetailMetadata(err))
	case 0:
		return errors.Wrap(err, errors.CategoryOperation, "backend unreachable")
	default:
		return errors.Wrap(err, errors.CategoryOperation, "federated exchange failed")
	}
}

func (c *SessionCoordinator) emitAuthEvent(ctx context.Context, eventType ActivityEventType, userID string, from, to State, metadata map[string]any) {
	sink := normalizeActivitySink(c.sink)
	event := ActivityEvent{
		EventType: eventType,
		Actor:     ActorRef{Type: "client"},
		UserID:    userID,
		FromState: from,
		ToState:   to,
		Metadata:  metadata,
	}

	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	c.logger.Debug("activity %s %s", event.EventType, print.MaybePrettyJSON(event.Metadata))

	if err := sink.Record(ctx, event); err != nil {
		c.logger.Warn("activity sink record error: %v", err)
	}
}

func validateLoginInput(email, password string) error {
	err := validation.Errors{
		"email":    validation.Validate(email, validation.Required, is.Email),
		"password": validation.Validate(password, validation.Required),
	}.Filter()
	if err != nil {
		return errors.Wrap(err, errors.CategoryValidation, "invalid login payload").
			WithCode(errors.CodeBadRequest)
	}
	return nil
}

// wrapWithSource clones a sentinel rich error, attaches the originating error
// and optional metadata, mirroring how provider errors are surfaced.
func wrapWithSource(base *errors.Error, source error, meta map[string]any) error {
	clone := base.Clone()
	if clone == nil {
		clone = base
	}
	if source != nil {
		clone.Source = source
	}
	if len(meta) > 0 {
		clone.WithMetadata(meta)
	}
	return clone
}

func errorDetailMetadata(err error) map[string]any {
	var apiErr *APIError
	if stderrors.As(err, &apiErr) && apiErr != nil {
		return apiErr.Metadata()
	}
	return nil
}
