package service

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/doafavor/internal/models"
	"github.com/atinyakov/doafavor/internal/validation"
)

// LookupField selects the account record field matched on password login.
type LookupField string

const (
	LookupByEmail    LookupField = "email"
	LookupByUsername LookupField = "username"
)

// Keying selects how new account records are keyed in the document store.
type Keying string

const (
	// KeyByUID stores records under the identity provider uid.
	KeyByUID Keying = "uid"
	// KeyGenerated appends records under a store-generated key.
	KeyGenerated Keying = "generated"
)

const fallbackDisplayName = "User"

// Options tunes the orchestrator. Zero values select email lookup,
// uid keying and the wall clock.
type Options struct {
	LookupField LookupField
	Keying      Keying
	Now         func() time.Time
}

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Store    DocumentStore
	Identity IdentityProvider
	Flow     FederatedFlow
	Shell    Shell
	Hasher   PasswordHasher
	Log      *zap.Logger
}

// Orchestrator runs one authentication attempt per call. It keeps no state
// between calls and never retries.
type Orchestrator struct {
	store    DocumentStore
	identity IdentityProvider
	flow     FederatedFlow
	shell    Shell
	hasher   PasswordHasher
	log      *zap.Logger
	opts     Options
}

// NewOrchestrator constructs an Orchestrator from deps and opts.
func NewOrchestrator(deps Deps, opts Options) *Orchestrator {
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	if opts.LookupField == "" {
		opts.LookupField = LookupByEmail
	}
	if opts.Keying == "" {
		opts.Keying = KeyByUID
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Orchestrator{
		store:    deps.Store,
		identity: deps.Identity,
		flow:     deps.Flow,
		shell:    deps.Shell,
		hasher:   deps.Hasher,
		log:      deps.Log,
		opts:     opts,
	}
}

// Register validates in and, if every field passes, creates a password
// account and its account record. Invalid input is returned as a
// *validation.Failure and no collaborator is contacted.
//
// A record write that fails after the identity account was created is
// reported as ExternalError; the identity account is not rolled back.
func (o *Orchestrator) Register(ctx context.Context, in validation.Input) (models.Outcome, error) {
	if err := validation.Validate(in).Err(); err != nil {
		return models.Outcome{}, err
	}
	a := models.NewAttempt(models.MethodRegister)
	if err := a.Begin(); err != nil {
		return models.Outcome{}, err
	}
	return o.finish(a, o.register(ctx, in)), nil
}

func (o *Orchestrator) register(ctx context.Context, in validation.Input) models.Outcome {
	sess, err := o.identity.CreateAccountWithPassword(ctx, in.Email, in.Password)
	if err != nil {
		o.log.Error("create account failed", zap.String("email", in.Email), zap.Error(err))
		return models.ExternalError(err.Error())
	}

	hash, err := o.hasher.Hash(in.Password)
	if err != nil {
		o.logOrphan(sess.UID, err)
		return models.ExternalError(fmt.Sprintf("hash password: %v", err))
	}

	acc := models.Account{
		UID:          sess.UID,
		Username:     in.Username,
		Email:        in.Email,
		Provider:     "password",
		PasswordHash: hash,
		CreatedAt:    o.opts.Now().UTC(),
	}
	if err := o.saveAccount(ctx, acc); err != nil {
		o.logOrphan(sess.UID, err)
		return models.ExternalError(err.Error())
	}
	return models.Success("")
}

// Login validates in and checks the password against the account record
// whose lookup field equals in.Identifier.
func (o *Orchestrator) Login(ctx context.Context, in validation.LoginInput) (models.Outcome, error) {
	if err := validation.ValidateLogin(in).Err(); err != nil {
		return models.Outcome{}, err
	}
	a := models.NewAttempt(models.MethodLogin)
	if err := a.Begin(); err != nil {
		return models.Outcome{}, err
	}
	return o.finish(a, o.login(ctx, in)), nil
}

func (o *Orchestrator) login(ctx context.Context, in validation.LoginInput) models.Outcome {
	docs, err := o.store.Query(ctx, models.UsersCollection, string(o.opts.LookupField), in.Identifier)
	if err != nil {
		o.log.Error("account lookup failed", zap.String("field", string(o.opts.LookupField)), zap.Error(err))
		return models.ExternalError(err.Error())
	}
	if len(docs) == 0 {
		return models.NotFound()
	}
	if len(docs) > 1 {
		o.log.Warn("several account records match; using the first",
			zap.String("field", string(o.opts.LookupField)), zap.Int("matches", len(docs)))
	}

	acc, err := decodeAccount(docs[0])
	if err != nil {
		o.log.Error("account record unreadable", zap.String("key", docs[0].Key), zap.Error(err))
		return models.ExternalError(err.Error())
	}

	// Federated accounts have no password to match.
	if acc.PasswordHash == "" {
		return models.InvalidCredential()
	}
	match, err := o.hasher.Verify(in.Password, acc.PasswordHash)
	if err != nil {
		o.log.Warn("stored password hash unreadable", zap.String("uid", acc.UID), zap.Error(err))
		return models.InvalidCredential()
	}
	if !match {
		return models.InvalidCredential()
	}
	return models.Success(cmp.Or(acc.Username, acc.DisplayName, in.Identifier))
}

// SignIn runs the federated flow for provider, exchanges the resulting
// token for a session and looks up or creates the account record.
func (o *Orchestrator) SignIn(ctx context.Context, provider models.Provider) models.Outcome {
	a := models.NewAttempt(models.MethodFederated)
	if err := a.Begin(); err != nil {
		return models.ExternalError(err.Error())
	}
	return o.finish(a, o.signIn(ctx, provider))
}

func (o *Orchestrator) signIn(ctx context.Context, provider models.Provider) models.Outcome {
	if !provider.Valid() {
		return models.ExternalError(fmt.Sprintf("unsupported provider %q", provider))
	}

	token, err := o.flow.Begin(ctx, provider)
	if errors.Is(err, models.ErrCancelled) {
		o.log.Info("federated sign-in cancelled", zap.String("provider", string(provider)))
		return models.Cancelled()
	}
	if err != nil {
		o.log.Error("federated flow failed", zap.String("provider", string(provider)), zap.Error(err))
		return models.ExternalError(err.Error())
	}

	sess, err := o.identity.ExchangeFederatedCredential(ctx, provider, token)
	if err != nil {
		o.log.Error("credential exchange failed", zap.String("provider", string(provider)), zap.Error(err))
		return models.ExternalError(err.Error())
	}

	acc, found, err := o.findFederated(ctx, sess)
	if err != nil {
		o.log.Error("account lookup failed", zap.String("uid", sess.UID), zap.Error(err))
		return models.ExternalError(err.Error())
	}
	if !found {
		acc = models.Account{
			UID:         sess.UID,
			Email:       sess.Email,
			DisplayName: sess.DisplayName,
			Provider:    string(provider),
			CreatedAt:   o.opts.Now().UTC(),
		}
		if err := o.saveAccount(ctx, acc); err != nil {
			o.logOrphan(sess.UID, err)
			return models.ExternalError(err.Error())
		}
	}
	return models.Success(cmp.Or(acc.Username, sess.DisplayName, acc.DisplayName, fallbackDisplayName))
}

// findFederated looks the record up by the provider email, or by uid when
// the provider returned no email.
func (o *Orchestrator) findFederated(ctx context.Context, sess models.Session) (models.Account, bool, error) {
	field, value := "email", sess.Email
	if value == "" {
		field, value = "uid", sess.UID
	}
	docs, err := o.store.Query(ctx, models.UsersCollection, field, value)
	if err != nil {
		return models.Account{}, false, err
	}
	if len(docs) == 0 {
		return models.Account{}, false, nil
	}
	acc, err := decodeAccount(docs[0])
	if err != nil {
		return models.Account{}, false, err
	}
	return acc, true, nil
}

func (o *Orchestrator) saveAccount(ctx context.Context, acc models.Account) error {
	data, err := json.Marshal(acc)
	if err != nil {
		return fmt.Errorf("encode account: %w", err)
	}
	if o.opts.Keying == KeyGenerated {
		_, err = o.store.Append(ctx, models.UsersCollection, data)
		return err
	}
	return o.store.CreateOrReplace(ctx, models.UsersCollection, acc.UID, data)
}

func (o *Orchestrator) logOrphan(uid string, err error) {
	o.log.Warn("identity account has no account record", zap.String("uid", uid), zap.Error(err))
}

func decodeAccount(doc models.Document) (models.Account, error) {
	var acc models.Account
	if err := json.Unmarshal(doc.Data, &acc); err != nil {
		return acc, fmt.Errorf("decode account %s: %w", doc.Key, err)
	}
	return acc, nil
}

// finish records out on a and reports it to the shell exactly once.
func (o *Orchestrator) finish(a *models.Attempt, out models.Outcome) models.Outcome {
	if err := a.Finish(out); err != nil {
		o.log.Error("attempt already finished", zap.String("method", string(a.Method)), zap.Error(err))
		return out
	}
	o.log.Debug("attempt finished", zap.String("method", string(a.Method)), zap.Stringer("outcome", out))

	kind, text := message(a.Method, out)
	o.shell.ShowMessage(kind, text)
	if out.IsSuccess() {
		o.shell.RequestNavigation(models.RouteHome)
	}
	return out
}

// Messages shown for each terminal state.
const (
	MsgAccountCreated    = "Account created successfully!"
	MsgUserNotFound      = "User not found"
	MsgIncorrectPassword = "Incorrect password"
	MsgSignInCancelled   = "Sign-in cancelled"
)

func message(m models.Method, out models.Outcome) (models.MessageKind, string) {
	switch out.Kind {
	case models.OutcomeSuccess:
		switch m {
		case models.MethodRegister:
			return models.MessageSuccess, MsgAccountCreated
		case models.MethodLogin:
			return models.MessageSuccess, fmt.Sprintf("Welcome back, %s!", out.DisplayName)
		default:
			return models.MessageSuccess, fmt.Sprintf("Welcome %s!", out.DisplayName)
		}
	case models.OutcomeNotFound:
		return models.MessageError, MsgUserNotFound
	case models.OutcomeInvalidCredential:
		return models.MessageError, MsgIncorrectPassword
	case models.OutcomeCancelled:
		return models.MessageError, MsgSignInCancelled
	default:
		return models.MessageError, cmp.Or(out.Message, defaultFailure(m))
	}
}

func defaultFailure(m models.Method) string {
	switch m {
	case models.MethodRegister:
		return "Failed to create account"
	case models.MethodLogin:
		return "An error occurred while logging in"
	default:
		return "Federated sign-in failed"
	}
}
