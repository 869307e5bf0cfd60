package service

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/atinyakov/doafavor/internal/models"
	"github.com/atinyakov/doafavor/internal/password"
	"github.com/atinyakov/doafavor/internal/validation"
)

// memStore is an in-memory DocumentStore keyed by collection then key.
type memStore struct {
	docs      map[string]map[string]json.RawMessage
	queryErr  error
	writeErr  error
	queries   []string
	appends   int
	replaces  int
	generated int
}

func newMemStore() *memStore {
	return &memStore{docs: make(map[string]map[string]json.RawMessage)}
}

func (m *memStore) Query(ctx context.Context, collection, field, value string) ([]models.Document, error) {
	m.queries = append(m.queries, collection+"."+field+"="+value)
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	var out []models.Document
	for key, data := range m.docs[collection] {
		var fields map[string]any
		if err := json.Unmarshal(data, &fields); err != nil {
			return nil, err
		}
		if s, ok := fields[field].(string); ok && s == value {
			out = append(out, models.Document{Key: key, Data: data})
		}
	}
	return out, nil
}

func (m *memStore) CreateOrReplace(ctx context.Context, collection, key string, data json.RawMessage) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	m.replaces++
	m.put(collection, key, data)
	return nil
}

func (m *memStore) Append(ctx context.Context, collection string, data json.RawMessage) (string, error) {
	if m.writeErr != nil {
		return "", m.writeErr
	}
	m.appends++
	m.generated++
	key := "gen-" + strconv.Itoa(m.generated)
	m.put(collection, key, data)
	return key, nil
}

func (m *memStore) put(collection, key string, data json.RawMessage) {
	if m.docs[collection] == nil {
		m.docs[collection] = make(map[string]json.RawMessage)
	}
	m.docs[collection][key] = data
}

func (m *memStore) account(t *testing.T, key string) models.Account {
	t.Helper()
	data, ok := m.docs[models.UsersCollection][key]
	if !ok {
		t.Fatalf("no account record under key %q", key)
	}
	var acc models.Account
	if err := json.Unmarshal(data, &acc); err != nil {
		t.Fatalf("decode account: %v", err)
	}
	return acc
}

type mockIdentity struct {
	CreateFunc   func(ctx context.Context, email, password string) (models.Session, error)
	ExchangeFunc func(ctx context.Context, provider models.Provider, token string) (models.Session, error)
}

func (m *mockIdentity) CreateAccountWithPassword(ctx context.Context, email, password string) (models.Session, error) {
	return m.CreateFunc(ctx, email, password)
}

func (m *mockIdentity) ExchangeFederatedCredential(ctx context.Context, provider models.Provider, token string) (models.Session, error) {
	return m.ExchangeFunc(ctx, provider, token)
}

type mockFlow struct {
	BeginFunc func(ctx context.Context, provider models.Provider) (string, error)
}

func (m *mockFlow) Begin(ctx context.Context, provider models.Provider) (string, error) {
	return m.BeginFunc(ctx, provider)
}

type shellMessage struct {
	kind models.MessageKind
	text string
}

// recordingShell captures every side effect requested by the orchestrator.
type recordingShell struct {
	messages    []shellMessage
	navigations []string
}

func (s *recordingShell) ShowMessage(kind models.MessageKind, text string) {
	s.messages = append(s.messages, shellMessage{kind, text})
}

func (s *recordingShell) RequestNavigation(route string) {
	s.navigations = append(s.navigations, route)
}

func (s *recordingShell) only(t *testing.T) shellMessage {
	t.Helper()
	if len(s.messages) != 1 {
		t.Fatalf("shell received %d messages; want exactly 1: %+v", len(s.messages), s.messages)
	}
	return s.messages[0]
}

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store    *memStore
	identity *mockIdentity
	flow     *mockFlow
	shell    *recordingShell
	hasher   *password.Argon2
	logs     *observer.ObservedLogs
	orch     *Orchestrator
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	hasher, err := password.NewArgon2(password.Config{Memory: 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	if err != nil {
		t.Fatalf("NewArgon2: %v", err)
	}
	core, logs := observer.New(zapcore.DebugLevel)
	f := &fixture{
		store: newMemStore(),
		identity: &mockIdentity{
			CreateFunc: func(ctx context.Context, email, password string) (models.Session, error) {
				t.Fatal("unexpected CreateAccountWithPassword call")
				return models.Session{}, nil
			},
			ExchangeFunc: func(ctx context.Context, provider models.Provider, token string) (models.Session, error) {
				t.Fatal("unexpected ExchangeFederatedCredential call")
				return models.Session{}, nil
			},
		},
		flow: &mockFlow{
			BeginFunc: func(ctx context.Context, provider models.Provider) (string, error) {
				t.Fatal("unexpected federated flow")
				return "", nil
			},
		},
		shell:  &recordingShell{},
		hasher: hasher,
		logs:   logs,
	}
	opts.Now = func() time.Time { return fixedNow }
	f.orch = NewOrchestrator(Deps{
		Store:    f.store,
		Identity: f.identity,
		Flow:     f.flow,
		Shell:    f.shell,
		Hasher:   f.hasher,
		Log:      zap.New(core),
	}, opts)
	return f
}

func (f *fixture) seedAccount(t *testing.T, acc models.Account, plain string) {
	t.Helper()
	if plain != "" {
		hash, err := f.hasher.Hash(plain)
		if err != nil {
			t.Fatalf("Hash: %v", err)
		}
		acc.PasswordHash = hash
	}
	data, _ := json.Marshal(acc)
	f.store.put(models.UsersCollection, acc.UID, data)
}

var bobInput = validation.Input{
	Username:        "bob",
	Email:           "bob@x.com",
	Password:        "Abcdef1!",
	ConfirmPassword: "Abcdef1!",
	AgreedToTerms:   true,
}

func TestRegister_CreatesAccountRecord(t *testing.T) {
	f := newFixture(t, Options{})
	f.identity.CreateFunc = func(ctx context.Context, email, pw string) (models.Session, error) {
		if email != "bob@x.com" || pw != "Abcdef1!" {
			t.Errorf("CreateAccountWithPassword(%q, %q)", email, pw)
		}
		return models.Session{UID: "uid-bob", Email: email, IDToken: "tok"}, nil
	}

	out, err := f.orch.Register(context.Background(), bobInput)
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if out != models.Success("") {
		t.Fatalf("Register outcome = %v; want success", out)
	}

	if n := len(f.store.docs[models.UsersCollection]); n != 1 {
		t.Fatalf("records = %d; want 1", n)
	}
	acc := f.store.account(t, "uid-bob")
	if acc.Username != "bob" || acc.Email != "bob@x.com" || acc.UID != "uid-bob" {
		t.Errorf("unexpected record %+v", acc)
	}
	if !acc.CreatedAt.Equal(fixedNow) {
		t.Errorf("CreatedAt = %v; want %v", acc.CreatedAt, fixedNow)
	}
	if acc.PasswordHash == "" || acc.PasswordHash == "Abcdef1!" {
		t.Errorf("password must be stored hashed, got %q", acc.PasswordHash)
	}

	msg := f.shell.only(t)
	if msg.kind != models.MessageSuccess || msg.text != MsgAccountCreated {
		t.Errorf("message = %+v", msg)
	}
	if len(f.shell.navigations) != 1 || f.shell.navigations[0] != models.RouteHome {
		t.Errorf("navigations = %v; want [%s]", f.shell.navigations, models.RouteHome)
	}
}

func TestRegister_InvalidInputNeverReachesCollaborators(t *testing.T) {
	f := newFixture(t, Options{})
	in := bobInput
	in.ConfirmPassword = "Abcdef2!"

	_, err := f.orch.Register(context.Background(), in)
	var failure *validation.Failure
	if !errors.As(err, &failure) {
		t.Fatalf("Register error = %v; want *validation.Failure", err)
	}
	if len(failure.Results) != 1 || failure.Results[0].Field != validation.FieldConfirmPassword {
		t.Errorf("failure results = %+v", failure.Results)
	}
	if len(f.shell.messages) != 0 || len(f.shell.navigations) != 0 {
		t.Errorf("shell must not be called on validation failure")
	}
}

func TestRegister_IdentityErrorPassedThrough(t *testing.T) {
	f := newFixture(t, Options{})
	f.identity.CreateFunc = func(ctx context.Context, email, pw string) (models.Session, error) {
		return models.Session{}, errors.New("EMAIL_EXISTS")
	}

	out, err := f.orch.Register(context.Background(), bobInput)
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if out != models.ExternalError("EMAIL_EXISTS") {
		t.Errorf("outcome = %v", out)
	}
	if msg := f.shell.only(t); msg.kind != models.MessageError || msg.text != "EMAIL_EXISTS" {
		t.Errorf("message = %+v", msg)
	}
	if len(f.shell.navigations) != 0 {
		t.Errorf("unexpected navigation %v", f.shell.navigations)
	}
	if len(f.store.docs) != 0 {
		t.Errorf("no record expected, got %v", f.store.docs)
	}
}

func TestRegister_RecordWriteFailureIsExternalError(t *testing.T) {
	f := newFixture(t, Options{})
	f.identity.CreateFunc = func(ctx context.Context, email, pw string) (models.Session, error) {
		return models.Session{UID: "uid-orphan", Email: email}, nil
	}
	f.store.writeErr = errors.New("permission denied")

	out, _ := f.orch.Register(context.Background(), bobInput)
	if out.Kind != models.OutcomeExternalError || out.Message != "permission denied" {
		t.Errorf("outcome = %v", out)
	}
	warned := f.logs.FilterMessage("identity account has no account record").FilterField(zap.String("uid", "uid-orphan"))
	if warned.Len() != 1 {
		t.Errorf("expected one orphan warning, got %d", warned.Len())
	}
	f.shell.only(t)
}

func TestRegister_GeneratedKeying(t *testing.T) {
	f := newFixture(t, Options{Keying: KeyGenerated})
	f.identity.CreateFunc = func(ctx context.Context, email, pw string) (models.Session, error) {
		return models.Session{UID: "uid-bob", Email: email}, nil
	}

	if out, _ := f.orch.Register(context.Background(), bobInput); !out.IsSuccess() {
		t.Fatalf("outcome = %v", out)
	}
	if f.store.appends != 1 || f.store.replaces != 0 {
		t.Errorf("appends = %d, replaces = %d; want 1, 0", f.store.appends, f.store.replaces)
	}
	if acc := f.store.account(t, "gen-1"); acc.UID != "uid-bob" {
		t.Errorf("record uid = %q", acc.UID)
	}
}

func TestLogin_Outcomes(t *testing.T) {
	tests := []struct {
		name     string
		in       validation.LoginInput
		want     models.Outcome
		wantText string
	}{
		{"match", validation.LoginInput{Identifier: "a@x.com", Password: "P4ssword!"}, models.Success("alice"), "Welcome back, alice!"},
		{"wrong password", validation.LoginInput{Identifier: "a@x.com", Password: "wrong"}, models.InvalidCredential(), MsgIncorrectPassword},
		{"missing account", validation.LoginInput{Identifier: "missing@x.com", Password: "P4ssword!"}, models.NotFound(), MsgUserNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Options{})
			f.seedAccount(t, models.Account{UID: "u1", Username: "alice", Email: "a@x.com"}, "P4ssword!")

			out, err := f.orch.Login(context.Background(), tt.in)
			if err != nil {
				t.Fatalf("Login returned error: %v", err)
			}
			if out != tt.want {
				t.Errorf("outcome = %v; want %v", out, tt.want)
			}
			if msg := f.shell.only(t); msg.text != tt.wantText {
				t.Errorf("message = %q; want %q", msg.text, tt.wantText)
			}
			wantNav := 0
			if tt.want.IsSuccess() {
				wantNav = 1
			}
			if len(f.shell.navigations) != wantNav {
				t.Errorf("navigations = %v", f.shell.navigations)
			}
		})
	}
}

func TestLogin_DisplayNameFallsBackToIdentifier(t *testing.T) {
	f := newFixture(t, Options{})
	f.seedAccount(t, models.Account{UID: "u1", Email: "a@x.com"}, "P4ssword!")

	out, _ := f.orch.Login(context.Background(), validation.LoginInput{Identifier: "a@x.com", Password: "P4ssword!"})
	if out != models.Success("a@x.com") {
		t.Errorf("outcome = %v", out)
	}
}

func TestLogin_UsernameLookupMode(t *testing.T) {
	f := newFixture(t, Options{LookupField: LookupByUsername})
	f.seedAccount(t, models.Account{UID: "u1", Username: "alice", Email: "a@x.com"}, "P4ssword!")

	out, _ := f.orch.Login(context.Background(), validation.LoginInput{Identifier: "alice", Password: "P4ssword!"})
	if !out.IsSuccess() {
		t.Errorf("outcome = %v", out)
	}
	if len(f.store.queries) != 1 || f.store.queries[0] != "users.username=alice" {
		t.Errorf("queries = %v", f.store.queries)
	}
}

func TestLogin_FederatedAccountHasNoPassword(t *testing.T) {
	f := newFixture(t, Options{})
	f.seedAccount(t, models.Account{UID: "u1", Email: "a@x.com", Provider: "google"}, "")

	out, _ := f.orch.Login(context.Background(), validation.LoginInput{Identifier: "a@x.com", Password: "anything"})
	if out != models.InvalidCredential() {
		t.Errorf("outcome = %v", out)
	}
}

func TestLogin_QueryErrorIsExternalError(t *testing.T) {
	f := newFixture(t, Options{})
	f.store.queryErr = errors.New("unavailable")

	out, _ := f.orch.Login(context.Background(), validation.LoginInput{Identifier: "a@x.com", Password: "x"})
	if out != models.ExternalError("unavailable") {
		t.Errorf("outcome = %v", out)
	}
	if f.logs.FilterMessage("account lookup failed").Len() != 1 {
		t.Error("expected lookup failure to be logged")
	}
}

func TestLogin_EmptyFields(t *testing.T) {
	f := newFixture(t, Options{})
	_, err := f.orch.Login(context.Background(), validation.LoginInput{Identifier: "a@x.com"})
	if !errors.Is(err, validation.ErrInvalidInput) {
		t.Fatalf("Login error = %v; want ErrInvalidInput", err)
	}
	if len(f.store.queries) != 0 || len(f.shell.messages) != 0 {
		t.Error("collaborators must not be called for empty fields")
	}
}

func TestSignIn_Cancelled(t *testing.T) {
	f := newFixture(t, Options{})
	f.flow.BeginFunc = func(ctx context.Context, p models.Provider) (string, error) {
		return "", models.ErrCancelled
	}

	out := f.orch.SignIn(context.Background(), models.Facebook)
	if out != models.Cancelled() {
		t.Errorf("outcome = %v; want cancelled", out)
	}
	if len(f.store.docs) != 0 || len(f.store.queries) != 0 {
		t.Error("cancelled sign-in must not touch the document store")
	}
	if len(f.shell.navigations) != 0 {
		t.Errorf("unexpected navigation %v", f.shell.navigations)
	}
	if msg := f.shell.only(t); msg.text != MsgSignInCancelled {
		t.Errorf("message = %+v", msg)
	}
}

func TestSignIn_FlowErrorIsExternalError(t *testing.T) {
	f := newFixture(t, Options{})
	f.flow.BeginFunc = func(ctx context.Context, p models.Provider) (string, error) {
		return "", errors.New("Something went wrong obtaining access token")
	}

	out := f.orch.SignIn(context.Background(), models.Facebook)
	if out != models.ExternalError("Something went wrong obtaining access token") {
		t.Errorf("outcome = %v", out)
	}
}

func TestSignIn_ExchangeErrorIsExternalError(t *testing.T) {
	f := newFixture(t, Options{})
	f.flow.BeginFunc = func(ctx context.Context, p models.Provider) (string, error) { return "tok", nil }
	f.identity.ExchangeFunc = func(ctx context.Context, p models.Provider, token string) (models.Session, error) {
		return models.Session{}, errors.New("INVALID_IDP_RESPONSE")
	}

	out := f.orch.SignIn(context.Background(), models.Google)
	if out != models.ExternalError("INVALID_IDP_RESPONSE") {
		t.Errorf("outcome = %v", out)
	}
	if len(f.store.docs) != 0 {
		t.Error("no record expected")
	}
}

func TestSignIn_CreatesRecordForNewAccount(t *testing.T) {
	f := newFixture(t, Options{})
	f.flow.BeginFunc = func(ctx context.Context, p models.Provider) (string, error) {
		if p != models.Google {
			t.Errorf("provider = %q", p)
		}
		return "provider-token", nil
	}
	f.identity.ExchangeFunc = func(ctx context.Context, p models.Provider, token string) (models.Session, error) {
		if token != "provider-token" {
			t.Errorf("token = %q", token)
		}
		return models.Session{UID: "g-1", Email: "carol@x.com", DisplayName: "Carol"}, nil
	}

	out := f.orch.SignIn(context.Background(), models.Google)
	if out != models.Success("Carol") {
		t.Fatalf("outcome = %v", out)
	}
	acc := f.store.account(t, "g-1")
	if acc.Email != "carol@x.com" || acc.DisplayName != "Carol" || acc.Provider != "google" || acc.PasswordHash != "" {
		t.Errorf("unexpected record %+v", acc)
	}
	if msg := f.shell.only(t); msg.text != "Welcome Carol!" {
		t.Errorf("message = %q", msg.text)
	}
	if len(f.shell.navigations) != 1 {
		t.Errorf("navigations = %v", f.shell.navigations)
	}
}

func TestSignIn_ExistingRecordPrefersUsername(t *testing.T) {
	f := newFixture(t, Options{})
	f.seedAccount(t, models.Account{UID: "u1", Username: "dave", Email: "dave@x.com"}, "P4ssword!")
	f.flow.BeginFunc = func(ctx context.Context, p models.Provider) (string, error) { return "t", nil }
	f.identity.ExchangeFunc = func(ctx context.Context, p models.Provider, token string) (models.Session, error) {
		return models.Session{UID: "fb-9", Email: "dave@x.com", DisplayName: "Dave D."}, nil
	}

	out := f.orch.SignIn(context.Background(), models.Facebook)
	if out != models.Success("dave") {
		t.Errorf("outcome = %v", out)
	}
	if f.store.replaces != 0 || f.store.appends != 0 {
		t.Error("existing record must not be rewritten")
	}
}

func TestSignIn_GenericDisplayName(t *testing.T) {
	f := newFixture(t, Options{})
	f.flow.BeginFunc = func(ctx context.Context, p models.Provider) (string, error) { return "t", nil }
	f.identity.ExchangeFunc = func(ctx context.Context, p models.Provider, token string) (models.Session, error) {
		return models.Session{UID: "fb-2"}, nil
	}

	out := f.orch.SignIn(context.Background(), models.Facebook)
	if out != models.Success(fallbackDisplayName) {
		t.Errorf("outcome = %v", out)
	}
	if len(f.store.queries) != 1 || f.store.queries[0] != "users.uid=fb-2" {
		t.Errorf("queries = %v; want lookup by uid", f.store.queries)
	}
}

func TestSignIn_UnsupportedProvider(t *testing.T) {
	f := newFixture(t, Options{})
	out := f.orch.SignIn(context.Background(), models.Provider("myspace"))
	if out.Kind != models.OutcomeExternalError {
		t.Errorf("outcome = %v", out)
	}
	f.shell.only(t)
}
