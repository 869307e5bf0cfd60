package http

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"net"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/atinyakov/doafavor/internal/models"
	"github.com/atinyakov/doafavor/internal/service"
)

// Error messages returned by the identity endpoints.
const (
	CodeEmailExists        = "EMAIL_EXISTS"
	CodeInvalidEmail       = "INVALID_EMAIL"
	CodeWeakPassword       = "WEAK_PASSWORD : Password should be at least 6 characters"
	CodeInvalidIDPResponse = "INVALID_IDP_RESPONSE"
	CodeInvalidProvider    = "INVALID_PROVIDER_ID"
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodeInvalidRedirect    = "INVALID_REDIRECT_URI"
	CodePermissionDenied   = "PERMISSION_DENIED"
	CodeInternal           = "INTERNAL_ERROR"
)

// IdentityService defines the identity operations required by the handlers.
type IdentityService interface {
	SignUp(ctx context.Context, email, password string) (models.Session, error)
	SignInWithProvider(ctx context.Context, provider models.Provider, raw string) (models.Session, error)
	IssueProviderToken(provider models.Provider, email, name string) (string, error)
}

// IdentityHandler serves account and provider endpoints.
type IdentityHandler struct {
	Service  IdentityService
	Validate *validator.Validate
	Log      *zap.Logger
}

// NewIdentityHandler builds an IdentityHandler with a fresh validator.
func NewIdentityHandler(svc IdentityService, log *zap.Logger) *IdentityHandler {
	return &IdentityHandler{Service: svc, Validate: validator.New(), Log: log}
}

// SignUpRequest is the body of POST /v1/accounts/signup.
type SignUpRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// FederatedRequest is the body of POST /v1/accounts/federated.
type FederatedRequest struct {
	Provider string `json:"provider" validate:"required,oneof=google facebook"`
	Token    string `json:"token" validate:"required"`
}

// ProviderTokenRequest is the body of POST /v1/providers/{provider}/token.
type ProviderTokenRequest struct {
	Email string `json:"email" validate:"required,email"`
	Name  string `json:"name" validate:"max=128"`
}

// SignUp handles POST /v1/accounts/signup.
func (h *IdentityHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req SignUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest)
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, signUpViolation(err))
		return
	}

	sess, err := h.Service.SignUp(r.Context(), req.Email, req.Password)
	if errors.Is(err, models.ErrEmailExists) {
		writeError(w, http.StatusBadRequest, CodeEmailExists)
		return
	}
	if err != nil {
		h.Log.Error("sign-up failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, CodeInternal)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// Federated handles POST /v1/accounts/federated.
func (h *IdentityHandler) Federated(w http.ResponseWriter, r *http.Request) {
	var req FederatedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest)
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidIDPResponse)
		return
	}

	sess, err := h.Service.SignInWithProvider(r.Context(), models.Provider(req.Provider), req.Token)
	if errors.Is(err, service.ErrInvalidIDPResponse) {
		writeError(w, http.StatusBadRequest, CodeInvalidIDPResponse)
		return
	}
	if err != nil {
		h.Log.Error("federated sign-in failed", zap.String("provider", req.Provider), zap.Error(err))
		writeError(w, http.StatusInternalServerError, CodeInternal)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// ProviderToken handles POST /v1/providers/{provider}/token. It stands in for
// the token a native provider SDK hands back after the user grants access.
func (h *IdentityHandler) ProviderToken(w http.ResponseWriter, r *http.Request) {
	provider, ok := providerParam(r)
	if !ok {
		writeError(w, http.StatusNotFound, CodeInvalidProvider)
		return
	}
	var req ProviderTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest)
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidEmail)
		return
	}
	h.issueToken(w, provider, req.Email, req.Name, func(tok string) {
		writeJSON(w, http.StatusOK, map[string]string{"accessToken": tok})
	})
}

var consentPage = template.Must(template.New("consent").Parse(`<!DOCTYPE html>
<html>
<head><title>Sign in with {{.Provider}}</title></head>
<body>
<h1>Sign in with {{.Provider}}</h1>
<p>doafavor is requesting access to: {{range $i, $s := .Scopes}}{{if $i}}, {{end}}{{$s}}{{end}}</p>
{{if .Problem}}<p role="alert">{{.Problem}}</p>{{end}}
<form method="post">
<input type="hidden" name="redirect_uri" value="{{.RedirectURI}}">
<input type="hidden" name="state" value="{{.State}}">
<label>Email <input type="email" name="email" value="{{.Email}}"></label>
<label>Name <input type="text" name="name" value="{{.Name}}"></label>
<button type="submit" name="action" value="allow">Allow</button>
<button type="submit" name="action" value="deny">Cancel</button>
</form>
</body>
</html>
`))

type consentView struct {
	Provider    models.Provider
	Scopes      []string
	RedirectURI string
	State       string
	Email       string
	Name        string
	Problem     string
}

// Authorize handles GET /v1/providers/{provider}/authorize by rendering the
// consent page the popup flow shows.
func (h *IdentityHandler) Authorize(w http.ResponseWriter, r *http.Request) {
	provider, ok := providerParam(r)
	if !ok {
		http.Error(w, "unknown provider", http.StatusNotFound)
		return
	}
	q := r.URL.Query()
	redirect := q.Get("redirect_uri")
	if !loopbackRedirect(redirect) {
		http.Error(w, CodeInvalidRedirect, http.StatusBadRequest)
		return
	}
	h.renderConsent(w, http.StatusOK, consentView{
		Provider:    provider,
		Scopes:      provider.Scopes(),
		RedirectURI: redirect,
		State:       q.Get("state"),
	})
}

// Consent handles the consent form post and redirects back to the caller with
// either a provider token or error=access_denied.
func (h *IdentityHandler) Consent(w http.ResponseWriter, r *http.Request) {
	provider, ok := providerParam(r)
	if !ok {
		http.Error(w, "unknown provider", http.StatusNotFound)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, CodeInvalidRequest, http.StatusBadRequest)
		return
	}
	redirect := r.PostForm.Get("redirect_uri")
	if !loopbackRedirect(redirect) {
		http.Error(w, CodeInvalidRedirect, http.StatusBadRequest)
		return
	}
	state := r.PostForm.Get("state")

	if r.PostForm.Get("action") != "allow" {
		http.Redirect(w, r, withQuery(redirect, url.Values{"error": {"access_denied"}, "state": {state}}), http.StatusFound)
		return
	}

	email, name := r.PostForm.Get("email"), r.PostForm.Get("name")
	if err := h.Validate.Var(email, "required,email"); err != nil {
		h.renderConsent(w, http.StatusBadRequest, consentView{
			Provider:    provider,
			Scopes:      provider.Scopes(),
			RedirectURI: redirect,
			State:       state,
			Email:       email,
			Name:        name,
			Problem:     "Please enter a valid email address",
		})
		return
	}
	h.issueToken(w, provider, email, name, func(tok string) {
		http.Redirect(w, r, withQuery(redirect, url.Values{"token": {tok}, "state": {state}}), http.StatusFound)
	})
}

func (h *IdentityHandler) issueToken(w http.ResponseWriter, provider models.Provider, email, name string, done func(string)) {
	tok, err := h.Service.IssueProviderToken(provider, email, name)
	if err != nil {
		h.Log.Error("issue provider token", zap.String("provider", string(provider)), zap.Error(err))
		writeError(w, http.StatusInternalServerError, CodeInternal)
		return
	}
	done(tok)
}

func (h *IdentityHandler) renderConsent(w http.ResponseWriter, status int, v consentView) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := consentPage.Execute(w, v); err != nil {
		h.Log.Error("render consent page", zap.Error(err))
	}
}

func providerParam(r *http.Request) (models.Provider, bool) {
	p := models.Provider(chi.URLParam(r, "provider"))
	return p, p.Valid()
}

// signUpViolation maps the first failing field to its wire message.
func signUpViolation(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 && verrs[0].Field() == "Password" {
		return CodeWeakPassword
	}
	return CodeInvalidEmail
}

// loopbackRedirect accepts only http callbacks on the local machine.
func loopbackRedirect(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "http" {
		return false
	}
	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func withQuery(raw string, extra url.Values) string {
	u, _ := url.Parse(raw)
	q := u.Query()
	for k, v := range extra {
		q[k] = v
	}
	u.RawQuery = q.Encode()
	return u.String()
}
