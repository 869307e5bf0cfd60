package federated

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atinyakov/doafavor/internal/models"
)

// ErrStateMismatch is returned when the callback carries a foreign state.
var ErrStateMismatch = errors.New("oauth state mismatch")

// WebFlow runs the popup-and-redirect flow: it serves a one-shot callback on
// a loopback port, opens the provider's consent page and waits for the
// redirect back.
type WebFlow struct {
	// AuthorizeURL returns the consent page of a provider.
	AuthorizeURL func(models.Provider) string
	// Open presents url to the user, e.g. by launching a browser.
	Open func(url string) error
	// Listen is the callback listen address; defaults to 127.0.0.1:0.
	Listen string
	Log    *zap.Logger

	newState func() string
}

type callback struct {
	token string
	err   error
}

// Begin implements Flow.
func (f *WebFlow) Begin(ctx context.Context, provider models.Provider) (string, error) {
	addr := f.Listen
	if addr == "" {
		addr = "127.0.0.1:0"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("listen for callback: %w", err)
	}

	state := uuid.NewString()
	if f.newState != nil {
		state = f.newState()
	}
	results := make(chan callback, 1)

	r := chi.NewRouter()
	r.Get("/callback", func(w http.ResponseWriter, r *http.Request) {
		res := parseCallback(r.URL.Query(), state)
		select {
		case results <- res:
		default:
		}
		if res.err != nil && !errors.Is(res.err, ErrCancelled) {
			http.Error(w, "Sign-in failed. You can close this window.", http.StatusBadRequest)
			return
		}
		_, _ = fmt.Fprintln(w, "You can close this window and return to the terminal.")
	})
	srv := &http.Server{Handler: r, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			f.logger().Warn("callback server stopped", zap.Error(err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	q := url.Values{
		"redirect_uri": {"http://" + ln.Addr().String() + "/callback"},
		"state":        {state},
		"scope":        {strings.Join(provider.Scopes(), " ")},
	}
	if err := f.Open(f.AuthorizeURL(provider) + "?" + q.Encode()); err != nil {
		return "", fmt.Errorf("open consent page: %w", err)
	}

	select {
	case res := <-results:
		return res.token, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (f *WebFlow) logger() *zap.Logger {
	if f.Log == nil {
		return zap.NewNop()
	}
	return f.Log
}

func parseCallback(q url.Values, state string) callback {
	if q.Get("state") != state {
		return callback{err: ErrStateMismatch}
	}
	switch e := q.Get("error"); e {
	case "":
	case "access_denied":
		return callback{err: ErrCancelled}
	default:
		return callback{err: fmt.Errorf("provider returned %s", e)}
	}
	tok := q.Get("token")
	if tok == "" {
		return callback{err: errors.New("provider returned no token")}
	}
	return callback{token: tok}
}
