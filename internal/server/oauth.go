package server

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/spotstats/internal/auth"
	"github.com/desertthunder/spotstats/internal/shared"
)

// Exchanger trades an authorization code for a stored token.
type Exchanger interface {
	Exchange(ctx context.Context, code string) (*auth.TokenFile, error)
}

// OAuthResult contains the result of an OAuth authorization flow.
type OAuthResult struct {
	Token *auth.TokenFile
	err   error
}

func (o *OAuthResult) Error() error {
	return o.err
}

// OAuthHandler handles the authorization code callback.
//
// Only the first request is processed. Later requests get 400.
type OAuthHandler struct {
	exchanger  Exchanger
	state      string
	path       string
	resultChan chan OAuthResult
	once       sync.Once
	mu         sync.Mutex
	hit        bool
}

// NewOAuthHandler creates a handler for path that expects state and exchanges codes with ex.
func NewOAuthHandler(ex Exchanger, state, path string) *OAuthHandler {
	if path == "" {
		path = "/callback"
	}
	return &OAuthHandler{
		exchanger:  ex,
		state:      state,
		path:       path,
		resultChan: make(chan OAuthResult, 1),
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *OAuthHandler) Routes() []string {
	return []string{h.path}
}

var callbackPage = template.Must(template.New("callback").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>{{.Title}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #121212; }
        .container { text-align: center; background: #181818; padding: 2rem; border-radius: 8px; }
        h1 { color: {{.Color}}; margin: 0 0 1rem 0; }
        p { color: #b3b3b3; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>{{.Title}}</h1>
        <p>{{.Message}}</p>
    </div>
</body>
</html>
`))

type pageData struct {
	Title   string
	Message string
	Color   template.CSS
}

func writePage(w http.ResponseWriter, status int, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = callbackPage.Execute(w, data)
}

func failPage(w http.ResponseWriter, status int, msg string) {
	writePage(w, status, pageData{Title: "Authorization failed", Message: msg, Color: "#e22134"})
}

// ServeHTTP validates state, exchanges the code and publishes the result.
func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.hit {
		h.mu.Unlock()
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}
	h.hit = true
	h.mu.Unlock()

	q := r.URL.Query()
	if q.Get("state") != h.state {
		h.Send(OAuthResult{err: shared.ErrInvalidState})
		failPage(w, http.StatusBadRequest, "Invalid state parameter.")
		return
	}

	code := q.Get("code")
	if code == "" {
		err := fmt.Errorf("%w: %s - %s", shared.ErrAuthFailed, q.Get("error"), q.Get("error_description"))
		h.Send(OAuthResult{err: err})
		failPage(w, http.StatusBadRequest, "Spotify did not return an authorization code.")
		return
	}

	token, err := h.exchanger.Exchange(r.Context(), code)
	if err != nil {
		h.Send(OAuthResult{err: fmt.Errorf("%w: token exchange: %w", shared.ErrAuthFailed, err)})
		failPage(w, http.StatusInternalServerError, "Token exchange failed.")
		return
	}

	h.Send(OAuthResult{Token: token})
	writePage(w, http.StatusOK, pageData{
		Title:   "Authorization successful",
		Message: "You can close this window and return to the terminal.",
		Color:   "#1DB954",
	})
}

// Send sends the OAuth result through the channel (only once).
func (h *OAuthHandler) Send(result OAuthResult) {
	h.once.Do(func() {
		h.resultChan <- result
		close(h.resultChan)
	})
}

// Result returns the result channel for receiving OAuth flow completion.
//
// Channel will receive exactly one result and then be closed.
func (h *OAuthHandler) Result() <-chan OAuthResult {
	return h.resultChan
}

// AwaitCallback serves h on addr until a callback arrives, timeout elapses or ctx is done.
//
// The listener is shut down and its goroutine joined before AwaitCallback returns.
// A timeout yields [shared.ErrTimeout].
func AwaitCallback(ctx context.Context, addr string, h *OAuthHandler, timeout time.Duration, logger *log.Logger) (*auth.TokenFile, error) {
	router := NewRouter(logger)
	Mount(router, h)
	srv := New(addr, router, logger)

	ln, err := srv.Listen()
	if err != nil {
		return nil, err
	}
	return awaitOn(ctx, srv, ln, h, timeout)
}

// awaitOn is AwaitCallback with a listener the caller already bound.
func awaitOn(ctx context.Context, srv *Server, ln net.Listener, h *OAuthHandler, timeout time.Duration) (*auth.TokenFile, error) {
	serveCtx, stop := context.WithCancel(ctx)
	defer stop()

	done := make(chan error, 1)
	go func() { done <- srv.Serve(serveCtx, ln) }()

	var timer <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}

	var (
		token *auth.TokenFile
		err   error
	)
	select {
	case res := <-h.Result():
		token, err = res.Token, res.Error()
	case <-timer:
		err = fmt.Errorf("%w: no callback within %s", shared.ErrTimeout, timeout)
	case <-ctx.Done():
		err = ctx.Err()
	case serveErr := <-done:
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if serveErr == nil {
			serveErr = errors.New("callback server stopped unexpectedly")
		}
		return nil, serveErr
	}

	stop()
	if serveErr := <-done; serveErr != nil {
		err = errors.Join(err, serveErr)
	}
	if err != nil {
		return nil, err
	}
	return token, nil
}
