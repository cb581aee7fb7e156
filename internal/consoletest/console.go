// Package consoletest serves a small imitation of an ASUS router admin console
// for integration tests.
package consoletest

import (
	"fmt"
	"html/template"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"os/exec"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/mux"
)

const sessionCookie = "asus_token"

// Options shapes the console's behaviour.
type Options struct {
	Username string
	Password string
	// Enabled is the initial URL filter state.
	Enabled bool
	// FilterPath is where the URL filter form lives. Defaults to the ASUS page.
	FilterPath string
	// IgnoreApply accepts the save and reloads but keeps the old state.
	IgnoreApply bool
	// HangApply never answers the save request.
	HangApply bool
	// NoFilterControl serves the filter page without its radio buttons.
	NoFilterControl bool
}

// Console is a running fake console.
type Console struct {
	*httptest.Server

	opts Options

	mu      sync.Mutex
	enabled bool
	logins  int
	failed  int
	applies int
	hang    chan struct{}
}

// New starts a console and stops it when the test ends.
func New(t testing.TB, opts Options) *Console {
	t.Helper()
	if opts.Username == "" {
		opts.Username = "admin"
	}
	if opts.Password == "" {
		opts.Password = "hunter2"
	}
	if opts.FilterPath == "" {
		opts.FilterPath = "/Advanced_URLFilter_Content.asp"
	}
	c := &Console{opts: opts, enabled: opts.Enabled, hang: make(chan struct{})}

	r := mux.NewRouter()
	r.HandleFunc("/", c.redirectToLogin).Methods(http.MethodGet)
	r.HandleFunc("/Main_Login.asp", c.loginPage).Methods(http.MethodGet)
	r.HandleFunc("/login.cgi", c.login).Methods(http.MethodPost)
	r.Handle("/index.asp", c.authenticated(c.indexPage)).Methods(http.MethodGet)
	r.Handle(opts.FilterPath, c.authenticated(c.filterPage)).Methods(http.MethodGet)
	r.Handle("/start_apply.htm", c.authenticated(c.apply)).Methods(http.MethodPost)

	c.Server = httptest.NewServer(r)
	t.Cleanup(func() {
		close(c.hang)
		c.Server.Close()
	})
	return c
}

// Host returns host:port for use as the router address.
func (c *Console) Host() string {
	u, _ := url.Parse(c.URL)
	return u.Host
}

// Enabled reports the console's current filter state.
func (c *Console) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

// Stats returns successful logins, rejected logins and save requests seen.
func (c *Console) Stats() (logins, failed, applies int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.logins, c.failed, c.applies
}

func (c *Console) authenticated(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessionCookie)
		if err != nil || cookie.Value != "ok" {
			c.redirectToLogin(w, r)
			return
		}
		next(w, r)
	})
}

func (c *Console) redirectToLogin(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/Main_Login.asp", http.StatusFound)
}

var pages = template.Must(template.New("login").Parse(`<!DOCTYPE html>
<html><head><title>ASUS Login</title></head><body>
<form method="post" action="/login.cgi" name="form">
  {{if .Error}}<div class="error_hint">Invalid username or password</div>{{end}}
  <input type="text" name="login_username" autocomplete="off">
  <input type="password" name="login_passwd" autocomplete="off">
  <input type="submit" class="button" value="Sign In">
</form>
</body></html>`))

func init() {
	template.Must(pages.New("index").Parse(`<!DOCTYPE html>
<html><head><title>ASUS Wireless Router - Network Map</title></head><body>
<div id="TopBanner">RT-AC68U</div>
<div id="mainMenu"><a href="/Advanced_URLFilter_Content.asp">URL Filter</a></div>
</body></html>`))

	template.Must(pages.New("filter").Parse(`<!DOCTYPE html>
<html><head><title>ASUS Wireless Router - URL Filter</title></head><body>
<div id="TopBanner">RT-AC68U</div>
<form method="post" action="/start_apply.htm" name="form">
  <input type="hidden" name="current_page" value="{{.Path}}">
  {{if .Control}}
  <input type="radio" name="url_enable_x" value="1"{{if .Enabled}} checked{{end}}> Enable
  <input type="radio" name="url_enable_x" value="0"{{if not .Enabled}} checked{{end}}> Disable
  {{else}}
  <input type="hidden" name="url_enable_x" value="{{if .Enabled}}1{{else}}0{{end}}">
  {{end}}
  <input type="button" class="button_gen" value="Apply" onclick="document.form.submit();">
</form>
</body></html>`))
}

func render(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pages.ExecuteTemplate(w, name, data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (c *Console) loginPage(w http.ResponseWriter, r *http.Request) {
	render(w, "login", struct{ Error bool }{r.URL.Query().Get("error") != ""})
}

func (c *Console) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	user := strings.TrimSpace(r.PostFormValue("login_username"))
	pass := r.PostFormValue("login_passwd")

	c.mu.Lock()
	ok := user == c.opts.Username && pass == c.opts.Password
	if ok {
		c.logins++
	} else {
		c.failed++
	}
	c.mu.Unlock()

	if !ok {
		http.Redirect(w, r, "/Main_Login.asp?error=1", http.StatusFound)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "ok", Path: "/"})
	http.Redirect(w, r, "/index.asp", http.StatusFound)
}

func (c *Console) indexPage(w http.ResponseWriter, _ *http.Request) {
	render(w, "index", nil)
}

func (c *Console) filterPage(w http.ResponseWriter, r *http.Request) {
	render(w, "filter", struct {
		Path    string
		Enabled bool
		Control bool
	}{r.URL.Path, c.Enabled(), !c.opts.NoFilterControl})
}

func (c *Console) apply(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	c.mu.Lock()
	c.applies++
	if !c.opts.IgnoreApply {
		c.enabled = r.PostFormValue("url_enable_x") == "1"
	}
	c.mu.Unlock()

	if c.opts.HangApply {
		select {
		case <-r.Context().Done():
		case <-c.hang:
		}
		return
	}
	page := r.PostFormValue("current_page")
	if page == "" {
		page = c.opts.FilterPath
	}
	http.Redirect(w, r, page, http.StatusSeeOther)
}

// String describes the console for test failure messages.
func (c *Console) String() string {
	logins, failed, applies := c.Stats()
	return fmt.Sprintf("console(enabled=%t logins=%d failed=%d applies=%d)", c.Enabled(), logins, failed, applies)
}

var chromeCandidates = []string{
	"headless-shell",
	"chromium",
	"chromium-browser",
	"google-chrome",
	"google-chrome-stable",
}

// RequireChrome returns a browser executable or skips the test. CHROME_PATH
// overrides the search.
func RequireChrome(t testing.TB) string {
	t.Helper()
	if testing.Short() {
		t.Skip("browser integration test skipped in -short mode")
	}
	if p := os.Getenv("CHROME_PATH"); p != "" {
		return p
	}
	for _, name := range chromeCandidates {
		if p, err := exec.LookPath(name); err == nil {
			return p
		}
	}
	t.Skip("no Chrome or Chromium binary found; set CHROME_PATH to run browser tests")
	return ""
}
