package services

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestSolver(baseURL string) *TwoCaptchaSolver {
	solver := NewTwoCaptchaSolver("test-key")
	solver.BaseURL = baseURL
	solver.PollInterval = time.Millisecond
	solver.MaxPolls = 3
	return solver
}

func TestTwoCaptchaSolver_Solve(t *testing.T) {
	var polls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/in.php":
			assert.NoError(t, r.ParseForm())
			assert.Equal(t, "test-key", r.Form.Get("key"))
			assert.Equal(t, "userrecaptcha", r.Form.Get("method"))
			assert.Equal(t, "site-key-1", r.Form.Get("googlekey"))
			assert.Equal(t, "http://example.com/contact", r.Form.Get("pageurl"))
			fmt.Fprint(w, `{"status":1,"request":"challenge-9"}`)
		case "/res.php":
			assert.Equal(t, "challenge-9", r.URL.Query().Get("id"))
			if atomic.AddInt32(&polls, 1) < 2 {
				fmt.Fprint(w, `{"status":0,"request":"CAPCHA_NOT_READY"}`)
				return
			}
			fmt.Fprint(w, `{"status":1,"request":"solved-token"}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	token, err := newTestSolver(srv.URL).Solve("site-key-1", "http://example.com/contact")
	assert.NoError(t, err)
	assert.Equal(t, "solved-token", token)
	assert.Equal(t, int32(2), atomic.LoadInt32(&polls))
}

func TestTwoCaptchaSolver_SubmitRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":0,"request":"ERROR_WRONG_USER_KEY"}`)
	}))
	defer srv.Close()

	_, err := newTestSolver(srv.URL).Solve("site-key", "http://example.com")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "ERROR_WRONG_USER_KEY")
}

func TestTwoCaptchaSolver_GivesUpAfterMaxPolls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/in.php" {
			fmt.Fprint(w, `{"status":1,"request":"challenge-1"}`)
			return
		}
		fmt.Fprint(w, `{"status":0,"request":"CAPCHA_NOT_READY"}`)
	}))
	defer srv.Close()

	_, err := newTestSolver(srv.URL).Solve("site-key", "http://example.com")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not solved after 3 polls")
}
