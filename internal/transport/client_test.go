package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"ledger/internal/notify"
)

type recordingEvents struct {
	mu      sync.Mutex
	expired int
	notices []notify.Notice
}

func (r *recordingEvents) OnAuthExpired(context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.expired++
}

func (r *recordingEvents) OnNotify(_ context.Context, n notify.Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

func staticToken(s string) TokenSource {
	return TokenFunc(func() *oauth2.Token {
		if s == "" {
			return nil
		}
		return &oauth2.Token{AccessToken: s, TokenType: "Bearer"}
	})
}

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...Option) (*Client, *recordingEvents) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	ev := &recordingEvents{}
	opts = append([]Option{WithEvents(ev)}, opts...)
	c, err := New(srv.URL+"/api", opts...)
	require.NoError(t, err)
	return c, ev
}

func TestNew_RejectsRelativeBaseURL(t *testing.T) {
	_, err := New("/api")
	require.Error(t, err)
}

func TestClient_URL(t *testing.T) {
	c, err := New("http://example.com/api/")
	require.NoError(t, err)

	assert.Equal(t, "http://example.com/api/income/records", c.URL("/income/records", nil))
	assert.Equal(t, "http://example.com/api/income/records", c.URL("income/records", nil))

	q := url.Values{"year": {"2024"}, "month": {"3"}}
	assert.Equal(t, "http://example.com/api/income/stats/monthly-breakdown?month=3&year=2024",
		c.URL("/income/stats/monthly-breakdown", q))
}

func TestClient_BearerHeader(t *testing.T) {
	tests := []struct {
		name   string
		token  string
		header string
	}{
		{name: "token present", token: "abc.def.ghi", header: "Bearer abc.def.ghi"},
		{name: "no token", token: "", header: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				got = r.Header.Get("Authorization")
				w.Header().Set("Content-Type", "application/json")
				_, _ = io.WriteString(w, `{"status":"ok"}`)
			}, WithTokenSource(staticToken(tt.token)))

			var out struct{ Status string }
			_, err := c.Get(context.Background(), "/health", &out)
			require.NoError(t, err)
			assert.Equal(t, tt.header, got)
			assert.Equal(t, "ok", out.Status)
		})
	}
}

func TestClient_TokenReadPerRequest(t *testing.T) {
	var seen []string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	})

	current := ""
	c.tokens = TokenFunc(func() *oauth2.Token {
		if current == "" {
			return nil
		}
		return &oauth2.Token{AccessToken: current}
	})

	ctx := context.Background()
	_, err := c.Get(ctx, "/a", nil)
	require.NoError(t, err)
	current = "t1"
	_, err = c.Get(ctx, "/a", nil)
	require.NoError(t, err)
	current = ""
	_, err = c.Get(ctx, "/a", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"", "Bearer t1", ""}, seen)
}

func TestClient_RequestID(t *testing.T) {
	var got string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get(HeaderRequestID)
		w.WriteHeader(http.StatusNoContent)
	})

	resp, err := c.Get(context.Background(), "/x", nil)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got, "req_"))
	assert.Equal(t, got, resp.RequestID)
}

func TestClient_Unauthorized(t *testing.T) {
	c, ev := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"detail":"Could not validate credentials"}`)
	}, WithTokenSource(staticToken("stale")))

	_, err := c.Get(context.Background(), "/auth/me", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, http.StatusUnauthorized, StatusCode(err))

	assert.Equal(t, 1, ev.expired)
	require.Len(t, ev.notices, 1)
	assert.Equal(t, notify.KindSessionExpired, ev.notices[0].Kind)
	assert.Equal(t, notify.MsgSessionExpired, ev.notices[0].Message)
	assert.Equal(t, notify.LevelError, ev.notices[0].Level)
}

func TestClient_Forbidden(t *testing.T) {
	c, ev := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `{"detail":"Admin only"}`)
	})

	_, err := c.Post(context.Background(), "/backup/trigger", nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.NotErrorIs(t, err, ErrUnauthorized)

	assert.Zero(t, ev.expired)
	require.Len(t, ev.notices, 1)
	assert.Equal(t, notify.KindPermissionDenied, ev.notices[0].Kind)
	assert.Equal(t, notify.MsgPermissionDenied, ev.notices[0].Message)
}

func TestClient_RequestFailedDetail(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{name: "string detail", status: 400, body: `{"detail":"Income source not found"}`, message: "Income source not found"},
		{name: "structured detail", status: 422, body: `{"detail": [ {"loc": ["body","amount"], "msg": "must be > 0"} ]}`, message: `[{"loc":["body","amount"],"msg":"must be > 0"}]`},
		{name: "object detail", status: 409, body: `{"detail":{"code":"dup"}}`, message: `{"code":"dup"}`},
		{name: "null detail", status: 400, body: `{"detail":null}`, message: notify.MsgRequestFailed},
		{name: "empty detail", status: 400, body: `{"detail":""}`, message: notify.MsgRequestFailed},
		{name: "missing detail", status: 500, body: `{"error":"boom"}`, message: notify.MsgRequestFailed},
		{name: "non json body", status: 502, body: `<html>bad gateway</html>`, message: notify.MsgRequestFailed},
		{name: "empty body", status: 404, body: ``, message: notify.MsgRequestFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, ev := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})

			_, err := c.Get(context.Background(), "/income/records", nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrRequest)

			var e *Error
			require.True(t, errors.As(err, &e))
			assert.Equal(t, tt.status, e.StatusCode)
			assert.Equal(t, tt.message, e.Message)

			assert.Zero(t, ev.expired)
			require.Len(t, ev.notices, 1)
			assert.Equal(t, notify.KindRequestFailed, ev.notices[0].Kind)
			assert.Equal(t, tt.message, ev.notices[0].Message)
			assert.Equal(t, tt.status, ev.notices[0].Status)
		})
	}
}

func TestClient_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	base := srv.URL
	srv.Close()

	ev := &recordingEvents{}
	c, err := New(base, WithEvents(ev))
	require.NoError(t, err)

	_, err = c.Get(context.Background(), "/health", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNetwork)
	assert.Zero(t, StatusCode(err))

	assert.Zero(t, ev.expired)
	require.Len(t, ev.notices, 1)
	assert.Equal(t, notify.KindNetwork, ev.notices[0].Kind)
	assert.Equal(t, "Request failed", ev.notices[0].Message)
}

func TestClient_CanceledIsNotNotified(t *testing.T) {
	started := make(chan struct{})
	c, ev := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-r.Context().Done()
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	_, err := c.Get(ctx, "/slow", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCanceled)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrNetwork)
	assert.Empty(t, ev.notices)
	assert.Zero(t, ev.expired)
}

func TestClient_DeadlineIsNotified(t *testing.T) {
	c, ev := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Get(ctx, "/slow", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNetwork)
	require.Len(t, ev.notices, 1)
	assert.Equal(t, notify.KindNetwork, ev.notices[0].Kind)
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	c, ev := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, WithTimeout(50*time.Millisecond))
	defer close(release)

	_, err := c.Get(context.Background(), "/slow", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNetwork)
	require.Len(t, ev.notices, 1)
	assert.Equal(t, "Request timed out", ev.notices[0].Message)
}

func TestClient_WithHTTPClientIsCopied(t *testing.T) {
	hc := &http.Client{Timeout: time.Hour}
	c, err := New("http://example.com", WithHTTPClient(hc), WithTimeout(3*time.Second))
	require.NoError(t, err)

	assert.Equal(t, time.Hour, hc.Timeout)
	assert.Equal(t, 3*time.Second, c.httpClient.Timeout)
}

func TestClient_Bodies(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPut, r.Method)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			body, _ := io.ReadAll(r.Body)
			assert.JSONEq(t, `{"name":"Salary"}`, string(body))
			w.WriteHeader(http.StatusOK)
			_, _ = io.WriteString(w, `{"id":7}`)
		})

		var out struct{ ID int }
		_, err := c.Put(context.Background(), "/income/sources/7", JSON(map[string]string{"name": "Salary"}), &out)
		require.NoError(t, err)
		assert.Equal(t, 7, out.ID)
	})

	t.Run("form", func(t *testing.T) {
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "alice", r.PostForm.Get("username"))
			assert.Equal(t, "s3cret&x", r.PostForm.Get("password"))
			w.WriteHeader(http.StatusNoContent)
		})

		form := url.Values{"username": {"alice"}, "password": {"s3cret&x"}}
		_, err := c.Post(context.Background(), "/auth/login", Form(form), nil)
		require.NoError(t, err)
	})

	t.Run("multipart", func(t *testing.T) {
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseMultipartForm(1<<20))
			f, hdr, err := r.FormFile("file")
			require.NoError(t, err)
			defer f.Close()
			data, _ := io.ReadAll(f)
			assert.Equal(t, "income.csv", hdr.Filename)
			assert.Equal(t, "record_date,source_name,amount,note\n", string(data))
			w.WriteHeader(http.StatusNoContent)
		})

		part := FilePart{Field: "file", Filename: "income.csv", ContentType: "text/csv",
			Reader: strings.NewReader("record_date,source_name,amount,note\n")}
		_, err := c.Post(context.Background(), "/income/records/import", Multipart(nil, part), nil)
		require.NoError(t, err)
	})

	t.Run("query", func(t *testing.T) {
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, []string{"2023", "2024"}, r.URL.Query()["years"])
			assert.Equal(t, "x", r.URL.Query().Get("extra"))
			w.WriteHeader(http.StatusNoContent)
		})

		_, err := c.Get(context.Background(), "/income/stats/annual-totals", nil,
			WithQuery(url.Values{"years": {"2023", "2024"}}), WithParam("extra", "x"))
		require.NoError(t, err)
	})
}

func TestClient_WriterOutput(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		_, _ = io.WriteString(w, "a,b\n1,2\n")
	})

	var buf bytes.Buffer
	_, err := c.Get(context.Background(), "/income/records/export", &buf)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", buf.String())
}

func TestClient_EmptySuccessBody(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	var out map[string]any
	_, err := c.Delete(context.Background(), "/income/records/3", &out)
	require.NoError(t, err)
	assert.Nil(t, out)
}
