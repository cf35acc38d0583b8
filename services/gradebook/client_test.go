package gradebooksvc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-grading/core"
	"github.com/trezcool/masomo-grading/core/scheme"
)

// fakeGradebook keeps saved schemes in memory and counts the fetches it serves.
type fakeGradebook struct {
	mu      sync.Mutex
	schemes map[string]scheme.Persistable
	raw     map[string]string
	fetches int
	headers http.Header
}

func newFakeGradebook(t *testing.T) (*fakeGradebook, *Client) {
	fake := &fakeGradebook{schemes: make(map[string]scheme.Persistable), raw: make(map[string]string)}

	e := echo.New()
	e.PUT("/classes/:class/grading-scheme", func(c echo.Context) error {
		var p scheme.Persistable
		if err := c.Bind(&p); err != nil {
			return err
		}
		fake.mu.Lock()
		defer fake.mu.Unlock()
		fake.headers = c.Request().Header.Clone()
		if c.Param("class") == "locked" {
			return c.JSON(http.StatusConflict, map[string]string{"error": "locked"})
		}
		fake.schemes[c.Param("class")] = p
		return c.NoContent(http.StatusNoContent)
	})
	e.GET("/classes/:class/grading-scheme", func(c echo.Context) error {
		fake.mu.Lock()
		defer fake.mu.Unlock()
		fake.fetches++
		fake.headers = c.Request().Header.Clone()
		if raw, ok := fake.raw[c.Param("class")]; ok {
			return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, []byte(raw))
		}
		p, ok := fake.schemes[c.Param("class")]
		if !ok {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "not found"})
		}
		return c.JSON(http.StatusOK, p)
	})

	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)

	client := NewClient(core.GradebookConfig{BaseURL: srv.URL + "/", Timeout: time.Second, CacheTTL: time.Minute})
	return fake, client
}

func TestClient_SaveScheme(t *testing.T) {
	fake, client := newFakeGradebook(t)
	ctx := context.Background()
	sess := core.Session{AuthToken: "token", RequestID: "req-1"}
	p := scheme.Persistable{Schemes: []scheme.WeightEntry{{Name: "Quiz", Weight: 40}, {Name: "Exam", Weight: 60}}}

	require.NoError(t, client.SaveScheme(ctx, sess, "6A", p))
	assert.Equal(t, p, fake.schemes["6A"])
	assert.Equal(t, "Bearer token", fake.headers.Get("Authorization"))
	assert.Equal(t, "req-1", fake.headers.Get(headerRequestID))

	err := client.SaveScheme(ctx, sess, "locked", p)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusConflict, statusErr.StatusCode)
}

func TestClient_FetchScheme(t *testing.T) {
	fake, client := newFakeGradebook(t)
	ctx := context.Background()
	sess := core.Session{RequestID: "req-2"}

	t.Run("nothing saved", func(t *testing.T) {
		data, err := client.FetchScheme(ctx, sess, "6A")
		require.NoError(t, err)
		assert.Equal(t, "", data)
		assert.Empty(t, fake.headers.Get("Authorization"))
	})

	t.Run("cached until saved", func(t *testing.T) {
		fetches := fake.fetches
		_, err := client.FetchScheme(ctx, sess, "6A")
		require.NoError(t, err)
		assert.Equal(t, fetches, fake.fetches)

		p := scheme.Persistable{Schemes: []scheme.WeightEntry{{Name: "Quiz", Weight: 100}}}
		require.NoError(t, client.SaveScheme(ctx, sess, "6A", p))

		data, err := client.FetchScheme(ctx, sess, "6A")
		require.NoError(t, err)
		assert.Equal(t, fetches+1, fake.fetches)
		assert.Equal(t, p.Schemes, scheme.Initialize(data, nil).Entries())
	})

	t.Run("cached per token", func(t *testing.T) {
		alice := core.Session{AuthToken: "alice"}
		bob := core.Session{AuthToken: "bob"}
		fetches := fake.fetches

		_, err := client.FetchScheme(ctx, alice, "6A")
		require.NoError(t, err)
		_, err = client.FetchScheme(ctx, bob, "6A")
		require.NoError(t, err)
		assert.Equal(t, fetches+2, fake.fetches)
		assert.Equal(t, "Bearer bob", fake.headers.Get("Authorization"))

		_, err = client.FetchScheme(ctx, alice, "6A")
		require.NoError(t, err)
		assert.Equal(t, fetches+2, fake.fetches)

		// saving under one token drops the class for every token
		p := scheme.Persistable{Schemes: []scheme.WeightEntry{{Name: "Exam", Weight: 100}}}
		require.NoError(t, client.SaveScheme(ctx, alice, "6A", p))
		data, err := client.FetchScheme(ctx, bob, "6A")
		require.NoError(t, err)
		assert.Equal(t, fetches+3, fake.fetches)
		assert.Equal(t, p.Schemes, scheme.Initialize(data, nil).Entries())
	})

	t.Run("malformed entries are handed over", func(t *testing.T) {
		fake.raw["6B"] = `{"schemes":"oops"}`
		data, err := client.FetchScheme(ctx, sess, "6B")
		require.NoError(t, err)
		assert.Equal(t, `"oops"`, data)
		assert.True(t, scheme.Initialize(data, core.DefaultAssessments).Defaulted())
	})
}

func TestConsoleSaver(t *testing.T) {
	saver := NewConsoleSaverMock()
	p := scheme.Persistable{Schemes: []scheme.WeightEntry{{Name: "Quiz", Weight: 100}}}

	require.NoError(t, saver.SaveScheme(context.Background(), core.Session{}, "6A", p))
	assert.Equal(t, []SavedScheme{{ClassID: "6A", Scheme: p}}, saver.Saved())

	saver.Reset()
	assert.Empty(t, saver.Saved())
}
