package reporting

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSanitizeError(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		error string
		want  string
	}{
		{
			name:  "connection reset by peer",
			error: `failed to send request: Get "https://api.coaching.example/v1/coachings/c-17/batches?status=active": read tcp [dead:beef:feb1:d745::c001]:64079->[dead:beef::6811:112a]:443: read: connection reset by peer`,
			want:  `failed to send request: Get "https://api.coaching.example/v1/coachings/<id>/batches?status=active": read tcp <host>-><host>: read: connection reset by peer`,
		},
		{
			name:  "context deadline",
			error: `failed to send request: Get "https://api.coaching.example/v1/coachings/c-17/batches/deadbeef-8108-45ca-8424-cf7ba5929a3e/notes": context deadline exceeded (Client.Timeout exceeded while awaiting headers)`,
			want:  `failed to send request: Get "https://api.coaching.example/v1/coachings/<id>/batches/<id>/notes": context deadline exceeded (Client.Timeout exceeded while awaiting headers)`,
		},
		{
			name:  "nested resources",
			error: `unexpected status 500 for DELETE /v1/coachings/c1/batches/b1/members/u9`,
			want:  `unexpected status 500 for DELETE /v1/coachings/<id>/batches/<id>/members/<id>`,
		},
		{
			name:  "cache key",
			error: `failed to store cache entry for batch:c1:b1:members: connection refused`,
			want:  `failed to store cache entry for <cache key>: connection refused`,
		},
		{
			name:  "nothing to sanitize",
			error: `failed to decode batch list: unexpected end of JSON input`,
			want:  `failed to decode batch list: unexpected end of JSON input`,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, c.want, sanitizeError(c.error))
		})
	}

	t.Run("misc ipv6", func(t *testing.T) {
		t.Parallel()

		for _, ip := range []string{`1:2:3:4:5:6:7:8`, `1::`, `1::8`, `1:2::8`, `::2:3:4:5:6:7:8`, `::8`, `::`} {
			require.Equal(t, "<host>", sanitizeError(fmt.Sprintf("[%s]:1234", ip)))
		}
	})
}

func TestAddMetaMiddleware(t *testing.T) {
	t.Parallel()

	var meta ReportingMeta
	mux := http.NewServeMux()
	mux.HandleFunc(
		"GET /v1/coachings/{coachingID}/batches/{batchID}",
		NewAddMetaMiddleware("watch_batch")(func(w http.ResponseWriter, r *http.Request) {
			meta = MetaFromContext(r.Context())
		}),
	)

	req := httptest.NewRequest("GET", "/v1/coachings/c1/batches/b1", nil)
	req.Header.Set("X-User-Id", "user-1")
	req.Header.Set("User-Agent", "batchroom-app/2.3.0")
	mux.ServeHTTP(httptest.NewRecorder(), req)

	require.Equal(t, map[string]string{
		"port":       "watch_batch",
		"userAgent":  "batchroom-app/2.3.0",
		"methodPath": "GET /v1/coachings/{coachingID}/batches/{batchID}",
	}, meta.tags)
	require.Empty(t, meta.extras)
	require.Equal(t, "c1", meta.coachingID)
	require.Equal(t, "b1", meta.batchID)
	require.Equal(t, "user-1", meta.userID)
	require.False(t, meta.startedAt.IsZero())
}
