package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTrustedProxies(t *testing.T) {
	tp, err := ParseTrustedProxies(nil)
	require.NoError(t, err)
	assert.Nil(t, tp)

	tp, err = ParseTrustedProxies([]string{"10.0.0.0/8", " 192.0.2.1 ", "", "2001:db8::/32"})
	require.NoError(t, err)

	for ip, want := range map[string]bool{
		"10.20.30.40":     true,
		"::ffff:10.1.1.1": true,
		"192.0.2.1":       true,
		"192.0.2.2":       false,
		"2001:db8::1":     true,
		"203.0.113.9":     false,
		"not-an-ip":       false,
	} {
		assert.Equal(t, want, tp.Trusts(ip), ip)
	}

	for _, bad := range []string{"proxy.local", "10.0.0.0/33"} {
		_, err := ParseTrustedProxies([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestTrustedProxies_RealIP(t *testing.T) {
	tp, err := ParseTrustedProxies([]string{"10.0.0.0/8"})
	require.NoError(t, err)

	tests := []struct {
		name       string
		tp         *TrustedProxies
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{"no proxies configured ignores headers", nil, "203.0.113.9:5000",
			map[string]string{"X-Forwarded-For": "10.9.9.9", "X-Real-IP": "10.9.9.8"}, "203.0.113.9"},
		{"untrusted peer ignores headers", tp, "203.0.113.9:5000",
			map[string]string{"X-Forwarded-For": "198.51.100.7"}, "203.0.113.9"},
		{"trusted peer uses forwarded client", tp, "10.0.0.2:5000",
			map[string]string{"X-Forwarded-For": "198.51.100.7"}, "198.51.100.7"},
		{"spoofed leftmost hop is skipped", tp, "10.0.0.2:5000",
			map[string]string{"X-Forwarded-For": "1.2.3.4, 198.51.100.7, 10.0.0.3"}, "198.51.100.7"},
		{"real ip header without xff", tp, "10.0.0.2:5000",
			map[string]string{"X-Real-IP": "198.51.100.8"}, "198.51.100.8"},
		{"garbage hop keeps peer", tp, "10.0.0.2:5000",
			map[string]string{"X-Forwarded-For": "unknown"}, "10.0.0.2"},
		{"only proxies in chain keeps peer", tp, "10.0.0.2:5000",
			map[string]string{"X-Forwarded-For": "10.0.0.5"}, "10.0.0.2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			h := tt.tp.RealIP(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = ClientIP(r)
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRateLimiter_RotatingForwardedForFromDirectClient(t *testing.T) {
	rl := NewRateLimiter(NewMemoryWindowStore(0), 2, time.Minute, nil)
	var tp *TrustedProxies
	h := tp.RealIP(rl.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	var statuses []int
	for _, xff := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3", "10.0.0.4"} {
		req := httptest.NewRequest(http.MethodPost, "/webhook/ucgmax", nil)
		req.RemoteAddr = "203.0.113.9:40000"
		req.Header.Set("X-Forwarded-For", xff)
		req.Header.Set("X-Real-IP", xff)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		statuses = append(statuses, rec.Code)
	}

	assert.Equal(t, []int{200, 200, 429, 429}, statuses)
}
