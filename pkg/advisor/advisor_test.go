package advisor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/NERVsystems/dxfcropmcp/pkg/core"
)

func TestLocalValidate(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		valid    bool
		geomType string
		contains string
	}{
		{
			name:     "square",
			text:     "POLYGON ((10 10, 20 10, 20 20, 10 20, 10 10))",
			valid:    true,
			geomType: "Polygon",
			contains: "area 100",
		},
		{
			name:     "srid prefix and newlines",
			text:     "SRID=4326;polygon ((0 0,\n 4 0,\n 4 4,\n 0 0))",
			valid:    true,
			geomType: "Polygon",
		},
		{
			name:     "interior ring",
			text:     "POLYGON ((0 0, 10 0, 10 10, 0 10, 0 0), (2 2, 3 2, 3 3, 2 2))",
			valid:    true,
			geomType: "Polygon",
			contains: "cropper cannot use it",
		},
		{
			name:     "line string",
			text:     "LINESTRING (0 0, 5 5)",
			valid:    true,
			geomType: "LineString",
			contains: "only single-ring POLYGON",
		},
		{
			name:     "garbage",
			text:     "this is not geometry",
			valid:    false,
			geomType: GeometryUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := Local{}.Validate(context.Background(), tt.text)
			if err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
			if v.Valid != tt.valid || v.GeometryType != tt.geomType {
				t.Errorf("Validate() = %+v, want valid=%v type=%s", v, tt.valid, tt.geomType)
			}
			if !strings.Contains(v.Description, tt.contains) {
				t.Errorf("Description %q does not contain %q", v.Description, tt.contains)
			}
		})
	}
}

func TestValidateTooShort(t *testing.T) {
	validators := []Validator{
		Local{},
		NewRemote(RemoteConfig{URL: "http://127.0.0.1:1", APIKey: "k"}),
		NewCached(Local{}, 0, 0),
	}
	for _, v := range validators {
		if _, err := v.Validate(context.Background(), "  POLY  "); !errors.Is(err, ErrTooShort) {
			t.Errorf("%s: Validate() error = %v, want ErrTooShort", v.Name(), err)
		}
	}
}

func TestRemoteMissingKey(t *testing.T) {
	r := NewRemote(RemoteConfig{URL: "http://example.invalid"})
	v, err := r.Validate(context.Background(), "POLYGON ((0 0, 1 0, 1 1, 0 0))")
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if diff := cmp.Diff(missingKey(), v); diff != "" {
		t.Errorf("verdict mismatch (-want +got):\n%s", diff)
	}
}

func TestRemoteValidate(t *testing.T) {
	const clip = "POLYGON ((0 0, 1 0, 1 1, 0 0))"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret-key" {
			t.Errorf("Authorization = %q", got)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body["wkt"] != clip {
			t.Errorf("body = %v, err = %v", body, err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"isValid":true,"type":"Polygon","description":"A triangle."}`))
	}))
	defer srv.Close()

	r := NewRemote(RemoteConfig{URL: srv.URL, APIKey: "secret-key"})
	v, err := r.Validate(context.Background(), clip)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	want := Verdict{Valid: true, GeometryType: "Polygon", Description: "A triangle."}
	if diff := cmp.Diff(want, v); diff != "" {
		t.Errorf("verdict mismatch (-want +got):\n%s", diff)
	}
}

func TestRemoteFailuresFallBack(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}},
		{"unauthorized", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "no", http.StatusUnauthorized)
		}},
		{"bad json", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("<html>"))
		}},
		{"empty verdict", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("{}"))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			r := NewRemote(RemoteConfig{
				URL:    srv.URL,
				APIKey: "secret-key",
				Retry:  core.RetryOptions{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1},
			})
			v, err := r.Validate(context.Background(), "POLYGON ((0 0, 1 0, 1 1, 0 0))")
			if err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
			if diff := cmp.Diff(unverified(), v); diff != "" {
				t.Errorf("verdict mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRemotePing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusMethodNotAllowed)
	}))
	defer srv.Close()

	if err := NewRemote(RemoteConfig{URL: srv.URL}).Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
	if err := NewRemote(RemoteConfig{}).Ping(context.Background()); err == nil {
		t.Error("Ping() without URL succeeded")
	}
}

// countingValidator returns a fixed verdict and counts calls.
type countingValidator struct {
	calls   atomic.Int32
	verdict Verdict
	delay   time.Duration
}

func (c *countingValidator) Name() string { return "counting" }

func (c *countingValidator) Validate(ctx context.Context, text string) (Verdict, error) {
	c.calls.Add(1)
	time.Sleep(c.delay)
	return c.verdict, nil
}

func TestCachedReusesVerdicts(t *testing.T) {
	next := &countingValidator{verdict: Verdict{Valid: true, GeometryType: "Polygon"}}
	c := NewCached(next, 8, time.Minute)

	for _, text := range []string{
		"POLYGON ((0 0, 1 0, 1 1, 0 0))",
		"  POLYGON ((0 0,  1 0, 1 1, 0 0))\n",
		"POLYGON ((0 0, 1 0,\n1 1, 0 0))",
	} {
		if _, err := c.Validate(context.Background(), text); err != nil {
			t.Fatalf("Validate() error = %v", err)
		}
	}

	if got := next.calls.Load(); got != 1 {
		t.Errorf("underlying validator called %d times, want 1", got)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestCachedCollapsesConcurrentCalls(t *testing.T) {
	next := &countingValidator{verdict: Verdict{Valid: true, GeometryType: "Polygon"}, delay: 50 * time.Millisecond}
	c := NewCached(next, 8, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Validate(context.Background(), "POLYGON ((0 0, 1 0, 1 1, 0 0))"); err != nil {
				t.Errorf("Validate() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if got := next.calls.Load(); got != 1 {
		t.Errorf("underlying validator called %d times, want 1", got)
	}
}

func TestCachedSkipsFallbackVerdicts(t *testing.T) {
	tests := []struct {
		name      string
		verdict   Verdict
		wantCalls int32
	}{
		{"unverified", unverified(), 3},
		{"missing key", missingKey(), 3},
		{"unknown geometry from a real answer", Verdict{Valid: false, GeometryType: GeometryUnknown, Description: "not WKT"}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := &countingValidator{verdict: tt.verdict}
			c := NewCached(next, 8, time.Minute)

			for i := 0; i < 3; i++ {
				if _, err := c.Validate(context.Background(), "POLYGON ((0 0, 1 0, 1 1, 0 0))"); err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
			}
			if got := next.calls.Load(); got != tt.wantCalls {
				t.Errorf("underlying validator called %d times, want %d", got, tt.wantCalls)
			}
		})
	}
}
