package elevation

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/safeascent/safeascent/internal/log"
	"github.com/safeascent/safeascent/pkg/config"
)

func TestResolve(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("latitude") != "40.2550" {
			t.Errorf("unexpected latitude %s", r.URL.Query().Get("latitude"))
		}
		w.Write([]byte(`{"elevation":[4346.0]}`))
	}))
	defer srv.Close()

	r := NewResolver(config.ElevationProviderData{BaseURL: srv.URL}, log.GetSugaredLogger(), nil)

	elev := r.Resolve(context.Background(), 40.255, -105.615)
	if elev == nil {
		t.Fatal("expected an elevation")
	}
	if *elev != 4346.0 {
		t.Errorf("expected 4346, got %v", *elev)
	}
}

func TestResolveFailureIsNonFatal(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{"malformed body", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`not json`))
		}},
		{"empty elevation array", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"elevation":[]}`))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			r := NewResolver(config.ElevationProviderData{BaseURL: srv.URL}, log.GetSugaredLogger(), nil)
			if elev := r.Resolve(context.Background(), 40.0, -105.0); elev != nil {
				t.Errorf("expected nil elevation, got %v", *elev)
			}
		})
	}
}

func TestResolveUnreachableProvider(t *testing.T) {
	r := NewResolver(config.ElevationProviderData{BaseURL: "http://127.0.0.1:1"}, log.GetSugaredLogger(), nil)
	if elev := r.Resolve(context.Background(), 40.0, -105.0); elev != nil {
		t.Errorf("expected nil elevation from unreachable provider, got %v", *elev)
	}
}
