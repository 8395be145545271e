package pagination

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/labstack/echo/v4"
)

func contextWithQuery(query string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/users?"+query, nil)
	return e.NewContext(req, httptest.NewRecorder())
}

func TestFromContext_Defaults(t *testing.T) {
	p := FromContext(contextWithQuery(""))
	if p.Limit != DefaultLimit {
		t.Errorf("expected default limit %d, got %d", DefaultLimit, p.Limit)
	}
	if p.Offset != 0 {
		t.Errorf("expected offset 0, got %d", p.Offset)
	}
}

func TestFromContext_Clamps(t *testing.T) {
	tests := []struct {
		query      string
		wantLimit  int
		wantOffset int
	}{
		{"limit=10&offset=30", 10, 30},
		{"limit=1000", MaxLimit, 0},
		{"limit=-5&offset=-2", DefaultLimit, 0},
		{"limit=abc&offset=xyz", DefaultLimit, 0},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			p := FromContext(contextWithQuery(tt.query))
			if p.Limit != tt.wantLimit || p.Offset != tt.wantOffset {
				t.Errorf("got limit=%d offset=%d, want limit=%d offset=%d",
					p.Limit, p.Offset, tt.wantLimit, tt.wantOffset)
			}
		})
	}
}

func TestNewResponse_HasMore(t *testing.T) {
	if !NewResponse(nil, 50, 20, 20).HasMore {
		t.Error("expected HasMore for offset 20 of 50")
	}
	if NewResponse(nil, 40, 20, 20).HasMore {
		t.Error("expected no more results for offset 20 of 40")
	}
}

func TestParams_PreviousOffset(t *testing.T) {
	if got := (Params{Limit: 20, Offset: 10}).PreviousOffset(); got != 0 {
		t.Errorf("expected 0, got %d", got)
	}
	if got := (Params{Limit: 20, Offset: 50}).PreviousOffset(); got != 30 {
		t.Errorf("expected 30, got %d", got)
	}
}

func TestParams_Links(t *testing.T) {
	p := Params{Limit: 10, Offset: 10}
	links := p.Links("/api/v1/admin/users", url.Values{"role": {"doctor"}}, 35)

	if len(links) != 3 {
		t.Fatalf("expected self, next and previous links, got %d", len(links))
	}
	want := map[string]string{
		"self":     "/api/v1/admin/users?limit=10&offset=10&role=doctor",
		"next":     "/api/v1/admin/users?limit=10&offset=20&role=doctor",
		"previous": "/api/v1/admin/users?limit=10&offset=0&role=doctor",
	}
	for _, l := range links {
		if want[l.Relation] != l.URL {
			t.Errorf("%s: got %q, want %q", l.Relation, l.URL, want[l.Relation])
		}
	}
}

func TestParams_Links_FirstPage(t *testing.T) {
	links := Params{Limit: 10, Offset: 0}.Links("/x", nil, 5)
	if len(links) != 1 || links[0].Relation != "self" {
		t.Errorf("expected only a self link, got %+v", links)
	}
}
