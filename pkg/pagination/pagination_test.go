package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func paramsFor(query string) Params {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/"+query, nil)
	return FromContext(e.NewContext(req, httptest.NewRecorder()))
}

func TestFromContext(t *testing.T) {
	tests := []struct {
		query      string
		wantLimit  int
		wantOffset int
	}{
		{"", DefaultLimit, 0},
		{"?limit=5&offset=10", 5, 10},
		{"?limit=500", MaxLimit, 0},
		{"?limit=-3&offset=-1", DefaultLimit, 0},
		{"?limit=10&page=3", 10, 20},
		{"?limit=10&page=3&offset=4", 10, 4},
	}
	for _, tt := range tests {
		p := paramsFor(tt.query)
		if p.Limit != tt.wantLimit || p.Offset != tt.wantOffset {
			t.Errorf("%q: got limit=%d offset=%d, want %d/%d", tt.query, p.Limit, p.Offset, tt.wantLimit, tt.wantOffset)
		}
	}
}

func TestNewResponse_HasMore(t *testing.T) {
	if r := NewResponse([]int{1}, 30, 10, 10); !r.HasMore {
		t.Error("expected more results after offset 10 of 30")
	}
	if r := NewResponse([]int{1}, 30, 10, 20); r.HasMore {
		t.Error("expected last page")
	}
}

func TestWindow(t *testing.T) {
	p := Params{Limit: 10, Offset: 15}
	if s, e := p.Window(20); s != 15 || e != 20 {
		t.Errorf("got [%d,%d), want [15,20)", s, e)
	}
	if s, e := p.Window(3); s != 3 || e != 3 {
		t.Errorf("got [%d,%d), want empty window at 3", s, e)
	}
}
