package pagination

import (
	"errors"
	"net/http"
	"net/url"
	"testing"
	"time"
)

func TestParseDefaults(t *testing.T) {
	params, err := Parse(url.Values{}, Options{})
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if params.PageSize != DefaultPageSize {
		t.Fatalf("expected default page size %d got %d", DefaultPageSize, params.PageSize)
	}
	if params.PageToken != "" {
		t.Fatalf("expected empty page token got %q", params.PageToken)
	}
}

func TestParsePageSize(t *testing.T) {
	opts := Options{DefaultPageSize: 25, MaxPageSize: 40}

	values := url.Values{}
	values.Set("page_size", "30")
	params, err := Parse(values, opts)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if params.PageSize != 30 {
		t.Fatalf("expected page size 30 got %d", params.PageSize)
	}

	values.Set("page_size", "400")
	params, err = Parse(values, opts)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if params.PageSize != opts.MaxPageSize {
		t.Fatalf("expected page size clamped to %d got %d", opts.MaxPageSize, params.PageSize)
	}

	values.Del("page_size")
	params, err = Parse(values, opts)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if params.PageSize != opts.DefaultPageSize {
		t.Fatalf("expected default %d got %d", opts.DefaultPageSize, params.PageSize)
	}
}

func TestParseInvalidPageSize(t *testing.T) {
	for _, raw := range []string{"abc", "0", "-5", "1.5"} {
		values := url.Values{}
		values.Set("page_size", raw)
		if _, err := Parse(values, Options{}); !errors.Is(err, ErrInvalidPageSize) {
			t.Fatalf("page_size %q: expected ErrInvalidPageSize, got %v", raw, err)
		}
	}
}

func TestParsePageToken(t *testing.T) {
	values := url.Values{}
	values.Set("page_token", "  opaque-token  ")

	params, err := Parse(values, Options{})
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if params.PageToken != "opaque-token" {
		t.Fatalf("expected trimmed token, got %q", params.PageToken)
	}
}

func TestFromRequest(t *testing.T) {
	req, err := http.NewRequest(http.MethodGet, "/products?page_size=10&page_token=tok123", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}

	params, err := FromRequest(req, Options{})
	if err != nil {
		t.Fatalf("FromRequest returned error: %v", err)
	}
	if params.PageSize != 10 || params.PageToken != "tok123" {
		t.Fatalf("unexpected params %+v", params)
	}

	if _, err := FromRequest(nil, Options{}); err == nil {
		t.Fatalf("expected error for nil request")
	}
}

func TestTokenRoundTrip(t *testing.T) {
	createdAt := time.Date(2025, 4, 2, 9, 0, 0, 0, time.UTC)
	token, err := EncodeToken(Cursor{StartAfter: []any{createdAt.Format(time.RFC3339Nano), "prod_1"}})
	if err != nil {
		t.Fatalf("EncodeToken: %v", err)
	}
	if token == "" {
		t.Fatalf("expected non-empty token")
	}

	cursor, err := DecodeToken(token)
	if err != nil {
		t.Fatalf("DecodeToken: %v", err)
	}
	if len(cursor.StartAfter) != 2 {
		t.Fatalf("expected two cursor values, got %#v", cursor.StartAfter)
	}

	empty, err := EncodeToken(Cursor{})
	if err != nil || empty != "" {
		t.Fatalf("expected empty token for zero cursor, got %q err %v", empty, err)
	}

	if _, err := DecodeToken("%%%not-base64%%%"); !errors.Is(err, ErrInvalidPageToken) {
		t.Fatalf("expected ErrInvalidPageToken, got %v", err)
	}
}
