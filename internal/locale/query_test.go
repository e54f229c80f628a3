package locale

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseQuery(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []QueryParam
	}{
		{name: "empty", raw: "", want: nil},
		{name: "question mark only", raw: "?", want: nil},
		{
			name: "ordered repeated keys",
			raw:  "b=2&a=1&b=3",
			want: []QueryParam{{Key: "b", Value: "2"}, {Key: "a", Value: "1"}, {Key: "b", Value: "3"}},
		},
		{
			name: "bare key and empty value",
			raw:  "draft&q=",
			want: []QueryParam{{Key: "draft", Bare: true}, {Key: "q"}},
		},
		{
			name: "escapes decoded",
			raw:  "q=hello+world&name=%D8%B9%D9%84%D9%8A",
			want: []QueryParam{{Key: "q", Value: "hello world"}, {Key: "name", Value: "علي"}},
		},
		{
			name: "bad escape kept verbatim",
			raw:  "q=%zz",
			want: []QueryParam{{Key: "q", Value: "%zz"}},
		},
		{
			name: "empty pieces skipped",
			raw:  "&&a=1&",
			want: []QueryParam{{Key: "a", Value: "1"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseQuery(tt.raw))
		})
	}
}

func TestBuildURL(t *testing.T) {
	assert.Equal(t, "/about", BuildURL("/about", nil, ""))
	assert.Equal(t, "/about#top", BuildURL("/about", nil, "#top"))
	assert.Equal(t, "/about?x=1#sec", BuildURL("/about", ParseQuery("x=1"), "sec"))
	assert.Equal(t, "/s?draft&q=a+b", BuildURL("/s", ParseQuery("draft&q=a b"), ""))
	assert.Equal(t, "/s?t=go&t=web", BuildURL("/s", []QueryParam{{Key: "t", Value: "go"}, {Key: "t", Value: "web"}}, ""))
}

func TestEncodeQueryRoundTripsCanonicalInput(t *testing.T) {
	for _, raw := range []string{"a=1&b=2&a=3", "draft", "q=a+b", "x=%2F"} {
		assert.Equal(t, raw, EncodeQuery(ParseQuery(raw)))
	}
}
