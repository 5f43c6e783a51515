package checker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBaseDomain(t *testing.T) {
	cases := map[string]string{
		"example.com":           "example.com",
		"www.example.com":       "example.com",
		"a.b.example.com":       "example.com",
		"shop.example.co.uk":    "example.co.uk",
		"example.co.uk":         "example.co.uk",
		"portal.example.gov.au": "example.gov.au",
		"  WWW.Example.COM. ":   "example.com",
		"localhost":             "localhost",
		"":                      "",
	}
	for input, want := range cases {
		assert.Equal(t, want, BaseDomain(input), input)
	}
}
