package checker

import "strings"

// registryLabels are second-level labels that act as part of a public suffix,
// e.g. "co" in example.co.uk.
var registryLabels = map[string]bool{
	"ac":  true,
	"co":  true,
	"com": true,
	"edu": true,
	"go":  true,
	"gov": true,
	"ne":  true,
	"net": true,
	"or":  true,
	"org": true,
}

// BaseDomain strips subdomains from domain, keeping three labels when the
// second-to-last label is a short registry label.
//
//	www.example.com   -> example.com
//	shop.example.co.uk -> example.co.uk
func BaseDomain(domain string) string {
	value := strings.Trim(strings.ToLower(strings.TrimSpace(domain)), ".")
	if value == "" {
		return ""
	}

	labels := strings.Split(value, ".")
	if len(labels) <= 2 {
		return value
	}

	keep := 2
	if registryLabels[labels[len(labels)-2]] {
		keep = 3
	}
	return strings.Join(labels[len(labels)-keep:], ".")
}
