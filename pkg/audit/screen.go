package audit

import (
	"sort"

	libinjection "github.com/corazawaf/libinjection-go"
)

// Finding describes one suspicious input value.
type Finding struct {
	Field       string `json:"field"`
	Kind        string `json:"kind"` // sqli or xss
	Fingerprint string `json:"fingerprint,omitempty"`
}

// Screen runs libinjection over free-text fields and returns a finding per
// field that looks like a SQL injection or XSS payload. Findings are ordered by field name.
func Screen(fields map[string]string) []Finding {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var findings []Finding
	for _, name := range names {
		value := fields[name]
		if value == "" {
			continue
		}
		if isSQLi, fingerprint := libinjection.IsSQLi(value); isSQLi {
			findings = append(findings, Finding{Field: name, Kind: "sqli", Fingerprint: string(fingerprint)})
			continue
		}
		if libinjection.IsXSS(value) {
			findings = append(findings, Finding{Field: name, Kind: "xss"})
		}
	}
	return findings
}
