// Package placeholder replaces literal marker tokens such as <NAME> with
// row-supplied values.
//
// Matching is plain substring search. There is no escaping: any text that
// looks like a known marker is replaced, whether or not the author meant it
// as a placeholder. Markers split across formatting runs are not matched
// because callers apply substitution one contiguous run at a time.
package placeholder

import "strings"

const (
	MarkerName   = "<NAME>"
	MarkerDomain = "<DOMAIN>"
	MarkerRole   = "<ROLE>"
	MarkerYear   = "<YEAR>"
	MarkerTime   = "<TIME>"
)

// Pair maps one marker to its replacement value.
type Pair struct {
	Marker string
	Value  string
}

// Mapping is an ordered set of marker replacements. Pairs are applied in order.
type Mapping []Pair

// ForRecipient builds the mapping used for documents and e-mails of one row.
// Templates use <DOMAIN>; certificate e-mails use <ROLE> for the same value.
func ForRecipient(name, role string) Mapping {
	return Mapping{
		{Marker: MarkerName, Value: name},
		{Marker: MarkerDomain, Value: role},
		{Marker: MarkerRole, Value: role},
	}
}

// Substitute replaces every occurrence of each marker in text with its value.
func Substitute(text string, m Mapping) string {
	return SubstituteFunc(text, m, nil)
}

// SubstituteFunc is Substitute with values passed through escape first.
// A nil escape inserts the raw value.
func SubstituteFunc(text string, m Mapping, escape func(string) string) string {
	for _, p := range m {
		if p.Marker == "" || !strings.Contains(text, p.Marker) {
			continue
		}
		v := p.Value
		if escape != nil {
			v = escape(v)
		}
		text = strings.ReplaceAll(text, p.Marker, v)
	}
	return text
}

// ContainsMarker is a cheap check for bracket-delimited markers: true when
// both a '<' and a '>' occur in text. It does not check well-formedness and
// only decides whether substitution is worth attempting.
func ContainsMarker(text string) bool {
	start := strings.IndexByte(text, '<')
	end := strings.IndexByte(text, '>')
	return start != -1 && end != -1 && start != end
}

// columnMarkers maps general-purpose markers to roster column names.
var columnMarkers = []struct {
	marker string
	column string
}{
	{MarkerName, "Name"},
	{MarkerYear, "Year"},
	{MarkerDomain, "Domain"},
	{MarkerTime, "Time"},
}

// FillColumns replaces <NAME>, <YEAR>, <DOMAIN> and <TIME> with the Name,
// Year, Domain and Time columns of row. Markers whose column is absent are
// left untouched.
func FillColumns(text string, row map[string]string) string {
	if !ContainsMarker(text) {
		return text
	}
	for _, cm := range columnMarkers {
		v, ok := row[cm.column]
		if !ok || !strings.Contains(text, cm.marker) {
			continue
		}
		text = strings.ReplaceAll(text, cm.marker, v)
	}
	return text
}
