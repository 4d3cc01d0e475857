package refdata

import "regexp"

// oemPattern matches substrings shaped like manufacturer part numbers:
// long numeric BMW-style numbers, VAG-style 0[36]X codes, and generic
// digit-led alphanumerics.
var oemPattern = regexp.MustCompile(
	`(?i)\b(?:\d{10,12}|0[36][A-Z]\d{6,7}[A-Z]?|\d[A-Z]\d{6,8}|[0-9]{2}[A-Z0-9]{6,8})\b`,
)

// prefixHintPatterns are looser, make-specific part-number shapes.
var prefixHintPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:11\d{8,10}|13\d{8,10}|17\d{8,10})\b`),
	regexp.MustCompile(`(?i)\b(?:03L|06H|8K0)[A-Z0-9]{5,8}\b`),
	regexp.MustCompile(`(?i)\b(?:96|98|19)\d{6,8}\b`),
	regexp.MustCompile(`(?i)\b31\d{2,8}\b`),
}

// ExtractOEMs returns every OEM-shaped substring of text: first the main
// pattern matches, then each prefix-hint family in turn. Duplicates are kept.
func (d *Data) ExtractOEMs(text string) []string {
	out := d.oem.FindAllString(text, -1)
	for _, p := range d.hints {
		out = append(out, p.FindAllString(text, -1)...)
	}
	return out
}

// PrefixHints returns only the prefix-hint family matches in text.
func (d *Data) PrefixHints(text string) []string {
	var out []string
	for _, p := range d.hints {
		out = append(out, p.FindAllString(text, -1)...)
	}
	return out
}
