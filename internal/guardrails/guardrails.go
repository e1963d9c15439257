// Package guardrails screens query text for prompt-injection and
// jailbreak attempts before it reaches embedding or the LLM.
package guardrails

import (
	"regexp"
	"strings"
	"unicode"
)

// ThreatLevel classifies how severe a detected issue is.
type ThreatLevel int

const (
	ThreatNone ThreatLevel = iota
	ThreatLow
	ThreatMedium
	ThreatHigh
	ThreatCritical
)

// Result is the outcome of an input check.
type Result struct {
	Safe             bool
	Threat           ThreatLevel
	Reason           string
	DetectedPatterns []string
}

// MaxInputLength and MinInputLength bound what counts as a well-formed
// query independent of the HTTP layer's own 1..4000 character check.
const (
	MaxInputLength = 10000
	MinInputLength = 2
)

type pattern struct {
	re     *regexp.Regexp
	threat ThreatLevel
}

// injectionPatterns covers instruction override, role manipulation,
// system-prompt extraction, and known jailbreak delimiter/name markers.
var injectionPatterns = compile([]struct {
	expr   string
	threat ThreatLevel
}{
	{`(?i)ignore\s+(all\s+)?(previous|prior|above|earlier)\s+(instructions?|prompts?|rules?)`, ThreatHigh},
	{`(?i)disregard\s+(your|the|all)\s+(system|initial|original)\s+(prompt|instructions?)`, ThreatHigh},
	{`(?i)forget\s+(everything|all|your)\s+(you|about|instructions?)`, ThreatHigh},
	{`(?i)you\s+are\s+now\s+`, ThreatHigh},
	{`(?i)act\s+as\s+(if\s+you\s+are\s+|a\s+)`, ThreatMedium},
	{`(?i)pretend\s+(to\s+be|you're)`, ThreatMedium},
	{`(?i)roleplay\s+as`, ThreatMedium},
	{`(?i)assume\s+the\s+role\s+of`, ThreatMedium},
	{`(?i)(what|show|tell|reveal|display)\s+(is|me|us)?\s*(your|the)\s+(system|initial|original)\s+(prompt|instructions?)`, ThreatHigh},
	{`(?i)(print|output|echo)\s+(your|the)\s+(system|initial)\s+(prompt|instructions?)`, ThreatHigh},
	{`\[INST\]`, ThreatCritical},
	{`<<SYS>>`, ThreatCritical},
	{`\[/INST\]`, ThreatCritical},
	{`<</SYS>>`, ThreatCritical},
	{`<\|im_start\|>`, ThreatCritical},
	{`<\|im_end\|>`, ThreatCritical},
	{`(?i)\bDAN\b`, ThreatMedium},
	{`(?i)\bJailbreak`, ThreatMedium},
	{`(?i)developer\s+mode`, ThreatMedium},
	{`(?i)repeat\s+(back|after|everything)`, ThreatMedium},
	{`(?i)say\s+"[^"]*system`, ThreatMedium},
})

func compile(defs []struct {
	expr   string
	threat ThreatLevel
}) []pattern {
	out := make([]pattern, len(defs))
	for i, d := range defs {
		out[i] = pattern{re: regexp.MustCompile(d.expr), threat: d.threat}
	}
	return out
}

// CheckInput screens a caller-supplied query for length anomalies,
// known injection/jailbreak patterns, and excessive special-character
// obfuscation, in that order.
func CheckInput(text string) Result {
	if len(text) > MaxInputLength {
		return Result{Safe: false, Threat: ThreatMedium, Reason: "input too long"}
	}
	if len(strings.TrimSpace(text)) < MinInputLength {
		return Result{Safe: false, Threat: ThreatLow, Reason: "input too short"}
	}

	var detected []string
	maxThreat := ThreatNone
	for _, p := range injectionPatterns {
		if p.re.MatchString(text) {
			detected = append(detected, p.re.String())
			if p.threat > maxThreat {
				maxThreat = p.threat
			}
		}
	}
	if len(detected) > 0 {
		return Result{
			Safe:             false,
			Threat:           maxThreat,
			Reason:           "potential prompt injection detected",
			DetectedPatterns: detected,
		}
	}

	if specialCharRatio(text) > 0.3 {
		return Result{Safe: false, Threat: ThreatLow, Reason: "excessive special characters detected"}
	}

	return Result{Safe: true, Threat: ThreatNone}
}

func specialCharRatio(text string) float64 {
	if len(text) == 0 {
		return 0
	}
	special := 0
	for _, r := range text {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsSpace(r) {
			special++
		}
	}
	return float64(special) / float64(len([]rune(text)))
}

var controlChars = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]`)

// Sanitize strips null bytes and control characters and collapses
// whitespace, truncating to MaxInputLength — applied before CheckInput
// so obfuscated control-character payloads can't slip past the regex
// patterns above.
func Sanitize(text string) string {
	text = strings.ReplaceAll(text, "\x00", "")
	text = strings.Join(strings.Fields(text), " ")
	text = controlChars.ReplaceAllString(text, "")
	if len(text) > MaxInputLength {
		text = text[:MaxInputLength]
	}
	return text
}
