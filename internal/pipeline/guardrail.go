package pipeline

import (
	"regexp"
	"strings"
)

// Guardrail gates inbound messages and outbound replies with a pure rule
// engine. No network calls; a full evaluation is a handful of regex scans.
// Any internal panic degrades to a blocking verdict, never a silent pass.
type Guardrail struct{}

// NewGuardrail creates the rule-based safety evaluator.
func NewGuardrail() *Guardrail {
	return &Guardrail{}
}

const (
	inboundBlockThreshold  = 0.7
	outboundBlockThreshold = 0.5
)

// Prompt-injection phrases. First match flags the category; duplicates within
// the category do not stack.
var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ignore\s+(all\s+)?previous\s+instructions`),
	regexp.MustCompile(`(?i)ignore\s+(all\s+)?above\s+instructions`),
	regexp.MustCompile(`(?i)system\s*:\s*`),
	regexp.MustCompile(`(?i)you\s+are\s+now\s+`),
	regexp.MustCompile(`(?i)pretend\s+you\s+are`),
	regexp.MustCompile(`(?i)act\s+as\s+(if\s+you\s+are\s+)?an?\b`),
	regexp.MustCompile(`(?i)forget\s+(everything|all|your)`),
	regexp.MustCompile(`(?i)new\s+instructions?\s*:`),
	regexp.MustCompile(`(?i)override\s+(previous|your|all)`),
	regexp.MustCompile(`(?i)jailbreak`),
	regexp.MustCompile(`(?i)\[system\]`),
	regexp.MustCompile(`(?i)\[instruction\]`),
	regexp.MustCompile(`(?i)DAN\s+mode`),
}

var spamPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:https?://\S+\s*){3,}`),
	regexp.MustCompile(`(?i)(bit\.ly|tinyurl|t\.co|goo\.gl)`),
	regexp.MustCompile(`(?i)(buy|cheap|discount|free|click|winner|congratulations).*(buy|cheap|discount|free|click|winner)`),
	regexp.MustCompile(`\b[A-Z\s]{20,}\b`),
}

// Abbreviated list; a production deployment would plug in a full lexicon.
var profanityPattern = regexp.MustCompile(`(?i)\b(fuck|shit|damn|bitch|ass(?:hole)?|bastard|crap)\b`)

var piiPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b\d{3}[-.]?\d{2}[-.]?\d{4}\b`),             // SSN
	regexp.MustCompile(`\b\d{4}[\s-]?\d{4}[\s-]?\d{4}[\s-]?\d{4}\b`), // credit card
	regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
	regexp.MustCompile(`\b\d{3}[-.]?\d{3}[-.]?\d{4}\b`), // phone
}

// Each match compounds; multiple distinct promises stack, unlike the other
// categories.
var dangerousPromisePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)guarantee`),
	regexp.MustCompile(`(?i)100%\s*(refund|money\s*back)`),
	regexp.MustCompile(`(?i)(lawsuit|legal\s*action)`),
	regexp.MustCompile(`(?i)free\s*(forever|lifetime)`),
	regexp.MustCompile(`(?i)\$\d+.*(off|discount)`),
}

// EvaluateInbound checks an incoming customer message. Risk is additive per
// category, capped at 1.0; the message blocks at risk >= 0.7.
func (g *Guardrail) EvaluateInbound(text string) (verdict GuardrailVerdict) {
	defer func() {
		if r := recover(); r != nil {
			verdict = blockingVerdict("guardrail_fault")
		}
	}()

	flags := []string{}
	risk := 0.0

	if matchAny(injectionPatterns, text) {
		flags = append(flags, "prompt_injection")
		risk += 0.8
	}
	if matchAny(spamPatterns, text) || hasRepeatedRun(text, 11) {
		flags = append(flags, "spam")
		risk += 0.5
	}
	// Profanity is flagged but never blocks alone; the customer may just be angry.
	if profanityPattern.MatchString(text) {
		flags = append(flags, "profanity")
		risk += 0.2
	}
	if len(text) > 5000 {
		flags = append(flags, "excessive_length")
		risk += 0.3
	}
	if strings.TrimSpace(text) == "" {
		flags = append(flags, "empty_message")
		risk += 0.1
	}

	return buildVerdict(flags, risk, inboundBlockThreshold, "Blocked")
}

// EvaluateOutbound checks a generated reply before it can ship. The threshold
// is stricter than inbound because this text is customer-facing.
func (g *Guardrail) EvaluateOutbound(text string) (verdict GuardrailVerdict) {
	defer func() {
		if r := recover(); r != nil {
			verdict = blockingVerdict("guardrail_fault")
		}
	}()

	flags := []string{}
	risk := 0.0

	if matchAny(piiPatterns, text) {
		flags = append(flags, "pii_leak")
		risk += 0.9
	}
	promiseHit := false
	for _, p := range dangerousPromisePatterns {
		if p.MatchString(text) {
			promiseHit = true
			risk += 0.4
		}
	}
	if promiseHit {
		flags = append(flags, "dangerous_promise")
	}
	if profanityPattern.MatchString(text) {
		flags = append(flags, "profanity_in_output")
		risk += 0.8
	}
	if len(text) > 2000 {
		flags = append(flags, "excessive_length")
		risk += 0.2
	}
	if strings.TrimSpace(text) == "" {
		flags = append(flags, "empty_response")
		risk += 1.0
	}

	return buildVerdict(flags, risk, outboundBlockThreshold, "Output blocked")
}

func buildVerdict(flags []string, risk, threshold float64, reasonPrefix string) GuardrailVerdict {
	if risk > 1 {
		risk = 1
	}
	passed := risk < threshold
	v := GuardrailVerdict{Passed: passed, Flags: flags, RiskScore: risk}
	if !passed {
		v.BlockedReason = reasonPrefix + ": " + strings.Join(flags, ", ")
	}
	return v
}

func blockingVerdict(flag string) GuardrailVerdict {
	return GuardrailVerdict{
		Passed:        false,
		Flags:         []string{flag},
		RiskScore:     1,
		BlockedReason: "Blocked: " + flag,
	}
}

func matchAny(patterns []*regexp.Regexp, text string) bool {
	for _, p := range patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

// hasRepeatedRun reports whether any rune repeats n or more times in a row.
// Stands in for a backreference pattern, which RE2 does not support.
func hasRepeatedRun(text string, n int) bool {
	var prev rune
	run := 0
	for _, r := range text {
		if r == prev {
			run++
			if run >= n {
				return true
			}
		} else {
			prev = r
			run = 1
		}
	}
	return false
}
