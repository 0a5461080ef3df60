// Package identity validates raw agent CLI output against the AGENT:<name>
// header protocol and extracts the opinion/confidence the response carries.
//
// The pattern set is bilingual (English and Chinese), ported from the
// source implementation's tuned heuristics. They are constants, not part
// of the semantic contract: treat the ordering and wording as fixed.
package identity

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/steveyegge/discussion-agent/internal/message"
)

var headerRe = regexp.MustCompile(`(?i)^AGENT\s*:\s*(.+)$`)

// selfContradictionRe matches a response claiming to be different from
// the agent itself (a foreign phrasing of "I am not <N>" style confusion).
func selfContradictionRe(name string) *regexp.Regexp {
	q := regexp.QuoteMeta(name)
	return regexp.MustCompile(`(?i)(与` + q + `不同|different from ` + q + `)`)
}

// foreignIdentityRe matches a response claiming to *be* a different known
// participant than the agent itself.
func foreignIdentityRe(other string) *regexp.Regexp {
	q := regexp.QuoteMeta(other)
	return regexp.MustCompile(`(?i)(我是` + q + `|i am ` + q + `)`)
}

// ValidationError carries a stable, machine-checkable reason string
// alongside the human-readable error.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func reject(reason string) error {
	return &ValidationError{Reason: reason}
}

// Validate checks that raw begins with an AGENT:<name> header matching
// selfName (case-insensitively), that the body is non-empty, and that the
// body does not claim a foreign identity or self-contradict. otherParticipants
// is the full participant roster minus selfName, used for the foreign-identity
// check. It returns the trimmed body content with the header line removed.
func Validate(raw, selfName string, otherParticipants []string) (body string, err error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", reject("missing AGENT header")
	}

	lines := strings.SplitN(trimmed, "\n", 2)
	firstLine := strings.TrimSpace(lines[0])
	if firstLine == "" {
		return "", reject("missing AGENT header")
	}

	m := headerRe.FindStringSubmatch(firstLine)
	if m == nil {
		return "", reject("missing AGENT header")
	}
	claimed := strings.TrimSpace(m[1])
	if !strings.EqualFold(claimed, selfName) {
		return "", reject("agent mismatch")
	}

	rest := ""
	if len(lines) > 1 {
		rest = lines[1]
	}
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return "", reject("empty body")
	}

	if selfContradictionRe(selfName).MatchString(rest) {
		return "", reject("self-contradiction")
	}
	for _, other := range otherParticipants {
		if strings.EqualFold(other, selfName) {
			continue
		}
		if foreignIdentityRe(other).MatchString(rest) {
			return "", reject("foreign identity claim")
		}
	}

	return rest, nil
}

// opinionPattern pairs a regex with the opinion it signals. Order matters:
// the first match wins.
type opinionPattern struct {
	re      *regexp.Regexp
	opinion message.Opinion
}

var opinionPatterns = []opinionPattern{
	// Disagreement must be checked before agreement so phrases like
	// "I disagree, not agree" don't match the agree pattern first.
	{regexp.MustCompile(`(?i)(不同意|反对|disagree|i don't agree|i do not agree)`), message.OpinionDisagree},
	{regexp.MustCompile(`(?i)(另一种方案|替代方案|alternative(ly)?|instead,? i propose|a different approach)`), message.OpinionAlternative},
	{regexp.MustCompile(`(?i)(同意|赞成|agree|agreed|i concur)`), message.OpinionAgree},
}

var confidenceRe = regexp.MustCompile(`(?i)confidence\s*[:=]?\s*(\d+(\.\d+)?)\s*%?`)

// ParseOpinion scans body against the fixed pattern list, defaulting to
// neutral when nothing matches.
func ParseOpinion(body string) message.Opinion {
	for _, p := range opinionPatterns {
		if p.re.MatchString(body) {
			return p.opinion
		}
	}
	return message.OpinionNeutral
}

// ParseConfidence extracts a `confidence: <number>` value from body,
// treating values greater than 1 as percentages, clamping to [0,1], and
// defaulting to 0.7 when absent or unparseable.
func ParseConfidence(body string) float64 {
	m := confidenceRe.FindStringSubmatch(body)
	if m == nil {
		return 0.7
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0.7
	}
	if v > 1 {
		v = v / 100
	}
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return v
}

// closingSentenceEN is the consensus-closure sentence appended to an
// "agree" response; closingSentenceZH is the Chinese closing phrase whose
// presence suppresses that append. The source only deduplicates
// against the Chinese phrase (see SPEC_FULL/Open Questions); we follow the
// same behavior rather than guess a fuller dedup rule.
const closingSentenceZH = "本轮讨论可以结束了。"

func closingSentenceEN(counterpart string) string {
	return fmt.Sprintf("I believe %s and I are aligned; this discussion can be concluded.", counterpart)
}

// ApplyConsensusClosure appends a standard closing sentence naming
// counterpart to body when opinion is agree, unless the Chinese closing
// phrase is already present.
func ApplyConsensusClosure(body string, opinion message.Opinion, counterpart string) string {
	if opinion != message.OpinionAgree {
		return body
	}
	if strings.Contains(body, closingSentenceZH) {
		return body
	}
	return strings.TrimRight(body, " \t\n") + "\n\n" + closingSentenceEN(counterpart)
}
