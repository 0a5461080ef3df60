package runtime

import (
	"strings"

	"github.com/steveyegge/discussion-agent/internal/message"
)

// ShouldRespond implements the turn-decision algorithm of spec.md §4.4.2.
// It is a pure function over a discussion's effective message history so
// it can be tested and reasoned about without any runtime state.
//
// The Open Question in spec.md's Design Notes ("verify both branches
// uniformly honor maxRounds") is resolved here by never offering a round
// above maxRounds on any branch: a follow-up round must be <= maxRounds,
// completing round H requires H <= maxRounds, and advancing to H+1
// requires H < maxRounds.
func ShouldRespond(msgs []message.Message, self string, participants []string, maxRounds int) *Candidate {
	if !containsFold(participants, self) {
		return nil
	}

	eff := message.EffectiveMessages(msgs)
	if message.Ended(eff) {
		return nil
	}

	h := message.MaxResponseRound(eff)

	if fu := message.LatestFollowup(eff); fu != nil {
		if fu.Target != "" && !strings.EqualFold(fu.Target, self) {
			return nil
		}
		followupRound := fu.Round
		if followupRound == 0 {
			followupRound = h + 1
		}
		if followupRound > maxRounds {
			return nil
		}
		if !message.RespondedInRound(eff, self, followupRound) {
			return &Candidate{Round: followupRound, Trigger: "followup"}
		}
		return nil
	}

	if h == 0 {
		if hasStart(eff) {
			return &Candidate{Round: 1, Trigger: "start"}
		}
		return nil
	}

	if !message.RespondedInRound(eff, self, h) {
		if h > maxRounds {
			return nil
		}
		respondents := message.RespondentsInRound(eff, h)
		threshold := len(participants) - 1
		if threshold < 0 {
			threshold = 0
		}
		if countOthers(respondents, self) >= threshold {
			return &Candidate{Round: h, Trigger: "response"}
		}
		return nil
	}

	// We have already responded in H: consider advancing to H+1.
	respondents := message.RespondentsInRound(eff, h)
	if len(respondents) >= len(participants) && h < maxRounds {
		return &Candidate{Round: h + 1, Trigger: "response"}
	}
	return nil
}

func containsFold(list []string, needle string) bool {
	for _, v := range list {
		if strings.EqualFold(v, needle) {
			return true
		}
	}
	return false
}

func hasStart(msgs []message.Message) bool {
	for _, m := range msgs {
		if m.Type == message.TypeStart {
			return true
		}
	}
	return false
}

func countOthers(respondents map[string]bool, self string) int {
	n := 0
	selfLower := strings.ToLower(self)
	for r := range respondents {
		if r != selfLower {
			n++
		}
	}
	return n
}
