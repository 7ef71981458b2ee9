package semcache

import "github.com/reviewloop/semcache/vector"

// AcceptanceRule decides whether a similarity candidate is a confirmed
// cache hit. The similarity search is only a candidate filter; the rule
// owns correctness.
type AcceptanceRule interface {
	// Accept reports whether the candidate matches the key.
	Accept(key Key, cand vector.Candidate) bool

	// Name identifies the rule in logs and stats.
	Name() string
}

// StrictRule accepts a candidate only when its stored digest and agent set
// exactly match the key. Two topically similar documents can clear the
// similarity threshold, so hash equality is what guarantees no false
// positives.
type StrictRule struct{}

// Accept compares the full digest and the agent set.
func (StrictRule) Accept(key Key, cand vector.Candidate) bool {
	var want vector.Payload
	key.annotate(&want)

	if cand.Payload.Digest != want.Digest {
		return false
	}
	return agentSetEqual(cand.Payload.Agents, want.Agents)
}

// Name returns "strict".
func (StrictRule) Name() string { return "strict" }

// LenientRule accepts any candidate above the similarity threshold whose
// consumer tag matches. Paraphrased queries rarely repeat verbatim, so
// trading a small false-positive risk buys a much higher hit rate.
type LenientRule struct{}

// Accept compares only the coarse consumer tag.
func (LenientRule) Accept(key Key, cand vector.Candidate) bool {
	var want vector.Payload
	key.annotate(&want)

	return cand.Payload.Tag == want.Tag
}

// Name returns "lenient".
func (LenientRule) Name() string { return "lenient" }

func agentSetEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}

	set := make(map[string]struct{}, len(a))
	for _, s := range a {
		set[s] = struct{}{}
	}
	for _, s := range b {
		if _, ok := set[s]; !ok {
			return false
		}
	}
	return true
}
