package fulfillment

import "strings"

// Lifecycle tags written on the upstream order
const (
	TagPlaced    = "factory:placed"
	TagPushed    = "factory:pushed"
	TagFulfilled = "factory:fulfilled"
	TagError     = "factory:error"
)

// managedTags lists every tag owned by the lifecycle, in write order
var managedTags = []string{TagPlaced, TagPushed, TagFulfilled, TagError}

// Stage is the lifecycle position of an order on the factory side
type Stage int

const (
	StageReceived Stage = iota
	StagePlaced
	StagePushed
	StageFulfilled
)

// String returns the string representation of Stage
func (s Stage) String() string {
	switch s {
	case StageReceived:
		return "RECEIVED"
	case StagePlaced:
		return "PLACED"
	case StagePushed:
		return "PUSHED"
	case StageFulfilled:
		return "FULFILLED"
	default:
		return "UNKNOWN"
	}
}

// LifecycleState is the order lifecycle reconstructed from its tag set.
// There is no stored status field; the tags are the state.
type LifecycleState struct {
	Stage Stage
	Error bool
}

// StateFromTags derives the lifecycle state from an order's tags.
// The highest stage tag wins, so {fulfilled} alone still reads as Fulfilled.
func StateFromTags(tags []string) LifecycleState {
	set := tagSet(tags)
	st := LifecycleState{Stage: StageReceived, Error: set[TagError]}
	switch {
	case set[TagFulfilled]:
		st.Stage = StageFulfilled
	case set[TagPushed]:
		st.Stage = StagePushed
	case set[TagPlaced]:
		st.Stage = StagePlaced
	}
	return st
}

// Tags returns the canonical tag set for the state.
// Every stage past Received carries the placed tag; Fulfilled drops pushed.
func (s LifecycleState) Tags() []string {
	var tags []string
	if s.Stage >= StagePlaced {
		tags = append(tags, TagPlaced)
	}
	switch s.Stage {
	case StagePushed:
		tags = append(tags, TagPushed)
	case StageFulfilled:
		tags = append(tags, TagFulfilled)
	}
	if s.Error {
		tags = append(tags, TagError)
	}
	return tags
}

// DiffFrom computes the tag changes that turn current into the canonical tags of s.
// Tags outside the lifecycle are never touched.
func (s LifecycleState) DiffFrom(current []string) TagDiff {
	have := tagSet(current)
	want := tagSet(s.Tags())

	var diff TagDiff
	for _, tag := range managedTags {
		switch {
		case want[tag] && !have[tag]:
			diff.Add = append(diff.Add, tag)
		case !want[tag] && have[tag]:
			diff.Remove = append(diff.Remove, tag)
		}
	}
	return diff
}

// TagDiff is one lifecycle write: tags to add and tags to remove
type TagDiff struct {
	Add    []string
	Remove []string
}

// IsEmpty returns true if the diff changes nothing
func (d TagDiff) IsEmpty() bool {
	return len(d.Add) == 0 && len(d.Remove) == 0
}

// Apply returns tags with the diff applied. The input slice is not modified.
func (d TagDiff) Apply(tags []string) []string {
	remove := tagSet(d.Remove)
	out := make([]string, 0, len(tags)+len(d.Add))
	seen := make(map[string]bool, len(tags)+len(d.Add))
	for _, t := range tags {
		k := normalizeTag(t)
		if remove[k] || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, t)
	}
	for _, t := range d.Add {
		k := normalizeTag(t)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, t)
	}
	return out
}

// ---------------------------------------------------------------------------
// Transitions
// ---------------------------------------------------------------------------

// MarkPlaced records a successful (or already existing) placement.
// A pushed tag left over from an earlier run is removed, since the order has
// not been pushed in this run. A fulfilled order stays fulfilled.
func MarkPlaced(tags []string) TagDiff {
	st := StateFromTags(tags)
	if st.Stage != StageFulfilled {
		st.Stage = StagePlaced
	}
	st.Error = false
	return st.DiffFrom(tags)
}

// MarkPushed records a successful push for the order
func MarkPushed(tags []string) TagDiff {
	st := StateFromTags(tags)
	if st.Stage != StageFulfilled {
		st.Stage = StagePushed
	}
	st.Error = false
	return st.DiffFrom(tags)
}

// MarkFulfilled records that tracking was obtained and an upstream fulfillment
// was created. The result is always {placed, fulfilled}.
func MarkFulfilled(tags []string) TagDiff {
	st := LifecycleState{Stage: StageFulfilled}
	return st.DiffFrom(tags)
}

// MarkError flags a failed step. Tags from earlier steps are kept so a retry
// resumes forward.
func MarkError(tags []string) TagDiff {
	if tagSet(tags)[TagError] {
		return TagDiff{}
	}
	return TagDiff{Add: []string{TagError}}
}

func normalizeTag(t string) string {
	return strings.ToLower(strings.TrimSpace(t))
}

func tagSet(tags []string) map[string]bool {
	set := make(map[string]bool, len(tags))
	for _, t := range tags {
		set[normalizeTag(t)] = true
	}
	return set
}
