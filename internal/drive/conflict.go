package drive

import "fmt"

// CollisionPolicy states what the service should do when a create or upload
// targets a name that already exists. Exactly one value applies per call.
type CollisionPolicy int

const (
	// FailIfExists rejects the operation with a conflict error.
	FailIfExists CollisionPolicy = iota
	// ReplaceExisting overwrites the existing item.
	ReplaceExisting
	// GenerateUniqueName lets the service pick a non-colliding name
	// (e.g. "report 1.txt").
	GenerateUniqueName
)

// Wire directives, dictated by the remote service.
const (
	behaviorFail    = "fail"
	behaviorReplace = "replace"
	behaviorRename  = "rename"
)

// ConflictBehavior translates a CollisionPolicy to its wire directive.
// Every defined policy maps; an unmapped value is a programming error and
// returns ErrUnsupportedPolicy. There is deliberately no default case.
func ConflictBehavior(p CollisionPolicy) (string, error) {
	switch p {
	case FailIfExists:
		return behaviorFail, nil
	case ReplaceExisting:
		return behaviorReplace, nil
	case GenerateUniqueName:
		return behaviorRename, nil
	}

	return "", fmt.Errorf("%w: %d", ErrUnsupportedPolicy, int(p))
}

// PolicyFromBehavior is the reverse lookup, used when reconstructing intent
// from persisted wire directives.
func PolicyFromBehavior(behavior string) (CollisionPolicy, error) {
	switch behavior {
	case behaviorFail:
		return FailIfExists, nil
	case behaviorReplace:
		return ReplaceExisting, nil
	case behaviorRename:
		return GenerateUniqueName, nil
	}

	return 0, fmt.Errorf("%w: directive %q", ErrUnsupportedPolicy, behavior)
}

func (p CollisionPolicy) String() string {
	s, err := ConflictBehavior(p)
	if err != nil {
		return fmt.Sprintf("CollisionPolicy(%d)", int(p))
	}

	return s
}
