// Package conflict detects name collisions at a transfer destination and
// synthesizes names that do not collide.
package conflict

import (
	"fmt"
	"regexp"
	"strconv"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/openmined/storagebrowser/internal/resource"
)

// Action is what a resolution does with the colliding names.
type Action string

const (
	ActionOverwrite Action = "overwrite"
	ActionRename    Action = "rename"
	ActionSkip      Action = "skip"
)

// "<base>( (<n>))?<ext>?"
var namePattern = regexp.MustCompile(`^(.+?)(?:\s*\((\d+)\))?(\.[^.]+)?$`)

// Result describes the collisions between proposed and existing names.
// SuggestedName is only set when there is exactly one duplicate.
type Result struct {
	HasConflict    bool               `json:"hasConflict"`
	DuplicateNames []string           `json:"duplicateNames"`
	ExistingNames  mapset.Set[string] `json:"-" yaml:"-"`
	SuggestedName  string             `json:"suggestedName,omitempty"`
}

// Policy is the caller's choice on how to handle collisions.
type Policy struct {
	Overwrite  bool   `json:"overwrite"`
	Rename     bool   `json:"rename"`
	CustomName string `json:"customName,omitempty"`
}

// Resolution is the outcome of applying a Policy to a Result.
type Resolution struct {
	ResolvedNames []string `json:"resolvedNames"`
	Action        Action   `json:"action"`
}

// Check compares the proposed items against the entries already present at the
// destination. Names are compared verbatim.
func Check(proposed []resource.TransferItem, existing []resource.Entry) *Result {
	existingNames := mapset.NewThreadUnsafeSetWithSize[string](len(existing))
	for _, e := range existing {
		existingNames.Add(e.Name)
	}

	duplicates := make([]string, 0)
	for _, item := range proposed {
		if existingNames.Contains(item.Name) {
			duplicates = append(duplicates, item.Name)
		}
	}

	result := &Result{
		HasConflict:    len(duplicates) > 0,
		DuplicateNames: duplicates,
		ExistingNames:  existingNames,
	}

	if len(duplicates) == 1 {
		result.SuggestedName = GenerateName(duplicates[0], existingNames)
	}

	return result
}

// Resolve applies policy to result. Overwrite takes precedence over rename; with
// neither set the colliding items are skipped.
func Resolve(result *Result, policy Policy) Resolution {
	if result == nil {
		return Resolution{Action: ActionSkip}
	}

	if policy.Overwrite {
		return Resolution{
			ResolvedNames: append([]string(nil), result.DuplicateNames...),
			Action:        ActionOverwrite,
		}
	}

	if policy.Rename {
		taken := mapset.NewThreadUnsafeSet[string]()
		if result.ExistingNames != nil {
			taken = result.ExistingNames.Clone()
		}

		names := make([]string, 0, len(result.DuplicateNames))
		for i, name := range result.DuplicateNames {
			// a custom name only ever applies to the first duplicate
			var renamed string
			if i == 0 && policy.CustomName != "" && !taken.Contains(policy.CustomName) {
				renamed = policy.CustomName
			} else {
				renamed = GenerateName(name, taken)
			}
			taken.Add(renamed)
			names = append(names, renamed)
		}

		return Resolution{ResolvedNames: names, Action: ActionRename}
	}

	return Resolution{Action: ActionSkip}
}

// GenerateName returns a name derived from original that is not in existing.
// "report.pdf" becomes "report (1).pdf", "report (1).pdf" becomes "report (2).pdf".
func GenerateName(original string, existing mapset.Set[string]) string {
	if existing == nil {
		existing = mapset.NewThreadUnsafeSet[string]()
	}

	m := namePattern.FindStringSubmatch(original)
	if m == nil {
		return fallbackName(original, existing)
	}

	base, versionStr, ext := m[1], m[2], m[3]

	version := 0
	if versionStr != "" {
		v, err := strconv.Atoi(versionStr)
		if err != nil {
			return fallbackName(original, existing)
		}
		version = v
	}

	for {
		version++
		candidate := fmt.Sprintf("%s (%d)%s", base, version, ext)
		if !existing.Contains(candidate) {
			return candidate
		}
	}
}

// GenerateNameFrom is GenerateName over a plain slice of names.
func GenerateNameFrom(original string, existing []string) string {
	return GenerateName(original, mapset.NewThreadUnsafeSet(existing...))
}

func fallbackName(original string, existing mapset.Set[string]) string {
	for version := 1; ; version++ {
		candidate := fmt.Sprintf("%s (%d)", original, version)
		if !existing.Contains(candidate) {
			return candidate
		}
	}
}
