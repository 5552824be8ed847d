package selector

import (
	"regexp"
	"strings"
)

// Framework auto-generated identifier prefixes. An ID that will not
// survive a re-render is worse than no ID, so these are rejected outright.
var dynamicPrefixes = []string{
	"react-",
	"ember-",
	"vue-",
	"ng-",
	"radix-",
	"headlessui-",
	"mui-",
	"chakra-",
	"downshift-",
}

var (
	reactUseIDPattern = regexp.MustCompile(`^:r[0-9a-z]+:$`)
	longDigitRun      = regexp.MustCompile(`\d{4,}`)
	hexRun            = regexp.MustCompile(`(?i)[0-9a-f]{8,}`)
	hasDigit          = regexp.MustCompile(`\d`)
	hasHexLetter      = regexp.MustCompile(`(?i)[a-f]`)
)

// IsDynamic reports whether an identifier or class name looks
// auto-generated and therefore unstable across renders
func IsDynamic(value string) bool {
	if value == "" {
		return true
	}

	lower := strings.ToLower(value)
	for _, prefix := range dynamicPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}

	if reactUseIDPattern.MatchString(lower) {
		return true
	}

	// Counter or timestamp suffixes: four or more consecutive digits.
	if longDigitRun.MatchString(value) {
		return true
	}

	// Hash-like runs need both digits and hex letters, otherwise plain
	// words like "feedback" would be rejected.
	if m := hexRun.FindString(value); m != "" {
		if hasDigit.MatchString(m) && hasHexLetter.MatchString(m) {
			return true
		}
	}

	return false
}

// StableClasses filters a class list down to names safe to build
// selectors from, keeping at most limit entries
func StableClasses(classes []string, limit int) []string {
	var stable []string
	for _, c := range classes {
		if IsDynamic(c) {
			continue
		}
		stable = append(stable, c)
		if len(stable) == limit {
			break
		}
	}
	return stable
}
