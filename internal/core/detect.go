package core

import (
	"regexp"
	"strings"

	"wv-forge/internal/types"
)

var noarchPattern = regexp.MustCompile(`(?m)^\s+noarch:`)

// DetectBuildKind classifies a recipe from its text: an indented noarch
// key makes it noarch, any reference to cuda_version makes it a variant
// build and everything else is standard.
func DetectBuildKind(recipe string) types.BuildKind {
	if noarchPattern.MatchString(recipe) {
		return types.BuildKindNoarch
	}
	if strings.Contains(recipe, "cuda_version") {
		return types.BuildKindVariant
	}
	return types.BuildKindStandard
}
