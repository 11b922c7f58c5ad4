package analysis

import (
	"fmt"
	"strings"
)

// maxMergeOutputSize bounds the merge output included in the prompt (in
// characters). Larger outputs are excerpted from both ends.
const maxMergeOutputSize = 8000

// BuildConflictPrompt constructs the analysis prompt for a conflicted merge.
// It is a pure function over the request.
func BuildConflictPrompt(req Request) string {
	var sections []string

	sections = append(sections, "A Subversion merge produced conflicts. Use the context below to explain the conflict.")

	sections = append(sections, buildRevisionSection(req))

	if len(req.ConflictedPaths) > 0 {
		sections = append(sections, buildConflictedPathsSection(req.ConflictedPaths))
	}

	if req.MergeOutput != "" {
		sections = append(sections, buildMergeOutputSection(req.MergeOutput))
	}

	sections = append(sections, buildOutputFormatSection())

	return strings.Join(sections, "\n\n")
}

func buildRevisionSection(req Request) string {
	var lines []string
	lines = append(lines, "## Revision")
	lines = append(lines, fmt.Sprintf("- Revision: r%d", req.Revision.Number))
	if req.Revision.Author != "" {
		lines = append(lines, fmt.Sprintf("- Author: %s", req.Revision.Author))
	}
	if req.Revision.Message != "" {
		lines = append(lines, fmt.Sprintf("- Log message: %s", req.Revision.Message))
	}
	if req.SourceBranch != "" {
		lines = append(lines, fmt.Sprintf("- Source branch: %s", req.SourceBranch))
	}
	if req.TargetBranch != "" {
		lines = append(lines, fmt.Sprintf("- Target branch: %s", req.TargetBranch))
	}
	return strings.Join(lines, "\n")
}

func buildConflictedPathsSection(paths []string) string {
	lines := make([]string, 0, len(paths)+1)
	lines = append(lines, "## Conflicted Paths")
	for _, path := range paths {
		lines = append(lines, fmt.Sprintf("- %s", path))
	}
	return strings.Join(lines, "\n")
}

func buildMergeOutputSection(output string) string {
	var lines []string
	lines = append(lines, "## Merge Output")
	lines = append(lines, "")

	if len(output) > maxMergeOutputSize {
		lines = append(lines, fmt.Sprintf("_Output is large (%d characters). Showing excerpts._", len(output)))
		lines = append(lines, "```")
		lines = append(lines, output[:maxMergeOutputSize/2])
		lines = append(lines, "... (truncated) ...")
		lines = append(lines, output[len(output)-maxMergeOutputSize/2:])
		lines = append(lines, "```")
	} else {
		lines = append(lines, "```")
		lines = append(lines, output)
		lines = append(lines, "```")
	}

	return strings.Join(lines, "\n")
}

func buildOutputFormatSection() string {
	return `## Output Format

Respond with a short plain-text explanation (2-5 sentences):
- What the conflicting change collides with.
- Which files need attention first.
- A suggested resolution approach if one is apparent.
Do not use markdown formatting in your response.`
}
