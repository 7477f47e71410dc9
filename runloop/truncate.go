package runloop

import (
	"fmt"
	"strings"
)

// TruncationMode specifies how oversized tool output is trimmed.
type TruncationMode string

const (
	TruncateHeadTail TruncationMode = "head_tail"
	TruncateTail     TruncationMode = "tail"
)

// DefaultToolOutputLimit caps tool output folded into the conversation when
// no per-tool limit is configured. Untruncated output stays available to the
// caller through the ToolCallRecord.
const DefaultToolOutputLimit = 30000

// TruncateOutput applies character-based truncation to output.
func TruncateOutput(output string, maxChars int, mode TruncationMode) string {
	if maxChars <= 0 || len(output) <= maxChars {
		return output
	}

	removed := len(output) - maxChars
	switch mode {
	case TruncateTail:
		return fmt.Sprintf("[Output truncated: first %d characters removed.]\n\n", removed) +
			output[len(output)-maxChars:]
	default:
		half := maxChars / 2
		return output[:half] +
			fmt.Sprintf("\n\n[Output truncated: %d characters removed from the middle. "+
				"Re-run the tool with more targeted parameters to see specific parts.]\n\n", removed) +
			output[len(output)-half:]
	}
}

// TruncateLines applies line-based truncation using a head/tail split.
func TruncateLines(output string, maxLines int) string {
	if maxLines <= 0 {
		return output
	}
	lines := strings.Split(output, "\n")
	if len(lines) <= maxLines {
		return output
	}

	headCount := maxLines / 2
	tailCount := maxLines - headCount
	omitted := len(lines) - headCount - tailCount

	return strings.Join(lines[:headCount], "\n") +
		fmt.Sprintf("\n[... %d lines omitted ...]\n", omitted) +
		strings.Join(lines[len(lines)-tailCount:], "\n")
}

// truncateToolOutput applies the dispatcher's truncation pipeline for one
// tool: character truncation first, then an optional line cap.
func truncateToolOutput(output, toolName string, charLimits, lineLimits map[string]int) string {
	maxChars := DefaultToolOutputLimit
	if limit, ok := charLimits[toolName]; ok {
		maxChars = limit
	}
	result := TruncateOutput(output, maxChars, TruncateHeadTail)

	if maxLines, ok := lineLimits[toolName]; ok {
		result = TruncateLines(result, maxLines)
	}
	return result
}
