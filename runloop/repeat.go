package runloop

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
)

// callSignature computes a deterministic signature for a tool call
// (name + hash of its raw arguments).
func callSignature(name string, arguments json.RawMessage) string {
	h := sha256.Sum256(arguments)
	return fmt.Sprintf("%s:%x", name, h[:8])
}

// recordSignature computes the signature of an executed call from its
// record, re-serializing the parsed arguments deterministically enough for
// equality checks within one run.
func recordSignature(record ToolCallRecord) string {
	raw, _ := json.Marshal(record.Arguments)
	return callSignature(record.ToolName, raw)
}

// detectRepeat checks whether the last windowSize executed tool calls follow
// a repeating pattern of length 1, 2, or 3. A model stuck re-issuing the
// same call (or the same short cycle of calls) will never terminate on its
// own, so the loop injects a notice message nudging it onto another path.
func detectRepeat(records []ToolCallRecord, windowSize int) bool {
	if windowSize <= 0 || len(records) < windowSize {
		return false
	}

	sigs := make([]string, 0, windowSize)
	for _, record := range records[len(records)-windowSize:] {
		sigs = append(sigs, recordSignature(record))
	}

	for patternLen := 1; patternLen <= 3; patternLen++ {
		if windowSize%patternLen != 0 {
			continue
		}
		pattern := sigs[:patternLen]
		allMatch := true
		for i := patternLen; i < windowSize && allMatch; i += patternLen {
			for j := 0; j < patternLen; j++ {
				if sigs[i+j] != pattern[j] {
					allMatch = false
					break
				}
			}
		}
		if allMatch {
			return true
		}
	}
	return false
}
