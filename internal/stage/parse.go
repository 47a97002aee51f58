// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package stage

import (
	"encoding/json"
	"fmt"
	"strings"
)

// extractJSONObject slices the substring between the first '{' and the last
// '}' so that JSON embedded in surrounding prose still parses. If no braces
// are present the raw text is wrapped in braces, which salvages responses
// that emit bare key-value lines.
func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return "{" + strings.TrimSpace(raw) + "}"
}

// parseQueryGen extracts the query list and rationale from a model response.
// It tolerates the query list appearing under any key, and the rationale
// appearing under several synonyms. A parseable object with no query list is
// not an error: the caller falls back to templated queries silently.
func parseQueryGen(raw string) (queries []string, rationale string, err error) {
	var parsed map[string]any
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &parsed); err != nil {
		return nil, "", fmt.Errorf("parsing query generation response: %w", err)
	}

	queries = stringList(parsed["queries"])
	if queries == nil {
		// Any field holding a non-empty string list counts.
		for _, v := range parsed {
			if list := stringList(v); len(list) > 0 {
				queries = list
				break
			}
		}
	}

	for _, key := range []string{"rationale", "thought", "thoughts", "reasoning", "explanation"} {
		if s, ok := parsed[key].(string); ok && s != "" {
			rationale = s
			break
		}
	}

	return queries, rationale, nil
}

// reflectionOutput is the structured verdict from the reflection stage.
type reflectionOutput struct {
	IsSufficient    bool
	KnowledgeGap    string
	FollowUpQueries []string
}

// parseReflection extracts the sufficiency verdict. A missing is_sufficient
// field defaults to true; the gap description is accepted under singular or
// plural keys.
func parseReflection(raw string) (reflectionOutput, error) {
	var parsed map[string]any
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &parsed); err != nil {
		return reflectionOutput{}, fmt.Errorf("parsing reflection response: %w", err)
	}

	out := reflectionOutput{IsSufficient: true}
	if v, ok := parsed["is_sufficient"].(bool); ok {
		out.IsSufficient = v
	}
	if s, ok := parsed["knowledge_gaps"].(string); ok {
		out.KnowledgeGap = s
	} else if s, ok := parsed["knowledge_gap"].(string); ok {
		out.KnowledgeGap = s
	}
	out.FollowUpQueries = stringList(parsed["follow_up_queries"])

	return out, nil
}

// stringList converts a decoded JSON value into a string slice, or nil if
// the value is not a list of strings.
func stringList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	list := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil
		}
		if s != "" {
			list = append(list, s)
		}
	}
	return list
}
