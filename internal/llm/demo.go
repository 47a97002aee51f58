// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import "context"

// Canned demo outputs, keyed by request kind. The query-generation response
// deliberately carries no query list: the stage then derives its templated
// queries from the question, which keeps demo output deterministic without a
// model call.
const (
	demoQueryGenResponse = `{"rationale": "Demo mode: deriving queries directly from the question."}`

	demoSearchResponse = `Demo mode findings: this environment runs without language-model
credentials, so the search summary is canned. Representative background on
the topic is available at https://example.com/research and a companion
analysis at https://example.org/analysis.`

	demoReflectionResponse = `{"is_sufficient": true, "knowledge_gap": "", "follow_up_queries": []}`

	demoAnswerResponse = `## Demo Research Answer

This answer was produced in demo mode without contacting a language model.
The research pipeline executed normally: queries were generated, searched in
parallel, aggregated, and judged sufficient.

Key finding: the orchestration layer is working end to end.
[Source: example.com]`
)

// DemoClient returns deterministic canned output for every request kind,
// bypassing the language-model dependency entirely.
type DemoClient struct{}

// NewDemoClient creates a demo client.
func NewDemoClient() *DemoClient {
	return &DemoClient{}
}

// Generate returns the canned response for the request kind.
func (c *DemoClient) Generate(_ context.Context, req Request) (string, error) {
	switch req.Kind {
	case KindQueryGen:
		return demoQueryGenResponse, nil
	case KindSearch:
		return demoSearchResponse, nil
	case KindReflection:
		return demoReflectionResponse, nil
	default:
		return demoAnswerResponse, nil
	}
}
