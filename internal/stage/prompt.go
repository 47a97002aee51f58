// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package stage

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/pdiddy/deep-research/pkg/types"
)

// queryGenTmpl instructs the model to break the question into targeted
// search queries and answer with a JSON object.
var queryGenTmpl = template.Must(template.New("querygen").Parse(`You are an expert research assistant specializing in breaking down complex questions into targeted search queries.

Your task is to analyze a user's question and generate focused search queries that will gather comprehensive information to answer their question accurately.

Guidelines:
1. Generate 2-4 specific, targeted search queries
2. Each query should explore a different aspect of the question
3. Use precise, searchable terms that will return high-quality results
4. Avoid overly broad or vague queries
5. Include relevant time periods, specific entities, or technical terms when appropriate

Format your response as JSON:
{
  "rationale": "Brief explanation of your research strategy",
  "queries": ["query1", "query2", "query3"]
}

Please generate targeted search queries for this question:

Question: {{.Question}}

Focus on creating queries that will help gather authoritative, comprehensive information to provide a well-researched answer.
`))

// searchTmpl asks the model to synthesize findings for one query. The model
// is expected to cite source URLs inline; they are extracted afterwards.
var searchTmpl = template.Must(template.New("search").Parse(`Search for information about: {{.Query}}

This search supports the broader research question: {{.Question}}

Please provide:
1. A comprehensive summary of findings
2. Key facts and data points
3. Multiple reliable sources with their URLs
4. Recent developments if applicable

Focus on accuracy and cite specific source URLs where possible.
`))

// reflectionTmpl asks the model to judge evidence sufficiency and answer
// with a JSON object.
var reflectionTmpl = template.Must(template.New("reflection").Parse(`You are a research quality analyst evaluating whether collected information is sufficient to answer a user's question comprehensively.

Consider:
- Does the information directly answer all aspects of the question?
- Are there conflicting viewpoints that need resolution?
- Are there missing data points, statistics, or expert opinions?
- A comprehensive answer typically draws on at least {{.MinSources}} distinct sources.

Be thorough but practical - don't request unnecessary additional research.

Original Question: {{.Question}}

Research Findings:
{{.Findings}}

Sources Gathered: {{.SourceCount}}
Research Loops Completed: {{.LoopCount}}

Evaluate if this information is sufficient to provide a comprehensive answer. Format your response as JSON:

{
  "is_sufficient": true/false,
  "knowledge_gap": "Specific gaps identified (if any)",
  "follow_up_queries": ["additional query 1", "additional query 2"]
}
`))

// answerTmpl asks the model to synthesize the final cited answer.
var answerTmpl = template.Must(template.New("answer").Parse(`You are an expert research analyst tasked with synthesizing comprehensive, well-sourced answers from research findings.

Guidelines:
- Use markdown formatting for structure and readability
- Include citations in the format [Source: domain.com]
- Present information objectively and balanced
- Be comprehensive but concise
- Ensure the answer directly addresses the original question

Original Question: {{.Question}}

Research Findings:
{{.Findings}}

Sources:
{{.Sources}}

Please synthesize this information into a comprehensive, well-structured answer that directly addresses the user's question.
`))

func renderQueryGenPrompt(question string) (string, error) {
	var b bytes.Buffer
	if err := queryGenTmpl.Execute(&b, struct{ Question string }{question}); err != nil {
		return "", fmt.Errorf("rendering query generation prompt: %w", err)
	}
	return b.String(), nil
}

func renderSearchPrompt(query, question string) (string, error) {
	var b bytes.Buffer
	err := searchTmpl.Execute(&b, struct{ Query, Question string }{query, question})
	if err != nil {
		return "", fmt.Errorf("rendering search prompt: %w", err)
	}
	return b.String(), nil
}

type reflectionInput struct {
	Question    string
	Findings    string
	SourceCount int
	LoopCount   int
	MinSources  int
}

func renderReflectionPrompt(in reflectionInput) (string, error) {
	var b bytes.Buffer
	if err := reflectionTmpl.Execute(&b, in); err != nil {
		return "", fmt.Errorf("rendering reflection prompt: %w", err)
	}
	return b.String(), nil
}

type answerInput struct {
	Question string
	Findings string
	Sources  string
}

func renderAnswerPrompt(in answerInput) (string, error) {
	var b bytes.Buffer
	if err := answerTmpl.Execute(&b, in); err != nil {
		return "", fmt.Errorf("rendering answer prompt: %w", err)
	}
	return b.String(), nil
}

// formatFindingsForReflection summarizes each evidence record for the
// sufficiency judgment.
func formatFindingsForReflection(records []types.EvidenceRecord) string {
	if len(records) == 0 {
		return "No research findings were gathered."
	}
	var b strings.Builder
	for i, rec := range records {
		keyURL := "No sources"
		if len(rec.SourceURLs) > 0 {
			keyURL = rec.SourceURLs[0]
		}
		fmt.Fprintf(&b, "Research Area %d: %s\nSummary: %s\nSources: %d sources\nKey URL: %s\n\n",
			i+1, rec.Query, rec.Summary, len(rec.SourceURLs), keyURL)
	}
	return b.String()
}

// formatFindingsForAnswer lays out every record's query and findings for
// answer synthesis.
func formatFindingsForAnswer(records []types.EvidenceRecord) string {
	if len(records) == 0 {
		return "No research findings were gathered."
	}
	var b strings.Builder
	for _, rec := range records {
		fmt.Fprintf(&b, "Query: %s\nFindings: %s\n\n", rec.Query, rec.Summary)
	}
	return b.String()
}

// sourcesListLimit caps how many sources are shown in the answer prompt.
const sourcesListLimit = 20

func formatSourcesList(sources []string) string {
	if len(sources) == 0 {
		return "- (none)"
	}
	if len(sources) > sourcesListLimit {
		sources = sources[:sourcesListLimit]
	}
	var b strings.Builder
	for _, s := range sources {
		fmt.Fprintf(&b, "- %s\n", s)
	}
	return strings.TrimRight(b.String(), "\n")
}
