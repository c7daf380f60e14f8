package analysis

import (
	"fmt"
	"strings"
)

const (
	// DefaultVisionQuery is asked when an image arrives without a question.
	DefaultVisionQuery = "What's in this image?"
	// DefaultSubject is the field assumed for problem-solving prompts.
	DefaultSubject = "mathematics"

	contentMaxTokens = 2000
	visionMaxTokens  = 1024

	contentSystemPrompt = "You are an expert educational AI assistant specializing in analyzing content and providing insightful explanations. Focus on making complex topics accessible while maintaining academic rigor. Break down concepts clearly and suggest practical applications and learning opportunities."
)

func problemPrompt(subject, problem string) string {
	if strings.TrimSpace(subject) == "" {
		subject = DefaultSubject
	}
	return fmt.Sprintf(`Analyze this %s problem step by step:
%s

Please provide:
1. Step-by-step solution
2. Key concepts involved
3. Similar practice problems
4. Learning resources`, subject, problem)
}

// ImageProblemQuery asks a vision model to read and solve a pictured problem.
func ImageProblemQuery(subject string) string {
	if strings.TrimSpace(subject) == "" {
		subject = DefaultSubject
	}
	return fmt.Sprintf(`This image shows a %s problem, possibly handwritten. Transcribe the problem, then solve it step by step.

Please provide:
1. The problem as written
2. Step-by-step solution
3. Key concepts involved
4. Similar practice problems`, subject)
}

func translationPrompt(language, content string) string {
	return fmt.Sprintf(`Translate the following content to %s:
%s

Please ensure:
1. Natural and fluent translation
2. Preserve technical terms accurately
3. Maintain the original meaning`, language, content)
}

func contentPrompt(fileType, content, context string) string {
	if strings.TrimSpace(fileType) == "" {
		fileType = "text"
	}

	var b strings.Builder
	fmt.Fprintf(&b, `Please analyze this %s content carefully and provide:

1. Summary: A clear overview of the main content
2. Key Concepts: Important ideas and principles identified
3. Educational Value:
   - Learning objectives that can be derived
   - Skills or knowledge this content helps develop
   - How this connects to broader educational topics
4. Analysis:
   - Critical insights and patterns
   - Relationships between concepts
   - Potential implications or applications
5. Learning Suggestions:
   - Study questions to deepen understanding
   - Related topics to explore
   - Practical exercises or activities
6. Additional Resources:
   - Suggested supplementary materials
   - Related fields of study
   - Tools or methods for further learning

Content to analyze:
%s`, fileType, content)

	if context = strings.TrimSpace(context); context != "" {
		fmt.Fprintf(&b, "\n\nAdditional context from the user: %s\nPlease incorporate this context into your analysis.", context)
	}
	return b.String()
}

// visionQuery joins the caller's question with any context note.
func visionQuery(query, context string) string {
	query = strings.TrimSpace(query)
	if query == "" {
		query = DefaultVisionQuery
	}
	if context = strings.TrimSpace(context); context != "" && context != query {
		query += "\n\nAdditional context from the user: " + context
	}
	return query
}

// imageURL turns a raw base64 payload into a data URL. Payloads that already
// carry a scheme pass through.
func imageURL(payload string) string {
	payload = strings.TrimSpace(payload)
	if strings.HasPrefix(payload, "data:") || strings.HasPrefix(payload, "https://") || strings.HasPrefix(payload, "http://") {
		return payload
	}
	return "data:image/jpeg;base64," + payload
}
