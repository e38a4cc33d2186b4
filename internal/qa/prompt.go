package qa

import "strings"

// FallbackAnswer is the sentence the model is told to give when the context
// does not contain the answer.
const FallbackAnswer = "I cannot answer from the document."

// BuildPrompt fills the answering template with the retrieved context and
// the user's question.
func BuildPrompt(context, question string) string {
	var promptBuilder strings.Builder

	promptBuilder.WriteString("You are a helpful assistant that answers questions based strictly on the supplied context.\n\n")

	promptBuilder.WriteString("CONTEXT:\n")
	promptBuilder.WriteString(context)
	promptBuilder.WriteString("\n\n")

	promptBuilder.WriteString("QUESTION:\n")
	promptBuilder.WriteString(question)
	promptBuilder.WriteString("\n\n")

	promptBuilder.WriteString("INSTRUCTIONS:\n")
	promptBuilder.WriteString("- If you cannot answer from the context, say \"" + FallbackAnswer + "\"\n")
	promptBuilder.WriteString("- Keep answers concise.\n")
	promptBuilder.WriteString("- Do NOT include information outside the context.\n")
	promptBuilder.WriteString("- Cite page numbers when possible.\n\n")

	promptBuilder.WriteString("ANSWER:")

	return promptBuilder.String()
}
