package prompts

import "fmt"

const webSearchAnswerTemplate = `You are a helpful AI assistant. Your task is to answer a user's question based on the provided web search results.
- The user's original question was: "%s"
- Here are the relevant search results:
%s

Please synthesize the information from the search results into a concise, natural language answer.
ASSISTANT:
`

// WebSearchAnswerPrompt asks the model to answer question from formatted
// search results.
func WebSearchAnswerPrompt(question, results string) string {
	return fmt.Sprintf(webSearchAnswerTemplate, question, results)
}

const calculatorAnswerTemplate = `You are a helpful AI assistant. Your task is to answer a user's question based on a calculation.
- The user's original question was: "%s"
- The result of the calculation is: %s

Please provide the answer in a concise, natural language format.
ASSISTANT:
`

// CalculatorAnswerPrompt asks the model to phrase a calculation result.
func CalculatorAnswerPrompt(question, result string) string {
	return fmt.Sprintf(calculatorAnswerTemplate, question, result)
}

// DirectAnswerPrompt is used when planning produced no commands.
func DirectAnswerPrompt(question string) string {
	return "You are a helpful assistant. Answer the following question: " + question
}
