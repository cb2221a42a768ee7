package prompts

// DescribeImagePrompt asks a vision model for a short description used to
// name the file.
const DescribeImagePrompt = "Describe this image in one or two short sentences. " +
	"Mention the main subject, the setting, and any notable objects. Do not speculate."

// OCRPrompt asks a vision model to transcribe visible text.
const OCRPrompt = "Transcribe all legible text in this image exactly as written. " +
	"If there is no text, reply with NONE."
