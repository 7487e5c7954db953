package prompt

import "fmt"

// GetSystemPrompt frames the model as a troubleshooting assistant for
// failed AWS audit scans.
func GetSystemPrompt() string {
	return "You are an assistant helping operators of an AWS security " +
		"scanning tool. You are given the last output lines of a scan " +
		"that exited with a non-zero code. Explain the most likely cause " +
		"in one or two sentences and suggest a concrete fix. Mention " +
		"missing permissions, expired credentials or misconfiguration " +
		"when the output points at them. Be brief and practical."
}

// GetUserPrompt wraps the captured tail output of the failed scan.
func GetUserPrompt(output string) string {
	return fmt.Sprintf("The scan failed with this output:\n\n%s", output)
}
