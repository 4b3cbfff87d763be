package ai

const promptIntro = `You are an expert software engineer triaging issue-tracker tickets. Analyze the following issue and provide a structured analysis.

`

const promptInstructions = `

INSTRUCTIONS FOR THE SUMMARY:
1. Do not repeat or rephrase the title.
2. Read the issue body and comments carefully.
3. Explain what the reporter is experiencing, what they tried, and what they need.
4. Write 2-4 complete sentences in plain text (no HTML, no markdown).
5. Give enough context for someone unfamiliar with the issue.

Respond with a JSON object using exactly this schema:

{
  "summary": "Explanation of the problem or request in your own words, based on the body and comments.",
  "type": "One of: bug, feature_request, documentation, question, other",
  "priority_score": "<1-5>/5 - <short justification>",
  "suggested_labels": ["2 to 3 relevant labels"],
  "potential_impact": "Brief description of user impact (for bugs), otherwise null"
}

Classification guidelines:
- bug: something is broken or not working as expected, error messages, crashes
- feature_request: new functionality, enhancement or improvement request
- documentation: docs are missing, unclear or outdated
- question: the reporter asks how to do something or seeks clarification
- other: does not fit any category above

Priority scoring:
- 5 (critical): security issues, data loss, complete feature breakdown, affects many users
- 4 (high): major functionality broken, significant user impact, performance problems
- 3 (medium): minor bugs, moderate impact, workarounds available
- 2 (low): small issues, cosmetic problems, nice-to-have features
- 1 (very low): trivial issues, minor enhancements

Example 1 (bug).
Input title: "Upload fails for large files"
Output:
{
  "summary": "Uploading any file larger than 10MB fails with a fatal error during the validation step, before the transfer starts. The file selection is lost, so users must restart the whole upload. People who routinely work with large media files or datasets cannot use the feature at all.",
  "type": "bug",
  "priority_score": "4/5 - High priority: core upload functionality fails for a common use case",
  "suggested_labels": ["bug", "file-upload", "priority:high"],
  "potential_impact": "Users cannot upload larger files, blocking a core workflow for users with substantial data"
}

Example 2 (feature request).
Input title: "Dark mode"
Output:
{
  "summary": "The reporter asks for a dark theme for the application interface. Long sessions with the current light theme cause eye strain, especially at night or in low-light environments. A dark theme is now a common expectation and would help users with light sensitivity.",
  "type": "feature_request",
  "priority_score": "3/5 - Medium priority: improves accessibility and user experience, frequently requested",
  "suggested_labels": ["enhancement", "UI", "accessibility"],
  "potential_impact": null
}

Both examples explain the issue instead of restating the title. Do the same.

Now analyze the issue above and respond with ONLY the JSON object, no additional text:`

// ComposePrompt embeds a context block produced by BuildContext into the fixed analysis
// instructions.
func ComposePrompt(issueContext string) string {
	return promptIntro + issueContext + promptInstructions
}
