// Package classify implements the offline keyword classifier used when no generative backend
// produced a usable analysis.
package classify

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/issuelens/backend/internal/models"
	"github.com/issuelens/backend/internal/utils"
)

const (
	maxSummaryLen     = 1000
	maxBodySentences  = 3
	minSentenceLen    = 15
	minBodyLen        = 20
	noContentSummary  = "No content provided: the issue has no title or description."
	noSentenceSummary = "Issue requires attention and further investigation."
	notABugImpact     = "Not a bug - impact assessment not applicable."
	genericLabel      = "needs-triage"
)

type typeRule struct {
	Type     models.IssueType
	Keywords []string
}

// Evaluated in order, first match wins.
var typeRules = []typeRule{
	{models.TypeBug, []string{"bug", "error", "crash", "fail", "broken", "issue", "problem"}},
	{models.TypeFeatureRequest, []string{"feature", "enhancement", "add", "support", "implement"}},
	{models.TypeDocumentation, []string{"doc", "documentation", "readme", "guide", "tutorial"}},
	{models.TypeQuestion, []string{"how", "what", "why", "question", "?"}},
}

type priorityRule struct {
	Score         int
	Justification string
	Keywords      []string
}

// Critical is checked before low so that "critical ... minor" stays a 5.
var priorityRules = []priorityRule{
	{5, "Critical issue: security, stability, or data integrity concerns", []string{"critical", "urgent", "security", "data loss", "crash"}},
	{4, "High priority: significant impact on functionality", []string{"important", "major", "severe", "blocking"}},
	{2, "Low priority: minor issue with limited impact", []string{"minor", "small", "trivial"}},
}

var defaultPriority = priorityRule{Score: 3, Justification: "Medium priority: moderate impact, should be addressed"}

type topicRule struct {
	Label   string
	Pattern *regexp.Regexp
}

var topicRules = []topicRule{
	{"UI", regexp.MustCompile(`\bui\b|interface`)},
	{"API", regexp.MustCompile(`\bapi\b`)},
	{"performance", regexp.MustCompile(`performance`)},
	{"security", regexp.MustCompile(`security`)},
}

var typeImpactSentence = map[models.IssueType]string{
	models.TypeBug:            "This defect prevents the affected functionality from working as expected and should be investigated.",
	models.TypeFeatureRequest: "Implementing this request would extend the project's current capabilities.",
	models.TypeDocumentation:  "Improving the documentation would help users understand and adopt the project.",
	models.TypeQuestion:       "Answering this question would unblock the reporter and may help others with the same doubt.",
	models.TypeOther:          "The issue needs further review to decide on the appropriate follow-up.",
}

// Default is returned for a missing or unusable ticket.
func Default() models.AnalysisResult {
	return models.AnalysisResult{
		Summary:         "Unable to analyze issue. The issue data provided was invalid or incomplete.",
		Type:            models.TypeOther,
		PriorityScore:   "3/5 - Medium priority: Unable to assess, requires manual review",
		SuggestedLabels: []string{"needs-triage", "manual-review"},
		PotentialImpact: models.StringPtr("Impact assessment not available due to insufficient data."),
	}
}

// Classify produces an analysis from keyword heuristics only. The result is a pure function of
// the ticket title and body.
func Classify(t *models.Ticket) models.AnalysisResult {
	if t == nil || t.IsEmpty() {
		return Default()
	}

	title := utils.StripHTML(t.Title)
	body := utils.StripHTML(t.Body)
	text := strings.ToLower(title + " " + body)
	if strings.TrimSpace(text) == "" {
		res := Default()
		res.Summary = noContentSummary
		return res
	}

	issueType := DetectType(text)
	priority := detectPriority(text)

	return models.AnalysisResult{
		Summary:         buildSummary(title, body, issueType),
		Type:            issueType,
		PriorityScore:   fmt.Sprintf("%d/5 - %s", priority.Score, priority.Justification),
		SuggestedLabels: suggestLabels(issueType, priority.Score, text),
		PotentialImpact: models.StringPtr(impactFor(issueType, priority.Score)),
	}
}

// DetectType matches lower-cased text against the type keyword table.
func DetectType(text string) models.IssueType {
	for _, rule := range typeRules {
		if containsAny(text, rule.Keywords) {
			return rule.Type
		}
	}
	return models.TypeOther
}

func detectPriority(text string) priorityRule {
	for _, rule := range priorityRules {
		if containsAny(text, rule.Keywords) {
			return rule
		}
	}
	return defaultPriority
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

func buildSummary(title, body string, issueType models.IssueType) string {
	var parts []string
	if title != "" {
		parts = append(parts, utils.EnsurePeriod(utils.CapitalizeFirst(title)))
	}
	parts = append(parts, leadingSentences(body, maxBodySentences)...)

	if len(parts) == 0 {
		parts = append(parts, noSentenceSummary)
	}
	parts = append(parts, typeImpactSentence[issueType])

	summary := strings.Join(parts, " ")
	if cut, truncated := utils.Truncate(summary, maxSummaryLen-3); truncated {
		summary = strings.TrimSpace(cut) + "..."
	}
	return summary
}

func leadingSentences(body string, limit int) []string {
	if len([]rune(body)) <= minBodyLen {
		return nil
	}
	var out []string
	for _, raw := range strings.Split(body, ".") {
		if len(out) == limit {
			break
		}
		sentence := strings.Join(strings.Fields(raw), " ")
		if len([]rune(sentence)) < minSentenceLen || isMarkup(sentence) {
			continue
		}
		out = append(out, utils.EnsurePeriod(utils.CapitalizeFirst(sentence)))
	}
	return out
}

func isMarkup(s string) bool {
	for _, prefix := range []string{"#", "`", ">", "|", "<!--"} {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}

func suggestLabels(issueType models.IssueType, score int, text string) []string {
	labels := []string{strings.ReplaceAll(string(issueType), "_", "-")}
	switch {
	case score >= 4:
		labels = append(labels, "priority:high")
	case score <= 2:
		labels = append(labels, "priority:low")
	default:
		labels = append(labels, "priority:medium")
	}
	for _, topic := range topicRules {
		if topic.Pattern.MatchString(text) {
			labels = append(labels, topic.Label)
			break
		}
	}
	if len(labels) > 3 {
		labels = labels[:3]
	}
	if len(labels) < 2 {
		labels = append(labels, genericLabel)
	}
	return labels
}

func impactFor(issueType models.IssueType, score int) string {
	if issueType != models.TypeBug {
		return notABugImpact
	}
	switch {
	case score >= 4:
		return "This bug may significantly impact user experience and could affect core functionality."
	case score >= 3:
		return "This bug may cause inconvenience to users but does not block critical workflows."
	default:
		return "This bug has minimal impact on most users and represents a minor issue."
	}
}
