package server

import (
	"fmt"
	"strings"
	"time"
)

// defaultQuestions is the scripted interview track used when no question
// source is configured.
var defaultQuestions = []string{
	"Tell me about yourself and your background.",
	"Describe a challenging technical problem you solved recently. What made it hard?",
	"How do you approach debugging an issue you have never seen before?",
	"Tell me about a time you disagreed with a teammate on a design. How was it resolved?",
	"What would you want to learn or improve in your first six months here?",
}

var hedgeWords = []string{"maybe", "i think", "i guess", "not sure", "probably", "kind of", "sort of"}

var technicalTerms = []string{
	"design", "test", "debug", "deploy", "scale", "performance", "database",
	"api", "service", "concurrency", "cache", "latency", "refactor", "review",
}

// Scores holds one answer's evaluation on the three interview axes, each
// 0-100.
type Scores struct {
	Technical     int
	Communication int
	Confidence    int
}

// Decision is the aggregate hiring recommendation.
type Decision struct {
	Recommendation string
	FinalScore     float64
}

// Agent runs one scripted interview: it serves questions in order, scores
// each answer, and issues the final decision. Not safe for concurrent use;
// each connection owns one agent.
type Agent struct {
	candidate string
	cvText    string
	questions []string
	asked     int
	scores    []Scores
	now       func() time.Time
}

// NewAgent creates an agent for one candidate.
func NewAgent(candidate, cvText string, now func() time.Time) *Agent {
	if now == nil {
		now = time.Now
	}
	return &Agent{
		candidate: candidate,
		cvText:    cvText,
		questions: defaultQuestions,
		now:       now,
	}
}

// NextQuestion returns the next scripted question, or false when the script
// is exhausted.
func (a *Agent) NextQuestion() (string, bool) {
	if a.asked >= len(a.questions) {
		return "", false
	}
	q := a.questions[a.asked]
	a.asked++
	return q, true
}

// ProcessAnswer scores one answer and records it.
func (a *Agent) ProcessAnswer(answer string) Scores {
	s := scoreAnswer(answer)
	a.scores = append(a.scores, s)
	return s
}

// Decide aggregates the recorded scores into the final recommendation:
// Hire when the average exceeds 75, Reject otherwise.
func (a *Agent) Decide() Decision {
	agg := a.aggregate()
	avg := float64(agg.Technical+agg.Communication+agg.Confidence) / 3
	rec := "Reject"
	if avg > 75 {
		rec = "Hire"
	}
	return Decision{
		Recommendation: rec,
		FinalScore:     float64(int(avg*100)) / 100,
	}
}

func (a *Agent) aggregate() Scores {
	if len(a.scores) == 0 {
		return Scores{}
	}
	var sum Scores
	for _, s := range a.scores {
		sum.Technical += s.Technical
		sum.Communication += s.Communication
		sum.Confidence += s.Confidence
	}
	n := len(a.scores)
	return Scores{
		Technical:     sum.Technical / n,
		Communication: sum.Communication / n,
		Confidence:    sum.Confidence / n,
	}
}

// Report renders the human-readable interview report.
func (a *Agent) Report(d Decision) string {
	agg := a.aggregate()
	var b strings.Builder
	b.WriteString("INTERVIEW REPORT\n")
	b.WriteString("----------------\n")
	fmt.Fprintf(&b, "Date: %s\n", a.now().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Candidate: %s\n\n", a.candidate)
	b.WriteString("SCORES:\n")
	fmt.Fprintf(&b, "- Technical: %d\n", agg.Technical)
	fmt.Fprintf(&b, "- Communication: %d\n", agg.Communication)
	fmt.Fprintf(&b, "- Confidence: %d\n\n", agg.Confidence)
	fmt.Fprintf(&b, "FINAL DECISION: %s\n", strings.ToUpper(d.Recommendation))
	fmt.Fprintf(&b, "Overall Score: %.2f\n\n", d.FinalScore)
	b.WriteString("FEEDBACK:\n")
	b.WriteString(feedback(agg))
	return b.String()
}

func feedback(agg Scores) string {
	var lines []string
	if agg.Technical > 80 {
		lines = append(lines, "Strong technical understanding.")
	} else {
		lines = append(lines, "Needs improvement in technical concepts.")
	}
	if agg.Communication > 80 {
		lines = append(lines, "Clear and articulate communication.")
	}
	return strings.Join(lines, "\n")
}

// scoreAnswer is a deterministic heuristic evaluation: substance from
// technical vocabulary, communication from structure and length, confidence
// from the absence of hedging.
func scoreAnswer(answer string) Scores {
	lower := strings.ToLower(answer)
	words := strings.Fields(lower)

	technical := 50
	for _, term := range technicalTerms {
		if strings.Contains(lower, term) {
			technical += 6
		}
	}

	communication := 40
	switch {
	case len(words) >= 80:
		communication = 90
	case len(words) >= 40:
		communication = 80
	case len(words) >= 15:
		communication = 65
	}

	confidence := 85
	for _, hedge := range hedgeWords {
		confidence -= 10 * strings.Count(lower, hedge)
	}

	return Scores{
		Technical:     clampScore(technical),
		Communication: clampScore(communication),
		Confidence:    clampScore(confidence),
	}
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
