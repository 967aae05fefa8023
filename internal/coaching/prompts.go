package coaching

import (
	"fmt"
	"strings"

	"github.com/oakmontrealty/voicrm-sydney/internal/domain"
)

const (
	StageOpening           = "opening"
	StageDiscovery         = "discovery"
	StagePresentation      = "presentation"
	StageHandlingObjection = "handling_objection"
	StageClosing           = "closing"
)

var stagePrompts = map[string]string{
	StageOpening: `OPENING STAGE - First 2 minutes of call
Focus: Build rapport, qualify need, understand timeline
Key Questions: Why looking? When planning to move? Budget range?
Avoid: Aggressive sales tactics, immediate property pushing`,

	StageDiscovery: `DISCOVERY STAGE - Understanding client needs
Focus: Property requirements, location preferences, deal breakers
Key Questions: Preferred suburbs? Must-have features? Family situation?
Avoid: Overwhelming with options before understanding needs`,

	StagePresentation: `PRESENTATION STAGE - Showing properties/solutions
Focus: Match properties to stated needs, highlight value
Key Questions: How does this fit your needs? What concerns you?
Avoid: Generic descriptions, ignoring stated preferences`,

	StageHandlingObjection: `OBJECTION HANDLING - Address concerns directly
Focus: Understand root concern, provide solutions, maintain rapport
Key Techniques: Feel-felt-found, evidence-based responses
Avoid: Arguing, dismissing concerns, high-pressure tactics`,

	StageClosing: `CLOSING STAGE - Securing next steps
Focus: Clear next actions, timeline, commitment level
Key Questions: Ready to view? When suits for inspection? Any concerns?
Avoid: Assumptive closes without buy-in, rushed decisions`,
}

type stageTip struct {
	tip          string
	nextQuestion string
}

var stageTips = map[string]stageTip{
	StageOpening:      {"Build rapport and understand their motivation", "What's prompting you to look for a new property?"},
	StageDiscovery:    {"Ask about location and property preferences", "Which suburbs are you most interested in?"},
	StagePresentation: {"Highlight features that match their stated needs", "How does this property fit what you're looking for?"},
	StageClosing:      {"Suggest specific next steps and timeline", "When would suit you for an inspection?"},
}

const systemPrompt = "You are an expert Australian real estate sales coach. " +
	"Provide immediate, actionable coaching tips. Always respond in valid JSON format with no additional text."

const responseFormat = `{
  "tip": "One specific action to take now (max 15 words)",
  "nextQuestion": "Exact question to ask next",
  "urgency": "low|medium|high",
  "sentiment": "positive|neutral|negative|concerned",
  "stage": "opening|discovery|presentation|handling_objection|closing",
  "confidence": 0.85,
  "keywords": ["key", "detected", "words"]
}`

// StageGuidance returns the prompt block for stage, defaulting to discovery.
func StageGuidance(stage string) string {
	if p, ok := stagePrompts[stage]; ok {
		return p
	}
	return stagePrompts[StageDiscovery]
}

type callContext struct {
	contact     *domain.Contact
	transcripts []domain.Transcript
}

func buildPrompt(cc callContext, stage, transcript string, qa QuickAnalysis) string {
	var b strings.Builder
	fmt.Fprintf(&b, "STAGE: %s\n%s\n\n", strings.ToUpper(stage), StageGuidance(stage))

	if c := cc.contact; c != nil {
		fmt.Fprintf(&b, "CLIENT: %s %s\n", c.FirstName, c.LastName)
		fmt.Fprintf(&b, "Lead Score: %d/10\n", c.LeadScore)
		fmt.Fprintf(&b, "Status: %s\n", c.Status)
	}
	if len(cc.transcripts) > 0 {
		b.WriteString("RECENT TRANSCRIPT:\n")
		for i := len(cc.transcripts) - 1; i >= 0; i-- {
			t := cc.transcripts[i]
			fmt.Fprintf(&b, "%s: %s\n", t.Speaker, t.Text)
		}
	}
	if len(qa.Objections) > 0 {
		fmt.Fprintf(&b, "OBJECTION DETECTED: %s\n", qa.Objections[0].Objection)
	}
	fmt.Fprintf(&b, "SENTIMENT: %s\n", qa.Sentiment)
	fmt.Fprintf(&b, "URGENCY: %s\n", qa.Urgency)

	fmt.Fprintf(&b, "\nLATEST TRANSCRIPT:\n%q\n\nProvide coaching in this exact JSON format:\n%s", transcript, responseFormat)
	return b.String()
}
