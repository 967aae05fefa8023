package coaching

import "strings"

const (
	SentimentPositive  = "positive"
	SentimentNegative  = "negative"
	SentimentConcerned = "concerned"
	SentimentNeutral   = "neutral"

	UrgencyLow    = "low"
	UrgencyMedium = "medium"
	UrgencyHigh   = "high"
)

type Objection struct {
	Objection         string `json:"objection"`
	SuggestedResponse string `json:"suggestedResponse"`
}

type QuickAnalysis struct {
	Sentiment      string      `json:"sentiment"`
	Urgency        string      `json:"urgency"`
	Objections     []Objection `json:"objections"`
	IntentKeywords []string    `json:"intentKeywords"`
	WordCount      int         `json:"wordCount"`
}

var (
	positiveWords = []string{"great", "love", "perfect", "interested", "yes", "sounds good"}
	negativeWords = []string{"not interested", "no", "expensive", "wrong", "busy", "later"}
	concernWords  = []string{"worried", "concerned", "unsure", "maybe", "think about"}
)

// objectionResponses is ordered; the first match drives the coaching.
var objectionResponses = []Objection{
	{"too expensive", "Price reflects market value - let me show you recent comparables in the area."},
	{"need to think", "I understand - what specific aspects would you like to discuss?"},
	{"want to see more", "Great idea - I have 3 similar properties that might interest you."},
	{"wrong location", "Location is key - what areas are you most interested in?"},
	{"too small", "Space is important - what's your ideal square meterage?"},
	{"not ready", "No pressure - when were you hoping to make a move?"},
}

var intents = []struct {
	name  string
	words []string
}{
	{"buying", []string{"buy", "purchase", "looking for"}},
	{"selling", []string{"sell", "selling", "list my"}},
	{"viewing", []string{"see", "look at", "inspection", "view"}},
	{"pricing", []string{"price", "cost", "budget", "afford"}},
	{"timeline", []string{"when", "timeline", "moving", "settle"}},
}

// AnalyzeQuick is a keyword pass over the transcript. Matching is plain
// substring, so "no" also matches inside "know".
func AnalyzeQuick(transcript string) QuickAnalysis {
	text := strings.ToLower(transcript)
	qa := QuickAnalysis{
		Sentiment:      SentimentNeutral,
		Urgency:        UrgencyLow,
		Objections:     []Objection{},
		IntentKeywords: []string{},
		WordCount:      len(strings.Split(transcript, " ")),
	}

	switch {
	case containsAny(text, positiveWords):
		qa.Sentiment = SentimentPositive
	case containsAny(text, negativeWords):
		qa.Sentiment = SentimentNegative
		qa.Urgency = UrgencyHigh
	case containsAny(text, concernWords):
		qa.Sentiment = SentimentConcerned
		qa.Urgency = UrgencyMedium
	}

	for _, o := range objectionResponses {
		if strings.Contains(text, o.Objection) {
			qa.Objections = append(qa.Objections, o)
		}
	}
	for _, in := range intents {
		if containsAny(text, in.words) {
			qa.IntentKeywords = append(qa.IntentKeywords, in.name)
		}
	}
	return qa
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}
