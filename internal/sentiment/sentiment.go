package sentiment

import (
	"strings"

	"github.com/reddit-agent/internal/models"
)

// Classifier assigns a coarse sentiment label to a piece of text.
// The monitor depends only on this interface so the lexicon heuristic can
// be replaced by a real model without touching its control flow.
type Classifier interface {
	Classify(text string) models.Sentiment
}

// Lexicon is the default classifier: a lexical match against small
// positive and negative vocabularies. It is a cheap approximation, not a
// model.
type Lexicon struct {
	positive []string
	negative []string
}

// NewLexicon creates a classifier with the default vocabularies
func NewLexicon() *Lexicon {
	return &Lexicon{
		positive: []string{
			"love", "great", "awesome", "amazing", "excellent", "good",
			"best", "fantastic", "wonderful", "recommend", "happy",
			"impressed", "perfect", "helpful", "solid",
		},
		negative: []string{
			"hate", "terrible", "awful", "horrible", "bad", "worst",
			"broken", "useless", "scam", "disappointed", "avoid",
			"garbage", "annoying", "refund", "bug",
		},
	}
}

// Classify returns Unknown for empty text, Positive or Negative when one
// vocabulary outweighs the other, and Neutral otherwise.
func (l *Lexicon) Classify(text string) models.Sentiment {
	if strings.TrimSpace(text) == "" {
		return models.SentimentUnknown
	}

	words := strings.Fields(strings.ToLower(text))
	var pos, neg int
	for _, w := range words {
		w = strings.Trim(w, ".,!?;:'\"()[]")
		for _, p := range l.positive {
			if w == p {
				pos++
				break
			}
		}
		for _, n := range l.negative {
			if w == n {
				neg++
				break
			}
		}
	}

	switch {
	case pos > neg:
		return models.SentimentPositive
	case neg > pos:
		return models.SentimentNegative
	default:
		return models.SentimentNeutral
	}
}
