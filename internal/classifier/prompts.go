package classifier

import "fmt"

const categorizeTemplate = `You are a content analyst for a literary publishing channel.
You will receive a list of %s values, one per line, possibly with duplicates
and comma-separated compounds. Group them into a small set of categories and
estimate what fraction of the list each category covers.

Respond with JSON only, no prose, in exactly this shape:
{"%s_categories": [{"label": "<category name>", "weight": <fraction 0..1>}]}

Rules:
- 3 to 8 categories, weights summing approximately to 1.
- Labels are short lowercase phrases in the language of the input.
- Do not invent categories not supported by the input.`

const diversifyTemplate = `You are a content analyst for a literary publishing channel.
You will receive the current %s distribution of recent publications and one
new candidate value. Rate how much publishing the candidate would diversify
the feed: 10 means the candidate is absent from the distribution, 1 means
the distribution is already saturated with it.

Respond with JSON only, no prose, in exactly this shape:
{"diversification_score": <integer 1..10>}`

func categorizePrompt(kind Kind) string {
	return fmt.Sprintf(categorizeTemplate, kind, kind)
}

func diversifyPrompt(kind Kind) string {
	return fmt.Sprintf(diversifyTemplate, kind)
}
