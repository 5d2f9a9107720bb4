package classifier

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anthology/autoposter/internal/store"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{
			name:  "bare object",
			input: `{"diversification_score": 7}`,
			want:  `{"diversification_score": 7}`,
		},
		{
			name:  "wrapped in prose",
			input: "Here is the result:\n{\"diversification_score\": 3}\nHope that helps.",
			want:  `{"diversification_score": 3}`,
		},
		{
			name:  "code fence",
			input: "```json\n{\"topic_categories\": [{\"label\": \"love\", \"weight\": 0.5}]}\n```",
			want:  `{"topic_categories": [{"label": "love", "weight": 0.5}]}`,
		},
		{
			name:  "nested objects",
			input: `{"a": {"b": 1}, "c": 2} trailing`,
			want:  `{"a": {"b": 1}, "c": 2}`,
		},
		{
			name:  "braces inside strings",
			input: `{"label": "a {weird} value"}`,
			want:  `{"label": "a {weird} value"}`,
		},
		{
			name:    "no object",
			input:   "I cannot classify this.",
			wantErr: true,
		},
		{
			name:    "unbalanced",
			input:   `{"label": "oops"`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestCategoryResponseDecoding(t *testing.T) {
	raw, err := ExtractJSON(`The distribution is:
{"mood_categories": [
  {"label": "melancholic", "weight": 0.4},
  {"label": "hopeful", "weight": 0.6}
]}`)
	require.NoError(t, err)

	var decoded map[string][]store.Category
	require.NoError(t, json.Unmarshal(raw, &decoded))

	cats := decoded["mood_categories"]
	require.Len(t, cats, 2)
	assert.Equal(t, "melancholic", cats[0].Label)
	assert.InDelta(t, 0.4, cats[0].Weight, 0.001)
}
