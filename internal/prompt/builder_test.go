package prompt

import (
	"testing"

	"github.com/kadirpekel-labs/lcbench/internal/question"
	"github.com/stretchr/testify/require"
)

func TestTestingBuilder_Build(t *testing.T) {
	store, err := LoadBytes([]byte(sampleYAML))
	require.NoError(t, err)

	b := TestingBuilder{Store: store}
	system, user := b.Build(question.Question{
		Text:    "What color is the sky?",
		Choices: map[string]string{"b": "green", "a": "blue"},
	}, "the sky is blue today")

	require.Contains(t, system, "provided context")
	require.Contains(t, user, "the sky is blue today")
	require.Contains(t, user, "What color is the sky?")
	require.Contains(t, user, "a) blue\nb) green")
}

func TestFormatChoices_Empty(t *testing.T) {
	require.Equal(t, "", formatChoices(nil))
}
