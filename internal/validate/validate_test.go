package validate

import (
	"context"
	"testing"

	"github.com/kadirpekel-labs/lcbench/internal/modelclient"
	"github.com/kadirpekel-labs/lcbench/internal/prompt"
	"github.com/kadirpekel-labs/lcbench/internal/question"
	"github.com/kadirpekel-labs/lcbench/internal/tokenizer"
	"github.com/stretchr/testify/require"
)

const templateYAML = `
testing:
  system: "Answer using only the provided context."
  user: "Context: {context}\nQuestion: {question}\nChoices: {choices}"
`

type fakeInvoker struct {
	reply  string
	status modelclient.Status
}

func (f fakeInvoker) Call(_ context.Context, _, _ string) (string, modelclient.Status, error) {
	return f.reply, f.status, nil
}

func mustTokenizer(t *testing.T) *tokenizer.Tokenizer {
	t.Helper()
	tok, err := tokenizer.New(tokenizer.DefaultEncoding)
	require.NoError(t, err)
	return tok
}

func baseQuestion() question.Question {
	return question.Question{
		Text:     "What color is the sky?",
		Kind:     question.KindSingleChoice,
		Choices:  map[string]string{"a": "blue", "b": "green"},
		Answer:   []string{"a"},
		Position: question.Position{StartPos: 0, EndPos: 5},
	}
}

func TestValidate_ScoreAboveThresholdIsValid(t *testing.T) {
	tok := mustTokenizer(t)
	store, err := prompt.LoadBytes([]byte(templateYAML))
	require.NoError(t, err)

	v := New(tok, fakeInvoker{reply: `{"answer": ["a"]}`, status: modelclient.StatusSuccess}, store, "validator-model")
	result, err := v.Validate(context.Background(), tok.Encode("the sky is blue here today"), baseQuestion())
	require.NoError(t, err)
	require.True(t, result.IsValid)
	require.Empty(t, result.FailureReasons)
	require.Equal(t, "validator-model", result.ValidatorModel)
}

func TestValidate_WrongAnswerIsInvalid(t *testing.T) {
	tok := mustTokenizer(t)
	store, err := prompt.LoadBytes([]byte(templateYAML))
	require.NoError(t, err)

	v := New(tok, fakeInvoker{reply: `{"answer": ["b"]}`, status: modelclient.StatusSuccess}, store, "validator-model")
	result, err := v.Validate(context.Background(), tok.Encode("the sky is blue here today"), baseQuestion())
	require.NoError(t, err)
	require.False(t, result.IsValid)
	require.NotEmpty(t, result.FailureReasons)
}

func TestValidate_UnparseableReplyIsInvalid(t *testing.T) {
	tok := mustTokenizer(t)
	store, err := prompt.LoadBytes([]byte(templateYAML))
	require.NoError(t, err)

	v := New(tok, fakeInvoker{reply: "I cannot determine the answer.", status: modelclient.StatusSuccess}, store, "validator-model")
	result, err := v.Validate(context.Background(), tok.Encode("the sky is blue here today"), baseQuestion())
	require.NoError(t, err)
	require.False(t, result.IsValid)
	require.Contains(t, result.FailureReasons, "parsing_error")
}

func TestValidate_ModelErrorIsInvalid(t *testing.T) {
	tok := mustTokenizer(t)
	store, err := prompt.LoadBytes([]byte(templateYAML))
	require.NoError(t, err)

	v := New(tok, fakeInvoker{status: modelclient.StatusTimeout}, store, "validator-model")
	result, err := v.Validate(context.Background(), tok.Encode("the sky is blue here today"), baseQuestion())
	require.NoError(t, err)
	require.False(t, result.IsValid)
	require.Contains(t, result.FailureReasons, "model_status_timeout")
}
