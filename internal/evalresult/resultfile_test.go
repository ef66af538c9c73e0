package evalresult

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteAll_ReadAll_RoundTrip(t *testing.T) {
	meta := NewMetadata(Metadata{
		ModelName:       "gpt-test",
		QuestionSetPath: "questions.jsonl",
		ContextLengths:  []int{1000, 2000},
		DepthMode:       "uniform",
	})
	require.NotEmpty(t, meta.RunID)
	require.NotEmpty(t, meta.TestedAt)

	results := []Result{
		{QuestionIndex: 0, ContextLength: 1000, ParsingStatus: StatusSuccess, Score: 1.0, CorrectAnswer: []string{"a"}},
		{QuestionIndex: 1, ContextLength: 2000, ParsingStatus: StatusTimeout, CorrectAnswer: []string{"b"}},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteAll(&buf, &meta, results))

	gotMeta, gotResults, err := ReadAll(&buf)
	require.NoError(t, err)
	require.NotNil(t, gotMeta)
	require.Equal(t, meta.RunID, gotMeta.RunID)
	require.Equal(t, results, gotResults)
}

func TestReadAll_NoMetadataLine(t *testing.T) {
	body := `{"question_index":0,"context_length":1000,"parsing_status":"success","correct_answer":["a"]}
{"question_index":1,"context_length":1000,"parsing_status":"timeout","correct_answer":["b"]}
`
	meta, results, err := ReadAll(strings.NewReader(body))
	require.NoError(t, err)
	require.Nil(t, meta)
	require.Len(t, results, 2)
}
