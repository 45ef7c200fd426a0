package schedule

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerSummaryJSON_SpecialtyOptional(t *testing.T) {
	generalist := summarize(Worker{ID: uuid.New(), Name: "Alice"})
	data, err := json.Marshal(generalist)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "specialty", "generalists carry no specialty field")

	coloring := "Coloring"
	specialist := summarize(Worker{ID: uuid.New(), Name: "Bob", Specialty: &coloring})
	data, err = json.Marshal(specialist)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"specialty":"Coloring"`)
}
