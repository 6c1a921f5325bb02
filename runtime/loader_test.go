package runtime

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_CensoredLoader_LoadAll(t *testing.T) {
	req := require.New(t)

	// Given the embedded default dictionaries
	loader := NewCensoredLoader(censoredFolder)

	// When loading them
	data, err := loader.LoadAll("censored")

	// Then every language file contributes its terms exactly once
	req.NoError(err)
	req.ElementsMatch([]string{"en", "fr"}, data.Languages)
	req.Contains(data.Words, "badger")
	req.Contains(data.Words, "blaireau")
	req.Len(data.Words, 6)
}

func Test_CensoredLoader_MissingDirectory(t *testing.T) {
	req := require.New(t)

	loader := NewCensoredLoader(censoredFolder)

	_, err := loader.LoadAll("nowhere")
	req.Error(err)
}
