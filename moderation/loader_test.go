package moderation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_Load_Embedded_Word_Lists(t *testing.T) {
	req := require.New(t)
	loader := NewCensoredLoader(DefaultWordLists())

	data, err := loader.LoadAll("censored")
	req.NoError(err)
	req.NotEmpty(data.Words)
	req.ElementsMatch([]string{"en", "fr"}, data.Languages)
	req.Contains(data.Words, "merde")
}
