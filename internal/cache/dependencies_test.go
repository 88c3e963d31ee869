package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinkAndDependents(t *testing.T) {
	c := New()
	c.Link("/src/Main.elm", []string{"/src/Page/Home.elm", "/src/Shared.elm"})
	c.Link("/src/Admin.elm", []string{"/src/Shared.elm"})

	assert.Equal(t, []string{"/src/Main.elm"}, c.Dependents("/src/Page/Home.elm"))
	assert.Equal(t, []string{"/src/Admin.elm", "/src/Main.elm"}, c.Dependents("/src/Shared.elm"))
	assert.Nil(t, c.Dependents("/src/Main.elm"))
}

func TestLinkReplacesEarlierRecord(t *testing.T) {
	c := New()
	c.Link("/src/Main.elm", []string{"/src/Old.elm"})
	c.Link("/src/Main.elm", []string{"/src/New.elm"})

	assert.Nil(t, c.Dependents("/src/Old.elm"))
	assert.Equal(t, []string{"/src/Main.elm"}, c.Dependents("/src/New.elm"))

	c.Link("/src/Main.elm", nil)
	assert.Nil(t, c.Dependents("/src/New.elm"))
	assert.Empty(t, c.deps.dependents)
	assert.Empty(t, c.deps.byParent)
}

func TestClearDropsLinks(t *testing.T) {
	c := New()
	_, err := c.GetOrCompute(context.Background(), "/src/Main.elm", func(context.Context, string) ([]byte, error) {
		return []byte("bundle"), nil
	})
	require.NoError(t, err)
	c.Link("/src/Main.elm", []string{"/src/Page/Home.elm"})

	c.Clear()
	assert.Nil(t, c.Dependents("/src/Page/Home.elm"))
}
