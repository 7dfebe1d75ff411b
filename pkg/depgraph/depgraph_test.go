package depgraph_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/sasspipe/pkg/depgraph"
)

func sample() *depgraph.Graph {
	graph := depgraph.New()
	graph.Set("/p/app.scss", []string{"/p/_layout.scss", "/p/_colors.scss"})
	graph.Set("/p/admin.scss", []string{"/p/_colors.scss", "/p/_forms.scss"})
	graph.Set("/p/print.scss", nil)

	return graph
}

func TestGraph_Dependencies(t *testing.T) {
	t.Parallel()

	graph := sample()

	assert.Equal(t, []string{"/p/_layout.scss", "/p/_colors.scss"}, graph.Dependencies("/p/app.scss"))
	assert.Empty(t, graph.Dependencies("/p/print.scss"))
	assert.Empty(t, graph.Dependencies("/p/unknown.scss"))
}

func TestGraph_SetReplacesDependencies(t *testing.T) {
	t.Parallel()

	graph := sample()
	graph.Set("/p/app.scss", []string{"/p/_grid.scss", "/p/_grid.scss", "/p/app.scss"})

	assert.Equal(t, []string{"/p/_grid.scss"}, graph.Dependencies("/p/app.scss"))
	assert.Equal(t, []string{"/p/admin.scss"}, graph.Dependents("/p/_colors.scss"))
	assert.Empty(t, graph.Dependents("/p/_layout.scss"))
}

func TestGraph_Dependents(t *testing.T) {
	t.Parallel()

	graph := sample()

	assert.Equal(t, []string{"/p/admin.scss", "/p/app.scss"}, graph.Dependents("/p/_colors.scss"))
	assert.Equal(t, []string{"/p/admin.scss"}, graph.Dependents("/p/_forms.scss"))
	assert.Empty(t, graph.Dependents("/p/missing.scss"))
}

func TestGraph_DependentsTransitive(t *testing.T) {
	t.Parallel()

	graph := depgraph.New()
	graph.Set("/p/a.scss", []string{"/p/b.scss"})
	graph.Set("/p/b.scss", []string{"/p/c.scss"})

	assert.Equal(t, []string{"/p/a.scss", "/p/b.scss"}, graph.Dependents("/p/c.scss"))
}

func TestGraph_Affected(t *testing.T) {
	t.Parallel()

	graph := sample()

	assert.Equal(t, []string{"/p/admin.scss", "/p/app.scss"}, graph.Affected("/p/_colors.scss"))
	assert.Equal(t, []string{"/p/print.scss"}, graph.Affected("/p/print.scss"))
	assert.Equal(t, []string{"/p/admin.scss", "/p/print.scss"}, graph.Affected("/p/_forms.scss", "/p/print.scss"))
	assert.Empty(t, graph.Affected("/p/elsewhere.scss"))
}

func TestGraph_EntriesAndRemove(t *testing.T) {
	t.Parallel()

	graph := sample()
	assert.Equal(t, []string{"/p/admin.scss", "/p/app.scss", "/p/print.scss"}, graph.Entries())

	assert.True(t, graph.Remove("/p/admin.scss"))
	assert.False(t, graph.Remove("/p/admin.scss"))
	assert.False(t, graph.Remove("/p/never.scss"))

	assert.Equal(t, []string{"/p/app.scss", "/p/print.scss"}, graph.Entries())
	assert.Empty(t, graph.Dependents("/p/_forms.scss"))
}

func TestGraph_Toposort(t *testing.T) {
	t.Parallel()

	graph := depgraph.New()
	graph.Set("/p/a.scss", []string{"/p/b.scss", "/p/c.scss"})
	graph.Set("/p/b.scss", []string{"/p/c.scss"})

	order, ok := graph.Toposort()
	require.True(t, ok)
	assert.Equal(t, []string{"/p/c.scss", "/p/b.scss", "/p/a.scss"}, order)
}

func TestGraph_ToposortCycle(t *testing.T) {
	t.Parallel()

	graph := depgraph.New()
	graph.Set("/p/a.scss", []string{"/p/b.scss"})
	graph.Set("/p/b.scss", []string{"/p/a.scss"})
	graph.Set("/p/c.scss", nil)

	order, ok := graph.Toposort()
	assert.False(t, ok)
	assert.Equal(t, []string{"/p/c.scss"}, order)
}

func TestGraph_Serialize(t *testing.T) {
	t.Parallel()

	graph := depgraph.New()
	graph.Set("/p/b.scss", []string{"/p/_z.scss", "/p/_y.scss"})

	expected := "digraph sasspipe {\n" +
		"  \"/p/b.scss\" -> \"/p/_y.scss\"\n" +
		"  \"/p/b.scss\" -> \"/p/_z.scss\"\n" +
		"}"
	assert.Equal(t, expected, graph.Serialize())
}

func TestGraph_ConcurrentSet(t *testing.T) {
	t.Parallel()

	graph := depgraph.New()

	var wg sync.WaitGroup

	for _, entry := range []string{"/a.scss", "/b.scss", "/c.scss", "/d.scss"} {
		wg.Add(1)

		go func() {
			defer wg.Done()

			graph.Set(entry, []string{"/_shared.scss"})
		}()
	}

	wg.Wait()

	assert.Equal(t, []string{"/a.scss", "/b.scss", "/c.scss", "/d.scss"}, graph.Affected("/_shared.scss"))
}
