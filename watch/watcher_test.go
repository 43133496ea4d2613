package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/verseblueprint/blueprint"
	"github.com/teranos/verseblueprint/errors"
	"github.com/teranos/verseblueprint/graphstore"
	"github.com/teranos/verseblueprint/versegen"
)

type result struct {
	graph  string
	output string
	err    error
}

func newGraph(t *testing.T, svc *blueprint.Service, name string) *blueprint.Graph {
	t.Helper()
	g := svc.NewGraph(name)
	svc.AddVariable(g, blueprint.NewVariable("Score"))
	node := svc.AddNode(g, blueprint.KindEvent, "OnButton", 0, 0)
	require.NoError(t, svc.SetNodeProperty(g, node.ID, blueprint.PropClassName, "button_device"))
	require.NoError(t, svc.SetNodeProperty(g, node.ID, blueprint.PropEventName, "InteractedWithEvent"))
	return g
}

func TestOutputPath(t *testing.T) {
	tests := []struct {
		name      string
		graphPath string
		filePath  string
		want      string
	}{
		{name: "next to graph", graphPath: "/proj/graphs/Counter.blueprint", want: "/proj/graphs/Counter.verse"},
		{name: "yaml record", graphPath: "/proj/graphs/Counter.yaml", want: "/proj/graphs/Counter.verse"},
		{name: "relative file path", graphPath: "/proj/graphs/Counter.blueprint", filePath: "../Verse/counter_device.verse", want: "/proj/Verse/counter_device.verse"},
		{name: "absolute file path", graphPath: "/proj/graphs/Counter.blueprint", filePath: "/out/counter.verse", want: "/out/counter.verse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := &blueprint.Graph{FilePath: tt.filePath}
			assert.Equal(t, tt.want, OutputPath(tt.graphPath, g))
		})
	}
}

func TestRegenerate(t *testing.T) {
	log := zaptest.NewLogger(t).Sugar()
	svc := blueprint.NewService(log)
	store := graphstore.New(svc, log)
	dir := t.TempDir()

	g := newGraph(t, svc, "Counter")
	graphPath := filepath.Join(dir, "Counter.blueprint")
	require.NoError(t, store.Save(g, graphPath))

	w := New(dir, store, versegen.NewGenerator(versegen.WithLogger(log)), log)
	out, err := w.Regenerate(graphPath)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "Counter.verse"), out)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, versegen.Generate(g), string(data))
}

func TestRegenerate_MissingGraph(t *testing.T) {
	svc := blueprint.NewService(nil)
	w := New(t.TempDir(), graphstore.New(svc, nil), versegen.NewGenerator(), nil)

	_, err := w.Regenerate(filepath.Join(t.TempDir(), "Gone.blueprint"))
	require.Error(t, err)
	assert.True(t, errors.IsNotFoundError(err))
}

func TestRegenerate_CorruptRecordKeepsOutput(t *testing.T) {
	log := zaptest.NewLogger(t).Sugar()
	svc := blueprint.NewService(log)
	store := graphstore.New(svc, log)
	dir := t.TempDir()
	graphPath := filepath.Join(dir, "Door.blueprint")

	g := svc.NewGraph("Door")
	svc.AddVariable(g, blueprint.NewVariable("Count"))
	require.NoError(t, store.Save(g, graphPath))

	w := New(dir, store, versegen.NewGenerator(), log)
	out, err := w.Regenerate(graphPath)
	require.NoError(t, err)
	before, err := os.ReadFile(out)
	require.NoError(t, err)
	require.Contains(t, string(before), "Count")

	require.NoError(t, os.WriteFile(graphPath, []byte(`{"format_version": "1.0.0", "graph": {"na`), 0644))

	_, err = w.Regenerate(graphPath)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrIncompatibleRecord))

	after, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
}

func TestRun(t *testing.T) {
	log := zaptest.NewLogger(t).Sugar()
	svc := blueprint.NewService(log)
	store := graphstore.New(svc, log)
	dir := t.TempDir()

	require.NoError(t, store.Save(newGraph(t, svc, "First"), filepath.Join(dir, "First.blueprint")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644))

	results := make(chan result, 16)
	w := New(dir, store, versegen.NewGenerator(), log,
		WithDebounce(20*time.Millisecond),
		WithRateLimit(0, 0),
		OnResult(func(graph, output string, err error) {
			results <- result{graph, output, err}
		}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	first := waitResult(t, results)
	require.NoError(t, first.err)
	assert.Equal(t, filepath.Join(dir, "First.blueprint"), first.graph)
	assert.FileExists(t, filepath.Join(dir, "First.verse"))

	second := newGraph(t, svc, "Second")
	require.NoError(t, store.Save(second, filepath.Join(dir, "Second.yaml")))

	got := waitResult(t, results)
	require.NoError(t, got.err)
	assert.Equal(t, filepath.Join(dir, "Second.yaml"), got.graph)

	data, err := os.ReadFile(filepath.Join(dir, "Second.verse"))
	require.NoError(t, err)
	assert.Equal(t, versegen.Generate(second), string(data))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestRun_MissingDirectory(t *testing.T) {
	svc := blueprint.NewService(nil)
	w := New(filepath.Join(t.TempDir(), "gone"), graphstore.New(svc, nil), versegen.NewGenerator(), nil)
	assert.Error(t, w.Run(context.Background()))
}

func waitResult(t *testing.T, results <-chan result) result {
	t.Helper()
	select {
	case r := <-results:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for regeneration")
		return result{}
	}
}
