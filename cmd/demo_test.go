package main

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1F47E/geo-region-index/pkg/config"
	"github.com/1F47E/geo-region-index/pkg/index"
	"github.com/1F47E/geo-region-index/pkg/models"
)

func useTestConfig(t *testing.T) {
	t.Helper()
	prev := cfg
	cfg = &config.Config{
		Data:  config.DataConfig{Path: testData, Level: "district"},
		Index: config.IndexConfig{Kind: "grid"},
	}
	t.Cleanup(func() { cfg = prev })
}

func TestRunDemo(t *testing.T) {
	useTestConfig(t)

	events := make(chan tea.Msg)
	go runDemo(context.Background(), events, 500, 7)

	var (
		loaded   *demoLoadedMsg
		results  []demoKindResult
		progress int
		done     bool
	)
	for msg := range events {
		switch msg := msg.(type) {
		case demoLoadedMsg:
			loaded = &msg
		case demoProgressMsg:
			progress++
			assert.LessOrEqual(t, msg.percent, 1.0)
		case demoKindDoneMsg:
			results = append(results, demoKindResult(msg))
		case demoErrMsg:
			t.Fatalf("unexpected error: %v", msg.err)
		case demoDoneMsg:
			done = true
		}
	}

	require.True(t, done)
	require.NotNil(t, loaded)
	assert.Equal(t, 8, loaded.regions)
	assert.Equal(t, models.District, loaded.finest)
	assert.Equal(t, 100, progress)

	require.Len(t, results, 2)
	assert.Equal(t, index.KindGrid, results[0].kind)
	assert.Equal(t, index.KindRTree, results[1].kind)
	assert.Equal(t, results[0].resolved, results[1].resolved)
	assert.Zero(t, results[1].mismatches)
	assert.Positive(t, results[0].resolved)
	assert.NotEmpty(t, results[0].samples)
}

func TestRunDemoLoadError(t *testing.T) {
	useTestConfig(t)
	cfg.Data.Path = t.TempDir()

	events := make(chan tea.Msg)
	go runDemo(context.Background(), events, 10, 1)

	msg := <-events
	require.IsType(t, demoErrMsg{}, msg)
	_, open := <-events
	assert.False(t, open)
}

func TestRunDemoCancelled(t *testing.T) {
	useTestConfig(t)
	ctx, cancel := context.WithCancel(context.Background())

	events := make(chan tea.Msg)
	finished := make(chan struct{})
	go func() {
		runDemo(ctx, events, 1000, 1)
		close(finished)
	}()

	<-events // loaded
	cancel()

	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("runDemo did not stop after cancel")
	}
}

func TestDemoModel(t *testing.T) {
	m := newDemoModel(nil, 100)
	assert.Contains(t, m.View(), "Building hierarchy")

	step := func(msg tea.Msg) tea.Cmd {
		next, cmd := m.Update(msg)
		m = next.(demoModel)
		return cmd
	}

	step(tea.WindowSizeMsg{Width: 100, Height: 40})
	assert.Equal(t, 90, m.progress.Width)

	cmd := step(demoLoadedMsg{
		regions: 8,
		counts:  map[models.Level]int{models.Province: 2, models.City: 3, models.District: 3},
		finest:  models.District,
		elapsed: 12 * time.Millisecond,
	})
	assert.NotNil(t, cmd)
	view := m.View()
	assert.Contains(t, view, "Loading Complete!")
	assert.Contains(t, view, "Resolving with the grid index")

	step(demoProgressMsg{kind: index.KindGrid, percent: 0.5})
	assert.InDelta(t, 0.5, m.percent, 1e-9)

	step(demoKindDoneMsg{kind: index.KindGrid, queries: 100, resolved: 60, elapsed: 10 * time.Millisecond})
	assert.Equal(t, index.KindRTree, m.current)
	assert.Zero(t, m.percent)
	assert.Contains(t, m.View(), "Resolving with the rtree index")

	step(demoKindDoneMsg{kind: index.KindRTree, queries: 100, resolved: 60, elapsed: 20 * time.Millisecond})
	step(demoDoneMsg{})
	assert.True(t, m.done)
	view = m.View()
	assert.Contains(t, view, "Summary:")
	assert.Contains(t, view, "same region")
	assert.NotContains(t, view, "Resolving with")

	assert.Nil(t, step(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")}))
	assert.NotNil(t, step(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")}))
}

func TestDemoModelError(t *testing.T) {
	m := newDemoModel(nil, 10)
	next, cmd := m.Update(demoErrMsg{errors.New("boom")})
	m = next.(demoModel)
	assert.NotNil(t, cmd)
	assert.True(t, m.done)
	assert.Contains(t, m.View(), "Error: boom")
}

func TestDemoSummaryMismatch(t *testing.T) {
	out := renderDemoSummary([]demoKindResult{
		{kind: index.KindGrid, queries: 10, elapsed: time.Millisecond},
		{kind: index.KindRTree, queries: 10, mismatches: 2, elapsed: time.Millisecond},
	})
	assert.Contains(t, out, "disagreed on 2 points")
}

func TestDemoQueriesValidation(t *testing.T) {
	_, err := execute(t, "demo", "--data", testData, "--queries", "0")
	assert.Error(t, err)
}
