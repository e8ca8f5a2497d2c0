package engine

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/watzon/clickloop/internal/debounce"
)

// Controls debounces the interactive engine operations so that a burst of
// presses runs each operation once.
type Controls struct {
	engine *Engine

	toggleRecording *debounce.Func
	startReplay     *debounce.Gate[context.Context]
	pauseReplay     *debounce.Func
	deleteAction    *debounce.Gate[int]
	clearActions    *debounce.Func
	addToReplay     *debounce.Func
	deleteList      *debounce.Gate[int]
}

// NewControls wraps e with gates of the given window.
func NewControls(e *Engine, window time.Duration) *Controls {
	return &Controls{
		engine: e,
		toggleRecording: debounce.NewFunc(window, func() {
			if _, _, err := e.ToggleRecording(); err != nil {
				log.Warn().Err(err).Msg("Toggle recording failed")
			}
		}),
		startReplay: debounce.New(window, func(ctx context.Context) {
			if err := e.StartReplay(ctx); err != nil {
				log.Warn().Err(err).Msg("Start replay failed")
			}
		}),
		pauseReplay: debounce.NewFunc(window, func() {
			e.PauseReplay()
		}),
		deleteAction: debounce.New(window, func(i int) {
			if err := e.DeleteAction(i); err != nil {
				log.Warn().Err(err).Int("index", i).Msg("Delete action failed")
			}
		}),
		clearActions: debounce.NewFunc(window, e.ClearActions),
		addToReplay: debounce.NewFunc(window, func() {
			if _, err := e.AddToReplay(); err != nil {
				log.Warn().Err(err).Msg("Add to replay failed")
			}
		}),
		deleteList: debounce.New(window, func(i int) {
			if err := e.DeleteList(i); err != nil {
				log.Warn().Err(err).Int("index", i).Msg("Delete list failed")
			}
		}),
	}
}

// ToggleRecording starts or stops recording.
func (c *Controls) ToggleRecording() { c.toggleRecording.Trigger(struct{}{}) }

// StartReplay starts cyclic replay of the replay set with ctx.
func (c *Controls) StartReplay(ctx context.Context) { c.startReplay.Trigger(ctx) }

// PauseReplay toggles pause of the running replay.
func (c *Controls) PauseReplay() { c.pauseReplay.Trigger(struct{}{}) }

// DeleteAction removes action i of the editor list.
func (c *Controls) DeleteAction(i int) { c.deleteAction.Trigger(i) }

// ClearActions empties the editor list.
func (c *Controls) ClearActions() { c.clearActions.Trigger(struct{}{}) }

// AddToReplay moves the editor list into the replay set.
func (c *Controls) AddToReplay() { c.addToReplay.Trigger(struct{}{}) }

// DeleteList removes list i of the replay set.
func (c *Controls) DeleteList(i int) { c.deleteList.Trigger(i) }

// Flush runs every pending operation now.
func (c *Controls) Flush() {
	c.toggleRecording.Flush()
	c.startReplay.Flush()
	c.pauseReplay.Flush()
	c.deleteAction.Flush()
	c.clearActions.Flush()
	c.addToReplay.Flush()
	c.deleteList.Flush()
}

// Close drops every pending operation.
func (c *Controls) Close() {
	c.toggleRecording.Cancel()
	c.startReplay.Cancel()
	c.pauseReplay.Cancel()
	c.deleteAction.Cancel()
	c.clearActions.Cancel()
	c.addToReplay.Cancel()
	c.deleteList.Cancel()
}
