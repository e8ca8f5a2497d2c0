package engine

import (
	"time"

	"github.com/watzon/clickloop/internal/replay"
	"github.com/watzon/clickloop/internal/scheduler"
)

// Status is a point-in-time view of the engine.
type Status struct {
	Recording  bool          `json:"recording"`
	Probing    bool          `json:"probing"`
	Editor     *ListStatus   `json:"editor,omitempty"`
	Replay     ReplayStatus  `json:"replay"`
	Playback   PlaybackState `json:"playback"`
	Cron       CronStatus    `json:"cron"`
	TokenOwner string        `json:"token_owner,omitempty"`
}

// ListStatus describes one action list.
type ListStatus struct {
	Name         string `json:"name"`
	Actions      int    `json:"actions"`
	Sequence     int    `json:"sequence"`
	Repeat       int    `json:"repeat"`
	Interval     int    `json:"interval"`
	Active       bool   `json:"active"`
	Executed     int    `json:"executed"`
	LastExecuted string `json:"last_executed"`
}

// ReplayStatus describes the replay scheduler and its lists.
type ReplayStatus struct {
	State     string       `json:"state"`
	RepeatAll bool         `json:"repeat_all"`
	Stats     replay.Stats `json:"stats"`
	Error     string       `json:"error,omitempty"`
	Lists     []ListStatus `json:"lists"`
}

// PlaybackState describes manual playback.
type PlaybackState struct {
	Playing bool `json:"playing"`
	Cycles  int  `json:"cycles"`
}

// CronStatus describes the cron scheduler and its jobs.
type CronStatus struct {
	Execute bool        `json:"execute"`
	Playing string      `json:"playing,omitempty"`
	Jobs    []JobStatus `json:"jobs"`
}

// JobStatus describes one cron job.
type JobStatus struct {
	Name         string `json:"name"`
	Actions      int    `json:"actions"`
	Time         string `json:"time"`
	Active       bool   `json:"active"`
	LastExecuted string `json:"last_executed"`
}

// Status returns the current engine status.
func (e *Engine) Status() Status {
	st := Status{
		Recording:  e.recorder.Recording(),
		Probing:    e.recorder.Probing(),
		TokenOwner: e.token.Owner(),
		Replay: ReplayStatus{
			State:     e.replay.State().String(),
			RepeatAll: e.replay.RepeatAll(),
			Stats:     e.replay.Stats(),
			Error:     errString(e.replay.Err()),
		},
		Cron: CronStatus{
			Execute: e.cron.Executing(),
			Playing: e.cron.Playing(),
		},
	}

	if l := e.Current(); l != nil {
		ls := listStatus(l.Name(), l.Len(), l.Policy().Sequence, l.Policy().Repeat, l.Policy().Interval, l.Policy().Active, l.Executed(), l.LastExecuted())
		st.Editor = &ls
	}

	for _, l := range e.lists.Lists() {
		p := l.Policy()
		st.Replay.Lists = append(st.Replay.Lists, listStatus(p.Name, l.Len(), p.Sequence, p.Repeat, p.Interval, p.Active, l.Executed(), l.LastExecuted()))
	}

	st.Playback.Playing, st.Playback.Cycles = e.Playing()

	for _, j := range e.jobs.Jobs() {
		st.Cron.Jobs = append(st.Cron.Jobs, JobStatus{
			Name:         j.Name,
			Actions:      len(j.Actions),
			Time:         j.Time.String(),
			Active:       j.Active,
			LastExecuted: j.LastExecutedString(),
		})
	}
	return st
}

func listStatus(name string, n, seq, repeat, interval int, active bool, executed int, last time.Time) ListStatus {
	return ListStatus{
		Name:         name,
		Actions:      n,
		Sequence:     seq,
		Repeat:       repeat,
		Interval:     interval,
		Active:       active,
		Executed:     executed,
		LastExecuted: scheduler.FormatLastExecuted(last),
	}
}
