package remote

import "time"

// Timeouts bounds each collaborator call. A call that exceeds its timeout
// fails like any other remote error.
type Timeouts struct {
	Request       time.Duration
	Refresh       time.Duration
	CreateProject time.Duration
	Install       time.Duration
	Delete        time.Duration
	Rename        time.Duration
	GitRemote     time.Duration
	GitPush       time.Duration
}

func DefaultTimeouts() Timeouts {
	return Timeouts{
		Request:       30 * time.Second,
		Refresh:       120 * time.Second,
		CreateProject: 120 * time.Second,
		Install:       300 * time.Second,
		Delete:        60 * time.Second,
		Rename:        60 * time.Second,
		GitRemote:     5 * time.Second,
		GitPush:       120 * time.Second,
	}
}

// orDefault keeps zero-valued fields usable.
func (t Timeouts) orDefault() Timeouts {
	d := DefaultTimeouts()
	pick := func(v, def time.Duration) time.Duration {
		if v <= 0 {
			return def
		}
		return v
	}
	return Timeouts{
		Request:       pick(t.Request, d.Request),
		Refresh:       pick(t.Refresh, d.Refresh),
		CreateProject: pick(t.CreateProject, d.CreateProject),
		Install:       pick(t.Install, d.Install),
		Delete:        pick(t.Delete, d.Delete),
		Rename:        pick(t.Rename, d.Rename),
		GitRemote:     pick(t.GitRemote, d.GitRemote),
		GitPush:       pick(t.GitPush, d.GitPush),
	}
}

func (t Timeouts) Normalize() Timeouts { return t.orDefault() }
