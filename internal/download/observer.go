package download

import (
	"github.com/canvas-sync/canvas-sync/internal/engine/events"
	"github.com/canvas-sync/canvas-sync/internal/utils"
)

// Observer receives task transition events and periodic StatsMsg snapshots.
// Notify is called from worker and sampler goroutines and must be safe for concurrent use.
type Observer interface {
	Notify(msg any)
}

// ObserverFunc adapts a function to Observer
type ObserverFunc func(msg any)

func (f ObserverFunc) Notify(msg any) { f(msg) }

type nopObserver struct{}

func (nopObserver) Notify(any) {}

// channelObserver forwards events to a channel. Task events block until
// received; stats snapshots are dropped when the channel is full.
type channelObserver struct {
	ch chan<- any
}

// ChannelObserver returns an Observer that forwards to ch
func ChannelObserver(ch chan<- any) Observer {
	if ch == nil {
		return nopObserver{}
	}
	return channelObserver{ch: ch}
}

func (o channelObserver) Notify(msg any) {
	if stats, ok := msg.(events.StatsMsg); ok && !stats.Final {
		select {
		case o.ch <- msg:
		default:
			utils.Debug("Observer: channel full, dropping stats snapshot")
		}
		return
	}
	o.ch <- msg
}

// MultiObserver fans every event out to each observer in order
func MultiObserver(observers ...Observer) Observer {
	var list []Observer
	for _, o := range observers {
		if o != nil {
			list = append(list, o)
		}
	}
	switch len(list) {
	case 0:
		return nopObserver{}
	case 1:
		return list[0]
	}
	return ObserverFunc(func(msg any) {
		for _, o := range list {
			o.Notify(msg)
		}
	})
}
