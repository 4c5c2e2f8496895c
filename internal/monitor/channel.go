package monitor

import (
	"sync"

	"github.com/atcfusion/engine/internal/model"
)

// channelState is one monitored channel's mutable state, protected by
// channelTable.mu.
type channelState struct {
	channel model.Channel
}

// ringAppend appends tx to history, discarding the oldest entry once the
// buffer reaches historyCap.
func ringAppend(cs *channelState, tx model.Transmission, historyCap int) {
	cs.channel.History = append(cs.channel.History, tx)
	if len(cs.channel.History) > historyCap {
		cs.channel.History = cs.channel.History[len(cs.channel.History)-historyCap:]
	}
	cs.channel.Stats.TransmissionsTranscribed++
	cs.channel.Stats.LastTransmission = tx.TranscribedAt
}

// channelTable is the mutex-guarded map of all monitored channels.
type channelTable struct {
	mu       sync.Mutex
	byID     map[string]*channelState
}

func newChannelTable() *channelTable {
	return &channelTable{byID: make(map[string]*channelState)}
}

func (t *channelTable) add(ch model.Channel) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byID[ch.Name] = &channelState{channel: ch}
}

func (t *channelTable) get(id string) (*channelState, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cs, ok := t.byID[id]
	return cs, ok
}

// recentHistory returns a copy of the last n transmissions across all
// channels combined, used as the correlator's context window.
func (t *channelTable) recentHistory(n int) []model.Transmission {
	t.mu.Lock()
	defer t.mu.Unlock()

	var all []model.Transmission
	for _, cs := range t.byID {
		all = append(all, cs.channel.History...)
	}
	sortByTranscribedAt(all)
	if len(all) > n {
		all = all[len(all)-n:]
	}
	return all
}

func sortByTranscribedAt(txs []model.Transmission) {
	for i := 1; i < len(txs); i++ {
		for j := i; j > 0 && txs[j].TranscribedAt.Before(txs[j-1].TranscribedAt); j-- {
			txs[j], txs[j-1] = txs[j-1], txs[j]
		}
	}
}

func (t *channelTable) snapshot() []model.Channel {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]model.Channel, 0, len(t.byID))
	for _, cs := range t.byID {
		out = append(out, cs.channel)
	}
	return out
}
