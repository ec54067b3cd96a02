package record

import (
	"sort"
	"time"
)

// Record is an immutable tuple: a stable id, a last-mutation timestamp, a
// named active channel, and a map of named channels to Atoms. Every
// mutator returns a new Record; the receiver is left untouched so the old
// value remains observable — this is what makes chain_hash and the
// fork-join multiset law sound.
type Record struct {
	id            string
	timestamp     float64
	activeChannel string
	channels      map[string]Atom
}

// New constructs a Record with a single channel populated from value; the
// channel's format is inferred from value and the channel name.
func New(id string, channelName string, value any) Record {
	return Record{
		id:            id,
		timestamp:     nowSeconds(),
		activeChannel: channelName,
		channels: map[string]Atom{
			channelName: {Value: value, Format: InferFormat(channelName, value)},
		},
	}
}

// FromObject wraps obj into a record with the given id, obj becoming the
// value of the "default" channel, mirroring Source.coerce_source's
// "wrap any iterable item into a record" behavior.
func FromObject(id string, obj any) Record {
	return New(id, "default", obj)
}

// nowSeconds is the single seam used for Record timestamps so tests can
// substitute a fixed clock if they construct records directly; ordinary
// callers just use New/Merge which call this.
var nowSeconds = func() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

func (r Record) ID() string            { return r.id }
func (r Record) Timestamp() float64     { return r.timestamp }
func (r Record) ActiveChannel() string  { return r.activeChannel }

// Channels returns the record's channel names in sorted order, for
// deterministic serialization.
func (r Record) Channels() []string {
	names := make([]string, 0, len(r.channels))
	for name := range r.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Atom returns the active channel's Atom. A missing active channel yields
// the zero Atom and ok=false.
func (r Record) Atom() (Atom, bool) {
	a, ok := r.channels[r.activeChannel]
	return a, ok
}

// AtomAt returns the named channel's Atom, if present.
func (r Record) AtomAt(name string) (Atom, bool) {
	a, ok := r.channels[name]
	return a, ok
}

// Value is shorthand for channels[active_channel].value; it is nil when
// the active channel does not exist, per invariant 1.
func (r Record) Value() any {
	a, ok := r.Atom()
	if !ok {
		return nil
	}
	return a.Value
}

// Get returns the value at the named channel, or def if absent.
func (r Record) Get(name string, def any) any {
	a, ok := r.channels[name]
	if !ok {
		return def
	}
	return a.Value
}

// WithChannel only changes the active pointer; channel atoms are
// unchanged (invariant 2 / 5).
func (r Record) WithChannel(name string) Record {
	return Record{
		id:            r.id,
		timestamp:     r.timestamp,
		activeChannel: name,
		channels:      r.channels,
	}
}

// WithValue writes to the active channel (creating the atom if missing)
// with format inferred from v and the channel's name (invariant 6).
func (r Record) WithValue(v any) Record {
	channels := copyChannels(r.channels)
	channels[r.activeChannel] = Atom{Value: v, Format: InferFormat(r.activeChannel, v)}
	return Record{
		id:            r.id,
		timestamp:     r.timestamp,
		activeChannel: r.activeChannel,
		channels:      channels,
	}
}

// WithChannelValue writes value into the named channel without changing
// the active pointer, the building block Merge and the channel_map
// transformer are expressed in terms of.
func (r Record) WithChannelValue(name string, value any) Record {
	channels := copyChannels(r.channels)
	channels[name] = Atom{Value: value, Format: InferFormat(name, value)}
	return Record{
		id:            r.id,
		timestamp:     r.timestamp,
		activeChannel: r.activeChannel,
		channels:      channels,
	}
}

// Merge upserts the given channel values and bumps the timestamp
// (invariant 4).
func (r Record) Merge(values map[string]any) Record {
	channels := copyChannels(r.channels)
	for name, value := range values {
		channels[name] = Atom{Value: value, Format: InferFormat(name, value)}
	}
	return Record{
		id:            r.id,
		timestamp:     nowSeconds(),
		activeChannel: r.activeChannel,
		channels:      channels,
	}
}

// WithID rewrites the record's id; this is the only way a transformer may
// change identity (invariant 3).
func (r Record) WithID(id string) Record {
	return Record{
		id:            id,
		timestamp:     r.timestamp,
		activeChannel: r.activeChannel,
		channels:      r.channels,
	}
}

// SelectChannels retains only the named channels, dropping the active
// pointer to the empty string if it is not among them.
func (r Record) SelectChannels(names ...string) Record {
	keep := make(map[string]struct{}, len(names))
	for _, n := range names {
		keep[n] = struct{}{}
	}
	channels := make(map[string]Atom, len(names))
	active := r.activeChannel
	found := false
	for name, atom := range r.channels {
		if _, ok := keep[name]; ok {
			channels[name] = atom
			if name == active {
				found = true
			}
		}
	}
	if !found {
		active = ""
	}
	return Record{
		id:            r.id,
		timestamp:     r.timestamp,
		activeChannel: active,
		channels:      channels,
	}
}

func copyChannels(src map[string]Atom) map[string]Atom {
	dst := make(map[string]Atom, len(src)+1)
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// rawChannels exposes the channel map for code inside this module's
// own backends that must enumerate (name, Atom) pairs without copying;
// callers outside pkg/record should use Channels/AtomAt instead.
func (r Record) rawChannels() map[string]Atom { return r.channels }

// RawChannels returns the underlying channel map without copying it. It
// exists for backends that need to iterate every channel efficiently;
// callers must not mutate the returned map.
func (r Record) RawChannels() map[string]Atom { return r.rawChannels() }

// FromChannels reconstructs a Record from persisted fields, used by
// bucket backends loading a stored record back into memory.
func FromChannels(id string, timestamp float64, activeChannel string, channels map[string]Atom) Record {
	return Record{id: id, timestamp: timestamp, activeChannel: activeChannel, channels: channels}
}
