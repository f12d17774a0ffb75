// Package input handles SDL2 input events.
package input

import (
	"github.com/veandco/go-sdl2/sdl"
)

// EventType identifies the kind of input event.
type EventType int

const (
	EventNone EventType = iota
	EventQuit
	EventWindowResize
	EventKeyDown
	EventKeyUp
	EventMouseMove
	EventMouseDown
	EventMouseUp
)

// Event represents a processed input event.
type Event struct {
	Type   EventType
	Key    sdl.Scancode
	Repeat bool
	Width  int
	Height int
	MouseX int
	MouseY int
	XRel   int
	YRel   int
	Button uint8
}

// Poller drains SDL events once per frame into a State.
type Poller struct {
	state  *State
	events []Event
}

// NewPoller creates a poller with an empty state.
func NewPoller() *Poller {
	return &Poller{
		state:  NewState(),
		events: make([]Event, 0, 16),
	}
}

// Poll starts a new frame and folds every pending SDL event into the
// state. The returned state is reused by the next Poll.
func (p *Poller) Poll() *State {
	p.events = p.events[:0]
	p.state.NextFrame()

	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		if e, ok := Convert(event); ok {
			p.events = append(p.events, e)
			p.state.Apply(e)
		}
	}
	return p.state
}

// Events returns the events folded by the last Poll.
func (p *Poller) Events() []Event {
	return p.events
}

// Convert maps an SDL event to an Event. Events the viewer does not
// handle report false.
func Convert(event sdl.Event) (Event, bool) {
	switch e := event.(type) {
	case *sdl.QuitEvent:
		return Event{Type: EventQuit}, true

	case *sdl.WindowEvent:
		if e.Event == sdl.WINDOWEVENT_RESIZED || e.Event == sdl.WINDOWEVENT_SIZE_CHANGED {
			return Event{
				Type:   EventWindowResize,
				Width:  int(e.Data1),
				Height: int(e.Data2),
			}, true
		}

	case *sdl.KeyboardEvent:
		switch e.Type {
		case sdl.KEYDOWN:
			return Event{Type: EventKeyDown, Key: e.Keysym.Scancode, Repeat: e.Repeat != 0}, true
		case sdl.KEYUP:
			return Event{Type: EventKeyUp, Key: e.Keysym.Scancode}, true
		}

	case *sdl.MouseMotionEvent:
		return Event{
			Type:   EventMouseMove,
			MouseX: int(e.X),
			MouseY: int(e.Y),
			XRel:   int(e.XRel),
			YRel:   int(e.YRel),
		}, true

	case *sdl.MouseButtonEvent:
		ev := Event{
			MouseX: int(e.X),
			MouseY: int(e.Y),
			Button: e.Button,
		}
		switch e.Type {
		case sdl.MOUSEBUTTONDOWN:
			ev.Type = EventMouseDown
			return ev, true
		case sdl.MOUSEBUTTONUP:
			ev.Type = EventMouseUp
			return ev, true
		}
	}
	return Event{}, false
}
