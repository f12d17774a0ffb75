package input

import "github.com/veandco/go-sdl2/sdl"

// State is the input collected during one frame. Held keys and buttons
// persist across frames; everything else is reset by NextFrame.
type State struct {
	Quit bool

	MouseX, MouseY   int
	MouseDX, MouseDY int

	Resized       bool
	Width, Height int

	pressed  map[sdl.Scancode]bool
	released map[sdl.Scancode]bool
	held     map[sdl.Scancode]bool

	buttonsPressed  uint32
	buttonsReleased uint32
	buttonsHeld     uint32
}

// NewState returns an empty state.
func NewState() *State {
	return &State{
		pressed:  make(map[sdl.Scancode]bool),
		released: make(map[sdl.Scancode]bool),
		held:     make(map[sdl.Scancode]bool),
	}
}

// NextFrame clears the per-frame fields.
func (s *State) NextFrame() {
	s.Quit = false
	s.MouseDX, s.MouseDY = 0, 0
	s.Resized = false
	clear(s.pressed)
	clear(s.released)
	s.buttonsPressed = 0
	s.buttonsReleased = 0
}

// Apply folds one event into the state.
func (s *State) Apply(e Event) {
	switch e.Type {
	case EventQuit:
		s.Quit = true
	case EventWindowResize:
		s.Resized = true
		s.Width, s.Height = e.Width, e.Height
	case EventKeyDown:
		if !e.Repeat {
			s.pressed[e.Key] = true
		}
		s.held[e.Key] = true
	case EventKeyUp:
		s.released[e.Key] = true
		delete(s.held, e.Key)
	case EventMouseMove:
		s.MouseX, s.MouseY = e.MouseX, e.MouseY
		s.MouseDX += e.XRel
		s.MouseDY += e.YRel
	case EventMouseDown:
		s.MouseX, s.MouseY = e.MouseX, e.MouseY
		s.buttonsPressed |= buttonMask(e.Button)
		s.buttonsHeld |= buttonMask(e.Button)
	case EventMouseUp:
		s.MouseX, s.MouseY = e.MouseX, e.MouseY
		s.buttonsReleased |= buttonMask(e.Button)
		s.buttonsHeld &^= buttonMask(e.Button)
	}
}

// Pressed reports whether key went down this frame.
func (s *State) Pressed(key sdl.Scancode) bool { return s.pressed[key] }

// Released reports whether key went up this frame.
func (s *State) Released(key sdl.Scancode) bool { return s.released[key] }

// Held reports whether key is currently down.
func (s *State) Held(key sdl.Scancode) bool { return s.held[key] }

// ButtonPressed reports whether the mouse button went down this frame.
func (s *State) ButtonPressed(button uint8) bool { return s.buttonsPressed&buttonMask(button) != 0 }

// ButtonReleased reports whether the mouse button went up this frame.
func (s *State) ButtonReleased(button uint8) bool { return s.buttonsReleased&buttonMask(button) != 0 }

// ButtonHeld reports whether the mouse button is currently down.
func (s *State) ButtonHeld(button uint8) bool { return s.buttonsHeld&buttonMask(button) != 0 }

func buttonMask(button uint8) uint32 {
	if button == 0 || button > 32 {
		return 0
	}
	return 1 << (button - 1)
}
