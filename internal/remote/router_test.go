package remote

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/dokzlo13/homebase/internal/command"
	"github.com/dokzlo13/homebase/internal/home"
	"github.com/dokzlo13/homebase/internal/hue"
)

const testSpec = `
rooms:
  - name: Living Room
    lights:
      name: Main
      singles:
        - {name: Orb, kind: Color, id: "2"}
      subgroups:
        - name: Reading
          singles:
            - {name: Spot, kind: Dimmable, id: "3"}
    remotes:
      - name: Remote
        preset: multi
        buttons:
          btn-toggle: toggle
          btn-left: arrow_left
          btn-up: brightness_up
        actions:
          brightness_up_click:
            command: set_brightness
            target: main/reading
            args: {brightness: 0.9}
      - name: Dial
        preset: dial
        buttons:
          dial-1: dial
`

type recordingSubmitter struct {
	mu   sync.Mutex
	cmds []command.Command
	err  error
}

func (s *recordingSubmitter) Submit(_ context.Context, cmd command.Command) (command.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return command.Result{}, s.err
	}
	s.cmds = append(s.cmds, cmd)
	return command.Result{ID: cmd.ID, Kind: cmd.Kind, Topic: cmd.Topic}, nil
}

func (s *recordingSubmitter) commands() []command.Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]command.Command(nil), s.cmds...)
}

func newRouter(t *testing.T, spec string) (*Router, *recordingSubmitter, error) {
	t.Helper()
	s, err := home.ParseSpec([]byte(spec))
	if err != nil {
		t.Fatalf("ParseSpec() error: %v", err)
	}
	h, err := s.Build()
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	sub := &recordingSubmitter{}
	r, err := NewRouter(h, home.NewRegistry(h, home.Options{}), sub, Options{RotaryQuiet: 20 * time.Millisecond, RotaryStep: 0.01})
	return r, sub, err
}

func TestRouter_Buttons(t *testing.T) {
	r, sub, err := newRouter(t, testSpec)
	if err != nil {
		t.Fatalf("NewRouter() error: %v", err)
	}
	defer r.Close()
	ctx := context.Background()

	r.Handle(ctx, hue.Event{Kind: hue.EventButton, ResourceID: "btn-toggle", Action: "initial_press"})
	r.Handle(ctx, hue.Event{Kind: hue.EventButton, ResourceID: "btn-toggle", Action: "short_release", EventID: "e1"})
	r.Handle(ctx, hue.Event{Kind: hue.EventButton, ResourceID: "btn-left", Action: "short_release", EventID: "e2"})
	r.Handle(ctx, hue.Event{Kind: hue.EventButton, ResourceID: "btn-up", Action: "short_release"})
	r.Handle(ctx, hue.Event{Kind: hue.EventButton, ResourceID: "unknown", Action: "short_release"})

	cmds := sub.commands()
	if len(cmds) != 3 {
		t.Fatalf("submitted %d commands, want 3: %+v", len(cmds), cmds)
	}

	tests := []struct {
		name  string
		cmd   command.Command
		kind  command.Kind
		topic string
	}{
		{"toggle targets the room", cmds[0], command.KindToggle, "home/living_room"},
		{"arrow left shifts color back", cmds[1], command.KindShiftColor, "home/living_room"},
		{"explicit action overrides preset", cmds[2], command.KindSetBrightness, "home/living_room/main/reading"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.cmd.Kind != tt.kind || string(tt.cmd.Topic) != tt.topic || tt.cmd.Source != Source {
				t.Errorf("command = %+v, want %s on %s", tt.cmd, tt.kind, tt.topic)
			}
		})
	}
	if cmds[1].Args["steps"] != -1 {
		t.Errorf("shift args = %v", cmds[1].Args)
	}
	if cmds[2].Args["brightness"] != 0.9 {
		t.Errorf("set_brightness args = %v", cmds[2].Args)
	}
}

func TestRouter_EventIDsAreStable(t *testing.T) {
	r, sub, err := newRouter(t, testSpec)
	if err != nil {
		t.Fatalf("NewRouter() error: %v", err)
	}
	defer r.Close()
	ev := hue.Event{Kind: hue.EventButton, ResourceID: "btn-toggle", Action: "short_release", EventID: "e1"}
	r.Handle(context.Background(), ev)
	r.Handle(context.Background(), ev)
	r.Handle(context.Background(), hue.Event{Kind: hue.EventButton, ResourceID: "btn-toggle", Action: "short_release"})

	cmds := sub.commands()
	if len(cmds) != 3 {
		t.Fatalf("submitted %d commands, want 3", len(cmds))
	}
	if cmds[0].ID != cmds[1].ID {
		t.Error("a replayed event must map to the same command ID")
	}
	if cmds[2].ID == cmds[0].ID {
		t.Error("an event without ID must get a fresh command ID")
	}
}

func TestRouter_RotarySumsSteps(t *testing.T) {
	r, sub, err := newRouter(t, testSpec)
	if err != nil {
		t.Fatalf("NewRouter() error: %v", err)
	}
	defer r.Close()
	ctx := context.Background()

	r.Handle(ctx, hue.Event{Kind: hue.EventRotary, ResourceID: "dial-1", Action: "start", Direction: "clock_wise", Steps: 30, EventID: "d1"})
	r.Handle(ctx, hue.Event{Kind: hue.EventRotary, ResourceID: "dial-1", Action: "repeat", Direction: "clock_wise", Steps: 15, EventID: "d2"})
	waitFor(t, func() bool { return len(sub.commands()) == 1 })

	r.Handle(ctx, hue.Event{Kind: hue.EventRotary, ResourceID: "dial-1", Action: "start", Direction: "counter_clock_wise", Steps: 500, EventID: "d3"})
	waitFor(t, func() bool { return len(sub.commands()) == 2 })

	cmds := sub.commands()
	up, down := cmds[0], cmds[1]
	if up.Kind != command.KindDimUp || math.Abs(up.Args["step"].(float64)-0.45) > 1e-9 {
		t.Errorf("first command = %+v, want dim_up by 0.45", up)
	}
	if down.Kind != command.KindDimDown || down.Args["step"].(float64) != 1 {
		t.Errorf("second command = %+v, want dim_down by 1", down)
	}
}

func TestRouter_SubmitErrorsAreLogged(t *testing.T) {
	r, sub, err := newRouter(t, testSpec)
	if err != nil {
		t.Fatalf("NewRouter() error: %v", err)
	}
	defer r.Close()
	sub.err = errors.New("queue full")
	r.Handle(context.Background(), hue.Event{Kind: hue.EventButton, ResourceID: "btn-toggle", Action: "short_release"})
	if len(sub.commands()) != 0 {
		t.Error("failed submission should not be recorded")
	}
}

func TestNewRouter_Errors(t *testing.T) {
	base := `
rooms:
  - name: Office
    lights:
      name: Main
      singles:
        - {name: Desk, kind: Dimmable, id: "9"}
    remotes:
`
	tests := []struct {
		name    string
		remotes string
	}{
		{"unknown preset", `      - {name: R, preset: gamepad}`},
		{"no bindings", `      - {name: R}`},
		{"unnamed remote", `      - {preset: dimmer}`},
		{"unknown command", `      - {name: R, actions: {on_click: {command: explode}}}`},
		{"unknown target", `      - {name: R, actions: {on_click: {command: toggle, target: attic}}}`},
		{"duplicate resource", "      - {name: A, preset: dimmer, buttons: {b1: on}}\n      - {name: B, preset: dimmer, buttons: {b1: off}}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := newRouter(t, base+tt.remotes+"\n")
			if !errors.Is(err, ErrInvalidRemote) {
				t.Errorf("NewRouter() error = %v, want ErrInvalidRemote", err)
			}
		})
	}
}

func TestButtonAction(t *testing.T) {
	tests := []struct {
		event string
		want  string
		ok    bool
	}{
		{"short_release", "on_click", true},
		{"long_press", "on_hold", true},
		{"long_release", "on_release", true},
		{"initial_press", "", false},
		{"repeat", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.event, func(t *testing.T) {
			got, ok := buttonAction("on", tt.event)
			if got != tt.want || ok != tt.ok {
				t.Errorf("buttonAction(on, %s) = %q, %v", tt.event, got, ok)
			}
		})
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
