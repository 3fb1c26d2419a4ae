package event

import (
	"context"
	"errors"
	"testing"
)

func newDispatcher(t *testing.T, types ...string) *Dispatcher {
	t.Helper()
	r := NewRegistry()
	for _, name := range types {
		if err := r.RegisterType(name); err != nil {
			t.Fatalf("RegisterType %q failed: %v", name, err)
		}
	}
	return NewDispatcher(r)
}

// recorder returns a callback that appends its id to order and reports the
// given handled signal.
func recorder(order *[]string, id string, handled bool) Callback {
	return func(_ context.Context, _ any, _ ...any) (bool, error) {
		*order = append(*order, id)
		return handled, nil
	}
}

func TestDispatcher_UnknownEvent(t *testing.T) {
	d := newDispatcher(t)

	_, err := d.Dispatch(context.Background(), "nosuch")
	if !errors.Is(err, ErrUnknownEvent) {
		t.Errorf("expected ErrUnknownEvent, got %v", err)
	}
}

func TestDispatcher_NoCallbacks(t *testing.T) {
	d := newDispatcher(t, "update")

	handled, err := d.Dispatch(context.Background(), "update", 0.016)
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if handled {
		t.Error("expected not handled with no callbacks")
	}
}

func TestDispatcher_PriorityOrder(t *testing.T) {
	d := newDispatcher(t, "keypressed")
	r := d.Registry()

	var order []string
	add := func(id string, priority int) {
		t.Helper()
		if err := r.Add("keypressed", recorder(&order, id, false), WithKey(id), WithPriority(priority)); err != nil {
			t.Fatalf("Add %s failed: %v", id, err)
		}
	}
	add("D", 5)
	add("A", -10)
	add("B", 0)
	add("C", 0)

	handled, err := d.Dispatch(context.Background(), "keypressed", "x")
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if handled {
		t.Error("expected not handled")
	}

	want := []string{"A", "B", "C", "D"}
	if len(order) != len(want) {
		t.Fatalf("expected %d invocations, got %d: %v", len(want), len(order), order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], order[i])
		}
	}
}

func TestDispatcher_ShortCircuit(t *testing.T) {
	d := newDispatcher(t, "mousepressed")
	r := d.Registry()

	var order []string
	if err := r.Add("mousepressed", recorder(&order, "A", false), WithKey("A"), WithPriority(-10)); err != nil {
		t.Fatalf("Add A failed: %v", err)
	}
	if err := r.Add("mousepressed", recorder(&order, "B", true), WithKey("B")); err != nil {
		t.Fatalf("Add B failed: %v", err)
	}
	if err := r.Add("mousepressed", recorder(&order, "C", false), WithKey("C")); err != nil {
		t.Fatalf("Add C failed: %v", err)
	}
	if err := r.Add("mousepressed", recorder(&order, "D", false), WithKey("D"), WithPriority(5)); err != nil {
		t.Fatalf("Add D failed: %v", err)
	}

	handled, err := d.Dispatch(context.Background(), "mousepressed", 10, 20, 1)
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if !handled {
		t.Error("expected handled")
	}

	if len(order) != 2 || order[0] != "A" || order[1] != "B" {
		t.Errorf("expected [A B], got %v", order)
	}
}

func TestDispatcher_ArgsAndOwner(t *testing.T) {
	d := newDispatcher(t, "keypressed")
	r := d.Registry()

	type widget struct{ name string }
	w := &widget{name: "statusbar"}

	var gotOwner any
	var gotArgs []any
	cb := func(_ context.Context, owner any, args ...any) (bool, error) {
		gotOwner = owner
		gotArgs = args
		return true, nil
	}
	if err := r.Add("keypressed", cb, WithOwner(w)); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	if _, err := d.Dispatch(context.Background(), "keypressed", "escape", 27); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}

	if gotOwner != w {
		t.Errorf("expected owner %v, got %v", w, gotOwner)
	}
	if len(gotArgs) != 2 || gotArgs[0] != "escape" || gotArgs[1] != 27 {
		t.Errorf("unexpected args: %v", gotArgs)
	}
}

func TestDispatcher_UnprotectedErrorAborts(t *testing.T) {
	d := newDispatcher(t, "update")
	r := d.Registry()

	boom := errors.New("boom")
	var order []string

	if err := r.Add("update", recorder(&order, "A", false), WithKey("A"), WithPriority(-1)); err != nil {
		t.Fatalf("Add A failed: %v", err)
	}
	failing := func(_ context.Context, _ any, _ ...any) (bool, error) {
		order = append(order, "B")
		return false, boom
	}
	if err := r.Add("update", failing, WithKey("B")); err != nil {
		t.Fatalf("Add B failed: %v", err)
	}
	if err := r.Add("update", recorder(&order, "C", false), WithKey("C"), WithPriority(1)); err != nil {
		t.Fatalf("Add C failed: %v", err)
	}

	handled, err := d.Dispatch(context.Background(), "update", 0.016)
	if handled {
		t.Error("expected not handled on error")
	}
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped boom, got %v", err)
	}

	var cbErr *CallbackError
	if !errors.As(err, &cbErr) {
		t.Fatalf("expected CallbackError, got %T", err)
	}
	if cbErr.Event != "update" {
		t.Errorf("expected event update, got %q", cbErr.Event)
	}

	// C never ran: the error aborted the walk.
	if len(order) != 2 || order[1] != "B" {
		t.Errorf("expected [A B], got %v", order)
	}
}

func TestDispatcher_UnprotectedPanicPropagates(t *testing.T) {
	d := newDispatcher(t, "update")
	r := d.Registry()

	panicking := func(_ context.Context, _ any, _ ...any) (bool, error) {
		panic("unhandled")
	}
	if err := r.Add("update", panicking); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	defer func() {
		if recover() == nil {
			t.Error("expected panic to propagate out of Dispatch")
		}
	}()
	_, _ = d.Dispatch(context.Background(), "update")
}

func TestDispatcher_ErrorHandlerTrapsError(t *testing.T) {
	d := newDispatcher(t, "update")
	r := d.Registry()

	boom := errors.New("boom")
	type game struct{ name string }
	g := &game{name: "demo"}

	var trapped error
	var trappedOcc Occurrence
	var trappedOwner any

	failing := func(_ context.Context, _ any, _ ...any) (bool, error) {
		return false, boom
	}
	onError := func(_ context.Context, owner any, occ Occurrence, err error) bool {
		trappedOwner = owner
		trappedOcc = occ
		trapped = err
		return true
	}
	if err := r.Add("update", failing, WithOwner(g), WithErrorHandler(onError)); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	var after []string
	if err := r.Add("update", recorder(&after, "next", false), WithKey("next"), WithPriority(1)); err != nil {
		t.Fatalf("Add next failed: %v", err)
	}

	handled, err := d.Dispatch(context.Background(), "update", 0.016)
	if err != nil {
		t.Fatalf("trapped error must not propagate, got %v", err)
	}
	if !handled {
		t.Error("error handler returned true, expected handled")
	}

	if !errors.Is(trapped, boom) {
		t.Errorf("expected boom, got %v", trapped)
	}
	if trappedOwner != g {
		t.Errorf("expected owner %v, got %v", g, trappedOwner)
	}
	if trappedOcc.Name != "update" || len(trappedOcc.Args) != 1 {
		t.Errorf("unexpected occurrence: %+v", trappedOcc)
	}

	// Handler returned true: the entry short-circuited, "next" never ran.
	if len(after) != 0 {
		t.Errorf("expected short-circuit before next, got %v", after)
	}
}

func TestDispatcher_ErrorHandlerTrapsPanic(t *testing.T) {
	d := newDispatcher(t, "draw")
	r := d.Registry()

	var trapped error
	panicking := func(_ context.Context, _ any, _ ...any) (bool, error) {
		panic("render failure")
	}
	onError := func(_ context.Context, _ any, _ Occurrence, err error) bool {
		trapped = err
		return false
	}
	if err := r.Add("draw", panicking, WithErrorHandler(onError)); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	var after []string
	if err := r.Add("draw", recorder(&after, "next", false), WithKey("next"), WithPriority(1)); err != nil {
		t.Fatalf("Add next failed: %v", err)
	}

	handled, err := d.Dispatch(context.Background(), "draw")
	if err != nil {
		t.Fatalf("trapped panic must not propagate, got %v", err)
	}
	if handled {
		t.Error("handler returned false, expected not handled")
	}

	if !errors.Is(trapped, ErrCallbackPanic) {
		t.Errorf("expected ErrCallbackPanic, got %v", trapped)
	}
	var pe *PanicError
	if !errors.As(trapped, &pe) {
		t.Fatalf("expected PanicError, got %T", trapped)
	}
	if pe.Value != "render failure" {
		t.Errorf("expected panic value, got %v", pe.Value)
	}
	if len(pe.Stack) == 0 {
		t.Error("expected captured stack")
	}

	// Handler returned false: dispatch continued past the entry.
	if len(after) != 1 {
		t.Errorf("expected next to run, got %v", after)
	}
}

func TestDispatcher_SelfDisableTakesEffectNextDispatch(t *testing.T) {
	d := newDispatcher(t, "update")
	r := d.Registry()

	calls := 0
	var self Callback
	self = func(ctx context.Context, _ any, _ ...any) (bool, error) {
		calls++
		if err := r.SetEnabled("update", self, false); err != nil {
			t.Errorf("SetEnabled failed: %v", err)
		}
		return false, nil
	}
	if err := r.Add("update", self); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	// Current dispatch completes the invocation in progress.
	if _, err := d.Dispatch(context.Background(), "update"); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}

	// Next dispatch excludes the disabled entry.
	if _, err := d.Dispatch(context.Background(), "update"); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if calls != 1 {
		t.Errorf("disabled callback ran again, calls=%d", calls)
	}
}

func TestDispatcher_MidDispatchAddTakesEffectNextDispatch(t *testing.T) {
	d := newDispatcher(t, "update")
	r := d.Registry()

	var order []string
	late := recorder(&order, "late", false)
	adder := func(_ context.Context, _ any, _ ...any) (bool, error) {
		order = append(order, "adder")
		if err := r.Add("update", late, WithKey("late"), WithPriority(100)); err != nil {
			t.Errorf("mid-dispatch Add failed: %v", err)
		}
		return false, nil
	}
	if err := r.Add("update", adder, WithKey("adder")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	if _, err := d.Dispatch(context.Background(), "update"); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if len(order) != 1 {
		t.Fatalf("late callback ran in the same dispatch: %v", order)
	}

	if _, err := d.Dispatch(context.Background(), "update"); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if len(order) != 3 || order[2] != "late" {
		t.Errorf("expected late on second dispatch, got %v", order)
	}
}

func TestDispatcher_BaseHandlerRunsFirst(t *testing.T) {
	r := NewRegistry()
	var order []string

	base := func(_ context.Context, _ any, _ ...any) (bool, error) {
		order = append(order, "base")
		// Base handler handled signal is ignored for short-circuiting.
		return true, nil
	}
	if err := r.RegisterType("resize", WithBaseHandler(base)); err != nil {
		t.Fatalf("RegisterType failed: %v", err)
	}
	if err := r.Add("resize", recorder(&order, "cb", false)); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	d := NewDispatcher(r)
	handled, err := d.Dispatch(context.Background(), "resize", 80, 24)
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if handled {
		t.Error("base handler must not decide the handled result")
	}
	if len(order) != 2 || order[0] != "base" || order[1] != "cb" {
		t.Errorf("expected [base cb], got %v", order)
	}
}

func TestDispatcher_MetaChannel(t *testing.T) {
	d := newDispatcher(t, "keypressed", DispatchChannel)
	r := d.Registry()

	var order []string
	if err := r.Add("keypressed", recorder(&order, "direct", false)); err != nil {
		t.Fatalf("Add direct failed: %v", err)
	}

	var metaArgs []any
	meta := func(_ context.Context, _ any, args ...any) (bool, error) {
		order = append(order, "meta")
		metaArgs = args
		return false, nil
	}
	if err := r.Add(DispatchChannel, meta); err != nil {
		t.Fatalf("Add meta failed: %v", err)
	}

	handled, err := d.Dispatch(context.Background(), "keypressed", "escape")
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if handled {
		t.Error("expected not handled")
	}

	// Direct callbacks run before the meta channel observes the event.
	if len(order) != 2 || order[0] != "direct" || order[1] != "meta" {
		t.Errorf("expected [direct meta], got %v", order)
	}
	if len(metaArgs) != 2 || metaArgs[0] != "keypressed" || metaArgs[1] != "escape" {
		t.Errorf("expected (keypressed, escape), got %v", metaArgs)
	}
}

func TestDispatcher_MetaChannelObservesHandledEvents(t *testing.T) {
	d := newDispatcher(t, "keypressed", DispatchChannel)
	r := d.Registry()

	var order []string
	if err := r.Add("keypressed", recorder(&order, "direct", true)); err != nil {
		t.Fatalf("Add direct failed: %v", err)
	}
	if err := r.Add(DispatchChannel, recorder(&order, "meta", false)); err != nil {
		t.Fatalf("Add meta failed: %v", err)
	}

	handled, err := d.Dispatch(context.Background(), "keypressed", "q")
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if !handled {
		t.Error("expected handled")
	}
	if len(order) != 2 || order[1] != "meta" {
		t.Errorf("meta channel must observe handled events, got %v", order)
	}
}

func TestDispatcher_MetaChannelCanHandle(t *testing.T) {
	d := newDispatcher(t, "quit", DispatchChannel)
	r := d.Registry()

	// A catch-all meta callback cancels the quit.
	meta := func(_ context.Context, _ any, args ...any) (bool, error) {
		if len(args) > 0 && args[0] == "quit" {
			return true, nil
		}
		return false, nil
	}
	if err := r.Add(DispatchChannel, meta); err != nil {
		t.Fatalf("Add meta failed: %v", err)
	}

	handled, err := d.Dispatch(context.Background(), "quit")
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if !handled {
		t.Error("expected meta handling to surface as handled")
	}
}

func TestDispatcher_MetaChannelNoRecursion(t *testing.T) {
	d := newDispatcher(t, DispatchChannel)
	r := d.Registry()

	calls := 0
	meta := func(_ context.Context, _ any, _ ...any) (bool, error) {
		calls++
		return false, nil
	}
	if err := r.Add(DispatchChannel, meta); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	// Dispatching the meta channel directly must not re-fire it.
	if _, err := d.Dispatch(context.Background(), DispatchChannel, "synthetic"); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected exactly 1 invocation, got %d", calls)
	}
}

func TestDispatcher_MetaChannelUnregisteredIsSilent(t *testing.T) {
	d := newDispatcher(t, "update")

	if _, err := d.Dispatch(context.Background(), "update"); err != nil {
		t.Errorf("missing meta channel must not error, got %v", err)
	}
}

func TestDispatcher_Stats(t *testing.T) {
	d := newDispatcher(t, "update")
	r := d.Registry()

	if err := r.Add("update", recorder(new([]string), "a", true)); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := d.Dispatch(context.Background(), "update"); err != nil {
			t.Fatalf("Dispatch failed: %v", err)
		}
	}

	stats := d.Stats()
	if stats.Dispatched != 3 {
		t.Errorf("expected 3 dispatches, got %d", stats.Dispatched)
	}
	if stats.Handled != 3 {
		t.Errorf("expected 3 handled, got %d", stats.Handled)
	}
	if stats.CallbacksRun != 3 {
		t.Errorf("expected 3 callbacks run, got %d", stats.CallbacksRun)
	}
}
