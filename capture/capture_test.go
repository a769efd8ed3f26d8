package capture

import (
	"testing"
)

func TestSignalDeliversInSubscriptionOrder(t *testing.T) {
	var s signal[int]
	var order []string

	s.subscribe(func(v int) { order = append(order, "first") })
	s.subscribe(func(v int) { order = append(order, "second") })
	s.emit(1)

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("delivery order = %v, want [first second]", order)
	}
}

func TestSignalOrderSurvivesChurn(t *testing.T) {
	var s signal[int]

	// Heavy subscribe/unsubscribe traffic must not affect delivery to the
	// subscribers that remain, or its order.
	for i := 0; i < 1000; i++ {
		cancel := s.subscribe(func(int) { t.Error("cancelled subscriber called") })
		cancel()
	}

	var order []string
	s.subscribe(func(int) { order = append(order, "first") })
	s.subscribe(func(int) { order = append(order, "second") })
	s.emit(1)

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("delivery order = %v, want [first second]", order)
	}
}

func TestSignalUnsubscribe(t *testing.T) {
	var s signal[string]
	var got []string

	cancel := s.subscribe(func(v string) { got = append(got, v) })
	s.emit("a")
	cancel()
	s.emit("b")

	if len(got) != 1 || got[0] != "a" {
		t.Errorf("received = %v, want [a]", got)
	}
}

func TestSignalUnsubscribeTwice(t *testing.T) {
	var s signal[int]
	cancel := s.subscribe(func(int) {})
	cancel()
	cancel() // must not panic
	s.emit(1)
}

func TestSignalEmitWithoutSubscribers(t *testing.T) {
	var s signal[float64]
	s.emit(0.5) // must not panic
}

func TestSignalClear(t *testing.T) {
	var s signal[int]
	called := false
	s.subscribe(func(int) { called = true })
	s.clear()
	s.emit(1)
	if called {
		t.Error("subscriber called after clear")
	}
}
