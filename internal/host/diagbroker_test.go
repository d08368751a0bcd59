package host_test

import (
	"testing"

	"github.com/seantiz/kiln/internal/host"
)

func TestDiagBrokerSingleSubscriber(t *testing.T) {
	b := host.NewDiagBroker()
	ch, unsub := b.Subscribe()
	defer unsub()

	msgs := []string{"parse failed", "open failed"}
	for _, m := range msgs {
		b.Publish(host.Diagnostic{Program: "p", Message: m})
	}
	b.Close()

	var got []string
	for d := range ch {
		got = append(got, d.Message)
	}
	if len(got) != len(msgs) {
		t.Fatalf("got %d diagnostics, want %d", len(got), len(msgs))
	}
	for i, m := range got {
		if m != msgs[i] {
			t.Errorf("diag[%d] = %q, want %q", i, m, msgs[i])
		}
	}
}

func TestDiagBrokerMultipleSubscribers(t *testing.T) {
	b := host.NewDiagBroker()
	ch1, unsub1 := b.Subscribe()
	defer unsub1()
	ch2, unsub2 := b.Subscribe()
	defer unsub2()

	b.Publish(host.Diagnostic{Message: "hello"})
	b.Close()

	for i, ch := range []<-chan host.Diagnostic{ch1, ch2} {
		var got []host.Diagnostic
		for d := range ch {
			got = append(got, d)
		}
		if len(got) != 1 || got[0].Message != "hello" {
			t.Errorf("subscriber %d got %v, want [hello]", i+1, got)
		}
	}
}

func TestDiagBrokerLateSubscriberGetsClosed(t *testing.T) {
	b := host.NewDiagBroker()
	b.Close()

	ch, unsub := b.Subscribe()
	defer unsub()

	if _, ok := <-ch; ok {
		t.Error("subscriber after Close should get a closed channel")
	}
}

func TestDiagBrokerUnsubscribeStopsDelivery(t *testing.T) {
	b := host.NewDiagBroker()
	ch, unsub := b.Subscribe()
	unsub()

	b.Publish(host.Diagnostic{Message: "after unsub"})

	select {
	case d, ok := <-ch:
		if ok {
			t.Errorf("got unexpected diagnostic %q after unsubscribe", d.Message)
		}
	default:
	}
}

func TestDiagBrokerDropsForSlowSubscriber(t *testing.T) {
	b := host.NewDiagBroker()
	ch, unsub := b.Subscribe()
	defer unsub()

	// Publishing past the buffer must not block.
	for range 200 {
		b.Publish(host.Diagnostic{Message: "flood"})
	}
	b.Close()

	n := 0
	for range ch {
		n++
	}
	if n == 0 || n > 200 {
		t.Errorf("received %d diagnostics, want between 1 and 200", n)
	}
}

func TestDiagBrokerDoubleCloseIsNoop(t *testing.T) {
	b := host.NewDiagBroker()
	b.Close()
	b.Close()
	b.Publish(host.Diagnostic{Message: "ignored"})
}
