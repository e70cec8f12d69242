package queue

import (
	"context"
	"testing"
	"time"
)

func TestInMemoryRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	q := NewInMemory(4)
	want := Message{Type: "report", Body: []byte("job-123")}
	if err := q.Publish(ctx, want); err != nil {
		t.Fatal(err)
	}

	msgs, err := q.Consume(ctx)
	if err != nil {
		t.Fatal(err)
	}
	select {
	case got := <-msgs:
		if got.Type != want.Type || string(got.Body) != string(want.Body) {
			t.Errorf("got %+v, want %+v", got, want)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for message")
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	cases := []Message{
		{Type: "report", Body: []byte("abc")},
		{Type: "report", Body: []byte("with|pipe")},
		{Type: "", Body: []byte("x")},
	}
	for _, msg := range cases {
		got, err := deserialize(serialize(msg))
		if err != nil {
			t.Fatal(err)
		}
		if got.Type != msg.Type || string(got.Body) != string(msg.Body) {
			t.Errorf("round trip of %+v gave %+v", msg, got)
		}
	}
}
