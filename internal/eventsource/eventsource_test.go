package eventsource

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustacademy/academy/internal/event"
	"github.com/rustacademy/academy/internal/tcpserver"
)

func TestStdinSourceStopClosesLines(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	src := newStdinSourceWithReader(context.Background(), r)
	src.Stop()

	select {
	case _, ok := <-src.Lines():
		assert.False(t, ok, "expected lines channel to be closed after Stop")
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for lines channel to close")
	}
}

func TestStdinSourceStopIsIdempotent(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	src := newStdinSourceWithReader(context.Background(), r)
	src.Stop()
	src.Stop()
}

func TestStdinSourceReadsLines(t *testing.T) {
	in := strings.NewReader("{\"name\":\"Increment\"}\n\n\"NewRandomNumber\"\n")
	src := newStdinSourceWithReader(context.Background(), in)
	defer src.Stop()

	var got []string
	closed := false
	for env := range src.Lines() {
		assert.Equal(t, "stdin", env.Source)
		if env.Closed {
			closed = true
			continue
		}
		assert.False(t, closed, "no lines after the end marker")
		got = append(got, env.Line)
	}
	assert.Equal(t, []string{`{"name":"Increment"}`, `"NewRandomNumber"`}, got)
	assert.True(t, closed, "EOF should be marked")
}

func TestScanScript(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		max     int
		want    []string
		wantErr bool
	}{
		{
			name:  "skips blanks and comments",
			input: "# warm up\nIncrement\n\n   # indented comment\nSearchTyped Rust\r\n",
			max:   DefaultStdinMaxLineSize,
			want:  []string{"Increment", "SearchTyped Rust"},
		},
		{
			name:    "overlong line",
			input:   "Increment\n" + strings.Repeat("x", 64) + "\nIncrement\n",
			max:     16,
			want:    []string{"Increment"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			err := scanScript(strings.NewReader(tt.input), tt.max, func(line string) bool {
				got = append(got, line)
				return true
			})
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScanScriptStopsWhenEmitDeclines(t *testing.T) {
	calls := 0
	err := scanScript(strings.NewReader("a\nb\nc\n"), 64, func(string) bool {
		calls++
		return false
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestClockSourceEmitsFormattedTicks(t *testing.T) {
	fixed := time.Date(2024, 3, 1, 9, 30, 5, 0, time.UTC)
	src := NewClockSource(context.Background(), ClockConfig{
		Interval: 10 * time.Millisecond,
		Format:   "15:04:05",
		Now:      func() time.Time { return fixed },
	})
	defer src.Stop()

	for i := 0; i < 2; i++ {
		select {
		case env := <-src.Lines():
			assert.Equal(t, "clock", env.Source)
			e, err := event.DecodeJSON([]byte(env.Line))
			require.NoError(t, err)
			assert.Equal(t, "ClockTick", e.Name)
			assert.Equal(t, "09:30:05", e.PayloadString())
		case <-time.After(time.Second):
			t.Fatal("no tick")
		}
	}
}

func TestClockSourceStopClosesLines(t *testing.T) {
	src := NewClockSource(context.Background(), ClockConfig{Interval: time.Hour})
	<-src.Lines()
	src.Stop()
	src.Stop()

	select {
	case _, ok := <-src.Lines():
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("clock source did not close")
	}
}

func TestTCPSourceWrapsServer(t *testing.T) {
	srv := tcpserver.NewServer("127.0.0.1:0")
	require.NoError(t, srv.Start())

	src := NewTCPSource(srv)
	assert.Equal(t, "tcp", src.Name())
	src.Stop()

	_, ok := <-src.Lines()
	assert.False(t, ok)
}
