package link

import (
	"bytes"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestPipeRoundTrip(t *testing.T) {
	a, b := NewPipe()
	defer a.Close()

	msg := []byte{0x04, 0x80, 0x15, 0x01, 0x02, 0x9C}
	if err := a.Write(msg); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	got, err := b.Read(len(msg), 50*time.Millisecond)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !bytes.Equal(got, msg) {
		t.Errorf("Read = % X, want % X", got, msg)
	}
}

func TestPipeReadTimeout(t *testing.T) {
	a, b := NewPipe()
	defer a.Close()
	_ = b

	start := time.Now()
	got, err := a.Read(16, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Read returned %d bytes, want 0", len(got))
	}
	if elapsed := time.Since(start); elapsed < 15*time.Millisecond {
		t.Errorf("Read returned after %v, want ~20ms wait", elapsed)
	}
}

func TestPipePartialRead(t *testing.T) {
	a, b := NewPipe()
	defer a.Close()

	if err := a.Write([]byte{1, 2, 3, 4, 5}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	got, err := b.Read(3, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !bytes.Equal(got, []byte{1, 2, 3}) {
		t.Errorf("first Read = % X, want 01 02 03", got)
	}

	got, err = b.Read(3, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !bytes.Equal(got, []byte{4, 5}) {
		t.Errorf("second Read = % X, want 04 05", got)
	}
}

func TestPipeBlockedReadWakesOnWrite(t *testing.T) {
	a, b := NewPipe()
	defer a.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	var got []byte
	var readErr error
	go func() {
		defer wg.Done()
		got, readErr = b.Read(4, time.Second)
	}()

	time.Sleep(10 * time.Millisecond)
	if err := a.Write([]byte{0xAA, 0xBB}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	wg.Wait()

	if readErr != nil {
		t.Fatalf("Read failed: %v", readErr)
	}
	if !bytes.Equal(got, []byte{0xAA, 0xBB}) {
		t.Errorf("Read = % X, want AA BB", got)
	}
}

func TestPipeClose(t *testing.T) {
	a, b := NewPipe()

	if err := a.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if err := a.Write([]byte{1}); !errors.Is(err, ErrClosed) {
		t.Errorf("Write after close = %v, want ErrClosed", err)
	}
	if _, err := b.Read(1, 10*time.Millisecond); !errors.Is(err, ErrClosed) {
		t.Errorf("peer Read after close = %v, want ErrClosed", err)
	}
}

func TestPipeIDsDistinct(t *testing.T) {
	a, b := NewPipe()
	defer a.Close()

	if a.ID() == "" || b.ID() == "" {
		t.Error("empty connection ID")
	}
	if a.ID() == b.ID() {
		t.Error("both ends share one connection ID")
	}
}
