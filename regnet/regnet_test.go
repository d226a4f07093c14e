package regnet

import (
	"bufio"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/nasa-jpl/wavegen/telegram"
	"github.com/nasa-jpl/wavegen/wavegen"
)

func pipeServer(t *testing.T, tr wavegen.Transport) (net.Conn, *bufio.Reader) {
	t.Helper()
	client, server := net.Pipe()
	srv := NewServer(tr)
	go srv.ServeConn(server)
	t.Cleanup(func() { client.Close(); server.Close() })
	return client, bufio.NewReader(client)
}

func exchange(t *testing.T, conn net.Conn, rd *bufio.Reader, raw []byte) telegram.Message {
	t.Helper()
	if _, err := conn.Write(raw); err != nil {
		t.Fatal(err)
	}
	resp, err := rd.ReadBytes(telegram.EOT)
	if err != nil {
		t.Fatal(err)
	}
	msg, err := telegram.Decode(resp)
	if err != nil {
		t.Fatal(err)
	}
	return msg
}

func TestServerWriteThenRead(t *testing.T) {
	mem := wavegen.NewMemory()
	conn, rd := pipeServer(t, mem)

	req, _ := telegram.Make(telegram.Message{Type: telegram.Write, Register: 5, Data: telegram.Word(0x0000199A)})
	if msg := exchange(t, conn, rd, req); msg.Type != telegram.Ack || msg.Register != 5 {
		t.Errorf("expected Ack for register 5, got %s %d", msg.Type, msg.Register)
	}
	if got := mem.Snapshot()[wavegen.AMPLITUDE]; got != 0x199A {
		t.Errorf("expected AMPLITUDE 0x199a got %#x", got)
	}

	req, _ = telegram.Make(telegram.Message{Type: telegram.Read, Register: 5})
	msg := exchange(t, conn, rd, req)
	if v, ok := msg.Value(); msg.Type != telegram.Datagram || !ok || v != 0x199A {
		t.Errorf("expected Datagram 0x199a, got %s %#x", msg.Type, v)
	}
}

func TestServerRefusesOutOfRangeRegister(t *testing.T) {
	mem := wavegen.NewMemory()
	conn, rd := pipeServer(t, mem)
	req, _ := telegram.Make(telegram.Message{Type: telegram.Write, Register: 8, Data: telegram.Word(1)})
	if msg := exchange(t, conn, rd, req); msg.Type != telegram.Nack {
		t.Errorf("expected Nack got %s", msg.Type)
	}
	if mem.Writes != 0 {
		t.Errorf("expected no writes, got %d", mem.Writes)
	}
}

func TestServerReportsCRCError(t *testing.T) {
	conn, rd := pipeServer(t, wavegen.NewMemory())
	req, _ := telegram.Make(telegram.Message{Type: telegram.Read, Register: 1})
	req[1] = byte(telegram.Write)
	if msg := exchange(t, conn, rd, req); msg.Type != telegram.CRCError {
		t.Errorf("expected CRC Error got %s", msg.Type)
	}
}

func TestServerNacksMalformedRequests(t *testing.T) {
	conn, rd := pipeServer(t, wavegen.NewMemory())
	bad := []telegram.Message{
		{Type: telegram.Write, Register: 1},
		{Type: telegram.Read, Register: 1, Data: telegram.Word(1)},
		{Type: telegram.Ack, Register: 1},
	}
	for _, m := range bad {
		req, _ := telegram.Make(m)
		if msg := exchange(t, conn, rd, req); msg.Type != telegram.Nack {
			t.Errorf("%s with %d bytes: expected Nack got %s", m.Type, len(m.Data), msg.Type)
		}
	}
}

func tcpServer(t *testing.T, tr wavegen.Transport) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })
	go NewServer(tr).Serve(ln)
	return ln.Addr().String()
}

func TestClientDrivesRemoteGenerator(t *testing.T) {
	remote := wavegen.NewMemory()
	local := wavegen.NewMemory()
	client := NewClient(tcpServer(t, remote), false, 0)
	defer client.Close()
	if err := client.Connect(); err != nil {
		t.Fatal(err)
	}

	wf := wavegen.Waveform{Mode: wavegen.Square, Frequency: 0x0A0D5E0A, Amplitude: 1, Offset: -0.25, Duty: 50, Phase: 90}
	for _, tr := range []wavegen.Transport{client, local} {
		gen := wavegen.New(tr)
		if err := gen.ApplyAll(wavegen.B, wf.State(true)); err != nil {
			t.Fatal(err)
		}
	}
	if diff := cmp.Diff(local.Snapshot(), remote.Snapshot()); diff != "" {
		t.Errorf("remote registers differ from local (-local +remote):\n%s", diff)
	}

	st, err := wavegen.New(client).ReadState(wavegen.B)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(wf.State(true), st); diff != "" {
		t.Errorf("state read over the link (-want +got):\n%s", diff)
	}
}

func TestClientConcurrentUse(t *testing.T) {
	remote := wavegen.NewMemory()
	client := NewClient(tcpServer(t, remote), false, 0)
	defer client.Close()
	gen := wavegen.New(client)
	var wg sync.WaitGroup
	for _, ch := range wavegen.Channels {
		wg.Add(1)
		go func(ch wavegen.Channel) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				if err := gen.SetCycles(ch, uint16(i+1)); err != nil {
					t.Error(err)
					return
				}
			}
		}(ch)
	}
	wg.Wait()
	if got := remote.Snapshot()[wavegen.CYCLES]; got != 0x00320032 {
		t.Errorf("expected CYCLES 0x00320032 got %#08x", got)
	}
}

func TestClientRateLimit(t *testing.T) {
	client := NewClient(tcpServer(t, wavegen.NewMemory()), false, 0, WithRate(50))
	defer client.Close()
	start := time.Now()
	for i := 0; i < 6; i++ {
		if _, err := client.Read32(wavegen.MODE); err != nil {
			t.Fatal(err)
		}
	}
	// burst of one, then 20 ms apart
	if el := time.Since(start); el < 90*time.Millisecond {
		t.Errorf("6 reads at 50/s finished in %s", el)
	}
}

func TestClientOutOfRangeNeverSent(t *testing.T) {
	remote := wavegen.NewMemory()
	client := NewClient(tcpServer(t, remote), false, 0)
	defer client.Close()
	if err := client.Write32(9, 1); !errors.Is(err, wavegen.ErrRegisterRange) {
		t.Errorf("expected ErrRegisterRange got %v", err)
	}
	if remote.Writes != 0 {
		t.Errorf("expected no remote writes")
	}
}

func TestClientUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()
	client := NewClient(addr, false, 0)
	defer client.Close()
	if err := client.Connect(); err == nil {
		t.Error("expected an error connecting to a closed port")
	}
}

func TestClientRedialsAfterIdle(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })
	var accepted int32
	srv := NewServer(wavegen.NewMemory())
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			atomic.AddInt32(&accepted, 1)
			go srv.ServeConn(conn)
		}
	}()

	client := NewClient(ln.Addr().String(), false, 0, WithIdle(20*time.Millisecond))
	defer client.Close()
	if err := client.Write32(wavegen.FREQA, 7); err != nil {
		t.Fatal(err)
	}
	time.Sleep(200 * time.Millisecond)
	v, err := client.Read32(wavegen.FREQA)
	if err != nil {
		t.Fatal(err)
	}
	if v != 7 {
		t.Errorf("expected 7 got %d", v)
	}
	if n := atomic.LoadInt32(&accepted); n != 2 {
		t.Errorf("expected a fresh connection after idling, %d accepted", n)
	}
}
