package live

import (
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"seni/internal/bytecode"
	"seni/internal/natives"
	"seni/internal/vm"
	"seni/internal/words"
)

func TestBuildFrameCountsCommands(t *testing.T) {
	tbl := words.NewStandard()
	nt := natives.New(tbl)
	m := vm.New(bytecode.NewProgram(), nt)
	translateIname, _ := tbl.NativeIname("translate")
	m.Emit(vm.RenderCommand{Native: translateIname})
	m.Emit(vm.RenderCommand{Native: translateIname})

	frame := buildFrame(m, tbl, nil)
	if frame.NumVertices != 2 || len(frame.Commands) != 2 {
		t.Fatalf("expected 2 commands, got %+v", frame)
	}
	if frame.Commands[0].Native != "translate" {
		t.Fatalf("expected native name to resolve to %q, got %q", "translate", frame.Commands[0].Native)
	}
	if frame.Error != "" {
		t.Fatalf("expected no error, got %q", frame.Error)
	}
}

func TestBuildFrameRecordsError(t *testing.T) {
	tbl := words.NewStandard()
	nt := natives.New(tbl)
	m := vm.New(bytecode.NewProgram(), nt)
	frame := buildFrame(m, tbl, os.ErrNotExist)
	if frame.Error == "" {
		t.Fatalf("expected the run error to be recorded on the frame")
	}
}

func writeScript(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scene.seni")
	if err := os.WriteFile(path, []byte(src), 0644); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func TestRenderOnceRunsAScript(t *testing.T) {
	tbl := words.NewStandard()
	nt := natives.New(tbl)
	path := writeScript(t, "(translate [10 20])")
	frame := renderOnce(path, tbl, nt)
	if frame.Error != "" {
		t.Fatalf("expected no error, got %q", frame.Error)
	}
	if frame.NumVertices != 1 || frame.Commands[0].Native != "translate" {
		t.Fatalf("expected one translate command, got %+v", frame)
	}
}

func TestRenderOnceReportsParseError(t *testing.T) {
	tbl := words.NewStandard()
	nt := natives.New(tbl)
	path := writeScript(t, "(translate [10 20]")
	frame := renderOnce(path, tbl, nt)
	if frame.Error == "" {
		t.Fatalf("expected a parse error to be captured on the frame")
	}
}

func TestRenderOnceMissingFileReportsError(t *testing.T) {
	tbl := words.NewStandard()
	nt := natives.New(tbl)
	frame := renderOnce(filepath.Join(t.TempDir(), "missing.seni"), tbl, nt)
	if frame.Error == "" {
		t.Fatalf("expected a missing-file error to be captured on the frame")
	}
}

func TestBroadcastDeliversFrameToConnectedClient(t *testing.T) {
	s := NewServer("")
	httpSrv := httptest.NewServer(s.http.Handler)
	defer httpSrv.Close()

	wsURL := "ws" + strings.TrimPrefix(httpSrv.URL, "http") + "/preview"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Dial can return as soon as the upgrade handshake is written, before
	// handle() has added the connection to s.clients, so wait (under s.mu,
	// the lock Broadcast snapshots s.clients with) until it is registered.
	deadline := time.Now().Add(2 * time.Second)
	for {
		s.mu.Lock()
		registered := len(s.clients)
		s.mu.Unlock()
		if registered > 0 || time.Now().After(deadline) {
			break
		}
		time.Sleep(time.Millisecond)
	}
	frame := Frame{NumVertices: 3}
	if err := s.Broadcast(frame); err != nil {
		t.Fatalf("broadcast: %v", err)
	}

	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read message: %v", err)
	}
	var got Frame
	if err := json.Unmarshal(payload, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.NumVertices != 3 {
		t.Fatalf("expected NumVertices 3, got %+v", got)
	}
}
