package jsembed

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestConsoleLog(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	e := newTestEngine(t)
	if err := e.RegisterObject("console", NewConsole(logger)); err != nil {
		t.Fatalf("RegisterObject: %v", err)
	}

	if err := e.Execute("console.log('hello', 42, true)", testTimeout); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("got %d log entries, want 1", len(entries))
	}
	if entries[0].Message != "hello 42 true" {
		t.Errorf("message = %q, want %q", entries[0].Message, "hello 42 true")
	}
	if entries[0].Level != zapcore.InfoLevel {
		t.Errorf("level = %v, want info", entries[0].Level)
	}
}

func TestConsoleLevels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	e := newTestEngine(t)
	if err := e.RegisterObject("console", NewConsole(logger)); err != nil {
		t.Fatalf("RegisterObject: %v", err)
	}

	script := `
		console.debug('d');
		console.warn('w');
		console.error('e');
	`
	if err := e.Execute(script, testTimeout); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	want := []zapcore.Level{zapcore.DebugLevel, zapcore.WarnLevel, zapcore.ErrorLevel}
	entries := logs.All()
	if len(entries) != len(want) {
		t.Fatalf("got %d entries, want %d", len(entries), len(want))
	}
	for i, lvl := range want {
		if entries[i].Level != lvl {
			t.Errorf("entry %d level = %v, want %v", i, entries[i].Level, lvl)
		}
	}
}

func TestSetupConsole(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	p, err := NewPool(1, []SetupFunc{SetupConsole(logger)})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	defer p.Close()

	e, err := p.Acquire()
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer p.Release(e)

	if err := e.Execute("console.info('pooled')", testTimeout); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if logs.Len() != 1 {
		t.Fatalf("got %d entries, want 1", logs.Len())
	}
}
