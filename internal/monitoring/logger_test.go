package monitoring

import "testing"

func TestSetLogger(t *testing.T) {
	defer SetLogger(nil)

	var got string
	SetLogger(func(format string, v ...interface{}) { got = format })
	Logf("hello %d", 1)
	if got != "hello %d" {
		t.Errorf("Logf routed to %q, want %q", got, "hello %d")
	}

	// nil installs a no-op, not a nil func
	SetLogger(nil)
	Logf("must not panic")
}

func TestEnableDebug(t *testing.T) {
	defer SetLogger(nil)

	var got string
	SetLogger(func(format string, v ...interface{}) { got = format })
	EnableDebug()
	Debugf("tick %d", 3)
	if got != "debug: tick %d" {
		t.Errorf("Debugf routed to %q", got)
	}
}
