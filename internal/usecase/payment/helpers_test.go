package payment

import (
	"os"
	"testing"
	"time"
)

func writeFile(t *testing.T, path string, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func receiveView(t *testing.T, ch <-chan View) View {
	t.Helper()
	select {
	case view, ok := <-ch:
		if !ok {
			t.Fatalf("view channel closed")
		}
		return view
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for view")
	}
	return View{}
}
