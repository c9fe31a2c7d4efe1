package observability

import (
	"context"
	"testing"
	"time"
)

func TestNoopHooksDoNotPanic(t *testing.T) {
	ctx := context.Background()

	d := NoopDiagramHooks{}
	d.OnRenderStart(ctx, "0cc175b9c0f1b6a831c399e269772661")
	d.OnRenderComplete(ctx, "0cc175b9c0f1b6a831c399e269772661", time.Second, false, nil)

	doc := NoopDocumentHooks{}
	doc.OnDocumentStart(ctx, "blog/post.md")
	doc.OnDocumentComplete(ctx, "blog/post.md", 2, time.Second, nil)

	c := NoopCacheHooks{}
	c.OnCacheHit(ctx, "artifact")
	c.OnCacheMiss(ctx, "artifact")
	c.OnCacheSet(ctx, "artifact", 1024)
}

func TestGlobalHooksRegistry(t *testing.T) {
	Reset()

	if _, ok := Diagram().(NoopDiagramHooks); !ok {
		t.Error("Diagram() should return NoopDiagramHooks by default")
	}
	if _, ok := Document().(NoopDocumentHooks); !ok {
		t.Error("Document() should return NoopDocumentHooks by default")
	}
	if _, ok := Cache().(NoopCacheHooks); !ok {
		t.Error("Cache() should return NoopCacheHooks by default")
	}

	customDiagram := &testDiagramHooks{}
	SetDiagramHooks(customDiagram)
	if Diagram() != customDiagram {
		t.Error("SetDiagramHooks should set custom hooks")
	}

	customDocument := &testDocumentHooks{}
	SetDocumentHooks(customDocument)
	if Document() != customDocument {
		t.Error("SetDocumentHooks should set custom hooks")
	}

	customCache := &testCacheHooks{}
	SetCacheHooks(customCache)
	if Cache() != customCache {
		t.Error("SetCacheHooks should set custom hooks")
	}

	Reset()
	if _, ok := Diagram().(NoopDiagramHooks); !ok {
		t.Error("Reset() should restore NoopDiagramHooks")
	}
}

func TestSetNilHooksIsIgnored(t *testing.T) {
	Reset()
	defer Reset()

	custom := &testDiagramHooks{}
	SetDiagramHooks(custom)
	SetDiagramHooks(nil)

	if Diagram() != custom {
		t.Error("SetDiagramHooks(nil) should be ignored")
	}
}

type testDiagramHooks struct{ NoopDiagramHooks }
type testDocumentHooks struct{ NoopDocumentHooks }
type testCacheHooks struct{ NoopCacheHooks }
