package server

import (
	"errors"
	"sync"
	"testing"

	"github.com/tmbasic-lang/tmbasic-sub000/compiler"
)

func TestWorker_Do(t *testing.T) {
	result, err := testWorker.Do(func(c *compiler.Compiler) any {
		prog, err := c.CompileText(helloSource)
		if err != nil {
			return err
		}
		return len(prog.Procedures)
	})
	if err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	if result != 1 {
		t.Errorf("result = %v, want 1", result)
	}
}

func TestWorker_RecoversPanic(t *testing.T) {
	_, err := testWorker.Do(func(*compiler.Compiler) any {
		panic("boom")
	})
	if err == nil || err.Error() != "boom" {
		t.Fatalf("err = %v, want boom", err)
	}

	// The worker keeps serving after a panic.
	result, err := testWorker.Do(func(*compiler.Compiler) any { return "ok" })
	if err != nil || result != "ok" {
		t.Errorf("after panic: result=%v err=%v", result, err)
	}
}

func TestWorker_Serializes(t *testing.T) {
	var (
		wg      sync.WaitGroup
		running int
		overlap bool
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = testWorker.Do(func(*compiler.Compiler) any {
				running++
				if running > 1 {
					overlap = true
				}
				running--
				return nil
			})
		}()
	}
	wg.Wait()
	if overlap {
		t.Error("jobs overlapped")
	}
}

func TestWorker_Stop(t *testing.T) {
	w := NewWorker(nil)
	w.Stop()
	w.Stop()
	_, err := w.Do(func(*compiler.Compiler) any { return nil })
	if !errors.Is(err, ErrWorkerStopped) {
		t.Errorf("err = %v, want ErrWorkerStopped", err)
	}
}
