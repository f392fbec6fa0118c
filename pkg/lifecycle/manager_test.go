package lifecycle

import (
	"context"
	"errors"
	"io"
	"testing"

	kratoslog "github.com/go-kratos/kratos/v2/log"
)

// TestHookOrdering 测试启动按优先级、停止按反序执行
func TestHookOrdering(t *testing.T) {
	lm := NewLifecycleManager(kratoslog.NewStdLogger(io.Discard))

	var order []string
	addHook := func(name string, priority int) {
		lm.AddHook(Hook{
			Name:     name,
			Priority: priority,
			OnStart: func(context.Context) error {
				order = append(order, "start:"+name)
				return nil
			},
			OnStop: func(context.Context) error {
				order = append(order, "stop:"+name)
				return nil
			},
		})
	}

	// 乱序添加
	addHook("servers", 100)
	addHook("redis", 10)
	addHook("heartbeat", 300)

	if err := lm.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := lm.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	want := []string{
		"start:redis", "start:servers", "start:heartbeat",
		"stop:heartbeat", "stop:servers", "stop:redis",
	}
	if len(order) != len(want) {
		t.Fatalf("order length: got %v", order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order mismatch at %d: got %v, want %v", i, order, want)
		}
	}
}

// TestStartFailureAborts 测试启动失败中断后续钩子
func TestStartFailureAborts(t *testing.T) {
	lm := NewLifecycleManager(kratoslog.NewStdLogger(io.Discard))

	started := false
	lm.AddHook(Hook{
		Name:     "failing",
		Priority: 10,
		OnStart:  func(context.Context) error { return errors.New("boom") },
	})
	lm.AddHook(Hook{
		Name:     "later",
		Priority: 100,
		OnStart: func(context.Context) error {
			started = true
			return nil
		},
	})

	if err := lm.Start(); err == nil {
		t.Fatal("Start should propagate hook failure")
	}
	if started {
		t.Fatal("hooks after a failure should not start")
	}
}

// TestStopIdempotent 测试重复Stop只执行一次
func TestStopIdempotent(t *testing.T) {
	lm := NewLifecycleManager(kratoslog.NewStdLogger(io.Discard))

	stops := 0
	lm.AddHook(Hook{
		Name: "once",
		OnStop: func(context.Context) error {
			stops++
			return nil
		},
	})

	if err := lm.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	_ = lm.Stop()
	_ = lm.Stop()

	if stops != 1 {
		t.Fatalf("OnStop should run once, got %d", stops)
	}

	select {
	case <-lm.Done():
	default:
		t.Fatal("Done channel should be closed after Stop")
	}
}
