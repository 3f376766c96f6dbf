package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestFlightGroupCoalesces(t *testing.T) {
	g := newFlightGroup()
	ctx := context.Background()

	var fnCalls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})

	resolver := func() (any, error) {
		fnCalls.Add(1)
		close(started)
		<-release
		return "result", nil
	}
	waiterFn := func() (any, error) {
		fnCalls.Add(1)
		return "result", nil
	}

	var wg sync.WaitGroup
	sharedCount := atomic.Int32{}

	wg.Add(1)
	go func() {
		defer wg.Done()
		val, shared, err := g.Do(ctx, "k", time.Second, resolver)
		if err != nil || val != "result" {
			t.Errorf("резолвер: val=%v err=%v", val, err)
		}
		if shared {
			t.Error("резолвер не должен быть помечен shared")
		}
	}()
	<-started

	const waiters = 5
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			val, shared, err := g.Do(ctx, "k", time.Second, waiterFn)
			if err != nil || val != "result" {
				t.Errorf("ждущий: val=%v err=%v", val, err)
			}
			if shared {
				sharedCount.Add(1)
			}
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls := fnCalls.Load(); calls != 1 {
		t.Errorf("fn вызвана %d раз, ожидался 1", calls)
	}
	if sharedCount.Load() != waiters {
		t.Errorf("shared у %d ждущих, ожидалось %d", sharedCount.Load(), waiters)
	}
	if g.InFlight() != 0 {
		t.Errorf("после завершения in-flight записей %d, ожидалось 0", g.InFlight())
	}
}

func TestFlightGroupErrorShared(t *testing.T) {
	g := newFlightGroup()
	ctx := context.Background()
	resolverErr := errors.New("хранилище недоступно")

	started := make(chan struct{})
	release := make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, _, err := g.Do(ctx, "k", time.Second, func() (any, error) {
			close(started)
			<-release
			return nil, resolverErr
		})
		done <- err
	}()
	<-started

	waiterDone := make(chan error, 1)
	go func() {
		_, _, err := g.Do(ctx, "k", time.Second, func() (any, error) {
			t.Error("ждущий не должен вызывать fn при живом резолвере")
			return nil, nil
		})
		waiterDone <- err
	}()

	time.Sleep(30 * time.Millisecond)
	close(release)

	if err := <-done; !errors.Is(err, resolverErr) {
		t.Errorf("резолвер: ожидалась %v, получено %v", resolverErr, err)
	}
	if err := <-waiterDone; !errors.Is(err, resolverErr) {
		t.Errorf("ждущий обязан получить ошибку резолвера, получено %v", err)
	}
}

func TestFlightGroupWaitTimeoutFallback(t *testing.T) {
	g := newFlightGroup()
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	defer close(release)

	go func() {
		_, _, _ = g.Do(ctx, "k", time.Second, func() (any, error) {
			close(started)
			<-release // резолвер завис
			return "slow", nil
		})
	}()
	<-started

	// Ждущий с коротким таймаутом идёт в хранилище самостоятельно
	val, shared, err := g.Do(ctx, "k", 20*time.Millisecond, func() (any, error) {
		return "direct", nil
	})
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if shared {
		t.Error("фолбэк после таймаута не должен быть помечен shared")
	}
	if val != "direct" {
		t.Errorf("val = %v, ожидалось \"direct\" (собственный запрос)", val)
	}
}

func TestFlightGroupContextCancelled(t *testing.T) {
	g := newFlightGroup()

	started := make(chan struct{})
	release := make(chan struct{})
	defer close(release)

	go func() {
		_, _, _ = g.Do(context.Background(), "k", time.Second, func() (any, error) {
			close(started)
			<-release
			return nil, nil
		})
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := g.Do(ctx, "k", time.Second, func() (any, error) {
		t.Error("fn не должна вызываться при отменённом контексте ждущего")
		return nil, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("ожидалась context.Canceled, получено %v", err)
	}
}

func TestFlightGroupForget(t *testing.T) {
	g := newFlightGroup()
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})

	go func() {
		_, _, _ = g.Do(ctx, "k", time.Second, func() (any, error) {
			close(started)
			<-release
			return "stale", nil
		})
	}()
	<-started

	// После Forget новый вызов выполняет собственный запрос,
	// не дожидаясь старого резолвера
	g.Forget("k")

	var ownCall atomic.Bool
	val, shared, err := g.Do(ctx, "k", time.Second, func() (any, error) {
		ownCall.Store(true)
		return "fresh", nil
	})
	close(release)

	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if !ownCall.Load() || shared {
		t.Error("после Forget вызов обязан выполнить собственный запрос")
	}
	if val != "fresh" {
		t.Errorf("val = %v, ожидалось \"fresh\"", val)
	}
}
