// singleflight.go — коалесцирование конкурентных запросов к хранилищу.
// При одновременных промахах кэша по одному ключу (cache stampede)
// хранилище получает ровно один запрос: первый вызвавший становится
// резолвером, остальные ждут его результата.
//
// Реализация — защищённая мьютексом map in-flight вызовов с каналом
// завершения. Запись удаляется из map сразу по завершении резолвера,
// чтобы структура не росла под постоянной нагрузкой.
package service

import (
	"context"
	"sync"
	"time"
)

// flightCall — один in-flight запрос к хранилищу.
type flightCall struct {
	done chan struct{}
	val  any
	err  error
}

// flightGroup — коалесцирование запросов по ключу кэша.
type flightGroup struct {
	mu    sync.Mutex
	calls map[string]*flightCall
}

// newFlightGroup создаёт группу коалесцирования.
func newFlightGroup() *flightGroup {
	return &flightGroup{calls: make(map[string]*flightCall)}
}

// Do выполняет fn, гарантируя один in-flight вызов на ключ.
// Повторные вызовы по тому же ключу ждут результата резолвера.
//
// Ожидание ограничено waitTimeout и контекстом: по истечении таймаута
// ждущий вызывает fn самостоятельно (прямой запрос к хранилищу),
// а не ждёт бесконечно. shared=true означает, что результат получен
// от чужого резолвера.
func (g *flightGroup) Do(ctx context.Context, key string, waitTimeout time.Duration, fn func() (any, error)) (val any, shared bool, err error) {
	g.mu.Lock()
	if call, inFlight := g.calls[key]; inFlight {
		g.mu.Unlock()

		timer := time.NewTimer(waitTimeout)
		defer timer.Stop()

		select {
		case <-call.done:
			return call.val, true, call.err
		case <-ctx.Done():
			return nil, false, ctx.Err()
		case <-timer.C:
			// Резолвер завис — не ждём, идём в хранилище напрямую.
			// В map не регистрируемся: слот занят зависшим резолвером.
			val, err = fn()
			return val, false, err
		}
	}

	call := &flightCall{done: make(chan struct{})}
	g.calls[key] = call
	g.mu.Unlock()

	call.val, call.err = fn()

	g.mu.Lock()
	// Удаляем только собственную запись: Forget мог заменить её новой
	if g.calls[key] == call {
		delete(g.calls, key)
	}
	g.mu.Unlock()
	close(call.done)

	return call.val, false, call.err
}

// Forget снимает in-flight запись ключа: следующий вызов Do выполнит
// собственный запрос к хранилищу. Используется инвалидацией, чтобы
// новые читатели не получили результат резолвера, стартовавшего
// до инвалидации.
func (g *flightGroup) Forget(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.calls, key)
}

// InFlight возвращает количество текущих in-flight запросов.
func (g *flightGroup) InFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}
