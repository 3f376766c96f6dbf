// Пакет service — бизнес-логика Vocab Module: lookup-слой с кэшированием
// и коалесцированием запросов, протокол инвалидации, оценка сложности
// сегментов субтитров, прогрев кэша.
//
// stats.go — потокобезопасные счётчики hit/miss кэша по логическим scope'ам.
package service

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Scope — логический scope счётчиков кэша.
type Scope string

// Scope'ы кэша Vocab Module.
const (
	// ScopeWord — справочные записи слов.
	ScopeWord Scope = "word"
	// ScopeLevel — списки слов уровня.
	ScopeLevel Scope = "level"
	// ScopeKnowledge — снимки знания слов пользователями.
	ScopeKnowledge Scope = "knowledge"
)

// Prometheus-метрики кэша. Накопительные: Reset сервисных счётчиков
// их не затрагивает.
var (
	cacheHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vm_cache_hits_total",
		Help: "Общее количество попаданий в кэш по scope'ам.",
	}, []string{"scope"})
	cacheMissesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vm_cache_misses_total",
		Help: "Общее количество промахов кэша по scope'ам.",
	}, []string{"scope"})
)

// scopeCounters — счётчики одного scope.
type scopeCounters struct {
	hits   uint64
	misses uint64
}

// StatsCollector — потокобезопасные счётчики hit/miss по scope'ам.
// Все операции идут под одним мьютексом: Reset обнуляет счётчики атомарно
// относительно конкурентных инкрементов — ни один in-flight инкремент
// не теряется и не считается дважды.
type StatsCollector struct {
	mu       sync.Mutex
	counters map[Scope]*scopeCounters
}

// NewStatsCollector создаёт коллектор статистики кэша.
func NewStatsCollector() *StatsCollector {
	return &StatsCollector{
		counters: map[Scope]*scopeCounters{
			ScopeWord:      {},
			ScopeLevel:     {},
			ScopeKnowledge: {},
		},
	}
}

// RecordHit фиксирует попадание в кэш.
func (s *StatsCollector) RecordHit(scope Scope) {
	cacheHitsTotal.WithLabelValues(string(scope)).Inc()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.scopeLocked(scope).hits++
}

// RecordMiss фиксирует промах кэша.
func (s *StatsCollector) RecordMiss(scope Scope) {
	cacheMissesTotal.WithLabelValues(string(scope)).Inc()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.scopeLocked(scope).misses++
}

// scopeLocked возвращает счётчики scope'а. Вызывается под мьютексом.
func (s *StatsCollector) scopeLocked(scope Scope) *scopeCounters {
	c, ok := s.counters[scope]
	if !ok {
		c = &scopeCounters{}
		s.counters[scope] = c
	}
	return c
}

// ScopeStats — снимок счётчиков одного scope.
type ScopeStats struct {
	// Hits — количество попаданий
	Hits uint64 `json:"hits"`
	// Misses — количество промахов
	Misses uint64 `json:"misses"`
	// HitRatio — доля попаданий; 0 при отсутствии запросов (не NaN)
	HitRatio float64 `json:"hit_ratio"`
}

// Stats — полный снимок статистики кэша.
type Stats struct {
	// Hits — суммарные попадания по всем scope'ам
	Hits uint64 `json:"hits"`
	// Misses — суммарные промахи по всем scope'ам
	Misses uint64 `json:"misses"`
	// HitRatio — суммарная доля попаданий; 0 при отсутствии запросов
	HitRatio float64 `json:"hit_ratio"`
	// Scopes — разбивка по scope'ам
	Scopes map[Scope]ScopeStats `json:"scopes"`
}

// Snapshot возвращает согласованный снимок всех счётчиков.
func (s *StatsCollector) Snapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := Stats{Scopes: make(map[Scope]ScopeStats, len(s.counters))}
	for scope, c := range s.counters {
		stats.Hits += c.hits
		stats.Misses += c.misses
		stats.Scopes[scope] = ScopeStats{
			Hits:     c.hits,
			Misses:   c.misses,
			HitRatio: hitRatio(c.hits, c.misses),
		}
	}
	stats.HitRatio = hitRatio(stats.Hits, stats.Misses)
	return stats
}

// Reset обнуляет все счётчики атомарно относительно конкурентных инкрементов.
func (s *StatsCollector) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.counters {
		c.hits = 0
		c.misses = 0
	}
}

// hitRatio вычисляет долю попаданий; 0 при отсутствии запросов.
func hitRatio(hits, misses uint64) float64 {
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}
