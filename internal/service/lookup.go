// lookup.go — LookupService: чтение словарных данных через кэш
// с фолбэком на PostgreSQL и коалесцированием конкурентных промахов.
//
// Путь чтения: кэш → (промах) → single-flight → хранилище → репопуляция.
// Ошибки кэша никогда не всплывают к вызывающему — только замедляют
// запрос (прямой путь к хранилищу). Ошибки хранилища ретраябельны
// и возвращаются как ErrStoreUnavailable.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/lingvostream/vocab-module/internal/cache"
	"github.com/bigkaa/lingvostream/vocab-module/internal/domain/model"
	"github.com/bigkaa/lingvostream/vocab-module/internal/repository"
)

// Ошибки сервисного слоя.
var (
	// ErrNotFound — слово/уровень отсутствует в хранилище.
	// Валидный исход, не сбой: не логируется как ошибка.
	ErrNotFound = errors.New("слово не найдено")
	// ErrStoreUnavailable — словарное хранилище недоступно.
	// Ретраябельная ошибка, всплывает к вызывающему.
	ErrStoreUnavailable = errors.New("словарное хранилище недоступно")
	// ErrValidation — некорректные входные параметры.
	// Отклоняется до любых обращений к кэшу и хранилищу.
	ErrValidation = errors.New("некорректные параметры запроса")
)

// Prometheus-метрики lookup-слоя.
var (
	storeQueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vm_store_queries_total",
		Help: "Количество запросов к словарному хранилищу по scope'ам.",
	}, []string{"scope"})
	flightCoalescedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vm_flight_coalesced_total",
		Help: "Количество запросов, получивших результат от чужого in-flight резолвера.",
	})
	cacheErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vm_cache_errors_total",
		Help: "Количество сбоев кэш-бэкенда (обработаны как промах, фолбэк на хранилище).",
	})
	staleWritesDiscardedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vm_stale_writes_discarded_total",
		Help: "Количество репопуляций кэша, отброшенных протоколом поколений.",
	})
)

// LookupConfig — таймауты и TTL lookup-слоя.
type LookupConfig struct {
	// CacheTTL — время жизни записи кэша
	CacheTTL time.Duration
	// CacheTimeout — таймаут операции кэш-бэкенда
	CacheTimeout time.Duration
	// StoreTimeout — таймаут запроса к хранилищу
	StoreTimeout time.Duration
	// FlightWaitTimeout — сколько ждать чужой in-flight резолвер,
	// прежде чем идти в хранилище самостоятельно
	FlightWaitTimeout time.Duration
}

// LookupService — чтение словарных данных через кэш с фолбэком на хранилище.
type LookupService struct {
	repo    repository.VocabularyRepository
	backend cache.Backend
	gens    *GenerationTracker
	flight  *flightGroup
	stats   *StatsCollector
	cfg     LookupConfig
	logger  *slog.Logger
}

// NewLookupService создаёт lookup-сервис.
// gens разделяется с InvalidationManager — протокол поколений работает
// только при общем трекере.
func NewLookupService(
	repo repository.VocabularyRepository,
	backend cache.Backend,
	gens *GenerationTracker,
	stats *StatsCollector,
	cfg LookupConfig,
	logger *slog.Logger,
) *LookupService {
	return &LookupService{
		repo:    repo,
		backend: backend,
		gens:    gens,
		flight:  newFlightGroup(),
		stats:   stats,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "lookup_service")),
	}
}

// GetWordInfo возвращает справочную запись слова.
// Кэш → (промах) → single-flight → хранилище → репопуляция.
func (s *LookupService) GetWordInfo(ctx context.Context, language, lemma string) (*model.VocabularyEntry, error) {
	if err := model.ValidateLanguage(language); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, err)
	}
	if err := model.ValidateLemma(lemma); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, err)
	}

	key := cache.KeyWord(language, lemma)

	// Путь попадания: цель — единицы миллисекунд
	if data, ok := s.cacheGet(ctx, key); ok {
		entry, err := decodeWordInfo(data)
		if err == nil {
			s.stats.RecordHit(ScopeWord)
			return entry, nil
		}
		// Битая запись — выбрасываем и идём как при промахе
		s.purgeCorrupt(ctx, key, err)
	}

	s.stats.RecordMiss(ScopeWord)

	val, shared, err := s.flight.Do(ctx, key, s.cfg.FlightWaitTimeout, func() (any, error) {
		return s.resolveWord(ctx, key, language, lemma)
	})
	if shared {
		flightCoalescedTotal.Inc()
	}
	if err != nil {
		return nil, err
	}
	return val.(*model.VocabularyEntry), nil
}

// resolveWord — единственный in-flight резолвер слова: запрос к хранилищу
// и репопуляция кэша под контролем поколений.
func (s *LookupService) resolveWord(ctx context.Context, key, language, lemma string) (*model.VocabularyEntry, error) {
	gen := s.gens.Current(key)

	storeQueriesTotal.WithLabelValues(string(ScopeWord)).Inc()
	sctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	entry, err := s.repo.FindWord(sctx, language, lemma)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// NotFound не кэшируется: коалесцирование ограничивает нагрузку
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %s", ErrStoreUnavailable, err)
	}

	if data, encErr := encodeWordInfo(entry); encErr == nil {
		s.cacheSet(ctx, key, data, gen)
	}

	return entry, nil
}

// GetWordsByLevel возвращает слова языка на уровне level,
// упорядоченные по частотному рангу. Пустой список — валидный результат.
func (s *LookupService) GetWordsByLevel(ctx context.Context, language string, level model.CEFRLevel) ([]*model.VocabularyEntry, error) {
	if err := model.ValidateLanguage(language); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, err)
	}
	if !level.Valid() {
		return nil, fmt.Errorf("%w: неизвестный уровень CEFR %q", ErrValidation, level)
	}

	key := cache.KeyLevel(language, string(level))

	if data, ok := s.cacheGet(ctx, key); ok {
		entries, err := decodeLevelList(data)
		if err == nil {
			s.stats.RecordHit(ScopeLevel)
			return entries, nil
		}
		s.purgeCorrupt(ctx, key, err)
	}

	s.stats.RecordMiss(ScopeLevel)

	val, shared, err := s.flight.Do(ctx, key, s.cfg.FlightWaitTimeout, func() (any, error) {
		gen := s.gens.Current(key)

		storeQueriesTotal.WithLabelValues(string(ScopeLevel)).Inc()
		sctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
		defer cancel()

		entries, err := s.repo.FindWordsByLevel(sctx, language, level)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrStoreUnavailable, err)
		}

		if data, encErr := encodeLevelList(entries); encErr == nil {
			s.cacheSet(ctx, key, data, gen)
		}
		return entries, nil
	})
	if shared {
		flightCoalescedTotal.Inc()
	}
	if err != nil {
		return nil, err
	}
	return val.([]*model.VocabularyEntry), nil
}

// GetUserKnowledge возвращает снимок знания слова пользователем.
// ErrNotFound означает отсутствие записи — вызывающий трактует слово
// как неизвестное.
func (s *LookupService) GetUserKnowledge(ctx context.Context, userID, language, lemma string) (*model.UserWordKnowledge, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: пустой идентификатор пользователя", ErrValidation)
	}
	if err := model.ValidateLanguage(language); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, err)
	}
	if err := model.ValidateLemma(lemma); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, err)
	}

	key := cache.KeyKnowledge(language, lemma, userID)

	if data, ok := s.cacheGet(ctx, key); ok {
		k, err := decodeKnowledge(data)
		if err == nil {
			s.stats.RecordHit(ScopeKnowledge)
			return k, nil
		}
		s.purgeCorrupt(ctx, key, err)
	}

	s.stats.RecordMiss(ScopeKnowledge)

	val, shared, err := s.flight.Do(ctx, key, s.cfg.FlightWaitTimeout, func() (any, error) {
		gen := s.gens.Current(key)

		storeQueriesTotal.WithLabelValues(string(ScopeKnowledge)).Inc()
		sctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
		defer cancel()

		k, err := s.repo.GetUserKnowledge(sctx, userID, language, lemma)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, ErrNotFound
			}
			return nil, fmt.Errorf("%w: %s", ErrStoreUnavailable, err)
		}

		if data, encErr := encodeKnowledge(k); encErr == nil {
			s.cacheSet(ctx, key, data, gen)
		}
		return k, nil
	})
	if shared {
		flightCoalescedTotal.Inc()
	}
	if err != nil {
		return nil, err
	}
	return val.(*model.UserWordKnowledge), nil
}

// GetUserKnowledgeBatch возвращает снимки знания для набора лемм.
// Bulk-чтение из кэша (GetMulti), недостающие леммы — одним batch-запросом
// к хранилищу с последующей репопуляцией. Леммы без записи в результат
// не попадают (вызывающий трактует их как неизвестные).
func (s *LookupService) GetUserKnowledgeBatch(ctx context.Context, userID, language string, lemmas []string) (map[string]*model.UserWordKnowledge, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: пустой идентификатор пользователя", ErrValidation)
	}
	if err := model.ValidateLanguage(language); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, err)
	}

	result := make(map[string]*model.UserWordKnowledge, len(lemmas))
	if len(lemmas) == 0 {
		return result, nil
	}

	// Дедупликация лемм с сохранением ключей
	unique := make([]string, 0, len(lemmas))
	keys := make([]string, 0, len(lemmas))
	seen := make(map[string]struct{}, len(lemmas))
	for _, lemma := range lemmas {
		if _, dup := seen[lemma]; dup {
			continue
		}
		seen[lemma] = struct{}{}
		unique = append(unique, lemma)
		keys = append(keys, cache.KeyKnowledge(language, lemma, userID))
	}

	// Bulk-чтение из кэша; сбой бэкенда — все леммы идут в хранилище
	cached := s.cacheGetMulti(ctx, keys)

	var missing []string
	for i, lemma := range unique {
		data, ok := cached[keys[i]]
		if !ok {
			s.stats.RecordMiss(ScopeKnowledge)
			missing = append(missing, lemma)
			continue
		}
		k, err := decodeKnowledge(data)
		if err != nil {
			s.purgeCorrupt(ctx, keys[i], err)
			s.stats.RecordMiss(ScopeKnowledge)
			missing = append(missing, lemma)
			continue
		}
		s.stats.RecordHit(ScopeKnowledge)
		result[lemma] = k
	}

	if len(missing) == 0 {
		return result, nil
	}

	// Снимаем поколения ДО запроса к хранилищу
	gens := make(map[string]uint64, len(missing))
	for _, lemma := range missing {
		key := cache.KeyKnowledge(language, lemma, userID)
		gens[key] = s.gens.Current(key)
	}

	storeQueriesTotal.WithLabelValues(string(ScopeKnowledge)).Inc()
	sctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	fetched, err := s.repo.GetUserKnowledgeBatch(sctx, userID, language, missing)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrStoreUnavailable, err)
	}

	for lemma, k := range fetched {
		result[lemma] = k
		key := cache.KeyKnowledge(language, lemma, userID)
		if data, encErr := encodeKnowledge(k); encErr == nil {
			s.cacheSet(ctx, key, data, gens[key])
		}
	}

	return result, nil
}

// Forget снимает in-flight запись ключа (используется инвалидацией).
func (s *LookupService) Forget(key string) {
	s.flight.Forget(key)
}

// --- Вспомогательные операции кэша ---

// cacheGet читает ключ из бэкенда с ограниченным таймаутом.
// Любой сбой бэкенда трактуется как промах (фолбэк на хранилище).
func (s *LookupService) cacheGet(ctx context.Context, key string) ([]byte, bool) {
	cctx, cancel := context.WithTimeout(ctx, s.cfg.CacheTimeout)
	defer cancel()

	data, err := s.backend.Get(cctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			cacheErrorsTotal.Inc()
			s.logger.Debug("Кэш недоступен, фолбэк на хранилище",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
		return nil, false
	}
	return data, true
}

// cacheGetMulti — bulk-чтение с теми же правилами деградации, что и cacheGet.
func (s *LookupService) cacheGetMulti(ctx context.Context, keys []string) map[string][]byte {
	cctx, cancel := context.WithTimeout(ctx, s.cfg.CacheTimeout)
	defer cancel()

	cached, err := s.backend.GetMulti(cctx, keys)
	if err != nil {
		cacheErrorsTotal.Inc()
		s.logger.Debug("Кэш недоступен при bulk-чтении, фолбэк на хранилище",
			slog.Int("keys", len(keys)),
			slog.String("error", err.Error()),
		)
		return map[string][]byte{}
	}
	return cached
}

// cacheSet репопулирует ключ, если его поколение не изменилось с начала
// lookup'а. Репопуляция устаревшими данными отбрасывается — ключ остаётся
// пустым и следующий читатель пойдёт в хранилище.
// Используется context.WithoutCancel: отмена запроса после успешного
// чтения из хранилища не должна срывать репопуляцию.
func (s *LookupService) cacheSet(ctx context.Context, key string, data []byte, capturedGen uint64) {
	if !s.gens.StillCurrent(key, capturedGen) {
		staleWritesDiscardedTotal.Inc()
		s.logger.Debug("Репопуляция отброшена: ключ инвалидирован во время lookup'а",
			slog.String("key", key),
		)
		return
	}

	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.CacheTimeout)
	defer cancel()

	if err := s.backend.Set(cctx, key, data, s.cfg.CacheTTL); err != nil {
		cacheErrorsTotal.Inc()
		s.logger.Debug("Ошибка репопуляции кэша",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}

// purgeCorrupt выбрасывает битую запись кэша (ошибка десериализации
// ловится на границе, запись не должна пережить обнаружение).
func (s *LookupService) purgeCorrupt(ctx context.Context, key string, decodeErr error) {
	s.logger.Warn("Битая запись кэша выброшена",
		slog.String("key", key),
		slog.String("error", decodeErr.Error()),
	)

	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.CacheTimeout)
	defer cancel()
	_ = s.backend.Delete(cctx, key)
}
